package secretbox

import (
	"encoding/base64"
	"os"
	"strings"
	"testing"
)

func setTestKey(t *testing.T) {
	t.Helper()
	UnsafeResetForTests()

	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	t.Setenv("SECURITY_MASTER_KEY", base64.StdEncoding.EncodeToString(raw))
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	setTestKey(t)

	msg := "JBSWY3DPEHPK3PXP — secreto TOTP"
	ct, err := Encrypt(msg)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ct == msg || !strings.Contains(ct, "|") {
		t.Fatalf("ciphertext con formato inesperado: %q", ct)
	}
	pt, err := Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if pt != msg {
		t.Fatalf("roundtrip: got %q want %q", pt, msg)
	}
}

func TestDecrypt_DetectsTamper(t *testing.T) {
	setTestKey(t)

	ct, err := Encrypt("contenido protegido")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	parts := strings.SplitN(ct, "|", 2)
	ctBytes, _ := base64.StdEncoding.DecodeString(parts[1])
	ctBytes[0] ^= 0xFF
	tampered := parts[0] + "|" + base64.StdEncoding.EncodeToString(ctBytes)

	if _, err := Decrypt(tampered); err == nil {
		t.Fatal("un ciphertext adulterado debería fallar (GCM auth)")
	}
}

func TestDecrypt_BadFormat(t *testing.T) {
	setTestKey(t)

	for _, bad := range []string{"", "sin separador", "!!|!!"} {
		if _, err := Decrypt(bad); err == nil {
			t.Fatalf("formato %q debería fallar", bad)
		}
	}
}

func TestEncrypt_MissingKey(t *testing.T) {
	UnsafeResetForTests()
	os.Unsetenv("SECURITY_MASTER_KEY")

	if _, err := Encrypt("x"); err == nil {
		t.Fatal("sin SECURITY_MASTER_KEY debería fallar")
	}
	if Ready() {
		t.Fatal("Ready debería ser false sin clave")
	}
}
