package totp

import (
	"strings"
	"testing"
	"time"
)

// Vectores RFC 6238 (Apéndice B), secreto ASCII "12345678901234567890",
// truncados a 6 dígitos.
func TestCode_RFC6238Vectors(t *testing.T) {
	secret := []byte("12345678901234567890")

	cases := []struct {
		unix int64
		want string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
	}
	for _, c := range cases {
		got := Code(secret, time.Unix(c.unix, 0).UTC())
		if got != c.want {
			t.Fatalf("Code(t=%d) = %q, want %q", c.unix, got, c.want)
		}
	}
}

func TestVerify_WindowTolerance(t *testing.T) {
	secret := []byte("12345678901234567890")
	now := time.Unix(1111111111, 0).UTC()

	// Código del paso anterior: válido con ventana 1.
	prev := Code(secret, now.Add(-30*time.Second))
	if ok, _ := Verify(secret, prev, now, 1, nil); !ok {
		t.Fatal("código del paso anterior debería validar con ventana 1")
	}
	// Pero no con ventana 0.
	if ok, _ := Verify(secret, prev, now, 0, nil); ok {
		t.Fatal("código del paso anterior no debería validar con ventana 0")
	}
	// Dos pasos atrás: fuera de la ventana 1.
	old := Code(secret, now.Add(-60*time.Second))
	if ok, _ := Verify(secret, old, now, 1, nil); ok {
		t.Fatal("código de dos pasos atrás no debería validar")
	}
}

func TestVerify_AntiReplay(t *testing.T) {
	secret := []byte("12345678901234567890")
	now := time.Unix(1111111111, 0).UTC()
	code := Code(secret, now)

	ok, counter := Verify(secret, code, now, 1, nil)
	if !ok {
		t.Fatal("primer uso debería validar")
	}
	// Mismo código, mismo contador: rechazado.
	if ok2, _ := Verify(secret, code, now, 1, &counter); ok2 {
		t.Fatal("reuso del mismo contador debería rechazarse")
	}
}

func TestVerify_MalformedCode(t *testing.T) {
	secret := []byte("12345678901234567890")
	now := time.Now()

	for _, bad := range []string{"", "12345", "1234567", "abcdef"} {
		if ok, _ := Verify(secret, bad, now, 1, nil); ok {
			t.Fatalf("código %q no debería validar", bad)
		}
	}
}

func TestGenerateSecret_Base32RoundTrip(t *testing.T) {
	raw, b32, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if len(raw) != 20 {
		t.Fatalf("secreto de %d bytes, want 20", len(raw))
	}
	decoded, err := DecodeSecret(b32)
	if err != nil {
		t.Fatalf("DecodeSecret: %v", err)
	}
	if string(decoded) != string(raw) {
		t.Fatal("base32 no decodifica al secreto original")
	}
}

func TestOTPAuthURL(t *testing.T) {
	u := OTPAuthURL("BSK Motorcycle Team", "socio@bskmt.org", "JBSWY3DPEHPK3PXP")
	for _, want := range []string{"otpauth://totp/", "secret=JBSWY3DPEHPK3PXP", "digits=6", "period=30", "algorithm=SHA1"} {
		if !strings.Contains(u, want) {
			t.Fatalf("URL %q no contiene %q", u, want)
		}
	}
}
