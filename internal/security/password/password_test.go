package password

import (
	"strings"
	"testing"
)

// Parámetros bajos para que los tests no tarden.
var testParams = Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func TestHashVerify_RoundTrip(t *testing.T) {
	phc, err := Hash(testParams, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(phc, "$argon2id$v=19$") {
		t.Fatalf("formato PHC inesperado: %q", phc)
	}
	if !Verify("correct horse battery staple", phc) {
		t.Fatal("la contraseña correcta debería verificar")
	}
	if Verify("incorrect horse", phc) {
		t.Fatal("una contraseña incorrecta no debería verificar")
	}
}

func TestHash_SaltedPerCall(t *testing.T) {
	a, _ := Hash(testParams, "misma clave")
	b, _ := Hash(testParams, "misma clave")
	if a == b {
		t.Fatal("dos hashes de la misma clave deben diferir (salt aleatorio)")
	}
}

func TestVerify_MalformedPHC(t *testing.T) {
	for _, phc := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$ZGs",   // variante incorrecta
		"$argon2id$v=19$m=8192,t=1,p=1$!!notb64$ZGs", // salt inválido
		"$argon2id$v=19$garbage$c2FsdA$ZGs",          // params inválidos
	} {
		if Verify("cualquiera", phc) {
			t.Fatalf("PHC malformado %q no debería verificar", phc)
		}
	}
}

func TestHash_EmptyPassword(t *testing.T) {
	if _, err := Hash(testParams, ""); err == nil {
		t.Fatal("password vacía debería fallar")
	}
}
