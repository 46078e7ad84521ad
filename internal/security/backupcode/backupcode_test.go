package backupcode

import (
	"strings"
	"testing"
)

func TestGenerate_UniqueAndWellFormed(t *testing.T) {
	codes, err := Generate(BatchSize)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(codes) != BatchSize {
		t.Fatalf("got %d códigos, want %d", len(codes), BatchSize)
	}

	seen := map[string]bool{}
	for _, c := range codes {
		if len(c) != CodeLength {
			t.Fatalf("código %q de largo %d, want %d", c, len(c), CodeLength)
		}
		for _, r := range c {
			if !strings.ContainsRune(alphabet, r) {
				t.Fatalf("código %q contiene %q fuera del alfabeto", c, r)
			}
		}
		if seen[c] {
			t.Fatalf("código duplicado en el batch: %q", c)
		}
		seen[c] = true
	}
}

func TestGenerate_NoAmbiguousChars(t *testing.T) {
	// 0/O y 1/I/L quedan fuera para evitar confusión al transcribir.
	for _, bad := range "0O1IL" {
		if strings.ContainsRune(alphabet, bad) {
			t.Fatalf("el alfabeto no debería contener %q", bad)
		}
	}
}

func TestHash_Deterministic(t *testing.T) {
	a := Hash("ABCD2345")
	b := Hash("ABCD2345")
	if a != b {
		t.Fatal("el hash debe ser determinístico")
	}
	if a == Hash("ABCD2346") {
		t.Fatal("códigos distintos no deben colisionar trivialmente")
	}
	if strings.Contains(a, "=") {
		t.Fatal("hash debe ser base64url sin padding")
	}
}

func TestGenerate_InvalidN(t *testing.T) {
	if _, err := Generate(0); err == nil {
		t.Fatal("n=0 debería fallar")
	}
}
