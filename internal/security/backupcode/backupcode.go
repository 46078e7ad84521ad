// Package backupcode genera y hashea los códigos de respaldo de 2FA.
//
// Los códigos son de un solo uso, se emiten de a 8 por enrolamiento y nunca
// se reutilizan entre enrolamientos. Se guardan hasheados; el texto plano
// solo se muestra una vez al completar el enrolamiento.
package backupcode

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Alfabeto legible: sin 0/O, 1/I/L para evitar ambigüedad visual.
const alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// CodeLength es el largo de cada código (alfanumérico, 8 chars).
const CodeLength = 8

// BatchSize es la cantidad de códigos emitidos por enrolamiento.
const BatchSize = 8

// Generate retorna n códigos únicos. Duplicados dentro del batch están
// prohibidos: se reintenta hasta completar n distintos.
func Generate(n int) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("backupcode: n debe ser > 0")
	}
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for len(out) < n {
		c, err := one()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

func one() (string, error) {
	b := make([]byte, CodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}
	return string(b), nil
}

// Hash retorna sha256(code) en base64url sin padding, para persistir.
func Hash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
