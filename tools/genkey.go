// genkey genera una SECURITY_MASTER_KEY nueva (32 bytes, base64) o, con un
// argumento, cifra un valor con la clave del entorno para verificar el setup.
//
// Uso:
//
//	go run tools/genkey.go            # imprime una clave nueva
//	go run tools/genkey.go <valor>    # cifra <valor> con SECURITY_MASTER_KEY
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	"github.com/J4CIVY/bskmt-security/internal/security/secretbox"
)

func main() {
	if len(os.Args) < 2 {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			log.Fatalf("rand: %v", err)
		}
		fmt.Printf("SECURITY_MASTER_KEY=%s\n", base64.StdEncoding.EncodeToString(key))
		return
	}

	encrypted, err := secretbox.Encrypt(os.Args[1])
	if err != nil {
		log.Fatalf("cifrado falló: %v", err)
	}
	fmt.Printf("Encrypted: %s\n", encrypted)
}
