// enc cifra un secreto con la master key de secretbox para pegarlo en la
// config YAML. Uso: SECRETBOX_MASTER_KEY=... enc "valor-en-claro"
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	sec "github.com/dropDatabas3/linerelay/internal/security/secretbox"
)

func main() {
	_ = godotenv.Load(".env")
	if os.Getenv("SECRETBOX_MASTER_KEY") == "" {
		log.Fatal("SECRETBOX_MASTER_KEY not set")
	}
	if len(os.Args) < 2 || os.Args[1] == "" {
		log.Fatal("usage: enc <plaintext>")
	}
	enc, err := sec.Encrypt(os.Args[1])
	if err != nil {
		log.Fatalf("encrypt: %v", err)
	}
	fmt.Println(enc)
}
