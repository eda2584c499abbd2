// keys genera el material de configuración del servicio: la seed Ed25519
// para firmar credenciales y el hash bcrypt de la API key de administración.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	var (
		genSeed  = flag.Bool("seed", false, "Generar seed Ed25519 (base64, 32 bytes) para jwt.ed25519_seed")
		adminKey = flag.String("admin-key", "", "Generar hash bcrypt de la API key para admin.api_key_hash")
		cost     = flag.Int("cost", bcrypt.DefaultCost, "Costo bcrypt para --admin-key")
	)
	flag.Parse()

	switch {
	case *genSeed:
		seed := make([]byte, 32)
		if _, err := rand.Read(seed); err != nil {
			log.Fatalf("rand: %v", err)
		}
		fmt.Println(base64.StdEncoding.EncodeToString(seed))
	case *adminKey != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(*adminKey), *cost)
		if err != nil {
			log.Fatalf("bcrypt: %v", err)
		}
		fmt.Println(string(hash))
	default:
		log.Fatal("usage: keys --seed | keys --admin-key <key>")
	}
}
