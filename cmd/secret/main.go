// Command secret prints a random base64 signing key suitable for JWT_SECRET.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"os"

	"github.com/example/jwtauth/internal/logging"
)

func generateSecretKey(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func main() {
	logger := logging.New(os.Stderr, "info", "text")
	size := flag.Int("bytes", 64, "Key size in bytes (64 = 512 bits)")
	flag.Parse()

	if *size < 32 {
		logger.Error("refusing to generate a key shorter than 32 bytes", "bytes", *size)
		os.Exit(2)
	}

	key, err := generateSecretKey(*size)
	if err != nil {
		logger.Error("generate key", "err", err)
		os.Exit(1)
	}
	fmt.Println(key)
}
