package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/groqtales/groqtales-server/internal/auth"
)

func main() {
	var apiKey string
	switch len(os.Args) {
	case 1:
		apiKey = "gt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	case 2:
		apiKey = os.Args[1]
	default:
		fmt.Println("Usage: go run ./cmd/keygen [api-key]")
		fmt.Println("Generates an API key (or hashes the given one) for the mint endpoints")
		os.Exit(1)
	}

	keyHash := auth.HashAPIKey(apiKey)

	fmt.Printf("API Key: %s\n", apiKey)
	fmt.Printf("SHA-256 Hash: %s\n", keyHash)
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Println("auth:")
	fmt.Println("  api_key_hashes:")
	fmt.Printf("    - %q\n", keyHash)
}
