package app

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
)

// loadOrGenerateSigningKey reads the Ed25519 seed from file, generating and
// persisting one on first start. Rotating the key out of band invalidates
// every outstanding access token, which is the intended rotation story.
func loadOrGenerateSigningKey(file string) (ed25519.PrivateKey, error) {
	file = filepath.Clean(file)
	if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
		return nil, err
	}

	if _, err := os.Stat(file); os.IsNotExist(err) {
		_, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}

		encoded := base64.RawStdEncoding.EncodeToString(priv.Seed())
		if err := os.WriteFile(file, []byte(encoded), 0600); err != nil {
			return nil, fmt.Errorf("failed to persist signing key: %w", err)
		}
		return priv, nil
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	seed, err := base64.RawStdEncoding.DecodeString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode signing key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing key has wrong size: %d", len(seed))
	}

	return ed25519.NewKeyFromSeed(seed), nil
}
