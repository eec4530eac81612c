package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Recovery code shape: 4 hyphen-separated groups of 6 uppercase alphanumerics,
// e.g. "K7Q2MB-09XRTW-ZZA41C-P3M8VD". Chosen for manual transcription.
const (
	recoveryCodeGroups    = 4
	recoveryCodeGroupSize = 6
	recoveryCodeCharset   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateRecoveryCode creates a fresh human-transcribable recovery code.
// Only its fingerprint should ever be persisted.
func GenerateRecoveryCode() (string, error) {
	groups := make([]string, recoveryCodeGroups)
	for g := range groups {
		chars := make([]byte, recoveryCodeGroupSize)
		for i := range chars {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(recoveryCodeCharset))))
			if err != nil {
				return "", fmt.Errorf("failed to generate recovery code: %w", err)
			}
			chars[i] = recoveryCodeCharset[n.Int64()]
		}
		groups[g] = string(chars)
	}
	return strings.Join(groups, "-"), nil
}

// NormalizeRecoveryCode uppercases user input so codes survive being typed in
// lowercase. Hyphens are kept; the fingerprint covers the canonical form.
func NormalizeRecoveryCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
