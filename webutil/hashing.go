package webutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const fingerprintLength = 12

// GenerateHash creates a SHA-256 hash of the input string and returns it
// as a hexadecimal string.
func GenerateHash(data string) (string, error) {
	hasher := sha256.New()
	_, err := hasher.Write([]byte(data))
	if err != nil {
		return "", fmt.Errorf("failed to write data to hasher: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Fingerprint returns a short stable token for an email address so logs can
// correlate recipients without storing them.
func Fingerprint(address string) string {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return "<none>"
	}
	hash, err := GenerateHash(address)
	if err != nil {
		return "<unhashable>"
	}
	return "rcpt:" + hash[:fingerprintLength]
}
