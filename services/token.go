package services

import (
	"crypto/rand"
	"encoding/base64"
)

const linkTokenBytes = 32

// NewLinkToken returns an unguessable URL-safe token. It carries no sequence
// information, so link URLs cannot be enumerated.
func NewLinkToken() (string, error) {
	b := make([]byte, linkTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
