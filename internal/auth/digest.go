package auth

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// EmailDigester maps a campus email to a stable keyed digest. The digest is
// what the user store indexes; the address itself is never persisted.
type EmailDigester struct {
	key []byte
}

// NewEmailDigester keys BLAKE2b-256 with key (1..64 bytes).
func NewEmailDigester(key string) (*EmailDigester, error) {
	if len(key) == 0 || len(key) > blake2b.Size {
		return nil, fmt.Errorf("email digest key must be 1..%d bytes, got %d", blake2b.Size, len(key))
	}
	return &EmailDigester{key: []byte(key)}, nil
}

// Digest normalizes email (trim, lowercase) and returns its hex digest.
func (d *EmailDigester) Digest(email string) (string, error) {
	h, err := blake2b.New256(d.key)
	if err != nil {
		return "", fmt.Errorf("init digest: %w", err)
	}
	h.Write([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasDomain reports whether email is an address at exactly domain.
func HasDomain(email, domain string) bool {
	email = NormalizeEmail(email)
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return email[at+1:] == strings.ToLower(strings.TrimPrefix(domain, "@"))
}
