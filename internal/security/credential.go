package security

import (
	"encoding/hex"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Credential holds the session's API key. The value is kept sealed so it
// does not appear in plaintext in session state or dumps.
type Credential struct {
	mu          sync.RWMutex
	enc         *Encryptor
	sealed      []byte
	fingerprint string
}

// NewCredential creates an empty credential holder
func NewCredential() (*Credential, error) {
	enc, err := NewEphemeralEncryptor()
	if err != nil {
		return nil, err
	}
	return &Credential{enc: enc}, nil
}

// Set stores value and reports whether it differs from the previous one.
func (c *Credential) Set(value string) (bool, error) {
	value = strings.TrimSpace(value)
	fp := Fingerprint(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if fp == c.fingerprint {
		return false, nil
	}

	if value == "" {
		c.sealed = nil
		c.fingerprint = ""
		return true, nil
	}

	sealed, err := c.enc.Seal([]byte(value))
	if err != nil {
		return false, err
	}
	c.sealed = sealed
	c.fingerprint = fp
	return true, nil
}

// IsSet is true iff a non-blank value is stored
func (c *Credential) IsSet() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fingerprint != ""
}

// Value returns the stored credential, or "" when unset
func (c *Credential) Value() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.sealed == nil {
		return "", nil
	}
	plain, err := c.enc.Open(c.sealed)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Fingerprint identifies the stored credential without revealing it
func (c *Credential) Fingerprint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fingerprint
}

// Fingerprint returns a short blake2b digest of value, "" for a blank value.
func Fingerprint(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return Digest(value)[:16]
}

// Digest returns the hex blake2b-256 digest of s
func Digest(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
