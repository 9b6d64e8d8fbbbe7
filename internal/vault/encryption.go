package vault

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/modelgrid/connecthub/pkg/crypto"
)

const minSaltLength = 16

// Crypto seals and opens credential payloads with a key derived from the
// configured master secret via Argon2id.
type Crypto struct {
	key []byte
}

type cryptoOptions struct {
	salt   []byte
	params crypto.Argon2Parameters
}

// Option configures key derivation.
type Option func(*cryptoOptions)

// WithSalt pins the derivation salt. Without it the salt is derived from the
// master key itself, so a given key always yields the same AES key.
func WithSalt(salt []byte) Option {
	copied := append([]byte(nil), salt...)
	return func(o *cryptoOptions) { o.salt = copied }
}

// WithArgon2Parameters overrides the Argon2id cost factors.
func WithArgon2Parameters(params crypto.Argon2Parameters) Option {
	return func(o *cryptoOptions) { o.params = params }
}

// NewCrypto derives the AES-256 key from the master key.
func NewCrypto(masterKey []byte, opts ...Option) (*Crypto, error) {
	if len(masterKey) == 0 {
		return nil, errors.New("vault crypto: master key is required")
	}

	options := cryptoOptions{params: crypto.DefaultArgon2Params()}
	for _, opt := range opts {
		opt(&options)
	}

	switch {
	case len(options.salt) == 0:
		sum := sha256.Sum256(masterKey)
		options.salt = sum[:minSaltLength]
	case len(options.salt) < minSaltLength:
		return nil, fmt.Errorf("vault crypto: salt must be at least %d bytes (got %d)", minSaltLength, len(options.salt))
	}

	key, err := crypto.DeriveKeyArgon2id(masterKey, options.salt, options.params)
	if err != nil {
		return nil, fmt.Errorf("vault crypto: derive key: %w", err)
	}
	return &Crypto{key: key}, nil
}

// Encrypt seals plaintext with AES-256-GCM.
func (c *Crypto) Encrypt(plaintext []byte) (string, error) {
	if len(c.key) == 0 {
		return "", errors.New("vault crypto: key is not initialised")
	}
	return crypto.Encrypt(plaintext, c.key)
}

// Decrypt opens a sealed payload.
func (c *Crypto) Decrypt(ciphertext string) ([]byte, error) {
	if len(c.key) == 0 {
		return nil, errors.New("vault crypto: key is not initialised")
	}
	return crypto.Decrypt(ciphertext, c.key)
}
