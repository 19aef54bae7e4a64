package codec

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// sealedPrefix versions the sealed stored form.
const sealedPrefix = "v1:"

// Compile-time interface satisfaction check.
var _ driven.SecretCodec = (*Sealed)(nil)

// Sealed encrypts secrets with XChaCha20-Poly1305. The stored form is
// "v1:" followed by base64(nonce || ciphertext || tag). A fresh random nonce
// is drawn for every Encode call.
type Sealed struct {
	key []byte
}

// NewSealed creates a Sealed codec. key must be chacha20poly1305.KeySize (32) bytes.
func NewSealed(key []byte) (*Sealed, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("sealed codec key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Sealed{key: k}, nil
}

// Name implements driven.SecretCodec.
func (*Sealed) Name() string { return "sealed" }

// Encode implements driven.SecretCodec.
func (c *Sealed) Encode(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("chacha20poly1305.NewX: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends to nonce, producing nonce || ciphertext || tag.
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decode implements driven.SecretCodec.
func (c *Sealed) Decode(stored string) (string, error) {
	body, ok := strings.CutPrefix(stored, sealedPrefix)
	if !ok {
		return "", fmt.Errorf("%w: missing %q prefix", driven.ErrMalformedSecret, sealedPrefix)
	}

	data, err := base64.StdEncoding.Strict().DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("%w: base64: %v", driven.ErrMalformedSecret, err)
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("chacha20poly1305.NewX: %w", err)
	}

	if len(data) < aead.NonceSize()+aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", driven.ErrMalformedSecret)
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", driven.ErrMalformedSecret, err)
	}

	return string(plaintext), nil
}
