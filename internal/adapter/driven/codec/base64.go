// Package codec implements the driven.SecretCodec port.
//
// Base64 mirrors the historical at-rest format: it is an obfuscation, not
// encryption, and anyone with the vault file can read every secret. Sealed
// provides authenticated encryption under a key kept outside the vault file.
package codec

import (
	"encoding/base64"
	"fmt"

	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SecretCodec = Base64{}

// Base64 encodes secrets as standard, padded base64 of their UTF-8 bytes.
type Base64 struct{}

// Name implements driven.SecretCodec.
func (Base64) Name() string { return "base64" }

// Encode implements driven.SecretCodec. It never fails.
func (Base64) Encode(plaintext string) (string, error) {
	return base64.StdEncoding.EncodeToString([]byte(plaintext)), nil
}

// Decode implements driven.SecretCodec.
func (Base64) Decode(stored string) (string, error) {
	data, err := base64.StdEncoding.Strict().DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("%w: base64: %v", driven.ErrMalformedSecret, err)
	}
	return string(data), nil
}
