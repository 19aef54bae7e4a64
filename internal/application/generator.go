package application

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// GeneratedPasswordLength is the fixed length of generated passwords.
const GeneratedPasswordLength = 10

// PasswordAlphabet is the 88-character alphabet generated passwords draw from.
const PasswordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz" +
	"0123456789" +
	SpecialCharacters

// PasswordGenerator produces random passwords from PasswordAlphabet.
type PasswordGenerator struct {
	random io.Reader
}

// NewPasswordGenerator creates a generator reading from random. A nil reader
// selects crypto/rand.Reader.
func NewPasswordGenerator(random io.Reader) *PasswordGenerator {
	if random == nil {
		random = rand.Reader
	}
	return &PasswordGenerator{random: random}
}

// Generate returns a password of GeneratedPasswordLength characters, each
// drawn uniformly and independently from PasswordAlphabet.
func (g *PasswordGenerator) Generate() (string, error) {
	size := big.NewInt(int64(len(PasswordAlphabet)))

	var b strings.Builder
	b.Grow(GeneratedPasswordLength)
	for range GeneratedPasswordLength {
		n, err := rand.Int(g.random, size)
		if err != nil {
			return "", fmt.Errorf("draw password character: %w", err)
		}
		b.WriteByte(PasswordAlphabet[n.Int64()])
	}

	return b.String(), nil
}
