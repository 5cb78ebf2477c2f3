// Package randcode generates short, URL-safe public codes.
package randcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphabet omits characters that are easy to confuse when read aloud or typed (0/O, 1/I/L).
const Alphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// New returns a random code of length n drawn from Alphabet.
func New(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("randcode: invalid length %d", n)
	}
	max := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("randcode: %w", err)
		}
		buf[i] = Alphabet[idx.Int64()]
	}
	return string(buf), nil
}

// Generator produces codes; tests substitute deterministic sequences.
type Generator func() (string, error)

// Of returns a Generator of codes with length n.
func Of(n int) Generator {
	return func() (string, error) { return New(n) }
}
