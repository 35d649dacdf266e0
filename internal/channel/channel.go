// Package channel defines channel identifiers: short alphanumeric tokens that
// name one communication session and travel inside share links.
package channel

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the character set channel identifiers are drawn from. Every
// character is URL-safe, so identifiers never need percent-encoding.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultLength is the number of characters in a generated identifier.
const DefaultLength = 8

var ErrInvalid = errors.New("invalid channel id")

// ID is an opaque channel identifier.
type ID string

func (id ID) String() string { return string(id) }

// Valid reports whether id is non-empty and uses only Alphabet characters.
func (id ID) Valid() bool {
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(Alphabet, id[i]) < 0 {
			return false
		}
	}
	return true
}

// Parse validates untrusted input as a channel identifier.
func Parse(s string) (ID, error) {
	id := ID(s)
	if !id.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return id, nil
}

// Generator produces fresh channel identifiers.
type Generator interface {
	New() (ID, error)
}

// NanoGenerator draws each character independently and uniformly from
// Alphabet using go-nanoid.
type NanoGenerator struct {
	Length int
}

func NewGenerator(length int) *NanoGenerator {
	if length <= 0 {
		length = DefaultLength
	}
	return &NanoGenerator{Length: length}
}

func (g *NanoGenerator) New() (ID, error) {
	s, err := nanoid.Generate(Alphabet, g.Length)
	if err != nil {
		return "", fmt.Errorf("channel: %w", err)
	}
	return ID(s), nil
}

// SeededGenerator is a reproducible generator backed by math/rand. The ids
// are handles, not credentials, so a predictable source is acceptable where
// determinism matters (tests, CLI --seed).
type SeededGenerator struct {
	Length int

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSeededGenerator(length int, seed uint64) *SeededGenerator {
	if length <= 0 {
		length = DefaultLength
	}
	return &SeededGenerator{
		Length: length,
		rnd:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (g *SeededGenerator) New() (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := make([]byte, g.Length)
	for i := range b {
		b[i] = Alphabet[g.rnd.IntN(len(Alphabet))]
	}
	return ID(b), nil
}
