// Package codegen draws random candidate codes that have not been tried yet.
package codegen

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
)

// Defaults for invite-style codes
const (
	DefaultAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	DefaultLength   = 6
)

// ErrKeyspaceExhausted is returned when too few untried codes remain to fill a batch
var ErrKeyspaceExhausted = errors.New("codegen: not enough untried codes left in keyspace")

// Generator produces uniformly random codes over Alphabet. It is not safe
// for concurrent use.
type Generator struct {
	Alphabet string
	Length   int
	rng      *rand.Rand
}

// New returns a Generator with the default alphabet and length seeded from
// the runtime's random source.
func New() *Generator {
	return NewWithSource(DefaultAlphabet, DefaultLength, rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewWithSource returns a Generator drawing from src; tests pass a fixed seed
func NewWithSource(alphabet string, length int, src rand.Source) *Generator {
	return &Generator{
		Alphabet: alphabet,
		Length:   length,
		rng:      rand.New(src),
	}
}

// Next returns one random code
func (g *Generator) Next() string {
	var b strings.Builder
	b.Grow(g.Length)
	for i := 0; i < g.Length; i++ {
		b.WriteByte(g.Alphabet[g.rng.IntN(len(g.Alphabet))])
	}
	return b.String()
}

// Keyspace returns the number of distinct codes, saturating at math.MaxInt
func (g *Generator) Keyspace() int {
	space := 1
	for i := 0; i < g.Length; i++ {
		if space > math.MaxInt/len(g.Alphabet) {
			return math.MaxInt
		}
		space *= len(g.Alphabet)
	}
	return space
}

// FillBatch returns n distinct codes, none of which is in existing.
// It fails with ErrKeyspaceExhausted rather than looping forever when the
// keyspace cannot supply n fresh codes.
func (g *Generator) FillBatch(existing map[string]struct{}, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	if len(existing) > g.Keyspace()-n {
		return nil, ErrKeyspaceExhausted
	}

	batch := make([]string, 0, n)
	picked := make(map[string]struct{}, n)
	for len(batch) < n {
		code := g.Next()
		if _, tried := existing[code]; tried {
			continue
		}
		if _, dup := picked[code]; dup {
			continue
		}
		picked[code] = struct{}{}
		batch = append(batch, code)
	}
	return batch, nil
}

// Valid reports whether code has the generator's length and alphabet
func (g *Generator) Valid(code string) bool {
	if len(code) != g.Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(g.Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
