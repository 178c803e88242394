package codegen

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(alphabet string, length int) *Generator {
	return NewWithSource(alphabet, length, rand.NewPCG(1, 2))
}

func TestNextShape(t *testing.T) {
	g := New()
	for i := 0; i < 200; i++ {
		code := g.Next()
		assert.Len(t, code, DefaultLength)
		assert.True(t, g.Valid(code), "invalid code %q", code)
	}
}

func TestSeededGeneratorIsDeterministic(t *testing.T) {
	a := seeded(DefaultAlphabet, DefaultLength)
	b := seeded(DefaultAlphabet, DefaultLength)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestFillBatchSkipsTriedCodes(t *testing.T) {
	g := seeded(DefaultAlphabet, DefaultLength)
	existing := map[string]struct{}{"AAAAAA": {}}

	batch, err := g.FillBatch(existing, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.NotEqual(t, batch[0], batch[1])
	assert.NotContains(t, batch, "AAAAAA")
}

func TestFillBatchTinyKeyspace(t *testing.T) {
	// alphabet "AB", length 2: keyspace of four codes
	g := seeded("AB", 2)
	existing := map[string]struct{}{"AA": {}}

	batch, err := g.FillBatch(existing, 3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"AB", "BA", "BB"}, batch)
}

func TestFillBatchKeyspaceExhausted(t *testing.T) {
	g := seeded("AB", 2)
	existing := map[string]struct{}{"AA": {}, "AB": {}, "BA": {}}

	_, err := g.FillBatch(existing, 2)
	assert.ErrorIs(t, err, ErrKeyspaceExhausted)

	batch, err := g.FillBatch(existing, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"BB"}, batch)
}

func TestFillBatchZero(t *testing.T) {
	batch, err := New().FillBatch(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestKeyspace(t *testing.T) {
	assert.Equal(t, 2176782336, New().Keyspace())
	assert.Equal(t, 4, seeded("AB", 2).Keyspace())
}

func TestValid(t *testing.T) {
	g := New()
	assert.True(t, g.Valid("0A9Z1B"))
	assert.False(t, g.Valid("0a9z1b"), "lower case is outside the alphabet")
	assert.False(t, g.Valid("ABCDE"))
	assert.False(t, g.Valid("ABCDEF1"))
	assert.False(t, g.Valid("ABC-EF"))
}
