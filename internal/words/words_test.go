package words

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChoicesAreDistinct(t *testing.T) {
	g := NewGenerator(42, 0.5)
	for i := 0; i < 500; i++ {
		c := g.Choices()
		require.Len(t, c, 2)
		assert.NotEqual(t, c[0].Word, c[1].Word)
		assert.NotEqual(t, c[0].RequiredClues, c[1].RequiredClues)
		for _, wc := range c {
			assert.GreaterOrEqual(t, wc.RequiredClues, MinClues)
			assert.LessOrEqual(t, wc.RequiredClues, MaxClues)
		}
		assert.False(t, c[0].CanMalus && c[1].CanMalus, "malus must be exclusive")
	}
}

func TestMalusProbabilityBounds(t *testing.T) {
	never := NewGenerator(7, 0)
	always := NewGenerator(7, 1)
	for i := 0; i < 100; i++ {
		c := never.Choices()
		assert.False(t, c[0].CanMalus || c[1].CanMalus)

		c = always.Choices()
		assert.True(t, c[0].CanMalus != c[1].CanMalus)
	}
}

func TestWordListHasNoDuplicates(t *testing.T) {
	seen := map[string]bool{}
	for _, w := range NewGenerator(1, 0).Words() {
		assert.False(t, seen[w], "duplicate word %q", w)
		seen[w] = true
	}
}
