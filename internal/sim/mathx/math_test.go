package mathx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampAndRound(t *testing.T) {
	assert.Equal(t, 0, ClampInt(-3, 0, 4))
	assert.Equal(t, 4, ClampInt(9, 0, 4))
	assert.Equal(t, 2, ClampInt(2, 0, 4))
	assert.Equal(t, 1.0, Clamp(1.5, 0, 1))
	assert.Equal(t, 3, RoundInt(2.5))
	assert.Equal(t, -3, RoundInt(-2.5))
	assert.Equal(t, 5, AbsInt(-5))
}

func TestHashDeterministicAndSpread(t *testing.T) {
	assert.Equal(t, Hash2(1, 3, 4), Hash2(1, 3, 4))
	assert.NotEqual(t, Hash2(1, 3, 4), Hash2(2, 3, 4), "seed ignored")
	assert.NotEqual(t, Hash2(1, 3, 4), Hash2(1, 4, 3), "axes collapsed")
	for i := 0; i < 1000; i++ {
		u := Unit(Hash2(9, i, -i))
		assert.True(t, u >= 0 && u < 1, "Unit out of range: %f", u)
	}
}

func TestDeriveSeedSeparatesSalts(t *testing.T) {
	assert.NotEqual(t, DeriveSeed(5, 1), DeriveSeed(5, 2))
	assert.Equal(t, DeriveSeed(5, 1), DeriveSeed(5, 1))
}
