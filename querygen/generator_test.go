package querygen

import (
	"testing"

	"github.com/hupe1980/referralmesh/core"
	"github.com/stretchr/testify/assert"
)

func TestRandomGenerator_StaysNearNeeds(t *testing.T) {
	g := NewRandomGenerator(func(o *Options) { o.Spread = 0.1 })
	needs := core.Vector{0.5, 0, 1, 0.3}

	for i := 0; i < 100; i++ {
		q := g.Generate("default", needs)
		assert.Len(t, q, core.VectorLen)
		for j, x := range q {
			assert.GreaterOrEqual(t, x, 0.0)
			assert.LessOrEqual(t, x, 1.0)
			assert.InDelta(t, needs[j], x, 0.1+1e-9)
		}
	}
}

func TestRandomGenerator_UnsetNeeds(t *testing.T) {
	q := NewRandomGenerator().Generate("loner", nil)
	assert.Len(t, q, core.VectorLen)
	assert.NoError(t, q.Validate("query"))
}

func TestRandomGenerator_Reproducible(t *testing.T) {
	a := NewRandomGenerator(func(o *Options) { o.Seed = 7 })
	b := NewRandomGenerator(func(o *Options) { o.Seed = 7 })
	needs := core.Vector{0.2, 0.4, 0.6, 0.8}

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Generate("x", needs), b.Generate("x", needs))
	}
	assert.NotEqual(t, a.Generate("x", needs), a.Generate("y", needs))
}

func TestRandomGenerator_ZeroSpreadEchoesNeeds(t *testing.T) {
	g := NewRandomGenerator(func(o *Options) { o.Spread = 0 })
	assert.Equal(t, core.Vector{0.2, 0.4, 0.6, 0.8}, g.Generate("x", core.Vector{0.2, 0.4, 0.6, 0.8}))
}
