// Package querygen produces synthetic queries for the self-test pass run
// after a graph is loaded.
package querygen

import (
	"hash/fnv"
	"math/rand/v2"
	"sync"

	"github.com/hupe1980/referralmesh/core"
)

// Options configures a RandomGenerator.
type Options struct {
	// Spread is the maximum distance a generated component may deviate from
	// the corresponding need.
	Spread float64

	// Seed makes generation reproducible. Each agent gets its own stream
	// derived from Seed and the agent name.
	Seed uint64
}

// RandomGenerator derives queries from an agent's needs by perturbing every
// component by up to Spread and clamping to [0, 1]. Agents without needs get
// uniformly random queries. It is safe for concurrent use.
type RandomGenerator struct {
	opts Options

	mu      sync.Mutex
	streams map[string]*rand.Rand
}

var _ core.QueryGenerator = (*RandomGenerator)(nil)

// NewRandomGenerator creates a RandomGenerator with a default spread of 0.25.
func NewRandomGenerator(optFns ...func(o *Options)) *RandomGenerator {
	opts := Options{Spread: 0.25}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RandomGenerator{opts: opts, streams: make(map[string]*rand.Rand)}
}

// Generate implements core.QueryGenerator.
func (g *RandomGenerator) Generate(agent string, needs core.Vector) core.Vector {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := g.stream(agent)
	q := make(core.Vector, core.VectorLen)
	for i := range q {
		if len(needs) != core.VectorLen {
			q[i] = r.Float64()
			continue
		}
		q[i] = clamp(needs[i] + (r.Float64()*2-1)*g.opts.Spread)
	}
	return q
}

func (g *RandomGenerator) stream(agent string) *rand.Rand {
	if r, ok := g.streams[agent]; ok {
		return r
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(agent))
	r := rand.New(rand.NewPCG(g.opts.Seed, h.Sum64()))
	g.streams[agent] = r
	return r
}

func clamp(x float64) float64 {
	return min(max(x, 0), 1)
}
