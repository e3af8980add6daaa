package core

import "context"

// Matcher is the rule engine decision function consumed by agents. It must be
// deterministic for a fixed rule set and fixed inputs.
type Matcher interface {
	// Matches decides whether the given expertise satisfies the query.
	Matches(ctx context.Context, expertise, query Vector) (bool, error)

	// WorthAsking decides, from the estimated profile attached to a link,
	// whether the neighbor is a plausible candidate for the query.
	WorthAsking(ctx context.Context, link NeighborLink, query Vector) (bool, error)
}

// QueryGenerator derives test queries from an agent's need vector. The
// content of generated queries is opaque to the network.
type QueryGenerator interface {
	Generate(agent string, needs Vector) Vector
}
