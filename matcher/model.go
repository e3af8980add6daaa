package matcher

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/hupe1980/referralmesh/core"
	"github.com/hupe1980/referralmesh/model"
)

const defaultInstructions = `You decide whether a person's expertise profile satisfies a request.
Profiles and requests are vectors of 4 numbers between 0 and 1, one per topic.
Reply with exactly one word: MATCH or NO_MATCH.`

// ModelOptions configures a ModelMatcher.
type ModelOptions struct {
	// Instructions is the system prompt sent with every decision.
	Instructions string

	// MaxCalls bounds the number of model calls (0 = unlimited).
	MaxCalls int

	// CacheSize is the number of decisions kept so repeated questions are
	// answered identically without another model call.
	CacheSize int

	// UseSociability mirrors RuleOptions.UseSociability.
	UseSociability bool
}

// ModelMatcher asks a language model to judge matches. Decisions are cached
// by (profile, query) so that a fixed model answer stays stable.
type ModelMatcher struct {
	model   model.Model
	limiter *CallLimiter
	cache   *lru.Cache
	opts    ModelOptions
}

// NewModelMatcher creates a ModelMatcher backed by m.
func NewModelMatcher(m model.Model, optFns ...func(o *ModelOptions)) (*ModelMatcher, error) {
	opts := ModelOptions{
		Instructions:   defaultInstructions,
		CacheSize:      1024,
		UseSociability: true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	cache, err := lru.New(max(opts.CacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("create decision cache: %w", err)
	}
	return &ModelMatcher{
		model:   m,
		limiter: NewCallLimiter(opts.MaxCalls),
		cache:   cache,
		opts:    opts,
	}, nil
}

// Limiter exposes the call budget so callers can inspect or reset it.
func (m *ModelMatcher) Limiter() *CallLimiter { return m.limiter }

// Matches implements core.Matcher.
func (m *ModelMatcher) Matches(ctx context.Context, expertise, query core.Vector) (bool, error) {
	if err := query.Validate("query"); err != nil {
		return false, err
	}
	if !expertise.IsSet() || query.AllZero() {
		return false, nil
	}
	return m.decide(ctx, "expertise", expertise, query)
}

// WorthAsking implements core.Matcher.
func (m *ModelMatcher) WorthAsking(ctx context.Context, link core.NeighborLink, query core.Vector) (bool, error) {
	ok, err := m.Matches(ctx, link.Expertise, query)
	if err != nil || ok || !m.opts.UseSociability {
		return ok, err
	}
	if !link.Sociability.IsSet() {
		return false, nil
	}
	return m.decide(ctx, "sociability", link.Sociability, query)
}

func (m *ModelMatcher) decide(ctx context.Context, kind string, profile, query core.Vector) (bool, error) {
	key := kind + profile.String() + query.String()
	if v, ok := m.cache.Get(key); ok {
		return v.(bool), nil
	}
	if err := m.limiter.Increment(); err != nil {
		return false, err
	}

	prompt := fmt.Sprintf("Profile (%s): %s\nRequest: %s\nDoes the profile satisfy the request?", kind, profile, query)
	resp, err := model.Complete(ctx, m.model, model.Request{
		Instructions: m.opts.Instructions,
		Messages:     []model.Message{{Role: "user", Text: prompt}},
	})
	if err != nil {
		return false, fmt.Errorf("model %s: %w", m.model.Info().Name, err)
	}

	decision, err := parseDecision(resp.Text)
	if err != nil {
		return false, err
	}
	m.cache.Add(key, decision)
	return decision, nil
}

func parseDecision(text string) (bool, error) {
	word := strings.ToUpper(strings.Trim(strings.TrimSpace(text), ".!\"'`"))
	switch word {
	case "MATCH", "YES":
		return true, nil
	case "NO_MATCH", "NO MATCH", "NO":
		return false, nil
	default:
		return false, fmt.Errorf("unparsable model decision %q", text)
	}
}
