package matcher

import (
	"context"

	"github.com/hupe1980/referralmesh/core"
)

// RuleOptions configures a RuleMatcher.
type RuleOptions struct {
	// Tolerance is subtracted from every query component before comparing it
	// with the profile component.
	Tolerance float64

	// UseSociability lets a neighbor whose estimated sociability covers the
	// query be consulted even if its estimated expertise does not.
	UseSociability bool
}

// RuleMatcher matches a profile against a query dimension by dimension:
// a profile satisfies a query if every component reaches the requested
// level (minus Tolerance). Unset profiles and all-zero queries never match.
type RuleMatcher struct {
	opts RuleOptions
}

// NewRuleMatcher creates a RuleMatcher. Sociability-based referrals are
// enabled by default.
func NewRuleMatcher(optFns ...func(o *RuleOptions)) *RuleMatcher {
	opts := RuleOptions{UseSociability: true}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RuleMatcher{opts: opts}
}

// Matches implements core.Matcher.
func (m *RuleMatcher) Matches(_ context.Context, expertise, query core.Vector) (bool, error) {
	if err := query.Validate("query"); err != nil {
		return false, err
	}
	if err := expertise.Validate("expertise"); err != nil {
		return false, err
	}
	return m.covers(expertise, query), nil
}

// WorthAsking implements core.Matcher.
func (m *RuleMatcher) WorthAsking(ctx context.Context, link core.NeighborLink, query core.Vector) (bool, error) {
	ok, err := m.Matches(ctx, link.Expertise, query)
	if err != nil || ok || !m.opts.UseSociability {
		return ok, err
	}
	return m.Matches(ctx, link.Sociability, query)
}

func (m *RuleMatcher) covers(profile, query core.Vector) bool {
	if !profile.IsSet() || !query.IsSet() || query.AllZero() {
		return false
	}
	for i := range query {
		if profile[i] < query[i]-m.opts.Tolerance {
			return false
		}
	}
	return true
}
