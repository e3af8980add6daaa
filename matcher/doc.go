// Package matcher provides the rule matchers agents use to decide whether
// they can answer a query themselves and which neighbors are worth asking.
//
//   - RuleMatcher: deterministic per-dimension threshold rules
//   - ModelMatcher: asks a language model to judge the match, bounded by a
//     CallLimiter
package matcher
