// Package core provides the foundational domain types and interfaces used by
// referralmesh. It defines the abstractions for:
//
//   - Profiles (fixed-length Vector values for expertise, needs, sociability)
//   - Graph descriptions (NodeSpec, NeighborLink)
//   - Queries and their outcomes (Query, Answer, Result)
//   - Agents as message-addressable references (Ref, Directory, messages)
//   - Pluggable collaborators: Matcher, Journal, QueryGenerator
//
// The package keeps implementation concerns (agent scheduling, registry
// synchronization, rule evaluation) out of scope, exposing small interfaces
// so that tests and alternative backends can be wired in.
package core
