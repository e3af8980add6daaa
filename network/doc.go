// Package network owns the live agent population of a referral mesh.
//
// The Registry maps agent names to running agents and is the only state
// shared between agents: every agent resolves neighbor names through it when
// it refers a query.
//
// # Lifecycle
//
// A graph is installed in two steps:
//
//  1. Reset terminates every registered agent (fire-and-forget) and empties
//     the mapping.
//  2. Load validates the node list, spawns one agent per node and registers
//     it under its name.
//
// Load requires a node named "default". Its absence is reported as a
// *core.ValidationError wrapping core.ErrNoDefaultAgent; the agents that were
// spawned stay registered so the caller can still inspect them.
//
// # Concurrency
//
// Reset and Load take the write lock; Lookup, Names and Len share the read
// lock. Agents never hold the lock while waiting on each other.
package network
