// Package agent contains the person agent of the referral network and its
// supporting lifecycle plumbing. The package focuses on three concerns:
//
//  1. Actor lifecycle: one goroutine per agent draining a buffered inbox,
//     terminated at most once (BaseAgent)
//  2. Query handling: self-match against own expertise, neighbor selection
//     through the rule matcher, immediate needs / state replies (PersonAgent)
//  3. Referral: concurrent forwarding of a query to plausible neighbors, first
//     answer wins, each hop bounded by its own timeout
//
// Design principles:
//   - No shared mutable state – agents own immutable profiles and talk only
//     through messages carrying reply channels
//   - In-order processing – messages to one agent are handled one at a time;
//     referral waits run off the inbox loop so the agent keeps draining
//   - Fail-closed rules – a matcher error or a slow rule counts as a non-match
//   - Termination – the visited snapshot carried by each query guarantees that
//     propagation stops on cyclic graphs
package agent
