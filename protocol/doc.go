// Package protocol implements the query resolution protocol between an asker
// (the boundary or another agent) and an agent.
//
// Every ask is issued with an explicit deadline. Expiry is observed by the
// caller, which reports a TimedOut outcome and cancels the context it handed
// to the callee; correctness never depends on the callee honoring that
// cancellation. No retries are performed: retry policy belongs to callers.
package protocol
