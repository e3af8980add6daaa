package core

import "context"

// Ref is the handle through which an agent is addressed. Every interaction
// with an agent is an asynchronous message; replies travel on channels the
// message carries.
//
// Implementations must:
//   - Process messages to one agent one at a time, in arrival order
//   - Return ErrTerminated from Send once the agent has stopped
//   - Treat a second Terminate as a no-op
type Ref interface {
	Name() string
	Send(ctx context.Context, msg Message) error
	Terminate()
	Done() <-chan struct{}
}

// Directory resolves agent names to live references.
type Directory interface {
	Lookup(name string) (Ref, bool)
}

// Message is implemented by every message an agent understands.
type Message interface{ message() }

// QueryMessage asks an agent to resolve a query. Ctx carries the caller's
// deadline; the callee may use it to abandon work the caller no longer waits
// for. Reply must be buffered so a late reply never blocks the agent.
type QueryMessage struct {
	Ctx   context.Context
	Query Query
	From  string
	Reply chan<- Result
}

// NeedsMessage asks an agent for its need vector.
type NeedsMessage struct {
	Reply chan<- Vector
}

// StateMessage asks an agent for a diagnostic dump.
type StateMessage struct {
	Reply chan<- State
}

func (QueryMessage) message() {}
func (NeedsMessage) message() {}
func (StateMessage) message() {}

// State is the diagnostic dump of one agent: its own profile plus the
// neighbor list with the estimates attached to each neighbor.
type State struct {
	Name      string         `json:"name"`
	Expertise Vector         `json:"expertise"`
	Needs     Vector         `json:"needs"`
	Neighbors []NeighborLink `json:"neighbors"`
}
