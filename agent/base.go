package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/referralmesh/core"
)

// BaseAgent bundles the shared actor lifecycle: identity, inbox, a lifetime
// context cancelled on termination and the done signal. Embed it in concrete
// agents and drive the inbox from a single goroutine. All exported methods
// are goroutine-safe.
type BaseAgent struct {
	name    string
	inbox   chan core.Message
	done    chan struct{}      // closed by Terminate
	stopped chan struct{}      // closed when the inbox loop has exited
	life    context.Context    // cancelled by Terminate
	cancel  context.CancelFunc // cancels life
	mu      sync.Mutex         // protects running
	running bool
	once    sync.Once
}

// NewBaseAgent constructs a BaseAgent with an inbox of the given capacity.
func NewBaseAgent(name string, inboxSize int) BaseAgent {
	life, cancel := context.WithCancel(context.Background())
	return BaseAgent{
		name:    name,
		inbox:   make(chan core.Message, max(inboxSize, 0)),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		life:    life,
		cancel:  cancel,
	}
}

// Name returns the registry name of this agent.
func (b *BaseAgent) Name() string { return b.name }

// Send enqueues msg, blocking while the inbox is full until ctx expires.
// It returns core.ErrTerminated once the agent has been terminated.
func (b *BaseAgent) Send(ctx context.Context, msg core.Message) error {
	select {
	case <-b.done:
		return core.ErrTerminated
	default:
	}
	select {
	case b.inbox <- msg:
		return nil
	case <-b.done:
		return core.ErrTerminated
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Terminate stops the agent. It never blocks and a second call is a no-op.
func (b *BaseAgent) Terminate() {
	b.once.Do(func() {
		close(b.done)
		b.cancel()
	})
}

// Done is closed once Terminate has been called.
func (b *BaseAgent) Done() <-chan struct{} { return b.done }

// Terminated reports whether Terminate has been called.
func (b *BaseAgent) Terminated() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// markRunning transitions the agent to running. Only the first call
// succeeds; an agent cannot be restarted after termination.
func (b *BaseAgent) markRunning() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return errors.New("agent is already running")
	}
	if b.Terminated() {
		return core.ErrTerminated
	}
	b.running = true
	return nil
}
