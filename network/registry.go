package network

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/referralmesh/agent"
	"github.com/hupe1980/referralmesh/core"
	"github.com/hupe1980/referralmesh/logging"
	"github.com/hupe1980/referralmesh/matcher"
	"github.com/hupe1980/referralmesh/protocol"
)

// Config defines the per-agent tuning applied to every spawned agent.
type Config struct {
	// HopTimeout bounds each ask an agent sends to a neighbor.
	HopTimeout time.Duration

	// MatchTimeout is the watchdog for a single rule evaluation.
	MatchTimeout time.Duration

	// InboxSize is the message queue capacity of each agent.
	InboxSize int
}

// DefaultConfig mirrors agent.DefaultOptions.
var DefaultConfig = Config{
	HopTimeout:   2 * time.Second,
	MatchTimeout: 250 * time.Millisecond,
	InboxSize:    64,
}

// Options configures a Registry using the functional options pattern.
//
// Example:
//
//	reg := network.New(func(o *network.Options) {
//	    o.Config.HopTimeout = time.Second
//	    o.Logger = logger
//	})
type Options struct {
	// Config is applied to every spawned agent.
	Config Config

	// Matcher is shared by all agents. Defaults to a RuleMatcher.
	Matcher core.Matcher

	// Asker is shared by all agents so every hop lands in the same journal.
	Asker *protocol.Asker

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Registry maps names to live agents. It implements core.Directory and is
// handed to every agent it spawns.
type Registry struct {
	config  Config
	matcher core.Matcher
	asker   *protocol.Asker
	logger  logging.Logger

	mu     sync.RWMutex
	agents map[string]core.Ref
}

// New creates an empty Registry.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Matcher == nil {
		opts.Matcher = matcher.NewRuleMatcher()
	}
	logger := logging.OrNoOp(opts.Logger)
	if opts.Asker == nil {
		opts.Asker = protocol.NewAsker(func(o *protocol.Options) { o.Logger = logger })
	}

	return &Registry{
		config:  opts.Config,
		matcher: opts.Matcher,
		asker:   opts.Asker,
		logger:  logger,
		agents:  make(map[string]core.Ref),
	}
}

// Reset sends Terminate to every registered agent without waiting for them
// to stop, then clears the mapping. It always succeeds and calling it on an
// empty registry is a no-op.
func (r *Registry) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range r.agents {
		ref.Terminate()
	}
	if n := len(r.agents); n > 0 {
		r.logger.Debug("registry reset", "terminated", n)
	}
	r.agents = make(map[string]core.Ref)
	return nil
}

// Load validates nodes and spawns one agent per node. Callers reset the
// registry first; a name that is already registered is rejected.
//
// Malformed nodes and duplicate names are rejected before any agent is
// spawned. A missing "default" node is only detected afterwards: the error
// wraps core.ErrNoDefaultAgent and the spawned agents remain registered.
func (r *Registry) Load(ctx context.Context, nodes []core.NodeSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if err := n.Validate(); err != nil {
			return err
		}
		if _, dup := seen[n.Name]; dup {
			return &core.ValidationError{Field: n.Name, Reason: "duplicate node name"}
		}
		if _, exists := r.agents[n.Name]; exists {
			return &core.ValidationError{Field: n.Name, Reason: "agent already registered"}
		}
		seen[n.Name] = struct{}{}
	}

	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("load interrupted: %w", err)
		}
		a, err := agent.Spawn(n, r.agentOptions)
		if err != nil {
			return fmt.Errorf("spawn %s: %w", n.Name, err)
		}
		r.agents[n.Name] = a
	}

	if _, ok := seen[core.DefaultAgentName]; !ok {
		return &core.ValidationError{Reason: core.ErrNoDefaultAgent.Error(), Err: core.ErrNoDefaultAgent}
	}
	return nil
}

func (r *Registry) agentOptions(o *agent.Options) {
	o.HopTimeout = r.config.HopTimeout
	o.MatchTimeout = r.config.MatchTimeout
	o.InboxSize = r.config.InboxSize
	o.Matcher = r.matcher
	o.Directory = r
	o.Asker = r.asker
	o.Logger = r.logger
}

// Lookup implements core.Directory.
func (r *Registry) Lookup(name string) (core.Ref, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.agents[name]
	return ref, ok
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
