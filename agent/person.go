package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/referralmesh/core"
	"github.com/hupe1980/referralmesh/logging"
	"github.com/hupe1980/referralmesh/matcher"
	"github.com/hupe1980/referralmesh/protocol"
)

// Options configures a PersonAgent.
type Options struct {
	// HopTimeout bounds every ask to a neighbor.
	HopTimeout time.Duration

	// MatchTimeout is the watchdog applied to each rule evaluation.
	MatchTimeout time.Duration

	// InboxSize is the capacity of the agent's message queue.
	InboxSize int

	// Matcher decides self matches and neighbor plausibility.
	Matcher core.Matcher

	// Directory resolves neighbor names to live agents. A nil directory
	// means the agent cannot refer queries.
	Directory core.Directory

	// Asker issues the timeout-bounded asks to neighbors.
	Asker *protocol.Asker

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// DefaultOptions returns the options used when none are overridden.
func DefaultOptions() Options {
	return Options{
		HopTimeout:   2 * time.Second,
		MatchTimeout: 250 * time.Millisecond,
		InboxSize:    64,
		Matcher:      matcher.NewRuleMatcher(),
		Logger:       logging.NoOpLogger{},
	}
}

// PersonAgent represents one person of the referral network. Its profile
// and neighbor list are copied at construction and never change.
type PersonAgent struct {
	BaseAgent

	expertise core.Vector
	needs     core.Vector
	neighbors []core.NeighborLink

	opts     Options
	asker    *protocol.Asker
	logger   logging.Logger
	hopLog   *logging.MeshLogger // nil unless Logger is a *MeshLogger
	referral sync.WaitGroup
}

// NewPersonAgent builds an agent from a node description. The agent does not
// process messages until Start is called.
func NewPersonAgent(spec core.NodeSpec, optFns ...func(o *Options)) *PersonAgent {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Matcher == nil {
		opts.Matcher = matcher.NewRuleMatcher()
	}
	asker := opts.Asker
	if asker == nil {
		asker = protocol.NewAsker(func(o *protocol.Options) { o.Logger = opts.Logger })
	}

	logger := logging.OrNoOp(opts.Logger)
	var hopLog *logging.MeshLogger
	if ml, ok := logger.(*logging.MeshLogger); ok {
		hopLog = ml.WithComponent("agent")
	}

	own := spec.Clone()
	return &PersonAgent{
		BaseAgent: NewBaseAgent(own.Name, opts.InboxSize),
		expertise: own.Expertise,
		needs:     own.Needs,
		neighbors: own.Neighbors,
		opts:      opts,
		asker:     asker,
		logger:    logger,
		hopLog:    hopLog,
	}
}

// Spawn creates and starts an agent.
func Spawn(spec core.NodeSpec, optFns ...func(o *Options)) (*PersonAgent, error) {
	p := NewPersonAgent(spec, optFns...)
	if err := p.Start(); err != nil {
		return nil, err
	}
	return p, nil
}

// Start launches the inbox loop.
func (p *PersonAgent) Start() error {
	if err := p.markRunning(); err != nil {
		return err
	}
	go p.run()
	return nil
}

// Wait blocks until the inbox loop and every referral started by this agent
// have finished. It only returns after Terminate.
func (p *PersonAgent) Wait() {
	<-p.stopped
	p.referral.Wait()
}

func (p *PersonAgent) run() {
	defer close(p.stopped)
	p.logger.Debug("agent started", "agent", p.name)
	for {
		select {
		case msg := <-p.inbox:
			p.handle(msg)
		case <-p.done:
			p.drainInbox()
			p.logger.Debug("agent terminated", "agent", p.name)
			return
		}
	}
}

// drainInbox answers messages that were queued before termination so that
// askers get a definite outcome instead of waiting for their deadline.
func (p *PersonAgent) drainInbox() {
	for {
		select {
		case msg := <-p.inbox:
			if q, ok := msg.(core.QueryMessage); ok {
				reply(q.Reply, core.Refused(core.ErrTerminated.Error()))
			}
		default:
			return
		}
	}
}

func (p *PersonAgent) handle(msg core.Message) {
	switch m := msg.(type) {
	case core.QueryMessage:
		p.handleQuery(m)
	case core.NeedsMessage:
		reply(m.Reply, p.needs.Clone())
	case core.StateMessage:
		reply(m.Reply, p.state())
	default:
		p.logger.Warn("unknown message", "agent", p.name, "type", fmt.Sprintf("%T", msg))
	}
}

func (p *PersonAgent) state() core.State {
	neighbors := make([]core.NeighborLink, len(p.neighbors))
	for i, n := range p.neighbors {
		neighbors[i] = n.Clone()
	}
	return core.State{
		Name:      p.name,
		Expertise: p.expertise.Clone(),
		Needs:     p.needs.Clone(),
		Neighbors: neighbors,
	}
}

// handleQuery runs on the inbox loop. Only the wait for neighbor replies is
// moved to a separate goroutine.
func (p *PersonAgent) handleQuery(m core.QueryMessage) {
	q := m.Query
	if err := q.Vector.Validate("query"); err != nil || !q.Vector.IsSet() {
		reason := "malformed query: empty vector"
		if err != nil {
			reason = "malformed query: " + err.Error()
		}
		reply(m.Reply, core.Refused(reason))
		return
	}

	ctx, cancel := p.queryContext(m.Ctx)

	if p.evaluate(ctx, q.ID, "", func(ctx context.Context) (bool, error) {
		return p.opts.Matcher.Matches(ctx, p.expertise, q.Vector)
	}) {
		cancel()
		p.logger.Debug("query matched", "agent", p.name, "query_id", q.ID)
		reply(m.Reply, core.Answered(core.Answer{
			Agent:     p.name,
			Expertise: p.expertise.Clone(),
			Path:      []string{p.name},
		}))
		return
	}

	candidates := p.selectNeighbors(ctx, q)
	if len(candidates) == 0 {
		cancel()
		reply(m.Reply, core.Refused("no plausible neighbor"))
		return
	}

	p.referral.Add(1)
	go func() {
		defer p.referral.Done()
		defer cancel()
		reply(m.Reply, p.refer(ctx, q, candidates))
	}()
}

// queryContext derives the context for one query: it ends when the asker
// stops waiting or when this agent is terminated.
func (p *PersonAgent) queryContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(p.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// selectNeighbors returns the links worth asking, excluding agents already
// visited along this path and the agent itself.
func (p *PersonAgent) selectNeighbors(ctx context.Context, q core.Query) []core.NeighborLink {
	var out []core.NeighborLink
	seen := make(map[string]struct{}, len(p.neighbors))
	for _, link := range p.neighbors {
		if link.Name == p.name || q.HasVisited(link.Name) {
			continue
		}
		if _, dup := seen[link.Name]; dup {
			continue
		}
		if p.evaluate(ctx, q.ID, link.Name, func(ctx context.Context) (bool, error) {
			return p.opts.Matcher.WorthAsking(ctx, link, q.Vector)
		}) {
			seen[link.Name] = struct{}{}
			out = append(out, link)
		}
	}
	return out
}

type decision struct {
	ok  bool
	err error
}

// evaluate runs one rule evaluation under the match watchdog. Errors,
// panics and timeouts are matcher faults and count as a non-match. An
// evaluation abandoned because the query itself ended is not a fault.
func (p *PersonAgent) evaluate(parent context.Context, queryID, target string, fn func(context.Context) (bool, error)) bool {
	ctx, cancel := context.WithTimeout(parent, p.opts.MatchTimeout)
	defer cancel()

	ch := make(chan decision, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- decision{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		ok, err := fn(ctx)
		ch <- decision{ok: ok, err: err}
	}()

	var d decision
	select {
	case d = <-ch:
	case <-ctx.Done():
		d = decision{err: fmt.Errorf("rule evaluation: %w", ctx.Err())}
	}
	if d.err != nil {
		if parent.Err() != nil {
			p.logger.Debug("rule evaluation abandoned", "agent", p.name, "query_id", queryID, "error", d.err.Error())
			return false
		}
		fault := &core.MatcherFault{Agent: p.name, Target: target, Err: d.err}
		p.logger.Warn("matcher fault", "agent", p.name, "query_id", queryID, "error", fault.Error())
		return false
	}
	return d.ok
}

// reply delivers v without ever blocking the agent. Reply channels are
// buffered by askers, so a full channel means the reply was already given.
func reply[T any](ch chan<- T, v T) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}
