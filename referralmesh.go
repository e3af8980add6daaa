// Package referralmesh provides the boundary façade of a referral network:
// a population of person agents that resolve expertise queries by asking
// each other, answering themselves or referring to believed experts.
//
// Most applications interact with this package by:
//  1. Creating a Mesh via New() (optionally overriding configuration, the
//     rule matcher, the journal or the logger)
//  2. Loading a graph document with LoadGraph
//  3. Issuing queries with QueryAgent and inspecting agents with DumpState
//
// Every call that waits on an agent is bounded by a timeout from the
// configuration; an expired query yields a TimedOut result, not an error.
package referralmesh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/hupe1980/referralmesh/config"
	"github.com/hupe1980/referralmesh/core"
	"github.com/hupe1980/referralmesh/graph"
	"github.com/hupe1980/referralmesh/journal"
	"github.com/hupe1980/referralmesh/logging"
	"github.com/hupe1980/referralmesh/matcher"
	"github.com/hupe1980/referralmesh/model"
	"github.com/hupe1980/referralmesh/model/anthropic"
	"github.com/hupe1980/referralmesh/model/openai"
	"github.com/hupe1980/referralmesh/network"
	"github.com/hupe1980/referralmesh/protocol"
	"github.com/hupe1980/referralmesh/querygen"
)

// Options configures the Mesh instance.
type Options struct {
	// Config holds timeouts, self-test and matcher settings. Defaults to
	// config.Default().
	Config *config.Config

	// Matcher overrides the matcher selected by Config.Matcher.
	Matcher core.Matcher

	// Model is used by the model matcher instead of building a provider
	// client from Config.Matcher.
	Model model.Model

	// Journal records every message exchanged (defaults to an in-memory
	// store bounded by Config.JournalSize).
	Journal core.Journal

	// QueryGenerator produces self-test queries (defaults to a
	// querygen.RandomGenerator).
	QueryGenerator core.QueryGenerator

	// Logger (defaults to NoOp logger if nil). A *logging.MeshLogger also
	// receives structured query and load records.
	Logger logging.Logger
}

// Mesh is the boundary contract of a referral network.
type Mesh struct {
	cfg       *config.Config
	registry  *network.Registry
	asker     *protocol.Asker
	journal   core.Journal
	generator core.QueryGenerator
	logger    logging.Logger
	meshLog   *logging.MeshLogger

	// loadMu keeps Reset followed by Load atomic with respect to other
	// loads and resets.
	loadMu sync.Mutex

	reportMu   sync.RWMutex
	lastReport *SelfTestReport
}

// New creates a Mesh. It fails only when the configuration is invalid or
// the configured matcher cannot be built.
func New(optFns ...func(o *Options)) (*Mesh, error) {
	opts := Options{
		Config: config.Default(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.OrNoOp(opts.Logger)
	var meshLog *logging.MeshLogger
	if ml, ok := logger.(*logging.MeshLogger); ok {
		meshLog = ml.WithComponent("mesh")
	}

	m := opts.Matcher
	if m == nil {
		var err error
		if m, err = newMatcher(cfg, opts.Model); err != nil {
			return nil, err
		}
	}

	j := opts.Journal
	if j == nil {
		j = journal.NewInMemoryStore(cfg.JournalSize)
	}

	gen := opts.QueryGenerator
	if gen == nil {
		gen = querygen.NewRandomGenerator(func(o *querygen.Options) {
			o.Spread = cfg.SelfTest.Spread
			o.Seed = cfg.SelfTest.Seed
		})
	}

	asker := protocol.NewAsker(func(o *protocol.Options) {
		o.Journal = j
		o.Logger = logger
	})

	registry := network.New(func(o *network.Options) {
		o.Config = network.Config{
			HopTimeout:   cfg.HopTimeout,
			MatchTimeout: cfg.RuleTimeout(),
			InboxSize:    cfg.InboxSize,
		}
		o.Matcher = m
		o.Asker = asker
		o.Logger = logger
	})

	return &Mesh{
		cfg:       cfg,
		registry:  registry,
		asker:     asker,
		journal:   j,
		generator: gen,
		logger:    logger,
		meshLog:   meshLog,
	}, nil
}

func newMatcher(cfg *config.Config, m model.Model) (core.Matcher, error) {
	if cfg.Matcher.Kind != config.MatcherModel {
		return matcher.NewRuleMatcher(func(o *matcher.RuleOptions) {
			o.Tolerance = cfg.Tolerance
		}), nil
	}
	if m == nil {
		switch cfg.Matcher.Provider {
		case config.ProviderOpenAI:
			m = openai.NewModel(func(o *openai.Options) {
				o.APIKey = cfg.Matcher.APIKey
				if cfg.Matcher.Model != "" {
					o.Model = cfg.Matcher.Model
				}
			})
		default:
			m = anthropic.NewModel(func(o *anthropic.Options) {
				o.APIKey = cfg.Matcher.APIKey
				if cfg.Matcher.Model != "" {
					o.Model = sdk.Model(cfg.Matcher.Model)
				}
			})
		}
	}
	return matcher.NewModelMatcher(m, func(o *matcher.ModelOptions) {
		o.MaxCalls = cfg.Matcher.MaxCalls
		o.CacheSize = cfg.Matcher.CacheSize
	})
}

// Config returns the effective configuration.
func (m *Mesh) Config() config.Config { return *m.cfg }

// LoadGraph decodes a JSON or YAML graph document, replaces the current
// population with it and, if enabled, runs the self-test pass.
func (m *Mesh) LoadGraph(ctx context.Context, doc []byte) error {
	nodes, err := graph.Decode(doc, graph.FormatAuto)
	if err != nil {
		return err
	}
	return m.LoadNodes(ctx, nodes)
}

// LoadNodes resets the registry and spawns one agent per node. A graph
// without a "default" node is rejected with a *core.ValidationError wrapping
// core.ErrNoDefaultAgent; its agents stay loaded.
func (m *Mesh) LoadNodes(ctx context.Context, nodes []core.NodeSpec) error {
	start := time.Now()
	err := m.load(ctx, nodes)
	m.logLoad(len(nodes), time.Since(start), err)
	if err != nil {
		return err
	}

	if !m.cfg.SelfTest.Enabled {
		return nil
	}
	report, err := m.SelfTest(ctx)
	if err != nil {
		// The population is usable even if the self-test was cut short.
		m.logger.Warn("self-test aborted", "error", err.Error())
		return nil
	}
	m.logger.Info("self-test completed",
		"queries", report.Queries,
		"answered", report.Answered,
		"refused", report.Refused,
		"timed_out", report.TimedOut,
		"failed", report.Failed,
		"duration", report.Duration,
	)
	return nil
}

func (m *Mesh) load(ctx context.Context, nodes []core.NodeSpec) error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	if err := m.registry.Reset(); err != nil {
		return err
	}
	return m.registry.Load(ctx, nodes)
}

// Reset terminates every agent and empties the registry. It is idempotent.
func (m *Mesh) Reset() error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	return m.registry.Reset()
}

// Names lists the registered agents.
func (m *Mesh) Names() []string { return m.registry.Names() }

// QueryAgent asks the named agent to resolve v within QueryTimeout. The
// returned Result is answered, refused or timed out; the error return is
// reserved for invalid vectors and unknown or stopped agents.
func (m *Mesh) QueryAgent(ctx context.Context, name string, v core.Vector) (core.Result, error) {
	if !v.IsSet() {
		return core.Result{}, &core.ValidationError{Field: "query", Reason: "empty vector"}
	}
	if err := v.Validate("query"); err != nil {
		return core.Result{}, err
	}
	ref, ok := m.registry.Lookup(name)
	if !ok {
		return core.Result{}, fmt.Errorf("%s: %w", name, core.ErrNotFound)
	}

	q := core.Query{ID: uuid.NewString(), Vector: v.Clone()}
	start := time.Now()
	res, err := m.asker.Query(ctx, ref, "", q, m.cfg.QueryTimeout)
	m.logQuery(q.ID, name, res.Status, time.Since(start), err)
	if err != nil {
		if errors.Is(err, core.ErrTerminated) {
			return core.Result{}, fmt.Errorf("%s: %w", name, core.ErrNotFound)
		}
		return core.Result{}, err
	}
	res.QueryID = q.ID
	return res, nil
}

// DumpState returns the named agent's profile and neighbor beliefs within
// DumpTimeout.
func (m *Mesh) DumpState(ctx context.Context, name string) (core.State, error) {
	ref, ok := m.registry.Lookup(name)
	if !ok {
		return core.State{}, fmt.Errorf("%s: %w", name, core.ErrNotFound)
	}
	st, err := m.asker.State(ctx, ref, m.cfg.DumpTimeout)
	if err != nil {
		if errors.Is(err, core.ErrTerminated) {
			return core.State{}, fmt.Errorf("%s: %w", name, core.ErrNotFound)
		}
		return core.State{}, err
	}
	return st, nil
}

// Messages returns the journaled messages of one query in order.
func (m *Mesh) Messages(queryID string) []core.HopRecord { return m.journal.Records(queryID) }

// AllMessages returns every retained journal record.
func (m *Mesh) AllMessages() []core.HopRecord { return m.journal.All() }

// ClearMessages empties the journal.
func (m *Mesh) ClearMessages() { m.journal.Reset() }

func (m *Mesh) logQuery(queryID, agent string, status core.Status, dur time.Duration, err error) {
	if m.meshLog != nil {
		m.meshLog.WithQuery(queryID).LogQuery(agent, status.String(), dur, err)
		return
	}
	if err != nil {
		m.logger.Error("query failed", "query_id", queryID, "agent", agent, "error", err.Error())
		return
	}
	m.logger.Info("query completed", "query_id", queryID, "agent", agent, "status", status.String(), "duration", dur)
}

func (m *Mesh) logLoad(nodes int, dur time.Duration, err error) {
	if m.meshLog != nil {
		m.meshLog.LogLoad(nodes, dur, err)
		return
	}
	if err != nil {
		m.logger.Error("graph load failed", "node_count", nodes, "error", err.Error())
		return
	}
	m.logger.Info("graph loaded", "node_count", nodes, "duration", dur)
}
