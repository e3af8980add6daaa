package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/referralmesh/core"
	"github.com/hupe1980/referralmesh/internal/testutil"
	"github.com/hupe1980/referralmesh/logging"
	"github.com/hupe1980/referralmesh/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ core.Ref = (*PersonAgent)(nil)

var V = testutil.V

func spawnAll(t *testing.T, nodes []core.NodeSpec, optFns ...func(o *Options)) (*testutil.Directory, map[string]*PersonAgent) {
	t.Helper()
	dir := testutil.NewDirectory()
	agents := make(map[string]*PersonAgent, len(nodes))
	for _, n := range nodes {
		fns := append([]func(o *Options){func(o *Options) { o.Directory = dir }}, optFns...)
		a, err := Spawn(n, fns...)
		require.NoError(t, err)
		dir.Add(a)
		agents[n.Name] = a
	}
	t.Cleanup(func() {
		for _, a := range agents {
			a.Terminate()
		}
	})
	return dir, agents
}

func ask(t *testing.T, ref core.Ref, v core.Vector) core.Result {
	t.Helper()
	res, err := protocol.NewAsker().Query(context.Background(), ref, "", core.Query{ID: "q-test", Vector: v}, 3*time.Second)
	require.NoError(t, err)
	return res
}

func TestPersonAgent_SelfMatch(t *testing.T) {
	nodes := testutil.NewGraphBuilder().Node("default").Expertise(1, 0, 0, 0).Needs(0, 1, 0, 0).Build()
	_, agents := spawnAll(t, nodes)

	res := ask(t, agents["default"], V(1, 0, 0, 0))
	require.True(t, res.IsAnswer())
	assert.Equal(t, "default", res.Answer.Agent)
	assert.Equal(t, V(1, 0, 0, 0), res.Answer.Expertise)
	assert.Equal(t, []string{"default"}, res.Answer.Path)

	res = ask(t, agents["default"], V(0, 0, 0, 1))
	assert.Equal(t, core.StatusRefused, res.Status)
}

func TestPersonAgent_SelfMatchShortCircuits(t *testing.T) {
	silent := testutil.NewSilentRef("helper")
	nodes := testutil.NewGraphBuilder().
		Node("default").Expertise(1, 1, 1, 1).Neighbor("helper", V(1, 1, 1, 1), V(1, 1, 1, 1)).
		Build()
	dir, agents := spawnAll(t, nodes)
	dir.Add(silent)

	res := ask(t, agents["default"], V(1, 1, 1, 1))
	require.True(t, res.IsAnswer())
	assert.Equal(t, "default", res.Answer.Agent)
	assert.Empty(t, silent.Queries())
}

func TestPersonAgent_NoNeighborsRefusesImmediately(t *testing.T) {
	nodes := testutil.NewGraphBuilder().Node("default").Expertise(0, 0, 0, 0).Build()
	_, agents := spawnAll(t, nodes)

	start := time.Now()
	res := ask(t, agents["default"], V(1, 1, 1, 1))
	assert.Equal(t, core.StatusRefused, res.Status)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPersonAgent_ForwardsToHelper(t *testing.T) {
	nodes := testutil.NewGraphBuilder().
		Node("default").Expertise(0, 0, 0, 0).Neighbor("helper", V(1, 1, 1, 1), V(1, 1, 1, 1)).
		Node("helper").Expertise(1, 1, 1, 1).Needs(0, 0, 0, 0).
		Build()
	_, agents := spawnAll(t, nodes)

	res := ask(t, agents["default"], V(1, 1, 1, 1))
	require.True(t, res.IsAnswer())
	assert.Equal(t, "helper", res.Answer.Agent)
	assert.Equal(t, []string{"default", "helper"}, res.Answer.Path)
}

func TestPersonAgent_NeverAsksImplausibleNeighbor(t *testing.T) {
	silent := testutil.NewSilentRef("stranger")
	nodes := testutil.NewGraphBuilder().
		Node("default").Expertise(0, 0, 0, 0).Neighbor("stranger", V(0, 0, 0, 0), V(0, 0, 0, 0)).
		Build()
	dir, agents := spawnAll(t, nodes)
	dir.Add(silent)

	res := ask(t, agents["default"], V(1, 1, 1, 1))
	assert.Equal(t, core.StatusRefused, res.Status)
	assert.Empty(t, silent.Queries())
}

func TestPersonAgent_MalformedQuery(t *testing.T) {
	nodes := testutil.NewGraphBuilder().Node("default").Expertise(1, 1, 1, 1).Build()
	_, agents := spawnAll(t, nodes)

	res := ask(t, agents["default"], V(1, 1))
	assert.Equal(t, core.StatusRefused, res.Status)
	assert.Contains(t, res.Reason, "malformed query")

	res = ask(t, agents["default"], nil)
	assert.Equal(t, core.StatusRefused, res.Status)
	assert.Contains(t, res.Reason, "malformed query")
}

func TestPersonAgent_CycleTerminates(t *testing.T) {
	// Everyone believes the successor is an expert, nobody actually is.
	nodes := testutil.Ring(5, V(0, 0, 0, 0), V(1, 1, 1, 1))
	_, agents := spawnAll(t, nodes)

	res := ask(t, agents["default"], V(1, 1, 1, 1))
	assert.Equal(t, core.StatusRefused, res.Status)
}

func TestPersonAgent_CycleFindsExpertAcrossRing(t *testing.T) {
	nodes := testutil.Ring(4, V(0, 0, 0, 0), V(1, 1, 1, 1))
	nodes[3].Expertise = V(1, 1, 1, 1)
	_, agents := spawnAll(t, nodes)

	res := ask(t, agents["default"], V(1, 1, 1, 1))
	require.True(t, res.IsAnswer())
	assert.Equal(t, "a3", res.Answer.Agent)
	assert.Equal(t, []string{"default", "a1", "a2", "a3"}, res.Answer.Path)
}

func TestPersonAgent_VisitedSnapshotCarried(t *testing.T) {
	silent := testutil.NewSilentRef("helper")
	nodes := testutil.NewGraphBuilder().
		Node("default").Expertise(0, 0, 0, 0).
		Neighbor("helper", V(1, 1, 1, 1), nil).
		Neighbor("other", V(1, 1, 1, 1), nil).
		Build()
	dir, agents := spawnAll(t, nodes, func(o *Options) { o.HopTimeout = 50 * time.Millisecond })
	dir.Add(silent)

	res := ask(t, agents["default"], V(1, 1, 1, 1))
	assert.Equal(t, core.StatusRefused, res.Status)
	assert.Contains(t, res.Reason, "1 timed out")

	queries := silent.Queries()
	require.Len(t, queries, 1)
	assert.ElementsMatch(t, []string{"default", "helper", "other"}, queries[0].Visited)
}

func TestPersonAgent_SkipsVisitedNeighbors(t *testing.T) {
	silent := testutil.NewSilentRef("helper")
	nodes := testutil.NewGraphBuilder().
		Node("default").Expertise(0, 0, 0, 0).Neighbor("helper", V(1, 1, 1, 1), nil).
		Build()
	dir, agents := spawnAll(t, nodes)
	dir.Add(silent)

	q := core.Query{ID: "q", Vector: V(1, 1, 1, 1), Visited: []string{"helper"}}
	res, err := protocol.NewAsker().Query(context.Background(), agents["default"], "", q, time.Second)
	require.NoError(t, err)
	assert.Equal(t, core.StatusRefused, res.Status)
	assert.Empty(t, silent.Queries())
}

func TestPersonAgent_HopTimeoutCountsAsRefusal(t *testing.T) {
	nodes := testutil.NewGraphBuilder().
		Node("default").Expertise(0, 0, 0, 0).Neighbor("slow", V(1, 1, 1, 1), nil).
		Build()
	dir, agents := spawnAll(t, nodes, func(o *Options) { o.HopTimeout = 30 * time.Millisecond })
	dir.Add(testutil.NewSilentRef("slow"))

	res := ask(t, agents["default"], V(1, 1, 1, 1))
	assert.Equal(t, core.StatusRefused, res.Status)
}

func TestPersonAgent_FirstAnswerWins(t *testing.T) {
	nodes := testutil.NewGraphBuilder().
		Node("default").Expertise(0, 0, 0, 0).
		Neighbor("silent", V(1, 1, 1, 1), nil).
		Neighbor("helper", V(1, 1, 1, 1), nil).
		Node("helper").Expertise(1, 1, 1, 1).
		Build()
	dir, agents := spawnAll(t, nodes, func(o *Options) { o.HopTimeout = 5 * time.Second })
	dir.Add(testutil.NewSilentRef("silent"))

	start := time.Now()
	res := ask(t, agents["default"], V(1, 1, 1, 1))
	require.True(t, res.IsAnswer())
	assert.Equal(t, "helper", res.Answer.Agent)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPersonAgent_UnknownNeighborRefuses(t *testing.T) {
	nodes := testutil.NewGraphBuilder().
		Node("default").Expertise(0, 0, 0, 0).Neighbor("ghost", V(1, 1, 1, 1), nil).
		Build()
	_, agents := spawnAll(t, nodes)

	res := ask(t, agents["default"], V(1, 1, 1, 1))
	assert.Equal(t, core.StatusRefused, res.Status)
}

func TestPersonAgent_MatcherFaultFailsClosed(t *testing.T) {
	var calls atomic.Int32
	m := testutil.FuncMatcher{
		MatchesFn: func(_ context.Context, expertise, _ core.Vector) (bool, error) {
			calls.Add(1)
			if expertise.AllZero() {
				return false, errors.New("rule exploded")
			}
			return true, nil
		},
		WorthAskingFn: func(_ context.Context, link core.NeighborLink, _ core.Vector) (bool, error) {
			if link.Name == "broken" {
				panic("bad rule")
			}
			return true, nil
		},
	}
	nodes := testutil.NewGraphBuilder().
		Node("default").Expertise(0, 0, 0, 0).
		Neighbor("broken", nil, nil).
		Neighbor("helper", nil, nil).
		Node("helper").Expertise(1, 1, 1, 1).
		Build()
	_, agents := spawnAll(t, nodes, func(o *Options) { o.Matcher = m })

	res := ask(t, agents["default"], V(1, 1, 1, 1))
	require.True(t, res.IsAnswer())
	assert.Equal(t, "helper", res.Answer.Agent)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestPersonAgent_SlowMatcherWatchdog(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	m := testutil.FuncMatcher{
		MatchesFn: func(_ context.Context, _, _ core.Vector) (bool, error) {
			<-block
			return true, nil
		},
	}
	nodes := testutil.NewGraphBuilder().Node("default").Expertise(1, 1, 1, 1).Build()
	_, agents := spawnAll(t, nodes, func(o *Options) {
		o.Matcher = m
		o.MatchTimeout = 20 * time.Millisecond
	})

	res := ask(t, agents["default"], V(1, 1, 1, 1))
	assert.Equal(t, core.StatusRefused, res.Status)
}

func TestPersonAgent_NeedsAndState(t *testing.T) {
	nodes := testutil.NewGraphBuilder().
		Node("default").Expertise(1, 0, 0, 0).Needs(0, 1, 0, 0).Neighbor("helper", V(1, 1, 1, 1), V(0.5, 0.5, 0.5, 0.5)).
		Build()
	_, agents := spawnAll(t, nodes)
	asker := protocol.NewAsker()

	needs, err := asker.Needs(context.Background(), agents["default"], time.Second)
	require.NoError(t, err)
	assert.Equal(t, V(0, 1, 0, 0), needs)

	st, err := asker.State(context.Background(), agents["default"], time.Second)
	require.NoError(t, err)
	assert.Equal(t, "default", st.Name)
	require.Len(t, st.Neighbors, 1)
	assert.Equal(t, "helper", st.Neighbors[0].Name)
	assert.Equal(t, V(0.5, 0.5, 0.5, 0.5), st.Neighbors[0].Sociability)

	// Mutating the dump must not leak into the agent.
	st.Neighbors[0].Expertise[0] = 42
	st2, err := asker.State(context.Background(), agents["default"], time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1.0, st2.Neighbors[0].Expertise[0])
}

func TestPersonAgent_UnsetNeedsStayUnset(t *testing.T) {
	nodes := testutil.NewGraphBuilder().Node("default").Build()
	_, agents := spawnAll(t, nodes)

	needs, err := protocol.NewAsker().Needs(context.Background(), agents["default"], time.Second)
	require.NoError(t, err)
	assert.False(t, needs.IsSet())
}

func TestPersonAgent_TerminateIdempotent(t *testing.T) {
	a, err := Spawn(core.NodeSpec{Name: "default", Expertise: V(1, 1, 1, 1)})
	require.NoError(t, err)

	a.Terminate()
	a.Terminate()
	a.Wait()

	assert.True(t, a.Terminated())
	err = a.Send(context.Background(), core.NeedsMessage{Reply: make(chan core.Vector, 1)})
	assert.ErrorIs(t, err, core.ErrTerminated)

	_, err = protocol.NewAsker().Query(context.Background(), a, "", core.Query{Vector: V(1, 1, 1, 1)}, time.Second)
	assert.ErrorIs(t, err, core.ErrTerminated)

	assert.Error(t, a.Start())
}

func TestPersonAgent_StartTwice(t *testing.T) {
	a, err := Spawn(core.NodeSpec{Name: "default"})
	require.NoError(t, err)
	defer a.Terminate()

	assert.EqualError(t, a.Start(), "agent is already running")
}

func TestPersonAgent_TerminateCancelsReferral(t *testing.T) {
	nodes := testutil.NewGraphBuilder().
		Node("default").Expertise(0, 0, 0, 0).Neighbor("slow", V(1, 1, 1, 1), nil).
		Build()
	dir, agents := spawnAll(t, nodes, func(o *Options) { o.HopTimeout = time.Minute })
	slow := testutil.NewSilentRef("slow")
	dir.Add(slow)

	done := make(chan core.Result, 1)
	go func() {
		res, _ := protocol.NewAsker().Query(context.Background(), agents["default"], "", core.Query{Vector: V(1, 1, 1, 1)}, time.Minute)
		done <- res
	}()

	require.Eventually(t, func() bool { return len(slow.Queries()) == 1 }, time.Second, 10*time.Millisecond)
	agents["default"].Terminate()
	agents["default"].Wait()

	select {
	case res := <-done:
		assert.NotEqual(t, core.StatusAnswered, res.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("referral was not released after termination")
	}
}

// lockedBuffer lets agent goroutines log while the test reads.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) lines(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

type recordingLogger struct {
	mu   sync.Mutex
	msgs map[string]int
}

func (r *recordingLogger) record(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.msgs == nil {
		r.msgs = make(map[string]int)
	}
	r.msgs[msg]++
}

func (r *recordingLogger) count(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgs[msg]
}

func (r *recordingLogger) Debug(msg string, _ ...any) { r.record(msg) }
func (r *recordingLogger) Info(msg string, _ ...any) { r.record(msg) }
func (r *recordingLogger) Warn(msg string, _ ...any) { r.record(msg) }
func (r *recordingLogger) Error(msg string, _ ...any) { r.record(msg) }

func TestPersonAgent_LogsReferralHops(t *testing.T) {
	var out lockedBuffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "json", Output: &out})
	nodes := testutil.NewGraphBuilder().
		Node("default").Expertise(0, 0, 0, 0).Neighbor("helper", V(1, 1, 1, 1), nil).
		Node("helper").Expertise(1, 1, 1, 1).
		Build()
	_, agents := spawnAll(t, nodes, func(o *Options) { o.Logger = logger })

	res := ask(t, agents["default"], V(1, 1, 1, 1))
	require.True(t, res.IsAnswer())

	var hops []map[string]any
	for _, line := range out.lines(t) {
		if line["msg"] == "Referral hop" {
			hops = append(hops, line)
		}
	}
	require.Len(t, hops, 1)
	assert.Equal(t, "default", hops[0]["from"])
	assert.Equal(t, "helper", hops[0]["to"])
	assert.Equal(t, "answered", hops[0]["outcome"])
	assert.Equal(t, "agent", hops[0]["component"])
	assert.Equal(t, "q-test", hops[0]["query_id"])
}

func TestPersonAgent_AbandonedEvaluationIsNotAFault(t *testing.T) {
	rec := &recordingLogger{}
	p := NewPersonAgent(core.NodeSpec{Name: "default"}, func(o *Options) {
		o.Logger = rec
		o.MatchTimeout = time.Second
	})
	t.Cleanup(p.Terminate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := p.evaluate(ctx, "q-1", "helper", func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	})
	assert.False(t, ok)
	assert.Zero(t, rec.count("matcher fault"))
	assert.Equal(t, 1, rec.count("rule evaluation abandoned"))

	ok = p.evaluate(context.Background(), "q-2", "helper", func(context.Context) (bool, error) {
		return false, errors.New("rule exploded")
	})
	assert.False(t, ok)
	assert.Equal(t, 1, rec.count("matcher fault"))
}
