package referralmesh

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/referralmesh/core"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// selfTestWorkers bounds how many agents are exercised concurrently.
const selfTestWorkers = 8

// SelfTestReport tallies the outcome of a self-test pass.
type SelfTestReport struct {
	Agents   int           `json:"agents"`
	Queries  int           `json:"queries"`
	Answered int           `json:"answered"`
	Refused  int           `json:"refused"`
	TimedOut int           `json:"timed_out"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

func (r *SelfTestReport) add(res core.Result) {
	r.Queries++
	switch res.Status {
	case core.StatusAnswered:
		r.Answered++
	case core.StatusTimedOut:
		r.TimedOut++
	default:
		r.Refused++
	}
}

// SelfTest exercises every registered agent: it asks the agent for its needs
// and then issues QueriesPerAgent generated queries against it, paced by
// RatePerSecond. Agents that cannot be reached are counted as failed; only a
// cancelled ctx aborts the pass.
func (m *Mesh) SelfTest(ctx context.Context) (SelfTestReport, error) {
	st := m.cfg.SelfTest
	limit := rate.Inf
	if st.RatePerSecond > 0 {
		limit = rate.Limit(st.RatePerSecond)
	}
	limiter := rate.NewLimiter(limit, 1)

	var (
		mu     sync.Mutex
		report SelfTestReport
	)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(selfTestWorkers)
	for _, name := range m.registry.Names() {
		g.Go(func() error {
			ref, ok := m.registry.Lookup(name)
			if !ok {
				return nil
			}
			mu.Lock()
			report.Agents++
			mu.Unlock()

			needs, err := m.asker.Needs(gctx, ref, st.Timeout)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				m.logger.Warn("self-test needs unavailable", "agent", name, "error", err.Error())
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return nil
			}

			for i := 0; i < st.QueriesPerAgent; i++ {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
				q := core.Query{ID: uuid.NewString(), Vector: m.generator.Generate(name, needs)}
				res, err := m.asker.Query(gctx, ref, "", q, st.Timeout)
				mu.Lock()
				if err != nil {
					report.Failed++
				} else {
					report.add(res)
				}
				mu.Unlock()
				m.logger.Debug("self-test query", "agent", name, "query_id", q.ID, "query", q.Vector.String(), "status", res.Status.String())
			}
			return nil
		})
	}
	err := g.Wait()

	report.Duration = time.Since(start)
	m.reportMu.Lock()
	m.lastReport = &report
	m.reportMu.Unlock()
	return report, err
}

// LastSelfTest returns the report of the most recent self-test pass.
func (m *Mesh) LastSelfTest() (SelfTestReport, bool) {
	m.reportMu.RLock()
	defer m.reportMu.RUnlock()
	if m.lastReport == nil {
		return SelfTestReport{}, false
	}
	return *m.lastReport, true
}
