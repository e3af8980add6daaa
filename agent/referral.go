package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/referralmesh/core"
)

// refer forwards q to every candidate concurrently and returns the first
// answer. Each neighbor gets a fresh HopTimeout; a timed out neighbor counts
// as a refusal. Once an answer arrives the remaining asks are cancelled and
// their results discarded.
//
// The forwarded query's visited snapshot holds the path so far, this agent
// and every sibling being asked, so no branch revisits an agent already
// consulted for this query.
func (p *PersonAgent) refer(ctx context.Context, q core.Query, candidates []core.NeighborLink) core.Result {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	names := make([]string, 0, len(candidates)+1)
	names = append(names, p.name)
	for _, c := range candidates {
		names = append(names, c.Name)
	}
	fwd := q.Forward(names...)

	results := make(chan core.Result, len(candidates))
	var wg sync.WaitGroup
	for _, link := range candidates {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			results <- p.askNeighbor(ctx, target, fwd)
		}(link.Name)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var refused, timedOut int
	for res := range results {
		switch {
		case res.IsAnswer():
			ans := *res.Answer
			ans.Path = append([]string{p.name}, ans.Path...)
			return core.Answered(ans)
		case res.Status == core.StatusTimedOut:
			timedOut++
		default:
			refused++
		}
	}
	return core.Refused(fmt.Sprintf("no neighbor could answer (%d refused, %d timed out)", refused, timedOut))
}

func (p *PersonAgent) askNeighbor(ctx context.Context, target string, q core.Query) core.Result {
	if p.opts.Directory == nil {
		return core.Refused("no directory")
	}
	ref, ok := p.opts.Directory.Lookup(target)
	if !ok {
		p.logger.Debug("neighbor not registered", "agent", p.name, "neighbor", target)
		return core.Refused(fmt.Sprintf("%s: %v", target, core.ErrNotFound))
	}

	start := time.Now()
	res, err := p.asker.Query(ctx, ref, p.name, q, p.opts.HopTimeout)
	if err != nil {
		p.logger.Debug("neighbor unreachable", "agent", p.name, "neighbor", target, "error", err.Error())
		return core.Refused(err.Error())
	}
	if p.hopLog != nil {
		p.hopLog.WithQuery(q.ID).LogHop(p.name, target, res.Status.String(), time.Since(start))
	} else {
		p.logger.Debug("referral hop", "agent", p.name, "neighbor", target, "status", res.Status.String(), "duration", time.Since(start))
	}
	return res
}
