package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/referralmesh/core"
	"github.com/hupe1980/referralmesh/logging"
)

// ErrTimeout is returned by the non-query asks when the deadline expires.
var ErrTimeout = errors.New("ask timed out")

// Options configures an Asker.
type Options struct {
	// Journal receives one record per message exchanged (defaults to NoOpJournal).
	Journal core.Journal

	// Logger defaults to NoOpLogger.
	Logger logging.Logger

	// Now is the clock used for journal timestamps.
	Now func() time.Time
}

// Asker issues timeout-bounded asks. It is stateless apart from its
// collaborators and safe for concurrent use.
type Asker struct {
	journal core.Journal
	logger  logging.Logger
	now     func() time.Time
}

// NewAsker creates an Asker.
func NewAsker(optFns ...func(o *Options)) *Asker {
	opts := Options{
		Journal: core.NoOpJournal{},
		Logger:  logging.NoOpLogger{},
		Now:     time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Journal == nil {
		opts.Journal = core.NoOpJournal{}
	}
	return &Asker{journal: opts.Journal, logger: logging.OrNoOp(opts.Logger), now: opts.Now}
}

// Query sends q to ref and waits for the outcome. The returned Result is
// never pending:
//   - the callee's reply (answered or refused) if it arrives in time
//   - TimedOut if the deadline (or the parent context) expires first
//
// The error return is reserved for delivery failures, e.g. core.ErrTerminated.
func (a *Asker) Query(ctx context.Context, ref core.Ref, from string, q core.Query, timeout time.Duration) (core.Result, error) {
	askCtx, cancel := context.WithTimeout(ctx, timeout)
	// Cancelling on return tells the callee its work is no longer awaited.
	defer cancel()

	start := a.now()
	reply := make(chan core.Result, 1)
	a.record(q.ID, from, ref.Name(), core.HopAsk, q.Vector, "")

	if err := ref.Send(askCtx, core.QueryMessage{Ctx: askCtx, Query: q, From: from, Reply: reply}); err != nil {
		if askCtx.Err() != nil {
			return a.timedOut(q, from, ref.Name(), askCtx.Err()), nil
		}
		a.record(q.ID, ref.Name(), from, core.HopRefusal, q.Vector, err.Error())
		return core.Result{}, fmt.Errorf("ask %s: %w", ref.Name(), err)
	}

	select {
	case res := <-reply:
		kind := core.HopRefusal
		if res.IsAnswer() {
			kind = core.HopAnswer
		}
		a.record(q.ID, ref.Name(), from, kind, q.Vector, res.Reason)
		a.logger.Debug("ask completed", "from", from, "to", ref.Name(), "status", res.Status.String(), "duration", a.now().Sub(start))
		return res, nil
	case <-askCtx.Done():
		return a.timedOut(q, from, ref.Name(), askCtx.Err()), nil
	}
}

func (a *Asker) timedOut(q core.Query, from, to string, cause error) core.Result {
	reason := "deadline exceeded"
	if errors.Is(cause, context.Canceled) {
		reason = "canceled"
	}
	a.record(q.ID, to, from, core.HopTimeout, q.Vector, reason)
	a.logger.Debug("ask timed out", "from", from, "to", to, "reason", reason)
	return core.TimedOut(reason)
}

// Needs asks ref for its need vector.
func (a *Asker) Needs(ctx context.Context, ref core.Ref, timeout time.Duration) (core.Vector, error) {
	reply := make(chan core.Vector, 1)
	return awaitReply(ctx, ref, core.NeedsMessage{Reply: reply}, reply, timeout)
}

// State asks ref for its diagnostic dump.
func (a *Asker) State(ctx context.Context, ref core.Ref, timeout time.Duration) (core.State, error) {
	reply := make(chan core.State, 1)
	return awaitReply(ctx, ref, core.StateMessage{Reply: reply}, reply, timeout)
}

func awaitReply[T any](ctx context.Context, ref core.Ref, msg core.Message, reply <-chan T, timeout time.Duration) (T, error) {
	var zero T
	askCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := ref.Send(askCtx, msg); err != nil {
		if askCtx.Err() != nil {
			return zero, fmt.Errorf("ask %s: %w", ref.Name(), ErrTimeout)
		}
		return zero, fmt.Errorf("ask %s: %w", ref.Name(), err)
	}
	select {
	case v := <-reply:
		return v, nil
	case <-askCtx.Done():
		return zero, fmt.Errorf("ask %s: %w", ref.Name(), ErrTimeout)
	}
}

func (a *Asker) record(queryID, from, to string, kind core.HopKind, v core.Vector, reason string) {
	err := a.journal.Append(core.HopRecord{
		ID:      uuid.NewString(),
		QueryID: queryID,
		From:    from,
		To:      to,
		Kind:    kind,
		Vector:  v,
		Reason:  reason,
		At:      a.now(),
	})
	if err != nil {
		a.logger.Warn("journal append failed", "query_id", queryID, "error", err.Error())
	}
}
