package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/referralmesh/core"
)

// Directory is a map backed core.Directory for tests.
type Directory struct {
	mu   sync.RWMutex
	refs map[string]core.Ref
}

// NewDirectory creates a directory holding refs.
func NewDirectory(refs ...core.Ref) *Directory {
	d := &Directory{refs: make(map[string]core.Ref)}
	for _, r := range refs {
		d.Add(r)
	}
	return d
}

// Add registers ref under its name.
func (d *Directory) Add(ref core.Ref) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refs[ref.Name()] = ref
}

// Lookup implements core.Directory.
func (d *Directory) Lookup(name string) (core.Ref, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.refs[name]
	return r, ok
}

// SilentRef accepts every message and never replies. It records the
// queries it received.
type SilentRef struct {
	name string
	once sync.Once
	done chan struct{}

	mu      sync.Mutex
	queries []core.Query
}

// NewSilentRef creates a SilentRef.
func NewSilentRef(name string) *SilentRef {
	return &SilentRef{name: name, done: make(chan struct{})}
}

// Name implements core.Ref.
func (s *SilentRef) Name() string { return s.name }

// Send implements core.Ref.
func (s *SilentRef) Send(_ context.Context, msg core.Message) error {
	select {
	case <-s.done:
		return core.ErrTerminated
	default:
	}
	if q, ok := msg.(core.QueryMessage); ok {
		s.mu.Lock()
		s.queries = append(s.queries, q.Query)
		s.mu.Unlock()
	}
	return nil
}

// Terminate implements core.Ref.
func (s *SilentRef) Terminate() { s.once.Do(func() { close(s.done) }) }

// Done implements core.Ref.
func (s *SilentRef) Done() <-chan struct{} { return s.done }

// Queries returns the queries received so far.
func (s *SilentRef) Queries() []core.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Query(nil), s.queries...)
}

// FuncMatcher adapts plain functions to core.Matcher.
type FuncMatcher struct {
	MatchesFn     func(ctx context.Context, expertise, query core.Vector) (bool, error)
	WorthAskingFn func(ctx context.Context, link core.NeighborLink, query core.Vector) (bool, error)
}

// Matches implements core.Matcher.
func (f FuncMatcher) Matches(ctx context.Context, expertise, query core.Vector) (bool, error) {
	if f.MatchesFn == nil {
		return false, nil
	}
	return f.MatchesFn(ctx, expertise, query)
}

// WorthAsking implements core.Matcher.
func (f FuncMatcher) WorthAsking(ctx context.Context, link core.NeighborLink, query core.Vector) (bool, error) {
	if f.WorthAskingFn == nil {
		return false, nil
	}
	return f.WorthAskingFn(ctx, link, query)
}
