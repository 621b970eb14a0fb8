// Package repositorytest provides Store decorators for tests.
package repositorytest

import (
	"context"
	"sync"

	"github.com/rpattn/socialql/internal/domain"
	"github.com/rpattn/socialql/internal/repository"
)

// Call is one recorded store invocation.
type Call struct {
	Method string
	Kind   domain.Kind
	ID     string
	Opts   repository.FindOptions
}

// Recorder wraps a Store, recording every call and optionally failing some.
type Recorder struct {
	next repository.Store

	mu    sync.Mutex
	calls []Call
	fail  map[domain.Kind]error
}

// NewRecorder wraps next
func NewRecorder(next repository.Store) *Recorder {
	return &Recorder{next: next, fail: make(map[domain.Kind]error)}
}

// FailKind makes every subsequent call for kind return err.
func (r *Recorder) FailKind(kind domain.Kind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[kind] = err
}

func (r *Recorder) FindByID(ctx context.Context, kind domain.Kind, id string) (domain.Entity, error) {
	if err := r.record(Call{Method: "FindByID", Kind: kind, ID: id}); err != nil {
		return nil, err
	}
	return r.next.FindByID(ctx, kind, id)
}

func (r *Recorder) FindMany(ctx context.Context, kind domain.Kind, opts repository.FindOptions) ([]domain.Entity, error) {
	if err := r.record(Call{Method: "FindMany", Kind: kind, Opts: opts}); err != nil {
		return nil, err
	}
	return r.next.FindMany(ctx, kind, opts)
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return r.fail[c.Kind]
}

// Calls returns a snapshot of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsFor returns the recorded calls for kind.
func (r *Recorder) CallsFor(kind domain.Kind) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets every recorded call.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
