// Package callstest provides a recording, stubbable calls.Dispatcher for tests.
package callstest

import (
	"context"
	"sync"

	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/CATDOGME/domain-admin/internal/calls"
)

// Stub handles a call instead of the client. Returning handled=false passes the
// call through to Next.
type Stub func(ctx context.Context, params *calls.RequestParams) (handled bool, err error)

// Recorder records every RequestParams it sees, then runs the matching stub or
// passes the call to Next (DirectDispatcher when nil).
type Recorder struct {
	Next calls.Dispatcher

	mu    sync.Mutex
	calls []calls.RequestParams
	stubs map[string][]Stub
}

var _ calls.Dispatcher = &Recorder{}

func NewRecorder() *Recorder {
	return &Recorder{stubs: map[string][]Stub{}}
}

// OnOperation queues stubs for an operation; each stub answers one call and
// the last one keeps answering once the queue is drained.
func (r *Recorder) OnOperation(operation string, stubs ...Stub) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stubs == nil {
		r.stubs = map[string][]Stub{}
	}
	r.stubs[operation] = append(r.stubs[operation], stubs...)
	return r
}

// FailWith is a Stub that fails every call with err.
func FailWith(err error) Stub {
	return func(context.Context, *calls.RequestParams) (bool, error) { return true, err }
}

// PassThrough is a Stub that hands the call to Next.
func PassThrough() Stub {
	return func(context.Context, *calls.RequestParams) (bool, error) { return false, nil }
}

func (r *Recorder) Execute(ctx context.Context, call calls.Call, params *calls.RequestParams, c client.Client) error {
	r.mu.Lock()
	rec := *params
	rec.Body = append([]byte(nil), params.Body...)
	r.calls = append(r.calls, rec)
	var stub Stub
	if q := r.stubs[params.Operation]; len(q) > 0 {
		stub = q[0]
		if len(q) > 1 {
			r.stubs[params.Operation] = q[1:]
		}
	}
	r.mu.Unlock()

	if stub != nil {
		if handled, err := stub(ctx, params); handled {
			return err
		}
	}
	next := r.Next
	if next == nil {
		next = calls.DirectDispatcher{}
	}
	return next.Execute(ctx, call, params, c)
}

// Calls returns the recorded calls, optionally filtered by operation.
func (r *Recorder) Calls(operation ...string) []calls.RequestParams {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(operation) == 0 {
		return append([]calls.RequestParams(nil), r.calls...)
	}
	var out []calls.RequestParams
	for _, c := range r.calls {
		for _, op := range operation {
			if c.Operation == op {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.stubs = map[string][]Stub{}
}
