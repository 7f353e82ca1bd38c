package calls

import (
	"context"
	"sync"

	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Call performs one request with the given client.
type Call func(ctx context.Context, c client.Client, params *RequestParams) error

// Dispatcher decides how a Call is executed. Production code runs it directly;
// tests record or stub it.
type Dispatcher interface {
	Execute(ctx context.Context, call Call, params *RequestParams, c client.Client) error
}

// DirectDispatcher runs every call against the client.
type DirectDispatcher struct{}

func (DirectDispatcher) Execute(ctx context.Context, call Call, params *RequestParams, c client.Client) error {
	return call(ctx, c, params)
}

var (
	dispatcherMu      sync.RWMutex
	currentDispatcher Dispatcher = DirectDispatcher{}
)

// CurrentDispatcher returns the process-wide dispatcher used by builders that
// were not given one explicitly.
func CurrentDispatcher() Dispatcher {
	dispatcherMu.RLock()
	defer dispatcherMu.RUnlock()
	return currentDispatcher
}

// Override is a process-wide dispatcher installation. Revert restores the
// dispatcher that was in place before it; calling Revert more than once is a no-op.
type Override struct {
	prev Dispatcher
	once sync.Once
}

// InstallDispatcher replaces the process-wide dispatcher until the returned
// Override is reverted:
//
//	defer calls.InstallDispatcher(recorder).Revert()
func InstallDispatcher(d Dispatcher) *Override {
	if d == nil {
		d = DirectDispatcher{}
	}
	dispatcherMu.Lock()
	defer dispatcherMu.Unlock()
	o := &Override{prev: currentDispatcher}
	currentDispatcher = d
	return o
}

func (o *Override) Revert() {
	o.once.Do(func() {
		dispatcherMu.Lock()
		defer dispatcherMu.Unlock()
		currentDispatcher = o.prev
	})
}
