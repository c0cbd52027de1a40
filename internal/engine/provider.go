package engine

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrNoRuntime is returned by Resolve when no runtime has been installed.
var ErrNoRuntime = errors.New("engine: no runtime installed")

// Provider hands out the currently-active Runtime. Callers resolve once
// per incoming operation and keep that snapshot for the operation's whole
// lifetime; they must not cache it across operations, because Use or Wrap
// may swap the active implementations at any time.
type Provider struct {
	current atomic.Pointer[Runtime]
}

// NewProvider returns a Provider serving rt. rt may be nil; Resolve then
// fails until Use installs one.
func NewProvider(rt *Runtime) *Provider {
	p := &Provider{}
	if rt != nil {
		p.current.Store(rt)
	}
	return p
}

// Resolve returns the active Runtime snapshot for one operation.
func (p *Provider) Resolve(ctx context.Context) (*Runtime, error) {
	rt := p.current.Load()
	if rt == nil {
		return nil, ErrNoRuntime
	}
	return rt, nil
}

// Use replaces the active runtime. In-flight operations keep the snapshot
// they resolved; new operations observe rt.
func (p *Provider) Use(rt *Runtime) {
	p.current.Store(rt)
}

// Wrap derives a new active runtime from the current one, for layering
// instrumentation onto the engine at runtime. wrap receives a copy it may
// mutate freely.
func (p *Provider) Wrap(wrap func(rt Runtime) Runtime) {
	for {
		old := p.current.Load()
		if old == nil {
			return
		}
		next := wrap(*old)
		if p.current.CompareAndSwap(old, &next) {
			return
		}
	}
}
