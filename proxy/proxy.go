package proxy

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/hydrate"
	"github.com/wippyai/wasm-bridge/resolve"
)

// State is a proxy lifecycle state.
type State uint8

const (
	StateUnattached State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnattached:
		return "unattached"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Proxy forwards host lifecycle calls to one bridged instance.
type Proxy struct {
	id       uuid.UUID
	attacher *Attacher
	node     wasmbridge.Node
	name     string
	handle   *resolve.Handle
	descs    []hydrate.Descriptor

	state     State
	hydrated  bool
	destroyed bool
	enabled   bool
	inst      *resolve.Instance
	err       error
}

var _ hydrate.TypedReferent = (*Proxy)(nil)

// ID returns the proxy's unique id.
func (p *Proxy) ID() uuid.UUID { return p.id }

// Node returns the host node the proxy is attached to.
func (p *Proxy) Node() wasmbridge.Node { return p.node }

// TypeName returns the logical type the proxy was attached with.
func (p *Proxy) TypeName() string { return p.name }

// State returns the lifecycle state.
func (p *Proxy) State() State { return p.state }

// Err returns the reason a failed proxy was disabled.
func (p *Proxy) Err() error { return p.err }

// Handle returns the resolved handle, or nil before initialization.
func (p *Proxy) Handle() *resolve.Handle { return p.handle }

// Bridged returns the instance of a ready proxy, or nil.
func (p *Proxy) Bridged() *resolve.Instance {
	if p.state != StateReady {
		return nil
	}
	return p.inst
}

// IsA reports whether the resolved type is name or derives from it. It is
// false until the type resolves.
func (p *Proxy) IsA(name string) bool { return p.handle.IsA(name) }

// Destroyed reports whether OnDestroy has released the instance.
func (p *Proxy) Destroyed() bool { return p.destroyed }

// Init initializes the proxy once. Later calls return the first outcome.
func (p *Proxy) Init(ctx context.Context) error {
	switch p.state {
	case StateReady:
		return nil
	case StateFailed:
		return p.err
	case StateInitializing:
		return p.attacher.cycle(p)
	}

	if p.destroyed {
		return errors.InvalidState(errors.PhaseLifecycle, "behavior "+p.name+" was destroyed")
	}
	p.state = StateInitializing
	p.attacher.push(p)
	defer p.attacher.pop()

	if p.name == "" && p.handle == nil {
		return p.fail(errors.Resolution("", "empty type name"))
	}
	h, err := p.attacher.resolver.Resolve(resolve.Ref{Name: p.name, Handle: p.handle})
	if err != nil {
		return p.fail(err)
	}
	p.handle = h
	if p.name == "" {
		p.name = h.Name
	}

	inst, err := p.attacher.factory.Create(ctx, h)
	if err != nil {
		return p.fail(err)
	}
	p.inst = inst
	inst.Behavior.Bind(p.node)
	inst.Behavior.SetEnabled(p.enabled)

	p.hydrate(ctx)
	p.state = StateReady
	return nil
}

// hydrate applies the descriptors once and drops them.
func (p *Proxy) hydrate(ctx context.Context) {
	if p.hydrated {
		return
	}
	p.hydrated = true
	descs := p.descs
	p.descs = nil
	if len(descs) == 0 {
		return
	}
	p.attacher.hydrator.Hydrate(ctx, p.inst.Value, descs)
}

func (p *Proxy) fail(err error) error {
	p.state = StateFailed
	p.err = err
	p.descs = nil
	Logger().Warn("behavior disabled",
		zap.String("node", nodeName(p.node)),
		zap.String("type", p.name),
		zap.Stringer("proxy", p.id),
		zap.Error(err))
	return err
}

// Instance forces initialization and returns the instance value. It lets a
// proxy be used as a field reference of another proxy.
func (p *Proxy) Instance(ctx context.Context) (any, error) {
	if p.destroyed {
		return nil, errors.InvalidState(errors.PhaseLifecycle, "referenced behavior "+p.name+" was destroyed")
	}
	if err := p.Init(ctx); err != nil {
		if k, _ := errors.KindOf(err); k == errors.KindCycle {
			return nil, err
		}
		return nil, errors.New(errors.PhaseLifecycle, errors.KindInvalidState).
			Type(p.name).
			Cause(err).
			Detail("referenced behavior is disabled").
			Build()
	}
	return p.inst.Value, nil
}

func nodeName(n wasmbridge.Node) string {
	if n == nil {
		return ""
	}
	return n.Name()
}
