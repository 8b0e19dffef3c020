package proxy

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/hydrate"
	"github.com/wippyai/wasm-bridge/resolve"
)

// Batch collects proxies attached while it is open.
type Batch struct {
	depth   int
	pending []*Proxy
}

// Len returns the number of queued proxies.
func (b *Batch) Len() int { return len(b.pending) }

// Depth returns how many BeginBatch calls are still open.
func (b *Batch) Depth() int { return b.depth }

// Attacher creates proxies, batches their initialization and finds them by node.
type Attacher struct {
	resolver *resolve.Resolver
	factory  *resolve.Factory
	hydrator *hydrate.Hydrator

	batch  *Batch
	stack  []*Proxy
	byNode map[string][]*Proxy
	count  int
}

// NewAttacher creates an attacher.
func NewAttacher(r *resolve.Resolver, f *resolve.Factory, h *hydrate.Hydrator) *Attacher {
	return &Attacher{
		resolver: r,
		factory:  f,
		hydrator: h,
		byNode:   make(map[string][]*Proxy),
	}
}

// Attach adds a behavior of the named type to node. The proxy initializes on
// its first lifecycle call, or when the open batch closes.
func (a *Attacher) Attach(node wasmbridge.Node, name string, descs []hydrate.Descriptor) *Proxy {
	return a.attach(node, name, nil, descs)
}

// AttachHandle adds a behavior of an already resolved type, skipping name lookup.
func (a *Attacher) AttachHandle(node wasmbridge.Node, h *resolve.Handle, descs []hydrate.Descriptor) *Proxy {
	name := ""
	if h != nil {
		name = h.Name
	}
	return a.attach(node, name, h, descs)
}

func (a *Attacher) attach(node wasmbridge.Node, name string, h *resolve.Handle, descs []hydrate.Descriptor) *Proxy {
	p := &Proxy{
		id:       uuid.New(),
		attacher: a,
		node:     node,
		name:     name,
		handle:   h,
		descs:    descs,
		enabled:  true,
	}
	key := nodeKey(node)
	a.byNode[key] = append(a.byNode[key], p)
	a.count++
	if a.batch != nil {
		a.batch.pending = append(a.batch.pending, p)
	}
	Logger().Debug("behavior attached",
		zap.String("node", nodeName(node)),
		zap.String("type", name),
		zap.Bool("batched", a.batch != nil))
	return p
}

// BeginBatch opens a batch, or nests into the open one.
func (a *Attacher) BeginBatch() *Batch {
	if a.batch == nil {
		a.batch = &Batch{}
	}
	a.batch.depth++
	return a.batch
}

// EndBatch closes one level. Closing the outermost level initializes every
// queued proxy in attach order.
func (a *Attacher) EndBatch(ctx context.Context) error {
	if a.batch == nil {
		return errors.InvalidState(errors.PhaseLifecycle, "no open batch")
	}
	a.batch.depth--
	if a.batch.depth > 0 {
		return nil
	}

	b := a.batch
	a.batch = nil
	var ready, failed int
	for _, p := range b.pending {
		if p.destroyed {
			continue
		}
		if p.state == StateUnattached {
			_ = p.Init(ctx)
		}
		if p.state == StateReady {
			ready++
		} else {
			failed++
		}
	}
	b.pending = nil
	Logger().Debug("batch drained", zap.Int("ready", ready), zap.Int("failed", failed))
	return nil
}

// InBatch reports whether a batch is open.
func (a *Attacher) InBatch() bool { return a.batch != nil }

// Len returns the number of attached proxies.
func (a *Attacher) Len() int { return a.count }

// Proxies returns the proxies attached to node in attach order.
func (a *Attacher) Proxies(node wasmbridge.Node) []*Proxy {
	return append([]*Proxy(nil), a.byNode[nodeKey(node)]...)
}

// Lookup finds a proxy on node attached with the given type name without
// initializing anything. An empty name matches the first proxy.
func (a *Attacher) Lookup(node wasmbridge.Node, name string) (*Proxy, bool) {
	for _, p := range a.byNode[nodeKey(node)] {
		if name == "" || p.name == name {
			return p, true
		}
	}
	return nil, false
}

// Get returns the first ready proxy on node whose type is or derives from typeName.
func (a *Attacher) Get(ctx context.Context, node wasmbridge.Node, typeName string) *Proxy {
	for _, p := range a.byNode[nodeKey(node)] {
		if a.matches(ctx, p, typeName) {
			return p
		}
	}
	return nil
}

// GetAll returns every matching ready proxy on node.
func (a *Attacher) GetAll(ctx context.Context, node wasmbridge.Node, typeName string) []*Proxy {
	var out []*Proxy
	for _, p := range a.byNode[nodeKey(node)] {
		if a.matches(ctx, p, typeName) {
			out = append(out, p)
		}
	}
	return out
}

// GetInParent searches node and then its ancestors.
func (a *Attacher) GetInParent(ctx context.Context, node wasmbridge.Node, typeName string) *Proxy {
	for n := node; n != nil; n = n.Parent() {
		if p := a.Get(ctx, n, typeName); p != nil {
			return p
		}
	}
	return nil
}

// GetInChildren searches node and then its descendants depth first.
func (a *Attacher) GetInChildren(ctx context.Context, node wasmbridge.Node, typeName string) *Proxy {
	if node == nil {
		return nil
	}
	if p := a.Get(ctx, node, typeName); p != nil {
		return p
	}
	for _, c := range node.Children() {
		if p := a.GetInChildren(ctx, c, typeName); p != nil {
			return p
		}
	}
	return nil
}

func (a *Attacher) matches(ctx context.Context, p *Proxy, typeName string) bool {
	if p.destroyed {
		return false
	}
	if p.state == StateUnattached {
		_ = p.Init(ctx)
	}
	return p.state == StateReady && p.handle.IsA(typeName)
}

func (a *Attacher) remove(p *Proxy) {
	key := nodeKey(p.node)
	list := a.byNode[key]
	for i, q := range list {
		if q == p {
			a.byNode[key] = append(list[:i:i], list[i+1:]...)
			a.count--
			break
		}
	}
	if len(a.byNode[key]) == 0 {
		delete(a.byNode, key)
	}
}

func (a *Attacher) push(p *Proxy) { a.stack = append(a.stack, p) }
func (a *Attacher) pop()          { a.stack = a.stack[:len(a.stack)-1] }

// cycle reports a reference back to p while p is initializing, naming the
// chain of types from p to itself.
func (a *Attacher) cycle(p *Proxy) error {
	var names []string
	for i, q := range a.stack {
		if q == p {
			for _, r := range a.stack[i:] {
				names = append(names, r.name)
			}
			break
		}
	}
	names = append(names, p.name)
	return errors.New(errors.PhaseLifecycle, errors.KindCycle).
		Type(p.name).
		Detail("reference cycle %s", strings.Join(names, " -> ")).
		Build()
}

func nodeKey(n wasmbridge.Node) string {
	if n == nil {
		return ""
	}
	return n.ID()
}
