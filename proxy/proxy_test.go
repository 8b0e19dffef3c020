package proxy

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/hydrate"
	"github.com/wippyai/wasm-bridge/internal/demo"
	"github.com/wippyai/wasm-bridge/module"
	"github.com/wippyai/wasm-bridge/resolve"
)

type node struct {
	id       string
	parent   *node
	children []*node
}

func newNode(id string, parent *node) *node {
	n := &node{id: id, parent: parent}
	if parent != nil {
		parent.children = append(parent.children, n)
	}
	return n
}

func (n *node) ID() string   { return n.id }
func (n *node) Name() string { return n.id }

func (n *node) Parent() wasmbridge.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *node) Children() []wasmbridge.Node {
	out := make([]wasmbridge.Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

type counter struct {
	value any
	calls int
}

func (c *counter) Instance(context.Context) (any, error) {
	c.calls++
	return c.value, nil
}

type env struct {
	attacher *Attacher
	loader   *module.Loader
	resolver *resolve.Resolver
}

func newEnv(t *testing.T, mode resolve.Mode) *env {
	t.Helper()
	ctx := context.Background()

	nt := resolve.NewNativeTable()
	if err := resolve.RegisterType[demo.Mover](nt, "demo.Mover", resolve.WithBases("Game.Movable")); err != nil {
		t.Fatal(err)
	}
	if err := resolve.RegisterType[demo.Health](nt, "demo.Health"); err != nil {
		t.Fatal(err)
	}

	l := module.NewLoader(module.Config{})
	t.Cleanup(func() {
		_ = l.Close(ctx)
		_ = l.CloseCache(ctx)
	})
	if _, err := l.LoadImage(ctx, "demo.wasm", demo.Wasm(), nil); err != nil {
		t.Fatal(err)
	}

	r := resolve.NewResolver(mode, nt, l)
	a := NewAttacher(r, resolve.NewFactory(r), hydrate.New(nil))
	return &env{attacher: a, loader: l, resolver: r}
}

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })
	return logs
}

func kindOf(err error) errors.Kind {
	k, _ := errors.KindOf(err)
	return k
}

func speed(v float32) hydrate.Descriptor {
	return hydrate.Scalar("Speed", hydrate.TagNumber32, hydrate.EncodeNumber32(v))
}

func TestAttach_InitOnFirstTick(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, resolve.ModeNative)
	n := newNode("n", nil)

	p := e.attacher.Attach(n, "demo.Mover", []hydrate.Descriptor{speed(3.5)})
	if p.State() != StateUnattached || p.Bridged() != nil {
		t.Fatalf("state after attach = %s", p.State())
	}

	p.Update(ctx)
	if p.State() != StateReady {
		t.Fatalf("state after update = %s (%v)", p.State(), p.Err())
	}
	m := p.Bridged().Value.(*demo.Mover)
	if m.Speed != 3.5 || m.Ticks != 1 {
		t.Errorf("mover = %+v", m)
	}
	if m.Node() != wasmbridge.Node(n) || !m.IsEnabled() {
		t.Error("instance not bound to its node")
	}
	if p.ID() == uuid.Nil {
		t.Error("proxy has no id")
	}
}

func TestInit_Idempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, resolve.ModeNative)
	ally := &demo.Mover{}
	ref := &counter{value: ally}

	p := e.attacher.Attach(newNode("n", nil), "demo.Health", []hydrate.Descriptor{
		hydrate.Scalar("Max", hydrate.TagInt32, hydrate.EncodeInt32(10)),
		hydrate.Reference("Ally", "demo.Mover", ref),
	})
	if err := p.Init(ctx); err != nil {
		t.Fatal(err)
	}
	first := p.Bridged()
	h := first.Value.(*demo.Health)
	h.Max = 99

	if err := p.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if p.Bridged() != first || h.Max != 99 || ref.calls != 1 {
		t.Errorf("second Init re-ran: Max %d, ref calls %d", h.Max, ref.calls)
	}
}

func TestBatch_OrderIndependence(t *testing.T) {
	for _, refFirst := range []bool{true, false} {
		name := "referrer first"
		if !refFirst {
			name = "referent first"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			e := newEnv(t, resolve.ModeNative)
			a := e.attacher
			na, nb := newNode("a", nil), newNode("b", nil)

			a.BeginBatch()
			var pa, pb *Proxy
			attachB := func() { pb = a.Attach(nb, "demo.Mover", []hydrate.Descriptor{speed(3.5)}) }
			if !refFirst {
				attachB()
			}
			// the reference is a lazily bound proxy, looked up at drain time
			ref := &lazyRef{}
			pa = a.Attach(na, "demo.Health", []hydrate.Descriptor{hydrate.Reference("Ally", "demo.Mover", ref)})
			if refFirst {
				attachB()
			}
			ref.p = pb

			if pa.State() != StateUnattached || pb.State() != StateUnattached {
				t.Fatal("proxies initialized inside the batch")
			}
			if err := a.EndBatch(ctx); err != nil {
				t.Fatal(err)
			}

			if pa.State() != StateReady || pb.State() != StateReady {
				t.Fatalf("states = %s, %s", pa.State(), pb.State())
			}
			h := pa.Bridged().Value.(*demo.Health)
			m := pb.Bridged().Value.(*demo.Mover)
			if h.Ally != m || h.Ally.Speed != 3.5 {
				t.Errorf("Ally = %+v, want hydrated %p", h.Ally, m)
			}
		})
	}
}

type lazyRef struct{ p *Proxy }

func (l *lazyRef) Instance(ctx context.Context) (any, error) { return l.p.Instance(ctx) }

func TestBatch_Module(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, resolve.ModeModule)
	a := e.attacher

	a.BeginBatch()
	target := newNode("target", nil)
	follower := a.Attach(newNode("follower", nil), "Game.Follower", nil)
	spinner := a.Attach(target, "Game.FastSpinner", []hydrate.Descriptor{
		hydrate.Scalar("speed", hydrate.TagNumber32, hydrate.EncodeNumber32(2)),
	})
	follower.descs = []hydrate.Descriptor{hydrate.Reference("target", "Game.Spinner", spinner)}
	if err := a.EndBatch(ctx); err != nil {
		t.Fatal(err)
	}

	obj := follower.Bridged().Object()
	got, _ := obj.Get("target")
	if got != spinner.Bridged().Value {
		t.Errorf("target = %v", got)
	}
	if v, _ := spinner.Bridged().Object().Get("speed"); v != float32(2) {
		t.Errorf("speed = %v", v)
	}
}

func TestBatch_Nesting(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, resolve.ModeNative)
	a := e.attacher

	if err := a.EndBatch(ctx); kindOf(err) != errors.KindInvalidState {
		t.Errorf("unbalanced EndBatch: %v", err)
	}

	outer := a.BeginBatch()
	inner := a.BeginBatch()
	if outer != inner || inner.Depth() != 2 {
		t.Fatalf("nested batch depth = %d", inner.Depth())
	}
	p := a.Attach(newNode("n", nil), "demo.Mover", nil)
	if inner.Len() != 1 {
		t.Errorf("queued = %d", inner.Len())
	}
	if err := a.EndBatch(ctx); err != nil {
		t.Fatal(err)
	}
	if p.State() != StateUnattached || !a.InBatch() {
		t.Fatal("inner EndBatch drained the queue")
	}
	if err := a.EndBatch(ctx); err != nil {
		t.Fatal(err)
	}
	if p.State() != StateReady || a.InBatch() {
		t.Errorf("state = %s, in batch %v", p.State(), a.InBatch())
	}
}

func TestProxy_Failures(t *testing.T) {
	tests := []struct {
		name  string
		mode  resolve.Mode
		typ   string
		phase errors.Phase
		kind  errors.Kind
	}{
		{"empty name", resolve.ModeNative, "", errors.PhaseResolve, errors.KindNotFound},
		{"unknown type", resolve.ModeNative, "Game.Nope", errors.PhaseResolve, errors.KindNotFound},
		{"native name in module mode", resolve.ModeModule, "demo.Mover", errors.PhaseResolve, errors.KindNotFound},
		{"constructor needs arguments", resolve.ModeModule, "Game.Spinner", errors.PhaseConstruct, errors.KindNoConstructor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			logs := observe(t)
			e := newEnv(t, tt.mode)
			ref := &counter{}
			p := e.attacher.Attach(newNode("n", nil), tt.typ, []hydrate.Descriptor{
				hydrate.Reference("x", "T", ref),
			})

			p.Awake(ctx)
			p.Update(ctx)
			if p.State() != StateFailed {
				t.Fatalf("state = %s", p.State())
			}
			if !errors.IsPhase(p.Err(), tt.phase) || kindOf(p.Err()) != tt.kind {
				t.Errorf("err = %v, want %s/%s", p.Err(), tt.phase, tt.kind)
			}
			if logs.FilterMessage("behavior disabled").Len() != 1 {
				t.Errorf("diagnostics = %v", logs.All())
			}
			if ref.calls != 0 || p.Bridged() != nil {
				t.Error("failed proxy hydrated or exposes an instance")
			}
			if _, err := p.Instance(ctx); kindOf(err) != errors.KindInvalidState {
				t.Errorf("Instance of failed proxy: %v", err)
			}
		})
	}
}

func TestProxy_Cycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, resolve.ModeNative)
	a := e.attacher

	a.BeginBatch()
	pa := a.Attach(newNode("a", nil), "demo.Health", nil)
	pb := a.Attach(newNode("b", nil), "demo.Health", nil)
	pa.descs = []hydrate.Descriptor{
		hydrate.Reference("Follow", "demo.Health", pb),
		hydrate.Scalar("Max", hydrate.TagInt32, hydrate.EncodeInt32(5)),
	}
	pb.descs = []hydrate.Descriptor{
		hydrate.Reference("Follow", "demo.Health", pa),
		hydrate.Scalar("Max", hydrate.TagInt32, hydrate.EncodeInt32(6)),
	}
	if err := a.EndBatch(ctx); err != nil {
		t.Fatal(err)
	}

	if pa.State() != StateReady || pb.State() != StateReady {
		t.Fatalf("states = %s, %s", pa.State(), pb.State())
	}
	ha := pa.Bridged().Value.(*demo.Health)
	hb := pb.Bridged().Value.(*demo.Health)
	if ha.Follow != hb {
		t.Errorf("a.Follow = %v", ha.Follow)
	}
	if hb.Follow != nil {
		t.Errorf("b.Follow = %v, want the cyclic field left unset", hb.Follow)
	}
	if ha.Max != 5 || hb.Max != 6 {
		t.Errorf("hydration stopped at the cycle: %d, %d", ha.Max, hb.Max)
	}

	err := a.cycle(pa)
	if kindOf(err) != errors.KindCycle {
		t.Errorf("cycle error = %v", err)
	}
}

func TestProxy_Hooks(t *testing.T) {
	ctx := context.Background()
	logs := observe(t)
	e := newEnv(t, resolve.ModeModule)
	n := newNode("n", nil)

	p := e.attacher.Attach(n, "Game.FastSpinner", []hydrate.Descriptor{
		hydrate.Scalar("speed", hydrate.TagNumber32, hydrate.EncodeNumber32(2)),
		hydrate.Scalar("boost", hydrate.TagNumber32, hydrate.EncodeNumber32(1.5)),
	})
	p.Awake(ctx)
	p.Update(ctx)
	p.OnTriggerEnter(ctx, newNode("other", nil))
	p.OnCollisionEnter(ctx, wasmbridge.Collision{})

	obj := p.Bridged().Object()
	if v, _ := obj.Get("angle"); v != float32(3) {
		t.Errorf("angle = %v", v)
	}
	if v, _ := obj.Get("turns"); v != int32(1) {
		t.Errorf("turns = %v", v)
	}
	if obj.Node() != wasmbridge.Node(n) {
		t.Error("object not bound to node")
	}

	p.OnDisable(ctx)
	if obj.Enabled() {
		t.Error("OnDisable did not clear the enabled flag")
	}
	p.OnEnable(ctx)
	if !obj.Enabled() {
		t.Error("OnEnable did not set the enabled flag")
	}

	p.OnDestroy(ctx)
	if !obj.Released() || !p.Destroyed() || len(e.attacher.Proxies(n)) != 0 {
		t.Error("OnDestroy did not release and detach")
	}
	p.Update(ctx)
	if v, _ := obj.Get("angle"); v != float32(3) {
		t.Error("destroyed proxy still forwards")
	}

	broken := e.attacher.Attach(n, "Game.Broken", nil)
	broken.Update(ctx)
	if broken.State() != StateReady {
		t.Fatalf("broken state = %s", broken.State())
	}
	if logs.FilterMessage("hook failed").Len() != 1 {
		t.Errorf("hook failure not logged: %v", logs.All())
	}
}

func TestAttacher_Lookups(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, resolve.ModeNative)
	a := e.attacher

	root := newNode("root", nil)
	child := newNode("child", root)
	leaf := newNode("leaf", child)

	mover := a.Attach(root, "demo.Mover", nil)
	health := a.Attach(leaf, "demo.Health", nil)
	second := a.Attach(leaf, "demo.Health", nil)

	if p, ok := a.Lookup(leaf, "demo.Health"); !ok || p != health || p.State() != StateUnattached {
		t.Error("Lookup must find without initializing")
	}

	if got := a.Get(ctx, root, "Game.Movable"); got != mover {
		t.Errorf("Get by base = %v", got)
	}
	if got := a.Get(ctx, root, "demo.Health"); got != nil {
		t.Errorf("Get of absent type = %v", got)
	}
	if got := a.GetAll(ctx, leaf, "demo.Health"); len(got) != 2 || got[1] != second {
		t.Errorf("GetAll = %v", got)
	}
	if got := a.GetInParent(ctx, leaf, "demo.Mover"); got != mover {
		t.Errorf("GetInParent = %v", got)
	}
	if got := a.GetInChildren(ctx, root, "demo.Health"); got != health {
		t.Errorf("GetInChildren = %v", got)
	}
	if got := a.GetInChildren(ctx, child, "demo.Mover"); got != nil {
		t.Errorf("GetInChildren looked upward: %v", got)
	}
	if a.Len() != 3 {
		t.Errorf("Len = %d", a.Len())
	}
}

func TestAttachHandle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, resolve.ModeModule)

	h, err := e.resolver.ResolveType("Game.FastSpinner")
	if err != nil {
		t.Fatal(err)
	}
	p := e.attacher.AttachHandle(newNode("n", nil), h, nil)
	if err := p.Init(ctx); err != nil || p.Handle() != h || p.TypeName() != "Game.FastSpinner" {
		t.Fatalf("fast path: %v", err)
	}

	if _, err := e.loader.LoadImage(ctx, "demo.wasm", demo.Wasm(), nil); err != nil {
		t.Fatal(err)
	}
	stale := e.attacher.AttachHandle(newNode("m", nil), h, nil)
	if err := stale.Init(ctx); kindOf(err) != errors.KindStale || stale.State() != StateFailed {
		t.Errorf("stale handle: %v, %s", err, stale.State())
	}
}

func TestReference_TypeChecked(t *testing.T) {
	ctx := context.Background()

	t.Run("declared type", func(t *testing.T) {
		e := newEnv(t, resolve.ModeNative)
		a := e.attacher
		other := a.Attach(newNode("b", nil), "demo.Health", nil)
		p := a.Attach(newNode("a", nil), "demo.Health", []hydrate.Descriptor{
			hydrate.Reference("Follow", "demo.Mover", other),
			hydrate.Scalar("Max", hydrate.TagInt32, hydrate.EncodeInt32(4)),
		})
		if err := p.Init(ctx); err != nil {
			t.Fatal(err)
		}
		h := p.Bridged().Value.(*demo.Health)
		if h.Follow != nil || h.Max != 4 {
			t.Errorf("Follow = %v, Max = %d", h.Follow, h.Max)
		}

		errs := hydrate.New(nil).Hydrate(ctx, &demo.Health{}, []hydrate.Descriptor{
			hydrate.Reference("Follow", "demo.Mover", other),
		})
		if len(errs) != 1 || kindOf(errs[0]) != errors.KindTypeMismatch {
			t.Errorf("errs = %v", errs)
		}
	})

	t.Run("base type", func(t *testing.T) {
		e := newEnv(t, resolve.ModeNative)
		a := e.attacher
		mover := a.Attach(newNode("b", nil), "demo.Mover", nil)
		p := a.Attach(newNode("a", nil), "demo.Health", []hydrate.Descriptor{
			hydrate.Reference("Follow", "Game.Movable", mover),
		})
		if err := p.Init(ctx); err != nil {
			t.Fatal(err)
		}
		if got := p.Bridged().Value.(*demo.Health).Follow; got != mover.Bridged().Value {
			t.Errorf("Follow = %v", got)
		}
	})

	t.Run("module member type", func(t *testing.T) {
		e := newEnv(t, resolve.ModeModule)
		a := e.attacher
		other := a.Attach(newNode("b", nil), "Game.Follower", nil)
		p := a.Attach(newNode("a", nil), "Game.Follower", []hydrate.Descriptor{
			hydrate.Reference("target", "Game.Follower", other),
		})
		if err := p.Init(ctx); err != nil {
			t.Fatal(err)
		}
		if got, _ := p.Bridged().Object().Get("target"); got != nil {
			t.Errorf("target = %v, want a Game.Spinner only", got)
		}
	})
}

func TestOnDestroy_NeverInitialized(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, resolve.ModeNative)
	a := e.attacher
	ref := &counter{value: &demo.Mover{}}

	a.BeginBatch()
	p := a.Attach(newNode("n", nil), "demo.Health", []hydrate.Descriptor{
		hydrate.Reference("Ally", "demo.Mover", ref),
	})
	p.OnDestroy(ctx)
	if err := a.EndBatch(ctx); err != nil {
		t.Fatal(err)
	}

	if !p.Destroyed() || p.State() != StateUnattached || p.Handle() != nil {
		t.Errorf("destroyed proxy built: state %s", p.State())
	}
	if ref.calls != 0 || a.Len() != 0 {
		t.Errorf("ref calls %d, attached %d", ref.calls, a.Len())
	}

	p.Update(ctx)
	if p.State() != StateUnattached {
		t.Errorf("hook after destroy initialized: %s", p.State())
	}
	if _, err := p.Instance(ctx); kindOf(err) != errors.KindInvalidState {
		t.Errorf("Instance of destroyed proxy: %v", err)
	}
}
