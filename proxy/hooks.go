package proxy

import (
	"context"

	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
)

// ready initializes the proxy if needed and reports whether hooks forward.
func (p *Proxy) ready(ctx context.Context) bool {
	if p.destroyed {
		return false
	}
	_ = p.Init(ctx)
	return p.state == StateReady
}

func (p *Proxy) forward(ctx context.Context, hook string, call func(wasmbridge.Behavior) error) {
	if !p.ready(ctx) {
		return
	}
	if err := call(p.inst.Behavior); err != nil {
		Logger().Warn("hook failed",
			zap.String("hook", hook),
			zap.String("node", nodeName(p.node)),
			zap.String("type", p.name),
			zap.Error(err))
	}
}

// Awake, Start and the tick, trigger and collision hooks initialize the
// proxy on first use and forward to the instance while it is ready.
func (p *Proxy) Awake(ctx context.Context) {
	p.forward(ctx, "awake", func(b wasmbridge.Behavior) error { return b.Awake(ctx) })
}

// OnEnable sets the instance's enabled flag and forwards.
func (p *Proxy) OnEnable(ctx context.Context) {
	p.enabled = true
	if p.ready(ctx) {
		p.inst.Behavior.SetEnabled(true)
	}
	p.forward(ctx, "on_enable", func(b wasmbridge.Behavior) error { return b.OnEnable(ctx) })
}

// Start forwards Start.
func (p *Proxy) Start(ctx context.Context) {
	p.forward(ctx, "start", func(b wasmbridge.Behavior) error { return b.Start(ctx) })
}

// OnDisable clears the instance's enabled flag and forwards.
func (p *Proxy) OnDisable(ctx context.Context) {
	p.enabled = false
	if p.ready(ctx) {
		p.inst.Behavior.SetEnabled(false)
	}
	p.forward(ctx, "on_disable", func(b wasmbridge.Behavior) error { return b.OnDisable(ctx) })
}

// Update forwards the per-frame tick.
func (p *Proxy) Update(ctx context.Context) {
	p.forward(ctx, "update", func(b wasmbridge.Behavior) error { return b.Update(ctx) })
}

// LateUpdate forwards the tick that runs after Update.
func (p *Proxy) LateUpdate(ctx context.Context) {
	p.forward(ctx, "late_update", func(b wasmbridge.Behavior) error { return b.LateUpdate(ctx) })
}

// FixedUpdate forwards the fixed-step tick.
func (p *Proxy) FixedUpdate(ctx context.Context) {
	p.forward(ctx, "fixed_update", func(b wasmbridge.Behavior) error { return b.FixedUpdate(ctx) })
}

// OnTriggerEnter forwards with the other node.
func (p *Proxy) OnTriggerEnter(ctx context.Context, other wasmbridge.Node) {
	p.forward(ctx, "on_trigger_enter", func(b wasmbridge.Behavior) error { return b.OnTriggerEnter(ctx, other) })
}

// OnTriggerExit forwards with the other node.
func (p *Proxy) OnTriggerExit(ctx context.Context, other wasmbridge.Node) {
	p.forward(ctx, "on_trigger_exit", func(b wasmbridge.Behavior) error { return b.OnTriggerExit(ctx, other) })
}

// OnCollisionEnter forwards the collision.
func (p *Proxy) OnCollisionEnter(ctx context.Context, c wasmbridge.Collision) {
	p.forward(ctx, "on_collision_enter", func(b wasmbridge.Behavior) error { return b.OnCollisionEnter(ctx, c) })
}

// OnCollisionExit forwards the collision.
func (p *Proxy) OnCollisionExit(ctx context.Context, c wasmbridge.Collision) {
	p.forward(ctx, "on_collision_exit", func(b wasmbridge.Behavior) error { return b.OnCollisionExit(ctx, c) })
}

// OnDestroy forwards, releases the instance and detaches the proxy. A proxy
// that never initialized is detached without building its instance.
func (p *Proxy) OnDestroy(ctx context.Context) {
	if p.destroyed {
		return
	}
	if p.state == StateUnattached {
		p.descs = nil
		p.destroyed = true
		p.attacher.remove(p)
		return
	}
	p.forward(ctx, "on_destroy", func(b wasmbridge.Behavior) error { return b.OnDestroy(ctx) })
	if p.inst != nil {
		p.attacher.factory.Release(p.inst)
	}
	p.destroyed = true
	p.attacher.remove(p)
}
