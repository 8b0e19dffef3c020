package wasmbridge

import "context"

// Node is the host object a behavior is attached to.
type Node interface {
	ID() string
	Name() string
	Parent() Node
	Children() []Node
}

// Collision describes a contact reported by the host physics step.
type Collision struct {
	Other   Node
	Point   Vector3
	Impulse Vector3
}

// Behavior is the capability set every bridged instance exposes to the host,
// whether it was built from a Go type or from a module type.
type Behavior interface {
	Awake(ctx context.Context) error
	OnEnable(ctx context.Context) error
	Start(ctx context.Context) error
	OnDisable(ctx context.Context) error
	Update(ctx context.Context) error
	LateUpdate(ctx context.Context) error
	FixedUpdate(ctx context.Context) error
	OnDestroy(ctx context.Context) error

	OnTriggerEnter(ctx context.Context, other Node) error
	OnTriggerExit(ctx context.Context, other Node) error
	OnCollisionEnter(ctx context.Context, c Collision) error
	OnCollisionExit(ctx context.Context, c Collision) error

	// Bind attaches the behavior to its host node.
	Bind(node Node)
	// SetEnabled mirrors the host's enabled flag.
	SetEnabled(enabled bool)
}

// Base implements every Behavior hook as a no-op. Native behaviors embed it
// and override the hooks they need.
type Base struct {
	node    Node
	enabled bool
}

func (b *Base) Awake(context.Context) error       { return nil }
func (b *Base) OnEnable(context.Context) error    { return nil }
func (b *Base) Start(context.Context) error       { return nil }
func (b *Base) OnDisable(context.Context) error   { return nil }
func (b *Base) Update(context.Context) error      { return nil }
func (b *Base) LateUpdate(context.Context) error  { return nil }
func (b *Base) FixedUpdate(context.Context) error { return nil }
func (b *Base) OnDestroy(context.Context) error   { return nil }

func (b *Base) OnTriggerEnter(context.Context, Node) error        { return nil }
func (b *Base) OnTriggerExit(context.Context, Node) error         { return nil }
func (b *Base) OnCollisionEnter(context.Context, Collision) error { return nil }
func (b *Base) OnCollisionExit(context.Context, Collision) error  { return nil }

func (b *Base) Bind(node Node)          { b.node = node }
func (b *Base) SetEnabled(enabled bool) { b.enabled = enabled }

// Node returns the host node the behavior is bound to.
func (b *Base) Node() Node { return b.node }

// IsEnabled reports the last enabled state set by the host.
func (b *Base) IsEnabled() bool { return b.enabled }

// Vector2 is a two-component float vector.
type Vector2 struct {
	X, Y float32
}

// Vector3 is a three-component float vector.
type Vector3 struct {
	X, Y, Z float32
}

// Vector4 is a four-component float vector.
type Vector4 struct {
	X, Y, Z, W float32
}

// Color is an RGBA color with float channels.
type Color struct {
	R, G, B, A float32
}
