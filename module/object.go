package module

import (
	"context"
	"reflect"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/meta"
	"github.com/wippyai/wasm-bridge/resource"
)

// Object is an instance of a module type. Its field values live on the host
// side in typed slots; guest code reads and writes them through the domain.
type Object struct {
	def      *TypeDef
	handle   resource.Handle
	slots    []reflect.Value
	node     wasmbridge.Node
	enabled  bool
	released bool
	adapter  *Adapter
}

func newObject(def *TypeDef) *Object {
	o := &Object{def: def, slots: make([]reflect.Value, len(def.Fields))}
	for i, f := range def.Fields {
		o.slots[i] = reflect.New(f.Type.Go).Elem()
	}
	o.adapter = &Adapter{obj: o}
	return o
}

// Type returns the object's type definition.
func (o *Object) Type() *TypeDef { return o.def }

// Handle returns the handle guest code uses for the object.
func (o *Object) Handle() resource.Handle { return o.handle }

// Node returns the host node the object is bound to.
func (o *Object) Node() wasmbridge.Node { return o.node }

// Enabled reports the enabled flag last set by the host.
func (o *Object) Enabled() bool { return o.enabled }

// Released reports whether the object was dropped from its domain.
func (o *Object) Released() bool { return o.released }

// Get returns the current value of a field.
func (o *Object) Get(name string) (any, bool) {
	f, ok := o.def.Field(name)
	if !ok {
		return nil, false
	}
	return o.slots[f.Index].Interface(), true
}

// Set assigns a field. The value must be assignable to the field's storage type.
func (o *Object) Set(name string, v any) error {
	f, ok := o.def.Field(name)
	if !ok {
		return errors.FieldUnknown(errors.PhaseHydrate, nil, o.def.Name, name)
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		o.slots[f.Index].Set(reflect.Zero(f.Type.Go))
		return nil
	}
	if !rv.Type().AssignableTo(f.Type.Go) {
		return errors.TypeMismatch(errors.PhaseHydrate, []string{name}, rv.Type().String(), f.Type.Expr)
	}
	o.slots[f.Index].Set(rv)
	return nil
}

// TypeDescriber implements meta.Typed.
func (o *Object) TypeDescriber() meta.Describer { return o.def }

// Adapter returns the object's view implementing the behavior capability set.
func (o *Object) Adapter() *Adapter { return o.adapter }

// Drop implements resource.Dropper.
func (o *Object) Drop() {
	if o.released {
		return
	}
	o.released = true
	o.def.domain.backend.release(o)
}

func (o *Object) slot(field uint32) (reflect.Value, *Field, error) {
	if int(field) >= len(o.slots) {
		return reflect.Value{}, nil, errors.OutOfBounds(errors.PhaseHost, []string{o.def.Name}, int(field), len(o.slots))
	}
	return o.slots[field], o.def.Fields[field], nil
}

// Adapter forwards host lifecycle calls to the module's hook functions.
type Adapter struct {
	obj *Object
}

var _ wasmbridge.Behavior = (*Adapter)(nil)

// Unwrap implements meta.Unwrapper.
func (a *Adapter) Unwrap() any { return a.obj }

// Object returns the adapted module object.
func (a *Adapter) Object() *Object { return a.obj }

func (a *Adapter) Awake(ctx context.Context) error     { return a.call(ctx, HookAwake) }
func (a *Adapter) OnEnable(ctx context.Context) error  { return a.call(ctx, HookOnEnable) }
func (a *Adapter) Start(ctx context.Context) error     { return a.call(ctx, HookStart) }
func (a *Adapter) OnDisable(ctx context.Context) error { return a.call(ctx, HookOnDisable) }
func (a *Adapter) Update(ctx context.Context) error    { return a.call(ctx, HookUpdate) }
func (a *Adapter) LateUpdate(ctx context.Context) error {
	return a.call(ctx, HookLateUpdate)
}
func (a *Adapter) FixedUpdate(ctx context.Context) error {
	return a.call(ctx, HookFixedUpdate)
}
func (a *Adapter) OnDestroy(ctx context.Context) error { return a.call(ctx, HookOnDestroy) }

func (a *Adapter) OnTriggerEnter(ctx context.Context, other wasmbridge.Node) error {
	return a.callWith(ctx, HookOnTriggerEnter, other)
}

func (a *Adapter) OnTriggerExit(ctx context.Context, other wasmbridge.Node) error {
	return a.callWith(ctx, HookOnTriggerExit, other)
}

func (a *Adapter) OnCollisionEnter(ctx context.Context, c wasmbridge.Collision) error {
	return a.callWith(ctx, HookOnCollisionEnter, c.Other)
}

func (a *Adapter) OnCollisionExit(ctx context.Context, c wasmbridge.Collision) error {
	return a.callWith(ctx, HookOnCollisionExit, c.Other)
}

func (a *Adapter) Bind(node wasmbridge.Node) { a.obj.node = node }

func (a *Adapter) SetEnabled(enabled bool) { a.obj.enabled = enabled }

func (a *Adapter) call(ctx context.Context, h Hook) error {
	return a.obj.def.domain.invoke(ctx, a.obj, h, 0)
}

// callWith lends the other node to guest code for the duration of the call.
func (a *Adapter) callWith(ctx context.Context, h Hook, other wasmbridge.Node) error {
	d := a.obj.def.domain
	var handle resource.Handle
	if other != nil {
		handle = d.objects.Insert(resource.KindNode, other)
		defer d.objects.Remove(handle)
	}
	return d.invoke(ctx, a.obj, h, handle)
}
