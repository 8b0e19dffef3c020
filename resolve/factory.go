package resolve

import (
	"context"
	"reflect"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/module"
)

// Instance is a constructed bridged object.
type Instance struct {
	Handle *Handle
	// Value is the domain-native object: a *module.Object for module types,
	// a pointer to the Go struct otherwise.
	Value any
	// Behavior receives lifecycle calls. For module objects it is the
	// object's adapter.
	Behavior wasmbridge.Behavior
}

// Object returns the module object behind the instance, or nil for native values.
func (i *Instance) Object() *module.Object {
	obj, _ := i.Value.(*module.Object)
	return obj
}

// Factory constructs instances of resolved handles.
type Factory struct {
	resolver *Resolver
}

// NewFactory creates a factory that validates module handles against r.
func NewFactory(r *Resolver) *Factory {
	return &Factory{resolver: r}
}

// Create builds an instance of h. Module types run their module constructor;
// wrapper and native types are built as Go values.
func (f *Factory) Create(ctx context.Context, h *Handle, args ...any) (*Instance, error) {
	if h == nil {
		return nil, errors.InvalidInput(errors.PhaseConstruct, "nil handle")
	}
	if err := f.resolver.Check(h); err != nil {
		return nil, err
	}

	var (
		value any
		err   error
	)
	switch h.Domain {
	case DomainModule:
		value, err = f.createModule(ctx, h, args)
	case DomainWrapper, DomainNative:
		value, err = createNative(h, args)
	default:
		return nil, errors.Construction(errors.KindInvalidState, h.Name, nil, "handle has no domain")
	}
	if err != nil {
		return nil, err
	}

	inst := &Instance{Handle: h, Value: value}
	switch v := value.(type) {
	case *module.Object:
		inst.Behavior = v.Adapter()
	case wasmbridge.Behavior:
		inst.Behavior = v
	default:
		return nil, errors.Construction(errors.KindTypeMismatch, h.Name, nil,
			"%T does not implement the behavior capability set", value)
	}
	return inst, nil
}

// New resolves typeName and returns the value of a fresh instance. It lets
// the codec create module-typed members.
func (f *Factory) New(ctx context.Context, typeName string) (any, error) {
	h, err := f.resolver.ResolveType(typeName)
	if err != nil {
		return nil, err
	}
	inst, err := f.Create(ctx, h)
	if err != nil {
		return nil, err
	}
	return inst.Value, nil
}

// Release drops a module object from its domain. Native values are left to
// the garbage collector.
func (f *Factory) Release(inst *Instance) {
	if inst == nil {
		return
	}
	if obj := inst.Object(); obj != nil {
		if d := obj.Type().Domain(); d != nil {
			d.Release(obj)
		}
	}
}

func (f *Factory) createModule(ctx context.Context, h *Handle, args []any) (any, error) {
	d := h.Module.Domain()
	obj, err := d.Instantiate(ctx, h.Module, args...)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func createNative(h *Handle, args []any) (any, error) {
	e := h.native
	if e == nil {
		return nil, errors.Construction(errors.KindInvalidState, h.Name, nil, "handle carries no native type")
	}
	want := reflect.PointerTo(e.typ)

	if len(args) == 0 {
		return reflect.New(e.typ).Interface(), nil
	}
	if e.ctor == nil {
		return nil, errors.Construction(errors.KindNoConstructor, h.Name, nil,
			"no constructor accepting %d arguments", len(args))
	}

	v, err := e.ctor(args...)
	if err != nil {
		kind, ok := errors.KindOf(err)
		if !ok {
			kind = errors.KindTypeMismatch
		}
		return nil, errors.Construction(kind, h.Name, err, "constructor failed")
	}
	if v == nil || reflect.TypeOf(v) != want {
		return nil, errors.Construction(errors.KindTypeMismatch, h.Name, nil,
			"constructor returned %T, want %s", v, want)
	}
	return v, nil
}
