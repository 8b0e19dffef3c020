package module

import (
	"context"
	"reflect"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bridge/errors"
)

// instantiateHost registers the "bridge" import module. Field accessors take
// the object handle and the field index in manifest order, inherited fields first.
func (p *wasmProgram) instantiateHost(ctx context.Context) error {
	_, err := p.rt.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().WithFunc(p.getI32).Export("get_i32").
		NewFunctionBuilder().WithFunc(p.setI32).Export("set_i32").
		NewFunctionBuilder().WithFunc(p.getI64).Export("get_i64").
		NewFunctionBuilder().WithFunc(p.setI64).Export("set_i64").
		NewFunctionBuilder().WithFunc(p.getF32).Export("get_f32").
		NewFunctionBuilder().WithFunc(p.setF32).Export("set_f32").
		NewFunctionBuilder().WithFunc(p.getF64).Export("get_f64").
		NewFunctionBuilder().WithFunc(p.setF64).Export("set_f64").
		NewFunctionBuilder().WithFunc(p.getComponent).Export("get_component_f32").
		NewFunctionBuilder().WithFunc(p.setComponent).Export("set_component_f32").
		NewFunctionBuilder().WithFunc(p.isEnabled).Export("is_enabled").
		NewFunctionBuilder().WithFunc(p.nodeName).Export("node_name").
		NewFunctionBuilder().WithFunc(p.log).Export("log").
		Instantiate(ctx)
	if err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInstantiation, err, "instantiate host module")
	}
	return nil
}

func (p *wasmProgram) field(h, f uint32) (reflect.Value, *Field) {
	slot, field, err := p.object(h).slot(f)
	if err != nil {
		panic(err)
	}
	return slot, field
}

func accessorMismatch(field *Field, accessor string) error {
	return errors.New(errors.PhaseHost, errors.KindTypeMismatch).
		Path(field.Name).
		Source(accessor).
		Target(field.Type.Expr).
		Build()
}

func (p *wasmProgram) getI32(_ context.Context, h, f uint32) int32 {
	slot, field := p.field(h, f)
	switch field.Type.Kind {
	case FieldBool:
		if slot.Bool() {
			return 1
		}
		return 0
	case FieldS8, FieldS16, FieldS32, FieldEnum:
		return int32(slot.Int())
	case FieldU8, FieldU16, FieldU32:
		return int32(uint32(slot.Uint()))
	case FieldRef:
		if o, ok := slot.Interface().(*Object); ok && o != nil && o.def.domain == p.domain {
			return int32(o.handle)
		}
		return 0
	}
	panic(accessorMismatch(field, "i32"))
}

func (p *wasmProgram) setI32(_ context.Context, h, f uint32, v int32) {
	slot, field := p.field(h, f)
	switch field.Type.Kind {
	case FieldBool:
		slot.SetBool(v != 0)
	case FieldS8:
		slot.SetInt(int64(int8(v)))
	case FieldS16:
		slot.SetInt(int64(int16(v)))
	case FieldS32, FieldEnum:
		slot.SetInt(int64(v))
	case FieldU8:
		slot.SetUint(uint64(uint8(v)))
	case FieldU16:
		slot.SetUint(uint64(uint16(v)))
	case FieldU32:
		slot.SetUint(uint64(uint32(v)))
	case FieldRef:
		if v == 0 {
			slot.Set(reflect.Zero(slot.Type()))
			return
		}
		slot.Set(reflect.ValueOf(p.object(uint32(v))))
	default:
		panic(accessorMismatch(field, "i32"))
	}
}

func (p *wasmProgram) getI64(_ context.Context, h, f uint32) int64 {
	slot, field := p.field(h, f)
	switch field.Type.Kind {
	case FieldS8, FieldS16, FieldS32, FieldS64, FieldEnum:
		return slot.Int()
	case FieldU8, FieldU16, FieldU32, FieldU64:
		return int64(slot.Uint())
	}
	panic(accessorMismatch(field, "i64"))
}

func (p *wasmProgram) setI64(_ context.Context, h, f uint32, v int64) {
	slot, field := p.field(h, f)
	switch field.Type.Kind {
	case FieldS64:
		slot.SetInt(v)
	case FieldU64:
		slot.SetUint(uint64(v))
	default:
		p.setI32(context.Background(), h, f, int32(v))
	}
}

func (p *wasmProgram) getF32(_ context.Context, h, f uint32) float32 {
	slot, field := p.field(h, f)
	switch field.Type.Kind {
	case FieldF32, FieldF64:
		return float32(slot.Float())
	}
	panic(accessorMismatch(field, "f32"))
}

func (p *wasmProgram) setF32(_ context.Context, h, f uint32, v float32) {
	slot, field := p.field(h, f)
	switch field.Type.Kind {
	case FieldF32, FieldF64:
		slot.SetFloat(float64(v))
	default:
		panic(accessorMismatch(field, "f32"))
	}
}

func (p *wasmProgram) getF64(_ context.Context, h, f uint32) float64 {
	slot, field := p.field(h, f)
	switch field.Type.Kind {
	case FieldF32, FieldF64:
		return slot.Float()
	}
	panic(accessorMismatch(field, "f64"))
}

func (p *wasmProgram) setF64(_ context.Context, h, f uint32, v float64) {
	slot, field := p.field(h, f)
	switch field.Type.Kind {
	case FieldF32, FieldF64:
		slot.SetFloat(v)
	default:
		panic(accessorMismatch(field, "f64"))
	}
}

func (p *wasmProgram) getComponent(_ context.Context, h, f, c uint32) float32 {
	slot, field := p.field(h, f)
	comps, ok := components(slot)
	if !ok {
		panic(accessorMismatch(field, "component"))
	}
	if int(c) >= len(comps) {
		panic(errors.OutOfBounds(errors.PhaseHost, []string{field.Name}, int(c), len(comps)))
	}
	return comps[c]
}

func (p *wasmProgram) setComponent(_ context.Context, h, f, c uint32, v float32) {
	slot, field := p.field(h, f)
	if !setComponent(slot, int(c), v) {
		panic(accessorMismatch(field, "component"))
	}
}

func (p *wasmProgram) isEnabled(_ context.Context, h uint32) int32 {
	if p.object(h).enabled {
		return 1
	}
	return 0
}

// nodeName copies the name of a lent node into guest memory and returns its
// full length, or -1 when the handle is not a node.
func (p *wasmProgram) nodeName(_ context.Context, m api.Module, h, ptr, capacity uint32) int32 {
	n := p.node(h)
	if n == nil {
		return -1
	}
	name := []byte(n.Name())
	if len(name) > int(capacity) {
		name = name[:capacity]
	}
	if mem := m.Memory(); mem == nil || !mem.Write(ptr, name) {
		panic(errors.OutOfBounds(errors.PhaseHost, []string{"node_name"}, int(ptr), int(capacity)))
	}
	return int32(len(n.Name()))
}
