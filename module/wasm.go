package module

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/codec"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/coerce"
	"github.com/wippyai/wasm-bridge/resource"
)

// ManifestSection is the custom section holding a wasm module's type manifest.
const ManifestSection = "bridge.types"

// HostModule is the import module name of the host functions.
const HostModule = "bridge"

type wasmProgram struct {
	domain *Domain
	rt     wazero.Runtime
	mod    api.Module

	mu    sync.Mutex
	funcs map[string]api.Function
}

func loadWasm(ctx context.Context, d *Domain, image []byte, cfg Config, cache wazero.CompilationCache) (backend, []TypeSpec, error) {
	rcfg := wazero.NewRuntimeConfig().
		WithCustomSections(true).
		WithCompilationCache(cache)
	if cfg.MemoryLimitPages > 0 {
		rcfg = rcfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rcfg)

	p := &wasmProgram{domain: d, rt: rt, funcs: make(map[string]api.Function)}
	specs, err := p.init(ctx, image)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, nil, err
	}
	return p, specs, nil
}

func (p *wasmProgram) init(ctx context.Context, image []byte) ([]TypeSpec, error) {
	compiled, err := p.rt.CompileModule(ctx, image)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}

	var manifest Manifest
	found := false
	for _, sec := range compiled.CustomSections() {
		if sec.Name() != ManifestSection {
			continue
		}
		if err := manifestCodec.Unmarshal(sec.Data(), &manifest); err != nil {
			return nil, errors.Load("decode type manifest", err)
		}
		found = true
		break
	}
	if !found {
		return nil, errors.Load("missing custom section "+ManifestSection, nil)
	}

	if err := p.instantiateHost(ctx); err != nil {
		return nil, err
	}

	mod, err := p.rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("module"))
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	p.mod = mod
	return manifest.Types, nil
}

var manifestCodec = codec.New(codec.WithSkipUnknown(true))

// export finds name on def or its nearest base that exports it.
func (p *wasmProgram) export(def *TypeDef, fn string, inherit bool) api.Function {
	key := exportName(def.Name, fn)
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.funcs[key]; ok {
		return f
	}

	var found api.Function
	for t := def; t != nil; t = t.base {
		if f := p.mod.ExportedFunction(exportName(t.Name, fn)); f != nil {
			found = f
			break
		}
		if !inherit {
			break
		}
	}
	p.funcs[key] = found
	return found
}

func (p *wasmProgram) construct(ctx context.Context, obj *Object, args []any) error {
	name := obj.def.Name
	fn := p.export(obj.def, ctorName, false)
	if fn == nil {
		if len(args) > 0 {
			return errors.Construction(errors.KindNoConstructor, name, nil,
				"no constructor accepting %d arguments", len(args))
		}
		return nil
	}

	params := fn.Definition().ParamTypes()
	if len(params) != len(args)+1 {
		return errors.Construction(errors.KindNoConstructor, name, nil,
			"constructor takes %d arguments, got %d", len(params)-1, len(args))
	}

	stack := make([]uint64, 0, len(params))
	stack = append(stack, uint64(obj.handle))
	for i, a := range args {
		v, ok := encodeArg(a, params[i+1])
		if !ok {
			return errors.Construction(errors.KindTypeMismatch, name, nil,
				"argument %d (%T) does not fit %s", i, a, api.ValueTypeName(params[i+1]))
		}
		stack = append(stack, v)
	}

	if _, err := fn.Call(ctx, stack...); err != nil {
		return errors.Construction(errors.KindInstantiation, name, err, "constructor trapped")
	}
	return nil
}

func encodeArg(a any, vt api.ValueType) (uint64, bool) {
	switch x := a.(type) {
	case *Object:
		return uint64(x.handle), vt == api.ValueTypeI32
	case *Adapter:
		return uint64(x.obj.handle), vt == api.ValueTypeI32
	case bool:
		if vt != api.ValueTypeI32 {
			return 0, false
		}
		if x {
			return 1, true
		}
		return 0, true
	}

	switch vt {
	case api.ValueTypeI32:
		if v, ok := coerce.ToInt32(a); ok {
			return api.EncodeI32(v), true
		}
		if v, ok := a.(uint32); ok {
			return api.EncodeU32(v), true
		}
	case api.ValueTypeI64:
		if v, ok := coerce.ToInt64(a); ok {
			return api.EncodeI64(v), true
		}
	case api.ValueTypeF32:
		if v, ok := coerce.ToFloat32(a); ok {
			return api.EncodeF32(v), true
		}
	case api.ValueTypeF64:
		if v, ok := coerce.ToFloat64(a); ok {
			return api.EncodeF64(v), true
		}
	}
	return 0, false
}

func (p *wasmProgram) call(ctx context.Context, obj *Object, h Hook, other resource.Handle) error {
	fn := p.export(obj.def, h.String(), true)
	if fn == nil {
		return nil
	}

	want := 1
	if h.TakesNode() {
		want = 2
	}
	if n := len(fn.Definition().ParamTypes()); n != want {
		return errors.New(errors.PhaseLifecycle, errors.KindTypeMismatch).
			Type(obj.def.Name).
			Detail("%s takes %d parameters, want %d", h, n, want).
			Build()
	}

	stack := []uint64{uint64(obj.handle)}
	if h.TakesNode() {
		stack = append(stack, uint64(other))
	}
	if _, err := fn.Call(ctx, stack...); err != nil {
		return errors.Wrap(errors.PhaseLifecycle, errors.KindInvalidState, err, h.String()+" trapped")
	}
	return nil
}

func (p *wasmProgram) hasHook(def *TypeDef, h Hook) bool {
	return p.export(def, h.String(), true) != nil
}

func (p *wasmProgram) release(*Object) {}

func (p *wasmProgram) close(ctx context.Context) error {
	return p.rt.Close(ctx)
}

// object resolves a guest handle to a live module object.
func (p *wasmProgram) object(h uint32) *Object {
	v, ok := p.domain.objects.GetKind(resource.Handle(h), resource.KindObject)
	if !ok {
		panic(errors.New(errors.PhaseHost, errors.KindNotFound).
			Detail("no module object for handle %d", h).
			Build())
	}
	return v.(*Object)
}

func (p *wasmProgram) node(h uint32) wasmbridge.Node {
	v, ok := p.domain.objects.GetKind(resource.Handle(h), resource.KindNode)
	if !ok {
		return nil
	}
	return v.(wasmbridge.Node)
}

func (p *wasmProgram) log(_ context.Context, m api.Module, ptr, size uint32) {
	mem := m.Memory()
	if mem == nil {
		panic(errors.Unsupported(errors.PhaseHost, "log called by a module without memory"))
	}
	data, ok := mem.Read(ptr, size)
	if !ok {
		panic(errors.OutOfBounds(errors.PhaseHost, []string{"log"}, int(ptr)+int(size), int(mem.Size())))
	}
	Logger().Info(string(data), zap.String("module", p.domain.name))
}
