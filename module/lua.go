package module

import (
	"context"
	"reflect"
	"sort"

	"github.com/Shopify/go-lua"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/coerce"
	"github.com/wippyai/wasm-bridge/resource"
)

const (
	luaClassesKey = "bridge.classes"
	luaObjectsKey = "bridge.objects"
)

var (
	vectorKeys = []string{"x", "y", "z", "w"}
	colorKeys  = []string{"r", "g", "b", "a"}
)

// luaProgram runs a Lua chunk that returns a table of classes keyed by type name.
// Module objects are Lua tables. Field slots are copied into the table before
// each call and read back afterwards; reference fields are read-only from Lua.
type luaProgram struct {
	domain *Domain
	l      *lua.State
}

func loadLua(d *Domain, image []byte) (backend, []TypeSpec, error) {
	l := lua.NewState()
	lua.OpenLibraries(l)
	p := &luaProgram{domain: d, l: l}

	l.NewTable()
	lua.SetFunctions(l, []lua.RegistryFunction{
		{Name: "log", Function: p.luaLog},
	}, 0)
	l.SetGlobal(HostModule)

	if err := lua.LoadBuffer(l, string(image), d.name, ""); err != nil {
		return nil, nil, errors.Load("parse lua chunk", err)
	}
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		return nil, nil, errors.Load("run lua chunk", err)
	}
	if l.TypeOf(-1) != lua.TypeTable {
		l.Pop(1)
		return nil, nil, errors.Load("lua chunk must return a table of classes", nil)
	}

	specs := p.readManifest(l.AbsIndex(-1))
	l.SetField(lua.RegistryIndex, luaClassesKey)

	l.NewTable()
	l.SetField(lua.RegistryIndex, luaObjectsKey)
	return p, specs, nil
}

func (p *luaProgram) luaLog(l *lua.State) int {
	msg := lua.CheckString(l, 1)
	Logger().Info(msg, zap.String("module", p.domain.name))
	return 0
}

func (p *luaProgram) readManifest(idx int) []TypeSpec {
	l := p.l
	var specs []TypeSpec
	l.PushNil()
	for l.Next(idx) {
		if l.TypeOf(-2) == lua.TypeString && l.TypeOf(-1) == lua.TypeTable {
			name, _ := l.ToString(-2)
			specs = append(specs, p.readSpec(name, l.AbsIndex(-1)))
		}
		l.Pop(1)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

func (p *luaProgram) readSpec(name string, idx int) TypeSpec {
	l := p.l
	spec := TypeSpec{Name: name}
	spec.Base = p.stringField(idx, "base")
	spec.Wraps = p.stringField(idx, "wraps")

	l.Field(idx, "fields")
	if l.TypeOf(-1) == lua.TypeTable {
		fields := l.AbsIndex(-1)
		for i := 1; ; i++ {
			l.RawGetInt(fields, i)
			if l.TypeOf(-1) != lua.TypeTable {
				l.Pop(1)
				break
			}
			entry := l.AbsIndex(-1)
			fs := FieldSpec{Name: p.stringField(entry, "name"), Type: p.stringField(entry, "type")}
			if fs.Name == "" {
				fs.Name = p.stringIndex(entry, 1)
				fs.Type = p.stringIndex(entry, 2)
			}
			spec.Fields = append(spec.Fields, fs)
			l.Pop(1)
		}
	}
	l.Pop(1)
	return spec
}

func (p *luaProgram) stringField(idx int, key string) string {
	p.l.Field(idx, key)
	defer p.l.Pop(1)
	if p.l.TypeOf(-1) != lua.TypeString {
		return ""
	}
	s, _ := p.l.ToString(-1)
	return s
}

func (p *luaProgram) stringIndex(idx, i int) string {
	p.l.RawGetInt(idx, i)
	defer p.l.Pop(1)
	if p.l.TypeOf(-1) != lua.TypeString {
		return ""
	}
	s, _ := p.l.ToString(-1)
	return s
}

// pushFunction pushes fn from the class of def or its nearest base.
// It reports false and leaves the stack unchanged when no class defines it.
func (p *luaProgram) pushFunction(def *TypeDef, fn string, inherit bool) bool {
	l := p.l
	l.Field(lua.RegistryIndex, luaClassesKey)
	classes := l.AbsIndex(-1)
	for t := def; t != nil; t = t.base {
		l.Field(classes, t.Name)
		if l.TypeOf(-1) == lua.TypeTable {
			l.Field(-1, fn)
			if l.IsFunction(-1) {
				l.Remove(-2)
				l.Remove(-2)
				return true
			}
			l.Pop(1)
		}
		l.Pop(1)
		if !inherit {
			break
		}
	}
	l.Pop(1)
	return false
}

// pushSelf pushes the table of obj.
func (p *luaProgram) pushSelf(obj *Object) {
	l := p.l
	l.Field(lua.RegistryIndex, luaObjectsKey)
	l.RawGetInt(-1, int(obj.handle))
	l.Remove(-2)
}

func (p *luaProgram) construct(ctx context.Context, obj *Object, args []any) error {
	l := p.l
	top := l.Top()
	defer l.SetTop(top)

	l.Field(lua.RegistryIndex, luaObjectsKey)
	l.NewTable()
	l.RawSetInt(-2, int(obj.handle))
	l.Pop(1)

	if !p.pushFunction(obj.def, ctorName, false) {
		if len(args) > 0 {
			return errors.Construction(errors.KindNoConstructor, obj.def.Name, nil,
				"no constructor accepting %d arguments", len(args))
		}
		p.syncIn(obj)
		return nil
	}

	p.syncIn(obj)
	p.pushSelf(obj)
	for i, a := range args {
		if !p.pushArg(a) {
			return errors.Construction(errors.KindTypeMismatch, obj.def.Name, nil,
				"argument %d (%T) cannot be passed to lua", i, a)
		}
	}
	if err := l.ProtectedCall(len(args)+1, 0, 0); err != nil {
		return errors.Construction(errors.KindInstantiation, obj.def.Name, err, "constructor failed")
	}
	p.syncOut(obj)
	return nil
}

func (p *luaProgram) call(ctx context.Context, obj *Object, h Hook, other resource.Handle) error {
	l := p.l
	top := l.Top()
	defer l.SetTop(top)

	if !p.pushFunction(obj.def, h.String(), true) {
		return nil
	}
	p.syncIn(obj)
	p.pushSelf(obj)
	nargs := 1
	if h.TakesNode() {
		if other == 0 {
			l.PushNil()
		} else {
			l.PushInteger(int(other))
		}
		nargs++
	}
	if err := l.ProtectedCall(nargs, 0, 0); err != nil {
		return errors.Wrap(errors.PhaseLifecycle, errors.KindInvalidState, err, h.String()+" failed")
	}
	p.syncOut(obj)
	return nil
}

func (p *luaProgram) hasHook(def *TypeDef, h Hook) bool {
	top := p.l.Top()
	defer p.l.SetTop(top)
	return p.pushFunction(def, h.String(), true)
}

func (p *luaProgram) release(obj *Object) {
	l := p.l
	top := l.Top()
	defer l.SetTop(top)
	l.Field(lua.RegistryIndex, luaObjectsKey)
	l.PushNil()
	l.RawSetInt(-2, int(obj.handle))
}

func (p *luaProgram) close(context.Context) error {
	p.l = nil
	return nil
}

func (p *luaProgram) pushArg(a any) bool {
	l := p.l
	switch x := a.(type) {
	case nil:
		l.PushNil()
	case *Object:
		p.pushSelf(x)
	case *Adapter:
		p.pushSelf(x.obj)
	case bool:
		l.PushBoolean(x)
	case string:
		l.PushString(x)
	default:
		f, ok := coerce.ToFloat64(a)
		if !ok {
			return false
		}
		l.PushNumber(f)
	}
	return true
}

// syncIn copies field slots into the object's table.
func (p *luaProgram) syncIn(obj *Object) {
	l := p.l
	p.pushSelf(obj)
	self := l.AbsIndex(-1)
	for i, f := range obj.def.Fields {
		p.pushValue(obj.slots[i], f.Type)
		l.SetField(self, f.Name)
	}
	l.PushBoolean(obj.enabled)
	l.SetField(self, "enabled")
	l.Pop(1)
}

// syncOut reads writable fields back from the object's table.
func (p *luaProgram) syncOut(obj *Object) {
	l := p.l
	p.pushSelf(obj)
	self := l.AbsIndex(-1)
	for i, f := range obj.def.Fields {
		if f.Type.Kind == FieldRef {
			continue
		}
		l.Field(self, f.Name)
		if v, ok := p.readValue(l.AbsIndex(-1), f.Type); ok {
			obj.slots[i].Set(v)
		} else if l.TypeOf(-1) != lua.TypeNil {
			Logger().Debug("lua field not read back",
				zap.String("type", obj.def.Name),
				zap.String("field", f.Name))
		}
		l.Pop(1)
	}
	l.Pop(1)
}

func (p *luaProgram) pushValue(v reflect.Value, ft *FieldType) {
	l := p.l
	switch ft.Kind {
	case FieldBool:
		l.PushBoolean(v.Bool())
	case FieldS8, FieldS16, FieldS32, FieldS64, FieldEnum:
		l.PushInteger(int(v.Int()))
	case FieldU8, FieldU16, FieldU32, FieldU64:
		l.PushNumber(float64(v.Uint()))
	case FieldF32, FieldF64:
		l.PushNumber(v.Float())
	case FieldString:
		l.PushString(v.String())
	case FieldVec2, FieldVec3, FieldVec4, FieldColor:
		comps, _ := components(v)
		keys := vectorKeys
		if ft.Kind == FieldColor {
			keys = colorKeys
		}
		l.NewTable()
		for i, c := range comps {
			l.PushNumber(float64(c))
			l.SetField(-2, keys[i])
		}
	case FieldList:
		l.NewTable()
		for i := 0; i < v.Len(); i++ {
			p.pushValue(v.Index(i), ft.Elem)
			l.RawSetInt(-2, i+1)
		}
	case FieldRef:
		if o, ok := v.Interface().(*Object); ok && o != nil && o.def.domain == p.domain && !o.released {
			p.pushSelf(o)
			return
		}
		if v.IsNil() {
			l.PushNil()
			return
		}
		l.PushUserData(v.Interface())
	default:
		l.PushNil()
	}
}

func (p *luaProgram) readValue(idx int, ft *FieldType) (reflect.Value, bool) {
	l := p.l
	switch ft.Kind {
	case FieldBool:
		if l.TypeOf(idx) != lua.TypeBoolean {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(l.ToBoolean(idx)), true
	case FieldString:
		if l.TypeOf(idx) != lua.TypeString {
			return reflect.Value{}, false
		}
		s, _ := l.ToString(idx)
		return reflect.ValueOf(s), true
	case FieldVec2, FieldVec3, FieldVec4, FieldColor:
		if l.TypeOf(idx) != lua.TypeTable {
			return reflect.Value{}, false
		}
		keys := vectorKeys
		if ft.Kind == FieldColor {
			keys = colorKeys
		}
		out := reflect.New(ft.Go).Elem()
		for i := 0; i < out.NumField(); i++ {
			l.Field(idx, keys[i])
			f, ok := l.ToNumber(-1)
			l.Pop(1)
			if ok {
				setComponent(out, i, float32(f))
			}
		}
		return out, true
	case FieldList:
		if l.TypeOf(idx) != lua.TypeTable || ft.Elem.Kind == FieldRef {
			return reflect.Value{}, false
		}
		out := reflect.MakeSlice(ft.Go, 0, 0)
		for i := 1; ; i++ {
			l.RawGetInt(idx, i)
			if l.TypeOf(-1) == lua.TypeNil {
				l.Pop(1)
				break
			}
			ev, ok := p.readValue(l.AbsIndex(-1), ft.Elem)
			l.Pop(1)
			if !ok {
				return reflect.Value{}, false
			}
			out = reflect.Append(out, ev)
		}
		return out, true
	case FieldRef:
		return reflect.Value{}, false
	default:
		if l.TypeOf(idx) != lua.TypeNumber {
			return reflect.Value{}, false
		}
		f, _ := l.ToNumber(idx)
		return coerce.Numeric(reflect.ValueOf(f), ft.Go)
	}
}
