package codec

import (
	"context"
	"encoding"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/coerce"
	"github.com/wippyai/wasm-bridge/meta"
)

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

type decoder struct {
	codec *Codec
	ctx   context.Context
	path  []string
}

func (d *decoder) push(seg string) { d.path = append(d.path, seg) }
func (d *decoder) pop()            { d.path = d.path[:len(d.path)-1] }

func (d *decoder) where() []string {
	return append([]string(nil), d.path...)
}

// leaf returns the representation of a JSON leaf: string, bool, int for
// integers that fit in 32 bits, int64 for wider integers, float64 otherwise.
func leaf(r gjson.Result) any {
	switch r.Type {
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.String:
		return r.Str
	case gjson.Number:
		if !strings.ContainsAny(r.Raw, ".eE") {
			if i, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
				if i >= math.MinInt32 && i <= math.MaxInt32 {
					return int(i)
				}
				return i
			}
		}
		return r.Num
	}
	return nil
}

func (d *decoder) depthExceeded() error {
	return errors.DepthExceeded(errors.PhaseDecode, d.where(), d.codec.maxDepth)
}

// decode assigns r to the settable value v.
func (d *decoder) decode(r gjson.Result, v reflect.Value, depth int) error {
	if depth > d.codec.maxDepth {
		return d.depthExceeded()
	}
	t := v.Type()

	if t == dataType {
		data, err := d.data(r, depth)
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(data))
		return nil
	}

	if r.Type == gjson.Null {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
			v.Set(reflect.Zero(t))
			return nil
		}
		return errors.Unconvertible(d.where(), nil, "null", t.String())
	}

	if r.IsObject() && (t.Kind() == reflect.Interface || t.Kind() == reflect.Pointer) && !v.IsNil() {
		if cur := v.Interface(); isInstance(cur) {
			return d.decodeInstance(r, cur, depth)
		}
	}

	if t.Kind() == reflect.Pointer {
		if !r.IsObject() && !r.IsArray() {
			if ok, err := d.decodeLeafConverted(r, v); ok || err != nil {
				return err
			}
		}
		if v.IsNil() {
			v.Set(reflect.New(t.Elem()))
		}
		return d.decode(r, v.Elem(), depth)
	}

	switch {
	case r.IsObject():
		return d.decodeObject(r, v, depth)
	case r.IsArray():
		return d.decodeArray(r, v, depth)
	}
	return d.decodeLeaf(r, v)
}

// decodeLeafConverted handles leaves whose target has a registered importer,
// which covers pointer targets such as *big.Int registered by callers.
func (d *decoder) decodeLeafConverted(r gjson.Result, v reflect.Value) (bool, error) {
	src := leaf(r)
	fn, ok := d.codec.importer(reflect.TypeOf(src), v.Type())
	if !ok {
		return false, nil
	}
	return true, d.assignImported(fn, src, v)
}

func (d *decoder) decodeLeaf(r gjson.Result, v reflect.Value) error {
	src := leaf(r)
	sv := reflect.ValueOf(src)
	st, t := sv.Type(), v.Type()

	if st.AssignableTo(t) {
		v.Set(sv)
		return nil
	}

	if fn, ok := d.codec.importer(st, t); ok {
		return d.assignImported(fn, src, v)
	}

	if meta.IsEnum(t) {
		if nv, ok := coerce.Numeric(sv, t); ok {
			v.Set(nv)
			return nil
		}
	}

	if s, ok := src.(string); ok && reflect.PointerTo(t).Implements(textUnmarshalerType) {
		p := reflect.New(t)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
				Path(d.where()...).
				Source(st.String()).
				Target(t.String()).
				Value(src).
				Cause(err).
				Build()
		}
		v.Set(p.Elem())
		return nil
	}
	if fn, ok := d.codec.custom.implicit(t); ok {
		return d.assignImported(fn, src, v)
	}
	if st.Kind() == t.Kind() && st.ConvertibleTo(t) {
		v.Set(sv.Convert(t))
		return nil
	}

	if nv, ok := coerce.Numeric(sv, t); ok {
		v.Set(nv)
		return nil
	}

	return errors.Unconvertible(d.where(), src, st.String(), t.String())
}

func (d *decoder) assignImported(fn ImportFunc, src any, v reflect.Value) error {
	t := v.Type()
	out, err := fn(src)
	if err != nil {
		return errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
			Path(d.where()...).
			Source(reflect.TypeOf(src).String()).
			Target(t.String()).
			Value(src).
			Cause(err).
			Build()
	}
	ov := reflect.ValueOf(out)
	switch {
	case !ov.IsValid():
		v.Set(reflect.Zero(t))
	case ov.Type().AssignableTo(t):
		v.Set(ov)
	case ov.Type().ConvertibleTo(t):
		v.Set(ov.Convert(t))
	default:
		return errors.TypeMismatch(errors.PhaseDecode, d.where(), ov.Type().String(), t.String())
	}
	return nil
}

func (d *decoder) decodeArray(r gjson.Result, v reflect.Value, depth int) error {
	t := v.Type()
	items := r.Array()

	switch t.Kind() {
	case reflect.Slice:
		s := reflect.MakeSlice(t, len(items), len(items))
		for i, it := range items {
			d.push("[" + strconv.Itoa(i) + "]")
			if err := d.decode(it, s.Index(i), depth+1); err != nil {
				return err
			}
			d.pop()
		}
		v.Set(s)
		return nil
	case reflect.Array:
		if len(items) != t.Len() {
			return errors.OutOfBounds(errors.PhaseDecode, d.where(), len(items), t.Len())
		}
		for i, it := range items {
			d.push("[" + strconv.Itoa(i) + "]")
			if err := d.decode(it, v.Index(i), depth+1); err != nil {
				return err
			}
			d.pop()
		}
		return nil
	case reflect.Interface:
		if t.NumMethod() == 0 {
			out := make([]any, len(items))
			ov := reflect.ValueOf(out)
			for i, it := range items {
				d.push("[" + strconv.Itoa(i) + "]")
				if err := d.decode(it, ov.Index(i), depth+1); err != nil {
					return err
				}
				d.pop()
			}
			v.Set(ov)
			return nil
		}
	}
	return errors.TypeMismatch(errors.PhaseDecode, d.where(), "array", t.String())
}

func (d *decoder) decodeObject(r gjson.Result, v reflect.Value, depth int) error {
	t := v.Type()
	switch t.Kind() {
	case reflect.Struct:
		return d.decodeMembers(r, d.codec.cache.Of(t), v, depth)
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return errors.New(errors.PhaseDecode, errors.KindUnsupported).
				Path(d.where()...).
				Target(t.String()).
				Detail("map keys must be strings").
				Build()
		}
		if v.IsNil() {
			v.Set(reflect.MakeMap(t))
		}
		return d.decodeEntries(r, v, depth)
	case reflect.Interface:
		if t.NumMethod() == 0 {
			m := reflect.ValueOf(make(map[string]any))
			if err := d.decodeEntries(r, m, depth); err != nil {
				return err
			}
			v.Set(m)
			return nil
		}
	}
	return errors.TypeMismatch(errors.PhaseDecode, d.where(), "object", t.String())
}

// decodeEntries stores every key of r in the map m.
func (d *decoder) decodeEntries(r gjson.Result, m reflect.Value, depth int) error {
	t := m.Type()
	var err error
	r.ForEach(func(key, val gjson.Result) bool {
		d.push(key.Str)
		ev := reflect.New(t.Elem()).Elem()
		if err = d.decode(val, ev, depth+1); err != nil {
			return false
		}
		m.SetMapIndex(reflect.ValueOf(key.Str).Convert(t.Key()), ev)
		d.pop()
		return true
	})
	return err
}

// decodeInstance decodes an object into a module object, behavior adapter or
// pointer to a Go struct.
func (d *decoder) decodeInstance(r gjson.Result, inst any, depth int) error {
	md, owner := d.codec.cache.ForValue(inst)
	if !r.IsObject() {
		return errors.TypeMismatch(errors.PhaseDecode, d.where(), r.Type.String(), md.Name)
	}
	if md.Shape != meta.ShapeObject {
		if owner.Kind() == reflect.Pointer && !owner.IsNil() {
			return d.decode(r, owner.Elem(), depth)
		}
		return errors.TypeMismatch(errors.PhaseDecode, d.where(), "object", md.Name)
	}
	return d.decodeMembers(r, md, owner, depth)
}

func (d *decoder) decodeMembers(r gjson.Result, md *meta.TypeMetadata, owner reflect.Value, depth int) error {
	if depth > d.codec.maxDepth {
		return d.depthExceeded()
	}
	var err error
	r.ForEach(func(key, val gjson.Result) bool {
		name := key.Str
		m, ok := md.Member(name)
		switch {
		case !ok:
			err = d.absorb(md, owner, name, val, depth)
		case m.CanWrite():
			d.push(m.Name)
			err = d.decodeMember(m, owner, val, depth)
			if err == nil {
				d.pop()
			}
		}
		return err == nil
	})
	return err
}

// absorb handles a key that matches no member.
func (d *decoder) absorb(md *meta.TypeMetadata, owner reflect.Value, key string, val gjson.Result, depth int) error {
	if md.Rest == nil {
		if d.codec.skipUnknown {
			return nil
		}
		return errors.FieldUnknown(errors.PhaseDecode, d.where(), md.Name, key)
	}

	rest, err := md.Rest.Get(owner)
	if err != nil {
		return err
	}
	if rest.IsNil() {
		rest = reflect.MakeMap(md.Rest.Type)
		if err := md.Rest.Set(owner, rest); err != nil {
			return err
		}
	}
	d.push(key)
	ev := reflect.New(md.Rest.Type.Elem()).Elem()
	if err := d.decode(val, ev, depth+1); err != nil {
		return err
	}
	rest.SetMapIndex(reflect.ValueOf(key).Convert(md.Rest.Type.Key()), ev)
	d.pop()
	return nil
}

func (d *decoder) decodeMember(m *meta.Member, owner reflect.Value, val gjson.Result, depth int) error {
	tmp := reflect.New(m.Type).Elem()
	if m.CanRead() {
		if cur, err := m.Get(owner); err == nil && cur.IsValid() && cur.Type().AssignableTo(m.Type) {
			tmp.Set(cur)
		}
	}

	switch {
	case m.TypeName != "" && val.IsObject():
		inst, err := d.bridged(m.TypeName, val, depth+1)
		if err != nil {
			return err
		}
		if err := d.assignInstance(tmp, inst); err != nil {
			return err
		}
	case m.ElemTypeName != "" && val.IsArray() && m.Type.Kind() == reflect.Slice:
		items := val.Array()
		s := reflect.MakeSlice(m.Type, len(items), len(items))
		for i, it := range items {
			d.push("[" + strconv.Itoa(i) + "]")
			if it.IsObject() {
				inst, err := d.bridged(m.ElemTypeName, it, depth+2)
				if err != nil {
					return err
				}
				if err := d.assignInstance(s.Index(i), inst); err != nil {
					return err
				}
			} else if err := d.decode(it, s.Index(i), depth+2); err != nil {
				return err
			}
			d.pop()
		}
		tmp.Set(s)
	default:
		if err := d.decode(val, tmp, depth+1); err != nil {
			return err
		}
	}

	if err := m.Set(owner, tmp); err != nil {
		return errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
			Path(d.where()...).
			Target(m.Type.String()).
			Cause(err).
			Build()
	}
	return nil
}

// bridged creates an instance of a module-typed member and decodes val into it.
func (d *decoder) bridged(typeName string, val gjson.Result, depth int) (any, error) {
	inst, err := d.instance(typeName)
	if err != nil {
		return nil, err
	}
	if err := d.decodeInstance(val, inst, depth); err != nil {
		return nil, err
	}
	return inst, nil
}

func (d *decoder) assignInstance(slot reflect.Value, inst any) error {
	iv := reflect.ValueOf(inst)
	if !iv.Type().AssignableTo(slot.Type()) {
		return errors.TypeMismatch(errors.PhaseDecode, d.where(), iv.Type().String(), slot.Type().String())
	}
	slot.Set(iv)
	return nil
}

func (d *decoder) instance(typeName string) (any, error) {
	if d.codec.types == nil {
		return nil, errors.New(errors.PhaseDecode, errors.KindNotInitialized).
			Path(d.where()...).
			Type(typeName).
			Detail("no type source for bridged types").
			Build()
	}
	v, err := d.codec.types.New(d.ctx, typeName)
	if err != nil {
		kind, ok := errors.KindOf(err)
		if !ok {
			kind = errors.KindInstantiation
		}
		return nil, errors.New(errors.PhaseDecode, kind).
			Path(d.where()...).
			Type(typeName).
			Cause(err).
			Build()
	}
	return v, nil
}

// data builds a generic tree from r.
func (d *decoder) data(r gjson.Result, depth int) (*Data, error) {
	if depth > d.codec.maxDepth {
		return nil, d.depthExceeded()
	}
	switch {
	case r.IsArray():
		out := NewArray()
		for i, it := range r.Array() {
			d.push("[" + strconv.Itoa(i) + "]")
			child, err := d.data(it, depth+1)
			if err != nil {
				return nil, err
			}
			out.Append(child)
			d.pop()
		}
		return out, nil
	case r.IsObject():
		out := NewObject()
		var err error
		r.ForEach(func(key, val gjson.Result) bool {
			d.push(key.Str)
			var child *Data
			if child, err = d.data(val, depth+1); err != nil {
				return false
			}
			out.Set(key.Str, child)
			d.pop()
			return true
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return NewValue(leaf(r)), nil
}
