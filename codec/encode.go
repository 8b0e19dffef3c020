package codec

import (
	"encoding"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/meta"
)

var textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

type encoder struct {
	codec *Codec
	buf   *[]byte
	path  []string
}

func (e *encoder) push(seg string) { e.path = append(e.path, seg) }
func (e *encoder) pop()            { e.path = e.path[:len(e.path)-1] }

func (e *encoder) where() []string {
	return append([]string(nil), e.path...)
}

func (e *encoder) write(s string)       { *e.buf = append(*e.buf, s...) }
func (e *encoder) writeByte(b byte)     { *e.buf = append(*e.buf, b) }
func (e *encoder) writeString(s string) { *e.buf = gjson.AppendJSONString(*e.buf, s) }

func (e *encoder) encode(v reflect.Value, depth int) error {
	if depth > e.codec.maxDepth {
		return errors.DepthExceeded(errors.PhaseEncode, e.where(), e.codec.maxDepth)
	}

	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			e.write("null")
			return nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		e.write("null")
		return nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if v.IsNil() {
			e.write("null")
			return nil
		}
	}

	t := v.Type()
	if v.CanInterface() {
		if t == dataType {
			return e.encodeData(v.Interface().(*Data), depth)
		}
		if fn, ok := e.codec.exporter(t); ok {
			out, err := fn(v.Interface())
			if err != nil {
				return errors.New(errors.PhaseEncode, errors.KindInvalidData).
					Path(e.where()...).
					Source(t.String()).
					Cause(err).
					Detail("exporter failed").
					Build()
			}
			return e.encode(reflect.ValueOf(out), depth+1)
		}
		if u, ok := v.Interface().(meta.Unwrapper); ok {
			return e.encode(reflect.ValueOf(u.Unwrap()), depth)
		}
		if typed, ok := v.Interface().(meta.Typed); ok {
			md := e.codec.cache.Describe(typed.TypeDescriber())
			return e.encodeObject(md, v, depth)
		}
		if t.Implements(textMarshalerType) {
			text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
			if err != nil {
				return errors.New(errors.PhaseEncode, errors.KindInvalidData).
					Path(e.where()...).
					Source(t.String()).
					Cause(err).
					Build()
			}
			e.writeString(string(text))
			return nil
		}
	}

	switch v.Kind() {
	case reflect.Pointer:
		return e.encode(v.Elem(), depth)
	case reflect.Bool:
		if v.Bool() {
			e.write("true")
		} else {
			e.write("false")
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		*e.buf = strconv.AppendInt(*e.buf, v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		*e.buf = strconv.AppendUint(*e.buf, v.Uint(), 10)
	case reflect.Float32:
		return e.encodeFloat(v.Float(), 32)
	case reflect.Float64:
		return e.encodeFloat(v.Float(), 64)
	case reflect.String:
		e.writeString(v.String())
	case reflect.Slice, reflect.Array:
		return e.encodeList(v, depth)
	case reflect.Map:
		return e.encodeMap(v, depth)
	case reflect.Struct:
		if !v.CanAddr() {
			cp := reflect.New(t).Elem()
			cp.Set(v)
			v = cp
		}
		return e.encodeObject(e.codec.cache.Of(t), v, depth)
	default:
		return errors.New(errors.PhaseEncode, errors.KindUnsupported).
			Path(e.where()...).
			Source(t.String()).
			Detail("cannot encode %s values", v.Kind()).
			Build()
	}
	return nil
}

func (e *encoder) encodeFloat(f float64, bits int) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Path(e.where()...).
			Value(f).
			Detail("JSON has no representation for %v", f).
			Build()
	}
	format := byte('f')
	if abs := math.Abs(f); abs != 0 {
		if bits == 32 {
			abs = float64(float32(abs))
		}
		if abs < 1e-6 || abs >= 1e21 {
			format = 'e'
		}
	}
	*e.buf = strconv.AppendFloat(*e.buf, f, format, -1, bits)
	return nil
}

func (e *encoder) encodeList(v reflect.Value, depth int) error {
	e.writeByte('[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			e.writeByte(',')
		}
		e.push("[" + strconv.Itoa(i) + "]")
		if err := e.encode(v.Index(i), depth+1); err != nil {
			return err
		}
		e.pop()
	}
	e.writeByte(']')
	return nil
}

func (e *encoder) encodeMap(v reflect.Value, depth int) error {
	if v.Type().Key().Kind() != reflect.String {
		return errors.New(errors.PhaseEncode, errors.KindUnsupported).
			Path(e.where()...).
			Source(v.Type().String()).
			Detail("map keys must be strings").
			Build()
	}

	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	e.writeByte('{')
	for i, k := range keys {
		if i > 0 {
			e.writeByte(',')
		}
		if err := e.encodeEntry(k.String(), v.MapIndex(k), depth); err != nil {
			return err
		}
	}
	e.writeByte('}')
	return nil
}

func (e *encoder) encodeEntry(key string, v reflect.Value, depth int) error {
	e.writeString(key)
	e.writeByte(':')
	e.push(key)
	if err := e.encode(v, depth+1); err != nil {
		return err
	}
	e.pop()
	return nil
}

func (e *encoder) encodeObject(md *meta.TypeMetadata, owner reflect.Value, depth int) error {
	e.writeByte('{')
	n := 0
	for _, m := range md.Members {
		if !m.CanRead() {
			continue
		}
		val, err := m.Get(owner)
		if err != nil {
			return errors.New(errors.PhaseEncode, errors.KindInvalidData).
				Path(e.where()...).
				Type(md.Name).
				Cause(err).
				Detail("read member %s", m.Name).
				Build()
		}
		if n > 0 {
			e.writeByte(',')
		}
		n++
		if err := e.encodeEntry(m.Name, val, depth); err != nil {
			return err
		}
	}

	if md.Rest != nil {
		rest, err := md.Rest.Get(owner)
		if err == nil && rest.Len() > 0 {
			keys := rest.MapKeys()
			sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
			for _, k := range keys {
				if n > 0 {
					e.writeByte(',')
				}
				n++
				if err := e.encodeEntry(k.String(), rest.MapIndex(k), depth); err != nil {
					return err
				}
			}
		}
	}
	e.writeByte('}')
	return nil
}

func (e *encoder) encodeData(d *Data, depth int) error {
	if depth > e.codec.maxDepth {
		return errors.DepthExceeded(errors.PhaseEncode, e.where(), e.codec.maxDepth)
	}
	switch d.kind {
	case DataArray:
		e.writeByte('[')
		for i, it := range d.items {
			if i > 0 {
				e.writeByte(',')
			}
			e.push("[" + strconv.Itoa(i) + "]")
			if err := e.encodeData(it, depth+1); err != nil {
				return err
			}
			e.pop()
		}
		e.writeByte(']')
		return nil
	case DataObject:
		e.writeByte('{')
		for i, k := range d.keys {
			if i > 0 {
				e.writeByte(',')
			}
			e.writeString(k)
			e.writeByte(':')
			e.push(k)
			if err := e.encodeData(d.items[i], depth+1); err != nil {
				return err
			}
			e.pop()
		}
		e.writeByte('}')
		return nil
	}
	return e.encode(reflect.ValueOf(d.value), depth)
}
