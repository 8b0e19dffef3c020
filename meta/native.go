package meta

import (
	"reflect"
	"strings"
)

const tagName = "bridge"

// IsEnum reports whether t is treated as an enumeration: a named integer type.
func IsEnum(t reflect.Type) bool {
	if t == nil || t.Name() == "" || t.PkgPath() == "" {
		return false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func describeNative(t reflect.Type) *TypeMetadata {
	md := &TypeMetadata{
		Name:     t.String(),
		Universe: UniverseNative,
		Type:     t,
		Len:      -1,
	}

	switch t.Kind() {
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			md.Shape = ShapeScalar
			break
		}
		md.Shape = ShapeList
		md.Elem = t.Elem()
	case reflect.Array:
		md.Shape = ShapeArray
		md.Elem = t.Elem()
		md.Len = t.Len()
	case reflect.Map:
		if t.Key().Kind() == reflect.String {
			md.Shape = ShapeDictionary
			md.Elem = t.Elem()
		}
	case reflect.Struct:
		md.Shape = ShapeObject
		var rest *Member
		md.setMembers(nativeMembers(t, &rest))
		md.Rest = rest
	case reflect.Interface:
		md.Shape = ShapeInterface
	default:
		if IsEnum(t) {
			md.Shape = ShapeEnum
		}
	}
	if md.byName == nil {
		md.setMembers(nil)
	}
	return md
}

func nativeMembers(t reflect.Type, rest **Member) []*Member {
	var members []*Member
	seen := make(map[string]bool)
	collectFields(t, nil, &members, rest, seen)
	members = append(members, properties(t, seen)...)
	return members
}

// collectFields flattens untagged embedded structs. A map[string]T field
// tagged `bridge:",rest"` collects keys that match no member.
func collectFields(t reflect.Type, prefix []int, out *[]*Member, rest **Member, seen map[string]bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := append(append([]int{}, prefix...), i)

		name := f.Name
		isRest := false
		if tag, ok := f.Tag.Lookup(tagName); ok {
			tagged, opts, _ := strings.Cut(tag, ",")
			if tagged == "-" {
				continue
			}
			if tagged != "" {
				name = tagged
			}
			isRest = opts == "rest"
		}

		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			if _, tagged := f.Tag.Lookup(tagName); !tagged {
				collectFields(f.Type, index, out, rest, seen)
				continue
			}
		}
		if !f.IsExported() || seen[name] {
			continue
		}
		if isRest && f.Type.Kind() == reflect.Map && f.Type.Key().Kind() == reflect.String {
			if *rest == nil {
				*rest = fieldMember(name, f.Type, index)
			}
			continue
		}
		seen[name] = true

		*out = append(*out, fieldMember(name, f.Type, index))
	}
}

func fieldMember(name string, typ reflect.Type, index []int) *Member {
	get := func(obj reflect.Value) (reflect.Value, error) {
		sv, err := structOf(obj)
		if err != nil {
			return reflect.Value{}, err
		}
		return sv.FieldByIndex(index), nil
	}
	set := func(obj, v reflect.Value) error {
		sv, err := structOf(obj)
		if err != nil {
			return err
		}
		f := sv.FieldByIndex(index)
		if !f.CanSet() {
			return errNotAddressable(sv.Type())
		}
		f.Set(v)
		return nil
	}
	return NewMember(name, StorageField, typ, get, set)
}

// properties pairs Foo() T with SetFoo(T) on the pointer method set.
func properties(t reflect.Type, seen map[string]bool) []*Member {
	pt := reflect.PointerTo(t)
	var members []*Member
	for i := 0; i < pt.NumMethod(); i++ {
		getter := pt.Method(i)
		if seen[getter.Name] || strings.HasPrefix(getter.Name, "Set") {
			continue
		}
		gt := getter.Type
		if gt.NumIn() != 1 || gt.NumOut() != 1 {
			continue
		}
		setter, ok := pt.MethodByName("Set" + getter.Name)
		if !ok {
			continue
		}
		st := setter.Type
		if st.NumIn() != 2 || st.NumOut() != 0 || st.In(1) != gt.Out(0) {
			continue
		}
		seen[getter.Name] = true
		members = append(members, propertyMember(getter.Name, gt.Out(0), getter.Index, setter.Index))
	}
	return members
}

func propertyMember(name string, typ reflect.Type, getIdx, setIdx int) *Member {
	get := func(obj reflect.Value) (reflect.Value, error) {
		pv, err := pointerOf(obj)
		if err != nil {
			return reflect.Value{}, err
		}
		return pv.Method(getIdx).Call(nil)[0], nil
	}
	set := func(obj, v reflect.Value) error {
		pv, err := pointerOf(obj)
		if err != nil {
			return err
		}
		pv.Method(setIdx).Call([]reflect.Value{v})
		return nil
	}
	return NewMember(name, StorageProperty, typ, get, set)
}

func structOf(obj reflect.Value) (reflect.Value, error) {
	for obj.Kind() == reflect.Pointer || obj.Kind() == reflect.Interface {
		if obj.IsNil() {
			return reflect.Value{}, errNotAddressable(obj.Type())
		}
		obj = obj.Elem()
	}
	return obj, nil
}

func pointerOf(obj reflect.Value) (reflect.Value, error) {
	for obj.Kind() == reflect.Interface {
		obj = obj.Elem()
	}
	if obj.Kind() == reflect.Pointer {
		if obj.IsNil() {
			return reflect.Value{}, errNotAddressable(obj.Type())
		}
		return obj, nil
	}
	if obj.CanAddr() {
		return obj.Addr(), nil
	}
	return reflect.Value{}, errNotAddressable(obj.Type())
}
