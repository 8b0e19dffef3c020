package codec

import (
	"reflect"

	"github.com/wippyai/wasm-bridge/meta"
)

// fakeType is a module-style type whose members live in a map.
type fakeType struct {
	name    string
	members []fakeMember
}

type fakeMember struct {
	name     string
	typ      reflect.Type
	typeName string
	elemName string
}

type fakeObject struct {
	def    *fakeType
	values map[string]any
}

func (o *fakeObject) TypeDescriber() meta.Describer { return o.def }

type view struct{ obj *fakeObject }

func (v view) Unwrap() any { return v.obj }

func newFakeUnit() *fakeType {
	anyT := reflect.TypeOf((*any)(nil)).Elem()
	return &fakeType{name: "Game.Unit", members: []fakeMember{
		{name: "hp", typ: reflect.TypeOf(int32(0))},
		{name: "target", typ: anyT, typeName: "Game.Unit"},
		{name: "squad", typ: reflect.TypeOf([]any(nil)), elemName: "Game.Unit"},
	}}
}

func (t *fakeType) MetadataKey() string { return "fake:" + t.name }

func (t *fakeType) Describe() *meta.TypeMetadata {
	members := make([]*meta.Member, len(t.members))
	for i, fm := range t.members {
		fm := fm
		get := func(obj reflect.Value) (reflect.Value, error) {
			o := obj.Interface().(*fakeObject)
			v, ok := o.values[fm.name]
			if !ok || v == nil {
				return reflect.Zero(fm.typ), nil
			}
			return reflect.ValueOf(v), nil
		}
		set := func(obj, v reflect.Value) error {
			obj.Interface().(*fakeObject).values[fm.name] = v.Interface()
			return nil
		}
		m := meta.NewMember(fm.name, meta.StorageField, fm.typ, get, set)
		m.TypeName = fm.typeName
		m.ElemTypeName = fm.elemName
		members[i] = m
	}
	return meta.NewObject(t.name, members)
}
