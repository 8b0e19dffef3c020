package module

import (
	"reflect"
	"strings"

	"go.bytecodealliance.org/wit"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

// Enum is the storage type of enum<Name> fields.
type Enum int32

// FieldKind classifies a field type expression.
type FieldKind uint8

const (
	FieldBool FieldKind = iota
	FieldS8
	FieldS16
	FieldS32
	FieldS64
	FieldU8
	FieldU16
	FieldU32
	FieldU64
	FieldF32
	FieldF64
	FieldString
	FieldVec2
	FieldVec3
	FieldVec4
	FieldColor
	FieldList
	FieldEnum
	FieldRef
)

var primitiveKinds = map[string]FieldKind{
	"bool":   FieldBool,
	"s8":     FieldS8,
	"s16":    FieldS16,
	"s32":    FieldS32,
	"s64":    FieldS64,
	"u8":     FieldU8,
	"u16":    FieldU16,
	"u32":    FieldU32,
	"u64":    FieldU64,
	"f32":    FieldF32,
	"f64":    FieldF64,
	"string": FieldString,
	"vec2":   FieldVec2,
	"vec3":   FieldVec3,
	"vec4":   FieldVec4,
	"color":  FieldColor,
}

var storageTypes = map[FieldKind]reflect.Type{
	FieldBool:   reflect.TypeOf(false),
	FieldS8:     reflect.TypeOf(int8(0)),
	FieldS16:    reflect.TypeOf(int16(0)),
	FieldS32:    reflect.TypeOf(int32(0)),
	FieldS64:    reflect.TypeOf(int64(0)),
	FieldU8:     reflect.TypeOf(uint8(0)),
	FieldU16:    reflect.TypeOf(uint16(0)),
	FieldU32:    reflect.TypeOf(uint32(0)),
	FieldU64:    reflect.TypeOf(uint64(0)),
	FieldF32:    reflect.TypeOf(float32(0)),
	FieldF64:    reflect.TypeOf(float64(0)),
	FieldString: reflect.TypeOf(""),
	FieldVec2:   reflect.TypeOf(wasmbridge.Vector2{}),
	FieldVec3:   reflect.TypeOf(wasmbridge.Vector3{}),
	FieldVec4:   reflect.TypeOf(wasmbridge.Vector4{}),
	FieldColor:  reflect.TypeOf(wasmbridge.Color{}),
	FieldEnum:   reflect.TypeOf(Enum(0)),
	FieldRef:    reflect.TypeOf((*any)(nil)).Elem(),
}

// FieldType is a parsed field type expression.
type FieldType struct {
	Expr string
	Kind FieldKind
	// Go is the storage type of the field slot.
	Go reflect.Type
	// Elem is the element type of list fields.
	Elem *FieldType
	// Name is the referenced type of FieldRef and the enum name of FieldEnum.
	Name string
}

// ParseFieldType parses expressions such as f32, vec3, list<s32>, enum<Team> or Game.Target.
func ParseFieldType(expr string) (*FieldType, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "empty field type")
	}

	if k, ok := primitiveKinds[expr]; ok {
		return &FieldType{Expr: expr, Kind: k, Go: storageTypes[k]}, nil
	}

	if inner, ok := generic(expr, "list"); ok {
		elem, err := ParseFieldType(inner)
		if err != nil {
			return nil, err
		}
		if elem.Kind == FieldList {
			return nil, errors.Unsupported(errors.PhaseLoad, "nested lists: "+expr)
		}
		return &FieldType{Expr: expr, Kind: FieldList, Go: reflect.SliceOf(elem.Go), Elem: elem}, nil
	}

	if inner, ok := generic(expr, "enum"); ok {
		if inner == "" {
			return nil, errors.InvalidInput(errors.PhaseLoad, "enum without a name: "+expr)
		}
		return &FieldType{Expr: expr, Kind: FieldEnum, Go: storageTypes[FieldEnum], Name: inner}, nil
	}

	if strings.ContainsAny(expr, "<> ") {
		return nil, errors.InvalidInput(errors.PhaseLoad, "malformed field type: "+expr)
	}
	return &FieldType{Expr: expr, Kind: FieldRef, Go: storageTypes[FieldRef], Name: expr}, nil
}

func generic(expr, name string) (string, bool) {
	if !strings.HasPrefix(expr, name+"<") || !strings.HasSuffix(expr, ">") {
		return "", false
	}
	return strings.TrimSpace(expr[len(name)+1 : len(expr)-1]), true
}

// Wit renders the field type as a WIT type. References become option<u32> handles.
func (t *FieldType) Wit() wit.Type {
	switch t.Kind {
	case FieldBool:
		return wit.Bool{}
	case FieldS8:
		return wit.S8{}
	case FieldS16:
		return wit.S16{}
	case FieldS32:
		return wit.S32{}
	case FieldS64:
		return wit.S64{}
	case FieldU8:
		return wit.U8{}
	case FieldU16:
		return wit.U16{}
	case FieldU32:
		return wit.U32{}
	case FieldU64:
		return wit.U64{}
	case FieldF32:
		return wit.F32{}
	case FieldF64:
		return wit.F64{}
	case FieldString:
		return wit.String{}
	case FieldVec2:
		return floatRecord("vec2", "x", "y")
	case FieldVec3:
		return floatRecord("vec3", "x", "y", "z")
	case FieldVec4:
		return floatRecord("vec4", "x", "y", "z", "w")
	case FieldColor:
		return floatRecord("color", "r", "g", "b", "a")
	case FieldList:
		return &wit.TypeDef{Kind: &wit.List{Type: t.Elem.Wit()}}
	case FieldEnum:
		name := t.Name
		return &wit.TypeDef{Name: &name, Kind: &wit.Enum{}}
	default:
		name := t.Name
		return &wit.TypeDef{Name: &name, Kind: &wit.Option{Type: wit.U32{}}}
	}
}

func floatRecord(name string, fields ...string) wit.Type {
	rec := &wit.Record{Fields: make([]wit.Field, len(fields))}
	for i, f := range fields {
		rec.Fields[i] = wit.Field{Name: f, Type: wit.F32{}}
	}
	return &wit.TypeDef{Name: &name, Kind: rec}
}

// components returns the float components of a vector or color value.
func components(v reflect.Value) ([]float32, bool) {
	switch x := v.Interface().(type) {
	case wasmbridge.Vector2:
		return []float32{x.X, x.Y}, true
	case wasmbridge.Vector3:
		return []float32{x.X, x.Y, x.Z}, true
	case wasmbridge.Vector4:
		return []float32{x.X, x.Y, x.Z, x.W}, true
	case wasmbridge.Color:
		return []float32{x.R, x.G, x.B, x.A}, true
	}
	return nil, false
}

// setComponent writes component i of a vector or color slot.
func setComponent(slot reflect.Value, i int, f float32) bool {
	if slot.Kind() != reflect.Struct || i < 0 || i >= slot.NumField() {
		return false
	}
	field := slot.Field(i)
	if field.Kind() != reflect.Float32 {
		return false
	}
	field.SetFloat(float64(f))
	return true
}
