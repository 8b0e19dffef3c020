package hydrate

import (
	"strings"

	"github.com/wippyai/wasm-bridge/errors"
)

// ScalarSize is the capacity of the scalar buffer.
const ScalarSize = 16

// Tag is a canonical scalar type tag.
type Tag string

const (
	TagBool     Tag = "bool"
	TagInt32    Tag = "int32"
	TagInt64    Tag = "int64"
	TagNumber32 Tag = "number32"
	TagNumber64 Tag = "number64"
	TagText     Tag = "text"
	TagVector2  Tag = "vector2"
	TagVector3  Tag = "vector3"
	TagVector4  Tag = "vector4"
	TagColor    Tag = "color"
)

var widths = map[Tag]int{
	TagBool:     1,
	TagInt32:    4,
	TagInt64:    8,
	TagNumber32: 4,
	TagNumber64: 8,
	TagText:     ScalarSize,
	TagVector2:  8,
	TagVector3:  12,
	TagVector4:  16,
	TagColor:    16,
}

var aliases = map[string]Tag{
	"System.Boolean":      TagBool,
	"System.Int32":        TagInt32,
	"System.Int64":        TagInt64,
	"System.Single":       TagNumber32,
	"System.Double":       TagNumber64,
	"System.String":       TagText,
	"UnityEngine.Vector2": TagVector2,
	"UnityEngine.Vector3": TagVector3,
	"UnityEngine.Vector4": TagVector4,
	"UnityEngine.Color":   TagColor,
}

// CanonicalTag maps a declared type to its scalar tag. It reports false for
// reference types.
func CanonicalTag(declared string) (Tag, bool) {
	if _, ok := widths[Tag(declared)]; ok {
		return Tag(declared), true
	}
	t, ok := aliases[declared]
	return t, ok
}

// Width returns the number of scalar bytes the tag occupies.
func (t Tag) Width() int { return widths[t] }

// Shape says how a descriptor's payload is laid out.
type Shape uint8

const (
	ShapePlain Shape = iota
	ShapeArray
	ShapeList
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeList:
		return "list"
	}
	return "plain"
}

// ParseShape parses "plain", "array" or "list". The empty string is plain.
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(s) {
	case "", "plain":
		return ShapePlain, nil
	case "array":
		return ShapeArray, nil
	case "list":
		return ShapeList, nil
	}
	return 0, errors.InvalidInput(errors.PhaseHydrate, "unknown shape "+s)
}

// Descriptor is the serialized initial state of one member.
type Descriptor struct {
	Key string
	// Type is a scalar tag, an alias, or the name of a referenced type.
	Type   string
	Scalar [ScalarSize]byte
	// Ref is an external reference, or a string for long text.
	Ref any
	// Elements holds array and list items, or text chunks.
	Elements []Descriptor
	Shape    Shape
}

// Scalar builds a plain descriptor from an encoded buffer.
func Scalar(key string, tag Tag, buf [ScalarSize]byte) Descriptor {
	return Descriptor{Key: key, Type: string(tag), Scalar: buf}
}

// Reference builds a descriptor for a reference member.
func Reference(key, typeName string, ref any) Descriptor {
	return Descriptor{Key: key, Type: typeName, Ref: ref}
}

// Elements builds an array or list descriptor.
func Elements(key, typeName string, shape Shape, elems ...Descriptor) Descriptor {
	return Descriptor{Key: key, Type: typeName, Shape: shape, Elements: elems}
}
