package meta

import (
	"reflect"
	"strings"
)

// Universe identifies which type universe a TypeMetadata was built from.
type Universe uint8

const (
	UniverseNative Universe = iota
	UniverseModule
)

func (u Universe) String() string {
	if u == UniverseModule {
		return "module"
	}
	return "native"
}

// Shape classifies how a type is walked.
type Shape uint8

const (
	ShapeScalar Shape = iota
	ShapeEnum
	ShapeObject
	ShapeArray
	ShapeList
	ShapeDictionary
	ShapeInterface
)

var shapeNames = [...]string{"scalar", "enum", "object", "array", "list", "dictionary", "interface"}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return "unknown"
}

// Storage is how a member is held on its owner.
type Storage uint8

const (
	StorageField Storage = iota
	StorageProperty
)

// Getter reads a member from its owner.
type Getter func(obj reflect.Value) (reflect.Value, error)

// Setter writes a member on its owner. The value is already of the member type.
type Setter func(obj, v reflect.Value) error

// Member describes one readable and possibly writable member.
type Member struct {
	Name    string
	Storage Storage
	// Type is the Go storage type of the member.
	Type reflect.Type
	// TypeName is the logical type of a bridged member, empty for plain Go data.
	TypeName string
	// ElemTypeName is the logical element type of a bridged list member.
	ElemTypeName string
	Index        int

	get Getter
	set Setter
}

// NewMember builds a member from accessor closures. A nil setter makes the member read-only.
func NewMember(name string, storage Storage, typ reflect.Type, get Getter, set Setter) *Member {
	return &Member{
		Name:    name,
		Storage: storage,
		Type:    typ,
		get:     get,
		set:     set,
	}
}

// CanRead reports whether the member has a getter.
func (m *Member) CanRead() bool { return m.get != nil }

// CanWrite reports whether the member has a setter.
func (m *Member) CanWrite() bool { return m.set != nil }

// Get reads the member from obj.
func (m *Member) Get(obj reflect.Value) (reflect.Value, error) {
	if m.get == nil {
		return reflect.Value{}, errReadOnly(m.Name, "not readable")
	}
	return m.get(obj)
}

// Set assigns v to the member on obj. An invalid v assigns the zero value.
func (m *Member) Set(obj, v reflect.Value) error {
	if m.set == nil {
		return errReadOnly(m.Name, "not writable")
	}
	if !v.IsValid() {
		v = reflect.Zero(m.Type)
	}
	if !v.Type().AssignableTo(m.Type) {
		return errAssign(m.Name, v.Type(), m.Type)
	}
	return m.set(obj, v)
}

// TypeMetadata is the cached description of one type.
type TypeMetadata struct {
	Name     string
	Universe Universe
	Shape    Shape
	// Type is the Go type for native metadata, nil for module types.
	Type reflect.Type
	// Elem is the element type of arrays and lists or the value type of dictionaries.
	Elem reflect.Type
	// Len is the fixed length of array shapes backed by Go arrays, -1 otherwise.
	Len     int
	Members []*Member
	// Rest is a map member absorbing unknown keys, or nil.
	Rest *Member

	byName map[string]*Member
	byNorm map[string]*Member
}

// NewObject builds object metadata for a module type.
func NewObject(name string, members []*Member) *TypeMetadata {
	md := &TypeMetadata{
		Name:     name,
		Universe: UniverseModule,
		Shape:    ShapeObject,
		Len:      -1,
	}
	md.setMembers(members)
	return md
}

func (t *TypeMetadata) setMembers(members []*Member) {
	t.Members = members
	t.byName = make(map[string]*Member, len(members))
	t.byNorm = make(map[string]*Member, len(members))
	for i, m := range members {
		m.Index = i
		if _, dup := t.byName[m.Name]; dup {
			continue
		}
		t.byName[m.Name] = m
		n := normalize(m.Name)
		if _, dup := t.byNorm[n]; !dup {
			t.byNorm[n] = m
		}
	}
}

// Member finds a member by exact name, then ignoring case, underscores and dashes.
func (t *TypeMetadata) Member(name string) (*Member, bool) {
	if m, ok := t.byName[name]; ok {
		return m, true
	}
	m, ok := t.byNorm[normalize(name)]
	return m, ok
}

// IsDictionary reports whether unknown keys can be stored as entries.
func (t *TypeMetadata) IsDictionary() bool { return t.Shape == ShapeDictionary || t.Rest != nil }

func normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_' || c == '-':
			continue
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
