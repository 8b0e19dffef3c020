package module

import (
	"fmt"
	"reflect"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/meta"
)

// Manifest lists the types a module defines.
type Manifest struct {
	Types []TypeSpec `bridge:"types"`
}

// TypeSpec is one manifest entry.
type TypeSpec struct {
	Name   string      `bridge:"name"`
	Base   string      `bridge:"base"`
	Wraps  string      `bridge:"wraps"`
	Fields []FieldSpec `bridge:"fields"`
}

// FieldSpec declares one field of a TypeSpec.
type FieldSpec struct {
	Name string `bridge:"name"`
	Type string `bridge:"type"`
}

// Field is a resolved field of a module type.
type Field struct {
	Name  string
	Type  *FieldType
	Index int
	// Owner is the type that declared the field, which differs from the
	// described type for inherited fields.
	Owner string
}

// TypeDef is a type defined by a loaded module.
type TypeDef struct {
	Name   string
	Wraps  string
	Fields []*Field

	baseName string
	base     *TypeDef
	byName   map[string]*Field
	domain   *Domain
}

// Domain returns the domain that defined the type.
func (d *TypeDef) Domain() *Domain { return d.domain }

// Generation returns the load generation of the defining domain.
func (d *TypeDef) Generation() uint64 { return d.domain.generation }

// Valid reports whether the defining domain is still open.
func (d *TypeDef) Valid() bool { return !d.domain.closed.Load() }

// Base returns the base type, or nil.
func (d *TypeDef) Base() *TypeDef { return d.base }

// BaseName returns the declared base type name, which may name a native type.
func (d *TypeDef) BaseName() string { return d.baseName }

// IsWrapper reports whether the type only describes a native type.
func (d *TypeDef) IsWrapper() bool { return d.Wraps != "" }

// IsA reports whether the type or one of its bases is named name.
func (d *TypeDef) IsA(name string) bool {
	for t := d; t != nil; t = t.base {
		if t.Name == name {
			return true
		}
		if t.base == nil && t.baseName == name {
			return true
		}
	}
	return false
}

// Field finds a field by name.
func (d *TypeDef) Field(name string) (*Field, bool) {
	f, ok := d.byName[name]
	return f, ok
}

// MetadataKey implements meta.Describer.
func (d *TypeDef) MetadataKey() string {
	return fmt.Sprintf("module:%d:%s", d.domain.generation, d.Name)
}

// Describe implements meta.Describer. Members read and write the object's slots.
func (d *TypeDef) Describe() *meta.TypeMetadata {
	members := make([]*meta.Member, len(d.Fields))
	for i, f := range d.Fields {
		idx := i
		get := func(obj reflect.Value) (reflect.Value, error) {
			o, err := objectOf(obj)
			if err != nil {
				return reflect.Value{}, err
			}
			return o.slots[idx], nil
		}
		set := func(obj, v reflect.Value) error {
			o, err := objectOf(obj)
			if err != nil {
				return err
			}
			o.slots[idx].Set(v)
			return nil
		}
		m := meta.NewMember(f.Name, meta.StorageField, f.Type.Go, get, set)
		switch f.Type.Kind {
		case FieldRef:
			m.TypeName = f.Type.Name
		case FieldList:
			if f.Type.Elem.Kind == FieldRef {
				m.ElemTypeName = f.Type.Elem.Name
			}
		}
		members[i] = m
	}
	return meta.NewObject(d.Name, members)
}

// WitType renders the type's fields as a WIT record.
func (d *TypeDef) WitType() wit.Type {
	rec := &wit.Record{Fields: make([]wit.Field, len(d.Fields))}
	for i, f := range d.Fields {
		rec.Fields[i] = wit.Field{Name: f.Name, Type: f.Type.Wit()}
	}
	name := d.Name
	return &wit.TypeDef{Name: &name, Kind: rec}
}

func objectOf(v reflect.Value) (*Object, error) {
	if v.IsValid() && v.CanInterface() {
		if o, ok := v.Interface().(*Object); ok && o != nil {
			return o, nil
		}
	}
	return nil, errors.New(errors.PhaseHydrate, errors.KindTypeMismatch).
		Target("*module.Object").
		Detail("owner is not a module object").
		Build()
}

// buildTypes resolves manifest specs into type definitions. Base types must be
// defined in the same manifest or be left to the host as native names.
func buildTypes(d *Domain, specs []TypeSpec) ([]*TypeDef, map[string]*TypeDef, error) {
	byName := make(map[string]*TypeDef, len(specs))
	defs := make([]*TypeDef, 0, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return nil, nil, errors.InvalidInput(errors.PhaseLoad, "type without a name")
		}
		if _, dup := byName[s.Name]; dup {
			return nil, nil, errors.InvalidInput(errors.PhaseLoad, "duplicate type "+s.Name)
		}
		def := &TypeDef{Name: s.Name, Wraps: s.Wraps, baseName: s.Base, domain: d}
		byName[s.Name] = def
		defs = append(defs, def)
	}

	specByName := make(map[string]TypeSpec, len(specs))
	for _, s := range specs {
		specByName[s.Name] = s
		if base, ok := byName[s.Base]; ok {
			byName[s.Name].base = base
		}
	}

	done := make(map[string]bool, len(defs))
	var resolveFields func(def *TypeDef, visiting map[string]bool) error
	resolveFields = func(def *TypeDef, visiting map[string]bool) error {
		if done[def.Name] {
			return nil
		}
		if visiting[def.Name] {
			return errors.New(errors.PhaseLoad, errors.KindCycle).
				Type(def.Name).
				Detail("inheritance cycle").
				Build()
		}
		visiting[def.Name] = true

		var fields []*Field
		if def.base != nil {
			if err := resolveFields(def.base, visiting); err != nil {
				return err
			}
			for _, f := range def.base.Fields {
				fields = append(fields, &Field{Name: f.Name, Type: f.Type, Owner: f.Owner})
			}
		}
		for _, fs := range specByName[def.Name].Fields {
			ft, err := ParseFieldType(fs.Type)
			if err != nil {
				return errors.New(errors.PhaseLoad, errors.KindInvalidData).
					Type(def.Name).
					Path(fs.Name).
					Cause(err).
					Detail("field type").
					Build()
			}
			fields = append(fields, &Field{Name: fs.Name, Type: ft, Owner: def.Name})
		}

		def.Fields = fields
		def.byName = make(map[string]*Field, len(fields))
		for i, f := range fields {
			f.Index = i
			def.byName[f.Name] = f
		}
		done[def.Name] = true
		return nil
	}

	for _, def := range defs {
		if err := resolveFields(def, map[string]bool{}); err != nil {
			return nil, nil, err
		}
	}
	return defs, byName, nil
}
