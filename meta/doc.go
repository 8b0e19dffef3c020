// Package meta caches per-type member metadata shared by hydration and the codec.
//
// A TypeMetadata is built once per Go type (by reflection) or once per module
// type (from a Describer) and reused. Members expose getter and setter
// closures so callers never look fields up by name on the hot path.
//
// Go types contribute exported fields in declaration order, flattened through
// embedded structs, followed by properties: a method pair Foo() T and
// SetFoo(T). The `bridge` struct tag renames a field, and "-" hides it.
package meta
