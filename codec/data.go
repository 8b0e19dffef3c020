package codec

import "reflect"

// DataKind is the kind of a Data node.
type DataKind uint8

const (
	DataNull DataKind = iota
	DataBool
	DataNumber
	DataString
	DataArray
	DataObject
)

var dataKindNames = [...]string{"null", "bool", "number", "string", "array", "object"}

func (k DataKind) String() string {
	if int(k) < len(dataKindNames) {
		return dataKindNames[k]
	}
	return "unknown"
}

// Data is a generic JSON tree that keeps object keys in document order.
// Numbers hold int, int64 or float64 following the decoder's leaf rules.
type Data struct {
	kind  DataKind
	value any
	keys  []string
	items []*Data
}

var dataType = reflect.TypeOf((*Data)(nil))

// NewObject creates an empty object node.
func NewObject() *Data { return &Data{kind: DataObject} }

// NewArray creates an array node.
func NewArray(items ...*Data) *Data { return &Data{kind: DataArray, items: items} }

// NewValue creates a leaf. Integers narrower than int64 are stored as int,
// floats as float64; unsupported types produce a null node.
func NewValue(v any) *Data {
	switch x := v.(type) {
	case nil:
		return &Data{kind: DataNull}
	case bool:
		return &Data{kind: DataBool, value: x}
	case string:
		return &Data{kind: DataString, value: x}
	case int:
		return &Data{kind: DataNumber, value: x}
	case int8:
		return &Data{kind: DataNumber, value: int(x)}
	case int16:
		return &Data{kind: DataNumber, value: int(x)}
	case int32:
		return &Data{kind: DataNumber, value: int(x)}
	case uint8:
		return &Data{kind: DataNumber, value: int(x)}
	case uint16:
		return &Data{kind: DataNumber, value: int(x)}
	case int64:
		return &Data{kind: DataNumber, value: x}
	case float32:
		return &Data{kind: DataNumber, value: float64(x)}
	case float64:
		return &Data{kind: DataNumber, value: x}
	}
	return &Data{kind: DataNull}
}

// Kind returns the node kind.
func (d *Data) Kind() DataKind { return d.kind }

// Value returns the leaf value, or nil for arrays, objects and null.
func (d *Data) Value() any { return d.value }

// Len returns the number of array items or object entries.
func (d *Data) Len() int { return len(d.items) }

// Index returns array item i, or nil when out of range.
func (d *Data) Index(i int) *Data {
	if d.kind != DataArray || i < 0 || i >= len(d.items) {
		return nil
	}
	return d.items[i]
}

// Keys returns object keys in document order.
func (d *Data) Keys() []string { return d.keys }

// Get returns the entry for key.
func (d *Data) Get(key string) (*Data, bool) {
	if d.kind != DataObject {
		return nil, false
	}
	for i, k := range d.keys {
		if k == key {
			return d.items[i], true
		}
	}
	return nil, false
}

// Set adds or replaces an object entry. Replacing keeps the key's position.
func (d *Data) Set(key string, v *Data) {
	if d.kind != DataObject {
		return
	}
	for i, k := range d.keys {
		if k == key {
			d.items[i] = v
			return
		}
	}
	d.keys = append(d.keys, key)
	d.items = append(d.items, v)
}

// Append adds an array item.
func (d *Data) Append(v *Data) {
	if d.kind == DataArray {
		d.items = append(d.items, v)
	}
}

// Interface converts the tree to map[string]any, []any and leaf values.
func (d *Data) Interface() any {
	switch d.kind {
	case DataArray:
		out := make([]any, len(d.items))
		for i, it := range d.items {
			out[i] = it.Interface()
		}
		return out
	case DataObject:
		out := make(map[string]any, len(d.items))
		for i, k := range d.keys {
			out[k] = d.items[i].Interface()
		}
		return out
	}
	return d.value
}
