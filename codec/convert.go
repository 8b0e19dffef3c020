package codec

import (
	"encoding/base64"
	"reflect"
	"sync"
	"time"
)

// ImportFunc converts a decoded leaf (string, int, int64, float64 or bool)
// into a value of the registered target type.
type ImportFunc func(src any) (any, error)

// ExportFunc converts a value into one the encoder writes directly.
type ExportFunc func(v any) (any, error)

type pair struct {
	source, target reflect.Type
}

// table holds converters. Registration is serialized; lookups are lock-free.
type table struct {
	mu        sync.Mutex
	importers sync.Map // pair -> ImportFunc
	exporters sync.Map // reflect.Type -> ExportFunc
	implicits sync.Map // reflect.Type -> ImportFunc
}

func newTable() *table {
	return &table{}
}

func (t *table) setImporter(source, target reflect.Type, fn ImportFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.importers.Store(pair{source, target}, fn)
}

func (t *table) setExporter(typ reflect.Type, fn ExportFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exporters.Store(typ, fn)
}

func (t *table) setImplicit(target reflect.Type, fn ImportFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.implicits.Store(target, fn)
}

func (t *table) implicit(target reflect.Type) (ImportFunc, bool) {
	fn, ok := t.implicits.Load(target)
	if !ok {
		return nil, false
	}
	return fn.(ImportFunc), true
}

func (t *table) importer(source, target reflect.Type) (ImportFunc, bool) {
	fn, ok := t.importers.Load(pair{source, target})
	if !ok {
		return nil, false
	}
	return fn.(ImportFunc), true
}

func (t *table) exporter(typ reflect.Type) (ExportFunc, bool) {
	fn, ok := t.exporters.Load(typ)
	if !ok {
		return nil, false
	}
	return fn.(ExportFunc), true
}

// base converters are shared by every codec and consulted after custom ones.
var base = newTable()

// RegisterImporter adds a custom importer for the (source, target) pair.
func (c *Codec) RegisterImporter(source, target reflect.Type, fn ImportFunc) {
	c.custom.setImporter(source, target, fn)
}

// RegisterExporter adds a custom exporter for values of typ.
func (c *Codec) RegisterExporter(typ reflect.Type, fn ExportFunc) {
	c.custom.setExporter(typ, fn)
}

// RegisterImplicit adds a conversion into target from any leaf type. It is
// tried after importers and enums, and before same-kind conversion.
func (c *Codec) RegisterImplicit(target reflect.Type, fn ImportFunc) {
	c.custom.setImplicit(target, fn)
}

// RegisterBaseImporter adds an importer shared by every codec.
func RegisterBaseImporter(source, target reflect.Type, fn ImportFunc) {
	base.setImporter(source, target, fn)
}

// RegisterBaseExporter adds an exporter shared by every codec.
func RegisterBaseExporter(typ reflect.Type, fn ExportFunc) {
	base.setExporter(typ, fn)
}

// Importer registers a typed custom importer on c.
func Importer[S, T any](c *Codec, fn func(S) (T, error)) {
	c.RegisterImporter(typeOf[S](), typeOf[T](), func(src any) (any, error) {
		return fn(src.(S))
	})
}

// Exporter registers a typed custom exporter on c.
func Exporter[T any](c *Codec, fn func(T) (any, error)) {
	c.RegisterExporter(typeOf[T](), func(v any) (any, error) {
		return fn(v.(T))
	})
}

// Implicit registers a typed implicit conversion into T on c.
func Implicit[T any](c *Codec, fn func(src any) (T, error)) {
	c.RegisterImplicit(typeOf[T](), func(src any) (any, error) {
		return fn(src)
	})
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (c *Codec) importer(source, target reflect.Type) (ImportFunc, bool) {
	if fn, ok := c.custom.importer(source, target); ok {
		return fn, true
	}
	return base.importer(source, target)
}

func (c *Codec) exporter(typ reflect.Type) (ExportFunc, bool) {
	if fn, ok := c.custom.exporter(typ); ok {
		return fn, true
	}
	return base.exporter(typ)
}

var (
	stringType   = reflect.TypeOf("")
	intType      = reflect.TypeOf(0)
	int64Type    = reflect.TypeOf(int64(0))
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	bytesType    = reflect.TypeOf([]byte(nil))
)

func init() {
	RegisterBaseExporter(timeType, func(v any) (any, error) {
		return v.(time.Time).Format(time.RFC3339Nano), nil
	})
	RegisterBaseImporter(stringType, timeType, func(src any) (any, error) {
		return time.Parse(time.RFC3339Nano, src.(string))
	})

	RegisterBaseExporter(durationType, func(v any) (any, error) {
		return v.(time.Duration).String(), nil
	})
	RegisterBaseImporter(stringType, durationType, func(src any) (any, error) {
		return time.ParseDuration(src.(string))
	})
	RegisterBaseImporter(intType, durationType, func(src any) (any, error) {
		return time.Duration(src.(int)), nil
	})
	RegisterBaseImporter(int64Type, durationType, func(src any) (any, error) {
		return time.Duration(src.(int64)), nil
	})

	RegisterBaseExporter(bytesType, func(v any) (any, error) {
		return base64.StdEncoding.EncodeToString(v.([]byte)), nil
	})
	RegisterBaseImporter(stringType, bytesType, func(src any) (any, error) {
		return base64.StdEncoding.DecodeString(src.(string))
	})
}
