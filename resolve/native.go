package resolve

import (
	"reflect"
	"slices"
	"sort"
	"sync"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

var behaviorType = reflect.TypeOf((*wasmbridge.Behavior)(nil)).Elem()

// Constructor builds a native instance from constructor arguments. It must
// return a pointer to the registered struct type.
type Constructor func(args ...any) (any, error)

type nativeEntry struct {
	name  string
	typ   reflect.Type
	bases []string
	ctor  Constructor
}

// NativeOption configures a registration.
type NativeOption func(*nativeEntry)

// WithBases declares logical base types, used by Handle.IsA.
func WithBases(names ...string) NativeOption {
	return func(e *nativeEntry) { e.bases = append(e.bases, names...) }
}

// WithConstructor sets the constructor used when arguments are supplied.
// Without arguments the zero value is allocated.
func WithConstructor(fn Constructor) NativeOption {
	return func(e *nativeEntry) { e.ctor = fn }
}

// NativeTable is the single source of native types.
// It is safe for concurrent use.
type NativeTable struct {
	mu     sync.RWMutex
	byName map[string]*nativeEntry
	byType map[reflect.Type]string
}

// NewNativeTable creates an empty table.
func NewNativeTable() *NativeTable {
	return &NativeTable{
		byName: make(map[string]*nativeEntry),
		byType: make(map[reflect.Type]string),
	}
}

// Register adds a struct type under a logical name. Pointers to the type
// must implement wasmbridge.Behavior.
func (t *NativeTable) Register(name string, typ reflect.Type, opts ...NativeOption) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseResolve, "native type without a name")
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return errors.New(errors.PhaseResolve, errors.KindInvalidInput).
			Type(name).
			Detail("native types must be structs, got %v", typ).
			Build()
	}
	if !reflect.PointerTo(typ).Implements(behaviorType) {
		return errors.New(errors.PhaseResolve, errors.KindTypeMismatch).
			Type(name).
			Source(reflect.PointerTo(typ).String()).
			Target(behaviorType.String()).
			Detail("does not implement the behavior capability set").
			Build()
	}

	e := &nativeEntry{name: name, typ: typ}
	for _, opt := range opts {
		opt(e)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.byName[name]; dup {
		return errors.InvalidInput(errors.PhaseResolve, "duplicate native type "+name)
	}
	t.byName[name] = e
	t.byType[typ] = name
	return nil
}

// RegisterType registers T under name.
func RegisterType[T any](t *NativeTable, name string, opts ...NativeOption) error {
	return t.Register(name, reflect.TypeOf((*T)(nil)).Elem(), opts...)
}

// RegisterConstructor sets the constructor of an already registered type.
func (t *NativeTable) RegisterConstructor(name string, fn Constructor) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byName[name]
	if !ok {
		return errors.Resolution(name, "no native type registered")
	}
	e.ctor = fn
	return nil
}

func (t *NativeTable) lookup(name string) (*nativeEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byName[name]
	return e, ok
}

// NameOf returns the logical name a Go struct type was registered under.
func (t *NativeTable) NameOf(typ reflect.Type) (string, bool) {
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.byType[typ]
	return name, ok
}

// Names lists registered names in sorted order.
func (t *NativeTable) Names() []string {
	t.mu.RLock()
	names := make([]string, 0, len(t.byName))
	for n := range t.byName {
		names = append(names, n)
	}
	t.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Bases returns the declared bases of a registered type.
func (t *NativeTable) Bases(name string) []string {
	e, ok := t.lookup(name)
	if !ok {
		return nil
	}
	return slices.Clone(e.bases)
}
