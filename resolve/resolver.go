package resolve

import (
	"strings"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/module"
)

// Mode selects the universe names are resolved in.
type Mode uint8

const (
	ModeNative Mode = iota + 1
	ModeModule
)

func (m Mode) String() string {
	switch m {
	case ModeNative:
		return "native"
	case ModeModule:
		return "module"
	}
	return "unknown"
}

// ParseMode parses "native" or "module".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "native":
		return ModeNative, nil
	case "module":
		return ModeModule, nil
	}
	return 0, errors.InvalidInput(errors.PhaseResolve, "unknown mode "+s)
}

// UnmarshalText implements encoding.TextUnmarshaler for configuration.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Ref names a type to resolve, either by logical name or by a handle
// obtained earlier.
type Ref struct {
	Name   string
	Handle *Handle
}

// DomainSource supplies the live module domain. *module.Loader implements it.
type DomainSource interface {
	Current() *module.Domain
}

// Resolver resolves logical type names to handles.
type Resolver struct {
	mode    Mode
	natives *NativeTable
	modules DomainSource
}

// NewResolver creates a resolver. natives may be nil in module mode when no
// module type wraps a native type, and modules may be nil in native mode.
func NewResolver(mode Mode, natives *NativeTable, modules DomainSource) *Resolver {
	if natives == nil {
		natives = NewNativeTable()
	}
	return &Resolver{mode: mode, natives: natives, modules: modules}
}

// Mode returns the resolution mode.
func (r *Resolver) Mode() Mode { return r.mode }

// Natives returns the native table.
func (r *Resolver) Natives() *NativeTable { return r.natives }

// Resolve returns the handle for ref. A supplied handle is used as-is unless
// it comes from a module domain that has since been closed or replaced.
func (r *Resolver) Resolve(ref Ref) (*Handle, error) {
	if ref.Handle != nil {
		if err := r.Check(ref.Handle); err != nil {
			return nil, err
		}
		return ref.Handle, nil
	}
	return r.ResolveType(ref.Name)
}

// ResolveType looks a logical name up in the active universe.
func (r *Resolver) ResolveType(name string) (*Handle, error) {
	if name == "" {
		return nil, errors.Resolution(name, "empty type name")
	}
	if r.mode == ModeModule {
		return r.resolveModule(name)
	}
	return r.resolveNative(name)
}

// Check rejects module handles whose domain is no longer live.
func (r *Resolver) Check(h *Handle) error {
	if h.Module == nil {
		return nil
	}
	live := r.live()
	if live == nil {
		return errors.Stale(h.Name, h.Generation, 0)
	}
	if !h.Module.Valid() || h.Generation != live.Generation() {
		return errors.Stale(h.Name, h.Generation, live.Generation())
	}
	return nil
}

func (r *Resolver) live() *module.Domain {
	if r.modules == nil {
		return nil
	}
	d := r.modules.Current()
	if d == nil || d.Closed() {
		return nil
	}
	return d
}

func (r *Resolver) resolveModule(name string) (*Handle, error) {
	d := r.live()
	if d == nil {
		return nil, errors.Resolution(name, "no module loaded")
	}
	def, ok := d.Type(name)
	if !ok {
		return nil, errors.Resolution(name, "not defined by module "+d.Name())
	}

	h := &Handle{
		Name:       name,
		Domain:     DomainModule,
		Module:     def,
		Generation: d.Generation(),
	}
	if def.IsWrapper() {
		e, ok := r.natives.lookup(def.Wraps)
		if !ok {
			return nil, errors.Resolution(name, "wrapped native type "+def.Wraps+" is not registered")
		}
		h.Domain = DomainWrapper
		h.Native = e.typ
		h.native = e
	}
	return h, nil
}

func (r *Resolver) resolveNative(name string) (*Handle, error) {
	e, ok := r.natives.lookup(name)
	if !ok {
		return nil, errors.Resolution(name, "no native type registered")
	}
	return &Handle{Name: name, Domain: DomainNative, Native: e.typ, native: e}, nil
}
