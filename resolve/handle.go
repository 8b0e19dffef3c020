package resolve

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/wippyai/wasm-bridge/module"
)

// Domain says which universe a Handle was resolved in.
type Domain uint8

const (
	DomainNative Domain = iota + 1
	DomainModule
	DomainWrapper
)

func (d Domain) String() string {
	switch d {
	case DomainNative:
		return "native"
	case DomainModule:
		return "module"
	case DomainWrapper:
		return "wrapper"
	}
	return "unknown"
}

// Handle is a resolved logical type.
type Handle struct {
	Name   string
	Domain Domain
	// Native is the Go struct type for native and wrapper handles.
	Native reflect.Type
	// Module is the type definition for module and wrapper handles.
	Module *module.TypeDef
	// Generation is the module load generation, zero for native handles.
	Generation uint64

	native *nativeEntry
}

// IsA reports whether the handle's type is name or derives from it. Module
// types walk their base chain; native types check their declared bases.
func (h *Handle) IsA(name string) bool {
	if h == nil || name == "" {
		return false
	}
	if h.Name == name {
		return true
	}
	if h.Module != nil && h.Module.IsA(name) {
		return true
	}
	if h.native != nil {
		return h.native.name == name || slices.Contains(h.native.bases, name)
	}
	return false
}

// Valid reports whether a module handle still belongs to an open domain.
// Native handles are always valid.
func (h *Handle) Valid() bool {
	return h.Module == nil || h.Module.Valid()
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s(%s)", h.Name, h.Domain)
}
