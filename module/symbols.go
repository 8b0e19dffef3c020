package module

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-bridge/errors"
)

// Location is a position in the module's source.
type Location struct {
	File string `yaml:"file"`
	Line int    `yaml:"line"`
}

func (l Location) String() string {
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return l.File
}

// Symbols maps module types and functions to source locations. They are read
// from a "<image>.sym" YAML file next to the module image when one exists.
type Symbols struct {
	Module    string              `yaml:"module"`
	Types     map[string]Location `yaml:"types"`
	Functions map[string]Location `yaml:"functions"`
}

// ParseSymbols decodes a symbols document.
func ParseSymbols(data []byte) (*Symbols, error) {
	var s Symbols
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Load("parse debug symbols", err)
	}
	return &s, nil
}

// Locate returns the location of an export such as "Game.Spinner#update",
// falling back to the location of the type.
func (s *Symbols) Locate(typeName, fn string) (Location, bool) {
	if s == nil {
		return Location{}, false
	}
	if loc, ok := s.Functions[exportName(typeName, fn)]; ok {
		return loc, true
	}
	loc, ok := s.Types[typeName]
	return loc, ok
}
