package module

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/resource"
)

// SymbolsSuffix is appended to an image path to find its debug symbols.
const SymbolsSuffix = ".sym"

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

// Format is the kind of module image.
type Format uint8

const (
	FormatWasm Format = iota + 1
	FormatLua
)

func (f Format) String() string {
	switch f {
	case FormatWasm:
		return "wasm"
	case FormatLua:
		return "lua"
	}
	return "unknown"
}

// DetectFormat identifies an image by its magic bytes or file extension.
func DetectFormat(name string, image []byte) (Format, bool) {
	if bytes.HasPrefix(image, wasmMagic) {
		return FormatWasm, true
	}
	if strings.EqualFold(filepath.Ext(name), ".lua") {
		return FormatLua, true
	}
	return 0, false
}

// backend runs guest code for a domain.
type backend interface {
	construct(ctx context.Context, obj *Object, args []any) error
	call(ctx context.Context, obj *Object, h Hook, other resource.Handle) error
	hasHook(def *TypeDef, h Hook) bool
	release(obj *Object)
	close(ctx context.Context) error
}

// Stats counts module objects.
type Stats struct {
	Live    int64
	Created int64
	Dropped int64
}

// Domain is one loaded module: its image, symbols, types and objects.
type Domain struct {
	name       string
	format     Format
	generation uint64
	backend    backend
	symbols    *Symbols
	types      []*TypeDef
	byName     map[string]*TypeDef
	objects    *resource.Table
	closed     atomic.Bool

	created atomic.Int64
	dropped atomic.Int64
}

// Name returns the path or name the domain was loaded from.
func (d *Domain) Name() string { return d.name }

// Format returns the image format.
func (d *Domain) Format() Format { return d.format }

// Generation returns the load generation. Every load gets a new one.
func (d *Domain) Generation() uint64 { return d.generation }

// Symbols returns the debug symbols, or nil when none were found.
func (d *Domain) Symbols() *Symbols { return d.symbols }

// Closed reports whether the domain has been closed.
func (d *Domain) Closed() bool { return d.closed.Load() }

// Types enumerates the module's types in manifest order.
func (d *Domain) Types() []*TypeDef {
	if d.Closed() {
		return nil
	}
	return d.types
}

// Type finds a type by fully-qualified name.
func (d *Domain) Type(name string) (*TypeDef, bool) {
	if d.Closed() {
		return nil, false
	}
	def, ok := d.byName[name]
	return def, ok
}

// Stats returns object counters.
func (d *Domain) Stats() Stats {
	c, r := d.created.Load(), d.dropped.Load()
	return Stats{Live: c - r, Created: c, Dropped: r}
}

// OnResourceEvent implements resource.Observer.
func (d *Domain) OnResourceEvent(e resource.Event) {
	if e.Kind != resource.KindObject {
		return
	}
	switch e.Type {
	case resource.EventCreated:
		d.created.Add(1)
	case resource.EventDropped:
		d.dropped.Add(1)
	}
}

// Instantiate constructs a new object of def through the module's own
// constructor, passing args after the object itself.
func (d *Domain) Instantiate(ctx context.Context, def *TypeDef, args ...any) (*Object, error) {
	if d.Closed() || def.domain != d {
		return nil, errors.Stale(def.Name, def.domain.generation, d.generation)
	}
	if def.IsWrapper() {
		return nil, errors.Construction(errors.KindUnsupported, def.Name, nil,
			"type wraps native %s and has no module constructor", def.Wraps)
	}

	obj := newObject(def)
	obj.handle = d.objects.Insert(resource.KindObject, obj)
	if obj.handle == 0 {
		return nil, errors.Stale(def.Name, def.domain.generation, d.generation)
	}
	if err := d.backend.construct(ctx, obj, args); err != nil {
		d.objects.Remove(obj.handle)
		return nil, d.annotate(err, def, ctorName)
	}
	return obj, nil
}

// Release drops an object from the domain. Guest code can no longer reach it.
func (d *Domain) Release(obj *Object) {
	if obj == nil || obj.def.domain != d || d.Closed() {
		return
	}
	d.objects.Remove(obj.handle)
}

// HasHook reports whether def or one of its bases implements h.
func (d *Domain) HasHook(def *TypeDef, h Hook) bool {
	if d.Closed() {
		return false
	}
	return d.backend.hasHook(def, h)
}

func (d *Domain) invoke(ctx context.Context, obj *Object, h Hook, other resource.Handle) error {
	if d.Closed() {
		return errors.Stale(obj.def.Name, d.generation, 0)
	}
	if obj.released {
		return errors.InvalidState(errors.PhaseLifecycle, "object "+obj.def.Name+" was released")
	}
	if err := d.backend.call(ctx, obj, h, other); err != nil {
		return d.annotate(err, obj.def, h.String())
	}
	return nil
}

// annotate adds the source location of fn to err, keeping its phase and kind.
func (d *Domain) annotate(err error, def *TypeDef, fn string) error {
	loc, ok := d.symbols.Locate(def.Name, fn)
	if !ok {
		return err
	}
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return errors.Wrap(errors.PhaseLifecycle, errors.KindInvalidState, err,
			fmt.Sprintf("%s at %s", exportName(def.Name, fn), loc))
	}
	annotated := *e
	annotated.Detail = fmt.Sprintf("%s (%s at %s)", e.Detail, exportName(def.Name, fn), loc)
	return &annotated
}

// Close releases every object and the module image. Types from the domain
// report Valid() == false afterwards.
func (d *Domain) Close(ctx context.Context) error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = d.objects.Close()
	Logger().Debug("module closed",
		zap.String("module", d.name),
		zap.Uint64("generation", d.generation))
	return d.backend.close(ctx)
}

// Config holds loader configuration.
type Config struct {
	// MemoryLimitPages caps wasm linear memory in 64KB pages. 0 keeps the wazero default.
	MemoryLimitPages uint32
}

// Loader owns at most one live Domain and replaces it on reload.
type Loader struct {
	cfg        Config
	cache      wazero.CompilationCache
	mu         sync.Mutex
	current    *Domain
	generation uint64
}

// NewLoader creates a loader. Compiled wasm is cached across reloads.
func NewLoader(cfg Config) *Loader {
	return &Loader{cfg: cfg, cache: wazero.NewCompilationCache()}
}

// Current returns the live domain, or nil.
func (l *Loader) Current() *Domain {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Load reads the image at path and its optional "<path>.sym" symbols, closes
// the live domain, and loads the new one.
func (l *Loader) Load(ctx context.Context, path string) (*Domain, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read module image", err)
	}

	var symbols []byte
	if data, err := os.ReadFile(path + SymbolsSuffix); err == nil {
		symbols = data
	} else if !os.IsNotExist(err) {
		return nil, errors.Load("read debug symbols", err)
	}

	return l.LoadImage(ctx, path, image, symbols)
}

// LoadImage loads a module from memory. symbols may be nil.
func (l *Loader) LoadImage(ctx context.Context, name string, image, symbols []byte) (*Domain, error) {
	format, ok := DetectFormat(name, image)
	if !ok {
		return nil, errors.Load("unrecognized module image "+name, nil)
	}

	var syms *Symbols
	if symbols != nil {
		s, err := ParseSymbols(symbols)
		if err != nil {
			return nil, err
		}
		syms = s
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current != nil {
		if err := l.current.Close(ctx); err != nil {
			Logger().Warn("close previous module", zap.Error(err))
		}
		l.current = nil
	}

	l.generation++
	d := &Domain{
		name:       name,
		format:     format,
		generation: l.generation,
		symbols:    syms,
		objects:    resource.NewTable(),
	}
	d.objects.Subscribe(d)

	var (
		specs []TypeSpec
		err   error
	)
	switch format {
	case FormatWasm:
		d.backend, specs, err = loadWasm(ctx, d, image, l.cfg, l.cache)
	case FormatLua:
		d.backend, specs, err = loadLua(d, image)
	}
	if err != nil {
		return nil, err
	}

	d.types, d.byName, err = buildTypes(d, specs)
	if err != nil {
		_ = d.backend.close(ctx)
		return nil, err
	}

	l.current = d
	Logger().Info("module loaded",
		zap.String("module", name),
		zap.Stringer("format", format),
		zap.Int("types", len(d.types)),
		zap.Bool("symbols", syms != nil),
		zap.Uint64("generation", d.generation))
	return d, nil
}

// Close closes the live domain.
func (l *Loader) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return nil
	}
	err := l.current.Close(ctx)
	l.current = nil
	return err
}

// CloseCache releases compiled code kept across reloads.
func (l *Loader) CloseCache(ctx context.Context) error {
	return l.cache.Close(ctx)
}
