package runtime

import (
	"context"
	"reflect"
	"sync"

	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/codec"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/hydrate"
	"github.com/wippyai/wasm-bridge/meta"
	"github.com/wippyai/wasm-bridge/module"
	"github.com/wippyai/wasm-bridge/proxy"
	"github.com/wippyai/wasm-bridge/resolve"
	"github.com/wippyai/wasm-bridge/savestore"
	"github.com/wippyai/wasm-bridge/scene"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger shared by every bridge package. Without it the
// logger is built from Config.LogLevel.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) { r.log = l }
}

// WithNatives uses an existing native type table.
func WithNatives(t *resolve.NativeTable) Option {
	return func(r *Runtime) {
		if t != nil {
			r.natives = t
		}
	}
}

// Runtime is the host-facing bridge.
type Runtime struct {
	cfg      Config
	log      *zap.Logger
	cache    *meta.Cache
	natives  *resolve.NativeTable
	loader   *module.Loader
	resolver *resolve.Resolver
	factory  *resolve.Factory
	hydrator *hydrate.Hydrator
	attacher *proxy.Attacher
	codec    *codec.Codec

	storeMu sync.Mutex
	store   *savestore.Store
}

// New builds a runtime from cfg.
func New(cfg Config, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		cfg:     cfg,
		cache:   meta.NewCache(),
		natives: resolve.NewNativeTable(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		l, err := NewLogger(cfg)
		if err != nil {
			return nil, err
		}
		r.log = l
	}
	SetLogger(r.log)
	module.SetLogger(r.log.Named("module"))
	hydrate.SetLogger(r.log.Named("hydrate"))
	proxy.SetLogger(r.log.Named("proxy"))

	r.loader = module.NewLoader(module.Config{MemoryLimitPages: cfg.MemoryLimitPages})
	r.resolver = resolve.NewResolver(cfg.Mode, r.natives, r.loader)
	r.factory = resolve.NewFactory(r.resolver)
	r.hydrator = hydrate.New(r.cache, hydrate.WithQuiet(cfg.Release))
	r.attacher = proxy.NewAttacher(r.resolver, r.factory, r.hydrator)
	r.codec = codec.New(
		codec.WithCache(r.cache),
		codec.WithTypes(r.factory),
		codec.WithMaxDepth(cfg.CodecMaxDepth),
		codec.WithSkipUnknown(cfg.CodecSkipUnknown),
	)
	return r, nil
}

func (r *Runtime) Config() Config                { return r.cfg }
func (r *Runtime) Cache() *meta.Cache            { return r.cache }
func (r *Runtime) Natives() *resolve.NativeTable { return r.natives }
func (r *Runtime) Resolver() *resolve.Resolver   { return r.resolver }
func (r *Runtime) Factory() *resolve.Factory     { return r.factory }
func (r *Runtime) Attacher() *proxy.Attacher     { return r.attacher }
func (r *Runtime) Codec() *codec.Codec           { return r.codec }
func (r *Runtime) Hydrator() *hydrate.Hydrator   { return r.hydrator }
func (r *Runtime) Domain() *module.Domain        { return r.loader.Current() }
func (r *Runtime) Logger() *zap.Logger           { return r.log }

// RegisterNative registers a Go behavior type under a logical name.
func (r *Runtime) RegisterNative(name string, typ reflect.Type, opts ...resolve.NativeOption) error {
	return r.natives.Register(name, typ, opts...)
}

// LoadModule loads the module image at path, replacing the live module.
// onReady runs after the new module is live.
func (r *Runtime) LoadModule(ctx context.Context, path string, onReady func(*module.Domain)) (*module.Domain, error) {
	return r.load(ctx, onReady, func() (*module.Domain, error) {
		return r.loader.Load(ctx, path)
	})
}

// LoadModuleImage is LoadModule for an in-memory image. symbols may be nil.
func (r *Runtime) LoadModuleImage(ctx context.Context, name string, image, symbols []byte, onReady func(*module.Domain)) (*module.Domain, error) {
	return r.load(ctx, onReady, func() (*module.Domain, error) {
		return r.loader.LoadImage(ctx, name, image, symbols)
	})
}

func (r *Runtime) load(ctx context.Context, onReady func(*module.Domain), fn func() (*module.Domain, error)) (*module.Domain, error) {
	if r.attacher.InBatch() {
		return nil, errors.InvalidState(errors.PhaseLoad, "cannot reload the module while a batch is open")
	}
	prev := r.loader.Current()
	d, err := fn()
	if err != nil {
		return nil, err
	}
	r.cache.Invalidate(meta.UniverseModule)
	if prev != nil {
		r.log.Info("module replaced",
			zap.String("previous", prev.Name()),
			zap.Uint64("generation", d.Generation()))
	}
	if onReady != nil {
		onReady(d)
	}
	return d, nil
}

// CloseModule closes the live module. Names it defined stop resolving and
// handles taken from it become stale.
func (r *Runtime) CloseModule(ctx context.Context) error {
	if r.attacher.InBatch() {
		return errors.InvalidState(errors.PhaseLoad, "cannot close the module while a batch is open")
	}
	err := r.loader.Close(ctx)
	r.cache.Invalidate(meta.UniverseModule)
	return err
}

// Attach attaches a behavior of the logical type name to node.
func (r *Runtime) Attach(node wasmbridge.Node, typeName string, descs []hydrate.Descriptor) *proxy.Proxy {
	return r.attacher.Attach(node, typeName, descs)
}

// AttachRecords attaches a behavior whose fields come from persisted records.
func (r *Runtime) AttachRecords(node wasmbridge.Node, typeName string, recs []hydrate.Record, refs hydrate.RefFunc) (*proxy.Proxy, error) {
	descs, err := hydrate.Descriptors(recs, refs)
	if err != nil {
		return nil, err
	}
	return r.attacher.Attach(node, typeName, descs), nil
}

// BeginBatch opens or nests an attachment batch.
func (r *Runtime) BeginBatch() *proxy.Batch { return r.attacher.BeginBatch() }

// EndBatch closes the current batch and initializes its proxies when the
// outermost batch ends.
func (r *Runtime) EndBatch(ctx context.Context) error { return r.attacher.EndBatch(ctx) }

// LoadScene reads a scene file and instantiates it in one batch.
func (r *Runtime) LoadScene(ctx context.Context, path string) (*scene.Scene, error) {
	s, err := scene.Load(path)
	if err != nil {
		return nil, err
	}
	return s, s.Instantiate(ctx, r.attacher)
}

// Store opens the save store at Config.SavePath on first use.
func (r *Runtime) Store() (*savestore.Store, error) {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()
	if r.store != nil {
		return r.store, nil
	}
	if r.cfg.SavePath == "" {
		return nil, errors.NotInitialized(errors.PhaseStore, "save store")
	}
	s, err := savestore.Open(r.cfg.SavePath, r.codec)
	if err != nil {
		return nil, err
	}
	r.store = s
	return s, nil
}

// Close closes the store, the live module and the compilation cache.
func (r *Runtime) Close(ctx context.Context) error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	r.storeMu.Lock()
	if r.store != nil {
		keep(r.store.Close())
		r.store = nil
	}
	r.storeMu.Unlock()
	keep(r.loader.Close(ctx))
	keep(r.loader.CloseCache(ctx))
	_ = r.log.Sync()
	return first
}
