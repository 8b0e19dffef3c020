package runtime

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/hydrate"
	"github.com/wippyai/wasm-bridge/internal/demo"
	"github.com/wippyai/wasm-bridge/meta"
	"github.com/wippyai/wasm-bridge/module"
	"github.com/wippyai/wasm-bridge/proxy"
	"github.com/wippyai/wasm-bridge/resolve"
)

type node string

func (n node) ID() string                  { return string(n) }
func (n node) Name() string                { return string(n) }
func (n node) Parent() wasmbridge.Node     { return nil }
func (n node) Children() []wasmbridge.Node { return nil }

func kindOf(err error) errors.Kind {
	k, _ := errors.KindOf(err)
	return k
}

func newRuntime(t *testing.T, cfg Config) *Runtime {
	t.Helper()
	rt, err := New(cfg, WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	if err := rt.RegisterNative("demo.Mover", reflect.TypeOf(demo.Mover{})); err != nil {
		t.Fatal(err)
	}
	return rt
}

func TestLoadConfigFrom(t *testing.T) {
	cfg, err := LoadConfigFrom(map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("defaults = %+v", cfg)
	}

	cfg, err = LoadConfigFrom(map[string]string{
		"BRIDGE_MODE":               "native",
		"BRIDGE_MODULE":             "game.wasm",
		"BRIDGE_CODEC_MAX_DEPTH":    "12",
		"BRIDGE_CODEC_SKIP_UNKNOWN": "true",
		"BRIDGE_LOG_LEVEL":          "debug",
		"BRIDGE_MEMORY_LIMIT_PAGES": "32",
		"BRIDGE_SAVE_PATH":          "/tmp/saves.db",
		"BRIDGE_RELEASE":            "true",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		Mode:             resolve.ModeNative,
		Module:           "game.wasm",
		CodecMaxDepth:    12,
		CodecSkipUnknown: true,
		LogLevel:         "debug",
		MemoryLimitPages: 32,
		SavePath:         "/tmp/saves.db",
		Release:          true,
	}
	if cfg != want {
		t.Errorf("config = %+v", cfg)
	}

	if _, err := LoadConfigFrom(map[string]string{"BRIDGE_MODE": "hybrid"}); err == nil {
		t.Error("expected error for an unknown mode")
	}
	if _, err := NewLogger(Config{LogLevel: "loud"}); kindOf(err) != errors.KindInvalidInput {
		t.Errorf("NewLogger(loud) = %v", err)
	}
}

func TestCloseModule(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, DefaultConfig())

	var ready *module.Domain
	d, err := rt.LoadModuleImage(ctx, "demo.wasm", demo.Wasm(), nil, func(d *module.Domain) { ready = d })
	if err != nil {
		t.Fatal(err)
	}
	if ready != d || rt.Domain() != d {
		t.Fatal("onReady not called with the live module")
	}

	p := rt.Attach(node("a"), "Game.FastSpinner", []hydrate.Descriptor{
		hydrate.Scalar("speed", hydrate.TagNumber32, hydrate.EncodeNumber32(1)),
	})
	p.Update(ctx)
	if p.State() != proxy.StateReady {
		t.Fatalf("state %s (%v)", p.State(), p.Err())
	}
	if _, err := rt.Codec().Marshal(p.Bridged().Value); err != nil {
		t.Fatal(err)
	}
	if rt.Cache().Len(meta.UniverseModule) == 0 {
		t.Fatal("module metadata was not cached")
	}

	if err := rt.CloseModule(ctx); err != nil {
		t.Fatal(err)
	}
	if rt.Cache().Len(meta.UniverseModule) != 0 {
		t.Error("module metadata survived CloseModule")
	}

	_, err = rt.Resolver().ResolveType("Game.FastSpinner")
	if !errors.IsPhase(err, errors.PhaseResolve) || kindOf(err) != errors.KindNotFound {
		t.Errorf("resolve after close = %v", err)
	}
	if err := rt.Resolver().Check(p.Handle()); kindOf(err) != errors.KindStale {
		t.Errorf("old handle = %v", err)
	}

	q := rt.Attach(node("b"), "Game.FastSpinner", nil)
	q.Update(ctx)
	if q.State() != proxy.StateFailed || !errors.IsPhase(q.Err(), errors.PhaseResolve) {
		t.Errorf("attach after close: %s (%v)", q.State(), q.Err())
	}
}

func TestLoadModule_RefusedInBatch(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, DefaultConfig())

	rt.BeginBatch()
	if _, err := rt.LoadModuleImage(ctx, "demo.wasm", demo.Wasm(), nil, nil); kindOf(err) != errors.KindInvalidState {
		t.Errorf("LoadModule in batch = %v", err)
	}
	if err := rt.CloseModule(ctx); kindOf(err) != errors.KindInvalidState {
		t.Errorf("CloseModule in batch = %v", err)
	}
	if err := rt.EndBatch(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := rt.LoadModuleImage(ctx, "demo.wasm", demo.Wasm(), nil, nil); err != nil {
		t.Errorf("LoadModule after batch: %v", err)
	}
}

func TestLoadModule_File(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, DefaultConfig())
	dir := t.TempDir()

	wasmPath := filepath.Join(dir, "demo.wasm")
	if err := os.WriteFile(wasmPath, demo.Wasm(), 0o644); err != nil {
		t.Fatal(err)
	}
	first, err := rt.LoadModule(ctx, wasmPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Format() != module.FormatWasm || first.Symbols() != nil {
		t.Errorf("wasm module: format %s, symbols %v", first.Format(), first.Symbols())
	}

	luaPath := filepath.Join(dir, "demo.lua")
	if err := os.WriteFile(luaPath, demo.Lua(), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(luaPath+module.SymbolsSuffix, demo.Symbols(), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := rt.LoadModule(ctx, luaPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.Format() != module.FormatLua || second.Symbols() == nil {
		t.Errorf("lua module: format %s, symbols %v", second.Format(), second.Symbols())
	}
	if !first.Closed() || second.Generation() <= first.Generation() {
		t.Error("previous module not replaced")
	}

	if _, err := rt.LoadModule(ctx, filepath.Join(dir, "missing.wasm"), nil); !errors.IsPhase(err, errors.PhaseLoad) {
		t.Errorf("missing file = %v", err)
	}
}

func TestLoadScene(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, DefaultConfig())
	if _, err := rt.LoadModuleImage(ctx, "demo.wasm", demo.Wasm(), nil, nil); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "demo.yaml")
	if err := os.WriteFile(path, demo.Scene(), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := rt.LoadScene(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if rt.Attacher().InBatch() {
		t.Error("batch left open")
	}
	ps := s.Proxies()
	if len(ps) != 3 {
		t.Fatalf("proxies = %d", len(ps))
	}
	for _, p := range ps {
		if p.State() != proxy.StateReady {
			t.Errorf("%s: %s (%v)", p.TypeName(), p.State(), p.Err())
		}
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	rt := newRuntime(t, DefaultConfig())
	if _, err := rt.Store(); kindOf(err) != errors.KindNotInitialized {
		t.Errorf("Store without a path = %v", err)
	}

	cfg := DefaultConfig()
	cfg.SavePath = filepath.Join(t.TempDir(), "saves.db")
	rt = newRuntime(t, cfg)
	if _, err := rt.LoadModuleImage(ctx, "demo.wasm", demo.Wasm(), nil, nil); err != nil {
		t.Fatal(err)
	}
	st, err := rt.Store()
	if err != nil {
		t.Fatal(err)
	}
	if again, _ := rt.Store(); again != st {
		t.Error("Store opened twice")
	}

	v, err := rt.Factory().New(ctx, "Game.FastSpinner")
	if err != nil {
		t.Fatal(err)
	}
	obj := v.(*module.Object)
	if err := obj.Set("turns", int32(3)); err != nil {
		t.Fatal(err)
	}
	if err := st.Save(ctx, "spinner", obj); err != nil {
		t.Fatal(err)
	}

	// a reload keeps the type name resolvable, so the save still loads
	if _, err := rt.LoadModuleImage(ctx, "demo.wasm", demo.Wasm(), nil, nil); err != nil {
		t.Fatal(err)
	}
	back, err := st.LoadType(ctx, "spinner")
	if err != nil {
		t.Fatal(err)
	}
	got := back.(*module.Object)
	if got.Type().Generation() == obj.Type().Generation() {
		t.Error("loaded into the closed module")
	}
	if turns, _ := got.Get("turns"); turns != int32(3) {
		t.Errorf("turns = %v", turns)
	}
}
