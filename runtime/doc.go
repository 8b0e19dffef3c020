// Package runtime wires the bridge together for a host.
//
// A Runtime owns the native type table, the module loader, the resolver and
// factory, the hydrator, the proxy attacher and the codec, all sharing one
// metadata cache.
//
//	cfg, err := runtime.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rt, err := runtime.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	_ = rt.RegisterNative("demo.Mover", reflect.TypeOf(demo.Mover{}))
//	if _, err := rt.LoadModule(ctx, "game.wasm", nil); err != nil {
//	    log.Fatal(err)
//	}
//
//	rt.BeginBatch()
//	p := rt.Attach(node, "Game.Spinner", descs)
//	_ = rt.EndBatch(ctx)
//	p.Update(ctx)
//
// # Reloading
//
// LoadModule closes the live module before loading the next one. Handles and
// instances taken from the old module report a stale error from then on, and
// the module half of the metadata cache is dropped. Reloading while a batch is
// open is refused.
//
// # Configuration
//
// LoadConfig reads BRIDGE_* environment variables; see Config.
package runtime
