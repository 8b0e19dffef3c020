// Package wasmbridge lets a host attach behavior whose implementing type lives
// either in Go or in a hot-swappable module, without the host telling the two
// apart.
//
// # Architecture Overview
//
//	wasmbridge/          Behavior capability set, Node, value structs
//	├── runtime/         Facade: configuration, module lifecycle, attachment
//	├── module/          Module loader (WebAssembly via wazero, Lua via go-lua)
//	├── resolve/         Type resolver, type handles, instance factory
//	├── hydrate/         Field descriptor records and hydration
//	├── proxy/           Proxy state machine, batching, lookups
//	├── meta/            Per-type member metadata cache
//	├── codec/           Metadata-driven JSON codec
//	├── scene/           Scene documents attached as one batch
//	├── savestore/       Persisted game data in SQLite
//	├── resource/        Handle tables shared with guest code
//	└── errors/          Structured error types
//
// # Quick Start
//
//	cfg, _ := runtime.LoadConfig()
//	rt, err := runtime.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer rt.Close(ctx)
//
//	if err := rt.LoadModule(ctx, "game.wasm", nil); err != nil {
//		return err
//	}
//
//	batch := rt.BeginBatch()
//	p := rt.Attach(node, "Game.Spinner", descriptors)
//	rt.EndBatch(ctx)
//	_ = batch
//
//	p.Update(ctx)
//
// A behavior that fails to resolve or construct is disabled and logged; it
// never stops the host.
package wasmbridge
