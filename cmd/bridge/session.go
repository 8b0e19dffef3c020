package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/internal/demo"
	"github.com/wippyai/wasm-bridge/module"
	"github.com/wippyai/wasm-bridge/proxy"
	"github.com/wippyai/wasm-bridge/resolve"
	"github.com/wippyai/wasm-bridge/runtime"
	"github.com/wippyai/wasm-bridge/scene"
)

// session is one runtime driving one scene.
type session struct {
	rt         *runtime.Runtime
	modulePath string
	scenePath  string
	scene      *scene.Scene
	ticks      int
}

func registerNatives(rt *runtime.Runtime) error {
	if err := resolve.RegisterType[demo.Mover](rt.Natives(), "demo.Mover", resolve.WithBases("Game.Movable")); err != nil {
		return err
	}
	return resolve.RegisterType[demo.Health](rt.Natives(), "demo.Health")
}

// newRuntime builds a runtime with the demo natives registered and loads
// modulePath, or the demo module when it is empty.
func newRuntime(ctx context.Context, cfg runtime.Config, log *zap.Logger, modulePath string) (*runtime.Runtime, error) {
	rt, err := runtime.New(cfg, runtime.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := registerNatives(rt); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	if err := loadModule(ctx, rt, modulePath); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return rt, nil
}

func loadModule(ctx context.Context, rt *runtime.Runtime, path string) error {
	ready := func(d *module.Domain) {
		rt.Logger().Debug("module ready", zap.String("module", d.Name()), zap.Int("types", len(d.Types())))
	}
	if path == "" {
		_, err := rt.LoadModuleImage(ctx, "demo.wasm", demo.Wasm(), demo.Symbols(), ready)
		return err
	}
	_, err := rt.LoadModule(ctx, path, ready)
	return err
}

func openSession(ctx context.Context, cfg runtime.Config, log *zap.Logger, modulePath, scenePath string) (*session, error) {
	rt, err := newRuntime(ctx, cfg, log, modulePath)
	if err != nil {
		return nil, err
	}
	s := &session{rt: rt, modulePath: modulePath, scenePath: scenePath}
	if err := s.instantiate(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *session) instantiate(ctx context.Context) error {
	data := demo.Scene()
	if s.scenePath != "" {
		raw, err := os.ReadFile(s.scenePath)
		if err != nil {
			return fmt.Errorf("read scene: %w", err)
		}
		data = raw
	}
	sc, err := scene.Parse(data)
	if err != nil {
		return err
	}
	if err := sc.Instantiate(ctx, s.rt.Attacher()); err != nil {
		return err
	}
	sc.Start(ctx)
	s.scene = sc
	return nil
}

func (s *session) tick(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		s.scene.Tick(ctx)
		s.ticks++
	}
}

// reload tears the scene down, reloads the module and builds the scene again.
func (s *session) reload(ctx context.Context) error {
	s.scene.Destroy(ctx)
	if err := loadModule(ctx, s.rt, s.modulePath); err != nil {
		return err
	}
	s.ticks = 0
	return s.instantiate(ctx)
}

func (s *session) node(name string) (*scene.Node, error) {
	n, ok := s.scene.FindByName(name)
	if !ok {
		return nil, fmt.Errorf("no node %q", name)
	}
	return n, nil
}

func (s *session) setEnabled(ctx context.Context, name string, enabled bool) error {
	n, err := s.node(name)
	if err != nil {
		return err
	}
	for _, p := range n.Proxies() {
		if enabled {
			p.OnEnable(ctx)
		} else {
			p.OnDisable(ctx)
		}
	}
	return nil
}

// save stores the first ready behavior of the named node under its name.
func (s *session) save(ctx context.Context, name string) (string, error) {
	n, err := s.node(name)
	if err != nil {
		return "", err
	}
	st, err := s.rt.Store()
	if err != nil {
		return "", err
	}
	for _, p := range n.Proxies() {
		if p.State() != proxy.StateReady {
			continue
		}
		if err := st.Save(ctx, name, p.Bridged().Value); err != nil {
			return "", err
		}
		return p.TypeName(), nil
	}
	return "", fmt.Errorf("node %q has no ready behavior", name)
}

func (s *session) keys(ctx context.Context) ([]string, error) {
	st, err := s.rt.Store()
	if err != nil {
		return nil, err
	}
	return st.Keys(ctx, "")
}

// snapshot renders every behavior's state as indented JSON.
func (s *session) snapshot() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tick %d\n", s.ticks)
	for _, n := range s.scene.Nodes() {
		depth := 0
		for p := n.Parent(); p != nil; p = p.Parent() {
			depth++
		}
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(&b, "%s%s %s\n", indent, nodeStyle.Render(n.Name()), idStyle.Render(n.ID()[:8]))
		for _, p := range n.Proxies() {
			fmt.Fprintf(&b, "%s  %s %s\n", indent, typeStyle.Render(p.TypeName()), stateStyle(p.State()).Render(p.State().String()))
			if p.State() != proxy.StateReady {
				if p.Err() != nil {
					fmt.Fprintf(&b, "%s    %s\n", indent, errorStyle.Render(p.Err().Error()))
				}
				continue
			}
			data, err := s.rt.Codec().MarshalIndent(p.Bridged().Value)
			if err != nil {
				fmt.Fprintf(&b, "%s    %s\n", indent, errorStyle.Render(err.Error()))
				continue
			}
			for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
				fmt.Fprintf(&b, "%s    %s\n", indent, line)
			}
		}
	}
	return b.String()
}

func (s *session) close(ctx context.Context) error {
	if s.scene != nil {
		s.scene.Destroy(ctx)
	}
	return s.rt.Close(ctx)
}

func sortedTypes(d *module.Domain) []*module.TypeDef {
	types := append([]*module.TypeDef(nil), d.Types()...)
	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	return types
}
