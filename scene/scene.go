package scene

import (
	"context"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/hydrate"
	"github.com/wippyai/wasm-bridge/proxy"
)

// Document is the YAML form of a scene.
type Document struct {
	Nodes []NodeSpec `yaml:"nodes"`
}

// NodeSpec declares one node.
type NodeSpec struct {
	ID        string         `yaml:"id,omitempty"`
	Name      string         `yaml:"name"`
	Behaviors []BehaviorSpec `yaml:"behaviors,omitempty"`
	Children  []NodeSpec     `yaml:"children,omitempty"`
}

// BehaviorSpec attaches one behavior with its persisted field records.
type BehaviorSpec struct {
	Type   string           `yaml:"type"`
	Fields []hydrate.Record `yaml:"fields,omitempty"`
}

// Node is a host node of a loaded scene.
type Node struct {
	id        uuid.UUID
	name      string
	parent    *Node
	children  []*Node
	behaviors []BehaviorSpec
	proxies   []*proxy.Proxy
}

var _ wasmbridge.Node = (*Node)(nil)

func (n *Node) ID() string   { return n.id.String() }
func (n *Node) Name() string { return n.name }

// UUID returns the node id.
func (n *Node) UUID() uuid.UUID { return n.id }

func (n *Node) Parent() wasmbridge.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *Node) Children() []wasmbridge.Node {
	out := make([]wasmbridge.Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// Proxies returns the behaviors attached by Instantiate.
func (n *Node) Proxies() []*proxy.Proxy { return n.proxies }

// Scene is a loaded node tree.
type Scene struct {
	roots []*Node
	nodes []*Node // preorder
	byID  map[uuid.UUID]*Node
}

// Parse reads a scene document.
func Parse(data []byte) (*Scene, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Load("parse scene", err)
	}
	s := &Scene{byID: make(map[uuid.UUID]*Node)}
	for _, spec := range doc.Nodes {
		n, err := s.build(spec, nil)
		if err != nil {
			return nil, err
		}
		s.roots = append(s.roots, n)
	}
	return s, nil
}

// Load reads a scene file.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read scene", err)
	}
	return Parse(data)
}

func (s *Scene) build(spec NodeSpec, parent *Node) (*Node, error) {
	id := uuid.New()
	if spec.ID != "" {
		parsed, err := uuid.Parse(spec.ID)
		if err != nil {
			return nil, errors.Load("node "+spec.Name+" has an invalid id", err)
		}
		id = parsed
	}
	if _, dup := s.byID[id]; dup {
		return nil, errors.Load("duplicate node id "+id.String(), nil)
	}

	n := &Node{id: id, name: spec.Name, parent: parent, behaviors: spec.Behaviors}
	s.byID[id] = n
	s.nodes = append(s.nodes, n)
	for _, c := range spec.Children {
		child, err := s.build(c, n)
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, child)
	}
	return n, nil
}

// Roots returns the top-level nodes.
func (s *Scene) Roots() []*Node { return s.roots }

// Nodes returns every node in preorder.
func (s *Scene) Nodes() []*Node { return s.nodes }

// Find returns the node with the given id.
func (s *Scene) Find(id string) (*Node, bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return nil, false
	}
	n, ok := s.byID[u]
	return n, ok
}

// FindByName returns the first node in preorder with the given name.
func (s *Scene) FindByName(name string) (*Node, bool) {
	for _, n := range s.nodes {
		if n.name == name {
			return n, true
		}
	}
	return nil, false
}

// Instantiate attaches every behavior inside one batch. Malformed field
// records are reported after the batch has been closed.
func (s *Scene) Instantiate(ctx context.Context, a *proxy.Attacher) error {
	a.BeginBatch()
	err := s.attachAll(a)
	if endErr := a.EndBatch(ctx); err == nil {
		err = endErr
	}
	return err
}

func (s *Scene) attachAll(a *proxy.Attacher) error {
	refs := func(r hydrate.RefRecord) (any, error) {
		n, ok := s.Find(r.Node)
		if !ok {
			return nil, errors.Resolution(r.Type, "no node "+r.Node)
		}
		return &nodeRef{attacher: a, node: n, typeName: r.Type}, nil
	}
	for _, n := range s.nodes {
		for _, b := range n.behaviors {
			descs, err := hydrate.Descriptors(b.Fields, refs)
			if err != nil {
				return errors.Load("behavior "+b.Type+" on node "+n.name, err)
			}
			n.proxies = append(n.proxies, a.Attach(n, b.Type, descs))
		}
	}
	return nil
}

// Proxies returns every attached behavior in node order.
func (s *Scene) Proxies() []*proxy.Proxy {
	var out []*proxy.Proxy
	for _, n := range s.nodes {
		out = append(out, n.proxies...)
	}
	return out
}

// Start runs Awake, OnEnable and Start on every behavior.
func (s *Scene) Start(ctx context.Context) {
	for _, p := range s.Proxies() {
		p.Awake(ctx)
	}
	for _, p := range s.Proxies() {
		p.OnEnable(ctx)
		p.Start(ctx)
	}
}

// Tick runs one frame: FixedUpdate, Update and LateUpdate.
func (s *Scene) Tick(ctx context.Context) {
	ps := s.Proxies()
	for _, p := range ps {
		p.FixedUpdate(ctx)
	}
	for _, p := range ps {
		p.Update(ctx)
	}
	for _, p := range ps {
		p.LateUpdate(ctx)
	}
}

// Destroy runs OnDestroy on every behavior and detaches them.
func (s *Scene) Destroy(ctx context.Context) {
	for _, n := range s.nodes {
		for _, p := range n.proxies {
			p.OnDestroy(ctx)
		}
		n.proxies = nil
	}
}

// nodeRef is a field reference to a behavior on another node. It is looked
// up when the referencing behavior hydrates, so the target may be attached
// later in the same batch.
type nodeRef struct {
	attacher *proxy.Attacher
	node     *Node
	typeName string
	p        *proxy.Proxy
}

func (r *nodeRef) Instance(ctx context.Context) (any, error) {
	p, ok := r.attacher.Lookup(r.node, r.typeName)
	if !ok && r.typeName != "" {
		p = r.attacher.Get(ctx, r.node, r.typeName)
		ok = p != nil
	}
	if !ok {
		return nil, errors.Resolution(r.typeName, "no behavior on node "+r.node.name)
	}
	r.p = p
	return p.Instance(ctx)
}

func (r *nodeRef) TypeName() string {
	if r.p == nil {
		return r.typeName
	}
	return r.p.TypeName()
}

func (r *nodeRef) IsA(name string) bool { return r.p != nil && r.p.IsA(name) }
