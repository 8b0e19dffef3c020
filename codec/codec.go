package codec

import (
	"context"
	"reflect"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/meta"
)

// DefaultMaxDepth bounds nesting unless WithMaxDepth overrides it.
const DefaultMaxDepth = 100

// TypeSource creates instances of bridged types by logical name.
type TypeSource interface {
	New(ctx context.Context, typeName string) (any, error)
}

// Codec converts between Go values and JSON.
type Codec struct {
	cache       *meta.Cache
	types       TypeSource
	custom      *table
	maxDepth    int
	skipUnknown bool
	indent      *pretty.Options
}

// Option configures a Codec.
type Option func(*Codec)

// WithMaxDepth sets the nesting bound. Values below 1 keep the default.
func WithMaxDepth(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// WithSkipUnknown ignores object keys that match no member.
func WithSkipUnknown(skip bool) Option {
	return func(c *Codec) { c.skipUnknown = skip }
}

// WithCache shares a metadata cache.
func WithCache(cache *meta.Cache) Option {
	return func(c *Codec) {
		if cache != nil {
			c.cache = cache
		}
	}
}

// WithTypes sets the source of module-typed instances.
func WithTypes(ts TypeSource) Option {
	return func(c *Codec) { c.types = ts }
}

// WithIndent sets the indentation used by MarshalIndent.
func WithIndent(indent string) Option {
	return func(c *Codec) {
		c.indent = &pretty.Options{Width: 80, Indent: indent}
	}
}

// New creates a codec.
func New(opts ...Option) *Codec {
	c := &Codec{
		cache:    meta.NewCache(),
		custom:   newTable(),
		maxDepth: DefaultMaxDepth,
		indent:   &pretty.Options{Width: 80, Indent: "  "},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache returns the metadata cache the codec walks types with.
func (c *Codec) Cache() *meta.Cache { return c.cache }

// MaxDepth returns the nesting bound.
func (c *Codec) MaxDepth() int { return c.maxDepth }

// Marshal encodes v as compact JSON.
func (c *Codec) Marshal(v any) ([]byte, error) {
	e := &encoder{codec: c, buf: getBuf()}
	defer putBuf(e.buf)

	if err := e.encode(reflect.ValueOf(v), 0); err != nil {
		return nil, err
	}
	out := make([]byte, len(*e.buf))
	copy(out, *e.buf)
	return out, nil
}

// MarshalIndent encodes v as indented JSON ending in a newline.
func (c *Codec) MarshalIndent(v any) ([]byte, error) {
	out, err := c.Marshal(v)
	if err != nil {
		return nil, err
	}
	return pretty.PrettyOptions(out, c.indent), nil
}

// Unmarshal decodes data into target, which must be a non-nil pointer or a
// module object.
func (c *Codec) Unmarshal(data []byte, target any) error {
	return c.UnmarshalContext(context.Background(), data, target)
}

// UnmarshalContext is Unmarshal with a context for module calls made while
// creating module-typed members.
func (c *Codec) UnmarshalContext(ctx context.Context, data []byte, target any) error {
	root, err := parse(data)
	if err != nil {
		return err
	}
	d := &decoder{codec: c, ctx: ctx}

	if isInstance(target) {
		return d.decodeInstance(root, target, 0)
	}

	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New(errors.PhaseDecode, errors.KindInvalidInput).
			Detail("target must be a non-nil pointer, got %T", target).
			Build()
	}
	return d.decode(root, rv.Elem(), 0)
}

// UnmarshalType creates an instance of typeName through the TypeSource and
// decodes data into it.
func (c *Codec) UnmarshalType(ctx context.Context, data []byte, typeName string) (any, error) {
	root, err := parse(data)
	if err != nil {
		return nil, err
	}
	d := &decoder{codec: c, ctx: ctx}
	v, err := d.instance(typeName)
	if err != nil {
		return nil, err
	}
	if err := d.decodeInstance(root, v, 0); err != nil {
		return nil, err
	}
	return v, nil
}

// Parse decodes data into a generic ordered tree.
func (c *Codec) Parse(data []byte) (*Data, error) {
	root, err := parse(data)
	if err != nil {
		return nil, err
	}
	d := &decoder{codec: c, ctx: context.Background()}
	return d.data(root, 0)
}

func parse(data []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("malformed JSON").
			Build()
	}
	return gjson.ParseBytes(data), nil
}

// isInstance reports whether v is a value whose metadata comes from a
// describer, such as a module object or its behavior adapter.
func isInstance(v any) bool {
	for {
		u, ok := v.(meta.Unwrapper)
		if !ok {
			break
		}
		v = u.Unwrap()
	}
	_, ok := v.(meta.Typed)
	return ok
}
