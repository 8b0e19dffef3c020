package meta

import (
	"reflect"
	"sync"
)

// Describer is implemented by module types that can describe their members.
type Describer interface {
	// MetadataKey identifies the type across the cache, including its load generation.
	MetadataKey() string
	Describe() *TypeMetadata
}

// Typed is implemented by values whose metadata comes from a Describer
// rather than from their Go type.
type Typed interface {
	TypeDescriber() Describer
}

// Unwrapper is implemented by views that stand in for another object,
// such as the behavior adapter of a module object.
type Unwrapper interface {
	Unwrap() any
}

// Cache memoizes TypeMetadata. Population happens under a mutex,
// lookups after population are lock-free.
type Cache struct {
	mu     sync.Mutex
	native sync.Map // reflect.Type -> *TypeMetadata
	module sync.Map // string -> *TypeMetadata
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Of returns metadata for a Go type. Pointer types describe their element.
func (c *Cache) Of(t reflect.Type) *TypeMetadata {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := c.native.Load(t); ok {
		return cached.(*TypeMetadata)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.native.Load(t); ok {
		return cached.(*TypeMetadata)
	}
	md := describeNative(t)
	c.native.Store(t, md)
	return md
}

// Describe returns metadata for a module type.
func (c *Cache) Describe(d Describer) *TypeMetadata {
	key := d.MetadataKey()
	if cached, ok := c.module.Load(key); ok {
		return cached.(*TypeMetadata)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.module.Load(key); ok {
		return cached.(*TypeMetadata)
	}
	md := d.Describe()
	c.module.Store(key, md)
	return md
}

// ForValue unwraps views and returns the metadata and value to walk.
func (c *Cache) ForValue(v any) (*TypeMetadata, reflect.Value) {
	for {
		u, ok := v.(Unwrapper)
		if !ok {
			break
		}
		v = u.Unwrap()
	}
	if typed, ok := v.(Typed); ok {
		return c.Describe(typed.TypeDescriber()), reflect.ValueOf(v)
	}
	rv := reflect.ValueOf(v)
	return c.Of(rv.Type()), rv
}

// Invalidate drops every cached entry of the given universe.
func (c *Cache) Invalidate(u Universe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	target := &c.native
	if u == UniverseModule {
		target = &c.module
	}
	target.Range(func(key, _ any) bool {
		target.Delete(key)
		return true
	})
}

// Len returns the number of cached entries of the given universe.
func (c *Cache) Len(u Universe) int {
	target := &c.native
	if u == UniverseModule {
		target = &c.module
	}
	n := 0
	target.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
