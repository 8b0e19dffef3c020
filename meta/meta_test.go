package meta

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
)

type inner struct {
	Health int32
	Armor  float32
}

type Mode uint8

type player struct {
	inner
	Name    string
	Speed   float32 `bridge:"move_speed"`
	Hidden  int     `bridge:"-"`
	Mode    Mode
	Tags    []string
	Slots   [3]int32
	Attrs   map[string]float64
	private int

	level int
}

func (p *player) Level() int     { return p.level }
func (p *player) SetLevel(v int) { p.level = v }
func (p *player) Title() string  { return "t" }

func TestCache_NativeMembers(t *testing.T) {
	c := NewCache()
	md := c.Of(reflect.TypeOf(player{}))

	if md.Shape != ShapeObject || md.Universe != UniverseNative {
		t.Fatalf("unexpected shape %s universe %s", md.Shape, md.Universe)
	}

	var names []string
	for _, m := range md.Members {
		names = append(names, m.Name)
	}
	want := []string{"Health", "Armor", "Name", "move_speed", "Mode", "Tags", "Slots", "Attrs", "Level"}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Errorf("members = %v, want %v", names, want)
	}

	level, ok := md.Member("Level")
	if !ok || level.Storage != StorageProperty {
		t.Fatalf("Level should be a property")
	}
}

func TestTypeMetadata_MemberLookup(t *testing.T) {
	md := NewCache().Of(reflect.TypeOf(&player{}))

	tests := []struct {
		key  string
		want string
	}{
		{"Name", "Name"},
		{"name", "Name"},
		{"move_speed", "move_speed"},
		{"moveSpeed", "move_speed"},
		{"health", "Health"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			m, ok := md.Member(tt.key)
			if !ok {
				t.Fatalf("member %q not found", tt.key)
			}
			if m.Name != tt.want {
				t.Errorf("Member(%q) = %s, want %s", tt.key, m.Name, tt.want)
			}
		})
	}

	if _, ok := md.Member("Hidden"); ok {
		t.Error("tagged '-' field should be hidden")
	}
	if _, ok := md.Member("private"); ok {
		t.Error("unexported field should be hidden")
	}
}

func TestMember_GetSet(t *testing.T) {
	p := &player{}
	md := NewCache().Of(reflect.TypeOf(p))
	obj := reflect.ValueOf(p)

	health, _ := md.Member("Health")
	if err := health.Set(obj, reflect.ValueOf(int32(42))); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if p.Health != 42 {
		t.Errorf("Health = %d", p.Health)
	}

	level, _ := md.Member("Level")
	if err := level.Set(obj, reflect.ValueOf(7)); err != nil {
		t.Fatalf("Set property: %v", err)
	}
	got, err := level.Get(obj)
	if err != nil || got.Int() != 7 {
		t.Errorf("Level = %v, %v", got, err)
	}

	if err := health.Set(obj, reflect.ValueOf("x")); err == nil {
		t.Error("expected type mismatch")
	}

	name, _ := md.Member("Name")
	p.Name = "before"
	if err := name.Set(obj, reflect.Value{}); err != nil {
		t.Fatal(err)
	}
	if p.Name != "" {
		t.Errorf("invalid value should reset to zero, got %q", p.Name)
	}
}

func TestMember_SetNonAddressable(t *testing.T) {
	md := NewCache().Of(reflect.TypeOf(player{}))
	health, _ := md.Member("Health")
	if err := health.Set(reflect.ValueOf(player{}), reflect.ValueOf(int32(1))); err == nil {
		t.Error("expected error for non-addressable owner")
	}
}

func TestCache_Shapes(t *testing.T) {
	c := NewCache()
	tests := []struct {
		name  string
		typ   reflect.Type
		shape Shape
		elem  reflect.Type
	}{
		{"slice", reflect.TypeOf([]int32{}), ShapeList, reflect.TypeOf(int32(0))},
		{"array", reflect.TypeOf([4]float32{}), ShapeArray, reflect.TypeOf(float32(0))},
		{"dict", reflect.TypeOf(map[string]bool{}), ShapeDictionary, reflect.TypeOf(false)},
		{"bytes", reflect.TypeOf([]byte{}), ShapeScalar, nil},
		{"enum", reflect.TypeOf(Mode(0)), ShapeEnum, nil},
		{"int", reflect.TypeOf(0), ShapeScalar, nil},
		{"any", reflect.TypeOf((*any)(nil)).Elem(), ShapeInterface, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := c.Of(tt.typ)
			if md.Shape != tt.shape {
				t.Errorf("shape = %s, want %s", md.Shape, tt.shape)
			}
			if md.Elem != tt.elem {
				t.Errorf("elem = %v, want %v", md.Elem, tt.elem)
			}
		})
	}
	if md := c.Of(reflect.TypeOf([4]float32{})); md.Len != 4 {
		t.Errorf("array len = %d", md.Len)
	}
}

type fakeModuleType struct {
	key   string
	calls int
}

func (f *fakeModuleType) MetadataKey() string { return f.key }

func (f *fakeModuleType) Describe() *TypeMetadata {
	f.calls++
	slot := reflect.New(reflect.TypeOf(float32(0))).Elem()
	return NewObject("Game.Spinner", []*Member{
		NewMember("speed", StorageField, slot.Type(),
			func(reflect.Value) (reflect.Value, error) { return slot, nil },
			func(_, v reflect.Value) error { slot.Set(v); return nil }),
	})
}

type fakeObject struct{ def *fakeModuleType }

func (o *fakeObject) TypeDescriber() Describer { return o.def }

type view struct{ obj *fakeObject }

func (v view) Unwrap() any { return v.obj }

func TestCache_ModuleTypes(t *testing.T) {
	c := NewCache()
	def := &fakeModuleType{key: "module:1:Game.Spinner"}

	md1 := c.Describe(def)
	md2 := c.Describe(def)
	if md1 != md2 || def.calls != 1 {
		t.Fatalf("expected memoized metadata, calls=%d", def.calls)
	}
	if md1.Universe != UniverseModule {
		t.Errorf("universe = %s", md1.Universe)
	}

	md, v := c.ForValue(view{obj: &fakeObject{def: def}})
	if md != md1 {
		t.Error("ForValue should unwrap to module metadata")
	}
	if _, ok := v.Interface().(*fakeObject); !ok {
		t.Errorf("ForValue value = %T", v.Interface())
	}

	c.Of(reflect.TypeOf(0))
	c.Invalidate(UniverseModule)
	if c.Len(UniverseModule) != 0 {
		t.Error("module universe should be empty after invalidate")
	}
	if c.Len(UniverseNative) != 1 {
		t.Error("native universe should survive module invalidation")
	}
	c.Describe(def)
	if def.calls != 2 {
		t.Errorf("expected re-describe after invalidate, calls=%d", def.calls)
	}
}

func TestCache_ConcurrentPopulate(t *testing.T) {
	c := NewCache()
	typ := reflect.TypeOf(player{})

	var wg sync.WaitGroup
	results := make([]*TypeMetadata, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Of(typ)
		}(i)
	}
	wg.Wait()

	for _, md := range results[1:] {
		if md != results[0] {
			t.Fatal("concurrent Of returned different metadata")
		}
	}
}

type settings struct {
	Volume float32
	Extra  map[string]any `bridge:",rest"`
}

func TestCache_RestMember(t *testing.T) {
	md := NewCache().Of(reflect.TypeOf(settings{}))
	if md.Rest == nil || md.Rest.Name != "Extra" {
		t.Fatalf("Rest = %+v", md.Rest)
	}
	if len(md.Members) != 1 {
		t.Errorf("rest map listed as a member: %d members", len(md.Members))
	}
	if !md.IsDictionary() {
		t.Error("struct with a rest map should absorb unknown keys")
	}
	if NewCache().Of(reflect.TypeOf(player{})).IsDictionary() {
		t.Error("plain struct reported as dictionary")
	}
}
