package hydrate

import (
	"context"
	"reflect"
	"strings"
	"testing"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/demo"
	"github.com/wippyai/wasm-bridge/module"
)

func kindOf(err error) errors.Kind {
	k, _ := errors.KindOf(err)
	return k
}

type referent struct {
	value any
	err   error
	calls int
}

func (r *referent) Instance(context.Context) (any, error) {
	r.calls++
	return r.value, r.err
}

func TestDecodeScalar_Boundary(t *testing.T) {
	buf := EncodeInt32(-7)
	for i := 4; i < ScalarSize; i++ {
		buf[i] = 0xff
	}
	v, err := DecodeScalar(TagInt32, buf)
	if err != nil || v != int32(-7) {
		t.Errorf("int32 = %v, %v", v, err)
	}

	want := wasmbridge.Vector4{X: 1, Y: -2, Z: 3.5, W: 4}
	v, err = DecodeScalar(TagVector4, EncodeVector4(want))
	if err != nil || v != want {
		t.Errorf("vector4 = %v, %v", v, err)
	}

	tests := []struct {
		tag  Tag
		buf  [ScalarSize]byte
		want any
	}{
		{TagBool, EncodeBool(true), true},
		{TagInt64, EncodeInt64(-1 << 40), int64(-1 << 40)},
		{TagNumber32, EncodeNumber32(3.5), float32(3.5)},
		{TagNumber64, EncodeNumber64(0.1), 0.1},
		{TagVector2, EncodeVector2(wasmbridge.Vector2{X: 1, Y: 2}), wasmbridge.Vector2{X: 1, Y: 2}},
		{TagVector3, EncodeVector3(wasmbridge.Vector3{X: 1, Y: 2, Z: 3}), wasmbridge.Vector3{X: 1, Y: 2, Z: 3}},
		{TagColor, EncodeColor(wasmbridge.Color{R: 1, A: 0.5}), wasmbridge.Color{R: 1, A: 0.5}},
	}
	for _, tt := range tests {
		t.Run(string(tt.tag), func(t *testing.T) {
			v, err := DecodeScalar(tt.tag, tt.buf)
			if err != nil || v != tt.want {
				t.Errorf("DecodeScalar = %#v, %v; want %#v", v, err, tt.want)
			}
		})
	}
}

func TestTags(t *testing.T) {
	tests := []struct {
		declared string
		want     Tag
		ok       bool
		width    int
	}{
		{"number32", TagNumber32, true, 4},
		{"System.Single", TagNumber32, true, 4},
		{"System.Boolean", TagBool, true, 1},
		{"UnityEngine.Vector3", TagVector3, true, 12},
		{"UnityEngine.Color", TagColor, true, 16},
		{"System.Int64", TagInt64, true, 8},
		{"Game.Spinner", "", false, 0},
	}
	for _, tt := range tests {
		got, ok := CanonicalTag(tt.declared)
		if got != tt.want || ok != tt.ok || got.Width() != tt.width {
			t.Errorf("CanonicalTag(%q) = %q, %v, width %d", tt.declared, got, ok, got.Width())
		}
	}
}

func TestText(t *testing.T) {
	buf, err := EncodeText("sixteen bytes!!!")
	if err != nil {
		t.Fatalf("16 bytes: %v", err)
	}
	if v, _ := DecodeScalar(TagText, buf); v != "sixteen bytes!!!" {
		t.Errorf("full buffer = %q", v)
	}

	if _, err := EncodeText("seventeen bytes!!"); kindOf(err) != errors.KindOverflow {
		t.Errorf("17 bytes: %v", err)
	}

	buf, _ = EncodeText("hi")
	buf[5] = 'x'
	if v, _ := DecodeScalar(TagText, buf); v != "hi" {
		t.Errorf("NUL trim = %q", v)
	}

	var bad [ScalarSize]byte
	copy(bad[:], []byte{0xff, 0xfe})
	if _, err := DecodeScalar(TagText, bad); kindOf(err) != errors.KindInvalidUTF8 {
		t.Errorf("invalid UTF-8: %v", err)
	}
}

func TestHydrate_SpeedExample(t *testing.T) {
	m := &demo.Mover{}
	errs := New(nil).Hydrate(context.Background(), m, []Descriptor{
		Scalar("speed", TagNumber32, EncodeNumber32(3.5)),
	})
	if len(errs) != 0 {
		t.Fatalf("errors: %v", errs)
	}
	if m.Speed != 3.5 {
		t.Errorf("Speed = %v", m.Speed)
	}
}

func TestHydrate_Native(t *testing.T) {
	ctx := context.Background()
	ally := &demo.Mover{Label: "ally"}
	follow := &referent{value: ally}
	h := &demo.Health{Current: 9, Destroyed: false}

	label, _ := EncodeText("tank")
	descs := []Descriptor{
		Scalar("Max", "System.Int32", EncodeInt32(100)),
		Scalar("Regen", TagNumber32, EncodeNumber32(0.5)),
		Elements("Armor", string(TagInt32), ShapeList,
			Scalar("", "", EncodeInt32(3)),
			Scalar("", "", EncodeInt32(4))),
		Elements("Slots", string(TagNumber32), ShapeArray,
			Scalar("", "", EncodeNumber32(1)),
			Scalar("", "", EncodeNumber32(2)),
			Scalar("", "", EncodeNumber32(3))),
		Reference("Ally", "demo.Mover", ally),
		Reference("Follow", "demo.Mover", follow),
		Scalar("Shield", TagInt32, EncodeInt32(5)),
		Scalar("Destroyed", TagText, label),
		Scalar("Current", TagInt64, EncodeInt64(1<<40)),
	}

	errs := New(nil).Hydrate(ctx, h, descs)

	if h.Max != 100 || h.Regen != 0.5 {
		t.Errorf("Max = %d, Regen = %v", h.Max, h.Regen)
	}
	if !reflect.DeepEqual(h.Armor, []int16{3, 4}) {
		t.Errorf("Armor = %v", h.Armor)
	}
	if h.Slots != [3]float32{1, 2, 3} {
		t.Errorf("Slots = %v", h.Slots)
	}
	if h.Ally != ally || h.Follow != ally || follow.calls != 1 {
		t.Errorf("references: ally %p follow %v calls %d", h.Ally, h.Follow, follow.calls)
	}
	if h.Destroyed || h.Current != 9 {
		t.Errorf("failed fields changed: Destroyed %v Current %d", h.Destroyed, h.Current)
	}

	if len(errs) != 2 {
		t.Fatalf("errors = %v", errs)
	}
	for _, err := range errs {
		if !errors.IsPhase(err, errors.PhaseHydrate) || kindOf(err) != errors.KindTypeMismatch {
			t.Errorf("field error = %v", err)
		}
	}
}

func TestHydrate_Enums(t *testing.T) {
	m := &demo.Mover{Team: demo.TeamRed}
	errs := New(nil).Hydrate(context.Background(), m, []Descriptor{
		{Key: "Team", Type: "demo.Team", Scalar: EncodeInt32(int32(demo.TeamBlue))},
		{Key: "Label", Type: "System.String", Ref: strings.Repeat("long ", 8)},
		{Key: "Direction", Type: "UnityEngine.Vector3", Scalar: EncodeVector3(wasmbridge.Vector3{Y: 1})},
	})
	if len(errs) != 0 {
		t.Fatal(errs)
	}
	if m.Team != demo.TeamBlue {
		t.Errorf("Team = %v", m.Team)
	}
	if m.Label != strings.Repeat("long ", 8) {
		t.Errorf("Label = %q", m.Label)
	}
	if m.Direction != (wasmbridge.Vector3{Y: 1}) {
		t.Errorf("Direction = %v", m.Direction)
	}
}

func TestHydrate_NullReferenceKeepsDefault(t *testing.T) {
	ally := &demo.Mover{}
	h := &demo.Health{Ally: ally}
	errs := New(nil).Hydrate(context.Background(), h, []Descriptor{
		{Key: "Ally", Type: "demo.Mover"},
	})
	if len(errs) != 0 || h.Ally != ally {
		t.Errorf("Ally = %p, errs %v", h.Ally, errs)
	}
}

func TestHydrate_FieldErrors(t *testing.T) {
	tests := []struct {
		name string
		desc Descriptor
		kind errors.Kind
	}{
		{
			name: "array length",
			desc: Elements("Slots", string(TagNumber32), ShapeArray, Scalar("", "", EncodeNumber32(1))),
			kind: errors.KindOutOfBounds,
		},
		{
			name: "not a collection",
			desc: Elements("Max", string(TagInt32), ShapeList, Scalar("", "", EncodeInt32(1))),
			kind: errors.KindTypeMismatch,
		},
		{
			name: "cycle",
			desc: Reference("Follow", "Game.Spinner", &referent{err: errors.New(errors.PhaseLifecycle, errors.KindCycle).Build()}),
			kind: errors.KindCycle,
		},
		{
			name: "wrong reference",
			desc: Reference("Ally", "demo.Health", &demo.Health{}),
			kind: errors.KindTypeMismatch,
		},
		{
			name: "bad element",
			desc: Elements("Armor", string(TagInt32), ShapeList, Scalar("", "", EncodeInt32(1<<20))),
			kind: errors.KindTypeMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &demo.Health{}
			errs := New(nil, WithQuiet(true)).Hydrate(context.Background(), h, []Descriptor{
				tt.desc,
				Scalar("Max", TagInt32, EncodeInt32(7)),
			})
			if len(errs) != 1 || kindOf(errs[0]) != tt.kind {
				t.Fatalf("errors = %v, want one %s", errs, tt.kind)
			}
			if !errors.IsPhase(errs[0], errors.PhaseHydrate) {
				t.Errorf("phase of %v", errs[0])
			}
			if h.Max != 7 {
				t.Error("later field was not hydrated")
			}
		})
	}
}

func TestHydrate_ModuleObject(t *testing.T) {
	ctx := context.Background()
	l := module.NewLoader(module.Config{})
	t.Cleanup(func() {
		_ = l.Close(ctx)
		_ = l.CloseCache(ctx)
	})
	d, err := l.LoadImage(ctx, "demo.wasm", demo.Wasm(), nil)
	if err != nil {
		t.Fatal(err)
	}
	spinnerDef, _ := d.Type("Game.FastSpinner")
	followerDef, _ := d.Type("Game.Follower")
	spinner, err := d.Instantiate(ctx, spinnerDef)
	if err != nil {
		t.Fatal(err)
	}
	follower, err := d.Instantiate(ctx, followerDef)
	if err != nil {
		t.Fatal(err)
	}

	hy := New(nil)
	errs := hy.Hydrate(ctx, spinner, []Descriptor{
		Scalar("speed", TagNumber32, EncodeNumber32(3.5)),
		Scalar("boost", "System.Single", EncodeNumber32(2)),
		Scalar("axis", TagVector3, EncodeVector3(wasmbridge.Vector3{Z: 1})),
	})
	if len(errs) != 0 {
		t.Fatal(errs)
	}
	if v, _ := spinner.Get("speed"); v != float32(3.5) {
		t.Errorf("speed = %v", v)
	}

	errs = hy.Hydrate(ctx, follower.Adapter(), []Descriptor{
		Reference("target", "Game.Spinner", &referent{value: spinner}),
		Elements("waypoints", string(TagVector2), ShapeList,
			Scalar("", "", EncodeVector2(wasmbridge.Vector2{X: 1})),
			Scalar("", "", EncodeVector2(wasmbridge.Vector2{Y: 2}))),
		{Key: "label", Type: string(TagText), Elements: []Descriptor{
			{Ref: "a label longer "},
			{Ref: "than sixteen bytes"},
		}},
		{Key: "team", Type: "Team", Scalar: EncodeInt32(2)},
		Scalar("offset", TagInt32, EncodeInt32(4)),
	})
	if len(errs) != 0 {
		t.Fatal(errs)
	}

	if v, _ := follower.Get("target"); v != spinner {
		t.Errorf("target = %v", v)
	}
	wp, _ := follower.Get("waypoints")
	if !reflect.DeepEqual(wp, []wasmbridge.Vector2{{X: 1}, {Y: 2}}) {
		t.Errorf("waypoints = %v", wp)
	}
	if v, _ := follower.Get("label"); v != "a label longer than sixteen bytes" {
		t.Errorf("label = %v", v)
	}
	if v, _ := follower.Get("team"); v != module.Enum(2) {
		t.Errorf("team = %#v", v)
	}
	if v, _ := follower.Get("offset"); v != float32(4) {
		t.Errorf("offset = %#v", v)
	}
}

const recordsYAML = `
- key: speed
  type: number32
  scalar: "00006040"
- key: label
  type: text
  text: a label longer than sixteen bytes
- key: target
  type: Game.Spinner
  ref: {node: 4f1c, type: Game.Spinner}
- key: waypoints
  type: vector2
  shape: list
  elements:
    - {key: "", type: vector2, scalar: "0000803f"}
`

func TestRecords(t *testing.T) {
	recs, err := ParseRecords([]byte(recordsYAML))
	if err != nil {
		t.Fatal(err)
	}
	target := &referent{}
	refs := func(r RefRecord) (any, error) {
		if r.Node != "4f1c" {
			return nil, errors.Resolution(r.Type, "no node "+r.Node)
		}
		return target, nil
	}
	descs, err := Descriptors(recs, refs)
	if err != nil {
		t.Fatal(err)
	}

	if v, _ := DecodeScalar(TagNumber32, descs[0].Scalar); v != float32(3.5) {
		t.Errorf("speed = %v", v)
	}
	if descs[1].Ref != "a label longer than sixteen bytes" {
		t.Errorf("text = %v", descs[1].Ref)
	}
	if descs[2].Ref != target {
		t.Errorf("ref = %v", descs[2].Ref)
	}
	if descs[3].Shape != ShapeList || len(descs[3].Elements) != 1 {
		t.Fatalf("elements = %+v", descs[3])
	}
	if v, _ := DecodeScalar(TagVector2, descs[3].Elements[0].Scalar); v != (wasmbridge.Vector2{X: 1}) {
		t.Errorf("element = %v", v)
	}

	back, err := Records(descs, func(ref any) (RefRecord, bool) {
		return RefRecord{Node: "4f1c", Type: "Game.Spinner"}, ref == target
	})
	if err != nil {
		t.Fatal(err)
	}
	data, err := MarshalRecords(back)
	if err != nil {
		t.Fatal(err)
	}
	again, err := ParseRecords(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(again, recs) {
		t.Errorf("records changed on round trip\n got %+v\nwant %+v", again, recs)
	}
}

func TestRecords_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		kind errors.Kind
	}{
		{"not yaml", "key: [", errors.KindInvalidData},
		{"bad hex", "- {key: a, type: int32, scalar: zz}", errors.KindInvalidData},
		{"too long", `- {key: a, type: int32, scalar: "000000000000000000000000000000000000"}`, errors.KindOverflow},
		{"bad shape", "- {key: a, type: int32, shape: ring}", errors.KindInvalidInput},
		{"ref without resolver", "- {key: a, type: Game.Spinner, ref: {node: x}}", errors.KindNotInitialized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := ParseRecords([]byte(tt.yaml))
			if err == nil {
				_, err = Descriptors(recs, nil)
			}
			if kindOf(err) != tt.kind {
				t.Errorf("err = %v, want %s", err, tt.kind)
			}
		})
	}
}
