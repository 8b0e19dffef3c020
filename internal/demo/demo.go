// Package demo builds the sample modules and native behaviors used by the
// demo command and by tests across the repository.
package demo

import (
	"context"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/internal/wasmgen"
)

// Manifest is the type manifest embedded in the wasm image.
const Manifest = `{"types": [
  {"name": "Game.Spinner", "fields": [
    {"name": "speed", "type": "f32"},
    {"name": "angle", "type": "f32"},
    {"name": "axis", "type": "vec3"},
    {"name": "turns", "type": "s32"}
  ]},
  {"name": "Game.FastSpinner", "base": "Game.Spinner", "fields": [
    {"name": "boost", "type": "f32"}
  ]},
  {"name": "Game.Follower", "fields": [
    {"name": "target", "type": "Game.Spinner"},
    {"name": "offset", "type": "f32"},
    {"name": "waypoints", "type": "list<vec2>"},
    {"name": "label", "type": "string"},
    {"name": "team", "type": "enum<Team>"}
  ]},
  {"name": "Game.Mover", "wraps": "demo.Mover"},
  {"name": "Game.Broken", "fields": []}
]}`

// Field indices of Game.Spinner, inherited first by Game.FastSpinner.
const (
	fieldSpeed = 0
	fieldAngle = 1
	fieldTurns = 3
	fieldBoost = 4
)

const awakeMessage = "spinner awake"

// Wasm returns the demo module as a WebAssembly binary.
//
// Game.Spinner#new(self, speed) stores speed. Game.Spinner#update adds speed to
// angle and Game.FastSpinner#update adds speed*boost. on_trigger_enter counts
// turns. Game.Broken#update traps.
func Wasm() []byte {
	var (
		i32 = wasmgen.I32
		f32 = wasmgen.F32
	)

	m := wasmgen.New()
	getF32 := m.Import("bridge", "get_f32", []wasmgen.ValType{i32, i32}, []wasmgen.ValType{f32})
	setF32 := m.Import("bridge", "set_f32", []wasmgen.ValType{i32, i32, f32}, nil)
	getI32 := m.Import("bridge", "get_i32", []wasmgen.ValType{i32, i32}, []wasmgen.ValType{i32})
	setI32 := m.Import("bridge", "set_i32", []wasmgen.ValType{i32, i32, i32}, nil)
	logFn := m.Import("bridge", "log", []wasmgen.ValType{i32, i32}, nil)

	field := func(getter uint32, idx int32) []byte {
		var b []byte
		b = append(b, wasmgen.LocalGet(0)...)
		b = append(b, wasmgen.I32Const(idx)...)
		b = append(b, wasmgen.Call(getter)...)
		return b
	}

	m.Memory(1)
	m.Data(0, []byte(awakeMessage))

	ctor := m.Func([]wasmgen.ValType{i32, f32}, nil, nil,
		wasmgen.LocalGet(0), wasmgen.I32Const(fieldSpeed), wasmgen.LocalGet(1), wasmgen.Call(setF32))

	update := m.Func([]wasmgen.ValType{i32}, nil, nil,
		wasmgen.LocalGet(0), wasmgen.I32Const(fieldAngle),
		field(getF32, fieldAngle),
		field(getF32, fieldSpeed),
		wasmgen.F32Add,
		wasmgen.Call(setF32))

	fastUpdate := m.Func([]wasmgen.ValType{i32}, nil, nil,
		wasmgen.LocalGet(0), wasmgen.I32Const(fieldAngle),
		field(getF32, fieldAngle),
		field(getF32, fieldSpeed),
		field(getF32, fieldBoost),
		wasmgen.F32Mul,
		wasmgen.F32Add,
		wasmgen.Call(setF32))

	awake := m.Func([]wasmgen.ValType{i32}, nil, nil,
		wasmgen.I32Const(0), wasmgen.I32Const(int32(len(awakeMessage))), wasmgen.Call(logFn))

	trigger := m.Func([]wasmgen.ValType{i32, i32}, nil, nil,
		wasmgen.LocalGet(0), wasmgen.I32Const(fieldTurns),
		field(getI32, fieldTurns),
		wasmgen.I32Const(1),
		wasmgen.I32Add,
		wasmgen.Call(setI32))

	broken := m.Func([]wasmgen.ValType{i32}, nil, nil, wasmgen.Unreachable)

	m.Export("Game.Spinner#new", ctor)
	m.Export("Game.Spinner#update", update)
	m.Export("Game.Spinner#awake", awake)
	m.Export("Game.Spinner#on_trigger_enter", trigger)
	m.Export("Game.FastSpinner#update", fastUpdate)
	m.Export("Game.Broken#update", broken)
	m.Custom("bridge.types", []byte(Manifest))
	return m.Encode()
}

// Lua returns the demo module as a Lua chunk with the same types as Wasm.
func Lua() []byte {
	return []byte(luaSource)
}

const luaSource = `
local Spinner = {
  fields = {
    {name = "speed", type = "f32"},
    {name = "angle", type = "f32"},
    {name = "axis", type = "vec3"},
    {name = "turns", type = "s32"},
  },
  new = function(self, speed)
    self.speed = speed
  end,
  awake = function(self)
    bridge.log("spinner awake")
  end,
  update = function(self)
    self.angle = self.angle + self.speed
  end,
  on_trigger_enter = function(self, other)
    self.turns = self.turns + 1
  end,
}

return {
  ["Game.Spinner"] = Spinner,
  ["Game.FastSpinner"] = {
    base = "Game.Spinner",
    fields = { {"boost", "f32"} },
    update = function(self)
      self.angle = self.angle + self.speed * self.boost
    end,
  },
  ["Game.Follower"] = {
    fields = {
      {name = "target", type = "Game.Spinner"},
      {name = "offset", type = "f32"},
      {name = "waypoints", type = "list<vec2>"},
      {name = "label", type = "string"},
      {name = "team", type = "enum<Team>"},
    },
  },
  ["Game.Mover"] = { wraps = "demo.Mover" },
  ["Game.Broken"] = {
    fields = {},
    update = function(self)
      error("broken update")
    end,
  },
}
`

// Symbols returns debug symbols for the demo images.
func Symbols() []byte {
	return []byte(`module: demo
types:
  Game.Spinner: {file: spinner.src, line: 1}
  Game.Broken: {file: broken.src, line: 1}
functions:
  Game.Broken#update: {file: broken.src, line: 7}
`)
}

// Team is a native enumeration.
type Team int32

const (
	TeamNone Team = iota
	TeamRed
	TeamBlue
)

// Mover is a native behavior moving along Direction at Speed.
type Mover struct {
	wasmbridge.Base
	Speed     float32
	Direction wasmbridge.Vector3
	Position  wasmbridge.Vector3
	Label     string
	Team      Team
	Ticks     int
}

// Update advances the position by one step.
func (m *Mover) Update(context.Context) error {
	m.Ticks++
	m.Position.X += m.Direction.X * m.Speed
	m.Position.Y += m.Direction.Y * m.Speed
	m.Position.Z += m.Direction.Z * m.Speed
	return nil
}

// Health is a native behavior with a cross reference and a list.
type Health struct {
	wasmbridge.Base
	Max       int32
	Current   int32
	Regen     float64
	Armor     []int16
	Slots     [3]float32
	Ally      *Mover
	Follow    any
	Destroyed bool
}

// Awake fills current health.
func (h *Health) Awake(context.Context) error {
	if h.Current == 0 {
		h.Current = h.Max
	}
	return nil
}

// OnDestroy records teardown.
func (h *Health) OnDestroy(context.Context) error {
	h.Destroyed = true
	return nil
}

// SpinnerNode is the id of the spinner node in Scene.
const SpinnerNode = "7b3e9a52-0c4f-4d8e-9a61-2f5c8d1e4b70"

// Scene returns a scene document using the module types. The follower
// references the spinner, which carries a child attached after it.
func Scene() []byte {
	return []byte(`nodes:
  - name: follower
    behaviors:
      - type: Game.Follower
        fields:
          - key: target
            type: Game.Spinner
            ref: {node: ` + SpinnerNode + `, type: Game.FastSpinner}
          - {key: label, type: text, text: follows the spinner around}
          - {key: team, type: Team, scalar: "02"}
          - key: waypoints
            type: vector2
            shape: list
            elements:
              - {key: "", type: vector2, scalar: "0000803f00000040"}
  - id: ` + SpinnerNode + `
    name: spinner
    behaviors:
      - type: Game.FastSpinner
        fields:
          - {key: speed, type: number32, scalar: "00000040"}
          - {key: boost, type: System.Single, scalar: "0000c03f"}
    children:
      - name: mover
        behaviors:
          - type: Game.Mover
            fields:
              - {key: Speed, type: number32, scalar: "0000803f"}
              - {key: Direction, type: vector3, scalar: "0000803f"}
              - {key: Team, type: demo.Team, scalar: "01"}
`)
}
