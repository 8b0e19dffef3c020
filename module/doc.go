// Package module loads hot-swappable behavior modules and runs their types.
//
// A module image is either a WebAssembly binary executed by wazero or a Lua
// chunk executed by go-lua. Both describe the same thing: a list of types with
// typed fields, optional base types, an optional constructor and lifecycle
// hooks. A Loader owns at most one live Domain; loading a new image closes the
// previous one and bumps the generation, so type definitions from an earlier
// load report Valid() == false.
//
// # Wasm images
//
// The type manifest is JSON in the custom section "bridge.types":
//
//	{"types": [
//	  {"name": "Game.Spinner", "fields": [{"name": "speed", "type": "f32"}]},
//	  {"name": "Game.FastSpinner", "base": "Game.Spinner"}
//	]}
//
// Functions are exported as "<Type>#<fn>" where fn is "new" or a hook name such
// as "update" or "on_trigger_enter". Every export takes the object handle
// first. Field values live on the host; guest code reads and writes them
// through the "bridge" host module (get_f32, set_f32, get_component_f32, ...)
// passing the object handle and the field index.
//
// # Lua images
//
// The chunk returns a table of classes keyed by type name:
//
//	return {
//	  ["Game.Spinner"] = {
//	    fields = { {name = "speed", type = "f32"} },
//	    update = function(self) self.angle = self.angle + self.speed end,
//	  },
//	}
//
// Objects are Lua tables. Fields are copied into the table before a call and
// read back after it.
//
// # Debug symbols
//
// A YAML file named "<image>.sym" next to the image maps types and exports to
// source locations. When present, construction and hook errors name the
// location.
package module
