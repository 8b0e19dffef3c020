// Package resource provides the handle tables a module domain shares with guest code.
//
// Guest code never sees Go pointers. Module objects and host nodes passed to
// hooks are stored in a Table and referred to by a Handle, a small integer
// that fits in a wasm i32 or a Lua number. Handle 0 is reserved and always
// invalid.
//
// # Kinds
//
// Each entry carries a Kind so a handle to a host node cannot be used where a
// module object is expected:
//
//	obj, ok := table.GetKind(h, resource.KindObject)
//
// # Lifecycle
//
// Remove drops an entry and calls Drop on values implementing Dropper.
// Observers receive EventCreated and EventDropped notifications. Close drops
// every remaining entry and rejects further inserts.
package resource
