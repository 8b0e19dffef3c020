package module

// Hook identifies a lifecycle function a module type may export.
type Hook uint8

const (
	HookAwake Hook = iota
	HookOnEnable
	HookStart
	HookOnDisable
	HookUpdate
	HookLateUpdate
	HookFixedUpdate
	HookOnDestroy
	HookOnTriggerEnter
	HookOnTriggerExit
	HookOnCollisionEnter
	HookOnCollisionExit
)

var hookNames = [...]string{
	"awake",
	"on_enable",
	"start",
	"on_disable",
	"update",
	"late_update",
	"fixed_update",
	"on_destroy",
	"on_trigger_enter",
	"on_trigger_exit",
	"on_collision_enter",
	"on_collision_exit",
}

// Hooks lists every hook in declaration order.
var Hooks = []Hook{
	HookAwake, HookOnEnable, HookStart, HookOnDisable, HookUpdate, HookLateUpdate,
	HookFixedUpdate, HookOnDestroy, HookOnTriggerEnter, HookOnTriggerExit,
	HookOnCollisionEnter, HookOnCollisionExit,
}

func (h Hook) String() string {
	if int(h) < len(hookNames) {
		return hookNames[h]
	}
	return "unknown"
}

// TakesNode reports whether the hook receives the other node's handle.
func (h Hook) TakesNode() bool { return h >= HookOnTriggerEnter }

// ctorName is the export suffix of a constructor.
const ctorName = "new"

// exportName joins a type name and a function name the way modules export them.
func exportName(typeName, fn string) string {
	return typeName + "#" + fn
}
