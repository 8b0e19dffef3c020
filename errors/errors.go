package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in the bridge the error occurred
type Phase string

const (
	PhaseResolve   Phase = "resolve"   // logical type to handle
	PhaseConstruct Phase = "construct" // instance factory
	PhaseHydrate   Phase = "hydrate"   // field descriptor decoding
	PhaseEncode    Phase = "encode"    // Go to text
	PhaseDecode    Phase = "decode"    // text to Go
	PhaseLoad      Phase = "load"      // module loading
	PhaseLifecycle Phase = "lifecycle" // hook forwarding and batching
	PhaseHost      Phase = "host"      // host functions called by guest code
	PhaseStore     Phase = "store"     // persisted save data
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch   Kind = "type_mismatch"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindUnsupported    Kind = "unsupported"
	KindFieldUnknown   Kind = "field_unknown"
	KindInvalidUTF8    Kind = "invalid_utf8"
	KindOverflow       Kind = "overflow"
	KindNilPointer     Kind = "nil_pointer"
	KindNotFound       Kind = "not_found"
	KindStale          Kind = "stale"
	KindNoConstructor  Kind = "no_constructor"
	KindDepthExceeded  Kind = "depth_exceeded"
	KindCycle          Kind = "cycle"
	KindInvalidState   Kind = "invalid_state"
	KindInvalidInput   Kind = "invalid_input"
	KindInstantiation  Kind = "instantiation"
	KindNotInitialized Kind = "not_initialized"
	KindConflict       Kind = "conflict"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Type   string // logical type involved
	Source string // source representation type
	Target string // target type
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	typed := e.Type != "" || e.Source != "" || e.Target != ""
	if typed {
		b.WriteString(": ")
		var parts []string
		if e.Type != "" {
			parts = append(parts, "type "+e.Type)
		}
		if e.Source != "" {
			parts = append(parts, "source "+e.Source)
		}
		if e.Target != "" {
			parts = append(parts, "target "+e.Target)
		}
		b.WriteString(strings.Join(parts, ", "))
	}

	if e.Detail != "" {
		if typed {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsPhase reports whether any error in err's chain is an *Error of the given phase.
func IsPhase(err error, phase Phase) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Phase == phase {
			return true
		}
		err = e.Cause
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the member path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the logical type name
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Source sets the source representation type
func (b *Builder) Source(t string) *Builder {
	b.err.Source = t
	return b
}

// Target sets the target type
func (b *Builder) Target(t string) *Builder {
	b.err.Target = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Resolution creates a ResolutionError for a logical type that could not be resolved.
func Resolution(name, detail string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindNotFound,
		Type:   name,
		Detail: detail,
	}
}

// Stale creates a ResolutionError for a handle from a closed module domain.
func Stale(name string, generation, live uint64) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindStale,
		Type:   name,
		Detail: fmt.Sprintf("handle generation %d, live generation %d", generation, live),
	}
}

// Construction creates a ConstructionError.
func Construction(kind Kind, name string, cause error, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  PhaseConstruct,
		Kind:   kind,
		Type:   name,
		Detail: detail,
		Cause:  cause,
	}
}

// FieldDecode creates a FieldDecodeError for one member.
func FieldDecode(kind Kind, key, tag, target string, detail string) *Error {
	return &Error{
		Phase:  PhaseHydrate,
		Kind:   kind,
		Path:   []string{key},
		Source: tag,
		Target: target,
		Detail: detail,
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, source, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Source: source,
		Target: target,
	}
}

// Unconvertible creates a CodecError for a leaf value no conversion applies to.
func Unconvertible(path []string, value any, source, target string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindTypeMismatch,
		Path:   path,
		Source: source,
		Target: target,
		Value:  value,
		Detail: fmt.Sprintf("can't assign value '%v' (type %s) to type %s", value, source, target),
	}
}

// DepthExceeded creates a CodecError for a graph nested deeper than allowed.
func DepthExceeded(phase Phase, path []string, max int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDepthExceeded,
		Path:   path,
		Detail: fmt.Sprintf("max allowed object depth %d reached", max),
		Value:  max,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// FieldUnknown creates an unknown member error
func FieldUnknown(phase Phase, path []string, typeName, member string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldUnknown,
		Path:   path,
		Type:   typeName,
		Detail: fmt.Sprintf("unknown member %q", member),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Target: targetType,
		Detail: fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:  value,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// InvalidState creates an error for an operation attempted at the wrong time.
func InvalidState(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidState,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotInitialized creates a not-initialized error for a missing module or instance
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Instantiation creates a module instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}
