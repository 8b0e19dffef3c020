// Package errors provides structured error types for the bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The phases map onto the bridge's error taxonomy:
//
//	PhaseResolve   - ResolutionError, the logical type could not be resolved
//	PhaseConstruct - ConstructionError, the factory could not build an instance
//	PhaseHydrate   - FieldDecodeError, one field could not be decoded
//	PhaseEncode    - CodecError while writing text
//	PhaseDecode    - CodecError while reading text
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
//		Path("player", "speed").
//		Source("string").
//		Target("float32").
//		Detail("cannot convert").
//		Build()
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
