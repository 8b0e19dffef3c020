package meta

import (
	"reflect"

	"github.com/wippyai/wasm-bridge/errors"
)

func errReadOnly(name, detail string) error {
	return errors.New(errors.PhaseHydrate, errors.KindUnsupported).
		Path(name).
		Detail("member %s", detail).
		Build()
}

func errAssign(name string, from, to reflect.Type) error {
	return errors.TypeMismatch(errors.PhaseHydrate, []string{name}, from.String(), to.String())
}

func errNotAddressable(t reflect.Type) error {
	return errors.New(errors.PhaseHydrate, errors.KindInvalidInput).
		Target(t.String()).
		Detail("owner is not addressable").
		Build()
}
