package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseDecode,
				Kind:   KindTypeMismatch,
				Path:   []string{"player", "stats", "speed"},
				Source: "string",
				Target: "float32",
				Detail: "cannot convert",
			},
			contains: []string{"[decode]", "type_mismatch", "player.stats.speed", "source string", "target float32", "cannot convert"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseHydrate,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[hydrate]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindInvalidData,
				Detail: "bad image",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[load]", "invalid_data", "bad image", "caused by", "underlying error"},
		},
		{
			name:     "resolution",
			err:      Resolution("Game.Spinner", "no module loaded"),
			contains: []string{"[resolve]", "not_found", "type Game.Spinner", "no module loaded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(PhaseLoad, KindInstantiation, cause, "instantiate")

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestError_Is(t *testing.T) {
	err := Stale("Game.Spinner", 1, 2)

	if !errors.Is(err, &Error{Phase: PhaseResolve, Kind: KindStale}) {
		t.Error("same phase and kind should match")
	}
	if errors.Is(err, &Error{Phase: PhaseResolve, Kind: KindNotFound}) {
		t.Error("different kind should not match")
	}
	if errors.Is(err, &Error{Phase: PhaseConstruct, Kind: KindStale}) {
		t.Error("different phase should not match")
	}
}

func TestIsPhase(t *testing.T) {
	inner := Resolution("Game.Missing", "")
	outer := Construction(KindNotFound, "Game.Missing", inner, "resolve dependency")
	wrapped := fmt.Errorf("attach: %w", outer)

	if !IsPhase(wrapped, PhaseConstruct) {
		t.Error("expected construct phase")
	}
	if !IsPhase(wrapped, PhaseResolve) {
		t.Error("expected resolve phase in cause chain")
	}
	if IsPhase(wrapped, PhaseDecode) {
		t.Error("decode phase should not match")
	}
	if IsPhase(errors.New("plain"), PhaseResolve) {
		t.Error("plain error has no phase")
	}
}

func TestKindOf(t *testing.T) {
	k, ok := KindOf(fmt.Errorf("x: %w", DepthExceeded(PhaseEncode, nil, 3)))
	if !ok || k != KindDepthExceeded {
		t.Errorf("KindOf = %v, %v", k, ok)
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("plain error should have no kind")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseDecode, KindFieldUnknown).
		Path("a", "b").
		Type("Game.Player").
		Source("string").
		Target("int32").
		Value("x").
		Detail("member %q", "hp").
		Build()

	if err.Phase != PhaseDecode || err.Kind != KindFieldUnknown {
		t.Errorf("unexpected phase/kind %s/%s", err.Phase, err.Kind)
	}
	if len(err.Path) != 2 || err.Type != "Game.Player" || err.Value != "x" {
		t.Errorf("unexpected builder result %+v", err)
	}
	if err.Detail != `member "hp"` {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestUnconvertible(t *testing.T) {
	err := Unconvertible([]string{"speed"}, "fast", "string", "float32")
	msg := err.Error()
	for _, s := range []string{"'fast'", "type string", "type float32"} {
		if !strings.Contains(msg, s) {
			t.Errorf("message %q missing %q", msg, s)
		}
	}
}

func TestInvalidUTF8_Preview(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = 0xff
	}
	err := InvalidUTF8(PhaseHydrate, []string{"name"}, data)
	if strings.Count(err.Detail, "ff") != 32 {
		t.Errorf("expected 32 byte preview, got %q", err.Detail)
	}
}
