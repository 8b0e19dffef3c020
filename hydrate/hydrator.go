package hydrate

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/coerce"
	"github.com/wippyai/wasm-bridge/meta"
)

// Referent is a reference that must be initialized before use, such as a
// proxy created in the same batch. Instance returns the value to assign.
type Referent interface {
	Instance(ctx context.Context) (any, error)
}

// TypedReferent is a Referent that knows its resolved logical type once
// Instance has returned.
type TypedReferent interface {
	Referent
	TypeName() string
	IsA(name string) bool
}

// Hydrator applies descriptors using cached member metadata.
type Hydrator struct {
	cache *meta.Cache
	quiet bool
}

// Option configures a Hydrator.
type Option func(*Hydrator)

// WithQuiet drops per-field debug diagnostics. Decode failures are still logged.
func WithQuiet(quiet bool) Option {
	return func(h *Hydrator) { h.quiet = quiet }
}

// New creates a hydrator. A nil cache gets a private one.
func New(cache *meta.Cache, opts ...Option) *Hydrator {
	if cache == nil {
		cache = meta.NewCache()
	}
	h := &Hydrator{cache: cache}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hydrate applies descs to target in order and returns the field errors it
// logged. Missing members are skipped. A failed field keeps its value.
func (h *Hydrator) Hydrate(ctx context.Context, target any, descs []Descriptor) []error {
	md, owner := h.cache.ForValue(target)
	log := Logger().With(zap.String("type", md.Name))

	var failed []error
	for _, d := range descs {
		m, ok := md.Member(d.Key)
		if !ok || !m.CanWrite() {
			if !h.quiet {
				log.Debug("skip descriptor without member", zap.String("key", d.Key))
			}
			continue
		}

		bridged := m.TypeName
		if d.Shape != ShapePlain {
			bridged = m.ElemTypeName
		}
		v, err := h.decode(ctx, d, m.Type, bridged)
		if err == nil && v.IsValid() {
			if serr := m.Set(owner, v); serr != nil {
				err = fieldError(d, m.Type, serr)
			}
		}
		if err != nil {
			log.Warn("field decode failed", zap.String("key", d.Key), zap.Error(err))
			failed = append(failed, err)
		}
	}
	return failed
}

// decode returns the value for d converted to t. bridged is the member's
// logical type, if any. An invalid value without an error means the member
// keeps its default.
func (h *Hydrator) decode(ctx context.Context, d Descriptor, t reflect.Type, bridged string) (reflect.Value, error) {
	if d.Shape != ShapePlain {
		return h.decodeElements(ctx, d, t, bridged)
	}

	if tag, ok := CanonicalTag(d.Type); ok {
		var (
			raw any
			err error
		)
		if tag == TagText {
			raw, err = textOf(d)
		} else {
			raw, err = DecodeScalar(tag, d.Scalar)
		}
		if err != nil {
			return reflect.Value{}, fieldError(d, t, err)
		}
		return convert(d, raw, t)
	}

	if d.Ref != nil {
		ref := d.Ref
		if r, ok := ref.(Referent); ok {
			v, err := r.Instance(ctx)
			if err != nil {
				return reflect.Value{}, fieldError(d, t, err)
			}
			if err := checkReferent(d, r, bridged); err != nil {
				return reflect.Value{}, err
			}
			ref = v
		}
		if ref == nil {
			return reflect.Zero(t), nil
		}
		return convert(d, ref, t)
	}

	if meta.IsEnum(t) {
		raw, _ := DecodeScalar(TagInt32, d.Scalar)
		return convert(d, raw, t)
	}
	return reflect.Value{}, nil
}

// checkReferent rejects a typed referent that is neither the descriptor's
// declared type nor the member's logical type.
func checkReferent(d Descriptor, r Referent, bridged string) error {
	tr, ok := r.(TypedReferent)
	if !ok {
		return nil
	}
	for _, want := range []string{d.Type, bridged} {
		if want != "" && !tr.IsA(want) {
			return errors.FieldDecode(errors.KindTypeMismatch, d.Key, tr.TypeName(), want,
				"referenced behavior is a "+tr.TypeName())
		}
	}
	return nil
}

// textOf reads long text from Ref, chunked text from Elements, and short
// text from the scalar buffer.
func textOf(d Descriptor) (string, error) {
	if s, ok := d.Ref.(string); ok {
		if !utf8.ValidString(s) {
			return "", errors.InvalidUTF8(errors.PhaseHydrate, nil, []byte(s))
		}
		return s, nil
	}
	if len(d.Elements) > 0 {
		var b strings.Builder
		for _, e := range d.Elements {
			part, err := textOf(e)
			if err != nil {
				return "", err
			}
			b.WriteString(part)
		}
		return b.String(), nil
	}
	return decodeText(d.Scalar[:])
}

func (h *Hydrator) decodeElements(ctx context.Context, d Descriptor, t reflect.Type, bridged string) (reflect.Value, error) {
	n := len(d.Elements)
	var out reflect.Value
	switch {
	case t.Kind() == reflect.Array:
		if n != t.Len() {
			return reflect.Value{}, fieldError(d, t,
				errors.OutOfBounds(errors.PhaseHydrate, []string{d.Key}, n, t.Len()))
		}
		out = reflect.New(t).Elem()
	case t.Kind() == reflect.Slice && d.Shape == ShapeArray:
		out = reflect.MakeSlice(t, n, n)
	case t.Kind() == reflect.Slice:
		out = reflect.MakeSlice(t, 0, n)
	default:
		return reflect.Value{}, errors.FieldDecode(errors.KindTypeMismatch, d.Key, d.Shape.String(), t.String(),
			"member is not a collection")
	}

	et := t.Elem()
	for i, e := range d.Elements {
		if e.Key == "" {
			e.Key = d.Key + "[" + strconv.Itoa(i) + "]"
		}
		if e.Type == "" {
			e.Type = d.Type
		}
		v, err := h.decode(ctx, e, et, bridged)
		if err != nil {
			return reflect.Value{}, err
		}
		if !v.IsValid() {
			v = reflect.Zero(et)
		}
		if out.Kind() == reflect.Slice && d.Shape == ShapeList {
			out = reflect.Append(out, v)
		} else {
			out.Index(i).Set(v)
		}
	}
	return out, nil
}

// convert assigns raw to t directly, through numeric coercion, or through a
// same-kind conversion such as a named string type.
func convert(d Descriptor, raw any, t reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(raw)
	if rv.Type().AssignableTo(t) {
		if t.Kind() == reflect.Interface {
			out := reflect.New(t).Elem()
			out.Set(rv)
			return out, nil
		}
		return rv, nil
	}
	if nv, ok := coerce.Numeric(rv, t); ok {
		return nv, nil
	}
	if rv.Kind() == t.Kind() && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, errors.FieldDecode(errors.KindTypeMismatch, d.Key, d.Type, t.String(),
		fmt.Sprintf("cannot assign %T", raw))
}

// fieldError turns err into a FieldDecodeError for d, keeping its kind.
func fieldError(d Descriptor, t reflect.Type, err error) error {
	var e *errors.Error
	if stderrors.As(err, &e) && e.Phase == errors.PhaseHydrate && len(e.Path) > 0 {
		return e
	}
	kind, ok := errors.KindOf(err)
	if !ok {
		kind = errors.KindInvalidData
	}
	fe := errors.FieldDecode(kind, d.Key, d.Type, t.String(), "")
	fe.Cause = err
	return fe
}
