package hydrate

import (
	"encoding/hex"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-bridge/errors"
)

// Record is the persisted form of a Descriptor.
type Record struct {
	Key    string `yaml:"key"`
	Type   string `yaml:"type"`
	Scalar string `yaml:"scalar,omitempty"`
	// Text carries long strings that do not fit the scalar buffer.
	Text     string     `yaml:"text,omitempty"`
	Ref      *RefRecord `yaml:"ref,omitempty"`
	Shape    string     `yaml:"shape,omitempty"`
	Elements []Record   `yaml:"elements,omitempty"`
}

// RefRecord points at another node's behavior.
type RefRecord struct {
	Node string `yaml:"node"`
	Type string `yaml:"type,omitempty"`
}

// RefFunc turns a RefRecord into a runtime reference, usually a Referent.
type RefFunc func(ref RefRecord) (any, error)

// NameFunc turns a runtime reference back into a RefRecord.
type NameFunc func(ref any) (RefRecord, bool)

// ParseRecords reads a YAML list of records.
func ParseRecords(data []byte) ([]Record, error) {
	var recs []Record
	if err := yaml.Unmarshal(data, &recs); err != nil {
		return nil, errors.New(errors.PhaseHydrate, errors.KindInvalidData).
			Cause(err).
			Detail("parse descriptor records").
			Build()
	}
	return recs, nil
}

// MarshalRecords writes records as YAML.
func MarshalRecords(recs []Record) ([]byte, error) {
	return yaml.Marshal(recs)
}

// Descriptors converts records, resolving references through refs. refs may
// be nil when no record carries a reference.
func Descriptors(recs []Record, refs RefFunc) ([]Descriptor, error) {
	out := make([]Descriptor, len(recs))
	for i, r := range recs {
		d, err := r.Descriptor(refs)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// Descriptor converts one record.
func (r Record) Descriptor(refs RefFunc) (Descriptor, error) {
	d := Descriptor{Key: r.Key, Type: r.Type}

	shape, err := ParseShape(r.Shape)
	if err != nil {
		return d, err
	}
	d.Shape = shape

	if r.Scalar != "" {
		raw, err := hex.DecodeString(strings.ReplaceAll(r.Scalar, " ", ""))
		if err != nil {
			return d, errors.FieldDecode(errors.KindInvalidData, r.Key, r.Type, "scalar", "scalar is not hex: "+err.Error())
		}
		if len(raw) > ScalarSize {
			return d, errors.FieldDecode(errors.KindOverflow, r.Key, r.Type, "scalar", "scalar longer than 16 bytes")
		}
		copy(d.Scalar[:], raw)
	}

	switch {
	case r.Ref != nil:
		if refs == nil {
			return d, errors.FieldDecode(errors.KindNotInitialized, r.Key, r.Type, "ref", "no reference resolver")
		}
		v, err := refs(*r.Ref)
		if err != nil {
			return d, err
		}
		d.Ref = v
	case r.Text != "":
		d.Ref = r.Text
	}

	if len(r.Elements) > 0 {
		d.Elements, err = Descriptors(r.Elements, refs)
		if err != nil {
			return d, err
		}
	}
	return d, nil
}

// Records converts descriptors back to records. Non-text references are
// named through name; a nil name or an unnamed reference is an error.
func Records(descs []Descriptor, name NameFunc) ([]Record, error) {
	out := make([]Record, len(descs))
	for i, d := range descs {
		r := Record{Key: d.Key, Type: d.Type}
		if d.Shape != ShapePlain {
			r.Shape = d.Shape.String()
		}
		if n := scalarLen(d.Scalar); n > 0 {
			r.Scalar = hex.EncodeToString(d.Scalar[:n])
		}
		switch ref := d.Ref.(type) {
		case nil:
		case string:
			r.Text = ref
		default:
			if name == nil {
				return nil, errors.FieldDecode(errors.KindUnsupported, d.Key, d.Type, "ref", "no reference namer")
			}
			rr, ok := name(ref)
			if !ok {
				return nil, errors.FieldDecode(errors.KindUnsupported, d.Key, d.Type, "ref", "reference has no node")
			}
			r.Ref = &rr
		}
		if len(d.Elements) > 0 {
			elems, err := Records(d.Elements, name)
			if err != nil {
				return nil, err
			}
			r.Elements = elems
		}
		out[i] = r
	}
	return out, nil
}

// scalarLen drops trailing zero bytes.
func scalarLen(buf [ScalarSize]byte) int {
	n := ScalarSize
	for n > 0 && buf[n-1] == 0 {
		n--
	}
	return n
}
