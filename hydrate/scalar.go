package hydrate

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

// EncodeBool encodes a bool tag.
func EncodeBool(v bool) (buf [ScalarSize]byte) {
	if v {
		buf[0] = 1
	}
	return buf
}

// EncodeInt32 encodes an int32 tag.
func EncodeInt32(v int32) (buf [ScalarSize]byte) {
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return buf
}

// EncodeInt64 encodes an int64 tag.
func EncodeInt64(v int64) (buf [ScalarSize]byte) {
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return buf
}

// EncodeNumber32 encodes a number32 tag.
func EncodeNumber32(v float32) (buf [ScalarSize]byte) {
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	return buf
}

// EncodeNumber64 encodes a number64 tag.
func EncodeNumber64(v float64) (buf [ScalarSize]byte) {
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	return buf
}

func putFloats(fs ...float32) (buf [ScalarSize]byte) {
	for i, f := range fs {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// EncodeVector2 encodes a vector2 tag.
func EncodeVector2(v wasmbridge.Vector2) [ScalarSize]byte { return putFloats(v.X, v.Y) }

// EncodeVector3 encodes a vector3 tag.
func EncodeVector3(v wasmbridge.Vector3) [ScalarSize]byte { return putFloats(v.X, v.Y, v.Z) }

// EncodeVector4 encodes a vector4 tag.
func EncodeVector4(v wasmbridge.Vector4) [ScalarSize]byte { return putFloats(v.X, v.Y, v.Z, v.W) }

// EncodeColor encodes a color tag.
func EncodeColor(c wasmbridge.Color) [ScalarSize]byte { return putFloats(c.R, c.G, c.B, c.A) }

// EncodeText encodes short text. Text longer than the buffer is refused;
// callers put it in Descriptor.Ref or split it across Elements instead.
func EncodeText(s string) ([ScalarSize]byte, error) {
	var buf [ScalarSize]byte
	if len(s) > ScalarSize {
		return buf, errors.New(errors.PhaseHydrate, errors.KindOverflow).
			Source(string(TagText)).
			Value(len(s)).
			Detail("%d bytes do not fit the %d-byte scalar buffer", len(s), ScalarSize).
			Build()
	}
	copy(buf[:], s)
	return buf, nil
}

func floats(buf [ScalarSize]byte, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

// DecodeScalar reads a tag's value from the first Width() bytes of buf.
func DecodeScalar(tag Tag, buf [ScalarSize]byte) (any, error) {
	switch tag {
	case TagBool:
		return buf[0] != 0, nil
	case TagInt32:
		return int32(binary.LittleEndian.Uint32(buf[:4])), nil
	case TagInt64:
		return int64(binary.LittleEndian.Uint64(buf[:8])), nil
	case TagNumber32:
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[:4])), nil
	case TagNumber64:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf[:8])), nil
	case TagVector2:
		f := floats(buf, 2)
		return wasmbridge.Vector2{X: f[0], Y: f[1]}, nil
	case TagVector3:
		f := floats(buf, 3)
		return wasmbridge.Vector3{X: f[0], Y: f[1], Z: f[2]}, nil
	case TagVector4:
		f := floats(buf, 4)
		return wasmbridge.Vector4{X: f[0], Y: f[1], Z: f[2], W: f[3]}, nil
	case TagColor:
		f := floats(buf, 4)
		return wasmbridge.Color{R: f[0], G: f[1], B: f[2], A: f[3]}, nil
	case TagText:
		return decodeText(buf[:])
	}
	return nil, errors.Unsupported(errors.PhaseHydrate, "scalar tag "+string(tag))
}

// decodeText trims at the first NUL and validates UTF-8.
func decodeText(b []byte) (string, error) {
	for i, c := range b {
		if c == 0 {
			b = b[:i]
			break
		}
	}
	if !utf8.Valid(b) {
		return "", errors.InvalidUTF8(errors.PhaseHydrate, nil, b)
	}
	return string(b), nil
}
