package wasmgen

import "bytes"

const (
	opUnreachable = 0x00
	opEnd         = 0x0b
	opCall        = 0x10
	opDrop        = 0x1a
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opI32Const    = 0x41
	opI64Const    = 0x42
	opF32Const    = 0x43
	opF64Const    = 0x44
	opI32Add      = 0x6a
	opI32Sub      = 0x6b
	opI32Mul      = 0x6c
	opI64Add      = 0x7c
	opF32Add      = 0x92
	opF32Sub      = 0x93
	opF32Mul      = 0x94
	opF64Add      = 0xa0
)

// Opcodes without immediates.
var (
	Unreachable = []byte{opUnreachable}
	Drop        = []byte{opDrop}
	I32Add      = []byte{opI32Add}
	I32Sub      = []byte{opI32Sub}
	I32Mul      = []byte{opI32Mul}
	I64Add      = []byte{opI64Add}
	F32Add      = []byte{opF32Add}
	F32Sub      = []byte{opF32Sub}
	F32Mul      = []byte{opF32Mul}
	F64Add      = []byte{opF64Add}
)

func withU32(op byte, v uint32) []byte {
	var b bytes.Buffer
	b.WriteByte(op)
	writeU32(&b, v)
	return b.Bytes()
}

// LocalGet pushes local i.
func LocalGet(i uint32) []byte { return withU32(opLocalGet, i) }

// LocalSet pops into local i.
func LocalSet(i uint32) []byte { return withU32(opLocalSet, i) }

// Call calls function idx.
func Call(idx uint32) []byte { return withU32(opCall, idx) }

// I32Const pushes an i32.
func I32Const(v int32) []byte {
	var b bytes.Buffer
	b.WriteByte(opI32Const)
	writeS32(&b, v)
	return b.Bytes()
}

// I64Const pushes an i64.
func I64Const(v int64) []byte {
	var b bytes.Buffer
	b.WriteByte(opI64Const)
	writeS64(&b, v)
	return b.Bytes()
}

// F32Const pushes an f32.
func F32Const(v float32) []byte {
	var b bytes.Buffer
	b.WriteByte(opF32Const)
	writeF32(&b, v)
	return b.Bytes()
}

// F64Const pushes an f64.
func F64Const(v float64) []byte {
	var b bytes.Buffer
	b.WriteByte(opF64Const)
	writeF64(&b, v)
	return b.Bytes()
}
