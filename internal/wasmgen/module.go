// Package wasmgen writes small WebAssembly binaries: typed functions over
// host imports, exports, one memory, data segments and custom sections.
// It backs the demo command and the module tests.
package wasmgen

import (
	"bytes"
)

// ValType is a wasm value type.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
	F32 ValType = 0x7d
	F64 ValType = 0x7c
)

const (
	sectionCustom   = 0
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11

	kindFunc   = 0x00
	kindMemory = 0x02
)

type funcType struct {
	params, results []ValType
}

type importFunc struct {
	module, name string
	typeIdx      uint32
}

type function struct {
	typeIdx uint32
	locals  []ValType
	body    []byte
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type dataSegment struct {
	offset uint32
	data   []byte
}

type custom struct {
	name string
	data []byte
}

// Module accumulates module contents. Imports must be added before functions
// because imported functions take the lowest indices.
type Module struct {
	types   []funcType
	imports []importFunc
	funcs   []function
	exports []export
	memory  *uint32
	data    []dataSegment
	customs []custom
}

// New creates an empty module.
func New() *Module {
	return &Module{}
}

func (m *Module) typeIndex(params, results []ValType) uint32 {
	for i, t := range m.types {
		if bytes.Equal(valBytes(t.params), valBytes(params)) && bytes.Equal(valBytes(t.results), valBytes(results)) {
			return uint32(i)
		}
	}
	m.types = append(m.types, funcType{params: params, results: results})
	return uint32(len(m.types) - 1)
}

func valBytes(vs []ValType) []byte {
	b := make([]byte, len(vs))
	for i, v := range vs {
		b[i] = byte(v)
	}
	return b
}

// Import declares an imported function and returns its function index.
func (m *Module) Import(module, name string, params, results []ValType) uint32 {
	if len(m.funcs) > 0 {
		panic("wasmgen: imports must precede functions")
	}
	m.imports = append(m.imports, importFunc{module: module, name: name, typeIdx: m.typeIndex(params, results)})
	return uint32(len(m.imports) - 1)
}

// Func defines a function. The body is the instruction sequence without the
// final end opcode. Locals are declared after the parameters.
func (m *Module) Func(params, results, locals []ValType, body ...[]byte) uint32 {
	var code []byte
	for _, b := range body {
		code = append(code, b...)
	}
	m.funcs = append(m.funcs, function{typeIdx: m.typeIndex(params, results), locals: locals, body: code})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Export exports a function by index.
func (m *Module) Export(name string, funcIdx uint32) {
	m.exports = append(m.exports, export{name: name, kind: kindFunc, idx: funcIdx})
}

// Memory declares memory 0 with a minimum number of pages, exported as "memory".
func (m *Module) Memory(pages uint32) {
	m.memory = &pages
	m.exports = append(m.exports, export{name: "memory", kind: kindMemory, idx: 0})
}

// Data places bytes at offset in memory 0.
func (m *Module) Data(offset uint32, data []byte) {
	m.data = append(m.data, dataSegment{offset: offset, data: data})
}

// Custom appends a custom section.
func (m *Module) Custom(name string, data []byte) {
	m.customs = append(m.customs, custom{name: name, data: data})
}

// Encode produces the module binary.
func (m *Module) Encode() []byte {
	var w bytes.Buffer
	w.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	if len(m.types) > 0 {
		var sec bytes.Buffer
		writeU32(&sec, uint32(len(m.types)))
		for _, t := range m.types {
			sec.WriteByte(0x60)
			writeU32(&sec, uint32(len(t.params)))
			sec.Write(valBytes(t.params))
			writeU32(&sec, uint32(len(t.results)))
			sec.Write(valBytes(t.results))
		}
		writeSection(&w, sectionType, sec.Bytes())
	}

	if len(m.imports) > 0 {
		var sec bytes.Buffer
		writeU32(&sec, uint32(len(m.imports)))
		for _, imp := range m.imports {
			writeName(&sec, imp.module)
			writeName(&sec, imp.name)
			sec.WriteByte(kindFunc)
			writeU32(&sec, imp.typeIdx)
		}
		writeSection(&w, sectionImport, sec.Bytes())
	}

	if len(m.funcs) > 0 {
		var sec bytes.Buffer
		writeU32(&sec, uint32(len(m.funcs)))
		for _, f := range m.funcs {
			writeU32(&sec, f.typeIdx)
		}
		writeSection(&w, sectionFunction, sec.Bytes())
	}

	if m.memory != nil {
		var sec bytes.Buffer
		writeU32(&sec, 1)
		sec.WriteByte(0x00)
		writeU32(&sec, *m.memory)
		writeSection(&w, sectionMemory, sec.Bytes())
	}

	if len(m.exports) > 0 {
		var sec bytes.Buffer
		writeU32(&sec, uint32(len(m.exports)))
		for _, e := range m.exports {
			writeName(&sec, e.name)
			sec.WriteByte(e.kind)
			writeU32(&sec, e.idx)
		}
		writeSection(&w, sectionExport, sec.Bytes())
	}

	if len(m.funcs) > 0 {
		var sec bytes.Buffer
		writeU32(&sec, uint32(len(m.funcs)))
		for _, f := range m.funcs {
			var body bytes.Buffer
			writeU32(&body, uint32(len(f.locals)))
			for _, l := range f.locals {
				writeU32(&body, 1)
				body.WriteByte(byte(l))
			}
			body.Write(f.body)
			body.WriteByte(opEnd)
			writeU32(&sec, uint32(body.Len()))
			sec.Write(body.Bytes())
		}
		writeSection(&w, sectionCode, sec.Bytes())
	}

	if len(m.data) > 0 {
		var sec bytes.Buffer
		writeU32(&sec, uint32(len(m.data)))
		for _, d := range m.data {
			sec.WriteByte(0x00)
			sec.Write(I32Const(int32(d.offset)))
			sec.WriteByte(opEnd)
			writeU32(&sec, uint32(len(d.data)))
			sec.Write(d.data)
		}
		writeSection(&w, sectionData, sec.Bytes())
	}

	for _, c := range m.customs {
		var sec bytes.Buffer
		writeName(&sec, c.name)
		sec.Write(c.data)
		writeSection(&w, sectionCustom, sec.Bytes())
	}

	return w.Bytes()
}

func writeSection(w *bytes.Buffer, id byte, content []byte) {
	w.WriteByte(id)
	writeU32(w, uint32(len(content)))
	w.Write(content)
}
