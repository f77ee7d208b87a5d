package classfile

import (
	"encoding/binary"
	"math"
)

// classBuilder assembles class files in memory for tests.
type classBuilder struct {
	major   uint16
	entries [][]byte
	next    uint16
	utf8s   map[string]uint16
	classes map[string]uint16
}

func newClassBuilder() *classBuilder {
	return &classBuilder{
		major:   uint16(Java17),
		next:    1,
		utf8s:   map[string]uint16{},
		classes: map[string]uint16{},
	}
}

type wbuf []byte

func (w *wbuf) u1(v uint8)  { *w = append(*w, v) }
func (w *wbuf) u2(v uint16) { *w = binary.BigEndian.AppendUint16(*w, v) }
func (w *wbuf) u4(v uint32) { *w = binary.BigEndian.AppendUint32(*w, v) }
func (w *wbuf) u8(v uint64) { *w = binary.BigEndian.AppendUint64(*w, v) }
func (w *wbuf) raw(b []byte) { *w = append(*w, b...) }

// rawEntry appends an encoded entry occupying the given number of slots.
func (b *classBuilder) rawEntry(entry []byte, slots int) uint16 {
	idx := b.next
	b.entries = append(b.entries, entry)
	b.next += uint16(slots)
	return idx
}

func (b *classBuilder) utf8(s string) uint16 {
	if idx, ok := b.utf8s[s]; ok {
		return idx
	}
	var w wbuf
	w.u1(uint8(TagUtf8))
	w.u2(uint16(len(s)))
	w.raw([]byte(s))
	idx := b.rawEntry(w, 1)
	b.utf8s[s] = idx
	return idx
}

func (b *classBuilder) class(name string) uint16 {
	if idx, ok := b.classes[name]; ok {
		return idx
	}
	nameIdx := b.utf8(name)
	var w wbuf
	w.u1(uint8(TagClass))
	w.u2(nameIdx)
	idx := b.rawEntry(w, 1)
	b.classes[name] = idx
	return idx
}

func (b *classBuilder) integer(v int32) uint16 {
	var w wbuf
	w.u1(uint8(TagInteger))
	w.u4(uint32(v))
	return b.rawEntry(w, 1)
}

func (b *classBuilder) long(v int64) uint16 {
	var w wbuf
	w.u1(uint8(TagLong))
	w.u8(uint64(v))
	return b.rawEntry(w, 2)
}

func (b *classBuilder) double(v float64) uint16 {
	var w wbuf
	w.u1(uint8(TagDouble))
	w.u8(math.Float64bits(v))
	return b.rawEntry(w, 2)
}

func (b *classBuilder) nameAndType(name, desc string) uint16 {
	n, d := b.utf8(name), b.utf8(desc)
	var w wbuf
	w.u1(uint8(TagNameAndType))
	w.u2(n)
	w.u2(d)
	return b.rawEntry(w, 1)
}

func (b *classBuilder) methodref(class, name, desc string) uint16 {
	c, nat := b.class(class), b.nameAndType(name, desc)
	var w wbuf
	w.u1(uint8(TagMethodref))
	w.u2(c)
	w.u2(nat)
	return b.rawEntry(w, 1)
}

// attr encodes an attribute record with an exact length.
func (b *classBuilder) attr(name string, payload []byte) []byte {
	return b.attrWithLength(name, uint32(len(payload)), payload)
}

// attrWithLength encodes an attribute record with an arbitrary declared length.
func (b *classBuilder) attrWithLength(name string, length uint32, payload []byte) []byte {
	var w wbuf
	w.u2(b.utf8(name))
	w.u4(length)
	w.raw(payload)
	return w
}

func attrList(attrs [][]byte) []byte {
	var w wbuf
	w.u2(uint16(len(attrs)))
	for _, a := range attrs {
		w.raw(a)
	}
	return w
}

func (b *classBuilder) code(maxStack, maxLocals uint16, code []byte, handlers []ExceptionHandler, attrs ...[]byte) []byte {
	var w wbuf
	w.u2(maxStack)
	w.u2(maxLocals)
	w.u4(uint32(len(code)))
	w.raw(code)
	w.u2(uint16(len(handlers)))
	for _, h := range handlers {
		w.u2(h.StartPC)
		w.u2(h.EndPC)
		w.u2(h.HandlerPC)
		w.u2(h.CatchType)
	}
	w.raw(attrList(attrs))
	return b.attr(AttrCode, w)
}

func (b *classBuilder) localVariableTable(vars ...LocalVariable) []byte {
	var w wbuf
	w.u2(uint16(len(vars)))
	for _, v := range vars {
		w.u2(v.StartPC)
		w.u2(v.Length)
		w.u2(v.NameIndex)
		w.u2(v.DescriptorIndex)
		w.u2(v.Index)
	}
	return b.attr(AttrLocalVariableTable, w)
}

type memberDef struct {
	flags AccessFlags
	name  string
	desc  string
	attrs [][]byte
}

type classDef struct {
	name       string
	super      string
	flags      AccessFlags
	interfaces []string
	fields     []memberDef
	methods    []memberDef
	attrs      [][]byte
}

func (b *classBuilder) members(ms []memberDef) []byte {
	var w wbuf
	w.u2(uint16(len(ms)))
	for _, m := range ms {
		w.u2(uint16(m.flags))
		w.u2(b.utf8(m.name))
		w.u2(b.utf8(m.desc))
		w.raw(attrList(m.attrs))
	}
	return w
}

// build serializes the class. Every pool entry must be registered before the
// pool is written, so the body is assembled first.
func (b *classBuilder) build(s classDef) []byte {
	var body wbuf
	body.u2(uint16(s.flags))
	body.u2(b.class(s.name))
	if s.super == "" {
		body.u2(0)
	} else {
		body.u2(b.class(s.super))
	}
	body.u2(uint16(len(s.interfaces)))
	for _, i := range s.interfaces {
		body.u2(b.class(i))
	}
	body.raw(b.members(s.fields))
	body.raw(b.members(s.methods))
	body.raw(attrList(s.attrs))

	var w wbuf
	w.u4(classMagic)
	w.u2(0)
	w.u2(b.major)
	w.u2(b.next)
	for _, e := range b.entries {
		w.raw(e)
	}
	w.raw(body)
	return w
}
