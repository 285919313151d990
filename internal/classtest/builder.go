// Package classtest builds minimal synthetic classfile images for tests.
// The images contain exactly the sections the decoder reads: constant pool,
// access flags, this/super class, interfaces, fields with optional
// ConstantValue attributes, an empty methods table, and an optional
// RuntimeVisibleAnnotations attribute.
package classtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Field access flags for test fields.
const (
	FlagPublic  = 0x0001
	FlagPrivate = 0x0002
	FlagStatic  = 0x0008
	FlagFinal   = 0x0010
)

// Field describes one field in a synthetic class. A nil Constant means no
// ConstantValue attribute; otherwise the attribute is emitted regardless of
// Flags, so tests can exercise the static+final check. Supported constant
// types: int, int32, int64, float32, float64, bool and string.
type Field struct {
	Name       string
	Descriptor string
	Flags      uint16 // zero defaults to public static final
	Constant   any
}

// Class describes one synthetic class. Names are dotted qualified names.
type Class struct {
	Name        string
	Super       string // ignored for interfaces; empty means java.lang.Object
	NoSuper     bool   // emit super_class index 0 (the root class)
	Interface   bool
	Annotation  bool
	Interfaces  []string
	Annotations []string
	Fields      []Field
}

// Bytes renders the classfile image.
func (c Class) Bytes() []byte {
	p := newPool()

	flags := uint16(0x0021) // public, super
	if c.Interface || c.Annotation {
		flags = 0x0601 // public, interface, abstract
	}
	if c.Annotation {
		flags |= 0x2000
	}

	thisIdx := p.class(internal(c.Name))

	var superIdx uint16
	if !c.NoSuper {
		super := "java/lang/Object"
		if !c.Interface && !c.Annotation && c.Super != "" {
			super = internal(c.Super)
		}
		superIdx = p.class(super)
	}

	ifaces := append([]string(nil), c.Interfaces...)
	if c.Annotation && !contains(ifaces, "java.lang.annotation.Annotation") {
		ifaces = append(ifaces, "java.lang.annotation.Annotation")
	}
	ifaceIdx := make([]uint16, len(ifaces))
	for i, name := range ifaces {
		ifaceIdx[i] = p.class(internal(name))
	}

	var fields bytes.Buffer
	for _, f := range c.Fields {
		fflags := f.Flags
		if fflags == 0 {
			fflags = FlagPublic | FlagStatic | FlagFinal
		}
		u2(&fields, fflags)
		u2(&fields, p.utf8(f.Name))
		u2(&fields, p.utf8(f.Descriptor))
		if f.Constant != nil {
			u2(&fields, 1)
			u2(&fields, p.utf8("ConstantValue"))
			u4(&fields, 2)
			u2(&fields, p.constant(f.Constant))
		} else {
			u2(&fields, 0)
		}
	}

	var attrs bytes.Buffer
	attrCount := 0
	if len(c.Annotations) > 0 {
		var payload bytes.Buffer
		u2(&payload, uint16(len(c.Annotations)))
		for _, a := range c.Annotations {
			u2(&payload, p.utf8("L"+internal(a)+";"))
			u2(&payload, 0) // no element-value pairs
		}
		u2(&attrs, p.utf8("RuntimeVisibleAnnotations"))
		u4(&attrs, uint32(payload.Len()))
		attrs.Write(payload.Bytes())
		attrCount++
	}

	var out bytes.Buffer
	u4(&out, 0xCAFEBABE)
	u2(&out, 0)  // minor version
	u2(&out, 52) // major version (Java 8)
	u2(&out, p.next)
	out.Write(p.data.Bytes())
	u2(&out, flags)
	u2(&out, thisIdx)
	u2(&out, superIdx)
	u2(&out, uint16(len(ifaceIdx)))
	for _, idx := range ifaceIdx {
		u2(&out, idx)
	}
	u2(&out, uint16(len(c.Fields)))
	out.Write(fields.Bytes())
	u2(&out, 0) // methods
	u2(&out, uint16(attrCount))
	out.Write(attrs.Bytes())
	return out.Bytes()
}

// pool accumulates constant pool entries in emission order. next is the
// next free slot; longs and doubles occupy two slots.
type pool struct {
	data    bytes.Buffer
	next    uint16
	utf8s   map[string]uint16
	classes map[string]uint16
}

func newPool() *pool {
	return &pool{
		next:    1,
		utf8s:   make(map[string]uint16),
		classes: make(map[string]uint16),
	}
}

func (p *pool) utf8(s string) uint16 {
	if idx, ok := p.utf8s[s]; ok {
		return idx
	}
	idx := p.take(1)
	p.data.WriteByte(1)
	u2(&p.data, uint16(len(s)))
	p.data.WriteString(s)
	p.utf8s[s] = idx
	return idx
}

func (p *pool) class(internalName string) uint16 {
	if idx, ok := p.classes[internalName]; ok {
		return idx
	}
	nameIdx := p.utf8(internalName)
	idx := p.take(1)
	p.data.WriteByte(7)
	u2(&p.data, nameIdx)
	p.classes[internalName] = idx
	return idx
}

func (p *pool) constant(v any) uint16 {
	switch v := v.(type) {
	case int:
		return p.integer(int32(v))
	case int32:
		return p.integer(v)
	case bool:
		if v {
			return p.integer(1)
		}
		return p.integer(0)
	case int64:
		idx := p.take(2)
		p.data.WriteByte(5)
		u8(&p.data, uint64(v))
		return idx
	case float32:
		idx := p.take(1)
		p.data.WriteByte(4)
		u4(&p.data, math.Float32bits(v))
		return idx
	case float64:
		idx := p.take(2)
		p.data.WriteByte(6)
		u8(&p.data, math.Float64bits(v))
		return idx
	case string:
		strIdx := p.utf8(v)
		idx := p.take(1)
		p.data.WriteByte(8)
		u2(&p.data, strIdx)
		return idx
	}
	panic(fmt.Sprintf("unsupported constant type %T", v))
}

func (p *pool) integer(v int32) uint16 {
	idx := p.take(1)
	p.data.WriteByte(3)
	u4(&p.data, uint32(v))
	return idx
}

func (p *pool) take(slots uint16) uint16 {
	idx := p.next
	p.next += slots
	return idx
}

func internal(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func u2(b *bytes.Buffer, v uint16) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	b.Write(buf[:])
}

func u4(b *bytes.Buffer, v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	b.Write(buf[:])
}

func u8(b *bytes.Buffer, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	b.Write(buf[:])
}
