package classfile

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Constant pool entry tags defined by the classfile format.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldRef           = 9
	tagMethodRef          = 10
	tagInterfaceMethodRef = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

// buffer is a big-endian cursor over a classfile image with a sticky error:
// once a read runs past the end, every later read is a no-op. Callers check
// err at section boundaries instead of after each read.
type buffer struct {
	data []byte
	off  int
	err  error
}

var errTruncated = fmt.Errorf("truncated classfile")

func (b *buffer) u1() int {
	if b.err != nil {
		return 0
	}
	if b.off+1 > len(b.data) {
		b.err = errTruncated
		return 0
	}
	v := b.data[b.off]
	b.off++
	return int(v)
}

func (b *buffer) u2() int {
	if b.err != nil {
		return 0
	}
	if b.off+2 > len(b.data) {
		b.err = errTruncated
		return 0
	}
	v := binary.BigEndian.Uint16(b.data[b.off:])
	b.off += 2
	return int(v)
}

func (b *buffer) u4() uint32 {
	if b.err != nil {
		return 0
	}
	if b.off+4 > len(b.data) {
		b.err = errTruncated
		return 0
	}
	v := binary.BigEndian.Uint32(b.data[b.off:])
	b.off += 4
	return v
}

func (b *buffer) u8() uint64 {
	if b.err != nil {
		return 0
	}
	if b.off+8 > len(b.data) {
		b.err = errTruncated
		return 0
	}
	v := binary.BigEndian.Uint64(b.data[b.off:])
	b.off += 8
	return v
}

func (b *buffer) bytes(n int) []byte {
	if b.err != nil {
		return nil
	}
	if n < 0 || b.off+n > len(b.data) {
		b.err = errTruncated
		return nil
	}
	v := b.data[b.off : b.off+n]
	b.off += n
	return v
}

func (b *buffer) skip(n int) {
	if b.err != nil {
		return
	}
	if n < 0 || b.off+n > len(b.data) {
		b.err = errTruncated
		return
	}
	b.off += n
}

// poolEntry is one parsed constant pool slot. Only the payloads the decoder
// resolves later are retained; reference-kind entries are skipped in place.
type poolEntry struct {
	tag  int
	ref  int    // single u2 operand: class name index, string index, ...
	bits uint64 // numeric payload for Integer/Float/Long/Double
	str  string // Utf8 payload
}

// constantPool is the 1-indexed tagged entry table. Index 0 is unused;
// Long and Double entries occupy two consecutive slots.
type constantPool []poolEntry

func readPool(b *buffer) (constantPool, error) {
	count := b.u2()
	if b.err != nil {
		return nil, b.err
	}
	pool := make(constantPool, count)
	for i := 1; i < count; i++ {
		tag := b.u1()
		e := poolEntry{tag: tag}
		switch tag {
		case tagUtf8:
			n := b.u2()
			e.str = string(b.bytes(n))
		case tagInteger, tagFloat:
			e.bits = uint64(b.u4())
		case tagLong, tagDouble:
			e.bits = b.u8()
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			e.ref = b.u2()
		case tagFieldRef, tagMethodRef, tagInterfaceMethodRef, tagNameAndType, tagDynamic, tagInvokeDynamic:
			b.skip(4)
		case tagMethodHandle:
			b.skip(3)
		default:
			if b.err != nil {
				return nil, b.err
			}
			return nil, fmt.Errorf("constant pool entry %d: unknown tag %d", i, tag)
		}
		if b.err != nil {
			return nil, b.err
		}
		pool[i] = e
		if tag == tagLong || tag == tagDouble {
			i++
		}
	}
	return pool, nil
}

func (p constantPool) utf8(i int) (string, error) {
	if i <= 0 || i >= len(p) || p[i].tag != tagUtf8 {
		return "", fmt.Errorf("constant pool index %d: not a UTF-8 entry", i)
	}
	return p[i].str, nil
}

// className resolves a Class entry to a dotted qualified name.
func (p constantPool) className(i int) (string, error) {
	if i <= 0 || i >= len(p) || p[i].tag != tagClass {
		return "", fmt.Errorf("constant pool index %d: not a class entry", i)
	}
	name, err := p.utf8(p[i].ref)
	if err != nil {
		return "", err
	}
	return externalName(name), nil
}

// fieldConstant resolves a ConstantValue attribute reference to a typed
// literal. Fields whose descriptor has no literal form (references other
// than String, and arrays) yield an empty kind and are silently skipped.
func (p constantPool) fieldConstant(i int, descriptor string) (ConstKind, any, error) {
	if i <= 0 || i >= len(p) {
		return "", nil, fmt.Errorf("ConstantValue index %d out of range", i)
	}
	e := p[i]
	switch descriptor {
	case "I", "S", "B":
		if e.tag != tagInteger {
			return "", nil, fmt.Errorf("ConstantValue for descriptor %s: unexpected tag %d", descriptor, e.tag)
		}
		return ConstInt, int32(uint32(e.bits)), nil
	case "C":
		if e.tag != tagInteger {
			return "", nil, fmt.Errorf("ConstantValue for descriptor C: unexpected tag %d", e.tag)
		}
		// char constants are reported as their integer code point
		return ConstChar, int32(uint32(e.bits)), nil
	case "Z":
		if e.tag != tagInteger {
			return "", nil, fmt.Errorf("ConstantValue for descriptor Z: unexpected tag %d", e.tag)
		}
		return ConstBool, uint32(e.bits) != 0, nil
	case "J":
		if e.tag != tagLong {
			return "", nil, fmt.Errorf("ConstantValue for descriptor J: unexpected tag %d", e.tag)
		}
		return ConstLong, int64(e.bits), nil
	case "F":
		if e.tag != tagFloat {
			return "", nil, fmt.Errorf("ConstantValue for descriptor F: unexpected tag %d", e.tag)
		}
		return ConstFloat, math.Float32frombits(uint32(e.bits)), nil
	case "D":
		if e.tag != tagDouble {
			return "", nil, fmt.Errorf("ConstantValue for descriptor D: unexpected tag %d", e.tag)
		}
		return ConstDouble, math.Float64frombits(e.bits), nil
	case "Ljava/lang/String;":
		if e.tag != tagString {
			return "", nil, fmt.Errorf("ConstantValue for descriptor %s: unexpected tag %d", descriptor, e.tag)
		}
		s, err := p.utf8(e.ref)
		if err != nil {
			return "", nil, err
		}
		return ConstString, s, nil
	}
	return "", nil, nil
}

// externalName converts an internal binary name (com/example/Widget) to its
// dotted qualified form.
func externalName(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}

// descriptorClassName converts an object type descriptor (Lcom/example/Tag;)
// to a dotted qualified name.
func descriptorClassName(descriptor string) (string, error) {
	if len(descriptor) < 3 || descriptor[0] != 'L' || descriptor[len(descriptor)-1] != ';' {
		return "", fmt.Errorf("not an object type descriptor: %q", descriptor)
	}
	return externalName(descriptor[1 : len(descriptor)-1]), nil
}
