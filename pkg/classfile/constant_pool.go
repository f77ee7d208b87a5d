package classfile

import (
	"fmt"
	"iter"
	"math"
	"unicode/utf16"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/daimatz/jclass/pkg/classfile/internal/cursor"
)

// ConstantTag identifies a constant pool entry variant.
type ConstantTag uint8

// Constant pool tags
const (
	TagUtf8               ConstantTag = 1
	TagInteger            ConstantTag = 3
	TagFloat              ConstantTag = 4
	TagLong               ConstantTag = 5
	TagDouble             ConstantTag = 6
	TagClass              ConstantTag = 7
	TagString             ConstantTag = 8
	TagFieldref           ConstantTag = 9
	TagMethodref          ConstantTag = 10
	TagInterfaceMethodref ConstantTag = 11
	TagNameAndType        ConstantTag = 12
	TagMethodHandle       ConstantTag = 15
	TagMethodType         ConstantTag = 16
	TagDynamic            ConstantTag = 17
	TagInvokeDynamic      ConstantTag = 18
	TagModule             ConstantTag = 19
	TagPackage            ConstantTag = 20

	// TagUnknown is reported by ConstantUnknown entries.
	TagUnknown ConstantTag = 0
)

var tagNames = map[ConstantTag]string{
	TagUtf8:               "Utf8",
	TagInteger:            "Integer",
	TagFloat:              "Float",
	TagLong:               "Long",
	TagDouble:             "Double",
	TagClass:              "Class",
	TagString:             "String",
	TagFieldref:           "Fieldref",
	TagMethodref:          "Methodref",
	TagInterfaceMethodref: "InterfaceMethodref",
	TagNameAndType:        "NameAndType",
	TagMethodHandle:       "MethodHandle",
	TagMethodType:         "MethodType",
	TagDynamic:            "Dynamic",
	TagInvokeDynamic:      "InvokeDynamic",
	TagModule:             "Module",
	TagPackage:            "Package",
}

func (t ConstantTag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return fmt.Sprintf("tag(%d)", uint8(t))
}

// Constant is a constant pool entry. The set of implementations is closed.
type Constant interface {
	Tag() ConstantTag
	isConstant()
}

type ConstantUtf8 struct {
	Value string
}

type ConstantInteger struct {
	Value int32
}

// ConstantFloat keeps the raw IEEE 754 bits so NaN payloads survive.
type ConstantFloat struct {
	Bits uint32
}

func (c *ConstantFloat) Value() float32 { return math.Float32frombits(c.Bits) }

type ConstantLong struct {
	Value int64
}

// ConstantDouble keeps the raw IEEE 754 bits so NaN payloads survive.
type ConstantDouble struct {
	Bits uint64
}

func (c *ConstantDouble) Value() float64 { return math.Float64frombits(c.Bits) }

type ConstantClass struct {
	NameIndex uint16
}

type ConstantString struct {
	StringIndex uint16
}

type ConstantFieldref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

type ConstantMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

type ConstantInterfaceMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

type ConstantNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

// ReferenceKind is the reference_kind of a MethodHandle constant.
type ReferenceKind uint8

const (
	RefGetField         ReferenceKind = 1
	RefGetStatic        ReferenceKind = 2
	RefPutField         ReferenceKind = 3
	RefPutStatic        ReferenceKind = 4
	RefInvokeVirtual    ReferenceKind = 5
	RefInvokeStatic     ReferenceKind = 6
	RefInvokeSpecial    ReferenceKind = 7
	RefNewInvokeSpecial ReferenceKind = 8
	RefInvokeInterface  ReferenceKind = 9
)

type ConstantMethodHandle struct {
	Kind           ReferenceKind
	ReferenceIndex uint16
}

type ConstantMethodType struct {
	DescriptorIndex uint16
}

type ConstantDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

type ConstantInvokeDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

type ConstantModule struct {
	NameIndex uint16
}

type ConstantPackage struct {
	NameIndex uint16
}

// ConstantUnknown records a tag byte the decoder does not understand. It is
// only produced when decoding WithUnknownConstantTags.
type ConstantUnknown struct {
	RawTag uint8
}

func (*ConstantUtf8) Tag() ConstantTag               { return TagUtf8 }
func (*ConstantInteger) Tag() ConstantTag            { return TagInteger }
func (*ConstantFloat) Tag() ConstantTag              { return TagFloat }
func (*ConstantLong) Tag() ConstantTag               { return TagLong }
func (*ConstantDouble) Tag() ConstantTag             { return TagDouble }
func (*ConstantClass) Tag() ConstantTag              { return TagClass }
func (*ConstantString) Tag() ConstantTag             { return TagString }
func (*ConstantFieldref) Tag() ConstantTag           { return TagFieldref }
func (*ConstantMethodref) Tag() ConstantTag          { return TagMethodref }
func (*ConstantInterfaceMethodref) Tag() ConstantTag { return TagInterfaceMethodref }
func (*ConstantNameAndType) Tag() ConstantTag        { return TagNameAndType }
func (*ConstantMethodHandle) Tag() ConstantTag       { return TagMethodHandle }
func (*ConstantMethodType) Tag() ConstantTag         { return TagMethodType }
func (*ConstantDynamic) Tag() ConstantTag            { return TagDynamic }
func (*ConstantInvokeDynamic) Tag() ConstantTag      { return TagInvokeDynamic }
func (*ConstantModule) Tag() ConstantTag             { return TagModule }
func (*ConstantPackage) Tag() ConstantTag            { return TagPackage }
func (*ConstantUnknown) Tag() ConstantTag            { return TagUnknown }

func (*ConstantUtf8) isConstant()               {}
func (*ConstantInteger) isConstant()            {}
func (*ConstantFloat) isConstant()              {}
func (*ConstantLong) isConstant()               {}
func (*ConstantDouble) isConstant()             {}
func (*ConstantClass) isConstant()              {}
func (*ConstantString) isConstant()             {}
func (*ConstantFieldref) isConstant()           {}
func (*ConstantMethodref) isConstant()          {}
func (*ConstantInterfaceMethodref) isConstant() {}
func (*ConstantNameAndType) isConstant()        {}
func (*ConstantMethodHandle) isConstant()       {}
func (*ConstantMethodType) isConstant()         {}
func (*ConstantDynamic) isConstant()            {}
func (*ConstantInvokeDynamic) isConstant()      {}
func (*ConstantModule) isConstant()             {}
func (*ConstantPackage) isConstant()            {}
func (*ConstantUnknown) isConstant()            {}

// ConstantPool is the 1-indexed constant table of a class file. Slot 0 and
// the slot after every Long or Double entry are not live.
type ConstantPool struct {
	entries []Constant
}

// Count returns constant_pool_count: valid indices are 1..Count()-1.
func (cp *ConstantPool) Count() int {
	return len(cp.entries)
}

// Entry returns the live entry at index.
func (cp *ConstantPool) Entry(index uint16) (Constant, error) {
	switch {
	case index == 0:
		return nil, &BadConstantIndexError{Index: index, Reason: "slot 0 is unused"}
	case int(index) >= len(cp.entries):
		return nil, &BadConstantIndexError{Index: index, Reason: fmt.Sprintf("out of range (count %d)", len(cp.entries))}
	case cp.entries[index] == nil:
		return nil, &BadConstantIndexError{Index: index, Reason: "reserved slot after 8-byte constant"}
	}
	return cp.entries[index], nil
}

// All yields every live entry in index order, skipping reserved slots.
func (cp *ConstantPool) All() iter.Seq2[uint16, Constant] {
	return func(yield func(uint16, Constant) bool) {
		for i := 1; i < len(cp.entries); i++ {
			if cp.entries[i] == nil {
				continue
			}
			if !yield(uint16(i), cp.entries[i]) {
				return
			}
		}
	}
}

func entryAs[T Constant](cp *ConstantPool, index uint16, want ConstantTag) (T, error) {
	var zero T
	e, err := cp.Entry(index)
	if err != nil {
		return zero, err
	}
	v, ok := e.(T)
	if !ok {
		return zero, &ConstantTypeError{Index: index, Want: want, Got: e.Tag()}
	}
	return v, nil
}

// Utf8 returns the string at the given Utf8 index.
func (cp *ConstantPool) Utf8(index uint16) (string, error) {
	e, err := entryAs[*ConstantUtf8](cp, index, TagUtf8)
	if err != nil {
		return "", err
	}
	return e.Value, nil
}

// ClassName returns the internal class name referenced by a Class entry.
func (cp *ConstantPool) ClassName(index uint16) (string, error) {
	e, err := entryAs[*ConstantClass](cp, index, TagClass)
	if err != nil {
		return "", err
	}
	return cp.Utf8(e.NameIndex)
}

// StringValue returns the literal referenced by a String entry.
func (cp *ConstantPool) StringValue(index uint16) (string, error) {
	e, err := entryAs[*ConstantString](cp, index, TagString)
	if err != nil {
		return "", err
	}
	return cp.Utf8(e.StringIndex)
}

// NameAndType resolves a NameAndType entry.
func (cp *ConstantPool) NameAndType(index uint16) (name, descriptor string, err error) {
	nat, err := entryAs[*ConstantNameAndType](cp, index, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = cp.Utf8(nat.NameIndex); err != nil {
		return "", "", fmt.Errorf("resolving name: %w", err)
	}
	if descriptor, err = cp.Utf8(nat.DescriptorIndex); err != nil {
		return "", "", fmt.Errorf("resolving descriptor: %w", err)
	}
	return name, descriptor, nil
}

// MemberRef holds a resolved field or method reference.
type MemberRef struct {
	ClassName  string
	Name       string
	Descriptor string
}

func (cp *ConstantPool) resolveRef(kind string, classIndex, natIndex uint16) (*MemberRef, error) {
	className, err := cp.ClassName(classIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving %s class: %w", kind, err)
	}
	name, desc, err := cp.NameAndType(natIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving %s name and type: %w", kind, err)
	}
	return &MemberRef{ClassName: className, Name: name, Descriptor: desc}, nil
}

// ResolveFieldref resolves a Fieldref entry.
func (cp *ConstantPool) ResolveFieldref(index uint16) (*MemberRef, error) {
	e, err := entryAs[*ConstantFieldref](cp, index, TagFieldref)
	if err != nil {
		return nil, err
	}
	return cp.resolveRef("Fieldref", e.ClassIndex, e.NameAndTypeIndex)
}

// ResolveMethodref resolves a Methodref entry.
func (cp *ConstantPool) ResolveMethodref(index uint16) (*MemberRef, error) {
	e, err := entryAs[*ConstantMethodref](cp, index, TagMethodref)
	if err != nil {
		return nil, err
	}
	return cp.resolveRef("Methodref", e.ClassIndex, e.NameAndTypeIndex)
}

// ResolveInterfaceMethodref resolves an InterfaceMethodref entry.
func (cp *ConstantPool) ResolveInterfaceMethodref(index uint16) (*MemberRef, error) {
	e, err := entryAs[*ConstantInterfaceMethodref](cp, index, TagInterfaceMethodref)
	if err != nil {
		return nil, err
	}
	return cp.resolveRef("InterfaceMethodref", e.ClassIndex, e.NameAndTypeIndex)
}

// parseConstantPool reads constant_pool_count-1 entries from the cursor.
// The returned table is 1-indexed: index 0 is nil.
func (d *decoder) parseConstantPool(c *cursor.Cursor, count uint16) (*ConstantPool, error) {
	pool := make([]Constant, count)
	if count == 0 {
		// A zero count still yields the slot-0-only table.
		pool = make([]Constant, 1)
	}

	for i := 1; i < int(count); i++ {
		idx := uint16(i)
		start := c.Position()
		tag, err := c.ReadU8()
		if err != nil {
			return nil, fmt.Errorf("reading constant pool tag at index %d: %w", idx, err)
		}
		entry, err := readConstant(c, ConstantTag(tag))
		if err != nil {
			return nil, fmt.Errorf("reading %s at index %d: %w", ConstantTag(tag), idx, err)
		}
		if entry == nil {
			if !d.unknownTags {
				return nil, &UnknownConstantTagError{Tag: tag, Index: idx, Offset: start}
			}
			d.log.Warn("unknown constant pool tag; no payload consumed",
				zap.Uint8("tag", tag), zap.Uint16("index", idx), zap.Int("offset", start))
			entry = &ConstantUnknown{RawTag: tag}
		}
		pool[i] = entry

		switch entry.(type) {
		case *ConstantLong, *ConstantDouble:
			i++ // 8-byte constants take 2 slots
		}
	}

	return &ConstantPool{entries: pool}, nil
}

// readConstant decodes the payload of one entry. It returns a nil Constant for
// an unknown tag without consuming anything.
func readConstant(c *cursor.Cursor, tag ConstantTag) (Constant, error) {
	switch tag {
	case TagUtf8:
		length, err := c.ReadU16()
		if err != nil {
			return nil, err
		}
		b, err := c.ReadBytes(int(length))
		if err != nil {
			return nil, err
		}
		return &ConstantUtf8{Value: decodeModifiedUTF8(b)}, nil

	case TagInteger:
		v, err := c.ReadI32()
		return &ConstantInteger{Value: v}, err

	case TagFloat:
		v, err := c.ReadU32()
		return &ConstantFloat{Bits: v}, err

	case TagLong:
		v, err := c.ReadU64()
		return &ConstantLong{Value: int64(v)}, err

	case TagDouble:
		v, err := c.ReadU64()
		return &ConstantDouble{Bits: v}, err

	case TagClass:
		v, err := c.ReadU16()
		return &ConstantClass{NameIndex: v}, err

	case TagString:
		v, err := c.ReadU16()
		return &ConstantString{StringIndex: v}, err

	case TagMethodType:
		v, err := c.ReadU16()
		return &ConstantMethodType{DescriptorIndex: v}, err

	case TagModule:
		v, err := c.ReadU16()
		return &ConstantModule{NameIndex: v}, err

	case TagPackage:
		v, err := c.ReadU16()
		return &ConstantPackage{NameIndex: v}, err

	case TagMethodHandle:
		kind, err := c.ReadU8()
		if err != nil {
			return nil, err
		}
		ref, err := c.ReadU16()
		return &ConstantMethodHandle{Kind: ReferenceKind(kind), ReferenceIndex: ref}, err

	case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
		a, err := c.ReadU16()
		if err != nil {
			return nil, err
		}
		b, err := c.ReadU16()
		if err != nil {
			return nil, err
		}
		switch tag {
		case TagFieldref:
			return &ConstantFieldref{ClassIndex: a, NameAndTypeIndex: b}, nil
		case TagMethodref:
			return &ConstantMethodref{ClassIndex: a, NameAndTypeIndex: b}, nil
		case TagInterfaceMethodref:
			return &ConstantInterfaceMethodref{ClassIndex: a, NameAndTypeIndex: b}, nil
		case TagNameAndType:
			return &ConstantNameAndType{NameIndex: a, DescriptorIndex: b}, nil
		case TagDynamic:
			return &ConstantDynamic{BootstrapMethodAttrIndex: a, NameAndTypeIndex: b}, nil
		default:
			return &ConstantInvokeDynamic{BootstrapMethodAttrIndex: a, NameAndTypeIndex: b}, nil
		}
	}
	return nil, nil
}

// decodeModifiedUTF8 converts the class file string encoding to a Go string.
// NUL is encoded as C0 80 and supplementary characters as surrogate pairs of
// three-byte sequences. Malformed input is returned byte-for-byte.
func decodeModifiedUTF8(b []byte) string {
	ascii := true
	for _, c := range b {
		if c >= 0x80 || c == 0 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b)
	}

	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b) && b[i+1]&0xC0 == 0x80:
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b) && b[i+1]&0xC0 == 0x80 && b[i+2]&0xC0 == 0x80:
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return string(b)
		}
	}
	s := string(utf16.Decode(units))
	if !utf8.ValidString(s) {
		return string(b)
	}
	return s
}
