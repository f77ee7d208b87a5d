package classfile

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/daimatz/jclass/pkg/classfile/internal/cursor"
)

// Attribute names with a structured decoder.
const (
	AttrConstantValue          = "ConstantValue"
	AttrCode                   = "Code"
	AttrStackMapTable          = "StackMapTable"
	AttrStackMap               = "StackMap"
	AttrExceptions             = "Exceptions"
	AttrInnerClasses           = "InnerClasses"
	AttrEnclosingMethod        = "EnclosingMethod"
	AttrSynthetic              = "Synthetic"
	AttrSignature              = "Signature"
	AttrSourceFile             = "SourceFile"
	AttrSourceDebugExtension   = "SourceDebugExtension"
	AttrLineNumberTable        = "LineNumberTable"
	AttrLocalVariableTable     = "LocalVariableTable"
	AttrLocalVariableTypeTable = "LocalVariableTypeTable"
	AttrDeprecated             = "Deprecated"
	AttrBootstrapMethods       = "BootstrapMethods"
	AttrMethodParameters       = "MethodParameters"
	AttrNestHost               = "NestHost"
	AttrNestMembers            = "NestMembers"
	AttrPermittedSubclasses    = "PermittedSubclasses"
)

// Attribute is a decoded attribute. The set of implementations is closed;
// names without a structured decoder produce *RawAttribute.
type Attribute interface {
	Name() string
	isAttribute()
}

type ConstantValueAttribute struct {
	ValueIndex uint16
}

type SourceFileAttribute struct {
	SourceFileIndex uint16
}

type SignatureAttribute struct {
	SignatureIndex uint16
}

// ExceptionHandler represents an entry in the exception table.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16 // 0 catches everything
}

// CodeAttribute represents the Code attribute of a method.
type CodeAttribute struct {
	MaxStack          uint16
	MaxLocals         uint16
	Code              []byte
	ExceptionHandlers []ExceptionHandler
	Attributes        []Attribute
}

type ExceptionsAttribute struct {
	ExceptionIndexes []uint16
}

type LineNumber struct {
	StartPC uint16
	Line    uint16
}

type LineNumberTableAttribute struct {
	Entries []LineNumber
}

// LocalVariable is an entry of LocalVariableTable or LocalVariableTypeTable.
// In the latter DescriptorIndex points at a generic signature.
type LocalVariable struct {
	StartPC         uint16
	Length          uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Index           uint16 // local variable slot
}

type LocalVariableTableAttribute struct {
	Entries []LocalVariable
}

type LocalVariableTypeTableAttribute struct {
	Entries []LocalVariable
}

type InnerClass struct {
	InnerClassIndex  uint16
	OuterClassIndex  uint16
	InnerNameIndex   uint16
	InnerAccessFlags AccessFlags
}

type InnerClassesAttribute struct {
	Classes []InnerClass
}

// SyntheticAttribute and DeprecatedAttribute carry no payload; Trailing holds
// any bytes an encoder put there anyway.
type SyntheticAttribute struct {
	Trailing []byte
}

type DeprecatedAttribute struct {
	Trailing []byte
}

// VerificationType is the tag of a stack map verification type.
type VerificationType uint8

const (
	VerifyTop               VerificationType = 0
	VerifyInteger           VerificationType = 1
	VerifyFloat             VerificationType = 2
	VerifyDouble            VerificationType = 3
	VerifyLong              VerificationType = 4
	VerifyNull              VerificationType = 5
	VerifyUninitializedThis VerificationType = 6
	VerifyObject            VerificationType = 7
	VerifyUninitialized     VerificationType = 8
)

// StackMapType is a verification type. Index is a Class constant for
// VerifyObject and the offset of the new instruction for VerifyUninitialized.
// Index is an unsigned u2 as stored in the class file, never sign-extended.
type StackMapType struct {
	Kind  VerificationType
	Index uint16
}

// Stack map frame types. Values in between denote ranges; see FrameType.
const (
	FrameSameLocals1StackItemExtended = 247
	FrameSameExtended                 = 251
	FrameFull                         = 255
)

// StackMapEntry is one frame. For StackMapTable, OffsetDelta is relative to
// the previous frame; for the legacy StackMap it is the absolute bytecode
// offset and FrameType is always FrameFull. OffsetDelta is an unsigned u2,
// so offsets up to 65535 read back as written.
type StackMapEntry struct {
	FrameType   uint8
	OffsetDelta uint16
	Chopped     int // chop frames only
	Locals      []StackMapType
	Stack       []StackMapType
}

type StackMapTableAttribute struct {
	Entries []StackMapEntry
}

type StackMapAttribute struct {
	Entries []StackMapEntry
}

type BootstrapMethod struct {
	MethodRef          uint16
	BootstrapArguments []uint16
}

type BootstrapMethodsAttribute struct {
	Methods []BootstrapMethod
}

type MethodParameter struct {
	NameIndex   uint16 // 0 for a parameter without a name
	AccessFlags AccessFlags
}

type MethodParametersAttribute struct {
	Parameters []MethodParameter
}

type EnclosingMethodAttribute struct {
	ClassIndex  uint16
	MethodIndex uint16 // 0 when not enclosed by a method
}

type NestHostAttribute struct {
	HostClassIndex uint16
}

type NestMembersAttribute struct {
	Classes []uint16
}

type PermittedSubclassesAttribute struct {
	Classes []uint16
}

type SourceDebugExtensionAttribute struct {
	Debug string
}

// RawAttribute holds an attribute this package has no decoder for.
type RawAttribute struct {
	AttrName string
	Data     []byte
}

func (*ConstantValueAttribute) Name() string          { return AttrConstantValue }
func (*SourceFileAttribute) Name() string             { return AttrSourceFile }
func (*SignatureAttribute) Name() string              { return AttrSignature }
func (*CodeAttribute) Name() string                   { return AttrCode }
func (*ExceptionsAttribute) Name() string             { return AttrExceptions }
func (*LineNumberTableAttribute) Name() string        { return AttrLineNumberTable }
func (*LocalVariableTableAttribute) Name() string     { return AttrLocalVariableTable }
func (*LocalVariableTypeTableAttribute) Name() string { return AttrLocalVariableTypeTable }
func (*InnerClassesAttribute) Name() string           { return AttrInnerClasses }
func (*SyntheticAttribute) Name() string              { return AttrSynthetic }
func (*DeprecatedAttribute) Name() string             { return AttrDeprecated }
func (*StackMapTableAttribute) Name() string          { return AttrStackMapTable }
func (*StackMapAttribute) Name() string               { return AttrStackMap }
func (*BootstrapMethodsAttribute) Name() string       { return AttrBootstrapMethods }
func (*MethodParametersAttribute) Name() string       { return AttrMethodParameters }
func (*EnclosingMethodAttribute) Name() string        { return AttrEnclosingMethod }
func (*NestHostAttribute) Name() string               { return AttrNestHost }
func (*NestMembersAttribute) Name() string            { return AttrNestMembers }
func (*PermittedSubclassesAttribute) Name() string    { return AttrPermittedSubclasses }
func (*SourceDebugExtensionAttribute) Name() string   { return AttrSourceDebugExtension }
func (a *RawAttribute) Name() string                  { return a.AttrName }

func (*ConstantValueAttribute) isAttribute()          {}
func (*SourceFileAttribute) isAttribute()             {}
func (*SignatureAttribute) isAttribute()              {}
func (*CodeAttribute) isAttribute()                   {}
func (*ExceptionsAttribute) isAttribute()             {}
func (*LineNumberTableAttribute) isAttribute()        {}
func (*LocalVariableTableAttribute) isAttribute()     {}
func (*LocalVariableTypeTableAttribute) isAttribute() {}
func (*InnerClassesAttribute) isAttribute()           {}
func (*SyntheticAttribute) isAttribute()              {}
func (*DeprecatedAttribute) isAttribute()             {}
func (*StackMapTableAttribute) isAttribute()          {}
func (*StackMapAttribute) isAttribute()               {}
func (*BootstrapMethodsAttribute) isAttribute()       {}
func (*MethodParametersAttribute) isAttribute()       {}
func (*EnclosingMethodAttribute) isAttribute()        {}
func (*NestHostAttribute) isAttribute()               {}
func (*NestMembersAttribute) isAttribute()            {}
func (*PermittedSubclassesAttribute) isAttribute()    {}
func (*SourceDebugExtensionAttribute) isAttribute()   {}
func (*RawAttribute) isAttribute()                    {}

func findAttribute(attrs []Attribute, name string) Attribute {
	for _, a := range attrs {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// Attribute returns the first nested attribute with the given name.
func (c *CodeAttribute) Attribute(name string) Attribute {
	return findAttribute(c.Attributes, name)
}

// LineNumbers returns the entries of every nested LineNumberTable.
func (c *CodeAttribute) LineNumbers() []LineNumber {
	var out []LineNumber
	for _, a := range c.Attributes {
		if t, ok := a.(*LineNumberTableAttribute); ok {
			out = append(out, t.Entries...)
		}
	}
	return out
}

// LocalVariables returns the entries of every nested LocalVariableTable.
// A compiler may split the table over several attributes.
func (c *CodeAttribute) LocalVariables() []LocalVariable {
	var out []LocalVariable
	for _, a := range c.Attributes {
		if t, ok := a.(*LocalVariableTableAttribute); ok {
			out = append(out, t.Entries...)
		}
	}
	return out
}

// LocalVariableTypes returns the entries of every nested LocalVariableTypeTable.
func (c *CodeAttribute) LocalVariableTypes() []LocalVariable {
	var out []LocalVariable
	for _, a := range c.Attributes {
		if t, ok := a.(*LocalVariableTypeTableAttribute); ok {
			out = append(out, t.Entries...)
		}
	}
	return out
}

// parseAttributes reads a u2 count followed by that many attributes.
func (d *decoder) parseAttributes(c *cursor.Cursor, pool *ConstantPool) ([]Attribute, error) {
	count, err := c.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("reading attributes count: %w", err)
	}
	attrs := make([]Attribute, count)
	for i := range attrs {
		nameIndex, err := c.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("reading attribute %d name index: %w", i, err)
		}
		length, err := c.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("reading attribute %d length: %w", i, err)
		}
		name, err := pool.Utf8(nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}
		body, err := c.Sub(int(length))
		if err != nil {
			return nil, fmt.Errorf("reading attribute %s data: %w", name, err)
		}
		attr, err := d.parseAttribute(body, pool, name)
		if err != nil {
			return nil, fmt.Errorf("parsing attribute %s: %w", name, err)
		}
		if rest := body.Remaining(); rest != 0 {
			return nil, &AttributeLengthError{Name: name, Declared: length, Consumed: int(length) - rest}
		}
		attrs[i] = attr
	}
	return attrs, nil
}

// parseAttribute decodes one payload. c is bounded to the declared length.
func (d *decoder) parseAttribute(c *cursor.Cursor, pool *ConstantPool, name string) (Attribute, error) {
	switch name {
	case AttrConstantValue:
		v, err := c.ReadU16()
		return &ConstantValueAttribute{ValueIndex: v}, err

	case AttrSourceFile:
		v, err := c.ReadU16()
		return &SourceFileAttribute{SourceFileIndex: v}, err

	case AttrSignature:
		v, err := c.ReadU16()
		return &SignatureAttribute{SignatureIndex: v}, err

	case AttrNestHost:
		v, err := c.ReadU16()
		return &NestHostAttribute{HostClassIndex: v}, err

	case AttrCode:
		return d.parseCode(c, pool)

	case AttrExceptions:
		v, err := c.ReadU16Array()
		return &ExceptionsAttribute{ExceptionIndexes: v}, err

	case AttrNestMembers:
		v, err := c.ReadU16Array()
		return &NestMembersAttribute{Classes: v}, err

	case AttrPermittedSubclasses:
		v, err := c.ReadU16Array()
		return &PermittedSubclassesAttribute{Classes: v}, err

	case AttrLineNumberTable:
		v, err := parseLineNumbers(c)
		return &LineNumberTableAttribute{Entries: v}, err

	case AttrLocalVariableTable:
		v, err := parseLocalVariables(c)
		return &LocalVariableTableAttribute{Entries: v}, err

	case AttrLocalVariableTypeTable:
		v, err := parseLocalVariables(c)
		return &LocalVariableTypeTableAttribute{Entries: v}, err

	case AttrInnerClasses:
		v, err := parseInnerClasses(c)
		return &InnerClassesAttribute{Classes: v}, err

	case AttrSynthetic, AttrDeprecated:
		trailing, err := c.ReadBytes(c.Remaining())
		if err != nil {
			return nil, err
		}
		if len(trailing) > 0 {
			d.log.Warn("attribute should be empty; keeping trailing bytes",
				zap.String("attribute", name), zap.Int("length", len(trailing)))
		} else {
			trailing = nil
		}
		if name == AttrSynthetic {
			return &SyntheticAttribute{Trailing: trailing}, nil
		}
		return &DeprecatedAttribute{Trailing: trailing}, nil

	case AttrStackMapTable:
		v, err := parseStackMapTable(c)
		return &StackMapTableAttribute{Entries: v}, err

	case AttrStackMap:
		v, err := parseLegacyStackMap(c)
		return &StackMapAttribute{Entries: v}, err

	case AttrBootstrapMethods:
		v, err := parseBootstrapMethods(c)
		return &BootstrapMethodsAttribute{Methods: v}, err

	case AttrMethodParameters:
		v, err := parseMethodParameters(c)
		return &MethodParametersAttribute{Parameters: v}, err

	case AttrEnclosingMethod:
		class, err := c.ReadU16()
		if err != nil {
			return nil, err
		}
		method, err := c.ReadU16()
		return &EnclosingMethodAttribute{ClassIndex: class, MethodIndex: method}, err

	case AttrSourceDebugExtension:
		b, err := c.ReadBytes(c.Remaining())
		return &SourceDebugExtensionAttribute{Debug: decodeModifiedUTF8(b)}, err
	}

	data, err := c.ReadBytes(c.Remaining())
	if err != nil {
		return nil, err
	}
	d.log.Debug("keeping attribute as raw bytes", zap.String("attribute", name), zap.Int("length", len(data)))
	return &RawAttribute{AttrName: name, Data: data}, nil
}

func (d *decoder) parseCode(c *cursor.Cursor, pool *ConstantPool) (*CodeAttribute, error) {
	maxStack, err := c.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("reading max_stack: %w", err)
	}
	maxLocals, err := c.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("reading max_locals: %w", err)
	}
	codeLength, err := c.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("reading code_length: %w", err)
	}
	code, err := c.ReadBytes(int(codeLength))
	if err != nil {
		return nil, fmt.Errorf("reading code: %w", err)
	}

	exTableLen, err := c.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("reading exception_table_length: %w", err)
	}
	handlers := make([]ExceptionHandler, exTableLen)
	for i := range handlers {
		var fields [4]uint16
		for j := range fields {
			if fields[j], err = c.ReadU16(); err != nil {
				return nil, fmt.Errorf("reading exception handler %d: %w", i, err)
			}
		}
		handlers[i] = ExceptionHandler{
			StartPC:   fields[0],
			EndPC:     fields[1],
			HandlerPC: fields[2],
			CatchType: fields[3],
		}
	}

	attrs, err := d.parseAttributes(c, pool)
	if err != nil {
		return nil, fmt.Errorf("parsing Code attributes: %w", err)
	}

	return &CodeAttribute{
		MaxStack:          maxStack,
		MaxLocals:         maxLocals,
		Code:              code,
		ExceptionHandlers: handlers,
		Attributes:        attrs,
	}, nil
}

// readU16s reads n consecutive u16 values.
func readU16s(c *cursor.Cursor, out []uint16) error {
	for i := range out {
		v, err := c.ReadU16()
		if err != nil {
			return err
		}
		out[i] = v
	}
	return nil
}

func parseLineNumbers(c *cursor.Cursor) ([]LineNumber, error) {
	n, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	entries := make([]LineNumber, n)
	var f [2]uint16
	for i := range entries {
		if err := readU16s(c, f[:]); err != nil {
			return nil, fmt.Errorf("reading line number %d: %w", i, err)
		}
		entries[i] = LineNumber{StartPC: f[0], Line: f[1]}
	}
	return entries, nil
}

func parseLocalVariables(c *cursor.Cursor) ([]LocalVariable, error) {
	n, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	entries := make([]LocalVariable, n)
	var f [5]uint16
	for i := range entries {
		if err := readU16s(c, f[:]); err != nil {
			return nil, fmt.Errorf("reading local variable %d: %w", i, err)
		}
		entries[i] = LocalVariable{
			StartPC:         f[0],
			Length:          f[1],
			NameIndex:       f[2],
			DescriptorIndex: f[3],
			Index:           f[4],
		}
	}
	return entries, nil
}

func parseInnerClasses(c *cursor.Cursor) ([]InnerClass, error) {
	n, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	classes := make([]InnerClass, n)
	var f [4]uint16
	for i := range classes {
		if err := readU16s(c, f[:]); err != nil {
			return nil, fmt.Errorf("reading inner class %d: %w", i, err)
		}
		classes[i] = InnerClass{
			InnerClassIndex:  f[0],
			OuterClassIndex:  f[1],
			InnerNameIndex:   f[2],
			InnerAccessFlags: AccessFlags(f[3]),
		}
	}
	return classes, nil
}

func parseVerificationTypes(c *cursor.Cursor, n int) ([]StackMapType, error) {
	types := make([]StackMapType, n)
	for i := range types {
		kind, err := c.ReadU8()
		if err != nil {
			return nil, err
		}
		t := StackMapType{Kind: VerificationType(kind)}
		switch t.Kind {
		case VerifyObject, VerifyUninitialized:
			if t.Index, err = c.ReadU16(); err != nil {
				return nil, err
			}
		case VerifyTop, VerifyInteger, VerifyFloat, VerifyDouble, VerifyLong, VerifyNull, VerifyUninitializedThis:
		default:
			return nil, fmt.Errorf("unknown verification type %d", kind)
		}
		types[i] = t
	}
	return types, nil
}

func parseStackMapTable(c *cursor.Cursor) ([]StackMapEntry, error) {
	n, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	entries := make([]StackMapEntry, n)
	for i := range entries {
		ft, err := c.ReadU8()
		if err != nil {
			return nil, err
		}
		e := StackMapEntry{FrameType: ft}
		switch {
		case ft <= 63:
			e.OffsetDelta = uint16(ft)
		case ft <= 127:
			e.OffsetDelta = uint16(ft - 64)
			e.Stack, err = parseVerificationTypes(c, 1)
		case ft < FrameSameLocals1StackItemExtended:
			return nil, fmt.Errorf("stack map frame %d: reserved frame type %d", i, ft)
		default:
			if e.OffsetDelta, err = c.ReadU16(); err != nil {
				return nil, err
			}
			switch {
			case ft == FrameSameLocals1StackItemExtended:
				e.Stack, err = parseVerificationTypes(c, 1)
			case ft < FrameSameExtended:
				e.Chopped = FrameSameExtended - int(ft)
			case ft == FrameSameExtended:
			case ft < FrameFull:
				e.Locals, err = parseVerificationTypes(c, int(ft)-FrameSameExtended)
			default:
				e.Locals, e.Stack, err = parseFullFrame(c)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("stack map frame %d: %w", i, err)
		}
		entries[i] = e
	}
	return entries, nil
}

func parseFullFrame(c *cursor.Cursor) (locals, stack []StackMapType, err error) {
	nLocals, err := c.ReadU16()
	if err != nil {
		return nil, nil, err
	}
	if locals, err = parseVerificationTypes(c, int(nLocals)); err != nil {
		return nil, nil, err
	}
	nStack, err := c.ReadU16()
	if err != nil {
		return nil, nil, err
	}
	if stack, err = parseVerificationTypes(c, int(nStack)); err != nil {
		return nil, nil, err
	}
	return locals, stack, nil
}

// parseLegacyStackMap decodes the uncompressed pre-Java 6 (CLDC) layout.
func parseLegacyStackMap(c *cursor.Cursor) ([]StackMapEntry, error) {
	n, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	entries := make([]StackMapEntry, n)
	for i := range entries {
		offset, err := c.ReadU16()
		if err != nil {
			return nil, err
		}
		locals, stack, err := parseFullFrame(c)
		if err != nil {
			return nil, fmt.Errorf("stack map entry %d: %w", i, err)
		}
		entries[i] = StackMapEntry{FrameType: FrameFull, OffsetDelta: offset, Locals: locals, Stack: stack}
	}
	return entries, nil
}

func parseBootstrapMethods(c *cursor.Cursor) ([]BootstrapMethod, error) {
	numMethods, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	methods := make([]BootstrapMethod, numMethods)
	for i := range methods {
		methodRef, err := c.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("BootstrapMethods truncated at method %d: %w", i, err)
		}
		args, err := c.ReadU16Array()
		if err != nil {
			return nil, fmt.Errorf("BootstrapMethods truncated at arguments of method %d: %w", i, err)
		}
		methods[i] = BootstrapMethod{MethodRef: methodRef, BootstrapArguments: args}
	}
	return methods, nil
}

func parseMethodParameters(c *cursor.Cursor) ([]MethodParameter, error) {
	n, err := c.ReadU8()
	if err != nil {
		return nil, err
	}
	params := make([]MethodParameter, n)
	var f [2]uint16
	for i := range params {
		if err := readU16s(c, f[:]); err != nil {
			return nil, fmt.Errorf("reading parameter %d: %w", i, err)
		}
		params[i] = MethodParameter{NameIndex: f[0], AccessFlags: AccessFlags(f[1])}
	}
	return params, nil
}
