package classfile

import (
	"fmt"
	"sync"

	"github.com/daimatz/jclass/pkg/classfile/internal/cursor"
)

// Member is a field or method. Name and descriptor are resolved when the
// class is decoded; everything else is resolved through Pool on demand.
type Member struct {
	AccessFlags     AccessFlags
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []Attribute

	pool       *ConstantPool
	name       string
	descriptor string
	isMethod   bool

	argsOnce sync.Once
	args     []TypeDescriptor
	slots    []int
	argsErr  error
}

// Name returns the member name.
func (m *Member) Name() string { return m.name }

// Descriptor returns the raw descriptor string.
func (m *Member) Descriptor() string { return m.descriptor }

// Pool returns the constant pool the member's indices refer to.
func (m *Member) Pool() *ConstantPool { return m.pool }

// IsMethod reports whether the member came from the methods table.
func (m *Member) IsMethod() bool { return m.isMethod }

// IsStatic reports whether ACC_STATIC is set.
func (m *Member) IsStatic() bool { return m.AccessFlags.IsStatic() }

// Type parses the member descriptor.
func (m *Member) Type() (TypeDescriptor, error) {
	if m.isMethod {
		return ParseMethodDescriptor(m.descriptor)
	}
	return ParseFieldDescriptor(m.descriptor)
}

func (m *Member) computeArguments() {
	m.argsOnce.Do(func() {
		if !m.isMethod {
			m.argsErr = fmt.Errorf("%s is a field, not a method", m.name)
			return
		}
		m.args, m.argsErr = ParseArgumentList(m.descriptor)
		if m.argsErr == nil {
			m.slots = ArgumentSlots(m.IsStatic(), m.args)
		}
	})
}

// ArgumentTypes returns the parsed argument types of a method. The result is
// computed once and shared; callers must not modify it.
func (m *Member) ArgumentTypes() ([]TypeDescriptor, error) {
	m.computeArguments()
	return m.args, m.argsErr
}

// ArgumentSlots returns the local variable slot of each argument.
func (m *Member) ArgumentSlots() ([]int, error) {
	m.computeArguments()
	return m.slots, m.argsErr
}

// Attribute returns the first attribute with the given name.
func (m *Member) Attribute(name string) Attribute {
	return findAttribute(m.Attributes, name)
}

// Code returns the Code attribute, or nil for abstract and native methods.
func (m *Member) Code() *CodeAttribute {
	code, _ := m.Attribute(AttrCode).(*CodeAttribute)
	return code
}

// LocalVariableTable returns the LocalVariableTable entries of the method's
// Code attribute.
func (m *Member) LocalVariableTable() []LocalVariable {
	if code := m.Code(); code != nil {
		return code.LocalVariables()
	}
	return nil
}

// LocalVariableTypeTable returns the LocalVariableTypeTable entries of the
// method's Code attribute.
func (m *Member) LocalVariableTypeTable() []LocalVariable {
	if code := m.Code(); code != nil {
		return code.LocalVariableTypes()
	}
	return nil
}

// ParameterNames returns a name for every argument. Names come from the
// MethodParameters attribute if present, otherwise from local variables that
// start at pc 0 in the argument slots; anything else is named argN.
func (m *Member) ParameterNames() ([]string, error) {
	args, err := m.ArgumentTypes()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(args))

	if mp, ok := m.Attribute(AttrMethodParameters).(*MethodParametersAttribute); ok && len(mp.Parameters) == len(args) {
		for i, p := range mp.Parameters {
			if p.NameIndex == 0 {
				continue
			}
			if names[i], err = m.pool.Utf8(p.NameIndex); err != nil {
				return nil, fmt.Errorf("resolving parameter %d name: %w", i, err)
			}
		}
	} else if lvt := m.LocalVariableTable(); len(lvt) > 0 {
		bySlot := make(map[uint16]uint16, len(lvt))
		for _, lv := range lvt {
			if lv.StartPC == 0 {
				bySlot[lv.Index] = lv.NameIndex
			}
		}
		for i, slot := range m.slots {
			nameIndex, ok := bySlot[uint16(slot)]
			if !ok {
				continue
			}
			if names[i], err = m.pool.Utf8(nameIndex); err != nil {
				return nil, fmt.Errorf("resolving local variable name for slot %d: %w", slot, err)
			}
		}
	}

	for i := range names {
		if names[i] == "" {
			names[i] = fmt.Sprintf("arg%d", i)
		}
	}
	return names, nil
}

// ExceptionNames resolves the declared thrown exceptions of a method.
func (m *Member) ExceptionNames() ([]string, error) {
	ex, ok := m.Attribute(AttrExceptions).(*ExceptionsAttribute)
	if !ok {
		return nil, nil
	}
	names := make([]string, len(ex.ExceptionIndexes))
	for i, idx := range ex.ExceptionIndexes {
		name, err := m.pool.ClassName(idx)
		if err != nil {
			return nil, err
		}
		names[i] = name
	}
	return names, nil
}

// Signature returns the generic signature, or "" when there is none.
func (m *Member) Signature() (string, error) {
	sig, ok := m.Attribute(AttrSignature).(*SignatureAttribute)
	if !ok {
		return "", nil
	}
	return m.pool.Utf8(sig.SignatureIndex)
}

// ConstantValue returns the constant pool entry named by a field's
// ConstantValue attribute, or nil.
func (m *Member) ConstantValue() (Constant, error) {
	cv, ok := m.Attribute(AttrConstantValue).(*ConstantValueAttribute)
	if !ok {
		return nil, nil
	}
	return m.pool.Entry(cv.ValueIndex)
}

// IsDeprecated reports whether the member carries a Deprecated attribute.
func (m *Member) IsDeprecated() bool {
	return m.Attribute(AttrDeprecated) != nil
}

func (d *decoder) parseMembers(c *cursor.Cursor, pool *ConstantPool, kind string, isMethod bool) ([]*Member, error) {
	count, err := c.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("reading %ss count: %w", kind, err)
	}
	members := make([]*Member, count)
	for i := range members {
		var f [3]uint16
		if err := readU16s(c, f[:]); err != nil {
			return nil, fmt.Errorf("reading %s %d header: %w", kind, i, err)
		}

		name, err := pool.Utf8(f[1])
		if err != nil {
			return nil, fmt.Errorf("resolving %s %d name: %w", kind, i, err)
		}
		desc, err := pool.Utf8(f[2])
		if err != nil {
			return nil, fmt.Errorf("resolving %s %d descriptor: %w", kind, i, err)
		}

		attrs, err := d.parseAttributes(c, pool)
		if err != nil {
			return nil, fmt.Errorf("parsing %s %s attributes: %w", kind, name, err)
		}

		members[i] = &Member{
			AccessFlags:     AccessFlags(f[0]),
			NameIndex:       f[1],
			DescriptorIndex: f[2],
			Attributes:      attrs,
			pool:            pool,
			name:            name,
			descriptor:      desc,
			isMethod:        isMethod,
		}
	}
	return members, nil
}
