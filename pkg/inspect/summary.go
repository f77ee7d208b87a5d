// Package inspect turns decoded classes into printable summaries: styled
// text, JSON, CBOR and unified diffs between two classes.
package inspect

import (
	"fmt"

	"github.com/daimatz/jclass/pkg/classfile"
)

// Summary is a resolved, serializable view of a class file. Every constant
// pool index is replaced with the text it names.
type Summary struct {
	Name       string          `json:"name" cbor:"1,keyasint"`
	Super      string          `json:"super,omitempty" cbor:"2,keyasint,omitempty"`
	Interfaces []string        `json:"interfaces,omitempty" cbor:"3,keyasint,omitempty"`
	Version    string          `json:"version" cbor:"4,keyasint"`
	Major      uint16          `json:"major" cbor:"5,keyasint"`
	Minor      uint16          `json:"minor" cbor:"6,keyasint"`
	Access     string          `json:"access" cbor:"7,keyasint"`
	SourceFile string          `json:"sourceFile,omitempty" cbor:"8,keyasint,omitempty"`
	Signature  string          `json:"signature,omitempty" cbor:"9,keyasint,omitempty"`
	Constants  int             `json:"constants" cbor:"10,keyasint"`
	Fields     []MemberSummary `json:"fields,omitempty" cbor:"11,keyasint,omitempty"`
	Methods    []MemberSummary `json:"methods,omitempty" cbor:"12,keyasint,omitempty"`
	Attributes []string        `json:"attributes,omitempty" cbor:"13,keyasint,omitempty"`
}

// MemberSummary describes one field or method.
type MemberSummary struct {
	Access     string   `json:"access" cbor:"1,keyasint"`
	Name       string   `json:"name" cbor:"2,keyasint"`
	Descriptor string   `json:"descriptor" cbor:"3,keyasint"`
	Type       string   `json:"type" cbor:"4,keyasint"`
	Signature  string   `json:"signature,omitempty" cbor:"5,keyasint,omitempty"`
	Parameters []string `json:"parameters,omitempty" cbor:"6,keyasint,omitempty"`
	Slots      []int    `json:"slots,omitempty" cbor:"7,keyasint,omitempty"`
	Exceptions []string `json:"exceptions,omitempty" cbor:"8,keyasint,omitempty"`
	Code       *Code    `json:"code,omitempty" cbor:"9,keyasint,omitempty"`
	Attributes []string `json:"attributes,omitempty" cbor:"10,keyasint,omitempty"`
}

// Code summarizes a method body.
type Code struct {
	MaxStack    uint16 `json:"maxStack" cbor:"1,keyasint"`
	MaxLocals   uint16 `json:"maxLocals" cbor:"2,keyasint"`
	Length      int    `json:"length" cbor:"3,keyasint"`
	Handlers    int    `json:"handlers,omitempty" cbor:"4,keyasint,omitempty"`
	Lines       int    `json:"lines,omitempty" cbor:"5,keyasint,omitempty"`
	StackFrames int    `json:"stackFrames,omitempty" cbor:"6,keyasint,omitempty"`
}

// Summarize resolves cf into a Summary.
func Summarize(cf *classfile.ClassFile) (*Summary, error) {
	name, err := cf.ClassName()
	if err != nil {
		return nil, err
	}
	ifaces, err := cf.InterfaceNames()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	s := &Summary{
		Name:       name,
		Super:      cf.SuperClassName(),
		Interfaces: ifaces,
		Version:    cf.MajorVersion.String(),
		Major:      uint16(cf.MajorVersion),
		Minor:      cf.MinorVersion,
		Access:     cf.AccessFlags.ClassString(),
		SourceFile: cf.SourceFile(),
		Constants:  cf.ConstantPool.Count(),
		Attributes: attributeNames(cf.Attributes),
	}
	if sig, ok := cf.Attribute(classfile.AttrSignature).(*classfile.SignatureAttribute); ok {
		if s.Signature, err = cf.ConstantPool.Utf8(sig.SignatureIndex); err != nil {
			return nil, fmt.Errorf("%s: class signature: %w", name, err)
		}
	}

	for _, f := range cf.Fields {
		ms, err := summarizeMember(f)
		if err != nil {
			return nil, fmt.Errorf("%s: field %s: %w", name, f.Name(), err)
		}
		s.Fields = append(s.Fields, ms)
	}
	for _, m := range cf.Methods {
		ms, err := summarizeMember(m)
		if err != nil {
			return nil, fmt.Errorf("%s: method %s%s: %w", name, m.Name(), m.Descriptor(), err)
		}
		s.Methods = append(s.Methods, ms)
	}
	return s, nil
}

func summarizeMember(m *classfile.Member) (MemberSummary, error) {
	ms := MemberSummary{
		Name:       m.Name(),
		Descriptor: m.Descriptor(),
		Attributes: attributeNames(m.Attributes),
	}
	t, err := m.Type()
	if err != nil {
		return ms, err
	}
	ms.Type = t.JavaName()
	if ms.Signature, err = m.Signature(); err != nil {
		return ms, err
	}

	if !m.IsMethod() {
		ms.Access = m.AccessFlags.FieldString()
		return ms, nil
	}

	ms.Access = m.AccessFlags.MethodString()
	if ms.Parameters, err = m.ParameterNames(); err != nil {
		return ms, err
	}
	if ms.Slots, err = m.ArgumentSlots(); err != nil {
		return ms, err
	}
	if ms.Exceptions, err = m.ExceptionNames(); err != nil {
		return ms, err
	}
	if code := m.Code(); code != nil {
		ms.Code = &Code{
			MaxStack:  code.MaxStack,
			MaxLocals: code.MaxLocals,
			Length:    len(code.Code),
			Handlers:  len(code.ExceptionHandlers),
			Lines:     len(code.LineNumbers()),
		}
		if smt, ok := code.Attribute(classfile.AttrStackMapTable).(*classfile.StackMapTableAttribute); ok {
			ms.Code.StackFrames = len(smt.Entries)
		}
	}
	return ms, nil
}

func attributeNames(attrs []classfile.Attribute) []string {
	if len(attrs) == 0 {
		return nil
	}
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Name()
	}
	return names
}
