package classfile

import "strings"

// AccessFlags is the access_flags bitset of a class, field or method.
type AccessFlags uint16

// Access flags. Some bits are reused with a different meaning depending on
// whether they appear on a class, a field or a method.
const (
	AccPublic       AccessFlags = 0x0001
	AccPrivate      AccessFlags = 0x0002
	AccProtected    AccessFlags = 0x0004
	AccStatic       AccessFlags = 0x0008
	AccFinal        AccessFlags = 0x0010
	AccSuper        AccessFlags = 0x0020 // class
	AccSynchronized AccessFlags = 0x0020 // method
	AccVolatile     AccessFlags = 0x0040 // field
	AccBridge       AccessFlags = 0x0040 // method
	AccTransient    AccessFlags = 0x0080 // field
	AccVarargs      AccessFlags = 0x0080 // method
	AccNative       AccessFlags = 0x0100
	AccInterface    AccessFlags = 0x0200
	AccAbstract     AccessFlags = 0x0400
	AccStrict       AccessFlags = 0x0800
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000
	AccModule       AccessFlags = 0x8000
)

func (f AccessFlags) IsPublic() bool    { return f&AccPublic != 0 }
func (f AccessFlags) IsPrivate() bool   { return f&AccPrivate != 0 }
func (f AccessFlags) IsProtected() bool { return f&AccProtected != 0 }
func (f AccessFlags) IsStatic() bool    { return f&AccStatic != 0 }
func (f AccessFlags) IsFinal() bool     { return f&AccFinal != 0 }
func (f AccessFlags) IsInterface() bool { return f&AccInterface != 0 }
func (f AccessFlags) IsAbstract() bool  { return f&AccAbstract != 0 }
func (f AccessFlags) IsSynthetic() bool { return f&AccSynthetic != 0 }
func (f AccessFlags) IsEnum() bool      { return f&AccEnum != 0 }

// normalizeClassFlags sets ACC_ABSTRACT on interfaces. Some encoders omit the
// redundant bit.
func normalizeClassFlags(f AccessFlags) AccessFlags {
	if f.IsInterface() {
		f |= AccAbstract
	}
	return f
}

var classFlagNames = []struct {
	flag AccessFlags
	name string
}{
	{AccPublic, "public"},
	{AccFinal, "final"},
	{AccSuper, "super"},
	{AccInterface, "interface"},
	{AccAbstract, "abstract"},
	{AccSynthetic, "synthetic"},
	{AccAnnotation, "annotation"},
	{AccEnum, "enum"},
	{AccModule, "module"},
}

var fieldFlagNames = []struct {
	flag AccessFlags
	name string
}{
	{AccPublic, "public"},
	{AccPrivate, "private"},
	{AccProtected, "protected"},
	{AccStatic, "static"},
	{AccFinal, "final"},
	{AccVolatile, "volatile"},
	{AccTransient, "transient"},
	{AccSynthetic, "synthetic"},
	{AccEnum, "enum"},
}

var methodFlagNames = []struct {
	flag AccessFlags
	name string
}{
	{AccPublic, "public"},
	{AccPrivate, "private"},
	{AccProtected, "protected"},
	{AccStatic, "static"},
	{AccFinal, "final"},
	{AccSynchronized, "synchronized"},
	{AccBridge, "bridge"},
	{AccVarargs, "varargs"},
	{AccNative, "native"},
	{AccAbstract, "abstract"},
	{AccStrict, "strict"},
	{AccSynthetic, "synthetic"},
}

func flagNames(f AccessFlags, table []struct {
	flag AccessFlags
	name string
}) string {
	var names []string
	for _, e := range table {
		if f&e.flag != 0 {
			names = append(names, e.name)
		}
	}
	return strings.Join(names, " ")
}

// ClassString returns the flag names as they apply to a class.
func (f AccessFlags) ClassString() string { return flagNames(f, classFlagNames) }

// FieldString returns the flag names as they apply to a field.
func (f AccessFlags) FieldString() string { return flagNames(f, fieldFlagNames) }

// MethodString returns the flag names as they apply to a method.
func (f AccessFlags) MethodString() string { return flagNames(f, methodFlagNames) }

// ClassFile represents a decoded .class file. It is immutable once returned
// by Decode and may be shared between goroutines.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion Version
	ConstantPool *ConstantPool
	AccessFlags  AccessFlags
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []*Member
	Methods      []*Member
	Attributes   []Attribute
}

// ClassName returns the internal name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return cf.ConstantPool.ClassName(cf.ThisClass)
}

// SuperClassName returns the internal name of the super class.
// Returns "" if this is java/lang/Object (SuperClass == 0).
func (cf *ClassFile) SuperClassName() string {
	if cf.SuperClass == 0 {
		return ""
	}
	name, err := cf.ConstantPool.ClassName(cf.SuperClass)
	if err != nil {
		return ""
	}
	return name
}

// InterfaceNames resolves the direct superinterfaces in declaration order.
func (cf *ClassFile) InterfaceNames() ([]string, error) {
	names := make([]string, len(cf.Interfaces))
	for i, idx := range cf.Interfaces {
		name, err := cf.ConstantPool.ClassName(idx)
		if err != nil {
			return nil, err
		}
		names[i] = name
	}
	return names, nil
}

// Member finds a method or field by name and descriptor. Methods are searched
// first; a field and a method cannot share a descriptor.
func (cf *ClassFile) Member(name, descriptor string) *Member {
	if m := cf.FindMethod(name, descriptor); m != nil {
		return m
	}
	return cf.FindField(name, descriptor)
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *Member {
	for _, m := range cf.Methods {
		if m.name == name && m.descriptor == descriptor {
			return m
		}
	}
	return nil
}

// FindMethodByName finds a method by name only (first match).
func (cf *ClassFile) FindMethodByName(name string) *Member {
	for _, m := range cf.Methods {
		if m.name == name {
			return m
		}
	}
	return nil
}

// FindField finds a field by name and descriptor.
func (cf *ClassFile) FindField(name, descriptor string) *Member {
	for _, f := range cf.Fields {
		if f.name == name && f.descriptor == descriptor {
			return f
		}
	}
	return nil
}

// Attribute returns the first class-level attribute with the given name.
func (cf *ClassFile) Attribute(name string) Attribute {
	return findAttribute(cf.Attributes, name)
}

// SourceFile returns the SourceFile attribute value, or "".
func (cf *ClassFile) SourceFile() string {
	sf, ok := cf.Attribute(AttrSourceFile).(*SourceFileAttribute)
	if !ok {
		return ""
	}
	s, err := cf.ConstantPool.Utf8(sf.SourceFileIndex)
	if err != nil {
		return ""
	}
	return s
}

// BootstrapMethods returns the entries of the BootstrapMethods attribute.
func (cf *ClassFile) BootstrapMethods() []BootstrapMethod {
	if bm, ok := cf.Attribute(AttrBootstrapMethods).(*BootstrapMethodsAttribute); ok {
		return bm.Methods
	}
	return nil
}
