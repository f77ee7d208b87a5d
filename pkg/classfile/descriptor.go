package classfile

import (
	"strconv"
	"strings"
)

// Kind is the shape of a TypeDescriptor.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBoolean
	KindChar
	KindByte
	KindShort
	KindInt
	KindFloat
	KindLong
	KindDouble
	KindArray
	KindObject
	KindMethod
)

// maxArrayDimensions is the format's limit on array dimensionality.
const maxArrayDimensions = 255

var primitiveCodes = map[Kind]byte{
	KindVoid:    'V',
	KindBoolean: 'Z',
	KindChar:    'C',
	KindByte:    'B',
	KindShort:   'S',
	KindInt:     'I',
	KindFloat:   'F',
	KindLong:    'J',
	KindDouble:  'D',
}

var javaNames = map[Kind]string{
	KindVoid:    "void",
	KindBoolean: "boolean",
	KindChar:    "char",
	KindByte:    "byte",
	KindShort:   "short",
	KindInt:     "int",
	KindFloat:   "float",
	KindLong:    "long",
	KindDouble:  "double",
}

func (k Kind) String() string {
	switch k {
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindMethod:
		return "method"
	}
	if s, ok := javaNames[k]; ok {
		return s
	}
	return "invalid"
}

// kindOf maps the leading descriptor character to its Kind.
func kindOf(c byte) (Kind, bool) {
	switch c {
	case 'V':
		return KindVoid, true
	case 'Z':
		return KindBoolean, true
	case 'C':
		return KindChar, true
	case 'B':
		return KindByte, true
	case 'S':
		return KindShort, true
	case 'I':
		return KindInt, true
	case 'F':
		return KindFloat, true
	case 'J':
		return KindLong, true
	case 'D':
		return KindDouble, true
	case '[':
		return KindArray, true
	case 'L':
		return KindObject, true
	case '(':
		return KindMethod, true
	}
	return 0, false
}

// TypeDescriptor is a parsed field or method descriptor. Two descriptors are
// equal (==, map keys) when their descriptor text is equal, whatever string
// they were sliced from.
type TypeDescriptor struct {
	kind Kind
	text string
}

// ParseDescriptor parses a field descriptor, a method descriptor or "V".
func ParseDescriptor(text string) (TypeDescriptor, error) {
	if text == "" {
		return TypeDescriptor{}, &DescriptorError{Text: text, Msg: "empty descriptor"}
	}
	var end int
	var err error
	switch text[0] {
	case '(':
		end, err = methodEnd(text)
	case 'V':
		end = 1
	default:
		end, err = fieldEnd(text, 0)
	}
	if err != nil {
		return TypeDescriptor{}, err
	}
	if end != len(text) {
		return TypeDescriptor{}, &DescriptorError{Text: text, Offset: end, Msg: "trailing characters"}
	}
	k, _ := kindOf(text[0])
	return TypeDescriptor{kind: k, text: text}, nil
}

// ParseFieldDescriptor parses a descriptor that must denote a field type.
func ParseFieldDescriptor(text string) (TypeDescriptor, error) {
	t, err := ParseDescriptor(text)
	if err != nil {
		return TypeDescriptor{}, err
	}
	if t.kind == KindVoid || t.kind == KindMethod {
		return TypeDescriptor{}, &DescriptorError{Text: text, Msg: "not a field type"}
	}
	return t, nil
}

// ParseMethodDescriptor parses a descriptor that must denote a method.
func ParseMethodDescriptor(text string) (TypeDescriptor, error) {
	if text == "" || text[0] != '(' {
		return TypeDescriptor{}, &DescriptorError{Text: text, Msg: "method descriptor must start with '('"}
	}
	return ParseDescriptor(text)
}

// ParseArgumentList returns the argument types of a method descriptor.
func ParseArgumentList(methodDescriptor string) ([]TypeDescriptor, error) {
	t, err := ParseMethodDescriptor(methodDescriptor)
	if err != nil {
		return nil, err
	}
	return t.Arguments(), nil
}

// fieldEnd returns the index just past the field type starting at s[i].
func fieldEnd(s string, i int) (int, error) {
	if i >= len(s) {
		return 0, &DescriptorError{Text: s, Offset: i, Msg: "unexpected end of descriptor"}
	}
	switch s[i] {
	case 'Z', 'C', 'B', 'S', 'I', 'F', 'J', 'D':
		return i + 1, nil
	case 'L':
		semi := strings.IndexByte(s[i+1:], ';')
		if semi < 0 {
			return 0, &DescriptorError{Text: s, Offset: i, Msg: "object type missing ';'"}
		}
		if semi == 0 {
			return 0, &DescriptorError{Text: s, Offset: i, Msg: "empty class name"}
		}
		name := s[i+1 : i+1+semi]
		if strings.ContainsAny(name, ".[") {
			return 0, &DescriptorError{Text: s, Offset: i + 1, Msg: "invalid character in class name"}
		}
		return i + 2 + semi, nil
	case '[':
		j := i
		for j < len(s) && s[j] == '[' {
			j++
		}
		if j-i > maxArrayDimensions {
			return 0, &DescriptorError{Text: s, Offset: i, Msg: "too many array dimensions"}
		}
		return fieldEnd(s, j)
	}
	return 0, &DescriptorError{Text: s, Offset: i, Msg: "invalid type character " + string(s[i])}
}

// methodEnd validates a whole method descriptor and returns its length.
func methodEnd(s string) (int, error) {
	i, err := scanArguments(s, func(int, int) {})
	if err != nil {
		return 0, err
	}
	if i < len(s) && s[i] == 'V' {
		return i + 1, nil
	}
	return fieldEnd(s, i)
}

// scanArguments walks the argument list of a method descriptor, calling visit
// with the span of each argument, and returns the index of the return type.
// Counting and materializing both go through this one walk.
func scanArguments(s string, visit func(start, end int)) (int, error) {
	if s == "" || s[0] != '(' {
		return 0, &DescriptorError{Text: s, Msg: "method descriptor must start with '('"}
	}
	i := 1
	for {
		if i >= len(s) {
			return 0, &DescriptorError{Text: s, Offset: i, Msg: "missing ')'"}
		}
		if s[i] == ')' {
			return i + 1, nil
		}
		end, err := fieldEnd(s, i)
		if err != nil {
			return 0, err
		}
		visit(i, end)
		i = end
	}
}

func spanOf(s string, start, end int) TypeDescriptor {
	k, _ := kindOf(s[start])
	return TypeDescriptor{kind: k, text: s[start:end]}
}

// Kind returns the descriptor's shape.
func (t TypeDescriptor) Kind() Kind { return t.kind }

// String renders the descriptor text. ParseDescriptor(t.String()) == t.
func (t TypeDescriptor) String() string { return t.text }

// IsPrimitive reports whether t is a primitive type or void.
func (t TypeDescriptor) IsPrimitive() bool { return t.kind <= KindDouble && t.text != "" }

// IsWide reports whether values of t occupy two local variable slots.
func (t TypeDescriptor) IsWide() bool { return t.kind == KindLong || t.kind == KindDouble }

// Slots returns the number of local variable slots a value of t occupies:
// 2 for long and double, 0 for void and methods, 1 otherwise.
func (t TypeDescriptor) Slots() int {
	switch t.kind {
	case KindLong, KindDouble:
		return 2
	case KindVoid, KindMethod:
		return 0
	}
	return 1
}

// Dimensions returns the array dimensionality, or 0 for non-arrays.
func (t TypeDescriptor) Dimensions() int {
	if t.kind != KindArray {
		return 0
	}
	n := 0
	for n < len(t.text) && t.text[n] == '[' {
		n++
	}
	return n
}

// Elem returns the innermost element type of an array.
func (t TypeDescriptor) Elem() TypeDescriptor {
	if t.kind != KindArray {
		return TypeDescriptor{}
	}
	n := t.Dimensions()
	return spanOf(t.text, n, len(t.text))
}

// Component returns the array type with one fewer dimension.
func (t TypeDescriptor) Component() TypeDescriptor {
	if t.kind != KindArray {
		return TypeDescriptor{}
	}
	return spanOf(t.text, 1, len(t.text))
}

// InternalName returns the slash-separated class name of an object type.
func (t TypeDescriptor) InternalName() string {
	if t.kind != KindObject {
		return ""
	}
	return t.text[1 : len(t.text)-1]
}

// ClassName returns the dot-separated class name of an object type.
func (t TypeDescriptor) ClassName() string {
	return strings.ReplaceAll(t.InternalName(), "/", ".")
}

// Arguments returns the argument types of a method descriptor.
func (t TypeDescriptor) Arguments() []TypeDescriptor {
	if t.kind != KindMethod {
		return nil
	}
	n := 0
	if _, err := scanArguments(t.text, func(int, int) { n++ }); err != nil {
		return nil
	}
	args := make([]TypeDescriptor, 0, n)
	scanArguments(t.text, func(start, end int) {
		args = append(args, spanOf(t.text, start, end))
	})
	if len(args) != n {
		panic("classfile: argument scan disagreed with argument count")
	}
	return args
}

// Return returns the return type of a method descriptor.
func (t TypeDescriptor) Return() TypeDescriptor {
	if t.kind != KindMethod {
		return TypeDescriptor{}
	}
	i, err := scanArguments(t.text, func(int, int) {})
	if err != nil || i >= len(t.text) {
		return TypeDescriptor{}
	}
	return spanOf(t.text, i, len(t.text))
}

// JavaName renders t as source-level type text, e.g. "int[][]" or
// "java.lang.String". Methods render as "ret (arg, arg)".
func (t TypeDescriptor) JavaName() string {
	switch t.kind {
	case KindObject:
		return t.ClassName()
	case KindArray:
		return t.Elem().JavaName() + strings.Repeat("[]", t.Dimensions())
	case KindMethod:
		args := t.Arguments()
		names := make([]string, len(args))
		for i, a := range args {
			names[i] = a.JavaName()
		}
		return t.Return().JavaName() + " (" + strings.Join(names, ", ") + ")"
	}
	return javaNames[t.kind]
}

// PrimitiveType returns the descriptor of a primitive kind or void. It panics
// for other kinds.
func PrimitiveType(k Kind) TypeDescriptor {
	c, ok := primitiveCodes[k]
	if !ok {
		panic("classfile: PrimitiveType called with non-primitive kind " + k.String())
	}
	return TypeDescriptor{kind: k, text: string(c)}
}

// ObjectType returns the descriptor of the class with the given internal
// name. It panics if the name would not parse back, e.g. an empty or dotted
// name.
func ObjectType(internalName string) TypeDescriptor {
	text := "L" + internalName + ";"
	if end, err := fieldEnd(text, 0); err != nil || end != len(text) {
		panic("classfile: invalid internal name " + strconv.Quote(internalName))
	}
	return TypeDescriptor{kind: KindObject, text: text}
}

// ArrayOf returns an array of elem with dims additional dimensions. It panics
// if elem is void or a method, if dims is not positive, or if the result
// would exceed 255 dimensions.
func ArrayOf(elem TypeDescriptor, dims int) TypeDescriptor {
	if dims < 1 || elem.kind == KindVoid || elem.kind == KindMethod || elem.text == "" {
		panic("classfile: invalid array element or dimensions")
	}
	if elem.Dimensions()+dims > maxArrayDimensions {
		panic("classfile: too many array dimensions")
	}
	return TypeDescriptor{kind: KindArray, text: strings.Repeat("[", dims) + elem.text}
}

// MethodType builds a method descriptor from argument and return types. It
// panics if an argument is not a field type or ret is neither a field type
// nor void.
func MethodType(args []TypeDescriptor, ret TypeDescriptor) TypeDescriptor {
	var b strings.Builder
	b.WriteByte('(')
	for _, a := range args {
		if a.text == "" || a.kind == KindVoid || a.kind == KindMethod {
			panic("classfile: invalid method argument type " + strconv.Quote(a.text))
		}
		b.WriteString(a.text)
	}
	b.WriteByte(')')
	if ret.text == "" || ret.kind == KindMethod {
		panic("classfile: invalid method return type " + strconv.Quote(ret.text))
	}
	b.WriteString(ret.text)
	return TypeDescriptor{kind: KindMethod, text: b.String()}
}

// ArgumentSlots returns the local variable slot of each argument. Slot 0
// holds the receiver unless the method is static; long and double arguments
// take two slots.
func ArgumentSlots(isStatic bool, args []TypeDescriptor) []int {
	slots := make([]int, len(args))
	next := 1
	if isStatic {
		next = 0
	}
	for i, a := range args {
		slots[i] = next
		next += a.Slots()
	}
	return slots
}
