package classfile

import (
	"errors"
	"fmt"

	"github.com/daimatz/jclass/pkg/classfile/internal/cursor"
)

// ErrNotAClassFile matches any *NotAClassFileError via errors.Is.
var ErrNotAClassFile = errors.New("not a class file")

// NotAClassFileError is returned when the input does not start with 0xCAFEBABE.
type NotAClassFileError struct {
	Magic uint32
}

func (e *NotAClassFileError) Error() string {
	return fmt.Sprintf("invalid magic number: 0x%08X (expected 0x%08X)", e.Magic, uint32(classMagic))
}

func (e *NotAClassFileError) Is(target error) bool { return target == ErrNotAClassFile }

// UnsupportedVersionError is returned for a major version outside the known range.
type UnsupportedVersionError struct {
	Major uint16
	Minor uint16
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported class file version %d.%d", e.Major, e.Minor)
}

// TruncatedInputError reports a read past the end of the input, with the
// offset at which the failed read started.
type TruncatedInputError = cursor.TruncatedInputError

// BadConstantIndexError is returned when a constant pool index does not name a
// live entry.
type BadConstantIndexError struct {
	Index  uint16
	Reason string
}

func (e *BadConstantIndexError) Error() string {
	return fmt.Sprintf("invalid constant pool index %d: %s", e.Index, e.Reason)
}

// ConstantTypeError is returned when a live constant pool entry is not of the
// variant the caller asked for.
type ConstantTypeError struct {
	Index uint16
	Want  ConstantTag
	Got   ConstantTag
}

func (e *ConstantTypeError) Error() string {
	return fmt.Sprintf("constant pool index %d is %s, not %s", e.Index, e.Got, e.Want)
}

// UnknownConstantTagError is returned when the constant pool contains a tag
// byte this decoder does not know the payload size of.
type UnknownConstantTagError struct {
	Tag    uint8
	Index  uint16
	Offset int
}

func (e *UnknownConstantTagError) Error() string {
	return fmt.Sprintf("unknown constant pool tag %d at index %d (offset %d)", e.Tag, e.Index, e.Offset)
}

// AttributeLengthError is returned when a structured attribute decoder does not
// consume exactly the declared attribute length.
type AttributeLengthError struct {
	Name     string
	Declared uint32
	Consumed int
}

func (e *AttributeLengthError) Error() string {
	return fmt.Sprintf("attribute %s: declared length %d, decoded %d bytes", e.Name, e.Declared, e.Consumed)
}

// DescriptorError reports a malformed field or method descriptor.
type DescriptorError struct {
	Text   string
	Offset int
	Msg    string
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("descriptor %q at %d: %s", e.Text, e.Offset, e.Msg)
}
