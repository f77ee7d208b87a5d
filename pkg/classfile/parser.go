package classfile

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/daimatz/jclass/pkg/classfile/internal/cursor"
)

const classMagic = 0xCAFEBABE

// Option configures a single decode.
type Option func(*decoder)

// WithLogger sets the logger used for decode anomalies. The package logger is
// used otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(d *decoder) {
		if l != nil {
			d.log = l
		}
	}
}

// WithUnknownConstantTags records unknown constant pool tags as
// ConstantUnknown entries without consuming a payload, instead of failing.
// Only safe for producers known to emit payload-free unknown tags.
func WithUnknownConstantTags() Option {
	return func(d *decoder) { d.unknownTags = true }
}

type decoder struct {
	log         *zap.Logger
	unknownTags bool
}

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string, opts ...Option) (*ClassFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data, opts...)
}

// Parse reads a whole .class file from r and decodes it.
func Parse(r io.Reader, opts ...Option) (*ClassFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading class file: %w", err)
	}
	return Decode(data, opts...)
}

// Decode decodes a class file held in memory. It either returns a complete
// ClassFile or an error; it never returns partial results. Decode keeps no
// shared state and may be called concurrently.
func Decode(data []byte, opts ...Option) (*ClassFile, error) {
	d := &decoder{log: Logger()}
	for _, opt := range opts {
		opt(d)
	}
	return d.decode(cursor.New(data))
}

func (d *decoder) decode(c *cursor.Cursor) (*ClassFile, error) {
	cf := &ClassFile{}

	// Magic number
	magic, err := c.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("reading magic number: %w", err)
	}
	if magic != classMagic {
		return nil, &NotAClassFileError{Magic: magic}
	}

	// Version
	if cf.MinorVersion, err = c.ReadU16(); err != nil {
		return nil, fmt.Errorf("reading minor version: %w", err)
	}
	major, err := c.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("reading major version: %w", err)
	}
	cf.MajorVersion = Version(major)
	if !cf.MajorVersion.Known() {
		return nil, &UnsupportedVersionError{Major: major, Minor: cf.MinorVersion}
	}

	// Constant pool
	cpCount, err := c.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("reading constant pool count: %w", err)
	}
	if cf.ConstantPool, err = d.parseConstantPool(c, cpCount); err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}

	// Access flags, this_class, super_class
	flags, err := c.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("reading access flags: %w", err)
	}
	cf.AccessFlags = normalizeClassFlags(AccessFlags(flags))
	if cf.ThisClass, err = c.ReadU16(); err != nil {
		return nil, fmt.Errorf("reading this_class: %w", err)
	}
	if _, err := cf.ConstantPool.ClassName(cf.ThisClass); err != nil {
		return nil, fmt.Errorf("resolving this_class: %w", err)
	}
	if cf.SuperClass, err = c.ReadU16(); err != nil {
		return nil, fmt.Errorf("reading super_class: %w", err)
	}

	// Interfaces
	if cf.Interfaces, err = c.ReadU16Array(); err != nil {
		return nil, fmt.Errorf("reading interfaces: %w", err)
	}

	// Fields and methods
	if cf.Fields, err = d.parseMembers(c, cf.ConstantPool, "field", false); err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}
	if cf.Methods, err = d.parseMembers(c, cf.ConstantPool, "method", true); err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}

	// Class-level attributes
	if cf.Attributes, err = d.parseAttributes(c, cf.ConstantPool); err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}

	if rest := c.Remaining(); rest > 0 {
		d.log.Warn("trailing bytes after class file", zap.Int("bytes", rest))
	}
	return cf, nil
}
