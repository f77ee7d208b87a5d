// Package cursor implements a forward-only big-endian reader over an
// in-memory byte slice.
package cursor

import (
	"encoding/binary"
	"fmt"
)

// TruncatedInputError reports a read that would run past the end of the input.
type TruncatedInputError struct {
	Offset int // absolute offset at which the read started
	Need   int
	Have   int
}

func (e *TruncatedInputError) Error() string {
	return fmt.Sprintf("truncated input at offset %d: need %d bytes, have %d", e.Offset, e.Need, e.Have)
}

// Cursor reads fixed-width values and advances its offset.
type Cursor struct {
	data []byte
	pos  int
	base int
}

// New creates a Cursor positioned at the start of data.
func New(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Position returns the absolute offset of the next byte to be read.
func (c *Cursor) Position() int {
	return c.base + c.pos
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.pos
}

func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 || n > len(c.data)-c.pos {
		return nil, &TruncatedInputError{Offset: c.Position(), Need: n, Have: c.Remaining()}
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadU8 reads an unsigned byte.
func (c *Cursor) ReadU8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadI8 reads a signed byte.
func (c *Cursor) ReadI8() (int8, error) {
	v, err := c.ReadU8()
	return int8(v), err
}

// ReadU16 reads a big-endian uint16.
func (c *Cursor) ReadU16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadI16 reads a big-endian int16.
func (c *Cursor) ReadI16() (int16, error) {
	v, err := c.ReadU16()
	return int16(v), err
}

// ReadU32 reads a big-endian uint32.
func (c *Cursor) ReadU32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadI32 reads a big-endian int32.
func (c *Cursor) ReadI32() (int32, error) {
	v, err := c.ReadU32()
	return int32(v), err
}

// ReadU64 reads a big-endian uint64.
func (c *Cursor) ReadU64() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadBytes reads exactly n bytes. The returned slice is a copy.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadU16Array reads a u16 count followed by that many u16 values.
func (c *Cursor) ReadU16Array() ([]uint16, error) {
	n, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	b, err := c.take(int(n) * 2)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, n)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(b[i*2:])
	}
	return out, nil
}

// Sub returns a cursor over the next n bytes and advances c past them.
// Offsets reported by the child stay absolute.
func (c *Cursor) Sub(n int) (*Cursor, error) {
	start := c.Position()
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	return &Cursor{data: b, base: start}, nil
}
