package ncs

// Bounds-checked big-endian reads over the NCS instruction stream. NCS
// encodes every multi-byte operand big-endian.

import (
	"encoding/binary"
	"errors"
	"math"

	"golang.org/x/text/encoding/charmap"
)

var ErrTruncated = errors.New("ncs: unexpected end of bytecode")

// reader reads operands sequentially from the instruction region.
type reader struct {
	data []byte
	pos  int
}

// Position returns the current absolute byte offset.
func (r *reader) Position() int { return r.pos }

// Remaining returns bytes left to read.
func (r *reader) Remaining() int { return len(r.data) - r.pos }

func (r *reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) ReadUint16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *reader) ReadUint32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadString reads a length-prefixed string operand. The legacy compiler
// wrote string constants in the Windows-1252 code page.
func (r *reader) ReadString() (string, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	if r.pos+int(n) > len(r.data) {
		return "", ErrTruncated
	}
	raw := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		// Windows-1252 decodes every byte; treat failure as raw passthrough.
		return string(raw), nil
	}
	return string(decoded), nil
}
