package preprocessor

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jaysonsantos/tremor-runtime/errors"
)

const (
	// DefaultMaxLineLength bounds the carry-over buffer of the lines preprocessor.
	DefaultMaxLineLength = 1 << 20
	// DefaultMaxFrameLength bounds a single length-prefixed frame.
	DefaultMaxFrameLength = 16 << 20
)

// Lines splits input on a separator byte. A trailing partial line is held
// back and prefixed to the next call's input.
type Lines struct {
	Separator byte
	MaxLength int

	carry []byte
}

// NewLines creates a newline framing preprocessor
func NewLines() *Lines {
	return &Lines{Separator: '\n', MaxLength: DefaultMaxLineLength}
}

// Name returns the preprocessor name
func (p *Lines) Name() string { return "lines" }

// Process returns every complete line in carry+data
func (p *Lines) Process(_ uint64, data []byte) ([][]byte, error) {
	buf := data
	if len(p.carry) > 0 {
		buf = append(p.carry, data...)
		p.carry = nil
	}

	var out [][]byte
	for {
		i := bytes.IndexByte(buf, p.Separator)
		if i < 0 {
			break
		}
		line := make([]byte, i)
		copy(line, buf[:i])
		out = append(out, line)
		buf = buf[i+1:]
	}

	if len(buf) > 0 {
		if p.MaxLength > 0 && len(buf) > p.MaxLength {
			return out, fmt.Errorf("partial line of %d bytes exceeds limit %d: %w",
				len(buf), p.MaxLength, errors.ErrInvalidData)
		}
		p.carry = append([]byte(nil), buf...)
	}
	return out, nil
}

// Pending returns the number of carried-over bytes.
func (p *Lines) Pending() int {
	return len(p.carry)
}

// LengthPrefixed splits input into frames preceded by a 4-byte big-endian
// length. Incomplete frames are carried over.
type LengthPrefixed struct {
	MaxLength int

	carry []byte
}

// NewLengthPrefixed creates a length-prefixed framing preprocessor
func NewLengthPrefixed() *LengthPrefixed {
	return &LengthPrefixed{MaxLength: DefaultMaxFrameLength}
}

// Name returns the preprocessor name
func (p *LengthPrefixed) Name() string { return "length-prefixed" }

// Process returns every complete frame in carry+data
func (p *LengthPrefixed) Process(_ uint64, data []byte) ([][]byte, error) {
	buf := append(p.carry, data...)
	p.carry = nil

	var out [][]byte
	for len(buf) >= 4 {
		n := int(binary.BigEndian.Uint32(buf[:4]))
		if p.MaxLength > 0 && n > p.MaxLength {
			return out, fmt.Errorf("frame of %d bytes exceeds limit %d: %w",
				n, p.MaxLength, errors.ErrInvalidData)
		}
		if len(buf) < 4+n {
			break
		}
		frame := make([]byte, n)
		copy(frame, buf[4:4+n])
		out = append(out, frame)
		buf = buf[4+n:]
	}

	if len(buf) > 0 {
		p.carry = append([]byte(nil), buf...)
	}
	return out, nil
}
