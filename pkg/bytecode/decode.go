package bytecode

import (
	"encoding/binary"

	"github.com/chain/txvm/errors"
)

// Instruction is one decoded instruction.
type Instruction struct {
	Offset  int    // Offset of the opcode byte
	Op      Opcode // Decoded opcode
	Wide    bool   // Operand was read in its wide form
	Operand int    // Constant index or signed jump delta; 0 when none
	Len     int    // Bytes consumed, opcode included
	Line    int    // Source line, 0 when unknown
}

// Next returns the offset of the instruction that follows in.
func (in Instruction) Next() int {
	return in.Offset + in.Len
}

// Target returns the absolute destination of a jump instruction.
func (in Instruction) Target() int {
	return in.Next() + in.Operand
}

// Decode decodes the instruction at offset. wide must be true when the
// previous instruction was a WIDE prefix.
func (c *Chunk) Decode(offset int, wide bool) (Instruction, error) {
	in := Instruction{Offset: offset, Line: c.LineAt(offset)}
	if offset < 0 || offset >= len(c.code) {
		return in, c.decodeErr(ErrTruncated, offset)
	}

	op, err := DecodeOpcode(c.code[offset])
	if err != nil {
		return in, c.decodeErr(err, offset)
	}
	in.Op = op
	in.Len = 1

	switch op {
	case OpConstant:
		idx, n, err := readConstantIndex(c.code, offset+1, wide)
		if err != nil {
			return in, c.decodeErr(err, offset)
		}
		if idx >= len(c.constants) {
			return in, c.decodeErr(errors.WithData(ErrUnknownConstant, "index", idx), offset)
		}
		in.Wide = wide
		in.Operand = idx
		in.Len += n

	case OpJmp, OpJmpf:
		delta, err := readJumpOffset(c.code, offset+1)
		if err != nil {
			return in, c.decodeErr(err, offset)
		}
		in.Operand = int(delta)
		in.Len += 2
	}

	return in, nil
}

func (c *Chunk) decodeErr(err error, offset int) error {
	return errors.WithData(err, "offset", offset, "line", c.LineAt(offset))
}

// readConstantIndex reads a CONSTANT operand starting at pos: one byte, or
// three little-endian bytes in wide form. Returns the index and the number
// of operand bytes.
func readConstantIndex(code []byte, pos int, wide bool) (int, int, error) {
	if !wide {
		if pos >= len(code) {
			return 0, 0, ErrTruncated
		}
		return int(code[pos]), 1, nil
	}
	if pos+3 > len(code) {
		return 0, 0, ErrTruncated
	}
	return int(code[pos]) | int(code[pos+1])<<8 | int(code[pos+2])<<16, 3, nil
}

// readJumpOffset reads the signed little-endian 16-bit jump operand at pos.
func readJumpOffset(code []byte, pos int) (int16, error) {
	if pos+2 > len(code) {
		return 0, ErrTruncated
	}
	return int16(binary.LittleEndian.Uint16(code[pos:])), nil
}
