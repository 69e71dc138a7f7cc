package bytecode

import (
	"fmt"

	"github.com/chain/txvm/errors"
)

// Listing is the structured result of disassembling a chunk: the rendered
// constant pool and one entry per decoded instruction.
type Listing struct {
	Name      string         `cbor:"name,omitempty"`
	Constants []string       `cbor:"constants"`
	Entries   []ListingEntry `cbor:"entries"`
}

// ListingEntry describes one decoded instruction.
type ListingEntry struct {
	Offset   int    `cbor:"offset"`
	Line     int    `cbor:"line,omitempty"`
	Opcode   byte   `cbor:"opcode"`
	Name     string `cbor:"name"`
	Wide     bool   `cbor:"wide,omitempty"`
	Operand  int    `cbor:"operand,omitempty"`
	Target   *int   `cbor:"target,omitempty"`   // Jumps only
	Constant string `cbor:"constant,omitempty"` // CONSTANT only
	Unknown  bool   `cbor:"unknown,omitempty"`  // Unmapped byte, lenient mode only
}

// Text renders the entry's mnemonic and resolved operands.
func (e ListingEntry) Text() string {
	switch {
	case e.Unknown:
		return e.Name
	case e.Target != nil:
		return fmt.Sprintf("%s %+d (-> %04X)", e.Name, e.Operand, *e.Target)
	case Opcode(e.Opcode) == OpConstant:
		return fmt.Sprintf("%s %d ; %s", e.Name, e.Operand, e.Constant)
	default:
		return e.Name
	}
}

// Listing decodes the whole chunk in one forward pass.
//
// The WIDE flag is local to this traversal: a WIDE entry sets it and the
// next instruction consumes and clears it. In strict mode an unmapped
// opcode byte aborts the pass with ErrUnknownOpcode; in lenient mode it is
// recorded as an Unknown entry and the pass advances exactly one byte.
func (c *Chunk) Listing(lenient bool) (*Listing, error) {
	l := &Listing{
		Constants: make([]string, len(c.constants)),
		Entries:   make([]ListingEntry, 0, len(c.code)/2),
	}
	for i, v := range c.constants {
		l.Constants[i] = v.String()
	}

	wide := false
	offset := 0
	for offset < len(c.code) {
		in, err := c.Decode(offset, wide)
		if err != nil {
			if lenient && errors.Root(err) == ErrUnknownOpcode {
				b := c.code[offset]
				l.Entries = append(l.Entries, ListingEntry{
					Offset:  offset,
					Line:    c.LineAt(offset),
					Opcode:  b,
					Name:    Opcode(b).String(),
					Unknown: true,
				})
				offset++
				wide = false
				continue
			}
			return nil, errors.Wrap(err, "disassemble")
		}

		entry := ListingEntry{
			Offset:  in.Offset,
			Line:    in.Line,
			Opcode:  byte(in.Op),
			Name:    in.Op.String(),
			Wide:    in.Wide,
			Operand: in.Operand,
		}
		switch {
		case in.Op == OpConstant:
			entry.Constant = c.constants[in.Operand].String()
		case in.Op.IsJump():
			target := in.Target()
			entry.Target = &target
		}
		l.Entries = append(l.Entries, entry)

		wide = in.Op == OpWide
		offset = in.Next()
	}

	return l, nil
}

// InstructionCount returns the number of instructions in the chunk,
// counting a WIDE prefix as its own instruction.
func (c *Chunk) InstructionCount() (int, error) {
	l, err := c.Listing(false)
	if err != nil {
		return 0, err
	}
	return len(l.Entries), nil
}
