package bytecode

import (
	"fmt"
	"io"
	"strings"
)

// Disassembler formats a chunk as a readable instruction listing.
type Disassembler struct {
	w io.Writer

	// Lenient renders unmapped opcode bytes as UNKNOWN(0xNN) and continues
	// one byte later instead of failing with ErrUnknownOpcode.
	Lenient bool
}

// NewDisassembler constructs a disassembler that writes to w.
func NewDisassembler(w io.Writer) *Disassembler {
	return &Disassembler{w: w}
}

// Disassemble writes the listing for c. Nothing is written when decoding
// fails.
func (d *Disassembler) Disassemble(c *Chunk, name string) error {
	l, err := c.Listing(d.Lenient)
	if err != nil {
		return err
	}
	l.Name = name
	_, err = io.WriteString(d.w, l.Format())
	return err
}

// Format renders the listing as text: a header, the constant pool and one
// line per instruction with its offset, source line, mnemonic and operands.
// The line column shows "|" when the line is unchanged from the previous
// instruction.
func (l *Listing) Format() string {
	var sb strings.Builder

	// Header
	if l.Name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", l.Name))
	}
	sb.WriteString("; Plum Bytecode\n\n")

	// Constants
	if len(l.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, s := range l.Constants {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, s))
		}
		sb.WriteString("\n")
	}

	// Code section
	sb.WriteString("; Code:\n")
	prevLine := -1
	for _, e := range l.Entries {
		lineCol := "   -"
		switch {
		case e.Line == 0:
		case e.Line == prevLine:
			lineCol = "   |"
		default:
			lineCol = fmt.Sprintf("%4d", e.Line)
		}
		prevLine = e.Line
		sb.WriteString(fmt.Sprintf("%04X %s %s\n", e.Offset, lineCol, e.Text()))
	}

	return sb.String()
}

// Disassemble returns a human-readable bytecode listing for the chunk.
func (c *Chunk) Disassemble() (string, error) {
	return c.DisassembleWithName("")
}

// DisassembleWithName returns a human-readable bytecode listing with a name header.
func (c *Chunk) DisassembleWithName(name string) (string, error) {
	var sb strings.Builder
	if err := NewDisassembler(&sb).Disassemble(c, name); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// DisassembleToLines returns the instruction lines of the listing only.
func (c *Chunk) DisassembleToLines() ([]string, error) {
	l, err := c.Listing(false)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(l.Entries))
	for _, e := range l.Entries {
		lines = append(lines, fmt.Sprintf("%04X  %s", e.Offset, e.Text()))
	}
	return lines, nil
}
