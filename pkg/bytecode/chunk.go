package bytecode

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/chain/txvm/errors"

	"github.com/chazu/plum/pkg/value"
)

const (
	// MaxConstants is the size limit of a chunk's constant pool; the wide
	// CONSTANT operand addresses 24 bits.
	MaxConstants = 1 << 24

	// MaxNarrowConstant is the largest pool index encoded without WIDE.
	MaxNarrowConstant = math.MaxUint8

	// MaxJump is the longest forward jump distance.
	MaxJump = math.MaxInt16

	// MinJump is the longest backward jump distance.
	MinJump = math.MinInt16
)

// LineInfo marks the source line of every byte from Offset up to the next
// entry's Offset.
type LineInfo struct {
	Offset int // First code offset attributed to Line
	Line   int // Source line number (1-based)
}

// JumpHandle identifies an outstanding forward jump placeholder. It is the
// offset of the first of the two placeholder bytes.
type JumpHandle int

// Chunk is an append-only instruction buffer with its constant pool and
// line table. A front-end builds a chunk with the Emit and Write methods,
// then hands it to a Disassembler or a VM.
//
// The only permitted overwrite of emitted code is the backpatch of an
// outstanding jump placeholder. A chunk borrowed by a running VM must not be
// mutated; doing so panics.
type Chunk struct {
	code      []byte
	constants []value.Value
	lines     []LineInfo

	// pending holds the handles of jumps started but not yet ended.
	pending map[JumpHandle]struct{}

	borrowed int
}

// NewChunk creates a new empty chunk.
func NewChunk() *Chunk {
	return &Chunk{
		code:      make([]byte, 0, 64),
		constants: make([]value.Value, 0, 8),
		pending:   make(map[JumpHandle]struct{}),
	}
}

func (c *Chunk) mutate() {
	if c.borrowed > 0 {
		panic("bytecode: chunk mutated during execution")
	}
	if c.pending == nil {
		c.pending = make(map[JumpHandle]struct{})
	}
}

// Code returns the encoded instructions. The slice is shared with the chunk
// and must be treated as read-only.
func (c *Chunk) Code() []byte {
	return c.code
}

// Constants returns the constant pool. The slice is shared with the chunk
// and must be treated as read-only.
func (c *Chunk) Constants() []value.Value {
	return c.constants
}

// Lines returns the line table.
func (c *Chunk) Lines() []LineInfo {
	return c.lines
}

// EmitByte appends a single opcode and returns its offset.
func (c *Chunk) EmitByte(op Opcode) int {
	c.mutate()
	offset := len(c.code)
	c.code = append(c.code, byte(op))
	return offset
}

// EmitBytes appends raw bytes, typically operands, and returns the offset of
// the first one.
func (c *Chunk) EmitBytes(b ...byte) int {
	c.mutate()
	offset := len(c.code)
	c.code = append(c.code, b...)
	return offset
}

// EmitPop appends a POP instruction.
func (c *Chunk) EmitPop() int { return c.EmitByte(OpPop) }

// EmitPrint appends a PRINT instruction.
func (c *Chunk) EmitPrint() int { return c.EmitByte(OpPrint) }

// EmitReturn appends a RETURN instruction.
func (c *Chunk) EmitReturn() int { return c.EmitByte(OpReturn) }

// AddConstant appends v to the pool and returns its index. Constants are
// never deduplicated: every call produces a new slot.
func (c *Chunk) AddConstant(v value.Value) (int, error) {
	c.mutate()
	if len(c.constants) >= MaxConstants {
		return 0, errors.WithData(ErrConstantPoolFull, "limit", MaxConstants)
	}
	c.constants = append(c.constants, v)
	return len(c.constants) - 1, nil
}

// WriteConstant adds v to the pool and emits the instruction that loads it.
// Indices up to 255 use CONSTANT <u8> (2 bytes); larger indices use
// WIDE CONSTANT <u24 little-endian> (5 bytes). Returns the pool index.
func (c *Chunk) WriteConstant(v value.Value) (int, error) {
	idx, err := c.AddConstant(v)
	if err != nil {
		return 0, errors.Wrap(err, "write constant")
	}
	if idx <= MaxNarrowConstant {
		c.EmitBytes(byte(OpConstant), byte(idx))
		return idx, nil
	}
	c.EmitBytes(byte(OpWide), byte(OpConstant))
	c.EmitBytes(putUint24(idx)...)
	return idx, nil
}

// Constant returns the pool entry at index.
func (c *Chunk) Constant(index int) (value.Value, error) {
	if index < 0 || index >= len(c.constants) {
		return value.Value{}, errors.WithData(ErrUnknownConstant, "index", index, "pool", len(c.constants))
	}
	return c.constants[index], nil
}

// PatchCode overwrites one previously emitted byte. Only bytes of an
// outstanding jump placeholder may be patched.
func (c *Chunk) PatchCode(index int, b byte) error {
	c.mutate()
	_, first := c.pending[JumpHandle(index)]
	_, second := c.pending[JumpHandle(index-1)]
	if !first && !second {
		return errors.WithData(ErrNotPlaceholder, "offset", index)
	}
	c.code[index] = b
	return nil
}

// StartJump emits a jump with a two-byte placeholder offset and returns the
// handle to pass to EndJump once the target is known.
func (c *Chunk) StartJump(op Opcode) (JumpHandle, error) {
	if !op.IsJump() {
		return 0, errors.WithData(ErrNotJump, "opcode", op.String())
	}
	c.EmitBytes(byte(op), 0xFF, 0xFF)
	h := JumpHandle(len(c.code) - 2)
	c.pending[h] = struct{}{}
	return h, nil
}

// EndJump resolves the placeholder behind h so that the jump lands on the
// current end of the code. The offset is relative to the byte following
// the placeholder.
func (c *Chunk) EndJump(h JumpHandle) error {
	c.mutate()
	if _, ok := c.pending[h]; !ok {
		return errors.WithData(ErrUnknownJump, "handle", int(h))
	}
	delta := len(c.code) - (int(h) + 2)
	if delta > MaxJump {
		return errors.WithData(ErrJumpTooFar, "offset", int(h)-1, "distance", delta)
	}
	operand := putInt16(int16(delta))
	if err := c.PatchCode(int(h), operand[0]); err != nil {
		return err
	}
	if err := c.PatchCode(int(h)+1, operand[1]); err != nil {
		return err
	}
	delete(c.pending, h)
	return nil
}

// EmitLoop emits an unconditional backward jump to loopStart.
func (c *Chunk) EmitLoop(loopStart int) error {
	c.mutate()
	if loopStart < 0 || loopStart > len(c.code) {
		return errors.WithData(ErrBadJump, "target", loopStart, "len(code)", len(c.code))
	}
	// Jump goes backward, so delta is negative
	delta := loopStart - (len(c.code) + 3)
	if delta < MinJump {
		return errors.WithData(ErrJumpTooFar, "offset", len(c.code), "distance", delta)
	}
	c.EmitByte(OpJmp)
	c.EmitBytes(putInt16(int16(delta))...)
	return nil
}

// PendingJumps returns the number of jumps started but not yet ended.
func (c *Chunk) PendingJumps() int {
	return len(c.pending)
}

// SetLine attributes every byte emitted from now on to line, until the next
// call.
func (c *Chunk) SetLine(line int) {
	c.mutate()
	offset := len(c.code)
	if n := len(c.lines); n > 0 {
		last := &c.lines[n-1]
		if last.Line == line {
			return
		}
		if last.Offset == offset {
			last.Line = line
			// Merge with the entry before if the override made them equal.
			if n > 1 && c.lines[n-2].Line == line {
				c.lines = c.lines[:n-1]
			}
			return
		}
	}
	c.lines = append(c.lines, LineInfo{Offset: offset, Line: line})
}

// LineAt returns the source line of the byte at offset, or 0 when no line
// was recorded for it.
func (c *Chunk) LineAt(offset int) int {
	// Find the last entry at or before offset
	i := sort.Search(len(c.lines), func(i int) bool {
		return c.lines[i].Offset > offset
	})
	if i == 0 {
		return 0
	}
	return c.lines[i-1].Line
}

// CurrentOffset returns the offset the next emitted byte will occupy.
func (c *Chunk) CurrentOffset() int {
	return len(c.code)
}

// CodeLen returns the length of the code section.
func (c *Chunk) CodeLen() int {
	return len(c.code)
}

// ConstantCount returns the number of constants in the pool.
func (c *Chunk) ConstantCount() int {
	return len(c.constants)
}

func (c *Chunk) borrow()  { c.borrowed++ }
func (c *Chunk) release() { c.borrowed-- }

func putUint24(n int) []byte {
	return []byte{byte(n), byte(n >> 8), byte(n >> 16)}
}

func putInt16(n int16) []byte {
	return binary.LittleEndian.AppendUint16(nil, uint16(n))
}
