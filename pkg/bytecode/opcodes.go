package bytecode

import (
	"fmt"

	"github.com/chain/txvm/errors"
)

// Opcode represents a bytecode instruction tag.
// Opcodes are consecutive bytes starting at 1; 0 is reserved and never
// decodes to an instruction.
type Opcode byte

const (
	// ========================================================================
	// Constants
	// ========================================================================

	OpConstant Opcode = 0x01 // Push constant from pool: OpConstant <index:u8> (u24 after OpWide)
	OpWide     Opcode = 0x02 // Prefix: widen the operand of the next instruction
	OpPop      Opcode = 0x03 // Pop top of stack

	// ========================================================================
	// Arithmetic: b = pop(); a = pop(); push(a op b)
	// ========================================================================

	OpAdd  Opcode = 0x04 // a + b
	OpSub  Opcode = 0x05 // a - b
	OpMul  Opcode = 0x06 // a * b
	OpDiv  Opcode = 0x07 // a / b, always Float
	OpIDiv Opcode = 0x08 // a / b truncated to Integer
	OpMod  Opcode = 0x09 // a % b
	OpPow  Opcode = 0x0A // a ^ b

	// ========================================================================
	// Control flow
	// ========================================================================

	OpJmp  Opcode = 0x0B // Unconditional jump: OpJmp <offset:i16>
	OpJmpf Opcode = 0x0C // Pop; jump if falsy: OpJmpf <offset:i16>

	// ========================================================================
	// Statements
	// ========================================================================

	OpReturn Opcode = 0x0D // End of program
	OpPrint  Opcode = 0x0E // Pop and print top of stack
)

const (
	firstOpcode = OpConstant
	lastOpcode  = OpPrint
)

// ErrUnknownOpcode is returned when a byte has no opcode mapping.
var ErrUnknownOpcode = errors.New("unknown opcode")

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack
	StackPush  int    // How many values pushed to stack
	OperandLen int    // Number of operand bytes following the opcode (narrow form)
}

// opcodeInfoTable is indexed by opcode byte.
var opcodeInfoTable = [...]OpcodeInfo{
	OpConstant: {"CONSTANT", 0, 1, 1},
	OpWide:     {"WIDE", 0, 0, 0},
	OpPop:      {"POP", 1, 0, 0},

	OpAdd:  {"ADD", 2, 1, 0},
	OpSub:  {"SUB", 2, 1, 0},
	OpMul:  {"MUL", 2, 1, 0},
	OpDiv:  {"DIV", 2, 1, 0},
	OpIDiv: {"IDIV", 2, 1, 0},
	OpMod:  {"MOD", 2, 1, 0},
	OpPow:  {"POW", 2, 1, 0},

	OpJmp:  {"JMP", 0, 0, 2},
	OpJmpf: {"JMPF", 1, 0, 2},

	OpReturn: {"RETURN", 0, 0, 0},
	OpPrint:  {"PRINT", 1, 0, 0},
}

// DecodeOpcode maps a raw byte to its opcode. Bytes outside the closed
// set, including the reserved 0, fail with ErrUnknownOpcode.
func DecodeOpcode(b byte) (Opcode, error) {
	op := Opcode(b)
	if !op.Valid() {
		return 0, errors.WithData(ErrUnknownOpcode, "byte", b)
	}
	return op, nil
}

// Valid reports whether op is a member of the opcode set.
func (op Opcode) Valid() bool {
	return op >= firstOpcode && op <= lastOpcode
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if op.Valid() {
		return opcodeInfoTable[op]
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode in its
// narrow form.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// WideOperandLen returns the number of operand bytes when op follows a
// WIDE prefix. Only OpConstant has a wide form.
func (op Opcode) WideOperandLen() int {
	if op == OpConstant {
		return 3
	}
	return op.OperandLen()
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op == OpJmp || op == OpJmpf
}

// IsArithmetic returns true for the binary arithmetic opcodes.
func (op Opcode) IsArithmetic() bool {
	return op >= OpAdd && op <= OpPow
}

// AllOpcodes returns all defined opcodes in encoding order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, OpcodeCount())
	for op := firstOpcode; op <= lastOpcode; op++ {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return int(lastOpcode-firstOpcode) + 1
}
