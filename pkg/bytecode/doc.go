// Package bytecode provides the Plum instruction format and the stack-based
// virtual machine that executes it.
//
// # Architecture Overview
//
//   - Opcodes: a closed set of 14 single-byte instructions numbered from 1.
//     Byte 0 is reserved and never decodes.
//
//   - Chunk: an append-only code buffer plus a constant pool of numeric
//     values and a line table. A front-end builds a chunk through
//     EmitByte, EmitBytes, WriteConstant and the StartJump/EndJump
//     backpatching protocol, then hands it over finished.
//
//   - Disassembler: a single read-only pass producing one line per
//     instruction. Chunk.Verify uses the same decoder and the VM shares
//     its operand readers.
//
//   - VM: a fetch-decode-execute loop over one chunk with a program counter
//     and an operand stack. One VM runs one chunk once.
//
// # Instruction Format
//
//	CONSTANT <index:u8>                 2 bytes, pool index 0-255
//	WIDE CONSTANT <index:u24 LE>        5 bytes, pool index up to 2^24-1
//	JMP  <offset:i16 LE>                3 bytes
//	JMPF <offset:i16 LE>                3 bytes, pops the condition
//	POP ADD SUB MUL DIV IDIV MOD POW RETURN PRINT   1 byte each
//
// Jump offsets are relative to the byte that follows the operand. WIDE is a
// prefix: it widens the operand of the
// instruction immediately after it and nothing else.
//
// # Errors
//
// Failures are sentinel errors wrapped with github.com/chain/txvm/errors.
// Compare errors.Root(err) against the Err values of this package or of
// package value; LineOf and OffsetOf recover the failing position.
package bytecode
