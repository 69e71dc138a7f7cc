package bytecode

import "github.com/chain/txvm/errors"

// Runtime errors.
var (
	// ErrStackUnderflow is returned when an instruction pops an empty stack.
	ErrStackUnderflow = errors.New("stack underflow")

	// ErrStackOverflow is returned when a push would exceed the VM's
	// configured stack depth.
	ErrStackOverflow = errors.New("stack overflow")

	// ErrBadJump is returned when a jump lands outside [0, len(code)].
	ErrBadJump = errors.New("invalid jump destination")

	// ErrAlreadyExecuted is returned when a VM is asked to run twice.
	ErrAlreadyExecuted = errors.New("vm already executed")
)

// Decode and verification errors.
var (
	// ErrUnknownConstant is returned when a constant index is outside the pool.
	ErrUnknownConstant = errors.New("unknown constant")

	// ErrTruncated is returned when an instruction's operand runs past the
	// end of the code.
	ErrTruncated = errors.New("truncated instruction")

	// ErrUnpatchedJump is returned by Verify when a jump placeholder was
	// never resolved with EndJump.
	ErrUnpatchedJump = errors.New("unpatched jump")

	// ErrMisalignedJump is returned by Verify when a jump target is not the
	// start of an instruction.
	ErrMisalignedJump = errors.New("jump target is not an instruction boundary")

	// ErrMisplacedWide is returned by Verify when a WIDE prefix is not
	// immediately followed by CONSTANT.
	ErrMisplacedWide = errors.New("wide prefix without widenable instruction")
)

// Encoder errors.
var (
	// ErrJumpTooFar is returned when a jump distance does not fit in a
	// signed 16-bit offset.
	ErrJumpTooFar = errors.New("jump target too far")

	// ErrNotJump is returned by StartJump for a non-jump opcode.
	ErrNotJump = errors.New("opcode is not a jump")

	// ErrUnknownJump is returned by EndJump for a handle that is not an
	// outstanding placeholder.
	ErrUnknownJump = errors.New("unknown jump handle")

	// ErrNotPlaceholder is returned by PatchCode when the target byte is
	// not part of an outstanding jump placeholder.
	ErrNotPlaceholder = errors.New("byte is not a jump placeholder")

	// ErrConstantPoolFull is returned when the pool already holds
	// MaxConstants entries.
	ErrConstantPoolFull = errors.New("constant pool full")
)

// LineOf returns the source line attached to err, or 0 when none is known.
func LineOf(err error) int {
	if n, ok := errors.Data(err)["line"].(int); ok {
		return n
	}
	return 0
}

// OffsetOf returns the code offset attached to err, or -1 when none is known.
func OffsetOf(err error) int {
	if n, ok := errors.Data(err)["offset"].(int); ok {
		return n
	}
	return -1
}
