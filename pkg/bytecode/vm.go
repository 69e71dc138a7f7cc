package bytecode

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chain/txvm/errors"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/plum/pkg/value"

	_ "github.com/tliron/commonlog/simple"
)

// DefaultMaxStack is the operand stack depth limit of a new VM.
const DefaultMaxStack = 1024

// arithmetic maps each binary arithmetic opcode to its value operation.
var arithmetic = [...]func(a, b value.Value) (value.Value, error){
	OpAdd:  value.Add,
	OpSub:  value.Sub,
	OpMul:  value.Mul,
	OpDiv:  value.Div,
	OpIDiv: value.IDiv,
	OpMod:  value.Mod,
	OpPow:  value.Pow,
}

// VM executes one chunk, once.
//
// The VM borrows the chunk read-only for the duration of Execute. The
// program counter and operand stack belong to this VM alone.
type VM struct {
	// Current execution state
	chunk *Chunk        // Chunk being executed
	ip    int           // Instruction pointer
	stack []value.Value // Operand stack

	maxStack int
	out      io.Writer
	log      commonlog.Logger
	runID    string
	executed bool

	// Trace logs every dispatched instruction at debug level.
	Trace bool

	// VerifyBeforeRun runs Chunk.Verify before the first instruction.
	VerifyBeforeRun bool
}

// NewVM creates a VM for chunk. PRINT writes to standard output until
// SetOutput is called.
func NewVM(chunk *Chunk) *VM {
	return &VM{
		chunk:    chunk,
		stack:    make([]value.Value, 0, 64),
		maxStack: DefaultMaxStack,
		out:      os.Stdout,
		log:      commonlog.GetLogger("plum.vm"),
		runID:    uuid.NewString(),
	}
}

// SetOutput sets the writer PRINT renders to.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// SetLogger replaces the VM's diagnostic logger.
func (vm *VM) SetLogger(log commonlog.Logger) {
	vm.log = log
}

// SetMaxStack sets the operand stack depth limit. n <= 0 restores the
// default.
func (vm *VM) SetMaxStack(n int) {
	if n <= 0 {
		n = DefaultMaxStack
	}
	vm.maxStack = n
}

// RunID identifies this VM's run in log output.
func (vm *VM) RunID() string {
	return vm.runID
}

// Stack returns a copy of the operand stack, bottom first.
func (vm *VM) Stack() []value.Value {
	return append([]value.Value(nil), vm.stack...)
}

// Execute runs the chunk until the end of the code or a RETURN. The first
// failure aborts the run and is returned with the failing opcode, offset and
// source line attached. Values left on the stack at the end are reported in
// the log, not as an error: a chunk may hold several independent statements.
func (vm *VM) Execute() error {
	if vm.executed {
		return ErrAlreadyExecuted
	}
	vm.executed = true

	vm.chunk.borrow()
	defer vm.chunk.release()

	if vm.VerifyBeforeRun {
		if err := vm.chunk.Verify(); err != nil {
			return err
		}
	}

	if err := vm.run(); err != nil {
		return err
	}

	if len(vm.stack) > 0 {
		vm.log.Warningf("run %s: %d value(s) left on stack at end of program: %s",
			vm.runID, len(vm.stack), formatStack(vm.stack))
	}
	return nil
}

// run is the main execution loop.
func (vm *VM) run() error {
	code := vm.chunk.code
	wide := false

	for vm.ip < len(code) {
		start := vm.ip
		op, err := DecodeOpcode(code[vm.ip])
		if err != nil {
			return vm.fail(err, Opcode(code[start]), start)
		}
		vm.ip++

		if vm.Trace {
			vm.log.Debugf("run %s: [%04X] %-8s depth=%d wide=%t", vm.runID, start, op, len(vm.stack), wide)
		}

		switch op {
		case OpConstant:
			idx, n, err := readConstantIndex(code, vm.ip, wide)
			if err != nil {
				return vm.fail(err, op, start)
			}
			vm.ip += n
			v, err := vm.chunk.Constant(idx)
			if err != nil {
				return vm.fail(err, op, start)
			}
			if err := vm.push(v); err != nil {
				return vm.fail(err, op, start)
			}

		case OpWide:
			// Only the next instruction sees the flag.
			wide = true
			continue

		case OpPop:
			if _, err := vm.pop(); err != nil {
				return vm.fail(err, op, start)
			}

		case OpAdd, OpSub, OpMul, OpDiv, OpIDiv, OpMod, OpPow:
			b, err := vm.pop()
			if err != nil {
				return vm.fail(err, op, start)
			}
			a, err := vm.pop()
			if err != nil {
				return vm.fail(err, op, start)
			}
			r, err := arithmetic[op](a, b)
			if err != nil {
				return vm.fail(err, op, start)
			}
			if err := vm.push(r); err != nil {
				return vm.fail(err, op, start)
			}

		case OpJmp:
			delta, err := readJumpOffset(code, vm.ip)
			if err != nil {
				return vm.fail(err, op, start)
			}
			vm.ip += 2
			if err := vm.jump(delta); err != nil {
				return vm.fail(err, op, start)
			}

		case OpJmpf:
			delta, err := readJumpOffset(code, vm.ip)
			if err != nil {
				return vm.fail(err, op, start)
			}
			vm.ip += 2
			cond, err := vm.pop()
			if err != nil {
				return vm.fail(err, op, start)
			}
			if !cond.Truthy() {
				if err := vm.jump(delta); err != nil {
					return vm.fail(err, op, start)
				}
			}

		case OpPrint:
			v, err := vm.pop()
			if err != nil {
				return vm.fail(err, op, start)
			}
			if _, err := fmt.Fprintln(vm.out, v); err != nil {
				return vm.fail(err, op, start)
			}

		case OpReturn:
			return nil
		}

		wide = false
	}

	return nil
}

// fail attaches the failing instruction's position to err.
func (vm *VM) fail(err error, op Opcode, offset int) error {
	line := vm.chunk.LineAt(offset)
	msg := fmt.Sprintf("%s at %04X", op, offset)
	if line > 0 {
		msg = fmt.Sprintf("%s (line %d)", msg, line)
	}
	return errors.Wrap(errors.WithData(err, "offset", offset, "line", line), msg)
}

func (vm *VM) push(v value.Value) error {
	if len(vm.stack) >= vm.maxStack {
		return errors.WithData(ErrStackOverflow, "depth", len(vm.stack))
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *VM) pop() (value.Value, error) {
	n := len(vm.stack)
	if n == 0 {
		return value.Value{}, ErrStackUnderflow
	}
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v, nil
}

// jump moves ip by delta, relative to the byte after the jump operand.
func (vm *VM) jump(delta int16) error {
	target := vm.ip + int(delta)
	if target < 0 || target > len(vm.chunk.code) {
		return errors.WithData(ErrBadJump, "target", target, "len(code)", len(vm.chunk.code))
	}
	vm.ip = target
	return nil
}

func formatStack(stack []value.Value) string {
	parts := make([]string, len(stack))
	for i, v := range stack {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
