package bytecode

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chain/txvm/errors"

	"github.com/chazu/plum/pkg/value"
)

// chunkWithCode builds a chunk holding raw code bytes.
func chunkWithCode(code ...byte) *Chunk {
	c := NewChunk()
	c.EmitBytes(code...)
	return c
}

// mustConst writes a constant load and fails the test on error.
func mustConst(t *testing.T, c *Chunk, v value.Value) {
	t.Helper()
	if _, err := c.WriteConstant(v); err != nil {
		t.Fatalf("WriteConstant(%v): %v", v, err)
	}
}

// run executes c and returns what PRINT wrote.
func run(t *testing.T, c *Chunk) (string, *VM, error) {
	t.Helper()
	var out bytes.Buffer
	vm := NewVM(c)
	vm.SetOutput(&out)
	err := vm.Execute()
	return out.String(), vm, err
}

// ============ Constant and Stack Tests ============

func TestVMConstantPrint(t *testing.T) {
	c := NewChunk()
	mustConst(t, c, value.Int(42))
	c.EmitPrint()

	out, vm, err := run(t, c)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "42\n" {
		t.Errorf("output = %q, want %q", out, "42\n")
	}
	if len(vm.Stack()) != 0 {
		t.Errorf("stack = %v, want empty", vm.Stack())
	}
}

func TestVMPop(t *testing.T) {
	c := NewChunk()
	mustConst(t, c, value.Int(1))
	mustConst(t, c, value.Int(2))
	c.EmitPop()

	_, vm, err := run(t, c)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	stack := vm.Stack()
	if len(stack) != 1 || !value.Equal(stack[0], value.Int(1)) {
		t.Errorf("stack = %v, want [1]", stack)
	}
}

func TestVMEmptyChunk(t *testing.T) {
	out, _, err := run(t, NewChunk())
	if err != nil || out != "" {
		t.Errorf("empty chunk: output %q, err %v", out, err)
	}
}

// ============ Arithmetic Tests ============

func TestVMArithmetic(t *testing.T) {
	tests := []struct {
		name string
		a, b value.Value
		op   Opcode
		want string
	}{
		{"add", value.Int(10), value.Int(20), OpAdd, "30"},
		{"sub order", value.Int(10), value.Int(3), OpSub, "7"},
		{"mul", value.Int(6), value.Int(7), OpMul, "42"},
		{"div int int", value.Int(7), value.Int(2), OpDiv, "3.5"},
		{"div whole", value.Int(6), value.Int(3), OpDiv, "2"},
		{"idiv", value.Int(7), value.Int(2), OpIDiv, "3"},
		{"mod order", value.Int(7), value.Int(3), OpMod, "1"},
		{"pow", value.Int(2), value.Int(8), OpPow, "256"},
		{"pow float", value.Int(25), value.Float(0.5), OpPow, "5"},
		{"promote", value.Int(1), value.Float(0.25), OpAdd, "1.25"},
	}

	for _, tt := range tests {
		c := NewChunk()
		mustConst(t, c, tt.a)
		mustConst(t, c, tt.b)
		c.EmitByte(tt.op)
		c.EmitPrint()

		out, _, err := run(t, c)
		if err != nil {
			t.Errorf("%s: Execute failed: %v", tt.name, err)
			continue
		}
		if out != tt.want+"\n" {
			t.Errorf("%s: output = %q, want %q", tt.name, out, tt.want+"\n")
		}
	}
}

func TestVMArithmeticResultKind(t *testing.T) {
	c := NewChunk()
	mustConst(t, c, value.Int(6))
	mustConst(t, c, value.Int(3))
	c.EmitByte(OpDiv)

	_, vm, err := run(t, c)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := vm.Stack()[0]; !got.IsFloat() {
		t.Errorf("DIV result = %#v, want a Float", got)
	}
}

func TestVMIntegerOverflow(t *testing.T) {
	c := NewChunk()
	mustConst(t, c, value.Int(2147483647))
	mustConst(t, c, value.Int(1))
	c.EmitByte(OpAdd)

	_, _, err := run(t, c)
	if errors.Root(err) != value.ErrIntegerOverflow {
		t.Errorf("err = %v, want ErrIntegerOverflow", err)
	}
}

func TestVMNegativeExponent(t *testing.T) {
	c := NewChunk()
	mustConst(t, c, value.Int(2))
	mustConst(t, c, value.Int(-2))
	c.EmitByte(OpPow)

	_, _, err := run(t, c)
	if errors.Root(err) != value.ErrNegativeExponent {
		t.Errorf("err = %v, want ErrNegativeExponent", err)
	}
}

func TestVMDivisionByZeroProducesNoOutput(t *testing.T) {
	// Scenario A: [10, 0, DIV, PRINT]
	c := NewChunk()
	mustConst(t, c, value.Int(10))
	mustConst(t, c, value.Int(0))
	c.EmitByte(OpDiv)
	c.EmitPrint()

	out, _, err := run(t, c)
	if errors.Root(err) != value.ErrDivisionByZero {
		t.Fatalf("err = %v, want ErrDivisionByZero", err)
	}
	if out != "" {
		t.Errorf("output = %q, want none", out)
	}
	if OffsetOf(err) != 4 {
		t.Errorf("OffsetOf(err) = %d, want 4", OffsetOf(err))
	}
}

func TestVMDivisionByFloatZero(t *testing.T) {
	for _, op := range []Opcode{OpDiv, OpIDiv, OpMod} {
		c := NewChunk()
		mustConst(t, c, value.Float(1.5))
		mustConst(t, c, value.Float(0))
		c.EmitByte(op)

		_, _, err := run(t, c)
		if errors.Root(err) != value.ErrDivisionByZero {
			t.Errorf("%s: err = %v, want ErrDivisionByZero", op, err)
		}
	}
}

// ============ Stack Underflow and Overflow Tests ============

func TestVMStackUnderflow(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"pop", []byte{byte(OpPop)}},
		{"print", []byte{byte(OpPrint)}},
		{"add empty", []byte{byte(OpAdd)}},
		{"jmpf", []byte{byte(OpJmpf), 0, 0}},
	}

	for _, tt := range tests {
		_, _, err := run(t, chunkWithCode(tt.code...))
		if errors.Root(err) != ErrStackUnderflow {
			t.Errorf("%s: err = %v, want ErrStackUnderflow", tt.name, err)
		}
	}
}

func TestVMStackUnderflowOneOperand(t *testing.T) {
	c := NewChunk()
	mustConst(t, c, value.Int(1))
	c.SetLine(7)
	c.EmitByte(OpMul)

	_, _, err := run(t, c)
	if errors.Root(err) != ErrStackUnderflow {
		t.Fatalf("err = %v, want ErrStackUnderflow", err)
	}
	if LineOf(err) != 7 {
		t.Errorf("LineOf(err) = %d, want 7", LineOf(err))
	}
	if !strings.Contains(err.Error(), "line 7") {
		t.Errorf("error %q does not mention the line", err)
	}
}

func TestVMStackOverflow(t *testing.T) {
	c := NewChunk()
	for i := 0; i < 5; i++ {
		mustConst(t, c, value.Int(int32(i)))
	}

	vm := NewVM(c)
	vm.SetOutput(&bytes.Buffer{})
	vm.SetMaxStack(4)
	err := vm.Execute()
	if errors.Root(err) != ErrStackOverflow {
		t.Fatalf("err = %v, want ErrStackOverflow", err)
	}
	if OffsetOf(err) != 8 {
		t.Errorf("OffsetOf(err) = %d, want 8", OffsetOf(err))
	}
}

// ============ Control Flow Tests ============

func TestVMJmpSkipsForward(t *testing.T) {
	c := NewChunk()
	h, _ := c.StartJump(OpJmp)
	mustConst(t, c, value.Int(1))
	c.EmitPrint()
	if err := c.EndJump(h); err != nil {
		t.Fatalf("EndJump: %v", err)
	}
	mustConst(t, c, value.Int(2))
	c.EmitPrint()

	out, _, err := run(t, c)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "2\n" {
		t.Errorf("output = %q, want %q", out, "2\n")
	}
}

func TestVMJmpfBranchesOnFalse(t *testing.T) {
	tests := []struct {
		cond value.Value
		want string
	}{
		{value.Int(1), "1\n2\n"},
		{value.Int(0), "2\n"},
		{value.Float(0), "2\n"},
		{value.Float(-0.5), "1\n2\n"},
	}

	for _, tt := range tests {
		c := NewChunk()
		mustConst(t, c, tt.cond)
		h, _ := c.StartJump(OpJmpf)
		mustConst(t, c, value.Int(1))
		c.EmitPrint()
		c.EndJump(h)
		mustConst(t, c, value.Int(2))
		c.EmitPrint()

		out, vm, err := run(t, c)
		if err != nil {
			t.Errorf("cond %v: Execute failed: %v", tt.cond, err)
			continue
		}
		if out != tt.want {
			t.Errorf("cond %v: output = %q, want %q", tt.cond, out, tt.want)
		}
		if len(vm.Stack()) != 0 {
			t.Errorf("cond %v: JMPF left %v on the stack", tt.cond, vm.Stack())
		}
	}
}

func TestVMJumpToEndOfCode(t *testing.T) {
	c := NewChunk()
	h, _ := c.StartJump(OpJmp)
	c.EmitByte(OpPop) // would underflow if executed
	c.EndJump(h)

	if _, _, err := run(t, c); err != nil {
		t.Errorf("Execute failed: %v", err)
	}
}

func TestVMBackwardLoop(t *testing.T) {
	// push 3
	// top: push 1; SUB; JMPF exit; print 7; push 1; JMP top
	// exit:
	c := NewChunk()
	mustConst(t, c, value.Int(3))
	top := c.CurrentOffset()
	mustConst(t, c, value.Int(1))
	c.EmitByte(OpSub)
	exit, _ := c.StartJump(OpJmpf)
	mustConst(t, c, value.Int(7))
	c.EmitPrint()
	mustConst(t, c, value.Int(1))
	if err := c.EmitLoop(top); err != nil {
		t.Fatalf("EmitLoop: %v", err)
	}
	if err := c.EndJump(exit); err != nil {
		t.Fatalf("EndJump: %v", err)
	}

	out, _, err := run(t, c)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	// 3-1 is truthy: print and loop with 1. 1-1 is falsy: exit.
	if out != "7\n" {
		t.Errorf("output = %q, want %q", out, "7\n")
	}
}

func TestVMBadJump(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"past end", []byte{byte(OpJmp), 1, 0}},
		{"before start", []byte{byte(OpJmp), 0xFB, 0xFF}}, // -5
	}

	for _, tt := range tests {
		_, _, err := run(t, chunkWithCode(tt.code...))
		if errors.Root(err) != ErrBadJump {
			t.Errorf("%s: err = %v, want ErrBadJump", tt.name, err)
		}
	}
}

func TestVMTruncatedOperands(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"constant", []byte{byte(OpConstant)}},
		{"wide constant", []byte{byte(OpWide), byte(OpConstant), 0, 0}},
		{"jmp", []byte{byte(OpJmp), 0}},
	}

	for _, tt := range tests {
		_, _, err := run(t, chunkWithCode(tt.code...))
		if errors.Root(err) != ErrTruncated {
			t.Errorf("%s: err = %v, want ErrTruncated", tt.name, err)
		}
	}
}

func TestVMUnknownConstant(t *testing.T) {
	_, _, err := run(t, chunkWithCode(byte(OpConstant), 3))
	if errors.Root(err) != ErrUnknownConstant {
		t.Errorf("err = %v, want ErrUnknownConstant", err)
	}
}

func TestVMUnknownOpcode(t *testing.T) {
	_, _, err := run(t, chunkWithCode(0x00))
	if errors.Root(err) != ErrUnknownOpcode {
		t.Errorf("err = %v, want ErrUnknownOpcode", err)
	}
}

// ============ Return and Termination Tests ============

func TestVMReturnStops(t *testing.T) {
	c := NewChunk()
	mustConst(t, c, value.Int(1))
	c.EmitPrint()
	c.EmitReturn()
	mustConst(t, c, value.Int(2))
	c.EmitPrint()

	out, _, err := run(t, c)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "1\n" {
		t.Errorf("output = %q, want %q", out, "1\n")
	}
}

func TestVMLeftoverStackIsNotAnError(t *testing.T) {
	c := NewChunk()
	mustConst(t, c, value.Int(1))
	mustConst(t, c, value.Float(2.5))

	_, vm, err := run(t, c)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(vm.Stack()) != 2 {
		t.Errorf("stack = %v, want two values", vm.Stack())
	}
}

func TestVMExecuteOnce(t *testing.T) {
	c := NewChunk()
	vm := NewVM(c)
	if err := vm.Execute(); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if err := vm.Execute(); errors.Root(err) != ErrAlreadyExecuted {
		t.Errorf("second Execute err = %v, want ErrAlreadyExecuted", err)
	}
}

func TestVMReleasesChunk(t *testing.T) {
	c := NewChunk()
	mustConst(t, c, value.Int(1))
	c.EmitPrint()
	if _, _, err := run(t, c); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	// The chunk is writable again once the run has returned.
	c.EmitReturn()
}

// ============ Wide Prefix Tests ============

func TestVMWideConstant(t *testing.T) {
	c := NewChunk()
	fillConstants(t, c, 300)
	mustConst(t, c, value.Float(-1.5))
	c.EmitPrint()

	out, _, err := run(t, c)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "-1.5\n" {
		t.Errorf("output = %q, want %q", out, "-1.5\n")
	}
}

func TestVMWideAppliesToNextInstructionOnly(t *testing.T) {
	c := NewChunk()
	fillConstants(t, c, 2)
	// WIDE CONSTANT <1> then a narrow CONSTANT <0>
	c.EmitBytes(byte(OpWide), byte(OpConstant), 1, 0, 0)
	c.EmitBytes(byte(OpConstant), 0)
	c.EmitByte(OpSub)
	c.EmitPrint()

	out, _, err := run(t, c)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "1\n" {
		t.Errorf("output = %q, want %q", out, "1\n")
	}
}

func TestVMWideBeforeNonConstantIsCleared(t *testing.T) {
	c := NewChunk()
	fillConstants(t, c, 1)
	c.EmitBytes(byte(OpConstant), 0)
	c.EmitBytes(byte(OpWide), byte(OpPrint))
	c.EmitBytes(byte(OpConstant), 0)
	c.EmitPrint()

	out, _, err := run(t, c)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "0\n0\n" {
		t.Errorf("output = %q, want %q", out, "0\n0\n")
	}
}

// ============ Verification Tests ============

func TestVMVerifyBeforeRun(t *testing.T) {
	c := NewChunk()
	mustConst(t, c, value.Int(1))
	c.EmitPrint()
	c.StartJump(OpJmp) // never ended

	var out bytes.Buffer
	vm := NewVM(c)
	vm.SetOutput(&out)
	vm.VerifyBeforeRun = true
	err := vm.Execute()
	if errors.Root(err) != ErrUnpatchedJump {
		t.Fatalf("err = %v, want ErrUnpatchedJump", err)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want none", out.String())
	}
}

func TestVMTrace(t *testing.T) {
	c := NewChunk()
	mustConst(t, c, value.Int(1))
	c.EmitPrint()

	var out bytes.Buffer
	vm := NewVM(c)
	vm.SetOutput(&out)
	vm.Trace = true
	if err := vm.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out.String() != "1\n" {
		t.Errorf("output = %q, want %q", out.String(), "1\n")
	}
	if vm.RunID() == "" {
		t.Error("RunID() is empty")
	}
}
