package main

import (
	"sort"

	"github.com/chain/txvm/errors"

	"github.com/chazu/plum/pkg/bytecode"
	"github.com/chazu/plum/pkg/value"
)

// A demo builds one chunk. The bytecode has no front-end of its own, so the
// driver ships a few hand-assembled programs.
type demo func() (*bytecode.Chunk, error)

var demos = map[string]demo{
	"jumps":   jumpsDemo,
	"arith":   arithDemo,
	"divzero": divZeroDemo,
	"wide":    wideDemo,
}

var errUnknownDemo = errors.New("unknown demo")

func demoNames() []string {
	names := make([]string, 0, len(demos))
	for name := range demos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func buildDemo(name string) (*bytecode.Chunk, error) {
	d, ok := demos[name]
	if !ok {
		return nil, errors.WithData(errUnknownDemo, "demo", name)
	}
	c, err := d()
	if err != nil {
		return nil, errors.Wrapf(err, "build demo %s", name)
	}
	return c, nil
}

// jumpsDemo skips a power expression, then takes the fallthrough of a
// conditional jump. Prints 1 and 2.
func jumpsDemo() (*bytecode.Chunk, error) {
	c := bytecode.NewChunk()
	c.SetLine(1)
	skip, err := c.StartJump(bytecode.OpJmp)
	if err != nil {
		return nil, err
	}
	c.SetLine(2)
	if err := writeConstants(c, value.Int(25), value.Float(0.5)); err != nil {
		return nil, err
	}
	c.EmitByte(bytecode.OpPow)
	c.EmitPrint()
	if err := c.EndJump(skip); err != nil {
		return nil, err
	}

	c.SetLine(3)
	if err := writeConstants(c, value.Int(1)); err != nil {
		return nil, err
	}
	branch, err := c.StartJump(bytecode.OpJmpf)
	if err != nil {
		return nil, err
	}
	c.SetLine(4)
	if err := writeConstants(c, value.Int(1)); err != nil {
		return nil, err
	}
	c.EmitPrint()
	if err := c.EndJump(branch); err != nil {
		return nil, err
	}

	c.SetLine(5)
	if err := writeConstants(c, value.Int(2)); err != nil {
		return nil, err
	}
	c.EmitPrint()
	return c, nil
}

// arithDemo prints 10 + 20, 7 / 2, 7 // 2, 7 % 3 and 2 ^ 10.
func arithDemo() (*bytecode.Chunk, error) {
	c := bytecode.NewChunk()
	exprs := []struct {
		a, b value.Value
		op   bytecode.Opcode
	}{
		{value.Int(10), value.Int(20), bytecode.OpAdd},
		{value.Int(7), value.Int(2), bytecode.OpDiv},
		{value.Int(7), value.Int(2), bytecode.OpIDiv},
		{value.Int(7), value.Int(3), bytecode.OpMod},
		{value.Int(2), value.Int(10), bytecode.OpPow},
	}
	for i, e := range exprs {
		c.SetLine(i + 1)
		if err := writeConstants(c, e.a, e.b); err != nil {
			return nil, err
		}
		c.EmitByte(e.op)
		c.EmitPrint()
	}
	return c, nil
}

// divZeroDemo fails with a division by zero before printing anything.
func divZeroDemo() (*bytecode.Chunk, error) {
	c := bytecode.NewChunk()
	c.SetLine(1)
	if err := writeConstants(c, value.Int(10), value.Int(0)); err != nil {
		return nil, err
	}
	c.EmitByte(bytecode.OpDiv)
	c.EmitPrint()
	return c, nil
}

// wideDemo fills the pool past the narrow index range and prints the last
// constant, which needs a WIDE prefix.
func wideDemo() (*bytecode.Chunk, error) {
	c := bytecode.NewChunk()
	for i := 0; i < 300; i++ {
		if _, err := c.AddConstant(value.Int(int32(i))); err != nil {
			return nil, err
		}
	}
	c.SetLine(1)
	if err := writeConstants(c, value.Float(3.5)); err != nil {
		return nil, err
	}
	c.EmitPrint()
	return c, nil
}

func writeConstants(c *bytecode.Chunk, vs ...value.Value) error {
	for _, v := range vs {
		if _, err := c.WriteConstant(v); err != nil {
			return err
		}
	}
	return nil
}
