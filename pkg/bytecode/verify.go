package bytecode

import (
	"sort"

	"github.com/chain/txvm/errors"
)

// Verify checks that the chunk is well formed before it is executed:
// every opcode is known, no operand is truncated, every constant index is
// inside the pool, every WIDE prefix is followed by CONSTANT, and every
// jump is resolved and lands on an instruction boundary in [0, len(code)].
//
// The CONSTANT that follows a WIDE prefix is not a boundary: entering it
// directly would decode its operand in the narrow form.
func (c *Chunk) Verify() error {
	if len(c.pending) > 0 {
		handles := make([]int, 0, len(c.pending))
		for h := range c.pending {
			handles = append(handles, int(h))
		}
		sort.Ints(handles)
		return errors.WithData(ErrUnpatchedJump, "offset", handles[0]-1, "count", len(handles))
	}

	boundary := make(map[int]bool)
	var jumps []Instruction

	wide := false
	offset := 0
	for offset < len(c.code) {
		in, err := c.Decode(offset, wide)
		if err != nil {
			return errors.Wrap(err, "verify")
		}
		if wide && in.Op != OpConstant {
			return errors.Wrap(c.decodeErr(ErrMisplacedWide, offset-1), "verify")
		}
		if !wide {
			boundary[offset] = true
		}
		if in.Op.IsJump() {
			jumps = append(jumps, in)
		}
		wide = in.Op == OpWide
		offset = in.Next()
	}
	if wide {
		return errors.Wrap(c.decodeErr(ErrMisplacedWide, len(c.code)-1), "verify")
	}

	for _, j := range jumps {
		target := j.Target()
		if target < 0 || target > len(c.code) {
			return errors.Wrap(errors.WithData(c.decodeErr(ErrBadJump, j.Offset), "target", target), "verify")
		}
		if target < len(c.code) && !boundary[target] {
			return errors.Wrap(errors.WithData(c.decodeErr(ErrMisalignedJump, j.Offset), "target", target), "verify")
		}
	}
	return nil
}
