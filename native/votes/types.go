package votes

import "github.com/holiman/uint256"

// Checkpoint records the delegated-in voting power of an account after the
// last change at or before AtTime.
type Checkpoint struct {
	AtTime uint64
	Power  *uint256.Int
}

// Copy returns a deep copy of the checkpoint.
func (c *Checkpoint) Copy() *Checkpoint {
	if c == nil {
		return nil
	}
	out := &Checkpoint{AtTime: c.AtTime, Power: new(uint256.Int)}
	if c.Power != nil {
		out.Power.Set(c.Power)
	}
	return out
}

func (c *Checkpoint) power() *uint256.Int {
	if c == nil || c.Power == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(c.Power)
}
