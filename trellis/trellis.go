// Package trellis implements the state machine of dependent quantization.
//
// Two scalar quantizers alternate: Q0 reconstructs even multiples of the step size,
// Q1 odd multiples and zero. The quantizer in use is selected by a state that advances
// with the parity of every coded quantization index.
package trellis

// A State is a trellis state.
type State uint8

// A Def is a fixed trellis: a transition table and the reconstruction offset of each state.
type Def struct {
	Name string

	// next[s][p] is the state following s after an index of parity p.
	next [][2]State
	// offset[s] is 0 for states using Q0 and 1 for states using Q1.
	offset []int32
}

// DQ4 is the four state trellis of dependent quantization.
var DQ4 = &Def{
	Name:   "dq4",
	next:   [][2]State{{0, 2}, {2, 0}, {1, 3}, {3, 1}},
	offset: []int32{0, 0, 1, 1},
}

// NumStates returns the number of states of the trellis.
func (d *Def) NumStates() int {
	return len(d.next)
}

// Next returns the state that follows s once the quantization index q has been coded.
func (d *Def) Next(s State, q int32) State {
	return d.next[s][q&1]
}

// Reconstruct maps the quantization index q coded in state s to an integer level.
func (d *Def) Reconstruct(s State, q int32) int32 {
	return 2*q - sign(q)*d.offset[s]
}

// Index returns the quantization index that reconstructs to level in state s.
// ok is false if the quantizer of s cannot represent level.
func (d *Def) Index(s State, level int32) (q int32, ok bool) {
	if d.offset[s] == 0 {
		if level&1 != 0 {
			return 0, false
		}
		return level / 2, true
	}
	if level == 0 {
		return 0, true
	}
	if level&1 == 0 {
		return 0, false
	}
	return (level + sign(level)) / 2, true
}

func sign(v int32) int32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
