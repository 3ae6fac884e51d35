// Package ctxmodel selects the context of every context coded decision of a weight.
//
// For a unary length n the contexts are laid out as
//
//	sig   [parent bank 2][trellis state 4][neighbour 3]  0..23
//	sign  [neighbour 3]                                  24..26
//	gtx   [polarity 2][n]                                27..27+2n-1
//
// where the neighbour is the class of the previously coded level and the parent bank
// tells whether the co-located weight of the base tensor is non-zero.
package ctxmodel

import (
	"github.com/fumin/deepcabac/trellis"
)

const (
	numNeighbours = 3
	numStates     = 4
	numBanks      = 2

	sigBankSize = numStates * numNeighbours
	numSig      = numBanks * sigBankSize
	signOffset  = numSig
	gtxOffset   = signOffset + numNeighbours
)

// Neighbour classes of the previously coded level.
const (
	Zero     = 0
	Negative = 1
	Positive = 2
)

// NumContexts returns the number of contexts needed for unary length n.
func NumContexts(n int) int {
	return gtxOffset + 2*n
}

// Features are the coding tools active for a layer.
type Features struct {
	// DQ is set when dependent quantization is on.
	DQ bool
	// PrevCtx is set when the significance context depends on the base tensor.
	PrevCtx bool
}

// A Set is the part of the context space in use for one combination of Features.
// It is resolved once per layer.
type Set struct {
	stateStride int
	bankStride  int
	gtxNeg      int
	numGtx      int
}

// Shift resolves the context set for unary length n and features f.
// Tools that are off collapse their dimension to the first slice of it,
// so the contexts used without a tool are the ones a layer with the tool uses in its initial state.
func Shift(n int, f Features) Set {
	s := Set{gtxNeg: n, numGtx: n}
	if f.DQ {
		s.stateStride = numNeighbours
	}
	if f.PrevCtx {
		s.bankStride = sigBankSize
	}
	return s
}

// NumGtx returns the number of greater-than flags coded before the remainder.
func (s Set) NumGtx() int {
	return s.numGtx
}

// Sig returns the context of the significance flag.
func (s Set) Sig(st trellis.State, nb int, baseNonZero bool) int {
	idx := int(st)*s.stateStride + nb
	if baseNonZero {
		idx += s.bankStride
	}
	return idx
}

// Sign returns the context of the sign flag.
func (s Set) Sign(nb int) int {
	return signOffset + nb
}

// Gtx returns the context of the i-th greater-than flag, i counting from 0.
func (s Set) Gtx(negative bool, i int) int {
	if negative {
		return gtxOffset + s.gtxNeg + i
	}
	return gtxOffset + i
}

// A Modeler tracks the neighbourhood of the weight being coded.
type Modeler struct {
	prev int32
}

// Reset forgets the previously coded level, as at the start of a segment.
func (m *Modeler) Reset() {
	m.prev = 0
}

// Update records the signed level just coded.
func (m *Modeler) Update(level int32) {
	m.prev = level
}

// Neighbour returns the class of the previously coded level.
func (m *Modeler) Neighbour() int {
	switch {
	case m.prev < 0:
		return Negative
	case m.prev > 0:
		return Positive
	}
	return Zero
}
