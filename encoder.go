package deepcabac

import (
	"math/bits"

	"github.com/pkg/errors"

	"github.com/fumin/deepcabac/ac"
	"github.com/fumin/deepcabac/ac/cabac"
	"github.com/fumin/deepcabac/ctxmodel"
	"github.com/fumin/deepcabac/scan"
	"github.com/fumin/deepcabac/trellis"
)

// An Encoder produces the byte streams read by Decoder.
// It is not safe for concurrent use.
type Encoder struct {
	bin cabac.Encoder

	ctxs   ac.Store
	numGtx int
}

// NewEncoder returns an encoder ready to code at the start of an empty buffer.
func NewEncoder() *Encoder {
	e := &Encoder{}
	e.bin.Start()
	return e
}

// InitContexts allocates the context models for unaryLength greater-than flags, all in their initial state.
func (e *Encoder) InitContexts(unaryLength int) error {
	if err := checkUnaryLength(unaryLength); err != nil {
		return err
	}
	e.numGtx = unaryLength
	e.ctxs.Init(ctxmodel.NumContexts(unaryLength))
	return nil
}

// ResetContexts puts every context model back into its initial state.
func (e *Encoder) ResetContexts() {
	e.ctxs.Reset()
}

// EncodeUnsigned codes the n low bits of v in bypass mode (uae(v)).
func (e *Encoder) EncodeUnsigned(v uint32, n int) error {
	if n < 0 || n > 32 {
		return errors.Wrapf(ErrInvalidParams, "bypass width %d", n)
	}
	if n < 32 && v>>uint(n) != 0 {
		return errors.Wrapf(ErrInvalidParams, "%d does not fit in %d bits", v, n)
	}
	e.bin.EncodeBinsEP(v, n)
	return nil
}

// EncodeSigned codes v as an n bit two's complement integer in bypass mode (iae(v)).
func (e *Encoder) EncodeSigned(v int32, n int) error {
	if n < 0 || n > 32 {
		return errors.Wrapf(ErrInvalidParams, "bypass width %d", n)
	}
	if n == 0 {
		if v != 0 {
			return errors.Wrapf(ErrInvalidParams, "%d does not fit in 0 bits", v)
		}
		return nil
	}
	lo, hi := -(int64(1) << uint(n-1)), int64(1)<<uint(n-1)-1
	if int64(v) < lo || int64(v) > hi {
		return errors.Wrapf(ErrInvalidParams, "%d does not fit in %d bits", v, n)
	}
	e.bin.EncodeBinsEP(uint32(v)&(0xffffffff>>uint(32-n)), n)
	return nil
}

// EncodeWeights codes p.NumWeights weights of w and returns the entry points of the layer,
// as offsets into the bytes returned by Finish.
func (e *Encoder) EncodeWeights(w []int32, p LayerParams) ([]uint64, error) {
	return e.encodeLayer(w, nil, p)
}

// EncodeWeightsDiff codes the differences between w and base.
func (e *Encoder) EncodeWeightsDiff(w, base []int32, p LayerParams) ([]uint64, error) {
	if base == nil {
		return nil, errors.Wrap(ErrCapacity, "nil base")
	}
	return e.encodeLayer(w, base, p)
}

// Finish terminates the arithmetic codeword and returns every byte written by the encoder.
func (e *Encoder) Finish() []byte {
	e.bin.Finish()
	return e.bin.Bytes()
}

// BytesWritten returns the number of bytes written so far, not counting bytes held back in the engine.
func (e *Encoder) BytesWritten() int {
	return e.bin.Len()
}

func (e *Encoder) encodeLayer(w, base []int32, p LayerParams) ([]uint64, error) {
	if e.ctxs.Len() == 0 {
		return nil, ErrContextsNotInitialized
	}
	sc, err := prepareLayer(w, base, p)
	if err != nil {
		return nil, err
	}
	st := newStrategy(p, e.numGtx, base != nil, true)

	// Map every weight to its quantization index first, so that a level the layer cannot
	// represent is reported before any bit is written.
	qs := make([]int32, sc.Len())
	for _, seg := range sc.Segments() {
		if err := quantizeSegment(qs, w, base, sc, seg, &st); err != nil {
			return nil, err
		}
	}

	var eps []uint64
	for k, seg := range sc.Segments() {
		if k > 0 {
			e.bin.Finish()
			eps = append(eps, uint64(e.bin.Len()))
			e.bin.Start()
			e.ctxs.Reset()
		}
		var state trellis.State
		var m ctxmodel.Modeler
		for i := seg.Begin; i < seg.End; i++ {
			var b int32
			if st.diff {
				b = base[sc.Position(i)]
			}
			nb := m.Neighbour()
			e.encodeWeightVal(qs[i], st.set.Sig(state, nb, st.prevCtx && b != 0), nb, &st)
			m.Update(qs[i])
			if st.trellis != nil {
				state = st.trellis.Next(state, qs[i])
			}
		}
	}
	return eps, nil
}

// quantizeSegment stores in qs the quantization index of every weight of seg, in scan order.
func quantizeSegment(qs, w, base []int32, sc *scan.Scan, seg scan.Segment, st *strategy) error {
	var state trellis.State
	for i := seg.Begin; i < seg.End; i++ {
		pos := sc.Position(i)
		level := w[pos]
		if st.diff {
			level -= base[pos]
		}
		if st.codebook {
			if level < 0 || level >= st.codebookSize {
				return errors.Wrapf(ErrInvalidParams, "weight %d: codebook index %d of %d", pos, level, st.codebookSize)
			}
			level -= st.zeroOffset
		}
		q := level
		if st.trellis != nil {
			var ok bool
			q, ok = st.trellis.Index(state, level)
			if !ok {
				return errors.Wrapf(ErrLevelNotReachable, "weight %d: level %d in state %d", pos, level, state)
			}
			state = st.trellis.Next(state, q)
		}
		if q > maxAbsLevel || q < -maxAbsLevel {
			return errors.Wrapf(ErrInvalidParams, "weight %d: level %d too large", pos, level)
		}
		qs[i] = q
	}
	return nil
}

func (e *Encoder) encodeWeightVal(q int32, sigCtx, nb int, st *strategy) {
	if q == 0 {
		e.bin.EncodeBin(0, e.ctxs.At(sigCtx))
		return
	}
	e.bin.EncodeBin(1, e.ctxs.At(sigCtx))

	negative := q < 0
	if st.signCoded {
		var s uint32
		if negative {
			s = 1
		}
		e.bin.EncodeBin(s, e.ctxs.At(st.set.Sign(nb)))
	}

	a := q
	if negative {
		a = -q
	}
	for i := 0; i < st.set.NumGtx(); i++ {
		if a <= int32(i+1) {
			e.bin.EncodeBin(0, e.ctxs.At(st.set.Gtx(negative, i)))
			return
		}
		e.bin.EncodeBin(1, e.ctxs.At(st.set.Gtx(negative, i)))
	}
	e.encodeRemAbsLevel(uint32(a) - uint32(st.set.NumGtx()) - 1)
}

// encodeRemAbsLevel codes r as an order 0 exp-Golomb code in bypass bins.
func (e *Encoder) encodeRemAbsLevel(r uint32) {
	k := bits.Len32(r+1) - 1
	for i := 0; i < k; i++ {
		e.bin.EncodeBinEP(1)
	}
	e.bin.EncodeBinEP(0)
	e.bin.EncodeBinsEP(r+1-1<<uint(k), k)
}
