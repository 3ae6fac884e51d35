package deepcabac

import (
	"github.com/pkg/errors"

	"github.com/fumin/deepcabac/ctxmodel"
	"github.com/fumin/deepcabac/scan"
	"github.com/fumin/deepcabac/trellis"
)

// maxRemPrefix bounds the exp-Golomb prefix of a remainder, enough for every level below maxAbsLevel.
const maxRemPrefix = 30

// prepareLayer checks a layer request and returns its scan, before anything is coded.
func prepareLayer(w, base []int32, p LayerParams) (*scan.Scan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(w) < p.NumWeights {
		return nil, errors.Wrapf(ErrCapacity, "weight array holds %d of %d weights", len(w), p.NumWeights)
	}
	if base != nil && len(base) < p.NumWeights {
		return nil, errors.Wrapf(ErrCapacity, "base array holds %d of %d weights", len(base), p.NumWeights)
	}
	sc, err := scan.New(p.ScanOrder, p.LayerWidth, p.NumWeights)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidParams, "%v", err)
	}
	return sc, nil
}

func (d *Decoder) decodeLayer(out, base []int32, p LayerParams, record bool) ([]uint64, error) {
	eps := d.entryPoints
	d.entryPoints = nil

	if !d.started {
		return nil, ErrNotStarted
	}
	if d.ctxs.Len() == 0 {
		return nil, ErrContextsNotInitialized
	}
	sc, err := prepareLayer(out, base, p)
	if err != nil {
		return nil, err
	}
	if eps != nil && len(eps) != sc.NumEntryPoints() {
		return nil, errors.Wrapf(ErrEntryPointCount, "%d entry points for %d segments", len(eps), len(sc.Segments()))
	}

	st := newStrategy(p, d.numGtx, base != nil, record)
	var recorded []uint64
	for k, seg := range sc.Segments() {
		if k > 0 {
			var ep *uint64
			if eps != nil {
				ep = &eps[k-1]
			}
			off, err := d.nextSegment(ep)
			if err != nil {
				return recorded, errors.Wrapf(err, "segment %d", k)
			}
			if st.record {
				recorded = append(recorded, off)
			}
		}
		if err := d.decodeSegment(out, base, sc, seg, &st); err != nil {
			return recorded, errors.Wrapf(err, "segment %d", k)
		}
	}
	return recorded, nil
}

// nextSegment ends the current segment and starts the next one, at ep if given.
// It returns the offset at which the new segment starts.
func (d *Decoder) nextSegment(ep *uint64) (uint64, error) {
	end, err := d.Terminate()
	if err != nil {
		return 0, err
	}
	off := uint64(end)
	if ep != nil {
		if *ep > uint64(len(d.buf)) || *ep+2 > uint64(len(d.buf)) {
			return 0, errors.Wrapf(ErrEntryPointOutOfRange, "entry point %d in %d bytes", *ep, len(d.buf))
		}
		if *ep < off {
			return 0, errors.Wrapf(ErrEntryPointOrder, "entry point %d before %d", *ep, off)
		}
		off = *ep
	}
	if err := d.bin.StartAt(d.buf, int(off)); err != nil {
		return 0, err
	}
	d.ctxs.Reset()
	return off, nil
}

// decodeSegment decodes the weights of one segment, starting from a fresh trellis state and neighbourhood.
func (d *Decoder) decodeSegment(out, base []int32, sc *scan.Scan, seg scan.Segment, st *strategy) error {
	var state trellis.State
	var m ctxmodel.Modeler
	for i := seg.Begin; i < seg.End; i++ {
		pos := sc.Position(i)
		var b int32
		if st.diff {
			b = base[pos]
		}

		nb := m.Neighbour()
		q, err := d.decodeWeightVal(st.set.Sig(state, nb, st.prevCtx && b != 0), nb, st)
		if err != nil {
			return errors.Wrapf(err, "weight %d", pos)
		}
		m.Update(q)

		level := q
		if st.trellis != nil {
			level = st.trellis.Reconstruct(state, q)
			state = st.trellis.Next(state, q)
		}
		if st.codebook {
			level += st.zeroOffset
			if level < 0 || level >= st.codebookSize {
				return errors.Wrapf(ErrCorruptStream, "weight %d: codebook index %d of %d", pos, level, st.codebookSize)
			}
		}
		out[pos] = level + b
	}
	return nil
}

// decodeWeightVal decodes one signed quantization index: significance, sign,
// a truncated unary run of greater-than flags and an exp-Golomb remainder.
func (d *Decoder) decodeWeightVal(sigCtx, nb int, st *strategy) (int32, error) {
	sig, err := d.bin.DecodeBin(d.ctxs.At(sigCtx))
	if err != nil || sig == 0 {
		return 0, err
	}

	negative := st.negative
	if st.signCoded {
		s, err := d.bin.DecodeBin(d.ctxs.At(st.set.Sign(nb)))
		if err != nil {
			return 0, err
		}
		negative = s == 1
	}

	v := int32(1)
	gtx := uint32(1)
	for i := 0; i < st.set.NumGtx(); i++ {
		gtx, err = d.bin.DecodeBin(d.ctxs.At(st.set.Gtx(negative, i)))
		if err != nil {
			return 0, err
		}
		if gtx == 0 {
			break
		}
		v++
	}
	if gtx == 1 {
		rem, err := d.decodeRemAbsLevel()
		if err != nil {
			return 0, err
		}
		if int64(v)+int64(rem) > maxAbsLevel {
			return 0, errors.Wrapf(ErrCorruptStream, "level %d", int64(v)+int64(rem))
		}
		v += int32(rem)
	}

	if negative {
		return -v, nil
	}
	return v, nil
}

// decodeRemAbsLevel decodes an order 0 exp-Golomb code in bypass bins.
func (d *Decoder) decodeRemAbsLevel() (uint32, error) {
	k := 0
	for {
		b, err := d.bin.DecodeBinEP()
		if err != nil {
			return 0, err
		}
		if b == 0 {
			break
		}
		k++
		if k > maxRemPrefix {
			return 0, errors.Wrap(ErrCorruptStream, "remainder prefix too long")
		}
	}
	suffix, err := d.bin.DecodeBinsEP(k)
	if err != nil {
		return 0, err
	}
	return (1<<uint(k) - 1) + suffix, nil
}
