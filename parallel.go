package deepcabac

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/fumin/deepcabac/scan"
)

// DecodeParallel decodes a layer whose payload starts at the beginning of buf,
// running one decoder per segment concurrently.
// entryPoints holds the offset in buf of every segment after the first, as returned by
// Encoder.EncodeWeights or Decoder.DecodeWeightsAndCreateEntryPoints.
// base may be nil; otherwise the layer is decoded as differences to base.
// Each segment must end with its own terminated codeword at or before the next entry point,
// so the result equals that of a sequential decode.
// It returns the offset in buf just past the codeword of the last segment, 0 for a layer without weights.
func DecodeParallel(buf []byte, entryPoints []uint64, unaryLength int, out, base []int32, p LayerParams) (int, error) {
	if err := checkUnaryLength(unaryLength); err != nil {
		return 0, err
	}
	sc, err := prepareLayer(out, base, p)
	if err != nil {
		return 0, err
	}
	if len(entryPoints) != sc.NumEntryPoints() {
		return 0, errors.Wrapf(ErrEntryPointCount, "%d entry points for %d segments", len(entryPoints), len(sc.Segments()))
	}
	starts := make([]uint64, 0, len(sc.Segments()))
	if len(sc.Segments()) > 0 {
		starts = append(starts, 0)
	}
	for _, ep := range entryPoints {
		if ep > uint64(len(buf)) || ep+2 > uint64(len(buf)) {
			return 0, errors.Wrapf(ErrEntryPointOutOfRange, "entry point %d in %d bytes", ep, len(buf))
		}
		if prev := starts[len(starts)-1]; ep <= prev {
			return 0, errors.Wrapf(ErrEntryPointOrder, "entry point %d after %d", ep, prev)
		}
		starts = append(starts, ep)
	}

	ends := make([]int, len(starts))
	errs := make([]error, len(starts))
	var wg sync.WaitGroup
	for k, seg := range sc.Segments() {
		wg.Add(1)
		go func(k int, seg scan.Segment) {
			defer wg.Done()
			ends[k], errs[k] = decodeSegmentAt(buf, starts[k], unaryLength, out, base, p, sc, seg)
		}(k, seg)
	}
	wg.Wait()

	for k, err := range errs {
		if err != nil {
			return 0, errors.Wrapf(err, "segment %d", k)
		}
		// A sequential decoder cannot seek back into a codeword it has already read.
		if k+1 < len(starts) && uint64(ends[k]) > starts[k+1] {
			return 0, errors.Wrapf(ErrEntryPointOrder, "segment %d ends at %d, after entry point %d", k, ends[k], starts[k+1])
		}
	}
	if len(ends) == 0 {
		return 0, nil
	}
	return ends[len(ends)-1], nil
}

// decodeSegmentAt decodes one segment with a decoder of its own,
// and returns the offset just past its terminated codeword.
func decodeSegmentAt(buf []byte, off uint64, unaryLength int, out, base []int32, p LayerParams, sc *scan.Scan, seg scan.Segment) (int, error) {
	dec := NewDecoder()
	if err := dec.StartAt(buf, int(off)); err != nil {
		return 0, err
	}
	if err := dec.InitContexts(unaryLength); err != nil {
		return 0, err
	}
	st := newStrategy(p, unaryLength, base != nil, false)
	if err := dec.decodeSegment(out, base, sc, seg, &st); err != nil {
		return 0, err
	}
	return dec.Terminate()
}
