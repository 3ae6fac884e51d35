// Package deepcabac decodes quantized neural network weight tensors coded with
// context-adaptive binary arithmetic coding (CABAC).
//
// A Decoder is bound to a byte buffer, its context models are initialized for a unary length,
// and then layers of weights are decoded one after another:
//
//	dec := deepcabac.NewDecoder()
//	if err := dec.Start(payload); err != nil {
//		return err
//	}
//	if err := dec.InitContexts(deepcabac.DefaultUnaryLength); err != nil {
//		return err
//	}
//	weights := make([]int32, params.NumWeights)
//	if err := dec.DecodeWeights(weights, params); err != nil {
//		return err
//	}
//	n, err := dec.Terminate()
//
// Levels may be plain integers, dependent quantization indices reconstructed through a trellis,
// or indices into an external codebook, and may be coded as differences to a base tensor.
// Block scanned layers are split into segments at entry points, which can be decoded
// concurrently with DecodeParallel. An Encoder producing such streams is included.
package deepcabac

import (
	"github.com/pkg/errors"

	"github.com/fumin/deepcabac/ac"
	"github.com/fumin/deepcabac/ac/cabac"
	"github.com/fumin/deepcabac/ctxmodel"
)

// A Decoder decodes weights from one CABAC byte stream.
// It is not safe for concurrent use.
type Decoder struct {
	buf     []byte
	bin     cabac.Decoder
	started bool

	ctxs   ac.Store
	numGtx int

	entryPoints []uint64
}

// NewDecoder returns a decoder that is not yet bound to a buffer.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Start binds the decoder to buf and starts arithmetic decoding at its first byte.
func (d *Decoder) Start(buf []byte) error {
	return d.StartAt(buf, 0)
}

// StartAt binds the decoder to buf and starts arithmetic decoding at byte offset off.
func (d *Decoder) StartAt(buf []byte, off int) error {
	d.started = false
	if err := d.bin.StartAt(buf, off); err != nil {
		return err
	}
	d.buf = buf
	d.started = true
	return nil
}

// InitContexts allocates the context models for unaryLength greater-than flags, all in their initial state.
func (d *Decoder) InitContexts(unaryLength int) error {
	if err := checkUnaryLength(unaryLength); err != nil {
		return err
	}
	d.numGtx = unaryLength
	d.ctxs.Init(ctxmodel.NumContexts(unaryLength))
	return nil
}

// ResetContexts puts every context model back into its initial state.
func (d *Decoder) ResetContexts() {
	d.ctxs.Reset()
}

// Terminate decodes the end of the arithmetic codeword and checks the stop pattern that follows it.
// It returns the number of bytes of the buffer consumed.
func (d *Decoder) Terminate() (int, error) {
	if !d.started {
		return 0, ErrNotStarted
	}
	bin, err := d.bin.DecodeBinTrm()
	if err != nil {
		return 0, err
	}
	if bin != 1 {
		return 0, errors.Wrap(ac.ErrTermination, "terminating bin not set")
	}
	if err := d.bin.Finish(); err != nil {
		return 0, err
	}
	return d.bin.BytesRead(), nil
}

// DecodeUnsigned decodes an n bit unsigned integer coded in bypass mode (uae(v)).
func (d *Decoder) DecodeUnsigned(n int) (uint32, error) {
	if !d.started {
		return 0, ErrNotStarted
	}
	if n < 0 || n > 32 {
		return 0, errors.Wrapf(ErrInvalidParams, "bypass width %d", n)
	}
	return d.bin.DecodeBinsEP(n)
}

// DecodeSigned decodes an n bit two's complement integer coded in bypass mode (iae(v)).
func (d *Decoder) DecodeSigned(n int) (int32, error) {
	v, err := d.DecodeUnsigned(n)
	if err != nil || n == 0 {
		return 0, err
	}
	shift := uint(32 - n)
	return int32(v<<shift) >> shift, nil
}

// SetEntryPoints supplies the byte offsets of the segments after the first of the next layer decoded.
// Offsets are absolute positions in the bound buffer. The decoder keeps its own copy.
func (d *Decoder) SetEntryPoints(offsets []uint64) {
	if len(offsets) == 0 {
		d.entryPoints = nil
		return
	}
	d.entryPoints = append([]uint64(nil), offsets...)
}

// BytesRead returns the number of bytes of the buffer consumed so far.
func (d *Decoder) BytesRead() int {
	return d.bin.BytesRead()
}

// DecodeWeights decodes p.NumWeights weights into out.
func (d *Decoder) DecodeWeights(out []int32, p LayerParams) error {
	_, err := d.decodeLayer(out, nil, p, false)
	return err
}

// DecodeWeightsAndCreateEntryPoints decodes like DecodeWeights,
// and returns the byte offset at which each segment after the first starts.
func (d *Decoder) DecodeWeightsAndCreateEntryPoints(out []int32, p LayerParams) ([]uint64, error) {
	return d.decodeLayer(out, nil, p, true)
}

// DecodeWeightsDiff decodes p.NumWeights differences to base and stores their sums in out.
func (d *Decoder) DecodeWeightsDiff(out, base []int32, p LayerParams) error {
	if base == nil {
		return errors.Wrap(ErrCapacity, "nil base")
	}
	_, err := d.decodeLayer(out, base, p, false)
	return err
}

// DecodeWeightsDiffAndCreateEntryPoints decodes like DecodeWeightsDiff and returns the entry points of the layer.
func (d *Decoder) DecodeWeightsDiffAndCreateEntryPoints(out, base []int32, p LayerParams) ([]uint64, error) {
	if base == nil {
		return nil, errors.Wrap(ErrCapacity, "nil base")
	}
	return d.decodeLayer(out, base, p, true)
}
