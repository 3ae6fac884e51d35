package deepcabac

import (
	"math"

	"github.com/pkg/errors"

	"github.com/fumin/deepcabac/ctxmodel"
	"github.com/fumin/deepcabac/scan"
	"github.com/fumin/deepcabac/trellis"
)

const (
	// DefaultUnaryLength is the number of greater-than flags used when a stream does not say otherwise.
	DefaultUnaryLength = 10

	// MaxUnaryLength is the largest number of greater-than flags a layer may use.
	MaxUnaryLength = 256

	// MaxProfile is the highest general_profile_idc understood by the coder.
	MaxProfile = 1

	// MaxNumWeights is the largest number of weights in one layer.
	MaxNumWeights = 1 << 28

	// maxAbsLevel bounds the magnitude of a coded quantization index.
	maxAbsLevel = 1 << 29
)

// HdspOpts are the options of history dependent significance probability modelling.
// The only recognized option is Enabled, and layers with it set are rejected.
type HdspOpts struct {
	Enabled bool
}

// LayerParams describe how the weights of one layer are coded.
type LayerParams struct {
	// LayerWidth is the number of columns of the weight grid.
	LayerWidth int
	// NumWeights is the number of weights to code.
	NumWeights int
	// DQ turns on dependent quantization (dq_flag).
	DQ bool
	// ScanOrder selects the traversal of the weight grid and with it the entry points.
	ScanOrder scan.Order
	// Profile is the general_profile_idc of the stream.
	Profile uint8
	// ParentNodeIDPresent is the parent_node_id_present_flag.
	// Together with a base tensor and a profile above 0 it makes significance contexts depend on the base.
	ParentNodeIDPresent bool
	// CodebookSize is the number of codebook entries, 0 when the levels are not codebook indices.
	CodebookSize int
	// CodebookZeroOffset is the codebook index of the zero level.
	CodebookZeroOffset int

	Hdsp HdspOpts `json:"-"`
}

// Validate checks the parameters for consistency before any bit is coded.
func (p LayerParams) Validate() error {
	if p.LayerWidth < 0 || int64(p.LayerWidth) > math.MaxUint32 {
		return errors.Wrapf(ErrInvalidParams, "layer width %d", p.LayerWidth)
	}
	if p.NumWeights > MaxNumWeights {
		return errors.Wrapf(ErrInvalidParams, "%d weights, at most %d", p.NumWeights, MaxNumWeights)
	}
	if err := scan.Check(p.ScanOrder, p.LayerWidth, p.NumWeights); err != nil {
		return errors.Wrapf(ErrInvalidParams, "%v", err)
	}
	if p.Profile > MaxProfile {
		return errors.Wrapf(ErrInvalidParams, "general_profile_idc %d", p.Profile)
	}
	if p.CodebookSize < 0 || int64(p.CodebookSize) > math.MaxInt32 {
		return errors.Wrapf(ErrInvalidParams, "codebook size %d", p.CodebookSize)
	}
	if p.CodebookSize == 0 && p.CodebookZeroOffset != 0 {
		return errors.Wrapf(ErrInvalidParams, "codebook zero offset %d without codebook", p.CodebookZeroOffset)
	}
	if p.CodebookSize > 0 && (p.CodebookZeroOffset < 0 || p.CodebookZeroOffset >= p.CodebookSize) {
		return errors.Wrapf(ErrInvalidParams, "codebook zero offset %d not in [0, %d)", p.CodebookZeroOffset, p.CodebookSize)
	}
	if p.Hdsp.Enabled {
		return errors.Wrap(ErrUnsupportedOption, "hdsp")
	}
	return nil
}

func checkUnaryLength(n int) error {
	if n < 1 || n > MaxUnaryLength {
		return errors.Wrapf(ErrInvalidParams, "unary length %d not in [1, %d]", n, MaxUnaryLength)
	}
	return nil
}

// A strategy is the combination of coding steps of one layer, resolved before the first weight.
type strategy struct {
	// trellis is nil without dependent quantization.
	trellis *trellis.Def
	record  bool
	diff    bool
	prevCtx bool

	codebook     bool
	codebookSize int32
	zeroOffset   int32
	// signCoded is false when all levels share the sign given by negative.
	signCoded bool
	negative  bool

	set ctxmodel.Set
}

func newStrategy(p LayerParams, numGtx int, hasBase, record bool) strategy {
	st := strategy{
		record:    record,
		diff:      hasBase,
		prevCtx:   hasBase && p.ParentNodeIDPresent && p.Profile > 0,
		signCoded: true,
	}
	if p.DQ {
		st.trellis = trellis.DQ4
	}
	if p.CodebookSize > 0 {
		st.codebook = true
		st.codebookSize = int32(p.CodebookSize)
		st.zeroOffset = int32(p.CodebookZeroOffset)
		switch {
		case p.CodebookZeroOffset == 0:
			st.signCoded = false
		case p.CodebookZeroOffset == p.CodebookSize-1:
			st.signCoded = false
			st.negative = true
		}
	}
	st.set = ctxmodel.Shift(numGtx, ctxmodel.Features{DQ: p.DQ, PrevCtx: st.prevCtx})
	return st
}
