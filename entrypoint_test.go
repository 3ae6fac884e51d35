package deepcabac

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
)

func blockLayer(t *testing.T, seed int64) ([]int32, LayerParams, []byte, []uint64) {
	rnd := rand.New(rand.NewSource(seed))
	// Four rows of 8x8 blocks, the last one short.
	p := LayerParams{LayerWidth: 24, NumWeights: 24 * 30, DQ: true, ScanOrder: 1}
	w := randomLevels(rnd, p, 5)
	buf, eps := mustEncode(t, DefaultUnaryLength, w, nil, p)
	if len(eps) != 3 {
		t.Fatalf("%v", eps)
	}
	return w, p, buf, eps
}

func TestCreateEntryPoints(t *testing.T) {
	w, p, buf, eps := blockLayer(t, 1)

	dec := NewDecoder()
	if err := dec.Start(buf); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := dec.InitContexts(DefaultUnaryLength); err != nil {
		t.Fatalf("%+v", err)
	}
	out := make([]int32, p.NumWeights)
	created, err := dec.DecodeWeightsAndCreateEntryPoints(out, p)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !equalU64(created, eps) {
		t.Errorf("%v, expected %v", created, eps)
	}
	if !equal(out, w) {
		t.Errorf("%v, expected %v", out, w)
	}
	for k := 1; k < len(created); k++ {
		if created[k] <= created[k-1] {
			t.Errorf("%v", created)
		}
	}

	// Raster layers have a single segment.
	rp := LayerParams{LayerWidth: 24, NumWeights: 24 * 30}
	rb, reps := mustEncode(t, DefaultUnaryLength, w, nil, rp)
	if len(reps) != 0 {
		t.Errorf("%v", reps)
	}
	dec = NewDecoder()
	if err := dec.Start(rb); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := dec.InitContexts(DefaultUnaryLength); err != nil {
		t.Fatalf("%+v", err)
	}
	created, err = dec.DecodeWeightsAndCreateEntryPoints(out, rp)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(created) != 0 {
		t.Errorf("%v", created)
	}
}

func TestCreateEntryPointsDiff(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))
	p := LayerParams{LayerWidth: 40, NumWeights: 40 * 40, ScanOrder: 2, Profile: 1, ParentNodeIDPresent: true}
	base := randomLevels(rnd, p, 3)
	w := randomLevels(rnd, p, 3)
	for i := range w {
		w[i] += base[i]
	}
	buf, eps := mustEncode(t, DefaultUnaryLength, w, base, p)

	dec := NewDecoder()
	if err := dec.Start(buf); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := dec.InitContexts(DefaultUnaryLength); err != nil {
		t.Fatalf("%+v", err)
	}
	out := make([]int32, p.NumWeights)
	created, err := dec.DecodeWeightsDiffAndCreateEntryPoints(out, base, p)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !equalU64(created, eps) {
		t.Errorf("%v, expected %v", created, eps)
	}
	if !equal(out, w) {
		t.Errorf("%v, expected %v", out, w)
	}
}

func TestSeekEntryPoints(t *testing.T) {
	w, p, buf, eps := blockLayer(t, 2)

	// Pad every segment after the first with bytes no decoder may read.
	pad := []byte{0xde, 0xad, 0xbe}
	padded := make([]byte, 0, len(buf)+len(pad)*len(eps))
	shifted := make([]uint64, len(eps))
	prev := uint64(0)
	for k, ep := range eps {
		padded = append(padded, buf[prev:ep]...)
		padded = append(padded, pad...)
		shifted[k] = uint64(len(padded))
		prev = ep
	}
	padded = append(padded, buf[prev:]...)

	out := mustDecode(t, padded, DefaultUnaryLength, shifted, nil, p)
	if !equal(out, w) {
		t.Errorf("%v, expected %v", out, w)
	}
	n, err := DecodeParallel(padded, shifted, DefaultUnaryLength, out, nil, p)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if n != len(padded) {
		t.Errorf("read %d of %d bytes", n, len(padded))
	}
	if !equal(out, w) {
		t.Errorf("%v, expected %v", out, w)
	}
}

func TestEntryPointErrors(t *testing.T) {
	_, p, buf, eps := blockLayer(t, 3)

	decode := func(eps []uint64) error {
		dec := NewDecoder()
		if err := dec.Start(buf); err != nil {
			return err
		}
		if err := dec.InitContexts(DefaultUnaryLength); err != nil {
			return err
		}
		dec.SetEntryPoints(eps)
		return dec.DecodeWeights(make([]int32, p.NumWeights), p)
	}

	if err := decode(eps[:2]); !errors.Is(err, ErrEntryPointCount) {
		t.Errorf("%+v", err)
	}
	if err := decode(append(append([]uint64(nil), eps...), eps[2]+1)); !errors.Is(err, ErrEntryPointCount) {
		t.Errorf("%+v", err)
	}

	far := append([]uint64(nil), eps...)
	far[1] = uint64(len(buf)) + 10
	if err := decode(far); !errors.Is(err, ErrEntryPointOutOfRange) {
		t.Errorf("%+v", err)
	}
	last := append([]uint64(nil), eps...)
	last[2] = uint64(len(buf)) - 1
	if err := decode(last); !errors.Is(err, ErrEntryPointOutOfRange) {
		t.Errorf("%+v", err)
	}

	back := append([]uint64(nil), eps...)
	back[1] = eps[0]
	if err := decode(back); !errors.Is(err, ErrEntryPointOrder) {
		t.Errorf("%+v", err)
	}

	// Entry points apply to one layer only.
	dec := NewDecoder()
	if err := dec.Start(buf); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := dec.InitContexts(DefaultUnaryLength); err != nil {
		t.Fatalf("%+v", err)
	}
	dec.SetEntryPoints(eps[:1])
	if err := dec.DecodeWeights(make([]int32, p.NumWeights), p); !errors.Is(err, ErrEntryPointCount) {
		t.Errorf("%+v", err)
	}
	if err := dec.DecodeWeights(make([]int32, p.NumWeights), p); err != nil {
		t.Errorf("%+v", err)
	}
}

func TestDecodeParallel(t *testing.T) {
	w, p, buf, eps := blockLayer(t, 4)

	out := make([]int32, p.NumWeights)
	n, err := DecodeParallel(buf, eps, DefaultUnaryLength, out, nil, p)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if n != len(buf) {
		t.Errorf("read %d of %d bytes", n, len(buf))
	}
	if !equal(out, w) {
		t.Errorf("%v, expected %v", out, w)
	}

	if _, err := DecodeParallel(buf, eps[:2], DefaultUnaryLength, out, nil, p); !errors.Is(err, ErrEntryPointCount) {
		t.Errorf("%+v", err)
	}
	far := append([]uint64(nil), eps...)
	far[0] = uint64(len(buf))
	if _, err := DecodeParallel(buf, far, DefaultUnaryLength, out, nil, p); !errors.Is(err, ErrEntryPointOutOfRange) {
		t.Errorf("%+v", err)
	}
	for _, ep := range []uint64{uint64(len(buf)) - 1, math.MaxUint64 - 1, math.MaxUint64} {
		huge := append([]uint64(nil), eps...)
		huge[2] = ep
		if _, err := DecodeParallel(buf, huge, DefaultUnaryLength, out, nil, p); !errors.Is(err, ErrEntryPointOutOfRange) {
			t.Errorf("%d: %+v", ep, err)
		}
	}
	back := append([]uint64(nil), eps...)
	back[2] = back[1]
	if _, err := DecodeParallel(buf, back, DefaultUnaryLength, out, nil, p); !errors.Is(err, ErrEntryPointOrder) {
		t.Errorf("%+v", err)
	}
	if _, err := DecodeParallel(buf, eps, 0, out, nil, p); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("%+v", err)
	}
	if _, err := DecodeParallel(buf, eps, DefaultUnaryLength, out[:10], nil, p); !errors.Is(err, ErrCapacity) {
		t.Errorf("%+v", err)
	}

	// Segment 0 runs into the bytes claimed by segment 1.
	early := append([]uint64(nil), eps...)
	early[0]--
	if _, err := DecodeParallel(buf, early, DefaultUnaryLength, out, nil, p); !errors.Is(err, ErrEntryPointOrder) {
		t.Errorf("%+v", err)
	}

	if n, err := DecodeParallel(buf, nil, DefaultUnaryLength, nil, nil, LayerParams{LayerWidth: 24, ScanOrder: 1}); err != nil || n != 0 {
		t.Errorf("%d %+v", n, err)
	}

	// A segment that does not end with its own terminated codeword is reported.
	shifted := append([]uint64(nil), eps...)
	shifted[0]++
	if _, err := DecodeParallel(buf, shifted, DefaultUnaryLength, out, nil, p); err == nil {
		t.Errorf("expected error")
	}
}
