// Package cabac implements the 9 bit range binary arithmetic coding engine used by HEVC style CABAC,
// with the offset register scaled by 7 bits so that renormalization reads whole bytes.
package cabac

import (
	"github.com/pkg/errors"

	"github.com/fumin/deepcabac/ac"
)

const (
	initRange = 510

	// scaledHalf is the smallest legal range, 256, in the 7 bit scaled domain of the offset register.
	scaledHalf = 256 << 7
)

// A Decoder carries the state of the arithmetic decoding engine over a byte buffer.
type Decoder struct {
	buf        []byte
	pos        int
	rng        uint32
	value      uint32
	bitsNeeded int
}

// Start binds the decoder to buf and reads the initial offset from its first two bytes.
func (d *Decoder) Start(buf []byte) error {
	return d.StartAt(buf, 0)
}

// StartAt binds the decoder to buf and starts decoding at byte offset off.
func (d *Decoder) StartAt(buf []byte, off int) error {
	if off < 0 || off+2 > len(buf) {
		return errors.Wrapf(ac.ErrDecodeInsufficientBits, "start at %d of %d bytes", off, len(buf))
	}
	d.buf = buf
	d.pos = off + 2
	d.rng = initRange
	d.bitsNeeded = -8
	d.value = uint32(buf[off])<<8 | uint32(buf[off+1])
	return nil
}

func (d *Decoder) readByte() (uint32, error) {
	if d.pos >= len(d.buf) {
		return 0, ac.ErrDecodeInsufficientBits
	}
	b := d.buf[d.pos]
	d.pos++
	return uint32(b), nil
}

// DecodeBin decodes one binary decision under ctx and adapts ctx to the outcome.
func (d *Decoder) DecodeBin(ctx *ac.Context) (uint32, error) {
	lps := ctx.LPS(d.rng)
	d.rng -= lps
	scaledRange := d.rng << 7

	if d.value < scaledRange {
		bin := ctx.MPS()
		ctx.UpdateMPS()
		if scaledRange >= scaledHalf {
			return bin, nil
		}
		d.rng = scaledRange >> 6
		d.value <<= 1
		d.bitsNeeded++
		if d.bitsNeeded == 0 {
			d.bitsNeeded = -8
			b, err := d.readByte()
			if err != nil {
				return 0, err
			}
			d.value += b
		}
		return bin, nil
	}

	n := ac.RenormShift(lps)
	d.value = (d.value - scaledRange) << n
	d.rng = lps << n
	bin := 1 - ctx.MPS()
	ctx.UpdateLPS()
	d.bitsNeeded += int(n)
	if d.bitsNeeded >= 0 {
		b, err := d.readByte()
		if err != nil {
			return 0, err
		}
		d.value += b << uint(d.bitsNeeded)
		d.bitsNeeded -= 8
	}
	return bin, nil
}

// DecodeBinEP decodes one equiprobable bin.
func (d *Decoder) DecodeBinEP() (uint32, error) {
	d.value <<= 1
	d.bitsNeeded++
	if d.bitsNeeded >= 0 {
		d.bitsNeeded = -8
		b, err := d.readByte()
		if err != nil {
			return 0, err
		}
		d.value += b
	}

	scaledRange := d.rng << 7
	if d.value >= scaledRange {
		d.value -= scaledRange
		return 1, nil
	}
	return 0, nil
}

// DecodeBinsEP decodes n equiprobable bins, most significant first, n <= 32.
func (d *Decoder) DecodeBinsEP(n int) (uint32, error) {
	var v uint32
	for i := 0; i < n; i++ {
		b, err := d.DecodeBinEP()
		if err != nil {
			return 0, err
		}
		v = v<<1 | b
	}
	return v, nil
}

// DecodeBinTrm decodes the terminating bin.
// A 1 ends the arithmetic codeword, after which only Finish may be called.
func (d *Decoder) DecodeBinTrm() (uint32, error) {
	d.rng -= 2
	scaledRange := d.rng << 7
	if d.value >= scaledRange {
		return 1, nil
	}
	if scaledRange < scaledHalf {
		d.rng = scaledRange >> 6
		d.value <<= 1
		d.bitsNeeded++
		if d.bitsNeeded == 0 {
			d.bitsNeeded = -8
			b, err := d.readByte()
			if err != nil {
				return 0, err
			}
			d.value += b
		}
	}
	return 0, nil
}

// Finish checks that the last byte read holds the stop bit right after the arithmetic codeword,
// followed by zero alignment bits.
func (d *Decoder) Finish() error {
	if d.pos == 0 {
		return ac.ErrTermination
	}
	last := uint32(d.buf[d.pos-1])
	if (last<<uint(8+d.bitsNeeded))&0xff != 0x80 {
		return errors.Wrapf(ac.ErrTermination, "last byte %#02x at %d", last, d.pos-1)
	}
	return nil
}

// BytesRead returns the offset of the first byte in the buffer that the decoder has not read.
func (d *Decoder) BytesRead() int {
	return d.pos
}

// Len returns the length of the bound buffer.
func (d *Decoder) Len() int {
	return len(d.buf)
}
