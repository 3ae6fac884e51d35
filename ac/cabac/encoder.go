package cabac

import (
	"github.com/fumin/deepcabac/ac"
)

// An Encoder carries the state required by the arithmetic encoding engine.
// Output bytes are appended to an internal buffer that survives restarts,
// so that several codewords can be placed back to back.
type Encoder struct {
	buf []byte

	low          uint32
	rng          uint32
	bitsLeft     int
	numBuffered  int
	bufferedByte uint32
}

// Start resets the engine for a new codeword, keeping the bytes written so far.
func (e *Encoder) Start() {
	e.low = 0
	e.rng = initRange
	e.bitsLeft = 23
	e.numBuffered = 0
	e.bufferedByte = 0xff
}

// EncodeBin encodes one binary decision under ctx and adapts ctx to it.
func (e *Encoder) EncodeBin(bin uint32, ctx *ac.Context) {
	lps := ctx.LPS(e.rng)
	e.rng -= lps

	if bin != ctx.MPS() {
		n := ac.RenormShift(lps)
		e.low = (e.low + e.rng) << n
		e.rng = lps << n
		ctx.UpdateLPS()
		e.bitsLeft -= int(n)
	} else {
		ctx.UpdateMPS()
		if e.rng >= 256 {
			return
		}
		e.low <<= 1
		e.rng <<= 1
		e.bitsLeft--
	}
	e.testAndWriteOut()
}

// EncodeBinEP encodes one equiprobable bin.
func (e *Encoder) EncodeBinEP(bin uint32) {
	e.low <<= 1
	if bin != 0 {
		e.low += e.rng
	}
	e.bitsLeft--
	e.testAndWriteOut()
}

// EncodeBinsEP encodes the n low bits of v as equiprobable bins, most significant first.
func (e *Encoder) EncodeBinsEP(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		e.EncodeBinEP((v >> uint(i)) & 1)
	}
}

// EncodeBinTrm encodes the terminating bin.
func (e *Encoder) EncodeBinTrm(bin uint32) {
	e.rng -= 2
	if bin != 0 {
		e.low += e.rng
		e.low <<= 7
		e.rng = 2 << 7
		e.bitsLeft -= 7
	} else if e.rng >= 256 {
		return
	} else {
		e.low <<= 1
		e.rng <<= 1
		e.bitsLeft--
	}
	e.testAndWriteOut()
}

// Finish terminates the codeword, flushes the engine and appends the stop bit with zero alignment.
func (e *Encoder) Finish() {
	e.EncodeBinTrm(1)

	if e.low>>uint(32-e.bitsLeft) != 0 {
		e.buf = append(e.buf, byte(e.bufferedByte+1))
		for ; e.numBuffered > 1; e.numBuffered-- {
			e.buf = append(e.buf, 0x00)
		}
		e.low -= 1 << uint(32-e.bitsLeft)
	} else {
		if e.numBuffered > 0 {
			e.buf = append(e.buf, byte(e.bufferedByte))
		}
		for ; e.numBuffered > 1; e.numBuffered-- {
			e.buf = append(e.buf, 0xff)
		}
	}
	e.numBuffered = 0

	// The remaining 24-bitsLeft bits of low>>8, then the stop bit, padded with zeros to a byte boundary.
	nbits := uint(24-e.bitsLeft) + 1
	tail := uint64((e.low>>8)&(1<<(nbits-1)-1))<<1 | 1
	pad := (8 - nbits%8) % 8
	tail <<= pad
	for n := int(nbits + pad); n > 0; n -= 8 {
		e.buf = append(e.buf, byte(tail>>uint(n-8)))
	}
}

func (e *Encoder) testAndWriteOut() {
	if e.bitsLeft < 12 {
		e.writeOut()
	}
}

// writeOut moves the top byte of low to the buffer, holding back runs of 0xff until a possible carry is resolved.
func (e *Encoder) writeOut() {
	lead := e.low >> uint(24-e.bitsLeft)
	e.bitsLeft += 8
	e.low &= 0xffffffff >> uint(e.bitsLeft)

	if lead == 0xff {
		e.numBuffered++
		return
	}
	if e.numBuffered == 0 {
		e.numBuffered = 1
		e.bufferedByte = lead
		return
	}
	carry := lead >> 8
	e.buf = append(e.buf, byte(e.bufferedByte+carry))
	e.bufferedByte = lead & 0xff
	for ; e.numBuffered > 1; e.numBuffered-- {
		e.buf = append(e.buf, byte(0xff+carry))
	}
}

// Bytes returns the bytes written so far.
// Bytes of an unfinished codeword may still be held back in the engine.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}
