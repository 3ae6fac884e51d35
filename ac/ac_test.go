package ac

import (
	"math/rand"
	"testing"
)

func TestContextSaturates(t *testing.T) {
	c := Context{}
	for i := 0; i < 200; i++ {
		c.UpdateMPS()
	}
	if c.State() != MaxState || c.MPS() != 0 {
		t.Errorf("%+v", c)
	}

	// An LPS in the equiprobable state swaps the symbols.
	c.Reset()
	c.UpdateLPS()
	if c.State() != 0 || c.MPS() != 1 {
		t.Errorf("%+v", c)
	}
}

func TestStateStaysLegal(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	c := Context{}
	for i := 0; i < 100000; i++ {
		// Long MPS runs drive the context into saturation before LPS updates pull it back.
		if rnd.Intn(50) == 0 {
			c.UpdateLPS()
		} else {
			c.UpdateMPS()
		}
		if c.State() > MaxState || c.MPS() > 1 {
			t.Fatalf("%d: %+v", i, c)
		}
	}
}

func TestRenormShift(t *testing.T) {
	for s := 0; s < 64; s++ {
		for q := uint32(0); q < 4; q++ {
			c := Context{state: uint8(s)}
			lps := c.LPS(256 + q<<6)
			if r := lps << RenormShift(lps); r < 256 || r > 510 {
				t.Errorf("state %d quarter %d: lps %d renormalizes to %d", s, q, lps, r)
			}
		}
	}
}

func TestStore(t *testing.T) {
	s := Store{}
	s.Init(5)
	if s.Len() != 5 {
		t.Fatalf("%d", s.Len())
	}
	for i := 0; i < s.Len(); i++ {
		s.At(i).UpdateMPS()
		s.At(i).UpdateLPS()
		s.At(i).UpdateLPS()
	}
	s.Reset()
	for i := 0; i < s.Len(); i++ {
		if c := *s.At(i); c != (Context{}) {
			t.Errorf("%d %+v", i, c)
		}
	}

	s.At(1).UpdateMPS()
	s.Init(3)
	if s.Len() != 3 || *s.At(1) != (Context{}) {
		t.Errorf("%d %+v", s.Len(), *s.At(1))
	}
}
