package scan

import (
	"reflect"
	"testing"
)

func TestRaster(t *testing.T) {
	s, err := New(Raster, 4, 6)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for i := 0; i < s.Len(); i++ {
		if s.Position(i) != i {
			t.Errorf("%d: %d", i, s.Position(i))
		}
	}
	if !reflect.DeepEqual(s.Segments(), []Segment{{0, 6}}) {
		t.Errorf("%+v", s.Segments())
	}
	if s.NumEntryPoints() != 0 {
		t.Errorf("%d", s.NumEntryPoints())
	}
}

func TestBlock(t *testing.T) {
	// 20 rows of 10 weights with blocks of 8x8: three block rows of 8, 8 and 4 rows.
	const width, height = 10, 20
	s, err := New(1, width, width*height)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	// The first block covers rows 0-7 and columns 0-7.
	for i := 0; i < 64; i++ {
		want := (i/8)*width + i%8
		if s.Position(i) != want {
			t.Fatalf("%d: %d != %d", i, s.Position(i), want)
		}
	}
	// Then the 8x2 block to its right.
	if s.Position(64) != 8 || s.Position(65) != 9 || s.Position(66) != width+8 {
		t.Errorf("%d %d %d", s.Position(64), s.Position(65), s.Position(66))
	}

	want := []Segment{{0, 80}, {80, 160}, {160, 200}}
	if !reflect.DeepEqual(s.Segments(), want) {
		t.Errorf("%+v", s.Segments())
	}
	if s.NumEntryPoints() != 2 {
		t.Errorf("%d", s.NumEntryPoints())
	}

	// Every position is visited exactly once.
	seen := make([]bool, width*height)
	for i := 0; i < s.Len(); i++ {
		p := s.Position(i)
		if seen[p] {
			t.Fatalf("position %d visited twice", p)
		}
		seen[p] = true
	}
	for p, ok := range seen {
		if !ok {
			t.Errorf("position %d not visited", p)
		}
	}
}

func TestBlockDim(t *testing.T) {
	for o, want := range []int{0, 8, 16, 32, 64} {
		if got := Order(o).BlockDim(); got != want {
			t.Errorf("order %d: %d != %d", o, got, want)
		}
	}
}

func TestEmpty(t *testing.T) {
	s, err := New(2, 0, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if s.Len() != 0 || len(s.Segments()) != 0 || s.NumEntryPoints() != 0 {
		t.Errorf("%+v", s)
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		o     Order
		width int
		n     int
		ok    bool
	}{
		{Raster, 0, 7, true},
		{1, 4, 8, true},
		{1, 3, 8, false},
		{1, 0, 8, false},
		{5, 4, 8, false},
		{-1, 4, 8, false},
		{Raster, 4, -1, false},
	}
	for _, test := range tests {
		err := Check(test.o, test.width, test.n)
		if (err == nil) != test.ok {
			t.Errorf("%+v: %v", test, err)
		}
	}
}
