// Package scan maps the linear coding order of a weight tensor to positions in the tensor.
//
// A tensor of n weights is viewed as a grid of n/width rows and width columns.
// Order 0 visits the grid row by row. Orders 1 to 4 split it into square blocks of
// 4<<order rows and columns, visit the blocks row by row and each block row by row.
// Every row of blocks is a Segment, which the coder can start and stop independently.
package scan

import (
	"github.com/pkg/errors"
)

// An Order selects a traversal of the weight grid.
type Order int

const (
	// Raster visits the weights in memory order.
	Raster Order = 0

	// MaxOrder is the largest supported block scan order.
	MaxOrder Order = 4
)

// BlockDim returns the side of a block under order o, or 0 for Raster.
func (o Order) BlockDim() int {
	if o == Raster {
		return 0
	}
	return 4 << uint(o)
}

// A Segment is a half open range [Begin, End) of scan indices.
type Segment struct {
	Begin int
	End   int
}

// Len returns the number of weights in the segment.
func (s Segment) Len() int {
	return s.End - s.Begin
}

// A Scan is the traversal of one weight tensor.
type Scan struct {
	order  Order
	width  int
	height int
	pos    []int
	segs   []Segment
}

// Check reports whether a tensor of n weights and the given width can be scanned in order o.
func Check(o Order, width, n int) error {
	if o < Raster || o > MaxOrder {
		return errors.Errorf("scan order %d not in [0, %d]", o, MaxOrder)
	}
	if n < 0 {
		return errors.Errorf("negative number of weights %d", n)
	}
	if o == Raster || n == 0 {
		return nil
	}
	if width <= 0 {
		return errors.Errorf("block scan needs a positive layer width, got %d", width)
	}
	if n%width != 0 {
		return errors.Errorf("%d weights do not fill rows of width %d", n, width)
	}
	return nil
}

// New returns the scan of a tensor of n weights laid out in rows of width weights.
func New(o Order, width, n int) (*Scan, error) {
	if err := Check(o, width, n); err != nil {
		return nil, err
	}
	s := &Scan{order: o, width: width}
	if n == 0 {
		return s, nil
	}
	if o == Raster {
		s.pos = make([]int, n)
		for i := range s.pos {
			s.pos[i] = i
		}
		s.segs = []Segment{{Begin: 0, End: n}}
		return s, nil
	}

	s.height = n / width
	bd := o.BlockDim()
	s.pos = make([]int, 0, n)
	for br := 0; br < s.height; br += bd {
		begin := len(s.pos)
		for bc := 0; bc < width; bc += bd {
			for r := br; r < min(s.height, br+bd); r++ {
				for c := bc; c < min(width, bc+bd); c++ {
					s.pos = append(s.pos, r*width+c)
				}
			}
		}
		s.segs = append(s.segs, Segment{Begin: begin, End: len(s.pos)})
	}
	return s, nil
}

// Order returns the traversal order of the scan.
func (s *Scan) Order() Order {
	return s.order
}

// Len returns the number of weights in the scan.
func (s *Scan) Len() int {
	return len(s.pos)
}

// Position returns the index into the weight tensor of the i-th weight in scan order.
func (s *Scan) Position(i int) int {
	return s.pos[i]
}

// Segments returns the independently coded runs of the scan, in order.
// A tensor in Raster order is a single segment.
func (s *Scan) Segments() []Segment {
	return s.segs
}

// NumEntryPoints returns the number of entry points a coded tensor carries, one per segment after the first.
func (s *Scan) NumEntryPoints() int {
	if len(s.segs) == 0 {
		return 0
	}
	return len(s.segs) - 1
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
