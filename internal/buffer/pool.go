package buffer

import (
	"math/bits"
	"sync"

	"recordcsv/internal/format"
)

// maxClass is the largest pooled size class (2^24 units). Larger requests are
// served by plain allocations and dropped on return.
const maxClass = 24

// Pool is a size-classed storage pool. Every class holds slices whose length
// is exactly a power of two, so a rented slice is never shorter than asked for.
// It is safe for concurrent use.
type Pool[U format.Unit] struct {
	classes [maxClass + 1]sync.Pool
}

// Rent returns a slice of at least n units. Its contents are unspecified.
func (p *Pool[U]) Rent(n int) []U {
	if n < 1 {
		n = 1
	}
	c := classOf(n)
	if c > maxClass {
		return make([]U, n)
	}
	if v := p.classes[c].Get(); v != nil {
		return *(v.(*[]U))
	}
	return make([]U, 1<<c)
}

// Return hands s back to the pool. Slices that did not come from Rent are
// accepted when their length matches a size class and dropped otherwise.
func (p *Pool[U]) Return(s []U) {
	n := len(s)
	if n == 0 || n&(n-1) != 0 {
		return
	}
	c := classOf(n)
	if c > maxClass {
		return
	}
	p.classes[c].Put(&s)
}

// classOf returns ceil(log2(n)) for n >= 1.
func classOf(n int) int {
	return bits.Len(uint(n - 1))
}

var (
	bytePool Pool[byte]
	unitPool Pool[uint16]
)
