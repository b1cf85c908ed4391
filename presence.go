package bsonmap

import (
	"math/bits"
	"sync"
)

// presenceTracker records which members were seen during one decode scan.
//
// Bits beyond the member count are pre-set in the last block so that the
// complement of every block only contains real, unseen member indices.
type presenceTracker struct {
	blocks []uint32
	n      int
}

const presenceBlockBits = 32

var presencePool = sync.Pool{New: func() any { return &presenceTracker{} }}

// acquirePresence returns a cleared tracker for n members. Callers must
// release it on every exit path.
func acquirePresence(n int) *presenceTracker {
	t := presencePool.Get().(*presenceTracker)
	t.reset(n)
	return t
}

func (t *presenceTracker) release() { presencePool.Put(t) }

func (t *presenceTracker) reset(n int) {
	nb := (n + presenceBlockBits - 1) / presenceBlockBits
	if cap(t.blocks) < nb {
		t.blocks = make([]uint32, nb)
	}
	t.blocks = t.blocks[:nb]
	clear(t.blocks)
	t.n = n
	if rem := n % presenceBlockBits; rem != 0 {
		t.blocks[nb-1] = ^uint32(0) << rem
	}
}

func (t *presenceTracker) mark(i int) {
	t.blocks[i/presenceBlockBits] |= 1 << (uint(i) % presenceBlockBits)
}

func (t *presenceTracker) seen(i int) bool {
	return t.blocks[i/presenceBlockBits]&(1<<(uint(i)%presenceBlockBits)) != 0
}

// complete reports whether every member was seen.
func (t *presenceTracker) complete() bool {
	for _, b := range t.blocks {
		if b != ^uint32(0) {
			return false
		}
	}
	return true
}

// eachMissing calls fn for every unseen member index in ascending order,
// stopping at the first error.
func (t *presenceTracker) eachMissing(fn func(i int) error) error {
	for bi, b := range t.blocks {
		missing := ^b
		for missing != 0 {
			tz := bits.TrailingZeros32(missing)
			if err := fn(bi*presenceBlockBits + tz); err != nil {
				return err
			}
			missing &= missing - 1
		}
	}
	return nil
}
