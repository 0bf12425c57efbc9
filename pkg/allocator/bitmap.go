// Package allocator provides MAC address pool allocation.
//
// A pool is a fixed, ordered list of assignable MAC addresses. Allocation
// state is tracked in a bitmap indexed by position in that list:
// - Bit value 1 = allocated, 0 = available
// - Finding the next free address scans 64 entries per word
// - A pool of 65536 addresses needs 8 KiB of state
package allocator

import (
	"fmt"
	"math/bits"
	"sync"
)

// Bitmap is a thread-safe allocation bitmap.
type Bitmap struct {
	// mu protects concurrent access
	mu sync.RWMutex

	// words holds 64 entries per element
	words []uint64

	// size is the total number of entries
	size int

	// allocated is the count of set entries
	allocated int
}

// NewBitmap creates a new bitmap with the specified number of entries.
func NewBitmap(size int) *Bitmap {
	return &Bitmap{
		words: make([]uint64, (size+63)/64),
		size:  size,
	}
}

// Set marks an entry as allocated.
//
// Parameters:
//   - index: Entry index to set
//
// Returns:
//   - error: Error if index is out of range or already set
func (b *Bitmap) Set(index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= b.size {
		return fmt.Errorf("index %d out of range [0, %d)", index, b.size)
	}

	word, mask := index/64, uint64(1)<<(uint(index)%64)
	if b.words[word]&mask != 0 {
		return fmt.Errorf("bit %d is already set", index)
	}

	b.words[word] |= mask
	b.allocated++
	return nil
}

// Clear marks an entry as available. Clearing a free entry is a no-op.
func (b *Bitmap) Clear(index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= b.size {
		return fmt.Errorf("index %d out of range [0, %d)", index, b.size)
	}

	word, mask := index/64, uint64(1)<<(uint(index)%64)
	if b.words[word]&mask != 0 {
		b.words[word] &^= mask
		b.allocated--
	}
	return nil
}

// IsSet reports whether an entry is allocated.
// Out-of-range indexes are reported as not allocated.
func (b *Bitmap) IsSet(index int) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if index < 0 || index >= b.size {
		return false
	}
	return b.words[index/64]&(uint64(1)<<(uint(index)%64)) != 0
}

// FindFirstClear returns the lowest free index, or -1 if the bitmap is full.
func (b *Bitmap) FindFirstClear() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, w := range b.words {
		if w == ^uint64(0) {
			continue
		}
		index := i*64 + bits.TrailingZeros64(^w)
		if index >= b.size {
			return -1
		}
		return index
	}
	return -1
}

// Size returns the total number of entries.
func (b *Bitmap) Size() int {
	return b.size
}

// Allocated returns the number of allocated entries.
func (b *Bitmap) Allocated() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.allocated
}

// Available returns the number of free entries.
func (b *Bitmap) Available() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size - b.allocated
}
