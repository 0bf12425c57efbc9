package allocator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jiayi-1994/zstack-macpool/pkg/macrange"
)

// MACPool manages MAC allocation for a named set of ranges.
//
// Thread Safety: All methods are thread-safe.
//
// Allocation Rules:
//   - Multicast addresses are never part of the pool
//   - At most maxAddresses addresses are taken from the ranges, in range order
//   - Overlapping ranges contribute each address once
//   - Excluded MACs are pre-marked as allocated and cannot be released
//   - Addresses are allocated in ascending order from the first available
//   - A retired pool rejects every allocation and release
type MACPool struct {
	// mu protects concurrent access to the pool
	mu sync.RWMutex

	// name identifies the pool in errors and metrics
	name string

	// ranges are the source ranges, as given
	ranges []macrange.Range

	// addresses holds the canonical form of every pool member, ascending
	addresses []string

	// index maps a canonical MAC to its position in addresses
	index map[string]int

	// bitmap tracks allocated positions
	bitmap *Bitmap

	// excluded is the set of canonical MACs that must stay reserved
	excluded map[string]struct{}

	// retired is set once the pool has been replaced
	retired bool
}

// NewMACPool creates a new MAC pool.
//
// Parameters:
//   - name: Pool name (e.g., the MacPool resource name)
//   - ranges: Source ranges; inverted or all-multicast ranges contribute nothing
//   - excludeMACs: MACs to reserve; entries outside the pool are ignored
//   - maxAddresses: Upper bound on the pool size, must be positive
//
// Returns:
//   - *MACPool: Pool instance
//   - error: Error if maxAddresses is not positive, an excluded MAC is
//     malformed, or the ranges hold no assignable address
//
// Example:
//
//	r, _ := macrange.ParseRange("00:1a:4a:16:01:00", "00:1a:4a:16:01:ff")
//	pool, err := NewMACPool("default", []macrange.Range{r}, nil, 4096)
func NewMACPool(name string, ranges []macrange.Range, excludeMACs []string, maxAddresses int) (*MACPool, error) {
	if maxAddresses <= 0 {
		return nil, fmt.Errorf("pool %s: maxAddresses must be positive, got %d", name, maxAddresses)
	}

	index := make(map[string]int)
	addresses := make([]string, 0)
	budget := maxAddresses
	for _, r := range ranges {
		if budget <= 0 {
			break
		}
		for _, mac := range macrange.GenerateRange(r, macrange.LimitForCount(budget)) {
			if _, dup := index[mac]; dup {
				continue
			}
			index[mac] = 0
			addresses = append(addresses, mac)
			budget--
		}
	}

	if len(addresses) == 0 {
		return nil, fmt.Errorf("pool %s has no assignable MAC addresses", name)
	}

	// Canonical strings are fixed-width lowercase hex, so lexical order is
	// numeric order.
	sort.Strings(addresses)
	for i, mac := range addresses {
		index[mac] = i
	}

	pool := &MACPool{
		name:      name,
		ranges:    append([]macrange.Range(nil), ranges...),
		addresses: addresses,
		index:     index,
		bitmap:    NewBitmap(len(addresses)),
		excluded:  make(map[string]struct{}),
	}

	for _, exclude := range excludeMACs {
		if err := pool.exclude(exclude); err != nil {
			return nil, fmt.Errorf("invalid exclude MAC %q: %w", exclude, err)
		}
	}

	return pool, nil
}

// exclude reserves a single MAC. MACs outside the pool are ignored.
func (p *MACPool) exclude(mac string) error {
	canonical, err := normalize(mac)
	if err != nil {
		return err
	}

	i, ok := p.index[canonical]
	if !ok {
		return nil
	}

	p.excluded[canonical] = struct{}{}
	// Ignore error if already set
	_ = p.bitmap.Set(i)
	return nil
}

// AllocateNext allocates the lowest available MAC address.
//
// Returns:
//   - string: Allocated MAC in canonical form
//   - error: PoolExhaustedError if no addresses are available,
//     PoolRetiredError if the pool was replaced
func (p *MACPool) AllocateNext() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.retired {
		return "", &PoolRetiredError{Pool: p.name}
	}

	i := p.bitmap.FindFirstClear()
	if i == -1 {
		return "", &PoolExhaustedError{Pool: p.name}
	}

	if err := p.bitmap.Set(i); err != nil {
		return "", fmt.Errorf("failed to allocate MAC: %w", err)
	}

	return p.addresses[i], nil
}

// Allocate allocates a specific MAC address.
//
// Returns:
//   - error: *macrange.ParseError if mac is malformed,
//     MACOutOfRangeError if mac is not in the pool,
//     MACAlreadyAllocatedError if mac is allocated or excluded,
//     PoolRetiredError if the pool was replaced
func (p *MACPool) Allocate(mac string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.retired {
		return &PoolRetiredError{Pool: p.name}
	}

	canonical, i, err := p.lookup(mac)
	if err != nil {
		return err
	}

	if p.bitmap.IsSet(i) {
		return &MACAlreadyAllocatedError{MAC: canonical}
	}

	if err := p.bitmap.Set(i); err != nil {
		return fmt.Errorf("failed to allocate MAC %s: %w", canonical, err)
	}

	return nil
}

// Release returns an allocated MAC address to the pool.
// Releasing a free address is a no-op; releasing an excluded one is an error.
func (p *MACPool) Release(mac string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.retired {
		return &PoolRetiredError{Pool: p.name}
	}

	canonical, i, err := p.lookup(mac)
	if err != nil {
		return err
	}

	if _, excluded := p.excluded[canonical]; excluded {
		return &MACExcludedError{MAC: canonical}
	}

	return p.bitmap.Clear(i)
}

// IsAllocated reports whether mac is currently allocated or excluded.
// Malformed or out-of-pool MACs are reported as not allocated.
func (p *MACPool) IsAllocated(mac string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, i, err := p.lookup(mac)
	if err != nil {
		return false
	}
	return p.bitmap.IsSet(i)
}

// Contains reports whether mac is a member of the pool.
func (p *MACPool) Contains(mac string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, _, err := p.lookup(mac)
	return err == nil
}

// lookup normalizes mac and resolves its bitmap index. Callers hold p.mu.
func (p *MACPool) lookup(mac string) (string, int, error) {
	canonical, err := normalize(mac)
	if err != nil {
		return "", -1, err
	}

	i, ok := p.index[canonical]
	if !ok {
		return "", -1, &MACOutOfRangeError{MAC: canonical, Pool: p.name}
	}
	return canonical, i, nil
}

// Available returns the number of available MAC addresses.
func (p *MACPool) Available() int {
	return p.bitmap.Available()
}

// Used returns the number of allocated MAC addresses, excluded ones included.
func (p *MACPool) Used() int {
	return p.bitmap.Allocated()
}

// Size returns the total number of MAC addresses in the pool.
func (p *MACPool) Size() int {
	return len(p.addresses)
}

// Name returns the pool name.
func (p *MACPool) Name() string {
	return p.name
}

// Allocated returns the allocated MACs in ascending order, excluded ones omitted.
func (p *MACPool) Allocated() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.allocated()
}

// Retire freezes the pool and returns its final allocations, as Allocated
// would. Every later change fails with PoolRetiredError, so the returned
// list stays complete while a replacement pool is built from it.
func (p *MACPool) Retire() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retired = true
	return p.allocated()
}

// IsRetired reports whether Retire has been called.
func (p *MACPool) IsRetired() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.retired
}

// allocated lists allocated, non-excluded MACs. Callers hold p.mu.
func (p *MACPool) allocated() []string {
	macs := make([]string, 0, p.bitmap.Allocated())
	for i, mac := range p.addresses {
		if !p.bitmap.IsSet(i) {
			continue
		}
		if _, excluded := p.excluded[mac]; excluded {
			continue
		}
		macs = append(macs, mac)
	}
	return macs
}

// Preview returns up to n pool members from the low end, regardless of
// allocation state.
func (p *MACPool) Preview(n int) []string {
	if n <= 0 {
		return nil
	}
	if n > len(p.addresses) {
		n = len(p.addresses)
	}
	return append([]string(nil), p.addresses[:n]...)
}

// Ranges returns a copy of the source ranges.
func (p *MACPool) Ranges() []macrange.Range {
	return append([]macrange.Range(nil), p.ranges...)
}

// normalize converts any accepted MAC spelling to canonical form.
func normalize(mac string) (string, error) {
	addr, err := macrange.Parse(mac)
	if err != nil {
		return "", err
	}
	return macrange.Format(addr), nil
}
