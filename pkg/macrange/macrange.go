// Package macrange provides MAC address range enumeration.
//
// A range is a pair of 48-bit addresses walked in ascending order. Addresses
// with the multicast bit set are skipped because they cannot be assigned to
// a virtual NIC. Enumeration is bounded by a caller-supplied limit so that
// validating or previewing a huge range stays cheap.
//
// All functions in this package are pure and safe for concurrent use.
//
// Usage:
//
//	macs, err := macrange.Generate("00:1a:4a:16:01:00", "00:1a:4a:16:01:ff", 16)
//	if err != nil {
//	    // malformed endpoint
//	}
//	ok := macrange.IsValid("00:1a:4a:16:01:00", "00:1a:4a:16:01:ff")
package macrange

import "fmt"

// maxPrealloc bounds the initial capacity of a generated slice.
const maxPrealloc = 1 << 16

// multicastBlockMask covers the multicast bit and every bit below it.
const multicastBlockMask = MulticastBit<<1 - 1

// Range is an inclusive span of numeric MAC addresses.
// A Range with Start > End is empty.
type Range struct {
	Start uint64
	End   uint64
}

// ParseRange parses both endpoints of a range.
// An inverted range is returned as-is; it is empty, not an error.
func ParseRange(start, end string) (Range, error) {
	startNum, err := Parse(start)
	if err != nil {
		return Range{}, err
	}
	endNum, err := Parse(end)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: startNum, End: endNum}, nil
}

// IsEmpty reports whether the range contains no addresses at all.
func (r Range) IsEmpty() bool {
	return r.Start > r.End
}

// Contains reports whether addr lies within the range.
func (r Range) Contains(addr uint64) bool {
	return r.Start <= addr && addr <= r.End
}

// UsableCount returns how many non-multicast addresses lie in the range.
// It is computed arithmetically and does not walk the range.
func (r Range) UsableCount() uint64 {
	if r.IsEmpty() {
		return 0
	}
	count := usableBelow(r.End) - usableBelow(r.Start)
	if !IsMulticast(r.End) {
		count++
	}
	return count
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", Format(r.Start), Format(r.End))
}

// usableBelow counts addresses in [0, n) whose multicast bit is clear.
// The bit pattern repeats every 2*MulticastBit values: one clear half
// followed by one set half.
func usableBelow(n uint64) uint64 {
	period := MulticastBit << 1
	rem := n % period
	if rem > MulticastBit {
		rem = MulticastBit
	}
	return n/period*MulticastBit + rem
}

// Generate returns the canonical strings of the non-multicast addresses
// between start and end inclusive, in ascending order.
//
// The limit is a countdown tested after each address is appended and before
// it is decremented, so the just-appended address is always kept. A limit of
// 0 or less yields one address and a limit of N > 0 yields up to N+1. Use
// LimitForCount to get at most n addresses.
//
// Parameters:
//   - start: First address of the range
//   - end: Last address of the range
//   - limit: Enumeration budget
//
// Returns:
//   - []string: Addresses in canonical form, empty if start > end or every
//     address in the range is multicast
//   - error: *ParseError if either endpoint is malformed
func Generate(start, end string, limit int) ([]string, error) {
	r, err := ParseRange(start, end)
	if err != nil {
		return nil, err
	}
	return GenerateRange(r, limit), nil
}

// GenerateRange is Generate for an already parsed range.
func GenerateRange(r Range, limit int) []string {
	if r.IsEmpty() {
		return []string{}
	}

	macs := make([]string, 0, preallocSize(r, limit))
	remaining := limit
	addr := r.Start
	for {
		if IsMulticast(addr) {
			// Jump past the whole multicast block; none of it can be emitted.
			next := (addr | multicastBlockMask) + 1
			if next < addr || next > r.End {
				break
			}
			addr = next
			continue
		}

		macs = append(macs, Format(addr))
		if remaining <= 0 {
			return macs
		}
		remaining--

		if addr == r.End {
			break
		}
		addr++
	}

	return macs
}

// LimitForCount returns the Generate limit that stops after at most n
// addresses. Any n below 2 maps to 0, which still yields one address.
func LimitForCount(n int) int {
	if n <= 1 {
		return 0
	}
	return n - 1
}

// preallocSize returns min(limit+1, end-start+1), clamped to maxPrealloc.
func preallocSize(r Range, limit int) int {
	if limit <= 0 {
		return 1
	}
	n := r.End - r.Start
	if uint64(limit) < n {
		n = uint64(limit)
	}
	if n >= maxPrealloc {
		return maxPrealloc
	}
	return int(n) + 1
}

// IsValid reports whether the range between start and end holds at least
// one assignable address. Malformed endpoints make the range invalid.
func IsValid(start, end string) bool {
	macs, err := Generate(start, end, 1)
	if err != nil {
		return false
	}
	return len(macs) > 0
}
