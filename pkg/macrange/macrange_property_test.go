// Package macrange provides property-based tests for MAC range generation.
package macrange

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genAddress generates addresses across the full 48-bit space.
func genAddress() gopter.Gen {
	return gen.UInt64Range(0, MaxAddress)
}

// genNearMulticastBoundary generates addresses within a few hundred values
// of a transition between a unicast and a multicast block.
func genNearMulticastBoundary() gopter.Gen {
	return gopter.CombineGens(
		gen.UInt64Range(0, 127),
		gen.Int64Range(-200, 200),
	).Map(func(values []interface{}) uint64 {
		block := values[0].(uint64) * MulticastBit
		offset := values[1].(int64)
		addr := int64(block) + offset
		if addr < 0 {
			return 0
		}
		if uint64(addr) > MaxAddress {
			return MaxAddress
		}
		return uint64(addr)
	})
}

// TestProperty_FormatParseRoundTrip verifies Parse is a left inverse of Format.
// Property: For all x in [0, 2^48-1], Parse(Format(x)) == x.
func TestProperty_FormatParseRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("parse(format(x)) == x", prop.ForAll(
		func(addr uint64) bool {
			parsed, err := Parse(Format(addr))
			if err != nil {
				t.Logf("Parse(Format(%#x)) failed: %v", addr, err)
				return false
			}
			return parsed == addr
		},
		genAddress(),
	))

	properties.Property("format output is canonical", prop.ForAll(
		func(addr uint64) bool {
			s := Format(addr)
			if len(s) != 17 {
				return false
			}
			for i, c := range s {
				if i%3 == 2 {
					if c != ':' {
						return false
					}
					continue
				}
				if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'f') {
					return false
				}
			}
			return true
		},
		genAddress(),
	))

	properties.TestingRun(t)
}

// TestProperty_GenerateAscendingAndUnicast verifies ordering and filtering.
// Property: Output is strictly ascending, inside [start, end], and never multicast.
func TestProperty_GenerateAscendingAndUnicast(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("generated addresses ascend and skip multicast", prop.ForAll(
		func(start uint64, span uint64, limit int) bool {
			end := start + span
			if end > MaxAddress {
				end = MaxAddress
			}

			macs := GenerateRange(Range{Start: start, End: end}, limit)

			var prev uint64
			for i, mac := range macs {
				addr, err := Parse(mac)
				if err != nil {
					t.Logf("generated unparsable address %q", mac)
					return false
				}
				if IsMulticast(addr) {
					t.Logf("multicast address %s generated", mac)
					return false
				}
				if addr < start || addr > end {
					t.Logf("address %s outside range", mac)
					return false
				}
				if i > 0 && addr <= prev {
					t.Logf("address %s does not ascend", mac)
					return false
				}
				prev = addr
			}
			return true
		},
		genNearMulticastBoundary(),
		gen.UInt64Range(0, 512),
		gen.IntRange(0, 600),
	))

	properties.TestingRun(t)
}

// TestProperty_GenerateRespectsLimit verifies the enumeration budget.
// Property: Output length equals min(max(limit, 0)+1, usable addresses in range).
func TestProperty_GenerateRespectsLimit(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("output length follows the limit", prop.ForAll(
		func(start uint64, span uint64, limit int) bool {
			r := Range{Start: start, End: start + span}
			if r.End > MaxAddress {
				r.End = MaxAddress
			}

			macs := GenerateRange(r, limit)

			budget := uint64(1)
			if limit > 0 {
				budget += uint64(limit)
			}
			want := r.UsableCount()
			if budget < want {
				want = budget
			}
			if uint64(len(macs)) != want {
				t.Logf("range %s limit %d: got %d addresses, want %d", r, limit, len(macs), want)
				return false
			}
			return true
		},
		genNearMulticastBoundary(),
		gen.UInt64Range(0, 400),
		gen.IntRange(-5, 500),
	))

	properties.TestingRun(t)
}

// TestProperty_InvertedRangeIsEmpty verifies inverted ranges produce nothing.
// Property: start > end yields an empty result for any limit.
func TestProperty_InvertedRangeIsEmpty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("inverted range is empty", prop.ForAll(
		func(a, b uint64, limit int) bool {
			if a == b {
				return true
			}
			start, end := a, b
			if start < end {
				start, end = end, start
			}
			macs, err := Generate(Format(start), Format(end), limit)
			return err == nil && len(macs) == 0 && !IsValid(Format(start), Format(end))
		},
		genAddress(),
		genAddress(),
		gen.IntRange(-10, 1000),
	))

	properties.TestingRun(t)
}

// TestProperty_IsValidMatchesUsableCount verifies the validity predicate.
// Property: IsValid is true iff the range holds at least one unicast address.
func TestProperty_IsValidMatchesUsableCount(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("IsValid agrees with UsableCount", prop.ForAll(
		func(start, end uint64) bool {
			r := Range{Start: start, End: end}
			return IsValid(Format(start), Format(end)) == (r.UsableCount() > 0)
		},
		genNearMulticastBoundary(),
		genNearMulticastBoundary(),
	))

	properties.TestingRun(t)
}

// TestProperty_UsableCountMatchesWalk verifies the arithmetic count against
// a full enumeration on small ranges.
func TestProperty_UsableCountMatchesWalk(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("UsableCount equals enumerated length", prop.ForAll(
		func(start uint64, span uint64) bool {
			r := Range{Start: start, End: start + span}
			if r.End > MaxAddress {
				r.End = MaxAddress
			}
			macs := GenerateRange(r, 1<<20)
			return uint64(len(macs)) == r.UsableCount()
		},
		genNearMulticastBoundary(),
		gen.UInt64Range(0, 1000),
	))

	properties.TestingRun(t)
}
