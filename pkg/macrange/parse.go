package macrange

import (
	"errors"
	"strconv"
	"strings"
)

const (
	// MaxAddress is the largest 48-bit MAC address.
	MaxAddress uint64 = 0xffffffffffff

	// MulticastBit is the group bit of the first octet. Addresses with this
	// bit set are never handed out to NICs.
	MulticastBit uint64 = 0x010000000000
)

// Parse converts a MAC address string into its 48-bit numeric form.
//
// Colons are removed wherever they appear and the rest is read as an
// unsigned base-16 numeral, case-insensitively. Signs, "0x" prefixes and
// other separators are rejected.
//
// Parameters:
//   - s: MAC address string (e.g., "1A:2b:3c:4d:5e:6f" or "1a2b3c4d5e6f")
//
// Returns:
//   - uint64: Numeric address in [0, MaxAddress]
//   - error: *ParseError wrapping ErrInvalidHex or ErrOutOfRange
func Parse(s string) (uint64, error) {
	hex := strings.ReplaceAll(s, ":", "")
	if hex == "" {
		return 0, &ParseError{Input: s, Err: ErrInvalidHex}
	}

	value, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, &ParseError{Input: s, Err: ErrOutOfRange}
		}
		return 0, &ParseError{Input: s, Err: ErrInvalidHex}
	}
	if value > MaxAddress {
		return 0, &ParseError{Input: s, Err: ErrOutOfRange}
	}

	return value, nil
}

// IsMulticast reports whether the multicast bit of addr is set.
func IsMulticast(addr uint64) bool {
	return addr&MulticastBit != 0
}
