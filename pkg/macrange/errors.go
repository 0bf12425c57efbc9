// Package macrange provides MAC address range enumeration.
package macrange

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHex indicates the input is not a hexadecimal numeral once
	// colons are removed.
	ErrInvalidHex = errors.New("not a hexadecimal MAC address")

	// ErrOutOfRange indicates the input encodes more than 48 bits.
	ErrOutOfRange = errors.New("MAC address exceeds 48 bits")
)

// ParseError reports a MAC address string that could not be parsed.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid MAC address %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
