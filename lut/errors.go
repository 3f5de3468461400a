package lut

import (
	"errors"
	"fmt"
)

// The three kinds a lookup table operation can fail with, plus the
// out-of-range read. Every other error in this package wraps one of them.
var (
	ErrInvalidLookupTable   = errors.New("invalid lookup table address")
	ErrLutNotReady          = errors.New("lookup table not yet ready for use (cooldown period)")
	ErrMaxAddressesExceeded = errors.New("maximum addresses exceeded (256 limit)")
	ErrIndexOutOfRange      = errors.New("lookup table index out of range")
)

var (
	ErrAccountOccupied    = fmt.Errorf("%w: account already in use", ErrInvalidLookupTable)
	ErrAccountNotFound    = fmt.Errorf("%w: account not found", ErrInvalidLookupTable)
	ErrDerivationMismatch = fmt.Errorf("%w: address does not match derivation", ErrInvalidLookupTable)
	ErrMalformedTable     = fmt.Errorf("%w: malformed table", ErrInvalidLookupTable)
	ErrUnauthorized       = fmt.Errorf("%w: caller is not the table authority", ErrInvalidLookupTable)
	ErrFrozen             = fmt.Errorf("%w: table is frozen", ErrInvalidLookupTable)
	ErrAlreadyFrozen      = fmt.Errorf("%w: table is already frozen", ErrInvalidLookupTable)
	ErrDeactivated        = fmt.Errorf("%w: table is deactivated", ErrInvalidLookupTable)
	ErrAlreadyDeactivated = fmt.Errorf("%w: table is already deactivated", ErrInvalidLookupTable)
)

// Kind names the error class of err for wire responses. It returns ""
// for errors outside this package.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidLookupTable):
		return "invalid_lookup_table"
	case errors.Is(err, ErrLutNotReady):
		return "lut_not_ready"
	case errors.Is(err, ErrMaxAddressesExceeded):
		return "max_addresses_exceeded"
	case errors.Is(err, ErrIndexOutOfRange):
		return "index_out_of_range"
	default:
		return ""
	}
}
