// Package utils holds request-parameter parsers shared by the HTTP handlers.
package utils

import (
	"errors"
	"math"
	"strconv"
)

// MaxID is the largest id the stores can hold. SQL drivers bind ids as
// signed 64-bit integers.
const MaxID = math.MaxInt64

// ErrInvalidID is returned by ParseID for anything that is not a positive
// decimal integer.
var ErrInvalidID = errors.New("invalid id")

// ParseID parses a storage-assigned id from a path segment. Zero, negative,
// non-numeric and values above MaxID are rejected.
func ParseID(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 63)
	if err != nil || !ValidID(n) {
		return 0, ErrInvalidID
	}
	return n, nil
}

// ValidID reports whether id is in 1..MaxID.
func ValidID(id uint64) bool {
	return id != 0 && id <= MaxID
}

// AtoiDefault parses a query value such as page or page_size, returning def
// when s is empty or not an int. Range checks are left to the caller.
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
