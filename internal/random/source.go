// Package random provides a uniform integer source backed by a
// cryptographically strong byte stream.
package random

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrEmptyRange is returned when the requested range holds no values.
var ErrEmptyRange = errors.New("empty range")

// Source draws integers from an entropy reader.
//
// Each draw reads 64 bits and reduces them modulo the range width. This
// leaves a small modulo bias for widths that do not divide 2^64. For the
// widths used here (at most a few hundred) the bias is below 2^-55 and is
// accepted: the values pick light colors, not keys.
type Source struct {
	r io.Reader
}

// New returns a Source reading from crypto/rand.
func New() *Source {
	return &Source{r: rand.Reader}
}

// NewFromReader returns a Source reading from r. Intended for tests.
func NewFromReader(r io.Reader) *Source {
	return &Source{r: r}
}

// InRange returns a value in [lo, hi).
func (s *Source) InRange(lo, hi int64) (int64, error) {
	if lo >= hi {
		return 0, fmt.Errorf("%w: [%d, %d)", ErrEmptyRange, lo, hi)
	}

	var buf [8]byte
	if _, err := io.ReadFull(s.r, buf[:]); err != nil {
		return 0, fmt.Errorf("read entropy: %w", err)
	}

	width := uint64(hi - lo)
	return lo + int64(binary.LittleEndian.Uint64(buf[:])%width), nil
}
