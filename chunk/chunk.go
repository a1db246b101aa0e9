// Package chunk splits serialized payloads into bounded-length chunks and
// reassembles them. It also owns the key layout used to persist a named
// payload in a flat property store:
//
//	{name}Index   decimal chunk count
//	{name}:{i}    i-th chunk, 0 <= i < count
package chunk

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Split partitions s into contiguous slices of at most size runes. The
// number of slices is ceil(runes/size); an empty string yields none.
func Split(s string, size int) []string {
	if size <= 0 {
		panic(fmt.Sprintf("chunk: invalid size %d", size))
	}
	if s == "" {
		return nil
	}

	chunks := make([]string, 0, utf8.RuneCountInString(s)/size+1)
	start, n := 0, 0
	for i := range s {
		if n == size {
			chunks = append(chunks, s[start:i])
			start, n = i, 0
		}
		n++
	}
	return append(chunks, s[start:])
}

// SplitMeasured partitions s into contiguous slices measuring at most size
// units each, closing a slice before any rune that would push it past size.
// A single rune measuring more than size still gets a slice of its own.
func SplitMeasured(s string, size int, measure func(string) int) []string {
	if size <= 0 {
		panic(fmt.Sprintf("chunk: invalid size %d", size))
	}
	if s == "" {
		return nil
	}

	var chunks []string
	start, n := 0, 0
	for i := 0; i < len(s); {
		_, width := utf8.DecodeRuneInString(s[i:])
		w := measure(s[i : i+width])
		if n > 0 && n+w > size {
			chunks = append(chunks, s[start:i])
			start, n = i, 0
		}
		n += w
		i += width
	}
	return append(chunks, s[start:])
}

// Join concatenates chunks in order.
func Join(chunks []string) string {
	return strings.Join(chunks, "")
}

// IndexKey is the property key holding the chunk count of name.
func IndexKey(name string) string {
	return name + "Index"
}

// Key is the property key of the i-th chunk of name.
func Key(name string, i int) string {
	return name + ":" + strconv.Itoa(i)
}

// FormatIndex renders a chunk count as stored under IndexKey.
func FormatIndex(n int) string {
	return strconv.Itoa(n)
}

// ParseIndex parses a stored chunk count. Values that are not non-negative
// integers are rejected with ErrInvalidIndex.
func ParseIndex(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIndex, s)
	}
	return n, nil
}
