package repair

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BraceMatch truncates the payload at the last point where object nesting
// returns to zero outside of strings, and keeps the result if it parses.
type BraceMatch struct{}

func (BraceMatch) Name() string { return NameBraceMatch }

func (BraceMatch) Repair(raw string) (string, error) {
	var (
		sc       scanner
		depth    int
		lastZero = -1
	)

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if sc.inString(c) {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				lastZero = i + 1
			}
		}
	}

	if lastZero < 0 {
		return "", fmt.Errorf("%w: no balanced object", ErrUnrecoverable)
	}
	candidate := strings.TrimSpace(raw[:lastZero])
	if !json.Valid([]byte(candidate)) {
		return "", fmt.Errorf("%w: balanced prefix of %d bytes does not parse", ErrUnrecoverable, lastZero)
	}
	return candidate, nil
}
