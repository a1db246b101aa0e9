package repair

import (
	"encoding/json"
	"fmt"

	"github.com/buger/jsonparser"
)

// ArrayAware salvages a payload holding a record array under Field, such as
// a transaction log. It keeps every element of that array that is
// syntactically complete, drops the truncated tail, then closes the array
// and every enclosing object. Field is matched as an object key whose
// enclosing containers are all objects; the first such occurrence wins.
type ArrayAware struct {
	Field string
}

func (ArrayAware) Name() string { return NameArrayAware }

type frame struct {
	kind byte   // '{' or '['
	key  string // last key read, objects only
}

func (a ArrayAware) Repair(raw string) (string, error) {
	if a.Field == "" {
		return "", fmt.Errorf("%w: no array field configured", ErrUnrecoverable)
	}

	var (
		sc        scanner
		stack     []frame
		strStart  int
		lastStr   string
		found     bool
		enclosing []frame // stack including the array frame, captured when found
		cut       int     // offset just after the last complete element
	)

scan:
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		wasString := sc.str
		if sc.inString(c) {
			if !wasString {
				strStart = i
			} else if !sc.str {
				lastStr = raw[strStart : i+1]
			}
			continue
		}

		switch c {
		case ':':
			if n := len(stack); n > 0 && stack[n-1].kind == '{' {
				stack[n-1].key = unquote(lastStr)
			}
		case '{':
			stack = append(stack, frame{kind: '{'})
		case '[':
			if !found && a.matches(stack) {
				found = true
				stack = append(stack, frame{kind: '['})
				enclosing = append([]frame(nil), stack...)
				cut = i + 1
				continue
			}
			stack = append(stack, frame{kind: '['})
		case ',':
			if found && len(stack) == len(enclosing) {
				cut = i
			}
		case '}', ']':
			if len(stack) == 0 {
				break scan
			}
			stack = stack[:len(stack)-1]
			if !found {
				continue
			}
			switch len(stack) {
			case len(enclosing):
				cut = i + 1
			case len(enclosing) - 1:
				// The array itself closed; nothing past it is needed.
				cut = i
				break scan
			}
		}
	}

	if !found {
		return "", fmt.Errorf("%w: array field %q not found", ErrUnrecoverable, a.Field)
	}

	candidate := []byte(raw[:cut])
	for i := len(enclosing) - 1; i >= 0; i-- {
		if enclosing[i].kind == '[' {
			candidate = append(candidate, ']')
		} else {
			candidate = append(candidate, '}')
		}
	}

	if !json.Valid(candidate) {
		return "", fmt.Errorf("%w: truncated %q array does not parse", ErrUnrecoverable, a.Field)
	}
	path := make([]string, 0, len(enclosing)-1)
	for _, f := range enclosing[:len(enclosing)-1] {
		path = append(path, f.key)
	}
	if _, typ, _, err := jsonparser.Get(candidate, path...); err != nil || typ != jsonparser.Array {
		return "", fmt.Errorf("%w: %q is not an array after repair", ErrUnrecoverable, a.Field)
	}
	return string(candidate), nil
}

// matches reports whether an array opening now sits under Field with only
// objects enclosing it.
func (a ArrayAware) matches(stack []frame) bool {
	if len(stack) == 0 {
		return false
	}
	for _, f := range stack {
		if f.kind != '{' {
			return false
		}
	}
	return stack[len(stack)-1].key == a.Field
}

func unquote(quoted string) string {
	var s string
	if err := json.Unmarshal([]byte(quoted), &s); err != nil {
		return ""
	}
	return s
}
