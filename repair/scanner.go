package repair

// scanner tracks JSON string and escape state one byte at a time. Every
// structural character is ASCII, so byte-wise scanning is safe on UTF-8.
type scanner struct {
	str     bool
	escaped bool
}

// inString consumes c and reports whether it is part of a string literal,
// including the opening and closing quotes.
func (s *scanner) inString(c byte) bool {
	if s.str {
		switch {
		case s.escaped:
			s.escaped = false
		case c == '\\':
			s.escaped = true
		case c == '"':
			s.str = false
		}
		return true
	}
	if c == '"' {
		s.str = true
		return true
	}
	return false
}
