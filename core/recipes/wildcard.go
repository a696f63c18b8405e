package recipes

// Wildcard is a compiled filename pattern. Three placeholder characters
// each stand for exactly one character of the candidate: '@' a letter,
// '#' a digit, '?' a letter, digit or underscore. Everything else matches
// itself. Patterns are compiled lowercased and candidates are expected
// lowercased, so matching is case-insensitive.
type Wildcard struct {
	text  string
	chars []charClass
}

type charClass uint8

const (
	classLiteral charClass = iota
	classLetter
	classDigit
	classWord
)

// CompileWildcard builds a matcher from a pattern token. The token must
// already be lowercased.
func CompileWildcard(token string) Wildcard {
	w := Wildcard{text: token, chars: make([]charClass, len(token))}
	for i := 0; i < len(token); i++ {
		switch token[i] {
		case '@':
			w.chars[i] = classLetter
		case '#':
			w.chars[i] = classDigit
		case '?':
			w.chars[i] = classWord
		default:
			w.chars[i] = classLiteral
		}
	}
	return w
}

// String returns the original pattern text.
func (w Wildcard) String() string { return w.text }

func (w Wildcard) matchAt(s string, start int) bool {
	for i, class := range w.chars {
		c := s[start+i]
		switch class {
		case classLetter:
			if !isLetter(c) {
				return false
			}
		case classDigit:
			if c < '0' || c > '9' {
				return false
			}
		case classWord:
			if !isLetter(c) && (c < '0' || c > '9') && c != '_' {
				return false
			}
		default:
			if c != w.text[i] {
				return false
			}
		}
	}
	return true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Match reports whether the whole candidate matches: every pattern
// character consumes exactly one candidate character, so the lengths must
// be equal.
func (w Wildcard) Match(s string) bool {
	return len(s) == len(w.chars) && w.matchAt(s, 0)
}

// MatchPrefix reports whether the candidate starts with the pattern.
func (w Wildcard) MatchPrefix(s string) bool {
	return len(s) >= len(w.chars) && w.matchAt(s, 0)
}

// MatchSuffix reports whether the candidate ends with the pattern.
func (w Wildcard) MatchSuffix(s string) bool {
	return len(s) >= len(w.chars) && w.matchAt(s, len(s)-len(w.chars))
}

// MatchContains reports whether the pattern matches anywhere inside the
// candidate.
func (w Wildcard) MatchContains(s string) bool {
	for start := 0; start+len(w.chars) <= len(s); start++ {
		if w.matchAt(s, start) {
			return true
		}
	}
	return false
}
