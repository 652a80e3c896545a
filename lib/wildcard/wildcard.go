// Package wildcard implements the glob patterns of the KEYS command
package wildcard

const (
	literal = iota
	star    // *
	single  // ?
	class   // [...]
)

type token struct {
	kind    int
	char    byte
	negate  bool
	members [256]bool
}

func (t *token) matches(c byte) bool {
	switch t.kind {
	case single:
		return true
	case class:
		return t.members[c] != t.negate
	}
	return t.char == c
}

// Pattern is a compiled glob pattern
type Pattern struct {
	tokens []*token
	prefix []byte
}

// CompilePattern parses a glob pattern.
// Supported: * ? [abc] [a-z] [^abc] and backslash escapes.
func CompilePattern(src string) *Pattern {
	p := &Pattern{}
	literalPrefix := true
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src):
			i++
			p.tokens = append(p.tokens, &token{kind: literal, char: src[i]})
		case c == '*':
			// consecutive stars behave like one
			if n := len(p.tokens); n == 0 || p.tokens[n-1].kind != star {
				p.tokens = append(p.tokens, &token{kind: star})
			}
		case c == '?':
			p.tokens = append(p.tokens, &token{kind: single})
		case c == '[':
			t, next, ok := parseClass(src, i+1)
			if !ok {
				p.tokens = append(p.tokens, &token{kind: literal, char: c})
				break
			}
			p.tokens = append(p.tokens, t)
			i = next
		default:
			p.tokens = append(p.tokens, &token{kind: literal, char: c})
		}
		last := p.tokens[len(p.tokens)-1]
		if literalPrefix && last.kind == literal {
			p.prefix = append(p.prefix, last.char)
		} else {
			literalPrefix = false
		}
	}
	return p
}

// parseClass reads a character class starting after '[' and returns the index of its closing ']'
func parseClass(src string, i int) (*token, int, bool) {
	t := &token{kind: class}
	if i < len(src) && src[i] == '^' {
		t.negate = true
		i++
	}
	for ; i < len(src); i++ {
		c := src[i]
		switch {
		case c == ']':
			return t, i, true
		case c == '\\' && i+1 < len(src):
			i++
			t.members[src[i]] = true
		case i+2 < len(src) && src[i+1] == '-' && src[i+2] != ']':
			lo, hi := c, src[i+2]
			if lo > hi {
				lo, hi = hi, lo
			}
			for x := int(lo); x <= int(hi); x++ {
				t.members[x] = true
			}
			i += 2
		default:
			t.members[c] = true
		}
	}
	return nil, i, false
}

// LiteralPrefix returns the bytes every matching string starts with
func (p *Pattern) LiteralPrefix() []byte {
	return p.prefix
}

// IsMatch returns whether the given string matches pattern
func (p *Pattern) IsMatch(s string) bool {
	return p.Match([]byte(s))
}

// Match is IsMatch for byte slices
func (p *Pattern) Match(s []byte) bool {
	ti, si := 0, 0
	// position of the last star and the input index it was tried at
	starToken, starInput := -1, 0
	for si < len(s) {
		if ti < len(p.tokens) {
			t := p.tokens[ti]
			if t.kind == star {
				starToken, starInput = ti, si
				ti++
				continue
			}
			if t.matches(s[si]) {
				ti++
				si++
				continue
			}
		}
		if starToken < 0 {
			return false
		}
		// let the last star swallow one more byte
		starInput++
		ti, si = starToken+1, starInput
	}
	for ti < len(p.tokens) && p.tokens[ti].kind == star {
		ti++
	}
	return ti == len(p.tokens)
}
