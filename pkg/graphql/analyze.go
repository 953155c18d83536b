// Package graphql provides approximate, parser-free analysis of GraphQL
// query text: normalization for cache keys, operation kind, selection
// depth and a field-count cost estimate.
package graphql

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
)

// Normalize drops comments, commas and insignificant whitespace so that
// formatting differences map to the same cache key. String literals are
// kept verbatim.
func Normalize(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	var prev token
	for i, tok := range tokenize(query) {
		if i > 0 && prev.wordLike() && tok.wordLike() {
			b.WriteByte(' ')
		}
		b.WriteString(tok.text)
		prev = tok
	}
	return b.String()
}

// Hash returns the hex SHA-256 of the normalized query.
func Hash(query string) string {
	sum := sha256.Sum256([]byte(Normalize(query)))
	return fmt.Sprintf("%x", sum)
}

// IsMutation reports whether the document starts with a mutation operation.
func IsMutation(query string) bool {
	toks := tokenize(query)
	return len(toks) > 0 && toks[0].kind == tokName && toks[0].text == "mutation"
}

// Depth returns the maximum selection-set nesting depth. Fragment
// spreads are not expanded.
func Depth(query string) int {
	depth, maxDepth := 0, 0
	for _, tok := range tokenize(query) {
		switch tok.text {
		case "{":
			depth++
			maxDepth = max(maxDepth, depth)
		case "}":
			depth = max(depth-1, 0)
		}
	}
	return maxDepth
}

// Cost estimates query cost as the number of selected fields. Aliases,
// arguments, directives and type conditions are not counted; a named
// fragment spread counts as one.
func Cost(query string) int {
	cost, depth, parens := 0, 0, 0
	skipTypeCondition := false
	var prev token
	for _, tok := range tokenize(query) {
		switch tok.text {
		case "{":
			depth++
		case "}":
			depth = max(depth-1, 0)
		case "(":
			parens++
		case ")":
			parens = max(parens-1, 0)
		}
		if tok.kind == tokName && depth > 0 && parens == 0 {
			switch {
			case skipTypeCondition:
				skipTypeCondition = false
			case prev.text == "..." && tok.text == "on":
				skipTypeCondition = true
			case prev.text == ":" || prev.text == "@" || prev.text == "$":
			default:
				cost++
			}
		}
		prev = tok
	}
	return cost
}

type tokenKind int

const (
	tokPunct tokenKind = iota
	tokName
	tokNumber
	tokString
)

type token struct {
	kind tokenKind
	text string
}

func (t token) wordLike() bool {
	return t.kind != tokPunct
}

func tokenize(query string) []token {
	var toks []token
	s := query
	for len(s) > 0 {
		c := s[0]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ',':
			s = s[1:]
		case c == '#':
			end := strings.IndexByte(s, '\n')
			if end < 0 {
				return toks
			}
			s = s[end:]
		case c == '"':
			n := stringLen(s)
			toks = append(toks, token{kind: tokString, text: s[:n]})
			s = s[n:]
		case strings.HasPrefix(s, "..."):
			toks = append(toks, token{kind: tokPunct, text: "..."})
			s = s[3:]
		case isNameStart(c):
			n := 1
			for n < len(s) && isNameContinue(s[n]) {
				n++
			}
			toks = append(toks, token{kind: tokName, text: s[:n]})
			s = s[n:]
		case c == '-' || (c >= '0' && c <= '9'):
			n := 1
			for n < len(s) && (isNameContinue(s[n]) || s[n] == '.' || s[n] == '+' || s[n] == '-') {
				n++
			}
			toks = append(toks, token{kind: tokNumber, text: s[:n]})
			s = s[n:]
		default:
			toks = append(toks, token{kind: tokPunct, text: s[:1]})
			s = s[1:]
		}
	}
	return toks
}

// stringLen returns the byte length of the string literal at the start of
// s, including quotes. Unterminated literals run to the end of s.
func stringLen(s string) int {
	if strings.HasPrefix(s, `"""`) {
		end := strings.Index(s[3:], `"""`)
		if end < 0 {
			return len(s)
		}
		return end + 6
	}
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		case '\n':
			return i
		}
	}
	return len(s)
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameContinue(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

// ErrSyntax is returned by Check for documents that cannot be a valid query.
var ErrSyntax = errors.New("graphql syntax error")

// Check performs a cheap structural check: the document must be non-empty,
// contain a selection set, and have balanced braces and parentheses.
func Check(query string) error {
	toks := tokenize(query)
	if len(toks) == 0 {
		return fmt.Errorf("empty document: %w", ErrSyntax)
	}
	braces, parens, sawSelection := 0, 0, false
	for _, tok := range toks {
		switch tok.text {
		case "{":
			braces++
			sawSelection = true
		case "}":
			braces--
		case "(":
			parens++
		case ")":
			parens--
		}
		if braces < 0 || parens < 0 {
			return fmt.Errorf("unexpected %q: %w", tok.text, ErrSyntax)
		}
	}
	if braces != 0 || parens != 0 {
		return fmt.Errorf("unbalanced delimiters: %w", ErrSyntax)
	}
	if !sawSelection {
		return fmt.Errorf("no selection set: %w", ErrSyntax)
	}
	return nil
}
