// Package scanner provides a single-pass Lua/Luau token stream. Every
// transformation in this module walks the stream instead of sweeping raw
// source with regexes, so string and comment contents can never be touched
// by accident. The stream is lossless: Join reproduces the input byte for
// byte.
package scanner

import "strings"

// Kind classifies a token.
type Kind int

const (
	// KindIdent is an identifier or keyword.
	KindIdent Kind = iota
	// KindNumber is a numeric literal (decimal, hex, binary, exponent forms).
	KindNumber
	// KindString is a quoted or long-bracket string, quotes included.
	KindString
	// KindComment is a line or long-bracket comment, markers included.
	KindComment
	// KindSpace is a run of whitespace.
	KindSpace
	// KindOp is any other lexical atom (operators, punctuation).
	KindOp
)

// Token is one lexical atom of the source.
type Token struct {
	Kind   Kind
	Text   string
	Offset int // byte offset of Text in the original source
}

// Scan tokenizes src. Malformed trailing constructs (an unterminated string
// or comment) are absorbed into a single token rather than rejected; the
// syntax validator is the authority on well-formedness, not the scanner.
func Scan(src string) []Token {
	var toks []Token
	i := 0
	n := len(src)
	emit := func(kind Kind, start, end int) {
		toks = append(toks, Token{Kind: kind, Text: src[start:end], Offset: start})
	}

	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			start := i
			for i < n && (src[i] == ' ' || src[i] == '\t' || src[i] == '\r' || src[i] == '\n') {
				i++
			}
			emit(KindSpace, start, i)

		case c == '-' && i+1 < n && src[i+1] == '-':
			start := i
			i += 2
			if lvl, ok := longOpen(src, i); ok {
				i = longClose(src, i, lvl)
			} else {
				for i < n && src[i] != '\n' {
					i++
				}
			}
			emit(KindComment, start, i)

		case c == '"' || c == '\'':
			start := i
			i = scanQuoted(src, i)
			emit(KindString, start, i)

		case c == '[':
			if lvl, ok := longOpen(src, i); ok {
				start := i
				i = longClose(src, i+2+lvl, lvl)
				emit(KindString, start, i)
			} else {
				emit(KindOp, i, i+1)
				i++
			}

		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(src[i]) {
				i++
			}
			emit(KindIdent, start, i)

		case c >= '0' && c <= '9':
			start := i
			i = scanNumber(src, i)
			emit(KindNumber, start, i)

		case c == '.' && i+1 < n && src[i+1] >= '0' && src[i+1] <= '9':
			start := i
			i = scanNumber(src, i)
			emit(KindNumber, start, i)

		default:
			start := i
			i += opLen(src, i)
			emit(KindOp, start, i)
		}
	}
	return toks
}

// Join reassembles tokens into source text. Join(Scan(s)) == s.
func Join(toks []Token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.Text)
	}
	return b.String()
}

// PrevSignificant returns the index of the last token before idx that is
// neither whitespace nor a comment, or -1.
func PrevSignificant(toks []Token, idx int) int {
	for j := idx - 1; j >= 0; j-- {
		if toks[j].Kind != KindSpace && toks[j].Kind != KindComment {
			return j
		}
	}
	return -1
}

// NextSignificant returns the index of the first token after idx that is
// neither whitespace nor a comment, or -1.
func NextSignificant(toks []Token, idx int) int {
	for j := idx + 1; j < len(toks); j++ {
		if toks[j].Kind != KindSpace && toks[j].Kind != KindComment {
			return j
		}
	}
	return -1
}

// scanQuoted consumes a single- or double-quoted string starting at i,
// honoring backslash escapes. Returns the index just past the closing
// quote, or len(src) when unterminated.
func scanQuoted(src string, i int) int {
	quote := src[i]
	i++
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
		case quote:
			return i + 1
		case '\n':
			// Quoted strings do not span lines; stop at the break so the
			// rest of the file still tokenizes.
			return i
		default:
			i++
		}
	}
	return len(src)
}

// longOpen reports whether a long bracket `[=*[` opens at i and its level.
func longOpen(src string, i int) (int, bool) {
	if i >= len(src) || src[i] != '[' {
		return 0, false
	}
	j := i + 1
	lvl := 0
	for j < len(src) && src[j] == '=' {
		lvl++
		j++
	}
	if j < len(src) && src[j] == '[' {
		return lvl, true
	}
	return 0, false
}

// longClose scans from i (just past the opening bracket) to the index past
// the matching `]=*]`, or len(src) when unterminated.
func longClose(src string, i, lvl int) int {
	for i < len(src) {
		if src[i] == ']' {
			j := i + 1
			k := 0
			for j < len(src) && src[j] == '=' {
				k++
				j++
			}
			if k == lvl && j < len(src) && src[j] == ']' {
				return j + 1
			}
		}
		i++
	}
	return len(src)
}

func scanNumber(src string, i int) int {
	n := len(src)
	if src[i] == '0' && i+1 < n && (src[i+1] == 'x' || src[i+1] == 'X') {
		i += 2
		for i < n && (isHexDigit(src[i]) || src[i] == '_') {
			i++
		}
		return i
	}
	if src[i] == '0' && i+1 < n && (src[i+1] == 'b' || src[i+1] == 'B') {
		i += 2
		for i < n && (src[i] == '0' || src[i] == '1' || src[i] == '_') {
			i++
		}
		return i
	}
	for i < n {
		c := src[i]
		switch {
		case c >= '0' && c <= '9' || c == '_':
			i++
		case c == '.':
			// `1..x` is concatenation, not a malformed float.
			if i+1 < n && src[i+1] == '.' {
				return i
			}
			i++
		case c == 'e' || c == 'E':
			i++
			if i < n && (src[i] == '+' || src[i] == '-') {
				i++
			}
		default:
			return i
		}
	}
	return i
}

// opLen returns the length of the operator token at i so multi-character
// operators stay intact. `..` must not split into two dots or a name after
// concatenation would look field-accessed.
func opLen(src string, i int) int {
	rest := src[i:]
	// Longest first, so `..=` wins over `..` and `//=` over `//`.
	for _, op := range []string{
		"...", "..=", "//=", "..", "==", "~=", "<=", ">=", "::", "//", "->",
		"+=", "-=", "*=", "/=", "%=", "^=",
	} {
		if strings.HasPrefix(rest, op) {
			return len(op)
		}
	}
	return 1
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
