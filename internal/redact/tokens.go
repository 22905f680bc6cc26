// Package redact assigns replacement identifiers and substitutes, previews and reverses them in text.
//
// All substitution is driven by one token stream (Tokens) and one matcher, so the redacted text,
// the preview and the reverse pass agree on what a whole word is.
package redact

import (
	"iter"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a token.
type TokenKind int

const (
	// Word is a run of letters, digits, combining marks or underscores.
	Word TokenKind = iota
	// Space is a run of whitespace.
	Space
	// Punct is a single rune that is neither word nor space.
	Punct
)

func (k TokenKind) String() string {
	switch k {
	case Word:
		return "word"
	case Space:
		return "space"
	default:
		return "punct"
	}
}

// Token is a slice of the input with its byte offsets.
type Token struct {
	Kind  TokenKind
	Text  string
	Start int
	End   int
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_'
}

func kindOf(r rune) TokenKind {
	switch {
	case isWordRune(r):
		return Word
	case unicode.IsSpace(r):
		return Space
	default:
		return Punct
	}
}

// Tokens lazily splits text into word, space and punctuation tokens.
// Concatenating the token texts in order yields text unchanged.
func Tokens(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		i := 0
		for i < len(text) {
			r, size := utf8.DecodeRuneInString(text[i:])
			kind := kindOf(r)
			end := i + size
			if kind != Punct {
				for end < len(text) {
					r2, s2 := utf8.DecodeRuneInString(text[end:])
					if kindOf(r2) != kind {
						break
					}
					end += s2
				}
			}
			if !yield(Token{Kind: kind, Text: text[i:end], Start: i, End: end}) {
				return
			}
			i = end
		}
	}
}

// tokenTexts returns the token texts of s.
func tokenTexts(s string) []string {
	var out []string
	for tok := range Tokens(s) {
		out = append(out, tok.Text)
	}
	return out
}
