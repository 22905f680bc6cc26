package redact

import (
	"iter"
	"sort"
)

// Segment is a piece of text in a preview. Tagged segments are whole-word matches of a mapping key
// and carry the value they would be replaced with.
type Segment struct {
	Text        string `json:"text"`
	Replacement string `json:"replacement,omitempty"`
	Tagged      bool   `json:"tagged"`
}

type pattern struct {
	key    string
	tokens []string
	value  string
}

// matcher finds whole-word occurrences of keys over the token stream.
// At each position the longest key wins (by token count, then byte length, then key order).
type matcher struct {
	byFirst map[string][]pattern
}

func newMatcher(pairs [][2]string) *matcher {
	m := &matcher{byFirst: make(map[string][]pattern)}
	for _, p := range pairs {
		toks := tokenTexts(p[0])
		if len(toks) == 0 {
			continue
		}
		m.byFirst[toks[0]] = append(m.byFirst[toks[0]], pattern{key: p[0], tokens: toks, value: p[1]})
	}
	for first, ps := range m.byFirst {
		sort.SliceStable(ps, func(i, j int) bool {
			if len(ps[i].tokens) != len(ps[j].tokens) {
				return len(ps[i].tokens) > len(ps[j].tokens)
			}
			return len(ps[i].key) > len(ps[j].key)
		})
		m.byFirst[first] = ps
	}
	return m
}

func (m *matcher) empty() bool {
	return len(m.byFirst) == 0
}

// segments yields plain and tagged segments covering text in order. Inserted values are never rescanned.
func (m *matcher) segments(text string) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		next, stop := iter.Pull(Tokens(text))
		defer stop()

		var buf []Token
		fill := func(n int) {
			for len(buf) < n {
				tok, ok := next()
				if !ok {
					return
				}
				buf = append(buf, tok)
			}
		}
		plainStart := -1
		flush := func(end int) bool {
			if plainStart < 0 {
				return true
			}
			seg := Segment{Text: text[plainStart:end]}
			plainStart = -1
			return yield(seg)
		}

		for {
			fill(1)
			if len(buf) == 0 {
				flush(len(text))
				return
			}
			if p, ok := m.matchAt(&buf, fill); ok {
				n := len(p.tokens)
				start, end := buf[0].Start, buf[n-1].End
				if !flush(start) {
					return
				}
				if !yield(Segment{Text: text[start:end], Replacement: p.value, Tagged: true}) {
					return
				}
				buf = buf[n:]
				continue
			}
			if plainStart < 0 {
				plainStart = buf[0].Start
			}
			buf = buf[1:]
		}
	}
}

func (m *matcher) matchAt(buf *[]Token, fill func(int)) (pattern, bool) {
	candidates := m.byFirst[(*buf)[0].Text]
	for _, p := range candidates {
		fill(len(p.tokens))
		b := *buf
		if len(b) < len(p.tokens) {
			continue
		}
		matched := true
		for i, t := range p.tokens {
			if b[i].Text != t {
				matched = false
				break
			}
		}
		if matched {
			return p, true
		}
	}
	return pattern{}, false
}
