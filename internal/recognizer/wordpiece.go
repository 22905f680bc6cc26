package recognizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kakusu/internal/redact"
)

const maxWordChars = 100

// WordPiece is a BERT-style tokenizer: text is split into words and punctuation, then each word into
// the longest matching vocabulary pieces, continuation pieces prefixed with "##".
type WordPiece struct {
	vocab     map[string]int64
	lowercase bool
	unk       int64
	cls       int64
	sep       int64
	pad       int64
}

// LoadWordPiece reads a vocab.txt (one token per line, id = line number).
func LoadWordPiece(path string, lowercase bool) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocab: %w", err)
	}
	defer f.Close()

	var tokens []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		tokens = append(tokens, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocab: %w", err)
	}
	return NewWordPiece(tokens, lowercase)
}

// NewWordPiece builds a tokenizer from tokens in id order. [UNK], [CLS] and [SEP] must be present.
func NewWordPiece(tokens []string, lowercase bool) (*WordPiece, error) {
	vocab := make(map[string]int64, len(tokens))
	for i, t := range tokens {
		if _, dup := vocab[t]; !dup {
			vocab[t] = int64(i)
		}
	}
	w := &WordPiece{vocab: vocab, lowercase: lowercase}
	for name, dst := range map[string]*int64{"[UNK]": &w.unk, "[CLS]": &w.cls, "[SEP]": &w.sep} {
		id, ok := vocab[name]
		if !ok {
			return nil, fmt.Errorf("vocab has no %s token", name)
		}
		*dst = id
	}
	w.pad = vocab["[PAD]"]
	return w, nil
}

// Words returns the non-space tokens of text with byte offsets.
func (w *WordPiece) Words(text string) []redact.Token {
	var words []redact.Token
	for tok := range redact.Tokens(text) {
		if tok.Kind != redact.Space {
			words = append(words, tok)
		}
	}
	return words
}

// Pieces returns the vocabulary ids for one word.
func (w *WordPiece) Pieces(word string) []int64 {
	if w.lowercase {
		word = strings.ToLower(word)
	}
	if utf8.RuneCountInString(word) > maxWordChars {
		return []int64{w.unk}
	}
	var ids []int64
	start := 0
	for start < len(word) {
		end := len(word)
		found := int64(-1)
		for end > start {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := w.vocab[piece]; ok {
				found = id
				break
			}
			_, size := utf8.DecodeLastRuneInString(word[start:end])
			end -= size
		}
		if found < 0 {
			return []int64{w.unk}
		}
		ids = append(ids, found)
		start = end
	}
	return ids
}

// encoding is one model input window.
type encoding struct {
	ids        []int64
	mask       []int64
	typeIDs    []int64
	firstToken []int // position of each word's first piece
}

// Windows groups words into encodings of at most maxTokens, [CLS] and [SEP] included,
// never splitting a word across windows. A word longer than a window is truncated.
func (w *WordPiece) Windows(words []redact.Token, maxTokens int) ([]encoding, [][]redact.Token) {
	budget := maxTokens - 2
	if budget < 1 {
		budget = 1
	}
	var encs []encoding
	var groups [][]redact.Token
	var cur encoding
	var group []redact.Token
	flush := func() {
		if len(group) == 0 {
			return
		}
		encs = append(encs, w.finish(cur, maxTokens))
		groups = append(groups, group)
		cur = encoding{}
		group = nil
	}
	for _, word := range words {
		pieces := w.Pieces(word.Text)
		if len(pieces) > budget {
			pieces = pieces[:budget]
		}
		if len(cur.ids)+len(pieces) > budget {
			flush()
		}
		cur.firstToken = append(cur.firstToken, len(cur.ids)+1)
		cur.ids = append(cur.ids, pieces...)
		group = append(group, word)
	}
	flush()
	return encs, groups
}

func (w *WordPiece) finish(e encoding, maxTokens int) encoding {
	ids := make([]int64, maxTokens)
	mask := make([]int64, maxTokens)
	for i := range ids {
		ids[i] = w.pad
	}
	ids[0], mask[0] = w.cls, 1
	n := copy(ids[1:], e.ids)
	for i := 1; i <= n; i++ {
		mask[i] = 1
	}
	if n+1 < maxTokens {
		ids[n+1], mask[n+1] = w.sep, 1
	}
	return encoding{ids: ids, mask: mask, typeIDs: make([]int64, maxTokens), firstToken: e.firstToken}
}
