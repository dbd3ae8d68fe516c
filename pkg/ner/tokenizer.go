package ner

import (
	"encoding/json"
	"os"
	"strings"
	"unicode"

	"gitlab.com/tozd/go/errors"
)

// Word is a whitespace/punctuation-delimited word with its byte offsets
// in the original text.
type Word struct {
	Text       string
	Start, End int
}

// Encoding is one model-sized window of WordPiece input. Sequence slots
// 0 and len-1 hold [CLS] and [SEP]; WordIndex maps each slot back to an
// index into Words, or -1 for special tokens.
type Encoding struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
	WordIndex     []int
	Words         []Word
}

// WordPieceTokenizer is a minimal WordPiece encoder driven by a HuggingFace
// tokenizer.json vocab. It keeps byte offsets for every word so entity
// spans can be mapped back into the document.
type WordPieceTokenizer struct {
	vocab      map[string]int
	unkID      int
	clsID      int
	sepID      int
	lowercase  bool
	maxWordLen int
	maxSeqLen  int
}

type tokenizerFile struct {
	Model struct {
		Vocab map[string]int `json:"vocab"`
	} `json:"model"`
	Normalizer struct {
		Lowercase *bool `json:"lowercase"`
	} `json:"normalizer"`
}

// NewWordPieceTokenizer loads a tokenizer.json from path.
func NewWordPieceTokenizer(path string) (*WordPieceTokenizer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading tokenizer: %w", err)
	}
	var file tokenizerFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, errors.Errorf("parsing tokenizer: %w", err)
	}
	if len(file.Model.Vocab) == 0 {
		return nil, errors.New("tokenizer vocab is empty")
	}

	t := &WordPieceTokenizer{
		vocab:      file.Model.Vocab,
		lowercase:  true,
		maxWordLen: 100,
		maxSeqLen:  512,
	}
	if file.Normalizer.Lowercase != nil {
		t.lowercase = *file.Normalizer.Lowercase
	}

	var ok bool
	if t.unkID, ok = t.vocab["[UNK]"]; !ok {
		return nil, errors.New("tokenizer vocab is missing [UNK]")
	}
	if t.clsID, ok = t.vocab["[CLS]"]; !ok {
		return nil, errors.New("tokenizer vocab is missing [CLS]")
	}
	if t.sepID, ok = t.vocab["[SEP]"]; !ok {
		return nil, errors.New("tokenizer vocab is missing [SEP]")
	}
	return t, nil
}

// Encode splits text into words and packs their pieces into one or more
// windows, each at most maxSeqLen sequence slots. A word's pieces never
// straddle a window boundary, so every word stays attributable to a
// single inference call.
func (t *WordPieceTokenizer) Encode(text string) []*Encoding {
	words := splitWords(text)

	var encodings []*Encoding
	enc := t.newWindow()
	for wi, word := range words {
		pieces := t.wordToPieces(word.Text)
		if len(enc.InputIDs)+len(pieces) > t.maxSeqLen-1 {
			if len(enc.Words) > 0 {
				encodings = append(encodings, t.closeWindow(enc))
			}
			enc = t.newWindow()
		}
		enc.Words = append(enc.Words, words[wi])
		local := len(enc.Words) - 1
		for _, id := range pieces {
			enc.InputIDs = append(enc.InputIDs, int64(id))
			enc.AttentionMask = append(enc.AttentionMask, 1)
			enc.TokenTypeIDs = append(enc.TokenTypeIDs, 0)
			enc.WordIndex = append(enc.WordIndex, local)
		}
	}
	encodings = append(encodings, t.closeWindow(enc))
	return encodings
}

func (t *WordPieceTokenizer) newWindow() *Encoding {
	return &Encoding{
		InputIDs:      []int64{int64(t.clsID)},
		AttentionMask: []int64{1},
		TokenTypeIDs:  []int64{0},
		WordIndex:     []int{-1},
	}
}

func (t *WordPieceTokenizer) closeWindow(enc *Encoding) *Encoding {
	enc.InputIDs = append(enc.InputIDs, int64(t.sepID))
	enc.AttentionMask = append(enc.AttentionMask, 1)
	enc.TokenTypeIDs = append(enc.TokenTypeIDs, 0)
	enc.WordIndex = append(enc.WordIndex, -1)
	return enc
}

// wordToPieces applies greedy longest-match WordPiece segmentation.
// Unsegmentable or oversized words collapse to [UNK].
func (t *WordPieceTokenizer) wordToPieces(word string) []int {
	normalized := word
	if t.lowercase {
		normalized = strings.ToLower(word)
	}
	runes := []rune(normalized)
	if len(runes) == 0 || len(runes) > t.maxWordLen {
		return []int{t.unkID}
	}

	if id, ok := t.vocab[string(runes)]; ok {
		return []int{id}
	}

	var ids []int
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := -1
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				found = id
				break
			}
			end--
		}
		if found == -1 {
			return []int{t.unkID}
		}
		ids = append(ids, found)
		start = end
	}
	return ids
}

// splitWords breaks text into letter/digit runs, keeping byte offsets.
func splitWords(text string) []Word {
	var words []Word
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			words = append(words, Word{Text: text[start:i], Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		words = append(words, Word{Text: text[start:], Start: start, End: len(text)})
	}
	return words
}
