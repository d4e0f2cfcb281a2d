// Package sparse implements the lexical sparse encoder: a pure,
// deterministic BM25-style scorer with no learned model and no network
// dependency. Tokens are hashed into a fixed 32-bit index space, so the
// same token always maps to the same index across processes and restarts.
// Hash collisions are left unresolved; that is an accepted approximation.
package sparse

import (
	"crypto/md5"
	"encoding/binary"
	"math"
	"strings"
	"unicode"
)

// Common Chinese function words dropped before weighting. A compact set
// covering the highest-frequency particles and pronouns.
var stopwords = map[string]struct{}{
	"的": {}, "了": {}, "在": {}, "是": {}, "我": {}, "有": {}, "和": {},
	"就": {}, "不": {}, "人": {}, "都": {}, "一": {}, "一个": {}, "上": {},
	"也": {}, "很": {}, "到": {}, "说": {}, "要": {}, "去": {}, "你": {},
	"会": {}, "着": {}, "没有": {}, "看": {}, "好": {}, "自己": {}, "这": {},
	"他": {}, "她": {}, "它": {}, "们": {}, "那": {}, "被": {}, "从": {},
	"把": {}, "对": {}, "与": {}, "之": {}, "而": {}, "以": {}, "但": {},
	"为": {}, "所": {}, "能": {}, "其": {}, "如": {}, "已": {}, "下": {},
	"中": {}, "来": {}, "又": {}, "或": {}, "等": {}, "做": {}, "还": {},
	"可以": {}, "这个": {}, "那个": {}, "什么": {}, "怎么": {}, "因为": {}, "所以": {},
}

// Encoder turns text into (indices, values) sparse vectors compatible with
// a vector store's native sparse-vector fields. The zero value is ready to
// use.
type Encoder struct{}

// NewEncoder returns a sparse encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// EncodeDocuments encodes a batch of documents. The returned slices are
// parallel: one indices/values pair per input document.
func (e *Encoder) EncodeDocuments(texts []string) ([][]uint32, [][]float32) {
	indices := make([][]uint32, len(texts))
	values := make([][]float32, len(texts))
	for i, text := range texts {
		indices[i], values[i] = encode(text)
	}
	return indices, values
}

// EncodeQuery encodes a single query. An empty or whitespace-only query
// yields one empty indices/values pair rather than failing.
func (e *Encoder) EncodeQuery(query string) ([]uint32, []float32) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []uint32{}, []float32{}
	}
	return encode(query)
}

func encode(text string) ([]uint32, []float32) {
	tokens := Tokenize(text)

	// Counting preserves first-occurrence order so that encoding the
	// same text always yields identical arrays.
	counts := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	indices := make([]uint32, 0, len(order))
	values := make([]float32, 0, len(order))
	for _, tok := range order {
		indices = append(indices, tokenIndex(tok))
		values = append(values, float32(1+math.Log(float64(counts[tok]))))
	}
	return indices, values
}

// tokenIndex hashes a token's UTF-8 bytes and keeps the low 32 bits of the
// digest as an unsigned index.
func tokenIndex(token string) uint32 {
	sum := md5.Sum([]byte(token))
	return binary.BigEndian.Uint32(sum[:4])
}

// Tokenize segments text into lexical tokens: runs of Han characters are
// broken into overlapping bigrams, latin/digit runs become whole words.
// Tokens shorter than two runes, pure numbers and stop words are dropped.
func Tokenize(text string) []string {
	var tokens []string

	emitWord := func(word []rune) {
		if len(word) < 2 {
			return
		}
		tok := string(word)
		if isNumeric(word) {
			return
		}
		if _, stop := stopwords[tok]; stop {
			return
		}
		tokens = append(tokens, tok)
	}

	emitHan := func(run []rune) {
		if len(run) == 0 {
			return
		}
		if len(run) == 1 {
			// A lone Han character is below the length cutoff.
			return
		}
		for i := 0; i+1 < len(run); i++ {
			bigram := string(run[i : i+2])
			if _, stop := stopwords[bigram]; stop {
				continue
			}
			tokens = append(tokens, bigram)
		}
	}

	var word, han []rune
	flush := func() {
		emitWord(word)
		emitHan(han)
		word = word[:0]
		han = han[:0]
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			emitWord(word)
			word = word[:0]
			han = append(han, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			emitHan(han)
			han = han[:0]
			word = append(word, unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()

	return tokens
}

func isNumeric(word []rune) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
