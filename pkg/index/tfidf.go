package index

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "how", "why", "where", "when", "does", "do", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// TFIDFEmbedder fits a smoothed TF-IDF vocabulary over the fragments of one
// session. It needs no network and is deterministic for a given corpus.
type TFIDFEmbedder struct{}

func NewTFIDFEmbedder() *TFIDFEmbedder { return &TFIDFEmbedder{} }

func (e *TFIDFEmbedder) Name() string { return "tfidf" }

func (e *TFIDFEmbedder) Fit(ctx context.Context, corpus []string) (Model, error) {
	if len(corpus) == 0 {
		return nil, ErrEmptyCorpus
	}

	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return nil, errors.New("no tokens found in corpus")
	}
	sort.Strings(terms)

	n := float64(len(corpus))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	return newTFIDFModel(terms, idf), nil
}

func (e *TFIDFEmbedder) Restore(state json.RawMessage) (Model, error) {
	var s tfidfState
	if err := json.Unmarshal(state, &s); err != nil {
		return nil, err
	}
	if len(s.Terms) == 0 || len(s.Terms) != len(s.IDF) {
		return nil, errors.New("tfidf state mismatch")
	}
	return newTFIDFModel(s.Terms, s.IDF), nil
}

type tfidfState struct {
	Terms []string  `json:"terms"`
	IDF   []float64 `json:"idf"`
}

type tfidfModel struct {
	terms      []string
	idf        []float64
	vocabulary map[string]int
}

func newTFIDFModel(terms []string, idf []float64) *tfidfModel {
	vocab := make(map[string]int, len(terms))
	for i, t := range terms {
		vocab[t] = i
	}
	return &tfidfModel{terms: terms, idf: idf, vocabulary: vocab}
}

func (m *tfidfModel) State() (json.RawMessage, error) {
	return json.Marshal(tfidfState{Terms: m.terms, IDF: m.idf})
}

func (m *tfidfModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.embed(text)
	}
	return out, nil
}

func (m *tfidfModel) embed(text string) []float32 {
	vec := make([]float64, len(m.terms))
	tf := make(map[int]int)
	total := 0
	for _, tok := range tokenize(text) {
		if idx, ok := m.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}

	out := make([]float32, len(vec))
	if total == 0 {
		return out
	}
	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * m.idf[idx]
	}

	// L2 normalize
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}
