// Package index builds, queries and persists the per-session fragment index
// used by indexed retrieval.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"docchat-be/pkg/docstore"
	"docchat-be/pkg/utils"
)

var (
	ErrNotFound    = errors.New("index not found")
	ErrCorrupt     = errors.New("index corrupt")
	ErrEmptyCorpus = errors.New("no text to index")
)

// Embedder creates models. Fit learns from a corpus; Restore rebuilds a model
// from the state saved next to an index.
type Embedder interface {
	Name() string
	Fit(ctx context.Context, corpus []string) (Model, error)
	Restore(state json.RawMessage) (Model, error)
}

type Model interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	State() (json.RawMessage, error)
}

type Fragment struct {
	Document string    `json:"document"`
	Ordinal  int       `json:"ordinal"` // document position in the DocumentSet
	Chunk    int       `json:"chunk"`
	Text     string    `json:"text"`
	Vector   []float32 `json:"vector"`
}

type Index struct {
	Fingerprint string          `json:"fingerprint"`
	Embedder    string          `json:"embedder"`
	ModelState  json.RawMessage `json:"model_state"`
	Fragments   []Fragment      `json:"fragments"`
	BuiltAt     time.Time       `json:"built_at"`
}

type Hit struct {
	Fragment
	Score float64
}

// Source is one readable document handed to Build, in DocumentSet order.
type Source struct {
	Name string
	Text string
}

// Fingerprint identifies a DocumentSet snapshot. Any upload, replacement or
// delete changes it.
func Fingerprint(docs []docstore.Document) string {
	h := sha256.New()
	for _, d := range docs {
		h.Write([]byte(d.Name))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatInt(d.Size, 10)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatInt(d.UpdatedAt.UnixNano(), 10)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type BuildOptions struct {
	ChunkSize    int
	ChunkOverlap int
}

// Build chunks the sources, fits the embedder and embeds every fragment.
func Build(ctx context.Context, emb Embedder, fingerprint string, sources []Source, opts BuildOptions) (*Loaded, error) {
	var fragments []Fragment
	for ordinal, src := range sources {
		for i, chunk := range utils.SplitText(src.Text, opts.ChunkSize, opts.ChunkOverlap) {
			fragments = append(fragments, Fragment{
				Document: src.Name,
				Ordinal:  ordinal,
				Chunk:    i,
				Text:     chunk,
			})
		}
	}
	if len(fragments) == 0 {
		return nil, ErrEmptyCorpus
	}

	corpus := make([]string, len(fragments))
	for i, f := range fragments {
		corpus[i] = f.Text
	}

	model, err := emb.Fit(ctx, corpus)
	if err != nil {
		return nil, fmt.Errorf("fit %s embedder: %w", emb.Name(), err)
	}
	vectors, err := model.Embed(ctx, corpus)
	if err != nil {
		return nil, fmt.Errorf("embed fragments: %w", err)
	}
	if len(vectors) != len(fragments) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d fragments", len(vectors), len(fragments))
	}
	for i := range fragments {
		fragments[i].Vector = vectors[i]
	}

	state, err := model.State()
	if err != nil {
		return nil, fmt.Errorf("serialize model state: %w", err)
	}

	return &Loaded{
		Index: &Index{
			Fingerprint: fingerprint,
			Embedder:    emb.Name(),
			ModelState:  state,
			Fragments:   fragments,
			BuiltAt:     time.Now().UTC(),
		},
		Model: model,
	}, nil
}

// Loaded pairs a persisted index with the model able to embed queries for it.
type Loaded struct {
	Index *Index
	Model Model
}

// Restore validates a persisted index and revives its model.
func Restore(emb Embedder, idx *Index) (*Loaded, error) {
	if idx == nil || idx.Embedder != emb.Name() || len(idx.Fragments) == 0 {
		return nil, ErrCorrupt
	}
	dim := len(idx.Fragments[0].Vector)
	for _, f := range idx.Fragments {
		if len(f.Vector) != dim {
			return nil, ErrCorrupt
		}
	}

	model, err := emb.Restore(idx.ModelState)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &Loaded{Index: idx, Model: model}, nil
}

// Query returns the k fragments most similar to q. Equal scores keep
// DocumentSet order, then chunk order.
func (l *Loaded) Query(ctx context.Context, q string, k int) ([]Hit, error) {
	vectors, err := l.Model.Embed(ctx, []string{q})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}
	return l.Index.Search(vectors[0], k), nil
}

func (idx *Index) Search(query []float32, k int) []Hit {
	if k <= 0 {
		k = 1
	}

	hits := make([]Hit, len(idx.Fragments))
	for i, f := range idx.Fragments {
		hits[i] = Hit{Fragment: f, Score: cosine(query, f.Vector)}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Ordinal != hits[j].Ordinal {
			return hits[i].Ordinal < hits[j].Ordinal
		}
		return hits[i].Chunk < hits[j].Chunk
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k]
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Repository persists one index per session. Save must replace atomically.
type Repository interface {
	Load(ctx context.Context, session string) (*Index, error)
	Save(ctx context.Context, session string, idx *Index) error
	Drop(ctx context.Context, session string) error
}
