package index

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"docchat-be/pkg/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func buildTestIndex(t *testing.T, sources ...Source) *Loaded {
	t.Helper()
	loaded, err := Build(context.Background(), NewTFIDFEmbedder(), "fp", sources, BuildOptions{ChunkSize: 200, ChunkOverlap: 20})
	require.NoError(t, err)
	return loaded
}

func TestFingerprint(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	docs := []docstore.Document{{Name: "a.txt", Size: 10, UpdatedAt: at}, {Name: "b.txt", Size: 20, UpdatedAt: at}}

	base := Fingerprint(docs)
	assert.Equal(t, base, Fingerprint(docs))
	assert.NotEqual(t, base, Fingerprint(docs[:1]), "delete changes fingerprint")

	replaced := append([]docstore.Document(nil), docs...)
	replaced[1].UpdatedAt = at.Add(time.Second)
	assert.NotEqual(t, base, Fingerprint(replaced), "re-upload changes fingerprint")
}

func TestBuildAndQuery(t *testing.T) {
	loaded := buildTestIndex(t,
		Source{Name: "geo.txt", Text: "Paris is the capital of France. Berlin is the capital of Germany."},
		Source{Name: "food.txt", Text: "Croissants and baguettes are popular breakfast foods."},
	)

	assert.Equal(t, "tfidf", loaded.Index.Embedder)
	assert.Len(t, loaded.Index.Fragments, 2)

	hits, err := loaded.Query(context.Background(), "capital of France", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "geo.txt", hits[0].Document)
	assert.Greater(t, hits[0].Score, 0.0)

	hits, err = loaded.Query(context.Background(), "breakfast", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "food.txt", hits[0].Document)
}

func TestSearchTiesKeepDocumentOrder(t *testing.T) {
	idx := &Index{Fragments: []Fragment{
		{Document: "b", Ordinal: 1, Chunk: 0, Vector: []float32{1, 0}},
		{Document: "a", Ordinal: 0, Chunk: 1, Vector: []float32{1, 0}},
		{Document: "a", Ordinal: 0, Chunk: 0, Vector: []float32{1, 0}},
		{Document: "c", Ordinal: 2, Chunk: 0, Vector: []float32{0, 1}},
	}}

	hits := idx.Search([]float32{1, 0}, 3)

	require.Len(t, hits, 3)
	assert.Equal(t, []string{"a", "a", "b"}, []string{hits[0].Document, hits[1].Document, hits[2].Document})
	assert.Equal(t, 0, hits[0].Chunk)
	assert.Equal(t, 1, hits[1].Chunk)
}

func TestBuildEmptyCorpus(t *testing.T) {
	_, err := Build(context.Background(), NewTFIDFEmbedder(), "fp", nil, BuildOptions{ChunkSize: 100})
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestRestore(t *testing.T) {
	loaded := buildTestIndex(t, Source{Name: "a.txt", Text: "alpha beta gamma"})

	restored, err := Restore(NewTFIDFEmbedder(), loaded.Index)
	require.NoError(t, err)

	want, err := loaded.Query(context.Background(), "beta", 1)
	require.NoError(t, err)
	got, err := restored.Query(context.Background(), "beta", 1)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	broken := *loaded.Index
	broken.ModelState = json.RawMessage(`{"terms":["x"],"idf":[]}`)
	_, err = Restore(NewTFIDFEmbedder(), &broken)
	assert.ErrorIs(t, err, ErrCorrupt)

	other := *loaded.Index
	other.Embedder = "ollama:nomic-embed-text"
	_, err = Restore(NewTFIDFEmbedder(), &other)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestBoltRepository(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "index.db")
	repo, err := NewBoltRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.Load(ctx, "s")
	assert.ErrorIs(t, err, ErrNotFound)

	loaded := buildTestIndex(t, Source{Name: "a.txt", Text: "alpha beta gamma"})
	require.NoError(t, repo.Save(ctx, "s", loaded.Index))

	got, err := repo.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, loaded.Index.Fingerprint, got.Fingerprint)
	assert.Equal(t, loaded.Index.Fragments, got.Fragments)

	require.NoError(t, repo.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIndexes).Put([]byte("s"), []byte("{not json"))
	}))
	_, err = repo.Load(ctx, "s")
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, repo.Drop(ctx, "s"))
	_, err = repo.Load(ctx, "s")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOllamaEmbedder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Prompt == "paris" {
			fmt.Fprint(w, `{"embedding":[3,4]}`)
			return
		}
		fmt.Fprint(w, `{"embedding":[0,2]}`)
	}))
	defer server.Close()

	emb := NewOllamaEmbedder(server.URL, "")
	assert.Equal(t, "ollama:nomic-embed-text", emb.Name())

	loaded, err := Build(context.Background(), emb, "fp", []Source{
		{Name: "a.txt", Text: "paris"},
		{Name: "b.txt", Text: "other"},
	}, BuildOptions{ChunkSize: 100})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, loaded.Index.Fragments[0].Vector, 1e-6)

	hits, err := loaded.Query(context.Background(), "paris", 1)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", hits[0].Document)

	_, err = NewOllamaEmbedder(server.URL, "other-model").Restore(loaded.Index.ModelState)
	assert.Error(t, err)
}
