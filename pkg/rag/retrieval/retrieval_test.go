package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/apperr"
	"docchat-be/pkg/docstore"
	"docchat-be/pkg/extract"
	"docchat-be/pkg/index"
	"docchat-be/pkg/llm"
	"docchat-be/pkg/rag/assembler"
)

type fixture struct {
	store     *docstore.LocalStore
	assembler *assembler.Assembler
	root      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	store, err := docstore.NewLocalStore(root)
	require.NoError(t, err)
	log := logger.NewNopLogger()
	return &fixture{
		store:     store,
		assembler: assembler.NewAssembler(store, extract.NewExtractor(log), 0, log),
		root:      root,
	}
}

func (f *fixture) upload(t *testing.T, session, name, text string, at time.Time) {
	t.Helper()
	_, err := f.store.Upload(context.Background(), session, name, []byte(text))
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(filepath.Join(f.root, session, name), at, at))
}

// memoryRepo keeps indexes in a map and can be told to fail loads.
type memoryRepo struct {
	mu      sync.Mutex
	indexes map[string]*index.Index
	loadErr error
	saves   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{indexes: map[string]*index.Index{}}
}

func (r *memoryRepo) Load(ctx context.Context, session string) (*index.Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	idx, ok := r.indexes[session]
	if !ok {
		return nil, index.ErrNotFound
	}
	return idx, nil
}

func (r *memoryRepo) Save(ctx context.Context, session string, idx *index.Index) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexes[session] = idx
	r.saves++
	return nil
}

func (r *memoryRepo) Drop(ctx context.Context, session string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.indexes, session)
	return nil
}

type countingEmbedder struct {
	index.Embedder
	fits atomic.Int32
}

func (e *countingEmbedder) Fit(ctx context.Context, corpus []string) (index.Model, error) {
	e.fits.Add(1)
	time.Sleep(10 * time.Millisecond)
	return e.Embedder.Fit(ctx, corpus)
}

func newIndexed(f *fixture, emb index.Embedder, repo index.Repository) *Indexed {
	return NewIndexed(f.store, f.assembler, emb, repo, IndexedConfig{TopK: 2, ChunkSize: 200, ChunkOverlap: 20}, logger.NewNopLogger())
}

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFullContextRetrieve(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "s", "cv.txt", "Education: BSc Computer Science, Example University", base)
	f.upload(t, "s", "notes.md", "# Notes\nLikes hiking", base.Add(time.Minute))

	strategy := NewFullContext(f.assembler, 0, logger.NewNopLogger())
	res, err := strategy.Retrieve(context.Background(), "s", "where did they study?")
	require.NoError(t, err)

	assert.Equal(t, []string{"cv.txt", "notes.md"}, res.Files)
	assert.Equal(t, 2, res.Count)
	assert.False(t, res.Truncated)
	assert.Equal(t, llm.SamplingFullContext, res.Sampling)
	assert.Less(t, strings.Index(res.Context, "DOCUMENT: cv.txt"), strings.Index(res.Context, "DOCUMENT: notes.md"))
	assert.Contains(t, res.Context, "Example University")
}

func TestFullContextEmptyAndUnreadable(t *testing.T) {
	f := newFixture(t)
	strategy := NewFullContext(f.assembler, 0, logger.NewNopLogger())

	res, err := strategy.Retrieve(context.Background(), "empty", "q")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.Empty(t, res.Context)

	f.upload(t, "s", "broken.pdf", "not a pdf at all", base)
	res, err = strategy.Retrieve(context.Background(), "s", "q")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.True(t, res.Unreadable)
}

func TestFullContextTruncatesOldestFirst(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "s", "old.txt", strings.Repeat("old ", 50), base)
	f.upload(t, "s", "mid.txt", strings.Repeat("mid ", 50), base.Add(time.Minute))
	f.upload(t, "s", "new.txt", strings.Repeat("new ", 50), base.Add(2*time.Minute))

	full, err := NewFullContext(f.assembler, 0, logger.NewNopLogger()).Retrieve(context.Background(), "s", "q")
	require.NoError(t, err)
	limit := len(full.Context) - 100

	res, err := NewFullContext(f.assembler, limit, logger.NewNopLogger()).Retrieve(context.Background(), "s", "q")
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.NotContains(t, res.Context, "DOCUMENT: old.txt")
	assert.Contains(t, res.Context, "DOCUMENT: mid.txt")
	assert.Contains(t, res.Context, "DOCUMENT: new.txt")
	assert.LessOrEqual(t, len([]rune(res.Context)), limit)
	assert.Equal(t, 3, res.Count)
}

func TestFitSectionsCutsLastSurvivor(t *testing.T) {
	sections := []assembler.Section{{Name: "a.txt", Text: strings.Repeat("a", 500)}}
	kept, truncated := fitSections(sections, 200)

	require.Len(t, kept, 1)
	assert.True(t, truncated)
	assert.Equal(t, 200, runeLen(assembler.RenderSections(kept)))
	assert.Len(t, sections[0].Text, 500)
}

func TestIndexedRetrieveRanksFragments(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "s", "cv.txt", "Education: BSc Computer Science at Example University, graduated 2019.", base)
	f.upload(t, "s", "food.txt", "Favourite breakfast is pancakes with maple syrup.", base.Add(time.Minute))

	repo := newMemoryRepo()
	strategy := newIndexed(f, index.NewTFIDFEmbedder(), repo)

	res, err := strategy.Retrieve(context.Background(), "s", "which university did they attend")
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "cv.txt", res.Hits[0].Document)
	assert.Equal(t, []string{"cv.txt", "food.txt"}, res.Files)
	assert.Equal(t, llm.SamplingIndexed, res.Sampling)
	assert.Contains(t, res.Context, "DOCUMENT: cv.txt")
	assert.Equal(t, 1, repo.saves)

	_, err = strategy.Retrieve(context.Background(), "s", "breakfast")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.saves, "unchanged documents reuse the cached index")
}

func TestIndexedRebuildsAfterUpload(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "s", "cv.txt", "Education: BSc Computer Science at Example University.", base)

	strategy := newIndexed(f, index.NewTFIDFEmbedder(), newMemoryRepo())
	_, err := strategy.Retrieve(context.Background(), "s", "university")
	require.NoError(t, err)

	f.upload(t, "s", "pets.txt", "The family owns a golden retriever named Biscuit.", base.Add(time.Hour))

	res, err := strategy.Retrieve(context.Background(), "s", "what is the retriever named")
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "pets.txt", res.Hits[0].Document)
	assert.Contains(t, res.Context, "Biscuit")
}

func TestIndexedRestoresPersistedIndex(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "s", "cv.txt", "Skills: Go, Postgres, Kubernetes.", base)

	repo := newMemoryRepo()
	emb := &countingEmbedder{Embedder: index.NewTFIDFEmbedder()}
	_, err := newIndexed(f, emb, repo).Retrieve(context.Background(), "s", "skills")
	require.NoError(t, err)

	// A fresh strategy with an empty cache loads from the repository.
	res, err := newIndexed(f, emb, repo).Retrieve(context.Background(), "s", "postgres")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Hits)
	assert.Equal(t, int32(1), emb.fits.Load())
	assert.Equal(t, 1, repo.saves)
}

func TestIndexedFallsBackWhenIndexCorrupt(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "s", "cv.txt", "Skills: Go, Postgres, Kubernetes.", base)

	repo := newMemoryRepo()
	repo.loadErr = index.ErrCorrupt
	res, err := newIndexed(f, index.NewTFIDFEmbedder(), repo).Retrieve(context.Background(), "s", "skills")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Hits)
	assert.Equal(t, 1, repo.saves)
}

func TestIndexedLoadFailureIsIndexCorrupt(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "s", "cv.txt", "Skills: Go.", base)

	repo := newMemoryRepo()
	repo.loadErr = os.ErrPermission
	_, err := newIndexed(f, index.NewTFIDFEmbedder(), repo).Retrieve(context.Background(), "s", "skills")
	assert.True(t, apperr.Is(err, apperr.KindIndexCorrupt))
}

func TestIndexedSingleRebuildUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "s", "cv.txt", "Experience: five years building Go services.", base)

	emb := &countingEmbedder{Embedder: index.NewTFIDFEmbedder()}
	strategy := newIndexed(f, emb, newMemoryRepo())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = strategy.Retrieve(context.Background(), "s", "experience")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), emb.fits.Load())
}

func TestIndexedEmptyAndUnreadable(t *testing.T) {
	f := newFixture(t)
	strategy := newIndexed(f, index.NewTFIDFEmbedder(), newMemoryRepo())

	res, err := strategy.Retrieve(context.Background(), "none", "q")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)

	f.upload(t, "s", "scan.pdf", "garbage bytes", base)
	res, err = strategy.Retrieve(context.Background(), "s", "q")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.True(t, res.Unreadable)
	assert.Empty(t, res.Hits)
}

func TestIndexedRefreshAndDrop(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "s", "a.txt", "Alpha document text.", base)
	f.upload(t, "s", "b.txt", "Beta document text.", base.Add(time.Second))

	repo := newMemoryRepo()
	strategy := newIndexed(f, index.NewTFIDFEmbedder(), repo)

	n, err := strategy.Refresh(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, repo.saves)

	n, err = strategy.Refresh(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, repo.saves, "refresh always rebuilds")

	require.NoError(t, strategy.Drop(context.Background(), "s"))
	_, err = repo.Load(context.Background(), "s")
	assert.ErrorIs(t, err, index.ErrNotFound)
}
