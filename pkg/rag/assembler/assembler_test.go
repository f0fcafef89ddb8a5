package assembler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/apperr"
	"docchat-be/pkg/docstore"
	"docchat-be/pkg/extract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	docs    []docstore.Document
	data    map[string][]byte
	listErr error
}

func (f *fakeStore) List(ctx context.Context, session string) ([]docstore.Document, error) {
	return f.docs, f.listErr
}

func (f *fakeStore) Upload(ctx context.Context, session, name string, data []byte) (docstore.Document, error) {
	return docstore.Document{}, errors.New("not implemented")
}

func (f *fakeStore) Fetch(ctx context.Context, session, name string) ([]byte, error) {
	d, ok := f.data[name]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) Delete(ctx context.Context, session, name string) error { return nil }
func (f *fakeStore) Clear(ctx context.Context, session string) error       { return nil }

func newFakeStore(files ...string) *fakeStore {
	s := &fakeStore{data: map[string][]byte{}}
	for i := 0; i+1 < len(files); i += 2 {
		s.docs = append(s.docs, docstore.Document{
			Name:      files[i],
			Size:      int64(len(files[i+1])),
			UpdatedAt: time.Unix(int64(i), 0),
		})
		s.data[files[i]] = []byte(files[i+1])
	}
	return s
}

func newAssembler(store docstore.Store, maxSize int64) *Assembler {
	nop := logger.NewNopLogger()
	return NewAssembler(store, extract.NewExtractor(nop), maxSize, nop)
}

func TestAssemble(t *testing.T) {
	store := newFakeStore(
		"a.txt", "Paris is the capital   of France.",
		"b.md", "# Notes\n\n\n\nsecond",
	)

	res, err := newAssembler(store, 0).Assemble(context.Background(), "s")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Count)
	assert.Equal(t, []string{"a.txt", "b.md"}, res.Files)
	require.Len(t, res.Sections, 2)
	assert.Equal(t, "Paris is the capital of France.", res.Sections[0].Text)

	blob := res.Blob()
	assert.Contains(t, blob, "DOCUMENT: a.txt")
	assert.Contains(t, blob, "# Notes\n\nsecond")
	assert.Less(t, strings.Index(blob, "a.txt"), strings.Index(blob, "b.md"))
}

func TestAssembleDeterministic(t *testing.T) {
	store := newFakeStore("a.txt", "one", "b.txt", "two", "c.txt", "three")
	a := newAssembler(store, 0)

	first, err := a.Assemble(context.Background(), "s")
	require.NoError(t, err)
	second, err := a.Assemble(context.Background(), "s")
	require.NoError(t, err)

	assert.Equal(t, first.Blob(), second.Blob())
}

func TestAssembleCountsUnreadable(t *testing.T) {
	store := newFakeStore("broken.pdf", "not a pdf at all")

	res, err := newAssembler(store, 0).Assemble(context.Background(), "s")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Count)
	assert.Empty(t, res.Sections)
	assert.Equal(t, []string{"broken.pdf"}, res.Skipped)
	assert.True(t, res.Unreadable())
	assert.Equal(t, "", res.Blob())
}

func TestAssembleEmptySet(t *testing.T) {
	res, err := newAssembler(newFakeStore(), 0).Assemble(context.Background(), "s")
	require.NoError(t, err)

	assert.Equal(t, 0, res.Count)
	assert.False(t, res.Unreadable())
}

func TestAssembleSkipsOversized(t *testing.T) {
	store := newFakeStore("big.txt", "0123456789", "small.txt", "ok")

	res, err := newAssembler(store, 5).Assemble(context.Background(), "s")
	require.NoError(t, err)

	require.Len(t, res.Sections, 1)
	assert.Equal(t, "small.txt", res.Sections[0].Name)
	assert.Equal(t, []string{"big.txt"}, res.Skipped)
}

func TestAssembleListFailure(t *testing.T) {
	store := &fakeStore{listErr: errors.New("disk gone")}

	_, err := newAssembler(store, 0).Assemble(context.Background(), "s")
	assert.Equal(t, apperr.KindStorageFailure, apperr.KindOf(err))
}
