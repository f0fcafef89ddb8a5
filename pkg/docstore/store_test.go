package docstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "resume.pdf", "resume.pdf"},
		{"spaces become underscores", "my cv 2024.pdf", "my_cv_2024.pdf"},
		{"strips directories", "../../etc/passwd", "passwd"},
		{"strips windows directories", `C:\Users\x\notes.txt`, "notes.txt"},
		{"drops leading dots", "..hidden.md", "hidden.md"},
		{"drops shell characters", "a;b|c$.txt", "abc.txt"},
		{"nothing left", "../..", ""},
		{"long name keeps extension", strings.Repeat("a", 300) + ".pdf", strings.Repeat("a", 196) + ".pdf"},
		{"oversized extension dropped", "a." + strings.Repeat("x", 250), "a." + strings.Repeat("x", 198)},
		{"cut on rune boundary", strings.Repeat("日", 100) + ".txt", strings.Repeat("日", 65) + ".txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeName(tt.input)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, len(got), 200)
		})
	}
}

func TestSanitizeSession(t *testing.T) {
	assert.Equal(t, DefaultSession, SanitizeSession(""))
	assert.Equal(t, DefaultSession, SanitizeSession("../"))
	assert.Equal(t, "user-42_a", SanitizeSession("user-42_a"))
	assert.Equal(t, "abc", SanitizeSession("a/b\\c"))
}

func TestAllowedExtension(t *testing.T) {
	assert.True(t, AllowedExtension("a.PDF"))
	assert.True(t, AllowedExtension("a.txt"))
	assert.True(t, AllowedExtension("a.md"))
	assert.False(t, AllowedExtension("a.exe"))
	assert.False(t, AllowedExtension("pdf"))
}

func TestLocalStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	docs, err := store.List(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, docs)

	doc, err := store.Upload(ctx, "s1", "notes.txt", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", doc.Name)
	assert.Equal(t, "text", doc.Type)
	assert.Equal(t, int64(5), doc.Size)

	data, err := store.Fetch(ctx, "s1", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = store.Fetch(ctx, "s2", "notes.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "s1", "notes.txt"))
	assert.ErrorIs(t, store.Delete(ctx, "s1", "notes.txt"), ErrNotFound)
}

func TestLocalStoreListOrdersOldestFirst(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	files := map[string]time.Time{
		"b.txt": base.Add(2 * time.Hour),
		"a.txt": base.Add(2 * time.Hour),
		"c.md":  base,
	}
	for name, at := range files {
		_, err := store.Upload(ctx, "s", name, []byte(name))
		require.NoError(t, err)
		require.NoError(t, os.Chtimes(filepath.Join(root, "s", name), at, at))
	}
	// ignored: disallowed extension and in-flight temp file
	require.NoError(t, os.WriteFile(filepath.Join(root, "s", "x.exe"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "s", tempPrefix+"123"), []byte("x"), 0o644))

	docs, err := store.List(ctx, "s")
	require.NoError(t, err)

	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Name
	}
	assert.Equal(t, []string{"c.md", "a.txt", "b.txt"}, names)
}

func TestLocalStoreUploadReplacesExisting(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Upload(ctx, "s", "a.txt", []byte("first"))
	require.NoError(t, err)
	_, err = store.Upload(ctx, "s", "a.txt", []byte("second version"))
	require.NoError(t, err)

	docs, err := store.List(ctx, "s")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(len("second version")), docs[0].Size)
}

func TestLocalStoreClear(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Upload(ctx, "s", "a.txt", []byte("a"))
	require.NoError(t, err)
	_, err = store.Upload(ctx, "other", "a.txt", []byte("a"))
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx, "s"))

	docs, err := store.List(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, err = store.List(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
