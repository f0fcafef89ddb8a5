package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-be/internal/pkg/logger"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb, logger.NewNopLogger()), mr
}

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)
	return s
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	m, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, m.IsEmpty())
	assert.NotNil(t, m.UserInfo)

	m.UserInfo["name"] = "Anna"
	m.Interests = append(m.Interests, "chess")
	require.NoError(t, s.Save(ctx, "u1", m))

	loaded, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Anna", loaded.UserInfo["name"])
	assert.Equal(t, []string{"chess"}, loaded.Interests)

	other, err := s.Load(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, other.IsEmpty())

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		turn := Turn{Timestamp: base.Add(time.Duration(i) * time.Second), User: fmt.Sprintf("q%d", i), Assistant: fmt.Sprintf("a%d", i)}
		require.NoError(t, s.AppendTurn(ctx, "u1", turn, 3))
	}

	all, err := s.History(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"q2", "q3", "q4"}, []string{all[0].User, all[1].User, all[2].User})

	recent, err := s.History(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "q3", recent[0].User)
	assert.Equal(t, "a4", recent[1].Assistant)

	require.NoError(t, s.Reset(ctx, "u1"))
	m, err = s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, m.IsEmpty())
	all, err = s.History(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, newFileStore(t))
}

func TestRedisStore(t *testing.T) {
	s, _ := newRedisStore(t)
	exerciseStore(t, s)
}

func TestFileStoreCorruptData(t *testing.T) {
	s := newFileStore(t)
	dir := filepath.Join(s.dir, "u1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, memoryFile), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, historyFile), []byte("[{"), 0o644))

	m, err := s.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, m.IsEmpty())

	turns, err := s.History(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, turns)

	require.NoError(t, s.AppendTurn(context.Background(), "u1", Turn{User: "q", Assistant: "a"}, 10))
	turns, err = s.History(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestFileStoreDefaultsMissingFields(t *testing.T) {
	s := newFileStore(t)
	dir := filepath.Join(s.dir, "u1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, memoryFile), []byte(`{"user_info":{"name":"Lee"}}`), 0o644))

	m, err := s.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Lee", m.UserInfo["name"])
	assert.NotNil(t, m.Preferences)
	assert.NotNil(t, m.ImportantFacts)
}

func TestRedisStoreCorruptData(t *testing.T) {
	s, mr := newRedisStore(t)
	require.NoError(t, mr.Set(memoryKey("u1"), "garbage"))
	_, err := mr.RPush(historyKey("u1"), "nope", `{"user":"q","assistant":"a"}`)
	require.NoError(t, err)

	m, err := s.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, m.IsEmpty())

	turns, err := s.History(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "q", turns[0].User)
}
