package docstore

import (
	"context"
	"os"
	"testing"

	"docchat-be/internal/model"
	"docchat-be/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreLifecycle(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.StoredDocument{}))

	ctx := context.Background()
	store := NewPostgresStore(db)
	session := "it-docstore"
	require.NoError(t, store.Clear(ctx, session))

	_, err = store.Upload(ctx, session, "a.txt", []byte("one"))
	require.NoError(t, err)
	_, err = store.Upload(ctx, session, "a.txt", []byte("one two"))
	require.NoError(t, err)

	docs, err := store.List(ctx, session)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(7), docs[0].Size)

	data, err := store.Fetch(ctx, session, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "one two", string(data))

	require.NoError(t, store.Delete(ctx, session, "a.txt"))
	assert.ErrorIs(t, store.Delete(ctx, session, "a.txt"), ErrNotFound)
}
