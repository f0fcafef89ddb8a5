package memory

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"docchat-be/internal/model"
	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/database"
)

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.UserMemoryRecord{}, &model.ConversationTurn{}))
	t.Cleanup(func() {
		db.Exec("DELETE FROM user_memories WHERE user_id IN ('u1', 'u2')")
		db.Exec("DELETE FROM conversation_turns WHERE user_id IN ('u1', 'u2')")
	})

	exerciseStore(t, NewPostgresStore(db, logger.NewNopLogger()))
}
