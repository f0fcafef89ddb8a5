package memory

import (
	"context"
	"encoding/json"

	"docchat-be/internal/pkg/logger"
)

// Store persists one UserMemory and one capped turn log per user.
type Store interface {
	// Load never fails on missing or corrupt data; both yield an empty memory.
	Load(ctx context.Context, user string) (*UserMemory, error)
	Save(ctx context.Context, user string, m *UserMemory) error
	// AppendTurn adds a turn and evicts the oldest beyond max.
	AppendTurn(ctx context.Context, user string, turn Turn, max int) error
	// History returns up to limit most recent turns, oldest first. limit <= 0 returns all.
	History(ctx context.Context, user string, limit int) ([]Turn, error)
	Reset(ctx context.Context, user string) error
}

func decodeMemory(data []byte, user string, log logger.ILogger) *UserMemory {
	m := &UserMemory{}
	if err := json.Unmarshal(data, m); err != nil {
		log.Warn("MEMORY", "Stored memory is corrupt, starting fresh", map[string]interface{}{
			"user":  user,
			"error": err.Error(),
		})
		return New()
	}
	m.normalize()
	return m
}
