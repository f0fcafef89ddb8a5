package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"docchat-be/internal/model"
	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/docstore"
)

// PostgresStore keeps memories in user_memories (jsonb) and turns in
// conversation_turns.
type PostgresStore struct {
	db     *gorm.DB
	logger logger.ILogger
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *gorm.DB, logger logger.ILogger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) Load(ctx context.Context, user string) (*UserMemory, error) {
	var row model.UserMemoryRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", docstore.SanitizeSession(user)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load memory: %w", err)
	}
	return decodeMemory(row.Memory, user, s.logger), nil
}

func (s *PostgresStore) Save(ctx context.Context, user string, m *UserMemory) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}

	row := model.UserMemoryRecord{
		UserId: docstore.SanitizeSession(user),
		Memory: datatypes.JSON(data),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"memory", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, user string, turn Turn, max int) error {
	userID := docstore.SanitizeSession(user)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := model.ConversationTurn{
			UserId:    userID,
			User:      turn.User,
			Assistant: turn.Assistant,
			CreatedAt: turn.Timestamp,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("append turn: %w", err)
		}
		if max <= 0 {
			return nil
		}

		keep := tx.Model(&model.ConversationTurn{}).
			Select("id").
			Where("user_id = ?", userID).
			Order("created_at DESC").
			Limit(max)
		err := tx.Where("user_id = ? AND id NOT IN (?)", userID, keep).
			Delete(&model.ConversationTurn{}).Error
		if err != nil {
			return fmt.Errorf("evict turns: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) History(ctx context.Context, user string, limit int) ([]Turn, error) {
	q := s.db.WithContext(ctx).
		Where("user_id = ?", docstore.SanitizeSession(user)).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []model.ConversationTurn
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	turns := make([]Turn, len(rows))
	for i, row := range rows {
		turns[len(rows)-1-i] = Turn{Timestamp: row.CreatedAt, User: row.User, Assistant: row.Assistant}
	}
	return turns, nil
}

func (s *PostgresStore) Reset(ctx context.Context, user string) error {
	userID := docstore.SanitizeSession(user)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.UserMemoryRecord{}).Error; err != nil {
			return fmt.Errorf("delete memory: %w", err)
		}
		if err := tx.Where("user_id = ?", userID).Delete(&model.ConversationTurn{}).Error; err != nil {
			return fmt.Errorf("delete history: %w", err)
		}
		return nil
	})
}
