package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docchat-be/internal/model"
	"docchat-be/pkg/extract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore keeps document bytes in the stored_documents table.
type PostgresStore struct {
	db *gorm.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) List(ctx context.Context, session string) ([]Document, error) {
	var rows []model.StoredDocument
	err := s.db.WithContext(ctx).
		Select("name", "size", "updated_at").
		Where("session = ?", SanitizeSession(session)).
		Order("updated_at ASC, name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		if !AllowedExtension(row.Name) {
			continue
		}
		docs = append(docs, newDocument(row.Name, row.Size, row.UpdatedAt))
	}
	sortDocuments(docs)
	return docs, nil
}

func (s *PostgresStore) Upload(ctx context.Context, session, name string, data []byte) (Document, error) {
	now := time.Now().UTC()
	row := model.StoredDocument{
		Session:   SanitizeSession(session),
		Name:      name,
		Type:      extract.TypeOf(name),
		Size:      int64(len(data)),
		Content:   data,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "size", "content", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return Document{}, fmt.Errorf("upsert document: %w", err)
	}

	return newDocument(name, row.Size, now), nil
}

func (s *PostgresStore) Fetch(ctx context.Context, session, name string) ([]byte, error) {
	var row model.StoredDocument
	err := s.db.WithContext(ctx).
		Where("session = ? AND name = ?", SanitizeSession(session), name).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	return row.Content, nil
}

func (s *PostgresStore) Delete(ctx context.Context, session, name string) error {
	res := s.db.WithContext(ctx).
		Where("session = ? AND name = ?", SanitizeSession(session), name).
		Delete(&model.StoredDocument{})
	if res.Error != nil {
		return fmt.Errorf("delete document: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, session string) error {
	err := s.db.WithContext(ctx).
		Where("session = ?", SanitizeSession(session)).
		Delete(&model.StoredDocument{}).Error
	if err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	return nil
}
