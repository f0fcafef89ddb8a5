package model

import (
	"time"

	"github.com/google/uuid"
)

type StoredDocument struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Session   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_stored_documents_session_name"`
	Name      string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_stored_documents_session_name"`
	Type      string    `gorm:"type:varchar(16)"`
	Size      int64     `gorm:"not null;default:0"`
	Content   []byte    `gorm:"type:bytea"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (StoredDocument) TableName() string {
	return "stored_documents"
}
