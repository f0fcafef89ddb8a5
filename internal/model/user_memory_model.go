package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type UserMemoryRecord struct {
	UserId    string         `gorm:"type:varchar(64);primaryKey"`
	Memory    datatypes.JSON `gorm:"type:jsonb"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

func (UserMemoryRecord) TableName() string {
	return "user_memories"
}

type ConversationTurn struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId    string    `gorm:"type:varchar(64);not null;index:idx_conversation_turns_user_created"`
	User      string    `gorm:"type:text"`
	Assistant string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index:idx_conversation_turns_user_created"`
}

func (ConversationTurn) TableName() string {
	return "conversation_turns"
}
