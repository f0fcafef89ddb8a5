package model

// Tables lists every model AutoMigrate manages.
func Tables() []interface{} {
	return []interface{}{
		&StoredDocument{},
		&UserMemoryRecord{},
		&ConversationTurn{},
		&IndexSnapshot{},
		&IndexFragment{},
	}
}
