package events

import (
	"fmt"
	"time"
)

const TypeDocumentsChanged = "documents.changed"

const (
	ActionUploaded = "uploaded"
	ActionDeleted  = "deleted"
	ActionCleared  = "cleared"
	ActionReindex  = "reindexed"
	ActionExternal = "external"
)

// DocumentsChanged tells every index holder that a session's DocumentSet
// moved on and any derived state must be dropped.
type DocumentsChanged struct {
	Session    string    `json:"session"`
	Action     string    `json:"action"`
	Documents  []string  `json:"documents,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

var _ Event = DocumentsChanged{}

func NewDocumentsChanged(session, action string, documents ...string) DocumentsChanged {
	return DocumentsChanged{
		Session:    session,
		Action:     action,
		Documents:  documents,
		OccurredAt: time.Now().UTC(),
	}
}

func (e DocumentsChanged) EventType() string { return TypeDocumentsChanged }

func (e DocumentsChanged) Timestamp() time.Time { return e.OccurredAt }

func (e DocumentsChanged) Payload() map[string]interface{} {
	docs := make([]interface{}, len(e.Documents))
	for i, d := range e.Documents {
		docs[i] = d
	}
	return map[string]interface{}{
		"session":     e.Session,
		"action":      e.Action,
		"documents":   docs,
		"occurred_at": e.OccurredAt.Format(time.RFC3339Nano),
	}
}

// DocumentsChangedFrom reads the event back from a decoded payload.
func DocumentsChangedFrom(data map[string]interface{}) (DocumentsChanged, error) {
	session, ok := data["session"].(string)
	if !ok || session == "" {
		return DocumentsChanged{}, fmt.Errorf("documents.changed payload has no session")
	}

	evt := DocumentsChanged{Session: session}
	evt.Action, _ = data["action"].(string)
	if docs, ok := data["documents"].([]interface{}); ok {
		for _, d := range docs {
			if name, ok := d.(string); ok {
				evt.Documents = append(evt.Documents, name)
			}
		}
	}
	if raw, ok := data["occurred_at"].(string); ok {
		if at, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			evt.OccurredAt = at
		}
	}
	return evt, nil
}
