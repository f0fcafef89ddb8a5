package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentsChangedPayload(t *testing.T) {
	evt := NewDocumentsChanged("s1", ActionUploaded, "cv.pdf", "notes.md")

	raw, err := json.Marshal(evt.Payload())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	got, err := DocumentsChangedFrom(decoded)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.Session)
	assert.Equal(t, ActionUploaded, got.Action)
	assert.Equal(t, []string{"cv.pdf", "notes.md"}, got.Documents)
	assert.True(t, evt.OccurredAt.Equal(got.OccurredAt))
	assert.Equal(t, TypeDocumentsChanged, got.EventType())
}

func TestDocumentsChangedFromRejectsMissingSession(t *testing.T) {
	_, err := DocumentsChangedFrom(map[string]interface{}{"action": "deleted"})
	assert.Error(t, err)
}
