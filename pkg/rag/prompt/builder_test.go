package prompt

import (
	"strings"
	"testing"

	"docchat-be/internal/constant"
	"docchat-be/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDocumentPrompt(t *testing.T) {
	b := NewBuilder(false)

	got, err := b.Build(ModeDocuments, Input{
		Context:          "\n\n====\nDOCUMENT: cv.txt\n====\nBSc Computer Science",
		Files:            []string{"cv.txt"},
		MemorySummary:    "USER INFORMATION:\n- name: Ana",
		Conversation:     "User: hi\nAssistant: hello\n\n",
		Question:         "What degree?",
		EnrichedQuestion: "What degree? (Look for Education sections)",
	})
	require.NoError(t, err)

	assert.Contains(t, got, constant.RefusalSentence)
	assert.Contains(t, got, "cv.txt")
	assert.Contains(t, got, "BSc Computer Science")
	assert.Contains(t, got, "- name: Ana")
	assert.Contains(t, got, "User: hi\nAssistant: hello\n</recent_conversation>")
	assert.Contains(t, got, "<user_question>\nWhat degree?\n</user_question>")
	assert.Contains(t, got, "(Look for Education sections)")
	assert.Less(t, strings.Index(got, "<documents>"), strings.Index(got, "<user_question>"))
}

func TestBuildOmitsOptionalSections(t *testing.T) {
	got, err := NewBuilder(false).Build(ModeDocuments, Input{
		Context:          "text",
		Question:         "q",
		EnrichedQuestion: "q",
	})
	require.NoError(t, err)

	assert.NotContains(t, got, "<user_memory>")
	assert.NotContains(t, got, "<recent_conversation>")
	assert.NotContains(t, got, "<search_hint>")
}

func TestBuildModes(t *testing.T) {
	tests := []struct {
		name     string
		allow    bool
		mode     Mode
		input    Input
		wantKind apperr.Kind
	}{
		{"documents without context", false, ModeDocuments, Input{Question: "q"}, apperr.KindNoDocuments},
		{"conversation disabled", false, ModeConversation, Input{Question: "q"}, apperr.KindNoDocuments},
		{"conversation enabled", true, ModeConversation, Input{Question: "q"}, ""},
		{"unknown mode", true, Mode("poetry"), Input{Question: "q"}, apperr.KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewBuilder(tt.allow).Build(tt.mode, tt.input)
			if tt.wantKind == "" {
				require.NoError(t, err)
				assert.Contains(t, got, "<user_question>\nq\n</user_question>")
				assert.NotContains(t, got, constant.RefusalSentence)
				return
			}
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			assert.Empty(t, got)
		})
	}
}
