package prompt

import (
	"strings"

	"docchat-be/internal/constant"
	"docchat-be/pkg/apperr"
)

type Mode string

const (
	// ModeDocuments answers strictly from uploaded document content.
	ModeDocuments Mode = "documents"
	// ModeConversation is plain chat without documents.
	ModeConversation Mode = "conversation"
)

type Input struct {
	Context          string
	Files            []string
	MemorySummary    string
	Conversation     string
	Question         string
	EnrichedQuestion string
}

type Builder struct {
	allowGeneralChat bool
}

func NewBuilder(allowGeneralChat bool) *Builder {
	return &Builder{allowGeneralChat: allowGeneralChat}
}

func (b *Builder) AllowsGeneralChat() bool {
	return b.allowGeneralChat
}

// Build composes the final prompt. Conversation mode fails with no_documents
// unless general chat is enabled.
func (b *Builder) Build(mode Mode, in Input) (string, error) {
	switch mode {
	case ModeDocuments:
		if strings.TrimSpace(in.Context) == "" {
			return "", apperr.New(apperr.KindNoDocuments, constant.NoDocumentsMessage)
		}
		return b.buildDocumentPrompt(in), nil
	case ModeConversation:
		if !b.allowGeneralChat {
			return "", apperr.New(apperr.KindNoDocuments, constant.NoDocumentsMessage)
		}
		return b.buildConversationPrompt(in), nil
	default:
		return "", apperr.New(apperr.KindInvalidInput, "unknown prompt mode: "+string(mode))
	}
}

func (b *Builder) buildDocumentPrompt(in Input) string {
	var prompt strings.Builder

	b.writeDirective(&prompt)
	b.writeDocuments(&prompt, in)
	b.writeMemory(&prompt, in)
	b.writeQuestion(&prompt, in)

	prompt.WriteString("Answer strictly based on the provided documents. If the answer is not in the documents, respond with exactly: \"")
	prompt.WriteString(constant.RefusalSentence)
	prompt.WriteString("\"")
	return prompt.String()
}

func (b *Builder) buildConversationPrompt(in Input) string {
	var prompt strings.Builder

	prompt.WriteString("<task>\n")
	prompt.WriteString("You are a friendly, helpful assistant. No documents are available in this conversation, so answer from general knowledge.\n")
	prompt.WriteString("Use what you know about the user to personalize the answer when it is relevant.\n")
	prompt.WriteString("</task>\n\n")

	b.writeMemory(&prompt, in)
	b.writeQuestion(&prompt, in)
	return prompt.String()
}

func (b *Builder) writeDirective(prompt *strings.Builder) {
	prompt.WriteString("<task>\n")
	prompt.WriteString("You are a document assistant. Answer the user's question using ONLY the document content below.\n")
	prompt.WriteString("Do not use outside knowledge. Quote names, dates and figures exactly as written.\n")
	prompt.WriteString("If the content does not contain the answer, reply with exactly this sentence and nothing else:\n")
	prompt.WriteString(constant.RefusalSentence)
	prompt.WriteString("\n</task>\n\n")
}

func (b *Builder) writeDocuments(prompt *strings.Builder, in Input) {
	if len(in.Files) > 0 {
		prompt.WriteString("You have access to the following document(s): ")
		prompt.WriteString(strings.Join(in.Files, ", "))
		prompt.WriteString("\n\n")
	}

	prompt.WriteString("<documents>")
	prompt.WriteString(in.Context)
	prompt.WriteString("\n</documents>\n\n")
}

func (b *Builder) writeMemory(prompt *strings.Builder, in Input) {
	if in.MemorySummary != "" {
		prompt.WriteString("<user_memory>\n")
		prompt.WriteString(in.MemorySummary)
		prompt.WriteString("\n</user_memory>\n\n")
	}
	if in.Conversation != "" {
		prompt.WriteString("<recent_conversation>\n")
		prompt.WriteString(strings.TrimRight(in.Conversation, "\n"))
		prompt.WriteString("\n</recent_conversation>\n\n")
	}
}

func (b *Builder) writeQuestion(prompt *strings.Builder, in Input) {
	prompt.WriteString("<user_question>\n")
	prompt.WriteString(in.Question)
	prompt.WriteString("\n</user_question>\n\n")

	if in.EnrichedQuestion != "" && in.EnrichedQuestion != in.Question {
		prompt.WriteString("<search_hint>\n")
		prompt.WriteString(in.EnrichedQuestion)
		prompt.WriteString("\n</search_hint>\n\n")
	}
}
