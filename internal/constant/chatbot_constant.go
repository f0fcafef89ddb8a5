package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleModel     = "model"
	ChatMessageRoleSystem    = "system"

	// RefusalSentence is returned verbatim when the documents hold no answer.
	// Clients match on it, so the wording must not change.
	RefusalSentence = "I cannot find this information in the provided documents."

	NoDocumentsMessage         = "No documents uploaded yet. Please upload a PDF, text or markdown file first."
	DocumentsUnreadableMessage = "Documents were uploaded but no text could be extracted from them. They may be scanned images or corrupted files."
	RateLimitedMessage         = "The AI provider is rate limiting requests. Please retry later."
	AuthFailureMessage         = "The AI provider rejected the API key. Please rotate the configured credentials."
	ContentBlockedMessage      = "The request was blocked by the provider's safety filter. Please rephrase your question."
	EmptyResponseMessage       = "The AI provider returned an empty response. Please try again."
	TimeoutMessage             = "The AI provider did not answer in time."
	ProviderFailureMessage     = "The AI provider request failed."
	NotConfiguredMessage       = "No AI provider is configured."
)

const (
	DocumentsChangedEvent = "documents.changed"
)
