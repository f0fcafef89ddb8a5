package retrieval

import (
	"context"

	"docchat-be/pkg/index"
	"docchat-be/pkg/llm"
	"docchat-be/pkg/rag/assembler"
)

// Result is the context chosen for one question.
type Result struct {
	// Context is the tagged text handed to the prompt builder.
	Context string
	// Files lists every document in the session, readable or not.
	Files []string
	// Count is the number of documents in the session.
	Count int
	// Unreadable means documents exist but none produced text.
	Unreadable bool
	Truncated  bool
	Hits       []index.Hit
	Sampling   llm.Sampling
}

// Strategy decides what document content reaches the model. One strategy is
// chosen at startup and shared by every request.
type Strategy interface {
	Name() string
	Retrieve(ctx context.Context, session, query string) (*Result, error)
	// Refresh rebuilds whatever the strategy derives from the documents and
	// returns the document count.
	Refresh(ctx context.Context, session string) (int, error)
	// Invalidate forgets cached derived state for the session.
	Invalidate(session string)
	// Drop removes persisted derived state for the session.
	Drop(ctx context.Context, session string) error
}

func fromAssembly(res *assembler.Result, sampling llm.Sampling) *Result {
	return &Result{
		Files:      res.Files,
		Count:      res.Count,
		Unreadable: res.Unreadable(),
		Sampling:   sampling,
	}
}
