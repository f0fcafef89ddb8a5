package retrieval

import (
	"context"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/llm"
	"docchat-be/pkg/rag/assembler"
)

const FullContextName = "full"

// FullContext hands every readable document to the model. When the tagged
// text exceeds maxChars the oldest documents are dropped first.
type FullContext struct {
	assembler *assembler.Assembler
	maxChars  int
	logger    logger.ILogger
}

var _ Strategy = (*FullContext)(nil)

func NewFullContext(a *assembler.Assembler, maxChars int, logger logger.ILogger) *FullContext {
	return &FullContext{assembler: a, maxChars: maxChars, logger: logger}
}

func (s *FullContext) Name() string { return FullContextName }

func (s *FullContext) Retrieve(ctx context.Context, session, query string) (*Result, error) {
	res, err := s.assembler.Assemble(ctx, session)
	if err != nil {
		return nil, err
	}

	out := fromAssembly(res, llm.SamplingFullContext)
	sections, truncated := fitSections(res.Sections, s.maxChars)
	if truncated {
		s.logger.Warn("RETRIEVAL", "Context exceeds limit, dropping oldest documents", map[string]interface{}{
			"session":   session,
			"limit":     s.maxChars,
			"original":  len(res.Sections),
			"remaining": len(sections),
		})
	}
	out.Context = assembler.RenderSections(sections)
	out.Truncated = truncated
	return out, nil
}

func (s *FullContext) Refresh(ctx context.Context, session string) (int, error) {
	res, err := s.assembler.Assemble(ctx, session)
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

func (s *FullContext) Invalidate(session string) {}

func (s *FullContext) Drop(ctx context.Context, session string) error { return nil }

// fitSections drops sections from the front (oldest) until the rendered text
// fits in maxChars runes, then cuts the last survivor if it is still too long.
func fitSections(sections []assembler.Section, maxChars int) ([]assembler.Section, bool) {
	if maxChars <= 0 || runeLen(assembler.RenderSections(sections)) <= maxChars {
		return sections, false
	}

	kept := sections
	for len(kept) > 1 && runeLen(assembler.RenderSections(kept)) > maxChars {
		kept = kept[1:]
	}

	last := kept[0]
	overhead := runeLen(last.Render()) - runeLen(last.Text)
	if total := runeLen(last.Render()); total > maxChars {
		budget := maxChars - overhead
		if budget < 0 {
			budget = 0
		}
		last.Text = string([]rune(last.Text)[:budget])
		kept = []assembler.Section{last}
	}
	return kept, true
}

func runeLen(s string) int {
	return len([]rune(s))
}
