package assembler

import (
	"context"
	"strings"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/apperr"
	"docchat-be/pkg/docstore"
)

const delimiterWidth = 60

// TextExtractor turns raw document bytes into cleaned text, "" when unreadable.
type TextExtractor interface {
	Extract(data []byte, filename string) string
}

type Section struct {
	Name string
	Text string
}

// Render returns the delimited block for the section as it appears in prompts.
func (s Section) Render() string {
	rule := strings.Repeat("=", delimiterWidth)
	return "\n\n" + rule + "\nDOCUMENT: " + s.Name + "\n" + rule + "\n" + s.Text
}

type Result struct {
	// Sections holds readable documents in DocumentSet order.
	Sections []Section
	// Files lists every document in the set, readable or not.
	Files []string
	// Count is len(Files); zero means nothing was uploaded.
	Count int
	// Skipped names documents that produced no text.
	Skipped []string
}

func (r *Result) Blob() string {
	return RenderSections(r.Sections)
}

// Unreadable reports documents present but none yielding text.
func (r *Result) Unreadable() bool {
	return r.Count > 0 && len(r.Sections) == 0
}

func RenderSections(sections []Section) string {
	var sb strings.Builder
	for _, s := range sections {
		sb.WriteString(s.Render())
	}
	return sb.String()
}

type Assembler struct {
	store       docstore.Store
	extractor   TextExtractor
	maxFileSize int64
	logger      logger.ILogger
}

func NewAssembler(store docstore.Store, extractor TextExtractor, maxFileSize int64, logger logger.ILogger) *Assembler {
	return &Assembler{
		store:       store,
		extractor:   extractor,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// Assemble extracts every document of the session in store order. Documents
// that cannot be read are skipped but still counted.
func (a *Assembler) Assemble(ctx context.Context, session string) (*Result, error) {
	docs, err := a.store.List(ctx, session)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFailure, "failed to list documents", err)
	}
	return a.AssembleDocuments(ctx, session, docs)
}

// AssembleDocuments is Assemble over an already listed DocumentSet.
func (a *Assembler) AssembleDocuments(ctx context.Context, session string, docs []docstore.Document) (*Result, error) {
	res := &Result{
		Files: make([]string, 0, len(docs)),
		Count: len(docs),
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, apperr.Wrap(apperr.KindCanceled, "request cancelled", err)
		}
		res.Files = append(res.Files, doc.Name)

		text := a.readDocument(ctx, session, doc)
		if text == "" {
			res.Skipped = append(res.Skipped, doc.Name)
			continue
		}
		res.Sections = append(res.Sections, Section{Name: doc.Name, Text: text})
	}

	if len(res.Skipped) > 0 {
		a.logger.Warn("ASSEMBLER", "Skipped unreadable documents", map[string]interface{}{
			"session": session,
			"skipped": res.Skipped,
			"count":   res.Count,
		})
	}
	return res, nil
}

func (a *Assembler) readDocument(ctx context.Context, session string, doc docstore.Document) string {
	if a.maxFileSize > 0 && doc.Size > a.maxFileSize {
		a.logger.Warn("ASSEMBLER", "Document exceeds size cap", map[string]interface{}{
			"document": doc.Name,
			"size":     doc.Size,
			"limit":    a.maxFileSize,
		})
		return ""
	}

	data, err := a.store.Fetch(ctx, session, doc.Name)
	if err != nil {
		a.logger.Warn("ASSEMBLER", "Failed to fetch document", map[string]interface{}{
			"document": doc.Name,
			"error":    err,
		})
		return ""
	}
	return strings.TrimSpace(a.extractor.Extract(data, doc.Name))
}
