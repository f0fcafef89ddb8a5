package service

import (
	"context"
	"errors"
	"fmt"

	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/apperr"
	"docchat-be/pkg/docstore"
	"docchat-be/pkg/events"
	"docchat-be/pkg/memory"
	"docchat-be/pkg/rag/retrieval"
	"docchat-be/pkg/utils"
)

type IDocumentService interface {
	Upload(ctx context.Context, session string, files []dto.UploadFile) (*dto.UploadDocumentsResponse, error)
	List(ctx context.Context, session string) (*dto.ListDocumentsResponse, error)
	Delete(ctx context.Context, session, name string) error
	Reindex(ctx context.Context, session string) (*dto.ReindexResponse, error)
	ClearSession(ctx context.Context, session string) error
	// NotifyExternalChange handles documents changed outside the API.
	NotifyExternalChange(session string)
}

type documentService struct {
	store       docstore.Store
	strategy    retrieval.Strategy
	memory      *memory.Manager
	publisher   IPublisherService
	maxFileSize int64
	locks       *utils.KeyedMutex
	logger      logger.ILogger
}

// NewDocumentService wires the document operations. memory may be nil when
// user memory is disabled.
func NewDocumentService(
	store docstore.Store,
	strategy retrieval.Strategy,
	memoryManager *memory.Manager,
	publisher IPublisherService,
	maxFileSize int64,
	logger logger.ILogger,
) IDocumentService {
	return &documentService{
		store:       store,
		strategy:    strategy,
		memory:      memoryManager,
		publisher:   publisher,
		maxFileSize: maxFileSize,
		locks:       utils.NewKeyedMutex(),
		logger:      logger,
	}
}

// Upload stores every allowed file. Files with other extensions are ignored;
// individual failures are reported without undoing the files already stored.
func (s *documentService) Upload(ctx context.Context, session string, files []dto.UploadFile) (*dto.UploadDocumentsResponse, error) {
	if len(files) == 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "no files provided")
	}

	unlock := s.locks.Lock(session)
	defer unlock()

	res := &dto.UploadDocumentsResponse{Uploaded: []string{}}
	for _, f := range files {
		name := docstore.SanitizeName(f.Name)
		if name == "" || !docstore.AllowedExtension(name) {
			s.logger.Debug("DOCUMENTS", "Ignoring file with unsupported extension", map[string]interface{}{
				"file": f.Name,
			})
			continue
		}
		if s.maxFileSize > 0 && int64(len(f.Data)) > s.maxFileSize {
			res.Failed = append(res.Failed, dto.FailedUpload{
				Name:  name,
				Error: "file exceeds the " + formatSize(s.maxFileSize) + " limit",
			})
			continue
		}

		if _, err := s.store.Upload(ctx, session, name, f.Data); err != nil {
			s.logger.Error("DOCUMENTS", "Failed to store document", map[string]interface{}{
				"session": session,
				"file":    name,
				"error":   err.Error(),
			})
			res.Failed = append(res.Failed, dto.FailedUpload{Name: name, Error: "storage failure"})
			continue
		}
		res.Uploaded = append(res.Uploaded, name)
	}
	res.Count = len(res.Uploaded)

	if res.Count > 0 {
		s.publish(ctx, events.NewDocumentsChanged(session, events.ActionUploaded, res.Uploaded...))
	}

	s.logger.Info("DOCUMENTS", "Upload processed", map[string]interface{}{
		"session":  session,
		"uploaded": res.Count,
		"failed":   len(res.Failed),
	})
	return res, nil
}

func (s *documentService) List(ctx context.Context, session string) (*dto.ListDocumentsResponse, error) {
	docs, err := s.store.List(ctx, session)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFailure, "failed to list documents", err)
	}

	res := &dto.ListDocumentsResponse{
		Documents: make([]dto.DocumentResponse, 0, len(docs)),
		Files:     make([]string, 0, len(docs)),
		Count:     len(docs),
	}
	for _, d := range docs {
		res.Documents = append(res.Documents, dto.DocumentResponse{
			Name:      d.Name,
			Type:      d.Type,
			Size:      d.Size,
			UpdatedAt: d.UpdatedAt,
		})
		res.Files = append(res.Files, d.Name)
	}
	return res, nil
}

func (s *documentService) Delete(ctx context.Context, session, name string) error {
	clean := docstore.SanitizeName(name)
	if clean == "" {
		return apperr.New(apperr.KindInvalidInput, "document name is required")
	}

	unlock := s.locks.Lock(session)
	defer unlock()

	err := s.store.Delete(ctx, session, clean)
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, fmt.Sprintf("document %q not found", clean), err)
	}
	if err != nil {
		return apperr.Wrap(apperr.KindStorageFailure, "failed to delete document", err)
	}

	s.publish(ctx, events.NewDocumentsChanged(session, events.ActionDeleted, clean))
	return nil
}

func (s *documentService) Reindex(ctx context.Context, session string) (*dto.ReindexResponse, error) {
	unlock := s.locks.Lock(session)
	defer unlock()

	count, err := s.strategy.Refresh(ctx, session)
	if err != nil {
		return nil, err
	}
	return &dto.ReindexResponse{Mode: s.strategy.Name(), Count: count}, nil
}

// ClearSession removes every document, the derived index and the session's memory.
func (s *documentService) ClearSession(ctx context.Context, session string) error {
	unlock := s.locks.Lock(session)
	defer unlock()

	if err := s.store.Clear(ctx, session); err != nil {
		return apperr.Wrap(apperr.KindStorageFailure, "failed to clear documents", err)
	}
	if err := s.strategy.Drop(ctx, session); err != nil {
		return apperr.Wrap(apperr.KindStorageFailure, "failed to drop index", err)
	}
	if s.memory != nil {
		if err := s.memory.Reset(ctx, session); err != nil {
			return apperr.Wrap(apperr.KindStorageFailure, "failed to reset memory", err)
		}
	}

	s.publish(ctx, events.NewDocumentsChanged(session, events.ActionCleared))
	s.logger.Info("DOCUMENTS", "Session cleared", map[string]interface{}{"session": session})
	return nil
}

func (s *documentService) NotifyExternalChange(session string) {
	s.publish(context.Background(), events.NewDocumentsChanged(session, events.ActionExternal))
}

func (s *documentService) publish(ctx context.Context, evt events.DocumentsChanged) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("DOCUMENTS", "Failed to publish documents.changed", map[string]interface{}{
			"session": evt.Session,
			"error":   err.Error(),
		})
	}
}

// formatSize renders a byte limit, in MB once it reaches one mebibyte.
func formatSize(n int64) string {
	const mb = 1024 * 1024
	switch {
	case n < mb:
		return fmt.Sprintf("%d byte", n)
	case n%mb == 0:
		return fmt.Sprintf("%d MB", n/mb)
	default:
		return fmt.Sprintf("%.2f MB", float64(n)/mb)
	}
}
