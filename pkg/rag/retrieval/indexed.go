package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/apperr"
	"docchat-be/pkg/docstore"
	"docchat-be/pkg/index"
	"docchat-be/pkg/llm"
	"docchat-be/pkg/rag/assembler"
)

const IndexedName = "indexed"

type IndexedConfig struct {
	TopK         int
	ChunkSize    int
	ChunkOverlap int
	CacheTTL     time.Duration
}

// Indexed answers from the top-K fragments of a per-session index. The index
// is checked against the current DocumentSet on every query and rebuilt when
// it is missing, stale or unreadable.
type Indexed struct {
	store     docstore.Store
	assembler *assembler.Assembler
	embedder  index.Embedder
	repo      index.Repository
	cfg       IndexedConfig
	cache     *cache.Cache
	group     singleflight.Group
	logger    logger.ILogger
}

var _ Strategy = (*Indexed)(nil)

// ensured is what a single rebuild hands to every waiting caller.
// A nil loaded index means no document produced text.
type ensured struct {
	loaded *index.Loaded
}

func NewIndexed(store docstore.Store, a *assembler.Assembler, embedder index.Embedder, repo index.Repository, cfg IndexedConfig, logger logger.ILogger) *Indexed {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	return &Indexed{
		store:     store,
		assembler: a,
		embedder:  embedder,
		repo:      repo,
		cfg:       cfg,
		cache:     cache.New(cfg.CacheTTL, cfg.CacheTTL/3),
		logger:    logger,
	}
}

func (s *Indexed) Name() string { return IndexedName }

func (s *Indexed) Retrieve(ctx context.Context, session, query string) (*Result, error) {
	docs, err := s.store.List(ctx, session)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFailure, "failed to list documents", err)
	}
	if len(docs) == 0 {
		return &Result{Files: []string{}, Sampling: llm.SamplingIndexed}, nil
	}

	got, err := s.ensure(ctx, session, docs)
	if err != nil {
		return nil, err
	}

	out := &Result{
		Files:    documentNames(docs),
		Count:    len(docs),
		Sampling: llm.SamplingIndexed,
	}
	if got.loaded == nil {
		out.Unreadable = true
		return out, nil
	}

	hits, err := got.loaded.Query(ctx, query, s.cfg.TopK)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.KindCanceled, "request cancelled", ctx.Err())
		}
		return nil, apperr.Wrap(apperr.KindIndexCorrupt, "failed to query index", err)
	}

	sections := make([]assembler.Section, 0, len(hits))
	for _, h := range hits {
		sections = append(sections, assembler.Section{Name: h.Document, Text: h.Text})
	}
	out.Hits = hits
	out.Context = assembler.RenderSections(sections)

	s.logger.Debug("RETRIEVAL", "Fragments selected", map[string]interface{}{
		"session": session,
		"hits":    len(hits),
	})
	return out, nil
}

func (s *Indexed) Refresh(ctx context.Context, session string) (int, error) {
	s.Invalidate(session)
	if err := s.repo.Drop(ctx, session); err != nil {
		return 0, apperr.Wrap(apperr.KindStorageFailure, "failed to drop index", err)
	}

	docs, err := s.store.List(ctx, session)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStorageFailure, "failed to list documents", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	if _, err := s.ensure(ctx, session, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *Indexed) Invalidate(session string) {
	s.cache.Delete(session)
}

func (s *Indexed) Drop(ctx context.Context, session string) error {
	s.Invalidate(session)
	return s.repo.Drop(ctx, session)
}

// ensure returns a loaded index matching docs. Concurrent callers for the same
// session and fingerprint share one load or rebuild.
func (s *Indexed) ensure(ctx context.Context, session string, docs []docstore.Document) (*ensured, error) {
	fp := index.Fingerprint(docs)
	if loaded, ok := s.cached(session, fp); ok {
		return &ensured{loaded: loaded}, nil
	}

	v, err, _ := s.group.Do(session+":"+fp, func() (interface{}, error) {
		if loaded, ok := s.cached(session, fp); ok {
			return &ensured{loaded: loaded}, nil
		}
		// Waiters must not fail because the first caller went away.
		return s.loadOrBuild(context.WithoutCancel(ctx), session, fp, docs)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ensured), nil
}

func (s *Indexed) cached(session, fp string) (*index.Loaded, bool) {
	v, ok := s.cache.Get(session)
	if !ok {
		return nil, false
	}
	loaded := v.(*index.Loaded)
	if loaded.Index.Fingerprint != fp {
		return nil, false
	}
	return loaded, true
}

func (s *Indexed) loadOrBuild(ctx context.Context, session, fp string, docs []docstore.Document) (*ensured, error) {
	stored, err := s.repo.Load(ctx, session)
	switch {
	case err == nil && stored.Fingerprint == fp:
		loaded, rerr := index.Restore(s.embedder, stored)
		if rerr == nil {
			s.cache.SetDefault(session, loaded)
			return &ensured{loaded: loaded}, nil
		}
		s.logger.Warn("RETRIEVAL", "Stored index unusable, rebuilding", map[string]interface{}{
			"session": session,
			"error":   rerr.Error(),
		})
	case err == nil:
		s.logger.Info("RETRIEVAL", "Stored index is stale, rebuilding", map[string]interface{}{
			"session": session,
		})
	case errors.Is(err, index.ErrNotFound):
	case errors.Is(err, index.ErrCorrupt):
		s.logger.Warn("RETRIEVAL", "Stored index corrupt, rebuilding", map[string]interface{}{
			"session": session,
			"error":   err.Error(),
		})
	default:
		return nil, apperr.Wrap(apperr.KindIndexCorrupt, "failed to load index", err)
	}

	return s.rebuild(ctx, session, fp, docs)
}

func (s *Indexed) rebuild(ctx context.Context, session, fp string, docs []docstore.Document) (*ensured, error) {
	start := time.Now()
	assembly, err := s.assembler.AssembleDocuments(ctx, session, docs)
	if err != nil {
		return nil, err
	}
	if assembly.Unreadable() {
		return &ensured{}, nil
	}

	sources := make([]index.Source, 0, len(assembly.Sections))
	for _, sec := range assembly.Sections {
		sources = append(sources, index.Source{Name: sec.Name, Text: sec.Text})
	}

	loaded, err := index.Build(ctx, s.embedder, fp, sources, index.BuildOptions{
		ChunkSize:    s.cfg.ChunkSize,
		ChunkOverlap: s.cfg.ChunkOverlap,
	})
	if errors.Is(err, index.ErrEmptyCorpus) {
		return &ensured{}, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexCorrupt, "failed to build index", err)
	}
	if err := s.repo.Save(ctx, session, loaded.Index); err != nil {
		return nil, apperr.Wrap(apperr.KindIndexCorrupt, "failed to persist index", err)
	}
	s.cache.SetDefault(session, loaded)

	s.logger.Info("RETRIEVAL", "Index rebuilt", map[string]interface{}{
		"session":   session,
		"documents": len(sources),
		"fragments": len(loaded.Index.Fragments),
		"duration":  fmt.Sprint(time.Since(start)),
	})
	return &ensured{loaded: loaded}, nil
}

func documentNames(docs []docstore.Document) []string {
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Name
	}
	return names
}
