package service

import (
	"context"
	"strings"
	"sync"

	"docchat-be/internal/constant"
	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/apperr"
	"docchat-be/pkg/llm"
	"docchat-be/pkg/memory"
	"docchat-be/pkg/rag/assembler"
	"docchat-be/pkg/rag/prompt"
	"docchat-be/pkg/rag/query"
	"docchat-be/pkg/rag/retrieval"
)

const (
	ModeContent      = "content"
	ModeConversation = "conversation"

	contentPreamble = "Here is the content of all documents:\n"
)

type IChatService interface {
	Ask(ctx context.Context, session string, req *dto.ChatRequest) (*dto.ChatResponse, error)
	AskStream(ctx context.Context, session string, req *dto.ChatRequest) (*ChatStream, error)
}

// ChatStream is an answer being streamed. The turn is written to memory only
// when the stream completes.
type ChatStream struct {
	*llm.Stream
	Mode      string
	Files     []string
	Truncated bool

	onComplete func(answer string)
	once       sync.Once
}

func (s *ChatStream) Next() bool {
	if s.Stream.Next() {
		return true
	}
	if s.Stream.Completed() && s.onComplete != nil {
		s.once.Do(func() { s.onComplete(s.Stream.Text()) })
	}
	return false
}

// prepared is everything decided before the model is called.
type prepared struct {
	question  string
	mode      string
	files     []string
	truncated bool
	prompt    string
	sampling  llm.Sampling
	// static is set when the answer needs no model call.
	static string
}

type chatService struct {
	assembler  *assembler.Assembler
	normalizer *query.Normalizer
	strategy   retrieval.Strategy
	builder    *prompt.Builder
	gateway    *llm.Gateway
	memory     *memory.Manager
	logger     logger.ILogger
}

// NewChatService wires the question pipeline. gateway may be nil when no
// provider is configured; memoryManager may be nil when memory is disabled.
func NewChatService(
	asm *assembler.Assembler,
	normalizer *query.Normalizer,
	strategy retrieval.Strategy,
	builder *prompt.Builder,
	gateway *llm.Gateway,
	memoryManager *memory.Manager,
	logger logger.ILogger,
) IChatService {
	return &chatService{
		assembler:  asm,
		normalizer: normalizer,
		strategy:   strategy,
		builder:    builder,
		gateway:    gateway,
		memory:     memoryManager,
		logger:     logger,
	}
}

func (s *chatService) Ask(ctx context.Context, session string, req *dto.ChatRequest) (*dto.ChatResponse, error) {
	p, err := s.prepare(ctx, session, req.Question)
	if err != nil {
		return nil, err
	}

	answer := p.static
	if answer == "" {
		if s.gateway == nil {
			return nil, apperr.New(apperr.KindNotConfigured, constant.NotConfiguredMessage)
		}
		answer, err = s.gateway.Generate(ctx, p.prompt, p.sampling)
		if err != nil {
			return nil, UserFacingError(err)
		}
		s.remember(ctx, session, p.question, answer)
	}

	return &dto.ChatResponse{
		Answer:    answer,
		Mode:      p.mode,
		Files:     p.files,
		Truncated: p.truncated,
	}, nil
}

func (s *chatService) AskStream(ctx context.Context, session string, req *dto.ChatRequest) (*ChatStream, error) {
	p, err := s.prepare(ctx, session, req.Question)
	if err != nil {
		return nil, err
	}

	out := &ChatStream{Mode: p.mode, Files: p.files, Truncated: p.truncated}
	if p.static != "" {
		out.Stream = llm.NewStaticStream(p.static)
		return out, nil
	}
	if s.gateway == nil {
		return nil, apperr.New(apperr.KindNotConfigured, constant.NotConfiguredMessage)
	}

	stream, err := s.gateway.Stream(ctx, p.prompt, p.sampling)
	if err != nil {
		return nil, UserFacingError(err)
	}
	out.Stream = stream
	out.onComplete = func(answer string) {
		s.remember(ctx, session, p.question, answer)
	}
	return out, nil
}

func (s *chatService) prepare(ctx context.Context, session, raw string) (*prepared, error) {
	question := strings.TrimSpace(raw)
	if question == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "question is required")
	}

	if query.IsContentRequest(question) {
		return s.prepareContent(ctx, session, question)
	}

	enriched := s.normalizer.Normalize(question)
	res, err := s.strategy.Retrieve(ctx, session, enriched)
	if err != nil {
		return nil, err
	}

	p := &prepared{question: question, mode: s.strategy.Name(), files: res.Files, truncated: res.Truncated, sampling: res.Sampling}
	promptMode := prompt.ModeDocuments
	switch {
	case res.Count == 0 && s.builder.AllowsGeneralChat():
		p.mode = ModeConversation
		p.sampling = llm.SamplingConversation
		promptMode = prompt.ModeConversation
	case res.Count == 0:
		return nil, apperr.New(apperr.KindNoDocuments, constant.NoDocumentsMessage)
	case res.Unreadable:
		return nil, apperr.New(apperr.KindDocumentsUnreadable, constant.DocumentsUnreadableMessage)
	}

	in := prompt.Input{
		Context:          res.Context,
		Files:            res.Files,
		Question:         question,
		EnrichedQuestion: enriched,
	}
	if s.memory != nil {
		summary, conversation, err := s.memory.Context(ctx, session)
		if err != nil {
			s.logger.Warn("CHAT", "Memory unavailable, answering without it", map[string]interface{}{
				"session": session,
				"error":   err.Error(),
			})
		} else {
			in.MemorySummary = summary
			in.Conversation = conversation
		}
	}

	p.prompt, err = s.builder.Build(promptMode, in)
	if err != nil {
		return nil, err
	}

	s.logger.Info("CHAT", "Prompt prepared", map[string]interface{}{
		"session":   session,
		"mode":      p.mode,
		"files":     len(res.Files),
		"chars":     len(p.prompt),
		"truncated": res.Truncated,
	})
	return p, nil
}

// prepareContent answers "show me the content" style questions with the
// assembled text itself.
func (s *chatService) prepareContent(ctx context.Context, session, question string) (*prepared, error) {
	res, err := s.assembler.Assemble(ctx, session)
	if err != nil {
		return nil, err
	}
	if res.Count == 0 {
		return nil, apperr.New(apperr.KindNoDocuments, constant.NoDocumentsMessage)
	}
	if res.Unreadable() {
		return nil, apperr.New(apperr.KindDocumentsUnreadable, constant.DocumentsUnreadableMessage)
	}
	return &prepared{
		question: question,
		mode:     ModeContent,
		files:    res.Files,
		static:   contentPreamble + res.Blob(),
	}, nil
}

// remember records a completed turn. It runs detached from the request so a
// client leaving right after the answer does not lose the turn.
func (s *chatService) remember(ctx context.Context, session, question, answer string) {
	if s.memory == nil {
		return
	}
	if err := s.memory.Record(context.WithoutCancel(ctx), session, question, answer); err != nil {
		s.logger.Warn("CHAT", "Failed to record conversation turn", map[string]interface{}{
			"session": session,
			"error":   err.Error(),
		})
	}
}

var messageByKind = map[apperr.Kind]string{
	apperr.KindProviderRateLimited:    constant.RateLimitedMessage,
	apperr.KindProviderAuthFailure:    constant.AuthFailureMessage,
	apperr.KindProviderContentBlocked: constant.ContentBlockedMessage,
	apperr.KindProviderEmptyResponse:  constant.EmptyResponseMessage,
	apperr.KindProviderTimeout:        constant.TimeoutMessage,
	apperr.KindProviderFailure:        constant.ProviderFailureMessage,
}

// UserFacingError replaces provider messages with guidance for end users,
// keeping the classification and retry hint.
func UserFacingError(err error) error {
	ae, ok := apperr.As(err)
	if !ok {
		return apperr.Wrap(apperr.KindProviderFailure, constant.ProviderFailureMessage, err)
	}
	msg, ok := messageByKind[ae.Kind]
	if !ok {
		return err
	}
	return &apperr.Error{Kind: ae.Kind, Message: msg, RetryAfter: ae.RetryAfter, Err: ae}
}
