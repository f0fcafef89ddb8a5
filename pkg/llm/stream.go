package llm

import (
	"context"
	"strings"

	"docchat-be/pkg/apperr"
)

// Stream is a finite, non-restartable sequence of answer chunks.
//
//	for s.Next() {
//		write(s.Chunk())
//	}
//	if err := s.Err(); err != nil { ... }
//
// After Next returns false the stream is terminal: Err is nil when the answer
// completed. Close may be called at any time and releases the provider connection.
type Stream struct {
	ctx      context.Context
	cancel   context.CancelFunc
	tokens   <-chan StreamToken
	classify func(error) error

	chunk    string
	text     strings.Builder
	finished bool
	pending  bool
	err      error
}

func newStream(ctx context.Context, cancel context.CancelFunc, tokens <-chan StreamToken, classify func(error) error) *Stream {
	return &Stream{
		ctx:      ctx,
		cancel:   cancel,
		tokens:   tokens,
		classify: classify,
	}
}

// NewStaticStream yields text as a single chunk, for answers produced without
// a provider call.
func NewStaticStream(text string) *Stream {
	ch := make(chan StreamToken, 1)
	ch <- StreamToken{Content: text, Done: true}
	close(ch)
	return newStream(context.Background(), func() {}, ch, func(err error) error { return err })
}

// Next advances to the next chunk. It returns false once the stream is done,
// failed or closed.
func (s *Stream) Next() bool {
	if s.finished {
		return false
	}
	if s.pending {
		s.finish(nil)
		return false
	}

	for {
		var (
			tok StreamToken
			ok  bool
		)
		select {
		case tok, ok = <-s.tokens:
		case <-s.ctx.Done():
			s.finish(s.classify(s.ctx.Err()))
			return false
		}

		if !ok {
			s.finish(nil)
			return false
		}
		if tok.Error != nil {
			s.finish(s.classify(tok.Error))
			return false
		}
		if tok.Content != "" {
			s.chunk = tok.Content
			s.text.WriteString(tok.Content)
			s.pending = tok.Done
			return true
		}
		if tok.Done {
			s.finish(nil)
			return false
		}
	}
}

func (s *Stream) finish(err error) {
	if s.finished {
		return
	}
	s.finished = true
	s.chunk = ""
	if err == nil && strings.TrimSpace(s.text.String()) == "" {
		err = s.classify(ErrEmptyResponse)
	}
	s.err = err
	s.cancel()
}

// Chunk is the text delivered by the last successful Next.
func (s *Stream) Chunk() string {
	return s.chunk
}

// Err reports why the stream stopped; nil means the answer is complete.
func (s *Stream) Err() error {
	return s.err
}

// Completed reports a terminal stream that delivered the whole answer.
func (s *Stream) Completed() bool {
	return s.finished && s.err == nil
}

// Text returns everything received so far.
func (s *Stream) Text() string {
	return s.text.String()
}

// Close cancels an unfinished stream. Closing a completed stream is a no-op.
func (s *Stream) Close() {
	if s.finished {
		return
	}
	s.finished = true
	s.chunk = ""
	s.err = apperr.New(apperr.KindCanceled, "stream closed before completion")
	s.cancel()
}
