package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"docchat-be/internal/dto"
	"docchat-be/internal/service"
	"docchat-be/pkg/apperr"
	"docchat-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocuments struct {
	uploaded []dto.UploadFile
	session  string
	cleared  bool
}

func (f *fakeDocuments) Upload(ctx context.Context, session string, files []dto.UploadFile) (*dto.UploadDocumentsResponse, error) {
	f.session = session
	f.uploaded = append(f.uploaded, files...)
	names := make([]string, len(files))
	for i, file := range files {
		names[i] = file.Name
	}
	return &dto.UploadDocumentsResponse{Uploaded: names, Count: len(f.uploaded)}, nil
}

func (f *fakeDocuments) List(ctx context.Context, session string) (*dto.ListDocumentsResponse, error) {
	return &dto.ListDocumentsResponse{}, nil
}

func (f *fakeDocuments) Delete(ctx context.Context, session, name string) error {
	return apperr.New(apperr.KindNotFound, "document not found")
}

func (f *fakeDocuments) Reindex(ctx context.Context, session string) (*dto.ReindexResponse, error) {
	return &dto.ReindexResponse{Mode: "full", Count: len(f.uploaded)}, nil
}

func (f *fakeDocuments) ClearSession(ctx context.Context, session string) error {
	f.cleared = true
	return nil
}

func (f *fakeDocuments) NotifyExternalChange(session string) {}

type fakeChat struct {
	answer string
}

func (f *fakeChat) Ask(ctx context.Context, session string, req *dto.ChatRequest) (*dto.ChatResponse, error) {
	return &dto.ChatResponse{Answer: f.answer, Mode: "full", Files: []string{"cv.txt"}}, nil
}

func (f *fakeChat) AskStream(ctx context.Context, session string, req *dto.ChatRequest) (*service.ChatStream, error) {
	return &service.ChatStream{Stream: llm.NewStaticStream(f.answer), Files: []string{"cv.txt"}}, nil
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		session = "default"
		jsonOutput = false
		askStream = false
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func setupTestServices(t *testing.T) (*fakeDocuments, *fakeChat) {
	t.Helper()
	docs := &fakeDocuments{}
	chat := &fakeChat{answer: "Example University"}
	SetServices(docs, chat)
	t.Cleanup(func() { SetServices(nil, nil) })
	return docs, chat
}

func TestRootHasCommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"upload", "list", "delete", "reindex", "clear", "ask"} {
		assert.Contains(t, names, want)
	}
}

func TestUploadReadsFiles(t *testing.T) {
	docs, _ := setupTestServices(t)
	path := filepath.Join(t.TempDir(), "cv.txt")
	require.NoError(t, os.WriteFile(path, []byte("Education: BSc"), 0o644))

	out, err := execute(t, "upload", "--session", "alice", path)
	require.NoError(t, err)
	assert.Contains(t, out, "uploaded cv.txt")
	assert.Equal(t, "alice", docs.session)
	require.Len(t, docs.uploaded, 1)
	assert.Equal(t, "Education: BSc", string(docs.uploaded[0].Data))
}

func TestUploadMissingFile(t *testing.T) {
	setupTestServices(t)
	_, err := execute(t, "upload", filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestAsk(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "plain", args: []string{"ask", "where", "did", "they", "study?"}},
		{name: "stream", args: []string{"ask", "--stream", "where did they study?"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestServices(t)
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, "Example University")
			assert.Contains(t, out, "sources: cv.txt")
		})
	}
}

func TestDeleteNotFound(t *testing.T) {
	setupTestServices(t)
	_, err := execute(t, "delete", "missing.txt")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestClearAndList(t *testing.T) {
	docs, _ := setupTestServices(t)

	out, err := execute(t, "clear")
	require.NoError(t, err)
	assert.True(t, docs.cleared)
	assert.Contains(t, out, "cleared")

	out, err = execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No documents uploaded.")
}

func TestCommandsWithoutServices(t *testing.T) {
	SetServices(nil, nil)
	_, err := execute(t, "list")
	assert.EqualError(t, err, "document service not configured")
}
