package session_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/repository"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/m-mizutani/kioku/pkg/usecase/session"
	"google.golang.org/genai"
)

// mockGemini is a mock implementation of adapter.Gemini for testing
type mockGemini struct {
	generateFunc  func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	embeddingFunc func(ctx context.Context, text string) ([]float64, error)
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, contents, config)
	}
	return nil, errors.New("not implemented")
}

func (m *mockGemini) Embedding(ctx context.Context, text string) ([]float64, error) {
	if m.embeddingFunc != nil {
		return m.embeddingFunc(ctx, text)
	}
	return nil, errors.New("not implemented")
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Role:  genai.RoleModel,
					Parts: []*genai.Part{{Text: text}},
				},
			},
		},
	}
}

// mockStorage records written transcript objects in memory
type mockStorage struct {
	objects map[string]*bytes.Buffer
	putErr  error
}

type nopWriteCloser struct{ *bytes.Buffer }

func (nopWriteCloser) Close() error { return nil }

func (m *mockStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	if m.objects == nil {
		m.objects = map[string]*bytes.Buffer{}
	}
	buf := &bytes.Buffer{}
	m.objects[key] = buf
	return nopWriteCloser{buf}, nil
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func newTestSession(t *testing.T, repo *repository.Memory, gemini *mockGemini) *session.Session {
	t.Helper()
	uc := memory.New(repo, memory.DefaultConfig(), memory.WithSystemPrompt("test instruction"))
	s, err := session.New(session.NewInput{
		Memory: uc,
		Gemini: gemini,
		ChatID: "42",
	})
	gt.NoError(t, err)
	return s
}

func TestSendPipeline(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	var captured []*genai.Content
	var capturedConfig *genai.GenerateContentConfig

	gemini := &mockGemini{
		embeddingFunc: func(ctx context.Context, text string) ([]float64, error) {
			return []float64{1, 0, 0}, nil
		},
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			captured = contents
			capturedConfig = config
			return textResponse("hello from the model"), nil
		},
	}

	s := newTestSession(t, repo, gemini)

	reply, err := s.Send(ctx, "hello there")
	gt.NoError(t, err)
	gt.Equal(t, reply, "hello from the model")

	// System instruction travels separately from the content list.
	gt.V(t, capturedConfig).NotNil()
	gt.Equal(t, capturedConfig.SystemInstruction.Parts[0].Text, "test instruction")

	// The last content is the new user message.
	gt.A(t, captured).Longer(0)
	gt.Equal(t, captured[len(captured)-1].Parts[0].Text, "hello there")

	// Both sides of the interaction are persisted with a shared timestamp.
	turns, err := repo.RecentTurns(ctx, "42", 10)
	gt.NoError(t, err)
	gt.A(t, turns).Length(2)
	gt.Equal(t, turns[0].Timestamp, turns[1].Timestamp)
	gt.True(t, turns[0].Timestamp > 0)
}

func TestSendEmbeddingFailureAborts(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	gemini := &mockGemini{
		embeddingFunc: func(ctx context.Context, text string) ([]float64, error) {
			return nil, errors.New("embedding provider down")
		},
	}

	s := newTestSession(t, repo, gemini)

	_, err := s.Send(ctx, "hello")
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("failed to embed user message")
	gt.Equal(t, repo.Count(), 0)
}

func TestSendCompletionFailureAborts(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	gemini := &mockGemini{
		embeddingFunc: func(ctx context.Context, text string) ([]float64, error) {
			return []float64{1}, nil
		},
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("model unavailable")
		},
	}

	s := newTestSession(t, repo, gemini)

	_, err := s.Send(ctx, "hello")
	gt.Error(t, err)
	gt.Equal(t, repo.Count(), 0)
}

func TestSendReplyEmbeddingFailureSkipsRecording(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	gemini := &mockGemini{
		embeddingFunc: func(ctx context.Context, text string) ([]float64, error) {
			if strings.Contains(text, "model reply") {
				return nil, errors.New("embedding provider down")
			}
			return []float64{1}, nil
		},
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("model reply"), nil
		},
	}

	s := newTestSession(t, repo, gemini)

	// The reply is still returned, but nothing is written: storing the
	// pair with a fabricated assistant vector would corrupt retrieval.
	reply, err := s.Send(ctx, "hello")
	gt.NoError(t, err)
	gt.Equal(t, reply, "model reply")
	gt.Equal(t, repo.Count(), 0)
}

func TestSendWriteFailureStillReplies(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	repo.PutErr = repository.ErrStoreUnavailable

	gemini := &mockGemini{
		embeddingFunc: func(ctx context.Context, text string) ([]float64, error) {
			return []float64{1}, nil
		},
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("still here"), nil
		},
	}

	s := newTestSession(t, repo, gemini)

	reply, err := s.Send(ctx, "hello")
	gt.NoError(t, err)
	gt.Equal(t, reply, "still here")
}

func TestSendExportsTranscript(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	storage := &mockStorage{}

	gemini := &mockGemini{
		embeddingFunc: func(ctx context.Context, text string) ([]float64, error) {
			return []float64{1}, nil
		},
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("reply"), nil
		},
	}

	uc := memory.New(repo, memory.DefaultConfig())
	s, err := session.New(session.NewInput{
		Memory:  uc,
		Gemini:  gemini,
		Storage: storage,
		ChatID:  "42",
	})
	gt.NoError(t, err)

	_, err = s.Send(ctx, "hello")
	gt.NoError(t, err)

	gt.Equal(t, len(storage.objects), 1)
	for key, buf := range storage.objects {
		gt.S(t, key).Contains("transcripts/42/")

		var doc struct {
			ChatID string        `json:"chat_id"`
			Turns  []*model.Turn `json:"turns"`
		}
		gt.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
		gt.Equal(t, doc.ChatID, "42")
		gt.A(t, doc.Turns).Length(2)
		gt.Equal(t, doc.Turns[0].Role, model.RoleUser)
		gt.Equal(t, doc.Turns[1].Role, model.RoleAssistant)
	}
}

func TestSendExportFailureIsAbsorbed(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	storage := &mockStorage{putErr: errors.New("bucket gone")}

	gemini := &mockGemini{
		embeddingFunc: func(ctx context.Context, text string) ([]float64, error) {
			return []float64{1}, nil
		},
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("reply"), nil
		},
	}

	uc := memory.New(repo, memory.DefaultConfig())
	s, err := session.New(session.NewInput{
		Memory:  uc,
		Gemini:  gemini,
		Storage: storage,
		ChatID:  "42",
	})
	gt.NoError(t, err)

	reply, err := s.Send(ctx, "hello")
	gt.NoError(t, err)
	gt.Equal(t, reply, "reply")

	// The interaction itself is still recorded.
	gt.Equal(t, repo.Count(), 2)
}

func TestNewValidation(t *testing.T) {
	uc := memory.New(repository.NewMemory(), memory.DefaultConfig())
	gemini := &mockGemini{}

	t.Run("missing memory", func(t *testing.T) {
		_, err := session.New(session.NewInput{Gemini: gemini, ChatID: "1"})
		gt.Error(t, err)
	})

	t.Run("missing gemini", func(t *testing.T) {
		_, err := session.New(session.NewInput{Memory: uc, ChatID: "1"})
		gt.Error(t, err)
	})

	t.Run("missing chat ID", func(t *testing.T) {
		_, err := session.New(session.NewInput{Memory: uc, Gemini: gemini})
		gt.Error(t, err)
	})
}
