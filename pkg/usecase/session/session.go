// Package session runs one chat's interaction pipeline: embed the
// incoming message, assemble the prompt from conversation memory, call
// the completion model, and record the finished turn pair.
package session

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"google.golang.org/genai"
)

// Session handles interactions for a single chat. Callers are expected
// to send one message at a time per chat; separate chats can run fully
// in parallel with their own Session instances.
type Session struct {
	memory  *memory.UseCase
	gemini  adapter.Gemini
	storage adapter.Storage

	chatID model.ChatID
}

// NewInput contains dependencies for a chat session. Storage is
// optional: when set, each completed interaction is mirrored as a
// transcript object.
type NewInput struct {
	Memory  *memory.UseCase
	Gemini  adapter.Gemini
	Storage adapter.Storage
	ChatID  model.ChatID
}

func New(input NewInput) (*Session, error) {
	if input.Memory == nil {
		return nil, goerr.New("memory usecase is required")
	}
	if input.Gemini == nil {
		return nil, goerr.New("gemini adapter is required")
	}
	if input.ChatID == "" {
		return nil, goerr.New("chat ID is required")
	}

	return &Session{
		memory:  input.Memory,
		gemini:  input.Gemini,
		storage: input.Storage,
		chatID:  input.ChatID,
	}, nil
}

// Send runs the full pipeline for one incoming message and returns the
// assistant's reply. Failures before the completion call abort the
// interaction; failures after it (history write, transcript export) are
// logged and absorbed because the reply is already on its way to the
// user.
func (s *Session) Send(ctx context.Context, message string) (string, error) {
	logger := logging.From(ctx)

	embedding, err := s.gemini.Embedding(ctx, message)
	if err != nil {
		return "", goerr.Wrap(err, "failed to embed user message", goerr.V("chat_id", s.chatID))
	}

	userTurn := &model.Turn{
		ChatID:    s.chatID,
		Role:      model.RoleUser,
		Content:   message,
		Embedding: embedding,
	}

	prompt, err := s.memory.Assemble(ctx, userTurn)
	if err != nil {
		return "", goerr.Wrap(err, "failed to assemble prompt", goerr.V("chat_id", s.chatID))
	}

	contents, config := toGenai(prompt)
	resp, err := s.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate reply", goerr.V("chat_id", s.chatID))
	}

	reply := extractText(resp)
	if reply == "" {
		return "", goerr.New("completion model returned no text", goerr.V("chat_id", s.chatID))
	}

	replyEmbedding, err := s.gemini.Embedding(ctx, reply)
	if err != nil {
		// The reply is still delivered; an interaction without a usable
		// embedding is dropped from history rather than stored with a
		// fabricated vector.
		logger.Warn("failed to embed assistant reply, interaction not recorded",
			"chat_id", s.chatID, "error", err)
		return reply, nil
	}

	assistantTurn := &model.Turn{
		ChatID:    s.chatID,
		Role:      model.RoleAssistant,
		Content:   reply,
		Embedding: replyEmbedding,
	}

	if s.memory.RecordInteraction(ctx, userTurn, assistantTurn) && s.storage != nil {
		if err := s.export(ctx, userTurn, assistantTurn); err != nil {
			logger.Warn("failed to export transcript", "chat_id", s.chatID, "error", err)
		}
	}

	return reply, nil
}

// toGenai converts an assembled prompt into genai contents. The leading
// system instruction becomes the request's system instruction; every
// other message is carried in the content list (system-role section
// labels ride along as user-role content, since the Gemini API only
// knows user and model roles inside the history).
func toGenai(prompt model.Prompt) ([]*genai.Content, *genai.GenerateContentConfig) {
	var config *genai.GenerateContentConfig

	contents := make([]*genai.Content, 0, len(prompt))
	for i, msg := range prompt {
		if i == 0 && msg.Role == model.RoleSystem {
			config = &genai.GenerateContentConfig{
				SystemInstruction: genai.NewContentFromText(msg.Content, ""),
			}
			continue
		}

		var role genai.Role = genai.RoleUser
		if msg.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	return contents, config
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
