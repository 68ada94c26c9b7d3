package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"google.golang.org/genai"
)

func setupGemini(t *testing.T) *adapter.GeminiClient {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewGemini(ctx, projectID, "us-central1")
	gt.NoError(t, err)
	return client
}

func TestGenerateContent(t *testing.T) {
	client := setupGemini(t)
	ctx := context.Background()

	contents := []*genai.Content{
		genai.NewContentFromText("Hello, what is the capital of France?", genai.RoleUser),
	}

	resp, err := client.GenerateContent(ctx, contents, nil)
	gt.NoError(t, err)

	if resp == nil ||
		len(resp.Candidates) == 0 ||
		resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 ||
		resp.Candidates[0].Content.Parts[0].Text == "" {
		t.Fatal("unexpected response")
	}
}

func TestEmbedding(t *testing.T) {
	client := setupGemini(t)
	ctx := context.Background()

	vector, err := client.Embedding(ctx, "I like trains")
	gt.NoError(t, err)
	gt.A(t, vector).Longer(0)

	// All embeddings of one deployment share the same dimensionality.
	other, err := client.Embedding(ctx, "the weather is nice today")
	gt.NoError(t, err)
	gt.Equal(t, len(vector), len(other))
}
