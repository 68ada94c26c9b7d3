package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Gemini is the interface to the completion and embedding models.
type Gemini interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Embedding(ctx context.Context, text string) ([]float64, error)
}

type GeminiClient struct {
	client          *genai.Client
	generativeModel string
	embeddingModel  string
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = model
	}
}

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = model
	}
}

func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:          client,
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *GeminiClient) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content")
	}
	return resp, nil
}

// Embedding returns the embedding vector for the given text. A provider
// failure or an empty response is an error; it is never substituted with
// a placeholder vector, which would silently corrupt similarity scores
// downstream.
func (g *GeminiClient) Embedding(ctx context.Context, text string) ([]float64, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content")
	}

	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, goerr.New("embedding provider returned no vector")
	}

	values := resp.Embeddings[0].Values
	vector := make([]float64, len(values))
	for i, v := range values {
		vector[i] = float64(v)
	}
	return vector, nil
}
