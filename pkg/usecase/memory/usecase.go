// Package memory assembles the message list sent to a completion model
// from per-chat conversation history: semantically similar past turns,
// the most recent turns, and the new user message. It also writes each
// completed interaction back into the history store.
package memory

import (
	_ "embed"

	"github.com/m-mizutani/kioku/pkg/repository"
)

//go:embed prompt/system.md
var defaultSystemPrompt string

// UseCase provides retrieval, prompt assembly, and interaction recording
// over a turn repository. It holds no per-chat state; one instance serves
// any number of concurrent chats.
type UseCase struct {
	repo         repository.Repository
	cfg          Config
	systemPrompt string
}

type Option func(*UseCase)

// WithSystemPrompt replaces the embedded default instruction template
func WithSystemPrompt(prompt string) Option {
	return func(uc *UseCase) {
		uc.systemPrompt = prompt
	}
}

// New creates a memory UseCase. cfg should already be normalized; see
// Config.Normalize.
func New(repo repository.Repository, cfg Config, opts ...Option) *UseCase {
	uc := &UseCase{
		repo:         repo,
		cfg:          cfg,
		systemPrompt: defaultSystemPrompt,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
