package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/repository"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel string

	// Repository
	project  string
	database string

	// Adapters
	geminiProject   string
	geminiLocation  string
	generativeModel string
	embeddingModel  string

	// Memory tunables
	topK            int64
	threshold       float64
	recentLimit     int64
	candidateWindow int64
	configPath      string
	promptFile      string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("KIOKU_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "generative-model",
			Usage:       "Gemini model used for replies",
			Sources:     cli.EnvVars("KIOKU_GENERATIVE_MODEL"),
			Destination: &cfg.generativeModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Gemini model used for embeddings",
			Sources:     cli.EnvVars("KIOKU_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
	}
}

// memoryFlags returns flags for the retrieval tunables
func memoryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "top-k",
			Usage:       "Maximum number of similar turns added to the prompt",
			Value:       memory.DefaultTopK,
			Sources:     cli.EnvVars("KIOKU_TOP_K"),
			Destination: &cfg.topK,
		},
		&cli.FloatFlag{
			Name:        "similarity-threshold",
			Usage:       "Minimum cosine similarity for a turn to be considered related",
			Value:       memory.DefaultSimilarityThreshold,
			Sources:     cli.EnvVars("KIOKU_SIMILARITY_THRESHOLD"),
			Destination: &cfg.threshold,
		},
		&cli.IntFlag{
			Name:        "recent-limit",
			Usage:       "Number of most recent turns added to the prompt",
			Value:       memory.DefaultRecentLimit,
			Sources:     cli.EnvVars("KIOKU_RECENT_LIMIT"),
			Destination: &cfg.recentLimit,
		},
		&cli.IntFlag{
			Name:        "candidate-window",
			Usage:       "Number of recent turns scored during similarity retrieval",
			Value:       memory.DefaultCandidateWindow,
			Sources:     cli.EnvVars("KIOKU_CANDIDATE_WINDOW"),
			Destination: &cfg.candidateWindow,
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML file with retrieval tunables (overrides the tunable flags)",
			Sources:     cli.EnvVars("KIOKU_MEMORY_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.StringFlag{
			Name:        "prompt-file",
			Usage:       "Path to a system instruction template replacing the built-in one",
			Sources:     cli.EnvVars("KIOKU_PROMPT_FILE"),
			Destination: &cfg.promptFile,
		},
	}
}

// loggedContext attaches a logger built from the log-level flag
func (cfg *config) loggedContext(ctx context.Context) context.Context {
	return logging.With(ctx, logging.New(cfg.logLevel, os.Stderr))
}

// newRepository creates a new repository instance
func (cfg *config) newRepository() (repository.Repository, error) {
	repo, err := repository.NewFirestore(cfg.project, cfg.database)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	project := cfg.geminiProject
	if project == "" {
		project = cfg.project
	}
	if project == "" {
		return nil, goerr.New("gemini-project or project is required")
	}

	var opts []adapter.GeminiOption
	if cfg.generativeModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.generativeModel))
	}
	if cfg.embeddingModel != "" {
		opts = append(opts, adapter.WithEmbeddingModel(cfg.embeddingModel))
	}

	gemini, err := adapter.NewGemini(ctx, project, cfg.geminiLocation, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini adapter")
	}
	return gemini, nil
}

// memoryConfig builds the normalized retrieval tunables
func (cfg *config) memoryConfig(ctx context.Context) memory.Config {
	if cfg.configPath != "" {
		return memory.LoadConfig(ctx, cfg.configPath).Normalize(ctx)
	}

	return memory.Config{
		TopK:                int(cfg.topK),
		SimilarityThreshold: cfg.threshold,
		RecentLimit:         int(cfg.recentLimit),
		CandidateWindow:     int(cfg.candidateWindow),
	}.Normalize(ctx)
}

// memoryOptions builds UseCase options from the prompt-file flag
func (cfg *config) memoryOptions() ([]memory.Option, error) {
	if cfg.promptFile == "" {
		return nil, nil
	}

	data, err := os.ReadFile(cfg.promptFile)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read prompt file", goerr.V("path", cfg.promptFile))
	}
	return []memory.Option{memory.WithSystemPrompt(string(data))}, nil
}

// newStorage creates a new Storage adapter instance
func (cfg *config) newStorage(ctx context.Context, bucketName string) (adapter.Storage, error) {
	if bucketName == "" {
		return nil, goerr.New("bucket name is required")
	}

	storage, err := adapter.NewStorage(ctx, bucketName)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}
