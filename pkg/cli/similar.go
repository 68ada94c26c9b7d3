package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

func similarCommand() *cli.Command {
	var (
		cfg    config
		chatID string
		query  string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "chat-id",
			Aliases:     []string{"i"},
			Usage:       "Chat ID to search in",
			Sources:     cli.EnvVars("KIOKU_CHAT_ID"),
			Destination: &chatID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "Text to find similar past turns for",
			Sources:     cli.EnvVars("KIOKU_SIMILAR_QUERY"),
			Destination: &query,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "similar",
		Usage: "Find past turns similar to a query text",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggedContext(ctx)

			repo, err := cfg.newRepository()
			if err != nil {
				return err
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			embedding, err := gemini.Embedding(ctx, query)
			if err != nil {
				return goerr.Wrap(err, "failed to embed query")
			}

			uc := memory.New(repo, cfg.memoryConfig(ctx))

			scored, err := uc.RetrieveSimilar(ctx, model.ChatID(chatID), embedding)
			if err != nil {
				return goerr.Wrap(err, "failed to search similar turns")
			}

			if len(scored) == 0 {
				fmt.Fprintf(c.Root().Writer, "No similar turns found\n")
				return nil
			}

			fmt.Fprintf(c.Root().Writer, "Found %d similar turns:\n\n", len(scored))
			for i, st := range scored {
				fmt.Fprintf(c.Root().Writer, "%d. [%.3f] %s: %s\n", i+1, st.Similarity, st.Turn.Role, st.Turn.Content)
			}

			return nil
		},
	}
}
