package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

func recentCommand() *cli.Command {
	var (
		cfg    config
		chatID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "chat-id",
			Aliases:     []string{"i"},
			Usage:       "Chat ID to list recent turns for",
			Sources:     cli.EnvVars("KIOKU_CHAT_ID"),
			Destination: &chatID,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "recent",
		Usage: "Show the recency window of a chat",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggedContext(ctx)

			repo, err := cfg.newRepository()
			if err != nil {
				return err
			}

			uc := memory.New(repo, cfg.memoryConfig(ctx))

			turns, err := uc.RetrieveRecent(ctx, model.ChatID(chatID))
			if err != nil {
				return goerr.Wrap(err, "failed to retrieve recent turns")
			}

			if len(turns) == 0 {
				fmt.Fprintf(c.Root().Writer, "No turns found for chat %s\n", chatID)
				return nil
			}

			for _, turn := range turns {
				at := time.Unix(int64(turn.Timestamp), 0).Format("2006-01-02 15:04:05")
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s\n", at, turn.Role, turn.Content)
			}

			return nil
		},
	}
}
