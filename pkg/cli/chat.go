package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/m-mizutani/kioku/pkg/usecase/session"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg          config
		chatID       string
		exportBucket string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "chat-id",
			Aliases:     []string{"i"},
			Usage:       "Chat ID to converse in",
			Sources:     cli.EnvVars("KIOKU_CHAT_ID"),
			Destination: &chatID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "export-bucket",
			Usage:       "Cloud Storage bucket for interaction transcripts (disabled when empty)",
			Sources:     cli.EnvVars("KIOKU_EXPORT_BUCKET"),
			Destination: &exportBucket,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive conversation with memory-backed context",
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

			input := session.NewInput{
				Gemini: gemini,
				ChatID: model.ChatID(chatID),
			}

			if exportBucket != "" {
				storage, err := cfg.newStorage(ctx, exportBucket)
				if err != nil {
					return err
				}
				input.Storage = storage
			}

			opts, err := cfg.memoryOptions()
			if err != nil {
				return err
			}
			input.Memory = memory.New(repo, cfg.memoryConfig(ctx), opts...)

			sess, err := session.New(input)
			if err != nil {
				return goerr.Wrap(err, "failed to create chat session")
			}

			rl, err := readline.New("> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize input")
			}
			defer rl.Close()

			fmt.Fprintf(c.Root().Writer, "Chat session started. Type 'exit' to quit.\n")

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				if line == "exit" {
					break
				}
				if line == "" {
					continue
				}

				wait := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				wait.Start()
				reply, err := sess.Send(ctx, line)
				wait.Stop()

				if err != nil {
					return goerr.Wrap(err, "failed to send message")
				}

				fmt.Fprintf(c.Root().Writer, "%s\n", reply)
			}

			fmt.Fprintf(c.Root().Writer, "\nChat session completed\n")
			return nil
		},
	}
}
