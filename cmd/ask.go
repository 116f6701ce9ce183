package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mirag/ragchat/internal/app"
	"github.com/mirag/ragchat/internal/chat"
	"github.com/mirag/ragchat/internal/config"
	"github.com/mirag/ragchat/internal/log"
)

// runAsk answers a one-shot grounded question against the selected engine.
// It requires a previously stored OAuth credential (sign in via the serve
// mode's auth flow first).
func runAsk(logger log.Logger, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("usage: ragchat ask <question>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	if !a.Auth.Authenticated(ctx) {
		fmt.Fprintln(os.Stderr, "Error: no stored Google credential")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run `ragchat serve` and sign in through the web UI first.")
		return fmt.Errorf("not authenticated")
	}

	msg, err := a.Chat.Send(ctx, question)
	if err != nil {
		if errors.Is(err, chat.ErrNoBinding) {
			return fmt.Errorf("no engine selected: configure default_corpus_id or select an engine via the API")
		}
		return fmt.Errorf("generating answer: %w", err)
	}

	fmt.Println(msg.Content)
	printSources(msg.Sources)

	return nil
}

// printSources lists the retrieval citations in order, repeats included.
func printSources(sources []chat.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Sources:")
	for i, s := range sources {
		label := s.Title
		if label == "" {
			label = s.URI
		}
		fmt.Printf("  [%d] %s\n", i+1, label)
	}
}
