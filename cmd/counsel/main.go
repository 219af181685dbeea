// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/poiesic/counsel"
	"github.com/poiesic/counsel/config"
	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/reembed"
	"github.com/poiesic/counsel/telemetry"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "counsel",
		Usage: "Retrieval-augmented question answering over legal documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides server.address)",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask a question",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "session",
						Aliases: []string{"s"},
						Usage:   "Continue an existing session",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search documents by keyword and meaning",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "Only return documents in this category",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
				},
			},
			{
				Name:   "history",
				Usage:  "Show the messages of a session",
				Action: historyCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "session",
						Aliases:  []string{"s"},
						Usage:    "Session ID",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of messages",
						Value: 50,
					},
				},
			},
			{
				Name:      "import",
				Usage:     "Register and parse the text documents in a file or directory",
				ArgsUsage: "<path>",
				Action:    importCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "Category assigned to every imported document",
					},
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Wait until every document has been parsed",
						Value: true,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for parsing",
						Value: 10 * time.Minute,
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all document chunks with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 32,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per batch",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

func openEngine(c *cli.Context, opts ...counsel.Option) (*counsel.Engine, *config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	e, err := counsel.Open(c.Context, cfg, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return e, cfg, nil
}

func serveCommand(c *cli.Context) error {
	e, cfg, err := openEngine(c, counsel.WithMetrics(telemetry.New()))
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := e.Documents().Reindex(c.Context); err != nil {
		return fmt.Errorf("failed to rebuild keyword index: %w", err)
	}

	srv, err := e.NewServer()
	if err != nil {
		return err
	}

	addr := cfg.Server.Address
	if c.IsSet("addr") {
		addr = c.String("addr")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Start(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func askCommand(c *cli.Context) error {
	question := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return errors.New("a question is required")
	}

	e, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	answer, err := e.Chat().Ask(c.Context, c.String("session"), question)
	if err != nil {
		return err
	}

	out := c.App.Writer
	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(out, "%s %s\n", boldGreen("Session:"), answer.SessionId)
	fmt.Fprintln(out, boldCyan("Answer:"))
	fmt.Fprintln(out, answer.Answer)
	fmt.Fprintln(out)
	if answer.Cached {
		fmt.Fprintln(out, faint("(cached answer)"))
	}
	fmt.Fprintln(out, faint(fmt.Sprintf("model %s, %d tokens, %dms", answer.Model, answer.TokensUsed, answer.ResponseTimeMs)))

	if len(answer.References) > 0 {
		fmt.Fprintln(out, boldCyan("References:"))
		for i, ref := range answer.References {
			title := ref.DocumentTitle
			if title == "" {
				title = fmt.Sprintf("document %d", ref.DocumentId)
			}
			fmt.Fprintf(out, "  %d. %s %s (%.2f)\n", i+1, title, ref.ChunkPosition, ref.SimilarityScore)
		}
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a query is required")
	}

	e, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	results, err := e.Searcher().HybridSearch(c.Context, query, c.String("category"), c.Int("limit"))
	if err != nil {
		return err
	}

	out := c.App.Writer
	if len(results) == 0 {
		fmt.Fprintln(out, "No matching documents")
		return nil
	}
	bold := color.New(color.Bold).SprintFunc()
	for i, r := range results {
		fmt.Fprintf(out, "%d. %s [%s] %s score=%.2f\n", i+1, bold(r.Title), r.Category, r.Source, r.Score)
		if r.ChunkText != "" {
			fmt.Fprintf(out, "   %s %s\n", r.ChunkPosition, excerpt(r.ChunkText, 120))
		}
	}
	return nil
}

func historyCommand(c *cli.Context) error {
	e, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	messages, err := e.Chat().History(c.Context, c.String("session"), c.Int("limit"))
	if err != nil {
		return err
	}

	out := c.App.Writer
	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	for _, m := range messages {
		speaker := boldGreen(m.Role.String())
		if m.Role == core.RoleAssistant {
			speaker = boldCyan(m.Role.String())
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", m.CreatedAt.Local().Format(time.DateTime), speaker, m.Content)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if err := validateReembedConfig(reembedConfig); err != nil {
		return err
	}

	e, cfg, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	reembedder, err := e.NewReembedder(reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	progress := c.App.ErrWriter
	fmt.Fprintf(progress, "Database: %s\n", cfg.Storage.Path)
	fmt.Fprintf(progress, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(progress, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(progress)

	if _, err := reembedder.Run(c.Context); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func validateReembedConfig(cfg *reembed.Config) error {
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if cfg.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if cfg.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}
	return nil
}

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func setupLogger(c *cli.Context) error {
	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	installLogger(os.Stderr, level)
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
}

func installLogger(w io.Writer, level slog.Level) {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
