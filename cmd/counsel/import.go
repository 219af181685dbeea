package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/documents"
	"github.com/urfave/cli/v2"
)

var importExtensions = map[string]bool{".txt": true, ".md": true, ".text": true}

const pollInterval = 200 * time.Millisecond

func importCommand(c *cli.Context) error {
	root := c.Args().First()
	if root == "" {
		return errors.New("a file or directory is required")
	}
	category := c.String("category")

	e, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	docs := e.Documents()
	out := c.App.Writer
	var pending []core.ID
	for path, walkErr := range documentFiles(root) {
		if walkErr != nil {
			return walkErr
		}
		title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		doc, err := docs.Register(c.Context, &core.Document{
			Title:    title,
			Category: category,
			FilePath: path,
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", path, err)
		}
		if err := docs.TriggerParse(c.Context, doc.Id); err != nil {
			fmt.Fprintf(out, "%s: parse rejected: %v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "%s: registered as document %d\n", path, doc.Id)
		pending = append(pending, doc.Id)
	}

	if len(pending) == 0 || !c.Bool("wait") {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()
	return waitForParsing(ctx, docs, pending, func(doc *core.Document) {
		if doc.Status == core.StatusFailed {
			fmt.Fprintf(out, "%s: failed: %s\n", doc.Title, doc.ParseError)
			return
		}
		fmt.Fprintf(out, "%s: %d chunks indexed\n", doc.Title, doc.VectorCount)
	})
}

// documentFiles yields the importable files under root in lexical order.
// A root naming a single file yields that file.
func documentFiles(root string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !importExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			if !yield(path, nil) {
				return fs.SkipAll
			}
			return nil
		})
		if err != nil {
			yield("", err)
		}
	}
}

// waitForParsing polls until every document leaves the pending and parsing states.
func waitForParsing(ctx context.Context, docs *documents.Service, ids []core.ID, done func(*core.Document)) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	remaining := ids
	for {
		next := remaining[:0]
		for _, id := range remaining {
			doc, err := docs.Get(ctx, id)
			if err != nil {
				return err
			}
			if doc.Status == core.StatusCompleted || doc.Status == core.StatusFailed {
				done(doc)
				continue
			}
			next = append(next, id)
		}
		remaining = next
		if len(remaining) == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%d documents still parsing: %w", len(remaining), ctx.Err())
		case <-ticker.C:
		}
	}
}
