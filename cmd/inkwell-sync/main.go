// Command inkwell-sync runs one sync cycle against an inkwell feed and
// materializes the posts as markdown files in a local content directory.
// It is the reference consumer: static-site builds run it on a schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/inkwellhq/inkwell/syncclient"
)

func main() {
	_ = godotenv.Load()

	baseURL := flag.String("url", env("INKWELL_URL", "http://localhost:8080"), "feed base URL")
	siteID := flag.String("site", env("INKWELL_SITE", ""), "site ID to sync")
	apiKey := flag.String("key", env("INKWELL_API_KEY", ""), "site API key")
	outDir := flag.String("out", "content", "output directory for markdown files")
	statePath := flag.String("state", ".inkwell-sync.json", "sync state file")
	fullEvery := flag.Duration("full-every", 24*time.Hour, "interval between full reconciliation passes")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *siteID == "" || *apiKey == "" {
		fmt.Fprintln(os.Stderr, "usage: inkwell-sync -site <site-id> -key <api-key> [-url ...] [-out ...]")
		os.Exit(2)
	}

	lvl := slog.LevelInfo
	if *verbose {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logger.Error("create output dir", "error", err)
		os.Exit(1)
	}

	writer := &contentWriter{dir: *outDir}
	syncer := &syncclient.Syncer{
		Client: &syncclient.Client{
			BaseURL: *baseURL,
			SiteID:  *siteID,
			APIKey:  *apiKey,
		},
		Store:            &syncclient.FileStateStore{Path: *statePath},
		FullSyncInterval: *fullEvery,
		Logger:           logger,
		Callbacks: syncclient.Callbacks{
			OnCreate:   writer.write,
			OnUpdate:   writer.write,
			OnDelete:   writer.remove,
			OnRedirect: writer.redirect,
		},
	}

	stats, err := syncer.Run(ctx)
	if err != nil {
		logger.Error("sync failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("checked=%d created=%d updated=%d skipped=%d deleted=%d redirects=%d errors=%d full=%v duration=%s\n",
		stats.Checked, stats.Created, stats.Updated, stats.Skipped, stats.Deleted,
		stats.Redirects, len(stats.Errors), stats.FullSync, stats.Duration.Round(time.Millisecond))
}

// contentWriter materializes feed posts as markdown files named by post ID,
// with a small front-matter block. Files are keyed by ID, not slug, so a
// rename never orphans a file.
type contentWriter struct {
	dir string
}

func (c *contentWriter) path(postID string) string {
	return filepath.Join(c.dir, postID+".md")
}

func (c *contentWriter) write(_ context.Context, p *syncclient.FeedPost) error {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %q\n", p.Title)
	fmt.Fprintf(&b, "slug: %q\n", p.Slug)
	if len(p.Tags) > 0 {
		fmt.Fprintf(&b, "tags: [%s]\n", strings.Join(p.Tags, ", "))
	}
	if p.PublishedAt != nil {
		fmt.Fprintf(&b, "date: %s\n", time.UnixMilli(*p.PublishedAt).UTC().Format(time.RFC3339))
	}
	b.WriteString("---\n\n")
	b.WriteString(p.BodyMarkdown)
	b.WriteString("\n")
	return os.WriteFile(c.path(p.ID), []byte(b.String()), 0o644)
}

func (c *contentWriter) remove(_ context.Context, postID string) error {
	err := os.Remove(c.path(postID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (c *contentWriter) redirect(_ context.Context, from, to string) error {
	f, err := os.OpenFile(filepath.Join(c.dir, "_redirects"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "/%s /%s 301\n", from, to)
	return err
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
