package inbox

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/dagaz/internal/diary"
	"github.com/starford/dagaz/internal/models"
)

// Processor is the slice of the diary pipeline the watcher needs.
type Processor interface {
	ProcessEntry(ctx context.Context, text, source string, extraTags []string) (*diary.Result, error)
}

// settleDelay gives writers time to finish before a dropped file is read.
const settleDelay = 200 * time.Millisecond

// Watch processes every .txt file dropped into the inbox until ctx is
// cancelled. It first sweeps files that were dropped while the service
// was down, then reacts to fsnotify events. Files are removed only
// after successful processing, so failures are retried on next sweep.
func Watch(ctx context.Context, provider Provider, root string, proc Processor, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}
	logger.Info("inbox: watching", slog.String("root", root))

	sweep(ctx, provider, proc, logger)

	// Debounce per-file: a drop may emit several write events.
	pending := make(map[string]*time.Timer)
	fire := make(chan string, 64)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("inbox: stopped")
			return nil

		case name := <-fire:
			delete(pending, name)
			ingest(ctx, provider, proc, name, logger)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, ".txt") {
				continue
			}
			if t, ok := pending[name]; ok {
				t.Reset(settleDelay)
				continue
			}
			n := name
			pending[name] = time.AfterFunc(settleDelay, func() {
				select {
				case fire <- n:
				case <-ctx.Done():
				}
			})

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("inbox: watcher error", slog.String("error", err.Error()))
		}
	}
}

// sweep ingests every file already present in the inbox.
func sweep(ctx context.Context, provider Provider, proc Processor, logger *slog.Logger) {
	names, err := provider.List()
	if err != nil {
		logger.Warn("inbox: sweep list failed", slog.String("error", err.Error()))
		return
	}
	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		ingest(ctx, provider, proc, name, logger)
	}
}

// ingest processes one dropped file and removes it on success.
func ingest(ctx context.Context, provider Provider, proc Processor, name string, logger *slog.Logger) {
	data, err := provider.Read(name)
	if err != nil {
		logger.Warn("inbox: read failed", slog.String("file", name), slog.String("error", err.Error()))
		return
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		logger.Info("inbox: skipping empty file", slog.String("file", name))
		_ = provider.Remove(name)
		return
	}

	res, err := proc.ProcessEntry(ctx, text, models.SourceInbox, nil)
	if err != nil {
		logger.Error("inbox: processing failed, file kept for retry",
			slog.String("file", name),
			slog.String("error", err.Error()))
		return
	}
	if err := provider.Remove(name); err != nil {
		logger.Warn("inbox: remove failed", slog.String("file", name), slog.String("error", err.Error()))
	}
	logger.Info("inbox: file processed",
		slog.String("file", name),
		slog.String("title", res.Title),
		slog.String("page_id", res.PageID))
}
