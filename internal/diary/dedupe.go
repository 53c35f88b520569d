package diary

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/notion"
)

// DedupeResult reports what a deduplication run changed.
type DedupeResult struct {
	MergedCount  int `json:"merged_count"`
	DeletedCount int `json:"deleted_count"`
}

// Deduplicator consolidates pages that ended up sharing one canonical
// title, typically after two concurrent writes raced past the Locator.
type Deduplicator struct {
	store  notion.Store
	logger *slog.Logger
}

// NewDeduplicator creates a Deduplicator.
func NewDeduplicator(store notion.Store, logger *slog.Logger) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{store: store, logger: logger}
}

// Run scans every page, groups them by exact title, and folds each
// group of duplicates into its most-recently-dated member. Content is
// concatenated (empty bodies skipped) and tags are unioned across the
// group; the remaining pages are archived.
//
// The run is non-atomic: a crash partway through leaves some groups
// merged and others not. Re-running is safe and convergent, since
// unique titles are no-ops and partial groups keep shrinking toward one
// page per title. Per-group failures are logged and skipped so one bad
// page cannot abort the whole batch.
func (d *Deduplicator) Run(ctx context.Context) (DedupeResult, error) {
	pages, err := d.store.QueryPages(ctx, notion.Filter{})
	if err != nil {
		return DedupeResult{}, fmt.Errorf("dedupe: scan pages: %w", err)
	}

	groups := make(map[string][]models.DiaryPage)
	order := make([]string, 0)
	for _, p := range pages {
		if _, ok := groups[p.Title]; !ok {
			order = append(order, p.Title)
		}
		groups[p.Title] = append(groups[p.Title], p)
	}

	var res DedupeResult
	for _, title := range order {
		group := groups[title]
		if len(group) < 2 {
			continue
		}
		archived, err := d.foldGroup(ctx, group)
		res.DeletedCount += archived
		if err != nil {
			d.logger.Error("dedupe: group failed",
				slog.String("title", title),
				slog.String("error", err.Error()))
			continue
		}
		res.MergedCount++
		d.logger.Info("dedupe: group merged",
			slog.String("title", title),
			slog.Int("pages", len(group)))
	}
	return res, nil
}

// foldGroup merges a group of same-titled pages into the one with the
// latest date and archives the rest. It returns how many pages were
// archived before any error.
func (d *Deduplicator) foldGroup(ctx context.Context, group []models.DiaryPage) (int, error) {
	sort.SliceStable(group, func(i, j int) bool {
		return group[i].Date.After(group[j].Date)
	})
	master := group[0]

	parts := make([]string, 0, len(group))
	if body := strings.TrimSpace(master.Content); body != "" {
		parts = append(parts, body)
	}
	tags := master.Tags
	for _, p := range group[1:] {
		if body := strings.TrimSpace(p.Content); body != "" {
			parts = append(parts, body)
		}
		tags = UnionTags(tags, p.Tags)
	}
	content := strings.Join(parts, "\n\n")

	if err := d.store.UpdatePageProperties(ctx, master.PageID, notion.Patch{
		Content: &content,
		Tags:    tags,
	}); err != nil {
		return 0, fmt.Errorf("update master %s: %w", master.PageID, err)
	}

	archived := 0
	for _, p := range group[1:] {
		if err := d.store.ArchivePage(ctx, p.PageID); err != nil {
			return archived, fmt.Errorf("archive %s: %w", p.PageID, err)
		}
		archived++
	}
	return archived, nil
}
