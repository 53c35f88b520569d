package diary

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/dagaz/internal/notion"
)

// RepairDates recomputes each page's date property from its canonical
// title and rewrites it where the two disagree. The title is the source
// of truth; the date property exists for sorting and range queries.
// Pages whose titles are not canonical are skipped. Returns how many
// pages were fixed.
func RepairDates(ctx context.Context, store notion.Store, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pages, err := store.QueryPages(ctx, notion.Filter{})
	if err != nil {
		return 0, fmt.Errorf("repair: scan pages: %w", err)
	}

	fixed := 0
	for _, p := range pages {
		want, err := ParseTitle(p.Title)
		if err != nil {
			logger.Debug("repair: skipping non-canonical title", slog.String("title", p.Title))
			continue
		}
		if sameDay(p.Date, want) {
			continue
		}
		if err := store.UpdatePageProperties(ctx, p.PageID, notion.Patch{Date: &want}); err != nil {
			logger.Error("repair: update failed",
				slog.String("page_id", p.PageID),
				slog.String("error", err.Error()))
			continue
		}
		fixed++
		logger.Info("repair: date fixed",
			slog.String("title", p.Title),
			slog.String("was", p.Date.Format("2006-01-02")),
			slog.String("now", want.Format("2006-01-02")))
	}
	return fixed, nil
}
