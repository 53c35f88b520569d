package diary

import (
	"context"
	"time"

	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/notion"
)

// Locator finds the diary page for a given calendar date.
type Locator struct {
	store notion.Store
}

// NewLocator creates a Locator.
func NewLocator(store notion.Store) *Locator {
	return &Locator{store: store}
}

// FindByDate returns the page whose title exactly equals the canonical
// title for date, or nil when no such page exists. The store query is a
// substring prefilter only; the exact-match step is mandatory because
// "日記 2026/1/2" is a substring of "日記 2026/1/20".
//
// If the store unexpectedly holds more than one exact match, the first
// encountered is returned and the duplication is left for the
// Deduplicator.
func (l *Locator) FindByDate(ctx context.Context, date time.Time) (*models.DiaryPage, error) {
	title := FormatTitle(date)
	pages, err := l.store.QueryPages(ctx, notion.Filter{TitleContains: title})
	if err != nil {
		return nil, err
	}
	for i := range pages {
		if pages[i].Title == title {
			return &pages[i], nil
		}
	}
	return nil, nil
}
