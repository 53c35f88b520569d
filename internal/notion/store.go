// Package notion implements the document-store boundary for diary pages.
// It is a thin typed client over the Notion HTTP API: page CRUD plus
// query-by-filter. No business logic lives here.
package notion

import (
	"context"
	"time"

	"github.com/starford/dagaz/internal/models"
)

// Filter narrows a page query. Zero-value fields are omitted from the
// request. Results are always sorted descending by date.
type Filter struct {
	TitleContains string
	DateAfter     *time.Time
	DateBefore    *time.Time
}

// Patch is a partial property update. Nil fields are left untouched.
type Patch struct {
	Content *string
	Tags    []string
	Date    *time.Time
}

// Store is the interface for diary page operations against the document
// store. Consumers depend on this interface rather than the concrete
// *Client to facilitate testing with fakes.
type Store interface {
	CreatePage(ctx context.Context, title, content string, tags []string, date time.Time) (*models.PageRef, error)
	GetPage(ctx context.Context, pageID string) (*models.DiaryPage, error)
	QueryPages(ctx context.Context, f Filter) ([]models.DiaryPage, error)
	UpdatePageProperties(ctx context.Context, pageID string, p Patch) error
	ArchivePage(ctx context.Context, pageID string) error
}

// Verify *Client satisfies Store at compile time.
var _ Store = (*Client)(nil)
