package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

// Defaults for the Notion API.
const (
	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"
)

// Config holds the settings for a Client.
type Config struct {
	BaseURL    string
	Token      string
	DatabaseID string
	Version    string
	Timeout    time.Duration
}

// Client is the concrete HTTP implementation of Store.
type Client struct {
	http       *http.Client
	baseURL    string
	token      string
	databaseID string
	version    string
}

// NewClient creates a Notion API client. An empty token is not rejected
// here; it surfaces as apperr.ErrMissingCredential on first use.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := cfg.Version
	if version == "" {
		version = DefaultVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:       &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      cfg.Token,
		databaseID: cfg.DatabaseID,
		version:    version,
	}
}

type pageObject struct {
	ID         string              `json:"id"`
	URL        string              `json:"url"`
	Archived   bool                `json:"archived"`
	Properties map[string]property `json:"properties"`
}

type queryResponse struct {
	Results    []pageObject `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

type apiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreatePage creates a diary page under the configured database.
func (c *Client) CreatePage(ctx context.Context, title, content string, tags []string, date time.Time) (*models.PageRef, error) {
	body := map[string]any{
		"parent": map[string]string{"database_id": c.databaseID},
		"properties": map[string]property{
			propTitle:   titleProperty(title),
			propContent: richTextProperty(content),
			propTags:    multiSelectProperty(tags),
			propDate:    dateProperty(date),
		},
	}
	var page pageObject
	if err := c.do(ctx, http.MethodPost, "/pages", body, &page); err != nil {
		return nil, fmt.Errorf("notion: create page: %w", err)
	}
	return &models.PageRef{PageID: page.ID, URL: pageURL(page)}, nil
}

// GetPage fetches a single page snapshot by id.
func (c *Client) GetPage(ctx context.Context, pageID string) (*models.DiaryPage, error) {
	var page pageObject
	if err := c.do(ctx, http.MethodGet, "/pages/"+pageID, nil, &page); err != nil {
		return nil, fmt.Errorf("notion: get page: %w", err)
	}
	dp := toDiaryPage(page)
	return &dp, nil
}

// QueryPages returns non-archived pages matching the filter, sorted
// descending by date. Pagination is followed to exhaustion.
func (c *Client) QueryPages(ctx context.Context, f Filter) ([]models.DiaryPage, error) {
	var conditions []map[string]any
	if f.TitleContains != "" {
		conditions = append(conditions, map[string]any{
			"property": propTitle,
			"title":    map[string]string{"contains": f.TitleContains},
		})
	}
	if f.DateAfter != nil {
		conditions = append(conditions, map[string]any{
			"property": propDate,
			"date":     map[string]string{"on_or_after": f.DateAfter.Format("2006-01-02")},
		})
	}
	if f.DateBefore != nil {
		conditions = append(conditions, map[string]any{
			"property": propDate,
			"date":     map[string]string{"on_or_before": f.DateBefore.Format("2006-01-02")},
		})
	}

	var pages []models.DiaryPage
	cursor := ""
	for {
		body := map[string]any{
			"sorts": []map[string]string{
				{"property": propDate, "direction": "descending"},
			},
		}
		switch len(conditions) {
		case 0:
		case 1:
			body["filter"] = conditions[0]
		default:
			body["filter"] = map[string]any{"and": conditions}
		}
		if cursor != "" {
			body["start_cursor"] = cursor
		}

		var resp queryResponse
		if err := c.do(ctx, http.MethodPost, "/databases/"+c.databaseID+"/query", body, &resp); err != nil {
			return nil, fmt.Errorf("notion: query pages: %w", err)
		}
		for _, p := range resp.Results {
			if p.Archived {
				continue
			}
			pages = append(pages, toDiaryPage(p))
		}
		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}
	return pages, nil
}

// UpdatePageProperties applies a partial update. Unset patch fields are
// left untouched on the page.
func (c *Client) UpdatePageProperties(ctx context.Context, pageID string, p Patch) error {
	props := map[string]property{}
	if p.Content != nil {
		props[propContent] = richTextProperty(*p.Content)
	}
	if p.Tags != nil {
		props[propTags] = multiSelectProperty(p.Tags)
	}
	if p.Date != nil {
		props[propDate] = dateProperty(*p.Date)
	}
	if len(props) == 0 {
		return nil
	}
	body := map[string]any{"properties": props}
	if err := c.do(ctx, http.MethodPatch, "/pages/"+pageID, body, nil); err != nil {
		return fmt.Errorf("notion: update page: %w", err)
	}
	return nil
}

// ArchivePage soft-deletes a page. The store keeps archived pages
// recoverable; nothing is hard-deleted.
func (c *Client) ArchivePage(ctx context.Context, pageID string) error {
	body := map[string]any{"archived": true}
	if err := c.do(ctx, http.MethodPatch, "/pages/"+pageID, body, nil); err != nil {
		return fmt.Errorf("notion: archive page: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if strings.TrimSpace(c.token) == "" {
		return apperr.ErrMissingCredential
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return classifyStatus(resp.StatusCode, resp.Body)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classifyStatus maps API error responses onto the apperr taxonomy so
// callers can distinguish retryable throttling from hard failures.
func classifyStatus(status int, body io.Reader) error {
	var ae apiError
	msg := ""
	if err := json.NewDecoder(body).Decode(&ae); err == nil && ae.Message != "" {
		msg = ": " + ae.Message
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w%s", apperr.ErrUnauthorized, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w%s", apperr.ErrNotFound, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w%s", apperr.ErrRateLimited, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w%s", apperr.ErrValidation, msg)
	default:
		return fmt.Errorf("unexpected status %d%s", status, msg)
	}
}

func toDiaryPage(p pageObject) models.DiaryPage {
	dp := models.DiaryPage{
		PageID: p.ID,
		URL:    pageURL(p),
		Tags:   []string{},
	}
	if prop, ok := p.Properties[propTitle]; ok {
		dp.Title = plainText(prop.Title)
	}
	if prop, ok := p.Properties[propContent]; ok {
		dp.Content = plainText(prop.RichText)
	}
	if prop, ok := p.Properties[propTags]; ok {
		dp.Tags = tagNames(prop.MultiSelect)
	}
	if prop, ok := p.Properties[propDate]; ok {
		dp.Date = parseDate(prop.Date)
	}
	return dp
}

// pageURL prefers the URL reported by the store and falls back to the
// deterministic form derived from the page id.
func pageURL(p pageObject) string {
	if p.URL != "" {
		return p.URL
	}
	return "https://www.notion.so/" + strings.ReplaceAll(p.ID, "-", "")
}
