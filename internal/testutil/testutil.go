// Package testutil provides shared test fakes for the document store,
// the text-understanding collaborator, and the processing journal.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/llm"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/notion"
)

// FakeStore is an in-memory notion.Store.
type FakeStore struct {
	mu       sync.Mutex
	seq      int
	pages    map[string]*models.DiaryPage
	archived map[string]bool

	// FailUpdates makes every UpdatePageProperties call fail with
	// ErrNotFound, simulating a page that vanished mid-operation.
	FailUpdates bool
	// FailUpdateFor fails updates only for the given page ids.
	FailUpdateFor map[string]bool
}

// NewFakeStore creates an empty in-memory store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		pages:    make(map[string]*models.DiaryPage),
		archived: make(map[string]bool),
	}
}

// Seed inserts a page directly, bypassing CreatePage.
func (s *FakeStore) Seed(p models.DiaryPage) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.PageID == "" {
		s.seq++
		p.PageID = fmt.Sprintf("page-%d", s.seq)
	}
	if p.URL == "" {
		p.URL = "https://www.notion.so/" + p.PageID
	}
	cp := p
	s.pages[p.PageID] = &cp
	return p.PageID
}

// ActivePages returns all non-archived pages.
func (s *FakeStore) ActivePages() []models.DiaryPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DiaryPage
	for id, p := range s.pages {
		if s.archived[id] {
			continue
		}
		out = append(out, *p)
	}
	return out
}

// IsArchived reports whether the page was soft-deleted.
func (s *FakeStore) IsArchived(pageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archived[pageID]
}

// CreatePage implements notion.Store.
func (s *FakeStore) CreatePage(_ context.Context, title, content string, tags []string, date time.Time) (*models.PageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("page-%d", s.seq)
	s.pages[id] = &models.DiaryPage{
		PageID:  id,
		Title:   title,
		Content: content,
		Tags:    append([]string{}, tags...),
		Date:    date,
		URL:     "https://www.notion.so/" + id,
	}
	return &models.PageRef{PageID: id, URL: "https://www.notion.so/" + id}, nil
}

// GetPage implements notion.Store.
func (s *FakeStore) GetPage(_ context.Context, pageID string) (*models.DiaryPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[pageID]
	if !ok || s.archived[pageID] {
		return nil, apperr.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// QueryPages implements notion.Store.
func (s *FakeStore) QueryPages(_ context.Context, f notion.Filter) ([]models.DiaryPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DiaryPage
	for id, p := range s.pages {
		if s.archived[id] {
			continue
		}
		if f.TitleContains != "" && !strings.Contains(p.Title, f.TitleContains) {
			continue
		}
		if f.DateAfter != nil && p.Date.Before(*f.DateAfter) {
			continue
		}
		if f.DateBefore != nil && p.Date.After(*f.DateBefore) {
			continue
		}
		out = append(out, *p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

// UpdatePageProperties implements notion.Store.
func (s *FakeStore) UpdatePageProperties(_ context.Context, pageID string, patch notion.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdates || s.FailUpdateFor[pageID] {
		return apperr.ErrNotFound
	}
	p, ok := s.pages[pageID]
	if !ok || s.archived[pageID] {
		return apperr.ErrNotFound
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	if patch.Tags != nil {
		p.Tags = append([]string{}, patch.Tags...)
	}
	if patch.Date != nil {
		p.Date = *patch.Date
	}
	return nil
}

// ArchivePage implements notion.Store.
func (s *FakeStore) ArchivePage(_ context.Context, pageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[pageID]; !ok {
		return apperr.ErrNotFound
	}
	s.archived[pageID] = true
	return nil
}

// Verify FakeStore satisfies notion.Store at compile time.
var _ notion.Store = (*FakeStore)(nil)

// FakeLLM is a scripted llm.Client. Zero value fails every call, which
// exercises the pipeline's fallback paths.
type FakeLLM struct {
	// JSONResponse is returned from CompleteJSON when JSONFn is nil.
	JSONResponse string
	// TextResponse is returned from Complete when CompleteFn is nil.
	TextResponse string
	// Err, when set, fails every call.
	Err error

	CompleteFn func(msgs []llm.Message) (string, error)
	JSONFn     func(msgs []llm.Message) (string, error)
}

// Complete implements llm.Client.
func (f *FakeLLM) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	if f.CompleteFn != nil {
		return f.CompleteFn(msgs)
	}
	if f.TextResponse == "" {
		return "", fmt.Errorf("fake llm: no scripted response")
	}
	return f.TextResponse, nil
}

// CompleteJSON implements llm.Client.
func (f *FakeLLM) CompleteJSON(_ context.Context, msgs []llm.Message, _ string, _ map[string]any) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	if f.JSONFn != nil {
		return f.JSONFn(msgs)
	}
	if f.JSONResponse == "" {
		return "", fmt.Errorf("fake llm: no scripted response")
	}
	return f.JSONResponse, nil
}

// Verify FakeLLM satisfies llm.Client at compile time.
var _ llm.Client = (*FakeLLM)(nil)

// TestJournal creates a temporary journal database that is
// automatically cleaned up.
func TestJournal(t *testing.T) *journal.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "dagaz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := journal.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
