// Package models defines the domain types for Dagaz.
package models

import "time"

// DiaryPage represents one calendar day's diary page in the document store.
// The store owns the entity; this is our typed view of it.
type DiaryPage struct {
	PageID  string    `json:"page_id"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Tags    []string  `json:"tags,omitempty"`
	Date    time.Time `json:"date"`
	URL     string    `json:"url"`
}

// PageRef is the minimal handle returned by create/merge operations.
type PageRef struct {
	PageID string `json:"page_id"`
	URL    string `json:"url"`
}

// Recording is one processed diary input, journaled locally. A recording
// references at most one DiaryPage once processing succeeds.
type Recording struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Transcript string    `json:"transcript"`
	Checksum   string    `json:"checksum"`
	PageID     string    `json:"page_id,omitempty"`
	PageURL    string    `json:"page_url,omitempty"`
	DiaryDate  time.Time `json:"diary_date"`
	CreatedAt  time.Time `json:"created_at"`
}

// Recording sources.
const (
	SourceAPI   = "api"
	SourceInbox = "inbox"
	SourceMCP   = "mcp"
)
