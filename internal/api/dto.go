package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dagaz/internal/diary"
	"github.com/starford/dagaz/internal/models"
)

// CreateEntryRequest is the request body for processing a text entry.
type CreateEntryRequest struct {
	Text string   `json:"text"`
	Tags []string `json:"tags,omitempty"`
}

// Validate validates the entry request.
func (r CreateEntryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required, validation.Length(1, 20000)),
	)
}

// EntryResult is the response for a processed entry (aliased from the
// domain layer).
type EntryResult = diary.Result

// PageListResponse wraps a page listing.
type PageListResponse struct {
	Pages []models.DiaryPage `json:"pages"`
	Total int                `json:"total"`
}

// RecordingListResponse wraps a recordings listing.
type RecordingListResponse struct {
	Recordings []models.Recording `json:"recordings"`
	Total      int                `json:"total"`
}

// RepairResponse reports a date-repair run.
type RepairResponse struct {
	FixedCount int `json:"fixed_count"`
}
