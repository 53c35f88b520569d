// Package diary implements the consolidation engine: date resolution,
// content formatting, page location, merging and deduplication.
package diary

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/starford/dagaz/internal/apperr"
)

// TitlePrefix is the leading marker of every canonical diary title.
const TitlePrefix = "日記 "

// Month and day are intentionally not zero-padded; the title doubles as
// a display string and a parseable key.
var titlePattern = regexp.MustCompile(`^日記 (\d{4})/(\d{1,2})/(\d{1,2})$`)

// FormatTitle returns the canonical title for a calendar date, e.g.
// "日記 2026/1/22".
func FormatTitle(d time.Time) string {
	return fmt.Sprintf("%s%d/%d/%d", TitlePrefix, d.Year(), int(d.Month()), d.Day())
}

// ParseTitle parses a canonical title back into its calendar date.
// Only exact matches are accepted; "日記 2026/1/2 メモ" is not a diary title.
func ParseTitle(title string) (time.Time, error) {
	m := titlePattern.FindStringSubmatch(title)
	if m == nil {
		return time.Time{}, fmt.Errorf("parse title %q: %w", title, apperr.ErrValidation)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject overflowed dates like 2026/2/30, which time.Date normalises.
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, fmt.Errorf("parse title %q: impossible date: %w", title, apperr.ErrValidation)
	}
	return d, nil
}

// sameDay reports whether two times fall on the same calendar date,
// ignoring clock time and location-normalised wall offsets.
func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
