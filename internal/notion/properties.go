package notion

import (
	"time"
)

// Property names in the diary database.
const (
	propTitle   = "Name"
	propContent = "Content"
	propTags    = "Tags"
	propDate    = "Date"
)

// The API rejects individual text objects longer than 2000 characters.
const maxTextChunk = 2000

// property is a tagged variant covering the property types the diary
// database uses: title, rich_text, multi_select and date. Exactly one
// field is populated per instance.
type property struct {
	Title       []richText     `json:"title,omitempty"`
	RichText    []richText     `json:"rich_text,omitempty"`
	MultiSelect []selectOption `json:"multi_select,omitempty"`
	Date        *dateValue     `json:"date,omitempty"`
}

type richText struct {
	Type string `json:"type,omitempty"`
	Text struct {
		Content string `json:"content"`
	} `json:"text"`
	PlainText string `json:"plain_text,omitempty"`
}

type selectOption struct {
	Name string `json:"name"`
}

type dateValue struct {
	Start string `json:"start"`
}

func titleProperty(s string) property {
	return property{Title: textChunks(s)}
}

func richTextProperty(s string) property {
	return property{RichText: textChunks(s)}
}

func multiSelectProperty(tags []string) property {
	opts := make([]selectOption, 0, len(tags))
	for _, t := range tags {
		opts = append(opts, selectOption{Name: t})
	}
	return property{MultiSelect: opts}
}

func dateProperty(d time.Time) property {
	return property{Date: &dateValue{Start: d.Format("2006-01-02")}}
}

// textChunks splits s into API-sized rich text objects.
func textChunks(s string) []richText {
	runes := []rune(s)
	var out []richText
	for len(runes) > 0 {
		n := len(runes)
		if n > maxTextChunk {
			n = maxTextChunk
		}
		var rt richText
		rt.Type = "text"
		rt.Text.Content = string(runes[:n])
		out = append(out, rt)
		runes = runes[n:]
	}
	if out == nil {
		var rt richText
		rt.Type = "text"
		rt.Text.Content = ""
		out = []richText{rt}
	}
	return out
}

// plainText concatenates the text content of a rich text array.
func plainText(rts []richText) string {
	var s string
	for _, rt := range rts {
		if rt.PlainText != "" {
			s += rt.PlainText
			continue
		}
		s += rt.Text.Content
	}
	return s
}

func tagNames(opts []selectOption) []string {
	names := make([]string, 0, len(opts))
	for _, o := range opts {
		names = append(names, o.Name)
	}
	return names
}

func parseDate(dv *dateValue) time.Time {
	if dv == nil || dv.Start == "" {
		return time.Time{}
	}
	// Date properties may carry a bare date or a full timestamp.
	if t, err := time.Parse("2006-01-02", dv.Start); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, dv.Start); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return time.Time{}
}
