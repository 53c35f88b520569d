package diary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/dagaz/internal/llm"
)

// Acceptance window for resolved dates, relative to today.
const (
	maxPastDays   = 365
	maxFutureDays = 7
)

// ResolvedDate is the outcome of date resolution: one concrete calendar
// date (midnight in the configured timezone) plus best-effort category
// tags inferred from the content clause.
type ResolvedDate struct {
	Date time.Time
	Tags []string
}

// Resolver turns a free-text utterance into a concrete calendar date.
// It delegates interpretation to the collaborator and applies
// acceptance-range validation locally. Resolution never fails: on any
// collaborator or parse error the result is today with no tags.
type Resolver struct {
	llm    llm.Client
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(client llm.Client, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{llm: client, logger: logger}
}

type dateInfo struct {
	Type string `json:"type"`
	Date string `json:"date"`
	Days int    `json:"days"`
}

type judgment struct {
	DateInfo *dateInfo `json:"date_info"`
	Tags     []string  `json:"tags"`
}

// Date info kinds returned by the collaborator.
const (
	dateKindSpecific = "specific"
	dateKindRelative = "relative"
)

var judgmentSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"date_info": map[string]any{
			"anyOf": []any{
				map[string]any{"type": "null"},
				map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type": map[string]any{"const": dateKindSpecific},
						"date": map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					},
					"required":             []string{"type", "date"},
					"additionalProperties": false,
				},
				map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type": map[string]any{"const": dateKindRelative},
						"days": map[string]any{"type": "integer", "description": "signed offset from today; negative is past"},
					},
					"required":             []string{"type", "days"},
					"additionalProperties": false,
				},
			},
		},
		"tags": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required":             []string{"date_info", "tags"},
	"additionalProperties": false,
}

const resolverSystemPrompt = `あなたは日記エントリの解析器です。発話テキストから次の2つを判定してください。

1. date_info: エントリを記録すべき日付。
   発話には「昨日の日記に記録して」のような指示部分と「雨が降った」のような内容部分が
   混在することがあります。日付判定は指示部分からのみ行ってください。
   - 日付への言及がなければ null
   - 「1月20日」のような明示的な日付は {"type":"specific","date":"YYYY-MM-DD"}
   - 「昨日」「3日前」「明日」のような相対表現は {"type":"relative","days":N}
     (過去は負、未来は正。「昨日」は -1)
2. tags: 内容部分のみから選ぶカテゴリ。候補: %s。該当なしは空配列。

JSONのみを返してください。`

// Resolve resolves the utterance into a calendar date. now must already
// be expressed in the target timezone; "today" is its midnight. The
// caller injects now explicitly so resolution stays deterministic.
func (r *Resolver) Resolve(ctx context.Context, text string, now time.Time) ResolvedDate {
	today := midnight(now)
	fallback := ResolvedDate{Date: today, Tags: []string{}}

	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(resolverSystemPrompt, strings.Join(DefaultTagVocabulary, " / "))},
		{Role: llm.RoleUser, Content: fmt.Sprintf("今日は %s です。\n発話: %s", today.Format("2006-01-02"), text)},
	}

	raw, err := r.llm.CompleteJSON(ctx, msgs, "diary_judgment", judgmentSchema)
	if err != nil {
		r.logger.Warn("date resolution failed, using today",
			slog.String("error", err.Error()))
		return fallback
	}

	j, ok := parseJudgment(raw)
	if !ok {
		r.logger.Warn("unparsable date judgment, using today",
			slog.String("raw", truncate(raw, 200)))
		return fallback
	}

	tags := j.Tags
	if tags == nil {
		tags = []string{}
	}
	return ResolvedDate{Date: r.applyDateInfo(j.DateInfo, today), Tags: tags}
}

// applyDateInfo validates the collaborator's judgment against the
// acceptance window [today-1y, today+7d] and falls back to today when
// the judgment lies outside it.
func (r *Resolver) applyDateInfo(di *dateInfo, today time.Time) time.Time {
	if di == nil {
		return today
	}
	switch di.Type {
	case dateKindSpecific:
		d, err := time.ParseInLocation("2006-01-02", di.Date, today.Location())
		if err != nil {
			r.logger.Warn("invalid specific date, using today", slog.String("date", di.Date))
			return today
		}
		earliest := today.AddDate(-1, 0, 0)
		latest := today.AddDate(0, 0, maxFutureDays)
		if d.Before(earliest) || d.After(latest) {
			r.logger.Warn("specific date outside acceptance window, using today",
				slog.String("date", di.Date),
				slog.String("today", today.Format("2006-01-02")))
			return today
		}
		return d
	case dateKindRelative:
		if di.Days < -maxPastDays || di.Days > maxFutureDays {
			r.logger.Warn("relative offset outside acceptance window, using today",
				slog.Int("days", di.Days))
			return today
		}
		return today.AddDate(0, 0, di.Days)
	default:
		r.logger.Warn("unknown date_info type, using today", slog.String("type", di.Type))
		return today
	}
}

// parseJudgment decodes the structured output, tolerating prose or code
// fences around the JSON document.
func parseJudgment(raw string) (judgment, bool) {
	var j judgment
	if err := json.Unmarshal([]byte(raw), &j); err == nil {
		return j, true
	}
	extracted, ok := llm.ExtractJSON(raw)
	if !ok {
		return judgment{}, false
	}
	if err := json.Unmarshal([]byte(extracted), &j); err != nil {
		return judgment{}, false
	}
	return j, true
}

// midnight truncates t to 00:00 in its own location.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
