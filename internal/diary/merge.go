package diary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/dagaz/internal/llm"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/notion"
)

// Merger combines new diary content into an existing page without
// discarding prior content.
type Merger struct {
	store  notion.Store
	llm    llm.Client
	logger *slog.Logger
}

// NewMerger creates a Merger.
func NewMerger(store notion.Store, client llm.Client, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{store: store, llm: client, logger: logger}
}

const mergeSystemPrompt = `あなたは日記の統合器です。既存の本文と新しい本文をひとつにまとめてください。

絶対条件:
- 既存の本文の情報はすべて保持する。削除や情報が失われる要約は禁止
- 新しい本文は既存の内容の後に追記する
- 完全に重複する記述のみまとめてよい
- タイトル・日付・タグなどのメタデータは本文に含めない
- 箇条書きの形式を維持する

統合後の本文のみを返してください。`

// Merge applies newContent and newTags to the existing page. Content
// combination is delegated to the collaborator; tag reconciliation is a
// pure set union. The page's date and title are never altered.
//
// If the property update fails (for example the page was archived
// concurrently), the merged result is written to a brand-new page with
// the canonical title for date, so the user's content is never lost.
func (m *Merger) Merge(ctx context.Context, existing *models.DiaryPage, newContent string, newTags []string, date time.Time) (*models.PageRef, error) {
	merged := m.mergeContent(ctx, existing.Content, newContent)
	tags := UnionTags(existing.Tags, newTags)

	err := m.store.UpdatePageProperties(ctx, existing.PageID, notion.Patch{
		Content: &merged,
		Tags:    tags,
	})
	if err == nil {
		return &models.PageRef{PageID: existing.PageID, URL: existing.URL}, nil
	}

	m.logger.Warn("merge update failed, recreating page",
		slog.String("page_id", existing.PageID),
		slog.String("error", err.Error()))

	ref, createErr := m.store.CreatePage(ctx, FormatTitle(date), merged, tags, date)
	if createErr != nil {
		return nil, fmt.Errorf("merge fallback create: %w", createErr)
	}
	return ref, nil
}

// mergeContent combines the two bodies via the collaborator. On failure
// or suspicious output it degrades to verbatim concatenation, which is
// always content-preserving.
func (m *Merger) mergeContent(ctx context.Context, existing, incoming string) string {
	existing = strings.TrimSpace(existing)
	incoming = strings.TrimSpace(incoming)
	if existing == "" {
		return incoming
	}
	if incoming == "" {
		return existing
	}

	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: mergeSystemPrompt},
		{Role: llm.RoleUser, Content: "既存の本文:\n" + existing + "\n\n新しい本文:\n" + incoming},
	}
	out, err := m.llm.Complete(ctx, msgs)
	if err != nil {
		m.logger.Warn("content merge failed, concatenating",
			slog.String("error", err.Error()))
		return concat(existing, incoming)
	}
	out = strings.TrimSpace(out)
	// A merge that came back shorter than the existing body has lost
	// content; fall back to concatenation.
	if out == "" || len(out) < len(existing) {
		m.logger.Warn("content merge output too short, concatenating",
			slog.Int("existing_len", len(existing)),
			slog.Int("merged_len", len(out)))
		return concat(existing, incoming)
	}
	return out
}

func concat(existing, incoming string) string {
	return existing + "\n\n" + incoming
}
