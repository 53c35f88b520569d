package diary

import (
	"context"
	"log/slog"
	"strings"

	"github.com/starford/dagaz/internal/llm"
)

// Formatter normalises raw transcribed text into a two-level bulleted
// account of the day. On collaborator failure it returns the raw input
// unchanged; formatting is an enrichment, never a gate.
type Formatter struct {
	llm    llm.Client
	logger *slog.Logger
}

// NewFormatter creates a Formatter.
func NewFormatter(client llm.Client, logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Formatter{llm: client, logger: logger}
}

const formatterSystemPrompt = `あなたは日記の整形器です。入力テキストを箇条書きに整形してください。

ルール:
- 独立した出来事は「- 」で始まるトップレベルの箇条書きにする
- 直前の出来事を補足する詳細は「  - 」でネストする
- 言及された時系列順に並べる
- 「◯◯の日記に記録して」のような記録指示の文言は出力から取り除く
- タイトル・日付・タグなどのメタデータは本文に含めない

整形後の本文のみを返してください。`

// Format returns the bulleted form of raw.
func (f *Formatter) Format(ctx context.Context, raw string) string {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: formatterSystemPrompt},
		{Role: llm.RoleUser, Content: raw},
	}
	out, err := f.llm.Complete(ctx, msgs)
	if err != nil {
		f.logger.Warn("content formatting failed, using raw text",
			slog.String("error", err.Error()))
		return raw
	}
	out = strings.TrimSpace(out)
	if out == "" {
		f.logger.Warn("content formatting returned empty output, using raw text")
		return raw
	}
	return out
}
