package diary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/llm"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/testutil"
)

var mergeDate = time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC)

func seedPage(store *testutil.FakeStore, content string, tags ...string) models.DiaryPage {
	p := models.DiaryPage{
		Title:   "日記 2026/1/22",
		Content: content,
		Tags:    tags,
		Date:    mergeDate,
	}
	p.PageID = store.Seed(p)
	p.URL = "https://www.notion.so/" + p.PageID
	return p
}

func TestMergeUpdatesExistingPage(t *testing.T) {
	store := testutil.NewFakeStore()
	existing := seedPage(store, "- 朝は雨だった", "プライベート")

	merged := "- 朝は雨だった\n- 夜はカレーを食べた"
	client := &testutil.FakeLLM{TextResponse: merged}
	m := NewMerger(store, client, nil)

	ref, err := m.Merge(context.Background(), &existing, "- 夜はカレーを食べた", []string{"食事"}, mergeDate)
	if err != nil {
		t.Fatal(err)
	}
	if ref.PageID != existing.PageID {
		t.Errorf("page id = %s, want existing %s", ref.PageID, existing.PageID)
	}

	got, err := store.GetPage(context.Background(), existing.PageID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != merged {
		t.Errorf("content = %q, want %q", got.Content, merged)
	}
	if !equalSets(got.Tags, []string{"プライベート", "食事"}) {
		t.Errorf("tags = %v", got.Tags)
	}
	if !got.Date.Equal(mergeDate) {
		t.Errorf("date changed to %v", got.Date)
	}
	if got.Title != existing.Title {
		t.Errorf("title changed to %q", got.Title)
	}
}

func TestMergeContentPreservation(t *testing.T) {
	// On collaborator failure the merge degrades to concatenation, so
	// every sentence of the existing body survives verbatim.
	store := testutil.NewFakeStore()
	existingBody := "- 朝ランニングした\n  - 5km走った\n- 昼は会議だった"
	existing := seedPage(store, existingBody)

	m := NewMerger(store, &testutil.FakeLLM{Err: errors.New("down")}, nil)
	if _, err := m.Merge(context.Background(), &existing, "- 夜は読書", nil, mergeDate); err != nil {
		t.Fatal(err)
	}

	got, _ := store.GetPage(context.Background(), existing.PageID)
	if len(got.Content) < len(existingBody) {
		t.Fatalf("merged content shorter than existing: %q", got.Content)
	}
	for _, line := range strings.Split(existingBody, "\n") {
		if !strings.Contains(got.Content, line) {
			t.Errorf("merged content lost %q", line)
		}
	}
	if !strings.Contains(got.Content, "- 夜は読書") {
		t.Errorf("merged content lost new body: %q", got.Content)
	}
}

func TestMergeRejectsLossyCollaboratorOutput(t *testing.T) {
	// A merge result shorter than the existing body means content was
	// dropped; the engine must fall back to concatenation.
	store := testutil.NewFakeStore()
	existingBody := "- 長い既存の本文がここにあり、失われてはならない"
	existing := seedPage(store, existingBody)

	m := NewMerger(store, &testutil.FakeLLM{TextResponse: "- 要約"}, nil)
	if _, err := m.Merge(context.Background(), &existing, "- 追記", nil, mergeDate); err != nil {
		t.Fatal(err)
	}

	got, _ := store.GetPage(context.Background(), existing.PageID)
	if !strings.Contains(got.Content, existingBody) {
		t.Errorf("existing body lost: %q", got.Content)
	}
	if !strings.Contains(got.Content, "- 追記") {
		t.Errorf("new body lost: %q", got.Content)
	}
}

func TestMergeEmptyExistingUsesIncoming(t *testing.T) {
	store := testutil.NewFakeStore()
	existing := seedPage(store, "")

	// The collaborator is not consulted when one side is empty.
	m := NewMerger(store, &testutil.FakeLLM{Err: errors.New("must not be called")}, nil)
	if _, err := m.Merge(context.Background(), &existing, "- 初エントリ", nil, mergeDate); err != nil {
		t.Fatal(err)
	}
	got, _ := store.GetPage(context.Background(), existing.PageID)
	if got.Content != "- 初エントリ" {
		t.Errorf("content = %q", got.Content)
	}
}

func TestMergeFallsBackToCreateWhenUpdateFails(t *testing.T) {
	store := testutil.NewFakeStore()
	existing := seedPage(store, "- 既存", "仕事")
	store.FailUpdateFor = map[string]bool{existing.PageID: true}

	m := NewMerger(store, &testutil.FakeLLM{Err: errors.New("down")}, nil)
	ref, err := m.Merge(context.Background(), &existing, "- 新規", []string{"健康"}, mergeDate)
	if err != nil {
		t.Fatal(err)
	}
	if ref.PageID == existing.PageID {
		t.Fatal("expected a fresh page, got the original id")
	}

	got, err := store.GetPage(context.Background(), ref.PageID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "日記 2026/1/22" {
		t.Errorf("title = %q", got.Title)
	}
	if !strings.Contains(got.Content, "- 既存") || !strings.Contains(got.Content, "- 新規") {
		t.Errorf("fallback page content = %q", got.Content)
	}
	if !equalSets(got.Tags, []string{"仕事", "健康"}) {
		t.Errorf("fallback page tags = %v", got.Tags)
	}
}

func TestMergePromptCarriesBothBodies(t *testing.T) {
	store := testutil.NewFakeStore()
	existing := seedPage(store, "- 既存の出来事")

	var prompt string
	client := &testutil.FakeLLM{CompleteFn: func(msgs []llm.Message) (string, error) {
		prompt = msgs[len(msgs)-1].Content
		return "- 既存の出来事\n- 新しい出来事", nil
	}}
	m := NewMerger(store, client, nil)
	if _, err := m.Merge(context.Background(), &existing, "- 新しい出来事", nil, mergeDate); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt, "- 既存の出来事") || !strings.Contains(prompt, "- 新しい出来事") {
		t.Errorf("prompt = %q", prompt)
	}
}
