package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/apperr"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:    srv.URL,
		Token:      "secret-token",
		DatabaseID: "db-1",
	})
}

func TestCreatePagePayload(t *testing.T) {
	var gotPath, gotAuth, gotVersion string
	var body map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("Notion-Version")
		json.NewDecoder(r.Body).Decode(&body)
		fmt.Fprint(w, `{"id":"p1","url":"https://www.notion.so/p1"}`)
	})

	d := time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC)
	ref, err := c.CreatePage(context.Background(), "日記 2026/1/22", "- 本文", []string{"仕事"}, d)
	if err != nil {
		t.Fatal(err)
	}
	if ref.PageID != "p1" || ref.URL != "https://www.notion.so/p1" {
		t.Errorf("ref = %+v", ref)
	}
	if gotPath != "POST /pages" {
		t.Errorf("request = %q", gotPath)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotVersion != DefaultVersion {
		t.Errorf("version = %q", gotVersion)
	}

	parent := body["parent"].(map[string]any)
	if parent["database_id"] != "db-1" {
		t.Errorf("parent = %v", parent)
	}
	props := body["properties"].(map[string]any)
	for _, name := range []string{propTitle, propContent, propTags, propDate} {
		if _, ok := props[name]; !ok {
			t.Errorf("properties missing %q", name)
		}
	}
	date := props[propDate].(map[string]any)["date"].(map[string]any)
	if date["start"] != "2026-01-22" {
		t.Errorf("date start = %v", date["start"])
	}
}

func TestMissingTokenSurfacesOnUse(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:0", DatabaseID: "db-1"})
	_, err := c.GetPage(context.Background(), "p1")
	if !errors.Is(err, apperr.ErrMissingCredential) {
		t.Errorf("err = %v, want ErrMissingCredential", err)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, apperr.ErrUnauthorized},
		{http.StatusForbidden, apperr.ErrUnauthorized},
		{http.StatusNotFound, apperr.ErrNotFound},
		{http.StatusTooManyRequests, apperr.ErrRateLimited},
		{http.StatusBadRequest, apperr.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, `{"code":"err","message":"boom"}`)
			})
			_, err := c.GetPage(context.Background(), "p1")
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
			if !strings.Contains(err.Error(), "boom") {
				t.Errorf("err = %v, want API message carried", err)
			}
		})
	}
}

func TestQueryPagesFollowsPagination(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		switch calls {
		case 1:
			if _, ok := body["start_cursor"]; ok {
				t.Error("first request must not carry a cursor")
			}
			fmt.Fprint(w, `{
				"results":[{"id":"p1","properties":{"Name":{"title":[{"plain_text":"日記 2026/1/22"}]}}}],
				"has_more":true,"next_cursor":"cur-2"}`)
		case 2:
			if body["start_cursor"] != "cur-2" {
				t.Errorf("cursor = %v", body["start_cursor"])
			}
			fmt.Fprint(w, `{
				"results":[
					{"id":"p2","properties":{"Name":{"title":[{"plain_text":"日記 2026/1/21"}]}}},
					{"id":"p3","archived":true,"properties":{}}
				],
				"has_more":false,"next_cursor":""}`)
		default:
			t.Error("unexpected extra request")
		}
	})

	pages, err := c.QueryPages(context.Background(), Filter{TitleContains: "日記"})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(pages) != 2 {
		t.Fatalf("pages = %d, want 2 (archived excluded)", len(pages))
	}
	if pages[0].PageID != "p1" || pages[1].PageID != "p2" {
		t.Errorf("ids = %s, %s", pages[0].PageID, pages[1].PageID)
	}
}

func TestQueryPagesFilterShape(t *testing.T) {
	var body map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		fmt.Fprint(w, `{"results":[],"has_more":false}`)
	})

	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := c.QueryPages(context.Background(), Filter{TitleContains: "日記", DateAfter: &after}); err != nil {
		t.Fatal(err)
	}

	// Two conditions combine under "and".
	filter := body["filter"].(map[string]any)
	and, ok := filter["and"].([]any)
	if !ok || len(and) != 2 {
		t.Fatalf("filter = %v", filter)
	}
	title := and[0].(map[string]any)
	if title["property"] != propTitle {
		t.Errorf("first condition = %v", title)
	}
}

func TestUpdatePagePatchIsPartial(t *testing.T) {
	var body map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/pages/p1" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		fmt.Fprint(w, `{}`)
	})

	content := "- 更新後"
	if err := c.UpdatePageProperties(context.Background(), "p1", Patch{Content: &content}); err != nil {
		t.Fatal(err)
	}
	props := body["properties"].(map[string]any)
	if _, ok := props[propContent]; !ok {
		t.Error("patch missing content property")
	}
	for _, name := range []string{propTitle, propTags, propDate} {
		if _, ok := props[name]; ok {
			t.Errorf("patch must not touch %q", name)
		}
	}
}

func TestUpdatePageEmptyPatchSkipsRequest(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty patch")
	})
	if err := c.UpdatePageProperties(context.Background(), "p1", Patch{}); err != nil {
		t.Fatal(err)
	}
}

func TestArchivePage(t *testing.T) {
	var body map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		fmt.Fprint(w, `{}`)
	})
	if err := c.ArchivePage(context.Background(), "p1"); err != nil {
		t.Fatal(err)
	}
	if body["archived"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestGetPageDecodesProperties(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"id":"p1","url":"",
			"properties":{
				"Name":{"title":[{"plain_text":"日記 2026/1/22"}]},
				"Content":{"rich_text":[{"plain_text":"- 前半"},{"plain_text":"- 後半"}]},
				"Tags":{"multi_select":[{"name":"仕事"},{"name":"健康"}]},
				"Date":{"date":{"start":"2026-01-22"}}
			}}`)
	})

	p, err := c.GetPage(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "日記 2026/1/22" {
		t.Errorf("title = %q", p.Title)
	}
	if p.Content != "- 前半- 後半" {
		t.Errorf("content = %q", p.Content)
	}
	if len(p.Tags) != 2 {
		t.Errorf("tags = %v", p.Tags)
	}
	if !p.Date.Equal(time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", p.Date)
	}
	// URL is derived from the id when the store omits it.
	if p.URL != "https://www.notion.so/p1" {
		t.Errorf("url = %q", p.URL)
	}
}

func TestTextChunking(t *testing.T) {
	long := strings.Repeat("あ", maxTextChunk+5)
	chunks := textChunks(long)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if n := len([]rune(chunks[0].Text.Content)); n != maxTextChunk {
		t.Errorf("first chunk = %d runes", n)
	}
	if n := len([]rune(chunks[1].Text.Content)); n != 5 {
		t.Errorf("second chunk = %d runes", n)
	}

	empty := textChunks("")
	if len(empty) != 1 || empty[0].Text.Content != "" {
		t.Errorf("empty input chunks = %+v", empty)
	}
}
