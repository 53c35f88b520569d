package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDiaryEvent("diary.created", map[string]string{"title": "日記 2026/1/22"})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: diary.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"title":"日記 2026/1/22"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	b.Close()
	b.Close()

	if _, ok := <-ch; ok {
		t.Error("client channel should be closed after Close")
	}
	// Publishing after close must not panic or block.
	b.PublishDiaryEvent("diary.merged", nil)
	if b.ClientCount() != 0 {
		t.Errorf("clients = %d, want 0", b.ClientCount())
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishDiaryEvent("diary.deduped", map[string]string{"merged": "1", "deleted": "2"})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: diary.deduped") {
		t.Errorf("missing event in body %q", body)
	}
	if !strings.Contains(body, `"merged":"1"`) {
		t.Errorf("missing data in body %q", body)
	}
	if w.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("content type = %q", w.Header().Get("Content-Type"))
	}
}
