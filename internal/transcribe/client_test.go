package transcribe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTranscribeMultipartUpload(t *testing.T) {
	var gotAuth, gotFile, gotModel, gotLanguage, gotAudio string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatal(err)
		}
		defer file.Close()
		gotFile = header.Filename
		data, _ := io.ReadAll(file)
		gotAudio = string(data)
		fmt.Fprint(w, `{"text":"昨日は仕事で大変だった"}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{Endpoint: srv.URL, APIKey: "key-1", Model: "whisper-1"})
	text, err := c.Transcribe(context.Background(), strings.NewReader("audio-bytes"), "memo.m4a", "ja")
	if err != nil {
		t.Fatal(err)
	}
	if text != "昨日は仕事で大変だった" {
		t.Errorf("text = %q", text)
	}
	if gotAuth != "Bearer key-1" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotFile != "memo.m4a" || gotAudio != "audio-bytes" {
		t.Errorf("file = %q, audio = %q", gotFile, gotAudio)
	}
	if gotModel != "whisper-1" || gotLanguage != "ja" {
		t.Errorf("model = %q, language = %q", gotModel, gotLanguage)
	}
}

func TestTranscribeOmitsEmptyLanguage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		if _, ok := r.MultipartForm.Value["language"]; ok {
			t.Error("language field must be omitted when empty")
		}
		fmt.Fprint(w, `{"text":"ok"}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{Endpoint: srv.URL})
	if _, err := c.Transcribe(context.Background(), strings.NewReader("x"), "a.wav", ""); err != nil {
		t.Fatal(err)
	}
}

func TestTranscribeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"unsupported format"}}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{Endpoint: srv.URL})
	_, err := c.Transcribe(context.Background(), strings.NewReader("x"), "a.xyz", "")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("err = %v", err)
	}
}

func TestTranscribeEmptyTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"text":"  "}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{Endpoint: srv.URL})
	if _, err := c.Transcribe(context.Background(), strings.NewReader("x"), "a.wav", ""); err == nil {
		t.Fatal("expected an error for blank transcript")
	}
}
