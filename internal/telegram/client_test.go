package telegram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(apiBase string, maxSize int64) *Client {
	return NewClient(Config{
		BotToken:    "test-token",
		ChatID:      "-100123",
		APIBase:     apiBase,
		MaxFileSize: maxSize,
		Timeout:     5 * time.Second,
	})
}

func TestSendDocument_Success(t *testing.T) {
	var gotPath, gotChatID, gotCaption, gotFileName string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotChatID = r.URL.Query().Get("chat_id")

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotCaption = r.FormValue("caption")
		f, hdr, err := r.FormFile("document")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			gotFileName = hdr.Filename
			gotBody, _ = io.ReadAll(f)
			f.Close()
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":987}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 1<<20)
	msgID, err := c.SendDocument(context.Background(), Document{
		Data:      []byte("essay body"),
		FileName:  "essay.docx",
		RequestID: "req-42",
	})
	if err != nil {
		t.Fatalf("SendDocument: %v", err)
	}
	if msgID != 987 {
		t.Fatalf("message id: %d", msgID)
	}
	if gotPath != "/bottest-token/sendDocument" {
		t.Fatalf("path: %s", gotPath)
	}
	if gotChatID != "-100123" {
		t.Fatalf("chat_id: %s", gotChatID)
	}
	if gotCaption != "req-42" || gotFileName != "essay.docx" || string(gotBody) != "essay body" {
		t.Fatalf("multipart fields: caption=%q file=%q body=%q", gotCaption, gotFileName, gotBody)
	}
}

func TestSendDocument_SizeLimit_NoNetworkCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 8)
	_, err := c.SendDocument(context.Background(), Document{
		Data:      []byte("way past the eight byte limit"),
		FileName:  "big.pdf",
		RequestID: "req-1",
	})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if called {
		t.Fatalf("oversized document must not hit the network")
	}
}

func TestSendDocument_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0)
	_, err := c.SendDocument(context.Background(), Document{Data: []byte("x"), FileName: "a", RequestID: "r"})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected API error with description, got %v", err)
	}
}

func TestSendDocument_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	c := newTestClient(srv.URL, 0)
	_, err := c.SendDocument(context.Background(), Document{Data: []byte("x"), FileName: "a", RequestID: "r"})
	if err == nil || !strings.Contains(err.Error(), "failed to send document") {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}
