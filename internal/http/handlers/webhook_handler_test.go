package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/paperpeak/go-check-backend/internal/services"
	"github.com/paperpeak/go-check-backend/internal/telegram"
)

func postWebhook(r http.Handler, secret string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(HeaderWebhookSecret, secret)
	}
	return postServe(r, w, req)
}

func postServe(r http.Handler, w *httptest.ResponseRecorder, req *http.Request) *httptest.ResponseRecorder {
	r.ServeHTTP(w, req)
	return w
}

func resultUpdate(t *testing.T, text string) []byte {
	t.Helper()
	b, err := json.Marshal(telegram.Update{
		UpdateID: 7,
		Message:  &telegram.Message{MessageID: 1, Text: text},
	})
	if err != nil {
		t.Fatalf("marshal update: %v", err)
	}
	return b
}

func webhookStatus(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp WebhookStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.Status
}

func TestTelegramWebhook_BadSecret(t *testing.T) {
	applied := false
	hook := &stubApplier{
		verifyErr: services.ErrBadSignature,
		applyFn: func(context.Context, telegram.Result) (bool, error) {
			applied = true
			return true, nil
		},
	}
	r := newCheckRouter(&stubCheckService{}, hook)

	base := testutil.ToFloat64(services.WebhookResultsTotal.WithLabelValues(services.WebhookOutcomeBadSignature))

	w := postWebhook(r, "wrong", resultUpdate(t, "r-1|8.5|1.2"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if applied {
		t.Fatal("Apply must not run on bad signature")
	}

	// Missing header entirely behaves the same.
	w = postWebhook(r, "", resultUpdate(t, "r-1|8.5|1.2"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing header, got %d", w.Code)
	}

	got := testutil.ToFloat64(services.WebhookResultsTotal.WithLabelValues(services.WebhookOutcomeBadSignature))
	if got != base+2 {
		t.Fatalf("bad_signature outcomes = %v, want %v", got, base+2)
	}
}

func TestTelegramWebhook_Processed(t *testing.T) {
	var got telegram.Result
	hook := &stubApplier{
		applyFn: func(_ context.Context, res telegram.Result) (bool, error) {
			got = res
			return true, nil
		},
	}
	r := newCheckRouter(&stubCheckService{}, hook)

	w := postWebhook(r, "s", resultUpdate(t, "r-9|8.5|1.25|https://a|https://b"))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if webhookStatus(t, w) != "processed" {
		t.Fatalf("status body: %s", w.Body.String())
	}
	if got.RequestID != "r-9" || got.AIScore != 8.5 || got.PlagiarismScore != 1.25 ||
		got.AIReportURL != "https://a" || got.PlagiarismReportURL != "https://b" {
		t.Fatalf("parsed result unexpected: %+v", got)
	}
}

func TestTelegramWebhook_Replayed(t *testing.T) {
	hook := &stubApplier{
		applyFn: func(context.Context, telegram.Result) (bool, error) { return false, nil },
	}
	r := newCheckRouter(&stubCheckService{}, hook)

	w := postWebhook(r, "s", resultUpdate(t, "r-9|8.5|1.25"))
	if w.Code != http.StatusOK || webhookStatus(t, w) != "replayed" {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestTelegramWebhook_MalformedTextAcknowledged(t *testing.T) {
	applied := false
	hook := &stubApplier{
		applyFn: func(context.Context, telegram.Result) (bool, error) {
			applied = true
			return true, nil
		},
	}
	r := newCheckRouter(&stubCheckService{}, hook)

	for _, text := range []string{"no pipes here", "id|notanumber|2", "|8.5|1.2"} {
		w := postWebhook(r, "s", resultUpdate(t, text))
		if w.Code != http.StatusOK || webhookStatus(t, w) != "ignored" {
			t.Fatalf("text %q: status=%d body=%s", text, w.Code, w.Body.String())
		}
	}
	if applied {
		t.Fatal("Apply must not run for malformed text")
	}
}

func TestTelegramWebhook_UnknownIDAcknowledged(t *testing.T) {
	hook := &stubApplier{
		applyFn: func(context.Context, telegram.Result) (bool, error) {
			return false, services.ErrRequestNotFound
		},
	}
	r := newCheckRouter(&stubCheckService{}, hook)

	w := postWebhook(r, "s", resultUpdate(t, "ghost|1|2"))
	if w.Code != http.StatusOK || webhookStatus(t, w) != "ignored" {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestTelegramWebhook_NonResultUpdateIgnored(t *testing.T) {
	hook := &stubApplier{
		applyFn: func(context.Context, telegram.Result) (bool, error) { return true, nil },
	}
	r := newCheckRouter(&stubCheckService{}, hook)

	// Update without a message (e.g. an edit) is acknowledged as ignored.
	b, _ := json.Marshal(telegram.Update{UpdateID: 3})
	w := postWebhook(r, "s", b)
	if w.Code != http.StatusOK || webhookStatus(t, w) != "ignored" {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestTelegramWebhook_InvalidJSON(t *testing.T) {
	r := newCheckRouter(&stubCheckService{}, &stubApplier{})

	w := postWebhook(r, "s", []byte("{not json"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
