// Package telegram implements the outbound Telegram Bot API client used to
// deliver documents to the scoring bot, and the parser for the result text
// the bot pushes back over the webhook.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/paperpeak/go-check-backend/internal/sysutil"
)

// DefaultAPIBase is the production Bot API endpoint. Tests override it via
// Config.APIBase with an httptest server URL.
const DefaultAPIBase = "https://api.telegram.org"

// ErrFileTooLarge is returned by SendDocument before any network call when
// the document exceeds the configured size limit.
var ErrFileTooLarge = errors.New("document exceeds maximum file size")

// Config holds the settings for the bot client. Injected explicitly at
// startup; nothing is read from the process environment here.
type Config struct {
	// BotToken authenticates against the Bot API.
	BotToken string
	// ChatID is the destination chat for all documents.
	ChatID string
	// APIBase overrides the Bot API base URL; empty means DefaultAPIBase.
	APIBase string
	// MaxFileSize is the largest document accepted, in bytes.
	MaxFileSize int64
	// Timeout bounds each outbound HTTP call.
	Timeout time.Duration
}

// Document is one outbound delivery: the raw bytes, the display filename,
// and the request id carried in the caption so the bot can correlate its
// asynchronous result with our row.
type Document struct {
	Data      []byte
	FileName  string
	RequestID string
}

// Client sends documents to the scoring bot over the Telegram Bot API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient builds a bot client from the given configuration.
func NewClient(cfg Config) *Client {
	cfg.APIBase = sysutil.FirstNonEmpty(cfg.APIBase, DefaultAPIBase)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// sendDocumentResponse is the Bot API envelope for sendDocument.
type sendDocumentResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// SendDocument performs one multipart sendDocument call and returns the
// message id assigned by the bot API.
//
// The size limit is enforced first: an oversized document is rejected with
// ErrFileTooLarge and no network call is made. Transport errors and non-ok
// API responses are wrapped into a single "failed to send document" error;
// retrying is the sweeper's responsibility, not this layer's.
func (c *Client) SendDocument(ctx context.Context, doc Document) (int64, error) {
	if c.cfg.MaxFileSize > 0 && int64(len(doc.Data)) > c.cfg.MaxFileSize {
		return 0, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, len(doc.Data), c.cfg.MaxFileSize)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("document", doc.FileName)
	if err != nil {
		return 0, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := fw.Write(doc.Data); err != nil {
		return 0, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := w.WriteField("caption", doc.RequestID); err != nil {
		return 0, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to build multipart body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendDocument?chat_id=%s",
		c.cfg.APIBase, c.cfg.BotToken, url.QueryEscape(c.cfg.ChatID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send document: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	var out sendDocumentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("failed to send document: unexpected response (status %d)", resp.StatusCode)
	}
	if !out.OK {
		return 0, fmt.Errorf("failed to send document: %s", nonEmpty(out.Description, resp.Status))
	}
	return out.Result.MessageID, nil
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
