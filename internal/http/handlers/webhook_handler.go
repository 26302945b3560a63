// Webhook HTTP handler.
//
// This file exposes the intake endpoint the scoring bot pushes results to:
//   - POST /telegram/webhook
//
// The bot echoes the configured shared secret in the
// X-Telegram-Bot-Api-Secret-Token header; any mismatch is rejected with 401
// before the body is considered. Everything that authenticates is
// acknowledged with 200, including malformed result texts and unknown
// request ids, so the bot platform never retries a payload the backend has
// already decided about. Failures are recorded in logs and metrics instead.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/paperpeak/go-check-backend/internal/services"
	"github.com/paperpeak/go-check-backend/internal/telegram"
)

// HeaderWebhookSecret is the header the Telegram Bot API uses to echo the
// secret token configured via setWebhook.
const HeaderWebhookSecret = "X-Telegram-Bot-Api-Secret-Token"

// ResultApplier defines the webhook operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ResultApplier interface {
	// VerifySignature checks the echoed secret in constant time.
	VerifySignature(signature string) error
	// Apply finalizes the request row referenced by a parsed result.
	Apply(ctx context.Context, res telegram.Result) (applied bool, err error)
}

// WebhookStatusResponse is the acknowledgement body for webhook calls.
type WebhookStatusResponse struct {
	Status string `json:"status"` // processed | replayed | ignored
}

// TelegramWebhook handles POST /telegram/webhook.
//
// Responses:
//   - 401 unauthorized: secret header missing or wrong
//   - 400 bad_request: body is not a JSON update
//   - 200 processed:   a request row was completed
//   - 200 replayed:    the row was already terminal; nothing changed
//   - 200 ignored:     no message text, malformed result, or unknown id
func (h *Handlers) TelegramWebhook(c *gin.Context) {
	if err := h.hookSvc.VerifySignature(c.GetHeader(HeaderWebhookSecret)); err != nil {
		services.ObserveWebhookOutcome(services.WebhookOutcomeBadSignature)
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid webhook secret")
		return
	}

	var upd telegram.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if upd.Message == nil || upd.Message.Text == "" {
		// Non-result updates (edits, service messages) are acknowledged as-is.
		ok(c, http.StatusOK, WebhookStatusResponse{Status: "ignored"})
		return
	}

	res, err := telegram.ParseResultText(upd.Message.Text)
	if err != nil {
		var pe *telegram.ParseError
		if errors.As(err, &pe) {
			log.Warn().
				Int64("update_id", upd.UpdateID).
				Str("reason", pe.Reason).
				Msg("malformed webhook result text")
			services.ObserveWebhookOutcome(services.WebhookOutcomeMalformed)
			ok(c, http.StatusOK, WebhookStatusResponse{Status: "ignored"})
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	applied, err := h.hookSvc.Apply(c.Request.Context(), res)
	if err != nil {
		if errors.Is(err, services.ErrRequestNotFound) {
			log.Warn().
				Int64("update_id", upd.UpdateID).
				Str("request_id", res.RequestID).
				Msg("webhook result references unknown request")
			ok(c, http.StatusOK, WebhookStatusResponse{Status: "ignored"})
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	if !applied {
		ok(c, http.StatusOK, WebhookStatusResponse{Status: "replayed"})
		return
	}
	ok(c, http.StatusOK, WebhookStatusResponse{Status: "processed"})
}
