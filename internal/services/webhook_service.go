// Package services – WebhookService
//
// This file implements WebhookService, which finalizes check requests from
// results the scoring bot pushes over its webhook. It authenticates the
// call against a pre-shared secret and applies a parsed result to whichever
// request table holds the referenced row.
//
// The service never un-finishes a row: completion is a conditional update
// skipping terminal statuses, so webhook replays and races with the sweeper
// acknowledge without mutating anything.
package services

import (
	"context"
	"crypto/subtle"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/paperpeak/go-check-backend/internal/domain"
	"github.com/paperpeak/go-check-backend/internal/repo"
	"github.com/paperpeak/go-check-backend/internal/telegram"
)

// WebhookService applies authenticated bot results to request rows.
type WebhookService struct {
	DB *gorm.DB

	// Secret is the shared webhook secret the bot echoes back in the
	// X-Telegram-Bot-Api-Secret-Token header.
	Secret string
}

// VerifySignature checks the caller-supplied signature against the
// configured secret in constant time. An empty configured secret rejects
// every call rather than accepting every call.
func (s *WebhookService) VerifySignature(signature string) error {
	if s.Secret == "" {
		return ErrBadSignature
	}
	if subtle.ConstantTimeCompare([]byte(signature), []byte(s.Secret)) != 1 {
		return ErrBadSignature
	}
	return nil
}

// Apply finalizes the request row referenced by a parsed result.
//
// The wire format does not carry the check kind, so the row is looked up in
// each request table in turn. Outcomes:
//   - row found, not terminal: set COMPLETED with the kind's headline score
//     and the full analysis; returns applied=true.
//   - row found but already terminal: replay; no mutation, applied=false.
//   - row not found anywhere: ErrRequestNotFound.
//   - lookup failed: the error is returned as-is so the caller does not
//     acknowledge the result.
func (s *WebhookService) Apply(ctx context.Context, res telegram.Result) (applied bool, err error) {
	tr := otel.Tracer("services/WebhookService")
	ctx, span := tr.Start(ctx, "Apply",
		trace.WithAttributes(attribute.String("request.id", res.RequestID)),
	)
	defer span.End()

	for _, kind := range domain.Kinds {
		if _, err := repo.GetRequest(ctx, s.DB, kind, res.RequestID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			// Transient lookup failures must surface as errors, not as an
			// acknowledged unknown id, or the result would be lost for good.
			return false, err
		}

		score := res.AIScore
		if kind == domain.KindPlagiarism {
			score = res.PlagiarismScore
		}
		applied, err := repo.CompleteFromWebhook(ctx, s.DB, kind, res.RequestID, score, domain.Analysis{
			AIScore:             res.AIScore,
			PlagiarismScore:     res.PlagiarismScore,
			AIReportURL:         res.AIReportURL,
			PlagiarismReportURL: res.PlagiarismReportURL,
		})
		if err != nil {
			return false, err
		}
		if applied {
			ObserveWebhookOutcome(WebhookOutcomeCompleted)
		} else {
			ObserveWebhookOutcome(WebhookOutcomeReplayed)
		}
		return applied, nil
	}

	ObserveWebhookOutcome(WebhookOutcomeUnknownID)
	return false, ErrRequestNotFound
}
