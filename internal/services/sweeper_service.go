// Package services – SweeperService
//
// This file implements the retry sweeper: the bounded, periodic recovery job
// for deliveries stuck in FAILED. Each sweep selects a small batch per check
// kind, claims every row with a conditional update, re-fetches the original
// document from blob storage, and re-sends it to the bot.
//
// Failure semantics per row:
//   - claim lost (row no longer FAILED): skip, another sweep or the webhook
//     got there first.
//   - resend ok: RETRY → SENT.
//   - resend failed, retry budget exhausted: RETRY → FAILED_PERMANENT with
//     the error retained.
//   - resend failed, budget left: RETRY → FAILED so the next sweep can
//     select the row again.
//
// Every row runs inside its own error boundary: one bad row never aborts
// the remainder of the batch, and the sweep returns a per-kind report of
// what happened.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/paperpeak/go-check-backend/internal/domain"
	"github.com/paperpeak/go-check-backend/internal/repo"
	"github.com/paperpeak/go-check-backend/internal/storage"
	"github.com/paperpeak/go-check-backend/internal/telegram"
)

// SweeperService retries failed deliveries in bounded batches.
type SweeperService struct {
	DB     *gorm.DB
	Blobs  storage.BlobStore
	Sender DocumentSender

	// MaxRetries is the total retry budget per row; a row whose counter
	// reaches it transitions to FAILED_PERMANENT.
	MaxRetries int
	// BatchSize caps rows selected per kind per sweep; values <= 0 default
	// to 10.
	BatchSize int
}

// KindReport summarizes one kind's share of a sweep.
type KindReport struct {
	Selected  int `json:"selected"`
	Sent      int `json:"sent"`
	Released  int `json:"released"`
	Exhausted int `json:"exhausted"`
	ClaimLost int `json:"claim_lost"`
	Errors    int `json:"errors"`
}

// SweepReport is the outcome of one full sweep across all kinds.
type SweepReport map[domain.CheckKind]KindReport

// Sweep runs one bounded recovery pass over every check kind. Row-level
// failures are absorbed into the report; the returned error aggregates only
// selection-level database failures.
func (s *SweeperService) Sweep(ctx context.Context) (SweepReport, error) {
	tr := otel.Tracer("services/SweeperService")
	ctx, span := tr.Start(ctx, "Sweep")
	defer span.End()

	batch := s.BatchSize
	if batch <= 0 {
		batch = 10
	}

	report := make(SweepReport, len(domain.Kinds))
	var selectErrs []error

	for _, kind := range domain.Kinds {
		rows, err := repo.FindRetryable(ctx, s.DB, kind, s.MaxRetries, batch)
		if err != nil {
			selectErrs = append(selectErrs, fmt.Errorf("select %s: %w", kind, err))
			log.Error().Err(err).Str("kind", string(kind)).Msg("sweep selection failed")
			continue
		}

		kr := KindReport{Selected: len(rows)}
		for i := range rows {
			s.sweepRow(ctx, kind, &rows[i], &kr)
		}
		report[kind] = kr

		span.SetAttributes(
			attribute.Int("sweep."+string(kind)+".selected", kr.Selected),
			attribute.Int("sweep."+string(kind)+".sent", kr.Sent),
		)
	}

	return report, errors.Join(selectErrs...)
}

// sweepRow processes a single claimed row. All failures are recorded on the
// report and logged; nothing propagates to the batch loop.
func (s *SweeperService) sweepRow(ctx context.Context, kind domain.CheckKind, row *domain.DeliveryRequest, kr *KindReport) {
	lg := log.With().
		Str("kind", string(kind)).
		Str("request_id", row.ID).
		Int("retry_count", row.RetryCount).
		Logger()

	claimed, err := repo.ClaimForRetry(ctx, s.DB, kind, row.ID)
	if err != nil {
		kr.Errors++
		sweepRowsTotal.WithLabelValues(string(kind), "error").Inc()
		lg.Error().Err(err).Msg("claim failed")
		return
	}
	if !claimed {
		kr.ClaimLost++
		sweepRowsTotal.WithLabelValues(string(kind), "claim_lost").Inc()
		lg.Debug().Msg("row claimed elsewhere, skipping")
		return
	}

	// The claim charged one attempt.
	attempt := row.RetryCount + 1

	data, err := s.Blobs.Get(ctx, row.FileKey)
	var msgID int64
	if err == nil {
		msgID, err = s.Sender.SendDocument(ctx, telegram.Document{
			Data:      data,
			FileName:  row.FileName,
			RequestID: row.ID,
		})
		if err == nil {
			marked, uerr := repo.MarkSent(ctx, s.DB, kind, row.ID, msgID)
			if uerr != nil {
				kr.Errors++
				sweepRowsTotal.WithLabelValues(string(kind), "error").Inc()
				lg.Error().Err(uerr).Msg("mark sent failed")
				return
			}
			if !marked {
				kr.ClaimLost++
				sweepRowsTotal.WithLabelValues(string(kind), "claim_lost").Inc()
				lg.Debug().Msg("row finalized elsewhere during resend")
				return
			}
			kr.Sent++
			sweepRowsTotal.WithLabelValues(string(kind), "sent").Inc()
			lg.Info().Int("attempt", attempt).Msg("resend succeeded")
			return
		}
	}

	// Attempt failed (blob fetch or resend).
	if attempt >= s.MaxRetries {
		marked, uerr := repo.MarkFailedPermanent(ctx, s.DB, kind, row.ID, err.Error())
		if uerr != nil {
			kr.Errors++
			sweepRowsTotal.WithLabelValues(string(kind), "error").Inc()
			lg.Error().Err(uerr).Msg("mark failed_permanent failed")
			return
		}
		if !marked {
			kr.ClaimLost++
			sweepRowsTotal.WithLabelValues(string(kind), "claim_lost").Inc()
			lg.Debug().Msg("row finalized elsewhere before exhaustion")
			return
		}
		kr.Exhausted++
		sweepRowsTotal.WithLabelValues(string(kind), "exhausted").Inc()
		lg.Warn().Err(err).Int("attempt", attempt).Msg("retry budget exhausted")
		return
	}

	if uerr := repo.ReleaseToFailed(ctx, s.DB, kind, row.ID, err.Error()); uerr != nil {
		kr.Errors++
		sweepRowsTotal.WithLabelValues(string(kind), "error").Inc()
		lg.Error().Err(uerr).Msg("release to failed failed")
		return
	}
	kr.Released++
	sweepRowsTotal.WithLabelValues(string(kind), "released").Inc()
	lg.Warn().Err(err).Int("attempt", attempt).Msg("resend failed, released for next sweep")
}
