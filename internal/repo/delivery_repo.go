// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for delivery
// request rows. Both check kinds share one schema, so every function
// addresses the table through domain.CheckKind.Table() and scans into the
// embedded domain.DeliveryRequest.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only CRUD persistence and query composition.
//
// Error semantics:
//   - When a request is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On other DB errors the raw gorm error is propagated.
//
// Concurrency:
//   - ClaimForRetry and CompleteFromWebhook are conditional updates guarded
//     by the current status; callers inspect the returned boolean
//     (rows-affected) instead of doing a read-then-write. A row claimed by
//     one sweep cannot be claimed again until its status changes, and a
//     webhook arriving for an already-terminal row is a no-op.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paperpeak/go-check-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
//
// It aliases gorm.ErrRecordNotFound so callers can use errors.Is either way.
var ErrNotFound = gorm.ErrRecordNotFound

// kindTable scopes a query to the request table for the given kind. The
// model target keeps GORM's UpdatedAt handling while Table() picks the
// physical table.
func kindTable(ctx context.Context, db *gorm.DB, kind domain.CheckKind) *gorm.DB {
	return db.WithContext(ctx).Table(kind.Table()).Model(&domain.DeliveryRequest{})
}

// CreateRequest inserts a new PENDING request row for the given kind and
// returns it. FileKey and FileName reference the already-stored blob.
func CreateRequest(ctx context.Context, db *gorm.DB, kind domain.CheckKind, fileKey, fileName string) (*domain.DeliveryRequest, error) {
	now := time.Now().UTC()
	r := &domain.DeliveryRequest{
		ID:             uuid.NewString(),
		FileKey:        fileKey,
		FileName:       fileName,
		TelegramStatus: domain.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := db.WithContext(ctx).Table(kind.Table()).Create(r).Error
	return r, err
}

// GetRequest fetches a request by ID, or ErrNotFound if missing.
func GetRequest(ctx context.Context, db *gorm.DB, kind domain.CheckKind, id string) (*domain.DeliveryRequest, error) {
	var r domain.DeliveryRequest
	err := db.WithContext(ctx).Table(kind.Table()).Where("id = ?", id).First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CountRequests returns the total number of rows for a kind.
func CountRequests(ctx context.Context, db *gorm.DB, kind domain.CheckKind) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Table(kind.Table()).Count(&total).Error
	return total, err
}

// ListRequestsPage returns a paginated slice ordered newest-created-first
// (CreatedAt DESC, ID DESC for determinism).
func ListRequestsPage(ctx context.Context, db *gorm.DB, kind domain.CheckKind, offset, limit int) ([]domain.DeliveryRequest, error) {
	var out []domain.DeliveryRequest
	err := db.WithContext(ctx).Table(kind.Table()).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// FindRetryable selects up to limit rows eligible for the sweeper: status
// FAILED and retry budget left, oldest-updated-first (FIFO fairness).
func FindRetryable(ctx context.Context, db *gorm.DB, kind domain.CheckKind, maxRetries, limit int) ([]domain.DeliveryRequest, error) {
	var out []domain.DeliveryRequest
	err := db.WithContext(ctx).Table(kind.Table()).
		Where("telegram_status = ? AND retry_count < ?", domain.StatusFailed, maxRetries).
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ClaimForRetry atomically transitions a FAILED row to RETRY and increments
// its retry counter. It returns false when the row was not in FAILED anymore
// (claimed by a concurrent sweep, or completed by the webhook meanwhile),
// in which case the caller must skip the row.
//
// Incrementing the counter at claim time means a crash mid-retry leaves the
// row visibly in RETRY with the attempt already charged, never silently
// stuck at FAILED with budget unaccounted for.
func ClaimForRetry(ctx context.Context, db *gorm.DB, kind domain.CheckKind, id string) (bool, error) {
	res := kindTable(ctx, db, kind).
		Where("id = ? AND telegram_status = ?", id, domain.StatusFailed).
		Updates(map[string]any{
			"telegram_status": domain.StatusRetry,
			"retry_count":     gorm.Expr("retry_count + 1"),
			"updated_at":      time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

// MarkProcessing records a successful initial send: PROCESSING status plus
// the message id handed back by the bot API.
func MarkProcessing(ctx context.Context, db *gorm.DB, kind domain.CheckKind, id string, messageID int64) error {
	return kindTable(ctx, db, kind).
		Where("id = ?", id).
		Updates(map[string]any{
			"telegram_status":     domain.StatusProcessing,
			"telegram_message_id": messageID,
			"telegram_error":      "",
			"updated_at":          time.Now().UTC(),
		}).Error
}

// MarkSent records a successful resend from the sweeper. Conditional on the
// row still being in RETRY: if the webhook completed the row between claim
// and resend, the terminal state wins and MarkSent reports false.
func MarkSent(ctx context.Context, db *gorm.DB, kind domain.CheckKind, id string, messageID int64) (bool, error) {
	res := kindTable(ctx, db, kind).
		Where("id = ? AND telegram_status = ?", id, domain.StatusRetry).
		Updates(map[string]any{
			"telegram_status":     domain.StatusSent,
			"telegram_message_id": messageID,
			"telegram_error":      "",
			"updated_at":          time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

// MarkFailed records a send failure with the error text. Used for the first
// delivery attempt; the row becomes eligible for the sweeper.
func MarkFailed(ctx context.Context, db *gorm.DB, kind domain.CheckKind, id, errMsg string) error {
	return kindTable(ctx, db, kind).
		Where("id = ?", id).
		Updates(map[string]any{
			"telegram_status": domain.StatusFailed,
			"telegram_error":  errMsg,
			"updated_at":      time.Now().UTC(),
		}).Error
}

// ReleaseToFailed reverts a RETRY row to FAILED after a non-terminal resend
// failure so the next sweep can select it again. Without this transition a
// failed retry would park the row in RETRY forever, invisible to the
// FAILED-only selection filter.
func ReleaseToFailed(ctx context.Context, db *gorm.DB, kind domain.CheckKind, id, errMsg string) error {
	return kindTable(ctx, db, kind).
		Where("id = ? AND telegram_status = ?", id, domain.StatusRetry).
		Updates(map[string]any{
			"telegram_status": domain.StatusFailed,
			"telegram_error":  errMsg,
			"updated_at":      time.Now().UTC(),
		}).Error
}

// MarkFailedPermanent records retry exhaustion: terminal status with the last
// error retained for operators. Conditional on the row still being in RETRY
// so a webhook completion landing mid-retry is never overwritten; it reports
// false when the row moved on.
func MarkFailedPermanent(ctx context.Context, db *gorm.DB, kind domain.CheckKind, id, errMsg string) (bool, error) {
	res := kindTable(ctx, db, kind).
		Where("id = ? AND telegram_status = ?", id, domain.StatusRetry).
		Updates(map[string]any{
			"telegram_status": domain.StatusFailedPermanent,
			"telegram_error":  errMsg,
			"updated_at":      time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

// CompleteFromWebhook finalizes a row with the scores pushed by the bot. The
// update is conditional on the row not already being terminal, so webhook
// replays and webhook-vs-sweeper races cannot overwrite a finished row; it
// returns false when the row was skipped for that reason.
func CompleteFromWebhook(ctx context.Context, db *gorm.DB, kind domain.CheckKind, id string, score float64, a domain.Analysis) (bool, error) {
	res := kindTable(ctx, db, kind).
		Where("id = ? AND telegram_status NOT IN ?", id, []string{domain.StatusCompleted, domain.StatusFailedPermanent}).
		Updates(map[string]any{
			"telegram_status":              domain.StatusCompleted,
			"telegram_error":               "",
			"score":                        score,
			"analysis_ai_score":            a.AIScore,
			"analysis_plagiarism_score":    a.PlagiarismScore,
			"analysis_ai_report_url":       a.AIReportURL,
			"analysis_plagiarism_report_url": a.PlagiarismReportURL,
			"updated_at":                   time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}
