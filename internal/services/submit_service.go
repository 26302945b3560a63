// Package services – SubmitService
//
// This file implements SubmitService, the application-level component that
// accepts a user document for checking. It validates the document, stores it
// in blob storage, inserts a PENDING request row, and performs the first
// delivery attempt. A failed first attempt does not fail the submission: the
// row is marked FAILED with the error text and left for the retry sweeper.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the kind and request identifiers.
package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/paperpeak/go-check-backend/internal/domain"
	"github.com/paperpeak/go-check-backend/internal/repo"
	"github.com/paperpeak/go-check-backend/internal/storage"
	"github.com/paperpeak/go-check-backend/internal/telegram"
)

// DocumentSender is the capability SubmitService and SweeperService need
// from the bot client: one delivery attempt returning the bot message id.
//
// Implementations must honor the provided context and enforce their own
// size limit (returning telegram.ErrFileTooLarge without a network call).
type DocumentSender interface {
	SendDocument(ctx context.Context, doc telegram.Document) (int64, error)
}

// SubmitService owns the submission lifecycle of check requests.
type SubmitService struct {
	DB     *gorm.DB
	Blobs  storage.BlobStore
	Sender DocumentSender

	// MaxFileSize rejects documents before they are stored; must match the
	// sender's limit so nothing stored can later be unsendable.
	MaxFileSize int64
}

// Submit validates and stores the document, creates a PENDING request row
// for the given kind, and performs the initial delivery attempt.
//
// Transitions:
//   - send succeeds: PENDING → PROCESSING (message id recorded)
//   - send fails:    PENDING → FAILED (error text recorded, sweeper recovers)
//
// The returned row reflects the post-attempt state. Submission errors
// (ErrEmptyDocument, ErrDocumentTooLarge, storage/DB failures) are returned
// directly; a delivery failure is not a submission error.
func (s *SubmitService) Submit(ctx context.Context, kind domain.CheckKind, fileName string, data []byte, contentType string) (*domain.DeliveryRequest, error) {
	tr := otel.Tracer("services/SubmitService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("check.kind", string(kind)),
			attribute.String("file.name", fileName),
			attribute.Int("file.size", len(data)),
		),
	)
	defer span.End()

	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	if s.MaxFileSize > 0 && int64(len(data)) > s.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrDocumentTooLarge, len(data), s.MaxFileSize)
	}

	fileName = sanitizeFileName(fileName)
	fileKey := path.Join(string(kind), uuid.NewString(), fileName)

	if err := s.Blobs.Put(ctx, fileKey, data, contentType); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	r, err := repo.CreateRequest(ctx, s.DB, kind, fileKey, fileName)
	if err != nil {
		return nil, err
	}

	msgID, sendErr := s.Sender.SendDocument(ctx, telegram.Document{
		Data:      data,
		FileName:  fileName,
		RequestID: r.ID,
	})
	if sendErr != nil {
		sendsTotal.WithLabelValues(string(kind), "failed").Inc()
		if err := repo.MarkFailed(ctx, s.DB, kind, r.ID, sendErr.Error()); err != nil {
			return nil, err
		}
		r.TelegramStatus = domain.StatusFailed
		r.TelegramError = sendErr.Error()
		return r, nil
	}

	sendsTotal.WithLabelValues(string(kind), "sent").Inc()
	if err := repo.MarkProcessing(ctx, s.DB, kind, r.ID, msgID); err != nil {
		return nil, err
	}
	r.TelegramStatus = domain.StatusProcessing
	r.TelegramMessageID = msgID
	return r, nil
}

// Get returns one request row, or ErrRequestNotFound.
func (s *SubmitService) Get(ctx context.Context, kind domain.CheckKind, id string) (*domain.DeliveryRequest, error) {
	r, err := repo.GetRequest(ctx, s.DB, kind, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	return r, err
}

// ListPage returns paginated request rows for a kind plus the total count.
func (s *SubmitService) ListPage(ctx context.Context, kind domain.CheckKind, page, pageSize int) ([]domain.DeliveryRequest, int64, error) {
	tr := otel.Tracer("services/SubmitService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("check.kind", string(kind)),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountRequests(ctx, s.DB, kind)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.DeliveryRequest{}, 0, nil
	}

	items, err := repo.ListRequestsPage(ctx, s.DB, kind, offset, pageSize)
	return items, total, err
}

// Stats returns per-status row counts for every kind.
func (s *SubmitService) Stats(ctx context.Context) (map[domain.CheckKind]map[string]int64, error) {
	out := make(map[domain.CheckKind]map[string]int64, len(domain.Kinds))
	for _, kind := range domain.Kinds {
		counts, err := repo.StatusCounts(ctx, s.DB, kind)
		if err != nil {
			return nil, err
		}
		out[kind] = counts
	}
	return out, nil
}

// sanitizeFileName strips any path components from a client-supplied
// filename so it cannot escape its object key prefix.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return "document"
	}
	return name
}
