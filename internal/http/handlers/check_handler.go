// Check HTTP handlers.
//
// This file exposes REST endpoints for document check requests:
//   - POST /checks/{kind}          (submit a document for checking)
//   - GET  /checks/{kind}          (list requests, paginated)
//   - GET  /checks/{kind}/{id}     (fetch one request)
//   - GET  /checks/stats           (per-status row counts for every kind)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// submission exists for (user, kind, key), the handler returns the recorded
// request row and sets `Idempotency-Replayed: true` instead of storing and
// sending the document again.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/paperpeak/go-check-backend/internal/domain"
	"github.com/paperpeak/go-check-backend/internal/repo"
	"github.com/paperpeak/go-check-backend/internal/services"
	"github.com/paperpeak/go-check-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// CheckService defines the submission lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type CheckService interface {
	// Submit stores the document, creates a request row of the given kind,
	// and performs the first delivery attempt.
	Submit(ctx context.Context, kind domain.CheckKind, fileName string, data []byte, contentType string) (*domain.DeliveryRequest, error)
	// Get returns one request row of the given kind.
	Get(ctx context.Context, kind domain.CheckKind, id string) (*domain.DeliveryRequest, error)
	// ListPage returns a page of request rows for a kind and the total count.
	ListPage(ctx context.Context, kind domain.CheckKind, page, pageSize int) ([]domain.DeliveryRequest, int64, error)
	// Stats returns per-status row counts for every kind.
	Stats(ctx context.Context) (map[domain.CheckKind]map[string]int64, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for check submission and webhook intake.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	checkSvc CheckService
	hookSvc  ResultApplier
	idemTTL  time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
// idemTTL is how long a stored Idempotency-Key keeps replaying its result.
func New(checkSvc CheckService, hookSvc ResultApplier, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{checkSvc: checkSvc, hookSvc: hookSvc, idemTTL: idemTTL}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListChecksResponse wraps a page of request rows and pagination information.
type ListChecksResponse struct {
	Requests   []domain.DeliveryRequest `json:"requests"`
	Pagination Pagination               `json:"pagination"`
}

// StatsResponse maps each check kind to its per-status row counts.
type StatsResponse struct {
	Kinds map[domain.CheckKind]map[string]int64 `json:"kinds"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// parseKindParam resolves the :kind path parameter or fails the request.
func parseKindParam(c *gin.Context) (domain.CheckKind, bool) {
	kind, err := domain.ParseKind(c.Param("kind"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown check kind; use one of: ai-score, plagiarism")
		return "", false
	}
	return kind, true
}

// idempotencyKey extracts an idempotency key if an upstream middleware has
// already validated/stashed it. The fallback behavior reads the
// "Idempotency-Key" header directly when no dedicated middleware exists.
func idempotencyKey(c *gin.Context) (string, bool) {
	if v := strings.TrimSpace(c.GetHeader("Idempotency-Key")); v != "" {
		return v, true
	}
	return "", false
}

//
// Handlers
//

// SubmitCheck handles POST /checks/{kind}.
//
// The document arrives as the multipart form file "document". On success the
// post-attempt request row is returned with 201; a failed delivery attempt is
// still a successful submission (the sweeper owns recovery), so the row comes
// back with telegram_status FAILED rather than an error envelope.
func (h *Handlers) SubmitCheck(c *gin.Context) {
	ctx := c.Request.Context()

	kind, okKind := parseKindParam(c)
	if !okKind {
		return
	}
	currentUser := userID(c)

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := idempotencyKey(c)
	if idemKey != "" {
		if svc, okSvc := h.checkSvc.(*services.SubmitService); okSvc && svc.DB != nil {
			if rec, err := repo.GetIdempotency(ctx, svc.DB, currentUser, kind, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := h.checkSvc.Get(ctx, kind, rec.RequestID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusOK, prev)
					return
				}
			}
		}
	}

	fh, err := c.FormFile("document")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, `multipart file field "document" required`)
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable upload")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable upload")
		return
	}
	contentType := fh.Header.Get("Content-Type")

	r, err := h.checkSvc.Submit(ctx, kind, fh.Filename, data, contentType)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyDocument):
			fail(c, http.StatusBadRequest, ErrCodeEmptyDocument, "document must not be empty")
		case errors.Is(err, services.ErrDocumentTooLarge):
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge, "document exceeds the size limit")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSubmitFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" {
		if svc, okSvc := h.checkSvc.(*services.SubmitService); okSvc && svc.DB != nil {
			_, _ = repo.CreateIdempotency(ctx, svc.DB, currentUser, kind, idemKey, r.ID, http.StatusCreated, h.idemTTL)
		}
	}

	ok(c, http.StatusCreated, r)
}

// GetCheck handles GET /checks/{kind}/{id}.
func (h *Handlers) GetCheck(c *gin.Context) {
	kind, okKind := parseKindParam(c)
	if !okKind {
		return
	}
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id must be a UUID")
		return
	}

	r, err := h.checkSvc.Get(c.Request.Context(), kind, id)
	if err != nil {
		if errors.Is(err, services.ErrRequestNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "request not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, r)
}

// ListChecks handles GET /checks/{kind} with page/page_size query params.
func (h *Handlers) ListChecks(c *gin.Context) {
	kind, okKind := parseKindParam(c)
	if !okKind {
		return
	}
	page, pageSize := clampPagination(c)

	items, total, err := h.checkSvc.ListPage(c.Request.Context(), kind, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListChecksResponse{
		Requests: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// CheckStats handles GET /checks/stats.
func (h *Handlers) CheckStats(c *gin.Context) {
	stats, err := h.checkSvc.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, StatsResponse{Kinds: stats})
}
