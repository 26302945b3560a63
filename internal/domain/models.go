// Package domain defines the persistence models for document check delivery
// requests. These types are mapped with GORM and form the core data layer of
// the check backend: every document a user submits for scoring becomes one
// row in a kind-specific request table.
package domain

import (
	"errors"
	"time"
)

// Delivery status values for a check request. Transitions are one-directional
// per attempt:
//
//	PENDING --(send ok)--> PROCESSING --(webhook)--> COMPLETED
//	PENDING/PROCESSING --(send failure)--> FAILED
//	FAILED --(sweep claim)--> RETRY --(resend ok)--> SENT --(webhook)--> COMPLETED
//	RETRY --(resend failure, budget left)--> FAILED
//	RETRY --(resend failure, budget exhausted)--> FAILED_PERMANENT
//
// COMPLETED is reachable only through the webhook path and is never
// re-entered into the sweeper's selection.
const (
	StatusPending         = "PENDING"
	StatusProcessing      = "PROCESSING"
	StatusSent            = "SENT"
	StatusRetry           = "RETRY"
	StatusFailed          = "FAILED"
	StatusFailedPermanent = "FAILED_PERMANENT"
	StatusCompleted       = "COMPLETED"
)

// IsTerminalStatus reports whether a row in the given status is finished for
// good: neither the sweeper nor the webhook may mutate it further.
func IsTerminalStatus(s string) bool {
	return s == StatusCompleted || s == StatusFailedPermanent
}

// CheckKind identifies one of the two check request tables. Both kinds share
// the DeliveryRequest schema; they differ only in which external report the
// bot produces first-class.
type CheckKind string

const (
	// KindAIScore is the AI-writing-likelihood check.
	KindAIScore CheckKind = "ai-score"
	// KindPlagiarism is the plagiarism check.
	KindPlagiarism CheckKind = "plagiarism"
)

// Kinds lists all known check kinds in sweep order.
var Kinds = []CheckKind{KindAIScore, KindPlagiarism}

// ErrUnknownKind is returned by ParseKind for unrecognized kind identifiers.
var ErrUnknownKind = errors.New("unknown check kind")

// ParseKind validates a kind identifier as received from URL parameters.
func ParseKind(s string) (CheckKind, error) {
	switch CheckKind(s) {
	case KindAIScore:
		return KindAIScore, nil
	case KindPlagiarism:
		return KindPlagiarism, nil
	default:
		return "", ErrUnknownKind
	}
}

// Table returns the database table backing this kind.
func (k CheckKind) Table() string {
	if k == KindPlagiarism {
		return "plagiarism_requests"
	}
	return "ai_score_requests"
}

// Analysis holds the result payload pushed back by the scoring bot. Populated
// only when the row reaches COMPLETED.
type Analysis struct {
	AIScore             float64 `json:"ai_score"              gorm:"column:analysis_ai_score"`
	PlagiarismScore     float64 `json:"plagiarism_score"      gorm:"column:analysis_plagiarism_score"`
	AIReportURL         string  `json:"ai_report_url"         gorm:"column:analysis_ai_report_url;type:text"`
	PlagiarismReportURL string  `json:"plagiarism_report_url" gorm:"column:analysis_plagiarism_report_url;type:text"`
}

// DeliveryRequest represents one document submitted for external scoring via
// the Telegram bot. It is embedded by the two concrete table models and also
// serves as the scan/update target when the repository addresses a table by
// name.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - FileKey: object key of the submitted document in blob storage.
//   - FileName: display filename used when re-sending the document.
//   - RetryCount: number of sweep attempts consumed; only ever increases.
//   - TelegramStatus: current delivery status (see Status* constants).
//   - TelegramError: last delivery error text, if any.
//   - TelegramMessageID: message id returned by the bot API on send.
//   - Score: headline score for this kind, set when COMPLETED.
//   - Analysis: full result payload, set when COMPLETED.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type DeliveryRequest struct {
	ID                string    `json:"id"         gorm:"type:char(36);primaryKey"`
	FileKey           string    `json:"file_key"   gorm:"type:varchar(255);not null"`
	FileName          string    `json:"file_name"  gorm:"type:varchar(255);not null"`
	RetryCount        int       `json:"retry_count" gorm:"not null;default:0"`
	TelegramStatus    string    `json:"telegram_status" gorm:"type:varchar(32);not null;default:'PENDING';index:,composite:status_updated,priority:1"`
	TelegramError     string    `json:"telegram_error,omitempty" gorm:"type:text"`
	TelegramMessageID int64     `json:"telegram_message_id,omitempty"`
	Score             *float64  `json:"score,omitempty"`
	Analysis          Analysis  `json:"analysis" gorm:"embedded"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"index:,composite:status_updated,priority:2"`
}

// AIScoreRequest is a delivery request row in the AI-score table.
type AIScoreRequest struct {
	DeliveryRequest
}

// TableName returns the database table name for AIScoreRequest.
func (AIScoreRequest) TableName() string { return KindAIScore.Table() }

// PlagiarismRequest is a delivery request row in the plagiarism table.
type PlagiarismRequest struct {
	DeliveryRequest
}

// TableName returns the database table name for PlagiarismRequest.
func (PlagiarismRequest) TableName() string { return KindPlagiarism.Table() }
