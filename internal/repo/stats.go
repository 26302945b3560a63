// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the operator-facing stats endpoint. Each function is context-aware and
// safe to call from services or handlers.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/paperpeak/go-check-backend/internal/domain"
)

// StatusCounts returns the number of rows per telegram_status for a kind.
// Statuses with no rows are absent from the map.
//
// The query is a single GROUP BY over the kind's table, cheap enough to run
// on every stats request without caching.
func StatusCounts(ctx context.Context, db *gorm.DB, kind domain.CheckKind) (map[string]int64, error) {
	var rows []struct {
		TelegramStatus string
		N              int64
	}
	err := db.WithContext(ctx).Table(kind.Table()).
		Select("telegram_status, COUNT(*) AS n").
		Group("telegram_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.TelegramStatus] = r.N
	}
	return out, nil
}
