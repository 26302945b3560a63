package repo

import (
	"path/filepath"
	"testing"

	"github.com/paperpeak/go-check-backend/internal/domain"
)

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	if _, err := OpenSQLite(filepath.Join(t.TempDir(), "no-such-dir", "app.db")); err == nil {
		t.Fatalf("expected error for missing parent directory")
	}
}

func TestOpenSQLite_AndMigrate(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, table := range []string{
		domain.KindAIScore.Table(),
		domain.KindPlagiarism.Table(),
		domain.Idempotency{}.TableName(),
	} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}

	// both request tables carry their own sweep index; sqlite index names are
	// database-global, so the names must differ per table
	if !db.Migrator().HasIndex(&domain.AIScoreRequest{}, "idx_ai_score_requests_status_updated") {
		t.Fatalf("missing sweep index on %s", domain.KindAIScore.Table())
	}
	if !db.Migrator().HasIndex(&domain.PlagiarismRequest{}, "idx_plagiarism_requests_status_updated") {
		t.Fatalf("missing sweep index on %s", domain.KindPlagiarism.Table())
	}

	// re-running the migration against the same database must stay clean
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("repeat AutoMigrate: %v", err)
	}
}
