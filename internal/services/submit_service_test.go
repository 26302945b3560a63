package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/paperpeak/go-check-backend/internal/domain"
	"github.com/paperpeak/go-check-backend/internal/repo"
	"github.com/paperpeak/go-check-backend/internal/telegram"
)

// test DB helper
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// stubStore is an in-memory storage.BlobStore.
type stubStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	getErr  error
}

func newStubStore() *stubStore {
	return &stubStore{objects: make(map[string][]byte)}
}

func (s *stubStore) Put(_ context.Context, key string, data []byte, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *stubStore) Get(_ context.Context, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return data, nil
}

// stubSender records delivery attempts and fails on demand.
type stubSender struct {
	mu      sync.Mutex
	calls   []telegram.Document
	sendErr error
	msgID   int64
}

func (s *stubSender) SendDocument(_ context.Context, doc telegram.Document) (int64, error) {
	s.mu.Lock()
	s.calls = append(s.calls, doc)
	s.mu.Unlock()
	if s.sendErr != nil {
		return 0, s.sendErr
	}
	return s.msgID, nil
}

func (s *stubSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newSubmitService(t *testing.T) (*SubmitService, *stubStore, *stubSender) {
	t.Helper()
	store := newStubStore()
	sender := &stubSender{msgID: 42}
	svc := &SubmitService{
		DB:          newServiceDB(t),
		Blobs:       store,
		Sender:      sender,
		MaxFileSize: 1 << 20,
	}
	return svc, store, sender
}

func TestSubmit_SendSucceeds(t *testing.T) {
	svc, store, sender := newSubmitService(t)
	ctx := context.Background()

	r, err := svc.Submit(ctx, domain.KindAIScore, "thesis.pdf", []byte("doc-bytes"), "application/pdf")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r.TelegramStatus != domain.StatusProcessing {
		t.Fatalf("status = %q, want %q", r.TelegramStatus, domain.StatusProcessing)
	}
	if r.TelegramMessageID != 42 {
		t.Fatalf("message id = %d, want 42", r.TelegramMessageID)
	}
	if sender.callCount() != 1 {
		t.Fatalf("send calls = %d, want 1", sender.callCount())
	}

	// The stored object must be retrievable under the row's file key.
	data, err := store.Get(ctx, r.FileKey)
	if err != nil || string(data) != "doc-bytes" {
		t.Fatalf("stored object mismatch: %q, %v", data, err)
	}

	// Persisted state matches the returned row.
	got, err := repo.GetRequest(ctx, svc.DB, domain.KindAIScore, r.ID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.TelegramStatus != domain.StatusProcessing || got.TelegramMessageID != 42 {
		t.Fatalf("persisted row mismatch: %+v", got)
	}
}

func TestSubmit_SendFailsLeavesRowForSweeper(t *testing.T) {
	svc, _, sender := newSubmitService(t)
	sender.sendErr = errors.New("telegram unavailable")
	ctx := context.Background()

	r, err := svc.Submit(ctx, domain.KindPlagiarism, "essay.docx", []byte("contents"), "application/octet-stream")
	if err != nil {
		t.Fatalf("Submit should not fail on delivery error, got %v", err)
	}
	if r.TelegramStatus != domain.StatusFailed {
		t.Fatalf("status = %q, want %q", r.TelegramStatus, domain.StatusFailed)
	}
	if r.TelegramError != "telegram unavailable" {
		t.Fatalf("telegram error = %q", r.TelegramError)
	}

	got, err := repo.GetRequest(ctx, svc.DB, domain.KindPlagiarism, r.ID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.TelegramStatus != domain.StatusFailed || got.RetryCount != 0 {
		t.Fatalf("persisted row mismatch: %+v", got)
	}
}

func TestSubmit_Validation(t *testing.T) {
	svc, store, sender := newSubmitService(t)
	svc.MaxFileSize = 8
	ctx := context.Background()

	if _, err := svc.Submit(ctx, domain.KindAIScore, "a.pdf", nil, ""); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("empty document: got %v", err)
	}
	if _, err := svc.Submit(ctx, domain.KindAIScore, "a.pdf", []byte("way too large"), ""); !errors.Is(err, ErrDocumentTooLarge) {
		t.Fatalf("oversized document: got %v", err)
	}

	// Rejected submissions must not touch storage or the bot.
	if len(store.objects) != 0 {
		t.Fatalf("store has %d objects, want 0", len(store.objects))
	}
	if sender.callCount() != 0 {
		t.Fatalf("send calls = %d, want 0", sender.callCount())
	}
}

func TestSubmit_StorageFailure(t *testing.T) {
	svc, store, sender := newSubmitService(t)
	store.putErr = errors.New("minio down")
	ctx := context.Background()

	if _, err := svc.Submit(ctx, domain.KindAIScore, "a.pdf", []byte("x"), ""); err == nil || !strings.Contains(err.Error(), "minio down") {
		t.Fatalf("expected storage error, got %v", err)
	}
	if sender.callCount() != 0 {
		t.Fatalf("send calls = %d, want 0", sender.callCount())
	}
	var count int64
	if err := svc.DB.Table(domain.KindAIScore.Table()).Count(&count).Error; err != nil || count != 0 {
		t.Fatalf("rows = %d (err %v), want 0", count, err)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc, _, _ := newSubmitService(t)

	if _, err := svc.Get(context.Background(), domain.KindAIScore, "missing"); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("got %v, want ErrRequestNotFound", err)
	}
}

func TestListPageAndStats(t *testing.T) {
	svc, _, _ := newSubmitService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Submit(ctx, domain.KindAIScore, fmt.Sprintf("f%d.pdf", i), []byte("x"), ""); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	items, total, err := svc.ListPage(ctx, domain.KindAIScore, 1, 2)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("total = %d, len = %d; want 3, 2", total, len(items))
	}

	// Empty kind short-circuits with an empty page.
	items, total, err = svc.ListPage(ctx, domain.KindPlagiarism, 1, 2)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("empty kind: items=%d total=%d err=%v", len(items), total, err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[domain.KindAIScore][domain.StatusProcessing] != 3 {
		t.Fatalf("stats mismatch: %+v", stats)
	}
	if len(stats[domain.KindPlagiarism]) != 0 {
		t.Fatalf("expected no plagiarism counts, got %+v", stats[domain.KindPlagiarism])
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"thesis.pdf", "thesis.pdf"},
		{"  padded.docx ", "padded.docx"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\x\essay.docx`, "essay.docx"},
		{"", "document"},
		{"/", "document"},
		{".", "document"},
	}
	for _, c := range cases {
		if got := sanitizeFileName(c.in); got != c.want {
			t.Errorf("sanitizeFileName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
