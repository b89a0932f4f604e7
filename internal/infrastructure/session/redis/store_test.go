package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kirillkom/broker-docs/internal/core/domain"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	store, err := New("redis://"+server.Addr(), Options{TTL: ttl})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, server
}

func TestSaveAndLoadSession(t *testing.T) {
	store, server := newTestStore(t, 0)
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	err := store.Save(ctx, domain.Session{
		ID:           "sess-1",
		AccessToken:  "ya29.token",
		RootFolderID: "root-1",
		UserEmail:    "broker@example.com",
		CreatedAt:    created,
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if got := server.HGet("session:sess-1", "google_access_token"); got != "ya29.token" {
		t.Fatalf("expected token in hash field, got %q", got)
	}

	session, err := store.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if session.AccessToken != "ya29.token" || session.RootFolderID != "root-1" || session.UserEmail != "broker@example.com" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if !session.CreatedAt.Equal(created) {
		t.Fatalf("expected created %v, got %v", created, session.CreatedAt)
	}
	if !session.Complete() {
		t.Fatalf("expected complete session")
	}
}

func TestLoadMissingSessionIsNotFound(t *testing.T) {
	store, _ := newTestStore(t, 0)

	_, err := store.Load(context.Background(), "absent")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSessionExpires(t *testing.T) {
	store, server := newTestStore(t, time.Hour)
	ctx := context.Background()

	if err := store.Save(ctx, domain.Session{ID: "sess-2", AccessToken: "t", RootFolderID: "r", UserEmail: "e"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if ttl := server.TTL("session:sess-2"); ttl != time.Hour {
		t.Fatalf("expected ttl 1h, got %v", ttl)
	}

	server.FastForward(2 * time.Hour)
	if _, err := store.Load(ctx, "sess-2"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected expired session to be not found, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	if err := store.Save(ctx, domain.Session{ID: "sess-3", AccessToken: "t", RootFolderID: "r", UserEmail: "e"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(ctx, "sess-3"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Load(ctx, "sess-3"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected deleted session to be not found, got %v", err)
	}
}

func TestSaveRequiresID(t *testing.T) {
	store, _ := newTestStore(t, 0)

	err := store.Save(context.Background(), domain.Session{AccessToken: "t"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("not-a-url", Options{}); err == nil {
		t.Fatalf("expected parse error")
	}
}
