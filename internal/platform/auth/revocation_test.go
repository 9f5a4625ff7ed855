package auth

import (
	"testing"
	"time"
)

func TestTokenRevocationStore(t *testing.T) {
	s := NewTokenRevocationStore(time.Hour)
	defer s.Close()

	if s.IsRevoked("jti-1") {
		t.Fatal("expected jti-1 not revoked")
	}
	s.Revoke("jti-1", time.Now().Add(time.Hour))
	if !s.IsRevoked("jti-1") {
		t.Fatal("expected jti-1 revoked")
	}
	if s.Count() != 1 {
		t.Errorf("expected 1 entry, got %d", s.Count())
	}
}

func TestTokenRevocationStore_CleanupDropsExpired(t *testing.T) {
	s := NewTokenRevocationStore(time.Hour)
	defer s.Close()

	now := time.Now()
	s.now = func() time.Time { return now }
	s.Revoke("old", now.Add(-time.Minute))
	s.Revoke("live", now.Add(time.Minute))

	s.cleanup()

	if s.IsRevoked("old") {
		t.Error("expected expired entry to be dropped")
	}
	if !s.IsRevoked("live") {
		t.Error("expected live entry to remain")
	}
}

func TestTokenRevocationStore_CloseTwice(t *testing.T) {
	s := NewTokenRevocationStore(time.Hour)
	s.Close()
	s.Close()
}
