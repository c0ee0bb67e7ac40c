package store

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestMemoryRefreshTokenStoreRotateAndDelete(t *testing.T) {
	s := NewMemoryRefreshTokenStore()

	token, err := s.NewToken("user-1", time.Minute)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	userID, nextToken, err := s.RotateToken(token, time.Minute)
	if err != nil {
		t.Fatalf("rotate token: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("unexpected user id: %q", userID)
	}
	if nextToken == "" || nextToken == token {
		t.Fatalf("expected rotated token")
	}

	if err := s.DeleteToken(nextToken); err != nil {
		t.Fatalf("delete token: %v", err)
	}
	if _, _, err := s.RotateToken(nextToken, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid token after delete, got: %v", err)
	}
}

func TestMemoryRefreshTokenStoreDetectsReplay(t *testing.T) {
	s := NewMemoryRefreshTokenStore()

	token, err := s.NewToken("user-2", time.Minute)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	_, nextToken, err := s.RotateToken(token, time.Minute)
	if err != nil {
		t.Fatalf("first rotate: %v", err)
	}

	if _, _, err := s.RotateToken(token, time.Minute); !errors.Is(err, ErrRefreshTokenReplay) {
		t.Fatalf("expected replay detection, got: %v", err)
	}
	if _, _, err := s.RotateToken(nextToken, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected family revoked after replay, got: %v", err)
	}
}

func TestRedisRefreshTokenStoreRotateAndDelete(t *testing.T) {
	redis := miniredis.RunT(t)
	s := NewRedisRefreshTokenStore(redis.Addr(), "")

	token, err := s.NewToken("user-1", time.Minute)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	userID, nextToken, err := s.RotateToken(token, time.Minute)
	if err != nil {
		t.Fatalf("rotate token: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("unexpected user id: %q", userID)
	}
	if nextToken == "" || nextToken == token {
		t.Fatalf("expected rotated token")
	}

	if err := s.DeleteToken(nextToken); err != nil {
		t.Fatalf("delete token: %v", err)
	}
	if _, _, err := s.RotateToken(nextToken, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid token after delete, got: %v", err)
	}
}

func TestRedisRefreshTokenStoreDetectsReplay(t *testing.T) {
	redis := miniredis.RunT(t)
	s := NewRedisRefreshTokenStore(redis.Addr(), "")

	token, err := s.NewToken("user-2", time.Minute)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	_, nextToken, err := s.RotateToken(token, time.Minute)
	if err != nil {
		t.Fatalf("first rotate: %v", err)
	}

	if _, _, err := s.RotateToken(token, time.Minute); !errors.Is(err, ErrRefreshTokenReplay) {
		t.Fatalf("expected replay detection, got: %v", err)
	}
	if _, _, err := s.RotateToken(nextToken, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected family revoked after replay, got: %v", err)
	}
}
