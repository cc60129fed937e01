package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNilStoreNotConfigured(t *testing.T) {
	var s *Store
	ctx := context.Background()

	if _, err := s.InsertAlert(ctx, AlertRecord{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("未配置连接池应返回 ErrNotConfigured, 实际 %v", err)
	}
	if _, err := s.ListRecentAlerts(ctx, 10); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := s.ListAlertsBetween(ctx, time.Now().Add(-time.Hour), time.Now()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("unexpected error %v", err)
	}
	if _, _, err := s.TryAdvisoryLock(ctx, 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("unexpected error %v", err)
	}
	s.Close()
}
