package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hamrah-app/hamrah/pkg/session"
)

func TestMemorySnapshots_SaveLoadDelete(t *testing.T) {
	snaps := session.NewMemorySnapshots()
	defer snaps.Close()
	ctx := context.Background()

	if err := snaps.Save(ctx, "sid-1", session.Snapshot{User: user("1", session.RoleUser)}); err != nil {
		t.Fatalf("save: %v", err)
	}

	snap, err := snaps.Load(ctx, "sid-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap == nil || snap.User == nil || snap.User.ID != "1" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.User.Role != session.RoleUser {
		t.Errorf("expected role restored, got %v", snap.User.Role)
	}

	if err := snaps.Delete(ctx, "sid-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if snap, _ := snaps.Load(ctx, "sid-1"); snap != nil {
		t.Errorf("expected snapshot gone, got %+v", snap)
	}
}

func TestMemorySnapshots_AbsentIsNotAnError(t *testing.T) {
	snaps := session.NewMemorySnapshots()
	defer snaps.Close()

	snap, err := snaps.Load(context.Background(), "nobody")
	if err != nil || snap != nil {
		t.Errorf("expected (nil, nil), got (%+v, %v)", snap, err)
	}
	if err := snaps.Delete(context.Background(), "nobody"); err != nil {
		t.Errorf("deleting absent snapshot errored: %v", err)
	}
}

func TestMemorySnapshots_Expiry(t *testing.T) {
	snaps := session.NewMemorySnapshots(
		session.WithTTL(10*time.Millisecond),
		session.WithCleanupInterval(time.Hour),
	)
	defer snaps.Close()
	ctx := context.Background()

	if err := snaps.Save(ctx, "sid-1", session.Snapshot{User: user("1", session.RoleUser)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	snap, err := snaps.Load(ctx, "sid-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap != nil {
		t.Errorf("expected expired snapshot unloadable, got %+v", snap)
	}
}

func TestMemorySnapshots_Closed(t *testing.T) {
	snaps := session.NewMemorySnapshots()
	if err := snaps.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := snaps.Close(); err != nil {
		t.Errorf("second close errored: %v", err)
	}

	ctx := context.Background()
	if err := snaps.Save(ctx, "sid-1", session.Snapshot{}); !errors.Is(err, session.ErrStoreClosed) {
		t.Errorf("save after close: expected ErrStoreClosed, got %v", err)
	}
	if _, err := snaps.Load(ctx, "sid-1"); !errors.Is(err, session.ErrStoreClosed) {
		t.Errorf("load after close: expected ErrStoreClosed, got %v", err)
	}
	if err := snaps.Delete(ctx, "sid-1"); !errors.Is(err, session.ErrStoreClosed) {
		t.Errorf("delete after close: expected ErrStoreClosed, got %v", err)
	}
}
