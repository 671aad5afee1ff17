package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hamrah-app/hamrah/pkg/session"
)

func newRedisSnapshots(t *testing.T, opts ...session.RedisOption) (*session.RedisSnapshots, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return session.NewRedisSnapshots(client, opts...), mr
}

func TestRedisSnapshots_SaveLoadDelete(t *testing.T) {
	snaps, _ := newRedisSnapshots(t)
	ctx := context.Background()

	if err := snaps.Save(ctx, "sid-1", session.Snapshot{User: user("1", session.RoleAdmin)}); err != nil {
		t.Fatalf("save: %v", err)
	}

	snap, err := snaps.Load(ctx, "sid-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap == nil || snap.User == nil || snap.User.Role != session.RoleAdmin {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	if err := snaps.Delete(ctx, "sid-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if snap, _ := snaps.Load(ctx, "sid-1"); snap != nil {
		t.Errorf("expected snapshot gone, got %+v", snap)
	}
}

func TestRedisSnapshots_AbsentIsNotAnError(t *testing.T) {
	snaps, _ := newRedisSnapshots(t)

	snap, err := snaps.Load(context.Background(), "nobody")
	if err != nil || snap != nil {
		t.Errorf("expected (nil, nil), got (%+v, %v)", snap, err)
	}
}

func TestRedisSnapshots_TTL(t *testing.T) {
	snaps, mr := newRedisSnapshots(t, session.WithRedisTTL(time.Minute))
	ctx := context.Background()

	if err := snaps.Save(ctx, "sid-1", session.Snapshot{User: user("1", session.RoleUser)}); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	snap, err := snaps.Load(ctx, "sid-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap != nil {
		t.Errorf("expected snapshot expired, got %+v", snap)
	}
}

func TestRedisSnapshots_KeyPrefix(t *testing.T) {
	snaps, mr := newRedisSnapshots(t, session.WithRedisPrefix("test:snap:"))

	if err := snaps.Save(context.Background(), "sid-1", session.Snapshot{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("test:snap:sid-1") {
		t.Errorf("expected key under custom prefix, have %v", mr.Keys())
	}
}

func TestRedisSnapshots_Unavailable(t *testing.T) {
	snaps, mr := newRedisSnapshots(t)
	mr.Close()
	ctx := context.Background()

	if err := snaps.Save(ctx, "sid-1", session.Snapshot{}); !errors.Is(err, session.ErrRedisUnavailable) {
		t.Errorf("save: expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := snaps.Load(ctx, "sid-1"); !errors.Is(err, session.ErrRedisUnavailable) {
		t.Errorf("load: expected ErrRedisUnavailable, got %v", err)
	}
	if err := snaps.Delete(ctx, "sid-1"); !errors.Is(err, session.ErrRedisUnavailable) {
		t.Errorf("delete: expected ErrRedisUnavailable, got %v", err)
	}
}

func TestRedisSnapshots_Closed(t *testing.T) {
	snaps, _ := newRedisSnapshots(t)
	if err := snaps.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := snaps.Save(context.Background(), "sid-1", session.Snapshot{}); !errors.Is(err, session.ErrStoreClosed) {
		t.Errorf("save after close: expected ErrStoreClosed, got %v", err)
	}
}
