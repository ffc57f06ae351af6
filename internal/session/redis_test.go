package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/munaimtahir/keystone/pkg/config"
)

func TestRedisRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	backend, err := NewRedis(mr.Addr(), "", 0, "ops")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer backend.Close()
	ctx := context.Background()

	if _, err := backend.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before save, got %v", err)
	}
	rec := Record{Token: "tok", Username: "ops", APIBaseURL: "http://panel:8000"}
	if err := backend.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := mr.Get("keystone:session:ops")
	if err != nil || !strings.Contains(raw, `"token":"tok"`) {
		t.Fatalf("unexpected stored value %q %v", raw, err)
	}
	got, err := backend.Load(ctx)
	if err != nil || got != rec {
		t.Fatalf("load: %+v %v", got, err)
	}

	if err := backend.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists("keystone:session:ops") {
		t.Fatalf("clear should delete the key")
	}
	if _, err := backend.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
	if err := backend.Clear(ctx); err != nil {
		t.Fatalf("second clear should be a no-op, got %v", err)
	}
}

func TestRedisCorruptRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	backend, err := NewRedis(mr.Addr(), "", 0, "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer backend.Close()
	mr.Set("keystone:session:session", "not json")

	_, err = backend.Load(context.Background())
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestRedisBackendRestoresStore(t *testing.T) {
	mr := miniredis.RunT(t)
	backend, err := NewBackend(config.ConsoleConfig{SessionBackend: config.SessionBackendRedis, RedisAddr: mr.Addr()})
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	ctx := context.Background()

	first := NewStore(backend, nil)
	if err := first.Set(ctx, Record{Token: "shared", Username: "ops"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	second := NewStore(backend, nil)
	ok, err := second.Restore(ctx)
	if err != nil || !ok || second.Token() != "shared" {
		t.Fatalf("second operator should reuse the login: %v %v %q", ok, err, second.Token())
	}

	if err := second.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if ok, _ := NewStore(backend, nil).Restore(ctx); ok {
		t.Fatalf("cleared session must not restore")
	}
	if r, ok := backend.(*Redis); ok {
		r.Close()
	}
}

func TestNewRedisFailsWithoutServer(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	addr := mr.Addr()
	mr.Close()
	if _, err := NewRedis(addr, "", 0, ""); err == nil {
		t.Fatalf("expected ping failure")
	}
}
