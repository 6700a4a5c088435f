package cache

import (
	"testing"
	"time"

	"snipbin/pkg/domain"
)

func TestLRURoundtrip(t *testing.T) {
	l, err := NewLRU(10)
	if err != nil {
		t.Fatal(err)
	}
	p := &domain.Paste{ID: "abc123", Body: "hi", Language: "text", CreatedAt: time.Now().UTC()}
	l.Set(p, time.Minute)
	got := l.Get("abc123")
	if got == nil || got.Body != "hi" {
		t.Fatalf("unexpected cached paste: %+v", got)
	}
}

func TestLRUMiss(t *testing.T) {
	l, err := NewLRU(10)
	if err != nil {
		t.Fatal(err)
	}
	if got := l.Get("nope"); got != nil {
		t.Fatalf("expected miss, got %+v", got)
	}
}

func TestLRUEntryExpires(t *testing.T) {
	l, err := NewLRU(10)
	if err != nil {
		t.Fatal(err)
	}
	p := &domain.Paste{ID: "abc123", Body: "hi"}
	l.Set(p, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if got := l.Get("abc123"); got != nil {
		t.Fatalf("entry must expire with its ttl, got %+v", got)
	}
}

func TestLRUNonPositiveTTLIgnored(t *testing.T) {
	l, err := NewLRU(10)
	if err != nil {
		t.Fatal(err)
	}
	l.Set(&domain.Paste{ID: "abc123"}, 0)
	if got := l.Get("abc123"); got != nil {
		t.Fatal("zero-ttl entry must not be cached")
	}
}

func TestLRUDelete(t *testing.T) {
	l, err := NewLRU(10)
	if err != nil {
		t.Fatal(err)
	}
	l.Set(&domain.Paste{ID: "abc123"}, time.Minute)
	l.Delete("abc123")
	if got := l.Get("abc123"); got != nil {
		t.Fatal("deleted entry must be gone")
	}
}

func TestNewLRURejectsBadSize(t *testing.T) {
	if _, err := NewLRU(0); err == nil {
		t.Fatal("expected error for size 0")
	}
	if _, err := NewLRU(1000001); err == nil {
		t.Fatal("expected error for oversized cache")
	}
}
