package svc

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"snipbin/cfg"
	"snipbin/pkg/domain"
	"snipbin/svc/cache"
	"snipbin/svc/db"
)

func newTestCfg() *cfg.Cfg {
	return &cfg.Cfg{
		Port:            "0",
		Environment:     "test",
		LogLevel:        "error",
		RetentionWindow: 10 * time.Minute,
		SweepInterval:   10 * time.Minute,
		RecentLimit:     10,
		IDRetryLimit:    5,
		MaxPasteSize:    64 * 1024,
		ViewWorkers:     2,
		LRUCacheSize:    100,
		ContextTimeout:  5 * time.Second,
		DBQueryTimeout:  5 * time.Second,
	}
}

func newTestStore(t *testing.T) *db.SQLite {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", time.Now().UnixNano())
	s, err := db.NewSQLiteWithConfig(dsn, 10, 2, 5*time.Second)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestService(t *testing.T, c *cfg.Cfg) (*Paste, *db.SQLite) {
	t.Helper()
	sqlDB := newTestStore(t)
	lru, err := cache.NewLRU(c.LRUCacheSize)
	if err != nil {
		t.Fatal(err)
	}
	p := NewPaste(sqlDB, lru, nil, c)
	t.Cleanup(p.Shutdown)
	return p, sqlDB
}

func TestCreateRetrieveRoundtrip(t *testing.T) {
	p, _ := newTestService(t, newTestCfg())
	ctx := context.Background()

	created, err := p.Create(ctx, domain.CreateParams{Body: "print('hi')", Language: "python"})
	if err != nil {
		t.Fatal(err)
	}
	if len(created.ID) != 6 {
		t.Fatalf("expected 6-char id, got %q", created.ID)
	}
	if created.CreatedAt.IsZero() || created.CreatedAt.Location() != time.UTC {
		t.Fatalf("created_at must be a UTC instant, got %v", created.CreatedAt)
	}

	got, err := p.Retrieve(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Body != "print('hi')" || got.Language != "python" {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	if got.Deleted {
		t.Fatal("fresh paste must not be deleted")
	}
}

func TestCreateValidation(t *testing.T) {
	p, _ := newTestService(t, newTestCfg())
	ctx := context.Background()

	if _, err := p.Create(ctx, domain.CreateParams{Body: "", Language: "python"}); !errors.Is(err, domain.ErrBodyRequired) {
		t.Fatalf("expected ErrBodyRequired, got %v", err)
	}
	if _, err := p.Create(ctx, domain.CreateParams{Body: "x", Language: ""}); !errors.Is(err, domain.ErrLanguageRequired) {
		t.Fatalf("expected ErrLanguageRequired, got %v", err)
	}

	// neither attempt may have written a record
	feed, err := p.RecentFeed(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(feed) != 0 {
		t.Fatalf("rejected creates wrote %d records", len(feed))
	}
}

func TestCreateTooLarge(t *testing.T) {
	c := newTestCfg()
	c.MaxPasteSize = 8
	p, _ := newTestService(t, c)

	_, err := p.Create(context.Background(), domain.CreateParams{Body: "123456789", Language: "text"})
	if !errors.Is(err, domain.ErrPasteTooLarge) {
		t.Fatalf("expected ErrPasteTooLarge, got %v", err)
	}
}

func TestCreateCollisionRetry(t *testing.T) {
	p, _ := newTestService(t, newTestCfg())
	ctx := context.Background()

	// stub generator: the fixed id twice, then a fresh one
	ids := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	calls := 0
	p.genID = func() (string, error) {
		id := ids[calls]
		calls++
		return id, nil
	}

	first, err := p.Create(ctx, domain.CreateParams{Body: "first", Language: "text"})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != "AAAAAA" {
		t.Fatalf("expected AAAAAA, got %s", first.ID)
	}

	second, err := p.Create(ctx, domain.CreateParams{Body: "second", Language: "text"})
	if err != nil {
		t.Fatalf("create after collision must succeed: %v", err)
	}
	if second.ID != "BBBBBB" {
		t.Fatalf("expected retry to land on BBBBBB, got %s", second.ID)
	}
	if calls != 3 {
		t.Fatalf("expected 3 generator calls (1 + collision + retry), got %d", calls)
	}
}

func TestCreateIDExhausted(t *testing.T) {
	c := newTestCfg()
	p, _ := newTestService(t, c)
	ctx := context.Background()

	calls := 0
	p.genID = func() (string, error) {
		calls++
		return "SAMEID", nil
	}

	if _, err := p.Create(ctx, domain.CreateParams{Body: "first", Language: "text"}); err != nil {
		t.Fatal(err)
	}

	calls = 0
	_, err := p.Create(ctx, domain.CreateParams{Body: "second", Language: "text"})
	if !errors.Is(err, domain.ErrIDExhausted) {
		t.Fatalf("expected ErrIDExhausted, got %v", err)
	}
	if calls != c.IDRetryLimit {
		t.Fatalf("expected exactly %d attempts, got %d", c.IDRetryLimit, calls)
	}
}

func TestConcurrentCreateDistinctIDs(t *testing.T) {
	p, _ := newTestService(t, newTestCfg())
	ctx := context.Background()

	const n = 50
	var (
		mu  sync.Mutex
		ids = make(map[string]bool, n)
		wg  sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paste, err := p.Create(ctx, domain.CreateParams{
				Body:     fmt.Sprintf("snippet %d", i),
				Language: "text",
			})
			if err != nil {
				t.Errorf("create %d: %v", i, err)
				return
			}
			mu.Lock()
			ids[paste.ID] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	if len(ids) != n {
		t.Fatalf("expected %d distinct ids, got %d", n, len(ids))
	}
}

func TestSweepHidesExpiredPastes(t *testing.T) {
	c := newTestCfg()
	p, sqlDB := newTestService(t, c)
	ctx := context.Background()

	// age a paste past the retention window via the store directly
	old := &domain.Paste{
		ID: "old123", Body: "stale", Language: "text",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := sqlDB.Insert(ctx, old); err != nil {
		t.Fatal(err)
	}
	fresh, err := p.Create(ctx, domain.CreateParams{Body: "fresh", Language: "text"})
	if err != nil {
		t.Fatal(err)
	}

	n, err := SweepExpired(ctx, sqlDB, c.RetentionWindow)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}
	if n, err := SweepExpired(ctx, sqlDB, c.RetentionWindow); err != nil || n != 0 {
		t.Fatalf("second sweep must be a no-op, got n=%d err=%v", n, err)
	}

	if _, err := p.Retrieve(ctx, "old123"); !errors.Is(err, domain.ErrPasteNotFound) {
		t.Fatalf("expired paste must be NotFound, got %v", err)
	}
	feed, err := p.RecentFeed(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(feed) != 1 || feed[0].ID != fresh.ID {
		t.Fatalf("feed must contain only the fresh paste: %+v", feed)
	}
}

func TestRetrieveHidesCachedPastRetention(t *testing.T) {
	c := newTestCfg()
	c.RetentionWindow = 50 * time.Millisecond
	p, _ := newTestService(t, c)
	ctx := context.Background()

	paste, err := p.Create(ctx, domain.CreateParams{Body: "ephemeral", Language: "text"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Retrieve(ctx, paste.ID); err != nil {
		t.Fatalf("paste must be visible before retention elapses: %v", err)
	}

	time.Sleep(80 * time.Millisecond)
	// no sweep has run, but retention has passed
	if _, err := p.Retrieve(ctx, paste.ID); !errors.Is(err, domain.ErrPasteNotFound) {
		t.Fatalf("paste past retention must be NotFound, got %v", err)
	}
}

func TestRecentFeedOrdering(t *testing.T) {
	c := newTestCfg()
	p, sqlDB := newTestService(t, c)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)
	for i, id := range []string{"ord001", "ord002", "ord003"} {
		paste := &domain.Paste{
			ID: id, Body: "b", Language: "text",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := sqlDB.Insert(ctx, paste); err != nil {
			t.Fatal(err)
		}
	}

	feed, err := p.RecentFeed(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(feed) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(feed))
	}
	if feed[0].ID != "ord003" || feed[1].ID != "ord002" {
		t.Fatalf("wrong feed order: [%s, %s]", feed[0].ID, feed[1].ID)
	}
}

func TestRetrieveUnknownID(t *testing.T) {
	p, _ := newTestService(t, newTestCfg())
	_, err := p.Retrieve(context.Background(), "zzzzzz")
	if !errors.Is(err, domain.ErrPasteNotFound) {
		t.Fatalf("expected ErrPasteNotFound, got %v", err)
	}
}
