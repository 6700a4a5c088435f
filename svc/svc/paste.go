package svc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"snipbin/cfg"
	"snipbin/metrics"
	"snipbin/pkg/domain"
	"snipbin/svc/cache"
	"snipbin/svc/db"
	"snipbin/svc/util"
)

type Paste struct {
	db           *db.SQLite
	lru          *cache.LRU
	rdb          *db.Redis
	cfg          *cfg.Cfg
	genID        func() (string, error)
	viewQueue    chan string
	viewWorkerWg sync.WaitGroup
	shutdownCtx  context.Context
	shutdownFn   context.CancelFunc
	shutdown     atomic.Bool
	opWg         sync.WaitGroup
}

func NewPaste(sqlDB *db.SQLite, lru *cache.LRU, rdb *db.Redis, c *cfg.Cfg) *Paste {
	if sqlDB == nil || lru == nil || c == nil {
		panic("paste service: nil dependency (sqlDB, lru, or cfg)")
	}
	shutdownCtx, shutdownFn := context.WithCancel(context.Background())
	p := &Paste{
		db:          sqlDB,
		lru:         lru,
		rdb:         rdb,
		cfg:         c,
		genID:       util.GenID,
		viewQueue:   make(chan string, c.ViewWorkers*100),
		shutdownCtx: shutdownCtx,
		shutdownFn:  shutdownFn,
	}
	workers := c.ViewWorkers
	if workers <= 0 {
		workers = 4
	}
	p.startWorkers(workers)
	return p
}

func (p *Paste) startWorkers(n int) {
	for i := 0; i < n; i++ {
		p.viewWorkerWg.Add(1)
		go p.viewWorker()
	}
}

func (p *Paste) viewWorker() {
	defer p.viewWorkerWg.Done()
	defer func() {
		if r := recover(); r != nil {
			util.Error().Interface("panic", r).Msg("viewWorker panicked")
		}
	}()
	for id := range p.viewQueue {
		ctx, cancel := context.WithTimeout(p.shutdownCtx, 5*time.Second)
		if err := p.db.IncrViews(ctx, id); err != nil {
			if errors.Is(err, context.Canceled) {
				cancel()
				return
			}
			util.Warn().Err(err).Str("id", id).Msg("failed to incr views")
		}
		cancel()
	}
}

func (p *Paste) Shutdown() {
	p.shutdown.Store(true)
	close(p.viewQueue)
	p.shutdownFn()
	done := make(chan struct{})
	go func() {
		p.viewWorkerWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		util.Warn().Msg("view workers didn't stop in time")
	}
	p.opWg.Wait()
	util.Debug().Msg("paste service shutdown complete")
}

// Create validates the submission, then loops generate-id / insert until an
// id lands. The store's atomic check-and-insert turns a duplicate id into
// ErrIDConflict; after IDRetryLimit collisions the create fails with
// ErrIDExhausted rather than looping forever on a shrinking id space.
func (p *Paste) Create(ctx context.Context, params domain.CreateParams) (*domain.Paste, error) {
	if p.shutdown.Load() {
		return nil, errors.New("service shutting down")
	}
	p.opWg.Add(1)
	defer p.opWg.Done()
	if params.Body == "" {
		return nil, domain.ErrBodyRequired
	}
	if params.Language == "" {
		return nil, domain.ErrLanguageRequired
	}
	if int64(len(params.Body)) > p.cfg.MaxPasteSize {
		return nil, domain.ErrPasteTooLarge
	}
	paste := &domain.Paste{
		Body:      params.Body,
		Language:  params.Language,
		CreatedAt: time.Now().UTC(),
	}
	for attempt := 0; attempt < p.cfg.IDRetryLimit; attempt++ {
		id, err := p.genID()
		if err != nil {
			return nil, errors.Wrap(err, "gen id")
		}
		paste.ID = id
		err = p.db.Insert(ctx, paste)
		if err == nil {
			p.lru.Set(paste, p.cfg.RetentionWindow)
			if p.rdb != nil {
				if err := p.rdb.CachePaste(ctx, paste, p.cfg.RetentionWindow); err != nil {
					util.Warn().Err(err).Str("id", id).Msg("failed to cache in Redis")
				}
			}
			metrics.PasteCreated.Inc()
			return paste, nil
		}
		if errors.Is(err, domain.ErrIDConflict) {
			metrics.IDCollisions.Inc()
			util.Debug().Str("id", id).Int("attempt", attempt+1).Msg("id collision, retrying")
			continue
		}
		return nil, errors.Wrap(err, "insert paste")
	}
	return nil, domain.ErrIDExhausted
}

// Retrieve returns a visible paste. An unknown id and an expired one are
// the same ErrPasteNotFound; callers cannot tell whether the id ever
// existed.
func (p *Paste) Retrieve(ctx context.Context, id string) (*domain.Paste, error) {
	if paste := p.lru.Get(id); paste != nil {
		if p.pastRetention(paste) {
			p.lru.Delete(id)
			if p.rdb != nil {
				p.rdb.Delete(ctx, id)
			}
			return nil, domain.ErrPasteNotFound
		}
		metrics.CacheHits.Inc()
		p.countView(id)
		metrics.PasteRetrieved.Inc()
		return paste, nil
	}
	metrics.CacheMisses.Inc()
	if p.rdb != nil {
		if paste, err := p.rdb.GetPaste(ctx, id); err == nil && paste != nil {
			if p.pastRetention(paste) {
				p.lru.Delete(id)
				p.rdb.Delete(ctx, id)
				return nil, domain.ErrPasteNotFound
			}
			metrics.CacheHits.Inc()
			p.lru.Set(paste, p.ttl(paste))
			p.countView(id)
			metrics.PasteRetrieved.Inc()
			return paste, nil
		}
	}
	paste, err := p.db.GetVisible(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrPasteNotFound) {
			return nil, domain.ErrPasteNotFound
		}
		return nil, errors.Wrap(err, "get paste")
	}
	// The sweeper may not have run yet; hide anything already past its
	// retention window so expiry does not depend on sweep timing.
	if p.pastRetention(paste) {
		return nil, domain.ErrPasteNotFound
	}
	p.lru.Set(paste, p.ttl(paste))
	if p.rdb != nil {
		if err := p.rdb.CachePaste(ctx, paste, p.ttl(paste)); err != nil {
			util.Warn().Err(err).Str("id", id).Msg("failed to cache in Redis")
		}
	}
	p.countView(id)
	metrics.PasteRetrieved.Inc()
	return paste, nil
}

// RecentFeed returns the newest visible pastes, a snapshot ordered by
// creation time descending with insertion order breaking ties.
func (p *Paste) RecentFeed(ctx context.Context, limit int) ([]*domain.Paste, error) {
	if limit <= 0 {
		limit = p.cfg.RecentLimit
	}
	pastes, err := p.db.ListRecentVisible(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list recent")
	}
	visible := pastes[:0]
	for _, paste := range pastes {
		if !p.pastRetention(paste) {
			visible = append(visible, paste)
		}
	}
	return visible, nil
}

func (p *Paste) pastRetention(paste *domain.Paste) bool {
	return time.Now().UTC().Sub(paste.CreatedAt) >= p.cfg.RetentionWindow
}

func (p *Paste) ttl(paste *domain.Paste) time.Duration {
	return time.Until(paste.CreatedAt.Add(p.cfg.RetentionWindow))
}

func (p *Paste) countView(id string) {
	select {
	case p.viewQueue <- id:
	default:
		util.Warn().Str("id", id).Msg("view queue full, dropping increment")
	}
}
