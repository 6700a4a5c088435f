package cache

import (
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"snipbin/pkg/domain"
)

// LRU keeps recently read pastes in memory. Entries carry their own expiry
// so a cached paste never stays readable past its retention window even if
// the sweeper has not caught up with the durable store yet.
type LRU struct {
	c *lru.Cache[string, item]
}

type item struct {
	paste *domain.Paste
	exp   time.Time
}

func NewLRU(size int) (*LRU, error) {
	if size <= 0 {
		return nil, errors.New("cache size must be positive")
	}
	if size > 100000 {
		return nil, errors.New("cache size too large")
	}
	c, err := lru.New[string, item](size)
	if err != nil {
		return nil, err
	}
	return &LRU{c: c}, nil
}

func (l *LRU) Get(id string) *domain.Paste {
	it, ok := l.c.Get(id)
	if !ok {
		return nil
	}
	if time.Now().After(it.exp) {
		l.c.Remove(id)
		return nil
	}
	return it.paste
}

func (l *LRU) Set(p *domain.Paste, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	l.c.Add(p.ID, item{
		paste: p,
		exp:   time.Now().Add(ttl),
	})
}

func (l *LRU) Delete(id string) {
	l.c.Remove(id)
}
