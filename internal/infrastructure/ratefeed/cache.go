package ratefeed

import (
	"sync"
	"time"

	"frmon/internal/domain/model"
)

// Cache 最新资金费率缓存，按 exchange + symbol 索引，并发安全
type Cache struct {
	mu      sync.RWMutex
	samples map[string]*model.FundingRateSample
	now     func() time.Time
}

func NewCache() *Cache {
	return &Cache{samples: make(map[string]*model.FundingRateSample), now: time.Now}
}

func key(exchange, symbol string) string {
	return exchange + ":" + model.NormalizeSymbol(symbol)
}

// Put stores a sample, keeping the newer one when both exist.
func (c *Cache) Put(s *model.FundingRateSample) {
	if s == nil || s.Symbol == "" {
		return
	}
	k := key(s.Exchange, s.Symbol)
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.samples[k]; ok && old.FetchedAt.After(s.FetchedAt) {
		return
	}
	cp := *s
	c.samples[k] = &cp
}

// Get returns a copy of the cached sample if it is not older than maxAge.
// maxAge <= 0 disables the age check.
func (c *Cache) Get(exchange, symbol string, maxAge time.Duration) (*model.FundingRateSample, bool) {
	c.mu.RLock()
	s, ok := c.samples[key(exchange, symbol)]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if maxAge > 0 && c.now().Sub(s.FetchedAt) > maxAge {
		return nil, false
	}
	cp := *s
	return &cp, true
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples)
}
