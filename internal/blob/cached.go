package blob

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"golang.org/x/sync/singleflight"
)

// Cached fronts a Store with a short lived read cache. Concurrent misses
// for the same key share one backend read. Put writes through and
// refreshes the cached value.
type Cached struct {
	store Store
	ttl   time.Duration
	cache gcache.Cache
	sf    singleflight.Group

	// gen counts Puts per key. A read only fills the cache when no Put
	// happened while it was in flight.
	mtx sync.Mutex
	gen map[string]uint64
}

var _ Store = (*Cached)(nil)

type cachedOptions struct {
	ttl   time.Duration
	size  int
	clock gcache.Clock
}

type CachedOption func(*cachedOptions)

func WithTTL(ttl time.Duration) CachedOption {
	return func(opts *cachedOptions) {
		opts.ttl = ttl
	}
}

func WithCacheClock(clock gcache.Clock) CachedOption {
	return func(opts *cachedOptions) {
		opts.clock = clock
	}
}

// notFound marks a key that the backend reported missing.
type notFound struct{}

func NewCached(store Store, opts ...CachedOption) *Cached {
	options := &cachedOptions{
		ttl:   time.Second,
		size:  16,
		clock: gcache.NewRealClock(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Cached{
		store: store,
		ttl:   options.ttl,
		cache: gcache.New(options.size).LRU().Clock(options.clock).Build(),
		gen:   make(map[string]uint64),
	}
}

func (c *Cached) Put(ctx context.Context, key string, data []byte) error {
	err := c.store.Put(ctx, key, data)

	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.gen[key]++
	if err != nil {
		c.cache.Remove(key)
		return err
	}
	_ = c.cache.SetWithExpire(key, append([]byte(nil), data...), c.ttl)
	return nil
}

// fill caches value unless key was written since gen was read.
func (c *Cached) fill(key string, gen uint64, value interface{}) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.gen[key] != gen {
		return
	}
	_ = c.cache.SetWithExpire(key, value, c.ttl)
}

func (c *Cached) Get(ctx context.Context, key string) ([]byte, error) {
	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if cached, err := c.cache.Get(key); err == nil {
			return cached, nil
		}

		c.mtx.Lock()
		gen := c.gen[key]
		c.mtx.Unlock()

		data, err := c.store.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			c.fill(key, gen, notFound{})
			return notFound{}, nil
		}
		if err != nil {
			return nil, err
		}
		c.fill(key, gen, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	data, ok := v.([]byte)
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}
