package cache

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dfryer1193/imgcrud/gallery/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is used when New is given a non-positive TTL.
const DefaultTTL = 5 * time.Minute

// DefaultLoadTimeout bounds a single store read made on a miss.
const DefaultLoadTimeout = 30 * time.Second

// Option configures an ImageCache.
type Option func(*ImageCache)

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(c *ImageCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics reports cache events to m.
func WithMetrics(m Metrics) Option {
	return func(c *ImageCache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLoadTimeout bounds each store read made on a miss. Non-positive values
// are ignored.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *ImageCache) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

// ImageCache is a read-through cache over an ImageReader. It holds the image
// list under a single key and image bytes under one key per id. Entries leave
// the cache only by TTL expiry, checked on access, or by explicit invalidation.
//
// Writers must invalidate after the store has confirmed a mutation, never
// before.
type ImageCache struct {
	reader      domain.ImageReader
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time
	metrics     Metrics

	mu      sync.Mutex
	entries map[string]entry
	// gens holds a generation for every key with a load running. An
	// invalidation advances it, and a load that started under an older
	// generation may have read pre-mutation data and is not cached.
	gens map[string]*generation
	seq  uint64

	sf singleflight.Group
}

// New creates an ImageCache reading from reader.
func New(reader domain.ImageReader, ttl time.Duration, opts ...Option) *ImageCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &ImageCache{
		reader:      reader,
		ttl:         ttl,
		loadTimeout: DefaultLoadTimeout,
		now:         time.Now,
		metrics:     NoopMetrics{},
		entries:     make(map[string]entry),
		gens:        make(map[string]*generation),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// TTL returns how long a filled entry stays valid.
func (c *ImageCache) TTL() time.Duration {
	return c.ttl
}

// GetList returns the summaries of all images, newest first.
func (c *ImageCache) GetList(ctx context.Context) ([]domain.ImageSummary, error) {
	v, err := c.getOrLoad(ctx, listKey, FamilyList, func(ctx context.Context) (any, error) {
		images, err := c.reader.ListImages(ctx)
		if err != nil {
			return nil, err
		}
		if images == nil {
			images = []domain.ImageSummary{}
		}
		return images, nil
	})
	if err != nil {
		return nil, err
	}

	return slices.Clone(v.([]domain.ImageSummary)), nil
}

// GetItem returns the bytes and content type of the image with the given id.
// The returned Data is shared with the cache and must not be modified.
func (c *ImageCache) GetItem(ctx context.Context, id string) (*domain.ImageContent, error) {
	v, err := c.getOrLoad(ctx, itemKey(id), FamilyItem, func(ctx context.Context) (any, error) {
		img, err := c.reader.GetImage(ctx, id)
		if err != nil {
			return nil, err
		}
		if img == nil {
			return nil, domain.ErrImageNotFound(id)
		}
		return img.Content(), nil
	})
	if err != nil {
		return nil, err
	}

	content := *v.(*domain.ImageContent)
	return &content, nil
}

// InvalidateList drops the cached image list. Removing an absent entry is a no-op.
func (c *ImageCache) InvalidateList() {
	c.invalidate(listKey, FamilyList)
}

// InvalidateItem drops the cached bytes of one image. Removing an absent entry is a no-op.
func (c *ImageCache) InvalidateItem(id string) {
	c.invalidate(itemKey(id), FamilyItem)
}

func (c *ImageCache) invalidate(key string, family string) {
	c.mu.Lock()
	delete(c.entries, key)
	if g := c.gens[key]; g != nil {
		c.seq++
		g.value = c.seq
	}
	c.mu.Unlock()

	c.metrics.Invalidate(family)
}

func (c *ImageCache) getOrLoad(
	ctx context.Context,
	key string,
	family string,
	load func(context.Context) (any, error),
) (any, error) {
	v, ok, expired := c.lookup(key)
	if expired {
		c.metrics.Expire(family)
	}
	if ok {
		c.metrics.Hit(family)
		return v, nil
	}
	c.metrics.Miss(family)

	// Concurrent misses for the same key in the same generation share one
	// store read. The shared read is detached from any single caller's
	// cancellation and bounded by loadTimeout instead.
	fk := flightKey(key, c.currentGeneration(key))
	ch := c.sf.DoChan(fk, func() (any, error) {
		return c.load(ctx, key, load)
	})

	select {
	case <-ctx.Done():
		// Later misses start a fresh read rather than joining one that may
		// be stalled.
		c.sf.Forget(fk)
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (c *ImageCache) load(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	gen := c.begin(key)

	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
	defer cancel()

	v, err := fn(loadCtx)
	if c.finish(key, gen, v, err == nil) {
		log.Ctx(ctx).Debug().Str("key", key).Msg("cache filled")
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// lookup returns the live value for key. Expired entries are removed.
func (c *ImageCache) lookup(key string) (value any, ok bool, expired bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found {
		return nil, false, false
	}

	if e.expired(c.now()) {
		delete(c.entries, key)
		return nil, false, true
	}

	return e.value, true, false
}

func (c *ImageCache) currentGeneration(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g := c.gens[key]; g != nil {
		return g.value
	}
	return 0
}

// begin registers a running load for key and returns its generation.
func (c *ImageCache) begin(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.gens[key]
	if g == nil {
		g = &generation{}
		c.gens[key] = g
	}
	g.loads++
	return g.value
}

// finish ends a load started by begin. When ok is set, v is stored under key
// unless key was invalidated since gen. It reports whether v was stored.
func (c *ImageCache) finish(key string, gen uint64, v any, ok bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.gens[key]
	filled := ok && g.value == gen
	if filled {
		c.entries[key] = entry{
			value:    v,
			expireAt: c.now().Add(c.ttl),
		}
	}

	if g.loads--; g.loads == 0 {
		delete(c.gens, key)
	}
	return filled
}

func flightKey(key string, gen uint64) string {
	return key + "@" + strconv.FormatUint(gen, 10)
}
