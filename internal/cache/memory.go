package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const (
	DefaultMaxEntries      = 100
	DefaultCleanupInterval = 10 * time.Minute
)

type MemoryOptions struct {
	// MaxEntries bounds the entry count; the oldest inserted entry is
	// evicted first.
	MaxEntries      int
	CleanupInterval time.Duration
	Now             func() time.Time
}

type memoryEntry struct {
	key       string
	value     []byte
	storedAt  time.Time
	expiresAt time.Time
}

type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List
	max     int
	now     func() time.Time
	closed  chan struct{}
	closeMu sync.Once
}

func NewMemoryCache(opts MemoryOptions) *MemoryCache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &MemoryCache{
		items:  make(map[string]*list.Element, opts.MaxEntries),
		order:  list.New(),
		max:    opts.MaxEntries,
		now:    opts.Now,
		closed: make(chan struct{}),
	}
	go c.janitor(opts.CleanupInterval)
	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	e := el.Value.(*memoryEntry)
	if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
		c.removeElement(el)
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	now := c.now()
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	v := make([]byte, len(value))
	copy(v, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*memoryEntry)
		e.value = v
		e.storedAt = now
		e.expiresAt = exp
		return nil
	}
	for c.order.Len() >= c.max {
		c.removeElement(c.order.Front())
	}
	c.items[key] = c.order.PushBack(&memoryEntry{key: key, value: v, storedAt: now, expiresAt: exp})
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Len(ctx context.Context) (int, error) {
	c.mu.Lock()
	n := c.order.Len()
	c.mu.Unlock()
	return n, nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.items = make(map[string]*list.Element, c.max)
	c.order.Init()
	c.mu.Unlock()
	return nil
}

// Sweep drops every expired entry and reports how many were removed.
func (c *MemoryCache) Sweep() int {
	now := c.now()
	removed := 0
	c.mu.Lock()
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*memoryEntry)
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			c.removeElement(el)
			removed++
		}
		el = next
	}
	c.mu.Unlock()
	return removed
}

func (c *MemoryCache) Close() error {
	c.closeMu.Do(func() {
		close(c.closed)
	})
	return nil
}

func (c *MemoryCache) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	e := c.order.Remove(el).(*memoryEntry)
	delete(c.items, e.key)
}

func (c *MemoryCache) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-t.C:
			c.Sweep()
		}
	}
}
