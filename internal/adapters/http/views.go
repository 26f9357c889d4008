package http

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"

	"github.com/melih/containerpilot/internal/core/domain"
	"github.com/melih/containerpilot/internal/core/ports"
)

type viewEntry struct {
	val []byte
	exp time.Time
}

// ViewStore backs the listing cache. It implements fiber.Storage for the cache
// middleware and ports.ViewRevalidator for the provisioning services, so a
// mutation drops the cached listing it affects.
//
// Keys carry the generation of their view at the time the request started.
// Revalidate bumps the generation, so a response computed before a mutation
// is never stored after it.
type ViewStore struct {
	mu      sync.RWMutex
	entries map[string]viewEntry
	gens    map[domain.View]uint64
	now     func() time.Time
}

var (
	_ fiber.Storage         = (*ViewStore)(nil)
	_ ports.ViewRevalidator = (*ViewStore)(nil)
)

func NewViewStore() *ViewStore {
	return &ViewStore{
		entries: make(map[string]viewEntry),
		gens:    make(map[domain.View]uint64),
		now:     time.Now,
	}
}

func (s *ViewStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !e.exp.IsZero() && !s.now().Before(e.exp) {
		_ = s.Delete(key)
		return nil, nil
	}
	return e.val, nil
}

func (s *ViewStore) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	e := viewEntry{val: append([]byte(nil), val...)}
	if exp > 0 {
		e.exp = s.now().Add(exp)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, gen, ok := parseViewKey(key); ok && gen != s.gens[v] {
		return nil
	}
	s.entries[key] = e
	return nil
}

func (s *ViewStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *ViewStore) Reset() error {
	s.mu.Lock()
	s.entries = make(map[string]viewEntry)
	s.mu.Unlock()
	return nil
}

func (s *ViewStore) Close() error {
	return nil
}

// Revalidate drops every cached response of the given views and invalidates
// responses still being computed for them.
func (s *ViewStore) Revalidate(views ...domain.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range views {
		s.gens[v]++
		for k := range s.entries {
			if kv, _, ok := parseViewKey(k); ok && kv == v {
				delete(s.entries, k)
			}
		}
	}
}

// currentKey is the cache key for v at its current generation.
func (s *ViewStore) currentKey(v domain.View) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return viewKey(v, s.gens[v])
}

func viewKey(v domain.View, gen uint64) string {
	return "view:" + string(v) + "@" + strconv.FormatUint(gen, 10)
}

// parseViewKey reads the view and generation back from a middleware key,
// which is viewKey followed by "_<METHOD>" and optionally "_body".
func parseViewKey(key string) (domain.View, uint64, bool) {
	rest, ok := strings.CutPrefix(key, "view:")
	if !ok {
		return "", 0, false
	}
	name, rest, ok := strings.Cut(rest, "@")
	if !ok {
		return "", 0, false
	}
	digits, _, _ := strings.Cut(rest, "_")
	gen, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return domain.View(name), gen, true
}

// viewCache caches successful responses of a listing route under its view.
// A non-positive ttl disables caching.
func viewCache(store *ViewStore, view domain.View, ttl time.Duration) fiber.Handler {
	if ttl <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return cache.New(cache.Config{
		Expiration:   ttl,
		Storage:      store,
		KeyGenerator: func(*fiber.Ctx) string { return store.currentKey(view) },
		Next: func(c *fiber.Ctx) bool {
			return c.Response().StatusCode() != fiber.StatusOK
		},
	})
}
