// Package locks provides in-process coordination primitives keyed by string.
package locks

import (
	"sync"
	"time"
)

// KeyedMutex serializes callers that share a key while letting different keys proceed
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns the function that releases it
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// InFlight admits at most one holder per key. A claim older than ttl is considered
// abandoned and may be taken over.
type InFlight struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	held map[string]time.Time
}

func NewInFlight(ttl time.Duration) *InFlight {
	return &InFlight{
		ttl:  ttl,
		now:  time.Now,
		held: make(map[string]time.Time),
	}
}

// TryAcquire claims every key or none of them. A claim older than the TTL counts as
// abandoned and can be taken over, so the TTL has to exceed the longest holder.
func (g *InFlight) TryAcquire(keys ...string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for _, key := range keys {
		if at, busy := g.held[key]; busy && (g.ttl <= 0 || now.Sub(at) < g.ttl) {
			return nil, false
		}
	}
	for _, key := range keys {
		g.held[key] = now
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			for _, key := range keys {
				if g.held[key].Equal(now) {
					delete(g.held, key)
				}
			}
		})
	}, true
}

// Held reports whether key is currently claimed
func (g *InFlight) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	at, ok := g.held[key]
	return ok && (g.ttl <= 0 || g.now().Sub(at) < g.ttl)
}
