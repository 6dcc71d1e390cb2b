package domain

import (
	"sync"

	"example.com/tierrun/internal/ranking"
)

type lockKey struct {
	runnerID string
	role     ranking.Role
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// tierLocks serialises read-modify-write cycles per (runner, role). Entries are
// dropped once no goroutine holds or waits on them.
type tierLocks struct {
	mu      sync.Mutex
	entries map[lockKey]*lockEntry
}

func newTierLocks() *tierLocks {
	return &tierLocks{entries: make(map[lockKey]*lockEntry)}
}

// lock acquires the given roles of a runner in canonical role order and returns
// the release function.
func (l *tierLocks) lock(runnerID string, roles ...ranking.Role) func() {
	var held []lockKey
	for _, role := range ranking.Roles() {
		for _, wanted := range roles {
			if wanted == role {
				held = append(held, lockKey{runnerID: runnerID, role: role})
				break
			}
		}
	}

	for _, key := range held {
		l.acquire(key).mu.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.release(held[i])
		}
	}
}

func (l *tierLocks) acquire(key lockKey) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (l *tierLocks) release(key lockKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.entries[key]
	entry.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}
