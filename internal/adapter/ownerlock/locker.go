// Package ownerlock hands out the read/write lock guarding one owner's
// partition.
package ownerlock

import (
	"fmt"
	"sync"

	"contractrag/internal/domain"
)

type Granularity string

const (
	// PerOwner gives every owner its own lock, so owners never contend.
	PerOwner Granularity = "owner"
	// Global serialises writers across all owners.
	Global Granularity = "global"
)

// ParseGranularity maps a config value onto a Granularity. Empty means
// PerOwner.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case "", PerOwner:
		return PerOwner, nil
	case Global:
		return Global, nil
	default:
		return "", fmt.Errorf("unknown owner lock granularity: %q", s)
	}
}

type Locker struct {
	granularity Granularity
	global      sync.RWMutex

	mu    sync.Mutex
	locks map[domain.OwnerID]*sync.RWMutex
}

func New(g Granularity) *Locker {
	if g == "" {
		g = PerOwner
	}
	return &Locker{
		granularity: g,
		locks:       make(map[domain.OwnerID]*sync.RWMutex),
	}
}

func (l *Locker) Granularity() Granularity {
	return l.granularity
}

// For returns the lock for owner. The same owner always maps to the same
// lock for the lifetime of the Locker.
func (l *Locker) For(owner domain.OwnerID) *sync.RWMutex {
	if l.granularity == Global {
		return &l.global
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[owner]
	if !ok {
		m = &sync.RWMutex{}
		l.locks[owner] = m
	}
	return m
}
