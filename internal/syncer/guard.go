package syncer

import (
	"context"
	"errors"
	"sync"

	"vinylsync/internal/models"
)

// ErrSyncInProgress is returned when a pass for the same user and list is already
// running.
var ErrSyncInProgress = errors.New("sync already in progress")

// passGuard serializes reconciliation passes per (user, list). Each key owns a
// one-slot semaphore that lives for the life of the process.
type passGuard struct {
	mu    sync.Mutex
	slots map[passKey]chan struct{}
}

type passKey struct {
	userID string
	kind   models.ListKind
}

func newPassGuard() *passGuard {
	return &passGuard{slots: map[passKey]chan struct{}{}}
}

func (g *passGuard) slot(kind models.ListKind, userID string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := passKey{userID: userID, kind: kind}
	s, ok := g.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		g.slots[key] = s
	}
	return s
}

// tryAcquire claims the slot without waiting.
func (g *passGuard) tryAcquire(kind models.ListKind, userID string) (release func(), ok bool) {
	s := g.slot(kind, userID)
	select {
	case s <- struct{}{}:
		return func() { <-s }, true
	default:
		return nil, false
	}
}

// acquire waits for the slot or for ctx to end.
func (g *passGuard) acquire(ctx context.Context, kind models.ListKind, userID string) (release func(), err error) {
	s := g.slot(kind, userID)
	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
