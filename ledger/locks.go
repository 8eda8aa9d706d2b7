package ledger

import (
	"context"
	"sync"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"golang.org/x/sync/semaphore"
)

// AccountLocks serializes submissions per signing account. Clients sharing
// an AccountLocks never have two submissions from the same account in
// flight. All clients of a process share one instance unless configured
// otherwise, so that separately constructed clients holding the same key
// still exclude each other.
type AccountLocks struct {
	mu       sync.Mutex
	accounts map[util.Uint160]*accountSlot
}

// accountSlot is the per-account critical section. Fields other than sem
// are only accessed while sem is held.
type accountSlot struct {
	sem *semaphore.Weighted

	// highest nonce handed to the node from this process and the last block
	// its transaction may be included in, valid if broadcast
	broadcast  bool
	lastNonce  uint64
	validUntil uint32
}

var defaultLocks = NewAccountLocks()

// NewAccountLocks returns an empty lock set.
func NewAccountLocks() *AccountLocks {
	return &AccountLocks{accounts: make(map[util.Uint160]*accountSlot)}
}

func (l *AccountLocks) slot(acc util.Uint160) *accountSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.accounts[acc]
	if !ok {
		s = &accountSlot{sem: semaphore.NewWeighted(1)}
		l.accounts[acc] = s
	}

	return s
}

// acquire blocks until the account is free or ctx is done.
func (l *AccountLocks) acquire(ctx context.Context, acc util.Uint160) (*accountSlot, error) {
	s := l.slot(acc)

	err := s.sem.Acquire(ctx, 1)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *accountSlot) release() {
	s.sem.Release(1)
}

// pending reports whether nonce may still be occupied by an earlier
// broadcast that the node has not persisted yet. The guard is dropped once
// the node reports a nonce past the broadcast one or once the broadcast
// transaction can not be included anymore. blockCount is only called while
// the guard is active.
func (s *accountSlot) pending(nonce uint64, blockCount func() (uint32, error)) (bool, error) {
	if !s.broadcast {
		return false, nil
	}

	if nonce > s.lastNonce {
		s.broadcast = false
		return false, nil
	}

	n, err := blockCount()
	if err != nil {
		return false, err
	}

	// the next block has index n
	if n > s.validUntil {
		s.broadcast = false
		return false, nil
	}

	return true, nil
}

func (s *accountSlot) markBroadcast(nonce uint64, validUntil uint32) {
	if !s.broadcast || nonce >= s.lastNonce {
		s.broadcast, s.lastNonce, s.validUntil = true, nonce, validUntil
	}
}
