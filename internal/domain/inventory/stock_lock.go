package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reseller/backend/internal/domain/shared"
	"golang.org/x/sync/semaphore"
)

// DefaultLockWait bounds how long an event waits for its EAN locks
const DefaultLockWait = 5 * time.Second

// StockLocker serializes work per key (an EAN). Multi-key acquisition always
// happens in sorted key order so two callers can never deadlock each other.
type StockLocker struct {
	mu       sync.Mutex
	sems     map[string]*semaphore.Weighted
	wait     time.Duration
	timeouts atomic.Int64
}

// NewStockLocker creates a locker whose acquisitions give up after wait
func NewStockLocker(wait time.Duration) *StockLocker {
	if wait <= 0 {
		wait = DefaultLockWait
	}
	return &StockLocker{
		sems: make(map[string]*semaphore.Weighted),
		wait: wait,
	}
}

// getOrCreate returns the semaphore guarding key
func (l *StockLocker) getOrCreate(key string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	if sem, ok := l.sems[key]; ok {
		return sem
	}
	sem := semaphore.NewWeighted(1)
	l.sems[key] = sem
	return sem
}

// Lock acquires every key, sorted and deduplicated, and returns the release
// function. If the keys are not all held within the configured wait the
// partial acquisition is rolled back and ErrLockTimeout is returned; a
// cancelled parent context is returned as is.
func (l *StockLocker) Lock(ctx context.Context, keys []string) (func(), error) {
	keys = sortedKeys(keys)

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	held := make([]*semaphore.Weighted, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Release(1)
		}
	}

	for _, key := range keys {
		sem := l.getOrCreate(key)
		if err := sem.Acquire(waitCtx, 1); err != nil {
			release()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				l.timeouts.Add(1)
				return nil, fmt.Errorf("%w: waited %s for %s", shared.ErrLockTimeout, l.wait, strings.Join(keys, ","))
			}
			return nil, err
		}
		held = append(held, sem)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

// Timeouts returns how many acquisitions gave up so far
func (l *StockLocker) Timeouts() int64 {
	return l.timeouts.Load()
}

func sortedKeys(keys []string) []string {
	out := make([]string, len(keys))
	copy(out, keys)
	sort.Strings(out)

	n := 0
	for i, k := range out {
		if i > 0 && k == out[n-1] {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}
