package storesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/storeadmin_backend/config"
	"github.com/bsm/redislock"
)

// At most one dual-write, update, or delete may be in flight per stableId.
// With Redis connected the lock is held across instances; without it we fall
// back to an in-process mutex, which still serializes a single instance.

var (
	localLocksMu sync.Mutex
	localLocks   = map[string]*sync.Mutex{}
)

func acquireRecordLock(ctx context.Context, stableId string) (func(), error) {
	if locker := config.GetRedisLock(); locker != nil {
		key := fmt.Sprintf("recordlock:%s", stableId)
		lock, err := locker.Obtain(ctx, key, 30*time.Second, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 100),
		})
		if err != nil {
			return nil, fmt.Errorf("could not acquire record lock for %s: %w", stableId, err)
		}
		return func() { _ = lock.Release(context.Background()) }, nil
	}

	localLocksMu.Lock()
	mu := localLocks[stableId]
	if mu == nil {
		mu = &sync.Mutex{}
		localLocks[stableId] = mu
	}
	localLocksMu.Unlock()

	mu.Lock()
	return mu.Unlock, nil
}
