package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reseller/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, sortedKeys([]string{"c", "a", "b", "a", "c"}))
	assert.Empty(t, sortedKeys(nil))
}

func TestStockLocker(t *testing.T) {
	locker := NewStockLocker(20 * time.Millisecond)

	t.Run("duplicate keys lock once", func(t *testing.T) {
		unlock, err := locker.Lock(context.Background(), []string{"x", "x", "y"})
		require.NoError(t, err)
		unlock()
		unlock()

		unlock, err = locker.Lock(context.Background(), []string{"y", "x"})
		require.NoError(t, err)
		unlock()
	})

	t.Run("timeout rolls back partial acquisition", func(t *testing.T) {
		holdB, err := locker.Lock(context.Background(), []string{"b"})
		require.NoError(t, err)

		_, err = locker.Lock(context.Background(), []string{"a", "b"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrLockTimeout))

		unlockA, err := locker.Lock(context.Background(), []string{"a"})
		require.NoError(t, err, "a must have been released")
		unlockA()
		holdB()
	})

	t.Run("cancelled context", func(t *testing.T) {
		hold, err := locker.Lock(context.Background(), []string{"c"})
		require.NoError(t, err)
		defer hold()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = locker.Lock(ctx, []string{"c"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.False(t, errors.Is(err, shared.ErrLockTimeout))
	})

	t.Run("default wait", func(t *testing.T) {
		assert.Equal(t, DefaultLockWait, NewStockLocker(0).wait)
	})
}
