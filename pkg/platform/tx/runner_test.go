package tx

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "giftlist/pkg/domain-errors"
)

func TestShardedRunner(t *testing.T) {
	t.Run("serializes work on one key", func(t *testing.T) {
		r := NewSharded()
		var (
			wg      sync.WaitGroup
			counter int
		)
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = r.RunInTx(context.Background(), "wallet-1", func(context.Context) error {
					v := counter
					time.Sleep(time.Microsecond)
					counter = v + 1
					return nil
				})
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, counter)
	})

	t.Run("cancelled context is rejected", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := NewSharded().RunInTx(ctx, "k", func(context.Context) error { return nil })
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	t.Run("fn error is returned", func(t *testing.T) {
		want := dErrors.New(dErrors.CodeConflict, "boom")
		err := NewSharded().RunInTx(context.Background(), "k", func(context.Context) error { return want })
		assert.ErrorIs(t, err, want)
	})
}
