package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type passthroughTx struct{ calls int }

func (p *passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

func TestRetryOnConflict(t *testing.T) {
	t.Run("succeeds after conflicts", func(t *testing.T) {
		tx := &passthroughTx{}
		n := 0
		err := RetryOnConflict(context.Background(), tx, 3, func(ctx context.Context) error {
			n++
			if n < 3 {
				return ErrConflict
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, tx.calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		tx := &passthroughTx{}
		err := RetryOnConflict(context.Background(), tx, 3, func(ctx context.Context) error {
			return ErrConflict
		})
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, 3, tx.calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		tx := &passthroughTx{}
		boom := errors.New("boom")
		err := RetryOnConflict(context.Background(), tx, 3, func(ctx context.Context) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, tx.calls)
	})
}
