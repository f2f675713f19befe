// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Do(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, Interval: time.Millisecond}

	t.Run("succeed", func(t *testing.T) {
		calls := 0
		err := p.Do(context.Background(), func() (bool, error) {
			calls++
			return calls == 3, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausted", func(t *testing.T) {
		calls := 0
		start := time.Now()
		err := p.Do(context.Background(), func() (bool, error) {
			calls++
			return false, nil
		})
		assert.True(t, errors.Is(err, errExhausted))
		assert.Equal(t, 5, calls)
		assert.True(t, time.Since(start) < time.Second)
	})

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := p.Do(context.Background(), func() (bool, error) {
			calls++
			return false, boom
		})
		assert.Equal(t, boom, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		slow := RetryPolicy{MaxAttempts: 100, Interval: time.Second}
		err := slow.Do(ctx, func() (bool, error) { return false, nil })
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestRetryPolicy_Ceiling(t *testing.T) {
	assert.Equal(t, time.Second, DefaultSlotRetry.Ceiling())
	assert.Equal(t, 500*time.Millisecond, DefaultSyncRetry.Ceiling())
	assert.Equal(t, DefaultSyncRetry, RetryPolicy{}.orDefault(DefaultSyncRetry))
}
