// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"context"
	"errors"
	"time"
)

// errExhausted 重试次数用尽
var errExhausted = errors.New("decoder: retry attempts exhausted")

// RetryPolicy 有界重试策略，总等待不超过 MaxAttempts * Interval
type RetryPolicy struct {
	MaxAttempts int           `json:"maxattempts"`
	Interval    time.Duration `json:"interval"`
}

// 默认重试策略
var (
	DefaultSlotRetry  = RetryPolicy{MaxAttempts: 100, Interval: 10 * time.Millisecond} // 等待空闲 OUTPUT 槽位
	DefaultEventRetry = RetryPolicy{MaxAttempts: 100, Interval: 10 * time.Millisecond} // 等待 SOURCE_CHANGE
	DefaultSyncRetry  = RetryPolicy{MaxAttempts: 50, Interval: 10 * time.Millisecond}  // 等待帧解码完成
)

// Ceiling 最长等待时间
func (p RetryPolicy) Ceiling() time.Duration {
	return time.Duration(p.MaxAttempts) * p.Interval
}

func (p RetryPolicy) orDefault(def RetryPolicy) RetryPolicy {
	if p.MaxAttempts <= 0 {
		return def
	}
	return p
}

// Do 反复调用 attempt 直到其返回 done 或错误.
// 尝试之间等待 Interval；次数用尽返回 errExhausted，ctx 取消返回 ctx.Err().
func (p RetryPolicy) Do(ctx context.Context, attempt func() (done bool, err error)) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for i := 0; ; i++ {
		done, err := attempt()
		if err != nil || done {
			return err
		}
		if i+1 >= p.MaxAttempts {
			return errExhausted
		}

		if timer == nil {
			timer = time.NewTimer(p.Interval)
		} else {
			timer.Reset(p.Interval)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}
