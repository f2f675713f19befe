// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package service

import (
	"sync/atomic"
	"time"

	"github.com/cnotch/scheduler"
	"github.com/cnotch/v4l2dec/decoder"
	"github.com/cnotch/v4l2dec/stats"
	"github.com/cnotch/xlog"
)

// 空闲会话的回收计划，检查间隔为超时的一半
type idleReaper struct {
	d       time.Duration
	logger  *xlog.Logger
	stopped atomic.Bool
}

func startIdleReaper(d time.Duration, logger *xlog.Logger) *idleReaper {
	r := &idleReaper{d: d, logger: logger}
	scheduler.PostFunc(r, r.run,
		"The close task when the decode session exceeds a certain amount of time without activity.")
	return r
}

func (r *idleReaper) Next(t time.Time) time.Time {
	if r.stopped.Load() {
		return time.Time{}
	}
	return t.Add(r.d / 2)
}

func (r *idleReaper) run() {
	if n := decoder.CloseIdle(r.d); n > 0 {
		r.logger.Infof("closed %d idle decode sessions", n)
	}
}

func (r *idleReaper) stop() {
	r.stopped.Store(true)
}

// logStats 输出解码统计
func (s *Service) logStats() {
	sum := stats.Measure()
	if sum.Sessions.Total == 0 {
		return
	}
	d := sum.Decode
	s.logger.Infof("sessions active %d total %d, in %d pictures %d bytes, out %d frames %d bytes, tryagain %d, dropped %d, exports %d",
		sum.Sessions.Active, sum.Sessions.Total,
		d.InPictures, d.InBytes, d.OutFrames, d.OutBytes,
		d.TryAgain, d.Dropped, sum.Exports.Active)
}
