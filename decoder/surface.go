// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"errors"
	"sync"
	"time"
)

// SurfaceStatus 表面状态
type SurfaceStatus int

// 表面状态
const (
	SurfaceReady SurfaceStatus = iota
	SurfaceRendering
)

func (s SurfaceStatus) String() string {
	if s == SurfaceReady {
		return "ready"
	}
	return "rendering"
}

// Surface 解码目标，解码完成时绑定一个 CAPTURE 槽位
type Surface struct {
	width  int
	height int

	mu         sync.Mutex
	cond       *sync.Cond
	owner      *Context
	captureIdx int
	decoded    bool
	frame      Frame
}

// NewSurface 创建解码目标表面
func NewSurface(width, height int) *Surface {
	s := &Surface{
		width:      width,
		height:     height,
		captureIdx: -1,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Width .
func (s *Surface) Width() int { return s.width }

// Height .
func (s *Surface) Height() int { return s.height }

// Status 返回解码状态
func (s *Surface) Status() SurfaceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decoded {
		return SurfaceReady
	}
	return SurfaceRendering
}

// Frame 返回绑定的解码帧，没有时 ok 为 false
func (s *Surface) Frame() (frame Frame, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.captureIdx >= 0
}

// begin 新的图像开始渲染到该表面，返回之前持有的 CAPTURE 槽位
func (s *Surface) begin(owner *Context) (prev *Context, prevIdx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, prevIdx = s.owner, s.captureIdx
	s.owner = owner
	s.captureIdx = -1
	s.decoded = false
	s.frame = Frame{}
	return
}

// bind 绑定取回的帧并唤醒等待者.
// 表面已持有解码帧时不再绑定并返回 false，由调用方交还该帧.
func (s *Surface) bind(frame Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decoded && s.captureIdx >= 0 {
		return false
	}
	s.captureIdx = frame.Index
	s.frame = frame
	s.decoded = true
	s.cond.Broadcast()
	return true
}

// wait 等待 bind 或超时，调用方持有 mu
func (s *Surface) wait(d time.Duration) {
	timer := time.AfterFunc(d, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	s.cond.Wait()
	timer.Stop()
}

// Destroy 把持有的 CAPTURE 槽位交还设备
func (s *Surface) Destroy() {
	owner, idx := s.begin(nil)
	if owner != nil && idx >= 0 {
		owner.requeue(idx)
	}
}

func ignoreClosed(err error) error {
	if errors.Is(err, ErrSessionClosed) || errors.Is(err, ErrSlotNotOwned) {
		return nil
	}
	return err
}

// binding 返回渲染该表面的上下文和持有的 CAPTURE 槽位
func (s *Surface) binding() (*Context, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner, s.captureIdx
}
