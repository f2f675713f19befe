// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cnotch/v4l2dec/av/codec"
	"github.com/cnotch/v4l2dec/av/format/annexb"
	"github.com/cnotch/v4l2dec/device"
	"github.com/cnotch/xlog"
)

// SliceFragment 调用方缓冲中一个片的字节范围
type SliceFragment struct {
	Offset int `json:"offset"`
	Size   int `json:"size"`
}

// ContextOptions 解码上下文参数
type ContextOptions struct {
	Session   SessionOptions
	SyncRetry RetryPolicy
}

// Context 调用方的解码生命周期：参数集合成、码流组装、提交和同步.
type Context struct {
	session *Session
	synth   codec.Synthesizer
	display codec.Display
	sync    RetryPolicy
	logger  *xlog.Logger

	closed atomic.Bool

	mu     sync.Mutex
	asm    *annexb.Assembler
	target *Surface
	meta   *codec.VideoMeta
}

// NewContext 为指定 profile 和分辨率创建解码上下文，设备归上下文所有
func NewContext(dev device.Device, profile Profile, width, height int, opts ContextOptions) (*Context, error) {
	desc, ok := LookupProfile(profile)
	if !ok {
		dev.Close()
		return nil, ErrUnsupportedProfile
	}

	opts.Session.Width = width
	opts.Session.Height = height
	session, err := OpenSession(dev, desc, opts.Session)
	if err != nil {
		return nil, err
	}

	logger := session.logger.With(xlog.Fields(xlog.F("profile", profile.String())))
	synth := desc.NewSynthesizer(logger)
	return &Context{
		session: session,
		synth:   synth,
		display: codec.Display{Width: width, Height: height},
		sync:    opts.SyncRetry.orDefault(DefaultSyncRetry),
		logger:  logger,
		asm:     annexb.NewAssembler(synth, logger),
	}, nil
}

// Session 上下文的解码会话
func (c *Context) Session() *Session { return c.session }

// Meta 最近一次合成的参数集信息
func (c *Context) Meta() *codec.VideoMeta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta
}

// BeginPicture 开始向 surface 渲染新图像：交还其持有的 CAPTURE 槽位并重置码流
func (c *Context) BeginPicture(surface *Surface) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return ErrSessionClosed
	}

	prev, idx := surface.begin(c)
	if prev != nil && idx >= 0 {
		prev.requeue(idx)
	}
	c.asm.BeginPicture()
	c.target = surface
	return nil
}

// SubmitParameters 由图像参数合成参数集，参数变化时下一关键图像前重发
func (c *Context) SubmitParameters(params interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return ErrSessionClosed
	}

	meta, err := c.synth.SynthesizeHeaders(params, c.display)
	if err != nil {
		return err
	}
	if c.asm.SetHeaders(meta.ParameterSets()) {
		c.logger.Infof("parameter sets changed: %s", meta)
	}
	c.meta = meta
	return nil
}

// SubmitSlices 按顺序追加片数据，越界的片被忽略
func (c *Context) SubmitSlices(buf []byte, frags []SliceFragment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return ErrSessionClosed
	}
	if c.target == nil {
		return ErrNoPicture
	}

	for i, f := range frags {
		if f.Offset < 0 || f.Size < 0 || f.Offset+f.Size > len(buf) {
			c.logger.Warnf("slice %d out of range: offset=%d size=%d buffer=%d", i, f.Offset, f.Size, len(buf))
			continue
		}
		if err := c.asm.AppendSlice(buf[f.Offset : f.Offset+f.Size]); err != nil {
			return err
		}
	}
	return nil
}

// EndPicture 封闭并提交码流，然后尝试为渲染目标取回一帧
func (c *Context) EndPicture(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return ErrSessionClosed
	}
	if c.target == nil {
		return ErrNoPicture
	}

	if data := c.asm.Seal(); len(data) > 0 {
		if err := c.session.Submit(ctx, data); err != nil {
			return err
		}
	}
	c.poll(c.target)
	return nil
}

// poll 取回一帧并绑定到 target
func (c *Context) poll(target *Surface) bool {
	frame, err := c.session.Retrieve()
	if err != nil {
		return false
	}
	if !target.bind(frame) {
		c.requeue(frame.Index)
	}
	return true
}

// requeue 交还 CAPTURE 槽位
func (c *Context) requeue(idx int) {
	if err := ignoreClosed(c.session.Release(idx)); err != nil {
		c.logger.Warnf("requeue CAPTURE %d failed; %v", idx, err)
	}
}

// Sync 有界等待 surface 解码完成.
// 超过上限后表面被强制标记为就绪，设备停滞时调用方可能得到未完成解码的帧.
func (c *Context) Sync(surface *Surface) error {
	surface.mu.Lock()
	defer surface.mu.Unlock()

	owner := surface.owner
	if owner == nil {
		surface.decoded = true
		return nil
	}

	for i := 0; !surface.decoded && i < owner.sync.MaxAttempts; i++ {
		surface.mu.Unlock()
		polled := owner.poll(surface)
		surface.mu.Lock()

		if surface.owner != owner || owner.closed.Load() {
			break
		}
		if !polled && !surface.decoded {
			surface.wait(owner.sync.Interval)
		}
	}

	if !surface.decoded {
		owner.logger.Warnf("sync timed out after %v, surface forced ready", owner.sync.Ceiling())
		surface.decoded = true
	}
	return nil
}

// QueryStatus 返回表面状态
func (c *Context) QueryStatus(surface *Surface) SurfaceStatus {
	return surface.Status()
}

// ExportFrame 导出 surface 绑定的帧
func (c *Context) ExportFrame(surface *Surface) (ExportedFrame, error) {
	owner, idx := surface.binding()
	if owner == nil || idx < 0 {
		return ExportedFrame{}, ErrSurfaceBusy
	}
	return owner.session.ExportHandle(idx)
}

// GetImage 把 surface 的解码图像复制到 dst (NV12 紧凑布局)
func (c *Context) GetImage(surface *Surface, dst []byte) (int, error) {
	owner, idx := surface.binding()
	if owner == nil || idx < 0 || surface.Status() != SurfaceReady {
		return 0, ErrSurfaceBusy
	}
	return owner.session.ReadFrame(idx, dst)
}

// Close 关闭上下文和会话
func (c *Context) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	c.target = nil
	c.mu.Unlock()
	return c.session.Close()
}
