// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cnotch/v4l2dec/device"
	"github.com/cnotch/v4l2dec/stats"
	"github.com/cnotch/xlog"
	"github.com/kelindar/rate"
)

// 缓冲池默认参数
const (
	DefaultOutputBuffers  = 8
	DefaultCaptureBuffers = 16
	DefaultBitstreamSize  = 4 << 20 // 单个 OUTPUT 槽位容量
)

// SessionOptions 解码会话参数
type SessionOptions struct {
	Width          int
	Height         int
	OutputBuffers  int
	CaptureBuffers int
	BitstreamSize  int
	SlotRetry      RetryPolicy
	EventRetry     RetryPolicy
	Logger         *xlog.Logger
}

func (opts SessionOptions) withDefaults() SessionOptions {
	if opts.OutputBuffers <= 0 {
		opts.OutputBuffers = DefaultOutputBuffers
	}
	if opts.CaptureBuffers <= 0 {
		opts.CaptureBuffers = DefaultCaptureBuffers
	}
	if opts.BitstreamSize <= 0 {
		opts.BitstreamSize = DefaultBitstreamSize
	}
	opts.SlotRetry = opts.SlotRetry.orDefault(DefaultSlotRetry)
	opts.EventRetry = opts.EventRetry.orDefault(DefaultEventRetry)
	if opts.Logger == nil {
		opts.Logger = xlog.L()
	}
	return opts
}

// PlaneLayout 平面在缓冲中的布局，Plane 为所在的内存平面
type PlaneLayout struct {
	Plane  int `json:"plane"`
	Offset int `json:"offset"`
	Pitch  int `json:"pitch"`
}

// Frame 取回的解码帧
type Frame struct {
	Index       int            `json:"index"`
	Sequence    uint32         `json:"sequence"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	PixelFormat device.FourCC  `json:"-"`
	BytesUsed   int            `json:"bytesused"`
	Planes      [2]PlaneLayout `json:"planes"` // 亮度，交错色度
}

// ExportLayer DRM PRIME 描述中的一层
type ExportLayer struct {
	DrmFormat string `json:"drmformat"`
	FD        int    `json:"fd"`
	PlaneLayout
}

// ExportedFrame 可跨进程共享的帧句柄.
// 单平面格式由一个 DMA-BUF 对象承载两层，多平面格式每层各有句柄.
type ExportedFrame struct {
	FD     int            `json:"fd"`
	Size   int            `json:"size"`
	Width  int            `json:"width"`
	Height int            `json:"height"`
	FourCC string         `json:"fourcc"`
	Layers [2]ExportLayer `json:"layers"`
}

// Session 一个解码会话：OUTPUT 池、延迟创建的 CAPTURE 池和设备句柄.
//
// 所有槽位状态变化和设备调用都在 mu 保护下进行，
// 允许一个线程提交的同时另一个线程取回和归还帧.
// 首次提交等待 SOURCE_CHANGE 期间 mu 在轮询间隔中释放，状态查询不被阻塞.
type Session struct {
	id     SID
	desc   *Descriptor
	dev    device.Device
	opts   SessionOptions
	logger *xlog.Logger
	flow   stats.Flow
	warn   *rate.Limiter

	mu               sync.Mutex
	output           *pool
	capture          *pool
	slotSize         int
	outputStreaming  bool
	captureStreaming bool
	sourceChanged    bool
	captureFormat    device.Format
	fatal            error
	closed           bool

	created    time.Time
	lastActive int64 // unix nano
}

// OpenSession 在设备上建立解码会话并完成 OUTPUT 队列的配置.
// 会话拥有设备，失败时已建立的部分全部释放，设备随之关闭.
func OpenSession(dev device.Device, desc *Descriptor, opts SessionOptions) (*Session, error) {
	if desc == nil {
		dev.Close()
		return nil, ErrUnsupportedProfile
	}

	opts = opts.withDefaults()
	id := NewSID(descriptorIndex(desc), &sessionSequenceSeed)
	s := &Session{
		id:      id,
		desc:    desc,
		dev:     dev,
		opts:    opts,
		flow:    stats.NewChildFlow(stats.Decode),
		warn:    rate.New(1, time.Second),
		output:  newPool(device.BufTypeOutput),
		capture: newPool(device.BufTypeCapture),
		created: time.Now(),
		logger: opts.Logger.With(xlog.Fields(
			xlog.F("session", id.String()),
			xlog.F("device", dev.Path()))),
	}
	s.touch()

	if err := s.setupOutput(); err != nil {
		s.logger.Errorf("setup OUTPUT queue failed; %v", err)
		s.teardown()
		return nil, err
	}

	stats.Sessions.Add()
	regist(s)
	s.logger.Infof("session opened: %s %dx%d, %d OUTPUT slots of %d bytes",
		desc.Name, opts.Width, opts.Height, s.output.size(), s.slotSize)
	return s, nil
}

// ID 会话 ID
func (s *Session) ID() SID { return s.id }

// Descriptor 会话的编码描述
func (s *Session) Descriptor() *Descriptor { return s.desc }

// Flow 会话的流量统计
func (s *Session) Flow() stats.Flow { return s.flow }

// LastActive 最近一次提交或取回的时间
func (s *Session) LastActive() time.Time {
	return time.Unix(0, atomic.LoadInt64(&s.lastActive))
}

func (s *Session) touch() {
	atomic.StoreInt64(&s.lastActive, time.Now().UnixNano())
}

// fail 标记会话进入不可恢复状态
func (s *Session) fail(op string, err error) error {
	s.fatal = fmt.Errorf("%w: %s: %w", ErrDeviceFailure, op, err)
	s.logger.Errorf("%v", s.fatal)
	return s.fatal
}

// usable 检查会话是否可用，调用方持有 mu
func (s *Session) usable() error {
	if s.closed {
		return ErrSessionClosed
	}
	return s.fatal
}

func (s *Session) setupOutput() error {
	if err := s.dev.SubscribeEvent(device.EventSourceChange); err != nil {
		s.logger.Warnf("subscribe SOURCE_CHANGE failed, continuing; %v", err)
	}
	if err := s.dev.SubscribeEvent(device.EventEOS); err != nil {
		s.logger.Warnf("subscribe EOS failed, continuing; %v", err)
	}

	f := device.Format{
		Width:       s.opts.Width,
		Height:      s.opts.Height,
		PixelFormat: s.desc.FourCC,
		NumPlanes:   1,
	}
	f.Planes[0].SizeImage = uint32(s.opts.BitstreamSize)
	if _, err := s.dev.SetFormat(device.BufTypeOutput, f); err != nil {
		return s.fail("S_FMT OUTPUT", err)
	}

	n, err := s.dev.RequestBuffers(device.BufTypeOutput, s.opts.OutputBuffers)
	if err != nil {
		return s.fail("REQBUFS OUTPUT", err)
	}
	if n <= 0 {
		return s.fail("REQBUFS OUTPUT", errors.New("no buffers allocated"))
	}
	s.output.reset(n)

	for i := 0; i < n; i++ {
		b, err := s.dev.QueryBuffer(device.BufTypeOutput, i)
		if err != nil {
			return s.fail("QUERYBUF OUTPUT", err)
		}
		mem, err := s.dev.Map(device.BufTypeOutput, i, 0)
		if err != nil {
			return s.fail("mmap OUTPUT", err)
		}

		sl := &s.output.slots[i]
		sl.planes = [][]byte{mem}
		sl.length[0] = len(mem)
		sl.offset[0] = int(b.Planes[0].MemOffset)
		if s.slotSize == 0 || sl.capacity() < s.slotSize {
			s.slotSize = sl.capacity()
		}
	}
	return nil
}

// SlotSize OUTPUT 槽位容量
func (s *Session) SlotSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slotSize
}

// Submit 提交一幅图像的码流.
// 无空闲槽位且已在流式传输时有界等待设备归还槽位，超时返回 ErrTryAgain；
// 首次提交启动 OUTPUT 流，等待 SOURCE_CHANGE 后建立 CAPTURE 池.
func (s *Session) Submit(ctx context.Context, payload []byte) error {
	var sl *slot
	// attempt 成功时保持 mu 锁定，由 Submit 释放
	err := s.opts.SlotRetry.Do(ctx, func() (bool, error) {
		s.mu.Lock()
		if err := s.usable(); err != nil {
			s.mu.Unlock()
			return false, err
		}
		if len(payload) > s.slotSize {
			s.mu.Unlock()
			return false, ErrPayloadTooLarge
		}

		s.reclaim()
		if free, ok := s.output.alloc(); ok {
			sl = free
			return true, nil
		}
		streaming := s.outputStreaming
		s.mu.Unlock()
		if !streaming {
			return false, ErrTryAgain
		}
		return false, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, errExhausted), errors.Is(err, ErrTryAgain):
			s.flow.AddTryAgain()
			if !s.warn.Limit() {
				s.logger.Warnf("no free OUTPUT slot within %v", s.opts.SlotRetry.Ceiling())
			}
			return ErrTryAgain
		case errors.Is(err, ErrPayloadTooLarge):
			s.flow.AddDropped()
			return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), s.slotSize)
		}
		return err
	}
	defer s.mu.Unlock()

	n := copy(sl.planes[0], payload)
	if err := s.dev.Queue(device.BufTypeOutput, sl.index, n); err != nil {
		s.output.restore(sl)
		return s.fail("QBUF OUTPUT", err)
	}
	s.output.markQueued(sl)
	s.flow.AddIn(int64(n))
	s.touch()

	if !s.outputStreaming {
		return s.startStreaming(ctx)
	}
	return nil
}

// reclaim 回收设备已处理完的 OUTPUT 槽位，调用方持有 mu
func (s *Session) reclaim() {
	if !s.outputStreaming {
		return
	}
	for {
		b, err := s.dev.Dequeue(device.BufTypeOutput)
		if err != nil {
			if !errors.Is(err, device.ErrTryAgain) {
				s.logger.Debugf("DQBUF OUTPUT failed; %v", err)
			}
			return
		}
		sl, ok := s.output.get(b.Index)
		if !ok || sl.state != slotQueued {
			s.logger.Warnf("device returned unexpected OUTPUT buffer %d", b.Index)
			continue
		}
		s.output.release(sl)
	}
}

// startStreaming 启动 OUTPUT 流，等待源变化事件后建立 CAPTURE 池，调用方持有 mu.
// 等待事件的间隔中释放 mu，返回前重新持有并检查会话是否仍可用.
func (s *Session) startStreaming(ctx context.Context) error {
	if err := s.dev.StreamOn(device.BufTypeOutput); err != nil {
		return s.fail("STREAMON OUTPUT", err)
	}
	s.outputStreaming = true
	s.logger.Debug("OUTPUT streaming started")

	s.mu.Unlock()
	err := s.opts.EventRetry.Do(ctx, func() (bool, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.usable(); err != nil {
			return false, err
		}
		ev, err := s.dev.DequeueEvent()
		if err != nil {
			if errors.Is(err, device.ErrNoEvent) {
				return false, nil
			}
			return false, err
		}
		s.logger.Debugf("device event type=%d changes=%#x", ev.Type, ev.Changes)
		return ev.Type == device.EventSourceChange, nil
	})
	s.mu.Lock()
	if uerr := s.usable(); uerr != nil {
		return uerr
	}

	if err == nil {
		s.sourceChanged = true
	} else {
		s.logger.Warnf("no SOURCE_CHANGE event, setting up CAPTURE anyway; %v", err)
	}

	if err := s.setupCapture(); err != nil {
		return err
	}
	if err := s.dev.StreamOn(device.BufTypeCapture); err != nil {
		return s.fail("STREAMON CAPTURE", err)
	}
	s.captureStreaming = true
	s.logger.Infof("CAPTURE streaming started: %s, %d slots", s.captureFormat, s.capture.size())
	return nil
}

// setupCapture 按设备协商的格式建立 CAPTURE 池并全部入列
func (s *Session) setupCapture() error {
	f, err := s.dev.GetFormat(device.BufTypeCapture)
	if err != nil {
		s.logger.Warnf("G_FMT CAPTURE failed, fallback to YU12; %v", err)
		f, err = s.dev.SetFormat(device.BufTypeCapture, device.Format{
			Width:       s.opts.Width,
			Height:      s.opts.Height,
			PixelFormat: device.PixFmtYUV420,
			NumPlanes:   1,
		})
		if err != nil {
			return s.fail("S_FMT CAPTURE", err)
		}
	}
	s.captureFormat = f

	n, err := s.dev.RequestBuffers(device.BufTypeCapture, s.opts.CaptureBuffers)
	if err != nil {
		return s.fail("REQBUFS CAPTURE", err)
	}
	if n <= 0 {
		return s.fail("REQBUFS CAPTURE", errors.New("no buffers allocated"))
	}
	s.capture.reset(n)

	for i := 0; i < n; i++ {
		sl := &s.capture.slots[i]
		b, err := s.dev.QueryBuffer(device.BufTypeCapture, i)
		if err != nil {
			s.logger.Warnf("QUERYBUF CAPTURE %d failed, continuing; %v", i, err)
			continue
		}
		for p := 0; p < b.NumPlanes && p < device.MaxPlanes; p++ {
			sl.length[p] = int(b.Planes[p].Length)
			sl.offset[p] = int(b.Planes[p].MemOffset)
		}
	}
	s.refill()
	return nil
}

// refill 把空闲的 CAPTURE 槽位交给设备，调用方持有 mu
func (s *Session) refill() {
	for {
		sl, ok := s.capture.alloc()
		if !ok {
			return
		}
		if err := s.dev.Queue(device.BufTypeCapture, sl.index); err != nil {
			s.capture.restore(sl)
			s.logger.Warnf("QBUF CAPTURE %d failed; %v", sl.index, err)
			return
		}
		s.capture.markQueued(sl)
	}
}

// Retrieve 非阻塞地取回一帧，CAPTURE 队列为空时返回 ErrNotReady.
// 取回的槽位归调用方所有，直到 Release.
func (s *Session) Retrieve() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return Frame{}, err
	}
	if !s.captureStreaming {
		return Frame{}, ErrNotReady
	}

	s.refill()
	b, err := s.dev.Dequeue(device.BufTypeCapture)
	if err != nil {
		if !errors.Is(err, device.ErrTryAgain) {
			s.logger.Debugf("DQBUF CAPTURE failed; %v", err)
		}
		return Frame{}, ErrNotReady
	}

	sl, ok := s.capture.get(b.Index)
	if !ok || sl.state != slotQueued {
		s.logger.Warnf("device returned unexpected CAPTURE buffer %d", b.Index)
		return Frame{}, ErrNotReady
	}
	sl.state = slotDecoded
	sl.sequence = b.Sequence
	total := 0
	for p := 0; p < b.NumPlanes && p < device.MaxPlanes; p++ {
		sl.used[p] = int(b.Planes[p].BytesUsed)
		total += sl.used[p]
	}
	s.flow.AddOut(int64(total))
	s.touch()
	return s.frameOf(sl), nil
}

// frameSize 帧的显示尺寸，未声明时取 CAPTURE 格式
func (s *Session) frameSize() (width, height int) {
	width, height = s.opts.Width, s.opts.Height
	if width <= 0 || height <= 0 {
		width, height = s.captureFormat.Width, s.captureFormat.Height
	}
	return
}

// pitch 亮度行跨度
func (s *Session) pitch() int {
	if bpl := int(s.captureFormat.Planes[0].BytesPerLine); bpl > 0 {
		return bpl
	}
	w, _ := s.frameSize()
	return w
}

// layout 按设备协商的 CAPTURE 格式给出 NV12 两个平面的布局和缓冲大小.
// 单平面时色度紧跟在亮度平面之后，亮度平面行数为设备报告的 (对齐后) 高度；
// 多平面时色度位于第二个内存平面.
func (s *Session) layout() (planes [2]PlaneLayout, size int) {
	f := s.captureFormat
	pitch := s.pitch()
	_, h := s.frameSize()
	rows := max(f.Height, h)

	planes[0] = PlaneLayout{Plane: 0, Offset: 0, Pitch: pitch}
	if f.NumPlanes > 1 {
		cpitch := int(f.Planes[1].BytesPerLine)
		if cpitch <= 0 {
			cpitch = pitch
		}
		planes[1] = PlaneLayout{Plane: 1, Offset: 0, Pitch: cpitch}
		size = int(f.Planes[0].SizeImage) + int(f.Planes[1].SizeImage)
	} else {
		planes[1] = PlaneLayout{Plane: 0, Offset: pitch * rows, Pitch: pitch}
		size = int(f.Planes[0].SizeImage)
	}
	if size <= 0 {
		size = pitch * rows * 3 / 2
	}
	return
}

func (s *Session) frameOf(sl *slot) Frame {
	w, h := s.frameSize()
	planes, _ := s.layout()
	return Frame{
		Index:       sl.index,
		Sequence:    sl.sequence,
		Width:       w,
		Height:      h,
		PixelFormat: s.captureFormat.PixelFormat,
		BytesUsed:   sl.used[0] + sl.used[1],
		Planes:      planes,
	}
}

// owned 取消费者持有的 CAPTURE 槽位，调用方持有 mu
func (s *Session) owned(index int) (*slot, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	sl, ok := s.capture.get(index)
	if !ok {
		return nil, ErrInvalidSlot
	}
	if sl.state != slotDecoded {
		return nil, ErrSlotNotOwned
	}
	return sl, nil
}

// ExportHandle 把 CAPTURE 槽位导出为 DMA-BUF，布局为 NV12 (R8 + RG88).
// 槽位在 Release 之前保持分配，重复导出返回同一句柄.
func (s *Session) ExportHandle(index int) (ExportedFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, err := s.owned(index)
	if err != nil {
		return ExportedFrame{}, err
	}

	planes, size := s.layout()
	for _, pl := range planes {
		if sl.fds[pl.Plane] >= 0 {
			continue
		}
		fd, err := s.dev.ExportBuffer(device.BufTypeCapture, index, pl.Plane)
		if err != nil {
			s.closeExport(sl)
			return ExportedFrame{}, fmt.Errorf("%w: EXPBUF: %w", ErrDeviceFailure, err)
		}
		sl.fds[pl.Plane] = fd
		stats.Exports.Add()
	}

	w, h := s.frameSize()
	return ExportedFrame{
		FD:     sl.fds[0],
		Size:   size,
		Width:  w,
		Height: h,
		FourCC: "NV12",
		Layers: [2]ExportLayer{
			{DrmFormat: "R8", FD: sl.fds[planes[0].Plane], PlaneLayout: planes[0]},
			{DrmFormat: "RG88", FD: sl.fds[planes[1].Plane], PlaneLayout: planes[1]},
		},
	}, nil
}

// closeExport 关闭槽位导出的句柄，调用方持有 mu
func (s *Session) closeExport(sl *slot) {
	for p, fd := range sl.fds {
		if fd < 0 {
			continue
		}
		if err := s.dev.CloseExport(fd); err != nil {
			s.logger.Warnf("close exported fd %d failed; %v", fd, err)
		}
		sl.fds[p] = -1
		stats.Exports.Release()
	}
}

// Release 把消费者持有的 CAPTURE 槽位交还设备
func (s *Session) Release(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, err := s.owned(index)
	if err != nil {
		return err
	}

	s.closeExport(sl)
	s.capture.release(sl)
	s.refill()
	return nil
}

// ReadFrame 把 CAPTURE 槽位中的 NV12 图像按紧凑布局复制到 dst，返回复制的字节数
func (s *Session) ReadFrame(index int, dst []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, err := s.owned(index)
	if err != nil {
		return 0, err
	}

	w, h := s.frameSize()
	lumaSize := w * h
	if len(dst) < lumaSize*3/2 {
		return 0, io.ErrShortBuffer
	}
	if err := s.mapCapture(sl); err != nil {
		return 0, err
	}

	planes, _ := s.layout()
	plane := func(pl PlaneLayout) []byte {
		if pl.Plane >= len(sl.planes) {
			return nil
		}
		mem := sl.planes[pl.Plane]
		return mem[min(pl.Offset, len(mem)):]
	}

	n := copyPlane(dst[:lumaSize], plane(planes[0]), w, h, planes[0].Pitch)
	n += copyPlane(dst[lumaSize:lumaSize*3/2], plane(planes[1]), w, h/2, planes[1].Pitch)
	return n, nil
}

// mapCapture 首次读取时映射 CAPTURE 槽位的平面
func (s *Session) mapCapture(sl *slot) error {
	if sl.planes != nil {
		return nil
	}
	planes := s.captureFormat.NumPlanes
	if planes <= 0 {
		planes = 1
	}
	for p := 0; p < planes && p < device.MaxPlanes; p++ {
		mem, err := s.dev.Map(device.BufTypeCapture, sl.index, p)
		if err != nil {
			s.unmap(sl)
			return fmt.Errorf("%w: mmap CAPTURE %d: %w", ErrDeviceFailure, sl.index, err)
		}
		sl.planes = append(sl.planes, mem)
	}
	return nil
}

func (s *Session) unmap(sl *slot) {
	for _, mem := range sl.planes {
		if err := s.dev.Unmap(mem); err != nil {
			s.logger.Debugf("munmap slot %d failed; %v", sl.index, err)
		}
	}
	sl.planes = nil
}

// copyPlane 逐行复制，去掉行尾填充
func copyPlane(dst, src []byte, width, rows, pitch int) int {
	n := 0
	for y := 0; y < rows; y++ {
		start := y * pitch
		if start >= len(src) {
			break
		}
		end := min(start+width, len(src))
		n += copy(dst[y*width:(y+1)*width], src[start:end])
	}
	return n
}

// SessionInfo 会话状态
type SessionInfo struct {
	ID               string           `json:"id"`
	Codec            string           `json:"codec"`
	Device           string           `json:"device"`
	Width            int              `json:"width"`
	Height           int              `json:"height"`
	Created          time.Time        `json:"created"`
	LastActive       time.Time        `json:"lastactive"`
	OutputStreaming  bool             `json:"outputstreaming"`
	CaptureStreaming bool             `json:"capturestreaming"`
	SourceChanged    bool             `json:"sourcechanged"`
	CaptureFormat    string           `json:"captureformat,omitempty"`
	Output           PoolStatus       `json:"output"`
	Capture          PoolStatus       `json:"capture"`
	Flow             stats.FlowSample `json:"flow"`
	Error            string           `json:"error,omitempty"`
}

// Info 返回会话状态快照
func (s *Session) Info() *SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := &SessionInfo{
		ID:               s.id.String(),
		Codec:            s.desc.Name,
		Device:           s.dev.Path(),
		Width:            s.opts.Width,
		Height:           s.opts.Height,
		Created:          s.created,
		LastActive:       s.LastActive(),
		OutputStreaming:  s.outputStreaming,
		CaptureStreaming: s.captureStreaming,
		SourceChanged:    s.sourceChanged,
		Output:           s.output.status(),
		Capture:          s.capture.status(),
		Flow:             s.flow.GetSample(),
	}
	if s.captureFormat.PixelFormat != 0 {
		info.CaptureFormat = s.captureFormat.String()
	}
	if s.fatal != nil {
		info.Error = s.fatal.Error()
	}
	return info
}

// Close 停止两个队列，释放全部槽位并关闭设备；可重复调用，未启动流时同样安全
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.teardown()
	s.mu.Unlock()

	unregist(s)
	stats.Sessions.Release()
	s.logger.Info("session closed")
	return nil
}

// teardown 释放设备资源，调用方持有 mu 或会话尚未发布
func (s *Session) teardown() {
	if s.outputStreaming {
		if err := s.dev.StreamOff(device.BufTypeOutput); err != nil {
			s.logger.Warnf("STREAMOFF OUTPUT failed; %v", err)
		}
		s.outputStreaming = false
	}
	if s.captureStreaming {
		if err := s.dev.StreamOff(device.BufTypeCapture); err != nil {
			s.logger.Warnf("STREAMOFF CAPTURE failed; %v", err)
		}
		s.captureStreaming = false
	}

	for _, p := range []*pool{s.capture, s.output} {
		if p.size() == 0 {
			continue
		}
		for i := range p.slots {
			sl := &p.slots[i]
			s.closeExport(sl)
			s.unmap(sl)
		}
		if _, err := s.dev.RequestBuffers(p.typ, 0); err != nil {
			s.logger.Debugf("REQBUFS %s 0 failed; %v", p.typ, err)
		}
		p.reset(0)
	}

	if err := s.dev.Close(); err != nil {
		s.logger.Warnf("close device failed; %v", err)
	}
}
