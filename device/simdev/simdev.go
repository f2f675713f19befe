// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package simdev 内存中模拟的 M2M 解码设备，用于测试和无硬件环境下的演示.
//
// 每个入列的 OUTPUT 缓冲视为一帧，立即"解码"：OUTPUT 缓冲回到完成队列，
// 若 CAPTURE 已启动且有空闲缓冲，则生成一帧 NV12 图像.
package simdev

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cnotch/queue"
	"github.com/cnotch/v4l2dec/device"
)

// Mode 模拟设备的行为模式
type Mode int

// 模拟模式
const (
	// ModeNormal 正常解码
	ModeNormal Mode = iota
	// ModeBusy OUTPUT 缓冲永不归还，模拟卡死的设备
	ModeBusy
	// ModeNoEvent 不发送 SOURCE_CHANGE 事件
	ModeNoEvent
	// ModeNoCapture 不产生解码帧
	ModeNoCapture
)

var modeNames = map[string]Mode{
	"normal":    ModeNormal,
	"busy":      ModeBusy,
	"noevent":   ModeNoEvent,
	"nocapture": ModeNoCapture,
}

// ParseMode 解析模式名
func ParseMode(s string) (Mode, error) {
	if m, ok := modeNames[s]; ok {
		return m, nil
	}
	return ModeNormal, fmt.Errorf("simdev: unknown mode %q", s)
}

func (m Mode) String() string {
	for name, v := range modeNames {
		if v == m {
			return name
		}
	}
	return "unknown"
}

// ErrInjected 注入的故障
var ErrInjected = errors.New("simdev: injected failure")

// 可注入故障的操作名
const (
	OpSubscribe = "subscribe"
	OpSetFormat = "s_fmt"
	OpGetFormat = "g_fmt"
	OpReqBufs   = "reqbufs"
	OpQueryBuf  = "querybuf"
	OpQueue     = "qbuf"
	OpStreamOn  = "streamon"
	OpExport    = "expbuf"
)

// Options 模拟设备参数
type Options struct {
	Path          string
	Mode          Mode
	Width         int             // 解码输出宽度，0 时取 OUTPUT 格式的宽度
	Height        int             // 解码输出高度
	OutputFormats []device.FourCC // 支持的压缩格式，为空时支持全部常用格式
	MaxBuffers    int             // 每个队列最多分配的缓冲数，0 不限制
	FailOn        map[string]bool // 注入故障的操作
}

type queueState struct {
	format    device.Format
	mems      [][][]byte // [index][plane]
	queued    queue.Queue
	done      queue.Queue
	owned     []bool // 缓冲位于驱动侧
	streaming bool
}

// Device 模拟的 M2M 解码设备
type Device struct {
	opts Options

	mu         sync.Mutex
	closed     bool
	subscribed map[device.EventType]bool
	events     queue.Queue
	output     queueState
	capture    queueState
	pending    int // 已解码但尚无 CAPTURE 缓冲可用的帧数
	sequence   uint32
	nextFd     int
	exports    map[int]bool
	decoded    int
}

var _ device.Device = (*Device)(nil)

// New 创建模拟设备
func New(opts Options) *Device {
	if opts.Path == "" {
		opts.Path = "sim://decoder"
	}
	if len(opts.OutputFormats) == 0 {
		opts.OutputFormats = []device.FourCC{
			device.PixFmtH264, device.PixFmtHEVC, device.PixFmtVP8, device.PixFmtVP9,
		}
	}
	return &Device{
		opts:       opts,
		subscribed: make(map[device.EventType]bool),
		exports:    make(map[int]bool),
		nextFd:     1000,
	}
}

// Path .
func (d *Device) Path() string { return d.opts.Path }

// Capability .
func (d *Device) Capability() device.Capability {
	return device.Capability{
		Driver:       "simdev",
		Card:         "simulated m2m decoder (" + d.opts.Mode.String() + ")",
		BusInfo:      "platform:simdev",
		Capabilities: device.CapVideoM2MMplane | device.CapStreaming,
	}
}

// EnumFormats .
func (d *Device) EnumFormats(typ device.BufType) ([]device.FormatDesc, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, device.ErrClosed
	}

	formats := append([]device.FourCC(nil), d.opts.OutputFormats...)
	if typ == device.BufTypeCapture {
		formats = []device.FourCC{device.PixFmtNV12}
	}
	descs := make([]device.FormatDesc, len(formats))
	for i, f := range formats {
		descs[i] = device.FormatDesc{Index: i, Description: f.String(), PixelFormat: f}
	}
	return descs, nil
}

// SubscribeEvent .
func (d *Device) SubscribeEvent(ev device.EventType) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(OpSubscribe); err != nil {
		return err
	}
	d.subscribed[ev] = true
	return nil
}

// DequeueEvent .
func (d *Device) DequeueEvent() (device.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.Event{}, device.ErrClosed
	}
	if d.events.Len() == 0 {
		return device.Event{}, device.ErrNoEvent
	}
	return popFront(&d.events).(device.Event), nil
}

// GetFormat .
func (d *Device) GetFormat(typ device.BufType) (device.Format, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(OpGetFormat); err != nil {
		return device.Format{}, err
	}
	q, err := d.queue(typ)
	if err != nil {
		return device.Format{}, err
	}
	if q.format.PixelFormat == 0 {
		return device.Format{}, fmt.Errorf("simdev: %s format not set: %w", typ, device.ErrNotSupported)
	}
	return q.format, nil
}

// SetFormat .
func (d *Device) SetFormat(typ device.BufType, f device.Format) (device.Format, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(OpSetFormat); err != nil {
		return device.Format{}, err
	}
	q, err := d.queue(typ)
	if err != nil {
		return device.Format{}, err
	}
	if q.streaming || len(q.mems) > 0 {
		return device.Format{}, fmt.Errorf("simdev: S_FMT %s while busy", typ)
	}

	if typ == device.BufTypeOutput {
		if !d.supports(f.PixelFormat) {
			return device.Format{}, fmt.Errorf("simdev: pixel format %s: %w", f.PixelFormat, device.ErrNotSupported)
		}
		f.NumPlanes = 1
		if f.Planes[0].SizeImage == 0 {
			f.Planes[0].SizeImage = 1 << 20
		}
		f.Planes[1] = device.PlaneFormat{}
	} else {
		f = captureFormat(f.Width, f.Height, f.PixelFormat)
	}
	q.format = f
	return f, nil
}

func (d *Device) supports(f device.FourCC) bool {
	for _, of := range d.opts.OutputFormats {
		if of == f {
			return true
		}
	}
	return false
}

// captureFormat YU12/NV12 单平面连续布局，与硬件一样报告按宏块对齐后的编码尺寸
func captureFormat(width, height int, pixfmt device.FourCC) device.Format {
	if pixfmt != device.PixFmtYUV420 {
		pixfmt = device.PixFmtNV12
	}
	w := (width + 15) &^ 15
	h := (height + 15) &^ 15
	return device.Format{
		Width:       w,
		Height:      h,
		PixelFormat: pixfmt,
		NumPlanes:   1,
		Planes: [device.MaxPlanes]device.PlaneFormat{
			{SizeImage: uint32(w * h * 3 / 2), BytesPerLine: uint32(w)},
		},
	}
}

// RequestBuffers .
func (d *Device) RequestBuffers(typ device.BufType, count int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(OpReqBufs); err != nil {
		return 0, err
	}
	q, err := d.queue(typ)
	if err != nil {
		return 0, err
	}
	if q.streaming {
		return 0, fmt.Errorf("simdev: REQBUFS %s while streaming", typ)
	}

	if count == 0 {
		q.mems = nil
		q.owned = nil
		q.queued.Reset()
		q.done.Reset()
		return 0, nil
	}
	if q.format.PixelFormat == 0 {
		return 0, fmt.Errorf("simdev: REQBUFS %s before S_FMT", typ)
	}
	if d.opts.MaxBuffers > 0 && count > d.opts.MaxBuffers {
		count = d.opts.MaxBuffers
	}

	q.mems = make([][][]byte, count)
	q.owned = make([]bool, count)
	for i := range q.mems {
		q.mems[i] = make([][]byte, q.format.NumPlanes)
		for p := 0; p < q.format.NumPlanes; p++ {
			q.mems[i][p] = make([]byte, q.format.Planes[p].SizeImage)
		}
	}
	return count, nil
}

// QueryBuffer .
func (d *Device) QueryBuffer(typ device.BufType, index int) (device.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(OpQueryBuf); err != nil {
		return device.Buffer{}, err
	}
	q, err := d.queue(typ)
	if err != nil {
		return device.Buffer{}, err
	}
	if index < 0 || index >= len(q.mems) {
		return device.Buffer{}, device.ErrInvalidBuffer
	}
	return q.buffer(typ, index, nil), nil
}

func (q *queueState) buffer(typ device.BufType, index int, used []int) device.Buffer {
	b := device.Buffer{Index: index, Type: typ, NumPlanes: len(q.mems[index])}
	offset := uint32(0)
	for p, mem := range q.mems[index] {
		b.Planes[p].Length = uint32(len(mem))
		b.Planes[p].MemOffset = offset
		if p < len(used) {
			b.Planes[p].BytesUsed = uint32(used[p])
		}
		offset += uint32(len(mem))
	}
	return b
}

// Map 返回缓冲平面的内存，模拟设备不复制
func (d *Device) Map(typ device.BufType, index, plane int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, device.ErrClosed
	}
	q, err := d.queue(typ)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(q.mems) || plane < 0 || plane >= len(q.mems[index]) {
		return nil, device.ErrInvalidBuffer
	}
	return q.mems[index][plane], nil
}

// Unmap .
func (d *Device) Unmap(mem []byte) error { return nil }

type doneBuffer struct {
	index    int
	used     []int
	sequence uint32
}

// Queue .
func (d *Device) Queue(typ device.BufType, index int, bytesUsed ...int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(OpQueue); err != nil {
		return err
	}
	q, err := d.queue(typ)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(q.mems) {
		return device.ErrInvalidBuffer
	}
	if q.owned[index] {
		return fmt.Errorf("simdev: %s buffer %d already queued", typ, index)
	}
	if typ == device.BufTypeOutput && (len(bytesUsed) == 0 || bytesUsed[0] > len(q.mems[index][0])) {
		return fmt.Errorf("simdev: OUTPUT buffer %d bad bytesused %v", index, bytesUsed)
	}

	q.owned[index] = true
	q.queued.Push(doneBuffer{index: index, used: append([]int(nil), bytesUsed...)})
	d.process()
	return nil
}

// Dequeue .
func (d *Device) Dequeue(typ device.BufType) (device.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.Buffer{}, device.ErrClosed
	}
	q, err := d.queue(typ)
	if err != nil {
		return device.Buffer{}, err
	}
	if !q.streaming || q.done.Len() == 0 {
		return device.Buffer{}, device.ErrTryAgain
	}

	db := popFront(&q.done).(doneBuffer)
	q.owned[db.index] = false
	b := q.buffer(typ, db.index, db.used)
	b.Sequence = db.sequence
	return b, nil
}

// StreamOn .
func (d *Device) StreamOn(typ device.BufType) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(OpStreamOn); err != nil {
		return err
	}
	q, err := d.queue(typ)
	if err != nil {
		return err
	}
	if len(q.mems) == 0 {
		return fmt.Errorf("simdev: STREAMON %s without buffers", typ)
	}
	if q.streaming {
		return nil
	}
	q.streaming = true

	if typ == device.BufTypeOutput && d.opts.Mode != ModeNoEvent && d.subscribed[device.EventSourceChange] {
		d.events.Push(device.Event{Type: device.EventSourceChange, Changes: device.SourceChangeResolution})
		if d.capture.format.PixelFormat == 0 {
			w, h := d.opts.Width, d.opts.Height
			if w == 0 {
				w, h = d.output.format.Width, d.output.format.Height
			}
			d.capture.format = captureFormat(w, h, device.PixFmtNV12)
		}
	}
	d.process()
	return nil
}

// StreamOff 停止队列，驱动侧的缓冲全部回到用户侧
func (d *Device) StreamOff(typ device.BufType) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.ErrClosed
	}
	q, err := d.queue(typ)
	if err != nil {
		return err
	}
	q.streaming = false
	q.queued.Reset()
	q.done.Reset()
	for i := range q.owned {
		q.owned[i] = false
	}
	if typ == device.BufTypeOutput {
		d.pending = 0
	}
	return nil
}

// ExportBuffer 返回模拟的文件描述符
func (d *Device) ExportBuffer(typ device.BufType, index, plane int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(OpExport); err != nil {
		return -1, err
	}
	q, err := d.queue(typ)
	if err != nil {
		return -1, err
	}
	if index < 0 || index >= len(q.mems) || plane < 0 || plane >= len(q.mems[index]) {
		return -1, device.ErrInvalidBuffer
	}
	fd := d.nextFd
	d.nextFd++
	d.exports[fd] = true
	return fd, nil
}

// CloseExport .
func (d *Device) CloseExport(fd int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.exports[fd] {
		return fmt.Errorf("simdev: close unknown fd %d", fd)
	}
	delete(d.exports, fd)
	return nil
}

// Close .
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Stats 模拟设备的内部状态，供测试断言
type Stats struct {
	Decoded         int
	Pending         int
	OpenExports     int
	OutputQueued    int
	CaptureQueued   int
	OutputStreaming bool
	CapStreaming    bool
	Closed          bool
}

// Stats 返回当前状态快照
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Decoded:         d.decoded,
		Pending:         d.pending,
		OpenExports:     len(d.exports),
		OutputQueued:    countOwned(d.output.owned),
		CaptureQueued:   countOwned(d.capture.owned),
		OutputStreaming: d.output.streaming,
		CapStreaming:    d.capture.streaming,
		Closed:          d.closed,
	}
}

// SetMode 运行中切换模式，用于模拟设备恢复
func (d *Device) SetMode(m Mode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.Mode = m
	d.process()
}

// popFront 取出队首元素，调用方保证队列非空
func popFront(q *queue.Queue) interface{} {
	elems := append([]interface{}(nil), q.Elems()...)
	q.Reset()
	if len(elems) > 1 {
		q.PushN(elems[1:])
	}
	return elems[0]
}

func countOwned(owned []bool) int {
	n := 0
	for _, o := range owned {
		if o {
			n++
		}
	}
	return n
}

func (d *Device) check(op string) error {
	if d.closed {
		return device.ErrClosed
	}
	if d.opts.FailOn[op] {
		return fmt.Errorf("simdev: %s: %w", op, ErrInjected)
	}
	return nil
}

func (d *Device) queue(typ device.BufType) (*queueState, error) {
	switch typ {
	case device.BufTypeOutput:
		return &d.output, nil
	case device.BufTypeCapture:
		return &d.capture, nil
	}
	return nil, fmt.Errorf("simdev: buffer type %s: %w", typ, device.ErrNotSupported)
}

// process 模拟硬件：消费 OUTPUT 缓冲并填充 CAPTURE 缓冲
func (d *Device) process() {
	if d.output.streaming && d.opts.Mode != ModeBusy {
		for d.output.queued.Len() > 0 {
			db := popFront(&d.output.queued).(doneBuffer)
			d.output.done.Push(db)
			if d.opts.Mode != ModeNoCapture {
				d.pending++
			}
		}
	}

	if !d.capture.streaming {
		return
	}
	for d.pending > 0 && d.capture.queued.Len() > 0 {
		db := popFront(&d.capture.queued).(doneBuffer)
		d.fill(db.index)
		db.used = make([]int, len(d.capture.mems[db.index]))
		for p, mem := range d.capture.mems[db.index] {
			db.used[p] = len(mem)
		}
		db.sequence = d.sequence
		d.sequence++
		d.capture.done.Push(db)
		d.pending--
		d.decoded++
	}
}

// fill 用帧序号生成可辨识的 NV12 图像
func (d *Device) fill(index int) {
	mem := d.capture.mems[index][0]
	f := d.capture.format
	stride := int(f.Planes[0].BytesPerLine)
	lumaSize := stride * f.Height
	if lumaSize > len(mem) {
		lumaSize = len(mem)
	}
	luma := byte(16 + d.sequence%220)
	for i := 0; i < lumaSize; i++ {
		mem[i] = luma
	}
	for i := lumaSize; i < len(mem); i++ {
		mem[i] = 128
	}
}
