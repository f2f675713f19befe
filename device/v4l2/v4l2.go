// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux && (amd64 || arm64)

// Package v4l2 通过 ioctl/mmap 访问 Linux V4L2 有状态 M2M 解码设备.
package v4l2

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/cnotch/v4l2dec/device"
	"github.com/cnotch/xlog"
	"golang.org/x/sys/unix"
)

// DefaultPaths 常见的解码设备节点
var DefaultPaths = []string{"/dev/video0", "/dev/video-dec0"}

// Device V4L2 M2M 设备
type Device struct {
	path string
	caps device.Capability

	mu     sync.Mutex
	fd     int
	planes [device.MaxPlanes]v4l2Plane // 传给内核的平面数组，须位于堆上
}

var _ device.Device = (*Device)(nil)

// Open 打开指定设备节点，并确认其为 M2M 设备
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("v4l2: open %s: %w", path, err)
	}

	var vcap v4l2Capability
	if err = ioctl(fd, vidiocQuerycap, unsafe.Pointer(&vcap)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("v4l2: VIDIOC_QUERYCAP %s: %w", path, err)
	}

	caps := device.Capability{
		Driver:       cstring(vcap.driver[:]),
		Card:         cstring(vcap.card[:]),
		BusInfo:      cstring(vcap.busInfo[:]),
		Version:      vcap.version,
		Capabilities: vcap.capabilities,
		DeviceCaps:   vcap.deviceCaps,
	}
	if !caps.IsM2M() {
		unix.Close(fd)
		return nil, fmt.Errorf("v4l2: %s (%s) is not a m2m device: %w", path, caps.Card, device.ErrNotSupported)
	}

	return &Device{path: path, caps: caps, fd: fd}, nil
}

// OpenFirst 依次尝试 paths，返回第一个可用的 M2M 设备
func OpenFirst(paths []string, logger *xlog.Logger) (*Device, error) {
	if logger == nil {
		logger = xlog.L()
	}
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	for _, path := range paths {
		d, err := Open(path)
		if err != nil {
			logger.Debugf("skip %s: %v", path, err)
			continue
		}
		logger.Infof("opened v4l2 device %s (%s)", path, d.caps.Card)
		return d, nil
	}
	return nil, device.ErrNotFound
}

// Path .
func (d *Device) Path() string { return d.path }

// Capability .
func (d *Device) Capability() device.Capability { return d.caps }

// EnumFormats .
func (d *Device) EnumFormats(typ device.BufType) ([]device.FormatDesc, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var descs []device.FormatDesc
	for i := 0; ; i++ {
		desc := v4l2Fmtdesc{index: uint32(i), typ: uint32(typ)}
		err := ioctl(d.fd, vidiocEnumFmt, unsafe.Pointer(&desc))
		if err == unix.EINVAL {
			break
		}
		if err != nil {
			return descs, d.wrap("VIDIOC_ENUM_FMT", typ, err)
		}
		descs = append(descs, device.FormatDesc{
			Index:       i,
			Flags:       desc.flags,
			Description: cstring(desc.description[:]),
			PixelFormat: device.FourCC(desc.pixelformat),
		})
	}
	return descs, nil
}

// SubscribeEvent .
func (d *Device) SubscribeEvent(ev device.EventType) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub := v4l2EventSubscription{typ: uint32(ev)}
	if err := ioctl(d.fd, vidiocSubscribeEvent, unsafe.Pointer(&sub)); err != nil {
		return fmt.Errorf("v4l2: VIDIOC_SUBSCRIBE_EVENT %d: %w", ev, err)
	}
	return nil
}

// DequeueEvent .
func (d *Device) DequeueEvent() (device.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var ev v4l2Event
	if err := ioctl(d.fd, vidiocDqevent, unsafe.Pointer(&ev)); err != nil {
		if err == unix.ENOENT {
			return device.Event{}, device.ErrNoEvent
		}
		return device.Event{}, fmt.Errorf("v4l2: VIDIOC_DQEVENT: %w", err)
	}

	e := device.Event{Type: device.EventType(ev.typ), Sequence: ev.sequence}
	if e.Type == device.EventSourceChange {
		e.Changes = ev.srcChangeChanges()
	}
	return e, nil
}

// GetFormat .
func (d *Device) GetFormat(typ device.BufType) (device.Format, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f := v4l2Format{typ: uint32(typ)}
	if err := ioctl(d.fd, vidiocGFmt, unsafe.Pointer(&f)); err != nil {
		return device.Format{}, d.wrap("VIDIOC_G_FMT", typ, err)
	}
	return fromPixMp(f.pixMp()), nil
}

// SetFormat .
func (d *Device) SetFormat(typ device.BufType, format device.Format) (device.Format, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f := v4l2Format{typ: uint32(typ)}
	pix := f.pixMp()
	pix.width = uint32(format.Width)
	pix.height = uint32(format.Height)
	pix.pixelformat = uint32(format.PixelFormat)
	pix.numPlanes = uint8(format.NumPlanes)
	for i := 0; i < format.NumPlanes && i < device.MaxPlanes; i++ {
		pix.planeFmt[i].sizeimage = format.Planes[i].SizeImage
		pix.planeFmt[i].bytesperline = format.Planes[i].BytesPerLine
	}

	if err := ioctl(d.fd, vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return device.Format{}, d.wrap("VIDIOC_S_FMT", typ, err)
	}
	return fromPixMp(pix), nil
}

// RequestBuffers .
func (d *Device) RequestBuffers(typ device.BufType, count int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	req := v4l2RequestBuffers{
		count:  uint32(count),
		typ:    uint32(typ),
		memory: v4l2MemoryMmap,
	}
	if err := ioctl(d.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return 0, d.wrap("VIDIOC_REQBUFS", typ, err)
	}
	return int(req.count), nil
}

// QueryBuffer .
func (d *Device) QueryBuffer(typ device.BufType, index int) (device.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queryBuffer(typ, index)
}

func (d *Device) queryBuffer(typ device.BufType, index int) (device.Buffer, error) {
	buf := d.newBuffer(typ)
	buf.index = uint32(index)
	if err := ioctl(d.fd, vidiocQuerybuf, unsafe.Pointer(&buf)); err != nil {
		return device.Buffer{}, d.wrap("VIDIOC_QUERYBUF", typ, err)
	}
	return d.toBuffer(typ, &buf), nil
}

// Map .
func (d *Device) Map(typ device.BufType, index, plane int) ([]byte, error) {
	if plane < 0 || plane >= device.MaxPlanes {
		return nil, device.ErrInvalidBuffer
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	buf, err := d.queryBuffer(typ, index)
	if err != nil {
		return nil, err
	}
	if plane >= buf.NumPlanes {
		return nil, device.ErrInvalidBuffer
	}

	p := buf.Planes[plane]
	mem, err := unix.Mmap(d.fd, int64(p.MemOffset), int(p.Length),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("v4l2: mmap %s[%d].%d: %w", typ, index, plane, err)
	}
	return mem, nil
}

// Unmap .
func (d *Device) Unmap(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	return unix.Munmap(mem)
}

// Queue .
func (d *Device) Queue(typ device.BufType, index int, bytesUsed ...int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf := d.newBuffer(typ)
	buf.index = uint32(index)
	for i := 0; i < len(bytesUsed) && i < device.MaxPlanes; i++ {
		d.planes[i].bytesused = uint32(bytesUsed[i])
	}
	if err := ioctl(d.fd, vidiocQbuf, unsafe.Pointer(&buf)); err != nil {
		return d.wrap("VIDIOC_QBUF", typ, err)
	}
	return nil
}

// Dequeue .
func (d *Device) Dequeue(typ device.BufType) (device.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf := d.newBuffer(typ)
	if err := ioctl(d.fd, vidiocDqbuf, unsafe.Pointer(&buf)); err != nil {
		if err == unix.EAGAIN {
			return device.Buffer{}, device.ErrTryAgain
		}
		return device.Buffer{}, d.wrap("VIDIOC_DQBUF", typ, err)
	}
	return d.toBuffer(typ, &buf), nil
}

// StreamOn .
func (d *Device) StreamOn(typ device.BufType) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := uint32(typ)
	if err := ioctl(d.fd, vidiocStreamon, unsafe.Pointer(&t)); err != nil {
		return d.wrap("VIDIOC_STREAMON", typ, err)
	}
	return nil
}

// StreamOff .
func (d *Device) StreamOff(typ device.BufType) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := uint32(typ)
	if err := ioctl(d.fd, vidiocStreamoff, unsafe.Pointer(&t)); err != nil {
		return d.wrap("VIDIOC_STREAMOFF", typ, err)
	}
	return nil
}

// ExportBuffer .
func (d *Device) ExportBuffer(typ device.BufType, index, plane int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp := v4l2ExportBuffer{
		typ:   uint32(typ),
		index: uint32(index),
		plane: uint32(plane),
		flags: unix.O_RDONLY | unix.O_CLOEXEC,
	}
	if err := ioctl(d.fd, vidiocExpbuf, unsafe.Pointer(&exp)); err != nil {
		return -1, d.wrap("VIDIOC_EXPBUF", typ, err)
	}
	return int(exp.fd), nil
}

// CloseExport .
func (d *Device) CloseExport(fd int) error {
	if fd < 0 {
		return nil
	}
	return unix.Close(fd)
}

// Close 关闭设备，可重复调用
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

// newBuffer 准备多平面缓冲描述，平面数组指向 d.planes
func (d *Device) newBuffer(typ device.BufType) v4l2Buffer {
	d.planes = [device.MaxPlanes]v4l2Plane{}
	return v4l2Buffer{
		typ:    uint32(typ),
		memory: v4l2MemoryMmap,
		length: device.MaxPlanes,
		m:      uint64(uintptr(unsafe.Pointer(&d.planes[0]))),
	}
}

func (d *Device) toBuffer(typ device.BufType, buf *v4l2Buffer) device.Buffer {
	b := device.Buffer{
		Index:     int(buf.index),
		Type:      typ,
		Flags:     buf.flags,
		Sequence:  buf.sequence,
		NumPlanes: int(buf.length),
	}
	if b.NumPlanes > device.MaxPlanes {
		b.NumPlanes = device.MaxPlanes
	}
	for i := 0; i < b.NumPlanes; i++ {
		b.Planes[i] = device.Plane{
			BytesUsed: d.planes[i].bytesused,
			Length:    d.planes[i].length,
			MemOffset: d.planes[i].memOffset(),
		}
	}
	return b
}

func (d *Device) wrap(op string, typ device.BufType, err error) error {
	if d.fd < 0 {
		return device.ErrClosed
	}
	return fmt.Errorf("v4l2: %s %s: %w", op, typ, err)
}

func fromPixMp(pix *v4l2PixFormatMplane) device.Format {
	f := device.Format{
		Width:       int(pix.width),
		Height:      int(pix.height),
		PixelFormat: device.FourCC(pix.pixelformat),
		NumPlanes:   int(pix.numPlanes),
	}
	for i := 0; i < f.NumPlanes && i < device.MaxPlanes; i++ {
		f.Planes[i] = device.PlaneFormat{
			SizeImage:    pix.planeFmt[i].sizeimage,
			BytesPerLine: pix.planeFmt[i].bytesperline,
		}
	}
	return f
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		}
		return errno
	}
}
