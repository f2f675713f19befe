// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux && (amd64 || arm64)

package v4l2

import (
	"encoding/binary"
	"unsafe"
)

// 结构尺寸与内核 ABI 不一致时编译失败
var (
	_ [0]struct{} = [unsafe.Sizeof(v4l2Capability{}) - 104]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2Fmtdesc{}) - 64]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2Format{}) - 208]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2PixFormatMplane{}) - 192]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2RequestBuffers{}) - 20]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2Plane{}) - 64]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2Buffer{}) - 88]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2ExportBuffer{}) - 64]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2EventSubscription{}) - 32]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2Event{}) - 136]struct{}{}

	_ [0]struct{} = [unsafe.Offsetof(v4l2Buffer{}.m) - 64]struct{}{}
	_ [0]struct{} = [unsafe.Offsetof(v4l2Format{}.raw) - 8]struct{}{}
)

// IOCTL 编号 (64 位)
const (
	vidiocQuerycap         = 0x80685600
	vidiocEnumFmt          = 0xc0405602
	vidiocGFmt             = 0xc0d05604
	vidiocSFmt             = 0xc0d05605
	vidiocReqbufs          = 0xc0145608
	vidiocQuerybuf         = 0xc0585609
	vidiocQbuf             = 0xc058560f
	vidiocExpbuf           = 0xc0405610
	vidiocDqbuf            = 0xc0585611
	vidiocStreamon         = 0x40045612
	vidiocStreamoff        = 0x40045613
	vidiocDqevent          = 0x80885659
	vidiocSubscribeEvent   = 0x4020565a
	vidiocUnsubscribeEvent = 0x4020565b
)

const (
	v4l2MemoryMmap = 1
	v4l2MaxPlanes  = 8
)

// v4l2Capability 104 字节
type v4l2Capability struct {
	driver       [16]byte
	card         [32]byte
	busInfo      [32]byte
	version      uint32
	capabilities uint32
	deviceCaps   uint32
	reserved     [3]uint32
}

// v4l2Fmtdesc 64 字节
type v4l2Fmtdesc struct {
	index       uint32
	typ         uint32
	flags       uint32
	description [32]byte
	pixelformat uint32
	mbusCode    uint32
	reserved    [3]uint32
}

// v4l2PlanePixFormat 20 字节
type v4l2PlanePixFormat struct {
	sizeimage    uint32
	bytesperline uint32
	reserved     [6]uint16
}

// v4l2PixFormatMplane 192 字节 (内核中为 packed)
type v4l2PixFormatMplane struct {
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	colorspace   uint32
	planeFmt     [v4l2MaxPlanes]v4l2PlanePixFormat
	numPlanes    uint8
	flags        uint8
	ycbcrEnc     uint8
	quantization uint8
	xferFunc     uint8
	reserved     [7]uint8
}

// v4l2Format 208 字节. 联合体含指针成员，按 8 字节对齐.
type v4l2Format struct {
	typ uint32
	_   [4]byte
	raw [200]byte
}

func (f *v4l2Format) pixMp() *v4l2PixFormatMplane {
	return (*v4l2PixFormatMplane)(unsafe.Pointer(&f.raw[0]))
}

// v4l2RequestBuffers 20 字节
type v4l2RequestBuffers struct {
	count        uint32
	typ          uint32
	memory       uint32
	capabilities uint32
	flags        uint8
	reserved     [3]uint8
}

// v4l2Plane 64 字节. m 为 mem_offset/userptr/fd 联合体.
type v4l2Plane struct {
	bytesused  uint32
	length     uint32
	m          uint64
	dataOffset uint32
	reserved   [11]uint32
}

func (p *v4l2Plane) memOffset() uint32 {
	return uint32(p.m)
}

// v4l2Buffer 88 字节
type v4l2Buffer struct {
	index     uint32
	typ       uint32
	bytesused uint32
	flags     uint32
	field     uint32
	_         uint32
	timestamp [2]int64 // struct timeval
	timecode  [16]byte
	sequence  uint32
	memory    uint32
	m         uint64 // 多平面 API 下为 struct v4l2_plane *
	length    uint32
	reserved2 uint32
	requestFd int32
	_         uint32
}

// v4l2ExportBuffer 64 字节
type v4l2ExportBuffer struct {
	typ      uint32
	index    uint32
	plane    uint32
	flags    uint32
	fd       int32
	reserved [11]uint32
}

// v4l2EventSubscription 32 字节
type v4l2EventSubscription struct {
	typ      uint32
	id       uint32
	flags    uint32
	reserved [5]uint32
}

// v4l2Event 136 字节，联合体含 64 位成员，整体按 8 字节对齐
type v4l2Event struct {
	typ       uint32
	_         [4]byte
	u         [64]byte
	pending   uint32
	sequence  uint32
	timestamp [16]byte
	id        uint32
	reserved  [8]uint32
	_         [4]byte
}

// srcChangeChanges 联合体起始处的 src_change.changes
func (e *v4l2Event) srcChangeChanges() uint32 {
	return binary.LittleEndian.Uint32(e.u[:4])
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
