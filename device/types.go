// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package device

import (
	"fmt"
	"strings"
)

// BufType 缓冲队列类型 (多平面 API)
type BufType uint32

// 队列类型，取值与 enum v4l2_buf_type 一致
const (
	BufTypeCapture BufType = 9  // V4L2_BUF_TYPE_VIDEO_CAPTURE_MPLANE
	BufTypeOutput  BufType = 10 // V4L2_BUF_TYPE_VIDEO_OUTPUT_MPLANE
)

func (t BufType) String() string {
	switch t {
	case BufTypeCapture:
		return "CAPTURE"
	case BufTypeOutput:
		return "OUTPUT"
	}
	return fmt.Sprintf("BufType(%d)", uint32(t))
}

// EventType 设备事件类型
type EventType uint32

// 事件类型，取值与 V4L2_EVENT_* 一致
const (
	EventEOS          EventType = 2
	EventSourceChange EventType = 5
)

// SourceChangeResolution 事件 changes 字段中的分辨率变化标志
const SourceChangeResolution = 1 << 0

// Event 设备事件
type Event struct {
	Type     EventType
	Changes  uint32 // 仅 SOURCE_CHANGE 有效
	Sequence uint32
}

// 设备能力标志 (V4L2_CAP_*)
const (
	CapVideoM2MMplane = 0x00004000
	CapVideoM2M       = 0x00008000
	CapStreaming      = 0x04000000
	CapDeviceCaps     = 0x80000000
)

// Capability 设备能力
type Capability struct {
	Driver       string `json:"driver"`
	Card         string `json:"card"`
	BusInfo      string `json:"businfo"`
	Version      uint32 `json:"version"`
	Capabilities uint32 `json:"capabilities"`
	DeviceCaps   uint32 `json:"devicecaps"`
}

// IsM2M 是否为 M2M 设备
func (c Capability) IsM2M() bool {
	caps := c.Capabilities
	if caps&CapDeviceCaps != 0 {
		caps = c.DeviceCaps
	}
	return caps&(CapVideoM2MMplane|CapVideoM2M) != 0
}

// FourCC 像素格式四字符码
type FourCC uint32

// 常用像素格式
var (
	PixFmtH264      = NewFourCC("H264")
	PixFmtH264Slice = NewFourCC("S264")
	PixFmtHEVC      = NewFourCC("HEVC")
	PixFmtVP8       = NewFourCC("VP80")
	PixFmtVP9       = NewFourCC("VP90")
	PixFmtAV1       = NewFourCC("AV01")
	PixFmtMPEG2     = NewFourCC("MPG2")
	PixFmtMPEG4     = NewFourCC("MPG4")
	PixFmtYUV420    = NewFourCC("YU12")
	PixFmtNV12      = NewFourCC("NV12")
)

// NewFourCC 由 4 字符创建 FourCC，不足 4 字符补空格
func NewFourCC(s string) FourCC {
	var b [4]byte
	copy(b[:], s+"    ")
	return FourCC(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

func (f FourCC) String() string {
	b := []byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)}
	return strings.TrimRight(string(b), " ")
}

// FormatDesc 枚举到的格式描述
type FormatDesc struct {
	Index       int    `json:"index"`
	Flags       uint32 `json:"flags"`
	Description string `json:"description"`
	PixelFormat FourCC `json:"pixelformat"`
}

// MaxPlanes 每个缓冲的最大平面数
const MaxPlanes = 2

// PlaneFormat 平面格式
type PlaneFormat struct {
	SizeImage    uint32 `json:"sizeimage"`
	BytesPerLine uint32 `json:"bytesperline"`
}

// Format 多平面格式
type Format struct {
	Width       int                    `json:"width"`
	Height      int                    `json:"height"`
	PixelFormat FourCC                 `json:"pixelformat"`
	NumPlanes   int                    `json:"numplanes"`
	Planes      [MaxPlanes]PlaneFormat `json:"planes"`
}

func (f Format) String() string {
	return fmt.Sprintf("%dx%d %s planes=%d", f.Width, f.Height, f.PixelFormat, f.NumPlanes)
}

// Plane 缓冲平面
type Plane struct {
	BytesUsed uint32
	Length    uint32
	MemOffset uint32
}

// Buffer 缓冲描述
type Buffer struct {
	Index     int
	Type      BufType
	Flags     uint32
	Sequence  uint32
	NumPlanes int
	Planes    [MaxPlanes]Plane
}
