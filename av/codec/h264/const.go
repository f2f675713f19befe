// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

// NAL 单元类型
const (
	NalSlice           = 1  // 不分区非IDR图像的片
	NalDpa             = 2  // 片分区A
	NalIdrSlice        = 5  // IDR图像中的片（I帧）
	NalSei             = 6  // 补充增强信息单元
	NalSps             = 7  // 序列参数集
	NalPps             = 8  // 图像参数集
	NalAud             = 9  // 分界符
	NalFillerData      = 12 // 填充
	NalPrefix          = 14
	NalExtenSlice      = 20
	NalDepthExtenSlice = 21

	NalTypeBitmask = 0x1F
)

// NAL 头字节，nal_ref_idc = 3
const (
	NalHeaderSps = 0x60 | NalSps // 0x67
	NalHeaderPps = 0x60 | NalPps // 0x68
)

// profile_idc
const (
	ProfileBaseline = 66
	ProfileMain     = 77
	ProfileExtended = 88
	ProfileHigh     = 100
	ProfileHigh10   = 110
	ProfileHigh422  = 122
	ProfileHigh444  = 244
)

// 限值
const (
	MaxCpbCnt    = 32
	MaxDpbFrames = 16
	MaxSpsCount  = 32
	MaxPpsCount  = 256
)

// levelLimit MaxDpbMbs 上限与 level_idc 的对应
type levelLimit struct {
	maxDpbMbs int
	levelIdc  int
}

// 按 MaxDpbMbs 单调递增，超出全部上限时取 DefaultLevel
var levelLimits = []levelLimit{
	{396, 10},
	{900, 11},
	{2376, 12},
	{4752, 20},
	{8100, 21},
	{18000, 22},
	{20480, 30},
	{32768, 31},
	{36864, 32},
	{110400, 40},
	{184320, 41},
	{696320, 50},
}

// DefaultLevel 超出所有上限时使用的最高级别
const DefaultLevel = 52
