// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hevc

// Table 7-1 NAL unit type codes, T-REC-H.265-201802
const (
	NalTrailN    = 0
	NalTrailR    = 1
	NalTsaN      = 2
	NalTsaR      = 3
	NalStsaN     = 4
	NalStsaR     = 5
	NalRadlN     = 6
	NalRadlR     = 7
	NalRaslN     = 8
	NalRaslR     = 9
	NalBlaWLp    = 16
	NalBlaWRadl  = 17
	NalBlaNLp    = 18
	NalIdrWRadl  = 19
	NalIdrNLp    = 20
	NalCraNut    = 21
	NalVps       = 32
	NalSps       = 33
	NalPps       = 34
	NalAud       = 35
	NalEosNut    = 36
	NalEobNut    = 37
	NalFdNut     = 38
	NalSeiPrefix = 39
	NalSeiSuffix = 40
)

// general_profile_idc
const (
	ProfileMain   = 1
	ProfileMain10 = 2
	ProfileRExt   = 4
)

// 写出的 general_profile_compatibility_flag，flag[j] 位于 bit (31-j)
const (
	compatMain   = 1<<30 | 1<<29
	compatMain10 = 1 << 29
)

// VUI 色彩描述 (ITU-T H.273)
const (
	ColourPrimariesBT709   = 1
	ColourPrimariesBT2020  = 9
	TransferBT709          = 1
	TransferPQ             = 16
	MatrixBT709            = 1
	MatrixBT2020NCL        = 9
	VideoFormatUnspecified = 5
)

const (
	// 7.4.3.1: vps_max_sub_layers_minus1 is in [0, 6].
	MaxSubLayers = 7
	// A.4.2: MaxDpbSize is bounded above by 16.
	MaxDpbSize = 16
	// 7.4.3.2.1: num_short_term_ref_pic_sets is in [0, 64].
	MaxShortTermRefPicSets = 64
	// 7.4.3.2.1: num_long_term_ref_pics_sps is in [0, 32].
	MaxLongTermRefPics = 32
	// E.3.2: cpb_cnt_minus1[i] is in [0, 31].
	MaxCpbCnt = 32
	// A.4.1: table A.6 allows at most 20 tile columns and 22 tile rows.
	MaxTileColumns = 20
	MaxTileRows    = 22
)

// Table A.8 中 MaxLumaPs 与 general_level_idc (level*30) 的对应
var levelLimits = []struct {
	maxLumaPs int
	levelIdc  int
}{
	{36864, 30},
	{122880, 60},
	{245760, 63},
	{552960, 90},
	{983040, 93},
	{2228224, 120},
	{8912896, 150},
	{35651584, 180},
}

// DefaultLevel 超出表格时的 level (6.2)
const DefaultLevel = 186

// 4K 及以上分辨率在 level 5.0+ 使用 High tier
const (
	highTierMinLevel  = 150
	highTierMinPixels = 8294400
)
