// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import (
	"github.com/cnotch/v4l2dec/av/codec"
	"github.com/cnotch/xlog"
)

// 头部 NAL 很小，几百字节足够
const maxHeaderSize = 512

// 未声明显示尺寸时，常见的对齐后高度与实际高度
var wellKnownHeights = map[int]int{
	1088: 1080,
	736:  720,
	368:  360,
}

// Synthesizer 由 PictureParams 重建 SPS/PPS
type Synthesizer struct {
	logger *xlog.Logger
}

var _ codec.Synthesizer = (*Synthesizer)(nil)

// NewSynthesizer 创建 H.264 参数集合成器，logger 为 nil 时使用全局日志
func NewSynthesizer(logger *xlog.Logger) *Synthesizer {
	if logger == nil {
		logger = xlog.L()
	}
	return &Synthesizer{logger: logger}
}

// NeedsHeaders .
func (s *Synthesizer) NeedsHeaders() bool { return true }

// IsKeySlice IDR 片
func (s *Synthesizer) IsKeySlice(nal []byte) bool {
	return len(nal) > 0 && IsIdrSlice(nal[0])
}

// IsParameterSet .
func (s *Synthesizer) IsParameterSet(nal []byte) bool {
	return len(nal) > 0 && (IsSps(nal[0]) || IsPps(nal[0]))
}

// SynthesizeHeaders 生成 SPS 和 PPS
func (s *Synthesizer) SynthesizeHeaders(params interface{}, display codec.Display) (*codec.VideoMeta, error) {
	var p *PictureParams
	switch v := params.(type) {
	case *PictureParams:
		p = v
	case PictureParams:
		p = &v
	default:
		return nil, codec.ErrParamsType
	}

	sps := NewSPS(p, display, s.logger)
	pps := NewPPS(p)

	return &codec.VideoMeta{
		Codec:        "H264",
		Profile:      int(sps.ProfileIdc),
		Level:        int(sps.LevelIdc),
		Width:        sps.Width(),
		Height:       sps.Height(),
		CodedWidth:   sps.CodedWidth(),
		CodedHeight:  sps.CodedHeight(),
		BitDepth:     int(sps.BitDepthLumaMinus8) + 8,
		ChromaFormat: int(sps.ChromaFormatIdc),
		Sps:          sps.Marshal(),
		Pps:          pps.Marshal(),
	}, nil
}

// ProfileOf 按优先级推导 profile_idc：位深/色度扩展 > 8x8 变换 > CABAC > Baseline.
// 非 4:2:0 的色度格式只能由 High 系列 profile 携带，非法值按 4:2:0 处理.
func ProfileOf(p *PictureParams) int {
	chroma := p.SeqFields.ChromaFormatIdc
	if chroma > 3 {
		chroma = 1
	}
	highBitDepth := p.BitDepthLumaMinus8 > 0 || p.BitDepthChromaMinus8 > 0
	switch {
	case chroma == 3:
		return ProfileHigh444
	case chroma == 2:
		return ProfileHigh422
	case highBitDepth:
		return ProfileHigh10
	case chroma == 0:
		return ProfileHigh
	}
	if p.PicFields.Transform8x8ModeFlag != 0 {
		return ProfileHigh
	}
	if p.PicFields.EntropyCodingModeFlag != 0 {
		return ProfileMain
	}
	return ProfileBaseline
}

// LevelOf 按 MaxDpbMbs = 帧宏块数 * (参考帧数 + 1) 查表得到 level_idc
func LevelOf(p *PictureParams) int {
	maxDpbMbs := p.WidthInMbs() * p.HeightInMbs() * (int(p.NumRefFrames) + 1)
	for _, limit := range levelLimits {
		if maxDpbMbs <= limit.maxDpbMbs {
			return limit.levelIdc
		}
	}
	return DefaultLevel
}

// NewSPS 由图像参数构造 SPS
func NewSPS(p *PictureParams, display codec.Display, logger *xlog.Logger) *RawSPS {
	profile := ProfileOf(p)
	chroma := p.SeqFields.ChromaFormatIdc
	if chroma > 3 {
		if logger != nil {
			logger.Warnf("h264: invalid chroma_format_idc %d, fallback to 4:2:0", chroma)
		}
		chroma = 1
	}

	fmo := p.SeqFields.FrameMbsOnlyFlag & 1
	sps := &RawSPS{
		NalUnitHeader:               RawNALUnitHeader{NalRefIdc: 3, NalUnitType: NalSps},
		ProfileIdc:                  uint8(profile),
		LevelIdc:                    uint8(LevelOf(p)),
		ChromaFormatIdc:             chroma,
		BitDepthLumaMinus8:          p.BitDepthLumaMinus8,
		Log2MaxFrameNumMinus4:       p.SeqFields.Log2MaxFrameNumMinus4,
		PicOrderCntType:             p.SeqFields.PicOrderCntType,
		Log2MaxPicOrderCntLsbMinus4: p.SeqFields.Log2MaxPicOrderCntLsbMinus4,
		DeltaPicOrderAlwaysZeroFlag: p.SeqFields.DeltaPicOrderAlwaysZeroFlag & 1,
		MaxNumRefFrames:             p.NumRefFrames,
		GapsInFrameNumAllowedFlag:   p.SeqFields.GapsInFrameNumValueAllowedFlag & 1,
		PicWidthInMbsMinus1:         p.PictureWidthInMbsMinus1,
		FrameMbsOnlyFlag:            fmo,
		Direct8x8InferenceFlag:      p.SeqFields.Direct8x8InferenceFlag & 1,
	}
	sps.BitDepthChromaMinus8 = p.BitDepthChromaMinus8
	// Baseline/Main 同时声明对 Main 的兼容
	if profile == ProfileBaseline {
		sps.ConstraintSet0Flag = 1
	}
	if profile <= ProfileMain {
		sps.ConstraintSet1Flag = 1
	}
	if p.SeqFields.PicOrderCntType > 2 {
		if logger != nil {
			logger.Warnf("h264: invalid pic_order_cnt_type %d, fallback to 2", p.SeqFields.PicOrderCntType)
		}
		sps.PicOrderCntType = 2
	}

	// 场编码时 PictureHeightInMbs 为帧高度，SPS 中以 map unit (场宏块对) 为单位
	heightMbs := p.HeightInMbs()
	if fmo == 0 {
		sps.MbAdaptiveFrameFieldFlag = p.SeqFields.MbAdaptiveFrameFieldFlag & 1
		heightMbs = (heightMbs + 1) / 2
	}
	sps.PicHeightInMapUnitsMinus1 = uint16(heightMbs - 1)

	// 不携带色度信息的 profile，解码端按 4:2:0、8 位推断
	if !hasChromaInfo(sps.ProfileIdc) {
		sps.ChromaFormatIdc = 1
		sps.BitDepthLumaMinus8 = 0
		sps.BitDepthChromaMinus8 = 0
	}

	sps.crop(display)
	return sps
}

// crop 按声明的显示尺寸设置裁剪，偏移以色度单位表示，抵消宏块对齐
func (sps *RawSPS) crop(display codec.Display) {
	codedW, codedH := sps.CodedWidth(), sps.CodedHeight()
	dispW, dispH := display.Width, display.Height
	if dispW <= 0 {
		dispW = codedW
	}
	if dispH <= 0 {
		dispH = codedH
		if h, ok := wellKnownHeights[codedH]; ok && display.Width <= 0 {
			dispH = h
		}
	}

	var right, bottom int
	if dispW < codedW {
		right = (codedW - dispW) / sps.CropUnitX()
	}
	if dispH < codedH {
		bottom = (codedH - dispH) / sps.CropUnitY()
	}
	if right == 0 && bottom == 0 {
		sps.FrameCroppingFlag = 0
		return
	}
	sps.FrameCroppingFlag = 1
	sps.FrameCropRightOffset = uint16(right)
	sps.FrameCropBottomOffset = uint16(bottom)
}

// NewPPS 由图像参数构造 PPS
func NewPPS(p *PictureParams) *RawPPS {
	pps := &RawPPS{
		NalUnitHeader:                      RawNALUnitHeader{NalRefIdc: 3, NalUnitType: NalPps},
		EntropyCodingModeFlag:              p.PicFields.EntropyCodingModeFlag & 1,
		BottomFieldPicOrderInFramePresent:  p.PicFields.PicOrderPresentFlag & 1,
		WeightedPredFlag:                   p.PicFields.WeightedPredFlag & 1,
		WeightedBipredIdc:                  p.PicFields.WeightedBipredIdc & 3,
		PicInitQpMinus26:                   p.PicInitQpMinus26,
		PicInitQsMinus26:                   p.PicInitQsMinus26,
		ChromaQpIndexOffset:                p.ChromaQpIndexOffset,
		DeblockingFilterControlPresentFlag: p.PicFields.DeblockingFilterControlPresentFlag & 1,
		ConstrainedIntraPredFlag:           p.PicFields.ConstrainedIntraPredFlag & 1,
		RedundantPicCntPresentFlag:         p.PicFields.RedundantPicCntPresentFlag & 1,
		SecondChromaQpIndexOffset:          p.ChromaQpIndexOffset,
	}
	if ProfileOf(p) >= ProfileHigh && p.PicFields.Transform8x8ModeFlag != 0 {
		pps.MoreRbspData = true
		pps.Transform8x8ModeFlag = 1
		pps.SecondChromaQpIndexOffset = p.SecondChromaQpIndexOffset
	}
	return pps
}

func cropUnitX(chromaFormatIdc, separateColourPlane uint8) int {
	if chromaFormatIdc == 0 || separateColourPlane == 1 {
		return 1
	}
	if chromaFormatIdc == 3 {
		return 1
	}
	return 2
}

func cropUnitY(chromaFormatIdc, separateColourPlane, frameMbsOnly uint8) int {
	units := 2 - int(frameMbsOnly&1)
	if chromaFormatIdc == 1 && separateColourPlane == 0 {
		return 2 * units
	}
	return units
}
