// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hevc

import (
	"github.com/cnotch/v4l2dec/av/codec"
	"github.com/cnotch/xlog"
)

const maxHeaderSize = 512

// Synthesizer 由 PictureParams 重建 VPS/SPS/PPS
type Synthesizer struct {
	logger *xlog.Logger
}

var _ codec.Synthesizer = (*Synthesizer)(nil)

// NewSynthesizer 创建 HEVC 参数集合成器，logger 为 nil 时使用全局日志
func NewSynthesizer(logger *xlog.Logger) *Synthesizer {
	if logger == nil {
		logger = xlog.L()
	}
	return &Synthesizer{logger: logger}
}

// NeedsHeaders .
func (s *Synthesizer) NeedsHeaders() bool { return true }

// IsKeySlice IDR/CRA 片
func (s *Synthesizer) IsKeySlice(nal []byte) bool {
	return len(nal) > 0 && IsIrapKey(nal[0])
}

// IsParameterSet .
func (s *Synthesizer) IsParameterSet(nal []byte) bool {
	return len(nal) > 0 && IsParameterSet(nal[0])
}

// SynthesizeHeaders 生成 VPS、SPS 和 PPS
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

	vps := NewVPS(p)
	sps := NewSPS(p, display, s.logger)
	pps := NewPPS(p)
	ptl := &sps.ProfileTierLevel

	return &codec.VideoMeta{
		Codec:        "H265",
		Profile:      int(ptl.GeneralProfileIdc),
		Level:        int(ptl.GeneralLevelIdc),
		HighTier:     ptl.GeneralTierFlag == 1,
		Width:        sps.Width(),
		Height:       sps.Height(),
		CodedWidth:   sps.CodedWidth(),
		CodedHeight:  sps.CodedHeight(),
		BitDepth:     int(sps.BitDepthLumaMinus8) + 8,
		ChromaFormat: int(sps.ChromaFormatIdc),
		Vps:          vps.Marshal(),
		Sps:          sps.Marshal(),
		Pps:          pps.Marshal(),
	}, nil
}

// ProfileOf 10bit 为 Main10，否则 Main
func ProfileOf(p *PictureParams) int {
	if p.BitDepthLumaMinus8 > 0 {
		return ProfileMain10
	}
	return ProfileMain
}

// LevelOf 按亮度样本数查表，返回 general_level_idc (level*30)
func LevelOf(p *PictureParams) int {
	pixels := p.LumaPixels()
	for _, limit := range levelLimits {
		if pixels <= limit.maxLumaPs {
			return limit.levelIdc
		}
	}
	return DefaultLevel
}

// HighTierOf 4K 及以上且 level >= 5.0 时使用 High tier
func HighTierOf(p *PictureParams, level int) bool {
	return level >= highTierMinLevel && p.LumaPixels() >= highTierMinPixels
}

// NewProfileTierLevel 由图像参数推导 profile_tier_level
func NewProfileTierLevel(p *PictureParams) RawProfileTierLevel {
	level := LevelOf(p)
	ptl := RawProfileTierLevel{
		GeneralProfileIdc:              uint8(ProfileOf(p)),
		GeneralLevelIdc:                uint8(level),
		GeneralProgressiveSourceFlag:   1,
		GeneralFrameOnlyConstraintFlag: 1,
	}
	if HighTierOf(p, level) {
		ptl.GeneralTierFlag = 1
	}
	if ptl.GeneralProfileIdc == ProfileMain10 {
		ptl.GeneralProfileCompatibilityFlags = compatMain10
	} else {
		ptl.GeneralProfileCompatibilityFlags = compatMain
	}
	return ptl
}

// NewVPS 构造单层 VPS. 解码器按解码顺序输出，重排序与延迟恒为 0.
func NewVPS(p *PictureParams) *RawVPS {
	vps := &RawVPS{
		NalUnitHeader:                   newNALUnitHeader(NalVps),
		BaseLayerInternalFlag:           1,
		BaseLayerAvailableFlag:          1,
		TemporalIDNestingFlag:           1,
		ProfileTierLevel:                NewProfileTierLevel(p),
		SubLayerOrderingInfoPresentFlag: 1,
	}
	vps.MaxDecPicBufferingMinus1[0] = p.SpsMaxDecPicBufferingMinus1
	return vps
}

// NewSPS 由图像参数构造 SPS
func NewSPS(p *PictureParams, display codec.Display, logger *xlog.Logger) *RawSPS {
	pf := &p.PicFields
	spf := &p.SliceParsingFields

	chroma := pf.ChromaFormatIdc
	if chroma > 3 {
		if logger != nil {
			logger.Warnf("hevc: invalid chroma_format_idc %d, fallback to 4:2:0", chroma)
		}
		chroma = 1
	}

	sps := &RawSPS{
		NalUnitHeader:                        newNALUnitHeader(NalSps),
		TemporalIDNestingFlag:                1,
		ProfileTierLevel:                     NewProfileTierLevel(p),
		ChromaFormatIdc:                      chroma,
		PicWidthInLumaSamples:                uint16(p.CodedWidth()),
		PicHeightInLumaSamples:               uint16(p.CodedHeight()),
		BitDepthLumaMinus8:                   p.BitDepthLumaMinus8,
		BitDepthChromaMinus8:                 p.BitDepthChromaMinus8,
		Log2MaxPicOrderCntLsbMinus4:          p.Log2MaxPicOrderCntLsbMinus4,
		SubLayerOrderingInfoPresentFlag:      1,
		Log2MinLumaCodingBlockSizeMinus3:     p.Log2MinLumaCodingBlockSizeMinus3,
		Log2DiffMaxMinLumaCodingBlockSize:    p.Log2DiffMaxMinLumaCodingBlockSize,
		Log2MinLumaTransformBlockSizeMinus2:  p.Log2MinTransformBlockSizeMinus2,
		Log2DiffMaxMinLumaTransformBlockSize: p.Log2DiffMaxMinTransformBlockSize,
		MaxTransformHierarchyDepthInter:      p.MaxTransformHierarchyDepthInter,
		MaxTransformHierarchyDepthIntra:      p.MaxTransformHierarchyDepthIntra,
		ScalingListEnabledFlag:               pf.ScalingListEnabledFlag & 1,
		AmpEnabledFlag:                       pf.AmpEnabledFlag & 1,
		SampleAdaptiveOffsetEnabledFlag:      spf.SampleAdaptiveOffsetEnabledFlag & 1,
		PcmEnabledFlag:                       pf.PcmEnabledFlag & 1,
		LongTermRefPicsPresentFlag:           spf.LongTermRefPicsPresentFlag & 1,
		SpsTemporalMvpEnabledFlag:            spf.SpsTemporalMvpEnabledFlag & 1,
		StrongIntraSmoothingEnabledFlag:      pf.StrongIntraSmoothingEnabledFlag & 1,
		VuiParametersPresentFlag:             1,
	}
	if chroma == 3 {
		sps.SeparateColourPlaneFlag = pf.SeparateColourPlaneFlag & 1
	}
	sps.MaxDecPicBufferingMinus1[0] = p.SpsMaxDecPicBufferingMinus1
	if sps.PcmEnabledFlag == 1 {
		sps.PcmSampleBitDepthLumaMinus1 = p.PcmSampleBitDepthLumaMinus1
		sps.PcmSampleBitDepthChromaMinus1 = p.PcmSampleBitDepthChromaMinus1
		sps.Log2MinPcmLumaCodingBlockSizeMinus3 = p.Log2MinPcmLumaCodingBlockSizeMinus3
		sps.Log2DiffMaxMinPcmLumaCodingBlockSize = p.Log2DiffMaxMinPcmLumaCodingBlockSize
		sps.PcmLoopFilterDisabledFlag = pf.PcmLoopFilterDisabledFlag & 1
	}

	sps.crop(p, display)
	sps.Vui = colourVUI(p.BitDepthLumaMinus8 > 0)
	return sps
}

// crop 设置一致性窗口，从对齐后的编码尺寸裁剪到显示尺寸 (缺省为记录中的尺寸)
func (sps *RawSPS) crop(p *PictureParams, display codec.Display) {
	dispW, dispH := display.Width, display.Height
	if dispW <= 0 || dispW > int(p.PicWidthInLumaSamples) {
		dispW = int(p.PicWidthInLumaSamples)
	}
	if dispH <= 0 || dispH > int(p.PicHeightInLumaSamples) {
		dispH = int(p.PicHeightInLumaSamples)
	}

	right := (sps.CodedWidth() - dispW) / sps.SubWidthC()
	bottom := (sps.CodedHeight() - dispH) / sps.SubHeightC()
	if right == 0 && bottom == 0 {
		sps.ConformanceWindowFlag = 0
		return
	}
	sps.ConformanceWindowFlag = 1
	sps.ConfWinRightOffset = uint16(right)
	sps.ConfWinBottomOffset = uint16(bottom)
}

// colourVUI 10bit 按 HDR10 (BT.2020/PQ) 标注，否则 BT.709
func colourVUI(hdr bool) RawVUI {
	vui := RawVUI{
		VideoSignalTypePresentFlag:   1,
		VideoFormat:                  VideoFormatUnspecified,
		ColourDescriptionPresentFlag: 1,
		ColourPrimaries:              ColourPrimariesBT709,
		TransferCharacteristics:      TransferBT709,
		MatrixCoefficients:           MatrixBT709,
	}
	if hdr {
		vui.ColourPrimaries = ColourPrimariesBT2020
		vui.TransferCharacteristics = TransferPQ
		vui.MatrixCoefficients = MatrixBT2020NCL
	}
	return vui
}

// NewPPS 由图像参数构造 PPS
func NewPPS(p *PictureParams) *RawPPS {
	pf := &p.PicFields
	spf := &p.SliceParsingFields

	pps := &RawPPS{
		NalUnitHeader:                          newNALUnitHeader(NalPps),
		DependentSliceSegmentsEnabledFlag:      spf.DependentSliceSegmentsEnabledFlag & 1,
		OutputFlagPresentFlag:                  spf.OutputFlagPresentFlag & 1,
		NumExtraSliceHeaderBits:                p.NumExtraSliceHeaderBits & 7,
		SignDataHidingEnabledFlag:              pf.SignDataHidingEnabledFlag & 1,
		CabacInitPresentFlag:                   spf.CabacInitPresentFlag & 1,
		NumRefIdxL0DefaultActiveMinus1:         p.NumRefIdxL0DefaultActiveMinus1,
		NumRefIdxL1DefaultActiveMinus1:         p.NumRefIdxL1DefaultActiveMinus1,
		InitQpMinus26:                          p.InitQpMinus26,
		ConstrainedIntraPredFlag:               pf.ConstrainedIntraPredFlag & 1,
		TransformSkipEnabledFlag:               pf.TransformSkipEnabledFlag & 1,
		CuQpDeltaEnabledFlag:                   pf.CuQpDeltaEnabledFlag & 1,
		PpsCbQpOffset:                          p.PpsCbQpOffset,
		PpsCrQpOffset:                          p.PpsCrQpOffset,
		PpsSliceChromaQpOffsetsPresentFlag:     spf.PpsSliceChromaQpOffsetsPresentFlag & 1,
		WeightedPredFlag:                       pf.WeightedPredFlag & 1,
		WeightedBipredFlag:                     pf.WeightedBipredFlag & 1,
		TransquantBypassEnabledFlag:            pf.TransquantBypassEnabledFlag & 1,
		TilesEnabledFlag:                       pf.TilesEnabledFlag & 1,
		EntropyCodingSyncEnabledFlag:           pf.EntropyCodingSyncEnabledFlag & 1,
		PpsLoopFilterAcrossSlicesEnabledFlag:   pf.PpsLoopFilterAcrossSlicesEnabledFlag & 1,
		DeblockingFilterOverrideEnabledFlag:    spf.DeblockingFilterOverrideEnabledFlag & 1,
		PpsDeblockingFilterDisabledFlag:        spf.PpsDisableDeblockingFilterFlag & 1,
		ListsModificationPresentFlag:           spf.ListsModificationPresentFlag & 1,
		Log2ParallelMergeLevelMinus2:           p.Log2ParallelMergeLevelMinus2,
		SliceSegmentHeaderExtensionPresentFlag: spf.SliceSegmentHeaderExtensionPresentFlag & 1,
	}
	if pps.CuQpDeltaEnabledFlag == 1 {
		pps.DiffCuQpDeltaDepth = p.DiffCuQpDeltaDepth
	}
	if pps.TilesEnabledFlag == 1 {
		pps.NumTileColumnsMinus1 = p.NumTileColumnsMinus1
		pps.NumTileRowsMinus1 = p.NumTileRowsMinus1
		pps.UniformSpacingFlag = 1
		pps.LoopFilterAcrossTilesEnabledFlag = pf.LoopFilterAcrossTilesEnabledFlag & 1
	}
	if pps.DeblockingFilterOverrideEnabledFlag == 1 || pps.PpsDeblockingFilterDisabledFlag == 1 {
		pps.DeblockingFilterControlPresentFlag = 1
		if pps.PpsDeblockingFilterDisabledFlag == 0 {
			pps.PpsBetaOffsetDiv2 = p.PpsBetaOffsetDiv2
			pps.PpsTcOffsetDiv2 = p.PpsTcOffsetDiv2
		}
	}
	return pps
}
