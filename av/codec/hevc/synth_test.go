// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hevc

import (
	"bytes"
	"testing"

	"github.com/cnotch/v4l2dec/av/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func main1080p() *PictureParams {
	return &PictureParams{
		PicWidthInLumaSamples:  1920,
		PicHeightInLumaSamples: 1080,
		PicFields: PicFields{
			ChromaFormatIdc:                      1,
			AmpEnabledFlag:                       1,
			StrongIntraSmoothingEnabledFlag:      1,
			SignDataHidingEnabledFlag:            1,
			CuQpDeltaEnabledFlag:                 1,
			PpsLoopFilterAcrossSlicesEnabledFlag: 1,
		},
		SpsMaxDecPicBufferingMinus1:       4,
		Log2MinLumaCodingBlockSizeMinus3:  0,
		Log2DiffMaxMinLumaCodingBlockSize: 3,
		Log2MinTransformBlockSizeMinus2:   0,
		Log2DiffMaxMinTransformBlockSize:  3,
		MaxTransformHierarchyDepthIntra:   1,
		MaxTransformHierarchyDepthInter:   1,
		InitQpMinus26:                     -4,
		DiffCuQpDeltaDepth:                1,
		PpsCbQpOffset:                     -1,
		PpsCrQpOffset:                     2,
		Log2ParallelMergeLevelMinus2:      0,
		SliceParsingFields: SliceParsingFields{
			SpsTemporalMvpEnabledFlag:       1,
			SampleAdaptiveOffsetEnabledFlag: 1,
			CabacInitPresentFlag:            1,
		},
		Log2MaxPicOrderCntLsbMinus4:    4,
		NumRefIdxL0DefaultActiveMinus1: 2,
	}
}

func withSize(w, h uint16) *PictureParams {
	p := main1080p()
	p.PicWidthInLumaSamples = w
	p.PicHeightInLumaSamples = h
	return p
}

func TestProfileOf(t *testing.T) {
	p := main1080p()
	assert.Equal(t, ProfileMain, ProfileOf(p))
	ptl := NewProfileTierLevel(p)
	assert.True(t, ptl.Compatible(ProfileMain))
	assert.True(t, ptl.Compatible(ProfileMain10))

	p.BitDepthLumaMinus8 = 2
	p.BitDepthChromaMinus8 = 2
	assert.Equal(t, ProfileMain10, ProfileOf(p))
	ptl = NewProfileTierLevel(p)
	assert.False(t, ptl.Compatible(ProfileMain))
	assert.True(t, ptl.Compatible(ProfileMain10))
}

func TestLevelAndTier(t *testing.T) {
	tests := []struct {
		name     string
		w, h     uint16
		wantIdc  int
		wantHigh bool
	}{
		{"qcif", 176, 144, 30, false},
		{"360p", 640, 360, 63, false},
		{"cif", 352, 288, 60, false},
		{"540p", 960, 540, 90, false},
		{"720p", 1280, 720, 93, false},
		{"1080p", 1920, 1080, 120, false},
		{"1440p", 2560, 1440, 150, false},
		{"4k", 3840, 2160, 150, true},
		{"8k", 7680, 4320, 180, true},
		{"beyond", 8192, 8192, DefaultLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := withSize(tt.w, tt.h)
			level := LevelOf(p)
			assert.Equal(t, tt.wantIdc, level)
			assert.Equal(t, tt.wantHigh, HighTierOf(p, level))
		})
	}
}

func TestLevelLimitsMonotonic(t *testing.T) {
	for i := 1; i < len(levelLimits); i++ {
		assert.Greater(t, levelLimits[i].maxLumaPs, levelLimits[i-1].maxLumaPs)
		assert.Greater(t, levelLimits[i].levelIdc, levelLimits[i-1].levelIdc)
	}
}

func TestSynthesizer_Main1080p(t *testing.T) {
	s := NewSynthesizer(nil)
	meta, err := s.SynthesizeHeaders(main1080p(), codec.Display{})
	require.NoError(t, err)
	assert.Equal(t, "H265", meta.Codec)
	assert.Equal(t, ProfileMain, meta.Profile)
	assert.Equal(t, 120, meta.Level)
	assert.False(t, meta.HighTier)
	assert.Equal(t, 1920, meta.Width)
	assert.Equal(t, 1080, meta.Height)
	assert.Equal(t, 8, meta.BitDepth)
	assert.Len(t, meta.ParameterSets(), 3)
	assert.True(t, IsVps(meta.Vps[0]))
	assert.True(t, IsSps(meta.Sps[0]))
	assert.True(t, IsPps(meta.Pps[0]))

	var vps RawVPS
	require.NoError(t, vps.Decode(meta.Vps))
	assert.Equal(t, uint8(1), vps.NalUnitHeader.NuhTemporalIDPlus1)
	assert.Equal(t, uint8(0), vps.NalUnitHeader.NuhLayerID)
	assert.Equal(t, uint8(4), vps.MaxDecPicBufferingMinus1[0])
	assert.Equal(t, uint8(0), vps.MaxNumReorderPics[0])
	assert.Equal(t, uint32(0), vps.MaxLatencyIncreasePlus1[0])

	var sps RawSPS
	require.NoError(t, sps.Decode(meta.Sps))
	assert.Equal(t, 1920, sps.Width())
	assert.Equal(t, 1080, sps.Height())
	assert.Equal(t, uint8(0), sps.ConformanceWindowFlag)
	assert.Equal(t, uint8(120), sps.ProfileTierLevel.GeneralLevelIdc)
	assert.Equal(t, uint8(1), sps.ProfileTierLevel.GeneralProgressiveSourceFlag)
	assert.Equal(t, uint8(1), sps.ProfileTierLevel.GeneralFrameOnlyConstraintFlag)
	assert.Equal(t, uint8(4), sps.Log2MaxPicOrderCntLsbMinus4)
	assert.Equal(t, uint8(1), sps.AmpEnabledFlag)
	assert.Equal(t, uint8(1), sps.SampleAdaptiveOffsetEnabledFlag)
	assert.Equal(t, uint8(1), sps.SpsTemporalMvpEnabledFlag)
	assert.Equal(t, uint8(1), sps.StrongIntraSmoothingEnabledFlag)
	assert.Equal(t, uint8(0), sps.NumShortTermRefPicSets)
	assert.Equal(t, uint8(ColourPrimariesBT709), sps.Vui.ColourPrimaries)
	assert.Equal(t, uint8(TransferBT709), sps.Vui.TransferCharacteristics)
	assert.Equal(t, uint8(MatrixBT709), sps.Vui.MatrixCoefficients)
	assert.Equal(t, uint8(0), sps.Vui.VideoFullRangeFlag)
	assert.Equal(t, uint8(VideoFormatUnspecified), sps.Vui.VideoFormat)

	var pps RawPPS
	require.NoError(t, pps.Decode(meta.Pps))
	assert.Equal(t, int8(-4), pps.InitQpMinus26)
	assert.Equal(t, uint8(1), pps.CuQpDeltaEnabledFlag)
	assert.Equal(t, uint8(1), pps.DiffCuQpDeltaDepth)
	assert.Equal(t, int8(-1), pps.PpsCbQpOffset)
	assert.Equal(t, int8(2), pps.PpsCrQpOffset)
	assert.Equal(t, uint8(1), pps.SignDataHidingEnabledFlag)
	assert.Equal(t, uint8(1), pps.CabacInitPresentFlag)
	assert.Equal(t, uint8(2), pps.NumRefIdxL0DefaultActiveMinus1)
	assert.Equal(t, uint8(0), pps.DeblockingFilterControlPresentFlag)
}

func TestSynthesizer_ConformanceWindow(t *testing.T) {
	// MinCbSizeY = 16，1080 对齐到 1088
	p := main1080p()
	p.Log2MinLumaCodingBlockSizeMinus3 = 1
	p.Log2DiffMaxMinLumaCodingBlockSize = 2

	sps := NewSPS(p, codec.Display{}, nil)
	assert.Equal(t, 1088, sps.CodedHeight())
	assert.Equal(t, uint8(1), sps.ConformanceWindowFlag)
	assert.Equal(t, uint16(0), sps.ConfWinRightOffset)
	assert.Equal(t, uint16(4), sps.ConfWinBottomOffset)

	var decoded RawSPS
	require.NoError(t, decoded.Decode(sps.Marshal()))
	assert.Equal(t, 1920, decoded.Width())
	assert.Equal(t, 1080, decoded.Height())
	assert.Equal(t, 1088, decoded.CodedHeight())

	// 显示尺寸小于记录尺寸
	sps = NewSPS(p, codec.Display{Width: 1916, Height: 1076}, nil)
	assert.Equal(t, uint16(2), sps.ConfWinRightOffset)
	assert.Equal(t, uint16(6), sps.ConfWinBottomOffset)
	assert.Equal(t, 1916, sps.Width())
	assert.Equal(t, 1076, sps.Height())
}

func TestSynthesizer_Main10HDR(t *testing.T) {
	p := withSize(3840, 2160)
	p.BitDepthLumaMinus8 = 2
	p.BitDepthChromaMinus8 = 2

	meta, err := NewSynthesizer(nil).SynthesizeHeaders(p, codec.Display{})
	require.NoError(t, err)
	assert.Equal(t, ProfileMain10, meta.Profile)
	assert.True(t, meta.HighTier)
	assert.Equal(t, 10, meta.BitDepth)

	var sps RawSPS
	require.NoError(t, sps.Decode(meta.Sps))
	assert.Equal(t, uint8(1), sps.ProfileTierLevel.GeneralTierFlag)
	assert.Equal(t, uint8(2), sps.BitDepthLumaMinus8)
	assert.Equal(t, uint8(ColourPrimariesBT2020), sps.Vui.ColourPrimaries)
	assert.Equal(t, uint8(TransferPQ), sps.Vui.TransferCharacteristics)
	assert.Equal(t, uint8(MatrixBT2020NCL), sps.Vui.MatrixCoefficients)
}

func TestSynthesizer_PCMAndTiles(t *testing.T) {
	p := main1080p()
	p.PicFields.PcmEnabledFlag = 1
	p.PcmSampleBitDepthLumaMinus1 = 7
	p.PcmSampleBitDepthChromaMinus1 = 7
	p.Log2MinPcmLumaCodingBlockSizeMinus3 = 0
	p.Log2DiffMaxMinPcmLumaCodingBlockSize = 2
	p.PicFields.TilesEnabledFlag = 1
	p.NumTileColumnsMinus1 = 3
	p.NumTileRowsMinus1 = 2
	p.PicFields.LoopFilterAcrossTilesEnabledFlag = 1
	p.SliceParsingFields.DeblockingFilterOverrideEnabledFlag = 1
	p.PpsBetaOffsetDiv2 = -2
	p.PpsTcOffsetDiv2 = 1

	meta, err := NewSynthesizer(nil).SynthesizeHeaders(p, codec.Display{})
	require.NoError(t, err)

	var sps RawSPS
	require.NoError(t, sps.Decode(meta.Sps))
	assert.Equal(t, uint8(1), sps.PcmEnabledFlag)
	assert.Equal(t, uint8(7), sps.PcmSampleBitDepthLumaMinus1)
	assert.Equal(t, uint8(2), sps.Log2DiffMaxMinPcmLumaCodingBlockSize)

	var pps RawPPS
	require.NoError(t, pps.Decode(meta.Pps))
	assert.Equal(t, uint8(1), pps.TilesEnabledFlag)
	assert.Equal(t, uint8(3), pps.NumTileColumnsMinus1)
	assert.Equal(t, uint8(2), pps.NumTileRowsMinus1)
	assert.Equal(t, uint8(1), pps.UniformSpacingFlag)
	assert.Equal(t, uint8(1), pps.DeblockingFilterControlPresentFlag)
	assert.Equal(t, uint8(1), pps.DeblockingFilterOverrideEnabledFlag)
	assert.Equal(t, int8(-2), pps.PpsBetaOffsetDiv2)
	assert.Equal(t, int8(1), pps.PpsTcOffsetDiv2)

	// 关闭去块滤波时不写偏移
	p.SliceParsingFields.DeblockingFilterOverrideEnabledFlag = 0
	p.SliceParsingFields.PpsDisableDeblockingFilterFlag = 1
	ppsDisabled := NewPPS(p)
	assert.Equal(t, uint8(1), ppsDisabled.DeblockingFilterControlPresentFlag)
	assert.Equal(t, int8(0), ppsDisabled.PpsBetaOffsetDiv2)
}

func TestSynthesizer_Idempotent(t *testing.T) {
	s := NewSynthesizer(nil)
	a, err := s.SynthesizeHeaders(main1080p(), codec.Display{Width: 1920, Height: 1080})
	require.NoError(t, err)
	b, err := s.SynthesizeHeaders(*main1080p(), codec.Display{Width: 1920, Height: 1080})
	require.NoError(t, err)
	assert.Equal(t, a.Vps, b.Vps)
	assert.Equal(t, a.Sps, b.Sps)
	assert.Equal(t, a.Pps, b.Pps)
}

func TestSynthesizer_ChromaFallback(t *testing.T) {
	p := main1080p()
	p.PicFields.ChromaFormatIdc = 5

	var sps *RawSPS
	assert.NotPanics(t, func() { sps = NewSPS(p, codec.Display{}, nil) })
	assert.Equal(t, uint8(1), sps.ChromaFormatIdc)

	var decoded RawSPS
	require.NoError(t, decoded.Decode(sps.Marshal()))
	assert.Equal(t, uint8(1), decoded.ChromaFormatIdc)
}

func TestSynthesizer_WrongParamsType(t *testing.T) {
	_, err := NewSynthesizer(nil).SynthesizeHeaders(struct{}{}, codec.Display{})
	assert.Equal(t, codec.ErrParamsType, err)
}

func TestSynthesizer_NoStartCodeEmulation(t *testing.T) {
	s := NewSynthesizer(nil)
	for _, size := range [][2]uint16{{176, 144}, {1280, 720}, {3840, 2160}, {4096, 2304}} {
		for depth := uint8(0); depth <= 2; depth += 2 {
			p := withSize(size[0], size[1])
			p.BitDepthLumaMinus8 = depth
			p.BitDepthChromaMinus8 = depth
			meta, err := s.SynthesizeHeaders(p, codec.Display{})
			require.NoError(t, err)
			for _, nal := range meta.ParameterSets() {
				for _, sc := range [][]byte{{0, 0, 0}, {0, 0, 1}, {0, 0, 2}} {
					assert.False(t, bytes.Contains(nal, sc), "nal %x contains %x", nal, sc)
				}
			}
		}
	}
}

func TestSynthesizer_Classify(t *testing.T) {
	s := NewSynthesizer(nil)
	assert.True(t, s.NeedsHeaders())
	assert.True(t, s.IsKeySlice([]byte{0x26, 0x01})) // IDR_W_RADL
	assert.True(t, s.IsKeySlice([]byte{0x28, 0x01})) // IDR_N_LP
	assert.True(t, s.IsKeySlice([]byte{0x2a, 0x01})) // CRA
	assert.False(t, s.IsKeySlice([]byte{0x02, 0x01}))
	assert.False(t, s.IsKeySlice(nil))
	assert.True(t, s.IsParameterSet([]byte{0x40, 0x01}))
	assert.True(t, s.IsParameterSet([]byte{0x42, 0x01}))
	assert.True(t, s.IsParameterSet([]byte{0x44, 0x01}))
	assert.False(t, s.IsParameterSet([]byte{0x4e, 0x01}))
}
