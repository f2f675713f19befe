// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hevc

import (
	"encoding/base64"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/cnotch/v4l2dec/utils"
	"github.com/cnotch/v4l2dec/utils/bits"
)

// RawScalingList scaling_list_data()
type RawScalingList struct {
	PredModeFlag      [4][6]uint8
	PredMatrixIDDelta [4][6]uint8
	DcCoefMinus8      [2][6]int16
	DeltaCoeff        [4][6][64]int8
}

func (sl *RawScalingList) decode(r *bits.Reader) {
	for sizeID := 0; sizeID < 4; sizeID++ {
		step := 1
		if sizeID == 3 {
			step = 3
		}
		for matrixID := 0; matrixID < 6; matrixID += step {
			sl.PredModeFlag[sizeID][matrixID] = r.ReadBit()
			if sl.PredModeFlag[sizeID][matrixID] == 0 {
				sl.PredMatrixIDDelta[sizeID][matrixID] = r.ReadUe8()
				continue
			}
			n := 1 << uint(4+(sizeID<<1))
			if n > 64 {
				n = 64
			}
			if sizeID > 1 {
				sl.DcCoefMinus8[sizeID-2][matrixID] = r.ReadSe16()
			}
			for i := 0; i < n; i++ {
				sl.DeltaCoeff[sizeID][matrixID][i] = r.ReadSe8()
			}
		}
	}
}

// RawVUI vui_parameters()
type RawVUI struct {
	AspectRatioInfoPresentFlag uint8
	AspectRatioIdc             uint8
	SarWidth                   uint16
	SarHeight                  uint16

	OverscanInfoPresentFlag uint8
	OverscanAppropriateFlag uint8

	VideoSignalTypePresentFlag   uint8
	VideoFormat                  uint8
	VideoFullRangeFlag           uint8
	ColourDescriptionPresentFlag uint8
	ColourPrimaries              uint8
	TransferCharacteristics      uint8
	MatrixCoefficients           uint8

	ChromaLocInfoPresentFlag       uint8
	ChromaSampleLocTypeTopField    uint8
	ChromaSampleLocTypeBottomField uint8

	NeutralChromaIndicationFlag uint8
	FieldSeqFlag                uint8
	FrameFieldInfoPresentFlag   uint8

	DefaultDisplayWindowFlag uint8
	DefDispWinLeftOffset     uint16
	DefDispWinRightOffset    uint16
	DefDispWinTopOffset      uint16
	DefDispWinBottomOffset   uint16

	TimingInfoPresentFlag       uint8
	NumUnitsInTick              uint32
	TimeScale                   uint32
	PocProportionalToTimingFlag uint8
	NumTicksPocDiffOneMinus1    uint32
	HrdParametersPresentFlag    uint8
	Hrd                         RawHRD

	BitstreamRestrictionFlag           uint8
	TilesFixedStructureFlag            uint8
	MotionVectorsOverPicBoundariesFlag uint8
	RestrictedRefPicListsFlag          uint8
	MinSpatialSegmentationIdc          uint16
	MaxBytesPerPicDenom                uint8
	MaxBitsPerMinCuDenom               uint8
	Log2MaxMvLengthHorizontal          uint8
	Log2MaxMvLengthVertical            uint8
}

// 未出现时的推断值
func (vui *RawVUI) setDefault() {
	vui.VideoFormat = VideoFormatUnspecified
	vui.ColourPrimaries = 2
	vui.TransferCharacteristics = 2
	vui.MatrixCoefficients = 2
	vui.MotionVectorsOverPicBoundariesFlag = 1
	vui.MaxBytesPerPicDenom = 2
	vui.MaxBitsPerMinCuDenom = 1
	vui.Log2MaxMvLengthHorizontal = 15
	vui.Log2MaxMvLengthVertical = 15
}

func (vui *RawVUI) decode(r *bits.Reader, maxSubLayersMinus1 int) {
	vui.setDefault()

	vui.AspectRatioInfoPresentFlag = r.ReadBit()
	if vui.AspectRatioInfoPresentFlag == 1 {
		vui.AspectRatioIdc = r.ReadUint8(8)
		if vui.AspectRatioIdc == 255 {
			vui.SarWidth = r.ReadUint16(16)
			vui.SarHeight = r.ReadUint16(16)
		}
	}

	vui.OverscanInfoPresentFlag = r.ReadBit()
	if vui.OverscanInfoPresentFlag == 1 {
		vui.OverscanAppropriateFlag = r.ReadBit()
	}

	vui.VideoSignalTypePresentFlag = r.ReadBit()
	if vui.VideoSignalTypePresentFlag == 1 {
		vui.VideoFormat = r.ReadUint8(3)
		vui.VideoFullRangeFlag = r.ReadBit()
		vui.ColourDescriptionPresentFlag = r.ReadBit()
		if vui.ColourDescriptionPresentFlag == 1 {
			vui.ColourPrimaries = r.ReadUint8(8)
			vui.TransferCharacteristics = r.ReadUint8(8)
			vui.MatrixCoefficients = r.ReadUint8(8)
		}
	}

	vui.ChromaLocInfoPresentFlag = r.ReadBit()
	if vui.ChromaLocInfoPresentFlag == 1 {
		vui.ChromaSampleLocTypeTopField = r.ReadUe8()
		vui.ChromaSampleLocTypeBottomField = r.ReadUe8()
	}

	vui.NeutralChromaIndicationFlag = r.ReadBit()
	vui.FieldSeqFlag = r.ReadBit()
	vui.FrameFieldInfoPresentFlag = r.ReadBit()

	vui.DefaultDisplayWindowFlag = r.ReadBit()
	if vui.DefaultDisplayWindowFlag == 1 {
		vui.DefDispWinLeftOffset = r.ReadUe16()
		vui.DefDispWinRightOffset = r.ReadUe16()
		vui.DefDispWinTopOffset = r.ReadUe16()
		vui.DefDispWinBottomOffset = r.ReadUe16()
	}

	vui.TimingInfoPresentFlag = r.ReadBit()
	if vui.TimingInfoPresentFlag == 1 {
		vui.NumUnitsInTick = r.ReadUint32(32)
		vui.TimeScale = r.ReadUint32(32)
		vui.PocProportionalToTimingFlag = r.ReadBit()
		if vui.PocProportionalToTimingFlag == 1 {
			vui.NumTicksPocDiffOneMinus1 = r.ReadUe()
		}
		vui.HrdParametersPresentFlag = r.ReadBit()
		if vui.HrdParametersPresentFlag == 1 {
			vui.Hrd.decode(r, true, maxSubLayersMinus1)
		}
	}

	vui.BitstreamRestrictionFlag = r.ReadBit()
	if vui.BitstreamRestrictionFlag == 1 {
		vui.TilesFixedStructureFlag = r.ReadBit()
		vui.MotionVectorsOverPicBoundariesFlag = r.ReadBit()
		vui.RestrictedRefPicListsFlag = r.ReadBit()
		vui.MinSpatialSegmentationIdc = r.ReadUe16()
		vui.MaxBytesPerPicDenom = r.ReadUe8()
		vui.MaxBitsPerMinCuDenom = r.ReadUe8()
		vui.Log2MaxMvLengthHorizontal = r.ReadUe8()
		vui.Log2MaxMvLengthVertical = r.ReadUe8()
	}
}

// encode 写出 VUI，不支持 HRD (hrd_parameters_present_flag 恒为 0)
func (vui *RawVUI) encode(w *bits.Writer) {
	w.PutFlag(vui.AspectRatioInfoPresentFlag)
	if vui.AspectRatioInfoPresentFlag == 1 {
		w.PutBits(uint32(vui.AspectRatioIdc), 8)
		if vui.AspectRatioIdc == 255 {
			w.PutBits(uint32(vui.SarWidth), 16)
			w.PutBits(uint32(vui.SarHeight), 16)
		}
	}

	w.PutFlag(vui.OverscanInfoPresentFlag)
	if vui.OverscanInfoPresentFlag == 1 {
		w.PutFlag(vui.OverscanAppropriateFlag)
	}

	w.PutFlag(vui.VideoSignalTypePresentFlag)
	if vui.VideoSignalTypePresentFlag == 1 {
		w.PutBits(uint32(vui.VideoFormat), 3)
		w.PutFlag(vui.VideoFullRangeFlag)
		w.PutFlag(vui.ColourDescriptionPresentFlag)
		if vui.ColourDescriptionPresentFlag == 1 {
			w.PutBits(uint32(vui.ColourPrimaries), 8)
			w.PutBits(uint32(vui.TransferCharacteristics), 8)
			w.PutBits(uint32(vui.MatrixCoefficients), 8)
		}
	}

	w.PutFlag(vui.ChromaLocInfoPresentFlag)
	if vui.ChromaLocInfoPresentFlag == 1 {
		w.PutUe(uint32(vui.ChromaSampleLocTypeTopField))
		w.PutUe(uint32(vui.ChromaSampleLocTypeBottomField))
	}

	w.PutFlag(vui.NeutralChromaIndicationFlag)
	w.PutFlag(vui.FieldSeqFlag)
	w.PutFlag(vui.FrameFieldInfoPresentFlag)

	w.PutFlag(vui.DefaultDisplayWindowFlag)
	if vui.DefaultDisplayWindowFlag == 1 {
		w.PutUe(uint32(vui.DefDispWinLeftOffset))
		w.PutUe(uint32(vui.DefDispWinRightOffset))
		w.PutUe(uint32(vui.DefDispWinTopOffset))
		w.PutUe(uint32(vui.DefDispWinBottomOffset))
	}

	w.PutFlag(vui.TimingInfoPresentFlag)
	if vui.TimingInfoPresentFlag == 1 {
		w.PutBits(vui.NumUnitsInTick, 32)
		w.PutBits(vui.TimeScale, 32)
		w.PutFlag(vui.PocProportionalToTimingFlag)
		if vui.PocProportionalToTimingFlag == 1 {
			w.PutUe(vui.NumTicksPocDiffOneMinus1)
		}
		w.PutFlag(0) // vui_hrd_parameters_present_flag
	}

	w.PutFlag(vui.BitstreamRestrictionFlag)
	if vui.BitstreamRestrictionFlag == 1 {
		w.PutFlag(vui.TilesFixedStructureFlag)
		w.PutFlag(vui.MotionVectorsOverPicBoundariesFlag)
		w.PutFlag(vui.RestrictedRefPicListsFlag)
		w.PutUe(uint32(vui.MinSpatialSegmentationIdc))
		w.PutUe(uint32(vui.MaxBytesPerPicDenom))
		w.PutUe(uint32(vui.MaxBitsPerMinCuDenom))
		w.PutUe(uint32(vui.Log2MaxMvLengthHorizontal))
		w.PutUe(uint32(vui.Log2MaxMvLengthVertical))
	}
}

// RawSTRefPicSet st_ref_pic_set()，以展开后的 POC 差值保存，
// 供后续集合的帧间预测引用 (7.4.8).
type RawSTRefPicSet struct {
	InterRefPicSetPredictionFlag uint8

	NumNegativePics int
	NumPositivePics int
	DeltaPocS0      [MaxDpbSize]int32
	UsedByCurrS0    [MaxDpbSize]uint8
	DeltaPocS1      [MaxDpbSize]int32
	UsedByCurrS1    [MaxDpbSize]uint8
}

// NumDeltaPocs NumDeltaPocs[stRpsIdx]
func (ps *RawSTRefPicSet) NumDeltaPocs() int {
	return ps.NumNegativePics + ps.NumPositivePics
}

func (ps *RawSTRefPicSet) decode(r *bits.Reader, idx int, sets []RawSTRefPicSet) {
	if idx != 0 {
		ps.InterRefPicSetPredictionFlag = r.ReadBit()
	}

	if ps.InterRefPicSetPredictionFlag == 0 {
		ps.NumNegativePics = int(r.ReadUe())
		ps.NumPositivePics = int(r.ReadUe())
		if ps.NumNegativePics > MaxDpbSize || ps.NumPositivePics > MaxDpbSize-ps.NumNegativePics {
			panic(fmt.Sprintf("short-term ref pic set %d contains too many pictures", idx))
		}
		var poc int32
		for i := 0; i < ps.NumNegativePics; i++ {
			poc -= int32(r.ReadUe()) + 1
			ps.DeltaPocS0[i] = poc
			ps.UsedByCurrS0[i] = r.ReadBit()
		}
		poc = 0
		for i := 0; i < ps.NumPositivePics; i++ {
			poc += int32(r.ReadUe()) + 1
			ps.DeltaPocS1[i] = poc
			ps.UsedByCurrS1[i] = r.ReadBit()
		}
		return
	}

	// SPS 中 delta_idx_minus1 不出现，参考前一个集合
	ref := &sets[idx-1]
	sign := r.ReadBit()
	deltaRps := int32(r.ReadUe()) + 1
	if sign == 1 {
		deltaRps = -deltaRps
	}

	n := ref.NumDeltaPocs()
	var used, useDelta [MaxDpbSize + 1]uint8
	for j := 0; j <= n; j++ {
		used[j] = r.ReadBit()
		useDelta[j] = 1
		if used[j] == 0 {
			useDelta[j] = r.ReadBit()
		}
	}

	i := 0
	add0 := func(dPoc int32, u uint8) {
		if i >= MaxDpbSize {
			panic(fmt.Sprintf("short-term ref pic set %d contains too many pictures", idx))
		}
		ps.DeltaPocS0[i], ps.UsedByCurrS0[i] = dPoc, u
		i++
	}
	for j := ref.NumPositivePics - 1; j >= 0; j-- {
		dPoc := ref.DeltaPocS1[j] + deltaRps
		if dPoc < 0 && useDelta[ref.NumNegativePics+j] == 1 {
			add0(dPoc, used[ref.NumNegativePics+j])
		}
	}
	if deltaRps < 0 && useDelta[n] == 1 {
		add0(deltaRps, used[n])
	}
	for j := 0; j < ref.NumNegativePics; j++ {
		dPoc := ref.DeltaPocS0[j] + deltaRps
		if dPoc < 0 && useDelta[j] == 1 {
			add0(dPoc, used[j])
		}
	}
	ps.NumNegativePics = i

	i = 0
	add1 := func(dPoc int32, u uint8) {
		if ps.NumNegativePics+i >= MaxDpbSize {
			panic(fmt.Sprintf("short-term ref pic set %d contains too many pictures", idx))
		}
		ps.DeltaPocS1[i], ps.UsedByCurrS1[i] = dPoc, u
		i++
	}
	for j := ref.NumNegativePics - 1; j >= 0; j-- {
		dPoc := ref.DeltaPocS0[j] + deltaRps
		if dPoc > 0 && useDelta[j] == 1 {
			add1(dPoc, used[j])
		}
	}
	if deltaRps > 0 && useDelta[n] == 1 {
		add1(deltaRps, used[n])
	}
	for j := 0; j < ref.NumPositivePics; j++ {
		dPoc := ref.DeltaPocS1[j] + deltaRps
		if dPoc > 0 && useDelta[ref.NumNegativePics+j] == 1 {
			add1(dPoc, used[ref.NumNegativePics+j])
		}
	}
	ps.NumPositivePics = i
}

// RawSPS 序列参数集
type RawSPS struct {
	NalUnitHeader RawNALUnitHeader

	VideoParameterSetID   uint8
	MaxSubLayersMinus1    uint8
	TemporalIDNestingFlag uint8

	ProfileTierLevel RawProfileTierLevel

	SeqParameterSetID uint8

	ChromaFormatIdc         uint8
	SeparateColourPlaneFlag uint8

	PicWidthInLumaSamples  uint16
	PicHeightInLumaSamples uint16

	// 偏移以 SubWidthC/SubHeightC 为单位
	ConformanceWindowFlag uint8
	ConfWinLeftOffset     uint16
	ConfWinRightOffset    uint16
	ConfWinTopOffset      uint16
	ConfWinBottomOffset   uint16

	BitDepthLumaMinus8   uint8
	BitDepthChromaMinus8 uint8

	Log2MaxPicOrderCntLsbMinus4 uint8

	SubLayerOrderingInfoPresentFlag uint8
	MaxDecPicBufferingMinus1        [MaxSubLayers]uint8
	MaxNumReorderPics               [MaxSubLayers]uint8
	MaxLatencyIncreasePlus1         [MaxSubLayers]uint32

	Log2MinLumaCodingBlockSizeMinus3     uint8
	Log2DiffMaxMinLumaCodingBlockSize    uint8
	Log2MinLumaTransformBlockSizeMinus2  uint8
	Log2DiffMaxMinLumaTransformBlockSize uint8
	MaxTransformHierarchyDepthInter      uint8
	MaxTransformHierarchyDepthIntra      uint8

	ScalingListEnabledFlag        uint8
	SpsScalingListDataPresentFlag uint8
	ScalingList                   *RawScalingList

	AmpEnabledFlag                  uint8
	SampleAdaptiveOffsetEnabledFlag uint8

	PcmEnabledFlag                       uint8
	PcmSampleBitDepthLumaMinus1          uint8
	PcmSampleBitDepthChromaMinus1        uint8
	Log2MinPcmLumaCodingBlockSizeMinus3  uint8
	Log2DiffMaxMinPcmLumaCodingBlockSize uint8
	PcmLoopFilterDisabledFlag            uint8

	NumShortTermRefPicSets uint8
	StRefPicSet            []RawSTRefPicSet

	LongTermRefPicsPresentFlag uint8
	NumLongTermRefPicsSps      uint8
	LtRefPicPocLsbSps          [MaxLongTermRefPics]uint16
	UsedByCurrPicLtSpsFlag     [MaxLongTermRefPics]uint8

	SpsTemporalMvpEnabledFlag       uint8
	StrongIntraSmoothingEnabledFlag uint8

	VuiParametersPresentFlag uint8
	Vui                      RawVUI

	SpsExtensionPresentFlag uint8
	SpsExtension4Flags      uint8 // range/multilayer/3d/scc
	SpsExtension4Bits       uint8
}

// SubWidthC 色度水平采样因子
func (sps *RawSPS) SubWidthC() int {
	return subWidthC(sps.ChromaFormatIdc, sps.SeparateColourPlaneFlag)
}

// SubHeightC 色度垂直采样因子
func (sps *RawSPS) SubHeightC() int {
	return subHeightC(sps.ChromaFormatIdc, sps.SeparateColourPlaneFlag)
}

// MinCbSize MinCbSizeY
func (sps *RawSPS) MinCbSize() int {
	return 1 << (uint(sps.Log2MinLumaCodingBlockSizeMinus3) + 3)
}

// CodedWidth 编码宽度（像素）
func (sps *RawSPS) CodedWidth() int {
	return int(sps.PicWidthInLumaSamples)
}

// CodedHeight 编码高度（像素）
func (sps *RawSPS) CodedHeight() int {
	return int(sps.PicHeightInLumaSamples)
}

// Width 视频宽度（像素），扣除一致性窗口
func (sps *RawSPS) Width() int {
	return sps.CodedWidth() -
		(int(sps.ConfWinLeftOffset)+int(sps.ConfWinRightOffset))*sps.SubWidthC()
}

// Height 视频高度（像素），扣除一致性窗口
func (sps *RawSPS) Height() int {
	return sps.CodedHeight() -
		(int(sps.ConfWinTopOffset)+int(sps.ConfWinBottomOffset))*sps.SubHeightC()
}

// FrameRate Video frame rate
func (sps *RawSPS) FrameRate() float64 {
	if sps.Vui.NumUnitsInTick == 0 {
		return 0.0
	}
	return float64(sps.Vui.TimeScale) / float64(sps.Vui.NumUnitsInTick)
}

// DecodeString 从 base64 字串解码 sps NAL
func (sps *RawSPS) DecodeString(b64 string) error {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return err
	}
	return sps.Decode(data)
}

// Decode 从字节序列中解码 sps NAL，允许带起始码
func (sps *RawSPS) Decode(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("RawSPS decode panic；r = %v \n %s", r, debug.Stack())
		}
	}()

	spsWEB := utils.RemoveH264or5EmulationBytes(utils.RemoveNaluSeparator(data))
	if len(spsWEB) < 4 {
		return errors.New("The data is not enough")
	}

	r := bits.NewReader(spsWEB)
	if err = sps.NalUnitHeader.decode(r); err != nil {
		return
	}
	if sps.NalUnitHeader.NalUnitType != NalSps {
		return errors.New("not is sps NAL UNIT")
	}

	sps.VideoParameterSetID = r.ReadUint8(4)
	sps.MaxSubLayersMinus1 = r.ReadUint8(3)
	sps.TemporalIDNestingFlag = r.ReadBit()
	if sps.MaxSubLayersMinus1 >= MaxSubLayers {
		return errors.New("sps_max_sub_layers_minus1 out of range")
	}
	sps.ProfileTierLevel.decode(r, int(sps.MaxSubLayersMinus1))

	sps.SeqParameterSetID = r.ReadUe8()
	sps.ChromaFormatIdc = r.ReadUe8()
	if sps.ChromaFormatIdc > 3 {
		return fmt.Errorf("chroma_format_idc %d out of range", sps.ChromaFormatIdc)
	}
	if sps.ChromaFormatIdc == 3 {
		sps.SeparateColourPlaneFlag = r.ReadBit()
	}

	sps.PicWidthInLumaSamples = r.ReadUe16()
	sps.PicHeightInLumaSamples = r.ReadUe16()

	sps.ConformanceWindowFlag = r.ReadBit()
	if sps.ConformanceWindowFlag == 1 {
		sps.ConfWinLeftOffset = r.ReadUe16()
		sps.ConfWinRightOffset = r.ReadUe16()
		sps.ConfWinTopOffset = r.ReadUe16()
		sps.ConfWinBottomOffset = r.ReadUe16()
	}

	sps.BitDepthLumaMinus8 = r.ReadUe8()
	sps.BitDepthChromaMinus8 = r.ReadUe8()
	sps.Log2MaxPicOrderCntLsbMinus4 = r.ReadUe8()

	sps.SubLayerOrderingInfoPresentFlag = r.ReadBit()
	decodeOrderingInfo(r, sps.SubLayerOrderingInfoPresentFlag, sps.MaxSubLayersMinus1,
		&sps.MaxDecPicBufferingMinus1, &sps.MaxNumReorderPics, &sps.MaxLatencyIncreasePlus1)

	sps.Log2MinLumaCodingBlockSizeMinus3 = r.ReadUe8()
	sps.Log2DiffMaxMinLumaCodingBlockSize = r.ReadUe8()
	minCb := uint16(sps.MinCbSize())
	if sps.PicWidthInLumaSamples%minCb != 0 || sps.PicHeightInLumaSamples%minCb != 0 {
		return fmt.Errorf("Invalid dimensions: %dx%d not divisible by MinCbSizeY = %d",
			sps.PicWidthInLumaSamples, sps.PicHeightInLumaSamples, minCb)
	}

	sps.Log2MinLumaTransformBlockSizeMinus2 = r.ReadUe8()
	sps.Log2DiffMaxMinLumaTransformBlockSize = r.ReadUe8()
	sps.MaxTransformHierarchyDepthInter = r.ReadUe8()
	sps.MaxTransformHierarchyDepthIntra = r.ReadUe8()

	sps.ScalingListEnabledFlag = r.ReadBit()
	if sps.ScalingListEnabledFlag == 1 {
		sps.SpsScalingListDataPresentFlag = r.ReadBit()
		if sps.SpsScalingListDataPresentFlag == 1 {
			sps.ScalingList = new(RawScalingList)
			sps.ScalingList.decode(r)
		}
	}

	sps.AmpEnabledFlag = r.ReadBit()
	sps.SampleAdaptiveOffsetEnabledFlag = r.ReadBit()

	sps.PcmEnabledFlag = r.ReadBit()
	if sps.PcmEnabledFlag == 1 {
		sps.PcmSampleBitDepthLumaMinus1 = r.ReadUint8(4)
		sps.PcmSampleBitDepthChromaMinus1 = r.ReadUint8(4)
		sps.Log2MinPcmLumaCodingBlockSizeMinus3 = r.ReadUe8()
		sps.Log2DiffMaxMinPcmLumaCodingBlockSize = r.ReadUe8()
		sps.PcmLoopFilterDisabledFlag = r.ReadBit()
	}

	num := r.ReadUe()
	if num > MaxShortTermRefPicSets {
		return fmt.Errorf("num_short_term_ref_pic_sets %d out of range", num)
	}
	sps.NumShortTermRefPicSets = uint8(num)
	sps.StRefPicSet = make([]RawSTRefPicSet, num)
	for i := range sps.StRefPicSet {
		sps.StRefPicSet[i].decode(r, i, sps.StRefPicSet)
	}

	sps.LongTermRefPicsPresentFlag = r.ReadBit()
	if sps.LongTermRefPicsPresentFlag == 1 {
		sps.NumLongTermRefPicsSps = r.ReadUe8()
		if sps.NumLongTermRefPicsSps > MaxLongTermRefPics {
			return fmt.Errorf("num_long_term_ref_pics_sps %d out of range", sps.NumLongTermRefPicsSps)
		}
		for i := uint8(0); i < sps.NumLongTermRefPicsSps; i++ {
			sps.LtRefPicPocLsbSps[i] = r.ReadUint16(int(sps.Log2MaxPicOrderCntLsbMinus4) + 4)
			sps.UsedByCurrPicLtSpsFlag[i] = r.ReadBit()
		}
	}

	sps.SpsTemporalMvpEnabledFlag = r.ReadBit()
	sps.StrongIntraSmoothingEnabledFlag = r.ReadBit()

	sps.VuiParametersPresentFlag = r.ReadBit()
	if sps.VuiParametersPresentFlag == 1 {
		sps.Vui.decode(r, int(sps.MaxSubLayersMinus1))
	} else {
		sps.Vui.setDefault()
	}

	sps.SpsExtensionPresentFlag = r.ReadBit()
	if sps.SpsExtensionPresentFlag == 1 {
		sps.SpsExtension4Flags = r.ReadUint8(4)
		sps.SpsExtension4Bits = r.ReadUint8(4)
		// 扩展内容不解析
		return
	}

	if !r.TrailingBits() {
		return errors.New("sps rbsp_trailing_bits malformed")
	}
	return
}

// Encode 写出单子层 SPS RBSP (含 NAL 头和 rbsp_trailing_bits).
// 不输出缩放列表数据、短期参考集和扩展.
func (sps *RawSPS) Encode(w *bits.Writer) {
	sps.NalUnitHeader.encode(w)

	w.PutBits(uint32(sps.VideoParameterSetID), 4)
	w.PutBits(0, 3) // sps_max_sub_layers_minus1
	w.PutFlag(sps.TemporalIDNestingFlag)
	sps.ProfileTierLevel.encode(w)

	w.PutUe(uint32(sps.SeqParameterSetID))
	w.PutUe(uint32(sps.ChromaFormatIdc))
	if sps.ChromaFormatIdc == 3 {
		w.PutFlag(sps.SeparateColourPlaneFlag)
	}
	w.PutUe(uint32(sps.PicWidthInLumaSamples))
	w.PutUe(uint32(sps.PicHeightInLumaSamples))

	w.PutFlag(sps.ConformanceWindowFlag)
	if sps.ConformanceWindowFlag == 1 {
		w.PutUe(uint32(sps.ConfWinLeftOffset))
		w.PutUe(uint32(sps.ConfWinRightOffset))
		w.PutUe(uint32(sps.ConfWinTopOffset))
		w.PutUe(uint32(sps.ConfWinBottomOffset))
	}

	w.PutUe(uint32(sps.BitDepthLumaMinus8))
	w.PutUe(uint32(sps.BitDepthChromaMinus8))
	w.PutUe(uint32(sps.Log2MaxPicOrderCntLsbMinus4))

	w.PutFlag(1) // sps_sub_layer_ordering_info_present_flag
	w.PutUe(uint32(sps.MaxDecPicBufferingMinus1[0]))
	w.PutUe(uint32(sps.MaxNumReorderPics[0]))
	w.PutUe(sps.MaxLatencyIncreasePlus1[0])

	w.PutUe(uint32(sps.Log2MinLumaCodingBlockSizeMinus3))
	w.PutUe(uint32(sps.Log2DiffMaxMinLumaCodingBlockSize))
	w.PutUe(uint32(sps.Log2MinLumaTransformBlockSizeMinus2))
	w.PutUe(uint32(sps.Log2DiffMaxMinLumaTransformBlockSize))
	w.PutUe(uint32(sps.MaxTransformHierarchyDepthInter))
	w.PutUe(uint32(sps.MaxTransformHierarchyDepthIntra))

	w.PutFlag(sps.ScalingListEnabledFlag)
	if sps.ScalingListEnabledFlag == 1 {
		w.PutFlag(0) // sps_scaling_list_data_present_flag
	}

	w.PutFlag(sps.AmpEnabledFlag)
	w.PutFlag(sps.SampleAdaptiveOffsetEnabledFlag)

	w.PutFlag(sps.PcmEnabledFlag)
	if sps.PcmEnabledFlag == 1 {
		w.PutBits(uint32(sps.PcmSampleBitDepthLumaMinus1), 4)
		w.PutBits(uint32(sps.PcmSampleBitDepthChromaMinus1), 4)
		w.PutUe(uint32(sps.Log2MinPcmLumaCodingBlockSizeMinus3))
		w.PutUe(uint32(sps.Log2DiffMaxMinPcmLumaCodingBlockSize))
		w.PutFlag(sps.PcmLoopFilterDisabledFlag)
	}

	w.PutUe(0) // num_short_term_ref_pic_sets
	w.PutFlag(sps.LongTermRefPicsPresentFlag)
	if sps.LongTermRefPicsPresentFlag == 1 {
		w.PutUe(0) // num_long_term_ref_pics_sps
	}

	w.PutFlag(sps.SpsTemporalMvpEnabledFlag)
	w.PutFlag(sps.StrongIntraSmoothingEnabledFlag)

	w.PutFlag(sps.VuiParametersPresentFlag)
	if sps.VuiParametersPresentFlag == 1 {
		sps.Vui.encode(w)
	}

	w.PutFlag(0) // sps_extension_present_flag
	w.Finish()
}

// Marshal 返回 SPS NAL 字节 (已插入防竞争字节，不含起始码)
func (sps *RawSPS) Marshal() []byte {
	return marshal(sps.Encode)
}

func subWidthC(chromaFormatIdc, separateColourPlane uint8) int {
	if separateColourPlane == 0 && (chromaFormatIdc == 1 || chromaFormatIdc == 2) {
		return 2
	}
	return 1
}

func subHeightC(chromaFormatIdc, separateColourPlane uint8) int {
	if separateColourPlane == 0 && chromaFormatIdc == 1 {
		return 2
	}
	return 1
}
