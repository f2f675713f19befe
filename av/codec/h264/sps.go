// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
//
// Syntax follows FFmpeg cbs_h264_syntax_template.c
//
package h264

import (
	"encoding/base64"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/cnotch/v4l2dec/utils"
	"github.com/cnotch/v4l2dec/utils/bits"
)

// RawNALUnitHeader 原始 h264 Nal单元头
type RawNALUnitHeader struct {
	ForbiddenZeroBit uint8
	NalRefIdc        uint8
	NalUnitType      uint8
}

// Set .
func (h *RawNALUnitHeader) Set(nal uint8) (err error) {
	h.ForbiddenZeroBit = (nal >> 7) & 1
	h.NalRefIdc = (nal >> 5) & 3
	h.NalUnitType = nal & NalTypeBitmask
	return h.check()
}

// Byte 返回 NAL 头字节
func (h *RawNALUnitHeader) Byte() uint8 {
	return h.ForbiddenZeroBit<<7 | (h.NalRefIdc&3)<<5 | h.NalUnitType&NalTypeBitmask
}

func (h *RawNALUnitHeader) decode(r *bits.Reader) (err error) {
	h.ForbiddenZeroBit = r.ReadBit()
	h.NalRefIdc = r.ReadUint8(2)
	h.NalUnitType = r.ReadUint8(5)
	return h.check()
}

func (h *RawNALUnitHeader) check() error {
	if h.NalUnitType == NalPrefix ||
		h.NalUnitType == NalExtenSlice ||
		h.NalUnitType == NalDepthExtenSlice {
		return fmt.Errorf("SVC,3DAVC,MVC not supported. nal_unit_type = %d", h.NalUnitType)
	}
	return nil
}

// RawHRD .
type RawHRD struct {
	CpbCntMinus1 uint8
	BitRateScale uint8
	CpbSizeScale uint8

	BitRateValueMinus1 [MaxCpbCnt]uint32
	CpbSizeValueMinus1 [MaxCpbCnt]uint32
	CbrFlag            [MaxCpbCnt]uint8

	InitialCpbRemovalDelayLengthMinus1 uint8
	CpbRemovalDelayLengthMinus1        uint8
	DpbOutputDelayLengthMinus1         uint8
	TimeOffsetLength                   uint8
}

// RawVUI 只保留解析所需的字段，生成时不输出 VUI
type RawVUI struct {
	AspectRatioInfoPresentFlag uint8
	AspectRatioIdc             uint8
	SarWidth                   uint16
	SarHeight                  uint16

	VideoSignalTypePresentFlag   uint8
	VideoFormat                  uint8
	VideoFullRangeFlag           uint8
	ColourDescriptionPresentFlag uint8
	ColourPrimaries              uint8
	TransferCharacteristics      uint8
	MatrixCoefficients           uint8

	// 和帧率相关
	TimingInfoPresentFlag uint8
	NumUnitsInTick        uint32
	TimeScale             uint32
	FixedFrameRateFlag    uint8

	NalHrdParametersPresentFlag uint8
	NalHrdParameters            RawHRD
	VclHrdParametersPresentFlag uint8
	VclHrdParameters            RawHRD

	BitstreamRestrictionFlag uint8
	MaxNumReorderFrames      uint8
	MaxDecFrameBuffering     uint8
}

// RawSPS .
type RawSPS struct {
	NalUnitHeader RawNALUnitHeader

	// 指明所用 profile、level、及对附录A.2的遵循情况
	ProfileIdc         uint8
	ConstraintSet0Flag uint8
	ConstraintSet1Flag uint8
	ConstraintSet2Flag uint8
	ConstraintSet3Flag uint8
	ConstraintSet4Flag uint8
	ConstraintSet5Flag uint8
	ReservedZero2Bits  uint8
	LevelIdc           uint8

	SeqParameterSetID uint8

	ChromaFormatIdc                 uint8
	SeparateColourPlaneFlag         uint8
	BitDepthLumaMinus8              uint8
	BitDepthChromaMinus8            uint8
	QpprimeYZeroTransformBypassFlag uint8

	SeqScalingMatrixPresentFlag uint8
	SeqScalingListPresentFlag   [12]uint8
	ScalingList4x4              [6][64]int8
	ScalingList8x8              [6][64]int8

	// MaxFrameNum = 2^(Log2MaxFrameNumMinus4 + 4)
	Log2MaxFrameNumMinus4          uint8
	PicOrderCntType                uint8
	Log2MaxPicOrderCntLsbMinus4    uint8
	DeltaPicOrderAlwaysZeroFlag    uint8
	OffsetForNonRefPic             int32
	OffsetForTopToBottomField      int32
	NumRefFramesInPicOrderCntCycle uint8
	OffsetForRefFrame              [256]int32

	MaxNumRefFrames           uint8
	GapsInFrameNumAllowedFlag uint8

	// PicWidthInSamples = (PicWidthInMbsMinus1 + 1) * 16
	PicWidthInMbsMinus1       uint16
	PicHeightInMapUnitsMinus1 uint16

	FrameMbsOnlyFlag         uint8
	MbAdaptiveFrameFieldFlag uint8
	Direct8x8InferenceFlag   uint8

	// 偏移以 CropUnitX/CropUnitY 为单位
	FrameCroppingFlag     uint8
	FrameCropLeftOffset   uint16
	FrameCropRightOffset  uint16
	FrameCropTopOffset    uint16
	FrameCropBottomOffset uint16

	VuiParametersPresentFlag uint8
	Vui                      RawVUI
}

// hasChromaInfo profile_idc 是否携带 chroma_format_idc 等扩展字段
func hasChromaInfo(profileIdc uint8) bool {
	switch profileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		return true
	}
	return false
}

// CropUnitX 水平裁剪单位
func (sps *RawSPS) CropUnitX() int {
	return cropUnitX(sps.ChromaFormatIdc, sps.SeparateColourPlaneFlag)
}

// CropUnitY 垂直裁剪单位
func (sps *RawSPS) CropUnitY() int {
	return cropUnitY(sps.ChromaFormatIdc, sps.SeparateColourPlaneFlag, sps.FrameMbsOnlyFlag)
}

// CodedWidth 编码宽度（像素）
func (sps *RawSPS) CodedWidth() int {
	return (int(sps.PicWidthInMbsMinus1) + 1) * 16
}

// CodedHeight 编码帧高度（像素）
func (sps *RawSPS) CodedHeight() int {
	return (2 - int(sps.FrameMbsOnlyFlag)) * (int(sps.PicHeightInMapUnitsMinus1) + 1) * 16
}

// Width 视频宽度（像素）
func (sps *RawSPS) Width() int {
	return sps.CodedWidth() -
		(int(sps.FrameCropLeftOffset)+int(sps.FrameCropRightOffset))*sps.CropUnitX()
}

// Height 视频高度（像素）
func (sps *RawSPS) Height() int {
	return sps.CodedHeight() -
		(int(sps.FrameCropTopOffset)+int(sps.FrameCropBottomOffset))*sps.CropUnitY()
}

// FrameRate Video frame rate
func (sps *RawSPS) FrameRate() float64 {
	if sps.Vui.NumUnitsInTick == 0 {
		return 0.0
	}
	return float64(sps.Vui.TimeScale) / float64(sps.Vui.NumUnitsInTick*2)
}

// DecodeString 从 base64 字串解码 sps NAL
func (sps *RawSPS) DecodeString(b64 string) error {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return err
	}
	return sps.Decode(data)
}

// Decode 从字节序列中解码 sps NAL
func (sps *RawSPS) Decode(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("RawSPS decode panic；r = %v \n %s", r, debug.Stack())
		}
	}()

	spsWEB := utils.RemoveH264or5EmulationBytes(data)
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

	sps.ProfileIdc = r.ReadUint8(8)
	sps.ConstraintSet0Flag = r.ReadBit()
	sps.ConstraintSet1Flag = r.ReadBit()
	sps.ConstraintSet2Flag = r.ReadBit()
	sps.ConstraintSet3Flag = r.ReadBit()
	sps.ConstraintSet4Flag = r.ReadBit()
	sps.ConstraintSet5Flag = r.ReadBit()
	sps.ReservedZero2Bits = r.ReadUint8(2)
	sps.LevelIdc = r.ReadUint8(8)

	sps.SeqParameterSetID = r.ReadUe8()

	if hasChromaInfo(sps.ProfileIdc) {
		sps.ChromaFormatIdc = r.ReadUe8()
		if sps.ChromaFormatIdc == 3 {
			sps.SeparateColourPlaneFlag = r.ReadBit()
		}
		sps.BitDepthLumaMinus8 = r.ReadUe8()
		sps.BitDepthChromaMinus8 = r.ReadUe8()
		sps.QpprimeYZeroTransformBypassFlag = r.ReadBit()

		sps.SeqScalingMatrixPresentFlag = r.ReadBit()
		if sps.SeqScalingMatrixPresentFlag != 0 {
			maxI := 8
			if sps.ChromaFormatIdc == 3 {
				maxI = 12
			}
			for i := 0; i < maxI; i++ {
				sps.SeqScalingListPresentFlag[i] = r.ReadBit()
				if sps.SeqScalingListPresentFlag[i] != 0 {
					sps.scanList(r, i)
				}
			}
		}
	} else {
		if sps.ProfileIdc == 183 {
			sps.ChromaFormatIdc = 0
		} else {
			sps.ChromaFormatIdc = 1
		}
		sps.SeparateColourPlaneFlag = 0
		sps.BitDepthLumaMinus8 = 0
		sps.BitDepthChromaMinus8 = 0
	}

	sps.Log2MaxFrameNumMinus4 = r.ReadUe8()

	sps.PicOrderCntType = r.ReadUe8()
	if sps.PicOrderCntType == 0 {
		sps.Log2MaxPicOrderCntLsbMinus4 = r.ReadUe8()
	} else if sps.PicOrderCntType == 1 {
		sps.DeltaPicOrderAlwaysZeroFlag = r.ReadBit()
		sps.OffsetForNonRefPic = r.ReadSe()
		sps.OffsetForTopToBottomField = r.ReadSe()
		sps.NumRefFramesInPicOrderCntCycle = r.ReadUe8()
		for i := uint8(0); i < sps.NumRefFramesInPicOrderCntCycle; i++ {
			sps.OffsetForRefFrame[i] = r.ReadSe()
		}
	}

	sps.MaxNumRefFrames = r.ReadUe8()
	sps.GapsInFrameNumAllowedFlag = r.ReadBit()

	sps.PicWidthInMbsMinus1 = r.ReadUe16()
	sps.PicHeightInMapUnitsMinus1 = r.ReadUe16()

	sps.FrameMbsOnlyFlag = r.ReadBit()
	if sps.FrameMbsOnlyFlag == 0 {
		sps.MbAdaptiveFrameFieldFlag = r.ReadBit()
	}
	sps.Direct8x8InferenceFlag = r.ReadBit()

	sps.FrameCroppingFlag = r.ReadBit()
	if sps.FrameCroppingFlag == 1 {
		sps.FrameCropLeftOffset = r.ReadUe16()
		sps.FrameCropRightOffset = r.ReadUe16()
		sps.FrameCropTopOffset = r.ReadUe16()
		sps.FrameCropBottomOffset = r.ReadUe16()
	}

	sps.VuiParametersPresentFlag = r.ReadBit()
	if sps.VuiParametersPresentFlag == 1 {
		err = sps.Vui.decode(r)
	}
	return
}

// Encode 写出 SPS RBSP (含 NAL 头和 rbsp_trailing_bits)，不做防竞争处理.
// 只输出本包生成所需的语法子集：不含缩放矩阵和 VUI.
func (sps *RawSPS) Encode(w *bits.Writer) {
	w.PutBits(uint32(sps.NalUnitHeader.Byte()), 8)

	w.PutBits(uint32(sps.ProfileIdc), 8)
	w.PutFlag(sps.ConstraintSet0Flag)
	w.PutFlag(sps.ConstraintSet1Flag)
	w.PutFlag(sps.ConstraintSet2Flag)
	w.PutFlag(sps.ConstraintSet3Flag)
	w.PutFlag(sps.ConstraintSet4Flag)
	w.PutFlag(sps.ConstraintSet5Flag)
	w.PutBits(0, 2) // reserved_zero_2bits
	w.PutBits(uint32(sps.LevelIdc), 8)

	w.PutUe(uint32(sps.SeqParameterSetID))

	if hasChromaInfo(sps.ProfileIdc) {
		w.PutUe(uint32(sps.ChromaFormatIdc))
		if sps.ChromaFormatIdc == 3 {
			w.PutFlag(sps.SeparateColourPlaneFlag)
		}
		w.PutUe(uint32(sps.BitDepthLumaMinus8))
		w.PutUe(uint32(sps.BitDepthChromaMinus8))
		w.PutFlag(sps.QpprimeYZeroTransformBypassFlag)
		w.PutFlag(0) // seq_scaling_matrix_present_flag
	}

	w.PutUe(uint32(sps.Log2MaxFrameNumMinus4))
	w.PutUe(uint32(sps.PicOrderCntType))
	switch sps.PicOrderCntType {
	case 0:
		w.PutUe(uint32(sps.Log2MaxPicOrderCntLsbMinus4))
	case 1:
		w.PutFlag(sps.DeltaPicOrderAlwaysZeroFlag)
		w.PutSe(sps.OffsetForNonRefPic)
		w.PutSe(sps.OffsetForTopToBottomField)
		w.PutUe(uint32(sps.NumRefFramesInPicOrderCntCycle))
		for i := uint8(0); i < sps.NumRefFramesInPicOrderCntCycle; i++ {
			w.PutSe(sps.OffsetForRefFrame[i])
		}
	}

	w.PutUe(uint32(sps.MaxNumRefFrames))
	w.PutFlag(sps.GapsInFrameNumAllowedFlag)
	w.PutUe(uint32(sps.PicWidthInMbsMinus1))
	w.PutUe(uint32(sps.PicHeightInMapUnitsMinus1))

	w.PutFlag(sps.FrameMbsOnlyFlag)
	if sps.FrameMbsOnlyFlag == 0 {
		w.PutFlag(sps.MbAdaptiveFrameFieldFlag)
	}
	w.PutFlag(sps.Direct8x8InferenceFlag)

	w.PutFlag(sps.FrameCroppingFlag)
	if sps.FrameCroppingFlag == 1 {
		w.PutUe(uint32(sps.FrameCropLeftOffset))
		w.PutUe(uint32(sps.FrameCropRightOffset))
		w.PutUe(uint32(sps.FrameCropTopOffset))
		w.PutUe(uint32(sps.FrameCropBottomOffset))
	}

	w.PutFlag(0) // vui_parameters_present_flag
	w.Finish()
}

// Marshal 返回 SPS NAL 字节 (已插入防竞争字节，不含起始码)
func (sps *RawSPS) Marshal() []byte {
	w := bits.NewWriter(maxHeaderSize)
	sps.Encode(w)
	return utils.InsertH264or5EmulationBytes(w.Bytes(), 1)
}

func (sps *RawSPS) scanList(r *bits.Reader, i int) {
	var current *[64]int8
	var sizeOfScan int
	if i < 6 {
		current = &sps.ScalingList4x4[i]
		sizeOfScan = 16
	} else {
		current = &sps.ScalingList8x8[i-6]
		sizeOfScan = 64
	}

	scale := 8
	for i = 0; i < sizeOfScan; i++ {
		current[i] = r.ReadSe8()
		scale = (scale + int(current[i]) + 256) % 256
		if scale == 0 {
			break
		}
	}
}

func (vui *RawVUI) decode(r *bits.Reader) (err error) {
	vui.AspectRatioInfoPresentFlag = r.ReadBit()
	if vui.AspectRatioInfoPresentFlag == 1 {
		vui.AspectRatioIdc = r.ReadUint8(8)
		if vui.AspectRatioIdc == 255 {
			vui.SarWidth = r.ReadUint16(16)
			vui.SarHeight = r.ReadUint16(16)
		}
	}

	if r.ReadBit() == 1 { // overscan_info_present_flag
		r.Skip(1) // overscan_appropriate_flag
	}

	vui.VideoFormat = 5
	vui.ColourPrimaries = 2
	vui.TransferCharacteristics = 2
	vui.MatrixCoefficients = 2
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

	if r.ReadBit() == 1 { // chroma_loc_info_present_flag
		r.ReadUe()
		r.ReadUe()
	}

	vui.TimingInfoPresentFlag = r.ReadBit()
	if vui.TimingInfoPresentFlag == 1 {
		vui.NumUnitsInTick = r.ReadUint32(32)
		vui.TimeScale = r.ReadUint32(32)
		vui.FixedFrameRateFlag = r.ReadBit()
	}

	vui.NalHrdParametersPresentFlag = r.ReadBit()
	if vui.NalHrdParametersPresentFlag == 1 {
		vui.NalHrdParameters.decode(r)
	}
	vui.VclHrdParametersPresentFlag = r.ReadBit()
	if vui.VclHrdParametersPresentFlag == 1 {
		vui.VclHrdParameters.decode(r)
	}
	if vui.NalHrdParametersPresentFlag == 1 || vui.VclHrdParametersPresentFlag == 1 {
		r.Skip(1) // low_delay_hrd_flag
	}

	r.Skip(1) // pic_struct_present_flag

	vui.MaxNumReorderFrames = MaxDpbFrames
	vui.MaxDecFrameBuffering = MaxDpbFrames
	vui.BitstreamRestrictionFlag = r.ReadBit()
	if vui.BitstreamRestrictionFlag == 1 {
		r.Skip(1) // motion_vectors_over_pic_boundaries_flag
		r.ReadUe() // max_bytes_per_pic_denom
		r.ReadUe() // max_bits_per_mb_denom
		r.ReadUe() // log2_max_mv_length_horizontal
		r.ReadUe() // log2_max_mv_length_vertical
		vui.MaxNumReorderFrames = r.ReadUe8()
		vui.MaxDecFrameBuffering = r.ReadUe8()
	}
	return
}

func (hrd *RawHRD) decode(r *bits.Reader) {
	hrd.CpbCntMinus1 = r.ReadUe8()
	hrd.BitRateScale = r.ReadUint8(4)
	hrd.CpbSizeScale = r.ReadUint8(4)

	for i := 0; i <= int(hrd.CpbCntMinus1) && i < MaxCpbCnt; i++ {
		hrd.BitRateValueMinus1[i] = r.ReadUe()
		hrd.CpbSizeValueMinus1[i] = r.ReadUe()
		hrd.CbrFlag[i] = r.ReadBit()
	}

	hrd.InitialCpbRemovalDelayLengthMinus1 = r.ReadUint8(5)
	hrd.CpbRemovalDelayLengthMinus1 = r.ReadUint8(5)
	hrd.DpbOutputDelayLengthMinus1 = r.ReadUint8(5)
	hrd.TimeOffsetLength = r.ReadUint8(5)
}
