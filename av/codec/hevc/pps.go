// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hevc

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/cnotch/v4l2dec/utils"
	"github.com/cnotch/v4l2dec/utils/bits"
)

// RawPPS 图像参数集. 分块只支持均匀分布，不支持缩放列表数据和扩展.
type RawPPS struct {
	NalUnitHeader RawNALUnitHeader

	PicParameterSetID uint8
	SeqParameterSetID uint8

	DependentSliceSegmentsEnabledFlag uint8
	OutputFlagPresentFlag             uint8
	NumExtraSliceHeaderBits           uint8
	SignDataHidingEnabledFlag         uint8
	CabacInitPresentFlag              uint8

	NumRefIdxL0DefaultActiveMinus1 uint8
	NumRefIdxL1DefaultActiveMinus1 uint8

	InitQpMinus26            int8
	ConstrainedIntraPredFlag uint8
	TransformSkipEnabledFlag uint8

	CuQpDeltaEnabledFlag uint8
	DiffCuQpDeltaDepth   uint8

	PpsCbQpOffset                      int8
	PpsCrQpOffset                      int8
	PpsSliceChromaQpOffsetsPresentFlag uint8

	WeightedPredFlag             uint8
	WeightedBipredFlag           uint8
	TransquantBypassEnabledFlag  uint8
	TilesEnabledFlag             uint8
	EntropyCodingSyncEnabledFlag uint8

	NumTileColumnsMinus1             uint8
	NumTileRowsMinus1                uint8
	UniformSpacingFlag               uint8
	LoopFilterAcrossTilesEnabledFlag uint8

	PpsLoopFilterAcrossSlicesEnabledFlag uint8

	DeblockingFilterControlPresentFlag  uint8
	DeblockingFilterOverrideEnabledFlag uint8
	PpsDeblockingFilterDisabledFlag     uint8
	PpsBetaOffsetDiv2                   int8
	PpsTcOffsetDiv2                     int8

	PpsScalingListDataPresentFlag          uint8
	ListsModificationPresentFlag           uint8
	Log2ParallelMergeLevelMinus2           uint8
	SliceSegmentHeaderExtensionPresentFlag uint8
	PpsExtensionPresentFlag                uint8
}

// Decode 从字节序列中解码 pps NAL，允许带起始码
func (pps *RawPPS) Decode(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("RawPPS decode panic；r = %v \n %s", r, debug.Stack())
		}
	}()

	ppsWEB := utils.RemoveH264or5EmulationBytes(utils.RemoveNaluSeparator(data))
	if len(ppsWEB) < 3 {
		return errors.New("The data is not enough")
	}

	r := bits.NewReader(ppsWEB)
	if err = pps.NalUnitHeader.decode(r); err != nil {
		return
	}
	if pps.NalUnitHeader.NalUnitType != NalPps {
		return errors.New("not is pps NAL UNIT")
	}

	pps.PicParameterSetID = r.ReadUe8()
	pps.SeqParameterSetID = r.ReadUe8()

	pps.DependentSliceSegmentsEnabledFlag = r.ReadBit()
	pps.OutputFlagPresentFlag = r.ReadBit()
	pps.NumExtraSliceHeaderBits = r.ReadUint8(3)
	pps.SignDataHidingEnabledFlag = r.ReadBit()
	pps.CabacInitPresentFlag = r.ReadBit()

	pps.NumRefIdxL0DefaultActiveMinus1 = r.ReadUe8()
	pps.NumRefIdxL1DefaultActiveMinus1 = r.ReadUe8()

	pps.InitQpMinus26 = r.ReadSe8()
	pps.ConstrainedIntraPredFlag = r.ReadBit()
	pps.TransformSkipEnabledFlag = r.ReadBit()

	pps.CuQpDeltaEnabledFlag = r.ReadBit()
	if pps.CuQpDeltaEnabledFlag == 1 {
		pps.DiffCuQpDeltaDepth = r.ReadUe8()
	}

	pps.PpsCbQpOffset = r.ReadSe8()
	pps.PpsCrQpOffset = r.ReadSe8()
	pps.PpsSliceChromaQpOffsetsPresentFlag = r.ReadBit()

	pps.WeightedPredFlag = r.ReadBit()
	pps.WeightedBipredFlag = r.ReadBit()
	pps.TransquantBypassEnabledFlag = r.ReadBit()
	pps.TilesEnabledFlag = r.ReadBit()
	pps.EntropyCodingSyncEnabledFlag = r.ReadBit()

	if pps.TilesEnabledFlag == 1 {
		pps.NumTileColumnsMinus1 = r.ReadUe8()
		pps.NumTileRowsMinus1 = r.ReadUe8()
		if pps.NumTileColumnsMinus1 >= MaxTileColumns || pps.NumTileRowsMinus1 >= MaxTileRows {
			return errors.New("pps tile layout out of range")
		}
		pps.UniformSpacingFlag = r.ReadBit()
		if pps.UniformSpacingFlag == 0 {
			return errors.New("pps non-uniform tile spacing not supported")
		}
		pps.LoopFilterAcrossTilesEnabledFlag = r.ReadBit()
	}

	pps.PpsLoopFilterAcrossSlicesEnabledFlag = r.ReadBit()

	pps.DeblockingFilterControlPresentFlag = r.ReadBit()
	if pps.DeblockingFilterControlPresentFlag == 1 {
		pps.DeblockingFilterOverrideEnabledFlag = r.ReadBit()
		pps.PpsDeblockingFilterDisabledFlag = r.ReadBit()
		if pps.PpsDeblockingFilterDisabledFlag == 0 {
			pps.PpsBetaOffsetDiv2 = r.ReadSe8()
			pps.PpsTcOffsetDiv2 = r.ReadSe8()
		}
	}

	pps.PpsScalingListDataPresentFlag = r.ReadBit()
	if pps.PpsScalingListDataPresentFlag == 1 {
		return errors.New("pps scaling list data not supported")
	}
	pps.ListsModificationPresentFlag = r.ReadBit()
	pps.Log2ParallelMergeLevelMinus2 = r.ReadUe8()
	pps.SliceSegmentHeaderExtensionPresentFlag = r.ReadBit()
	pps.PpsExtensionPresentFlag = r.ReadBit()
	if pps.PpsExtensionPresentFlag == 1 {
		return
	}

	if !r.TrailingBits() {
		return errors.New("pps rbsp_trailing_bits malformed")
	}
	return
}

// Encode 写出 PPS RBSP (含 NAL 头和 rbsp_trailing_bits)
func (pps *RawPPS) Encode(w *bits.Writer) {
	pps.NalUnitHeader.encode(w)

	w.PutUe(uint32(pps.PicParameterSetID))
	w.PutUe(uint32(pps.SeqParameterSetID))

	w.PutFlag(pps.DependentSliceSegmentsEnabledFlag)
	w.PutFlag(pps.OutputFlagPresentFlag)
	w.PutBits(uint32(pps.NumExtraSliceHeaderBits), 3)
	w.PutFlag(pps.SignDataHidingEnabledFlag)
	w.PutFlag(pps.CabacInitPresentFlag)

	w.PutUe(uint32(pps.NumRefIdxL0DefaultActiveMinus1))
	w.PutUe(uint32(pps.NumRefIdxL1DefaultActiveMinus1))

	w.PutSe(int32(pps.InitQpMinus26))
	w.PutFlag(pps.ConstrainedIntraPredFlag)
	w.PutFlag(pps.TransformSkipEnabledFlag)

	w.PutFlag(pps.CuQpDeltaEnabledFlag)
	if pps.CuQpDeltaEnabledFlag == 1 {
		w.PutUe(uint32(pps.DiffCuQpDeltaDepth))
	}

	w.PutSe(int32(pps.PpsCbQpOffset))
	w.PutSe(int32(pps.PpsCrQpOffset))
	w.PutFlag(pps.PpsSliceChromaQpOffsetsPresentFlag)

	w.PutFlag(pps.WeightedPredFlag)
	w.PutFlag(pps.WeightedBipredFlag)
	w.PutFlag(pps.TransquantBypassEnabledFlag)
	w.PutFlag(pps.TilesEnabledFlag)
	w.PutFlag(pps.EntropyCodingSyncEnabledFlag)

	if pps.TilesEnabledFlag == 1 {
		w.PutUe(uint32(pps.NumTileColumnsMinus1))
		w.PutUe(uint32(pps.NumTileRowsMinus1))
		w.PutFlag(1) // uniform_spacing_flag
		w.PutFlag(pps.LoopFilterAcrossTilesEnabledFlag)
	}

	w.PutFlag(pps.PpsLoopFilterAcrossSlicesEnabledFlag)

	w.PutFlag(pps.DeblockingFilterControlPresentFlag)
	if pps.DeblockingFilterControlPresentFlag == 1 {
		w.PutFlag(pps.DeblockingFilterOverrideEnabledFlag)
		w.PutFlag(pps.PpsDeblockingFilterDisabledFlag)
		if pps.PpsDeblockingFilterDisabledFlag == 0 {
			w.PutSe(int32(pps.PpsBetaOffsetDiv2))
			w.PutSe(int32(pps.PpsTcOffsetDiv2))
		}
	}

	w.PutFlag(0) // pps_scaling_list_data_present_flag
	w.PutFlag(pps.ListsModificationPresentFlag)
	w.PutUe(uint32(pps.Log2ParallelMergeLevelMinus2))
	w.PutFlag(pps.SliceSegmentHeaderExtensionPresentFlag)
	w.PutFlag(0) // pps_extension_present_flag
	w.Finish()
}

// Marshal 返回 PPS NAL 字节 (已插入防竞争字节，不含起始码)
func (pps *RawPPS) Marshal() []byte {
	return marshal(pps.Encode)
}
