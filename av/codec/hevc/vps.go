// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
//
// Syntax follows FFmpeg cbs_h265_syntax_template.c
//
package hevc

import (
	"encoding/base64"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/cnotch/v4l2dec/utils"
	"github.com/cnotch/v4l2dec/utils/bits"
)

// RawNALUnitHeader 两字节 NAL 头
type RawNALUnitHeader struct {
	NalUnitType        uint8
	NuhLayerID         uint8
	NuhTemporalIDPlus1 uint8
}

func (h *RawNALUnitHeader) decode(r *bits.Reader) (err error) {
	if r.ReadBit() != 0 {
		return errors.New("forbidden_zero_bit is not zero")
	}
	h.NalUnitType = r.ReadUint8(6)
	h.NuhLayerID = r.ReadUint8(6)
	h.NuhTemporalIDPlus1 = r.ReadUint8(3)
	if h.NuhTemporalIDPlus1 == 0 {
		return errors.New("nuh_temporal_id_plus1 is zero")
	}
	return
}

func (h *RawNALUnitHeader) encode(w *bits.Writer) {
	w.PutBits(0, 1) // forbidden_zero_bit
	w.PutBits(uint32(h.NalUnitType), 6)
	w.PutBits(uint32(h.NuhLayerID), 6)
	w.PutBits(uint32(h.NuhTemporalIDPlus1), 3)
}

func newNALUnitHeader(nalType uint8) RawNALUnitHeader {
	return RawNALUnitHeader{NalUnitType: nalType, NuhTemporalIDPlus1: 1}
}

// RawProfileTierLevel profile_tier_level()，子层只保留 level.
type RawProfileTierLevel struct {
	GeneralProfileSpace uint8
	GeneralTierFlag     uint8
	GeneralProfileIdc   uint8

	// flag[j] 位于 bit (31-j)
	GeneralProfileCompatibilityFlags uint32

	GeneralProgressiveSourceFlag    uint8
	GeneralInterlacedSourceFlag     uint8
	GeneralNonPackedConstraintFlag  uint8
	GeneralFrameOnlyConstraintFlag  uint8
	GeneralConstraintIndicatorFlags uint64 // 48bits，含上面4个标志

	GeneralLevelIdc uint8

	SubLayerProfilePresentFlag [MaxSubLayers]uint8
	SubLayerLevelPresentFlag   [MaxSubLayers]uint8
	SubLayerLevelIdc           [MaxSubLayers]uint8
}

// Compatible 是否与指定 profile 兼容
func (ptl *RawProfileTierLevel) Compatible(idc uint8) bool {
	return ptl.GeneralProfileIdc == idc ||
		(idc < 32 && ptl.GeneralProfileCompatibilityFlags&(1<<(31-idc)) != 0)
}

func (ptl *RawProfileTierLevel) decode(r *bits.Reader, maxSubLayersMinus1 int) {
	ptl.GeneralProfileSpace = r.ReadUint8(2)
	ptl.GeneralTierFlag = r.ReadBit()
	ptl.GeneralProfileIdc = r.ReadUint8(5)
	ptl.GeneralProfileCompatibilityFlags = r.ReadUint32(32)

	ptl.GeneralConstraintIndicatorFlags = r.Peek(48)
	ptl.GeneralProgressiveSourceFlag = r.ReadBit()
	ptl.GeneralInterlacedSourceFlag = r.ReadBit()
	ptl.GeneralNonPackedConstraintFlag = r.ReadBit()
	ptl.GeneralFrameOnlyConstraintFlag = r.ReadBit()
	// 各 profile 的约束标志共 43 位，加 general_inbld_flag 或保留位
	r.Skip(44)

	ptl.GeneralLevelIdc = r.ReadUint8(8)

	for i := 0; i < maxSubLayersMinus1; i++ {
		ptl.SubLayerProfilePresentFlag[i] = r.ReadBit()
		ptl.SubLayerLevelPresentFlag[i] = r.ReadBit()
	}
	if maxSubLayersMinus1 > 0 {
		r.Skip(2 * (8 - maxSubLayersMinus1)) // reserved_zero_2bits
	}
	for i := 0; i < maxSubLayersMinus1; i++ {
		if ptl.SubLayerProfilePresentFlag[i] == 1 {
			r.Skip(88) // 子层 profile 与 general 部分同构
		}
		if ptl.SubLayerLevelPresentFlag[i] == 1 {
			ptl.SubLayerLevelIdc[i] = r.ReadUint8(8)
		}
	}
}

// encode 只写 general 部分 (max_sub_layers_minus1 = 0)
func (ptl *RawProfileTierLevel) encode(w *bits.Writer) {
	w.PutBits(uint32(ptl.GeneralProfileSpace), 2)
	w.PutFlag(ptl.GeneralTierFlag)
	w.PutBits(uint32(ptl.GeneralProfileIdc), 5)
	w.PutBits(ptl.GeneralProfileCompatibilityFlags, 32)
	w.PutFlag(ptl.GeneralProgressiveSourceFlag)
	w.PutFlag(ptl.GeneralInterlacedSourceFlag)
	w.PutFlag(ptl.GeneralNonPackedConstraintFlag)
	w.PutFlag(ptl.GeneralFrameOnlyConstraintFlag)
	w.PutBits(0, 32) // general_reserved_zero_44bits
	w.PutBits(0, 12)
	w.PutBits(uint32(ptl.GeneralLevelIdc), 8)
}

// RawSubLayerHRD sub_layer_hrd_parameters()
type RawSubLayerHRD struct {
	BitRateValueMinus1   [MaxCpbCnt]uint32
	CpbSizeValueMinus1   [MaxCpbCnt]uint32
	CpbSizeDuValueMinus1 [MaxCpbCnt]uint32
	BitRateDuValueMinus1 [MaxCpbCnt]uint32
	CbrFlag              [MaxCpbCnt]uint8
}

func (shrd *RawSubLayerHRD) decode(r *bits.Reader, subPicParamsPresent bool, cpbCntMinus1 int) {
	for i := 0; i <= cpbCntMinus1; i++ {
		shrd.BitRateValueMinus1[i] = r.ReadUe()
		shrd.CpbSizeValueMinus1[i] = r.ReadUe()
		if subPicParamsPresent {
			shrd.CpbSizeDuValueMinus1[i] = r.ReadUe()
			shrd.BitRateDuValueMinus1[i] = r.ReadUe()
		}
		shrd.CbrFlag[i] = r.ReadBit()
	}
}

// RawHRD hrd_parameters()
type RawHRD struct {
	NalHrdParametersPresentFlag uint8
	VclHrdParametersPresentFlag uint8

	SubPicHrdParamsPresentFlag             uint8
	TickDivisorMinus2                      uint8
	DuCpbRemovalDelayIncrementLengthMinus1 uint8
	SubPicCpbParamsInPicTimingSeiFlag      uint8
	DpbOutputDelayDuLengthMinus1           uint8

	BitRateScale   uint8
	CpbSizeScale   uint8
	CpbSizeDuScale uint8

	InitialCpbRemovalDelayLengthMinus1 uint8
	AuCpbRemovalDelayLengthMinus1      uint8
	DpbOutputDelayLengthMinus1         uint8

	FixedPicRateGeneralFlag     [MaxSubLayers]uint8
	FixedPicRateWithinCvsFlag   [MaxSubLayers]uint8
	ElementalDurationInTcMinus1 [MaxSubLayers]uint16
	LowDelayHrdFlag             [MaxSubLayers]uint8
	CpbCntMinus1                [MaxSubLayers]uint8
	NalSubLayer                 [MaxSubLayers]RawSubLayerHRD
	VclSubLayer                 [MaxSubLayers]RawSubLayerHRD
}

func (hrd *RawHRD) decode(r *bits.Reader, commonInfPresent bool, maxSubLayersMinus1 int) {
	if commonInfPresent {
		hrd.NalHrdParametersPresentFlag = r.ReadBit()
		hrd.VclHrdParametersPresentFlag = r.ReadBit()

		if hrd.NalHrdParametersPresentFlag == 1 || hrd.VclHrdParametersPresentFlag == 1 {
			hrd.SubPicHrdParamsPresentFlag = r.ReadBit()
			if hrd.SubPicHrdParamsPresentFlag == 1 {
				hrd.TickDivisorMinus2 = r.ReadUint8(8)
				hrd.DuCpbRemovalDelayIncrementLengthMinus1 = r.ReadUint8(5)
				hrd.SubPicCpbParamsInPicTimingSeiFlag = r.ReadBit()
				hrd.DpbOutputDelayDuLengthMinus1 = r.ReadUint8(5)
			}

			hrd.BitRateScale = r.ReadUint8(4)
			hrd.CpbSizeScale = r.ReadUint8(4)
			if hrd.SubPicHrdParamsPresentFlag == 1 {
				hrd.CpbSizeDuScale = r.ReadUint8(4)
			}

			hrd.InitialCpbRemovalDelayLengthMinus1 = r.ReadUint8(5)
			hrd.AuCpbRemovalDelayLengthMinus1 = r.ReadUint8(5)
			hrd.DpbOutputDelayLengthMinus1 = r.ReadUint8(5)
		} else {
			hrd.InitialCpbRemovalDelayLengthMinus1 = 23
			hrd.AuCpbRemovalDelayLengthMinus1 = 23
			hrd.DpbOutputDelayLengthMinus1 = 23
		}
	}

	subPic := hrd.SubPicHrdParamsPresentFlag == 1
	for i := 0; i <= maxSubLayersMinus1; i++ {
		hrd.FixedPicRateGeneralFlag[i] = r.ReadBit()
		hrd.FixedPicRateWithinCvsFlag[i] = 1
		if hrd.FixedPicRateGeneralFlag[i] == 0 {
			hrd.FixedPicRateWithinCvsFlag[i] = r.ReadBit()
		}

		if hrd.FixedPicRateWithinCvsFlag[i] == 1 {
			hrd.ElementalDurationInTcMinus1[i] = r.ReadUe16()
		} else {
			hrd.LowDelayHrdFlag[i] = r.ReadBit()
		}

		if hrd.LowDelayHrdFlag[i] == 0 {
			hrd.CpbCntMinus1[i] = r.ReadUe8()
			if hrd.CpbCntMinus1[i] >= MaxCpbCnt {
				panic(fmt.Sprintf("cpb_cnt_minus1 %d out of range", hrd.CpbCntMinus1[i]))
			}
		}

		if hrd.NalHrdParametersPresentFlag == 1 {
			hrd.NalSubLayer[i].decode(r, subPic, int(hrd.CpbCntMinus1[i]))
		}
		if hrd.VclHrdParametersPresentFlag == 1 {
			hrd.VclSubLayer[i].decode(r, subPic, int(hrd.CpbCntMinus1[i]))
		}
	}
}

// RawVPS 视频参数集. 只解析单层码流需要的字段，层集合信息跳过.
type RawVPS struct {
	NalUnitHeader RawNALUnitHeader

	VideoParameterSetID uint8

	BaseLayerInternalFlag  uint8
	BaseLayerAvailableFlag uint8
	MaxLayersMinus1        uint8
	MaxSubLayersMinus1     uint8
	TemporalIDNestingFlag  uint8

	ProfileTierLevel RawProfileTierLevel

	SubLayerOrderingInfoPresentFlag uint8
	MaxDecPicBufferingMinus1        [MaxSubLayers]uint8
	MaxNumReorderPics               [MaxSubLayers]uint8
	MaxLatencyIncreasePlus1         [MaxSubLayers]uint32

	MaxLayerID         uint8
	NumLayerSetsMinus1 uint16

	TimingInfoPresentFlag       uint8
	NumUnitsInTick              uint32
	TimeScale                   uint32
	PocProportionalToTimingFlag uint8
	NumTicksPocDiffOneMinus1    uint32
	NumHrdParameters            uint16

	ExtensionFlag uint8
}

// DecodeString 从 base64 字串解码 vps NAL
func (vps *RawVPS) DecodeString(b64 string) error {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return err
	}
	return vps.Decode(data)
}

// Decode 从字节序列中解码 vps NAL，允许带起始码
func (vps *RawVPS) Decode(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("RawVPS decode panic；r = %v \n %s", r, debug.Stack())
		}
	}()

	vpsWEB := utils.RemoveH264or5EmulationBytes(utils.RemoveNaluSeparator(data))
	if len(vpsWEB) < 4 {
		return errors.New("The data is not enough")
	}

	r := bits.NewReader(vpsWEB)
	if err = vps.NalUnitHeader.decode(r); err != nil {
		return
	}
	if vps.NalUnitHeader.NalUnitType != NalVps {
		return errors.New("not is vps NAL UNIT")
	}

	vps.VideoParameterSetID = r.ReadUint8(4)
	vps.BaseLayerInternalFlag = r.ReadBit()
	vps.BaseLayerAvailableFlag = r.ReadBit()
	vps.MaxLayersMinus1 = r.ReadUint8(6)
	vps.MaxSubLayersMinus1 = r.ReadUint8(3)
	vps.TemporalIDNestingFlag = r.ReadBit()
	if vps.MaxSubLayersMinus1 >= MaxSubLayers {
		return errors.New("vps_max_sub_layers_minus1 out of range")
	}
	if vps.MaxSubLayersMinus1 == 0 && vps.TemporalIDNestingFlag != 1 {
		return errors.New("vps_temporal_id_nesting_flag must be 1 if vps_max_sub_layers_minus1 is 0")
	}
	if r.ReadUint16(16) != 0xffff {
		return errors.New("vps_reserved_0xffff_16bits mismatch")
	}

	vps.ProfileTierLevel.decode(r, int(vps.MaxSubLayersMinus1))

	vps.SubLayerOrderingInfoPresentFlag = r.ReadBit()
	decodeOrderingInfo(r, vps.SubLayerOrderingInfoPresentFlag, vps.MaxSubLayersMinus1,
		&vps.MaxDecPicBufferingMinus1, &vps.MaxNumReorderPics, &vps.MaxLatencyIncreasePlus1)

	vps.MaxLayerID = r.ReadUint8(6)
	vps.NumLayerSetsMinus1 = r.ReadUe16()
	for i := uint16(1); i <= vps.NumLayerSetsMinus1; i++ {
		r.Skip(int(vps.MaxLayerID) + 1) // layer_id_included_flag
	}

	vps.TimingInfoPresentFlag = r.ReadBit()
	if vps.TimingInfoPresentFlag == 1 {
		vps.NumUnitsInTick = r.ReadUint32(32)
		vps.TimeScale = r.ReadUint32(32)
		vps.PocProportionalToTimingFlag = r.ReadBit()
		if vps.PocProportionalToTimingFlag == 1 {
			vps.NumTicksPocDiffOneMinus1 = r.ReadUe()
		}
		vps.NumHrdParameters = r.ReadUe16()
		for i := uint16(0); i < vps.NumHrdParameters; i++ {
			r.ReadUe() // hrd_layer_set_idx
			cprmsPresent := i == 0
			if i > 0 {
				cprmsPresent = r.ReadBool()
			}
			var hrd RawHRD
			hrd.decode(r, cprmsPresent, int(vps.MaxSubLayersMinus1))
		}
	}

	vps.ExtensionFlag = r.ReadBit()
	if vps.ExtensionFlag == 0 && !r.TrailingBits() {
		return errors.New("vps rbsp_trailing_bits malformed")
	}
	return
}

// Encode 写出单层、单子层的 VPS RBSP (含 NAL 头和 rbsp_trailing_bits)
func (vps *RawVPS) Encode(w *bits.Writer) {
	vps.NalUnitHeader.encode(w)

	w.PutBits(uint32(vps.VideoParameterSetID), 4)
	w.PutFlag(vps.BaseLayerInternalFlag)
	w.PutFlag(vps.BaseLayerAvailableFlag)
	w.PutBits(0, 6) // vps_max_layers_minus1
	w.PutBits(0, 3) // vps_max_sub_layers_minus1
	w.PutFlag(vps.TemporalIDNestingFlag)
	w.PutBits(0xffff, 16)

	vps.ProfileTierLevel.encode(w)

	w.PutFlag(1) // vps_sub_layer_ordering_info_present_flag
	w.PutUe(uint32(vps.MaxDecPicBufferingMinus1[0]))
	w.PutUe(uint32(vps.MaxNumReorderPics[0]))
	w.PutUe(vps.MaxLatencyIncreasePlus1[0])

	w.PutBits(uint32(vps.MaxLayerID), 6)
	w.PutUe(0)   // vps_num_layer_sets_minus1
	w.PutFlag(0) // vps_timing_info_present_flag
	w.PutFlag(0) // vps_extension_flag
	w.Finish()
}

// Marshal 返回 VPS NAL 字节 (已插入防竞争字节，不含起始码)
func (vps *RawVPS) Marshal() []byte {
	return marshal(vps.Encode)
}

func decodeOrderingInfo(r *bits.Reader, presentFlag, maxSubLayersMinus1 uint8,
	maxDecPicBufferingMinus1, maxNumReorderPics *[MaxSubLayers]uint8,
	maxLatencyIncreasePlus1 *[MaxSubLayers]uint32) {
	i := maxSubLayersMinus1
	if presentFlag == 1 {
		i = 0
	}
	for ; i <= maxSubLayersMinus1; i++ {
		maxDecPicBufferingMinus1[i] = r.ReadUe8()
		maxNumReorderPics[i] = r.ReadUe8()
		maxLatencyIncreasePlus1[i] = r.ReadUe()
	}
	if presentFlag == 0 {
		for i := uint8(0); i < maxSubLayersMinus1; i++ {
			maxDecPicBufferingMinus1[i] = maxDecPicBufferingMinus1[maxSubLayersMinus1]
			maxNumReorderPics[i] = maxNumReorderPics[maxSubLayersMinus1]
			maxLatencyIncreasePlus1[i] = maxLatencyIncreasePlus1[maxSubLayersMinus1]
		}
	}
}

func marshal(encode func(w *bits.Writer)) []byte {
	w := bits.NewWriter(maxHeaderSize)
	encode(w)
	return utils.InsertH264or5EmulationBytes(w.Bytes(), 2)
}
