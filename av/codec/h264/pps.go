// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/cnotch/v4l2dec/utils"
	"github.com/cnotch/v4l2dec/utils/bits"
)

// RawPPS 图像参数集，不支持 FMO (num_slice_groups_minus1 恒为 0)
type RawPPS struct {
	NalUnitHeader RawNALUnitHeader

	PicParameterSetID uint8
	SeqParameterSetID uint8

	EntropyCodingModeFlag              uint8
	BottomFieldPicOrderInFramePresent  uint8
	NumSliceGroupsMinus1               uint8
	NumRefIdxL0DefaultActiveMinus1     uint8
	NumRefIdxL1DefaultActiveMinus1     uint8
	WeightedPredFlag                   uint8
	WeightedBipredIdc                  uint8
	PicInitQpMinus26                   int8
	PicInitQsMinus26                   int8
	ChromaQpIndexOffset                int8
	DeblockingFilterControlPresentFlag uint8
	ConstrainedIntraPredFlag           uint8
	RedundantPicCntPresentFlag         uint8

	// more_rbsp_data() 之后的扩展字段
	MoreRbspData              bool
	Transform8x8ModeFlag      uint8
	PicScalingMatrixPresent   uint8
	SecondChromaQpIndexOffset int8
}

// Decode 从字节序列中解码 pps NAL
func (pps *RawPPS) Decode(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("RawPPS decode panic；r = %v \n %s", r, debug.Stack())
		}
	}()

	ppsWEB := utils.RemoveH264or5EmulationBytes(data)
	if len(ppsWEB) < 2 {
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
	pps.EntropyCodingModeFlag = r.ReadBit()
	pps.BottomFieldPicOrderInFramePresent = r.ReadBit()
	pps.NumSliceGroupsMinus1 = r.ReadUe8()
	if pps.NumSliceGroupsMinus1 > 0 {
		return errors.New("pps slice groups not supported")
	}
	pps.NumRefIdxL0DefaultActiveMinus1 = r.ReadUe8()
	pps.NumRefIdxL1DefaultActiveMinus1 = r.ReadUe8()
	pps.WeightedPredFlag = r.ReadBit()
	pps.WeightedBipredIdc = r.ReadUint8(2)
	pps.PicInitQpMinus26 = r.ReadSe8()
	pps.PicInitQsMinus26 = r.ReadSe8()
	pps.ChromaQpIndexOffset = r.ReadSe8()
	pps.DeblockingFilterControlPresentFlag = r.ReadBit()
	pps.ConstrainedIntraPredFlag = r.ReadBit()
	pps.RedundantPicCntPresentFlag = r.ReadBit()

	pps.MoreRbspData = r.MoreRbspData()
	if pps.MoreRbspData {
		pps.Transform8x8ModeFlag = r.ReadBit()
		pps.PicScalingMatrixPresent = r.ReadBit()
		if pps.PicScalingMatrixPresent == 1 {
			return errors.New("pps scaling matrix not supported")
		}
		pps.SecondChromaQpIndexOffset = r.ReadSe8()
	} else {
		pps.SecondChromaQpIndexOffset = pps.ChromaQpIndexOffset
	}

	if !r.TrailingBits() {
		return errors.New("pps rbsp_trailing_bits malformed")
	}
	return
}

// Encode 写出 PPS RBSP (含 NAL 头和 rbsp_trailing_bits)
func (pps *RawPPS) Encode(w *bits.Writer) {
	w.PutBits(uint32(pps.NalUnitHeader.Byte()), 8)

	w.PutUe(uint32(pps.PicParameterSetID))
	w.PutUe(uint32(pps.SeqParameterSetID))
	w.PutFlag(pps.EntropyCodingModeFlag)
	w.PutFlag(pps.BottomFieldPicOrderInFramePresent)
	w.PutUe(0) // num_slice_groups_minus1
	w.PutUe(uint32(pps.NumRefIdxL0DefaultActiveMinus1))
	w.PutUe(uint32(pps.NumRefIdxL1DefaultActiveMinus1))
	w.PutFlag(pps.WeightedPredFlag)
	w.PutBits(uint32(pps.WeightedBipredIdc), 2)
	w.PutSe(int32(pps.PicInitQpMinus26))
	w.PutSe(int32(pps.PicInitQsMinus26))
	w.PutSe(int32(pps.ChromaQpIndexOffset))
	w.PutFlag(pps.DeblockingFilterControlPresentFlag)
	w.PutFlag(pps.ConstrainedIntraPredFlag)
	w.PutFlag(pps.RedundantPicCntPresentFlag)

	if pps.MoreRbspData {
		w.PutFlag(pps.Transform8x8ModeFlag)
		w.PutFlag(0) // pic_scaling_matrix_present_flag
		w.PutSe(int32(pps.SecondChromaQpIndexOffset))
	}
	w.Finish()
}

// Marshal 返回 PPS NAL 字节 (已插入防竞争字节，不含起始码)
func (pps *RawPPS) Marshal() []byte {
	w := bits.NewWriter(maxHeaderSize)
	pps.Encode(w)
	return utils.InsertH264or5EmulationBytes(w.Bytes(), 1)
}
