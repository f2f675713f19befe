// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

// SeqFields 序列级标志，对应 VA-API seq_fields
type SeqFields struct {
	ChromaFormatIdc                uint8 `json:"chroma_format_idc"`
	ResidualColourTransformFlag    uint8 `json:"residual_colour_transform_flag,omitempty"`
	GapsInFrameNumValueAllowedFlag uint8 `json:"gaps_in_frame_num_value_allowed_flag,omitempty"`
	FrameMbsOnlyFlag               uint8 `json:"frame_mbs_only_flag"`
	MbAdaptiveFrameFieldFlag       uint8 `json:"mb_adaptive_frame_field_flag,omitempty"`
	Direct8x8InferenceFlag         uint8 `json:"direct_8x8_inference_flag"`
	MinLumaBiPredSize8x8           uint8 `json:"min_luma_bi_pred_size8x8,omitempty"`
	Log2MaxFrameNumMinus4          uint8 `json:"log2_max_frame_num_minus4"`
	PicOrderCntType                uint8 `json:"pic_order_cnt_type"`
	Log2MaxPicOrderCntLsbMinus4    uint8 `json:"log2_max_pic_order_cnt_lsb_minus4"`
	DeltaPicOrderAlwaysZeroFlag    uint8 `json:"delta_pic_order_always_zero_flag,omitempty"`
}

// PicFields 图像级标志，对应 VA-API pic_fields
type PicFields struct {
	EntropyCodingModeFlag              uint8 `json:"entropy_coding_mode_flag"`
	WeightedPredFlag                   uint8 `json:"weighted_pred_flag,omitempty"`
	WeightedBipredIdc                  uint8 `json:"weighted_bipred_idc,omitempty"`
	Transform8x8ModeFlag               uint8 `json:"transform_8x8_mode_flag"`
	FieldPicFlag                       uint8 `json:"field_pic_flag,omitempty"`
	ConstrainedIntraPredFlag           uint8 `json:"constrained_intra_pred_flag,omitempty"`
	PicOrderPresentFlag                uint8 `json:"pic_order_present_flag,omitempty"`
	DeblockingFilterControlPresentFlag uint8 `json:"deblocking_filter_control_present_flag"`
	RedundantPicCntPresentFlag         uint8 `json:"redundant_pic_cnt_present_flag,omitempty"`
	ReferencePicFlag                   uint8 `json:"reference_pic_flag,omitempty"`
}

// PictureParams H.264 图像参数记录，字段与 VAPictureParameterBufferH264 一致.
// 调用方所有，解码一幅图像期间只读.
type PictureParams struct {
	PictureWidthInMbsMinus1   uint16    `json:"picture_width_in_mbs_minus1"`
	PictureHeightInMbsMinus1  uint16    `json:"picture_height_in_mbs_minus1"`
	BitDepthLumaMinus8        uint8     `json:"bit_depth_luma_minus8"`
	BitDepthChromaMinus8      uint8     `json:"bit_depth_chroma_minus8"`
	NumRefFrames              uint8     `json:"num_ref_frames"`
	SeqFields                 SeqFields `json:"seq_fields"`
	PicInitQpMinus26          int8      `json:"pic_init_qp_minus26"`
	PicInitQsMinus26          int8      `json:"pic_init_qs_minus26"`
	ChromaQpIndexOffset       int8      `json:"chroma_qp_index_offset"`
	SecondChromaQpIndexOffset int8      `json:"second_chroma_qp_index_offset"`
	PicFields                 PicFields `json:"pic_fields"`
	FrameNum                  uint16    `json:"frame_num,omitempty"`
}

// WidthInMbs 宽度（宏块）
func (p *PictureParams) WidthInMbs() int {
	return int(p.PictureWidthInMbsMinus1) + 1
}

// HeightInMbs 帧高度（宏块）
func (p *PictureParams) HeightInMbs() int {
	return int(p.PictureHeightInMbsMinus1) + 1
}

// CodedWidth 编码宽度（像素）
func (p *PictureParams) CodedWidth() int {
	return p.WidthInMbs() * 16
}

// CodedHeight 编码帧高度（像素）
func (p *PictureParams) CodedHeight() int {
	return p.HeightInMbs() * 16
}

// BitDepth 亮度位深
func (p *PictureParams) BitDepth() int {
	return int(p.BitDepthLumaMinus8) + 8
}
