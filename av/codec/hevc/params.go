// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hevc

// PicFields 图像级标志，对应 VA-API pic_fields
type PicFields struct {
	ChromaFormatIdc                      uint8 `json:"chroma_format_idc"`
	SeparateColourPlaneFlag              uint8 `json:"separate_colour_plane_flag,omitempty"`
	PcmEnabledFlag                       uint8 `json:"pcm_enabled_flag,omitempty"`
	ScalingListEnabledFlag               uint8 `json:"scaling_list_enabled_flag,omitempty"`
	TransformSkipEnabledFlag             uint8 `json:"transform_skip_enabled_flag,omitempty"`
	AmpEnabledFlag                       uint8 `json:"amp_enabled_flag,omitempty"`
	StrongIntraSmoothingEnabledFlag      uint8 `json:"strong_intra_smoothing_enabled_flag,omitempty"`
	SignDataHidingEnabledFlag            uint8 `json:"sign_data_hiding_enabled_flag,omitempty"`
	ConstrainedIntraPredFlag             uint8 `json:"constrained_intra_pred_flag,omitempty"`
	CuQpDeltaEnabledFlag                 uint8 `json:"cu_qp_delta_enabled_flag,omitempty"`
	WeightedPredFlag                     uint8 `json:"weighted_pred_flag,omitempty"`
	WeightedBipredFlag                   uint8 `json:"weighted_bipred_flag,omitempty"`
	TransquantBypassEnabledFlag          uint8 `json:"transquant_bypass_enabled_flag,omitempty"`
	TilesEnabledFlag                     uint8 `json:"tiles_enabled_flag,omitempty"`
	EntropyCodingSyncEnabledFlag         uint8 `json:"entropy_coding_sync_enabled_flag,omitempty"`
	PpsLoopFilterAcrossSlicesEnabledFlag uint8 `json:"pps_loop_filter_across_slices_enabled_flag,omitempty"`
	LoopFilterAcrossTilesEnabledFlag     uint8 `json:"loop_filter_across_tiles_enabled_flag,omitempty"`
	PcmLoopFilterDisabledFlag            uint8 `json:"pcm_loop_filter_disabled_flag,omitempty"`
}

// SliceParsingFields 片解析相关标志，对应 VA-API slice_parsing_fields
type SliceParsingFields struct {
	ListsModificationPresentFlag           uint8 `json:"lists_modification_present_flag,omitempty"`
	LongTermRefPicsPresentFlag             uint8 `json:"long_term_ref_pics_present_flag,omitempty"`
	SpsTemporalMvpEnabledFlag              uint8 `json:"sps_temporal_mvp_enabled_flag,omitempty"`
	CabacInitPresentFlag                   uint8 `json:"cabac_init_present_flag,omitempty"`
	OutputFlagPresentFlag                  uint8 `json:"output_flag_present_flag,omitempty"`
	DependentSliceSegmentsEnabledFlag      uint8 `json:"dependent_slice_segments_enabled_flag,omitempty"`
	PpsSliceChromaQpOffsetsPresentFlag     uint8 `json:"pps_slice_chroma_qp_offsets_present_flag,omitempty"`
	SampleAdaptiveOffsetEnabledFlag        uint8 `json:"sample_adaptive_offset_enabled_flag,omitempty"`
	DeblockingFilterOverrideEnabledFlag    uint8 `json:"deblocking_filter_override_enabled_flag,omitempty"`
	PpsDisableDeblockingFilterFlag         uint8 `json:"pps_disable_deblocking_filter_flag,omitempty"`
	SliceSegmentHeaderExtensionPresentFlag uint8 `json:"slice_segment_header_extension_present_flag,omitempty"`
}

// PictureParams HEVC 图像参数记录，字段与 VAPictureParameterBufferHEVC 一致.
type PictureParams struct {
	PicWidthInLumaSamples  uint16    `json:"pic_width_in_luma_samples"`
	PicHeightInLumaSamples uint16    `json:"pic_height_in_luma_samples"`
	PicFields              PicFields `json:"pic_fields"`

	SpsMaxDecPicBufferingMinus1          uint8 `json:"sps_max_dec_pic_buffering_minus1"`
	BitDepthLumaMinus8                   uint8 `json:"bit_depth_luma_minus8"`
	BitDepthChromaMinus8                 uint8 `json:"bit_depth_chroma_minus8"`
	PcmSampleBitDepthLumaMinus1          uint8 `json:"pcm_sample_bit_depth_luma_minus1,omitempty"`
	PcmSampleBitDepthChromaMinus1        uint8 `json:"pcm_sample_bit_depth_chroma_minus1,omitempty"`
	Log2MinLumaCodingBlockSizeMinus3     uint8 `json:"log2_min_luma_coding_block_size_minus3"`
	Log2DiffMaxMinLumaCodingBlockSize    uint8 `json:"log2_diff_max_min_luma_coding_block_size"`
	Log2MinTransformBlockSizeMinus2      uint8 `json:"log2_min_transform_block_size_minus2"`
	Log2DiffMaxMinTransformBlockSize     uint8 `json:"log2_diff_max_min_transform_block_size"`
	Log2MinPcmLumaCodingBlockSizeMinus3  uint8 `json:"log2_min_pcm_luma_coding_block_size_minus3,omitempty"`
	Log2DiffMaxMinPcmLumaCodingBlockSize uint8 `json:"log2_diff_max_min_pcm_luma_coding_block_size,omitempty"`
	MaxTransformHierarchyDepthIntra      uint8 `json:"max_transform_hierarchy_depth_intra"`
	MaxTransformHierarchyDepthInter      uint8 `json:"max_transform_hierarchy_depth_inter"`
	InitQpMinus26                        int8  `json:"init_qp_minus26"`
	DiffCuQpDeltaDepth                   uint8 `json:"diff_cu_qp_delta_depth,omitempty"`
	PpsCbQpOffset                        int8  `json:"pps_cb_qp_offset"`
	PpsCrQpOffset                        int8  `json:"pps_cr_qp_offset"`
	Log2ParallelMergeLevelMinus2         uint8 `json:"log2_parallel_merge_level_minus2"`
	NumTileColumnsMinus1                 uint8 `json:"num_tile_columns_minus1,omitempty"`
	NumTileRowsMinus1                    uint8 `json:"num_tile_rows_minus1,omitempty"`

	SliceParsingFields SliceParsingFields `json:"slice_parsing_fields"`

	Log2MaxPicOrderCntLsbMinus4    uint8 `json:"log2_max_pic_order_cnt_lsb_minus4"`
	NumShortTermRefPicSets         uint8 `json:"num_short_term_ref_pic_sets,omitempty"`
	NumLongTermRefPicSps           uint8 `json:"num_long_term_ref_pic_sps,omitempty"`
	NumRefIdxL0DefaultActiveMinus1 uint8 `json:"num_ref_idx_l0_default_active_minus1"`
	NumRefIdxL1DefaultActiveMinus1 uint8 `json:"num_ref_idx_l1_default_active_minus1"`
	PpsBetaOffsetDiv2              int8  `json:"pps_beta_offset_div2,omitempty"`
	PpsTcOffsetDiv2                int8  `json:"pps_tc_offset_div2,omitempty"`
	NumExtraSliceHeaderBits        uint8 `json:"num_extra_slice_header_bits,omitempty"`
}

// MinCbSize MinCbSizeY
func (p *PictureParams) MinCbSize() int {
	return 1 << (uint(p.Log2MinLumaCodingBlockSizeMinus3) + 3)
}

// CodedWidth 宽度按 MinCbSizeY 向上对齐
func (p *PictureParams) CodedWidth() int {
	return alignUp(int(p.PicWidthInLumaSamples), p.MinCbSize())
}

// CodedHeight 高度按 MinCbSizeY 向上对齐
func (p *PictureParams) CodedHeight() int {
	return alignUp(int(p.PicHeightInLumaSamples), p.MinCbSize())
}

// LumaPixels 亮度样本总数
func (p *PictureParams) LumaPixels() int {
	return int(p.PicWidthInLumaSamples) * int(p.PicHeightInLumaSamples)
}

// BitDepth 亮度位深
func (p *PictureParams) BitDepth() int {
	return int(p.BitDepthLumaMinus8) + 8
}

func alignUp(v, align int) int {
	return (v + align - 1) / align * align
}
