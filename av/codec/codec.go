// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

import "errors"

// ErrParamsType 传入的图像参数类型与编码器不匹配
var ErrParamsType = errors.New("codec: picture parameters type mismatch")

// Display 调用方声明的显示尺寸，0 表示未声明
type Display struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Synthesizer 参数集合成能力.
// 需要参数集的编码 (H.264/HEVC) 由图像参数重建头部 NAL；
// 按帧组织的编码 (VP8/VP9) 直接透传负载.
type Synthesizer interface {
	// NeedsHeaders 是否需要在关键帧前插入参数集
	NeedsHeaders() bool
	// SynthesizeHeaders 由图像参数生成参数集，相同输入产生完全相同的字节
	SynthesizeHeaders(params interface{}, display Display) (*VideoMeta, error)
	// IsKeySlice 判断片 NAL 是否为关键图像 (IDR/CRA)
	IsKeySlice(nal []byte) bool
	// IsParameterSet 判断 NAL 是否为参数集
	IsParameterSet(nal []byte) bool
}

// FrameSynthesizer 按帧组织的编码，无参数集
type FrameSynthesizer struct {
	Name string
}

var _ Synthesizer = FrameSynthesizer{}

// NeedsHeaders .
func (FrameSynthesizer) NeedsHeaders() bool { return false }

// SynthesizeHeaders .
func (s FrameSynthesizer) SynthesizeHeaders(params interface{}, display Display) (*VideoMeta, error) {
	return &VideoMeta{Codec: s.Name, Width: display.Width, Height: display.Height,
		CodedWidth: display.Width, CodedHeight: display.Height, BitDepth: 8, ChromaFormat: 1}, nil
}

// IsKeySlice .
func (FrameSynthesizer) IsKeySlice(nal []byte) bool { return false }

// IsParameterSet .
func (FrameSynthesizer) IsParameterSet(nal []byte) bool { return false }
