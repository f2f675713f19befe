// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

import "fmt"

// VideoMeta 视频元数据，由参数集合成器根据图像参数推导得到
type VideoMeta struct {
	Codec        string `json:"codec"`
	Profile      int    `json:"profile"`
	Level        int    `json:"level"`
	HighTier     bool   `json:"hightier,omitempty"`
	Width        int    `json:"width,omitempty"`  // 显示宽度
	Height       int    `json:"height,omitempty"` // 显示高度
	CodedWidth   int    `json:"codedwidth,omitempty"`
	CodedHeight  int    `json:"codedheight,omitempty"`
	BitDepth     int    `json:"bitdepth,omitempty"`
	ChromaFormat int    `json:"chromaformat"`
	Vps          []byte `json:"-"`
	Sps          []byte `json:"-"`
	Pps          []byte `json:"-"`
}

// ParameterSets 按标准规定的顺序 (VPS、SPS、PPS) 返回非空的参数集 NAL.
func (vm *VideoMeta) ParameterSets() [][]byte {
	pss := make([][]byte, 0, 3)
	for _, ps := range [][]byte{vm.Vps, vm.Sps, vm.Pps} {
		if len(ps) > 0 {
			pss = append(pss, ps)
		}
	}
	return pss
}

// String 返回简短描述，用于日志
func (vm *VideoMeta) String() string {
	if vm == nil {
		return "<nil>"
	}
	tier := ""
	if vm.HighTier {
		tier = " high-tier"
	}
	return fmt.Sprintf("%s %dx%d (coded %dx%d) profile=%d level=%d%s %dbit",
		vm.Codec, vm.Width, vm.Height, vm.CodedWidth, vm.CodedHeight,
		vm.Profile, vm.Level, tier, vm.BitDepth)
}
