// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import "github.com/cnotch/v4l2dec/av/codec"

// MetadataIsReady 从 SPS 补全视频元数据中缺失的尺寸
func MetadataIsReady(vm *codec.VideoMeta) bool {
	if len(vm.Sps) == 0 || len(vm.Pps) == 0 {
		return false
	}

	if vm.Width == 0 {
		var rawsps RawSPS
		if err := rawsps.Decode(vm.Sps); err != nil {
			return false
		}
		vm.Width = rawsps.Width()
		vm.Height = rawsps.Height()
		vm.CodedWidth = rawsps.CodedWidth()
		vm.CodedHeight = rawsps.CodedHeight()
		vm.Profile = int(rawsps.ProfileIdc)
		vm.Level = int(rawsps.LevelIdc)
	}
	return true
}

// NalType .
func NalType(nt byte) byte {
	return nt & NalTypeBitmask
}

// IsSps .
func IsSps(nt byte) bool {
	return nt&NalTypeBitmask == NalSps
}

// IsPps .
func IsPps(nt byte) bool {
	return nt&NalTypeBitmask == NalPps
}

// IsIdrSlice .
func IsIdrSlice(nt byte) bool {
	return nt&NalTypeBitmask == NalIdrSlice
}

// IsFillerData .
func IsFillerData(nt byte) bool {
	return nt&NalTypeBitmask == NalFillerData
}
