// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hevc

import "github.com/cnotch/v4l2dec/av/codec"

// MetadataIsReady 从 SPS 补全视频元数据中缺失的尺寸
func MetadataIsReady(vm *codec.VideoMeta) bool {
	if len(vm.Vps) == 0 || len(vm.Sps) == 0 || len(vm.Pps) == 0 {
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
		vm.Profile = int(rawsps.ProfileTierLevel.GeneralProfileIdc)
		vm.Level = int(rawsps.ProfileTierLevel.GeneralLevelIdc)
		vm.HighTier = rawsps.ProfileTierLevel.GeneralTierFlag == 1
	}
	return true
}

// NalType .
func NalType(nt byte) byte {
	return (nt >> 1) & 0x3f
}

// IsVps .
func IsVps(nt byte) bool {
	return NalType(nt) == NalVps
}

// IsSps .
func IsSps(nt byte) bool {
	return NalType(nt) == NalSps
}

// IsPps .
func IsPps(nt byte) bool {
	return NalType(nt) == NalPps
}

// IsParameterSet VPS/SPS/PPS
func IsParameterSet(nt byte) bool {
	t := NalType(nt)
	return t >= NalVps && t <= NalPps
}

// IsIrapKey IDR 或 CRA 片
func IsIrapKey(nt byte) bool {
	t := NalType(nt)
	return t >= NalIdrWRadl && t <= NalCraNut
}
