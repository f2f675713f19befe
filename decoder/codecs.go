// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"strings"

	"github.com/cnotch/v4l2dec/av/codec"
	"github.com/cnotch/v4l2dec/av/codec/h264"
	"github.com/cnotch/v4l2dec/av/codec/hevc"
	"github.com/cnotch/v4l2dec/device"
	"github.com/cnotch/xlog"
)

// Descriptor 编码描述：OUTPUT 队列像素格式、profile 及参数集合成器
type Descriptor struct {
	Name      string
	FourCC    device.FourCC
	Profiles  []Profile
	newSynth  func(logger *xlog.Logger) codec.Synthesizer
	newParams func() interface{}
}

// NewSynthesizer 创建该编码的参数集合成器
func (d *Descriptor) NewSynthesizer(logger *xlog.Logger) codec.Synthesizer {
	return d.newSynth(logger)
}

// NewParams 返回该编码图像参数记录的零值指针，按帧组织的编码返回 nil
func (d *Descriptor) NewParams() interface{} {
	if d.newParams == nil {
		return nil
	}
	return d.newParams()
}

// Supports 是否支持指定 profile
func (d *Descriptor) Supports(p Profile) bool {
	for _, v := range d.Profiles {
		if v == p {
			return true
		}
	}
	return false
}

func frameSynth(name string) func(*xlog.Logger) codec.Synthesizer {
	return func(*xlog.Logger) codec.Synthesizer {
		return codec.FrameSynthesizer{Name: name}
	}
}

var descriptors = []*Descriptor{
	{
		Name:     "H264",
		FourCC:   device.PixFmtH264,
		Profiles: []Profile{ProfileH264ConstrainedBaseline, ProfileH264Main, ProfileH264High},
		newSynth: func(logger *xlog.Logger) codec.Synthesizer {
			return h264.NewSynthesizer(logger)
		},
		newParams: func() interface{} { return new(h264.PictureParams) },
	},
	{
		Name:     "H265",
		FourCC:   device.PixFmtHEVC,
		Profiles: []Profile{ProfileHEVCMain, ProfileHEVCMain10},
		newSynth: func(logger *xlog.Logger) codec.Synthesizer {
			return hevc.NewSynthesizer(logger)
		},
		newParams: func() interface{} { return new(hevc.PictureParams) },
	},
	{
		Name:     "VP8",
		FourCC:   device.PixFmtVP8,
		Profiles: []Profile{ProfileVP8Version0_3},
		newSynth: frameSynth("VP8"),
	},
	{
		Name:     "VP9",
		FourCC:   device.PixFmtVP9,
		Profiles: []Profile{ProfileVP9Profile0, ProfileVP9Profile2},
		newSynth: frameSynth("VP9"),
	},
}

// Descriptors 返回全部编码描述
func Descriptors() []*Descriptor {
	return append([]*Descriptor(nil), descriptors...)
}

// LookupProfile 按 profile 查找编码描述
func LookupProfile(p Profile) (*Descriptor, bool) {
	for _, d := range descriptors {
		if d.Supports(p) {
			return d, true
		}
	}
	return nil, false
}

// LookupFourCC 按 OUTPUT 像素格式查找编码描述
func LookupFourCC(f device.FourCC) (*Descriptor, bool) {
	for _, d := range descriptors {
		if d.FourCC == f {
			return d, true
		}
	}
	return nil, false
}

// LookupName 按编码名查找，H265 也可写作 HEVC
func LookupName(name string) (*Descriptor, bool) {
	if strings.EqualFold(name, "HEVC") {
		name = "H265"
	}
	for _, d := range descriptors {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return nil, false
}

// 设备压缩格式到可声明 profile 的映射
var probeProfiles = map[device.FourCC][]Profile{
	device.PixFmtH264:      {ProfileH264ConstrainedBaseline, ProfileH264Main, ProfileH264High},
	device.PixFmtH264Slice: {ProfileH264ConstrainedBaseline, ProfileH264Main, ProfileH264High},
	device.PixFmtHEVC:      {ProfileHEVCMain, ProfileHEVCMain10},
	device.PixFmtVP8:       {ProfileVP8Version0_3},
	device.PixFmtVP9:       {ProfileVP9Profile0, ProfileVP9Profile2},
	device.PixFmtAV1:       {ProfileAV1Profile0},
	device.PixFmtMPEG2:     {ProfileMPEG2Main},
	device.PixFmtMPEG4:     {ProfileMPEG4AdvancedSimple},
}

// Probe 枚举设备 OUTPUT 队列支持的压缩格式，返回对应的 profile.
// AV1/MPEG2/MPEG4 只做声明，没有对应的编码描述.
func Probe(dev device.Device) ([]Profile, error) {
	descs, err := dev.EnumFormats(device.BufTypeOutput)
	if err != nil {
		return nil, err
	}

	var profiles []Profile
	seen := make(map[Profile]bool)
	for _, desc := range descs {
		for _, p := range probeProfiles[desc.PixelFormat] {
			if !seen[p] {
				seen[p] = true
				profiles = append(profiles, p)
			}
		}
	}
	return profiles, nil
}
