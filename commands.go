// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/cnotch/v4l2dec/av/codec"
	"github.com/cnotch/v4l2dec/av/codec/h264"
	"github.com/cnotch/v4l2dec/av/codec/hevc"
	"github.com/cnotch/v4l2dec/config"
	"github.com/cnotch/v4l2dec/decoder"
	"github.com/cnotch/v4l2dec/provider/backend"
	"github.com/cnotch/v4l2dec/utils"
)

var errUsage = errors.New("invalid arguments")

// runProbe 打开设备并列出声明的 profile
func runProbe(w io.Writer, devices backend.Provider, args []string) error {
	dev, err := devices.Open(config.Logger("probe"))
	if err != nil {
		return err
	}
	defer dev.Close()

	caps := dev.Capability()
	fmt.Fprintf(w, "device:  %s\ndriver:  %s\ncard:    %s\n", dev.Path(), caps.Driver, caps.Card)

	profiles, err := decoder.Probe(dev)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		name := "-"
		if desc, ok := decoder.LookupProfile(p); ok {
			name = desc.Name
		}
		fmt.Fprintf(w, "  %-24s %2d  %s\n", p, int(p), name)
	}
	return nil
}

// runSynth synth [-codec h264] [-width W] [-height H] [-o out] params.json
func runSynth(w io.Writer, devices backend.Provider, args []string) error {
	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	fs.SetOutput(w)
	codecName := fs.String("codec", "h264", "codec of the parameter record (h264, h265)")
	width := fs.Int("width", 0, "display width, 0 uses the coded width")
	height := fs.Int("height", 0, "display height, 0 uses the coded height")
	out := fs.String("o", "", "write the Annex-B parameter sets to this file")
	metaOut := fs.String("meta", "", "write the derived stream metadata as JSON to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: synth needs one parameter file", errUsage)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	meta, err := synthesize(*codecName, data, codec.Display{Width: *width, Height: *height})
	if err != nil {
		return err
	}

	fmt.Fprintln(w, meta)
	var stream []byte
	for _, ps := range meta.ParameterSets() {
		fmt.Fprintf(w, "  %s\n", hex.EncodeToString(ps))
		stream = append(stream, utils.StartCode...)
		stream = append(stream, ps...)
	}
	if *metaOut != "" {
		if err := utils.EncodeJSONFile(*metaOut, meta); err != nil {
			return err
		}
	}
	if *out != "" {
		return os.WriteFile(*out, stream, 0644)
	}
	return nil
}

// synthesize 把 JSON 参数记录解码为对应编码的参数并合成参数集
func synthesize(codecName string, data []byte, display codec.Display) (*codec.VideoMeta, error) {
	desc, ok := decoder.LookupName(codecName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", decoder.ErrUnsupportedProfile, codecName)
	}
	params := desc.NewParams()
	if params == nil {
		return nil, fmt.Errorf("%s is frame based and has no parameter sets", desc.Name)
	}
	if err := json.Unmarshal(data, params); err != nil {
		return nil, err
	}
	return desc.NewSynthesizer(config.Logger("synth")).SynthesizeHeaders(params, display)
}

// runInspect inspect [-codec h264] stream.264
func runInspect(w io.Writer, devices backend.Provider, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(w)
	codecName := fs.String("codec", "h264", "codec of the stream (h264, h265)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: inspect needs one stream file", errUsage)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	desc, ok := decoder.LookupName(*codecName)
	if !ok || desc.NewParams() == nil {
		return fmt.Errorf("%w: %s", decoder.ErrUnsupportedProfile, *codecName)
	}
	nals := utils.SplitNalUnits(data)
	if len(nals) == 0 {
		return errors.New("no NAL units found")
	}
	for i, nal := range nals {
		if len(nal) == 0 {
			continue
		}
		var line string
		if desc.Name == "H264" {
			line = inspectH264(nal)
		} else {
			line = inspectHEVC(nal)
		}
		fmt.Fprintf(w, "#%-4d %6d bytes  %s\n", i, len(nal), line)
	}
	return nil
}

func inspectH264(nal []byte) string {
	switch {
	case h264.IsSps(nal[0]):
		var sps h264.RawSPS
		if err := sps.Decode(nal); err != nil {
			return "SPS: " + err.Error()
		}
		s := fmt.Sprintf("SPS profile=%d level=%d %dx%d (coded %dx%d) refs=%d",
			sps.ProfileIdc, sps.LevelIdc, sps.Width(), sps.Height(),
			sps.CodedWidth(), sps.CodedHeight(), sps.MaxNumRefFrames)
		// 独立实现交叉校验
		ref, err := avc.ParseSPSNALUnit(nal, true)
		if err != nil {
			return s + " [mp4ff: " + err.Error() + "]"
		}
		if int(ref.Width) != sps.Width() || int(ref.Height) != sps.Height() ||
			int(ref.Profile) != int(sps.ProfileIdc) || int(ref.Level) != int(sps.LevelIdc) {
			return s + fmt.Sprintf(" [mp4ff mismatch: profile=%d level=%d %dx%d]",
				ref.Profile, ref.Level, ref.Width, ref.Height)
		}
		return s + " [mp4ff ok]"
	case h264.IsPps(nal[0]):
		var pps h264.RawPPS
		if err := pps.Decode(nal); err != nil {
			return "PPS: " + err.Error()
		}
		return fmt.Sprintf("PPS id=%d sps=%d cabac=%d transform8x8=%d",
			pps.PicParameterSetID, pps.SeqParameterSetID,
			pps.EntropyCodingModeFlag, pps.Transform8x8ModeFlag)
	case h264.IsIdrSlice(nal[0]):
		return "IDR slice"
	}
	return fmt.Sprintf("nal_unit_type=%d", h264.NalType(nal[0]))
}

func inspectHEVC(nal []byte) string {
	switch {
	case hevc.IsVps(nal[0]):
		var vps hevc.RawVPS
		if err := vps.Decode(nal); err != nil {
			return "VPS: " + err.Error()
		}
		return fmt.Sprintf("VPS id=%d profile=%d level=%d",
			vps.VideoParameterSetID, vps.ProfileTierLevel.GeneralProfileIdc,
			vps.ProfileTierLevel.GeneralLevelIdc)
	case hevc.IsSps(nal[0]):
		var sps hevc.RawSPS
		if err := sps.Decode(nal); err != nil {
			return "SPS: " + err.Error()
		}
		return fmt.Sprintf("SPS profile=%d level=%d %dx%d (coded %dx%d) bitdepth=%d",
			sps.ProfileTierLevel.GeneralProfileIdc, sps.ProfileTierLevel.GeneralLevelIdc,
			sps.Width(), sps.Height(), sps.CodedWidth(), sps.CodedHeight(),
			int(sps.BitDepthLumaMinus8)+8)
	case hevc.IsPps(nal[0]):
		var pps hevc.RawPPS
		if err := pps.Decode(nal); err != nil {
			return "PPS: " + err.Error()
		}
		return fmt.Sprintf("PPS id=%d sps=%d", pps.PicParameterSetID, pps.SeqParameterSetID)
	case hevc.IsIrapKey(nal[0]):
		return "IRAP slice"
	}
	return fmt.Sprintf("nal_unit_type=%d", hevc.NalType(nal[0]))
}
