// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/cnotch/v4l2dec/av/codec/h264"
	"github.com/cnotch/v4l2dec/av/codec/hevc"
	"github.com/cnotch/v4l2dec/config"
	"github.com/cnotch/v4l2dec/decoder"
	"github.com/cnotch/v4l2dec/device/simdev"
	"github.com/cnotch/v4l2dec/provider/backend"
	"github.com/cnotch/v4l2dec/stats"
	"golang.org/x/sync/errgroup"
)

// 每个会话轮流使用的表面数
const benchSurfaces = 4

// benchOptions 压测参数
type benchOptions struct {
	Sessions int
	Pictures int
	Profile  decoder.Profile
	Width    int
	Height   int
	Mode     simdev.Mode
	Context  decoder.ContextOptions
}

// benchResult 压测结果
type benchResult struct {
	Elapsed time.Duration
	Flow    stats.FlowSample
}

// runBench bench [-sessions N] [-pictures M] [-profile H264High] [-width W] [-height H] [-mode normal]
func runBench(w io.Writer, devices backend.Provider, args []string) error {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	fs.SetOutput(w)
	sessions := fs.Int("sessions", 4, "number of concurrent decode sessions")
	pictures := fs.Int("pictures", 100, "pictures decoded by each session")
	profileName := fs.String("profile", "H264High", "profile of the synthetic stream")
	width := fs.Int("width", 1280, "picture width")
	height := fs.Int("height", 720, "picture height")
	modeName := fs.String("mode", "normal", "simulated device mode")
	if err := fs.Parse(args); err != nil {
		return err
	}

	profile, err := decoder.ParseProfile(*profileName)
	if err != nil {
		return err
	}
	mode, err := simdev.ParseMode(*modeName)
	if err != nil {
		return err
	}
	if *sessions <= 0 || *pictures <= 0 || *width <= 0 || *height <= 0 {
		return fmt.Errorf("%w: counts and sizes must be positive", errUsage)
	}

	dc := config.Decoder()
	res, err := bench(context.Background(), benchOptions{
		Sessions: *sessions,
		Pictures: *pictures,
		Profile:  profile,
		Width:    *width,
		Height:   *height,
		Mode:     mode,
		Context:  dc.ContextOptions(config.Logger("bench")),
	})
	if err != nil {
		return err
	}

	f := res.Flow
	fmt.Fprintf(w, "%s %dx%d, %d sessions x %d pictures in %v\n",
		profile, *width, *height, *sessions, *pictures, res.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "in:  %d pictures, %d bytes\n", f.InPictures, f.InBytes)
	fmt.Fprintf(w, "out: %d frames, %d bytes, %.1f fps\n",
		f.OutFrames, f.OutBytes, float64(f.OutFrames)/res.Elapsed.Seconds())
	fmt.Fprintf(w, "tryagain: %d, dropped: %d\n", f.TryAgain, f.Dropped)
	return nil
}

// bench 以多个模拟会话并发解码合成图像
func bench(ctx context.Context, opts benchOptions) (benchResult, error) {
	params := sampleParams(opts.Profile, opts.Width, opts.Height)
	slice := sampleSlice(opts.Profile)
	if slice == nil {
		return benchResult{}, fmt.Errorf("%w: %s", decoder.ErrUnsupportedProfile, opts.Profile)
	}

	start := time.Now()
	flow := stats.NewFlow()
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Sessions; i++ {
		g.Go(func() error {
			return benchSession(ctx, opts, params, slice, flow)
		})
	}
	err := g.Wait()
	return benchResult{Elapsed: time.Since(start), Flow: flow.GetSample()}, err
}

func benchSession(ctx context.Context, opts benchOptions, params interface{}, slice []byte, flow stats.Flow) error {
	dev := simdev.New(simdev.Options{Mode: opts.Mode, Width: opts.Width, Height: opts.Height})
	c, err := decoder.NewContext(dev, opts.Profile, opts.Width, opts.Height, opts.Context)
	if err != nil {
		return err
	}
	defer c.Close()

	surfaces := make([]*decoder.Surface, benchSurfaces)
	for i := range surfaces {
		surfaces[i] = decoder.NewSurface(opts.Width, opts.Height)
	}
	frags := []decoder.SliceFragment{{Offset: 0, Size: len(slice)}}

	for i := 0; i < opts.Pictures; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		s := surfaces[i%len(surfaces)]
		if err := c.BeginPicture(s); err != nil {
			return err
		}
		if params != nil {
			if err := c.SubmitParameters(params); err != nil {
				return err
			}
		}
		if err := c.SubmitSlices(slice, frags); err != nil {
			return err
		}

		before := c.Session().Flow().GetSample()
		err := c.EndPicture(ctx)
		if errors.Is(err, decoder.ErrTryAgain) {
			flow.AddTryAgain()
			continue
		}
		if err != nil {
			return err
		}
		if err := c.Sync(s); err != nil {
			return err
		}
		after := c.Session().Flow().GetSample()
		flow.AddIn(after.InBytes - before.InBytes)
		if frame, ok := s.Frame(); ok {
			flow.AddOut(int64(frame.BytesUsed))
		}
	}
	return nil
}

// sampleParams 生成与 profile 匹配的典型图像参数，按帧组织的编码返回 nil
func sampleParams(profile decoder.Profile, width, height int) interface{} {
	switch profile {
	case decoder.ProfileH264ConstrainedBaseline, decoder.ProfileH264Main, decoder.ProfileH264High:
		p := &h264.PictureParams{
			PictureWidthInMbsMinus1:  uint16((width+15)/16 - 1),
			PictureHeightInMbsMinus1: uint16((height+15)/16 - 1),
			NumRefFrames:             1,
			SeqFields: h264.SeqFields{
				ChromaFormatIdc:        1,
				FrameMbsOnlyFlag:       1,
				Direct8x8InferenceFlag: 1,
				PicOrderCntType:        2,
			},
			PicFields: h264.PicFields{
				DeblockingFilterControlPresentFlag: 1,
			},
		}
		if profile != decoder.ProfileH264ConstrainedBaseline {
			p.NumRefFrames = 4
			p.PicFields.EntropyCodingModeFlag = 1
		}
		if profile == decoder.ProfileH264High {
			p.PicFields.Transform8x8ModeFlag = 1
		}
		return p
	case decoder.ProfileHEVCMain, decoder.ProfileHEVCMain10:
		p := &hevc.PictureParams{
			PicWidthInLumaSamples:  uint16((width + 7) &^ 7),
			PicHeightInLumaSamples: uint16((height + 7) &^ 7),
			PicFields: hevc.PicFields{
				ChromaFormatIdc:                      1,
				AmpEnabledFlag:                       1,
				StrongIntraSmoothingEnabledFlag:      1,
				PpsLoopFilterAcrossSlicesEnabledFlag: 1,
			},
			SpsMaxDecPicBufferingMinus1:       4,
			Log2DiffMaxMinLumaCodingBlockSize: 3,
			Log2DiffMaxMinTransformBlockSize:  3,
			MaxTransformHierarchyDepthIntra:   1,
			MaxTransformHierarchyDepthInter:   1,
			SliceParsingFields: hevc.SliceParsingFields{
				SpsTemporalMvpEnabledFlag:       1,
				SampleAdaptiveOffsetEnabledFlag: 1,
			},
			Log2MaxPicOrderCntLsbMinus4: 4,
		}
		if profile == decoder.ProfileHEVCMain10 {
			p.BitDepthLumaMinus8 = 2
			p.BitDepthChromaMinus8 = 2
		}
		return p
	}
	return nil
}

// sampleSlice 关键图像的片数据（不含起始码）
func sampleSlice(profile decoder.Profile) []byte {
	desc, ok := decoder.LookupProfile(profile)
	if !ok {
		return nil
	}
	switch desc.Name {
	case "H264":
		return []byte{0x65, 0x88, 0x84, 0x00, 0x33, 0xff}
	case "H265":
		return []byte{0x26, 0x01, 0xaf, 0x06, 0xb8, 0x63}
	case "VP8":
		return []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x00, 0x05}
	case "VP9":
		return []byte{0x82, 0x49, 0x83, 0x42, 0x00, 0x04, 0xf0}
	}
	return nil
}
