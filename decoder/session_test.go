// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cnotch/v4l2dec/device"
	"github.com/cnotch/v4l2dec/device/simdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryPolicy{MaxAttempts: 5, Interval: time.Millisecond}

func testOptions() SessionOptions {
	return SessionOptions{
		Width:          64,
		Height:         32,
		OutputBuffers:  2,
		CaptureBuffers: 3,
		BitstreamSize:  1024,
		SlotRetry:      fastRetry,
		EventRetry:     fastRetry,
	}
}

func openTestSession(t *testing.T, opts simdev.Options) (*Session, *simdev.Device) {
	t.Helper()
	dev := simdev.New(opts)
	desc, ok := LookupProfile(ProfileH264High)
	require.True(t, ok)
	s, err := OpenSession(dev, desc, testOptions())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, dev
}

var picture = []byte{0, 0, 1, 0x65, 0x88, 0x84, 0x00, 0x33}

func TestSession_FirstSubmitBuildsCapture(t *testing.T) {
	s, _ := openTestSession(t, simdev.Options{})

	_, err := s.Retrieve()
	assert.True(t, errors.Is(err, ErrNotReady))

	require.NoError(t, s.Submit(context.Background(), picture))
	info := s.Info()
	assert.True(t, info.OutputStreaming)
	assert.True(t, info.CaptureStreaming)
	assert.True(t, info.SourceChanged)
	assert.Equal(t, 3, info.Capture.Size)
	assert.Equal(t, int64(len(picture)), info.Flow.InBytes)

	frame, err := s.Retrieve()
	require.NoError(t, err)
	assert.Equal(t, 0, frame.Index)
	assert.Equal(t, 64, frame.Width)
	assert.Equal(t, 32, frame.Height)
	assert.Equal(t, device.PixFmtNV12, frame.PixelFormat)
	assert.Equal(t, PlaneLayout{Offset: 64 * 32, Pitch: 64}, frame.Planes[1])
	assert.Equal(t, 64*32*3/2, frame.BytesUsed)

	// 空队列不阻塞
	start := time.Now()
	_, err = s.Retrieve()
	assert.True(t, errors.Is(err, ErrNotReady))
	assert.True(t, time.Since(start) < 100*time.Millisecond)

	info = s.Info()
	assert.Equal(t, 1, info.Capture.Decoded)
	assert.Equal(t, 2, info.Capture.Queued)

	require.NoError(t, s.Release(frame.Index))
	info = s.Info()
	assert.Equal(t, 0, info.Capture.Decoded)
	assert.Equal(t, 3, info.Capture.Queued)
}

func TestSession_NoEventStillBuildsCapture(t *testing.T) {
	s, _ := openTestSession(t, simdev.Options{Mode: simdev.ModeNoEvent})

	start := time.Now()
	require.NoError(t, s.Submit(context.Background(), picture))
	assert.True(t, time.Since(start) >= 4*time.Millisecond)

	info := s.Info()
	assert.False(t, info.SourceChanged)
	assert.True(t, info.CaptureStreaming)
	assert.Contains(t, info.CaptureFormat, "YU12")

	frame, err := s.Retrieve()
	require.NoError(t, err)
	assert.Equal(t, device.PixFmtYUV420, frame.PixelFormat)
}

func TestSession_InfoDuringSourceChangeWait(t *testing.T) {
	dev := simdev.New(simdev.Options{Mode: simdev.ModeNoEvent, Width: 64, Height: 32})
	desc, _ := LookupProfile(ProfileH264High)
	opts := testOptions()
	opts.EventRetry = RetryPolicy{MaxAttempts: 40, Interval: 10 * time.Millisecond}
	s, err := OpenSession(dev, desc, opts)
	require.NoError(t, err)
	defer s.Close()

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), picture) }()

	// 等待事件期间状态查询立即返回，此时 CAPTURE 尚未建立
	require.Eventually(t, func() bool { return s.Info().OutputStreaming }, 300*time.Millisecond, time.Millisecond)
	assert.False(t, s.Info().CaptureStreaming)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not return")
	}
	assert.True(t, s.Info().CaptureStreaming)
}

func TestSession_CloseDuringSourceChangeWait(t *testing.T) {
	dev := simdev.New(simdev.Options{Mode: simdev.ModeNoEvent, Width: 64, Height: 32})
	desc, _ := LookupProfile(ProfileH264High)
	opts := testOptions()
	opts.EventRetry = RetryPolicy{MaxAttempts: 40, Interval: 10 * time.Millisecond}
	s, err := OpenSession(dev, desc, opts)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), picture) }()
	require.Eventually(t, func() bool { return s.Info().OutputStreaming }, 300*time.Millisecond, time.Millisecond)
	require.NoError(t, s.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not return")
	}
}

func TestSession_BusyDeviceReturnsTryAgain(t *testing.T) {
	s, _ := openTestSession(t, simdev.Options{Mode: simdev.ModeBusy})

	require.NoError(t, s.Submit(context.Background(), picture))
	require.NoError(t, s.Submit(context.Background(), picture))

	start := time.Now()
	err := s.Submit(context.Background(), picture)
	assert.True(t, errors.Is(err, ErrTryAgain))
	assert.True(t, time.Since(start) < time.Second)
	assert.Equal(t, int64(1), s.Flow().GetSample().TryAgain)

	// 瞬时错误不影响会话
	assert.Empty(t, s.Info().Error)
}

func TestSession_BusyDeviceRecovers(t *testing.T) {
	dev := simdev.New(simdev.Options{Mode: simdev.ModeBusy})
	desc, _ := LookupProfile(ProfileH264Main)
	opts := testOptions()
	opts.SlotRetry = RetryPolicy{MaxAttempts: 200, Interval: time.Millisecond}
	s, err := OpenSession(dev, desc, opts)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Submit(context.Background(), picture))
	require.NoError(t, s.Submit(context.Background(), picture))

	time.AfterFunc(20*time.Millisecond, func() { dev.SetMode(simdev.ModeNormal) })
	assert.NoError(t, s.Submit(context.Background(), picture))
}

func TestSession_PayloadTooLarge(t *testing.T) {
	s, _ := openTestSession(t, simdev.Options{})
	assert.Equal(t, 1024, s.SlotSize())

	err := s.Submit(context.Background(), make([]byte, 2048))
	assert.True(t, errors.Is(err, ErrPayloadTooLarge))

	info := s.Info()
	assert.Equal(t, 2, info.Output.Free)
	assert.False(t, info.OutputStreaming)
	assert.Equal(t, int64(1), info.Flow.Dropped)

	// 后续提交不受影响
	require.NoError(t, s.Submit(context.Background(), make([]byte, 1024)))
}

func TestSession_ReleaseErrors(t *testing.T) {
	s, _ := openTestSession(t, simdev.Options{})
	require.NoError(t, s.Submit(context.Background(), picture))

	assert.True(t, errors.Is(s.Release(99), ErrInvalidSlot))
	assert.True(t, errors.Is(s.Release(1), ErrSlotNotOwned))
	_, err := s.ExportHandle(1)
	assert.True(t, errors.Is(err, ErrSlotNotOwned))

	frame, err := s.Retrieve()
	require.NoError(t, err)
	require.NoError(t, s.Release(frame.Index))
	assert.True(t, errors.Is(s.Release(frame.Index), ErrSlotNotOwned))
}

func TestSession_ExportHandle(t *testing.T) {
	s, dev := openTestSession(t, simdev.Options{})
	require.NoError(t, s.Submit(context.Background(), picture))
	frame, err := s.Retrieve()
	require.NoError(t, err)

	exp, err := s.ExportHandle(frame.Index)
	require.NoError(t, err)
	assert.True(t, exp.FD >= 0)
	assert.Equal(t, "NV12", exp.FourCC)
	assert.Equal(t, 64*32*3/2, exp.Size)
	assert.Equal(t, "R8", exp.Layers[0].DrmFormat)
	assert.Equal(t, "RG88", exp.Layers[1].DrmFormat)
	assert.Equal(t, 64*32, exp.Layers[1].Offset)
	assert.Equal(t, 64, exp.Layers[1].Pitch)

	again, err := s.ExportHandle(frame.Index)
	require.NoError(t, err)
	assert.Equal(t, exp.FD, again.FD)
	assert.Equal(t, 1, dev.Stats().OpenExports)

	require.NoError(t, s.Release(frame.Index))
	assert.Equal(t, 0, dev.Stats().OpenExports)
}

func TestSession_ReadFrame(t *testing.T) {
	s, _ := openTestSession(t, simdev.Options{})
	require.NoError(t, s.Submit(context.Background(), picture))
	frame, err := s.Retrieve()
	require.NoError(t, err)

	_, err = s.ReadFrame(frame.Index, make([]byte, 10))
	assert.Equal(t, io.ErrShortBuffer, err)

	img := make([]byte, 64*32*3/2)
	n, err := s.ReadFrame(frame.Index, img)
	require.NoError(t, err)
	assert.Equal(t, len(img), n)
	assert.Equal(t, byte(16), img[0])
	assert.Equal(t, byte(16), img[64*32-1])
	assert.Equal(t, byte(128), img[64*32])
	assert.Equal(t, byte(128), img[len(img)-1])
}

func TestSession_PaddedCaptureLayout(t *testing.T) {
	dev := simdev.New(simdev.Options{})
	desc, _ := LookupProfile(ProfileH264High)
	opts := testOptions()
	opts.Width, opts.Height = 100, 40
	s, err := OpenSession(dev, desc, opts)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Submit(context.Background(), picture))
	frame, err := s.Retrieve()
	require.NoError(t, err)
	assert.Equal(t, 100, frame.Width)
	assert.Equal(t, 40, frame.Height)
	// 设备按 16 对齐：跨度 112，亮度平面 48 行
	assert.Equal(t, [2]PlaneLayout{
		{Plane: 0, Offset: 0, Pitch: 112},
		{Plane: 0, Offset: 112 * 48, Pitch: 112},
	}, frame.Planes)

	exp, err := s.ExportHandle(frame.Index)
	require.NoError(t, err)
	assert.Equal(t, 112*48*3/2, exp.Size)
	assert.Equal(t, frame.Planes[0], exp.Layers[0].PlaneLayout)
	assert.Equal(t, frame.Planes[1], exp.Layers[1].PlaneLayout)
	assert.Equal(t, exp.FD, exp.Layers[0].FD)
	assert.Equal(t, exp.FD, exp.Layers[1].FD)
	assert.Equal(t, 1, dev.Stats().OpenExports)

	img := make([]byte, 100*40*3/2)
	n, err := s.ReadFrame(frame.Index, img)
	require.NoError(t, err)
	assert.Equal(t, len(img), n)
	for i, b := range img[:100*40] {
		require.Equal(t, byte(16), b, "luma byte %d", i)
	}
	for i, b := range img[100*40:] {
		require.Equal(t, byte(128), b, "chroma byte %d", i)
	}
}

func TestSession_MultiPlaneLayout(t *testing.T) {
	s := &Session{
		opts: SessionOptions{Width: 1920, Height: 1080},
		captureFormat: device.Format{
			Width: 1920, Height: 1088, PixelFormat: device.PixFmtNV12, NumPlanes: 2,
			Planes: [device.MaxPlanes]device.PlaneFormat{
				{SizeImage: 2048 * 1088, BytesPerLine: 2048},
				{SizeImage: 2048 * 544, BytesPerLine: 2048},
			},
		},
	}
	planes, size := s.layout()
	assert.Equal(t, PlaneLayout{Plane: 0, Offset: 0, Pitch: 2048}, planes[0])
	assert.Equal(t, PlaneLayout{Plane: 1, Offset: 0, Pitch: 2048}, planes[1])
	assert.Equal(t, 2048*1088+2048*544, size)

	// 单平面且 1080 行显示时，色度从 1088 行之后开始
	s.captureFormat.NumPlanes = 1
	s.captureFormat.Planes[0].SizeImage = 2048 * 1088 * 3 / 2
	planes, size = s.layout()
	assert.Equal(t, PlaneLayout{Plane: 0, Offset: 2048 * 1088, Pitch: 2048}, planes[1])
	assert.Equal(t, 2048*1088*3/2, size)
}

func TestSession_ClosePartial(t *testing.T) {
	dev := simdev.New(simdev.Options{})
	desc, _ := LookupProfile(ProfileHEVCMain)
	s, err := OpenSession(dev, desc, testOptions())
	require.NoError(t, err)
	assert.Same(t, s, Get(s.ID()))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, dev.Stats().Closed)
	assert.Nil(t, Get(s.ID()))

	assert.True(t, errors.Is(s.Submit(context.Background(), picture), ErrSessionClosed))
	_, err = s.Retrieve()
	assert.True(t, errors.Is(err, ErrSessionClosed))
}

func TestSession_CloseStreaming(t *testing.T) {
	s, dev := openTestSession(t, simdev.Options{})
	require.NoError(t, s.Submit(context.Background(), picture))
	frame, err := s.Retrieve()
	require.NoError(t, err)
	_, err = s.ExportHandle(frame.Index)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	st := dev.Stats()
	assert.True(t, st.Closed)
	assert.False(t, st.OutputStreaming)
	assert.False(t, st.CapStreaming)
	assert.Equal(t, 0, st.OpenExports)
}

func TestOpenSession_Failures(t *testing.T) {
	tests := []struct {
		name string
		op   string
	}{
		{"s_fmt", simdev.OpSetFormat},
		{"reqbufs", simdev.OpReqBufs},
		{"querybuf", simdev.OpQueryBuf},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := Count()
			dev := simdev.New(simdev.Options{FailOn: map[string]bool{tt.op: true}})
			desc, _ := LookupProfile(ProfileH264Main)
			s, err := OpenSession(dev, desc, testOptions())
			assert.Nil(t, s)
			assert.True(t, errors.Is(err, ErrDeviceFailure))
			assert.True(t, errors.Is(err, simdev.ErrInjected))
			assert.True(t, dev.Stats().Closed)
			assert.Equal(t, before, Count())
		})
	}

	dev := simdev.New(simdev.Options{})
	_, err := OpenSession(dev, nil, testOptions())
	assert.True(t, errors.Is(err, ErrUnsupportedProfile))
	assert.True(t, dev.Stats().Closed)
}

func TestSession_SubscribeFailureTolerated(t *testing.T) {
	s, _ := openTestSession(t, simdev.Options{FailOn: map[string]bool{simdev.OpSubscribe: true}, Width: 64, Height: 32})
	require.NoError(t, s.Submit(context.Background(), picture))
	assert.False(t, s.Info().SourceChanged)
	assert.True(t, s.Info().CaptureStreaming)
}

func TestSession_StreamOnFailureIsFatal(t *testing.T) {
	s, _ := openTestSession(t, simdev.Options{FailOn: map[string]bool{simdev.OpStreamOn: true}})

	err := s.Submit(context.Background(), picture)
	assert.True(t, errors.Is(err, ErrDeviceFailure))
	assert.True(t, errors.Is(err, simdev.ErrInjected))

	err = s.Submit(context.Background(), picture)
	assert.True(t, errors.Is(err, ErrDeviceFailure))
	assert.NotEmpty(t, s.Info().Error)
}

func TestSession_ConcurrentRetrieve(t *testing.T) {
	s, _ := openTestSession(t, simdev.Options{})
	const pictures = 20

	var wg sync.WaitGroup
	got := 0
	wg.Add(1)
	go func() {
		defer wg.Done()
		deadline := time.Now().Add(5 * time.Second)
		for got < pictures && time.Now().Before(deadline) {
			frame, err := s.Retrieve()
			if err != nil {
				time.Sleep(time.Millisecond)
				continue
			}
			got++
			s.Release(frame.Index)
		}
	}()

	for i := 0; i < pictures; i++ {
		require.NoError(t, s.Submit(context.Background(), picture))
	}
	wg.Wait()
	assert.Equal(t, pictures, got)
	assert.Equal(t, int64(pictures), s.Flow().GetSample().OutFrames)
}

func TestRegistry(t *testing.T) {
	s, _ := openTestSession(t, simdev.Options{})
	found := false
	for _, info := range Infos() {
		if info.ID == s.ID().String() {
			found = true
			assert.Equal(t, "H264", info.Codec)
			assert.Equal(t, "sim://decoder", info.Device)
		}
	}
	assert.True(t, found)

	assert.Equal(t, 0, CloseIdle(time.Hour))
	assert.True(t, CloseIdle(0) >= 1)
	assert.Nil(t, Get(s.ID()))
}
