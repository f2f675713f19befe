// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package annexb

import (
	"bytes"
	"testing"

	"github.com/cnotch/v4l2dec/av/codec"
	"github.com/cnotch/v4l2dec/av/codec/h264"
	"github.com/cnotch/v4l2dec/av/codec/hevc"
	"github.com/cnotch/v4l2dec/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	h264Sps   = []byte{0x67, 0x42, 0xc0, 0x1e, 0xab}
	h264Pps   = []byte{0x68, 0xce, 0x3c, 0x80}
	h264Idr   = []byte{0x65, 0x88, 0x84, 0x00, 0x33}
	h264Idr2  = []byte{0x65, 0x00, 0x11, 0x22}
	h264Slice = []byte{0x41, 0x9a, 0x02, 0x04}

	hevcVps = []byte{0x40, 0x01, 0x0c, 0x01}
	hevcSps = []byte{0x42, 0x01, 0x01, 0x01}
	hevcPps = []byte{0x44, 0x01, 0xc1, 0x72}
	hevcCra = []byte{0x2a, 0x01, 0xaf, 0x05}
	hevcTrl = []byte{0x02, 0x01, 0xd0, 0x09}
)

func annexB(nals ...[]byte) []byte {
	var b []byte
	for _, nal := range nals {
		b = append(b, utils.StartCode...)
		b = append(b, nal...)
	}
	return b
}

func TestAssembler_KeyPictureHeaders(t *testing.T) {
	a := NewAssembler(h264.NewSynthesizer(nil), nil)
	assert.True(t, a.SetHeaders([][]byte{nil, h264Sps, h264Pps}))
	assert.False(t, a.HeadersSent())

	a.BeginPicture()
	assert.Equal(t, StateEmpty, a.State())
	require.NoError(t, a.AppendSlice(h264Idr))
	require.NoError(t, a.AppendSlice(h264Idr2))
	assert.Equal(t, StateAccumulating, a.State())
	got := a.Seal()
	assert.Equal(t, StateSealed, a.State())
	assert.Equal(t, annexB(h264Sps, h264Pps, h264Idr, h264Idr2), got)
	assert.Equal(t, 4, a.NalCount())
	assert.True(t, a.HeadersSent())

	// 参数未变化，第二个关键图像不重发
	a.BeginPicture()
	assert.False(t, a.SetHeaders([][]byte{h264Sps, h264Pps}))
	require.NoError(t, a.AppendSlice(h264Idr))
	assert.Equal(t, annexB(h264Idr), a.Seal())

	// 参数变化后重发
	sps2 := append([]byte(nil), h264Sps...)
	sps2[3] = 0x28
	a.BeginPicture()
	assert.True(t, a.SetHeaders([][]byte{sps2, h264Pps}))
	assert.False(t, a.HeadersSent())
	require.NoError(t, a.AppendSlice(h264Slice))
	require.NoError(t, a.AppendSlice(h264Idr))
	assert.Equal(t, annexB(h264Slice, sps2, h264Pps, h264Idr), a.Seal())
}

func TestAssembler_NonKeyFirstPicture(t *testing.T) {
	a := NewAssembler(h264.NewSynthesizer(nil), nil)
	a.SetHeaders([][]byte{h264Sps, h264Pps})
	a.BeginPicture()
	require.NoError(t, a.AppendSlice(h264Slice))
	assert.Equal(t, annexB(h264Slice), a.Seal())
	assert.False(t, a.HeadersSent())
}

func TestAssembler_NoHeadersYet(t *testing.T) {
	a := NewAssembler(h264.NewSynthesizer(nil), nil)
	a.BeginPicture()
	require.NoError(t, a.AppendSlice(h264Idr))
	assert.Equal(t, annexB(h264Idr), a.Seal())
	// 尚无参数集时不置位，之后的关键图像仍会带上参数集
	assert.False(t, a.HeadersSent())
}

func TestAssembler_HevcOrderAndSkip(t *testing.T) {
	a := NewAssembler(hevc.NewSynthesizer(nil), nil)
	a.SetHeaders([][]byte{hevcVps, hevcSps, hevcPps})

	a.BeginPicture()
	// 负载中带起始码的参数集被忽略
	require.NoError(t, a.AppendSlice(annexB(hevcSps)))
	require.NoError(t, a.AppendSlice(hevcCra))
	require.NoError(t, a.AppendSlice(append([]byte{0, 0, 0, 1}, hevcTrl...)))
	assert.Equal(t, annexB(hevcVps, hevcSps, hevcPps, hevcCra, hevcTrl), a.Seal())
	assert.Equal(t, 1, a.Skipped())
}

func TestAssembler_Sealed(t *testing.T) {
	a := NewAssembler(h264.NewSynthesizer(nil), nil)
	a.BeginPicture()
	require.NoError(t, a.AppendSlice(h264Slice))
	sealed := append([]byte(nil), a.Seal()...)
	assert.Equal(t, ErrSealed, a.AppendSlice(h264Slice))
	assert.Equal(t, sealed, a.Bytes())

	a.BeginPicture()
	assert.Equal(t, 0, a.Len())
	assert.NoError(t, a.AppendSlice(h264Slice))
}

func TestAssembler_EmptyPicture(t *testing.T) {
	a := NewAssembler(h264.NewSynthesizer(nil), nil)
	a.BeginPicture()
	require.NoError(t, a.AppendSlice(nil))
	assert.Equal(t, StateEmpty, a.State())
	assert.Empty(t, a.Seal())
}

func TestAssembler_FrameMode(t *testing.T) {
	a := NewAssembler(codec.FrameSynthesizer{Name: "VP9"}, nil)
	assert.True(t, a.FrameMode())
	assert.False(t, a.SetHeaders([][]byte{h264Sps}))

	frame := []byte{0x82, 0x49, 0x83, 0x42, 0x00}
	a.BeginPicture()
	require.NoError(t, a.AppendSlice(frame[:2]))
	require.NoError(t, a.AppendSlice(frame[2:]))
	got := a.Seal()
	assert.Equal(t, frame, got)
	assert.False(t, bytes.Contains(got, utils.StartCode))
}

func TestAssembler_SetHeadersCopies(t *testing.T) {
	a := NewAssembler(h264.NewSynthesizer(nil), nil)
	sps := append([]byte(nil), h264Sps...)
	a.SetHeaders([][]byte{sps, h264Pps})
	sps[1] = 0x64
	assert.Equal(t, h264Sps, a.Headers()[0])
	assert.True(t, a.SetHeaders([][]byte{sps, h264Pps}))
}

func TestAssembler_Reset(t *testing.T) {
	a := NewAssembler(h264.NewSynthesizer(nil), nil)
	a.SetHeaders([][]byte{h264Sps, h264Pps})
	a.BeginPicture()
	require.NoError(t, a.AppendSlice(h264Idr))
	a.Seal()
	require.True(t, a.HeadersSent())

	a.Reset()
	assert.False(t, a.HeadersSent())
	assert.Empty(t, a.Headers())
	assert.Equal(t, StateEmpty, a.State())
	assert.True(t, a.SetHeaders([][]byte{h264Sps, h264Pps}))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "empty", StateEmpty.String())
	assert.Equal(t, "sealed", StateSealed.String())
	assert.Equal(t, "unknown", State(9).String())
}
