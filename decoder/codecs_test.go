// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"errors"
	"testing"

	"github.com/cnotch/v4l2dec/av/codec/h264"
	"github.com/cnotch/v4l2dec/av/codec/hevc"
	"github.com/cnotch/v4l2dec/device"
	"github.com/cnotch/v4l2dec/device/simdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupProfile(t *testing.T) {
	tests := []struct {
		profile      Profile
		codec        string
		needsHeaders bool
	}{
		{ProfileH264ConstrainedBaseline, "H264", true},
		{ProfileH264Main, "H264", true},
		{ProfileH264High, "H264", true},
		{ProfileHEVCMain, "H265", true},
		{ProfileHEVCMain10, "H265", true},
		{ProfileVP8Version0_3, "VP8", false},
		{ProfileVP9Profile0, "VP9", false},
		{ProfileVP9Profile2, "VP9", false},
	}
	for _, tt := range tests {
		t.Run(tt.profile.String(), func(t *testing.T) {
			d, ok := LookupProfile(tt.profile)
			require.True(t, ok)
			assert.Equal(t, tt.codec, d.Name)
			assert.Equal(t, tt.needsHeaders, d.NewSynthesizer(nil).NeedsHeaders())
		})
	}

	_, ok := LookupProfile(ProfileAV1Profile0)
	assert.False(t, ok)
	_, ok = LookupProfile(ProfileNone)
	assert.False(t, ok)
}

func TestLookupFourCCAndName(t *testing.T) {
	d, ok := LookupFourCC(device.PixFmtHEVC)
	require.True(t, ok)
	assert.Equal(t, "H265", d.Name)
	assert.IsType(t, &hevc.PictureParams{}, d.NewParams())

	d, ok = LookupName("hevc")
	require.True(t, ok)
	assert.Equal(t, device.PixFmtHEVC, d.FourCC)

	d, ok = LookupName("h264")
	require.True(t, ok)
	assert.IsType(t, &h264.PictureParams{}, d.NewParams())

	d, ok = LookupName("vp9")
	require.True(t, ok)
	assert.Nil(t, d.NewParams())

	_, ok = LookupFourCC(device.PixFmtAV1)
	assert.False(t, ok)
	assert.Len(t, Descriptors(), 4)
}

func TestProbe(t *testing.T) {
	dev := simdev.New(simdev.Options{OutputFormats: []device.FourCC{
		device.PixFmtH264, device.PixFmtH264Slice, device.PixFmtVP9, device.PixFmtAV1, device.NewFourCC("JPEG"),
	}})
	profiles, err := Probe(dev)
	require.NoError(t, err)
	assert.Equal(t, []Profile{
		ProfileH264ConstrainedBaseline, ProfileH264Main, ProfileH264High,
		ProfileVP9Profile0, ProfileVP9Profile2,
		ProfileAV1Profile0,
	}, profiles)

	dev.Close()
	_, err = Probe(dev)
	assert.True(t, errors.Is(err, device.ErrClosed))
}

func TestProfile_Text(t *testing.T) {
	p, err := ParseProfile("hevcmain10")
	require.NoError(t, err)
	assert.Equal(t, ProfileHEVCMain10, p)
	assert.True(t, p.HighBitDepth())
	assert.False(t, ProfileH264High.HighBitDepth())

	_, err = ParseProfile("H263Baseline")
	assert.True(t, errors.Is(err, ErrUnsupportedProfile))
	assert.Equal(t, "Profile(99)", Profile(99).String())

	var q Profile
	require.NoError(t, q.UnmarshalText([]byte("VP8Version0_3")))
	assert.Equal(t, ProfileVP8Version0_3, q)
	text, _ := q.MarshalText()
	assert.Equal(t, "VP8Version0_3", string(text))
}

func TestSID(t *testing.T) {
	var seed uint32
	id := NewSID(1, &seed)
	assert.Equal(t, uint32(1), id.Sequence())
	assert.Equal(t, "H265", id.Codec().Name)
	assert.Equal(t, "H265-1", id.String())

	parsed, err := ParseSID("H265-1")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseSID("H266-1")
	assert.Error(t, err)

	seed = maxSessionSequence - 1
	id = NewSID(0, &seed)
	assert.Equal(t, uint32(1), id.Sequence())
}
