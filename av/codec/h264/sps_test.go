// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawSPS_Parse(t *testing.T) {
	tests := []struct {
		name        string
		b64         string
		wantProfile uint8
		wantLevel   uint8
		wantW       int
		wantH       int
		wantFR      float64
		wantErr     bool
	}{
		{
			"base64_1",
			"Z2QAH6zZQFAFuhAAAAMAEAAAAwPI8YMZYA==",
			ProfileHigh, 31,
			1280,
			720,
			30,
			false,
		},
		{
			"base64_2",
			"Z3oAH7y0AoAt0IAAAAMAgAAAHkeMGVA=",
			ProfileHigh422, 31,
			1280,
			720,
			30,
			false,
		},
		{
			"base64_3",
			"Z2QAM6wspADwAQ+wFSAgICgAAB9IAAdTBO0LFok=",
			ProfileHigh, 51,
			3840,
			2160,
			float64(60000) / float64(1001*2),
			false,
		},
		{
			"truncated",
			"Z2QA",
			ProfileHigh, 0,
			16,
			0,
			0,
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sps := &RawSPS{}
			err := sps.DecodeString(tt.b64)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantProfile, sps.ProfileIdc)
			assert.Equal(t, tt.wantLevel, sps.LevelIdc)
			assert.Equal(t, tt.wantW, sps.Width())
			assert.Equal(t, tt.wantH, sps.Height())
			assert.Equal(t, tt.wantFR, sps.FrameRate())
		})
	}
}

func TestRawSPS_ReEncode(t *testing.T) {
	for _, b64 := range []string{
		"Z2QAH6zZQFAFuhAAAAMAEAAAAwPI8YMZYA==",
		"Z3oAH7y0AoAt0IAAAAMAgAAAHkeMGVA=",
		"Z2QAM6wspADwAQ+wFSAgICgAAB9IAAdTBO0LFok=",
	} {
		var src RawSPS
		require.NoError(t, src.DecodeString(b64))

		var dst RawSPS
		require.NoError(t, dst.Decode(src.Marshal()), b64)
		assert.Equal(t, src.ProfileIdc, dst.ProfileIdc)
		assert.Equal(t, src.LevelIdc, dst.LevelIdc)
		assert.Equal(t, src.ChromaFormatIdc, dst.ChromaFormatIdc)
		assert.Equal(t, src.MaxNumRefFrames, dst.MaxNumRefFrames)
		assert.Equal(t, src.Width(), dst.Width())
		assert.Equal(t, src.Height(), dst.Height())
		assert.Equal(t, uint8(0), dst.VuiParametersPresentFlag)
	}
}

func TestRawPPS_Decode(t *testing.T) {
	var pps RawPPS
	assert.Error(t, pps.Decode([]byte{0x68}))
	assert.Error(t, pps.Decode([]byte{0x67, 0xce}))

	// Baseline: ids 0/0, CAVLC，无扩展字段
	src := &RawPPS{
		NalUnitHeader:       RawNALUnitHeader{NalRefIdc: 3, NalUnitType: NalPps},
		PicInitQpMinus26:    5,
		ChromaQpIndexOffset: -1,
	}
	require.NoError(t, pps.Decode(src.Marshal()))
	assert.False(t, pps.MoreRbspData)
	assert.Equal(t, int8(5), pps.PicInitQpMinus26)
	assert.Equal(t, int8(-1), pps.ChromaQpIndexOffset)
	assert.Equal(t, int8(-1), pps.SecondChromaQpIndexOffset)
}
