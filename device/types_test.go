// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFourCC(t *testing.T) {
	tests := []struct {
		s    string
		want uint32
	}{
		{"H264", 0x34363248},
		{"HEVC", 0x43564548},
		{"NV12", 0x3231564e},
		{"YU12", 0x32315559},
	}
	for _, tt := range tests {
		t.Run(tt.s, func(t *testing.T) {
			f := NewFourCC(tt.s)
			assert.Equal(t, tt.want, uint32(f))
			assert.Equal(t, tt.s, f.String())
		})
	}
	assert.Equal(t, "AB", NewFourCC("AB").String())
}

func TestCapability_IsM2M(t *testing.T) {
	assert.True(t, Capability{Capabilities: CapVideoM2MMplane}.IsM2M())
	assert.True(t, Capability{Capabilities: CapVideoM2M | CapStreaming}.IsM2M())
	assert.False(t, Capability{Capabilities: CapStreaming}.IsM2M())
	// 声明 device_caps 时以其为准
	assert.False(t, Capability{Capabilities: CapDeviceCaps | CapVideoM2M, DeviceCaps: CapStreaming}.IsM2M())
	assert.True(t, Capability{Capabilities: CapDeviceCaps, DeviceCaps: CapVideoM2MMplane}.IsM2M())
}

func TestBufType_String(t *testing.T) {
	assert.Equal(t, "OUTPUT", BufTypeOutput.String())
	assert.Equal(t, "CAPTURE", BufTypeCapture.String())
	assert.Equal(t, "BufType(1)", BufType(1).String())
}
