// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package backend

import (
	"encoding/json"
	"testing"

	"github.com/cnotch/v4l2dec/device"
	"github.com/cnotch/v4l2dec/device/simdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonConfig(t *testing.T, s string) map[string]interface{} {
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestSim_Configure(t *testing.T) {
	p := &simProvider{}
	require.NoError(t, p.Configure(jsonConfig(t, `{"mode":"busy","width":1920,"height":1080,"maxbuffers":4}`)))
	assert.Equal(t, simdev.ModeBusy, p.opts.Mode)
	assert.Equal(t, 1920, p.opts.Width)
	assert.Equal(t, 1080, p.opts.Height)
	assert.Equal(t, 4, p.opts.MaxBuffers)

	dev, err := p.Open(nil)
	require.NoError(t, err)
	defer dev.Close()
	assert.True(t, dev.Capability().IsM2M())

	require.NoError(t, p.Configure(nil))
	assert.Equal(t, simdev.ModeNormal, p.opts.Mode)

	assert.Error(t, p.Configure(jsonConfig(t, `{"mode":"sleepy"}`)))
	assert.Error(t, p.Configure(jsonConfig(t, `{"mode":3}`)))
	assert.Error(t, p.Configure(jsonConfig(t, `{"width":"wide"}`)))
	assert.Error(t, p.Configure(jsonConfig(t, `{"height":10.5}`)))
}

func TestV4L2_Configure(t *testing.T) {
	p := &v4l2Provider{}
	require.NoError(t, p.Configure(jsonConfig(t, `{"paths":["/dev/video10","/dev/video11"]}`)))
	assert.Equal(t, []string{"/dev/video10", "/dev/video11"}, p.paths)

	require.NoError(t, p.Configure(jsonConfig(t, `{"paths":"/dev/video10"}`)))
	assert.Equal(t, []string{"/dev/video10"}, p.paths)

	require.NoError(t, p.Configure(nil))
	assert.Nil(t, p.paths)

	assert.Error(t, p.Configure(jsonConfig(t, `{"paths":[1,2]}`)))
	assert.Error(t, p.Configure(jsonConfig(t, `{"paths":true}`)))
}

func TestV4L2_OpenMissing(t *testing.T) {
	p := &v4l2Provider{paths: []string{"/nonexistent/video99"}}
	_, err := p.Open(nil)
	assert.Error(t, err)
	assert.True(t, err == device.ErrNotFound || err == device.ErrNotSupported)
}

func TestBuiltins(t *testing.T) {
	names := []string{}
	for _, p := range Builtins() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"v4l2", "sim"}, names)
}
