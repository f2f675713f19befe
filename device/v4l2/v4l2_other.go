// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux || !(amd64 || arm64)

// Package v4l2 通过 ioctl/mmap 访问 Linux V4L2 有状态 M2M 解码设备.
package v4l2

import (
	"github.com/cnotch/v4l2dec/device"
	"github.com/cnotch/xlog"
)

// DefaultPaths 常见的解码设备节点
var DefaultPaths = []string{"/dev/video0", "/dev/video-dec0"}

// Open 当前平台不支持 V4L2
func Open(path string) (device.Device, error) {
	return nil, device.ErrNotSupported
}

// OpenFirst 当前平台不支持 V4L2
func OpenFirst(paths []string, logger *xlog.Logger) (device.Device, error) {
	return nil, device.ErrNotSupported
}
