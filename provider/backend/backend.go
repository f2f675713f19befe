// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package backend 解码设备提供者：真实的 V4L2 设备节点或内存模拟设备.
package backend

import (
	"fmt"

	"github.com/cnotch/v4l2dec/device"
	"github.com/cnotch/v4l2dec/device/simdev"
	"github.com/cnotch/v4l2dec/device/v4l2"
	"github.com/cnotch/xlog"
)

// Provider 解码设备提供者，每次 Open 返回一个独立的设备句柄
type Provider interface {
	Name() string
	Configure(config map[string]interface{}) error
	Open(logger *xlog.Logger) (device.Device, error)
}

// 内置提供者
var (
	V4L2 = &v4l2Provider{}
	Sim  = &simProvider{}
)

// Builtins 全部内置提供者，第一个为默认值
func Builtins() []Provider {
	return []Provider{V4L2, Sim}
}

type v4l2Provider struct {
	paths []string
}

func (p *v4l2Provider) Name() string {
	return "v4l2"
}

// Configure 支持 paths 属性：字串或字串数组
func (p *v4l2Provider) Configure(config map[string]interface{}) error {
	p.paths = nil
	v, ok := config["paths"]
	if !ok {
		return nil
	}

	switch paths := v.(type) {
	case string:
		p.paths = []string{paths}
	case []string:
		p.paths = paths
	case []interface{}:
		for _, path := range paths {
			s, ok := path.(string)
			if !ok {
				return fmt.Errorf("invalid v4l2 device config, paths attr: %v", v)
			}
			p.paths = append(p.paths, s)
		}
	default:
		return fmt.Errorf("invalid v4l2 device config, paths attr: %v", v)
	}
	return nil
}

func (p *v4l2Provider) Open(logger *xlog.Logger) (device.Device, error) {
	dev, err := v4l2.OpenFirst(p.paths, logger)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

type simProvider struct {
	opts simdev.Options
}

func (p *simProvider) Name() string {
	return "sim"
}

// Configure 支持 mode、width、height、maxbuffers 属性
func (p *simProvider) Configure(config map[string]interface{}) error {
	p.opts = simdev.Options{}
	if v, ok := config["mode"]; ok {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("invalid sim device config, mode attr: %v", v)
		}
		mode, err := simdev.ParseMode(s)
		if err != nil {
			return err
		}
		p.opts.Mode = mode
	}

	for key, dst := range map[string]*int{
		"width":      &p.opts.Width,
		"height":     &p.opts.Height,
		"maxbuffers": &p.opts.MaxBuffers,
	} {
		v, ok := config[key]
		if !ok {
			continue
		}
		n, err := toInt(v)
		if err != nil {
			return fmt.Errorf("invalid sim device config, %s attr: %w", key, err)
		}
		*dst = n
	}
	return nil
}

func (p *simProvider) Open(logger *xlog.Logger) (device.Device, error) {
	return simdev.New(p.opts), nil
}

// toInt JSON 数字解码为 float64
func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n < 0 || n != float64(int(n)) {
			return 0, fmt.Errorf("%v is not a count", n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("%v is not a number", v)
}
