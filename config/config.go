// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"flag"
	"time"
)

// config 服务配置
type config struct {
	ListenAddr  string          `json:"listen"`            // 状态服务侦听地址和端口
	Profile     bool            `json:"profile"`           // 是否启动Profile
	TLS         *TLSConfig      `json:"tls,omitempty"`     // https安全端口交互
	Device      *ProviderConfig `json:"device,omitempty"`  // 解码设备提供者
	Simulate    string          `json:"simulate"`          // 非空时使用模拟设备，值为模拟模式
	IdleTimeout int             `json:"idletimeout"`       // 会话空闲超时（s），0 不回收
	StatsPeriod int             `json:"statsperiod"`       // 统计日志周期（s），0 不输出
	Decoder     DecoderConfig   `json:"decoder"`           // 解码会话参数
	Log         LogConfig       `json:"log"`               // 日志配置
}

func (c *config) initFlags() {
	// 服务的端口
	flag.StringVar(&c.ListenAddr, "listen", ":8554", "Set status server listen address")
	flag.BoolVar(&c.Profile, "pprof", false,
		"Determines if profile enabled")
	flag.StringVar(&c.Simulate, "simulate", "",
		"Use the simulated decoder with the given mode (normal, busy, noevent, nocapture)")
	flag.IntVar(&c.IdleTimeout, "idle-timeout", 300,
		"Set the seconds after which an idle decode session is closed, 0 disables")
	flag.IntVar(&c.StatsPeriod, "stats-period", 60,
		"Set the seconds between decode statistics logs, 0 disables")

	// 解码参数
	c.Decoder.initFlags()
	// 初始化日志配置
	c.Log.initFlags()
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
