// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	cfg "github.com/cnotch/loader"
	"github.com/cnotch/v4l2dec/decoder"
	"github.com/cnotch/xlog"
)

// 服务名
const (
	Vendor  = "CAOHONGJU"
	Name    = "v4l2dec"
	Version = "V1.0.0"
)

var (
	globalC *config
)

// InitConfig 初始化 Config
func InitConfig() {
	exe, err := os.Executable()
	if err != nil {
		xlog.Panic(err.Error())
	}

	configPath := filepath.Join(filepath.Dir(exe), Name+".conf")

	globalC = new(config)
	globalC.initFlags()

	// 创建或加载配置文件
	if err := cfg.Load(globalC,
		&cfg.JSONLoader{Path: configPath, CreatedIfNonExsit: true},
		&cfg.EnvLoader{Prefix: strings.ToUpper(Name)},
		&cfg.FlagLoader{}); err != nil {
		// 异常，直接退出
		xlog.Panic(err.Error())
	}

	// 初始化日志
	globalC.Log.initLogger()
}

// Addr Listen addr
func Addr() string {
	if globalC == nil {
		return ":8554"
	}
	return globalC.ListenAddr
}

// Profile 是否启动 Http Profile
func Profile() bool {
	if globalC == nil {
		return false
	}
	return globalC.Profile
}

// GetTLSConfig 获取TLSConfig
func GetTLSConfig() *TLSConfig {
	if globalC == nil {
		return nil
	}
	return globalC.TLS
}

// Simulate 模拟模式，空串表示使用真实设备
func Simulate() string {
	if globalC == nil {
		return ""
	}
	return globalC.Simulate
}

// IdleTimeout 会话空闲超时，0 表示不回收
func IdleTimeout() time.Duration {
	if globalC == nil {
		return 5 * time.Minute
	}
	return seconds(globalC.IdleTimeout)
}

// StatsPeriod 统计日志周期，0 表示不输出
func StatsPeriod() time.Duration {
	if globalC == nil {
		return time.Minute
	}
	return seconds(globalC.StatsPeriod)
}

// Decoder 解码会话配置
func Decoder() DecoderConfig {
	if globalC == nil {
		return DecoderConfig{
			OutputBuffers:  decoder.DefaultOutputBuffers,
			CaptureBuffers: decoder.DefaultCaptureBuffers,
			BitstreamSize:  decoder.DefaultBitstreamSize,
		}
	}
	return globalC.Decoder
}

// LoadDeviceProvider 加载解码设备提供者；启用模拟时优先选择名为 sim 的提供者
func LoadDeviceProvider(providers ...Provider) Provider {
	if globalC == nil {
		return LoadProvider(nil, providers...)
	}
	if globalC.Simulate != "" {
		return LoadProvider(&ProviderConfig{
			Provider: "sim",
			Config:   map[string]interface{}{"mode": globalC.Simulate},
		}, providers...)
	}
	return LoadProvider(globalC.Device, providers...)
}
