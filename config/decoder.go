// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"flag"
	"time"

	"github.com/cnotch/v4l2dec/decoder"
	"github.com/cnotch/xlog"
)

// RetryConfig 有界重试配置
type RetryConfig struct {
	Attempts int `json:"attempts"`
	Interval int `json:"interval"` // 毫秒
}

// Policy 转换为解码器重试策略，未配置的字段由解码器取默认值
func (c RetryConfig) Policy() decoder.RetryPolicy {
	if c.Attempts <= 0 {
		return decoder.RetryPolicy{}
	}
	if c.Interval <= 0 {
		c.Interval = 1
	}
	return decoder.RetryPolicy{
		MaxAttempts: c.Attempts,
		Interval:    time.Duration(c.Interval) * time.Millisecond,
	}
}

// DecoderConfig 解码会话配置
type DecoderConfig struct {
	OutputBuffers  int         `json:"outputbuffers"`  // OUTPUT 队列缓冲数
	CaptureBuffers int         `json:"capturebuffers"` // CAPTURE 队列缓冲数
	BitstreamSize  int         `json:"bitstreamsize"`  // 单个 OUTPUT 缓冲容量（字节）
	SlotRetry      RetryConfig `json:"slotretry"`      // 等待空闲 OUTPUT 缓冲
	EventRetry     RetryConfig `json:"eventretry"`     // 等待 SOURCE_CHANGE 事件
	SyncRetry      RetryConfig `json:"syncretry"`      // 等待帧解码完成
}

func (c *DecoderConfig) initFlags() {
	flag.IntVar(&c.OutputBuffers, "output-buffers", decoder.DefaultOutputBuffers,
		"Set the number of OUTPUT (bitstream) buffers per session")
	flag.IntVar(&c.CaptureBuffers, "capture-buffers", decoder.DefaultCaptureBuffers,
		"Set the number of CAPTURE (frame) buffers per session")
	flag.IntVar(&c.BitstreamSize, "bitstream-size", decoder.DefaultBitstreamSize,
		"Set the size in bytes of each OUTPUT buffer")

	c.SlotRetry.initFlags("slot", decoder.DefaultSlotRetry)
	c.EventRetry.initFlags("event", decoder.DefaultEventRetry)
	c.SyncRetry.initFlags("sync", decoder.DefaultSyncRetry)
}

func (c *RetryConfig) initFlags(name string, def decoder.RetryPolicy) {
	flag.IntVar(&c.Attempts, name+"-attempts", def.MaxAttempts,
		"Set the maximum "+name+" wait attempts")
	flag.IntVar(&c.Interval, name+"-interval", int(def.Interval/time.Millisecond),
		"Set the "+name+" wait interval in milliseconds")
}

// SessionOptions 生成解码会话参数
func (c *DecoderConfig) SessionOptions(logger *xlog.Logger) decoder.SessionOptions {
	return decoder.SessionOptions{
		OutputBuffers:  c.OutputBuffers,
		CaptureBuffers: c.CaptureBuffers,
		BitstreamSize:  c.BitstreamSize,
		SlotRetry:      c.SlotRetry.Policy(),
		EventRetry:     c.EventRetry.Policy(),
		Logger:         logger,
	}
}

// ContextOptions 生成解码上下文参数
func (c *DecoderConfig) ContextOptions(logger *xlog.Logger) decoder.ContextOptions {
	return decoder.ContextOptions{
		Session:   c.SessionOptions(logger),
		SyncRetry: c.SyncRetry.Policy(),
	}
}
