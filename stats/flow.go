// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stats

import (
	"sync/atomic"
)

// 全局变量
var (
	Decode   = NewFlow()    // 全部会话的解码流量
	Sessions = NewCounter() // 解码会话计数
	Exports  = NewCounter() // DMA-BUF 导出计数
)

// FlowSample 解码流量采样
type FlowSample struct {
	InBytes    int64 `json:"inbytes"`    // 提交到 OUTPUT 队列的码流字节
	InPictures int64 `json:"inpictures"` // 提交的图像数
	OutFrames  int64 `json:"outframes"`  // 从 CAPTURE 队列取回的帧数
	OutBytes   int64 `json:"outbytes"`   // 取回帧的字节数
	TryAgain   int64 `json:"tryagain"`   // 因无空闲槽位而返回的次数
	Dropped    int64 `json:"dropped"`    // 因超出槽位容量而丢弃的图像数
}

// Flow 解码流量统计接口
type Flow interface {
	AddIn(size int64)      // 提交一幅图像的码流
	AddOut(size int64)     // 取回一帧
	AddTryAgain()          // 暂时无可用槽位
	AddDropped()           // 图像被丢弃
	GetSample() FlowSample // 获取当前时点采样
}

func (fs *FlowSample) clone() FlowSample {
	return FlowSample{
		InBytes:    atomic.LoadInt64(&fs.InBytes),
		InPictures: atomic.LoadInt64(&fs.InPictures),
		OutFrames:  atomic.LoadInt64(&fs.OutFrames),
		OutBytes:   atomic.LoadInt64(&fs.OutBytes),
		TryAgain:   atomic.LoadInt64(&fs.TryAgain),
		Dropped:    atomic.LoadInt64(&fs.Dropped),
	}
}

// Add 采样累加
func (fs *FlowSample) Add(f FlowSample) {
	fs.InBytes += f.InBytes
	fs.InPictures += f.InPictures
	fs.OutFrames += f.OutFrames
	fs.OutBytes += f.OutBytes
	fs.TryAgain += f.TryAgain
	fs.Dropped += f.Dropped
}

func (fs *FlowSample) addIn(size int64) {
	atomic.AddInt64(&fs.InBytes, size)
	atomic.AddInt64(&fs.InPictures, 1)
}

func (fs *FlowSample) addOut(size int64) {
	atomic.AddInt64(&fs.OutBytes, size)
	atomic.AddInt64(&fs.OutFrames, 1)
}

type flow struct {
	sample FlowSample
}

// NewFlow 创建流量统计
func NewFlow() Flow {
	return &flow{}
}

func (r *flow) AddIn(size int64)  { r.sample.addIn(size) }
func (r *flow) AddOut(size int64) { r.sample.addOut(size) }
func (r *flow) AddTryAgain()      { atomic.AddInt64(&r.sample.TryAgain, 1) }
func (r *flow) AddDropped()       { atomic.AddInt64(&r.sample.Dropped, 1) }

func (r *flow) GetSample() FlowSample {
	return r.sample.clone()
}

type childFlow struct {
	parent Flow
	sample FlowSample
}

// NewChildFlow 创建会话级流量计数，同时累加到 parent
func NewChildFlow(parent Flow) Flow {
	return &childFlow{
		parent: parent,
	}
}

func (r *childFlow) AddIn(size int64) {
	r.sample.addIn(size)
	r.parent.AddIn(size)
}

func (r *childFlow) AddOut(size int64) {
	r.sample.addOut(size)
	r.parent.AddOut(size)
}

func (r *childFlow) AddTryAgain() {
	atomic.AddInt64(&r.sample.TryAgain, 1)
	r.parent.AddTryAgain()
}

func (r *childFlow) AddDropped() {
	atomic.AddInt64(&r.sample.Dropped, 1)
	r.parent.AddDropped()
}

func (r *childFlow) GetSample() FlowSample {
	return r.sample.clone()
}
