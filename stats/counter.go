// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stats

import (
	"sync/atomic"
)

// CounterSample 计数采样
type CounterSample struct {
	Total  int64 `json:"total"`
	Active int64 `json:"active"`
}

// Counter 累计与活动数量统计，用于会话和导出句柄
type Counter interface {
	Add() int64
	Release() int64
	GetSample() CounterSample
}

type counter struct {
	sample CounterSample
}

// NewCounter 新建计数器
func NewCounter() Counter {
	return &counter{}
}

func (c *counter) Add() int64 {
	atomic.AddInt64(&c.sample.Total, 1)
	return atomic.AddInt64(&c.sample.Active, 1)
}

func (c *counter) Release() int64 {
	return atomic.AddInt64(&c.sample.Active, -1)
}

func (c *counter) GetSample() CounterSample {
	return CounterSample{
		Total:  atomic.LoadInt64(&c.sample.Total),
		Active: atomic.LoadInt64(&c.sample.Active),
	}
}
