// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"github.com/cnotch/v4l2dec/device"
)

type slotState int

// 槽位状态
const (
	slotFree    slotState = iota // 用户侧空闲
	slotQueued                   // 已入列到设备
	slotDecoded                  // CAPTURE 槽位持有解码帧，归消费者所有
)

func (s slotState) String() string {
	switch s {
	case slotFree:
		return "free"
	case slotQueued:
		return "queued"
	case slotDecoded:
		return "decoded"
	}
	return "unknown"
}

// slot 设备缓冲在用户侧的映射
type slot struct {
	index    int
	state    slotState
	planes   [][]byte // mmap 后的平面内存，未映射时为 nil
	length   [device.MaxPlanes]int
	offset   [device.MaxPlanes]int
	used     [device.MaxPlanes]int
	sequence uint32
	fds      [device.MaxPlanes]int // 按内存平面导出的 DMA-BUF，-1 表示未导出
}

// capacity 第一个平面的容量
func (s *slot) capacity() int {
	return s.length[0]
}

// pool 槽位数组，空闲链表按索引分配
type pool struct {
	typ   device.BufType
	slots []slot
	free  []int
}

func newPool(typ device.BufType) *pool {
	return &pool{typ: typ}
}

// reset 按设备实际分配的数量初始化槽位，全部处于空闲状态
func (p *pool) reset(count int) {
	p.slots = make([]slot, count)
	p.free = p.free[:0]
	for i := range p.slots {
		p.slots[i] = slot{index: i, fds: [device.MaxPlanes]int{-1, -1}}
	}
	for i := count - 1; i >= 0; i-- {
		p.free = append(p.free, i)
	}
}

func (p *pool) size() int {
	return len(p.slots)
}

// get 按索引取槽位
func (p *pool) get(index int) (*slot, bool) {
	if index < 0 || index >= len(p.slots) {
		return nil, false
	}
	return &p.slots[index], true
}

// alloc 从空闲链表取一个槽位，O(1)
func (p *pool) alloc() (*slot, bool) {
	for len(p.free) > 0 {
		index := p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
		if s := &p.slots[index]; s.state == slotFree {
			return s, true
		}
	}
	return nil, false
}

// markQueued 槽位已入列到设备
func (p *pool) markQueued(s *slot) {
	s.state = slotQueued
}

// restore 入列失败的槽位放回空闲链表
func (p *pool) restore(s *slot) {
	s.state = slotFree
	p.free = append(p.free, s.index)
}

// release 槽位回到空闲链表
func (p *pool) release(s *slot) {
	if s.state == slotFree {
		return
	}
	s.state = slotFree
	s.used = [device.MaxPlanes]int{}
	p.free = append(p.free, s.index)
}

// count 统计指定状态的槽位数
func (p *pool) count(state slotState) int {
	n := 0
	for i := range p.slots {
		if p.slots[i].state == state {
			n++
		}
	}
	return n
}

// PoolStatus 槽位池状态
type PoolStatus struct {
	Size    int `json:"size"`
	Free    int `json:"free"`
	Queued  int `json:"queued"`
	Decoded int `json:"decoded,omitempty"`
}

func (p *pool) status() PoolStatus {
	return PoolStatus{
		Size:    p.size(),
		Free:    p.count(slotFree),
		Queued:  p.count(slotQueued),
		Decoded: p.count(slotDecoded),
	}
}
