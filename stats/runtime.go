// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stats

import (
	"runtime"
	"time"

	"github.com/kelindar/process"
)

// 创建时间
var (
	StartingTime = time.Now()
)

// Proc 进程信息统计
type Proc struct {
	CPU    float64 `json:"cpu"`    // cpu使用情况
	Priv   int32   `json:"priv"`   // 私有内存 KB
	Virt   int32   `json:"virt"`   // 虚拟内存 KB
	Uptime int32   `json:"uptime"` // 运行时间 S
}

// Runtime Go 运行时统计
type Runtime struct {
	HeapInuse   int32   `json:"heapinuse"`   // KB
	HeapObjects int32   `json:"heapobjects"`
	StackInuse  int32   `json:"stackinuse"`  // KB
	GCCPU       float64 `json:"gccpu"`
	NumGC       uint32  `json:"numgc"`
	Goroutines  int32   `json:"goroutines"`
	Procs       int32   `json:"procs"`
	Sys         int32   `json:"sys"` // KB
}

// Summary 推送给监控端的完整快照
type Summary struct {
	Time     time.Time     `json:"time"`
	Proc     Proc          `json:"proc"`
	Decode   FlowSample    `json:"decode"`
	Sessions CounterSample `json:"sessions"`
	Exports  CounterSample `json:"exports"`
}

// MeasureRuntime 获取进程信息
func MeasureRuntime() Proc {
	defer recover()
	var memoryPriv, memoryVirtual int64
	var cpu float64
	process.ProcUsage(&cpu, &memoryPriv, &memoryVirtual)
	return Proc{
		CPU:    cpu,
		Priv:   toKB(uint64(memoryPriv)),
		Virt:   toKB(uint64(memoryVirtual)),
		Uptime: int32(time.Since(StartingTime).Seconds()),
	}
}

// MeasureFullRuntime 获取 Go 运行时信息
func MeasureFullRuntime() *Runtime {
	var memory runtime.MemStats
	runtime.ReadMemStats(&memory)

	return &Runtime{
		HeapInuse:   toKB(memory.HeapInuse),
		HeapObjects: int32(memory.HeapObjects),
		StackInuse:  toKB(memory.StackInuse),
		GCCPU:       memory.GCCPUFraction,
		NumGC:       memory.NumGC,
		Goroutines:  int32(runtime.NumGoroutine()),
		Procs:       int32(runtime.NumCPU()),
		Sys:         toKB(memory.Sys),
	}
}

// Measure 汇总进程信息和解码统计
func Measure() Summary {
	return Summary{
		Time:     time.Now(),
		Proc:     MeasureRuntime(),
		Decode:   Decode.GetSample(),
		Sessions: Sessions.GetSample(),
		Exports:  Exports.GetSample(),
	}
}

// Converts the memory in bytes to KBs, otherwise it would overflow our int32
func toKB(v uint64) int32 {
	return int32(v / 1024)
}
