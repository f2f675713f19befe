// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package device 定义内存到内存 (M2M) 硬件解码设备的访问边界.
//
// 接口按 V4L2 有状态解码器的协议建模：OUTPUT 队列接收压缩码流，
// CAPTURE 队列返回解码后的图像，格式变化通过异步事件通知.
package device

import "errors"

// 设备错误
var (
	// ErrTryAgain 队列暂时没有可出列的缓冲 (EAGAIN)
	ErrTryAgain = errors.New("device: resource temporarily unavailable")
	// ErrNoEvent 没有待处理的事件 (ENOENT)
	ErrNoEvent = errors.New("device: no pending event")
	// ErrNotSupported 设备或平台不支持
	ErrNotSupported = errors.New("device: not supported")
	// ErrNotFound 未找到可用的 M2M 解码设备
	ErrNotFound = errors.New("device: no m2m decoder found")
	// ErrClosed 设备已关闭
	ErrClosed = errors.New("device: closed")
	// ErrInvalidBuffer 缓冲索引或平面超出范围
	ErrInvalidBuffer = errors.New("device: invalid buffer")
)

// Device M2M 解码设备.
// 调用方负责串行化对同一设备的调用.
type Device interface {
	// Path 设备节点路径
	Path() string
	// Capability 设备能力
	Capability() Capability

	// EnumFormats 枚举指定队列支持的像素格式
	EnumFormats(typ BufType) ([]FormatDesc, error)
	// SubscribeEvent 订阅事件
	SubscribeEvent(ev EventType) error
	// DequeueEvent 取一个待处理事件，没有时返回 ErrNoEvent
	DequeueEvent() (Event, error)

	// GetFormat 读取队列当前格式
	GetFormat(typ BufType) (Format, error)
	// SetFormat 设置队列格式，返回驱动调整后的格式
	SetFormat(typ BufType, f Format) (Format, error)

	// RequestBuffers 申请 MMAP 缓冲，返回实际分配的数量；count 为 0 时释放
	RequestBuffers(typ BufType, count int) (int, error)
	// QueryBuffer 查询缓冲的平面布局
	QueryBuffer(typ BufType, index int) (Buffer, error)
	// Map 映射缓冲平面
	Map(typ BufType, index, plane int) ([]byte, error)
	// Unmap 解除映射
	Unmap(mem []byte) error

	// Queue 缓冲入列，bytesUsed 为各平面的有效字节数
	Queue(typ BufType, index int, bytesUsed ...int) error
	// Dequeue 缓冲出列，队列为空时返回 ErrTryAgain
	Dequeue(typ BufType) (Buffer, error)

	// StreamOn 启动队列
	StreamOn(typ BufType) error
	// StreamOff 停止队列，所有缓冲回到用户侧
	StreamOff(typ BufType) error

	// ExportBuffer 把缓冲平面导出为 DMA-BUF 文件描述符
	ExportBuffer(typ BufType, index, plane int) (int, error)
	// CloseExport 关闭导出的文件描述符
	CloseExport(fd int) error

	// Close 关闭设备
	Close() error
}
