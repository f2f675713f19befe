// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import "errors"

// 解码错误
var (
	// ErrTryAgain 限定时间内没有可用槽位，稍后重试，不影响会话
	ErrTryAgain = errors.New("decoder: no free slot, try again later")
	// ErrPayloadTooLarge 码流超出槽位容量，图像被丢弃
	ErrPayloadTooLarge = errors.New("decoder: payload exceeds slot capacity")
	// ErrDeviceFailure 设备协议调用失败，会话不可继续使用
	ErrDeviceFailure = errors.New("decoder: device failure")
	// ErrNotReady CAPTURE 队列暂无解码帧
	ErrNotReady = errors.New("decoder: frame not ready")
	// ErrSessionClosed 会话已关闭
	ErrSessionClosed = errors.New("decoder: session closed")
	// ErrInvalidSlot 槽位索引超出范围
	ErrInvalidSlot = errors.New("decoder: invalid slot")
	// ErrSlotNotOwned 槽位不属于调用方
	ErrSlotNotOwned = errors.New("decoder: slot not owned by consumer")
	// ErrUnsupportedProfile 不支持的编码 profile
	ErrUnsupportedProfile = errors.New("decoder: unsupported profile")
	// ErrSurfaceBusy 表面尚未完成解码
	ErrSurfaceBusy = errors.New("decoder: surface busy")
	// ErrNoPicture 未调用 BeginPicture
	ErrNoPicture = errors.New("decoder: no picture in progress")
)
