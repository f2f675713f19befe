// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package annexb

import (
	"bytes"
	"errors"

	"github.com/cnotch/v4l2dec/av/codec"
	"github.com/cnotch/v4l2dec/utils"
	"github.com/cnotch/xlog"
)

// ErrSealed 图像已封装，需调用 BeginPicture 后才能继续追加
var ErrSealed = errors.New("annexb: picture already sealed")

// State 图像码流的状态
type State int

// 状态迁移: empty -> accumulating -> sealed
const (
	StateEmpty State = iota
	StateAccumulating
	StateSealed
)

var stateNames = [...]string{"empty", "accumulating", "sealed"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Assembler 按图像组装 Annex-B 码流.
// 参数集缓存和"已发送"标志跨图像保留，码流缓冲每个图像重置.
// 非并发安全，由所属会话的锁保护.
type Assembler struct {
	classifier codec.Synthesizer
	frameMode  bool
	logger     *xlog.Logger

	headers [][]byte // 按 VPS、SPS、PPS 顺序
	sent    bool
	state   State
	buf     bytes.Buffer
	nals    int
	skipped int
}

// NewAssembler 创建码流组装器. classifier 不需要参数集时使用帧模式，
// 片负载原样拼接，不加起始码.
func NewAssembler(classifier codec.Synthesizer, logger *xlog.Logger) *Assembler {
	if logger == nil {
		logger = xlog.L()
	}
	return &Assembler{
		classifier: classifier,
		frameMode:  !classifier.NeedsHeaders(),
		logger:     logger,
	}
}

// FrameMode 是否为帧模式 (VP8/VP9)
func (a *Assembler) FrameMode() bool { return a.frameMode }

// BeginPicture 开始新图像，清空码流缓冲
func (a *Assembler) BeginPicture() {
	a.buf.Reset()
	a.state = StateEmpty
	a.nals = 0
	a.skipped = 0
}

// SetHeaders 更新参数集缓存. 内容变化时返回 true，并在下一个关键片前重发.
func (a *Assembler) SetHeaders(nals [][]byte) (changed bool) {
	if a.frameMode {
		return false
	}
	if headersEqual(a.headers, nals) {
		return false
	}

	a.headers = a.headers[:0]
	for _, nal := range nals {
		if len(nal) == 0 {
			continue
		}
		a.headers = append(a.headers, append([]byte(nil), nal...))
	}
	a.sent = false
	return true
}

// Headers 返回缓存的参数集
func (a *Assembler) Headers() [][]byte {
	return a.headers
}

// HeadersSent 当前参数集是否已随关键片发送
func (a *Assembler) HeadersSent() bool { return a.sent }

// AppendSlice 追加一个片负载. 首个关键片前按需写入参数集；
// 负载中自带的参数集被忽略，保证设备只看到一组参数集.
func (a *Assembler) AppendSlice(frag []byte) error {
	if a.state == StateSealed {
		return ErrSealed
	}

	if a.frameMode {
		a.buf.Write(frag)
		a.state = StateAccumulating
		return nil
	}

	nal := utils.RemoveNaluSeparator(frag)
	if len(nal) == 0 {
		return nil
	}
	if a.classifier.IsParameterSet(nal) {
		a.skipped++
		return nil
	}

	if !a.sent && len(a.headers) > 0 && a.classifier.IsKeySlice(nal) {
		for _, h := range a.headers {
			a.writeNal(h)
		}
		a.sent = true
		a.logger.Debugf("annexb: prepended %d parameter sets", len(a.headers))
	}

	a.writeNal(nal)
	a.state = StateAccumulating
	return nil
}

func (a *Assembler) writeNal(nal []byte) {
	a.buf.Write(utils.StartCode)
	a.buf.Write(nal)
	a.nals++
}

// Seal 结束当前图像，返回码流. 返回的切片在下一次 BeginPicture 前有效.
func (a *Assembler) Seal() []byte {
	a.state = StateSealed
	return a.buf.Bytes()
}

// State 当前状态
func (a *Assembler) State() State { return a.state }

// Bytes 当前已组装的码流
func (a *Assembler) Bytes() []byte { return a.buf.Bytes() }

// Len 当前码流字节数
func (a *Assembler) Len() int { return a.buf.Len() }

// NalCount 当前图像写入的 NAL 数 (含参数集)
func (a *Assembler) NalCount() int { return a.nals }

// Skipped 当前图像中被忽略的参数集 NAL 数
func (a *Assembler) Skipped() int { return a.skipped }

// Reset 清空参数集缓存和发送标志，用于会话重建
func (a *Assembler) Reset() {
	a.BeginPicture()
	a.headers = nil
	a.sent = false
}

func headersEqual(a, b [][]byte) bool {
	var n int
	for _, nal := range b {
		if len(nal) == 0 {
			continue
		}
		if n >= len(a) || !bytes.Equal(a[n], nal) {
			return false
		}
		n++
	}
	return n == len(a)
}
