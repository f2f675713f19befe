// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bits

// Writer 按 MSB 优先顺序写入比特流.
// 容量为硬上限，超出部分的字节被静默丢弃，不会重新分配.
type Writer struct {
	buf     []byte
	cur     byte // 未满 8 位的累加字节
	nbits   int  // cur 中的有效位数
	dropped int
}

// NewWriter 创建容量为 capacity 字节的 Writer.
func NewWriter(capacity int) *Writer {
	if capacity < 0 {
		capacity = 0
	}
	return &Writer{buf: make([]byte, 0, capacity)}
}

// PutBits 写入 v 的低 n 位 (1-32).
func (w *Writer) PutBits(v uint32, n int) {
	w.putBits64(uint64(v), n)
}

// PutBit 写入一个比特.
func (w *Writer) PutBit(b bool) {
	if b {
		w.putBits64(1, 1)
	} else {
		w.putBits64(0, 1)
	}
}

// PutFlag 写入 0/1 标志的最低位.
func (w *Writer) PutFlag(v uint8) {
	w.putBits64(uint64(v&1), 1)
}

// PutUe 写入无符号指数哥伦布码 ue(v)，0xFFFFFFFF 的码字为 65 位.
func (w *Writer) PutUe(v uint32) {
	w.putUe64(uint64(v))
}

// PutSe 写入有符号指数哥伦布码 se(v): v<=0 映射为 -2v，v>0 映射为 2v-1.
// 映射值最大为 2^32 (v 为 math.MinInt32)，同样按 33 位码字写出.
func (w *Writer) PutSe(v int32) {
	if v <= 0 {
		w.putUe64(uint64(-int64(v)) * 2)
	} else {
		w.putUe64(uint64(v)*2 - 1)
	}
}

// putUe64 k 不超过 2^32
func (w *Writer) putUe64(k uint64) {
	code := k + 1
	n := 0
	for tmp := code; tmp != 0; tmp >>= 1 {
		n++
	}
	w.putBits64(0, n-1)
	w.putBits64(code, n)
}

// Finish 写入 rbsp_trailing_bits (一个 1 及补齐到字节边界的 0)，返回总字节数.
func (w *Writer) Finish() int {
	w.putBits64(1, 1)
	for w.nbits != 0 {
		w.putBits64(0, 1)
	}
	return len(w.buf)
}

// Bytes 返回已写入的完整字节.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len 返回已写入的完整字节数.
func (w *Writer) Len() int {
	return len(w.buf)
}

// BitLen 返回已写入的总比特数，包括被丢弃的字节.
func (w *Writer) BitLen() int {
	return (len(w.buf)+w.dropped)<<3 + w.nbits
}

// Aligned 是否处于字节边界
func (w *Writer) Aligned() bool {
	return w.nbits == 0
}

// Dropped 返回因超出容量被丢弃的字节数.
func (w *Writer) Dropped() int {
	return w.dropped
}

func (w *Writer) putBits64(v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		w.cur = w.cur<<1 | byte(v>>uint(i))&1
		w.nbits++
		if w.nbits == 8 {
			if len(w.buf) < cap(w.buf) {
				w.buf = append(w.buf, w.cur)
			} else {
				w.dropped++
			}
			w.cur = 0
			w.nbits = 0
		}
	}
}
