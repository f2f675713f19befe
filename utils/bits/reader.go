// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bits

// Reader 按 MSB 优先顺序读取比特流，越界时 panic，由调用方 recover 转为 error.
type Reader struct {
	buf    []byte
	offset int // bit base
}

// NewReader retruns a new Reader.
func NewReader(buf []byte) *Reader {
	return &Reader{
		buf: buf,
	}
}

// Skip skip n bits.
func (r *Reader) Skip(n int) {
	if n <= 0 {
		return
	}
	_ = r.buf[(r.offset+n-1)>>3] // bounds check hint to compiler; see golang.org/issue/14808
	r.offset += n
}

// Peek peek the uint64 of n bits.
func (r *Reader) Peek(n int) uint64 {
	clone := *r
	return clone.readUint64(n, 64)
}

// Read read the uint32 of n bits.
func (r *Reader) Read(n int) uint32 {
	return uint32(r.readUint64(n, 32))
}

// ReadBit read a bit.
func (r *Reader) ReadBit() uint8 {
	_ = r.buf[r.offset>>3] // bounds check hint to compiler; see golang.org/issue/14808

	tmp := (r.buf[r.offset>>3] >> (7 - r.offset&0x7)) & 1
	r.offset++
	return tmp
}

// ReadUe 读取无符号指数哥伦布码 ue(v).
func (r *Reader) ReadUe() (res uint32) {
	zeros := 0
	for r.ReadBit() == 0 && zeros < 32 {
		zeros++
	}

	res = r.Read(zeros)
	res += (1 << uint(zeros)) - 1
	return
}

// ReadSe 读取有符号指数哥伦布码 se(v)，k 为奇数时映射为正数.
func (r *Reader) ReadSe() int32 {
	k := r.ReadUe()
	if k&0x01 != 0 {
		return int32((k + 1) / 2)
	}
	return -int32(k / 2)
}

// ReadBool read one bit bool.
func (r *Reader) ReadBool() bool { return r.ReadBit() == 1 }

// ReadUint8 read the uint8 of n bits.
func (r *Reader) ReadUint8(n int) uint8 { return uint8(r.readUint64(n, 8)) }

// ReadUint16 read the uint16 of n bits.
func (r *Reader) ReadUint16(n int) uint16 { return uint16(r.readUint64(n, 16)) }

// ReadUint32 read the uint32 of n bits.
func (r *Reader) ReadUint32(n int) uint32 { return uint32(r.readUint64(n, 32)) }

// ReadUint64 read the uint64 of n bits.
func (r *Reader) ReadUint64(n int) uint64 { return r.readUint64(n, 64) }

// ReadUe8 read the UE GolombCode of uint8.
func (r *Reader) ReadUe8() uint8 { return uint8(r.ReadUe()) }

// ReadUe16 read the UE GolombCode of uint16.
func (r *Reader) ReadUe16() uint16 { return uint16(r.ReadUe()) }

// ReadSe8 read the SE of int8.
func (r *Reader) ReadSe8() int8 { return int8(r.ReadSe()) }

// ReadSe16 read the SE of int16.
func (r *Reader) ReadSe16() int16 { return int16(r.ReadSe()) }

// Offset returns the offset of bits.
func (r *Reader) Offset() int {
	return r.offset
}

// BitsLeft returns the number of left bits.
func (r *Reader) BitsLeft() int {
	return len(r.buf)<<3 - r.offset
}

// ByteAligned 当前位置是否字节对齐
func (r *Reader) ByteAligned() bool {
	return r.offset&0x7 == 0
}

// MoreRbspData 判断 rbsp_trailing_bits 之前是否还有语法元素.
func (r *Reader) MoreRbspData() bool {
	left := r.BitsLeft()
	if left <= 0 {
		return false
	}

	// 从尾部找到最后一个为 1 的比特，即 rbsp_stop_one_bit
	last := len(r.buf) - 1
	for last >= 0 && r.buf[last] == 0 {
		last--
	}
	if last < 0 {
		return false
	}
	b := r.buf[last]
	stop := last<<3 + 7
	for b&1 == 0 {
		b >>= 1
		stop--
	}
	return r.offset < stop
}

// TrailingBits 读取 rbsp_trailing_bits，格式正确时返回 true.
func (r *Reader) TrailingBits() bool {
	if r.BitsLeft() <= 0 || r.ReadBit() != 1 {
		return false
	}
	for !r.ByteAligned() {
		if r.ReadBit() != 0 {
			return false
		}
	}
	return true
}

var bitsMask = [9]byte{
	0x00,
	0x01, 0x03, 0x07, 0x0f,
	0x1f, 0x3f, 0x7f, 0xff,
}

// readUint64 read the uint64 of n bits.
func (r *Reader) readUint64(n, max int) uint64 {
	if n <= 0 || n > max {
		return 0
	}

	_ = r.buf[(r.offset+n-1)>>3] // bounds check hint to compiler; see golang.org/issue/14808

	idx := r.offset >> 3
	validBits := 8 - r.offset&0x7
	r.offset += n

	var tmp uint64
	for n >= validBits {
		n -= validBits
		tmp |= uint64(r.buf[idx]&bitsMask[validBits]) << n
		idx++
		validBits = 8
	}

	if n > 0 {
		tmp |= uint64((r.buf[idx] >> (validBits - n)) & bitsMask[n])
	}
	return tmp
}
