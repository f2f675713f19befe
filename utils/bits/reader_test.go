// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bits

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var bitsDatas = [][]byte{
	{0x46, 0x4c, 0x56, 0x01, 0x05, 0x00, 0x00, 0x00, 0x09},
	{
		0x47, 0x40, 0x00, 0x10, 0x00,
		0x00, 0xb0, 0x0d, 0x00, 0x01, 0xc1, 0x00, 0x00,
		0x00, 0x01, 0xf0, 0x01,
		0x2e, 0x70, 0x19, 0x05,
	},
}

func TestBitsReader_ReadBit(t *testing.T) {
	r := NewReader(bitsDatas[0])
	gotRet := r.ReadBit()
	wantRet := uint8(0)
	assert.Equal(t, wantRet, gotRet)

	gotRet = r.ReadBit()
	wantRet = 1
	assert.Equal(t, wantRet, gotRet)

	r.Skip(3)
	gotRet = r.ReadBit()
	wantRet = 1
	assert.Equal(t, wantRet, gotRet)

	gotRet = r.ReadBit()
	wantRet = 1
	assert.Equal(t, wantRet, gotRet)

	r.Skip(5)
	gotRet = r.ReadBit()
	wantRet = 1
	assert.Equal(t, wantRet, gotRet)

	gotRet = r.ReadBit()
	wantRet = 1
	assert.Equal(t, wantRet, gotRet)

	gotRet = r.ReadBit()
	wantRet = 0
	assert.Equal(t, wantRet, gotRet)

	gotRet = r.ReadUint8(8)
	wantRet = 0x2b
	assert.Equal(t, wantRet, gotRet)

}

func TestBitsReader_ReadUint16(t *testing.T) {
	r := NewReader(bitsDatas[0])
	gotRet := r.ReadUint16(16)
	wantRet := uint16(0x464c)
	assert.Equal(t, wantRet, gotRet)

	r.Skip(4)
	gotRet = r.ReadUint16(16)
	wantRet = uint16(0x6010)
	assert.Equal(t, wantRet, gotRet)

	r.Skip(1)
	gotRet = r.ReadUint16(2)
	wantRet = uint16(0x2)
	assert.Equal(t, wantRet, gotRet)
}

func TestBitsReader_ReadUint32(t *testing.T) {
	r := NewReader(bitsDatas[1])
	gotRet := r.ReadUint32(32)
	wantRet := uint32(0x47400010)
	assert.Equal(t, wantRet, gotRet)

	r.Skip(4)
	gotRet = r.ReadUint32(32)
	wantRet = uint32(0x000b00d0)
	assert.Equal(t, wantRet, gotRet)

	r.Skip(8)
	gotRet = r.ReadUint32(12)
	wantRet = uint32(0x1c1)
	assert.Equal(t, wantRet, gotRet)
}

func TestBitsReader_ReadUe(t *testing.T) {
	// 1 010 011 00100 0001000 + rbsp_trailing_bits
	r := NewReader([]byte{0xa6, 0x41, 0x10})
	assert.Equal(t, uint32(0), r.ReadUe())
	assert.Equal(t, uint32(1), r.ReadUe())
	assert.Equal(t, uint32(2), r.ReadUe())
	assert.Equal(t, uint32(3), r.ReadUe())
	assert.Equal(t, uint32(7), r.ReadUe())
	assert.True(t, r.TrailingBits())
	assert.Equal(t, 0, r.BitsLeft())
}

func TestBitsReader_ReadSe(t *testing.T) {
	tests := []struct {
		name string
		code uint32
		want int32
	}{
		{"zero", 0, 0},
		{"one", 1, 1},
		{"minus one", 2, -1},
		{"two", 3, 2},
		{"minus two", 4, -2},
		{"large positive", 2001, 1001},
		{"large negative", 2002, -1001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(16)
			w.PutUe(tt.code)
			w.Finish()
			r := NewReader(w.Bytes())
			assert.Equal(t, tt.want, r.ReadSe())
		})
	}
}

func TestBitsReader_MoreRbspData(t *testing.T) {
	// ue(0) ue(0) 后紧跟 stop bit
	r := NewReader([]byte{0xe0})
	assert.True(t, r.MoreRbspData())
	r.ReadUe()
	assert.True(t, r.MoreRbspData())
	r.ReadUe()
	assert.False(t, r.MoreRbspData())
	assert.True(t, r.TrailingBits())

	assert.False(t, NewReader([]byte{0x00, 0x00}).MoreRbspData())
}

func TestBitsReader_TrailingBitsMalformed(t *testing.T) {
	r := NewReader([]byte{0x41})
	r.Skip(1)
	assert.False(t, r.TrailingBits())
}

func TestBitsReader_OutOfRangePanics(t *testing.T) {
	r := NewReader([]byte{0x00})
	assert.Panics(t, func() { r.ReadUe() })
}

func BenchmarkReadBit(b *testing.B) {
	r := NewReader(bitsDatas[1])
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.offset = 2
		ret := r.ReadBit()
		_ = ret
	}
}

func BenchmarkReadUint8(b *testing.B) {
	r := NewReader(bitsDatas[1])
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.offset = 2
		ret := r.ReadUint8(7)
		_ = ret
	}
}

func BenchmarkReadUe(b *testing.B) {
	w := NewWriter(16)
	w.PutUe(1920/16 - 1)
	w.Finish()
	buf := w.Bytes()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r := NewReader(buf)
		_ = r.ReadUe()
	}
}
