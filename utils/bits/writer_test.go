// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bits

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_PutBits(t *testing.T) {
	w := NewWriter(8)
	w.PutBits(0x67, 8)
	w.PutBits(0x5, 3)
	w.PutBits(0x0, 5)
	w.PutBits(0xdeadbeef, 32)
	assert.True(t, w.Aligned())
	assert.Equal(t, []byte{0x67, 0xa0, 0xde, 0xad, 0xbe, 0xef}, w.Bytes())
}

func TestWriter_PutUe(t *testing.T) {
	w := NewWriter(8)
	w.PutUe(0)
	w.PutUe(1)
	w.PutUe(2)
	w.PutUe(3)
	n := w.Finish()
	require.Equal(t, 2, n)
	assert.Equal(t, []byte{0xa6, 0x48}, w.Bytes())
}

func TestWriter_SeZeroEqualsUeZero(t *testing.T) {
	ue := NewWriter(4)
	ue.PutUe(0)
	ue.Finish()

	se := NewWriter(4)
	se.PutSe(0)
	se.Finish()

	assert.Equal(t, ue.Bytes(), se.Bytes())
	assert.Equal(t, ue.BitLen(), se.BitLen())
}

func TestWriter_FinishAligned(t *testing.T) {
	w := NewWriter(4)
	w.PutBits(0xff, 8)
	assert.Equal(t, 2, w.Finish())
	assert.Equal(t, []byte{0xff, 0x80}, w.Bytes())
}

func TestWriter_CapacityCeiling(t *testing.T) {
	w := NewWriter(2)
	w.PutBits(0x010203, 24)
	assert.Equal(t, []byte{0x01, 0x02}, w.Bytes())
	assert.Equal(t, 1, w.Dropped())
	assert.Equal(t, 2, w.Finish())
	assert.Equal(t, 2, w.Dropped())
	assert.Equal(t, 2, cap(w.Bytes()))
}

func TestWriter_UeMaxValue(t *testing.T) {
	w := NewWriter(16)
	w.PutUe(0xffffffff)
	w.Finish()
	r := NewReader(w.Bytes())
	assert.Equal(t, uint32(0xffffffff), r.ReadUe())
}

func TestWriter_ExpGolombRoundTrip(t *testing.T) {
	const limit = 1 << 20
	step := int32(1)
	if testing.Short() {
		step = 97
	}

	w := NewWriter(64 * 1024)
	var want []int32
	flush := func() {
		w.Finish()
		r := NewReader(w.Bytes())
		for _, v := range want {
			if v >= 0 {
				// 非负值同时校验 ue
				if !assert.Equal(t, uint32(v), r.ReadUe()) {
					return
				}
			}
			if !assert.Equal(t, v, r.ReadSe()) {
				return
			}
		}
		assert.True(t, r.TrailingBits())
		w = NewWriter(64 * 1024)
		want = want[:0]
	}

	for v := int32(-limit); v <= limit; v += step {
		if v >= 0 {
			w.PutUe(uint32(v))
		}
		w.PutSe(v)
		want = append(want, v)
		if len(want) == 4096 {
			flush()
		}
	}
	flush()
	assert.Equal(t, 0, w.Dropped())
}

func TestWriter_PutSeExtremes(t *testing.T) {
	w := NewWriter(16)
	w.PutSe(math.MinInt32)
	assert.Equal(t, 65, w.BitLen())
	w.Finish()
	// 32 个前导零，码字 2^32+1，停止位
	assert.Equal(t, []byte{0, 0, 0, 0, 0x80, 0, 0, 0, 0xc0}, w.Bytes())

	w = NewWriter(16)
	w.PutSe(math.MaxInt32)
	w.Finish()
	r := NewReader(w.Bytes())
	assert.Equal(t, int32(math.MaxInt32), r.ReadSe())
}

func BenchmarkPutUe(b *testing.B) {
	w := NewWriter(b.N*8 + 8)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.PutUe(uint32(i & 0xffff))
	}
}
