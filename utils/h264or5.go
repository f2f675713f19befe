// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package utils

import "bytes"

// StartCode Annex-B 的 3 字节起始码
var StartCode = []byte{0x00, 0x00, 0x01}

// RemoveH264or5EmulationBytes A general routine for making a copy of a (H.264 or H.265) NAL unit, removing 'emulation' bytes from the copy
// copy from live555
func RemoveH264or5EmulationBytes(from []byte) []byte {
	from = RemoveNaluSeparator(from)
	to := make([]byte, len(from))
	toMaxSize := len(to)
	fromSize := len(from)
	toSize := 0
	i := 0
	for i < fromSize && toSize+1 < toMaxSize {
		if i+2 < fromSize && from[i] == 0 && from[i+1] == 0 && from[i+2] == 3 {
			to[toSize] = 0
			to[toSize+1] = 0
			toSize += 2
			i += 3
		} else {
			to[toSize] = from[i]
			toSize++
			i++
		}
	}

	// 如果剩余最后一个字节，拷贝它
	if i < fromSize && toSize < toMaxSize {
		to[toSize] = from[i]
		toSize++
		i++
	}

	return to[:toSize]
}

// InsertH264or5EmulationBytes 将 RBSP 转为 NAL 负载，在 00 00 0x(x<=3) 序列中插入 0x03.
// headerSize 指定不参与转换的 NAL 头字节数 (H.264 为 1，H.265 为 2).
func InsertH264or5EmulationBytes(rbsp []byte, headerSize int) []byte {
	if headerSize > len(rbsp) {
		headerSize = len(rbsp)
	}
	to := make([]byte, 0, len(rbsp)+len(rbsp)/64+4)
	to = append(to, rbsp[:headerSize]...)

	zeros := 0
	for _, b := range rbsp[headerSize:] {
		if zeros >= 2 && b <= 3 {
			to = append(to, 0x03)
			zeros = 0
		}
		to = append(to, b)
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return to
}

// RemoveNaluSeparator 移除 NALU 分隔符 0x00000001 或 0x000001
func RemoveNaluSeparator(nalu []byte) []byte {
	if bytes.HasPrefix(nalu, []byte{0x0, 0x0, 0x0, 0x1}) {
		return nalu[4:]
	}
	if bytes.HasPrefix(nalu, StartCode) {
		return nalu[3:]
	}
	return nalu
}

// SplitNalUnits 按 3 或 4 字节起始码拆分 Annex-B 字节流，返回的 NAL 不含起始码.
func SplitNalUnits(stream []byte) [][]byte {
	var nalus [][]byte
	start := -1
	i := 0
	for i+2 < len(stream) {
		if stream[i] == 0 && stream[i+1] == 0 && stream[i+2] == 1 {
			if start >= 0 {
				nalus = append(nalus, trimTrailingZero(stream[start:i]))
			}
			i += 3
			start = i
			continue
		}
		i++
	}
	if start >= 0 && start <= len(stream) {
		nalus = append(nalus, stream[start:])
	}
	return nalus
}

// 4 字节起始码的前导 0 属于下一个起始码
func trimTrailingZero(nal []byte) []byte {
	if n := len(nal); n > 0 && nal[n-1] == 0 {
		return nal[:n-1]
	}
	return nal
}
