// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"fmt"
	"sync/atomic"
)

const maxSessionSequence = 0x3fff_ffff

// SID session ID
// codec(2bits)+sequence(30bits)
type SID uint32

var sessionSequenceSeed uint32

// NewSID 创建新的会话 ID，codec 为编码描述表中的序号
func NewSID(codec int, seed *uint32) SID {
	localid := atomic.AddUint32(seed, 1)
	if localid >= maxSessionSequence {
		localid = 1
		atomic.StoreUint32(seed, localid)
	}
	return SID(uint32(codec&0x3)<<30) | SID(localid&maxSessionSequence)
}

// Codec 编码描述，序号无效时返回 nil
func (id SID) Codec() *Descriptor {
	i := int(id>>30) & 0x3
	if i < len(descriptors) {
		return descriptors[i]
	}
	return nil
}

// Sequence 会话序号
func (id SID) Sequence() uint32 {
	return uint32(id & SID(maxSessionSequence))
}

func (id SID) String() string {
	name := "unknown"
	if d := id.Codec(); d != nil {
		name = d.Name
	}
	return fmt.Sprintf("%s-%d", name, id.Sequence())
}

// ParseSID 解析 String 的输出
func ParseSID(s string) (SID, error) {
	for i, d := range descriptors {
		var seq uint32
		if _, err := fmt.Sscanf(s, d.Name+"-%d", &seq); err == nil && seq > 0 && seq <= maxSessionSequence {
			return SID(uint32(i)<<30) | SID(seq), nil
		}
	}
	return 0, fmt.Errorf("decoder: invalid session id %q", s)
}

func descriptorIndex(desc *Descriptor) int {
	for i, d := range descriptors {
		if d == desc {
			return i
		}
	}
	return 0
}
