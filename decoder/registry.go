// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"sort"
	"sync"
	"time"
)

// 全局变量
var (
	sessions sync.Map // 活动会话 SID->*Session
)

func regist(s *Session) {
	sessions.Store(s.id, s)
}

func unregist(s *Session) {
	if si, ok := sessions.Load(s.id); ok && si.(*Session) == s {
		sessions.Delete(s.id)
	}
}

// Get 获取活动会话
func Get(id SID) *Session {
	if si, ok := sessions.Load(id); ok {
		return si.(*Session)
	}
	return nil
}

// Count 活动会话数量
func Count() (n int) {
	sessions.Range(func(key, value interface{}) bool {
		n++
		return true
	})
	return
}

// Infos 返回全部活动会话的状态，按 ID 排序
func Infos() []*SessionInfo {
	var list []*Session
	sessions.Range(func(key, value interface{}) bool {
		list = append(list, value.(*Session))
		return true
	})

	sort.Slice(list, func(i, j int) bool {
		return list[i].id < list[j].id
	})

	infos := make([]*SessionInfo, len(list))
	for i, s := range list {
		infos[i] = s.Info()
	}
	return infos
}

// CloseIdle 关闭空闲超过 d 的会话，返回关闭数量
func CloseIdle(d time.Duration) (n int) {
	now := time.Now()
	sessions.Range(func(key, value interface{}) bool {
		s := value.(*Session)
		if now.Sub(s.LastActive()) >= d {
			s.logger.Infof("session idle for %v, closing", now.Sub(s.LastActive()).Round(time.Second))
			s.Close()
			n++
		}
		return true
	})
	return
}

// CloseAll 关闭全部活动会话
func CloseAll() {
	sessions.Range(func(key, value interface{}) bool {
		value.(*Session).Close()
		return true
	})
}
