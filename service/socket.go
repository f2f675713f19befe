// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package service

import (
	"net/http"
	"strings"
	"time"

	"github.com/cnotch/v4l2dec/decoder"
	"github.com/cnotch/v4l2dec/network/websocket"
	"github.com/cnotch/v4l2dec/stats"
)

// 推送间隔的范围
const (
	defaultPushInterval = time.Second
	minPushInterval     = 100 * time.Millisecond
)

// statsMessage 推送的统计快照
type statsMessage struct {
	stats.Summary
	List []*decoder.SessionInfo `json:"session_list,omitempty"`
}

// onStatsSocket 周期推送统计；?interval=500ms 设置间隔，?sessions=1 附带会话列表
func (s *Service) onStatsSocket(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	interval := defaultPushInterval
	if v := params.Get("interval"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		interval = d
	}
	if interval < minPushInterval {
		interval = minPushInterval
	}
	withSessions := strings.TrimSpace(params.Get("sessions")) == "1"

	c, err := websocket.Upgrade(w, r)
	if err != nil {
		s.logger.Warnf("websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	defer c.Close()

	s.logger.Debugf("stats push to %s started, interval %v", r.RemoteAddr, interval)
	push := time.NewTicker(interval)
	defer push.Stop()
	ping := time.NewTicker(websocket.PingPeriod())
	defer ping.Stop()

	send := func() bool {
		msg := statsMessage{Summary: stats.Measure()}
		if withSessions {
			msg.List = decoder.Infos()
		}
		if err := c.WriteJSON(&msg); err != nil {
			s.logger.Debugf("stats push to %s stopped: %v", r.RemoteAddr, err)
			return false
		}
		return true
	}

	for ok := send(); ok; {
		select {
		case <-push.C:
			ok = send()
		case <-ping.C:
			ok = c.Ping() == nil
		case <-c.Closing():
			return
		case <-s.context.Done():
			return
		}
	}
}
