// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package websocket 基于 websocket 的单向 JSON 推送连接.
package websocket

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 512                 // 客户端只发送控制消息
)

// ErrClosed 连接已关闭
var ErrClosed = errors.New("websocket: connection closed")

// The default upgrader to use
var upgrader = &websocket.Upgrader{
	Subprotocols: []string{"stats"},
	CheckOrigin:  func(r *http.Request) bool { return true },
}

// Conn JSON 推送连接；客户端消息被丢弃，仅用于检测断开
type Conn struct {
	mu      sync.Mutex
	socket  *websocket.Conn
	closing chan struct{}
	once    sync.Once
	path    string
}

// Upgrade 升级 HTTP 请求并启动读循环
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		socket:  ws,
		closing: make(chan struct{}),
		path:    r.URL.Path,
	}

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.readLoop()
	return c, nil
}

func (c *Conn) readLoop() {
	defer c.Close()
	for {
		if _, _, err := c.socket.NextReader(); err != nil {
			return
		}
	}
}

// Path 接入时的路径
func (c *Conn) Path() string { return c.path }

// Closing 连接关闭时关闭的通道
func (c *Conn) Closing() <-chan struct{} { return c.closing }

// WriteJSON 发送一条文本 JSON 消息
func (c *Conn) WriteJSON(v interface{}) error {
	// Serialize write to avoid concurrent write
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closing:
		return ErrClosed
	default:
	}

	c.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return c.socket.WriteJSON(v)
}

// Ping 发送 ping 控制消息
func (c *Conn) Ping() error {
	return c.socket.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// PingPeriod 建议的 ping 间隔
func PingPeriod() time.Duration { return pingPeriod }

// Close 关闭连接，可重复调用
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closing)
		c.mu.Lock()
		c.socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		err = c.socket.Close()
	})
	return err
}
