// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message struct {
	Seq int `json:"seq"`
}

func TestConn_Push(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := Upgrade(w, r)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "/ws/stats", c.Path())
		for i := 1; i <= 3; i++ {
			assert.NoError(t, c.WriteJSON(message{Seq: i}))
		}
		<-c.Closing()
		assert.ErrorIs(t, c.WriteJSON(message{}), ErrClosed)
		close(done)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/stats"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		var m message
		require.NoError(t, ws.ReadJSON(&m))
		assert.Equal(t, i, m.Seq)
	}
	ws.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not observe the close")
	}
}

func TestUpgrade_NotWebsocket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := Upgrade(w, r)
		assert.Error(t, err)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
