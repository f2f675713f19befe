// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cnotch/v4l2dec/decoder"
	"github.com/cnotch/v4l2dec/device/simdev"
	"github.com/cnotch/v4l2dec/provider/backend"
	"github.com/cnotch/xlog"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *httptest.Server) {
	t.Helper()
	require.NoError(t, backend.Sim.Configure(nil))
	s, err := NewService(context.Background(), backend.Sim, xlog.L())
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})
	return s, srv
}

func openSession(t *testing.T) *decoder.Session {
	t.Helper()
	desc, ok := decoder.LookupProfile(decoder.ProfileH264Main)
	require.True(t, ok)
	session, err := decoder.OpenSession(simdev.New(simdev.Options{}), desc, decoder.SessionOptions{
		Width:          64,
		Height:         32,
		OutputBuffers:  2,
		CaptureBuffers: 2,
		BitstreamSize:  1024,
	})
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestApis_Server(t *testing.T) {
	_, srv := newTestService(t)

	var info struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Device  string `json:"device"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/server", &info))
	assert.Equal(t, "v4l2dec", info.Name)
	assert.Equal(t, "sim", info.Device)
	assert.NotEmpty(t, info.Version)

	var rt struct {
		Sessions struct {
			Active int64 `json:"active"`
		} `json:"sessions"`
		Extra *struct {
			Goroutines int32 `json:"goroutines"`
		} `json:"extra"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/runtime?extra=1", &rt))
	require.NotNil(t, rt.Extra)
	assert.Greater(t, rt.Extra.Goroutines, int32(0))
}

func TestApis_Codecs(t *testing.T) {
	_, srv := newTestService(t)

	var list struct {
		Codecs []struct {
			Name     string   `json:"name"`
			FourCC   string   `json:"fourcc"`
			Profiles []string `json:"profiles"`
		} `json:"codecs"`
		Device string   `json:"device"`
		Probed []string `json:"probed"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/codecs?probe=1", &list))
	require.Len(t, list.Codecs, 4)
	assert.Equal(t, "H264", list.Codecs[0].Name)
	assert.Equal(t, "H264", list.Codecs[0].FourCC)
	assert.Contains(t, list.Codecs[1].Profiles, "HEVCMain10")
	assert.Equal(t, "sim://decoder", list.Device)
	assert.Contains(t, list.Probed, "H264ConstrainedBaseline")
	assert.Contains(t, list.Probed, "VP9Profile2")
	assert.NotContains(t, list.Probed, "AV1Profile0")
}

func TestApis_Sessions(t *testing.T) {
	_, srv := newTestService(t)
	session := openSession(t)
	id := session.ID().String()

	var list struct {
		Total    int                    `json:"total"`
		Sessions []*decoder.SessionInfo `json:"sessions"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/sessions", &list))
	assert.GreaterOrEqual(t, list.Total, 1)
	found := false
	for _, info := range list.Sessions {
		found = found || info.ID == id
	}
	assert.True(t, found)

	var info decoder.SessionInfo
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/sessions/"+id, &info))
	assert.Equal(t, "H264", info.Codec)
	assert.Equal(t, 2, info.Output.Size)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/v1/sessions/H264-999999", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/v1/sessions/bogus", nil))

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/sessions/"+id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Nil(t, decoder.Get(session.ID()))
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/v1/sessions/"+id, nil))
}

func TestApis_SessionsPaging(t *testing.T) {
	_, srv := newTestService(t)
	for i := 0; i < 3; i++ {
		openSession(t)
	}

	var page struct {
		Total         int                    `json:"total"`
		NextPageToken string                 `json:"next_page_token"`
		Sessions      []*decoder.SessionInfo `json:"sessions"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/sessions?page_size=2", &page))
	require.Len(t, page.Sessions, 2)
	assert.Equal(t, page.Sessions[1].ID, page.NextPageToken)

	token := page.NextPageToken
	page.Sessions = nil
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/sessions?page_size=2&page_token="+token, &page))
	require.NotEmpty(t, page.Sessions)
	assert.NotEqual(t, token, page.Sessions[0].ID)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/v1/sessions?page_size=x", nil))
}

func TestLocalInterceptor(t *testing.T) {
	tests := []struct {
		method string
		remote string
		want   bool
	}{
		{http.MethodGet, "8.8.8.8:1234", true},
		{http.MethodDelete, "127.0.0.1:1234", true},
		{http.MethodDelete, "8.8.8.8:1234", false},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.remote, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/api/v1/sessions/H264-1", nil)
			r.RemoteAddr = tt.remote
			w := httptest.NewRecorder()
			assert.Equal(t, tt.want, localInterceptor(w, r))
			if !tt.want {
				assert.Equal(t, http.StatusForbidden, w.Code)
			}
		})
	}
}

func TestStatsSocket(t *testing.T) {
	_, srv := newTestService(t)
	openSession(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/stats?interval=100ms&sessions=1"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	for i := 0; i < 2; i++ {
		var msg struct {
			Time     time.Time `json:"time"`
			Sessions struct {
				Active int64 `json:"active"`
			} `json:"sessions"`
			List []*decoder.SessionInfo `json:"session_list"`
		}
		ws.SetReadDeadline(time.Now().Add(5 * time.Second))
		require.NoError(t, ws.ReadJSON(&msg))
		assert.False(t, msg.Time.IsZero())
		assert.GreaterOrEqual(t, msg.Sessions.Active, int64(1))
		assert.NotEmpty(t, msg.List)
	}

	resp, err := http.Get(srv.URL + "/ws/stats?interval=soon")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIdleReaper(t *testing.T) {
	session := openSession(t)

	r := &idleReaper{d: time.Hour, logger: xlog.L()}
	now := time.Now()
	assert.Equal(t, now.Add(30*time.Minute), r.Next(now))

	r.run()
	assert.NotNil(t, decoder.Get(session.ID()))

	r.d = time.Nanosecond
	r.run()
	assert.Nil(t, decoder.Get(session.ID()))

	r.stop()
	assert.True(t, r.Next(now).IsZero())
}
