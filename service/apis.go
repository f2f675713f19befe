// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package service

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cnotch/apirouter"
	"github.com/cnotch/v4l2dec/config"
	"github.com/cnotch/v4l2dec/decoder"
	"github.com/cnotch/v4l2dec/network"
	"github.com/cnotch/v4l2dec/stats"
)

var (
	buffers = sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, 1024*2))
		},
	}
)

var crossdomainxml = []byte(
	`<?xml version="1.0" ?><cross-domain-policy>
			<allow-access-from domain="*" />
			<allow-http-request-headers-from domain="*" headers="*"/>
		</cross-domain-policy>`)

func (s *Service) initApis(mux *http.ServeMux) {
	api := apirouter.NewForGRPC(
		// 系统信息类API
		apirouter.GET("/api/v1/server", s.onGetServerInfo),
		apirouter.GET("/api/v1/runtime", s.onGetRuntime),
		apirouter.GET("/api/v1/codecs", s.onListCodecs),

		// 会话管理API
		apirouter.GET("/api/v1/sessions", s.onListSessions),
		apirouter.GET("/api/v1/sessions/{id=*}", s.onGetSession),
		apirouter.DELETE("/api/v1/sessions/{id=*}", s.onCloseSession),
	)

	iterc := apirouter.ChainInterceptor(apirouter.PreInterceptor(localInterceptor))

	// api add to mux
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if path.Base(r.URL.Path) == "crossdomain.xml" {
			w.Header().Set("Content-Type", "application/xml")
			w.Write(crossdomainxml)
			return
		}

		if iterc.PreHandle(w, r) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Content-Type", "application/json")
			api.ServeHTTP(w, r)
		}
	})
}

// 获取服务信息
func (s *Service) onGetServerInfo(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	type server struct {
		Vendor   string   `json:"vendor"`
		Name     string   `json:"name"`
		Version  string   `json:"version"`
		OS       string   `json:"os"`
		Arch     string   `json:"arch"`
		StartOn  string   `json:"start_on"`
		Duration string   `json:"duration"`
		Device   string   `json:"device"`
		Addrs    []string `json:"addrs,omitempty"`
		TLS      bool     `json:"tls"`
	}
	srv := server{
		Vendor:   config.Vendor,
		Name:     config.Name,
		Version:  config.Version,
		OS:       runtime.GOOS,
		Arch:     strings.ToUpper(runtime.GOARCH),
		StartOn:  stats.StartingTime.Format(time.RFC3339Nano),
		Duration: time.Since(stats.StartingTime).String(),
		Addrs:    s.addrs,
		TLS:      s.tlsusing,
	}
	if s.devices != nil {
		srv.Device = s.devices.Name()
	}

	if err := jsonTo(w, &srv); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// 获取运行时信息
func (s *Service) onGetRuntime(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	const extraKey = "extra"

	type runtime struct {
		On       string              `json:"on"`
		Proc     stats.Proc          `json:"proc"`
		Decode   stats.FlowSample    `json:"decode"`
		Sessions stats.CounterSample `json:"sessions"`
		Exports  stats.CounterSample `json:"exports"`
		Extra    *stats.Runtime      `json:"extra,omitempty"`
	}

	sum := stats.Measure()
	rt := runtime{
		On:       sum.Time.Format(time.RFC3339Nano),
		Proc:     sum.Proc,
		Decode:   sum.Decode,
		Sessions: sum.Sessions,
		Exports:  sum.Exports,
	}

	params := r.URL.Query()
	if strings.TrimSpace(params.Get(extraKey)) == "1" {
		rt.Extra = stats.MeasureFullRuntime()
	}

	if err := jsonTo(w, &rt); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// codecInfo 编码描述，probe=1 时附带设备声明的 profile
type codecInfo struct {
	Name     string            `json:"name"`
	FourCC   string            `json:"fourcc"`
	Profiles []decoder.Profile `json:"profiles"`
}

func (s *Service) onListCodecs(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	type codecs struct {
		Codecs   []codecInfo       `json:"codecs"`
		Device   string            `json:"device,omitempty"`
		Probed   []decoder.Profile `json:"probed,omitempty"`
		ProbeErr string            `json:"probe_error,omitempty"`
	}

	var list codecs
	for _, d := range decoder.Descriptors() {
		list.Codecs = append(list.Codecs, codecInfo{
			Name:     d.Name,
			FourCC:   d.FourCC.String(),
			Profiles: d.Profiles,
		})
	}

	if strings.TrimSpace(r.URL.Query().Get("probe")) == "1" && s.devices != nil {
		if dev, err := s.devices.Open(s.logger); err != nil {
			list.ProbeErr = err.Error()
		} else {
			list.Device = dev.Path()
			list.Probed, err = decoder.Probe(dev)
			if err != nil {
				list.ProbeErr = err.Error()
			}
			dev.Close()
		}
	}

	if err := jsonTo(w, &list); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Service) onListSessions(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	pageSize, pageToken, err := listParamers(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	infos := decoder.Infos()
	begini := 0
	if pageToken != "" {
		for i, info := range infos {
			if info.ID == pageToken {
				begini = i + 1
				break
			}
		}
	}

	type sessionInfos struct {
		Total         int                    `json:"total"`
		NextPageToken string                 `json:"next_page_token"`
		Sessions      []*decoder.SessionInfo `json:"sessions,omitempty"`
	}

	list := &sessionInfos{
		Total:         len(infos),
		NextPageToken: pageToken,
	}
	for i := begini; i < len(infos) && len(list.Sessions) < pageSize; i++ {
		list.Sessions = append(list.Sessions, infos[i])
		list.NextPageToken = infos[i].ID
	}

	if err := jsonTo(w, list); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func lookupSession(pathParams apirouter.Params) *decoder.Session {
	id, err := decoder.ParseSID(pathParams.ByName("id"))
	if err != nil {
		return nil
	}
	return decoder.Get(id)
}

func (s *Service) onGetSession(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	session := lookupSession(pathParams)
	if session == nil {
		http.NotFound(w, r)
		return
	}

	if err := jsonTo(w, session.Info()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Service) onCloseSession(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	session := lookupSession(pathParams)
	if session == nil {
		http.NotFound(w, r)
		return
	}

	s.logger.Infof("session %s closed by %s", session.ID(), r.RemoteAddr)
	session.Close()
	w.WriteHeader(http.StatusOK)
}

func jsonTo(w io.Writer, o interface{}) error {
	formatted := buffers.Get().(*bytes.Buffer)
	formatted.Reset()
	defer buffers.Put(formatted)

	body, err := json.Marshal(o)
	if err != nil {
		return err
	}

	if err := json.Indent(formatted, body, "", "\t"); err != nil {
		return err
	}

	if _, err := w.Write(formatted.Bytes()); err != nil {
		return err
	}
	return nil
}

func listParamers(params url.Values) (pageSize int, pageToken string, err error) {
	pageSizeStr := params.Get("page_size")
	pageSize = 20
	if pageSizeStr != "" {
		pageSize, err = strconv.Atoi(pageSizeStr)
		if err != nil {
			return pageSize, pageToken, err
		}
	}
	pageToken = params.Get("page_token")
	return
}

// 修改类请求只接受本机发起
func localInterceptor(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
		return true
	}

	if network.IsLocalhostIP(network.RemoteIP(r.RemoteAddr)) {
		return true
	}

	http.Error(w, "Only local requests may modify sessions", http.StatusForbidden)
	return false
}
