// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package service

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cnotch/scheduler"
	"github.com/cnotch/v4l2dec/config"
	"github.com/cnotch/v4l2dec/decoder"
	"github.com/cnotch/v4l2dec/network"
	"github.com/cnotch/v4l2dec/provider/backend"
	"github.com/cnotch/xlog"
)

// Service 状态服务对象(服务的入口)
type Service struct {
	context  context.Context
	cancel   context.CancelFunc
	logger   *xlog.Logger
	devices  backend.Provider
	http     *http.Server
	addrs    []string
	reaper   *idleReaper
	tlsusing bool
}

// NewService 创建服务，devices 用于设备探测
func NewService(ctx context.Context, devices backend.Provider, l *xlog.Logger) (s *Service, err error) {
	ctx, cancel := context.WithCancel(ctx)
	s = &Service{
		context: ctx,
		cancel:  cancel,
		logger:  l,
		devices: devices,
		http:    new(http.Server),
	}

	mux := http.NewServeMux()
	if config.Profile() {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	s.initApis(mux)
	mux.HandleFunc("/ws/stats", s.onStatsSocket)
	s.http.Handler = mux

	// 定时输出解码统计
	if period := config.StatsPeriod(); period > 0 {
		scheduler.PeriodFunc(period, period, s.logStats,
			"The task of logging decode statistics")
	}

	// 回收空闲会话
	if idle := config.IdleTimeout(); idle > 0 {
		s.reaper = startIdleReaper(idle, s.logger)
	}

	s.logger.Info("service configured")
	return s, nil
}

// Handler 返回服务的 HTTP Handler
func (s *Service) Handler() http.Handler {
	return s.http.Handler
}

// Listen starts the service.
func (s *Service) Listen() (err error) {
	defer s.Close()
	s.hookSignals()

	addr, err := network.ParseListen(config.Addr(), 8554)
	if err != nil {
		s.logger.Panic(err.Error())
	}
	s.addrs = network.Advertised(addr)
	s.listen(addr, nil)

	// https
	if tlsconf := config.GetTLSConfig(); tlsconf != nil {
		conf, err := tlsconf.Load()
		if err != nil {
			s.logger.Errorf("load tls config failed: %v", err)
		} else if tlsAddr, err := network.ParseListen(tlsconf.ListenAddr, 8443); err == nil {
			s.listen(tlsAddr, conf)
			s.tlsusing = true
		}
	}

	s.logger.Infof("service started(%s).", config.Version)
	<-s.context.Done()
	return nil
}

// listen 在指定地址上启动 http 服务
func (s *Service) listen(addr *net.TCPAddr, conf *tls.Config) {
	s.logger.Infof("starting the listener, addr = %s.", addr.String())

	var l net.Listener
	var err error
	if conf != nil {
		l, err = tls.Listen("tcp", addr.String(), conf)
	} else {
		l, err = net.Listen("tcp", addr.String())
	}
	if err != nil {
		s.logger.Panic(err.Error())
	}

	go func() {
		if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("http serve on %s: %v", addr, err)
		}
	}()
}

// Close closes gracefully the service.
func (s *Service) Close() {
	if s.cancel != nil {
		s.cancel()
	}

	// 停止计划任务
	if s.reaper != nil {
		s.reaper.stop()
	}
	jobs := scheduler.Jobs()
	for _, job := range jobs {
		job.Cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.http.Shutdown(ctx)

	// 退出前释放全部设备缓冲
	decoder.CloseAll()
}

// OnSignal starts the signal processing and makes su
func (s *Service) hookSignals() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range c {
			s.onSignal(sig)
		}
	}()
}

// OnSignal will be called when a OS-level signal is received.
func (s *Service) onSignal(sig os.Signal) {
	switch sig {
	case syscall.SIGTERM:
		fallthrough
	case syscall.SIGINT:
		s.logger.Warn(fmt.Sprintf("received signal %s, exiting...", sig.String()))
		s.Close()
		os.Exit(0)
	}
}
