// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cnotch/scheduler"
	"github.com/cnotch/v4l2dec/config"
	"github.com/cnotch/v4l2dec/provider/backend"
	"github.com/cnotch/v4l2dec/service"
	"github.com/cnotch/xlog"
)

// command 子命令
type command struct {
	name  string
	usage string
	run   func(w io.Writer, devices backend.Provider, args []string) error
}

var commands = []command{
	{"serve", "run the status service (default)", runServe},
	{"probe", "list the profiles the decoder device declares", runProbe},
	{"synth", "synthesize parameter sets from a JSON picture parameter record", runSynth},
	{"inspect", "decode the parameter sets of an Annex-B stream", runInspect},
	{"bench", "decode synthetic pictures with concurrent simulated sessions", runBench},
}

func main() {
	flag.Usage = usage
	// 初始化配置
	config.InitConfig()
	if !flag.Parsed() {
		flag.Parse()
	}
	// 初始化全局计划任务
	scheduler.SetPanicHandler(func(job *scheduler.ManagedJob, r interface{}) {
		xlog.Errorf("scheduler task panic. tag: %v, recover: %v", job.Tag, r)
	})

	// 解码设备提供者
	devices := config.LoadDeviceProvider(backend.V4L2, backend.Sim).(backend.Provider)

	name, args := "serve", flag.Args()
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}
	for _, cmd := range commands {
		if cmd.name == name {
			if err := cmd.run(os.Stdout, devices, args); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
				os.Exit(1)
			}
			return
		}
	}

	fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
	usage()
	os.Exit(2)
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags] [command] [args]\n\nCommands:\n", config.Name)
	for _, cmd := range commands {
		fmt.Fprintf(out, "  %-8s %s\n", cmd.name, cmd.usage)
	}
	fmt.Fprintf(out, "\nFlags:\n")
	flag.PrintDefaults()
}

func runServe(w io.Writer, devices backend.Provider, args []string) error {
	// Start new service
	svc, err := service.NewService(context.Background(), devices, config.Logger("service"))
	if err != nil {
		return err
	}

	// Listen and serve
	return svc.Listen()
}
