// cmd/skycam/main.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// skycam rectifies sky-camera images and maps between image positions and
// geographic positions.
package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strings"

	"github.com/mmp/skycam/config"
	"github.com/mmp/skycam/log"
	"github.com/mmp/skycam/projection"
	"github.com/mmp/skycam/util"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	configFile  = flag.String("config", "", "YAML or JSON configuration file")
	logLevel    = flag.String("loglevel", "", "Log level: debug, info, warn or error (overrides the configuration)")
	logStderr   = flag.Bool("stderr", false, "Log to stderr rather than to the log file")
	metricsAddr = flag.String("metrics", "", "Serve Prometheus metrics and pprof on this address (e.g., :8002)")
	cpuProfile  = flag.String("cpuprofile", "", "Write a CPU profile to this file")
	memProfile  = flag.String("memprofile", "", "Write a heap profile to this file")
)

// command is a skycam subcommand; run receives the arguments following
// the command's name.
type command struct {
	name, args, help string
	run              func(env *environment, args []string) error
}

var commands = []command{
	{"rectify", "[-lazy] [-float out.msgpack.zst] <image> <out.png>",
		"Project a raw camera image onto the rectified grid", rectify},
	{"overlay", "[-grid] [-o out.geojson] <tracks.geojson>",
		"Project 3D GeoJSON geometry into image or grid coordinates", overlay},
	{"locate", "[-grid] <x> <y> <altitude>", "Print the longitude and latitude seen at an image position", locate},
	{"synth", "[-size n] [-fov deg] [-distortion d] [-mirror=false] [category]",
		"Write a synthetic equidistant calibration", synth},
	{"info", "[category]", "Describe a calibration and the lens fitted to it", info},
	{"config", "", "Print the effective configuration", showConfig},
}

// environment holds what the commands share.
type environment struct {
	cfg     *config.Config
	lg      *log.Logger
	metrics *projection.Metrics
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: skycam [flags] <command> [args]\nwhere [flags] may be:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %s %s\n    \t%s\n", c.name, c.args, c.help)
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}
	idx := -1
	for i, c := range commands {
		if c.name == strings.ToLower(flag.Arg(0)) {
			idx = i
		}
	}
	if idx == -1 {
		fmt.Fprintf(os.Stderr, "skycam: %s: unknown command\n", flag.Arg(0))
		usage()
		os.Exit(1)
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "skycam: %v\n", err)
			os.Exit(1)
		}
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	var lg *log.Logger
	if *logStderr {
		lg = log.NewWriter(os.Stderr, cfg.LogLevel)
	} else {
		lg = log.New(cfg.LogLevel, cfg.LogDir)
	}

	prof, err := util.StartProfiler(*cpuProfile, *memProfile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "skycam: %v\n", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := projection.NewMetrics(reg)
	if err != nil {
		lg.Errorf("metrics: %v", err)
	}
	if *metricsAddr != "" {
		launchHTTPServer(*metricsAddr, reg, lg)
	}

	env := &environment{cfg: cfg, lg: lg, metrics: metrics}
	c := commands[idx]
	err = c.run(env, flag.Args()[1:])

	if perr := prof.Stop(); perr != nil {
		lg.Errorf("profile: %v", perr)
	}
	if err != nil {
		lg.Errorf("%s: %v", c.name, err)
		fmt.Fprintf(os.Stderr, "skycam %s: %v\n", c.name, err)
		os.Exit(1)
	}
}

func launchHTTPServer(addr string, reg *prometheus.Registry, lg *log.Logger) {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	if listener, err := net.Listen("tcp", addr); err == nil {
		lg.Infof("Launching HTTP server on %s", listener.Addr())
		go http.Serve(listener, mux)
	} else {
		fmt.Fprintf(os.Stderr, "Unable to start HTTP server: %v\n", err)
	}
}
