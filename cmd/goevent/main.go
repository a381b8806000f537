package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/Viet-ph/goevent/config"
	"github.com/Viet-ph/goevent/event"
	"github.com/Viet-ph/goevent/luaevent"
)

var (
	configPath string
	logLevel   string
	metrics    bool
)

func setupFlags() {
	flag.StringVar(&configPath, "config", "", "TOML file with loop settings")
	flag.StringVar(&logLevel, "log-level", "", "debug, info, warn or error; overrides the config file")
	flag.BoolVar(&metrics, "metrics", false, "print loop metrics to stderr on exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] script.lua [args...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
}

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return cfg, err
		}
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if metrics {
		cfg.Metrics = true
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	cfg.Apply()
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if level == "debug" {
		zcfg = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = lvl
	return zcfg.Build()
}

func writeMetrics(w io.Writer, families []*dto.MetricFamily) error {
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return err
		}
	}
	return nil
}

// scriptArgs exposes the arguments after the script name as the global
// table arg, the way the stand-alone lua interpreter does.
func scriptArgs(L *lua.LState, script string, args []string) {
	tbl := L.NewTable()
	tbl.RawSetInt(0, lua.LString(script))
	for i, a := range args {
		tbl.RawSetInt(i+1, lua.LString(a))
	}
	L.SetGlobal("arg", tbl)
}

func run(cfg config.Config, logger *zap.Logger, script string, args []string) error {
	var opts []event.Option
	var registry *prometheus.Registry
	if cfg.Metrics {
		registry = prometheus.NewRegistry()
		opts = append(opts, event.WithMetrics(registry))
	}

	L := lua.NewState()
	defer L.Close()
	binding := luaevent.Open(L, logger, opts...)
	defer binding.Close()

	scriptArgs(L, script, args)
	logger.Info("running script", zap.String("script", script))
	runErr := L.DoFile(script)

	if registry != nil {
		families, err := registry.Gather()
		if err != nil {
			logger.Warn("gathering metrics", zap.Error(err))
		} else if err := writeMetrics(os.Stderr, families); err != nil {
			logger.Warn("writing metrics", zap.Error(err))
		}
	}
	return runErr
}

func main() {
	setupFlags()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger, flag.Arg(0), flag.Args()[1:]); err != nil {
		logger.Error("script failed", zap.String("script", flag.Arg(0)), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
