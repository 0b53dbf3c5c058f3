// Package main is an entrypoint for application
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/Semior001/bitable-publisher/app/cmd"
	"github.com/Semior001/bitable-publisher/app/logging"
	"github.com/Semior001/bitable-publisher/pkg/logx"
	"github.com/jessevdk/go-flags"
	"golang.org/x/exp/slog"
)

var opts struct {
	Publish  cmd.Publish `group:"publish"`
	JSONLogs bool        `long:"json-logs" env:"JSON_LOGS" description:"turn on json logs"`
	Debug    bool        `long:"dbg" env:"DEBUG" description:"turn on debug mode"`
}

var version = "unknown"

func getVersion() string {
	v, ok := debug.ReadBuildInfo()
	if !ok || v.Main.Version == "(devel)" {
		return version
	}
	return v.Main.Version
}

func main() {
	fmt.Printf("bitable-publisher, version: %s\n", getVersion())

	p := flags.NewParser(&opts, flags.Default)
	if _, err := p.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		slog.Error("failed to parse flags", slog.Any("err", err))
		os.Exit(1)
	}

	setupLog()

	if err := opts.Publish.Execute(nil); err != nil {
		slog.Error("failed to publish site", slog.Any("err", err))
		os.Exit(1)
	}
}

func setupLog() {
	handler := slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelInfo,
		ReplaceAttr: nil,
	}

	if opts.Debug {
		handler.Level = slog.LevelDebug
		handler.AddSource = true
	}

	var h slog.Handler = handler.NewTextHandler(os.Stderr)
	if opts.JSONLogs {
		h = handler.NewJSONHandler(os.Stderr)
	}

	slog.SetDefault(slog.New(logx.NewChain(h, logging.RunID)))
}
