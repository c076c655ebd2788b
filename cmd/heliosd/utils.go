// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/helios-stake/helios/config"
	"github.com/helios-stake/helios/log"
)

func initLogger(verbosity int) {
	level := new(slog.LevelVar)
	level.Set(log.FromLegacyLevel(verbosity))
	useColor := isatty.IsTerminal(os.Stderr.Fd())
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, level, useColor)))
}

// loadConfig reads the config file when given and applies flag overrides.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := ctx.String(configFlag.Name); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if dataDir := ctx.String(dataDirFlag.Name); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if addr := ctx.String(apiAddrFlag.Name); addr != "" {
		cfg.API.Addr = addr
	}
	if cors := ctx.String(apiCorsFlag.Name); cors != "" {
		cfg.API.CORSOrigins = strings.Split(cors, ",")
	}
	if ctx.Bool(enableMetricsFlag.Name) {
		cfg.API.Metrics = true
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, cfg.Validate()
}

func startAPIServer(addr string, handler http.Handler) (*http.Server, string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("listen API addr [%s]: %w", addr, err)
	}
	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(listener); err != http.ErrServerClosed {
			logger.Error("API server stopped", "err", err)
		}
	}()
	return srv, "http://" + listener.Addr().String() + "/", nil
}

// handleExitSignal returns a context canceled on interrupt or terminate.
func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

		sig := <-exitSignalCh
		logger.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}

func printStartupMessage(cfg *config.Config, apiURL string) {
	fmt.Printf(`Starting %v
    Version     [ %v ]
    Data dir    [ %v ]
    Vaults      [ %v ]
    API portal  [ %v ]
`,
		"Helios",
		fullVersion(),
		cfg.DataDir,
		len(cfg.Vaults),
		apiURL,
	)
}
