// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// heliosd runs a staking vault node serving the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/helios-stake/helios/api"
	"github.com/helios-stake/helios/log"
	"github.com/helios-stake/helios/metrics"
	"github.com/helios-stake/helios/node"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "main")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "Helios",
		Usage:     "Helios staking vault node",
		Copyright: "2025 The Helios developers",
		Flags: []cli.Flag{
			configFlag,
			dataDirFlag,
			apiAddrFlag,
			apiCorsFlag,
			enableMetricsFlag,
			verbosityFlag,
		},
		Action: defaultAction,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	initLogger(ctx.Int(verbosityFlag.Name))

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.API.Metrics {
		metrics.InitializePrometheusMetrics()
	}

	n, err := node.New(cfg, node.Options{})
	if err != nil {
		return err
	}

	srv, apiURL, err := startAPIServer(cfg.API.Addr, api.New(n, &cfg.API))
	if err != nil {
		return err
	}
	defer func() {
		logger.Info("stopping API server...")
		srv.Shutdown(context.Background())
	}()

	printStartupMessage(cfg, apiURL)

	return n.Run(handleExitSignal())
}
