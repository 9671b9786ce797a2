// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package main is the inertial command: it runs the sensor fusion producer and
// the clients that consume its output.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/relabs-tech/inertial_fusion/internal/app"
	"github.com/relabs-tech/inertial_fusion/internal/config"
	"github.com/relabs-tech/inertial_fusion/internal/logging"
)

const (
	flagConfig   = "config"
	flagDebug    = "debug"
	flagLocal    = "local"
	flagInterval = "interval"
	flagDuration = "duration"
)

type runFunc func(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error

// action loads the configuration, builds the logger and runs fn until SIGINT
// or SIGTERM.
func action(name string, fn runFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c.String(flagConfig))
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if c.Bool(flagDebug) {
			level = "debug"
		}
		logger, err := logging.NewLogger(name, level)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return fn(ctx, cfg, logger)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	if err := config.InitGlobal(path); err != nil {
		return nil, err
	}
	if cfg := config.Get(); cfg != nil {
		return cfg, nil
	}
	return nil, errors.Errorf("config %s not loaded", path)
}

var application = &cli.App{
	Name:            "inertial",
	Usage:           "IMU sensor fusion producer and clients",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`; defaults apply when omitted",
			EnvVars: []string{"INERTIAL_CONFIG"},
		},
		&cli.BoolFlag{
			Name:  flagDebug,
			Usage: "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:   "produce",
			Usage:  "read the IMU, fuse and publish the state over MQTT",
			Action: action("producer", app.RunProducer),
		},
		{
			Name:   "web",
			Usage:  "serve the latest state over HTTP and websocket",
			Action: action("web", app.RunWeb),
		},
		{
			Name:  "console",
			Usage: "print the fused state",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  flagLocal,
					Usage: "run the driver and filter in-process instead of subscribing",
				},
				&cli.DurationFlag{
					Name:  flagInterval,
					Value: 100 * time.Millisecond,
					Usage: "minimum time between lines with --local",
				},
			},
			Action: func(c *cli.Context) error {
				return action("console", func(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
					if c.Bool(flagLocal) {
						return app.RunLocalConsole(ctx, cfg, logger, c.App.Writer, c.Duration(flagInterval))
					}
					return app.RunConsole(ctx, cfg, logger, c.App.Writer)
				})(c)
			},
		},
		{
			Name:   "display",
			Usage:  "show the fused pose on an SSD1306 OLED",
			Action: action("display", app.RunDisplay),
		},
		{
			Name:  "calibrate",
			Usage: "record compass extents and print a compass_calibration block",
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:  flagDuration,
					Value: 30 * time.Second,
					Usage: "how long to record",
				},
			},
			Action: func(c *cli.Context) error {
				return action("calibrate", func(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
					return app.RunCalibrate(ctx, cfg, logger, c.Duration(flagDuration), c.App.Writer)
				})(c)
			},
		},
	},
}

func main() {
	if err := application.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
