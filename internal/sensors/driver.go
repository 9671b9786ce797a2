// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors holds the IMU drivers. Each driver only turns its device
// protocol into scaled imu.Sample values; all filtering happens downstream.
package sensors

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/relabs-tech/inertial_fusion/internal/config"
	"github.com/relabs-tech/inertial_fusion/internal/imu"
)

// ErrNoSample is returned by Driver.Read when no new sample is available yet.
var ErrNoSample = errors.New("no new sample")

// Driver is one IMU chip or stream.
type Driver interface {
	// Name identifies the driver in logs.
	Name() string
	// Init opens and configures the device.
	Init() error
	// PollInterval is how often Read should be called.
	PollInterval() time.Duration
	// Read returns the next sample or ErrNoSample.
	Read() (imu.Sample, error)
	// Close releases the device.
	Close() error
}

// New builds the driver selected by cfg.Driver. The driver is not initialized.
func New(cfg config.IMUConfig, clk clock.Clock, logger *zap.SugaredLogger) (Driver, error) {
	if cfg.SampleRate <= 0 {
		return nil, errors.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}
	switch cfg.Driver {
	case config.DriverMPU9250:
		return NewMPU9250(cfg, clk, logger), nil
	case config.DriverSerial:
		return NewSerial(cfg, logger), nil
	case config.DriverMock:
		return NewMock(cfg.SampleRate, cfg.MockYawRate, clk), nil
	}
	return nil, errors.Errorf("unknown IMU driver %q", cfg.Driver)
}

// sinceMillis converts the time elapsed since start to a millisecond timestamp.
func sinceMillis(clk clock.Clock, start time.Time) uint64 {
	d := clk.Since(start)
	if d < 0 {
		return 0
	}
	return uint64(d / time.Millisecond)
}
