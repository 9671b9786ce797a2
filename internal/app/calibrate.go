// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/inertial_fusion/internal/config"
	"github.com/relabs-tech/inertial_fusion/internal/imu"
	"github.com/relabs-tech/inertial_fusion/internal/sensors"
)

// errCaptureDone stops the poll loop once the capture window has elapsed.
var errCaptureDone = errors.New("capture done")

// Calibrator records compass extents while the device is turned through
// every orientation. Readings are taken in the body frame with smoothing on
// and the existing calibration off.
type Calibrator struct {
	processor *imu.Processor
	extents   imu.CompassExtents
}

// NewCalibrator returns a calibrator for samples described by pcfg.
func NewCalibrator(pcfg imu.ProcessorConfig) (*Calibrator, error) {
	processor, err := imu.NewProcessor(pcfg)
	if err != nil {
		return nil, err
	}
	processor.SetCalibrationMode(true)
	return &Calibrator{processor: processor}, nil
}

// Add records one raw sample.
func (c *Calibrator) Add(raw imu.Sample) {
	s := c.processor.Process(raw)
	c.extents.Add(s.Compass)
}

// Extents returns the readings recorded so far.
func (c *Calibrator) Extents() imu.CompassExtents { return c.extents }

// Result returns the recorded extents as a config section. It fails when an
// axis saw no spread.
func (c *Calibrator) Result() (config.CompassCalibrationConfig, error) {
	if _, err := c.extents.Calibration(); err != nil {
		return config.CompassCalibrationConfig{}, err
	}
	lo, hi := c.extents.Min, c.extents.Max
	return config.CompassCalibrationConfig{
		Valid: true,
		Min:   [3]float64{lo.X, lo.Y, lo.Z},
		Max:   [3]float64{hi.X, hi.Y, hi.Z},
	}, nil
}

// writeCalibrationYAML writes cal as a compass_calibration block ready to
// paste into the config file.
func writeCalibrationYAML(w io.Writer, cal config.CompassCalibrationConfig) error {
	doc := struct {
		CompassCalibration config.CompassCalibrationConfig `yaml:"compass_calibration"`
	}{cal}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "encode calibration")
	}
	return enc.Close()
}

// capture feeds driver samples to c until duration has elapsed or ctx is done.
func capture(ctx context.Context, driver sensors.Driver, c *Calibrator, clk clock.Clock, duration time.Duration, logger *zap.SugaredLogger) error {
	start := clk.Now()
	lastLog := start

	err := poll(ctx, clk, driver.PollInterval(), func() error {
		if clk.Since(start) >= duration {
			return errCaptureDone
		}
		raw, err := driver.Read()
		switch {
		case errors.Is(err, sensors.ErrNoSample):
			return nil
		case errors.Is(err, io.EOF):
			return errors.Wrapf(err, "%s stream ended", driver.Name())
		case err != nil:
			logger.Warnf("%s read error: %v", driver.Name(), err)
			return nil
		}
		c.Add(raw)

		if now := clk.Now(); now.Sub(lastLog) >= time.Second {
			lastLog = now
			e := c.Extents()
			logger.Infof("calibrate: %d readings, min %+v max %+v", e.Count(), e.Min, e.Max)
		}
		return nil
	})
	if errors.Is(err, errCaptureDone) {
		return nil
	}
	return err
}

// RunCalibrate captures compass extents for duration and writes the resulting
// compass_calibration block to out.
func RunCalibrate(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger, duration time.Duration, out io.Writer) (err error) {
	clk := clock.New()

	pcfg, err := cfg.Processor()
	if err != nil {
		return err
	}
	calibrator, err := NewCalibrator(pcfg)
	if err != nil {
		return err
	}

	driver, err := openDriver(cfg, clk, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, driver.Close())
	}()

	logger.Infof("calibrate: turn the device through every orientation for %s", duration)
	if err := capture(ctx, driver, calibrator, clk, duration, logger); err != nil {
		return err
	}

	result, err := calibrator.Result()
	if err != nil {
		return errors.Wrap(err, "calibration incomplete")
	}
	return writeCalibrationYAML(out, result)
}
