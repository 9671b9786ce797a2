// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "github.com/pkg/errors"

// ProcessorConfig describes one physical sensor installation.
type ProcessorConfig struct {
	SampleRate  int // Hz
	Axis        AxisRotation
	Calibration CompassCalibration
}

// Processor runs the per-sample correction chain: axis remap, gyro bias and
// compass calibration with smoothing. It is not safe for concurrent use.
type Processor struct {
	axis    AxisRotation
	bias    *GyroBias
	compass *CompassFilter
}

// NewProcessor validates cfg and returns a processor with a fresh bias estimate.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.SampleRate <= 0 {
		return nil, errors.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}
	if !cfg.Axis.valid() {
		return nil, errors.Errorf("invalid axis rotation %d", int(cfg.Axis))
	}
	return &Processor{
		axis:    cfg.Axis,
		bias:    NewGyroBias(cfg.SampleRate),
		compass: NewCompassFilter(cfg.Calibration),
	}, nil
}

// Process returns raw remapped, bias corrected and with the smoothed compass.
// The timestamp is passed through.
func (p *Processor) Process(raw Sample) Sample {
	out := Sample{
		Timestamp: raw.Timestamp,
		Gyro:      p.axis.Apply(raw.Gyro),
		Accel:     p.axis.Apply(raw.Accel),
		Compass:   p.axis.Apply(raw.Compass),
	}
	out.Gyro = p.bias.Update(out.Gyro, out.Accel)
	out.Compass = p.compass.Apply(out.Compass)
	return out
}

// GyroBiasValid reports whether the gyro bias estimate has locked.
func (p *Processor) GyroBiasValid() bool { return p.bias.Valid() }

// GyroBias returns the gyro bias estimator.
func (p *Processor) GyroBias() *GyroBias { return p.bias }

// SetCalibrationMode passes raw compass values through uncalibrated.
func (p *Processor) SetCalibrationMode(enabled bool) { p.compass.SetCalibrationMode(enabled) }

// CompassCalibrationValid reports whether compass readings are being calibrated.
func (p *Processor) CompassCalibrationValid() bool { return p.compass.CalibrationValid() }
