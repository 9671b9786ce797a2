// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"github.com/pkg/errors"

	"github.com/relabs-tech/inertial_fusion/internal/imu"
	"github.com/relabs-tech/inertial_fusion/internal/spatialmath"
)

// State is the snapshot produced for every sample. It is the payload published
// on MQTT and served to web clients.
type State struct {
	Timestamp uint64 `json:"timestamp_ms"`

	Gyro    spatialmath.Vector3 `json:"gyro"`
	Accel   spatialmath.Vector3 `json:"accel"`
	Compass spatialmath.Vector3 `json:"compass"`

	Fused     Pose                   `json:"fused"`
	FusedQ    spatialmath.Quaternion `json:"fused_q"`
	Measured  Pose                   `json:"measured"`
	MeasuredQ spatialmath.Quaternion `json:"measured_q"`

	GyroBiasValid bool `json:"gyro_bias_valid"`
}

// Pipeline runs the full per-sample chain for one sensor: remap, bias, compass
// and fusion.
type Pipeline struct {
	processor *imu.Processor
	fusion    *Fusion
}

// NewPipeline builds the processor and filter for one sensor.
func NewPipeline(pcfg imu.ProcessorConfig, fcfg FusionConfig) (*Pipeline, error) {
	processor, err := imu.NewProcessor(pcfg)
	if err != nil {
		return nil, errors.Wrap(err, "building sample processor")
	}
	fusion, err := NewFusion(fcfg)
	if err != nil {
		return nil, err
	}
	return &Pipeline{processor: processor, fusion: fusion}, nil
}

// Process runs raw through the chain and returns the resulting state.
func (p *Pipeline) Process(raw imu.Sample) State {
	s := p.processor.Process(raw)
	p.fusion.Update(s.Gyro, s.Accel, s.Compass, s.Timestamp)

	return State{
		Timestamp:     s.Timestamp,
		Gyro:          s.Gyro,
		Accel:         s.Accel,
		Compass:       s.Compass,
		Fused:         PoseFromEuler(p.fusion.FusionPose()),
		FusedQ:        p.fusion.FusionQPose(),
		Measured:      PoseFromEuler(p.fusion.MeasuredPose()),
		MeasuredQ:     p.fusion.MeasuredQPose(),
		GyroBiasValid: p.processor.GyroBiasValid(),
	}
}

// Processor returns the sample processor, for calibration mode and bias status.
func (p *Pipeline) Processor() *imu.Processor { return p.processor }

// Fusion returns the filter, for runtime tuning.
func (p *Pipeline) Fusion() *Fusion { return p.fusion }
