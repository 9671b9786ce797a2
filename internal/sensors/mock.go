// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/inertial_fusion/internal/imu"
	"github.com/relabs-tech/inertial_fusion/internal/spatialmath"
)

// mockFieldStrength is a typical horizontal geomagnetic field in µT.
const mockFieldStrength = 48.0

type mockDriver struct {
	sampleRate int
	yawRate    float64 // rad/s
	clk        clock.Clock
	start      time.Time
}

// NewMock returns a driver for a level device spinning about Z at
// yawRateDeg degrees per second, with consistent gyro, gravity and field.
func NewMock(sampleRate int, yawRateDeg float64, clk clock.Clock) Driver {
	return &mockDriver{
		sampleRate: sampleRate,
		yawRate:    yawRateDeg * spatialmath.DegToRad,
		clk:        clk,
	}
}

func (m *mockDriver) Name() string { return "mock" }

func (m *mockDriver) Init() error {
	m.start = m.clk.Now()
	return nil
}

func (m *mockDriver) PollInterval() time.Duration {
	return time.Second / time.Duration(m.sampleRate)
}

func (m *mockDriver) Read() (imu.Sample, error) {
	ts := sinceMillis(m.clk, m.start)
	yaw := m.yawRate * float64(ts) / 1000

	// Yaw is measured as -atan2(my, mx), so the body frame sees the field
	// turning the other way.
	return imu.Sample{
		Timestamp: ts,
		Gyro:      spatialmath.Vector3{Z: m.yawRate},
		Accel:     spatialmath.Vector3{Z: 1},
		Compass:   spatialmath.Vector3{X: math.Cos(yaw), Y: -math.Sin(yaw)}.Scale(mockFieldStrength),
	}, nil
}

func (m *mockDriver) Close() error { return nil }
