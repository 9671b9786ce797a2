// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "github.com/relabs-tech/inertial_fusion/internal/spatialmath"

const (
	// fuzzyAccelZeroSquared is 0.05² g: below this the accel is considered unchanged.
	fuzzyAccelZeroSquared = 0.05 * 0.05
	// fuzzyGyroZeroSquared is 0.20² rad/s: below this the gyro reads bias only.
	fuzzyGyroZeroSquared = 0.20 * 0.20
	// stillSeconds of still samples lock the bias estimate.
	stillSeconds = 5
)

// GyroBias learns the gyro zero-rate offset while the device is still and
// subtracts it from every sample. Once locked the estimate never changes.
type GyroBias struct {
	sampleRate    int
	alpha         float64
	bias          spatialmath.Vector3
	previousAccel spatialmath.Vector3
	sampleCount   int
	valid         bool
}

// NewGyroBias returns an estimator for a sensor sampled at sampleRate Hz.
// A non-positive rate is treated as 1 Hz.
func NewGyroBias(sampleRate int) *GyroBias {
	if sampleRate <= 0 {
		sampleRate = 1
	}
	return &GyroBias{
		sampleRate: sampleRate,
		alpha:      2.0 / float64(sampleRate),
	}
}

// Update feeds one remapped sample and returns the bias-corrected gyro.
//
// Still samples advance the lock counter even when separated by moving ones;
// the counter is never reset.
func (g *GyroBias) Update(gyro, accel spatialmath.Vector3) spatialmath.Vector3 {
	if !g.valid {
		delta := g.previousAccel.Sub(accel)
		g.previousAccel = accel

		if delta.SquareLength() < fuzzyAccelZeroSquared && gyro.SquareLength() < fuzzyGyroZeroSquared {
			g.bias = g.bias.Scale(1 - g.alpha).Add(gyro.Scale(g.alpha))

			target := stillSeconds * g.sampleRate
			if g.sampleCount < target {
				g.sampleCount++
				if g.sampleCount == target {
					g.valid = true
				}
			}
		}
	}
	return gyro.Sub(g.bias)
}

// Valid reports whether the estimate is locked.
func (g *GyroBias) Valid() bool { return g.valid }

// Bias returns the current estimate in rad/s.
func (g *GyroBias) Bias() spatialmath.Vector3 { return g.bias }

// SampleCount returns the number of still samples seen so far.
func (g *GyroBias) SampleCount() int { return g.sampleCount }
