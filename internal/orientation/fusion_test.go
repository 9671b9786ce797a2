// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"testing"

	"go.viam.com/test"

	"github.com/relabs-tech/inertial_fusion/internal/imu"
	"github.com/relabs-tech/inertial_fusion/internal/spatialmath"
)

var (
	level = spatialmath.Vector3{Z: 1}
	north = spatialmath.Vector3{X: 1}
)

func newFusion(t *testing.T, mutate func(*FusionConfig)) *Fusion {
	t.Helper()
	cfg := DefaultFusionConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	f, err := NewFusion(cfg)
	test.That(t, err, test.ShouldBeNil)
	return f
}

// yawStep runs the two-sample scenario: level and north at t=0, then a 90°/s
// yaw rate for one second with the compass reading a quarter turn away.
func yawStep(f *Fusion) {
	f.Update(spatialmath.Vector3{}, level, north, 0)
	f.Update(spatialmath.Vector3{Z: math.Pi / 2}, level, spatialmath.Vector3{Y: 1}, 1000)
}

func TestFusionConfigValidate(t *testing.T) {
	test.That(t, DefaultFusionConfig().Validate(), test.ShouldBeNil)

	for name, mutate := range map[string]func(*FusionConfig){
		"unknown policy": func(c *FusionConfig) { c.Policy = "kalman" },
		"power too high": func(c *FusionConfig) { c.SlerpPower = 1.5 },
		"negative power": func(c *FusionConfig) { c.SlerpPower = -0.1 },
		"negative Q":     func(c *FusionConfig) { c.Q = -1 },
		"zero R":         func(c *FusionConfig) { c.R = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultFusionConfig()
			mutate(&cfg)
			_, err := NewFusion(cfg)
			test.That(t, err, test.ShouldNotBeNil)
		})
	}
}

func TestFusionFirstSample(t *testing.T) {
	f := newFusion(t, nil)
	f.Update(spatialmath.Vector3{}, level, north, 0)

	pose := f.FusionPose()
	test.That(t, pose.X, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, pose.Y, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, pose.Z, test.ShouldAlmostEqual, 0, 1e-9)

	q := f.FusionQPose()
	test.That(t, q.Scalar, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, q.Vector().Length(), test.ShouldAlmostEqual, 0, 1e-9)
}

func TestFusionYawScenario(t *testing.T) {
	// First order integration of 90°/s over one second.
	integrated := 2 * math.Atan(math.Pi/4)

	t.Run("power zero keeps the prediction", func(t *testing.T) {
		f := newFusion(t, func(c *FusionConfig) { c.SlerpPower = 0 })
		yawStep(f)
		test.That(t, f.MeasuredPose().Z, test.ShouldAlmostEqual, -math.Pi/2, 1e-9)
		test.That(t, f.FusionPose().Z, test.ShouldAlmostEqual, integrated, 1e-9)
	})

	t.Run("power one snaps to the measurement", func(t *testing.T) {
		f := newFusion(t, func(c *FusionConfig) { c.SlerpPower = 1 })
		yawStep(f)
		test.That(t, f.FusionPose().Z, test.ShouldAlmostEqual, -math.Pi/2, 1e-6)
	})

	t.Run("default power blends", func(t *testing.T) {
		f := newFusion(t, nil)
		yawStep(f)
		yaw := f.FusionPose().Z
		test.That(t, yaw, test.ShouldBeLessThan, integrated)
		test.That(t, yaw, test.ShouldBeGreaterThan, 1.2)
		test.That(t, f.FusionQPose().Norm(), test.ShouldAlmostEqual, 1, 1e-9)
	})

	t.Run("linear policy", func(t *testing.T) {
		f := newFusion(t, func(c *FusionConfig) { c.Policy = PolicyLinear })
		yawStep(f)

		gain := LinearCorrection{Q: DefaultQ, R: DefaultR}.Gain(1)
		test.That(t, gain, test.ShouldAlmostEqual, 2.0/3, 1e-12)

		predicted := spatialmath.Quaternion{Scalar: 1, Z: math.Pi / 4}
		measured := spatialmath.FromEuler(spatialmath.Vector3{Z: -math.Pi / 2})
		want := predicted.Add(measured.Sub(predicted).Scale(gain)).Normalize().ToEuler()
		test.That(t, f.FusionPose().Z, test.ShouldAlmostEqual, want.Z, 1e-9)
		test.That(t, want.Z, test.ShouldBeLessThan, 0)
	})

	t.Run("correction disabled integrates only", func(t *testing.T) {
		f := newFusion(t, func(c *FusionConfig) {
			c.AccelEnabled = false
			c.CompassEnabled = false
		})
		yawStep(f)
		test.That(t, f.FusionPose().Z, test.ShouldAlmostEqual, integrated, 1e-9)
	})
}

func TestFusionSmallStepsReachQuarterTurn(t *testing.T) {
	f := newFusion(t, func(c *FusionConfig) {
		c.AccelEnabled = false
		c.CompassEnabled = false
	})
	f.Update(spatialmath.Vector3{}, level, north, 0)
	for ts := uint64(10); ts <= 1000; ts += 10 {
		f.Update(spatialmath.Vector3{Z: math.Pi / 2}, level, north, ts)
	}
	test.That(t, f.FusionPose().Z, test.ShouldAlmostEqual, math.Pi/2, 1e-3)
}

func TestFusionGyroDisabled(t *testing.T) {
	f := newFusion(t, func(c *FusionConfig) {
		c.GyroEnabled = false
		c.SlerpPower = 0
	})
	yawStep(f)
	test.That(t, f.FusionPose().Z, test.ShouldAlmostEqual, 0, 1e-9)
}

func TestFusionIgnoresStaleTimestamps(t *testing.T) {
	f := newFusion(t, nil)
	f.Update(spatialmath.Vector3{}, level, north, 1000)
	f.Update(spatialmath.Vector3{Z: 0.3}, level, north, 1100)

	pose := f.FusionPose()
	q := f.FusionQPose()

	spin := spatialmath.Vector3{X: 2, Y: -1, Z: 3}
	f.Update(spin, level, spatialmath.Vector3{Y: 1}, 1100)
	test.That(t, f.FusionPose(), test.ShouldResemble, pose)
	test.That(t, f.FusionQPose(), test.ShouldResemble, q)

	f.Update(spin, level, spatialmath.Vector3{Y: 1}, 900)
	test.That(t, f.FusionPose(), test.ShouldResemble, pose)
	test.That(t, f.FusionQPose(), test.ShouldResemble, q)

	// The backwards timestamp becomes the new reference.
	f.Update(spin, level, north, 950)
	test.That(t, f.FusionQPose(), test.ShouldNotResemble, q)
}

func TestFusionMissingCompassHoldsYaw(t *testing.T) {
	f := newFusion(t, func(c *FusionConfig) { c.SlerpPower = 1 })
	f.Update(spatialmath.Vector3{}, level, spatialmath.Vector3{X: math.Cos(-0.5), Y: math.Sin(-0.5)}, 0)
	test.That(t, f.FusionPose().Z, test.ShouldAlmostEqual, 0.5, 1e-9)

	f.Update(spatialmath.Vector3{}, level, spatialmath.Vector3{}, 100)
	test.That(t, f.MeasuredPose().Z, test.ShouldAlmostEqual, 0.5, 1e-9)
	test.That(t, f.FusionPose().Z, test.ShouldAlmostEqual, 0.5, 1e-6)
}

func TestFusionAccelDisabledHoldsTilt(t *testing.T) {
	f := newFusion(t, func(c *FusionConfig) { c.SlerpPower = 1 })
	tilted := spatialmath.Vector3{Y: math.Sin(0.2), Z: math.Cos(0.2)}
	f.Update(spatialmath.Vector3{}, tilted, north, 0)
	test.That(t, f.FusionPose().X, test.ShouldAlmostEqual, 0.2, 1e-9)

	f.SetAccelEnabled(false)
	f.Update(spatialmath.Vector3{}, level, north, 100)
	test.That(t, f.MeasuredPose().X, test.ShouldAlmostEqual, 0.2, 1e-9)
	test.That(t, f.FusionPose().X, test.ShouldAlmostEqual, 0.2, 1e-6)
}

func TestAlignToReference(t *testing.T) {
	q := spatialmath.FromEuler(spatialmath.Vector3{X: 0.1, Y: -0.2, Z: 2.5})

	aligned, flipped := alignToReference(q.Negate(), q)
	test.That(t, flipped, test.ShouldBeTrue)
	test.That(t, aligned, test.ShouldResemble, q)

	aligned, flipped = alignToReference(q, q)
	test.That(t, flipped, test.ShouldBeFalse)
	test.That(t, aligned, test.ShouldResemble, q)
}

func TestFusionAliasingNearHalfTurn(t *testing.T) {
	yaw := 179 * spatialmath.DegToRad
	// TiltCompensatedYaw returns -atan2(my, mx).
	heading := func(psi float64) spatialmath.Vector3 {
		return spatialmath.Vector3{X: math.Cos(-psi), Y: math.Sin(-psi)}
	}

	f := newFusion(t, nil)
	f.Update(spatialmath.Vector3{}, level, heading(yaw), 0)
	test.That(t, f.FusionQPose().Z, test.ShouldBeGreaterThan, 0)

	f.Update(spatialmath.Vector3{}, level, heading(-yaw), 100)
	// Without the sign fix the measured quaternion would have a negative Z.
	test.That(t, f.MeasuredQPose().Z, test.ShouldBeGreaterThan, 0)
	test.That(t, f.MeasuredQPose().Scalar, test.ShouldBeLessThan, 0)
	test.That(t, math.Abs(f.MeasuredPose().Z), test.ShouldAlmostEqual, yaw, 1e-9)
	test.That(t, math.Abs(f.FusionPose().Z), test.ShouldBeGreaterThan, 178*spatialmath.DegToRad)
}

func TestFusionSettersReset(t *testing.T) {
	f := newFusion(t, func(c *FusionConfig) { c.Policy = PolicyLinear })
	yawStep(f)
	test.That(t, f.FusionPose().Z, test.ShouldNotAlmostEqual, 0, 1e-3)

	f.SetQ(0.01)
	test.That(t, f.FusionPose(), test.ShouldResemble, spatialmath.Vector3{})
	test.That(t, f.Config().Q, test.ShouldEqual, 0.01)

	yawStep(f)
	f.SetR(-1)
	test.That(t, f.Config().R, test.ShouldEqual, DefaultR)
	test.That(t, f.FusionQPose(), test.ShouldResemble, spatialmath.Identity())

	// The slerp gain changes without losing state.
	g := newFusion(t, nil)
	yawStep(g)
	pose := g.FusionPose()
	g.SetSlerpPower(0.5)
	test.That(t, g.FusionPose(), test.ShouldResemble, pose)
	test.That(t, g.Config().SlerpPower, test.ShouldEqual, 0.5)
}

func TestFusionSettersRejectOutOfRange(t *testing.T) {
	f := newFusion(t, func(c *FusionConfig) { c.Policy = PolicyLinear })
	f.SetQ(-DefaultR)
	test.That(t, f.Config().Q, test.ShouldEqual, DefaultQ)
	yawStep(f)
	pose := f.FusionPose()
	test.That(t, math.IsNaN(pose.X) || math.IsNaN(pose.Y) || math.IsNaN(pose.Z), test.ShouldBeFalse)
	test.That(t, math.IsNaN(f.FusionQPose().Scalar), test.ShouldBeFalse)

	for _, power := range []float64{-0.1, 1.5, 5, math.NaN()} {
		g := newFusion(t, nil)
		g.SetSlerpPower(power)
		test.That(t, g.Config().SlerpPower, test.ShouldEqual, DefaultSlerpPower)
	}

	// Both ends of the range are accepted.
	g := newFusion(t, nil)
	g.SetSlerpPower(0)
	test.That(t, g.Config().SlerpPower, test.ShouldEqual, 0.0)
	g.SetSlerpPower(1)
	test.That(t, g.Config().SlerpPower, test.ShouldEqual, 1.0)
	g.SetQ(0)
	test.That(t, g.Config().Q, test.ShouldEqual, 0.0)
}

func TestSlerpCorrectionHandlesIdenticalQuaternions(t *testing.T) {
	q := spatialmath.FromEuler(spatialmath.Vector3{X: 0.3, Y: 0.2, Z: -1})
	out := SlerpCorrection{Power: 0.5}.Correct(q, q, 0.01)
	test.That(t, math.IsNaN(out.Scalar), test.ShouldBeFalse)
	test.That(t, out.Scalar, test.ShouldAlmostEqual, q.Scalar, 1e-9)
	test.That(t, out.Z, test.ShouldAlmostEqual, q.Z, 1e-9)
}

func TestParseCorrectionPolicy(t *testing.T) {
	p, err := ParseCorrectionPolicy(" SLERP ")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldEqual, PolicySlerp)

	_, err = ParseCorrectionPolicy("kalman")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPipelineTracksConstantYawRate(t *testing.T) {
	const (
		rate  = 50
		omega = 0.5
	)
	p, err := NewPipeline(imu.ProcessorConfig{SampleRate: rate}, DefaultFusionConfig())
	test.That(t, err, test.ShouldBeNil)

	var state State
	for i := 0; i <= 2*rate; i++ {
		ts := uint64(i * 1000 / rate)
		psi := omega * float64(ts) / 1000
		state = p.Process(imu.Sample{
			Timestamp: ts,
			Gyro:      spatialmath.Vector3{Z: omega},
			Accel:     level,
			Compass:   spatialmath.Vector3{X: math.Cos(psi), Y: -math.Sin(psi)},
		})
	}

	test.That(t, state.Timestamp, test.ShouldEqual, uint64(2000))
	test.That(t, state.Fused.Yaw, test.ShouldAlmostEqual, 1.0*spatialmath.RadToDeg, 3)
	test.That(t, state.Fused.Roll, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, state.FusedQ.Norm(), test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, state.GyroBiasValid, test.ShouldBeFalse)
}

func TestNewPipelineRejectsBadConfig(t *testing.T) {
	_, err := NewPipeline(imu.ProcessorConfig{SampleRate: 0}, DefaultFusionConfig())
	test.That(t, err, test.ShouldNotBeNil)

	cfg := DefaultFusionConfig()
	cfg.R = 0
	_, err = NewPipeline(imu.ProcessorConfig{SampleRate: 50}, cfg)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPose(t *testing.T) {
	p := PoseFromEuler(spatialmath.Vector3{X: math.Pi / 2, Y: -math.Pi / 4, Z: math.Pi})
	test.That(t, p.Roll, test.ShouldAlmostEqual, 90, 1e-9)
	test.That(t, p.Pitch, test.ShouldAlmostEqual, -45, 1e-9)
	test.That(t, p.Yaw, test.ShouldAlmostEqual, 180, 1e-9)

	r := p.Radians()
	test.That(t, r.Z, test.ShouldAlmostEqual, math.Pi, 1e-12)
	test.That(t, p.String(), test.ShouldContainSubstring, "yaw= 180.00°")
}
