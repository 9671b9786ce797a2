// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"github.com/relabs-tech/inertial_fusion/internal/imu"
	"github.com/relabs-tech/inertial_fusion/internal/orientation"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.validate(), test.ShouldBeNil)
	test.That(t, cfg.OrientationFusion(), test.ShouldResemble, orientation.DefaultFusionConfig())
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, Default())
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
log_level: debug
mqtt:
  broker: tcp://broker:1883
imu:
  driver: serial
  sample_rate: 100
  axis_rotation: xeast_ysouth
  serial_port: /dev/ttyACM0
fusion:
  policy: linear
  q: 0.002
compass_calibration:
  valid: true
  min: [-30, -20, -40]
  max: [50, 20, 40]
`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.LogLevel, test.ShouldEqual, "debug")
	test.That(t, cfg.MQTT.Broker, test.ShouldEqual, "tcp://broker:1883")
	// Keys left out keep their defaults.
	test.That(t, cfg.MQTT.TopicPose, test.ShouldEqual, "inertial/pose")
	test.That(t, cfg.IMU.BaudRate, test.ShouldEqual, 115200)

	fusion := cfg.OrientationFusion()
	test.That(t, fusion.Policy, test.ShouldEqual, orientation.PolicyLinear)
	test.That(t, fusion.Q, test.ShouldEqual, 0.002)
	test.That(t, fusion.R, test.ShouldEqual, orientation.DefaultR)

	pcfg, err := cfg.Processor()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pcfg.SampleRate, test.ShouldEqual, 100)
	test.That(t, pcfg.Axis, test.ShouldEqual, imu.XEastYSouth)
	test.That(t, pcfg.Calibration.Valid, test.ShouldBeTrue)
	test.That(t, pcfg.Calibration.Offset, test.ShouldResemble, [3]float64{10, 0, 0})
	test.That(t, pcfg.Calibration.Scale, test.ShouldResemble, [3]float64{1, 2, 1})
}

func TestParseRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown key":        "imu:\n  drvier: mock\n",
		"unknown driver":     "imu:\n  driver: bno055\n",
		"zero sample rate":   "imu:\n  sample_rate: 0\n",
		"bad axis":           "imu:\n  axis_rotation: XUP_YUP\n",
		"accel range":        "imu:\n  accel_range: 4\n",
		"bad policy":         "fusion:\n  policy: kalman\n",
		"slerp power":        "fusion:\n  slerp_power: 2\n",
		"bad level":          "log_level: loud\n",
		"empty broker":       "mqtt:\n  broker: \"\"\n",
		"flat calibration":   "compass_calibration:\n  valid: true\n  min: [0, 0, 0]\n  max: [1, 1, 0]\n",
		"serial without bps": "imu:\n  driver: serial\n  baud_rate: 0\n",
		"web port":           "web:\n  port: 70000\n",
		"not yaml":           "imu: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			test.That(t, err, test.ShouldNotBeNil)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inertial.yaml")
	test.That(t, os.WriteFile(path, []byte("imu:\n  mock_yaw_rate: 45\n"), 0o600), test.ShouldBeNil)

	cfg, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.IMU.MockYawRate, test.ShouldEqual, 45.0)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to open config file")
}

func TestCalibrationDisabled(t *testing.T) {
	cal, err := CompassCalibrationConfig{Min: [3]float64{1, 1, 1}, Max: [3]float64{1, 1, 1}}.Calibration()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cal.Valid, test.ShouldBeFalse)
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "inertial.example.yaml"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, Default())
}
