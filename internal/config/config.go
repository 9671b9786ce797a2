// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package config loads the YAML configuration shared by every inertial command.
package config

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/inertial_fusion/internal/imu"
	"github.com/relabs-tech/inertial_fusion/internal/orientation"
	"github.com/relabs-tech/inertial_fusion/internal/spatialmath"
)

// Driver names accepted in imu.driver.
const (
	DriverMPU9250 = "mpu9250"
	DriverSerial  = "serial"
	DriverMock    = "mock"
)

// Config holds all application configuration values.
type Config struct {
	LogLevel string `yaml:"log_level"`

	MQTT               MQTTConfig               `yaml:"mqtt"`
	IMU                IMUConfig                `yaml:"imu"`
	Fusion             FusionConfig             `yaml:"fusion"`
	CompassCalibration CompassCalibrationConfig `yaml:"compass_calibration"`
	Timing             TimingConfig             `yaml:"timing"`
	Web                WebConfig                `yaml:"web"`
	Display            DisplayConfig            `yaml:"display"`
}

// MQTTConfig is the broker connection and topic layout.
type MQTTConfig struct {
	Broker           string `yaml:"broker"`
	ClientIDProducer string `yaml:"client_id_producer"`
	ClientIDConsole  string `yaml:"client_id_console"`
	ClientIDWeb      string `yaml:"client_id_web"`
	ClientIDDisplay  string `yaml:"client_id_display"`

	TopicPose string `yaml:"topic_pose"` // fused orientation.State
	TopicIMU  string `yaml:"topic_imu"`  // raw imu.Sample
}

// IMUConfig selects and configures the sensor driver.
type IMUConfig struct {
	Driver       string `yaml:"driver"`        // mpu9250, serial or mock
	SampleRate   int    `yaml:"sample_rate"`   // Hz
	AxisRotation string `yaml:"axis_rotation"` // e.g. XNORTH_YEAST

	// MPU9250 over SPI
	SPIDevice string `yaml:"spi_device"`
	CSPin     string `yaml:"cs_pin"`
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	AccelRange byte `yaml:"accel_range"`
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	GyroRange byte `yaml:"gyro_range"`

	// Serial $RTIMU stream
	SerialPort string `yaml:"serial_port"`
	BaudRate   int    `yaml:"baud_rate"`

	// Mock driver yaw rate in degrees per second
	MockYawRate float64 `yaml:"mock_yaw_rate"`
}

// FusionConfig mirrors orientation.FusionConfig.
type FusionConfig struct {
	GyroEnabled    bool    `yaml:"gyro_enabled"`
	AccelEnabled   bool    `yaml:"accel_enabled"`
	CompassEnabled bool    `yaml:"compass_enabled"`
	Policy         string  `yaml:"policy"` // slerp or linear
	SlerpPower     float64 `yaml:"slerp_power"`
	Q              float64 `yaml:"q"`
	R              float64 `yaml:"r"`
}

// CompassCalibrationConfig holds the per-axis extremes recorded by the
// calibrate command.
type CompassCalibrationConfig struct {
	Valid bool       `yaml:"valid"`
	Min   [3]float64 `yaml:"min,flow"`
	Max   [3]float64 `yaml:"max,flow"`
}

// TimingConfig holds periodic logging intervals.
type TimingConfig struct {
	ConsoleLogIntervalMS int `yaml:"console_log_interval_ms"`
}

// WebConfig configures the HTTP server.
type WebConfig struct {
	Port int `yaml:"port"`
}

// DisplayConfig configures the OLED display.
type DisplayConfig struct {
	UpdateIntervalMS int `yaml:"update_interval_ms"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for any key a file leaves out.
func Default() *Config {
	fusion := orientation.DefaultFusionConfig()
	return &Config{
		LogLevel: "info",
		MQTT: MQTTConfig{
			Broker:           "tcp://localhost:1883",
			ClientIDProducer: "inertial-producer",
			ClientIDConsole:  "inertial-console",
			ClientIDWeb:      "inertial-web",
			ClientIDDisplay:  "inertial-display",
			TopicPose:        "inertial/pose",
			TopicIMU:         "inertial/imu",
		},
		IMU: IMUConfig{
			Driver:       DriverMock,
			SampleRate:   50,
			AxisRotation: imu.XNorthYEast.String(),
			SPIDevice:    "/dev/spidev0.0",
			CSPin:        "GPIO8",
			AccelRange:   1,
			GyroRange:    2,
			SerialPort:   "/dev/ttyUSB0",
			BaudRate:     115200,
			MockYawRate:  30,
		},
		Fusion: FusionConfig{
			GyroEnabled:    fusion.GyroEnabled,
			AccelEnabled:   fusion.AccelEnabled,
			CompassEnabled: fusion.CompassEnabled,
			Policy:         string(fusion.Policy),
			SlerpPower:     fusion.SlerpPower,
			Q:              fusion.Q,
			R:              fusion.R,
		},
		Timing:  TimingConfig{ConsoleLogIntervalMS: 1000},
		Web:     WebConfig{Port: 8080},
		Display: DisplayConfig{UpdateIntervalMS: 500},
	}
}

// Load reads the YAML file at configPath on top of Default.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open config file")
	}
	defer file.Close()

	cfg, err := Parse(file)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", configPath)
	}
	return cfg, nil
}

// Parse decodes YAML from r on top of Default and validates the result.
// Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "failed to decode config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks that all required fields are set and consistent.
func (c *Config) validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	if c.MQTT.Broker == "" {
		return errors.New("mqtt.broker is required")
	}
	if c.MQTT.TopicPose == "" {
		return errors.New("mqtt.topic_pose is required")
	}

	switch c.IMU.Driver {
	case DriverMPU9250:
		if c.IMU.SPIDevice == "" || c.IMU.CSPin == "" {
			return errors.New("imu.spi_device and imu.cs_pin are required for the mpu9250 driver")
		}
	case DriverSerial:
		if c.IMU.SerialPort == "" {
			return errors.New("imu.serial_port is required for the serial driver")
		}
		if c.IMU.BaudRate <= 0 {
			return errors.Errorf("imu.baud_rate must be positive, got %d", c.IMU.BaudRate)
		}
	case DriverMock:
	default:
		return errors.Errorf("unknown imu.driver %q", c.IMU.Driver)
	}
	if c.IMU.SampleRate <= 0 {
		return errors.Errorf("imu.sample_rate must be positive, got %d", c.IMU.SampleRate)
	}
	if c.IMU.AccelRange > 3 {
		return errors.Errorf("imu.accel_range must be 0-3, got %d", c.IMU.AccelRange)
	}
	if c.IMU.GyroRange > 3 {
		return errors.Errorf("imu.gyro_range must be 0-3, got %d", c.IMU.GyroRange)
	}
	if _, err := imu.ParseAxisRotation(c.IMU.AxisRotation); err != nil {
		return errors.Wrap(err, "imu.axis_rotation")
	}

	if err := c.OrientationFusion().Validate(); err != nil {
		return errors.Wrap(err, "fusion")
	}
	if _, err := c.CompassCalibration.Calibration(); err != nil {
		return errors.Wrap(err, "compass_calibration")
	}

	if c.Timing.ConsoleLogIntervalMS <= 0 {
		return errors.New("timing.console_log_interval_ms must be positive")
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		return errors.Errorf("web.port out of range: %d", c.Web.Port)
	}
	if c.Display.UpdateIntervalMS <= 0 {
		return errors.New("display.update_interval_ms must be positive")
	}
	return nil
}

// Calibration converts the recorded extremes. An invalid section yields an
// invalid calibration and no error.
func (c CompassCalibrationConfig) Calibration() (imu.CompassCalibration, error) {
	if !c.Valid {
		return imu.CompassCalibration{}, nil
	}
	return imu.NewCompassCalibration(
		spatialmath.NewVector3(c.Min[0], c.Min[1], c.Min[2]),
		spatialmath.NewVector3(c.Max[0], c.Max[1], c.Max[2]),
	)
}

// OrientationFusion returns the fusion filter settings.
func (c *Config) OrientationFusion() orientation.FusionConfig {
	return orientation.FusionConfig{
		GyroEnabled:    c.Fusion.GyroEnabled,
		AccelEnabled:   c.Fusion.AccelEnabled,
		CompassEnabled: c.Fusion.CompassEnabled,
		Policy:         orientation.CorrectionPolicy(c.Fusion.Policy),
		SlerpPower:     c.Fusion.SlerpPower,
		Q:              c.Fusion.Q,
		R:              c.Fusion.R,
	}
}

// Processor returns the sample processor settings.
func (c *Config) Processor() (imu.ProcessorConfig, error) {
	axis, err := imu.ParseAxisRotation(c.IMU.AxisRotation)
	if err != nil {
		return imu.ProcessorConfig{}, err
	}
	cal, err := c.CompassCalibration.Calibration()
	if err != nil {
		return imu.ProcessorConfig{}, err
	}
	return imu.ProcessorConfig{
		SampleRate:  c.IMU.SampleRate,
		Axis:        axis,
		Calibration: cal,
	}, nil
}

// InitGlobal loads the configuration file once. Later calls do nothing.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration, or nil before InitGlobal succeeds.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
