// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/inertial_fusion/internal/config"
	"github.com/relabs-tech/inertial_fusion/internal/imu"
	"github.com/relabs-tech/inertial_fusion/internal/spatialmath"
)

// Full scale tables indexed by the range register code 0-3.
var (
	mpuAccelScale = [4]float64{1.0 / 16384.0, 1.0 / 8192.0, 1.0 / 4096.0, 1.0 / 2048.0}
	mpuGyroScale  = [4]float64{
		math.Pi / (131.0 * 180.0),
		math.Pi / (62.5 * 180.0),
		math.Pi / (32.8 * 180.0),
		math.Pi / (16.4 * 180.0),
	}
)

// mpuCounts is one raw accel and gyro register read.
type mpuCounts struct {
	ax, ay, az int16
	gx, gy, gz int16
}

// sample scales the counts and aligns the chip axes: gyro Y and Z and accel X
// are inverted. The MPU9250 magnetometer is not read, so the compass is zero.
func (c mpuCounts) sample(accelRange, gyroRange byte, ts uint64) imu.Sample {
	accel := spatialmath.ScaledVector(c.ax, c.ay, c.az, mpuAccelScale[accelRange&3])
	gyro := spatialmath.ScaledVector(c.gx, c.gy, c.gz, mpuGyroScale[gyroRange&3])
	accel.X = -accel.X
	gyro.Y = -gyro.Y
	gyro.Z = -gyro.Z
	return imu.Sample{Timestamp: ts, Gyro: gyro, Accel: accel}
}

type mpu9250Driver struct {
	cfg    config.IMUConfig
	clk    clock.Clock
	logger *zap.SugaredLogger

	dev   *mpu9250.MPU9250
	start time.Time
}

// NewMPU9250 returns a driver for an MPU9250 on SPI.
func NewMPU9250(cfg config.IMUConfig, clk clock.Clock, logger *zap.SugaredLogger) Driver {
	return &mpu9250Driver{cfg: cfg, clk: clk, logger: logger}
}

func (d *mpu9250Driver) Name() string { return "mpu9250 " + d.cfg.SPIDevice }

func (d *mpu9250Driver) Init() error {
	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "periph host init")
	}

	cs := gpioreg.ByName(d.cfg.CSPin)
	if cs == nil {
		return errors.Errorf("CS pin %q not found", d.cfg.CSPin)
	}

	tr, err := mpu9250.NewSpiTransport(d.cfg.SPIDevice, cs)
	if err != nil {
		return errors.Wrapf(err, "SPI transport (%s)", d.cfg.SPIDevice)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return errors.Wrap(err, "device creation")
	}
	if err := dev.Init(); err != nil {
		return errors.Wrap(err, "initialization")
	}

	if err := dev.SetAccelRange(d.cfg.AccelRange); err != nil {
		return errors.Wrap(err, "set accel range")
	}
	d.logger.Infof("%s: accelerometer range set to %d (±%dg)", d.Name(), d.cfg.AccelRange, []int{2, 4, 8, 16}[d.cfg.AccelRange&3])

	if err := dev.SetGyroRange(d.cfg.GyroRange); err != nil {
		return errors.Wrap(err, "set gyro range")
	}
	d.logger.Infof("%s: gyroscope range set to %d (±%d°/s)", d.Name(), d.cfg.GyroRange, []int{250, 500, 1000, 2000}[d.cfg.GyroRange&3])

	if err := dev.Calibrate(); err != nil {
		d.logger.Warnf("%s: calibration failed: %v", d.Name(), err)
	} else {
		d.logger.Infof("%s: calibration complete", d.Name())
	}

	d.dev = dev
	d.start = d.clk.Now()
	return nil
}

func (d *mpu9250Driver) PollInterval() time.Duration {
	return time.Second / time.Duration(d.cfg.SampleRate)
}

func (d *mpu9250Driver) Read() (imu.Sample, error) {
	if d.dev == nil {
		return imu.Sample{}, errors.New("mpu9250 not initialized")
	}

	var c mpuCounts
	var err error
	read := func(dst *int16, get func() (int16, error), what string) {
		if err != nil {
			return
		}
		if *dst, err = get(); err != nil {
			err = errors.Wrap(err, what)
		}
	}
	read(&c.ax, d.dev.GetAccelerationX, "accel X")
	read(&c.ay, d.dev.GetAccelerationY, "accel Y")
	read(&c.az, d.dev.GetAccelerationZ, "accel Z")
	read(&c.gx, d.dev.GetRotationX, "gyro X")
	read(&c.gy, d.dev.GetRotationY, "gyro Y")
	read(&c.gz, d.dev.GetRotationZ, "gyro Z")
	if err != nil {
		return imu.Sample{}, err
	}

	return c.sample(d.cfg.AccelRange, d.cfg.GyroRange, sinceMillis(d.clk, d.start)), nil
}

// Close is a no-op: the SPI port is owned by the periph host.
func (d *mpu9250Driver) Close() error {
	d.dev = nil
	return nil
}
