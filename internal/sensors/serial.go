// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/relabs-tech/inertial_fusion/internal/config"
	"github.com/relabs-tech/inertial_fusion/internal/imu"
	"github.com/relabs-tech/inertial_fusion/internal/spatialmath"
)

// TypeIMU is the sentence type of an IMU sample line:
//
//	$RTIMU,<timestamp ms>,gx,gy,gz,ax,ay,az,mx,my,mz*CS
//
// Gyro is in rad/s, accel in g and compass in µT.
const TypeIMU = "IMU"

const imuFieldCount = 10

// imuSentence is a parsed $RTIMU line.
type imuSentence struct {
	nmea.BaseSentence
	Timestamp int64
	Gyro      spatialmath.Vector3
	Accel     spatialmath.Vector3
	Compass   spatialmath.Vector3
}

func newIMUSentence(s nmea.BaseSentence) (nmea.Sentence, error) {
	if len(s.Fields) != imuFieldCount {
		return nil, errors.Errorf("IMU sentence has %d fields, want %d", len(s.Fields), imuFieldCount)
	}
	p := nmea.NewParser(s)
	vec := func(i int, what string) spatialmath.Vector3 {
		return spatialmath.Vector3{
			X: p.Float64(i, what+" x"),
			Y: p.Float64(i+1, what+" y"),
			Z: p.Float64(i+2, what+" z"),
		}
	}
	m := imuSentence{
		BaseSentence: s,
		Timestamp:    p.Int64(0, "timestamp"),
		Gyro:         vec(1, "gyro"),
		Accel:        vec(4, "accel"),
		Compass:      vec(7, "compass"),
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	if m.Timestamp < 0 {
		return nil, errors.Errorf("negative IMU timestamp %d", m.Timestamp)
	}
	return m, nil
}

var sentenceParser = nmea.SentenceParser{
	CustomParsers: map[string]nmea.ParserFunc{
		TypeIMU: newIMUSentence,
	},
}

// ParseSentence parses one line. Lines that are valid NMEA but not IMU
// sentences yield ErrNoSample.
func ParseSentence(line string) (imu.Sample, error) {
	sentence, err := sentenceParser.Parse(strings.TrimSpace(line))
	if err != nil {
		return imu.Sample{}, errors.Wrap(err, "parse sentence")
	}
	m, ok := sentence.(imuSentence)
	if !ok {
		return imu.Sample{}, ErrNoSample
	}
	return imu.Sample{
		Timestamp: uint64(m.Timestamp),
		Gyro:      m.Gyro,
		Accel:     m.Accel,
		Compass:   m.Compass,
	}, nil
}

// FormatSentence renders s as a checksummed $RTIMU line without line ending.
func FormatSentence(s imu.Sample) string {
	body := strings.Join([]string{
		"RT" + TypeIMU,
		formatUint(s.Timestamp),
		formatFloat(s.Gyro.X), formatFloat(s.Gyro.Y), formatFloat(s.Gyro.Z),
		formatFloat(s.Accel.X), formatFloat(s.Accel.Y), formatFloat(s.Accel.Z),
		formatFloat(s.Compass.X), formatFloat(s.Compass.Y), formatFloat(s.Compass.Z),
	}, ",")
	return "$" + body + "*" + nmea.Checksum(body)
}

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

const (
	serialQueueSize = 256
	// closeTimeout bounds how long Close waits for a blocked read to return.
	closeTimeout = time.Second
)

type serialDriver struct {
	cfg    config.IMUConfig
	logger *zap.SugaredLogger
	open   func() (io.ReadWriteCloser, error)

	port    io.ReadWriteCloser
	samples chan imu.Sample
	done    chan struct{}

	mu      sync.Mutex
	readErr error
	dropped int
}

// NewSerial returns a driver reading $RTIMU sentences from cfg.SerialPort.
func NewSerial(cfg config.IMUConfig, logger *zap.SugaredLogger) Driver {
	return newSerialDriver(cfg, logger, func() (io.ReadWriteCloser, error) {
		return serial.Open(serial.OpenOptions{
			PortName:        cfg.SerialPort,
			BaudRate:        uint(cfg.BaudRate),
			DataBits:        8,
			StopBits:        1,
			MinimumReadSize: 1,
			ParityMode:      serial.PARITY_NONE,
		})
	})
}

func newSerialDriver(cfg config.IMUConfig, logger *zap.SugaredLogger, open func() (io.ReadWriteCloser, error)) *serialDriver {
	return &serialDriver{cfg: cfg, logger: logger, open: open}
}

func (d *serialDriver) Name() string { return "serial " + d.cfg.SerialPort }

func (d *serialDriver) Init() error {
	port, err := d.open()
	if err != nil {
		return errors.Wrapf(err, "open serial port %s", d.cfg.SerialPort)
	}
	d.port = port
	d.samples = make(chan imu.Sample, serialQueueSize)
	d.done = make(chan struct{})
	d.logger.Infof("%s: reading at %d baud", d.Name(), d.cfg.BaudRate)

	go d.readLoop()
	return nil
}

func (d *serialDriver) readLoop() {
	defer close(d.done)

	scanner := bufio.NewScanner(d.port)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		s, err := ParseSentence(line)
		if errors.Is(err, ErrNoSample) {
			continue
		}
		if err != nil {
			d.logger.Debugf("%s: %v", d.Name(), err)
			continue
		}

		select {
		case d.samples <- s:
		default:
			d.mu.Lock()
			d.dropped++
			d.mu.Unlock()
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	d.mu.Lock()
	d.readErr = err
	d.mu.Unlock()
}

// PollInterval polls faster than the stream rate so the queue stays short.
func (d *serialDriver) PollInterval() time.Duration {
	return 400 * time.Millisecond / time.Duration(d.cfg.SampleRate)
}

// Read returns queued samples in order. Once the stream has ended and the
// queue is drained it returns the read error, io.EOF for a clean end.
func (d *serialDriver) Read() (imu.Sample, error) {
	if d.samples == nil {
		return imu.Sample{}, errors.New("serial driver not initialized")
	}
	select {
	case s := <-d.samples:
		return s, nil
	default:
	}

	d.mu.Lock()
	err := d.readErr
	d.mu.Unlock()
	if err != nil {
		// The reader may have queued a final sample before stopping.
		select {
		case s := <-d.samples:
			return s, nil
		default:
		}
		return imu.Sample{}, err
	}
	return imu.Sample{}, ErrNoSample
}

// Dropped returns how many samples were discarded because the queue was full.
func (d *serialDriver) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *serialDriver) Close() error {
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	select {
	case <-d.done:
	case <-time.After(closeTimeout):
		d.logger.Warnf("%s: reader did not stop after close", d.Name())
	}
	d.port = nil
	return errors.Wrap(err, "close serial port")
}
