// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/inertial_fusion/internal/config"
	"github.com/relabs-tech/inertial_fusion/internal/orientation"
	"github.com/relabs-tech/inertial_fusion/internal/sensors"
)

// Topics names where a Producer publishes. An empty topic is skipped.
type Topics struct {
	Pose string
	IMU  string
}

// Producer reads one driver, runs every sample through the pipeline and
// publishes the raw sample and the resulting state.
type Producer struct {
	driver   sensors.Driver
	pipeline *orientation.Pipeline
	pub      Publisher
	topics   Topics
	clk      clock.Clock
	logger   *zap.SugaredLogger

	logInterval time.Duration
	lastLog     time.Time

	samples int
	last    orientation.State
	have    bool
}

// NewProducer wires an initialized driver to a pipeline and publisher.
func NewProducer(
	driver sensors.Driver,
	pipeline *orientation.Pipeline,
	pub Publisher,
	topics Topics,
	clk clock.Clock,
	logInterval time.Duration,
	logger *zap.SugaredLogger,
) *Producer {
	return &Producer{
		driver:      driver,
		pipeline:    pipeline,
		pub:         pub,
		topics:      topics,
		clk:         clk,
		logger:      logger,
		logInterval: logInterval,
		lastLog:     clk.Now(),
	}
}

// Step polls the driver once. It returns an error only when the driver can
// deliver no more samples.
func (p *Producer) Step() error {
	raw, err := p.driver.Read()
	switch {
	case errors.Is(err, sensors.ErrNoSample):
		return nil
	case errors.Is(err, io.EOF):
		return errors.Wrapf(err, "%s stream ended", p.driver.Name())
	case err != nil:
		p.logger.Warnf("%s read error: %v", p.driver.Name(), err)
		return nil
	}

	state := p.pipeline.Process(raw)
	p.samples++
	p.last = state
	p.have = true

	p.publish(p.topics.IMU, raw)
	p.publish(p.topics.Pose, state)

	if now := p.clk.Now(); now.Sub(p.lastLog) >= p.logInterval {
		p.lastLog = now
		p.logger.Infof("tick: %s | bias valid=%t | samples=%d",
			state.Fused, state.GyroBiasValid, p.samples)
	}
	return nil
}

func (p *Producer) publish(topic string, v interface{}) {
	if topic == "" {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.Errorf("%s marshal error: %v", topic, err)
		return
	}
	if err := p.pub.Publish(topic, payload); err != nil {
		p.logger.Warnf("%s publish error: %v", topic, err)
	}
}

// Run polls the driver at its poll interval until ctx is done or the driver
// stream ends.
func (p *Producer) Run(ctx context.Context) error {
	return poll(ctx, p.clk, p.driver.PollInterval(), p.Step)
}

// Last returns the most recent state and whether any sample was processed.
func (p *Producer) Last() (orientation.State, bool) { return p.last, p.have }

// Samples returns how many samples went through the pipeline.
func (p *Producer) Samples() int { return p.samples }

// poll calls fn every interval until ctx is done or fn fails.
func poll(ctx context.Context, clk clock.Clock, interval time.Duration, fn func() error) error {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := fn(); err != nil {
				return err
			}
		}
	}
}

// openDriver builds and initializes the configured driver.
func openDriver(cfg *config.Config, clk clock.Clock, logger *zap.SugaredLogger) (sensors.Driver, error) {
	driver, err := sensors.New(cfg.IMU, clk, logger)
	if err != nil {
		return nil, err
	}
	if err := driver.Init(); err != nil {
		return nil, multierr.Append(
			errors.Wrapf(err, "initialize %s", driver.Name()),
			driver.Close(),
		)
	}
	logger.Infof("using %s at %d Hz", driver.Name(), cfg.IMU.SampleRate)
	return driver, nil
}

// RunProducer owns the sensor: it reads, fuses and publishes until ctx is done.
func RunProducer(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (err error) {
	logger.Info("starting inertial fusion producer")
	clk := clock.New()

	pcfg, err := cfg.Processor()
	if err != nil {
		return err
	}
	pipeline, err := orientation.NewPipeline(pcfg, cfg.OrientationFusion())
	if err != nil {
		return err
	}
	if !pcfg.Calibration.Valid {
		logger.Warn("no compass calibration configured, yaw will follow the raw field")
	}

	driver, err := openDriver(cfg, clk, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, driver.Close())
	}()

	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDProducer, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(disconnectQuiesceMS)

	producer := NewProducer(
		driver,
		pipeline,
		mqttPublisher{client: client},
		Topics{Pose: cfg.MQTT.TopicPose, IMU: cfg.MQTT.TopicIMU},
		clk,
		time.Duration(cfg.Timing.ConsoleLogIntervalMS)*time.Millisecond,
		logger,
	)
	logger.Infof("publishing %s and %s", cfg.MQTT.TopicPose, cfg.MQTT.TopicIMU)
	return producer.Run(ctx)
}
