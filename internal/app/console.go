// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/inertial_fusion/internal/config"
	"github.com/relabs-tech/inertial_fusion/internal/orientation"
)

// formatState renders one state as console lines.
func formatState(s orientation.State) string {
	bias := "settling"
	if s.GyroBiasValid {
		bias = "valid"
	}
	return fmt.Sprintf(
		"[FUSE]  ROLL=%7.2f  PITCH=%7.2f  YAW=%7.2f  t=%dms bias=%s\n"+
			"[MEAS]  ROLL=%7.2f  PITCH=%7.2f  YAW=%7.2f\n",
		s.Fused.Roll, s.Fused.Pitch, s.Fused.Yaw, s.Timestamp, bias,
		s.Measured.Roll, s.Measured.Pitch, s.Measured.Yaw,
	)
}

// consoleWriter prints states to out, serialized across MQTT callbacks.
type consoleWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (c *consoleWriter) print(s orientation.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, formatState(s))
}

// localConsole is a Publisher that prints states published on the pose topic
// and ignores everything else.
type localConsole struct {
	writer    *consoleWriter
	poseTopic string
}

func (l localConsole) Publish(topic string, payload []byte) error {
	if topic != l.poseTopic {
		return nil
	}
	var s orientation.State
	if err := json.Unmarshal(payload, &s); err != nil {
		return errors.Wrap(err, "unmarshal state")
	}
	l.writer.print(s)
	return nil
}

// RunConsole prints every fused state published on the broker until ctx is
// done.
func RunConsole(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger, out io.Writer) error {
	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDConsole, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(disconnectQuiesceMS)

	writer := &consoleWriter{out: out}
	if err := subscribeStates(client, cfg.MQTT.TopicPose, logger, writer.print); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("console: shutting down")
	return nil
}

// RunLocalConsole runs the driver and filter in-process and prints the state
// at most every interval, without a broker.
func RunLocalConsole(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger, out io.Writer, interval time.Duration) (err error) {
	clk := clock.New()

	pcfg, err := cfg.Processor()
	if err != nil {
		return err
	}
	pipeline, err := orientation.NewPipeline(pcfg, cfg.OrientationFusion())
	if err != nil {
		return err
	}
	driver, err := openDriver(cfg, clk, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, driver.Close())
	}()

	console := &throttledPublisher{
		next:     localConsole{writer: &consoleWriter{out: out}, poseTopic: cfg.MQTT.TopicPose},
		clk:      clk,
		interval: interval,
	}
	producer := NewProducer(
		driver,
		pipeline,
		console,
		Topics{Pose: cfg.MQTT.TopicPose},
		clk,
		time.Duration(cfg.Timing.ConsoleLogIntervalMS)*time.Millisecond,
		logger,
	)
	return producer.Run(ctx)
}

// throttledPublisher forwards at most one message per topic every interval.
type throttledPublisher struct {
	next     Publisher
	clk      clock.Clock
	interval time.Duration
	sent     map[string]time.Time
}

func (t *throttledPublisher) Publish(topic string, payload []byte) error {
	if t.sent == nil {
		t.sent = map[string]time.Time{}
	}
	now := t.clk.Now()
	if last, ok := t.sent[topic]; ok && now.Sub(last) < t.interval {
		return nil
	}
	t.sent[topic] = now
	return t.next.Publish(topic, payload)
}
