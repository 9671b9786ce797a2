// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/inertial_fusion/internal/config"
	"github.com/relabs-tech/inertial_fusion/internal/orientation"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
)

// displayData holds the latest state for the display loop.
type displayData struct {
	mu    sync.RWMutex
	state orientation.State
	have  bool
}

func (d *displayData) update(s orientation.State) {
	d.mu.Lock()
	d.state = s
	d.have = true
	d.mu.Unlock()
}

func (d *displayData) snapshot() (orientation.State, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state, d.have
}

// drawLines renders one text line per row of the 7x13 font.
func drawLines(lines ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(0, (i+1)*lineHeight)
		drawer.DrawString(line)
	}
	return img
}

// renderState draws the fused pose, or a waiting screen before the first
// state arrives.
func renderState(s orientation.State, have bool) *image1bit.VerticalLSB {
	if !have {
		return drawLines("", "Orientation", "Waiting...")
	}
	bias := "settling"
	if s.GyroBiasValid {
		bias = "ok"
	}
	return drawLines(
		fmt.Sprintf("Roll  %8.2f", s.Fused.Roll),
		fmt.Sprintf("Pitch %8.2f", s.Fused.Pitch),
		fmt.Sprintf("Yaw   %8.2f", s.Fused.Yaw),
		"Gyro bias "+bias,
	)
}

func renderSplash() *image1bit.VerticalLSB {
	return drawLines("", " Inertial Pi", "  RTQF fusion")
}

// RunDisplay shows the fused pose on an SSD1306 OLED on the default I2C bus
// until ctx is done.
func RunDisplay(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (err error) {
	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "failed to initialize periph")
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return errors.Wrap(err, "failed to open I2C bus")
	}
	defer func() {
		err = multierr.Append(err, bus.Close())
	}()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return errors.Wrap(err, "failed to initialize display")
	}
	defer func() {
		err = multierr.Append(err, dev.Halt())
	}()
	logger.Infof("display: %s initialized", dev)

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		logger.Warnf("display: error showing splash: %v", err)
	}

	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDDisplay, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(disconnectQuiesceMS)

	data := &displayData{}
	if err := subscribeStates(client, cfg.MQTT.TopicPose, logger, data.update); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(cfg.Display.UpdateIntervalMS) * time.Millisecond)
	defer ticker.Stop()
	logger.Info("display: starting update loop")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			state, have := data.snapshot()
			if err := dev.Draw(dev.Bounds(), renderState(state, have), image.Point{}); err != nil {
				logger.Warnf("display: error updating: %v", err)
			}
		}
	}
}
