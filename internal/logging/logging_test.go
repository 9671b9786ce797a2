// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("produce", "debug")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logger.Desugar().Core().Enabled(zapcore.DebugLevel), test.ShouldBeTrue)

	logger, err = NewLogger("produce", "warn")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logger.Desugar().Core().Enabled(zapcore.InfoLevel), test.ShouldBeFalse)

	_, err = NewLogger("produce", "loud")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewLoggerConfig(t *testing.T) {
	cfg := NewLoggerConfig()
	test.That(t, cfg.Encoding, test.ShouldEqual, "console")
	test.That(t, cfg.DisableStacktrace, test.ShouldBeTrue)
	test.That(t, cfg.Level.Level(), test.ShouldEqual, zapcore.InfoLevel)
}
