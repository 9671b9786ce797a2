// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package app holds the long-running commands: the producer that owns the
// sensor and filter, and the web, console, display and calibration clients.
package app

import (
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/relabs-tech/inertial_fusion/internal/orientation"
)

// disconnectQuiesceMS is how long Disconnect waits for in-flight messages.
const disconnectQuiesceMS = 250

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

type mqttPublisher struct {
	client mqtt.Client
}

// Publish sends a retained QoS 0 message and waits for it to leave.
func (p mqttPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, true, payload)
	token.Wait()
	return token.Error()
}

func connectMQTT(broker, clientID string, logger *zap.SugaredLogger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "connect to MQTT broker %s", broker)
	}
	logger.Infof("connected to MQTT broker at %s as %s", broker, clientID)
	return client, nil
}

// subscribeStates decodes every message on topic as an orientation.State and
// hands it to fn. Undecodable payloads are logged and dropped.
func subscribeStates(client mqtt.Client, topic string, logger *zap.SugaredLogger, fn func(orientation.State)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		state, err := decodeState(msg.Payload())
		if err != nil {
			logger.Warnf("%s: %v", topic, err)
			return
		}
		fn(state)
	})
	token.Wait()
	if token.Error() != nil {
		return errors.Wrapf(token.Error(), "subscribe to %s", topic)
	}
	logger.Infof("subscribed to MQTT topic %s", topic)
	return nil
}

func decodeState(payload []byte) (orientation.State, error) {
	var state orientation.State
	if err := json.Unmarshal(payload, &state); err != nil {
		return orientation.State{}, errors.Wrap(err, "unmarshal state")
	}
	return state, nil
}
