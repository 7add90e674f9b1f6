// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/inertial_viewer/internal/imu"
)

// AttitudeMessage is the JSON payload expected on the attitude topic.
type AttitudeMessage struct {
	Timestamp float64 `json:"t"`
	W         float64 `json:"w"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Frame     string  `json:"frame,omitempty"` // "arbitrary" or "magnetic_north"
}

// MQTTOptions configures an MQTTService.
type MQTTOptions struct {
	Broker        string
	ClientID      string
	AttitudeTopic string
	IMUTopic      string
	AccelInG      bool // raw accel payloads are in g rather than m/s²
}

// MQTTService reads a remote device's motion from an MQTT broker: fused
// attitude on one topic, raw imu.Sample payloads on another.
type MQTTService struct {
	opts   MQTTOptions
	client mqtt.Client

	mu      sync.RWMutex
	handler AttitudeHandler
	frame   ReferenceFrame
	raw     imu.Sample
	haveRaw bool
}

// NewMQTTService connects to the broker and subscribes to both topics.
func NewMQTTService(opts MQTTOptions) (*MQTTService, error) {
	s := &MQTTService{opts: opts}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	s.client = mqtt.NewClient(clientOpts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", opts.Broker, token.Error())
	}
	log.Printf("mqtt: connected to broker at %s", opts.Broker)

	subs := map[string]func([]byte){
		opts.AttitudeTopic: s.handleAttitude,
		opts.IMUTopic:      s.handleIMU,
	}
	for topic, handle := range subs {
		token := s.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			handle(msg.Payload())
		})
		token.Wait()
		if token.Error() != nil {
			s.client.Disconnect(250)
			return nil, fmt.Errorf("mqtt: subscribe %s: %w", topic, token.Error())
		}
		log.Printf("mqtt: subscribed to %s", topic)
	}
	return s, nil
}

func (s *MQTTService) handleAttitude(payload []byte) {
	var m AttitudeMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		log.Printf("mqtt: attitude unmarshal error: %v", err)
		return
	}

	s.mu.RLock()
	fn, frame := s.handler, s.frame
	s.mu.RUnlock()
	if fn == nil {
		return
	}
	if m.Frame != "" && m.Frame != frame.String() {
		return
	}
	fn(quat.Number{Real: m.W, Imag: m.X, Jmag: m.Y, Kmag: m.Z}, m.Timestamp)
}

func (s *MQTTService) handleIMU(payload []byte) {
	var raw imu.Sample
	if err := json.Unmarshal(payload, &raw); err != nil {
		log.Printf("mqtt: imu unmarshal error: %v", err)
		return
	}
	if s.opts.AccelInG {
		raw.Accel = imu.AccelFromG(raw.Accel)
	}

	s.mu.Lock()
	s.raw = raw
	s.haveRaw = true
	s.mu.Unlock()
}

// StartDeviceMotion routes attitude messages for frame to fn. Messages
// tagged with another frame are dropped. The broker sets the pace, so
// interval is only a hint.
func (s *MQTTService) StartDeviceMotion(_ time.Duration, frame ReferenceFrame, fn AttitudeHandler) error {
	s.mu.Lock()
	s.handler = fn
	s.frame = frame
	s.mu.Unlock()
	return nil
}

// StopDeviceMotion stops delivering attitude messages.
func (s *MQTTService) StopDeviceMotion() {
	s.mu.Lock()
	s.handler = nil
	s.mu.Unlock()
}

// Accelerometer returns the accel part of the latest raw message.
func (s *MQTTService) Accelerometer() (imu.Vec3, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw.Accel, s.haveRaw
}

// Gyroscope returns the gyro part of the latest raw message.
func (s *MQTTService) Gyroscope() (imu.Vec3, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw.Gyro, s.haveRaw
}

// Magnetometer returns the mag part of the latest raw message, if it had one.
func (s *MQTTService) Magnetometer() (imu.Vec3, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.haveRaw || s.raw.Mag == nil {
		return imu.Vec3{}, false
	}
	return *s.raw.Mag, true
}

// Close disconnects from the broker.
func (s *MQTTService) Close() error {
	s.StopDeviceMotion()
	if s.client != nil {
		s.client.Disconnect(250)
	}
	return nil
}
