// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_viewer/internal/pipeline"
)

// PublisherTopics are the outbound topics of an MQTTPublisher.
type PublisherTopics struct {
	PosePlatform string
	PoseFused    string
	Rates        string
}

// RatesMessage is the payload published on the rates topic.
type RatesMessage struct {
	Session  string   `json:"session"`
	Seq      uint64   `json:"seq"`
	Platform *float64 `json:"platform_hz"`
	Fused    *float64 `json:"fused_hz"`
}

// MQTTPublisher republishes each stream's latest Euler pose and the rate
// estimates as retained messages. A stream's pose is only published when
// it has a new sample. It is a pipeline.Sink.
type MQTTPublisher struct {
	client mqtt.Client
	topics PublisherTopics

	platformSeen uint64
	fusedSeen    uint64
	session      string
}

// NewMQTTPublisher publishes through an already connected client.
func NewMQTTPublisher(client mqtt.Client, topics PublisherTopics) *MQTTPublisher {
	return &MQTTPublisher{client: client, topics: topics}
}

// Publish sends s. Tokens are never waited on: only errors already known
// when Publish returns (not connected, for example) are logged.
func (p *MQTTPublisher) Publish(s pipeline.Snapshot) {
	if s.Session != p.session {
		p.session, p.platformSeen, p.fusedSeen = s.Session, 0, 0
	}

	p.publishPose(p.topics.PosePlatform, s.Platform, &p.platformSeen)
	p.publishPose(p.topics.PoseFused, s.Fused, &p.fusedSeen)

	if p.topics.Rates == "" {
		return
	}
	p.send(p.topics.Rates, RatesMessage{
		Session:  s.Session,
		Seq:      s.Sequence,
		Platform: s.Platform.Rate,
		Fused:    s.Fused.Rate,
	})
}

func (p *MQTTPublisher) publishPose(topic string, st pipeline.StreamState, seen *uint64) {
	if topic == "" || st.Latest == nil || st.Samples == *seen {
		return
	}
	*seen = st.Samples
	p.send(topic, st.Latest.Euler)
}

func (p *MQTTPublisher) send(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("mqtt: marshal error (%s): %v", topic, err)
		return
	}
	token := p.client.Publish(topic, 0, true, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			log.Printf("mqtt: publish error (%s): %v", topic, err)
		}
	default:
		// still in flight
	}
}
