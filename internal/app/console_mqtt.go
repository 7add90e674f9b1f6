package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_viewer/internal/config"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
)

// RunConsoleMQTT prints what a running viewer publishes: both streams'
// poses and the rate estimates.
func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	subs := []struct {
		topic  string
		format func([]byte) (string, error)
	}{
		{cfg.TopicPosePlatform, poseLine("[PLAT]")},
		{cfg.TopicPoseFused, poseLine("[FUSE]")},
		{cfg.TopicRates, ratesLine},
	}
	for _, sub := range subs {
		format, topic := sub.format, sub.topic
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			line, err := format(msg.Payload())
			if err != nil {
				log.Printf("console: %s unmarshal error: %v", topic, err)
				return
			}
			fmt.Println(line)
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("console: subscribed to %s", topic)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func poseLine(tag string) func([]byte) (string, error) {
	return func(payload []byte) (string, error) {
		var p orientation.Pose
		if err := json.Unmarshal(payload, &p); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f", tag, p.Roll, p.Pitch, p.Yaw), nil
	}
}

func ratesLine(payload []byte) (string, error) {
	var m RatesMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", err
	}
	hz := func(r *float64) string {
		if r == nil {
			return "--"
		}
		return fmt.Sprintf("%.1fHz", *r)
	}
	return fmt.Sprintf("[RATE] A=%s B=%s seq=%d", hz(m.Platform), hz(m.Fused), m.Seq), nil
}
