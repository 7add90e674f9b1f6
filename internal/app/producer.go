package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/inertial_viewer/internal/config"
	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/motion"
	"github.com/relabs-tech/inertial_viewer/internal/pipeline"
)

// Producer republishes a local motion service on MQTT in the format
// motion.MQTTService consumes: fused attitude on one topic, raw samples
// on another. It lets a viewer run on a different host than the sensors.
type Producer struct {
	svc           motion.Service
	client        mqtt.Client
	attitudeTopic string
	imuTopic      string
	frame         motion.ReferenceFrame
	start         time.Time
	now           func() time.Time
}

// NewProducer builds a producer for svc publishing through client.
func NewProducer(svc motion.Service, client mqtt.Client, attitudeTopic, imuTopic string, frame motion.ReferenceFrame) *Producer {
	return &Producer{
		svc:           svc,
		client:        client,
		attitudeTopic: attitudeTopic,
		imuTopic:      imuTopic,
		frame:         frame,
		start:         time.Now(),
		now:           time.Now,
	}
}

// onAttitude is the device-motion callback.
func (p *Producer) onAttitude(q quat.Number, ts float64) {
	p.publish(p.attitudeTopic, motion.AttitudeMessage{
		Timestamp: ts,
		W:         q.Real,
		X:         q.Imag,
		Y:         q.Jmag,
		Z:         q.Kmag,
		Frame:     p.frame.String(),
	})
}

// publishRaw reads the raw sensors once and publishes a sample. It reports
// false when accel or gyro have nothing yet.
func (p *Producer) publishRaw() bool {
	acc, ok := p.svc.Accelerometer()
	if !ok {
		return false
	}
	gyro, ok := p.svc.Gyroscope()
	if !ok {
		return false
	}
	s := imu.Sample{
		Source:    "producer",
		Timestamp: p.now().Sub(p.start).Seconds(),
		Accel:     acc,
		Gyro:      gyro,
	}
	if mag, ok := p.svc.Magnetometer(); ok {
		s.Mag = &mag
	}
	p.publish(p.imuTopic, s)
	return true
}

func (p *Producer) publish(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("producer: json marshal error (%s): %v", topic, err)
		return
	}
	if token := p.client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		log.Printf("producer: MQTT publish error (%s): %v", topic, token.Error())
	}
}

// Run streams attitude and raw samples until ctx is done.
func (p *Producer) Run(ctx context.Context, motionInterval, rawStep time.Duration) error {
	if err := p.svc.StartDeviceMotion(motionInterval, p.frame, p.onAttitude); err != nil {
		return fmt.Errorf("producer: start device motion: %w", err)
	}
	defer p.svc.StopDeviceMotion()

	ticker := time.NewTicker(rawStep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.publishRaw()
		}
	}
}

// RunProducer opens the configured local motion service and publishes it
// to TOPIC_ATTITUDE_IN and TOPIC_IMU_IN until SIGINT or SIGTERM.
func RunProducer() error {
	cfg := config.Get()
	if cfg.MotionService == config.ServiceMQTT {
		return fmt.Errorf("producer: MOTION_SERVICE=mqtt would republish its own input")
	}
	src, err := pipeline.ParseSource(cfg.AttitudeSource)
	if err != nil {
		return fmt.Errorf("producer: %w", err)
	}

	svc, err := NewService(cfg)
	if err != nil {
		return fmt.Errorf("producer: open motion service: %w", err)
	}
	defer svc.Close()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("producer: MQTT connect error: %w", token.Error())
	}
	defer client.Disconnect(250)
	log.Println("connected to MQTT, starting publish loop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := NewProducer(svc, client, cfg.TopicAttitudeIn, cfg.TopicIMUIn, src.Frame())
	return p.Run(ctx, cfg.MotionInterval(), cfg.RawStep())
}
