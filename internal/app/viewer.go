// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_viewer/internal/config"
	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/motion"
	"github.com/relabs-tech/inertial_viewer/internal/pipeline"
)

// NewService opens the motion service selected by MOTION_SERVICE.
func NewService(cfg *config.Config) (motion.Service, error) {
	switch cfg.MotionService {
	case config.ServiceSim:
		return motion.NewSimulator(), nil
	case config.ServiceMQTT:
		svc, err := motion.NewMQTTService(motion.MQTTOptions{
			Broker:        cfg.MQTTBroker,
			ClientID:      cfg.MQTTClientIDViewer,
			AttitudeTopic: cfg.TopicAttitudeIn,
			IMUTopic:      cfg.TopicIMUIn,
			AccelInG:      cfg.MQTTAccelInG,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	case config.ServiceIMU:
		svc, err := motion.NewIMUService(cfg.IMUSPIDevice, cfg.IMUCSPin, imu.Scale{
			AccelLSBPerG:  cfg.IMUAccelLSBPerG,
			GyroLSBPerDPS: cfg.IMUGyroLSBPerDPS,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	case config.ServiceNMEA:
		svc, err := motion.NewNMEAService(cfg.NMEASerialPort, cfg.NMEABaudRate)
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("unknown motion service %q", cfg.MotionService)
	}
}

// ControllerOptions maps the timing keys onto controller options.
func ControllerOptions(cfg *config.Config, sink pipeline.Sink) (pipeline.Options, error) {
	src, err := pipeline.ParseSource(cfg.AttitudeSource)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Source:          src,
		RawStep:         cfg.RawStep(),
		PublishInterval: cfg.PublishInterval(),
		MotionInterval:  cfg.MotionInterval(),
		Retention:       cfg.History(),
		RateWindow:      cfg.RateWindow,
		Sink:            sink,
	}, nil
}

// Viewer is the assembled application: motion service, controller and
// the consumers fed by the publish loop.
type Viewer struct {
	Service    motion.Service
	Controller *pipeline.Controller
	Hub        *Hub
	Panel      *Panel
	Publisher  *MQTTPublisher
	mqttClient mqtt.Client
}

// NewViewer wires svc to every consumer enabled in cfg. Sessions started
// from the web run under ctx.
func NewViewer(ctx context.Context, cfg *config.Config, svc motion.Service) (*Viewer, error) {
	v := &Viewer{Service: svc, Panel: NewPanel()}

	sinks := pipeline.MultiSink{v.Panel}
	if cfg.ConsoleLogInterval > 0 {
		sinks = append(sinks, NewConsoleSink(nil, time.Duration(cfg.ConsoleLogInterval)*time.Millisecond))
	}

	if cfg.TopicPosePlatform != "" || cfg.TopicPoseFused != "" || cfg.TopicRates != "" {
		client, err := connectPublisher(cfg)
		if err != nil {
			// The viewer is still useful without the broker.
			log.Printf("viewer: MQTT publishing disabled: %v", err)
		} else {
			v.mqttClient = client
			v.Publisher = NewMQTTPublisher(client, PublisherTopics{
				PosePlatform: cfg.TopicPosePlatform,
				PoseFused:    cfg.TopicPoseFused,
				Rates:        cfg.TopicRates,
			})
			sinks = append(sinks, v.Publisher)
		}
	}

	// The hub needs the controller and the controller needs the sinks, so
	// the hub is reached through a closure.
	var hub *Hub
	sinks = append(sinks, pipeline.SinkFunc(func(s pipeline.Snapshot) { hub.Publish(s) }))

	opts, err := ControllerOptions(cfg, sinks)
	if err != nil {
		if v.mqttClient != nil {
			v.mqttClient.Disconnect(250)
		}
		return nil, err
	}
	v.Controller = pipeline.NewController(svc, opts)
	hub = NewHub(ctx, v.Controller, v.Panel)
	v.Hub = hub
	return v, nil
}

func connectPublisher(cfg *config.Config) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDPublisher).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.MQTTBroker, token.Error())
	}
	log.Printf("viewer: publishing to MQTT broker at %s", cfg.MQTTBroker)
	return client, nil
}

// Close stops the session and releases the service and broker connection.
func (v *Viewer) Close() error {
	if v.Controller != nil {
		v.Controller.Stop()
	}
	if v.mqttClient != nil {
		v.mqttClient.Disconnect(250)
	}
	return v.Service.Close()
}

// RunViewer runs the viewer with the global configuration until SIGINT
// or SIGTERM.
func RunViewer() error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := NewService(cfg)
	if err != nil {
		return fmt.Errorf("viewer: open motion service: %w", err)
	}
	log.Printf("viewer: motion service %s ready", cfg.MotionService)

	v, err := NewViewer(ctx, cfg, svc)
	if err != nil {
		svc.Close()
		return fmt.Errorf("viewer: %w", err)
	}
	defer v.Close()

	if cfg.DisplayEnabled {
		go func() {
			interval := time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond
			if err := RunDisplay(ctx, v.Panel, cfg.DisplayI2CBus, interval); err != nil {
				log.Printf("viewer: display disabled: %v", err)
			}
		}()
	}

	if cfg.AutoStart {
		if err := v.Controller.Start(ctx); err != nil {
			return fmt.Errorf("viewer: %w", err)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	srv := &http.Server{Addr: addr, Handler: v.Hub.Handler("web")}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("viewer: web server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Println("viewer: shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("viewer: web server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// RunConsole runs a headless session that only logs to the console. It
// starts immediately and stops on SIGINT or SIGTERM.
func RunConsole() error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := NewService(cfg)
	if err != nil {
		return fmt.Errorf("console: open motion service: %w", err)
	}
	defer svc.Close()

	interval := time.Duration(cfg.ConsoleLogInterval) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	opts, err := ControllerOptions(cfg, NewConsoleSink(nil, interval))
	if err != nil {
		return fmt.Errorf("console: %w", err)
	}

	ctrl := pipeline.NewController(svc, opts)
	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	<-ctx.Done()
	ctrl.Stop()
	log.Println("console: shutting down")
	return nil
}
