// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
)

// xdrAngular is the XDR transducer type for angular displacement.
const xdrAngular = "A"

// NMEAService reads a serial AHRS that reports attitude as NMEA 0183:
// XDR angular transducers named PITCH and ROLL, and HDT true heading.
// Every XDR sentence carrying pitch or roll emits one attitude sample.
// The device sends no raw inertial data.
type NMEAService struct {
	port  io.ReadWriteCloser
	start time.Time

	mu          sync.Mutex
	pose        orientation.Pose
	heading     float64
	haveHeading bool
	refHeading  float64 // heading at the first attitude sample, for the arbitrary frame
	haveRef     bool
	handler     AttitudeHandler
	frame       ReferenceFrame

	done chan struct{}
}

// NewNMEAService opens the serial port and starts reading sentences.
func NewNMEAService(portName string, baud int) (*NMEAService, error) {
	serialOpts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("nmea: open %s: %w", portName, err)
	}
	log.Printf("nmea: serial port opened on %s at %d baud", portName, baud)

	s := newNMEAService(port)
	go s.readLoop()
	return s, nil
}

func newNMEAService(port io.ReadWriteCloser) *NMEAService {
	return &NMEAService{port: port, start: time.Now(), done: make(chan struct{})}
}

func (s *NMEAService) readLoop() {
	defer close(s.done)
	reader := bufio.NewReader(s.port)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				log.Printf("nmea: read error: %v", err)
			}
			return
		}
		s.handleLine(line, time.Since(s.start).Seconds())
	}
}

// handleLine parses one sentence received at ts. Lines that are not
// NMEA or fail to parse are skipped.
func (s *NMEAService) handleLine(line string, ts float64) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return
	}

	switch sentence.DataType() {
	case nmea.TypeHDT:
		m := sentence.(nmea.HDT)
		s.mu.Lock()
		s.heading = m.Heading
		s.haveHeading = true
		s.mu.Unlock()

	case nmea.TypeXDR:
		m := sentence.(nmea.XDR)
		updated := false
		s.mu.Lock()
		for _, meas := range m.Measurements {
			if meas.TransducerType != xdrAngular {
				continue
			}
			switch strings.ToUpper(meas.TransducerName) {
			case "PITCH":
				s.pose.Pitch = meas.Value
				updated = true
			case "ROLL":
				s.pose.Roll = meas.Value
				updated = true
			}
		}
		fn := s.handler
		var p orientation.Pose
		if updated && fn != nil {
			p = s.currentPose()
		}
		s.mu.Unlock()

		if updated && fn != nil {
			fn(orientation.FromEuler(p), ts)
		}
	}
}

// currentPose applies the heading for the selected frame. Callers hold mu.
func (s *NMEAService) currentPose() orientation.Pose {
	p := s.pose
	if !s.haveHeading {
		return p
	}
	if s.frame == MagneticNorthZVertical {
		p.Yaw = wrapDegrees(s.heading)
		return p
	}
	if !s.haveRef {
		s.refHeading = s.heading
		s.haveRef = true
	}
	p.Yaw = wrapDegrees(s.heading - s.refHeading)
	return p
}

// wrapDegrees maps an angle into [-180, 180).
func wrapDegrees(d float64) float64 {
	for d >= 180 {
		d -= 360
	}
	for d < -180 {
		d += 360
	}
	return d
}

// StartDeviceMotion routes attitude for frame to fn. The device sets the
// pace, so interval is only a hint.
func (s *NMEAService) StartDeviceMotion(_ time.Duration, frame ReferenceFrame, fn AttitudeHandler) error {
	s.mu.Lock()
	s.handler = fn
	s.frame = frame
	s.haveRef = false
	s.mu.Unlock()
	return nil
}

// StopDeviceMotion stops delivering attitude.
func (s *NMEAService) StopDeviceMotion() {
	s.mu.Lock()
	s.handler = nil
	s.mu.Unlock()
}

// Accelerometer is not reported by NMEA attitude devices.
func (s *NMEAService) Accelerometer() (imu.Vec3, bool) { return imu.Vec3{}, false }

// Gyroscope is not reported by NMEA attitude devices.
func (s *NMEAService) Gyroscope() (imu.Vec3, bool) { return imu.Vec3{}, false }

// Magnetometer is not reported by NMEA attitude devices.
func (s *NMEAService) Magnetometer() (imu.Vec3, bool) { return imu.Vec3{}, false }

// Close closes the serial port, which ends the read loop.
func (s *NMEAService) Close() error {
	s.StopDeviceMotion()
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("nmea: close port: %w", err)
	}
	return nil
}
