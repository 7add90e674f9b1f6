// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"fmt"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
)

const readErrorInterval = 5 * time.Second

// IMUService reads an MPU9250 over SPI. The chip has no attitude output,
// so device motion is an accelerometer-only tilt estimate (yaw fixed at 0)
// and the magnetometer is not available.
type IMUService struct {
	name  string
	scale imu.Scale
	start time.Time

	busMu sync.Mutex // one SPI transaction at a time
	dev   *mpu9250.MPU9250

	accelErrs *errorLog
	gyroErrs  *errorLog

	push pusher
}

// NewIMUService initializes the MPU9250 on spiDev with chip select csPin
// and runs the driver's bias calibration. Keep the device still meanwhile.
func NewIMUService(spiDev, csPin string, scale imu.Scale) (*IMUService, error) {
	const name = "imu"

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%s: periph host init: %w", name, err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("%s: CS pin %q not found", name, csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("%s: SPI transport (%s): %w", name, spiDev, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("%s: device creation: %w", name, err)
	}
	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("%s: initialization: %w", name, err)
	}

	if err := dev.Calibrate(); err != nil {
		log.Printf("Warning: %s calibration failed: %v", name, err)
	} else {
		log.Printf("%s calibration complete", name)
	}

	log.Printf("%s: ready on %s (accel %.0f LSB/g, gyro %.1f LSB/(°/s))", name, spiDev, scale.AccelLSBPerG, scale.GyroLSBPerDPS)
	return &IMUService{
		name:      name,
		scale:     scale,
		start:     time.Now(),
		dev:       dev,
		accelErrs: newErrorLog(name+" accel", readErrorInterval),
		gyroErrs:  newErrorLog(name+" gyro", readErrorInterval),
	}, nil
}

func (s *IMUService) readAccel() (imu.Raw, error) {
	s.busMu.Lock()
	defer s.busMu.Unlock()

	ax, err := s.dev.GetAccelerationX()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("%s accel X: %w", s.name, err)
	}
	ay, err := s.dev.GetAccelerationY()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("%s accel Y: %w", s.name, err)
	}
	az, err := s.dev.GetAccelerationZ()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("%s accel Z: %w", s.name, err)
	}
	return imu.Raw{Source: s.name, Ax: ax, Ay: ay, Az: az}, nil
}

func (s *IMUService) readGyro() (imu.Raw, error) {
	s.busMu.Lock()
	defer s.busMu.Unlock()

	gx, err := s.dev.GetRotationX()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("%s gyro X: %w", s.name, err)
	}
	gy, err := s.dev.GetRotationY()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("%s gyro Y: %w", s.name, err)
	}
	gz, err := s.dev.GetRotationZ()
	if err != nil {
		return imu.Raw{}, fmt.Errorf("%s gyro Z: %w", s.name, err)
	}
	return imu.Raw{Source: s.name, Gx: gx, Gy: gy, Gz: gz}, nil
}

func (s *IMUService) elapsed() float64 {
	return time.Since(s.start).Seconds()
}

// Accelerometer reads the accelerometer. Bus errors are reported as no
// reading and logged at most every readErrorInterval.
func (s *IMUService) Accelerometer() (imu.Vec3, bool) {
	r, err := s.readAccel()
	if err != nil {
		s.accelErrs.fail(err)
		return imu.Vec3{}, false
	}
	s.accelErrs.ok()
	return r.Sample(s.elapsed(), s.scale).Accel, true
}

// Gyroscope reads the gyroscope.
func (s *IMUService) Gyroscope() (imu.Vec3, bool) {
	r, err := s.readGyro()
	if err != nil {
		s.gyroErrs.fail(err)
		return imu.Vec3{}, false
	}
	s.gyroErrs.ok()
	return r.Sample(s.elapsed(), s.scale).Gyro, true
}

// Magnetometer is not wired on this board.
func (s *IMUService) Magnetometer() (imu.Vec3, bool) {
	return imu.Vec3{}, false
}

// StartDeviceMotion publishes the accelerometer tilt as a quaternion at
// the given interval. Both frames yield the same output because there is
// no heading reference.
func (s *IMUService) StartDeviceMotion(interval time.Duration, frame ReferenceFrame, fn AttitudeHandler) error {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	if frame == MagneticNorthZVertical {
		log.Printf("%s: no magnetometer, %s attitude will have yaw 0", s.name, frame)
	}
	s.push.start(interval, func() {
		acc, ok := s.Accelerometer()
		if !ok {
			return
		}
		pose := orientation.TiltFromAccel(acc.X, acc.Y, acc.Z)
		fn(orientation.FromEuler(pose), s.elapsed())
	})
	return nil
}

// StopDeviceMotion stops the tilt goroutine and waits for it to exit.
func (s *IMUService) StopDeviceMotion() {
	s.push.halt()
}

// Close stops device motion. The SPI port stays owned by periph.
func (s *IMUService) Close() error {
	s.StopDeviceMotion()
	return nil
}
