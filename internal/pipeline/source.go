// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pipeline

import (
	"fmt"
	"strings"

	"github.com/relabs-tech/inertial_viewer/internal/motion"
)

// Source selects which platform attitude feeds stream A. It is fixed for
// the lifetime of a session.
type Source int

const (
	DeviceMotion6D Source = iota // gyro+accel, arbitrary yaw
	DeviceMotion9D               // gyro+accel+mag, north-referenced
	GameRotation                 // gyro+accel, arbitrary yaw
	DeviceAttitude               // gyro+accel+mag, north-referenced
)

var sourceNames = map[Source]string{
	DeviceMotion6D: "device_motion_6d",
	DeviceMotion9D: "device_motion_9d",
	GameRotation:   "game_rotation",
	DeviceAttitude: "attitude",
}

// Sources lists every source in display order.
func Sources() []Source {
	return []Source{DeviceMotion6D, DeviceMotion9D, GameRotation, DeviceAttitude}
}

func (s Source) String() string {
	if n, ok := sourceNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// Frame returns the reference frame the platform is asked for.
func (s Source) Frame() motion.ReferenceFrame {
	switch s {
	case DeviceMotion9D, DeviceAttitude:
		return motion.MagneticNorthZVertical
	default:
		return motion.ArbitraryZVertical
	}
}

// ParseSource accepts the names returned by String, case-insensitively.
func ParseSource(name string) (Source, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range sourceNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown attitude source %q", name)
}
