package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Motion services selectable with MOTION_SERVICE.
const (
	ServiceSim  = "sim"
	ServiceMQTT = "mqtt"
	ServiceIMU  = "imu"
	ServiceNMEA = "nmea"
)

// Config holds all application configuration values.
type Config struct {
	// Motion service and session
	MotionService  string // sim, mqtt, imu or nmea
	AttitudeSource string // device_motion_6d, device_motion_9d, game_rotation, attitude
	AutoStart      bool

	// Timing
	RawStepMS          int // raw sampling period and fusion step, milliseconds
	PublishIntervalMS  int // snapshot period, milliseconds
	MotionIntervalMS   int // update interval requested from the motion service, milliseconds
	HistorySeconds     int
	RateWindow         int // timestamps per rate estimate
	ConsoleLogInterval int // milliseconds, 0 disables the console summary

	// MQTT
	MQTTBroker            string
	MQTTClientIDViewer    string
	MQTTClientIDPublisher string
	MQTTClientIDProducer  string
	MQTTClientIDConsole   string
	MQTTAccelInG          bool // inbound raw accel is in g

	// Topics
	TopicAttitudeIn   string
	TopicIMUIn        string
	TopicPosePlatform string
	TopicPoseFused    string
	TopicRates        string

	// IMU Hardware
	IMUSPIDevice     string
	IMUCSPin         string
	IMUAccelLSBPerG  float64
	IMUGyroLSBPerDPS float64

	// NMEA AHRS
	NMEASerialPort string
	NMEABaudRate   int

	// Web Server
	WebServerPort int

	// Display
	DisplayEnabled        bool   // mirror the panel on an SSD1306 OLED
	DisplayI2CBus         string // empty selects the first bus
	DisplayUpdateInterval int    // milliseconds
}

// Package-level singleton, set once by InitGlobal and read through Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for keys a file leaves out.
func Default() *Config {
	return &Config{
		MotionService:  ServiceSim,
		AttitudeSource: "device_motion_9d",

		RawStepMS:          10,
		PublishIntervalMS:  33,
		MotionIntervalMS:   5,
		HistorySeconds:     10,
		RateWindow:         50,
		ConsoleLogInterval: 1000,

		MQTTBroker:            "tcp://localhost:1883",
		MQTTClientIDViewer:    "inertial-viewer",
		MQTTClientIDPublisher: "inertial-viewer-pub",
		MQTTClientIDProducer:  "inertial-viewer-producer",
		MQTTClientIDConsole:   "inertial-viewer-console",

		TopicAttitudeIn:   "inertial/attitude",
		TopicIMUIn:        "inertial/imu",
		TopicPosePlatform: "viewer/pose/platform",
		TopicPoseFused:    "viewer/pose/fused",
		TopicRates:        "viewer/rates",

		IMUSPIDevice:     "/dev/spidev0.0",
		IMUCSPin:         "GPIO8",
		IMUAccelLSBPerG:  16384,
		IMUGyroLSBPerDPS: 131,

		NMEASerialPort: "/dev/ttyUSB0",
		NMEABaudRate:   115200,

		WebServerPort: 8080,

		DisplayUpdateInterval: 200,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default. Blank lines and lines
// starting with # are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func atoi(key, value string, min int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < min {
		return 0, fmt.Errorf("%s must be >= %d, got %d", key, min, v)
	}
	return v, nil
}

func atof(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %g", key, v)
	}
	return v, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error

	switch key {
	// Motion service and session
	case "MOTION_SERVICE":
		c.MotionService = strings.ToLower(value)
	case "ATTITUDE_SOURCE":
		c.AttitudeSource = strings.ToLower(value)
	case "AUTO_START":
		c.AutoStart, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid AUTO_START %q: %w", value, err)
		}

	// Timing
	case "RAW_STEP_MS":
		c.RawStepMS, err = atoi(key, value, 1)
	case "PUBLISH_INTERVAL_MS":
		c.PublishIntervalMS, err = atoi(key, value, 1)
	case "MOTION_INTERVAL_MS":
		c.MotionIntervalMS, err = atoi(key, value, 1)
	case "HISTORY_SECONDS":
		c.HistorySeconds, err = atoi(key, value, 1)
	case "RATE_WINDOW":
		c.RateWindow, err = atoi(key, value, 2)
	case "CONSOLE_LOG_INTERVAL":
		c.ConsoleLogInterval, err = atoi(key, value, 0)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_VIEWER":
		c.MQTTClientIDViewer = value
	case "MQTT_CLIENT_ID_PUBLISHER":
		c.MQTTClientIDPublisher = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_ACCEL_IN_G":
		c.MQTTAccelInG, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid MQTT_ACCEL_IN_G %q: %w", value, err)
		}

	// Topics
	case "TOPIC_ATTITUDE_IN":
		c.TopicAttitudeIn = value
	case "TOPIC_IMU_IN":
		c.TopicIMUIn = value
	case "TOPIC_POSE_PLATFORM":
		c.TopicPosePlatform = value
	case "TOPIC_POSE_FUSED":
		c.TopicPoseFused = value
	case "TOPIC_RATES":
		c.TopicRates = value

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_LSB_PER_G":
		c.IMUAccelLSBPerG, err = atof(key, value)
	case "IMU_GYRO_LSB_PER_DPS":
		c.IMUGyroLSBPerDPS, err = atof(key, value)

	// NMEA AHRS
	case "NMEA_SERIAL_PORT":
		c.NMEASerialPort = value
	case "NMEA_BAUD_RATE":
		c.NMEABaudRate, err = atoi(key, value, 1)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = atoi(key, value, 0)
		if err == nil && c.WebServerPort > 65535 {
			err = fmt.Errorf("WEB_SERVER_PORT must be <= 65535, got %d", c.WebServerPort)
		}

	// Display
	case "DISPLAY_ENABLED":
		c.DisplayEnabled, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_ENABLED %q: %w", value, err)
		}
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = atoi(key, value, 1)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that the fields the selected motion service needs are set.
func (c *Config) validate() error {
	switch c.MotionService {
	case ServiceSim:
	case ServiceMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required for MOTION_SERVICE=mqtt")
		}
		if c.TopicAttitudeIn == "" {
			return fmt.Errorf("TOPIC_ATTITUDE_IN is required for MOTION_SERVICE=mqtt")
		}
	case ServiceIMU:
		if c.IMUSPIDevice == "" {
			return fmt.Errorf("IMU_SPI_DEVICE is required for MOTION_SERVICE=imu")
		}
	case ServiceNMEA:
		if c.NMEASerialPort == "" {
			return fmt.Errorf("NMEA_SERIAL_PORT is required for MOTION_SERVICE=nmea")
		}
	default:
		return fmt.Errorf("MOTION_SERVICE must be one of sim, mqtt, imu, nmea, got %q", c.MotionService)
	}
	if c.AttitudeSource == "" {
		return fmt.Errorf("ATTITUDE_SOURCE is required")
	}
	return nil
}

// RawStep returns RAW_STEP_MS as a duration.
func (c *Config) RawStep() time.Duration {
	return time.Duration(c.RawStepMS) * time.Millisecond
}

// PublishInterval returns PUBLISH_INTERVAL_MS as a duration.
func (c *Config) PublishInterval() time.Duration {
	return time.Duration(c.PublishIntervalMS) * time.Millisecond
}

// MotionInterval returns MOTION_INTERVAL_MS as a duration.
func (c *Config) MotionInterval() time.Duration {
	return time.Duration(c.MotionIntervalMS) * time.Millisecond
}

// History returns HISTORY_SECONDS as a duration.
func (c *Config) History() time.Duration {
	return time.Duration(c.HistorySeconds) * time.Second
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads; later calls return nil.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
