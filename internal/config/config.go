package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDMonitor string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string

	// Topics
	TopicOrientation string
	TopicFlip        string
	TopicControl     string

	// Sample source: "mock", "mpu9250" or "serial"
	SampleSource string

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte

	// Serial source
	SerialPort     string
	SerialBaudRate int

	// Classifier tuning. Zero values take the tilt package defaults.
	VerticalAngleDeg     float64
	VerticalDebounceMS   int
	HorizontalDebounceMS int
	GravityThreshold     float64

	// Timing
	SampleInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string // empty = first available bus
	DisplayUpdateInterval int    // milliseconds
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot access it directly.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access.
//
// External code must use InitGlobal() to set and Get() to read.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := &Config{}
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
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

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_MONITOR":
		c.MQTTClientIDMonitor = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_ORIENTATION":
		c.TopicOrientation = value
	case "TOPIC_FLIP":
		c.TopicFlip = value
	case "TOPIC_CONTROL":
		c.TopicControl = value

	// Sample source
	case "SAMPLE_SOURCE":
		if value != "mock" && value != "mpu9250" && value != "serial" {
			return fmt.Errorf("SAMPLE_SOURCE must be mock, mpu9250 or serial, got %q", value)
		}
		c.SampleSource = value

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)

	// Serial source
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = rate

	// Classifier tuning
	case "VERTICAL_ANGLE_DEG":
		angle, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid VERTICAL_ANGLE_DEG %q: %w", value, err)
		}
		if angle <= 0 || angle >= 90 {
			return fmt.Errorf("VERTICAL_ANGLE_DEG must be between 0 and 90 exclusive, got %g", angle)
		}
		c.VerticalAngleDeg = angle
	case "VERTICAL_DEBOUNCE_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid VERTICAL_DEBOUNCE_MS %q: %w", value, err)
		}
		if ms < 0 {
			return fmt.Errorf("VERTICAL_DEBOUNCE_MS must not be negative, got %d", ms)
		}
		c.VerticalDebounceMS = ms
	case "HORIZONTAL_DEBOUNCE_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid HORIZONTAL_DEBOUNCE_MS %q: %w", value, err)
		}
		if ms < 0 {
			return fmt.Errorf("HORIZONTAL_DEBOUNCE_MS must not be negative, got %d", ms)
		}
		c.HorizontalDebounceMS = ms
	case "GRAVITY_THRESHOLD":
		threshold, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid GRAVITY_THRESHOLD %q: %w", value, err)
		}
		if threshold <= 0 {
			return fmt.Errorf("GRAVITY_THRESHOLD must be positive, got %g", threshold)
		}
		c.GravityThreshold = threshold

	// Timing
	case "SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.SampleInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicOrientation == "" {
		return fmt.Errorf("TOPIC_ORIENTATION is required")
	}
	if c.TopicFlip == "" {
		return fmt.Errorf("TOPIC_FLIP is required")
	}
	if c.SampleSource == "" {
		return fmt.Errorf("SAMPLE_SOURCE is required")
	}
	if c.SampleInterval == 0 {
		return fmt.Errorf("SAMPLE_INTERVAL is required")
	}
	switch c.SampleSource {
	case "mpu9250":
		if c.IMUSPIDevice == "" {
			return fmt.Errorf("IMU_SPI_DEVICE is required when SAMPLE_SOURCE=mpu9250")
		}
		if c.IMUCSPin == "" {
			return fmt.Errorf("IMU_CS_PIN is required when SAMPLE_SOURCE=mpu9250")
		}
	case "serial":
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required when SAMPLE_SOURCE=serial")
		}
		if c.SerialBaudRate == 0 {
			return fmt.Errorf("SERIAL_BAUD_RATE is required when SAMPLE_SOURCE=serial")
		}
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
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
