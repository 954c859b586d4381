package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tilt_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

const validConfig = `# tilt-monitor configuration
MQTT_BROKER=tcp://localhost:1883
MQTT_CLIENT_ID_MONITOR=tilt-monitor-producer

TOPIC_ORIENTATION=tilt/orientation
TOPIC_FLIP=tilt/flip
TOPIC_CONTROL=tilt/control

SAMPLE_SOURCE=serial
SERIAL_PORT=/dev/ttyUSB0
SERIAL_BAUD_RATE=115200

VERTICAL_ANGLE_DEG=50.0
VERTICAL_DEBOUNCE_MS=100
HORIZONTAL_DEBOUNCE_MS=500
GRAVITY_THRESHOLD=7.0

SAMPLE_INTERVAL=50
WEB_SERVER_PORT=8080
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	require.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	require.Equal(t, "tilt-monitor-producer", cfg.MQTTClientIDMonitor)
	require.Equal(t, "tilt/orientation", cfg.TopicOrientation)
	require.Equal(t, "tilt/flip", cfg.TopicFlip)
	require.Equal(t, "tilt/control", cfg.TopicControl)
	require.Equal(t, "serial", cfg.SampleSource)
	require.Equal(t, "/dev/ttyUSB0", cfg.SerialPort)
	require.Equal(t, 115200, cfg.SerialBaudRate)
	require.Equal(t, 50.0, cfg.VerticalAngleDeg)
	require.Equal(t, 100, cfg.VerticalDebounceMS)
	require.Equal(t, 500, cfg.HorizontalDebounceMS)
	require.Equal(t, 7.0, cfg.GravityThreshold)
	require.Equal(t, 50, cfg.SampleInterval)
	require.Equal(t, 8080, cfg.WebServerPort)
}

func TestLoadUnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+"NO_SUCH_KEY=1\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown config key")
}

func TestLoadMalformedLine(t *testing.T) {
	_, err := Load(writeConfig(t, "MQTT_BROKER tcp://localhost:1883\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid config line 1")
}

func TestLoadInvalidNumeric(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+"VERTICAL_DEBOUNCE_MS=soon\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "VERTICAL_DEBOUNCE_MS")
}

func TestLoadRejectsBadSampleSource(t *testing.T) {
	_, err := Load(writeConfig(t, "SAMPLE_SOURCE=telepathy\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "SAMPLE_SOURCE")
}

func TestLoadRejectsOutOfRangeAngle(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+"VERTICAL_ANGLE_DEG=95\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "VERTICAL_ANGLE_DEG")
}

func TestValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name:    "missing broker",
			config:  "TOPIC_ORIENTATION=tilt/orientation\nTOPIC_FLIP=tilt/flip\nSAMPLE_SOURCE=mock\nSAMPLE_INTERVAL=50\n",
			wantErr: "MQTT_BROKER is required",
		},
		{
			name:    "missing sample interval",
			config:  "MQTT_BROKER=tcp://localhost:1883\nTOPIC_ORIENTATION=tilt/orientation\nTOPIC_FLIP=tilt/flip\nSAMPLE_SOURCE=mock\n",
			wantErr: "SAMPLE_INTERVAL is required",
		},
		{
			name:    "serial source without port",
			config:  "MQTT_BROKER=tcp://localhost:1883\nTOPIC_ORIENTATION=tilt/orientation\nTOPIC_FLIP=tilt/flip\nSAMPLE_SOURCE=serial\nSAMPLE_INTERVAL=50\n",
			wantErr: "SERIAL_PORT is required",
		},
		{
			name:    "mpu9250 source without SPI device",
			config:  "MQTT_BROKER=tcp://localhost:1883\nTOPIC_ORIENTATION=tilt/orientation\nTOPIC_FLIP=tilt/flip\nSAMPLE_SOURCE=mpu9250\nSAMPLE_INTERVAL=50\n",
			wantErr: "IMU_SPI_DEVICE is required",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.config))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestTuningDefaultsStayZero(t *testing.T) {
	// Tuning knobs are optional; zero values defer to the tilt package
	// defaults.
	minimal := "MQTT_BROKER=tcp://localhost:1883\nTOPIC_ORIENTATION=tilt/orientation\nTOPIC_FLIP=tilt/flip\nSAMPLE_SOURCE=mock\nSAMPLE_INTERVAL=50\n"
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)
	require.Zero(t, cfg.VerticalAngleDeg)
	require.Zero(t, cfg.VerticalDebounceMS)
	require.Zero(t, cfg.HorizontalDebounceMS)
	require.Zero(t, cfg.GravityThreshold)
}
