package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/tilt_monitor/internal/accel"
	"github.com/relabs-tech/tilt_monitor/internal/config"
	"github.com/relabs-tech/tilt_monitor/internal/event"
	"github.com/relabs-tech/tilt_monitor/internal/tilt"
)

// mqttListener publishes each settled classifier transition as JSON.
type mqttListener struct {
	client           mqtt.Client
	topicOrientation string
	topicFlip        string
}

func (l *mqttListener) OnOrientationChanged(o tilt.Orientation) {
	ev := event.OrientationEvent{
		Orientation: o.String(),
		Time:        time.Now().Format(time.RFC3339),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("monitor: orientation marshal error: %v", err)
		return
	}
	if token := l.client.Publish(l.topicOrientation, 0, true, payload); token.Wait() && token.Error() != nil {
		log.Printf("monitor: MQTT publish error (orientation): %v", token.Error())
	}
}

func (l *mqttListener) OnDeviceFlipped(faceDown bool) {
	ev := event.FlipEvent{
		FaceDown: faceDown,
		Time:     time.Now().Format(time.RFC3339),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("monitor: flip marshal error: %v", err)
		return
	}
	if token := l.client.Publish(l.topicFlip, 0, true, payload); token.Wait() && token.Error() != nil {
		log.Printf("monitor: MQTT publish error (flip): %v", token.Error())
	}
}

// newSampleSource builds the accelerometer source selected by SAMPLE_SOURCE.
func newSampleSource(cfg *config.Config) (accel.Source, error) {
	switch cfg.SampleSource {
	case "mock":
		log.Println("monitor: using mock accelerometer source")
		return accel.NewMockSource(), nil
	case "mpu9250":
		return accel.NewMPU9250Source(cfg.IMUSPIDevice, cfg.IMUCSPin, cfg.IMUAccelRange)
	case "serial":
		return accel.NewSerialSource(cfg.SerialPort, uint(cfg.SerialBaudRate))
	default:
		return nil, fmt.Errorf("unknown sample source %q", cfg.SampleSource)
	}
}

// RunMonitor is the producer daemon: it pumps accelerometer samples through
// the classifier and publishes settled orientation/flip events to MQTT. A
// control topic accepts "enable" and "disable" payloads to drive the
// classifier lifecycle remotely.
func RunMonitor() error {
	log.Println("starting tilt-monitor producer")

	cfg := config.Get()

	src, err := newSampleSource(cfg)
	if err != nil {
		return err
	}
	if closer, ok := src.(io.Closer); ok {
		defer closer.Close()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDMonitor)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect: %w", token.Error())
	}
	defer client.Disconnect(250)
	log.Printf("monitor: connected to MQTT broker at %s", cfg.MQTTBroker)

	monitor := tilt.New(tilt.Config{
		VerticalAngle:      cfg.VerticalAngleDeg,
		VerticalDebounce:   time.Duration(cfg.VerticalDebounceMS) * time.Millisecond,
		HorizontalDebounce: time.Duration(cfg.HorizontalDebounceMS) * time.Millisecond,
		GravityThreshold:   cfg.GravityThreshold,
		Listener: &mqttListener{
			client:           client,
			topicOrientation: cfg.TopicOrientation,
			topicFlip:        cfg.TopicFlip,
		},
	})
	monitor.Enable(true)
	defer monitor.Enable(false)

	if cfg.TopicControl != "" {
		ctrl := client.Subscribe(cfg.TopicControl, 0, func(_ mqtt.Client, msg mqtt.Message) {
			switch cmd := strings.TrimSpace(string(msg.Payload())); cmd {
			case "enable":
				monitor.Enable(true)
			case "disable":
				monitor.Enable(false)
			default:
				log.Printf("monitor: unknown control command %q", cmd)
			}
		})
		ctrl.Wait()
		if ctrl.Error() != nil {
			return fmt.Errorf("MQTT subscribe (control): %w", ctrl.Error())
		}
		log.Printf("monitor: subscribed to control topic %s", cfg.TopicControl)
	}

	ticker := time.NewTicker(time.Duration(cfg.SampleInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("monitor: starting sample loop")

	for range ticker.C {
		sample, err := src.Next()
		if err != nil {
			log.Printf("monitor: sample read error: %v", err)
			continue
		}
		monitor.OnSample(sample.X, sample.Y, sample.Z)
	}
	return nil
}
