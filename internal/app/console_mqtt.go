package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/tilt_monitor/internal/config"
	"github.com/relabs-tech/tilt_monitor/internal/event"
)

// RunConsole subscribes to the monitor's event topics and prints each
// settled transition.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	orientToken := client.Subscribe(cfg.TopicOrientation, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var ev event.OrientationEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("console: orientation unmarshal error: %v", err)
			return
		}

		fmt.Printf("[ORNT] %-10s  at %s\n", ev.Orientation, ev.Time)
	})
	orientToken.Wait()
	if orientToken.Error() != nil {
		return orientToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicOrientation)

	flipToken := client.Subscribe(cfg.TopicFlip, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var ev event.FlipEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("console: flip unmarshal error: %v", err)
			return
		}

		state := "FACE-UP"
		if ev.FaceDown {
			state = "FACE-DOWN"
		}
		fmt.Printf("[FLIP] %-10s  at %s\n", state, ev.Time)
	})
	flipToken.Wait()
	if flipToken.Error() != nil {
		return flipToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicFlip)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
