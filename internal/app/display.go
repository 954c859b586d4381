package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/tilt_monitor/internal/config"
	"github.com/relabs-tech/tilt_monitor/internal/event"
)

// displayData holds the latest event of each kind for rendering.
type displayData struct {
	mu sync.RWMutex

	orientation     string
	haveOrientation bool

	faceDown bool
	haveFlip bool
}

// RunDisplay renders the current orientation and flip state to an SSD1306
// OLED, fed from the monitor's MQTT topics.
func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: SSD1306 initialized")

	data := &displayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	orientToken := client.Subscribe(cfg.TopicOrientation, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var ev event.OrientationEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("display: orientation unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.orientation = ev.Orientation
		data.haveOrientation = true
		data.mu.Unlock()
	})
	orientToken.Wait()
	if orientToken.Error() != nil {
		return orientToken.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicOrientation)

	flipToken := client.Subscribe(cfg.TopicFlip, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var ev event.FlipEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("display: flip unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.faceDown = ev.FaceDown
		data.haveFlip = true
		data.mu.Unlock()
	})
	flipToken.Wait()
	if flipToken.Error() != nil {
		return flipToken.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicFlip)

	interval := cfg.DisplayUpdateInterval
	if interval == 0 {
		interval = 500
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		snapshot := displayData{
			orientation:     data.orientation,
			haveOrientation: data.haveOrientation,
			faceDown:        data.faceDown,
			haveFlip:        data.haveFlip,
		}
		data.mu.RUnlock()

		if err := updateDisplay(dev, &snapshot); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func updateDisplay(dev *ssd1306.Dev, data *displayData) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	orientation := "waiting..."
	if data.haveOrientation {
		orientation = data.orientation
	}
	flip := "waiting..."
	if data.haveFlip {
		flip = "FACE-UP"
		if data.faceDown {
			flip = "FACE-DOWN"
		}
	}

	drawer.Dot = fixed.P(0, 26)
	drawer.DrawBytes([]byte(fmt.Sprintf("ORNT: %s", orientation)))

	drawer.Dot = fixed.P(0, 39)
	drawer.DrawBytes([]byte(fmt.Sprintf("FLIP: %s", flip)))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
