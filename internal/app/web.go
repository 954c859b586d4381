package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/tilt_monitor/internal/config"
	"github.com/relabs-tech/tilt_monitor/internal/event"
)

// deviceState is the latest settled value of each output signal, served on
// /api/state.
type deviceState struct {
	Orientation     string `json:"orientation"`
	FaceDown        bool   `json:"face_down"`
	HaveOrientation bool   `json:"-"`
	HaveFlip        bool   `json:"-"`
}

// wsHub pushes every event to all connected websocket clients.
type wsHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newWSHub() *wsHub {
	return &wsHub{conns: make(map[*websocket.Conn]struct{})}
}

func (h *wsHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *wsHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

// broadcast writes payload to every client, dropping clients whose
// connection has gone away.
func (h *wsHub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("web: websocket write error, dropping client: %v", err)
			delete(h.conns, conn)
			conn.Close()
		}
	}
}

var upgrader = websocket.Upgrader{
	// The dashboard is served on the device's LAN address; cross-origin
	// requests from the page itself carry that origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// RunWeb subscribes to the monitor's event topics and serves the latest
// state over HTTP plus a live event feed over websockets.
func RunWeb() error {
	cfg := config.Get()

	var (
		mu    sync.RWMutex
		state deviceState
	)
	hub := newWSHub()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	orientToken := client.Subscribe(cfg.TopicOrientation, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var ev event.OrientationEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("web: orientation unmarshal error: %v", err)
			return
		}
		mu.Lock()
		state.Orientation = ev.Orientation
		state.HaveOrientation = true
		mu.Unlock()
		hub.broadcast(msg.Payload())
	})
	orientToken.Wait()
	if orientToken.Error() != nil {
		return orientToken.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicOrientation)

	flipToken := client.Subscribe(cfg.TopicFlip, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var ev event.FlipEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("web: flip unmarshal error: %v", err)
			return
		}
		mu.Lock()
		state.FaceDown = ev.FaceDown
		state.HaveFlip = true
		mu.Unlock()
		hub.broadcast(msg.Payload())
	})
	flipToken.Wait()
	if flipToken.Error() != nil {
		return flipToken.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicFlip)

	// JSON API endpoint: latest settled state
	http.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !state.HaveOrientation && !state.HaveFlip {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(state); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// Live event feed
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		hub.add(conn)
		log.Printf("web: websocket client connected from %s", r.RemoteAddr)

		// Drain the connection so close frames are processed; the feed
		// is one-way.
		go func() {
			defer hub.remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	// Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
