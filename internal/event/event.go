package event

// OrientationEvent is published whenever the debounced orientation settles
// on a new value. Suitable for JSON and MQTT.
type OrientationEvent struct {
	Orientation string `json:"orientation"` // "unknown", "vertical" or "horizontal"
	Time        string `json:"time"`        // RFC3339
}

// FlipEvent is published when the majority-filtered flip state commits.
type FlipEvent struct {
	FaceDown bool   `json:"face_down"`
	Time     string `json:"time"` // RFC3339
}
