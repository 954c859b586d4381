package accel

// Sample is one raw accelerometer reading, one value per axis in m/s².
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Source is anything that can provide accelerometer samples over time:
// a real sensor, a serial feed, or a mock.
type Source interface {
	Next() (Sample, error)
}
