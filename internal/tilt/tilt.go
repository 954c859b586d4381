// Package tilt classifies a stream of raw 3-axis accelerometer samples into
// two debounced signals: a coarse vertical/horizontal orientation and a
// face-up/face-down flip state. Jitter and transient noise are suppressed so
// the listener only sees settled transitions.
package tilt

import (
	"log"
	"math"
	"sync"
	"time"
)

// Orientation is the coarse device orientation reported to the listener.
type Orientation int

const (
	OrientationUnknown Orientation = iota
	OrientationVertical
	OrientationHorizontal
)

func (o Orientation) String() string {
	switch o {
	case OrientationVertical:
		return "vertical"
	case OrientationHorizontal:
		return "horizontal"
	default:
		return "unknown"
	}
}

// Listener receives the two debounced output signals. Both callbacks run on
// a timer goroutine, never from within OnSample, and at most once per
// settled transition.
type Listener interface {
	OnOrientationChanged(orientation Orientation)
	OnDeviceFlipped(faceDown bool)
}

const (
	// DefaultVerticalAngle is the tilt angle in degrees above which a
	// sample is classified as vertical. Exactly at the angle counts as
	// horizontal.
	DefaultVerticalAngle = 50.0

	// DefaultVerticalDebounce and DefaultHorizontalDebounce are the quiet
	// periods a candidate orientation must survive before it is reported.
	// The asymmetry biases against falsely leaving horizontal from a
	// momentary tilt, e.g. while the device is being picked up.
	DefaultVerticalDebounce   = 100 * time.Millisecond
	DefaultHorizontalDebounce = 500 * time.Millisecond

	// DefaultGravityThreshold is the Z-axis magnitude that counts as
	// face-up (positive) or face-down (negative) evidence.
	DefaultGravityThreshold = 7.0
)

const (
	flipSamples    = 3
	minAcceptCount = flipSamples - 1
)

// Config tunes a Monitor. Zero values fall back to the defaults above.
type Config struct {
	VerticalAngle      float64
	VerticalDebounce   time.Duration
	HorizontalDebounce time.Duration
	GravityThreshold   float64

	Listener Listener
}

// Monitor is the classifier core. Samples are pushed in with OnSample while
// enabled; settled orientation and flip transitions come back through the
// Listener. All methods are safe for concurrent use.
type Monitor struct {
	mu sync.Mutex

	verticalAngle      float64
	verticalDebounce   time.Duration
	horizontalDebounce time.Duration
	gravityThreshold   float64

	listener Listener
	enabled  bool

	// orientation is the value most recently reported to the listener;
	// pending is the candidate awaiting its debounce window. pending only
	// differs from orientation while an orientation timer is armed.
	orientation    Orientation
	pending        Orientation
	orientationGen uint64

	// Flip detection: one boolean evidence vote per sample in a fixed
	// circular buffer, committed by majority.
	wasFaceUp   bool
	samples     [flipSamples]bool
	sampleIndex int
	flipGen     uint64

	timers *debouncer
}

// New builds a disabled Monitor; call Enable(true) to start accepting
// samples.
func New(cfg Config) *Monitor {
	if cfg.VerticalAngle == 0 {
		cfg.VerticalAngle = DefaultVerticalAngle
	}
	if cfg.VerticalDebounce == 0 {
		cfg.VerticalDebounce = DefaultVerticalDebounce
	}
	if cfg.HorizontalDebounce == 0 {
		cfg.HorizontalDebounce = DefaultHorizontalDebounce
	}
	if cfg.GravityThreshold == 0 {
		cfg.GravityThreshold = DefaultGravityThreshold
	}
	return &Monitor{
		verticalAngle:      cfg.VerticalAngle,
		verticalDebounce:   cfg.VerticalDebounce,
		horizontalDebounce: cfg.HorizontalDebounce,
		gravityThreshold:   cfg.GravityThreshold,
		listener:           cfg.Listener,
		timers:             newDebouncer(),
	}
}

// SetListener replaces the listener receiving settled transitions. A nil
// listener silently drops notifications.
func (m *Monitor) SetListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

// Enable starts or stops sample processing. Enabling resets all classifier
// state to a cold start, even when already enabled; disabling cancels any
// pending notifications.
func (m *Monitor) Enable(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log.Printf("tilt: enable(%v)", on)

	// Invalidate any armed timers either way: enabling is a full state
	// reset, disabling must not deliver stale notifications.
	m.orientationGen++
	m.flipGen++
	m.timers.cancel(tagOrientation)
	m.timers.cancel(tagFaceUp)

	if !on {
		m.enabled = false
		return
	}
	m.orientation = OrientationUnknown
	m.pending = OrientationUnknown
	m.wasFaceUp = false
	m.resetFlipSamples()
	m.enabled = true
}

// OnSample feeds one raw acceleration vector into the classifier. Samples
// with any exact-zero component are discarded: the sensor reports zeroes
// while powering up, and classifying them would produce false horizontal
// readings.
func (m *Monitor) OnSample(x, y, z float64) {
	if x == 0.0 || y == 0.0 || z == 0.0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled {
		return
	}

	// Magnitude of the acceleration vector projected onto the XY plane,
	// then the angle from vertical in degrees.
	xy := math.Hypot(x, y)
	angle := math.Atan2(xy, z) * 180.0 / math.Pi
	m.setOrientation(m.orientationForAngle(angle))

	wasFaceUp := m.wasFaceUp
	if !wasFaceUp {
		// Check if it is face up enough.
		m.samples[m.sampleIndex] = z > m.gravityThreshold
	} else {
		// Check if it is face down enough.
		m.samples[m.sampleIndex] = z < -m.gravityThreshold
	}
	nowFaceUp := wasFaceUp
	if m.filterFlipSamples() {
		nowFaceUp = !wasFaceUp
	}
	m.sampleIndex = (m.sampleIndex + 1) % flipSamples
	m.setIsFaceUp(nowFaceUp)
}

// orientationForAngle maps an angle from vertical to a candidate
// orientation. The comparison is strict, so a tie at the threshold resolves
// to horizontal.
func (m *Monitor) orientationForAngle(angle float64) Orientation {
	if angle > m.verticalAngle {
		return OrientationVertical
	}
	return OrientationHorizontal
}

// setOrientation debounces a candidate orientation. Caller holds m.mu.
func (m *Monitor) setOrientation(candidate Orientation) {
	if m.pending == candidate {
		// Nothing new is happening.
		return
	}

	// Either a new timer starts below or the change reverted before its
	// window elapsed; the old timer is stale in both cases.
	m.orientationGen++
	m.timers.cancel(tagOrientation)

	if m.orientation == candidate {
		// The candidate matches the last reported value, so there is
		// nothing to schedule.
		m.pending = OrientationUnknown
		return
	}

	m.pending = candidate
	delay := m.horizontalDebounce
	if candidate == OrientationVertical {
		delay = m.verticalDebounce
	}
	gen := m.orientationGen
	m.timers.schedule(tagOrientation, delay, func() { m.commitOrientation(gen) })
}

// commitOrientation runs on the timer goroutine once a candidate survives
// its debounce window.
func (m *Monitor) commitOrientation(gen uint64) {
	m.mu.Lock()
	if gen != m.orientationGen || !m.enabled {
		m.mu.Unlock()
		return
	}
	m.orientation = m.pending
	orientation := m.orientation
	listener := m.listener
	m.mu.Unlock()

	log.Printf("tilt: orientation settled: %s", orientation)
	if listener != nil {
		listener.OnOrientationChanged(orientation)
	}
}

// setIsFaceUp commits a majority-voted flip state. Caller holds m.mu.
// The 3-sample majority filter is the only debounce on this path, so the
// notification is dispatched without additional delay.
func (m *Monitor) setIsFaceUp(faceUp bool) {
	if m.wasFaceUp == faceUp {
		return
	}

	m.flipGen++
	m.timers.cancel(tagFaceUp)
	m.wasFaceUp = faceUp
	// Start the next detection cycle from clean evidence.
	m.resetFlipSamples()

	gen := m.flipGen
	faceDown := !faceUp
	m.timers.schedule(tagFaceUp, 0, func() { m.notifyFlipped(gen, faceDown) })
}

// notifyFlipped runs on the timer goroutine. The listener contract signals
// "is face down", the inverse of the internal face-up state.
func (m *Monitor) notifyFlipped(gen uint64, faceDown bool) {
	m.mu.Lock()
	if gen != m.flipGen || !m.enabled {
		m.mu.Unlock()
		return
	}
	listener := m.listener
	m.mu.Unlock()

	log.Printf("tilt: device flipped: faceDown=%v", faceDown)
	if listener != nil {
		listener.OnDeviceFlipped(faceDown)
	}
}

func (m *Monitor) resetFlipSamples() {
	for i := range m.samples {
		m.samples[i] = false
	}
}

func (m *Monitor) filterFlipSamples() bool {
	trues := 0
	for _, s := range m.samples {
		if s {
			trues++
		}
	}
	return trues >= minAcceptCount
}
