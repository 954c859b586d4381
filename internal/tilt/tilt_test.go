package tilt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Test debounce windows are shortened so the suite stays fast; the ratios
// mirror the production defaults (vertical settles faster than horizontal).
const (
	testVerticalDebounce   = 60 * time.Millisecond
	testHorizontalDebounce = 180 * time.Millisecond
)

type recordedListener struct {
	orientations chan Orientation
	flips        chan bool
}

func newRecordedListener() *recordedListener {
	return &recordedListener{
		orientations: make(chan Orientation, 16),
		flips:        make(chan bool, 16),
	}
}

func (l *recordedListener) OnOrientationChanged(o Orientation) { l.orientations <- o }
func (l *recordedListener) OnDeviceFlipped(faceDown bool)      { l.flips <- faceDown }

func newTestMonitor(t *testing.T) (*Monitor, *recordedListener) {
	t.Helper()
	listener := newRecordedListener()
	m := New(Config{
		VerticalDebounce:   testVerticalDebounce,
		HorizontalDebounce: testHorizontalDebounce,
		Listener:           listener,
	})
	m.Enable(true)
	t.Cleanup(func() { m.Enable(false) })
	return m, listener
}

func awaitOrientation(t *testing.T, l *recordedListener) Orientation {
	t.Helper()
	select {
	case o := <-l.orientations:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for orientation change")
		return OrientationUnknown
	}
}

func awaitFlip(t *testing.T, l *recordedListener) bool {
	t.Helper()
	select {
	case faceDown := <-l.flips:
		return faceDown
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flip")
		return false
	}
}

func requireNoOrientation(t *testing.T, l *recordedListener, d time.Duration) {
	t.Helper()
	select {
	case o := <-l.orientations:
		t.Fatalf("unexpected orientation change: %s", o)
	case <-time.After(d):
	}
}

func requireNoFlip(t *testing.T, l *recordedListener, d time.Duration) {
	t.Helper()
	select {
	case faceDown := <-l.flips:
		t.Fatalf("unexpected flip: faceDown=%v", faceDown)
	case <-time.After(d):
	}
}

// Canonical samples: a steep tilt (about 80 degrees from vertical) and a
// nearly flat pose (about 4.5 degrees), both with Z below the gravity
// threshold so they do not disturb flip evidence.
func verticalSample(m *Monitor)   { m.OnSample(4, 4, 1) }
func horizontalSample(m *Monitor) { m.OnSample(0.5, 0.5, 6.9) }

func TestZeroComponentSamplesRejected(t *testing.T) {
	m, listener := newTestMonitor(t)

	m.OnSample(0, 4, 8)
	m.OnSample(4, 0, 8)
	m.OnSample(4, 4, 0)

	requireNoOrientation(t, listener, 250*time.Millisecond)
	requireNoFlip(t, listener, 50*time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	require.Equal(t, OrientationUnknown, m.pending)
	require.Equal(t, 0, m.sampleIndex)
	require.Equal(t, [flipSamples]bool{}, m.samples)
}

func TestVerticalAngleBoundary(t *testing.T) {
	m := New(Config{})

	// Strict comparison: a tie at the threshold stays horizontal.
	require.Equal(t, OrientationHorizontal, m.orientationForAngle(DefaultVerticalAngle))
	require.Equal(t, OrientationVertical, m.orientationForAngle(DefaultVerticalAngle+0.01))
	require.Equal(t, OrientationHorizontal, m.orientationForAngle(4.5))
	require.Equal(t, OrientationVertical, m.orientationForAngle(80))
}

func TestOrientationDebounceDelaysVertical(t *testing.T) {
	m, listener := newTestMonitor(t)

	start := time.Now()
	verticalSample(m)

	require.Equal(t, OrientationVertical, awaitOrientation(t, listener))
	require.GreaterOrEqual(t, time.Since(start), testVerticalDebounce)
}

func TestOrientationDebounceDelaysHorizontal(t *testing.T) {
	m, listener := newTestMonitor(t)

	start := time.Now()
	horizontalSample(m)

	require.Equal(t, OrientationHorizontal, awaitOrientation(t, listener))
	require.GreaterOrEqual(t, time.Since(start), testHorizontalDebounce)
}

func TestSustainedVerticalFiresExactlyOnce(t *testing.T) {
	m, listener := newTestMonitor(t)

	// Sustained candidate samples across several debounce windows must
	// coalesce into a single settled report.
	for i := 0; i < 10; i++ {
		verticalSample(m)
		time.Sleep(20 * time.Millisecond)
	}

	require.Equal(t, OrientationVertical, awaitOrientation(t, listener))
	requireNoOrientation(t, listener, 2*testVerticalDebounce)
}

func TestRevertBeforeDebounceElapsesIsSilent(t *testing.T) {
	m, listener := newTestMonitor(t)

	verticalSample(m)
	require.Equal(t, OrientationVertical, awaitOrientation(t, listener))

	// Horizontal candidate arms its window, then the device tilts back
	// before it elapses. No report for either direction.
	horizontalSample(m)
	time.Sleep(testHorizontalDebounce / 4)
	verticalSample(m)

	requireNoOrientation(t, listener, 2*testHorizontalDebounce)

	m.mu.Lock()
	defer m.mu.Unlock()
	require.Equal(t, OrientationVertical, m.orientation)
	require.Equal(t, OrientationUnknown, m.pending)
}

func TestFlipRequiresMajority(t *testing.T) {
	m, listener := newTestMonitor(t)

	// Evidence [true, false, false]: one vote is not enough.
	m.OnSample(1, 1, 8)
	m.OnSample(1, 1, -8)
	m.OnSample(1, 1, -8)
	requireNoFlip(t, listener, 200*time.Millisecond)
}

func TestFlipTwoOfThreeCommits(t *testing.T) {
	m, listener := newTestMonitor(t)

	// Evidence [true, false, true] flips despite the dissenting sample.
	// The listener signals face-down, the inverse of face-up.
	m.OnSample(1, 1, 8)
	m.OnSample(1, 1, -8)
	m.OnSample(1, 1, 8)
	require.False(t, awaitFlip(t, listener))
	requireNoFlip(t, listener, 100*time.Millisecond)
}

func TestFlipEvidenceResetsAfterCommit(t *testing.T) {
	m, listener := newTestMonitor(t)

	m.OnSample(1, 1, 8)
	m.OnSample(1, 1, 8)
	require.False(t, awaitFlip(t, listener))

	// The pre-flip evidence must not count toward the next cycle: a
	// single face-down vote is a minority against the cleared buffer.
	m.OnSample(1, 1, -8)
	requireNoFlip(t, listener, 150*time.Millisecond)

	m.OnSample(1, 1, -8)
	require.True(t, awaitFlip(t, listener))
}

func TestDisableCancelsPendingOrientation(t *testing.T) {
	m, listener := newTestMonitor(t)

	verticalSample(m)
	m.Enable(false)

	requireNoOrientation(t, listener, 2*testVerticalDebounce)
}

func TestReenableResetsState(t *testing.T) {
	m, listener := newTestMonitor(t)

	verticalSample(m)
	require.Equal(t, OrientationVertical, awaitOrientation(t, listener))
	m.OnSample(1, 1, 8)
	m.OnSample(1, 1, 8)
	require.False(t, awaitFlip(t, listener))

	m.Enable(false)
	m.Enable(true)

	m.mu.Lock()
	require.Equal(t, OrientationUnknown, m.orientation)
	require.Equal(t, OrientationUnknown, m.pending)
	require.False(t, m.wasFaceUp)
	require.Equal(t, [flipSamples]bool{}, m.samples)
	m.mu.Unlock()

	// Vertical is reportable again because the committed value reset.
	verticalSample(m)
	require.Equal(t, OrientationVertical, awaitOrientation(t, listener))
}

func TestEnableWhileEnabledResets(t *testing.T) {
	m, listener := newTestMonitor(t)

	verticalSample(m)
	require.Equal(t, OrientationVertical, awaitOrientation(t, listener))

	m.Enable(true)

	m.mu.Lock()
	defer m.mu.Unlock()
	require.Equal(t, OrientationUnknown, m.orientation)
	require.False(t, m.wasFaceUp)
}

func TestNilListenerTolerated(t *testing.T) {
	m := New(Config{
		VerticalDebounce:   testVerticalDebounce,
		HorizontalDebounce: testHorizontalDebounce,
	})
	m.Enable(true)
	defer m.Enable(false)

	verticalSample(m)
	m.OnSample(1, 1, 8)
	m.OnSample(1, 1, 8)

	// Both notification paths fire with no listener registered; neither
	// may panic.
	time.Sleep(2 * testVerticalDebounce)
}

func TestSetListenerAfterConstruction(t *testing.T) {
	m := New(Config{
		VerticalDebounce:   testVerticalDebounce,
		HorizontalDebounce: testHorizontalDebounce,
	})
	listener := newRecordedListener()
	m.SetListener(listener)
	m.Enable(true)
	defer m.Enable(false)

	verticalSample(m)
	require.Equal(t, OrientationVertical, awaitOrientation(t, listener))
}
