// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package accel

import (
	"math"
	"time"
)

const gravity = 9.81

type mockSource struct {
	start time.Time
}

// NewMockSource creates a mock accelerometer that slowly rolls the device
// from flat face-up through vertical to face-down and back, so every
// classifier transition shows up without hardware.
func NewMockSource() Source {
	return &mockSource{start: time.Now()}
}

func (m *mockSource) Next() (Sample, error) {
	elapsed := time.Since(m.start).Seconds()

	// Tilt angle from vertical sweeps 0..180 degrees over ~50 seconds.
	theta := math.Pi * (0.5 + 0.5*math.Sin(elapsed/8))
	xy := gravity * math.Sin(theta)

	// Small offsets keep every component away from exact zero, which the
	// classifier treats as a sensor that has not warmed up yet.
	return Sample{
		X: 0.05 + 0.6*xy,
		Y: 0.05 + 0.8*xy,
		Z: 0.01 + gravity*math.Cos(theta),
	}, nil
}
