// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package app

import (
	"fmt"
	"time"

	"github.com/relabs-tech/tilt_monitor/internal/accel"
	"github.com/relabs-tech/tilt_monitor/internal/tilt"
)

type consoleListener struct{}

func (consoleListener) OnOrientationChanged(o tilt.Orientation) {
	fmt.Printf("ORIENTATION=%s\n", o)
}

func (consoleListener) OnDeviceFlipped(faceDown bool) {
	fmt.Printf("FACE_DOWN=%v\n", faceDown)
}

// RunMockConsole drives the classifier from the mock accelerometer and
// prints settled transitions, with no broker or hardware required.
func RunMockConsole() error {
	src := accel.NewMockSource()

	monitor := tilt.New(tilt.Config{Listener: consoleListener{}})
	monitor.Enable(true)
	defer monitor.Enable(false)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		sample, err := src.Next()
		if err != nil {
			return err
		}
		monitor.OnSample(sample.X, sample.Y, sample.Z)
	}
	return nil
}
