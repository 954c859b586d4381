// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package accel

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

// accelRangeG maps the MPU-9250 accelerometer range setting to its full
// scale in g: 0=±2g, 1=±4g, 2=±8g, 3=±16g.
var accelRangeG = []float64{2, 4, 8, 16}

type mpuSource struct {
	imu *mpu9250.MPU9250
	// counts -> m/s² for the configured full-scale range
	scale float64
}

// NewMPU9250Source initializes an MPU-9250 over SPI and returns a Source
// reading its accelerometer, converted to m/s².
func NewMPU9250Source(spiDev, csPin string, accelRange byte) (Source, error) {
	if int(accelRange) >= len(accelRangeG) {
		return nil, fmt.Errorf("IMU: accel range must be 0-3, got %d", accelRange)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", spiDev, err)
	}

	imu, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}

	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	if err := imu.SetAccelRange(accelRange); err != nil {
		return nil, fmt.Errorf("IMU: set accel range: %w", err)
	}
	log.Printf("IMU: accelerometer range set to %d (±%.0fg)", accelRange, accelRangeG[accelRange])

	// Self-test and calibration are non-fatal: a sensor that fails them
	// still produces usable coarse-orientation data.
	if _, err := imu.SelfTest(); err != nil {
		log.Printf("Warning: IMU self-test failed: %v", err)
	}
	if err := imu.Calibrate(); err != nil {
		log.Printf("Warning: IMU calibration failed: %v", err)
	} else {
		log.Printf("IMU calibration complete")
	}

	return &mpuSource{
		imu:   imu,
		scale: accelRangeG[accelRange] * gravity / 32768.0,
	}, nil
}

// Next reads one accelerometer sample from the IMU.
func (s *mpuSource) Next() (Sample, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return Sample{}, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return Sample{}, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return Sample{}, fmt.Errorf("IMU accel Z: %w", err)
	}

	return Sample{
		X: float64(ax) * s.scale,
		Y: float64(ay) * s.scale,
		Z: float64(az) * s.scale,
	}, nil
}
