package accel

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

// PXACC is the proprietary NMEA sentence emitted by the external sampling
// board: $PXACC,<x>,<y>,<z>*hh with one acceleration component per field in
// m/s².
type PXACC struct {
	nmea.BaseSentence
	X float64
	Y float64
	Z float64
}

func init() {
	// go-nmea splits a proprietary "$PXACC" sentence into talker "P" and
	// type "XACC" and dispatches custom parsers by type.
	nmea.MustRegisterParser("XACC", func(s nmea.BaseSentence) (nmea.Sentence, error) {
		p := nmea.NewParser(s)
		return PXACC{
			BaseSentence: s,
			X:            p.Float64(0, "x"),
			Y:            p.Float64(1, "y"),
			Z:            p.Float64(2, "z"),
		}, p.Err()
	})
}

type serialSource struct {
	port   io.ReadWriteCloser
	reader *bufio.Reader
}

// NewSerialSource opens the given serial port and returns a Source that
// yields one Sample per PXACC sentence. The returned Source also implements
// io.Closer.
func NewSerialSource(portName string, baudRate uint) (Source, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("serial source: open %s: %w", portName, err)
	}
	log.Printf("serial source: port opened on %s at %d baud", portName, baudRate)

	return &serialSource{
		port:   port,
		reader: bufio.NewReader(port),
	}, nil
}

// Next blocks until the next valid PXACC sentence arrives on the port.
func (s *serialSource) Next() (Sample, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return Sample{}, fmt.Errorf("serial source: read: %w", err)
		}
		if sample, ok := parseLine(strings.TrimSpace(line)); ok {
			return sample, nil
		}
	}
}

func (s *serialSource) Close() error {
	return s.port.Close()
}

// parseLine handles one line from the port. Sampling boards interleave other
// sentence types and partial lines with the accelerometer feed, so anything
// that is not a well-formed PXACC sentence is skipped.
func parseLine(line string) (Sample, bool) {
	if !strings.HasPrefix(line, "$") {
		return Sample{}, false
	}
	sentence, err := nmea.Parse(line)
	if err != nil {
		return Sample{}, false
	}
	acc, ok := sentence.(PXACC)
	if !ok {
		return Sample{}, false
	}
	return Sample{X: acc.X, Y: acc.Y, Z: acc.Z}, true
}
