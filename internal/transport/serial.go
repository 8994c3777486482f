package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"

	"github.com/san-kum/agsteer/internal/logging"
)

// PortOptions describes how to open the controller's USB serial port.
type PortOptions struct {
	BaudRate int    `yaml:"baud_rate" json:"baud_rate"`
	DataBits int    `yaml:"data_bits" json:"data_bits"`
	StopBits int    `yaml:"stop_bits" json:"stop_bits"`
	Parity   string `yaml:"parity" json:"parity"`
}

// Normalize validates the options and fills in defaults for unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 38400
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

// SerialMode converts the options into the mode go.bug.st/serial expects.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "N":
		mode.Parity = serial.NoParity
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// Serial talks to the controller over a byte stream, usually a USB serial
// port. Inbound bytes are split into frames with ScanFrames.
type Serial struct {
	path string
	port io.ReadWriteCloser
	log  *logging.Logger
}

func OpenSerial(path string, opts PortOptions, lg *logging.Logger) (*Serial, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewSerial(path, port, lg), nil
}

// NewSerial wraps an already open stream.
func NewSerial(path string, port io.ReadWriteCloser, lg *logging.Logger) *Serial {
	return &Serial{path: path, port: port, log: lg}
}

func (s *Serial) Send(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	_, err := s.port.Write(frame)
	return err
}

func (s *Serial) Close() error {
	return s.port.Close()
}

// Listen reads until the port fails or ctx is cancelled. Cancelling ctx
// closes the port.
func (s *Serial) Listen(ctx context.Context) <-chan []byte {
	out := make(chan []byte, 16)
	stop := context.AfterFunc(ctx, func() { s.port.Close() })
	go func() {
		defer close(out)
		defer stop()
		sc := bufio.NewScanner(s.port)
		sc.Split(ScanFrames)
		for sc.Scan() {
			select {
			case out <- append([]byte(nil), sc.Bytes()...):
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil && ctx.Err() == nil {
			s.log.Warn("serial read failed", "port", s.path, "error", err)
		}
	}()
	return out
}
