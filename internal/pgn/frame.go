// Package pgn encodes and decodes the fixed-layout frames exchanged with the
// steering controller.
//
// Frame layout:
//
//	0x80 0x81 <src> <pgn> <len> <payload...> <crc>
//
// crc is the low byte of the sum of every byte from <src> through the last
// payload byte. Multi-byte payload fields are little-endian.
package pgn

import (
	"errors"
	"fmt"
)

const (
	Header0 = 0x80
	Header1 = 0x81

	SourceApp   = 0x7F
	SourceSteer = 0x7E

	PGNSteerConfig    = 251
	PGNSteerSettings  = 252
	PGNSteerTelemetry = 253
	PGNSteerData      = 254

	headerLen = 5
	// smallest possible frame: header, empty payload, crc
	minFrameLen = headerLen + 1
)

var ErrMalformedFrame = errors.New("pgn: malformed frame")

// FrameError describes why a frame was rejected. It always matches
// ErrMalformedFrame with errors.Is.
type FrameError struct {
	PGN    byte
	Len    int
	Reason string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("pgn: malformed frame (pgn %d, %d bytes): %s", e.PGN, e.Len, e.Reason)
}

func (e *FrameError) Unwrap() error {
	return ErrMalformedFrame
}

// AppendFrame appends a framed payload to dst.
func AppendFrame(dst []byte, src, pgn byte, payload []byte) []byte {
	start := len(dst)
	dst = append(dst, Header0, Header1, src, pgn, byte(len(payload)))
	dst = append(dst, payload...)
	return append(dst, checksum(dst[start+2:]))
}

func checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

// PeekPGN returns the PGN of a frame after checking only the header.
func PeekPGN(b []byte) (byte, error) {
	if len(b) < minFrameLen {
		return 0, &FrameError{Len: len(b), Reason: "short frame"}
	}
	if b[0] != Header0 || b[1] != Header1 {
		return 0, &FrameError{Len: len(b), Reason: "bad header"}
	}
	return b[3], nil
}

// Unframe validates header, length and checksum and returns the source,
// PGN and payload. The payload aliases b.
func Unframe(b []byte) (src, pgn byte, payload []byte, err error) {
	pgn, err = PeekPGN(b)
	if err != nil {
		return 0, 0, nil, err
	}
	n := int(b[4])
	if len(b) != headerLen+n+1 {
		return 0, pgn, nil, &FrameError{PGN: pgn, Len: len(b), Reason: fmt.Sprintf("length byte %d does not match frame", n)}
	}
	if want := checksum(b[2 : headerLen+n]); b[len(b)-1] != want {
		return 0, pgn, nil, &FrameError{PGN: pgn, Len: len(b), Reason: fmt.Sprintf("crc 0x%02x, want 0x%02x", b[len(b)-1], want)}
	}
	return b[2], pgn, b[headerLen : headerLen+n], nil
}

// expect unframes b and checks the PGN and payload length.
func expect(b []byte, pgn byte, n int) ([]byte, error) {
	_, got, payload, err := Unframe(b)
	if err != nil {
		return nil, err
	}
	if got != pgn {
		return nil, &FrameError{PGN: got, Len: len(b), Reason: fmt.Sprintf("want pgn %d", pgn)}
	}
	if len(payload) != n {
		return nil, &FrameError{PGN: got, Len: len(b), Reason: fmt.Sprintf("payload %d bytes, want %d", len(payload), n)}
	}
	return payload, nil
}
