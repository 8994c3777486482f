// Package transport moves encoded frames between the application and the
// steering controller. Frames are opaque here; see package pgn.
package transport

import (
	"bytes"
	"context"
	"sync"

	"github.com/san-kum/agsteer/internal/pgn"
)

// Sender delivers one encoded frame per call.
type Sender interface {
	Send(frame []byte) error
	Close() error
}

// Link is a Sender that can also deliver inbound frames. The returned
// channel is closed when ctx is cancelled or the link fails.
type Link interface {
	Sender
	Listen(ctx context.Context) <-chan []byte
}

var frameHeader = []byte{pgn.Header0, pgn.Header1}

// ScanFrames is a bufio.SplitFunc that extracts frames from a byte stream.
// Bytes before a header are skipped. Tokens are returned whole, including
// the checksum, which is left for the decoder to verify.
func ScanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	i := bytes.Index(data, frameHeader)
	if i < 0 {
		n := len(data)
		// a trailing 0x80 may be the first half of the next header
		if !atEOF && n > 0 && data[n-1] == pgn.Header0 {
			return n - 1, nil, nil
		}
		return n, nil, nil
	}
	if i > 0 {
		return i, nil, nil
	}
	if len(data) < 5 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	n := 5 + int(data[4]) + 1
	if len(data) < n {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	return n, data[:n], nil
}

// Recorder keeps every frame sent to it. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (r *Recorder) Send(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, append([]byte(nil), frame...))
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Frames returns copies of the recorded frames in send order.
func (r *Recorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.frames))
	for i, f := range r.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Count reports how many frames with the given PGN were sent.
func (r *Recorder) Count(id byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.frames {
		if got, err := pgn.PeekPGN(f); err == nil && got == id {
			n++
		}
	}
	return n
}

func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
