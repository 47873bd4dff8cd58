// Package bootstrap implements the pull protocol over a framed,
// length-delimited binary stream (spec §4.6): FULL and LIGHT account-head
// sweeps and FORK pair replication, each driven by a client loop that
// validates ordering, enforces throughput and size limits, and switches
// peers on any violation.
package bootstrap

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxFrameBytes bounds a single frame's payload so a misbehaving or
// malicious peer cannot force an unbounded allocation (spec §4.6 "size
// limit exceeded" abort condition).
const maxFrameBytes = 8 << 20

// writeFrame writes payload as a 4-byte big-endian length prefix followed by
// the bytes themselves, the framing every request/response on this stream
// uses (spec §4.6 "a framed, length-delimited binary stream").
func writeFrame(w io.Writer, payload []byte) error {
	var head [4]byte
	binary.BigEndian.PutUint32(head[:], uint32(len(payload)))
	if _, err := w.Write(head[:]); err != nil {
		return fmt.Errorf("bootstrap: write frame header: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("bootstrap: write frame body: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame, rejecting anything over
// maxFrameBytes before allocating its buffer.
func readFrame(r io.Reader) ([]byte, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(head[:])
	if n > maxFrameBytes {
		return nil, fmt.Errorf("bootstrap: frame of %d bytes exceeds limit %d", n, maxFrameBytes)
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("bootstrap: read frame body: %w", err)
	}
	return buf, nil
}
