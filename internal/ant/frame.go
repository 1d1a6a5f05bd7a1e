package ant

import (
	"errors"
	"fmt"
)

const (
	// SyncByte starts every ANT frame on the wire.
	SyncByte = 0xA4

	maxContentLen = 255
)

// ErrChecksumMismatch reports a frame whose trailing checksum does not match
// the XOR fold of its bytes. The frame must be dropped and the stream
// resynchronized; the link is lossy and this is not fatal.
var ErrChecksumMismatch = errors.New("ant: frame checksum mismatch")

// Frame is one checksum-delimited unit of the wire protocol.
type Frame struct {
	ID      byte
	Content []byte
}

// ReadFunc fills buf completely from the underlying byte stream or fails.
type ReadFunc func(buf []byte) error

// EncodeFrame builds the wire form [SYNC][LEN][ID][CONTENT][CHECKSUM].
func EncodeFrame(id byte, content []byte) ([]byte, error) {
	if len(content) > maxContentLen {
		return nil, fmt.Errorf("content too large: %d", len(content))
	}

	frame := make([]byte, 0, len(content)+4)
	frame = append(frame, SyncByte, byte(len(content)), id)
	frame = append(frame, content...)
	frame = append(frame, xorFold(frame))

	return frame, nil
}

// ReadFrame consumes exactly one frame from the stream. Stray bytes before
// the sync byte are discarded. A frame that fails checksum validation returns
// ErrChecksumMismatch with the stream already positioned past it, so the
// caller can drop it and read again.
func ReadFrame(readFull ReadFunc) (Frame, error) {
	if err := resyncToSync(readFull); err != nil {
		return Frame{}, err
	}

	var lenBuf [1]byte
	if err := readFull(lenBuf[:]); err != nil {
		return Frame{}, fmt.Errorf("read frame length: %w", err)
	}
	ln := int(lenBuf[0])

	// id + content + trailing checksum
	rest := make([]byte, ln+2)
	if err := readFull(rest); err != nil {
		return Frame{}, fmt.Errorf("read frame body: %w", err)
	}

	sum := SyncByte ^ lenBuf[0]
	for _, b := range rest[:ln+1] {
		sum ^= b
	}
	if sum != rest[ln+1] {
		return Frame{}, ErrChecksumMismatch
	}

	return Frame{ID: rest[0], Content: rest[1 : ln+1]}, nil
}

func resyncToSync(readFull ReadFunc) error {
	buf := make([]byte, 1)
	for {
		if err := readFull(buf); err != nil {
			return fmt.Errorf("read sync byte: %w", err)
		}
		if buf[0] == SyncByte {
			return nil
		}
	}
}

func xorFold(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}

	return sum
}
