package transport

import (
	"context"
	"errors"

	"antdrive/internal/ant"
)

var (
	// ErrAlreadyOpen is returned by Open on an open transport.
	ErrAlreadyOpen = errors.New("transport: already open")
	// ErrNotOpen is returned when the transport has not been opened.
	ErrNotOpen = errors.New("transport: not open")
)

// Transport is a byte-oriented link to the dongle carrying whole ANT frames.
// ReceiveMessage reassembles exactly one frame from the stream no matter how
// the link chunks bytes, skipping stray bytes before the sync byte; a
// checksum-invalid frame surfaces as ant.ErrChecksumMismatch with the stream
// already positioned past it.
type Transport interface {
	Name() string
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool
	SendMessage(ctx context.Context, msg ant.Message) error
	ReceiveMessage(ctx context.Context) (ant.Decoded, error)
}

// readMessage reads one frame through readFull and decodes it.
func readMessage(readFull ant.ReadFunc) (ant.Decoded, error) {
	frame, err := ant.ReadFrame(readFull)
	if err != nil {
		return ant.Decoded{}, err
	}

	return ant.Decode(frame)
}
