package transport

import (
	"context"
	"io"
	"sync"

	"antdrive/internal/ant"
)

// Loopback is an in-memory Transport wired to a DeviceEndpoint. Tests and
// the device simulator use it to play the dongle side of the link, with full
// control over how bytes are chunked on the way back to the host.
type Loopback struct {
	mu   sync.Mutex
	open bool

	toDevice   *byteStream
	fromDevice *byteStream
}

// DeviceEndpoint is the device-facing end of a Loopback.
type DeviceEndpoint struct {
	in  *byteStream
	out *byteStream
}

func NewLoopback() (*Loopback, *DeviceEndpoint) {
	toDevice := newByteStream()
	fromDevice := newByteStream()
	host := &Loopback{toDevice: toDevice, fromDevice: fromDevice}
	device := &DeviceEndpoint{in: toDevice, out: fromDevice}

	return host, device
}

func (t *Loopback) Name() string {
	return "loopback"
}

func (t *Loopback) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.open
}

func (t *Loopback) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open {
		return ErrAlreadyOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.open = true

	return nil
}

func (t *Loopback) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return ErrNotOpen
	}
	t.open = false
	t.toDevice.close()
	t.fromDevice.close()

	return nil
}

func (t *Loopback) SendMessage(ctx context.Context, msg ant.Message) error {
	if !t.IsOpen() {
		return ErrNotOpen
	}
	frame, err := ant.EncodeFrame(msg.ID, msg.Content)
	if err != nil {
		return err
	}

	return t.toDevice.write(frame)
}

func (t *Loopback) ReceiveMessage(ctx context.Context) (ant.Decoded, error) {
	if !t.IsOpen() {
		return ant.Decoded{}, ErrNotOpen
	}

	return readMessage(func(buf []byte) error {
		return t.fromDevice.read(ctx, buf)
	})
}

// InjectBytes feeds raw bytes to the host receive path, one chunk per call.
// Garbage before a sync byte and split frames are both fair game.
func (e *DeviceEndpoint) InjectBytes(b []byte) error {
	return e.out.write(b)
}

// SendMessage encodes and injects a well-formed frame from the device side.
func (e *DeviceEndpoint) SendMessage(id byte, content []byte) error {
	frame, err := ant.EncodeFrame(id, content)
	if err != nil {
		return err
	}

	return e.out.write(frame)
}

// ReadFrame reads one frame sent by the host.
func (e *DeviceEndpoint) ReadFrame(ctx context.Context) (ant.Frame, error) {
	return ant.ReadFrame(func(buf []byte) error {
		return e.in.read(ctx, buf)
	})
}

// byteStream is a single-reader byte pipe with chunked writes.
type byteStream struct {
	ch   chan []byte
	done chan struct{}

	closeOnce sync.Once

	// rest is only touched by the single reader.
	rest []byte
}

func newByteStream() *byteStream {
	return &byteStream{
		ch:   make(chan []byte, 256),
		done: make(chan struct{}),
	}
}

func (s *byteStream) write(p []byte) error {
	chunk := make([]byte, len(p))
	copy(chunk, p)
	select {
	case <-s.done:
		return io.ErrClosedPipe
	case s.ch <- chunk:
		return nil
	}
}

func (s *byteStream) read(ctx context.Context, buf []byte) error {
	filled := 0
	for filled < len(buf) {
		if len(s.rest) > 0 {
			n := copy(buf[filled:], s.rest)
			s.rest = s.rest[n:]
			filled += n

			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			// drain buffered chunks before reporting EOF
			select {
			case chunk := <-s.ch:
				s.rest = chunk
			default:
				return io.EOF
			}
		case chunk := <-s.ch:
			s.rest = chunk
		}
	}

	return nil
}

func (s *byteStream) close() {
	s.closeOnce.Do(func() { close(s.done) })
}
