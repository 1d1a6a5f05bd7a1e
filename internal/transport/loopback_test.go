package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"antdrive/internal/ant"
)

func TestLoopbackLifecycle(t *testing.T) {
	ctx := context.Background()
	host, _ := NewLoopback()

	if host.IsOpen() {
		t.Fatalf("new transport must be closed")
	}
	if err := host.Close(); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("close on closed transport: got %v", err)
	}
	if err := host.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := host.Open(ctx); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("second open: got %v", err)
	}
	if !host.IsOpen() {
		t.Fatalf("transport must report open")
	}
	if err := host.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if host.IsOpen() {
		t.Fatalf("transport must report closed")
	}
}

func TestLoopbackSendIsReadableOnDeviceSide(t *testing.T) {
	ctx := context.Background()
	host, device := NewLoopback()
	if err := host.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}

	msg := ant.OpenChannel(2)
	if err := host.SendMessage(ctx, msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	frame, err := device.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("device read: %v", err)
	}
	if frame.ID != ant.MsgOpenChannel || frame.Content[0] != 2 {
		t.Fatalf("frame mismatch: id=0x%02X content=%x", frame.ID, frame.Content)
	}
}

func TestLoopbackReceiveResyncsAcrossChunks(t *testing.T) {
	ctx := context.Background()
	host, device := NewLoopback()
	if err := host.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}

	encoded, err := ant.EncodeFrame(ant.MsgStartup, []byte{0x20})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// garbage, then the frame delivered one byte at a time
	if err := device.InjectBytes([]byte{0x00, 0x13, 0x37}); err != nil {
		t.Fatalf("inject: %v", err)
	}
	for _, b := range encoded {
		if err := device.InjectBytes([]byte{b}); err != nil {
			t.Fatalf("inject: %v", err)
		}
	}

	readCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	msg, err := host.ReceiveMessage(readCtx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msg.Startup == nil {
		t.Fatalf("expected startup message, got id 0x%02X", msg.ID)
	}
}

func TestLoopbackReceiveReportsChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	host, device := NewLoopback()
	if err := host.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}

	encoded, err := ant.EncodeFrame(ant.MsgStartup, []byte{0x20})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	encoded[len(encoded)-1] ^= 0x01
	if err := device.InjectBytes(encoded); err != nil {
		t.Fatalf("inject: %v", err)
	}

	readCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if _, err := host.ReceiveMessage(readCtx); !errors.Is(err, ant.ErrChecksumMismatch) {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
}

func TestLoopbackReceiveHonorsContext(t *testing.T) {
	host, _ := NewLoopback()
	if err := host.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := host.ReceiveMessage(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
