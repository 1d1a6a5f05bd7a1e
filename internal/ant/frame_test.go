package ant

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func readerFunc(r io.Reader) ReadFunc {
	return func(buf []byte) error {
		_, err := io.ReadFull(r, buf)

		return err
	}
}

func TestEncodeFrameAndReadFrameRoundTrip(t *testing.T) {
	content := []byte{0x00, 0x01, 0x02, 0x03, 0x04}
	encoded, err := EncodeFrame(0x4E, content)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}

	frame, err := ReadFrame(readerFunc(bytes.NewReader(encoded)))
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.ID != 0x4E {
		t.Fatalf("id mismatch: got 0x%02X", frame.ID)
	}
	if !bytes.Equal(frame.Content, content) {
		t.Fatalf("content mismatch: got %x want %x", frame.Content, content)
	}
}

func TestReadFrameResyncsPastStrayBytes(t *testing.T) {
	encoded, err := EncodeFrame(0x40, []byte{0x00, 0x46, 0x00})
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	raw := append([]byte{0x12, 0x00, 0xFF}, encoded...)

	frame, err := ReadFrame(readerFunc(bytes.NewReader(raw)))
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.ID != 0x40 {
		t.Fatalf("id mismatch: got 0x%02X", frame.ID)
	}
}

func TestReadFrameChecksumMismatch(t *testing.T) {
	encoded, err := EncodeFrame(0x4E, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	encoded[len(encoded)-1] ^= 0xFF

	_, err = ReadFrame(readerFunc(bytes.NewReader(encoded)))
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
}

func TestReadFrameAnySingleByteCorruptionFailsChecksum(t *testing.T) {
	encoded, err := EncodeFrame(0x4E, []byte{0x10, 0x20, 0x30, 0x40})
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}

	for pos := range encoded {
		if pos == 1 {
			// changing the length byte reframes the stream instead
			continue
		}
		for _, mask := range []byte{0x01, 0x55, 0x80} {
			corrupted := make([]byte, len(encoded))
			copy(corrupted, encoded)
			corrupted[pos] ^= mask

			_, err := ReadFrame(readerFunc(bytes.NewReader(corrupted)))
			if pos == 0 {
				// a broken sync byte is stray noise followed by a short stream
				if err == nil {
					t.Fatalf("pos 0 mask %02X: expected error", mask)
				}

				continue
			}
			if !errors.Is(err, ErrChecksumMismatch) {
				t.Fatalf("pos %d mask %02X: expected checksum mismatch, got %v", pos, mask, err)
			}
		}
	}
}

func TestReadFrameSurvivesChunkedStream(t *testing.T) {
	encoded, err := EncodeFrame(0x4E, []byte{9, 8, 7, 6, 5, 4, 3, 2, 1})
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}

	// deliver one byte per read call no matter how much is asked for
	src := bytes.NewReader(encoded)
	oneByte := func(buf []byte) error {
		for i := range buf {
			b, err := src.ReadByte()
			if err != nil {
				return err
			}
			buf[i] = b
		}

		return nil
	}

	frame, err := ReadFrame(oneByte)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if len(frame.Content) != 9 {
		t.Fatalf("content length mismatch: got %d", len(frame.Content))
	}
}

func TestReadFrameRecoversAfterCorruptFrame(t *testing.T) {
	bad, err := EncodeFrame(0x4E, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	bad[4] ^= 0x40
	good, err := EncodeFrame(0x6F, []byte{0x20})
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}

	src := bytes.NewReader(append(bad, good...))
	read := readerFunc(src)

	if _, err := ReadFrame(read); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
	frame, err := ReadFrame(read)
	if err != nil {
		t.Fatalf("read frame after corrupt one: %v", err)
	}
	if frame.ID != 0x6F {
		t.Fatalf("id mismatch: got 0x%02X", frame.ID)
	}
}

func TestEncodeFrameContentTooLarge(t *testing.T) {
	if _, err := EncodeFrame(0x4E, make([]byte, 256)); err == nil {
		t.Fatalf("expected content size error, got nil")
	}
}
