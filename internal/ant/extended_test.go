package ant

import "testing"

func decodeBroadcastContent(t *testing.T, content []byte) *BroadcastData {
	t.Helper()
	d, err := Decode(Frame{ID: MsgBroadcastData, Content: content})
	if err != nil {
		t.Fatalf("decode broadcast: %v", err)
	}
	if d.Broadcast == nil {
		t.Fatalf("expected broadcast variant")
	}

	return d.Broadcast
}

func TestBroadcastWithoutTrailerIsNotExtended(t *testing.T) {
	content := []byte{0x00, 1, 2, 3, 4, 5, 6, 7, 8}
	bc := decodeBroadcastContent(t, content)

	if bc.IsExtended() {
		t.Fatalf("nine-byte content must not be extended")
	}
	if _, ok := bc.DeviceNumber(); ok {
		t.Fatalf("device number must be absent")
	}
	if _, ok := bc.RSSI(); ok {
		t.Fatalf("rssi must be absent")
	}
	if _, ok := bc.Timestamp(); ok {
		t.Fatalf("timestamp must be absent")
	}
}

func TestBroadcastAllExtendedFields(t *testing.T) {
	// flags 0xE0: channel output block, rssi and timestamp all present
	content := []byte{
		0x00, 1, 2, 3, 4, 5, 6, 7, 8,
		0xE0,
		0x34, 0x12, 0x53, 0x05, // device number 0x1234, type 0x53, transmission 0x05
		0xD8,       // rssi -40
		0xCD, 0xAB, // timestamp 0xABCD
	}
	bc := decodeBroadcastContent(t, content)

	if !bc.IsExtended() {
		t.Fatalf("expected extended broadcast")
	}
	if num, ok := bc.DeviceNumber(); !ok || num != 0x1234 {
		t.Fatalf("device number: got %#x ok=%v", num, ok)
	}
	if typ, ok := bc.DeviceType(); !ok || typ != 0x53 {
		t.Fatalf("device type: got %#x ok=%v", typ, ok)
	}
	if tt, ok := bc.TransmissionType(); !ok || tt != 0x05 {
		t.Fatalf("transmission type: got %#x ok=%v", tt, ok)
	}
	if rssi, ok := bc.RSSI(); !ok || rssi != -40 {
		t.Fatalf("rssi: got %d ok=%v", rssi, ok)
	}
	if ts, ok := bc.Timestamp(); !ok || ts != 0xABCD {
		t.Fatalf("timestamp: got %#x ok=%v", ts, ok)
	}
}

func TestBroadcastRSSIWithoutChannelOutput(t *testing.T) {
	content := []byte{
		0x00, 1, 2, 3, 4, 5, 6, 7, 8,
		0x40,
		0xEC, // rssi -20 at the unshifted offset
	}
	bc := decodeBroadcastContent(t, content)

	if rssi, ok := bc.RSSI(); !ok || rssi != -20 {
		t.Fatalf("rssi: got %d ok=%v", rssi, ok)
	}
	if _, ok := bc.DeviceNumber(); ok {
		t.Fatalf("device number must be absent")
	}
	if _, ok := bc.Timestamp(); ok {
		t.Fatalf("timestamp must be absent")
	}
}

func TestBroadcastTimestampShiftedByChannelOutput(t *testing.T) {
	// flags 0xA0: channel output block shifts the timestamp by four bytes
	content := []byte{
		0x00, 1, 2, 3, 4, 5, 6, 7, 8,
		0xA0,
		0x01, 0x00, 0x53, 0x01,
		0x00, // unused rssi slot
		0x22, 0x11,
	}
	bc := decodeBroadcastContent(t, content)

	if ts, ok := bc.Timestamp(); !ok || ts != 0x1122 {
		t.Fatalf("timestamp: got %#x ok=%v", ts, ok)
	}
	if _, ok := bc.RSSI(); ok {
		t.Fatalf("rssi must be absent")
	}
}

func TestBroadcastFlagByteWithNoFields(t *testing.T) {
	content := []byte{0x00, 1, 2, 3, 4, 5, 6, 7, 8, 0x00}
	bc := decodeBroadcastContent(t, content)

	if !bc.IsExtended() {
		t.Fatalf("content longer than nine bytes is extended")
	}
	if _, ok := bc.DeviceNumber(); ok {
		t.Fatalf("device number must be absent")
	}
}
