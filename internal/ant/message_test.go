package ant

import (
	"bytes"
	"testing"
)

func mustDecode(t *testing.T, id byte, content []byte) Decoded {
	t.Helper()
	d, err := Decode(Frame{ID: id, Content: content})
	if err != nil {
		t.Fatalf("decode 0x%02X: %v", id, err)
	}

	return d
}

func TestResetMatchedByStartup(t *testing.T) {
	msg := Reset()
	if !msg.AwaitsReply {
		t.Fatalf("reset must await a reply")
	}

	startup := mustDecode(t, MsgStartup, []byte{0x20})
	if !msg.Matches(startup) {
		t.Fatalf("startup must complete a reset")
	}

	event := mustDecode(t, MsgChannelEvent, []byte{0x00, MsgResetSystem, ResponseNoError})
	if msg.Matches(event) {
		t.Fatalf("a channel event must not complete a reset")
	}
}

func TestSetNetworkKeyMatchedByChannelEvent(t *testing.T) {
	msg := SetNetworkKey(0, [8]byte{0xB9, 0xA5, 0x21, 0xFB, 0xBD, 0x72, 0xC3, 0x45})

	ack := mustDecode(t, MsgChannelEvent, []byte{0x00, MsgNetworkKey, ResponseNoError})
	if !msg.Matches(ack) {
		t.Fatalf("channel event for 0x46 with code 0 must match")
	}

	wrongID := mustDecode(t, MsgChannelEvent, []byte{0x00, MsgAssignChannel, ResponseNoError})
	if msg.Matches(wrongID) {
		t.Fatalf("acknowledgment of a different command must not match")
	}

	errored := mustDecode(t, MsgChannelEvent, []byte{0x00, MsgNetworkKey, InvalidNetworkNumber})
	if msg.Matches(errored) {
		t.Fatalf("error response must not match")
	}
}

func TestSetChannelIDLittleEndianDeviceNumber(t *testing.T) {
	msg := SetChannelID(2, 0xABCD, 0x53, 0x01)

	want := []byte{2, 0xCD, 0xAB, 0x53, 0x01}
	if !bytes.Equal(msg.Content, want) {
		t.Fatalf("content mismatch: got %x want %x", msg.Content, want)
	}
}

func TestSetChannelPeriodLittleEndian(t *testing.T) {
	msg := SetChannelPeriod(0, 8192)

	want := []byte{0, 0x00, 0x20}
	if !bytes.Equal(msg.Content, want) {
		t.Fatalf("content mismatch: got %x want %x", msg.Content, want)
	}
}

func TestRequestChannelStatusDecodesReply(t *testing.T) {
	var got ChannelState
	msg := RequestChannelStatus(1, func(s ChannelState) { got = s })

	reply := mustDecode(t, MsgChannelStatus, []byte{1, byte(ChannelStateTracking)})
	if !msg.Matches(reply) {
		t.Fatalf("channel status reply must match the request")
	}
	msg.OnReply(reply)
	if got != ChannelStateTracking {
		t.Fatalf("state mismatch: got %v", got)
	}
}

func TestBroadcastMatchedByEventTxOnSameChannel(t *testing.T) {
	msg := Broadcast(3, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	tx := mustDecode(t, MsgChannelEvent, []byte{3, 0x01, EventTx})
	if !msg.Matches(tx) {
		t.Fatalf("EVENT_TX on the same channel must match")
	}

	otherChannel := mustDecode(t, MsgChannelEvent, []byte{1, 0x01, EventTx})
	if msg.Matches(otherChannel) {
		t.Fatalf("EVENT_TX on another channel must not match")
	}
}

func TestDecodeUnknownIDIsOpaque(t *testing.T) {
	d := mustDecode(t, 0x99, []byte{1, 2, 3})
	if !d.Opaque {
		t.Fatalf("unknown id must decode to the opaque variant")
	}
	if d.ID != 0x99 || len(d.Content) != 3 {
		t.Fatalf("opaque variant must keep id and content")
	}
}
