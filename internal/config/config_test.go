package config

import (
	"os"
	"path/filepath"
	"testing"

	"antdrive/internal/ant"
)

func TestDefaultValidatesOncePortIsSet(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("default config must fail validation without a serial port")
	}

	cfg.Connection.SerialPort = "/dev/ttyUSB0"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Connection.SerialBaud != DefaultSerialBaud {
		t.Fatalf("expected default baud, got %d", cfg.Connection.SerialBaud)
	}
	if len(cfg.Networks) != 1 || cfg.Networks[0].Key != DefaultNetworkKey {
		t.Fatalf("expected default network, got %+v", cfg.Networks)
	}
}

func TestLoadFillsMissingChannelDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
		"connection": {"serial_port": "/dev/ttyUSB0"},
		"channels": [{"number": 1, "device_type": 17}]
	}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	channel := cfg.Channels[0]
	if channel.Type != "slave" || channel.RFFrequency != 57 || channel.Period != 8192 {
		t.Fatalf("channel defaults not filled: %+v", channel)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected info log level, got %q", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected a decode error")
	}
}

func TestParsedKey(t *testing.T) {
	key, err := NetworkConfig{Number: 0, Key: DefaultNetworkKey}.ParsedKey()
	if err != nil {
		t.Fatalf("ParsedKey: %v", err)
	}
	want := [8]byte{0xB9, 0xA5, 0x21, 0xFB, 0xBD, 0x72, 0xC3, 0x45}
	if key != want {
		t.Fatalf("key mismatch: got %X want %X", key, want)
	}

	if _, err := (NetworkConfig{Key: "zzzz"}).ParsedKey(); err == nil {
		t.Fatalf("expected error for non-hex key")
	}
	if _, err := (NetworkConfig{Key: "B9A5"}).ParsedKey(); err == nil {
		t.Fatalf("expected error for short key")
	}
}

func TestValidateRejectsBadInput(t *testing.T) {
	base := Default()
	base.Connection.SerialPort = "/dev/ttyUSB0"

	cases := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"zero baud", func(c *AppConfig) { c.Connection.SerialBaud = 0 }},
		{"bad network key", func(c *AppConfig) { c.Networks[0].Key = "nope" }},
		{"no channels", func(c *AppConfig) { c.Channels = nil }},
		{"unknown channel type", func(c *AppConfig) { c.Channels[0].Type = "wat" }},
		{"empty slope range", func(c *AppConfig) { c.HeadUnit.MinSlopePercent = 30 }},
	}
	for _, tc := range cases {
		cfg := base
		cfg.Networks = append([]NetworkConfig(nil), base.Networks...)
		cfg.Channels = append([]ChannelConfig(nil), base.Channels...)
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestManagerOptionsMapping(t *testing.T) {
	timeout := uint8(10)
	cfg := Default()
	cfg.Connection.SerialPort = "/dev/ttyUSB0"
	cfg.Connection.SkipReset = true
	cfg.Channels = []ChannelConfig{{
		Number:           2,
		Type:             "master",
		DeviceNumber:     0x1234,
		DeviceType:       0x53,
		TransmissionType: 0x05,
		RFFrequency:      66,
		Period:           4096,
		Network:          0,
		SearchTimeout:    &timeout,
	}}

	opts, err := cfg.ManagerOptions()
	if err != nil {
		t.Fatalf("ManagerOptions: %v", err)
	}
	if !opts.SkipReset {
		t.Fatalf("SkipReset must carry over")
	}
	if len(opts.Networks) != 1 || opts.Networks[0].Key[0] != 0xB9 {
		t.Fatalf("network mapping mismatch: %+v", opts.Networks)
	}

	channel := opts.Channels[0]
	if channel.Type != ant.ChannelTypeMaster {
		t.Fatalf("channel type mismatch: %v", channel.Type)
	}
	if channel.DeviceNumber != 0x1234 || channel.RFFrequency != 66 || channel.Period != 4096 {
		t.Fatalf("channel mapping mismatch: %+v", channel)
	}
	if channel.SearchTimeout == nil || *channel.SearchTimeout != 10 {
		t.Fatalf("search timeout not mapped: %+v", channel.SearchTimeout)
	}
}

func TestManagerOptionsRejectsUnknownChannelType(t *testing.T) {
	cfg := Default()
	cfg.Channels[0].Type = "wat"
	if _, err := cfg.ManagerOptions(); err == nil {
		t.Fatalf("expected error for unknown channel type")
	}
}
