package redactlog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestHandlerRedactsSensitiveAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(Wrap(slog.NewJSONHandler(&buf, nil)))
	logger.Info("import",
		"sender_id", "station-a",
		"envelope_id", "abc-123",
		"signing_key", "super secret bytes",
		"passphrase", "hunter2",
	)

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if payload["sender_id"] != "station-a" || payload["envelope_id"] != "abc-123" {
		t.Fatalf("audit fields must stay readable: %v", payload)
	}
	if payload["signing_key"] != redactedValue {
		t.Fatalf("key material leaked: %v", payload["signing_key"])
	}
	if payload["passphrase"] != redactedValue {
		t.Fatalf("passphrase leaked: %v", payload["passphrase"])
	}
}

func TestHandlerKeepsFingerprint(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(Wrap(slog.NewJSONHandler(&buf, nil)))
	logger.Info("trust added", "fingerprint", "aa:bb:cc")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if payload["fingerprint"] != "aa:bb:cc" {
		t.Fatalf("fingerprint should not be redacted: %v", payload)
	}
}

func TestHandlerRedactsWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(Wrap(slog.NewJSONHandler(&buf, nil))).With("mnemonic", "twelve words")
	logger.Info("boot")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if payload["mnemonic"] != redactedValue {
		t.Fatalf("mnemonic leaked through WithAttrs: %v", payload)
	}
}
