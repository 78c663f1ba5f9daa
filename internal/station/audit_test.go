package station

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"medirelay/go-station/internal/envelope"
	"medirelay/go-station/internal/keystore"
	"medirelay/go-station/internal/ledger"
)

func newAuditedStation(t *testing.T, stationID string, sink io.Writer) *Service {
	t.Helper()
	keys, err := keystore.Open(t.TempDir(), "")
	if err != nil {
		t.Fatalf("open keystore: %v", err)
	}
	svc := New(keys, ledger.NewMemory(), Options{
		Logger:     slog.New(slog.NewJSONHandler(sink, nil)),
		Registerer: prometheus.NewRegistry(),
	})
	if _, _, err := svc.InitStation(stationID, "Station "+stationID, false); err != nil {
		t.Fatalf("init station: %v", err)
	}
	return svc
}

// rejectionLogs extracts (level, security) for every envelope-rejection line
// in the sink, in order.
func rejectionLogs(t *testing.T, sink *bytes.Buffer) (levels []string, security []bool) {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader(sink.Bytes()))
	for {
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			break
		}
		msg, _ := rec["msg"].(string)
		switch msg {
		case "envelope rejected", "repeated trust failures from sender",
			"envelope signature verification failed":
		default:
			continue
		}
		level, _ := rec["level"].(string)
		levels = append(levels, level)
		sec, _ := rec["security"].(bool)
		security = append(security, sec)
	}
	return levels, security
}

func TestFailureMonitorBudgetPerSender(t *testing.T) {
	m := newFailureMonitor()
	now := time.Now()
	for i := 0; i < 3; i++ {
		if !m.record("station-x", now) {
			t.Fatalf("failure %d should still be within budget", i+1)
		}
	}
	if m.record("station-x", now) {
		t.Fatal("fourth rapid failure should exceed the budget")
	}
	if !m.record("station-y", now) {
		t.Fatal("budgets are tracked per sender; a different sender starts fresh")
	}
	if !m.record("", now) {
		t.Fatal("an empty sender claim must not consume anyone's budget")
	}
}

func TestRepeatedTrustFailuresEscalateToError(t *testing.T) {
	a := newTestStation(t, "A")
	b := newTestStation(t, "B")
	var sink bytes.Buffer
	c := newAuditedStation(t, "C", &sink)
	exchangeTrust(t, a, b)
	exchangeTrust(t, a, c)

	// Addressed to B, so every import at C is a trust failure claiming A.
	env, err := a.BuildEnvelope("B", "X", []byte(`{}`))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	sink.Reset()
	for i := 0; i < 5; i++ {
		if _, _, err := c.ImportEnvelope(raw); !errors.Is(err, envelope.ErrTrust) {
			t.Fatalf("import %d: expected ErrTrust, got %v", i+1, err)
		}
	}

	levels, security := rejectionLogs(t, &sink)
	wantLevels := []string{"WARN", "WARN", "WARN", "ERROR", "ERROR"}
	if !reflect.DeepEqual(levels, wantLevels) {
		t.Fatalf("log levels over repeated trust failures: got %v, want %v", levels, wantLevels)
	}
	wantSecurity := []bool{false, false, false, true, true}
	if !reflect.DeepEqual(security, wantSecurity) {
		t.Fatalf("security attrs: got %v, want %v", security, wantSecurity)
	}
}

func TestSignatureFailureLogsSecurityEventImmediately(t *testing.T) {
	a := newTestStation(t, "A")
	var sink bytes.Buffer
	b := newAuditedStation(t, "B", &sink)
	exchangeTrust(t, a, b)

	env, err := a.BuildEnvelope("B", "X", []byte(`{}`))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(env.Signature)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	sig[0] ^= 0x01
	env.Signature = base64.RawURLEncoding.EncodeToString(sig)
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	sink.Reset()
	if _, _, err := b.ImportEnvelope(raw); !errors.Is(err, envelope.ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}

	levels, security := rejectionLogs(t, &sink)
	if len(levels) != 1 || levels[0] != "ERROR" {
		t.Fatalf("expected one ERROR line for a signature failure, got %v", levels)
	}
	if !security[0] {
		t.Fatal("signature failures must carry the security attr")
	}
}
