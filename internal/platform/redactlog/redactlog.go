// Package redactlog wraps a slog.Handler so key material, passphrases and
// payload contents can never leak into the audit log, whatever the call
// site passes.
package redactlog

import (
	"context"
	"log/slog"
	"strings"
)

const redactedValue = "[REDACTED]"

var sensitiveKeyParts = []string{
	"key", "seed", "mnemonic", "passphrase", "password", "secret", "token",
	"payload", "plaintext", "ciphertext", "nonce", "signature",
}

// Fingerprints and ids are exactly what operators need in an audit trail;
// they stay readable even though they contain "print"/"id".
var allowedKeys = map[string]struct{}{
	"fingerprint": {},
	"station_id":  {},
	"sender_id":   {},
	"envelope_id": {},
	"data_type":   {},
}

type Handler struct {
	next slog.Handler
}

func Wrap(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &Handler{next: next}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(redactAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, redactAttr(attr))
	}
	return &Handler{next: h.next.WithAttrs(out)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name)}
}

func redactAttr(attr slog.Attr) slog.Attr {
	key := strings.TrimSpace(attr.Key)
	if isSensitiveKey(strings.ToLower(key)) {
		return slog.String(key, redactedValue)
	}
	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		out := make([]any, 0, len(group))
		for _, a := range group {
			out = append(out, redactAttr(a))
		}
		return slog.Group(key, out...)
	}
	return attr
}

func isSensitiveKey(lowerKey string) bool {
	if _, ok := allowedKeys[lowerKey]; ok {
		return false
	}
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lowerKey, part) {
			return true
		}
	}
	return false
}
