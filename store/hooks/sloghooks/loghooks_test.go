package sloghooks

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func newJSONLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestEventsAreLoggedWithRedactedKeys(t *testing.T) {
	var buf bytes.Buffer
	h := New(newJSONLogger(&buf), Options{})
	h.SelfHeal("shape:ns:secret", "corrupt")
	h.ProviderSetRejected("shape:ns:secret")
	h.EntryTooLarge("shape:ns:secret", 4096)

	recs := records(t, &buf)
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	wantMsg := []string{"shapecodec.self_heal", "shapecodec.provider_set_rejected", "shapecodec.entry_too_large"}
	wantLvl := []string{"DEBUG", "WARN", "WARN"}
	for i, r := range recs {
		if r["msg"] != wantMsg[i] || r["level"] != wantLvl[i] {
			t.Fatalf("record %d = %v", i, r)
		}
		key, _ := r["key"].(string)
		if len(key) != 16 || strings.Contains(key, "secret") {
			t.Fatalf("key not redacted: %q", key)
		}
	}
	if recs[0]["reason"] != "corrupt" || recs[2]["size"] != float64(4096) {
		t.Fatalf("unexpected attrs: %v / %v", recs[0], recs[2])
	}
}

func TestSelfHealSampling(t *testing.T) {
	var buf bytes.Buffer
	h := New(newJSONLogger(&buf), Options{SelfHealEvery: 5, Redact: func(k string) string { return k }})
	for i := 0; i < 12; i++ {
		h.SelfHeal("k", "corrupt")
	}
	recs := records(t, &buf)
	if len(recs) != 2 {
		t.Fatalf("expected 2 sampled records, got %d", len(recs))
	}
	if recs[0]["key"] != "k" {
		t.Fatalf("custom redactor not used: %v", recs[0])
	}
}

func TestNilLogger(t *testing.T) {
	h := New(nil, Options{})
	h.SelfHeal("k", "corrupt")
	h.ProviderSetRejected("k")
	h.EntryTooLarge("k", 1)
}
