package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/unkn0wn-root/shapecodec"
)

func runHarness(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestAllScenariosPass(t *testing.T) {
	out, logs, err := runHarness(t)
	if err != nil {
		t.Fatalf("run: %v\n%s\n%s", err, out, logs)
	}
	want := len(scenarios())
	if !strings.Contains(out, "scenarios passed") || strings.Contains(out, "FAIL") {
		t.Fatalf("unexpected report:\n%s", out)
	}
	if !strings.Contains(out, fmt.Sprintf("%d/%d", want, want)) {
		t.Fatalf("expected %d/%d in report:\n%s", want, want, out)
	}
}

func TestScenarioEncodings(t *testing.T) {
	want := map[string]string{
		"option":              "01 00",
		"unit":                "00",
		"unit_struct":         "00",
		"unit_variant":        "01 00 00 00 00",
		"newtype":             "00 00 00 00",
		"newtype_variant":     "05 00 00 00 00 00 00 00 00",
		"seq":                 "10 00 00 00 00 00 00 00 01 00 00 00 02 00 00 00 03 00 00 00",
		"tuple":               "08 00 00 00 00 00 00 00 01 00 00 00",
		"tuple_struct":        "05 00 00 00 00 01 00 00 00",
		"tuple_variant":       "06 00 00 00 01 00 01 00 00 00",
		"tuple_variant_unit":  "01 00 00 00 00",
		"map":                 "02 00 00 00 00 01",
		"struct":              "05 00 00 00 00 01 00 00 00",
		"struct_variant":      "06 00 00 00 00 00 01 00 00 00",
		"struct_variant_unit": "01 00 00 00 01",
	}
	opts := shapecodec.Options{}
	h := &harness{enc: shapecodec.NewEncoder(opts), dec: shapecodec.NewDecoder(opts), opts: opts}
	for _, s := range scenarios() {
		res := s.run(context.Background(), h)
		if res.err != nil {
			t.Fatalf("%s: %v", s.name, res.err)
		}
		exp, ok := want[s.name]
		if !ok {
			if res.encoded != nil {
				t.Fatalf("%s: rejection produced bytes % x", s.name, res.encoded)
			}
			continue
		}
		if got := fmt.Sprintf("% x", res.encoded); got != exp {
			t.Fatalf("%s: got %s want %s", s.name, got, exp)
		}
	}
}

func TestHexAndCompareColumns(t *testing.T) {
	out, _, err := runHarness(t, "--run", "struct,text", "--hex", "--compare")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, s := range []string{"CBOR", "MSGPACK", "JSON", "BYTES", "05 00 00 00 00 01 00 00 00", "2/2 scenarios passed"} {
		if !strings.Contains(out, s) {
			t.Fatalf("report lacks %q:\n%s", s, out)
		}
	}
}

func TestStoreBackedRun(t *testing.T) {
	for _, name := range []string{"bigcache", "ristretto"} {
		t.Run(name, func(t *testing.T) {
			out, logs, err := runHarness(t, "--store", name)
			if err != nil {
				t.Fatalf("run: %v\n%s\n%s", err, out, logs)
			}
		})
	}
}

func TestBadInvocations(t *testing.T) {
	cases := [][]string{
		{"--run", "nope"},
		{"--store", "memcached"},
		{"--store", "redis", "--redis-addr", "127.0.0.1:1"},
		{"stray"},
		{"--no-such-flag"},
	}
	for _, args := range cases {
		if _, _, err := runHarness(t, args...); err == nil || errors.Is(err, errScenariosFailed) {
			t.Fatalf("%v: expected usage error, got %v", args, err)
		}
	}
	if _, stderr, err := runHarness(t, "--help"); err != nil || !strings.Contains(stderr, "Usage:") {
		t.Fatalf("--help: err=%v stderr=%q", err, stderr)
	}
}

func TestFailuresExitNonZero(t *testing.T) {
	var out bytes.Buffer
	results := []result{
		{name: "good", encoded: []byte{0}},
		{name: "bad", err: errors.New("mismatch")},
	}
	err := report(&out, results, config{})
	if !errors.Is(err, errScenariosFailed) {
		t.Fatalf("expected errScenariosFailed, got %v", err)
	}
	if !strings.Contains(out.String(), "FAIL") || !strings.Contains(out.String(), "1/2 scenarios passed") {
		t.Fatalf("unexpected report:\n%s", out.String())
	}
}

func TestRejectionScenarioCatchesUnexpectedSuccess(t *testing.T) {
	opts := shapecodec.Options{}
	h := &harness{enc: shapecodec.NewEncoder(opts), dec: shapecodec.NewDecoder(opts), opts: opts}
	res := rejects("u8", uint8(1), shapecodec.ErrUnsupportedType).run(context.Background(), h)
	if res.err == nil {
		t.Fatalf("expected failure when a supported value is expected to be rejected")
	}
}
