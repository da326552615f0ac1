// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"
)

// =============================================================================
// Mode Tests
// =============================================================================

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"rich", ModeRich, true},
		{"Plain", ModePlain, true},
		{" machine ", ModeMachine, true},
		{"fancy", ModeRich, false},
	}
	for _, tt := range tests {
		got, ok := ParseMode(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseMode(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDetectMode_NonFile(t *testing.T) {
	if got := DetectMode(&bytes.Buffer{}); got != ModePlain {
		t.Errorf("expected ModePlain for a buffer, got %v", got)
	}
}

// =============================================================================
// Printer Tests
// =============================================================================

func TestPrinter_Machine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeMachine)

	p.Title("ignored")
	p.Success("done")
	p.Warning("careful")
	p.Error("failed")
	p.KeyValue("api", "v4")

	want := "OK: done\nWARN: careful\nERROR: failed\napi\tv4\n"
	if buf.String() != want {
		t.Errorf("unexpected output:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModePlain)

	p.Title("Registry")
	p.Success("done")
	p.KeyValue("api", "v3")

	out := buf.String()
	for _, want := range []string{"Registry\n", "✓ done\n", "api: v3\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output %q", want, out)
		}
	}
	if p.Mode() != ModePlain {
		t.Errorf("expected ModePlain, got %v", p.Mode())
	}
}

func TestPrinter_TableMachine(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, ModeMachine).Table(
		[]string{"SPAN", "FUNCTION"},
		[][]string{{"schema.get", "get"}, {"gql.query.raw", "raw"}},
	)

	want := "schema.get\tget\ngql.query.raw\traw\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestPrinter_TablePlainAligned(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, ModePlain).Table(
		[]string{"SPAN", "FUNCTION"},
		[][]string{{"schema.get", "get"}, {"x", "raw"}},
	)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if lines[0] != "SPAN        FUNCTION" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[2] != "x           raw" {
		t.Errorf("unexpected row %q", lines[2])
	}
}

func TestPrinter_TableRich(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, ModeRich).Table([]string{"SPAN"}, [][]string{{"schema.get"}})

	if !strings.Contains(buf.String(), "schema.get") {
		t.Errorf("expected row in rich table, got %q", buf.String())
	}
}
