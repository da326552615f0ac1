// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the weaviatetrace CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title   lipgloss.Style
	Key     lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Border  lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Key:     lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorTealBright),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Header:  lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright).Padding(0, 1),
	Cell:    lipgloss.NewStyle().Padding(0, 1),
	Border:  lipgloss.NewStyle().Foreground(ColorTealDeep),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
)

// Mode selects how much styling a Printer applies.
type Mode int

const (
	// ModeRich uses colors, icons and bordered tables.
	ModeRich Mode = iota
	// ModePlain uses icons and aligned columns without colors.
	ModePlain
	// ModeMachine writes stable, tab-separated lines for scripts.
	ModeMachine
)

// ParseMode maps "rich", "plain" and "machine" to a Mode. Anything else
// returns ok=false.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rich":
		return ModeRich, true
	case "plain":
		return ModePlain, true
	case "machine":
		return ModeMachine, true
	default:
		return ModeRich, false
	}
}

// DetectMode returns ModeRich for terminals and ModePlain otherwise.
func DetectMode(w io.Writer) Mode {
	f, ok := w.(*os.File)
	if !ok {
		return ModePlain
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return ModeRich
	}
	return ModePlain
}

// Printer writes styled CLI output.
//
// # Thread Safety
//
// A Printer is not safe for concurrent use; each command owns one.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter creates a Printer writing to w in the given mode.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	return &Printer{w: w, mode: mode}
}

// Mode returns the printer's mode.
func (p *Printer) Mode() Mode { return p.mode }

// Title prints a styled title. Machine mode prints nothing.
func (p *Printer) Title(text string) {
	switch p.mode {
	case ModeMachine:
		return
	case ModeRich:
		fmt.Fprintln(p.w, Styles.Title.Render(text))
	default:
		fmt.Fprintln(p.w, text)
	}
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) { p.status("OK", IconSuccess, Styles.Success, text) }

// Warning prints a warning message
func (p *Printer) Warning(text string) { p.status("WARN", IconWarning, Styles.Warning, text) }

// Error prints an error message
func (p *Printer) Error(text string) { p.status("ERROR", IconError, Styles.Error, text) }

func (p *Printer) status(label string, icon Icon, style lipgloss.Style, text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "%s: %s\n", label, text)
	case ModePlain:
		fmt.Fprintf(p.w, "%s %s\n", icon, text)
	default:
		fmt.Fprintf(p.w, "%s %s\n", style.Render(string(icon)), style.Render(text))
	}
}

// KeyValue prints one "key: value" line.
func (p *Printer) KeyValue(key, value string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "%s\t%s\n", key, value)
	case ModePlain:
		fmt.Fprintf(p.w, "%s: %s\n", key, value)
	default:
		fmt.Fprintf(p.w, "%s %s\n", Styles.Key.Render(key+":"), value)
	}
}

// Table prints rows under headers. Machine mode writes tab-separated
// rows without the header line.
func (p *Printer) Table(headers []string, rows [][]string) {
	switch p.mode {
	case ModeMachine:
		for _, row := range rows {
			fmt.Fprintln(p.w, strings.Join(row, "\t"))
		}
	case ModePlain:
		p.plainTable(headers, rows)
	default:
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(Styles.Border).
			Headers(headers...).
			Rows(rows...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return Styles.Header
				}
				return Styles.Cell
			})
		fmt.Fprintln(p.w, t.String())
	}
}

func (p *Printer) plainTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	line := func(cells []string) {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
		}
		fmt.Fprintln(p.w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	line(headers)
	for _, row := range rows {
		line(row)
	}
}
