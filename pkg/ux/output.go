// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the orderwatch CLI.
package ux

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Added    lipgloss.Style
	Removed  lipgloss.Style
	Changed  lipgloss.Style
	Box      lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle: lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:     lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(ColorSlate),
	Success:  lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
	Error:    lipgloss.NewStyle().Foreground(ColorError),
	Added:    lipgloss.NewStyle().Foreground(ColorSuccess),
	Removed:  lipgloss.NewStyle().Foreground(ColorError),
	Changed:  lipgloss.NewStyle().Foreground(ColorWarning),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// Printer writes personality-aware output. Machine level writes plain
// text with no styling.
type Printer struct {
	Out   io.Writer
	Err   io.Writer
	Level PersonalityLevel
}

// NewPrinter returns a Printer on stdout/stderr at the current level.
func NewPrinter() *Printer {
	return &Printer{Out: os.Stdout, Err: os.Stderr, Level: GetPersonalityLevel()}
}

func (p *Printer) machine() bool {
	return p.Level == PersonalityMachine
}

// Style renders text with s unless the level is machine.
func (p *Printer) Style(s lipgloss.Style, text string) string {
	if p.machine() {
		return text
	}
	return s.Render(text)
}

// Heading styles a section heading. Usable as a timeline heading func.
func (p *Printer) Heading(text string) string {
	return p.Style(Styles.Title, text)
}

// Title prints a styled title. Full personality boxes it.
func (p *Printer) Title(text string) {
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintln(p.Out, text)
	case PersonalityFull:
		fmt.Fprintln(p.Out, Styles.Box.Render(Styles.Title.Render(text)))
	default:
		fmt.Fprintln(p.Out, Styles.Title.Render(text))
	}
}

// Line prints text unchanged.
func (p *Printer) Line(text string) {
	fmt.Fprintln(p.Out, text)
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(p.Out, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(p.Out, "%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Fprintf(p.Out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(p.Err, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(p.Out, "%s %s\n", IconWarning.Render(), text)
	default:
		fmt.Fprintf(p.Out, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message
func (p *Printer) Error(text string) {
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(p.Err, "ERROR: %s\n", text)
	default:
		fmt.Fprintf(p.Err, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational message
func (p *Printer) Info(text string) {
	if p.machine() {
		fmt.Fprintln(p.Out, text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints secondary text. Nothing is printed at machine level.
func (p *Printer) Muted(text string) {
	if p.machine() {
		return
	}
	fmt.Fprintln(p.Out, Styles.Muted.Render(text))
}

// KeyValue prints one "label: value" line.
func (p *Printer) KeyValue(label, value string) {
	if p.machine() {
		fmt.Fprintf(p.Out, "%s\t%s\n", label, value)
		return
	}
	fmt.Fprintf(p.Out, "  %s %s\n", Styles.Bold.Render(label+":"), value)
}

// Change prints one change line. op is "added", "removed" or anything
// else for a modification.
func (p *Printer) Change(op, text string) {
	var marker string
	var style lipgloss.Style
	switch op {
	case "added":
		marker, style = "+", Styles.Added
	case "removed":
		marker, style = "-", Styles.Removed
	default:
		marker, style = "~", Styles.Changed
	}
	fmt.Fprintf(p.Out, "%s %s\n", p.Style(style, marker), text)
}
