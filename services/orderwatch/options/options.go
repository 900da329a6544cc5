// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package options decodes the comma-separated option codes of an order
// (mktOptions) into readable labels.
//
// Labels come from a catalog embedded in the binary. A local override file
// may add codes or replace embedded ones; it uses the same layout as the
// embedded catalog, or a bare code → entry mapping.
package options

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed codes.yaml
var embedded []byte

// excluded are model-line codes that carry no configuration detail.
var excluded = map[string]bool{"MDL3": true, "MDLY": true, "MDLX": true, "MDLS": true}

// modelPattern extracts "Model Y" and an optional "AWD LR" style suffix.
var modelPattern = regexp.MustCompile(`^(Model [YSX3])(?:.*?((?:AWD|RWD) (?:LR|SR|P)))?.*?$`)

var (
	paintPrefixes    = []string{"PP", "PN", "PS", "PA"}
	interiorPrefixes = []string{"IP", "IN", "IW", "IX", "IY"}
)

// Entry describes one option code.
type Entry struct {
	Label    string `yaml:"label"`
	Short    string `yaml:"label_short,omitempty"`
	Category string `yaml:"category,omitempty"`
}

// UnmarshalYAML accepts a mapping with label, label_short and category
// (label_en and label_en_short as fallbacks), or a bare label string.
func (e *Entry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if node.Tag == "!!null" {
			*e = Entry{}
			return nil
		}
		*e = Entry{Label: strings.TrimSpace(node.Value)}
		return nil
	}
	var raw struct {
		Label        string `yaml:"label"`
		LabelEN      string `yaml:"label_en"`
		LabelShort   string `yaml:"label_short"`
		LabelENShort string `yaml:"label_en_short"`
		Category     string `yaml:"category"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*e = Entry{
		Label:    strings.TrimSpace(firstNonEmpty(raw.Label, raw.LabelEN)),
		Short:    strings.TrimSpace(firstNonEmpty(raw.LabelShort, raw.LabelENShort)),
		Category: strings.ToLower(strings.TrimSpace(raw.Category)),
	}
	return nil
}

type catalogFile struct {
	Codes map[string]Entry `yaml:"codes"`
}

// Option is one decoded code. Known is false when the catalog has no
// label for it.
type Option struct {
	Code  string
	Label string
	Known bool
}

// Vehicle is the configuration summary derived from an order's codes.
// Fields are empty when no code supplies them.
type Vehicle struct {
	Model    string
	Paint    string
	Interior string
}

// Lookup resolves option codes. A nil Lookup knows no codes.
//
// # Thread Safety
//
// Safe for concurrent reads once built.
type Lookup struct {
	codes map[string]Entry
}

// New builds a Lookup from entries. Codes are trimmed and upper-cased;
// entries without a label are dropped.
func New(entries map[string]Entry) *Lookup {
	l := &Lookup{codes: make(map[string]Entry, len(entries))}
	l.merge(entries)
	return l
}

func (l *Lookup) merge(entries map[string]Entry) {
	for code, e := range entries {
		if e.Label == "" {
			continue
		}
		l.codes[normalizeCode(code)] = e
	}
}

// LoadEmbedded returns the catalog shipped with the binary.
func LoadEmbedded() (*Lookup, error) {
	entries, err := parse(embedded)
	if err != nil {
		return nil, fmt.Errorf("parse embedded option codes: %w", err)
	}
	return New(entries), nil
}

// Load returns the embedded catalog overlaid with the file at
// overridePath.
//
// # Description
//
// An empty path or a missing file yields the embedded catalog alone. An
// unreadable or malformed override is logged and ignored so a broken
// local file never hides the configuration.
//
// # Outputs
//
//   - *Lookup: Never nil when err is nil.
//   - error: Only when the embedded catalog is broken.
func Load(overridePath string, logger *slog.Logger) (*Lookup, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l, err := LoadEmbedded()
	if err != nil {
		return nil, err
	}
	if overridePath == "" {
		return l, nil
	}

	data, err := os.ReadFile(overridePath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("option code overrides unreadable", "path", overridePath, "error", err)
		}
		return l, nil
	}
	overrides, err := parse(data)
	if err != nil {
		logger.Warn("option code overrides ignored", "path", overridePath, "error", err)
		return l, nil
	}
	l.merge(overrides)
	logger.Debug("option code overrides loaded", "path", overridePath, "count", len(overrides))
	return l, nil
}

func parse(data []byte) (map[string]Entry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if file.Codes != nil {
		return file.Codes, nil
	}
	var flat map[string]Entry
	if err := yaml.Unmarshal(data, &flat); err != nil {
		return nil, err
	}
	return flat, nil
}

// Len returns the number of known codes.
func (l *Lookup) Len() int {
	if l == nil {
		return 0
	}
	return len(l.codes)
}

// Entry returns the catalog entry for code, matched case-insensitively.
func (l *Lookup) Entry(code string) (Entry, bool) {
	if l == nil {
		return Entry{}, false
	}
	e, ok := l.codes[normalizeCode(code)]
	return e, ok
}

// Decode splits a comma-separated option string into sorted, distinct
// codes with their labels. Model-line codes (MDL3, MDLY, MDLX, MDLS) are
// skipped. preferShort selects label_short where the catalog has one.
func (l *Lookup) Decode(optionString string, preferShort bool) []Option {
	seen := make(map[string]bool)
	codes := make([]string, 0)
	for _, part := range strings.Split(optionString, ",") {
		code := normalizeCode(part)
		if code == "" || excluded[code] || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := make([]Option, 0, len(codes))
	for _, code := range codes {
		opt := Option{Code: code}
		if e, ok := l.Entry(code); ok {
			opt.Known = true
			opt.Label = e.Label
			if preferShort && e.Short != "" {
				opt.Label = e.Short
			}
		}
		out = append(out, opt)
	}
	return out
}

// Describe derives model, paint and interior from an option string.
//
// Categorised codes win; uncategorised codes fall back to their prefix
// (PP/PN/PS/PA for paint, IP/IN/IW/IX/IY for interior). A model label
// such as "Model Y Long Range Dual Motor - AWD LR" becomes
// "Model Y - AWD LR".
func (l *Lookup) Describe(optionString string) Vehicle {
	var v Vehicle
	for _, opt := range l.Decode(optionString, false) {
		if !opt.Known {
			continue
		}
		e, _ := l.Entry(opt.Code)
		desc := strings.TrimSpace(opt.Label)
		if desc == "" {
			continue
		}

		switch e.Category {
		case "paints":
			v.Paint = cleanPaint(desc)
		case "interiors", "interior", "seats":
			v.Interior = desc
		case "":
			if v.Paint == "" && hasAnyPrefix(opt.Code, paintPrefixes) {
				v.Paint = desc
			}
			if v.Interior == "" && hasAnyPrefix(opt.Code, interiorPrefixes) {
				v.Interior = desc
			}
		}

		if e.Category == "models" || e.Category == "model" || (strings.Contains(desc, "Model") && len(desc) > 10) {
			if m := modelPattern.FindStringSubmatch(desc); m != nil {
				if m[2] != "" {
					v.Model = m[1] + " - " + m[2]
				} else {
					v.Model = desc
				}
			}
		}
	}
	return v
}

func cleanPaint(desc string) string {
	desc = strings.ReplaceAll(desc, "Metallic", "")
	desc = strings.ReplaceAll(desc, "Multi-Coat", "")
	return strings.Join(strings.Fields(desc), " ")
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
