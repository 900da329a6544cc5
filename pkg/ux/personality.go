// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// PersonalityEnv overrides the personality level when set.
const PersonalityEnv = "ORDERWATCH_PERSONALITY"

// PersonalityLevel defines the verbosity and richness of CLI output
type PersonalityLevel string

const (
	// PersonalityFull enables colors, icons and boxed headers
	PersonalityFull PersonalityLevel = "full"

	// PersonalityStandard enables colors and icons
	PersonalityStandard PersonalityLevel = "standard"

	// PersonalityMinimal uses icons and basic formatting only
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine outputs plain text suitable for scripting and parsing
	PersonalityMachine PersonalityLevel = "machine"
)

var (
	currentLevel  = PersonalityStandard
	personalityMu sync.RWMutex
)

// GetPersonalityLevel returns the current personality level
func GetPersonalityLevel() PersonalityLevel {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return currentLevel
}

// SetPersonalityLevel updates the personality level
func SetPersonalityLevel(level PersonalityLevel) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentLevel = level
}

// ParsePersonalityLevel converts a string to PersonalityLevel
func ParsePersonalityLevel(s string) PersonalityLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "f":
		return PersonalityFull
	case "standard", "std", "s":
		return PersonalityStandard
	case "minimal", "min", "m":
		return PersonalityMinimal
	case "machine", "quiet", "q":
		return PersonalityMachine
	default:
		return PersonalityStandard
	}
}

// InitPersonality picks the level from, in order: flag (when non-empty),
// ORDERWATCH_PERSONALITY, and the terminal check. Output that is not a
// terminal gets PersonalityMachine.
func InitPersonality(flag string) PersonalityLevel {
	level := PersonalityStandard
	switch {
	case flag != "":
		level = ParsePersonalityLevel(flag)
	case os.Getenv(PersonalityEnv) != "":
		level = ParsePersonalityLevel(os.Getenv(PersonalityEnv))
	case !IsTerminal(os.Stdout):
		level = PersonalityMachine
	}
	SetPersonalityLevel(level)
	return level
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsInteractive returns true if we should show interactive prompts
func IsInteractive() bool {
	return GetPersonalityLevel() != PersonalityMachine && IsTerminal(os.Stdin) && IsTerminal(os.Stdout)
}

// ShouldShowColors returns true if we should use colors
func ShouldShowColors() bool {
	return GetPersonalityLevel() != PersonalityMachine
}
