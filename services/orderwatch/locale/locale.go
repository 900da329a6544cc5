// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package locale translates user-facing strings. English strings are the
// message ids; a locale without a translation for an id falls back to the
// base locale and then to the id itself.
package locale

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the locale every other catalog falls back to.
const BaseLocale = "en-US"

// ErrNoBaseLocale is returned when the loaded catalogs lack BaseLocale.
var ErrNoBaseLocale = errors.New("base locale not defined")

// Translator translates message ids.
type Translator interface {
	// T returns the translation of text, or text itself.
	T(text string) string
	// Tf translates format and then formats it with args.
	Tf(format string, args ...any) string
}

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

//go:embed locales/*.yaml
var embedded embed.FS

// Bundle holds the messages of every loaded locale.
type Bundle struct {
	locales map[string]map[string]string
	tags    []language.Tag
	matcher language.Matcher
	formats *catalog.Builder
}

// LoadEmbedded loads the catalogs shipped with the binary.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embedded)
}

// MustLoadEmbedded is LoadEmbedded for package initialisation; the embedded
// catalogs are fixed at build time.
func MustLoadEmbedded() *Bundle {
	b, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	return b
}

// LoadFromFS loads every locales/*.yaml file in fsys.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	sort.Strings(paths)

	b := &Bundle{locales: make(map[string]map[string]string)}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := b.add(p, file); err != nil {
			return nil, err
		}
	}
	if _, ok := b.locales[BaseLocale]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoBaseLocale, BaseLocale)
	}

	// The base locale goes first so the matcher falls back to it.
	b.tags = []language.Tag{language.MustParse(BaseLocale)}
	for _, name := range b.Locales() {
		if name != BaseLocale {
			b.tags = append(b.tags, language.MustParse(name))
		}
	}
	b.matcher = language.NewMatcher(b.tags)

	b.formats = catalog.NewBuilder(catalog.Fallback(b.tags[0]))
	for _, name := range b.Locales() {
		tag := language.MustParse(name)
		for id, msg := range b.locales[name] {
			if msg == "" {
				continue
			}
			if err := b.formats.SetString(tag, id, msg); err != nil {
				return nil, fmt.Errorf("catalog %s: message %q: %w", name, id, err)
			}
		}
	}
	return b, nil
}

func (b *Bundle) add(p string, file catalogFile) error {
	name := strings.TrimSpace(file.Locale)
	fromPath := strings.TrimSuffix(path.Base(p), path.Ext(p))
	if name == "" {
		return fmt.Errorf("catalog %s: locale is required", p)
	}
	if name != fromPath {
		return fmt.Errorf("catalog %s: locale %q must match file name %q", p, name, fromPath)
	}
	if _, err := language.Parse(name); err != nil {
		return fmt.Errorf("catalog %s: %w", p, err)
	}
	if _, exists := b.locales[name]; exists {
		return fmt.Errorf("catalog %s: locale %q defined twice", p, name)
	}
	messages := make(map[string]string, len(file.Messages))
	for k, v := range file.Messages {
		messages[k] = v
	}
	b.locales[name] = messages
	return nil
}

// Locales returns the loaded locale names, sorted.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.locales))
	for name := range b.locales {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Catalog returns a Translator for the loaded locale that best matches
// requested. An empty or unparsable request yields the base locale.
func (b *Bundle) Catalog(requested string) *Catalog {
	tag := b.tags[0]
	if want, err := language.Parse(Normalize(requested)); err == nil {
		_, idx, conf := b.matcher.Match(want)
		if conf != language.No {
			tag = b.tags[idx]
		}
	}
	name := tag.String()

	return &Catalog{
		locale:   name,
		messages: b.locales[name],
		base:     b.locales[BaseLocale],
		printer:  message.NewPrinter(tag, message.Catalog(b.formats)),
	}
}

// Catalog is the Translator for one locale.
type Catalog struct {
	locale   string
	messages map[string]string
	base     map[string]string
	printer  *message.Printer
}

// Locale returns the name of the selected locale.
func (c *Catalog) Locale() string { return c.locale }

// T implements Translator.
func (c *Catalog) T(text string) string {
	if msg, ok := c.messages[text]; ok && msg != "" {
		return msg
	}
	if msg, ok := c.base[text]; ok && msg != "" {
		return msg
	}
	return text
}

// Tf implements Translator.
func (c *Catalog) Tf(format string, args ...any) string {
	return c.printer.Sprintf(format, args...)
}

// Identity returns every message id untranslated.
type Identity struct{}

func (Identity) T(text string) string { return text }

func (Identity) Tf(format string, args ...any) string { return fmt.Sprintf(format, args...) }

// Normalize turns a POSIX locale value such as "de_DE.UTF-8" into a BCP 47
// tag such as "de-DE". "C" and "POSIX" normalize to "".
func Normalize(value string) string {
	value = strings.TrimSpace(value)
	if i := strings.IndexAny(value, ".@"); i >= 0 {
		value = value[:i]
	}
	if value == "C" || value == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(value, "_", "-")
}

// FromEnvironment returns the first non-empty locale setting among
// LC_ALL, LC_MESSAGES and LANG, normalized.
func FromEnvironment() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := Normalize(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}
