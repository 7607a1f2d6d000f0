// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultSpeechLanguage is the language tag used when none is configured.
const DefaultSpeechLanguage = "en-US"

// SpeechLanguage is a language offered in the speech language picker.
type SpeechLanguage struct {
	Tag         string
	DisplayName string
}

// speechLanguages are the languages offered by default. Any other valid
// BCP 47 tag is still accepted by ParseSpeechLanguage.
var speechLanguages = []SpeechLanguage{
	{Tag: "en-US", DisplayName: "English (US)"},
	{Tag: "es-ES", DisplayName: "Español (ES)"},
	{Tag: "ja-JP", DisplayName: "日本語 (JP)"},
}

// SpeechLanguages returns the built-in speech languages.
func SpeechLanguages() []SpeechLanguage {
	out := make([]SpeechLanguage, len(speechLanguages))
	copy(out, speechLanguages)
	return out
}

// ParseSpeechLanguage validates a BCP 47 tag and returns its canonical form
// (e.g. "es-es" becomes "es-ES").
func ParseSpeechLanguage(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", fmt.Errorf("empty language tag")
	}
	t, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("invalid language tag %q: %w", tag, err)
	}
	return t.String(), nil
}

// LanguageDisplayName returns a human-readable name for a language tag.
// Built-in languages use their picker label; others use the tag's
// self-name (e.g. "français").
func LanguageDisplayName(tag string) string {
	for _, l := range speechLanguages {
		if strings.EqualFold(l.Tag, tag) {
			return l.DisplayName
		}
	}
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.Self.Name(t); name != "" {
		return name
	}
	return tag
}
