// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
)

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestDefaultCatalog_Paths(t *testing.T) {
	tests := []struct {
		id       string
		endpoint Endpoint
		want     string
	}{
		{"gpt-3.5-turbo", EndpointFresh, "/chat"},
		{"gpt-3.5-turbo", EndpointContinue, "/chat-continue"},
		{"gpt-4", EndpointFresh, "/chat-4"},
		{"gpt-4", EndpointContinue, "/chat-continue-4"},
	}

	c := DefaultCatalog()
	for _, tc := range tests {
		t.Run(tc.id+"/"+tc.endpoint.String(), func(t *testing.T) {
			m, ok := c.Lookup(tc.id)
			if !ok {
				t.Fatalf("Lookup(%q) not found", tc.id)
			}
			if got := m.Path(tc.endpoint); got != tc.want {
				t.Errorf("Path(%v) = %q, want %q", tc.endpoint, got, tc.want)
			}
		})
	}
}

func TestDefaultCatalog_HasDefaultModel(t *testing.T) {
	if !DefaultCatalog().Has(DefaultModelID) {
		t.Errorf("default catalog is missing %q", DefaultModelID)
	}
}

func TestWithBuiltins_OverrideAndExtend(t *testing.T) {
	c, err := WithBuiltins(
		ChatModel{ID: "gpt-4", Name: "Custom 4", ChatPath: "/v2/chat-4", ContinuePath: "/v2/chat-continue-4"},
		ChatModel{ID: "local", ChatPath: "/local", ContinuePath: "/local-continue"},
	)
	if err != nil {
		t.Fatalf("WithBuiltins() error = %v", err)
	}

	ids := c.IDs()
	want := []string{"gpt-3.5-turbo", "gpt-4", "local"}
	if len(ids) != len(want) {
		t.Fatalf("IDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("IDs()[%d] = %q, want %q", i, ids[i], want[i])
		}
	}

	m, _ := c.Lookup("gpt-4")
	if m.ChatPath != "/v2/chat-4" {
		t.Errorf("override not applied, ChatPath = %q", m.ChatPath)
	}

	local, _ := c.Lookup("local")
	if local.DisplayName() != "local" {
		t.Errorf("DisplayName() = %q, want fallback to ID", local.DisplayName())
	}
}

func TestNewCatalog_RejectsInvalidModels(t *testing.T) {
	tests := []struct {
		name  string
		model ChatModel
	}{
		{"missing id", ChatModel{ChatPath: "/a", ContinuePath: "/b"}},
		{"relative chat path", ChatModel{ID: "x", ChatPath: "a", ContinuePath: "/b"}},
		{"relative continue path", ChatModel{ID: "x", ChatPath: "/a", ContinuePath: "b"}},
		{"same paths", ChatModel{ID: "x", ChatPath: "/a", ContinuePath: "/a"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewCatalog(tc.model); err == nil {
				t.Error("NewCatalog() should fail")
			}
		})
	}
}

func TestCatalog_PathsAreDistinct(t *testing.T) {
	paths := DefaultCatalog().Paths()
	if len(paths) != 4 {
		t.Errorf("Paths() = %v, want 4 distinct paths", paths)
	}
}

// =============================================================================
// LANGUAGE TESTS
// =============================================================================

func TestParseSpeechLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"en-US", "en-US", false},
		{"es-es", "es-ES", false},
		{"  ja-JP ", "ja-JP", false},
		{"", "", true},
		{"!!", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseSpeechLanguage(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseSpeechLanguage(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ParseSpeechLanguage(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestLanguageDisplayName_Builtins(t *testing.T) {
	if got := LanguageDisplayName("en-US"); got != "English (US)" {
		t.Errorf("LanguageDisplayName(en-US) = %q", got)
	}
	if got := LanguageDisplayName("ja-jp"); got != "日本語 (JP)" {
		t.Errorf("LanguageDisplayName(ja-jp) = %q", got)
	}
	if got := LanguageDisplayName("fr-FR"); got == "" {
		t.Error("LanguageDisplayName(fr-FR) should not be empty")
	}
}

func TestRoleAndEndpointStrings(t *testing.T) {
	if RoleUser.String() != "user" || RoleAssistant.String() != "assistant" {
		t.Error("unexpected role strings")
	}
	if RoleUser.DisplayName() != "You" {
		t.Errorf("RoleUser.DisplayName() = %q", RoleUser.DisplayName())
	}
	if EndpointFresh.String() != "fresh" || EndpointContinue.String() != "continue" {
		t.Error("unexpected endpoint strings")
	}
}
