// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output for scripting.
package cli

import (
	"encoding/json"
	"io"
	"time"
)

// JSONResponse is the response envelope for --json output.
type JSONResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Error     *string     `json:"error"`
	Timestamp string      `json:"timestamp"`
	Command   string      `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// VersionData is the data for "parley version --json".
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// ModelData is one catalog entry for "parley models --json".
type ModelData struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ChatPath     string `json:"chat_path"`
	ContinuePath string `json:"continue_path"`
	Current      bool   `json:"current"`
}

// SettingData is one saved setting for "parley settings show --json".
type SettingData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Saved bool   `json:"saved"`
}

// AskData is the data for "parley ask --json".
type AskData struct {
	Model    string `json:"model"`
	Endpoint string `json:"endpoint"`
	Reply    string `json:"reply"`
	Millis   int64  `json:"duration_ms"`
}
