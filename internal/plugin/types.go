// Package plugin runs external action hooks. A plugin is a directory with a
// plugin.json manifest and an executable that receives each subscribed
// action as JSON on stdin.
package plugin

import (
	"encoding/json"
	"slices"
)

// Manifest describes a plugin and the action kinds it subscribes to.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Actions     []string `json:"actions"`
}

// Request is written to the plugin's stdin.
type Request struct {
	ID      string          `json:"id"`
	Session string          `json:"session"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Subscribes reports whether the plugin wants actions of kind.
func (p *Plugin) Subscribes(kind string) bool {
	return slices.Contains(p.Manifest.Actions, kind)
}
