// Package main provides a plugin that appends every received action to a
// JSON lines file. The file is $GESTUREBOARD_ACTION_LOG or
// ~/.gestureboard/actions.jsonl.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Request represents the input from the plugin executor.
type Request struct {
	ID      string          `json:"id"`
	Session string          `json:"session"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Entry is one line of the log.
type Entry struct {
	Time    time.Time       `json:"time"`
	ID      string          `json:"id"`
	Session string          `json:"session"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	path, err := logPath()
	if err != nil {
		writeResponse(Response{Error: err.Error()})
		return
	}

	entry := Entry{
		Time:    time.Now().UTC(),
		ID:      req.ID,
		Session: req.Session,
		Action:  req.Action,
		Payload: req.Payload,
	}
	if err := appendEntry(path, entry); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("append to %s: %v", path, err)})
		return
	}

	data, _ := json.Marshal(map[string]string{"path": path})
	writeResponse(Response{Success: true, Data: data})
}

func logPath() (string, error) {
	if p := os.Getenv("GESTUREBOARD_ACTION_LOG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".gestureboard", "actions.jsonl"), nil
}

func appendEntry(path string, e Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(e); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}
