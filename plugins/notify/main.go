// Package main provides a desktop notification plugin. It announces
// selected pieces and moves through osascript on macOS and notify-send
// elsewhere.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
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

// Payload is the action record sent with every request.
type Payload struct {
	Type       string  `json:"type"`
	Position   *[2]int `json:"position,omitempty"`
	From       *[2]int `json:"from,omitempty"`
	To         *[2]int `json:"to,omitempty"`
	Confidence float64 `json:"confidence"`
}

func main() {
	// Read request from stdin
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	var p Payload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to parse payload: %v", err))
		return
	}

	msg, ok := message(req.Action, p)
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	if err := notify("Gestureboard", msg); err != nil {
		writeErrorResponse(fmt.Sprintf("notify failed: %v", err))
		return
	}

	writeSuccessResponse()
}

// message formats the notification text for an action.
func message(action string, p Payload) (string, bool) {
	switch action {
	case "select_piece":
		if p.Position == nil {
			return "", false
		}
		return fmt.Sprintf("Selected %s", square(*p.Position)), true
	case "move_piece":
		if p.From == nil || p.To == nil {
			return "", false
		}
		return fmt.Sprintf("Move %s to %s", square(*p.From), square(*p.To)), true
	case "cancel":
		return "Selection cancelled", true
	default:
		return "", false
	}
}

// square names a cell in algebraic form, with row 0 as rank 8.
func square(c [2]int) string {
	return fmt.Sprintf("%c%d", 'a'+c[1], 8-c[0])
}

func notify(title, text string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" {
		script := fmt.Sprintf(`display notification %q with title %q`, text, title)
		cmd = exec.Command("osascript", "-e", script)
	} else {
		cmd = exec.Command("notify-send", title, text)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	resp := Response{
		Success: true,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
