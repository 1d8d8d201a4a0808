package main

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAppendEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "actions.jsonl")

	for _, action := range []string{"select_piece", "move_piece"} {
		e := Entry{
			Time:    time.Now().UTC(),
			ID:      "id-" + action,
			Session: "default",
			Action:  action,
			Payload: json.RawMessage(`{"type":"` + action + `"}`),
		}
		if err := appendEntry(path, e); err != nil {
			t.Fatalf("appendEntry() error = %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var actions []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		actions = append(actions, e.Action)
	}
	if len(actions) != 2 || actions[0] != "select_piece" || actions[1] != "move_piece" {
		t.Errorf("logged actions = %v", actions)
	}
}

func TestLogPath(t *testing.T) {
	t.Setenv("GESTUREBOARD_ACTION_LOG", "/tmp/custom.jsonl")
	path, err := logPath()
	if err != nil || path != "/tmp/custom.jsonl" {
		t.Errorf("logPath() = %s, %v; want /tmp/custom.jsonl", path, err)
	}
}
