package tray

import (
	"testing"

	"github.com/ayusman/gestureboard/internal/action"
	"github.com/ayusman/gestureboard/internal/board"
)

func TestActionLabel(t *testing.T) {
	a := board.Cell{Row: 2, Col: 1}
	b := board.Cell{Row: 3, Col: 2}

	tests := []struct {
		name string
		rec  action.Record
		want string
	}{
		{"hover", action.ToRecord(action.Hover{Cell: a}, 0.9), "hover 2,1"},
		{"select", action.ToRecord(action.Select{Cell: a}, 0.9), "select 2,1"},
		{"move", action.ToRecord(action.Move{From: a, To: b}, 0.9), "move 2,1 → 3,2"},
		{"cancel", action.ToRecord(action.Cancel{}, 0.9), "cancel"},
		{"select without cell", action.Record{Type: action.KindSelect}, "select"},
		{"move without cells", action.Record{Type: action.KindMove}, "move"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ActionLabel(tt.rec); got != tt.want {
				t.Errorf("ActionLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTray_Toggle(t *testing.T) {
	tr := New()
	if !tr.IsEnabled() {
		t.Fatal("expected tray enabled by default")
	}

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })

	tr.handleToggle()
	tr.handleToggle()

	if len(got) != 2 || got[0] != false || got[1] != true {
		t.Errorf("toggle callbacks = %v, want [false true]", got)
	}
	if !tr.IsEnabled() {
		t.Error("expected tray enabled after two toggles")
	}
}

func TestTray_OpenBoard(t *testing.T) {
	tr := New()
	tr.handleOpenBoard()

	called := false
	tr.OnOpenBoard(func() { called = true })
	tr.handleOpenBoard()
	if !called {
		t.Error("expected open board callback")
	}
}

func TestTray_SetLastAction(t *testing.T) {
	tr := New()
	if tr.LastAction() != "" {
		t.Fatalf("LastAction() = %q, want empty", tr.LastAction())
	}
	tr.SetLastAction(action.ToRecord(action.Cancel{}, 1))
	if tr.LastAction() != "cancel" {
		t.Errorf("LastAction() = %q, want cancel", tr.LastAction())
	}
}

func TestBrowserCommand(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"darwin", "open"},
		{"windows", "rundll32"},
		{"linux", "xdg-open"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args := browserCommand(tt.goos, "http://localhost:8080")
			if name != tt.want {
				t.Errorf("command = %s, want %s", name, tt.want)
			}
			if args[len(args)-1] != "http://localhost:8080" {
				t.Errorf("args = %v, want the url last", args)
			}
		})
	}
}
