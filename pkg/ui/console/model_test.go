package console

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func TestHandleViewportMouseWheelUpDisablesFollowLog(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), nil, SessionInfo{})
	m.viewport.Width = 40
	m.viewport.Height = 5
	m.viewport.SetContent(strings.Repeat("line\n", 40))
	m.viewport.GotoBottom()
	m.followLog = true

	previousOffset := m.viewport.YOffset
	handled := m.handleViewportMouse(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelUp})
	if !handled {
		t.Fatal("expected wheel-up mouse event to be handled")
	}
	if m.followLog {
		t.Fatal("expected followLog to be disabled after wheel-up scroll")
	}
	if m.viewport.YOffset >= previousOffset {
		t.Fatalf("expected YOffset to decrease after wheel-up scroll, got %d want < %d", m.viewport.YOffset, previousOffset)
	}
}

func TestHandleViewportMouseWheelDownAtBottomEnablesFollowLog(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), nil, SessionInfo{})
	m.viewport.Width = 40
	m.viewport.Height = 5
	m.viewport.SetContent(strings.Repeat("line\n", 40))
	m.viewport.GotoBottom()

	maxOffset := m.viewport.TotalLineCount() - m.viewport.Height
	m.viewport.SetYOffset(max(0, maxOffset-1))
	m.followLog = false

	handled := m.handleViewportMouse(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown})
	if !handled {
		t.Fatal("expected wheel-down mouse event to be handled")
	}
	if !m.viewport.AtBottom() {
		t.Fatalf("expected viewport to reach bottom, got YOffset=%d", m.viewport.YOffset)
	}
	if !m.followLog {
		t.Fatal("expected followLog to re-enable when wheel-down reaches bottom")
	}
}

func TestHandleViewportMouseIgnoresNonWheelEvents(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), nil, SessionInfo{})
	handled := m.handleViewportMouse(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if handled {
		t.Fatal("expected non-wheel mouse event to be ignored")
	}
}

func TestCheckResultUpdatesCounters(t *testing.T) {
	m := newModel(context.Background(), nil, SessionInfo{ChatID: "7", ChatType: "private", Storage: "memory", SafeMode: true})
	m.isLoading = true

	m.Update(checkResultMsg{verdict: Verdict{Kind: VerdictReply, Handler: "auth", Text: "denied"}})
	m.Update(checkResultMsg{verdict: Verdict{Kind: VerdictDropped, Handler: "dedup", Text: "duplicate"}})
	m.Update(checkResultMsg{err: errors.New("store down")})

	require.False(t, m.isLoading)
	require.Equal(t, "store down", m.lastErr)
	require.Len(t, m.entries, 3)
	require.Contains(t, m.metaLine(), "replies/drops/passes:1/1/0")
	require.Contains(t, m.metaLine(), "chat:7")

	view := m.View()
	require.Contains(t, view, "REPLY · auth")
	require.Contains(t, view, "DROPPED · dedup")
}

func TestEnterRunsCheck(t *testing.T) {
	var got string
	check := func(_ context.Context, input string) (Verdict, error) {
		got = input
		return Verdict{Kind: VerdictPassed}, nil
	}

	m := newModel(context.Background(), check, SessionInfo{})
	m.input.SetValue("  hello ")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.True(t, m.isLoading)
	require.Equal(t, roleSent, m.entries[0].role)
	require.Equal(t, "hello", m.entries[0].content)

	res := checkCmd(context.Background(), check, "hello")()
	require.Equal(t, "hello", got)
	require.Equal(t, checkResultMsg{verdict: Verdict{Kind: VerdictPassed}}, res)
}

func TestIsExitCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "exit", want: true},
		{input: " quit ", want: true},
		{input: ":q", want: true},
		{input: "/EXIT", want: true},
		{input: "hello", want: false},
		{input: "quit now", want: false},
	}

	for _, tt := range tests {
		if got := isExitCommand(tt.input); got != tt.want {
			t.Fatalf("isExitCommand(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
