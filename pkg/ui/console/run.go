// Package console is an interactive terminal front end that feeds typed
// messages through the pipeline and shows each verdict.
package console

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// VerdictKind is how one pipeline run ended.
type VerdictKind int

const (
	VerdictPassed VerdictKind = iota
	VerdictReply
	VerdictDropped
)

// Verdict is the displayable outcome of one run. Text holds the reply for
// VerdictReply and the drop reason for VerdictDropped.
type Verdict struct {
	Kind    VerdictKind
	Handler string
	Text    string
}

// CheckFunc runs one typed input through the pipeline.
type CheckFunc func(ctx context.Context, input string) (Verdict, error)

// SessionInfo is shown in the console header.
type SessionInfo struct {
	ChatID   string
	ChatType string
	Storage  string
	SafeMode bool
}

func Run(ctx context.Context, checkFn CheckFunc, info SessionInfo) error {
	program := tea.NewProgram(newModel(ctx, checkFn, info), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := program.Run()
	return err
}
