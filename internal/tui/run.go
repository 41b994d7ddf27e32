package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/user/proxy-relay-go/internal/sink"
)

// Run shows the viewer until the user quits or ctx is done. logCore may be
// nil; otherwise it is attached to the program for the duration of the run.
func Run(ctx context.Context, model Model, buffer *sink.Buffer, logCore *LogCore) error {
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if logCore != nil {
		logCore.SetProgram(program)
		defer logCore.SetProgram(nil)
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go Pump(pumpCtx, buffer, program)

	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("error running tui: %w", err)
	}
	return nil
}
