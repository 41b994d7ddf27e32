package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/user/proxy-relay-go/internal/sink"
)

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Pump forwards records from buffer to the program until ctx is done. Bursts
// are batched into one RecordsMsg so a busy relay does not flood the UI.
func Pump(ctx context.Context, buffer *sink.Buffer, program Sender) {
	notify, cancel := buffer.Subscribe()
	defer cancel()

	var last uint64
	for {
		if records := buffer.Since(last, 0); len(records) > 0 {
			last = records[len(records)-1].Seq
			program.Send(RecordsMsg(records))
		}

		select {
		case <-ctx.Done():
			return
		case <-notify:
		}
	}
}
