package tui

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap/zapcore"
)

// noticeBacklog bounds the notices waiting for the program. Write drops
// entries beyond it rather than wait for the UI.
const noticeBacklog = 64

// LogCore is a zap core that shows log entries in the viewer's footer while
// the alt screen hides the console. Entries logged before SetProgram, or
// after it is reset to nil, are dropped. Write never blocks on the program.
type LogCore struct {
	zapcore.LevelEnabler
	target *atomic.Pointer[senderRef]
	fields []zapcore.Field
}

type senderRef struct {
	notices chan tea.Msg
	stop    chan struct{}
}

func (ref *senderRef) deliver(sender Sender) {
	for {
		select {
		case <-ref.stop:
			return
		case msg := <-ref.notices:
			sender.Send(msg)
		}
	}
}

// NewLogCore creates a core for entries at or above level.
func NewLogCore(level zapcore.LevelEnabler) *LogCore {
	return &LogCore{
		LevelEnabler: level,
		target:       &atomic.Pointer[senderRef]{},
	}
}

// SetProgram routes entries to sender through a bounded queue drained by
// one goroutine. Cores derived with With share the target. Pass nil to
// detach.
func (c *LogCore) SetProgram(sender Sender) {
	var ref *senderRef
	if sender != nil {
		ref = &senderRef{
			notices: make(chan tea.Msg, noticeBacklog),
			stop:    make(chan struct{}),
		}
		go ref.deliver(sender)
	}
	if old := c.target.Swap(ref); old != nil {
		close(old.stop)
	}
}

// With implements zapcore.Core.
func (c *LogCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

// Check implements zapcore.Core.
func (c *LogCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write implements zapcore.Core.
func (c *LogCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ref := c.target.Load()
	if ref == nil {
		return nil
	}
	msg := noticeMsg(formatNotice(ent, append(append([]zapcore.Field(nil), c.fields...), fields...)))
	select {
	case ref.notices <- msg:
	default:
	}
	return nil
}

// Sync implements zapcore.Core.
func (c *LogCore) Sync() error { return nil }

// formatNotice renders "LEVEL name: message (k=v, ...)".
func formatNotice(ent zapcore.Entry, fields []zapcore.Field) string {
	var sb strings.Builder
	sb.WriteString(ent.Level.CapitalString())
	if ent.LoggerName != "" {
		sb.WriteString(" ")
		sb.WriteString(ent.LoggerName)
	}
	sb.WriteString(": ")
	sb.WriteString(ent.Message)

	if len(fields) == 0 {
		return sb.String()
	}

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, enc.Fields[k]))
	}
	sb.WriteString(" (")
	sb.WriteString(strings.Join(parts, ", "))
	sb.WriteString(")")
	return sb.String()
}
