package sink

import (
	"strings"

	"github.com/user/proxy-relay-go/internal/models"
)

// TimestampLayout renders capture times like 2024-05-01 10:00:00.123456.
const TimestampLayout = "2006-01-02 15:04:05.000000"

const rule = "----------"

// Separator returns the line printed above each record.
func Separator(r models.LogRecord) string {
	return rule + " [" + r.CapturedAt.Format(TimestampLayout) + "] " + rule
}

// Format renders one record for display: the separator line, then the text.
func Format(r models.LogRecord) string {
	return Separator(r) + "\n" + r.Text
}

// FormatAll renders records one after another, each on its own block.
func FormatAll(records []models.LogRecord) string {
	var sb strings.Builder
	for i, r := range records {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(Format(r))
	}
	return sb.String()
}
