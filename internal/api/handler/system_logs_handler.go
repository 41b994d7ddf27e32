package handler

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// parsedLogEntry is one line of the viewer's own log file.
type parsedLogEntry struct {
	Level     string `json:"level"`
	Logger    string `json:"logger,omitempty"`
	Timestamp string `json:"timestamp"`
	Caller    string `json:"caller"`
	Message   string `json:"message"`
}

// fixedZapKeys are the well-known zap fields extracted separately.
var fixedZapKeys = map[string]bool{
	"level": true, "ts": true, "msg": true, "logger": true, "caller": true,
}

// parseZapLogLine parses a zap JSON log line.
// Extra structured fields (conn_id, remote, status, ...) are appended to the
// message as "key=value" pairs.
func parseZapLogLine(line string) *parsedLogEntry {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return &parsedLogEntry{
			Level:     "INFO",
			Timestamp: time.Now().UTC().Format("2006-01-02 15:04:05"),
			Message:   line,
		}
	}

	// Extract fixed fields.
	level := strings.ToUpper(fmt.Sprintf("%v", raw["level"]))
	if level == "WARN" {
		level = "WARNING"
	}

	msg, _ := raw["msg"].(string)
	name, _ := raw["logger"].(string)
	caller, _ := raw["caller"].(string)

	timestamp := time.Now().UTC().Format("2006-01-02 15:04:05")
	switch ts := raw["ts"].(type) {
	case float64:
		t := time.Unix(int64(ts), int64((ts-float64(int64(ts)))*1e9)).UTC()
		timestamp = t.Format("2006-01-02 15:04:05")
	case string:
		// ISO8601TimeEncoder output.
		if t, err := time.Parse("2006-01-02T15:04:05.000Z0700", ts); err == nil {
			timestamp = t.UTC().Format("2006-01-02 15:04:05")
		}
	}

	// Collect remaining fields as "key=value" pairs (sorted for stability).
	var extras []string
	for k, v := range raw {
		if fixedZapKeys[k] {
			continue
		}
		extras = append(extras, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(extras)

	message := msg
	if len(extras) > 0 {
		message = msg + " " + strings.Join(extras, " ")
	}

	return &parsedLogEntry{
		Level:     level,
		Logger:    name,
		Timestamp: timestamp,
		Caller:    caller,
		Message:   message,
	}
}

// shouldIncludeLine checks if a line matches the level and search criteria.
func shouldIncludeLine(line, level, search string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}

	if level != "" {
		var raw map[string]any
		if err := json.Unmarshal([]byte(line), &raw); err == nil {
			entryLevel := strings.ToUpper(fmt.Sprintf("%v", raw["level"]))
			if entryLevel == "WARN" {
				entryLevel = "WARNING"
			}
			if !strings.EqualFold(entryLevel, level) {
				return false
			}
		} else {
			upperLine := strings.ToUpper(line)
			upperLevel := strings.ToUpper(level)
			if !strings.Contains(upperLine, upperLevel) {
				return false
			}
		}
	}

	if search != "" {
		if !strings.Contains(strings.ToLower(line), strings.ToLower(search)) {
			return false
		}
	}

	return true
}

// SystemLogsHandler serves the viewer's own structured log file.
type SystemLogsHandler struct {
	logFile      string
	pollInterval time.Duration
}

// NewSystemLogsHandler creates a handler reading logFile.
func NewSystemLogsHandler(logFile string) *SystemLogsHandler {
	return &SystemLogsHandler{logFile: logFile, pollInterval: 500 * time.Millisecond}
}

// Stream streams new log lines using Server-Sent Events (SSE), after
// replaying the last 100 matching lines.
// GET /api/system-logs/stream
func (h *SystemLogsHandler) Stream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	level := c.Query("level")
	search := c.Query("search")

	w := c.Writer

	file, err := os.Open(h.logFile)
	if err != nil {
		data, _ := json.Marshal(gin.H{"message": "Failed to open log file"})
		fmt.Fprintf(w, "data: %s\n\n", data)
		w.Flush()
		return
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > 100 {
			lines = lines[1:]
		}
	}

	for _, line := range lines {
		writeLogLine(w, line, level, search)
	}
	w.Flush()

	ctx := c.Request.Context()
	reader := bufio.NewReader(file)
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var partial string
	c.Stream(func(wr io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		for {
			chunk, err := reader.ReadString('\n')
			partial += chunk
			if err != nil {
				break
			}
			writeLogLine(wr, strings.TrimSuffix(partial, "\n"), level, search)
			partial = ""
		}
		return true
	})
}

func writeLogLine(w io.Writer, line, level, search string) {
	if !shouldIncludeLine(line, level, search) {
		return
	}
	data, _ := json.Marshal(parseZapLogLine(line))
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// List returns historical log entries.
// GET /api/system-logs?lines=&level=&search=
func (h *SystemLogsHandler) List(c *gin.Context) {
	maxLines, err := strconv.Atoi(c.DefaultQuery("lines", "100"))
	if err != nil || maxLines < 1 {
		maxLines = 100
	}
	if maxLines > 10000 {
		maxLines = 10000
	}

	level := c.Query("level")
	search := c.Query("search")

	file, err := os.Open(h.logFile)
	if errors.Is(err, os.ErrNotExist) {
		c.JSON(http.StatusOK, gin.H{
			"lines": []any{},
			"total": 0,
			"file":  h.logFile,
		})
		return
	}
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to read log file")
		return
	}
	defer file.Close()

	allEntries := []*parsedLogEntry{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if shouldIncludeLine(line, level, search) {
			allEntries = append(allEntries, parseZapLogLine(line))
		}
	}

	total := len(allEntries)
	start := max(total-maxLines, 0)

	c.JSON(http.StatusOK, gin.H{
		"lines": allEntries[start:],
		"total": total,
		"file":  h.logFile,
	})
}
