package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/proxy-relay-go/internal/models"
	"github.com/user/proxy-relay-go/internal/sink"
)

const (
	defaultRecordLimit = 500
	maxRecordLimit     = 10000
	streamKeepAlive    = 15 * time.Second
)

// RecordsHandler serves the records held by the log sink.
type RecordsHandler struct {
	buffer *sink.Buffer
}

// NewRecordsHandler creates a new RecordsHandler.
func NewRecordsHandler(buffer *sink.Buffer) *RecordsHandler {
	return &RecordsHandler{buffer: buffer}
}

// List returns records newer than since, oldest first.
// GET /api/records?since=&limit=&search=
func (h *RecordsHandler) List(c *gin.Context) {
	since, ok := queryUint(c, "since")
	if !ok {
		errorResponse(c, http.StatusBadRequest, "since must be a non-negative integer")
		return
	}

	limit := defaultRecordLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errorResponse(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRecordLimit)
	}

	var records []models.LogRecord
	if search := c.Query("search"); search != "" {
		records = sink.Filter(h.buffer.Since(since, 0), search)
		if len(records) > limit {
			records = records[:limit]
		}
	} else {
		records = h.buffer.Since(since, limit)
	}
	if records == nil {
		records = []models.LogRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"records":  records,
		"total":    h.buffer.Len(),
		"last_seq": h.buffer.LastSeq(),
	})
}

// Text returns the display rendering of every matching record.
// GET /api/records/text?search=
func (h *RecordsHandler) Text(c *gin.Context) {
	records := h.buffer.Search(c.Query("search"))
	c.String(http.StatusOK, sink.FormatAll(records))
}

// Stream sends records as Server-Sent Events, starting after since.
// GET /api/records/stream?since=
func (h *RecordsHandler) Stream(c *gin.Context) {
	since, ok := queryUint(c, "since")
	if !ok {
		errorResponse(c, http.StatusBadRequest, "since must be a non-negative integer")
		return
	}

	notify, cancel := h.buffer.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	last := h.writeRecords(c.Writer, since)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-notify:
			last = h.writeRecords(w, last)
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
		}
		return true
	})
}

// writeRecords writes every record after since and returns the last
// sequence number written.
func (h *RecordsHandler) writeRecords(w io.Writer, since uint64) uint64 {
	for _, r := range h.buffer.Since(since, 0) {
		data, _ := json.Marshal(r)
		fmt.Fprintf(w, "id: %d\nevent: record\ndata: %s\n\n", r.Seq, data)
		since = r.Seq
	}
	return since
}
