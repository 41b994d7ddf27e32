package testutil

import (
	"fmt"
	"time"

	"github.com/user/proxy-relay-go/internal/models"
)

// FixedTime is the capture time used by sample records.
var FixedTime = time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC)

// SampleRequestText is a producer payload for a plain GET.
const SampleRequestText = "URL: http://example.com/\nHeaders:\nHost: example.com"

// SampleRecord returns a record with the given sequence number.
func SampleRecord(seq uint64) models.LogRecord {
	return models.LogRecord{
		Seq:        seq,
		ConnID:     fmt.Sprintf("conn-%d", seq),
		CapturedAt: FixedTime.Add(time.Duration(seq) * time.Millisecond),
		Text:       fmt.Sprintf("URL: http://example.com/%d\nHeaders:\nHost: example.com", seq),
	}
}

// SampleRecords returns n records numbered 1..n.
func SampleRecords(n int) []models.LogRecord {
	out := make([]models.LogRecord, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, SampleRecord(uint64(i)))
	}
	return out
}
