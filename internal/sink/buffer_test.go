//go:build !integration && !e2e
// +build !integration,!e2e

package sink

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/proxy-relay-go/internal/models"
	"github.com/user/proxy-relay-go/internal/testutil"
)

func TestBuffer_AppendPreservesOrder(t *testing.T) {
	b := NewBuffer()
	for _, r := range testutil.SampleRecords(5) {
		b.Append(r)
	}

	got := b.Snapshot()
	require.Len(t, got, 5)
	for i, r := range got {
		assert.Equal(t, uint64(i+1), r.Seq)
	}
	assert.Equal(t, 5, b.Len())
	assert.Equal(t, uint64(5), b.LastSeq())
}

func TestBuffer_SnapshotIsCopy(t *testing.T) {
	b := NewBuffer()
	b.Append(testutil.SampleRecord(1))

	snap := b.Snapshot()
	snap[0].Text = "mutated"

	assert.NotEqual(t, "mutated", b.Snapshot()[0].Text)
}

func TestBuffer_Since(t *testing.T) {
	b := NewBuffer()
	assert.Empty(t, b.Since(0, 0))
	assert.Equal(t, uint64(0), b.LastSeq())

	for _, r := range testutil.SampleRecords(10) {
		b.Append(r)
	}

	got := b.Since(7, 0)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(8), got[0].Seq)

	got = b.Since(0, 4)
	require.Len(t, got, 4)
	assert.Equal(t, uint64(4), got[3].Seq)

	assert.Empty(t, b.Since(10, 0))
}

func TestBuffer_Search(t *testing.T) {
	b := NewBuffer()
	b.Append(models.LogRecord{Seq: 1, Text: "URL: http://example.com/\nHeaders:\nHost: example.com"})
	b.Append(models.LogRecord{Seq: 2, Text: "URL: https://golang.org/pkg\nHeaders:\nHost: golang.org"})

	got := b.Search("GOLANG")
	require.Len(t, got, 1)
	assert.Equal(t, uint64(2), got[0].Seq)

	assert.Len(t, b.Search(""), 2)
	assert.Empty(t, b.Search("nothing-matches"))
}

func TestBuffer_SubscribeCoalesces(t *testing.T) {
	b := NewBuffer()
	notify, cancel := b.Subscribe()
	defer cancel()

	for _, r := range testutil.SampleRecords(3) {
		b.Append(r)
	}

	select {
	case <-notify:
	case <-time.After(time.Second):
		t.Fatal("expected notification")
	}

	select {
	case <-notify:
		t.Fatal("notifications should coalesce")
	default:
	}

	assert.Len(t, b.Since(0, 0), 3)
}

func TestBuffer_CancelStopsNotifications(t *testing.T) {
	b := NewBuffer()
	notify, cancel := b.Subscribe()
	cancel()
	cancel()

	b.Append(testutil.SampleRecord(1))

	select {
	case <-notify:
		t.Fatal("cancelled subscriber was notified")
	default:
	}
}

func TestBuffer_AppendDoesNotBlockOnSlowSubscriber(t *testing.T) {
	b := NewBuffer()
	_, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for _, r := range testutil.SampleRecords(1000) {
			b.Append(r)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Append blocked on an unread subscriber")
	}
	assert.Equal(t, 1000, b.Len())
}

func TestBuffer_ConcurrentReaders(t *testing.T) {
	b := NewBuffer()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = b.Since(b.LastSeq(), 10)
				_ = b.Search("example")
			}
		}()
	}
	for _, r := range testutil.SampleRecords(200) {
		b.Append(r)
	}
	wg.Wait()
	assert.Equal(t, 200, b.Len())
}
