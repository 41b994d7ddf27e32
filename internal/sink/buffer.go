// Package sink holds received log records for display.
//
// Buffer is the append-only, in-memory sequence behind every viewer. Append
// never blocks on a reader: subscribers get a coalescing wake-up and pull
// what they have not seen with Since.
package sink

import (
	"sort"
	"strings"
	"sync"

	"github.com/user/proxy-relay-go/internal/models"
)

// Buffer is an ordered, append-only record store safe for concurrent use.
type Buffer struct {
	mu      sync.RWMutex
	records []models.LogRecord
	subs    map[int]chan struct{}
	nextSub int
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{subs: make(map[int]chan struct{})}
}

// Append stores record and wakes subscribers.
func (b *Buffer) Append(record models.LogRecord) {
	b.mu.Lock()
	b.records = append(b.records, record)
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
}

// Len returns the number of stored records.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// LastSeq returns the sequence number of the newest record, or 0.
func (b *Buffer) LastSeq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.records) == 0 {
		return 0
	}
	return b.records[len(b.records)-1].Seq
}

// Snapshot returns a copy of every record in arrival order.
func (b *Buffer) Snapshot() []models.LogRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.LogRecord, len(b.records))
	copy(out, b.records)
	return out
}

// Since returns records with Seq greater than seq, oldest first. A limit of
// zero or less means no limit.
func (b *Buffer) Since(seq uint64, limit int) []models.LogRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	start := sort.Search(len(b.records), func(i int) bool {
		return b.records[i].Seq > seq
	})
	rest := b.records[start:]
	if limit > 0 && len(rest) > limit {
		rest = rest[:limit]
	}
	out := make([]models.LogRecord, len(rest))
	copy(out, rest)
	return out
}

// Search returns records whose text contains term, case-insensitively.
// An empty term matches everything.
func (b *Buffer) Search(term string) []models.LogRecord {
	if term == "" {
		return b.Snapshot()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Filter(b.records, term)
}

// Subscribe returns a channel that receives a value after one or more
// appends, and a cancel func that releases it.
func (b *Buffer) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Filter returns the records whose text contains term, case-insensitively.
func Filter(records []models.LogRecord, term string) []models.LogRecord {
	if term == "" {
		out := make([]models.LogRecord, len(records))
		copy(out, records)
		return out
	}
	needle := strings.ToLower(term)
	var out []models.LogRecord
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Text), needle) {
			out = append(out, r)
		}
	}
	return out
}
