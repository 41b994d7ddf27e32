//go:build !integration && !e2e
// +build !integration,!e2e

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/proxy-relay-go/internal/config"
	"github.com/user/proxy-relay-go/internal/models"
	"github.com/user/proxy-relay-go/internal/producer"
	"github.com/user/proxy-relay-go/internal/sink"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const waitFor = 3 * time.Second

func testConfig() config.RelayConfig {
	return config.RelayConfig{
		Host:           "127.0.0.1",
		Port:           0,
		MaxPending:     1,
		ShutdownGrace:  time.Second,
		ReadBufferSize: 4096,
	}
}

func startRelay(t *testing.T, cfg config.RelayConfig, opts ...Option) (*Relay, *sink.Buffer) {
	t.Helper()

	buf := sink.NewBuffer()
	r := New(cfg, buf, zap.NewNop(), opts...)
	require.NoError(t, r.Start())
	t.Cleanup(func() {
		_ = r.Shutdown(context.Background())
	})
	return r, buf
}

func dial(t *testing.T, r *Relay) net.Conn {
	t.Helper()

	conn, err := net.DialTimeout("tcp", r.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func joined(records []models.LogRecord) string {
	var sb strings.Builder
	for _, rec := range records {
		sb.WriteString(rec.Text)
	}
	return sb.String()
}

func waitForText(t *testing.T, buf *sink.Buffer, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return joined(buf.Snapshot()) == want
	}, waitFor, 10*time.Millisecond, "relay did not deliver %q", want)
}

func waitForIdle(t *testing.T, r *Relay) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.State() == models.RelayIdle
	}, waitFor, 10*time.Millisecond)
}

func TestRelay_SingleMessage(t *testing.T) {
	r, buf := startRelay(t, testConfig())
	const msg = "URL: http://example.com/\nHeaders:\nHost: example.com"

	conn := dial(t, r)
	_, err := conn.Write([]byte(msg))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	waitForText(t, buf, msg)
	waitForIdle(t, r)

	records := buf.Snapshot()
	assert.Equal(t, uint64(1), records[0].Seq)
	assert.NotEmpty(t, records[0].ConnID)
	assert.False(t, records[0].CapturedAt.IsZero())
}

func TestRelay_EmptyConnectionProducesNoRecords(t *testing.T) {
	r, buf := startRelay(t, testConfig())

	conn := dial(t, r)
	require.Eventually(t, func() bool {
		return r.Status().ConnectionsAccepted == 1
	}, waitFor, 10*time.Millisecond)
	require.NoError(t, conn.Close())

	waitForIdle(t, r)
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, int64(0), r.Status().RecordsEmitted)
}

func TestRelay_SecondBindFails(t *testing.T) {
	first, buf := startRelay(t, testConfig())

	cfg := testConfig()
	cfg.Port = first.Addr().(*net.TCPAddr).Port
	second := New(cfg, sink.NewBuffer(), zap.NewNop())

	err := second.Start()
	require.Error(t, err)
	var bindErr *BindError
	require.True(t, errors.As(err, &bindErr))
	assert.Equal(t, cfg.Address(), bindErr.Addr)

	st := second.Status()
	assert.False(t, st.Available)
	assert.NotEmpty(t, st.Error)
	assert.Equal(t, models.RelayStopped, st.State)
	assert.Nil(t, second.Addr())
	assert.NoError(t, second.Shutdown(context.Background()))

	// The first relay keeps working.
	conn := dial(t, first)
	_, err = conn.Write([]byte("still here"))
	require.NoError(t, err)
	conn.Close()
	waitForText(t, buf, "still here")
	assert.True(t, first.Status().Available)
}

func TestRelay_StartTwice(t *testing.T) {
	r, _ := startRelay(t, testConfig())
	assert.Error(t, r.Start())
}

func TestRelay_ChunksPreserveOrder(t *testing.T) {
	cfg := testConfig()
	cfg.ReadBufferSize = 16
	r, buf := startRelay(t, cfg)

	var sent strings.Builder
	conn := dial(t, r)
	for i := 0; i < 50; i++ {
		part := strings.Repeat(string(rune('a'+i%26)), 1+i%40)
		sent.WriteString(part)
		_, err := conn.Write([]byte(part))
		require.NoError(t, err)
	}
	require.NoError(t, conn.Close())

	waitForText(t, buf, sent.String())

	records := buf.Snapshot()
	require.Greater(t, len(records), 1, "a 16-byte read buffer must split the stream")
	for i := 1; i < len(records); i++ {
		assert.Equal(t, records[i-1].Seq+1, records[i].Seq)
		assert.False(t, records[i].CapturedAt.Before(records[i-1].CapturedAt))
		assert.Equal(t, records[0].ConnID, records[i].ConnID)
		assert.LessOrEqual(t, len(records[i].Text), 16+utf8.UTFMax)
	}
}

func TestRelay_OneTimestampPerRead(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	var calls int
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return base.Add(time.Duration(calls) * time.Millisecond)
	}

	r, buf := startRelay(t, testConfig(), WithClock(clock))
	conn := dial(t, r)
	_, err := conn.Write([]byte("one read"))
	require.NoError(t, err)
	conn.Close()

	waitForText(t, buf, "one read")
	waitForIdle(t, r)

	records := buf.Snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, base.Add(time.Millisecond), records[0].CapturedAt)
}

func TestRelay_MultibyteSplitAcrossReads(t *testing.T) {
	cfg := testConfig()
	cfg.ReadBufferSize = 16
	r, buf := startRelay(t, cfg)

	msg := "Host: bücher.example\nX-Note: ✓ 日本語 ✓ ü"
	conn := dial(t, r)
	for _, b := range []byte(msg) {
		_, err := conn.Write([]byte{b})
		require.NoError(t, err)
	}
	conn.Close()

	waitForText(t, buf, msg)
	for _, rec := range buf.Snapshot() {
		assert.True(t, utf8.ValidString(rec.Text))
	}
}

func TestRelay_InvalidUTF8IsReplaced(t *testing.T) {
	r, buf := startRelay(t, testConfig())

	conn := dial(t, r)
	_, err := conn.Write([]byte{'o', 'k', 0xFF, '!'})
	require.NoError(t, err)
	conn.Close()

	waitForText(t, buf, "ok�!")
	waitForIdle(t, r)

	// A new connection after invalid bytes is decoded cleanly.
	next := dial(t, r)
	_, err = next.Write([]byte("URL: http://example.com/€"))
	require.NoError(t, err)
	next.Close()

	waitForText(t, buf, "ok�!URL: http://example.com/€")
	records := buf.Snapshot()
	last := records[len(records)-1]
	assert.Equal(t, "URL: http://example.com/€", last.Text)
	assert.NotEqual(t, records[0].ConnID, last.ConnID)
}

func TestRelay_RejectsSecondConnection(t *testing.T) {
	r, buf := startRelay(t, testConfig())

	first := dial(t, r)
	_, err := first.Write([]byte("from-first"))
	require.NoError(t, err)
	waitForText(t, buf, "from-first")
	assert.Equal(t, models.RelayConnected, r.State())

	second := dial(t, r)
	_, _ = second.Write([]byte("from-second"))
	require.NoError(t, second.SetReadDeadline(time.Now().Add(waitFor)))
	_, err = second.Read(make([]byte, 1))
	require.Error(t, err)
	var netErr net.Error
	assert.False(t, errors.As(err, &netErr) && netErr.Timeout(), "second connection was not closed: %v", err)

	require.Eventually(t, func() bool {
		return r.Status().ConnectionsRejected == 1
	}, waitFor, 10*time.Millisecond)

	// The first connection is unaffected.
	_, err = first.Write([]byte("+more"))
	require.NoError(t, err)
	waitForText(t, buf, "from-first+more")

	require.NoError(t, first.Close())
	waitForIdle(t, r)

	third := dial(t, r)
	_, err = third.Write([]byte("|third"))
	require.NoError(t, err)
	third.Close()
	waitForText(t, buf, "from-first+more|third")

	for _, rec := range buf.Snapshot() {
		assert.NotContains(t, rec.Text, "from-second")
	}
	assert.Equal(t, int64(2), r.Status().ConnectionsAccepted)
}

func TestRelay_IdleTimeoutClosesConnection(t *testing.T) {
	cfg := testConfig()
	cfg.IdleTimeout = 100 * time.Millisecond
	r, _ := startRelay(t, cfg)

	conn := dial(t, r)
	require.Eventually(t, func() bool {
		return r.State() == models.RelayConnected
	}, waitFor, 5*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, err := conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
	waitForIdle(t, r)
}

// stallingCore blocks every write until release is closed, like a log sink
// stuck behind a busy consumer.
type stallingCore struct {
	zapcore.LevelEnabler
	release chan struct{}
}

func (c *stallingCore) With([]zapcore.Field) zapcore.Core { return c }

func (c *stallingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *stallingCore) Write(zapcore.Entry, []zapcore.Field) error {
	<-c.release
	return nil
}

func (c *stallingCore) Sync() error { return nil }

func TestRelay_SlowLoggerDoesNotHoldSlot(t *testing.T) {
	cfg := testConfig()
	cfg.IdleTimeout = 50 * time.Millisecond

	core := &stallingCore{LevelEnabler: zap.WarnLevel, release: make(chan struct{})}
	buf := sink.NewBuffer()
	r := New(cfg, buf, zap.New(core))
	require.NoError(t, r.Start())
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })
	t.Cleanup(func() { close(core.release) })

	dial(t, r)
	require.Eventually(t, func() bool {
		return r.State() == models.RelayConnected
	}, waitFor, 5*time.Millisecond)

	// The idle timeout warning blocks in the logger; the slot must already be free.
	waitForIdle(t, r)

	next := dial(t, r)
	_, err := next.Write([]byte("after idle"))
	require.NoError(t, err)
	require.NoError(t, next.Close())

	waitForText(t, buf, "after idle")
	assert.Zero(t, r.Status().ConnectionsRejected)
}

func TestRelay_ShutdownReleasesPort(t *testing.T) {
	buf := sink.NewBuffer()
	r := New(testConfig(), buf, zap.NewNop())
	require.NoError(t, r.Start())
	addr := r.Addr().String()

	conn := dial(t, r)
	_, err := conn.Write([]byte("before shutdown"))
	require.NoError(t, err)
	conn.Close()
	waitForText(t, buf, "before shutdown")

	require.NoError(t, r.Shutdown(context.Background()))
	require.NoError(t, r.Shutdown(context.Background()))
	assert.Equal(t, models.RelayStopped, r.State())
	assert.False(t, r.Status().Available)

	ln, err := net.Listen("tcp", addr)
	require.NoError(t, err, "port was not released")
	ln.Close()
}

func TestRelay_ShutdownClosesLingeringConnection(t *testing.T) {
	cfg := testConfig()
	cfg.ShutdownGrace = 50 * time.Millisecond
	buf := sink.NewBuffer()
	r := New(cfg, buf, zap.NewNop())
	require.NoError(t, r.Start())

	conn := dial(t, r)
	_, err := conn.Write([]byte("partial"))
	require.NoError(t, err)
	waitForText(t, buf, "partial")

	require.NoError(t, r.Shutdown(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.Equal(t, "partial", joined(buf.Snapshot()))
}

func TestRelay_ShutdownHonorsContext(t *testing.T) {
	cfg := testConfig()
	cfg.ShutdownGrace = time.Minute
	r := New(cfg, sink.NewBuffer(), zap.NewNop())
	require.NoError(t, r.Start())

	dial(t, r)
	require.Eventually(t, func() bool {
		return r.State() == models.RelayConnected
	}, waitFor, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.RelayStopped, r.State())
}

func TestRelay_ShutdownBeforeStart(t *testing.T) {
	r := New(testConfig(), sink.NewBuffer(), zap.NewNop())
	assert.NoError(t, r.Shutdown(context.Background()))
}

func TestSinkFunc(t *testing.T) {
	var got []models.LogRecord
	var mu sync.Mutex
	s := SinkFunc(func(rec models.LogRecord) {
		mu.Lock()
		got = append(got, rec)
		mu.Unlock()
	})

	r := New(testConfig(), s, zap.NewNop())
	require.NoError(t, r.Start())
	defer r.Shutdown(context.Background())

	conn := dial(t, r)
	_, err := conn.Write([]byte("via func"))
	require.NoError(t, err)
	conn.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return joined(got) == "via func"
	}, waitFor, 10*time.Millisecond)
}

func TestRelay_SerialProducerNeverRejected(t *testing.T) {
	r, buf := startRelay(t, testConfig())
	client := producer.NewClient(r.Addr().String(), time.Second)

	var want strings.Builder
	for i := 0; i < 50; i++ {
		msg := fmt.Sprintf("URL: http://example.com/%d\nHeaders:\nHost: example.com", i)
		want.WriteString(msg)
		require.NoError(t, client.Send(context.Background(), msg))
	}

	waitForText(t, buf, want.String())
	assert.Equal(t, int64(0), r.Status().ConnectionsRejected)
	assert.Equal(t, int64(50), r.Status().ConnectionsAccepted)
}
