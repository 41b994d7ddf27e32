package relay

import (
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/user/proxy-relay-go/internal/models"
	"go.uber.org/zap"
)

// serve reads conn until the producer closes it, an I/O error occurs, or it
// goes idle. The slot is released after the last record is emitted and
// before anything is logged or the socket is closed, so neither a slow log
// core nor a producer waiting for our FIN holds up the next connection.
func (r *Relay) serve(conn net.Conn) {
	defer r.wg.Done()
	defer conn.Close()

	connID := uuid.NewString()
	logger := r.logger.With(
		zap.String("conn_id", connID),
		zap.String("remote", conn.RemoteAddr().String()),
	)
	logger.Debug("connection accepted")

	bytesRead, records, err := r.readLoop(conn, connID)
	r.release()

	fields := []zap.Field{zap.Int("bytes", bytesRead), zap.Int("records", records)}
	var netErr net.Error
	switch {
	case isExpectedClose(err):
		logger.Debug("connection closed", fields...)
	case errors.As(err, &netErr) && netErr.Timeout():
		logger.Warn("connection idle timeout", append(fields, zap.Duration("idle_timeout", r.cfg.IdleTimeout))...)
	default:
		logger.Warn("connection read failed", append(fields, zap.Error(err))...)
	}
}

// readLoop emits one record per decoded read and returns the error that
// ended the connection.
func (r *Relay) readLoop(conn net.Conn, connID string) (bytesRead, records int, err error) {
	buf := make([]byte, r.cfg.ReadBufferSize)
	var dec decoder

	for {
		if r.cfg.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(r.cfg.IdleTimeout))
		}

		var n int
		n, err = conn.Read(buf)
		if n > 0 {
			capturedAt := r.now()
			bytesRead += n
			if text := dec.decode(buf[:n]); text != "" {
				r.emit(connID, capturedAt, text)
				records++
			}
		}
		if err == nil {
			continue
		}

		if tail := dec.flush(); tail != "" {
			r.emit(connID, r.now(), tail)
			records++
		}
		return bytesRead, records, err
	}
}

func (r *Relay) emit(connID string, capturedAt time.Time, text string) {
	r.sink.Append(models.LogRecord{
		Seq:        r.seq.Add(1),
		ConnID:     connID,
		CapturedAt: capturedAt,
		Text:       text,
	})
	r.emitted.Add(1)
}
