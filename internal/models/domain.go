// Package models defines the domain models shared by the relay, the sink and the viewers.
package models

import (
	"net"
	"strconv"
	"time"
)

// LogRecord is one decoded chunk read from a relay connection.
// Records are immutable once created.
type LogRecord struct {
	Seq        uint64    `json:"seq"`
	ConnID     string    `json:"conn_id"`
	CapturedAt time.Time `json:"captured_at"`
	Text       string    `json:"text"`
}

// RelayState is the connection slot state of the relay listener.
type RelayState string

const (
	RelayStopped   RelayState = "stopped"
	RelayIdle      RelayState = "idle"
	RelayConnected RelayState = "connected"
)

// RelayStatus is a point-in-time view of the relay listener.
type RelayStatus struct {
	Available           bool       `json:"available"`
	Address             string     `json:"address,omitempty"`
	State               RelayState `json:"state"`
	Error               string     `json:"error,omitempty"`
	ConnectionsAccepted int64      `json:"connections_accepted"`
	ConnectionsRejected int64      `json:"connections_rejected"`
	RecordsEmitted      int64      `json:"records_emitted"`
}

// ProxyStatus is a point-in-time view of the intercepting proxy.
type ProxyStatus struct {
	Running     bool       `json:"running"`
	Host        string     `json:"host"`
	Port        int        `json:"port"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	Intercepted int64      `json:"intercepted"`
}

// Text renders the status line shown by the viewers.
func (s ProxyStatus) Text() string {
	if !s.Running {
		return "Proxy is not running."
	}
	return "Proxy running at " + s.URL() + "."
}

// URL returns the proxy address as an http URL.
func (s ProxyStatus) URL() string {
	return "http://" + net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
