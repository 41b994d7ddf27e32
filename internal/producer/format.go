// Package producer is the sending side of the log-relay channel. It renders
// intercepted HTTP requests as relay text and delivers each one over its
// own short-lived TCP connection.
package producer

import (
	"net/http"
	"sort"
	"strings"
)

var crlf = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// FormatRequest renders req as
//
//	URL: <absolute url>
//	Headers:
//	Host: <host>
//	<Name>: <value>
//
// with no trailing newline. Host comes first, the remaining headers follow
// sorted by name with one line per value. CR and LF inside values are
// replaced by spaces so every header stays on one line.
func FormatRequest(req *http.Request) string {
	var sb strings.Builder
	sb.WriteString("URL: ")
	sb.WriteString(sanitize(RequestURL(req)))
	sb.WriteString("\nHeaders:")

	host := req.Host
	if host == "" && req.URL != nil {
		host = req.URL.Host
	}
	if host != "" {
		sb.WriteString("\nHost: ")
		sb.WriteString(sanitize(host))
	}

	names := make([]string, 0, len(req.Header))
	for name := range req.Header {
		if strings.EqualFold(name, "Host") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, v := range req.Header[name] {
			sb.WriteByte('\n')
			sb.WriteString(sanitize(name))
			sb.WriteString(": ")
			sb.WriteString(sanitize(v))
		}
	}
	return sb.String()
}

// RequestURL returns the absolute URL of req. Server-side requests only
// carry a path, so the scheme and host are filled in from the connection.
func RequestURL(req *http.Request) string {
	if req.URL == nil {
		return ""
	}
	if req.URL.IsAbs() {
		return req.URL.String()
	}
	u := *req.URL
	u.Scheme = "http"
	if req.TLS != nil {
		u.Scheme = "https"
	}
	if u.Host == "" {
		u.Host = req.Host
	}
	return u.String()
}

func sanitize(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return crlf.Replace(s)
}
