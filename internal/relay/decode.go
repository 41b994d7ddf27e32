package relay

import (
	"strings"
	"unicode/utf8"
)

// decoder converts raw chunks to valid UTF-8 text. A multi-byte sequence cut
// off at the end of a chunk is held back and completed by the next chunk, so
// valid input split across reads survives intact. Any other invalid byte
// becomes U+FFFD.
type decoder struct {
	pending []byte
}

func (d *decoder) decode(chunk []byte) string {
	data := chunk
	if len(d.pending) > 0 {
		data = append(d.pending, chunk...)
		d.pending = nil
	}
	if cut := incompleteSuffix(data); cut > 0 {
		d.pending = append([]byte(nil), data[len(data)-cut:]...)
		data = data[:len(data)-cut]
	}
	return lossyString(data)
}

// flush returns whatever is still held back, decoded lossily.
func (d *decoder) flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	s := lossyString(d.pending)
	d.pending = nil
	return s
}

// incompleteSuffix returns the length of a trailing, truncated but so far
// valid UTF-8 sequence in b, or 0.
func incompleteSuffix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i > len(b)-utf8.UTFMax; i-- {
		c := b[i]
		if c < utf8.RuneSelf {
			return 0
		}
		if utf8.RuneStart(c) {
			if utf8.FullRune(b[i:]) {
				return 0
			}
			return len(b) - i
		}
	}
	return 0
}

func lossyString(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b) + 8)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
		} else {
			sb.Write(b[:size])
		}
		b = b[size:]
	}
	return sb.String()
}
