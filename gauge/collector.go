package gauge

import (
	"errors"
	"io"

	"i4.energy/across/raingauge/rg15"
)

// ResponseBufferSize is the capacity of the response buffer. The longest
// line the sensor sends is the poll line, which stays below 90 bytes.
const ResponseBufferSize = 100

// responseBuffer is a fixed-capacity line buffer.
type responseBuffer struct {
	data [ResponseBufferSize]byte
	n    int
}

func (b *responseBuffer) reset() { b.n = 0 }

// push appends c. It reports false, leaving the buffer unchanged, when the
// buffer is already full.
func (b *responseBuffer) push(c byte) bool {
	if b.n == len(b.data) {
		return false
	}
	b.data[b.n] = c
	b.n++
	return true
}

func (b *responseBuffer) String() string { return string(b.data[:b.n]) }

func printable(c byte) bool { return c >= 32 && c <= 126 }

// collect reads one line within the response timeout. Bytes outside
// printable ASCII are dropped without taking buffer space. On failure the
// partial line stays in the buffer for diagnostics.
func (g *Gauge) collect() (string, error) {
	g.buf.reset()
	start := g.clock.Now()
	var c [1]byte
	for g.clock.Now().Sub(start) < g.policy.ResponseTimeout {
		if !g.readByte(c[:]) {
			continue
		}
		if c[0] == rg15.LF {
			return g.buf.String(), nil
		}
		if !printable(c[0]) {
			continue
		}
		if !g.buf.push(c[0]) {
			return g.buf.String(), ErrResponseTooLong
		}
	}
	return g.buf.String(), ErrResponseTimeout
}

// clean discards whatever arrives on the transport for the clean timeout.
func (g *Gauge) clean() {
	start := g.clock.Now()
	var c [1]byte
	for g.clock.Now().Sub(start) < g.policy.CleanTimeout {
		g.readByte(c[:])
	}
}

// readByte reads at most one byte into p and reports whether it got one.
// Read errors count as "nothing available"; the caller's deadline bounds
// the wait either way.
func (g *Gauge) readByte(p []byte) bool {
	n, err := g.transport.Read(p[:1])
	if err != nil && !errors.Is(err, io.EOF) {
		g.logger.Debug("transport read failed", "error", err)
	}
	return n == 1
}
