package gauge

import (
	"strings"
	"sync"
	"time"
)

// TestTransport is a scripted in-memory Transport for tests. A write of a
// complete command line queues the reply registered for that command; reads
// hand out one queued byte at a time and return 0 bytes once the queue is
// empty, like a serial port whose read timeout expired.
type TestTransport struct {
	mu sync.Mutex
	// WriteErr, when set, is returned by every Write.
	WriteErr error
	// ShortWrite makes every Write accept one byte less than offered.
	ShortWrite bool

	replies map[string][]string
	pending []byte
	events  []string
	baud    int
	closed  bool
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{replies: make(map[string][]string)}
}

// Reply registers the raw bytes the sensor sends back for cmd. With several
// replies each write consumes the next one and the last one repeats.
func (t *TestTransport) Reply(cmd string, replies ...string) *TestTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[cmd] = replies
	return t
}

// Feed queues unsolicited bytes, such as a stale reply or a boot banner.
func (t *TestTransport) Feed(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, data...)
}

func (t *TestTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cmd := strings.TrimSuffix(string(p), "\n")
	t.events = append(t.events, "W "+cmd)
	if t.WriteErr != nil {
		return 0, t.WriteErr
	}
	if t.ShortWrite {
		return len(p) - 1, nil
	}
	if replies := t.replies[cmd]; len(replies) > 0 {
		t.pending = append(t.pending, replies[0]...)
		if len(replies) > 1 {
			t.replies[cmd] = replies[1:]
		}
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, "R")
	if len(t.pending) == 0 || len(p) == 0 {
		return 0, nil
	}
	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *TestTransport) SetBaudRate(rate int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, "B")
	t.baud = rate
	return nil
}

// Writes returns every command written, without its line feed.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, e := range t.events {
		if cmd, ok := strings.CutPrefix(e, "W "); ok {
			out = append(out, cmd)
		}
	}
	return out
}

// Events returns the call log: "W <cmd>" per write, "R" per read and "B"
// per baud change.
func (t *TestTransport) Events() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

// BaudRate returns the rate of the last SetBaudRate call.
func (t *TestTransport) BaudRate() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.baud
}

// Pending returns the bytes not yet read.
func (t *TestTransport) Pending() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.pending)
}

// StepClock is a Clock that advances by Step on every Now call and by the
// full duration on Sleep, so timeouts expire after a predictable number of
// reads.
type StepClock struct {
	mu    sync.Mutex
	now   time.Time
	step  time.Duration
	slept time.Duration
}

func NewStepClock(step time.Duration) *StepClock {
	return &StepClock{now: time.Unix(0, 0), step: step}
}

func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func (c *StepClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept += d
}

// Slept returns the total duration passed to Sleep.
func (c *StepClock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}
