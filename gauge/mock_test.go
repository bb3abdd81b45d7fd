package gauge_test

import (
	"sync"

	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/raingauge/gauge"
)

// rxQueue is the receive side of a mocked sensor link.
type rxQueue struct {
	mu   sync.Mutex
	data []byte
}

func (q *rxQueue) push(s string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.data = append(q.data, s...)
}

func (q *rxQueue) read(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := copy(p, q.data)
	q.data = q.data[n:]
	return n, nil
}

// MockSequenceBuilder builds the ordered write side of a conversation with
// a mocked sensor. Reads are served from a shared queue that each expected
// write fills with the sensor's reply.
type MockSequenceBuilder struct {
	transport *gauge.MockTransport
	rx        *rxQueue
	calls     []any
}

func NewMockSequence(transport *gauge.MockTransport) *MockSequenceBuilder {
	rx := &rxQueue{}
	transport.EXPECT().Read(gomock.Any()).DoAndReturn(rx.read).AnyTimes()
	return &MockSequenceBuilder{
		transport: transport,
		rx:        rx,
		calls:     []any{},
	}
}

func (b *MockSequenceBuilder) command(wire, reply string) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(wire)).DoAndReturn(func(p []byte) (int, error) {
			b.rx.push(reply)
			return len(p), nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) SetBaudRate(rate int) *MockSequenceBuilder {
	b.calls = append(b.calls, b.transport.EXPECT().SetBaudRate(rate).Return(nil))
	return b
}

func (b *MockSequenceBuilder) PollingMode() *MockSequenceBuilder {
	return b.command("p\n", "p\r\n")
}

func (b *MockSequenceBuilder) HighResolution() *MockSequenceBuilder {
	return b.command("h\n", "h\r\n")
}

func (b *MockSequenceBuilder) LowResolution() *MockSequenceBuilder {
	return b.command("l\n", "l\r\n")
}

func (b *MockSequenceBuilder) Metric() *MockSequenceBuilder {
	return b.command("m\n", "m\r\n")
}

func (b *MockSequenceBuilder) Imperial() *MockSequenceBuilder {
	return b.command("i\n", "i\r\n")
}

func (b *MockSequenceBuilder) Baud(cmd, reply string) *MockSequenceBuilder {
	return b.command(cmd+"\n", reply+"\r\n")
}

func (b *MockSequenceBuilder) Poll(line string) *MockSequenceBuilder {
	return b.command("r\n", line+"\r\n")
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}
