package gauge

//go:generate mockgen -source=transport.go -destination=mock_transport.go -package=gauge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"i4.energy/across/raingauge/rg15"
)

// Transport represents an established, bidirectional byte stream to an RG-15.
//
// Reads are expected to return within a short port timeout; a read that
// returns no bytes means nothing was available yet and is not an error.
// The driver never closes a Transport, the owner does.
type Transport interface {
	io.ReadWriteCloser

	// SetBaudRate reconfigures the local end of the link.
	SetBaudRate(rate int) error
}

// Dialer opens a Transport to a rain gauge.
type Dialer interface {
	// Dial creates and returns a connected Transport. It returns an error if
	// the transport cannot be established or ctx is already done.
	Dial(ctx context.Context) (Transport, error)
}

// Clock is the time source used for every timeout in the driver.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// DefaultReadTimeout bounds a single serial read so the collector can
// re-check its deadline.
const DefaultReadTimeout = 10 * time.Millisecond

// SerialDialer opens the gauge over a serial port using go.bug.st/serial.
type SerialDialer struct {
	PortName string
	// BaudRate is used when Mode is nil. Zero means rg15.DefaultBaudRate.
	BaudRate int
	Mode     *serial.Mode
	// ReadTimeout defaults to DefaultReadTimeout.
	ReadTimeout time.Duration
}

func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("rg15: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("rg15: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.mode()
	readTimeout := d.readTimeout()

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", d.PortName, err)
	}

	return &SerialTransport{port: port, mode: *mode}, nil
}

// mode returns the explicit Mode or 8N1 at BaudRate.
func (d SerialDialer) mode() *serial.Mode {
	if d.Mode != nil {
		return d.Mode
	}
	rate := d.BaudRate
	if rate == 0 {
		rate = rg15.DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: rate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

func (d SerialDialer) readTimeout() time.Duration {
	if d.ReadTimeout <= 0 {
		return DefaultReadTimeout
	}
	return d.ReadTimeout
}

// SerialTransport adapts a go.bug.st/serial port to Transport.
type SerialTransport struct {
	port serial.Port
	mode serial.Mode
}

func (t *SerialTransport) Read(p []byte) (int, error)  { return t.port.Read(p) }
func (t *SerialTransport) Write(p []byte) (int, error) { return t.port.Write(p) }
func (t *SerialTransport) Close() error                { return t.port.Close() }

func (t *SerialTransport) SetBaudRate(rate int) error {
	mode := t.mode
	mode.BaudRate = rate
	if err := t.port.SetMode(&mode); err != nil {
		return err
	}
	t.mode = mode
	return nil
}
