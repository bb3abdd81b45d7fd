package gauge

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.bug.st/serial"
	"go.uber.org/mock/gomock"
)

func TestSerialDialerRejects(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		dialer  SerialDialer
		ctx     context.Context
		wantErr string
		wantIs  error
	}{
		{
			name:    "Nil context",
			dialer:  SerialDialer{PortName: "/dev/ttyUSB0"},
			ctx:     nil,
			wantErr: "rg15: context is nil",
		},
		{
			name:    "Missing port name",
			dialer:  SerialDialer{},
			ctx:     context.Background(),
			wantErr: "rg15: serial port name is required",
		},
		{
			name:   "Canceled before open",
			dialer: SerialDialer{PortName: "/dev/nonexistent"},
			ctx:    canceled,
			wantIs: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport, err := tt.dialer.Dial(tt.ctx)
			if transport != nil {
				t.Error("expected nil transport")
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != "" && err.Error() != tt.wantErr {
				t.Errorf("unexpected error message: %v", err)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("expected %v, got %v", tt.wantIs, err)
			}
		})
	}
}

func TestSerialDialerMissingDevice(t *testing.T) {
	transport, err := SerialDialer{PortName: "/dev/rg15-does-not-exist"}.Dial(context.Background())
	if err == nil {
		t.Fatal("expected error for a missing device")
	}
	if transport != nil {
		t.Error("expected nil transport for a missing device")
	}
}

func TestSerialDialerMode(t *testing.T) {
	t.Run("Defaults to 9600 8N1", func(t *testing.T) {
		m := SerialDialer{}.mode()
		if m.BaudRate != 9600 || m.DataBits != 8 || m.Parity != serial.NoParity || m.StopBits != serial.OneStopBit {
			t.Errorf("unexpected default mode: %+v", *m)
		}
	})

	t.Run("BaudRate overrides the rate only", func(t *testing.T) {
		m := SerialDialer{BaudRate: 57600}.mode()
		if m.BaudRate != 57600 || m.DataBits != 8 {
			t.Errorf("unexpected mode: %+v", *m)
		}
	})

	t.Run("Explicit mode wins", func(t *testing.T) {
		explicit := &serial.Mode{BaudRate: 1200, DataBits: 7, Parity: serial.EvenParity}
		if m := (SerialDialer{BaudRate: 57600, Mode: explicit}).mode(); m != explicit {
			t.Errorf("expected the explicit mode, got %+v", *m)
		}
	})

	t.Run("Read timeout", func(t *testing.T) {
		if got := (SerialDialer{}).readTimeout(); got != DefaultReadTimeout {
			t.Errorf("expected default read timeout, got %s", got)
		}
		if got := (SerialDialer{ReadTimeout: 50 * time.Millisecond}).readTimeout(); got != 50*time.Millisecond {
			t.Errorf("expected 50ms, got %s", got)
		}
	})
}

// fakePort records SetMode calls; other methods are unused.
type fakePort struct {
	serial.Port
	modes []serial.Mode
	err   error
}

func (p *fakePort) SetMode(mode *serial.Mode) error {
	if p.err != nil {
		return p.err
	}
	p.modes = append(p.modes, *mode)
	return nil
}

func TestSerialTransportSetBaudRate(t *testing.T) {
	port := &fakePort{}
	transport := &SerialTransport{port: port, mode: *SerialDialer{}.mode()}

	if err := transport.SetBaudRate(19200); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(port.modes) != 1 || port.modes[0].BaudRate != 19200 || port.modes[0].DataBits != 8 {
		t.Fatalf("expected one 19200 8N1 SetMode, got %+v", port.modes)
	}

	port.err = errors.New("ioctl failed")
	if err := transport.SetBaudRate(4800); err == nil {
		t.Fatal("expected SetMode failure to be returned")
	}
	if transport.mode.BaudRate != 19200 {
		t.Errorf("a failed change must keep the previous mode, got %d", transport.mode.BaudRate)
	}
}

func TestTransportImplementations(t *testing.T) {
	ctrl := gomock.NewController(t)

	var _ Transport = NewMockTransport(ctrl)
	var _ Transport = (*SerialTransport)(nil)
	var _ Transport = NewTestTransport()
	var _ Dialer = NewMockDialer(ctrl)
	var _ Dialer = SerialDialer{}
	var _ Clock = NewMockClock(ctrl)
	var _ Clock = systemClock{}
	var _ Clock = NewStepClock(time.Millisecond)
}
