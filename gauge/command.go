package gauge

import (
	"fmt"

	"i4.energy/across/raingauge/rg15"
)

// Command is what a transaction writes to the sensor. It is either a
// CharCommand or a TextCommand; both are terminated with a line feed on the
// wire.
type Command interface {
	fmt.Stringer
	wire() []byte
}

// CharCommand is a single letter command such as rg15.CmdRead.
type CharCommand byte

func (c CharCommand) String() string { return string(rune(c)) }
func (c CharCommand) wire() []byte   { return []byte{byte(c), rg15.LF} }

// TextCommand is a multi-character command such as "b 3".
type TextCommand string

func (c TextCommand) String() string { return string(c) }
func (c TextCommand) wire() []byte   { return append([]byte(c), rg15.LF) }

// send writes cmd in a single Write call.
func (g *Gauge) send(cmd Command) error {
	wire := cmd.wire()
	n, err := g.transport.Write(wire)
	if err != nil {
		return fmt.Errorf("%w: command %q: %w", ErrWriteFailed, cmd, err)
	}
	if n != len(wire) {
		return fmt.Errorf("%w: command %q: wrote %d of %d bytes", ErrWriteFailed, cmd, n, len(wire))
	}
	return nil
}

// transact sends cmd and collects one response line.
func (g *Gauge) transact(cmd Command) (string, error) {
	if err := g.send(cmd); err != nil {
		return "", err
	}
	return g.collect()
}
