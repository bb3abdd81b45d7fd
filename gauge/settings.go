package gauge

import (
	"context"
	"fmt"

	"i4.energy/across/raingauge/rg15"
)

// changeSetting sends a single letter setting command and expects the
// sensor to echo the letter back.
func (g *Gauge) changeSetting(ctx context.Context, op Op, letter byte) error {
	cmd := rg15.Lower(letter)
	return g.retry(ctx, op, func() error {
		resp, err := g.transact(CharCommand(cmd))
		if err != nil {
			return err
		}
		if !rg15.Acked(cmd, resp) {
			return fmt.Errorf("%w: expected echo %q, got %q", ErrResponseMismatch, cmd, resp)
		}
		return nil
	})
}

// SetPollingMode switches the sensor to polling mode, the only mode this
// driver supports.
func (g *Gauge) SetPollingMode(ctx context.Context) error {
	g.reset()
	if err := g.requireTransport(OpPollingMode); err != nil {
		return err
	}
	if err := g.changeSetting(ctx, OpPollingMode, rg15.CmdPolling); err != nil {
		return err
	}
	g.settings.Polling = true
	return nil
}

func (g *Gauge) SetHighResolution(ctx context.Context) error {
	return g.setResolution(ctx, OpHighResolution, rg15.CmdHighRes, rg15.ResolutionHigh)
}

func (g *Gauge) SetLowResolution(ctx context.Context) error {
	return g.setResolution(ctx, OpLowResolution, rg15.CmdLowRes, rg15.ResolutionLow)
}

func (g *Gauge) setResolution(ctx context.Context, op Op, letter byte, res rg15.Resolution) error {
	g.reset()
	if err := g.requireTransport(op); err != nil {
		return err
	}
	if err := g.changeSetting(ctx, op, letter); err != nil {
		return err
	}
	g.settings.Resolution = res
	return nil
}

// SetUnit selects metric or imperial reporting. Any other unit fails with
// ErrUnitMismatch before touching the transport.
func (g *Gauge) SetUnit(ctx context.Context, unit rg15.Unit) error {
	g.reset()
	if !unit.Valid() {
		return g.fail(OpSetUnit, fmt.Errorf("%w: %q is not a supported unit", ErrUnitMismatch, byte(unit)))
	}
	if err := g.requireTransport(OpSetUnit); err != nil {
		return err
	}
	if err := g.changeSetting(ctx, OpSetUnit, byte(unit)); err != nil {
		return err
	}
	g.settings.Unit = unit
	return nil
}

// ChangeBaudRate switches the sensor to rate and, once the sensor confirmed
// the change, the local transport as well.
func (g *Gauge) ChangeBaudRate(ctx context.Context, rate int) error {
	g.reset()
	code, ok := rg15.BaudCode(rate)
	if !ok {
		return g.fail(OpChangeBaudRate, fmt.Errorf("%w: %d", ErrUnsupportedBaudRate, rate))
	}
	if err := g.requireTransport(OpChangeBaudRate); err != nil {
		return err
	}

	cmd := TextCommand(rg15.BaudCommand(code))
	ack := rg15.BaudAck(rate)
	err := g.retry(ctx, OpChangeBaudRate, func() error {
		resp, err := g.transact(cmd)
		if err != nil {
			return err
		}
		if resp != ack {
			return fmt.Errorf("%w: expected %q, got %q", ErrResponseMismatch, ack, resp)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := g.transport.SetBaudRate(rate); err != nil {
		g.lastErr = CodeTransportMissing
		g.observe(OpChangeBaudRate)
		return fmt.Errorf("%s: sensor switched to %d but local transport did not: %w: %w",
			OpChangeBaudRate, rate, ErrTransportMissing, err)
	}
	g.settings.BaudRate = rate
	g.logger.Info("baud rate changed", "baud_rate", rate)
	return nil
}
