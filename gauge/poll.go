package gauge

import (
	"context"
	"fmt"

	"i4.energy/across/raingauge/rg15"
)

// Poll requests one measurement line. The stored Measurement changes only
// when a line parses completely and reports the configured unit; a line
// that does not parse sets all four values to -1.
func (g *Gauge) Poll(ctx context.Context) error {
	g.reset()
	if err := g.requireTransport(OpPoll); err != nil {
		return err
	}
	return g.retry(ctx, OpPoll, func() error {
		line, err := g.transact(CharCommand(rg15.CmdRead))
		if err != nil {
			return err
		}
		r, err := rg15.ParsePoll(line)
		if err != nil {
			g.measurement = invalidMeasurement
			return fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
		if !r.Unit.Valid() || r.Unit != g.settings.Unit {
			return fmt.Errorf("%w: sensor reports %s, configured %s", ErrUnitMismatch, r.Unit, g.settings.Unit)
		}
		g.measurement = Measurement{
			Acc:      r.Acc,
			EventAcc: r.EventAcc,
			TotalAcc: r.TotalAcc,
			RInt:     r.RInt,
		}
		return nil
	})
}

// Restart reboots the sensor. The sensor does not acknowledge the command;
// after a successful write the driver waits one response timeout for the
// reboot and then discards the boot banner.
func (g *Gauge) Restart(ctx context.Context) error {
	g.reset()
	if err := g.requireTransport(OpRestart); err != nil {
		return err
	}
	return g.retry(ctx, OpRestart, func() error {
		if err := g.send(CharCommand(rg15.CmdRestart)); err != nil {
			return err
		}
		g.clock.Sleep(g.policy.ResponseTimeout)
		g.clean()
		return nil
	})
}

// ResetAccumulation clears the total accumulation counter in the sensor.
// The sensor sends no response, so success means the command was written.
func (g *Gauge) ResetAccumulation(ctx context.Context) error {
	g.reset()
	if err := g.requireTransport(OpResetAccumulation); err != nil {
		return err
	}
	return g.retry(ctx, OpResetAccumulation, func() error {
		return g.send(CharCommand(rg15.CmdResetTotal))
	})
}
