// Package gauge drives a Hydreon RG-15 rain gauge in polling mode over a
// line-oriented serial protocol.
package gauge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"i4.energy/across/raingauge/rg15"
)

// Op names a public operation in logs, errors and observations.
type Op string

const (
	OpBegin             Op = "begin"
	OpPoll              Op = "poll"
	OpRestart           Op = "restart"
	OpChangeBaudRate    Op = "change_baud_rate"
	OpPollingMode       Op = "polling_mode"
	OpHighResolution    Op = "high_resolution"
	OpLowResolution     Op = "low_resolution"
	OpSetUnit           Op = "set_unit"
	OpResetAccumulation Op = "reset_accumulation"
)

// Observer is told about every finished operation, successful or not.
type Observer interface {
	ObserveOperation(op Op, attempts int, code Code)
}

// Measurement holds the four values of one poll. Values are in the unit the
// gauge is configured for.
type Measurement struct {
	Acc      float64 `json:"acc"`
	EventAcc float64 `json:"event_acc"`
	TotalAcc float64 `json:"total_acc"`
	RInt     float64 `json:"rint"`
}

// invalidMeasurement is stored when a poll response cannot be parsed.
var invalidMeasurement = Measurement{Acc: -1, EventAcc: -1, TotalAcc: -1, RInt: -1}

// Settings is the driver's view of the sensor configuration. Fields change
// only when the sensor acknowledged the change.
type Settings struct {
	BaudRate   int             `json:"baud_rate"`
	Unit       rg15.Unit       `json:"unit"`
	Resolution rg15.Resolution `json:"resolution"`
	Polling    bool            `json:"polling"`
}

// Gauge is a driver for one sensor. Operations block until they succeed or
// exhaust the retry policy; they own the transport for their duration and
// must not be called concurrently on the same Gauge.
//
// Every operation returns nil on success. On failure the returned error
// wraps one of the sentinel errors, and LastError reports the same Code
// until the next operation starts.
type Gauge struct {
	transport Transport
	clock     Clock
	logger    *slog.Logger
	observer  Observer
	policy    RetryPolicy

	buf         responseBuffer
	settings    Settings
	measurement Measurement
	lastErr     Code
	attempts    int
}

// New creates a Gauge from config. It does no I/O; call Begin to bring the
// sensor into a known state.
func New(config Config) (*Gauge, error) {
	config.setDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Gauge{
		transport: config.transport,
		clock:     config.clock,
		logger:    config.logger,
		observer:  config.observer,
		policy:    config.policy,
	}, nil
}

// BeginOptions selects the settings applied by Begin.
type BeginOptions struct {
	BaudRate       int
	HighResolution bool
	Unit           rg15.Unit
}

// DefaultBeginOptions are the recommended settings: 9600 baud, high
// resolution, metric.
func DefaultBeginOptions() BeginOptions {
	return BeginOptions{
		BaudRate:       rg15.DefaultBaudRate,
		HighResolution: true,
		Unit:           rg15.UnitMetric,
	}
}

// Begin sets the local baud rate, then puts the sensor in polling mode with
// the requested resolution and unit. All three settings are attempted even
// when one fails; the returned error joins every failure and LastError
// reports the last one.
func (g *Gauge) Begin(ctx context.Context, opts BeginOptions) error {
	g.reset()
	if _, ok := rg15.BaudCode(opts.BaudRate); !ok {
		return g.fail(OpBegin, fmt.Errorf("%w: %d", ErrUnsupportedBaudRate, opts.BaudRate))
	}
	if err := g.requireTransport(OpBegin); err != nil {
		return err
	}
	if err := g.transport.SetBaudRate(opts.BaudRate); err != nil {
		return g.fail(OpBegin, fmt.Errorf("%w: set local baud rate: %w", ErrTransportMissing, err))
	}
	g.settings.BaudRate = opts.BaudRate

	setResolution := g.SetLowResolution
	if opts.HighResolution {
		setResolution = g.SetHighResolution
	}
	steps := []func(context.Context) error{
		g.SetPollingMode,
		setResolution,
		func(ctx context.Context) error { return g.SetUnit(ctx, opts.Unit) },
	}

	var (
		errs    []error
		lastErr Code
	)
	for _, step := range steps {
		if err := step(ctx); err != nil {
			errs = append(errs, err)
			lastErr = g.lastErr
		}
	}
	if len(errs) > 0 {
		g.lastErr = lastErr
		g.observe(OpBegin)
		return fmt.Errorf("%s: %w", OpBegin, errors.Join(errs...))
	}
	g.observe(OpBegin)
	g.logger.Info("gauge ready",
		"baud_rate", g.settings.BaudRate,
		"resolution", g.settings.Resolution,
		"unit", g.settings.Unit,
	)
	return nil
}

// reset clears the per-operation state.
func (g *Gauge) reset() {
	g.lastErr = CodeOK
	g.attempts = 0
	g.buf.reset()
}

func (g *Gauge) requireTransport(op Op) error {
	if g.transport == nil {
		return g.fail(op, ErrTransportMissing)
	}
	return nil
}

// fail records a pre-flight error that consumed no attempt.
func (g *Gauge) fail(op Op, err error) error {
	g.lastErr = CodeOf(err)
	g.observe(op)
	return fmt.Errorf("%s: %w", op, err)
}

func (g *Gauge) observe(op Op) {
	if g.observer != nil {
		g.observer.ObserveOperation(op, g.attempts, g.lastErr)
	}
}

// Measurement returns the values of the last successful poll. After a poll
// whose response could not be parsed all four values are -1.
func (g *Gauge) Measurement() Measurement { return g.measurement }

// Accumulation is the rainfall since the previous poll.
func (g *Gauge) Accumulation() float64 { return g.measurement.Acc }

// EventAccumulation is the rainfall of the current event.
func (g *Gauge) EventAccumulation() float64 { return g.measurement.EventAcc }

// TotalAccumulation is the rainfall since the last accumulation reset.
func (g *Gauge) TotalAccumulation() float64 { return g.measurement.TotalAcc }

// RainfallIntensity is the current rainfall rate.
func (g *Gauge) RainfallIntensity() float64 { return g.measurement.RInt }

// LastError returns the outcome of the most recent operation.
func (g *Gauge) LastError() Code { return g.lastErr }

// Attempts returns the attempts consumed by the most recent operation.
func (g *Gauge) Attempts() int { return g.attempts }

// Response returns the last line collected from the sensor, or the partial
// line when collection failed.
func (g *Gauge) Response() string { return g.buf.String() }

func (g *Gauge) Settings() Settings { return g.settings }

func (g *Gauge) Unit() rg15.Unit { return g.settings.Unit }
