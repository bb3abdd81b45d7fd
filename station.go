package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"i4.energy/across/raingauge/gauge"
	"i4.energy/across/raingauge/metrics"
	"i4.energy/across/raingauge/publish"
	"i4.energy/across/raingauge/rg15"
)

var ErrNoMeasurement = errors.New("no measurement yet")

type publisher interface {
	Publish(ctx context.Context, payload publish.Payload) error
}

// Reading is a committed measurement with the time it was taken.
type Reading struct {
	gauge.Measurement
	Unit rg15.Unit `json:"unit"`
	Time time.Time `json:"time"`
}

// Status describes the gauge as seen by the last operation.
type Status struct {
	Ready     bool           `json:"ready"`
	Settings  gauge.Settings `json:"settings"`
	LastOp    gauge.Op       `json:"last_op,omitempty"`
	LastError gauge.Code     `json:"last_error"`
	Attempts  int            `json:"attempts"`
	Response  string         `json:"response"`
	LastPoll  *time.Time     `json:"last_poll,omitempty"`
}

// Station serializes access to a single gauge. The driver is not safe for
// concurrent use, so the poll loop and the HTTP handlers go through here.
type Station struct {
	mu        sync.Mutex
	gauge     *gauge.Gauge
	opts      gauge.BeginOptions
	logger    *slog.Logger
	publisher publisher
	now       func() time.Time

	ready  bool
	lastOp gauge.Op
	latest *Reading
}

// NewStation wraps g. pub may be nil.
func NewStation(g *gauge.Gauge, opts gauge.BeginOptions, logger *slog.Logger, pub publisher) *Station {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Station{
		gauge:     g,
		opts:      opts,
		logger:    logger,
		publisher: pub,
		now:       time.Now,
	}
}

// Begin configures the sensor. Readiness follows the outcome.
func (s *Station) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOp = gauge.OpBegin
	err := s.gauge.Begin(ctx, s.opts)
	s.ready = err == nil
	metrics.SetReady(s.ready)
	return err
}

// PollOnce polls the sensor and, on success, stores and publishes the
// reading. A failed publish is logged and does not fail the poll.
func (s *Station) PollOnce(ctx context.Context) error {
	s.mu.Lock()
	s.lastOp = gauge.OpPoll
	if err := s.gauge.Poll(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	reading := Reading{
		Measurement: s.gauge.Measurement(),
		Unit:        s.gauge.Unit(),
		Time:        s.now(),
	}
	s.latest = &reading
	attempts := s.gauge.Attempts()
	s.mu.Unlock()

	metrics.SetMeasurement(reading.Measurement, reading.Unit, reading.Time)
	s.logger.Info("measurement",
		"acc", reading.Acc,
		"event_acc", reading.EventAcc,
		"total_acc", reading.TotalAcc,
		"rint", reading.RInt,
		"unit", reading.Unit,
		"attempts", attempts,
	)

	if s.publisher != nil {
		payload := publish.Payload{
			Time:     reading.Time,
			Unit:     reading.Unit.String(),
			Acc:      reading.Acc,
			EventAcc: reading.EventAcc,
			TotalAcc: reading.TotalAcc,
			RInt:     reading.RInt,
		}
		if err := s.publisher.Publish(ctx, payload); err != nil {
			s.logger.Warn("publish failed", "error", err)
		}
	}
	return nil
}

// Run polls every interval until ctx is done. The first poll happens
// immediately.
func (s *Station) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.PollOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Latest returns the most recent committed reading.
func (s *Station) Latest() (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Reading{}, ErrNoMeasurement
	}
	return *s.latest, nil
}

func (s *Station) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Ready:     s.ready,
		Settings:  s.gauge.Settings(),
		LastOp:    s.lastOp,
		LastError: s.gauge.LastError(),
		Attempts:  s.gauge.Attempts(),
		Response:  s.gauge.Response(),
	}
	if s.latest != nil {
		t := s.latest.Time
		st.LastPoll = &t
	}
	return st
}

// ResetAccumulation clears the total accumulation in the sensor.
func (s *Station) ResetAccumulation(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOp = gauge.OpResetAccumulation
	return s.gauge.ResetAccumulation(ctx)
}

// Restart reboots the sensor and runs Begin again so polling mode,
// resolution and unit match the configuration after the reboot.
func (s *Station) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOp = gauge.OpRestart
	if err := s.gauge.Restart(ctx); err != nil {
		return err
	}
	s.lastOp = gauge.OpBegin
	err := s.gauge.Begin(ctx, s.opts)
	s.ready = err == nil
	metrics.SetReady(s.ready)
	return err
}
