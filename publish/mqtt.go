// Package publish sends committed measurements to an MQTT broker.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	DefaultTopic          = "rg15/measurement"
	DefaultConnectTimeout = 10 * time.Second
)

var (
	// ErrNoBroker is returned by New when no broker URL is configured.
	ErrNoBroker = errors.New("publish: no MQTT broker configured")

	// ErrConnectTimeout is returned when the broker did not accept the
	// connection within the connect timeout.
	ErrConnectTimeout = errors.New("publish: connect timed out")

	ErrPublishTimeout = errors.New("publish: broker did not acknowledge in time")
)

type Options struct {
	Broker         string
	ClientID       string
	Topic          string
	Username       string
	Password       string
	QoS            byte
	Retained       bool
	ConnectTimeout time.Duration
}

// Payload is the JSON document published per measurement.
type Payload struct {
	Time     time.Time `json:"time"`
	Unit     string    `json:"unit"`
	Acc      float64   `json:"acc"`
	EventAcc float64   `json:"event_acc"`
	TotalAcc float64   `json:"total_acc"`
	RInt     float64   `json:"rint"`
}

// client is the subset of paho.Client the publisher uses.
type client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
	Disconnect(quiesce uint)
}

type Publisher struct {
	client client
	opts   Options
	logger *slog.Logger
}

// New prepares a publisher. It does not connect; call Connect.
func New(opts Options, logger *slog.Logger) (*Publisher, error) {
	if opts.Broker == "" {
		return nil, ErrNoBroker
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	if opts.ClientID == "" {
		opts.ClientID = DefaultClientID()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectTimeout(opts.ConnectTimeout).
		SetOnConnectHandler(func(paho.Client) {
			logger.Info("mqtt connected", "broker", opts.Broker)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		})

	return &Publisher{client: paho.NewClient(co), opts: opts, logger: logger}, nil
}

func (p *Publisher) Connect(ctx context.Context) error {
	return wait(ctx, p.client.Connect(), p.opts.ConnectTimeout, ErrConnectTimeout)
}

func (p *Publisher) Publish(ctx context.Context, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	token := p.client.Publish(p.opts.Topic, p.opts.QoS, p.opts.Retained, data)
	if err := wait(ctx, token, p.opts.ConnectTimeout, ErrPublishTimeout); err != nil {
		return fmt.Errorf("publish to %s: %w", p.opts.Topic, err)
	}
	p.logger.Debug("measurement published", "topic", p.opts.Topic, "bytes", len(data))
	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

// wait blocks until token completes, ctx is done, or timeout (if > 0)
// elapses.
func wait(ctx context.Context, token paho.Token, timeout time.Duration, timeoutErr error) error {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		return timeoutErr
	}
}

// DefaultClientID derives a stable client id from the machine id so a
// restarted daemon takes over its previous session.
func DefaultClientID() string {
	id, err := machineid.ProtectedID("rg15-gauge")
	if err != nil || len(id) < 12 {
		return "rg15-gauge"
	}
	return "rg15-" + id[:12]
}
