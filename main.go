package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"i4.energy/across/raingauge/gauge"
	"i4.energy/across/raingauge/metrics"
	"i4.energy/across/raingauge/publish"
	"i4.energy/across/raingauge/rg15"
)

var version = "dev"

func main() {
	configFile := flag.String("config", "", "Path to a YAML configuration file")
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port the gauge is connected to")
	flag.Int("baud-rate", rg15.DefaultBaudRate, "Baud rate for serial communication")
	flag.String("unit", "metric", "Measurement unit (metric, imperial)")
	flag.Bool("high-resolution", true, "Use the high resolution bucket setting")
	flag.Duration("poll-interval", time.Minute, "Time between two polls")
	flag.Int("max-attempts", gauge.DefaultMaxAttempts, "Attempts per gauge operation")
	flag.Duration("clean-timeout", gauge.DefaultCleanTimeout, "Time spent draining stale bytes before an attempt")
	flag.Duration("response-timeout", gauge.DefaultResponseTimeout, "Time to wait for a response line")
	flag.Bool("skip-first-clean", false, "Skip draining stale bytes before the first attempt")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("log-format", "json", "Log format (json, text)")
	flag.String("mqtt-broker", "", "MQTT broker URL; publishing is disabled when empty")
	flag.String("mqtt-topic", publish.DefaultTopic, "MQTT topic for measurements")
	flag.String("mqtt-client-id", "", "MQTT client ID (default derived from the machine ID)")
	flag.Bool("mdns-enable", false, "Announce the HTTP API via mDNS")
	flag.String("mdns-name", "", "mDNS instance name (default rg15-<hostname>)")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithFile(*configFile), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := config.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(config.LogFormat, config.LogLevel)
	metrics.BuildInfo.WithLabelValues(version).Set(1)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, logger); err != nil {
		logger.Error("Rain gauge service failed", "error", err)
		os.Exit(1)
	}
}

func setupLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	l := slog.New(h).With("app", "rg15")
	slog.SetDefault(l)
	return l
}

// openGauge dials the transport and builds a driver on top of it.
func openGauge(ctx context.Context, dialer gauge.Dialer, config *Config, logger *slog.Logger) (*gauge.Gauge, gauge.Transport, error) {
	transport, err := dialer.Dial(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open gauge: %w", err)
	}

	gaugeConfig, err := gauge.NewConfigBuilder().
		WithTransport(transport).
		WithLogger(logger.With("component", "gauge")).
		WithObserver(metrics.Observer{}).
		WithMaxAttempts(config.MaxAttempts).
		WithCleanTimeout(config.CleanTimeout).
		WithResponseTimeout(config.ResponseTimeout).
		WithSkipFirstClean(config.SkipFirstClean).
		Build()
	if err != nil {
		transport.Close()
		return nil, nil, err
	}

	g, err := gauge.New(gaugeConfig)
	if err != nil {
		transport.Close()
		return nil, nil, err
	}
	return g, transport, nil
}

func beginOptions(config *Config) gauge.BeginOptions {
	unit, _ := rg15.ParseUnit(config.Unit)
	return gauge.BeginOptions{
		BaudRate:       config.BaudRate,
		HighResolution: config.HighResolution,
		Unit:           unit,
	}
}

func run(ctx context.Context, config *Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, transport, err := openGauge(ctx, gauge.SerialDialer{
		PortName: config.SerialPort,
		BaudRate: config.BaudRate,
	}, config, logger)
	if err != nil {
		return err
	}
	defer func() {
		logger.Info("Closing gauge connection")
		if err := transport.Close(); err != nil {
			logger.Error("Failed to close gauge", "error", err)
		}
	}()

	var pub publisher
	if config.MQTTBroker != "" {
		clientID := config.MQTTClientID
		if clientID == "" {
			clientID = publish.DefaultClientID()
		}
		p, err := publish.New(publish.Options{
			Broker:   config.MQTTBroker,
			ClientID: clientID,
			Topic:    config.MQTTTopic,
			Username: config.MQTTUsername,
			Password: config.MQTTPassword,
		}, logger.With("component", "mqtt"))
		if err != nil {
			return err
		}
		if err := p.Connect(ctx); err != nil {
			logger.Warn("MQTT broker not reachable yet, will keep retrying", "broker", config.MQTTBroker, "error", err)
		}
		defer p.Close()
		pub = p
	}

	station := NewStation(g, beginOptions(config), logger.With("component", "station"), pub)
	if err := station.Begin(ctx); err != nil {
		// Polling continues; the status endpoint reports the failure.
		logger.Error("Failed to initialize gauge", "error", err, "code", g.LastError())
	}

	listener, err := net.Listen("tcp", config.BindAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", config.BindAddress, err)
	}
	httpServer := &http.Server{
		Handler: &Server{
			Logger:  logger.With("component", "server"),
			Station: station,
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopMDNS, err := startMDNS(ctx, config, listenerPort(listener))
	if err != nil {
		logger.Warn("mDNS registration failed", "error", err)
	} else {
		defer stopMDNS()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", listener.Addr().String())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	logger.Info("Starting rain gauge service", "version", version, "serial_port", config.SerialPort, "poll_interval", config.PollInterval)
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		station.Run(ctx, config.PollInterval)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
		}
	}

	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
	}
	<-pollDone
	return nil
}

func listenerPort(l net.Listener) int {
	if addr, ok := l.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	_, port, _ := net.SplitHostPort(l.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}
