package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/grandcat/zeroconf"
)

const mdnsServiceType = "_rg15._tcp"

// startMDNS announces the HTTP API and returns a cleanup function. It is a
// no-op when disabled.
func startMDNS(ctx context.Context, cfg *Config, port int) (func(), error) {
	if !cfg.MDNSEnable {
		return func() {}, nil
	}
	instance := cfg.MDNSName
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("rg15-%s", host)
	}
	meta := []string{
		"version=" + version,
		"unit=" + cfg.Unit,
		"baud=" + strconv.Itoa(cfg.BaudRate),
	}
	svc, err := zeroconf.Register(instance, mdnsServiceType, "local.", port, meta, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() { close(done) }, nil
}
