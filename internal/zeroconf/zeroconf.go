// Package zeroconf advertises the daemon's HTTP API as an mDNS/DNS-SD
// service so battery management hosts on the LAN can find it.
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD service type the API is registered under.
const ServiceType = "_upm6720._tcp"

// Service manages mDNS service registration.
type Service struct {
	name string // instance name, e.g. "upm6720-master@host"
	port int
	txt  []string
}

// New creates a Service that will advertise name on port. The TXT records
// carry the device identity.
func New(name string, port int, mode, supply string, part byte) *Service {
	return &Service{
		name: name,
		port: port,
		txt: []string{
			"mode=" + mode,
			"supply=" + supply,
			fmt.Sprintf("part=%d", part),
			"api=/api",
		},
	}
}

// TXT returns the TXT records that Start registers.
func (s *Service) TXT() []string {
	out := make([]string, len(s.txt))
	copy(out, s.txt)
	return out
}

// Start registers the mDNS service and blocks until ctx is cancelled, at which
// point it shuts down the server cleanly.
func (s *Service) Start(ctx context.Context) error {
	server, err := zeroconf.Register(
		s.name,      // instance name
		ServiceType, // service type
		"local.",    // domain
		s.port,      // port
		s.txt,       // TXT records
		nil,         // nil means all interfaces
	)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	slog.Info("zeroconf: registered mDNS service",
		"name", s.name,
		"type", ServiceType,
		"port", s.port,
	)

	<-ctx.Done()

	server.Shutdown()
	slog.Info("zeroconf: mDNS service unregistered")
	return nil
}
