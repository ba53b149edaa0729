//go:build linux

package power

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

const (
	login1Dest  = "org.freedesktop.login1"
	login1Path  = dbus.ObjectPath("/org/freedesktop/login1")
	login1Iface = "org.freedesktop.login1.Manager"
)

// Logind is a systemd-logind connection that holds a sleep delay lock and
// delivers PrepareForSleep signals.
type Logind struct {
	conn *dbus.Conn

	mu sync.Mutex
	fd int
}

// ConnectLogind connects to the system bus and takes a delay lock.
func ConnectLogind() (*Logind, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("power: connect system bus: %w", err)
	}
	l := &Logind{conn: conn, fd: -1}
	if err := l.Acquire(); err != nil {
		conn.Close()
		return nil, err
	}
	return l, nil
}

// Acquire takes a sleep delay inhibitor lock unless one is held.
func (l *Logind) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fd >= 0 {
		return nil
	}
	var fd dbus.UnixFD
	obj := l.conn.Object(login1Dest, login1Path)
	err := obj.Call(login1Iface+".Inhibit", 0,
		"sleep", "upm6720d", "Quiesce charge pump interrupts", "delay").Store(&fd)
	if err != nil {
		return fmt.Errorf("power: inhibit: %w", err)
	}
	l.fd = int(fd)
	slog.Debug("power: sleep delay lock taken", "fd", l.fd)
	return nil
}

// Release drops the inhibitor lock, letting the pending sleep proceed.
func (l *Logind) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fd < 0 {
		return nil
	}
	err := unix.Close(l.fd)
	l.fd = -1
	if err != nil {
		return fmt.Errorf("power: close inhibitor: %w", err)
	}
	return nil
}

// Run forwards PrepareForSleep signals to h until ctx is done.
func (l *Logind) Run(ctx context.Context, h *Handler) error {
	if err := l.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(login1Path),
		dbus.WithMatchInterface(login1Iface),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		return fmt.Errorf("power: match PrepareForSleep: %w", err)
	}
	signals := make(chan *dbus.Signal, 4)
	l.conn.Signal(signals)
	defer l.conn.RemoveSignal(signals)
	slog.Info("power: listening for logind sleep signals")

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return fmt.Errorf("power: system bus closed")
			}
			if sig.Name != login1Iface+".PrepareForSleep" || len(sig.Body) != 1 {
				continue
			}
			start, ok := sig.Body[0].(bool)
			if !ok {
				continue
			}
			h.PrepareForSleep(ctx, start)
		}
	}
}

// Close releases the lock and the bus connection.
func (l *Logind) Close() error {
	relErr := l.Release()
	if err := l.conn.Close(); err != nil {
		return err
	}
	return relErr
}

var _ Inhibitor = (*Logind)(nil)
