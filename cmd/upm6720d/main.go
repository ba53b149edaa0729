//go:build linux

// Command upm6720d configures a UPM6720 charge pump over I2C, tracks its
// status from the interrupt line and serves telemetry over HTTP.
// Run with --mock to use a simulated device (no I2C adapter required).
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/micro-nova/upm6720d/internal/api"
	"github.com/micro-nova/upm6720d/internal/auth"
	"github.com/micro-nova/upm6720d/internal/charger"
	"github.com/micro-nova/upm6720d/internal/config"
	"github.com/micro-nova/upm6720d/internal/events"
	"github.com/micro-nova/upm6720d/internal/hardware"
	"github.com/micro-nova/upm6720d/internal/identity"
	"github.com/micro-nova/upm6720d/internal/irqsync"
	"github.com/micro-nova/upm6720d/internal/power"
	"github.com/micro-nova/upm6720d/internal/presence"
	"github.com/micro-nova/upm6720d/internal/zeroconf"
)

// port is a hardware port the daemon has to close on exit.
type port interface {
	hardware.Port
	Open(ctx context.Context) error
	Close()
}

func main() {
	var (
		mock        = flag.Bool("mock", false, "use a simulated charge pump (no I2C device required)")
		cfgPath     = flag.String("config", config.DefaultPath, "device configuration file (YAML)")
		initConfig  = flag.Bool("init-config", false, "write the reference configuration to --config and exit")
		transport   = flag.String("transport", "ioctl", "I2C transport: ioctl or periph")
		i2cDev      = flag.String("i2c-dev", hardware.DefaultI2CDev, "I2C adapter (ioctl: device node, periph: bus name)")
		i2cAddr     = flag.Uint("i2c-addr", uint(hardware.DefaultAddr), "7-bit I2C address")
		irqPin      = flag.String("irq-pin", hardware.DefaultIRQPin, "GPIO wired to INT (empty: poll status)")
		pollEvery   = flag.Duration("poll", time.Second, "status poll interval when no interrupt line is used")
		addr        = flag.String("addr", ":8720", "HTTP listen address")
		presentFile = flag.String("present-file", "", "file holding the input-present flag (0/1)")
		monitor     = flag.Bool("monitor", false, "log a register dump every few seconds at debug level")
		logind      = flag.Bool("logind", true, "follow systemd-logind sleep signals")
		mdns        = flag.Bool("zeroconf", true, "advertise the API over mDNS")
		debug       = flag.Bool("debug", false, "enable debug logging")
		skipReads   = flag.Bool("skip-reads", false, "never read the device; every register reads as zero")
		skipWrites  = flag.Bool("skip-writes", false, "never write the device")
	)
	flag.Parse()

	// Configure logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if *initConfig {
		def := config.Default()
		if err := config.NewFileSource(*cfgPath).Save(&def); err != nil {
			slog.Error("cannot write configuration", "path", *cfgPath, "err", err)
			os.Exit(1)
		}
		slog.Info("reference configuration written", "path", *cfgPath)
		return
	}

	// Graceful shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Register port
	var hw port
	switch {
	case *mock:
		slog.Info("using mock charge pump")
		hw = mockPort{hardware.NewMock()}
	case *transport == "periph":
		hw = hardware.NewPeriph(*i2cDev, uint16(*i2cAddr))
	case *transport == "ioctl":
		hw = hardware.NewI2C(*i2cDev, uint16(*i2cAddr))
	default:
		slog.Error("unknown transport", "transport", *transport)
		os.Exit(2)
	}
	if err := hw.Open(ctx); err != nil {
		slog.Error("hardware initialization failed", "err", err)
		os.Exit(1)
	}
	defer hw.Close()

	var regs hardware.Port = hw
	if *skipReads || *skipWrites {
		slog.Warn("bus traffic suppressed", "skip_reads", *skipReads, "skip_writes", *skipWrites)
		regs = hardware.NewSkipPort(hw, *skipReads, *skipWrites)
	}

	// Configuration source
	var src config.Source = config.NewFileSource(*cfgPath)
	if _, err := os.Stat(*cfgPath); *mock && errors.Is(err, os.ErrNotExist) {
		slog.Info("no configuration file, using reference configuration", "path", *cfgPath)
		src = config.NewMemSource(config.Default())
	}

	// Interrupt line
	var line irqsync.Line
	var irq *hardware.IRQLine
	if !*mock && *irqPin != "" {
		l, err := hardware.OpenIRQLine(*irqPin)
		if err != nil {
			slog.Warn("interrupt line unavailable, polling status", "pin", *irqPin, "err", err)
		} else {
			irq, line = l, l
		}
	}

	bus := events.NewBus()

	dev, err := charger.New(ctx, regs, src, line, bus)
	if err != nil {
		slog.Error("charger initialization failed", "err", err)
		os.Exit(1)
	}

	// Status updates
	if irq != nil {
		go irq.Run(ctx, func() { dev.OnInterrupt(ctx) })
	} else {
		go poll(ctx, dev, *pollEvery)
	}

	if *monitor {
		go hardware.RunMonitor(ctx, regs, hardware.MonitorInterval)
	}

	if *presentFile != "" {
		w := presence.New(*presentFile, dev)
		go func() {
			if err := w.Run(ctx); err != nil {
				slog.Warn("presence watcher stopped", "err", err)
			}
		}()
	}

	if *logind && !*mock {
		lg, err := power.ConnectLogind()
		if err != nil {
			slog.Warn("logind unavailable, suspend is not synchronised", "err", err)
		} else {
			defer lg.Close()
			go func() {
				if err := lg.Run(ctx, power.NewHandler(dev, lg)); err != nil {
					slog.Warn("logind bridge stopped", "err", err)
				}
			}()
		}
	}

	// Auth service
	authSvc, err := auth.NewService(filepath.Dir(*cfgPath))
	if err != nil {
		slog.Error("auth service initialization failed", "err", err)
		os.Exit(1)
	}
	defer authSvc.Close()

	// Zeroconf mDNS registration
	if *mdns {
		httpPort := 80
		if parts := strings.SplitN(*addr, ":", 2); len(parts) == 2 && parts[1] != "" {
			if p, err := strconv.Atoi(parts[1]); err == nil {
				httpPort = p
			}
		}
		name := identity.InstanceName(dev.Name(), identity.GetHostname())
		zc := zeroconf.New(name, httpPort, dev.Mode().String(), dev.Name(), dev.PartNumber())
		go func() {
			if err := zc.Start(ctx); err != nil {
				slog.Warn("zeroconf failed", "err", err)
			}
		}()
	}

	// HTTP server
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.NewRouter(dev, authSvc, bus),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE)
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("upm6720d listening", "addr", *addr, "mock", *mock, "name", dev.Name(), "version", identity.GetVersion())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()

	// Graceful HTTP shutdown
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}
	if err := dev.Close(shutCtx); err != nil {
		slog.Warn("charger shutdown error", "err", err)
	}

	slog.Info("shutdown complete")
}

// poll refreshes the status on a ticker when no interrupt line is wired.
func poll(ctx context.Context, dev *charger.Device, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dev.OnInterrupt(ctx)
		}
	}
}

// mockPort gives the mock the open/close lifecycle of a real port.
type mockPort struct{ *hardware.Mock }

func (mockPort) Open(context.Context) error { return nil }
func (mockPort) Close()                     {}
