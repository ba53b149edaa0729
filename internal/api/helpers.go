// Package api implements the HTTP telemetry and control API of the daemon.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/micro-nova/upm6720d/internal/adc"
	"github.com/micro-nova/upm6720d/internal/hardware"
	"github.com/micro-nova/upm6720d/internal/models"
	"github.com/micro-nova/upm6720d/internal/role"
	"github.com/micro-nova/upm6720d/internal/status"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	dev    Device
	events EventBus
}

// Device is the charge pump as seen by the handlers.
type Device interface {
	Status() models.Status
	Flags() [status.NumFlags]byte
	ADC(ctx context.Context, ch adc.Channel) (int32, error)
	ADCAll(ctx context.Context) (map[adc.Channel]int32, error)
	Mode() role.Mode
	Present() bool
	SetPresent(ctx context.Context, present bool) error
	SetChargeEnabled(ctx context.Context, enable bool) error
	ChargeEnabled(ctx context.Context) (bool, error)
	DumpRegisters(ctx context.Context) ([]hardware.RegValue, error)
}

// EventBus is the interface for subscribing to status change events.
type EventBus interface {
	Subscribe(id string) <-chan models.Status
	Unsubscribe(id string)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as a JSON AppError. Bus failures map to 502.
func writeError(w http.ResponseWriter, err error) {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		var busErr *hardware.BusError
		if errors.As(err, &busErr) {
			appErr = models.ErrBus(err.Error())
		} else {
			appErr = models.ErrInternal(err.Error())
		}
	}
	writeJSON(w, appErr.Status, appErr)
}

func reading(ch adc.Channel, v int32) models.ADCReading {
	return models.ADCReading{
		Channel: ch.String(),
		Unit:    adc.Spec(ch).Unit,
		Value:   v,
		Display: adc.Format(ch, v),
	}
}
