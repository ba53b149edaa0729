package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/micro-nova/upm6720d/internal/adc"
	"github.com/micro-nova/upm6720d/internal/hardware"
	"github.com/micro-nova/upm6720d/internal/identity"
	"github.com/micro-nova/upm6720d/internal/models"
)

func (h *Handlers) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, identity.Get(h.dev.Mode().SupplyName()))
}

func (h *Handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dev.Status())
}

func (h *Handlers) getFlags(w http.ResponseWriter, r *http.Request) {
	flags := h.dev.Flags()
	out := make([]models.Register, len(flags))
	for i, v := range flags {
		out[i] = models.Register{
			Addr:  fmt.Sprintf("0x%02X", hardware.RegFlag1+hardware.Register(i)),
			Value: fmt.Sprintf("0x%02X", v),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getMode(w http.ResponseWriter, r *http.Request) {
	m := h.dev.Mode()
	writeJSON(w, http.StatusOK, models.Mode{Mode: m.String(), Supply: m.SupplyName()})
}

// getADC returns every channel that could be read. It fails only when no
// channel could.
func (h *Handlers) getADC(w http.ResponseWriter, r *http.Request) {
	values, err := h.dev.ADCAll(r.Context())
	if err != nil {
		if len(values) == 0 {
			writeError(w, err)
			return
		}
		slog.Warn("api: partial adc read", "read", len(values), "err", err)
	}
	out := make([]models.ADCReading, 0, len(values))
	for _, ch := range adc.Channels() {
		if v, ok := values[ch]; ok {
			out = append(out, reading(ch, v))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getADCChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := adc.ParseChannel(chi.URLParam(r, "channel"))
	if err != nil {
		writeError(w, models.ErrNotFound(err.Error()))
		return
	}
	v, err := h.dev.ADC(r.Context(), ch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reading(ch, v))
}

func (h *Handlers) getRegisters(w http.ResponseWriter, r *http.Request) {
	regs, err := h.dev.DumpRegisters(r.Context())
	if err != nil {
		if len(regs) == 0 {
			writeError(w, err)
			return
		}
		slog.Warn("api: partial register dump", "read", len(regs), "err", err)
	}
	out := make([]models.Register, len(regs))
	for i, rv := range regs {
		out[i] = models.Register{
			Addr:  fmt.Sprintf("0x%02X", rv.Reg),
			Value: fmt.Sprintf("0x%02X", rv.Val),
		}
	}
	writeJSON(w, http.StatusOK, out)
}
