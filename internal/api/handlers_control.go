package api

import (
	"encoding/json"
	"net/http"

	"github.com/micro-nova/upm6720d/internal/models"
)

func (h *Handlers) getPresent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.PresentUpdate{Present: ptr(h.dev.Present())})
}

func (h *Handlers) setPresent(w http.ResponseWriter, r *http.Request) {
	var upd models.PresentUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, models.ErrBadRequest("invalid JSON: "+err.Error()))
		return
	}
	if upd.Present == nil {
		writeError(w, &models.AppError{Code: "BAD_REQUEST", Message: "present is required", Field: "present", Status: http.StatusBadRequest})
		return
	}
	if err := h.dev.SetPresent(r.Context(), *upd.Present); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.dev.Status())
}

func (h *Handlers) getCharge(w http.ResponseWriter, r *http.Request) {
	on, err := h.dev.ChargeEnabled(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Charge{Enabled: on})
}

func (h *Handlers) setCharge(w http.ResponseWriter, r *http.Request) {
	var upd models.ChargeUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, models.ErrBadRequest("invalid JSON: "+err.Error()))
		return
	}
	if upd.Enabled == nil {
		writeError(w, &models.AppError{Code: "BAD_REQUEST", Message: "enabled is required", Field: "enabled", Status: http.StatusBadRequest})
		return
	}
	if err := h.dev.SetChargeEnabled(r.Context(), *upd.Enabled); err != nil {
		writeError(w, err)
		return
	}
	on, err := h.dev.ChargeEnabled(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Charge{Enabled: on})
}

func ptr[T any](v T) *T { return &v }
