package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/R3E-Network/fortivo/internal/httputil"
	supabase "github.com/R3E-Network/fortivo/supabase/client"
)

// CircuitReporter exposes a circuit breaker state.
type CircuitReporter interface {
	State() supabase.CircuitState
}

type volumeStats struct {
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

type healthResponse struct {
	Status   string       `json:"status"`
	Uploads  *volumeStats `json:"uploads,omitempty"`
	Database string       `json:"database"`
	Storage  string       `json:"storage,omitempty"`
}

// health always answers 200. The database field carries the store state.
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "memory"}
	if h.cfg.Database != nil {
		resp.Database = "ok"
		if err := h.cfg.Database.Ping(ctx); err != nil {
			h.log.WithContext(ctx).WithError(err).Warn("database ping failed")
			resp.Database = "unavailable"
			resp.Status = "degraded"
		}
	}
	if h.cfg.StorageCircuit != nil {
		state := h.cfg.StorageCircuit.State()
		resp.Storage = state.String()
		if state == supabase.CircuitOpen {
			resp.Status = "degraded"
		}
	}
	if h.cfg.UploadsDir != "" {
		if usage, err := disk.UsageWithContext(ctx, h.cfg.UploadsDir); err == nil {
			resp.Uploads = &volumeStats{Total: usage.Total, Free: usage.Free, UsedPercent: usage.UsedPercent}
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
