package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/tandem-app/checkin-server-go/internal/errors"
	"github.com/tandem-app/checkin-server-go/internal/jobs"
	"github.com/tandem-app/checkin-server-go/internal/util"
)

// MaintenanceHandler triggers an immediate cleanup sweep. It is guarded by a
// bcrypt password hash from config; with no hash configured the endpoint is
// disabled.
type MaintenanceHandler struct {
	cleanupJob   *jobs.CleanupJob
	passwordHash string
}

func NewMaintenanceHandler(cleanupJob *jobs.CleanupJob, passwordHash string) *MaintenanceHandler {
	return &MaintenanceHandler{
		cleanupJob:   cleanupJob,
		passwordHash: passwordHash,
	}
}

type sweepRequest struct {
	Password string `json:"password"`
}

// POST /maintenance/sweep
func (h *MaintenanceHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	if h.passwordHash == "" {
		writeError(w, apperrors.Forbidden("Maintenance endpoint is disabled"))
		return
	}

	var req sweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if !util.CheckPasswordHash(req.Password, h.passwordHash) {
		log.Warn().Str("remoteAddr", r.RemoteAddr).Msg("maintenance sweep: wrong password")
		writeError(w, apperrors.Unauthorized("Invalid maintenance password"))
		return
	}

	h.cleanupJob.RunOnce(r.Context())
	log.Info().Msg("maintenance sweep completed")

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
