package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/commutrace/tripsync-backend/internal/requestdata"
	"github.com/commutrace/tripsync-backend/internal/services"
)

const maxBatchSize = 100

type SyncHandler struct {
	sync services.SyncService
}

func NewSyncHandler(sync services.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

type syncRequest struct {
	Trips []services.TripSubmission `json:"trips"`
}

// POST /api/trips/sync
func (h *SyncHandler) Sync(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd.DeviceID == "" {
		RespondError(c, http.StatusBadRequest, "missing_device", fmt.Errorf("token carries no device_id"))
		return
	}
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if len(req.Trips) == 0 {
		RespondError(c, http.StatusBadRequest, "empty_batch", fmt.Errorf("trips must not be empty"))
		return
	}
	if len(req.Trips) > maxBatchSize {
		RespondError(c, http.StatusBadRequest, "batch_too_large", fmt.Errorf("at most %d trips per batch", maxBatchSize))
		return
	}
	result, err := h.sync.SyncBatch(c.Request.Context(), rd.UserID, rd.DeviceID, req.Trips)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}
