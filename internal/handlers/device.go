package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/commutrace/tripsync-backend/internal/requestdata"
	"github.com/commutrace/tripsync-backend/internal/services"
)

type DeviceHandler struct {
	devices services.DeviceService
}

func NewDeviceHandler(devices services.DeviceService) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

type registerDeviceRequest struct {
	DeviceID    string `json:"device_id"`
	KeyMaterial string `json:"key_material"`
}

// POST /api/devices/register
func (h *DeviceHandler) Register(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	key, err := h.devices.Register(c.Request.Context(), rd.UserID, req.DeviceID, req.KeyMaterial)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"device_id": key.DeviceID, "registered_at": key.UpdatedAt})
}
