package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/commutrace/tripsync-backend/internal/requestdata"
	"github.com/commutrace/tripsync-backend/internal/services"
)

type PrivacyHandler struct {
	privacy services.PrivacyService
}

func NewPrivacyHandler(privacy services.PrivacyService) *PrivacyHandler {
	return &PrivacyHandler{privacy: privacy}
}

// POST /api/privacy/export
func (h *PrivacyHandler) Export(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req services.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	export, err := h.privacy.Export(c.Request.Context(), rd.UserID, req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"export": export})
}

// GET /api/privacy/deletion-token
func (h *PrivacyHandler) DeletionToken(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	RespondOK(c, gin.H{"confirmation_token": h.privacy.DeletionToken(rd.UserID)})
}

// POST /api/privacy/delete
func (h *PrivacyHandler) Delete(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req services.DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	deletion, err := h.privacy.Delete(c.Request.Context(), rd.UserID, req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deletion": deletion})
}
