package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/commutrace/tripsync-backend/internal/requestdata"
	"github.com/commutrace/tripsync-backend/internal/services"
)

type ConsentHandler struct {
	consent services.ConsentService
}

func NewConsentHandler(consent services.ConsentService) *ConsentHandler {
	return &ConsentHandler{consent: consent}
}

type consentRequest struct {
	ConsentVersion     string `json:"consent_version"`
	DataSharingConsent bool   `json:"data_sharing_consent"`
	AnalyticsConsent   bool   `json:"analytics_consent"`
}

// PUT /api/consent
func (h *ConsentHandler) Record(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req consentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	record, err := h.consent.Record(c.Request.Context(), rd.UserID, req.ConsentVersion, req.DataSharingConsent, req.AnalyticsConsent)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"consent": record})
}

// GET /api/consent
func (h *ConsentHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	records, err := h.consent.List(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	latest, err := h.consent.Latest(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"consents": records, "latest": latest})
}
