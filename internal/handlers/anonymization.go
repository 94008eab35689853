package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/commutrace/tripsync-backend/internal/requestdata"
	"github.com/commutrace/tripsync-backend/internal/services"
)

type AnonymizationHandler struct {
	anon services.AnonymizationService
}

func NewAnonymizationHandler(anon services.AnonymizationService) *AnonymizationHandler {
	return &AnonymizationHandler{anon: anon}
}

// POST /api/anonymization/jobs
func (h *AnonymizationHandler) Submit(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req services.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	job, estimated, err := h.anon.Submit(c.Request.Context(), rd.UserID, req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"job": job, "estimated_completion": estimated})
}

// GET /api/anonymization/jobs/:id
func (h *AnonymizationHandler) Get(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.anon.GetForRequester(c.Request.Context(), rd.UserID, jobID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// GET /api/anonymization/jobs?limit=...
func (h *AnonymizationHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = parsed
	}
	jobsList, err := h.anon.List(c.Request.Context(), rd.UserID, limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"jobs": jobsList})
}
