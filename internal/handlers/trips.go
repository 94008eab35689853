package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/commutrace/tripsync-backend/internal/requestdata"
	"github.com/commutrace/tripsync-backend/internal/services"
)

type TripsHandler struct {
	trips  services.TripService
	chains services.ChainService
}

func NewTripsHandler(trips services.TripService, chains services.ChainService) *TripsHandler {
	return &TripsHandler{trips: trips, chains: chains}
}

// GET /api/trips?from=...&to=...
func (h *TripsHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	from, to, err := parseRange(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_range", err)
		return
	}
	trips, err := h.trips.List(c.Request.Context(), rd.UserID, from, to)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"trips": trips})
}

// GET /api/trips/:id
func (h *TripsHandler) Get(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_trip_id", err)
		return
	}
	trip, err := h.trips.Get(c.Request.Context(), rd.UserID, tripID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"trip": trip})
}

// PATCH /api/trips/:id
func (h *TripsHandler) Correct(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_trip_id", err)
		return
	}
	var correction services.TripCorrection
	if err := c.ShouldBindJSON(&correction); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	trip, err := h.trips.Correct(c.Request.Context(), rd.UserID, tripID, correction)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"trip": trip})
}

// GET /api/chains/:id
func (h *TripsHandler) GetChain(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	chainID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_chain_id", err)
		return
	}
	chain, err := h.chains.GetForUser(c.Request.Context(), nil, rd.UserID, chainID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if chain == nil {
		RespondError(c, http.StatusNotFound, "not_found", nil)
		return
	}
	RespondOK(c, gin.H{"chain": chain})
}

func parseRange(c *gin.Context) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now().UTC().Add(time.Hour)
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, err
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, err
		}
		to = parsed
	}
	return from, to, nil
}
