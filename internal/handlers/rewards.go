package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/commutrace/tripsync-backend/internal/requestdata"
	"github.com/commutrace/tripsync-backend/internal/services"
)

type RewardsHandler struct {
	rewards services.RewardService
}

func NewRewardsHandler(rewards services.RewardService) *RewardsHandler {
	return &RewardsHandler{rewards: rewards}
}

// GET /api/rewards/balance
func (h *RewardsHandler) Balance(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	balance, err := h.rewards.GetBalance(c.Request.Context(), nil, rd.UserID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"balance": balance})
}

// GET /api/rewards/transactions?limit=...
func (h *RewardsHandler) Transactions(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = parsed
	}
	txns, err := h.rewards.ListTransactions(c.Request.Context(), nil, rd.UserID, limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"transactions": txns})
}

type redeemRequest struct {
	Points      int64  `json:"points"`
	Description string `json:"description"`
}

// POST /api/rewards/redeem
func (h *RewardsHandler) Redeem(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	txn, err := h.rewards.Redeem(c.Request.Context(), rd.UserID, req.Points, req.Description)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	balance, err := h.rewards.GetBalance(c.Request.Context(), nil, rd.UserID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"transaction": txn, "balance": balance})
}
