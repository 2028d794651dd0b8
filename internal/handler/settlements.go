package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"suiwager/internal/chain"
	"suiwager/internal/models"
	"suiwager/internal/repository"
	"suiwager/internal/service"
	"suiwager/internal/signer"
)

type SettlementHandler struct {
	Lifecycle *service.Lifecycle
}

func (h *SettlementHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/settlements")
	group.POST("", h.settle)
	group.POST("/bulk", h.settleBulk)
}

type settleRequest struct {
	BetID   uint64 `json:"bet_id"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason"`
}

func (h *SettlementHandler) settle(c *gin.Context) {
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if req.BetID == 0 {
		Error(c, http.StatusBadRequest, "bet_id required", nil)
		return
	}
	outcome := models.Outcome(strings.ToLower(strings.TrimSpace(req.Outcome)))
	if !outcome.Valid() {
		Error(c, http.StatusBadRequest, "outcome must be won|lost|void", nil)
		return
	}

	out, err := h.Lifecycle.SettleBet(c.Request.Context(), req.BetID, outcome, strings.TrimSpace(req.Reason))
	if err != nil {
		writeSettleError(c, err)
		return
	}
	Ok(c, out, nil)
}

type bulkSettleRequest struct {
	Outcome  string `json:"outcome"`
	Currency string `json:"currency"`
	Reason   string `json:"reason"`
}

func (h *SettlementHandler) settleBulk(c *gin.Context) {
	var req bulkSettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	outcome := models.Outcome(strings.ToLower(strings.TrimSpace(req.Outcome)))
	if !outcome.Valid() {
		Error(c, http.StatusBadRequest, "outcome must be won|lost|void", nil)
		return
	}
	var currency *models.Currency
	if raw := strings.TrimSpace(req.Currency); raw != "" {
		parsed, err := models.ParseCurrency(raw)
		if err != nil {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		currency = &parsed
	}

	result, err := h.Lifecycle.SettleAllPending(c.Request.Context(), outcome, currency, strings.TrimSpace(req.Reason))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

// writeSettleError maps settlement failures onto HTTP statuses shared by the
// single, bulk and cash-out endpoints.
func writeSettleError(c *gin.Context, err error) {
	var chainErr *service.ChainError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		Error(c, http.StatusNotFound, "bet not found", nil)
	case errors.Is(err, service.ErrBetNotPending):
		Error(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, repository.ErrStaleStatus):
		Error(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, signer.ErrEventNotFinished),
		errors.Is(err, signer.ErrBadOutcome),
		errors.Is(err, signer.ErrNegativePayout):
		Error(c, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, signer.ErrNoSigner):
		Error(c, http.StatusServiceUnavailable, err.Error(), nil)
	case errors.As(err, &chainErr):
		Error(c, http.StatusBadGateway, err.Error(), map[string]any{
			"code":      string(chainErr.Code),
			"retryable": chainErr.Code == chain.FailureNetwork,
		})
	default:
		Error(c, http.StatusInternalServerError, err.Error(), nil)
	}
}
