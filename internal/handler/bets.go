package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"suiwager/internal/models"
	"suiwager/internal/repository"
	"suiwager/internal/service"
)

type BetHandler struct {
	Lifecycle *service.Lifecycle
	Store     repository.BetStore
}

func (h *BetHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/bets")
	group.POST("", h.place)
	group.GET("/pending", h.listPending)
	group.GET("/:id", h.get)
	group.POST("/:id/cashout", h.cashOut)
}

type placeBetRequest struct {
	Bettor     string `json:"bettor"`
	EventID    string `json:"event_id"`
	Prediction string `json:"prediction"`
	Currency   string `json:"currency"`
	Stake      string `json:"stake"`
	Odds       string `json:"odds"`
}

func (h *BetHandler) place(c *gin.Context) {
	var req placeBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	req.Bettor = strings.TrimSpace(req.Bettor)
	req.EventID = strings.TrimSpace(req.EventID)
	if req.Bettor == "" || req.EventID == "" || strings.TrimSpace(req.Prediction) == "" {
		Error(c, http.StatusBadRequest, "bettor, event_id and prediction required", nil)
		return
	}
	currency, err := models.ParseCurrency(req.Currency)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	stake, err := decimal.NewFromString(strings.TrimSpace(req.Stake))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid stake", nil)
		return
	}
	odds, err := decimal.NewFromString(strings.TrimSpace(req.Odds))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid odds", nil)
		return
	}

	bet, err := h.Lifecycle.Place(c.Request.Context(), service.PlaceRequest{
		Bettor:     req.Bettor,
		EventID:    req.EventID,
		Prediction: strings.TrimSpace(req.Prediction),
		Currency:   currency,
		Stake:      stake,
		Odds:       odds,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidStake) || errors.Is(err, service.ErrInvalidOdds) {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, bet, nil)
}

func (h *BetHandler) listPending(c *gin.Context) {
	params := repository.ListPendingParams{}
	if raw := strings.TrimSpace(c.Query("currency")); raw != "" {
		currency, err := models.ParseCurrency(raw)
		if err != nil {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		params.Currency = &currency
	}
	bets, err := h.Store.ListPending(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	OkList(c, bets, nil)
}

func (h *BetHandler) get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid bet id", nil)
		return
	}
	bet, err := h.Store.GetBet(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			Error(c, http.StatusNotFound, "bet not found", nil)
			return
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, bet, nil)
}

type cashOutRequest struct {
	Multiplier *string `json:"multiplier"`
}

func (h *BetHandler) cashOut(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid bet id", nil)
		return
	}
	// The body is optional: an empty body means "use the quoted multiplier".
	var req cashOutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid body", nil)
			return
		}
	}
	var multiplier *decimal.Decimal
	if req.Multiplier != nil && strings.TrimSpace(*req.Multiplier) != "" {
		v, err := decimal.NewFromString(strings.TrimSpace(*req.Multiplier))
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid multiplier", nil)
			return
		}
		multiplier = &v
	}

	out, err := h.Lifecycle.CashOut(c.Request.Context(), id, multiplier)
	if err != nil {
		writeSettleError(c, err)
		return
	}
	Ok(c, out, nil)
}
