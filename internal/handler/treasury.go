package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"suiwager/internal/cache"
	"suiwager/internal/chain"
	"suiwager/internal/models"
	"suiwager/internal/repository"
	"suiwager/internal/service"
)

// TreasuryReader is the chain surface the treasury endpoints read from.
type TreasuryReader interface {
	GetPlatformState(ctx context.Context, currency models.Currency) (models.TreasuryState, error)
	VerifyTransaction(ctx context.Context, digest string) (chain.TxFinality, error)
}

type TreasuryHandler struct {
	Treasury   *service.Treasury
	Reader     TreasuryReader
	Store      repository.BetStore
	Cache      *cache.TreasuryCache
	Currencies []models.Currency
}

func (h *TreasuryHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/treasury")
	group.GET("", h.state)
	group.POST("/withdraw", h.withdraw)
	group.GET("/scheduler", h.scheduler)
	group.GET("/withdrawals", h.withdrawals)
	r.GET("/api/v1/transactions/:digest", h.transaction)
}

func (h *TreasuryHandler) currencies() []models.Currency {
	if len(h.Currencies) > 0 {
		return h.Currencies
	}
	return models.Currencies()
}

type treasuryStateResponse struct {
	State models.TreasuryState `json:"state"`

	// PendingPayout is the sum of potential payouts on pending on-chain
	// bets; PhantomLiability is whatever the contract tracks beyond that.
	PendingPayout    decimal.Decimal `json:"pending_payout"`
	PhantomLiability decimal.Decimal `json:"phantom_liability"`
	Cached           bool            `json:"cached"`
}

func (h *TreasuryHandler) state(c *gin.Context) {
	ctx := c.Request.Context()
	out := make(map[string]treasuryStateResponse, len(h.currencies()))
	for _, currency := range h.currencies() {
		state, cached := h.Cache.Get(ctx, currency)
		if !cached {
			var err error
			state, err = h.Reader.GetPlatformState(ctx, currency)
			if err != nil {
				Error(c, http.StatusBadGateway, err.Error(), map[string]any{"currency": string(currency)})
				return
			}
			h.Cache.Put(ctx, state)
		}
		pending, err := h.Store.SumPendingPayout(ctx, currency, true)
		if err != nil {
			Error(c, http.StatusInternalServerError, err.Error(), nil)
			return
		}
		out[string(currency)] = treasuryStateResponse{
			State:            state,
			PendingPayout:    pending,
			PhantomLiability: state.Liability.Sub(pending),
			Cached:           cached,
		}
	}
	Ok(c, out, nil)
}

func (h *TreasuryHandler) withdraw(c *gin.Context) {
	result, err := h.Treasury.RunCycle(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrCycleInFlight) {
			Error(c, http.StatusConflict, err.Error(), nil)
			return
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

func (h *TreasuryHandler) scheduler(c *gin.Context) {
	Ok(c, h.Treasury.Status(), nil)
}

func (h *TreasuryHandler) withdrawals(c *gin.Context) {
	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	var currency *models.Currency
	if raw := strings.TrimSpace(c.Query("currency")); raw != "" {
		parsed, err := models.ParseCurrency(raw)
		if err != nil {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		currency = &parsed
	}
	rows, err := h.Store.ListFeeWithdrawals(c.Request.Context(), currency, limit)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	OkList(c, rows, nil)
}

func (h *TreasuryHandler) transaction(c *gin.Context) {
	digest := strings.TrimSpace(c.Param("digest"))
	if digest == "" {
		Error(c, http.StatusBadRequest, "digest required", nil)
		return
	}
	finality, err := h.Reader.VerifyTransaction(c.Request.Context(), digest)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, finality, nil)
}
