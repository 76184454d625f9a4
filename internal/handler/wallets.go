package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"solsniper/internal/execution"
	"solsniper/internal/wallet"
)

type WalletsHandler struct {
	Coordinator *wallet.Coordinator
	// Funder is the main account that funds batches. Funding is refused
	// when it has no secret.
	Funder execution.Account
	// DefaultSlippage applies to coordinated trades that omit max_slippage.
	DefaultSlippage float64
}

func (h *WalletsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/wallets")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:name", h.get)
	g.DELETE("/:name", h.delete)
	g.GET("/:name/balances", h.balances)
	g.POST("/:name/fund", h.fund)
	g.POST("/:name/buy", h.trade("buy"))
	g.POST("/:name/sell", h.trade("sell"))
	g.POST("/:name/sweep", h.sweep)
}

func (h *WalletsHandler) list(c *gin.Context) {
	items, err := h.Coordinator.List(c.Request.Context())
	if err != nil {
		writeWalletError(c, err, nil)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}

type createBatchRequest struct {
	Name   string `json:"name"`
	Count  int    `json:"count"`
	Prefix string `json:"prefix"`
}

// @Summary Create a wallet batch
// @Tags wallets
// @Param body body createBatchRequest true "batch"
// @Success 201 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/wallets [post]
func (h *WalletsHandler) create(c *gin.Context) {
	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	b, err := h.Coordinator.Create(c.Request.Context(), req.Name, req.Count, req.Prefix)
	if err != nil {
		writeWalletError(c, err, nil)
		return
	}
	Created(c, b, nil)
}

func (h *WalletsHandler) get(c *gin.Context) {
	b, err := h.Coordinator.Get(c.Request.Context(), strings.TrimSpace(c.Param("name")))
	if err != nil {
		writeWalletError(c, err, nil)
		return
	}
	Ok(c, b, nil)
}

func (h *WalletsHandler) delete(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if err := h.Coordinator.Delete(c.Request.Context(), name); err != nil {
		writeWalletError(c, err, nil)
		return
	}
	Ok(c, gin.H{"deleted": name}, nil)
}

// @Summary Balances of every account in a batch
// @Tags wallets
// @Param name path string true "batch name"
// @Success 200 {object} apiResponse
// @Router /api/v1/wallets/{name}/balances [get]
func (h *WalletsHandler) balances(c *gin.Context) {
	items, err := h.Coordinator.Balances(c.Request.Context(), strings.TrimSpace(c.Param("name")))
	if err != nil && !errors.Is(err, wallet.ErrAllFailed) {
		writeWalletError(c, err, nil)
		return
	}
	total := decimal.Zero
	for _, b := range items {
		total = total.Add(b.SOL)
	}
	Ok(c, items, map[string]any{"total_sol": total.String()})
}

type fundRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// @Summary Fund every account in a batch from the main account
// @Tags wallets
// @Param name path string true "batch name"
// @Param body body fundRequest true "amount per account"
// @Success 200 {object} apiResponse
// @Failure 412 {object} apiResponse
// @Router /api/v1/wallets/{name}/fund [post]
func (h *WalletsHandler) fund(c *gin.Context) {
	var req fundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if strings.TrimSpace(h.Funder.Secret) == "" {
		Error(c, http.StatusPreconditionFailed, "no funding account configured", nil)
		return
	}
	res, err := h.Coordinator.Fund(c.Request.Context(), strings.TrimSpace(c.Param("name")), h.Funder, req.Amount)
	if err != nil {
		writeWalletError(c, err, res)
		return
	}
	Ok(c, res, nil)
}

type tradeRequest struct {
	Subject string `json:"subject"`
	// Amount is used for every account when Amounts is empty.
	Amount      decimal.Decimal   `json:"amount"`
	Amounts     []decimal.Decimal `json:"amounts"`
	MaxSlippage float64           `json:"max_slippage"`
}

func (h *WalletsHandler) trade(side string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tradeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid body", nil)
			return
		}
		ctx := c.Request.Context()
		name := strings.TrimSpace(c.Param("name"))
		amounts := req.Amounts
		if len(amounts) == 0 {
			if !req.Amount.IsPositive() {
				Error(c, http.StatusBadRequest, "amount or amounts is required", nil)
				return
			}
			b, err := h.Coordinator.Get(ctx, name)
			if err != nil {
				writeWalletError(c, err, nil)
				return
			}
			amounts = make([]decimal.Decimal, len(b.Accounts))
			for i := range amounts {
				amounts[i] = req.Amount
			}
		}
		slippage := req.MaxSlippage
		if slippage <= 0 {
			slippage = h.DefaultSlippage
		}
		run := h.Coordinator.CoordinatedBuy
		if side == "sell" {
			run = h.Coordinator.CoordinatedSell
		}
		res, err := run(ctx, name, strings.TrimSpace(req.Subject), amounts, slippage)
		if err != nil {
			writeWalletError(c, err, res)
			return
		}
		Ok(c, res, nil)
	}
}

type sweepRequest struct {
	Destination string `json:"destination"`
}

// @Summary Sweep a batch back to one address
// @Tags wallets
// @Param name path string true "batch name"
// @Param body body sweepRequest false "destination"
// @Success 200 {object} apiResponse
// @Router /api/v1/wallets/{name}/sweep [post]
func (h *WalletsHandler) sweep(c *gin.Context) {
	var req sweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	dest := strings.TrimSpace(req.Destination)
	if dest == "" {
		dest = h.Funder.Address
	}
	res, err := h.Coordinator.Sweep(c.Request.Context(), strings.TrimSpace(c.Param("name")), dest)
	if err != nil {
		writeWalletError(c, err, res)
		return
	}
	Ok(c, res, nil)
}

func writeWalletError(c *gin.Context, err error, partial any) {
	var meta map[string]any
	if partial != nil {
		meta = map[string]any{"result": partial}
	}
	switch {
	case errors.Is(err, wallet.ErrInvalidInput):
		Error(c, http.StatusBadRequest, err.Error(), meta)
	case errors.Is(err, wallet.ErrBatchNotFound):
		Error(c, http.StatusNotFound, err.Error(), meta)
	case errors.Is(err, wallet.ErrBatchExists):
		Error(c, http.StatusConflict, err.Error(), meta)
	case errors.Is(err, wallet.ErrAllFailed):
		Error(c, http.StatusBadGateway, err.Error(), meta)
	default:
		Error(c, http.StatusInternalServerError, err.Error(), meta)
	}
}
