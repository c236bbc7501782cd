package controller

import (
	"net/http"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/often-ai/gateway/common"
	"github.com/often-ai/gateway/common/ctxkey"
	"github.com/often-ai/gateway/common/currency"
	"github.com/often-ai/gateway/middleware"
	"github.com/often-ai/gateway/model"
	"github.com/often-ai/gateway/rates"
)

// Deposit credits an account. Reachable only through AdminAuth.
func Deposit(c *gin.Context) {
	var req struct {
		AccountId string `json:"accountId"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
	}
	if err := common.UnmarshalBodyReusable(c, &req); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}
	if req.AccountId == "" {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.New("accountId is required"))
		return
	}
	if req.Amount <= 0 {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.New("amount must be positive"))
		return
	}
	if !currency.IsSupported(req.Currency) {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.Errorf("unsupported currency: %s", req.Currency))
		return
	}

	balance, err := model.Deposit(c.Request.Context(), req.AccountId, req.Amount, req.Currency, "Admin deposit")
	if err != nil {
		switch {
		case errors.Is(err, model.ErrAccountNotFound):
			middleware.AbortWithError(c, http.StatusNotFound, errors.New("account not found"))
		case errors.Is(err, model.ErrBalanceOverflow):
			middleware.AbortWithError(c, http.StatusBadRequest, errors.New("amount too large"))
		default:
			middleware.AbortWithError(c, http.StatusInternalServerError, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"currency": req.Currency, "balance": balance})
}

// Transfer moves funds from the caller to another account.
func Transfer(c *gin.Context) {
	senderId := c.GetString(ctxkey.AccountId)

	var req struct {
		ToAccountId string `json:"toAccountId"`
		Amount      int64  `json:"amount"`
		Currency    string `json:"currency"`
		Description string `json:"description"`
	}
	if err := common.UnmarshalBodyReusable(c, &req); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}
	if req.Amount <= 0 {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.New("amount must be positive"))
		return
	}
	if !currency.IsSupported(req.Currency) {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.Errorf("unsupported currency: %s", req.Currency))
		return
	}
	if req.ToAccountId == "" || req.ToAccountId == senderId {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.New("toAccountId must name another account"))
		return
	}

	description := req.Description
	if description == "" {
		description = "Transfer"
	}

	balance, err := model.Transfer(c.Request.Context(), senderId, req.ToAccountId, req.Amount, req.Currency, description)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrSenderNotFound), errors.Is(err, model.ErrRecipientNotFound):
			middleware.AbortWithError(c, http.StatusNotFound, err)
		case errors.Is(err, model.ErrInsufficientFunds):
			middleware.AbortWithError(c, http.StatusPaymentRequired, errors.New("insufficient funds"))
		case errors.Is(err, model.ErrBalanceOverflow):
			middleware.AbortWithError(c, http.StatusBadRequest, errors.New("amount too large"))
		default:
			middleware.AbortWithError(c, http.StatusInternalServerError, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"currency": req.Currency, "balance": balance})
}

// Convert exchanges value between two of the caller's currency balances at
// the oracle rate. The quote is fetched before the store transaction and
// frozen for the request.
func Convert(c *gin.Context) {
	accountId := c.GetString(ctxkey.AccountId)

	var req struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Amount int64  `json:"amount"`
	}
	if err := common.UnmarshalBodyReusable(c, &req); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}
	if req.Amount <= 0 {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.New("amount must be positive"))
		return
	}
	if !currency.IsSupported(req.From) || !currency.IsSupported(req.To) {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.New("unsupported currency"))
		return
	}
	if req.From == req.To {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.New("from and to must differ"))
		return
	}

	snapshot, err := rates.Default.Get(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, http.StatusServiceUnavailable, errors.Wrap(err, "rate oracle unavailable"))
		return
	}
	fromCents, okFrom := snapshot.Cents(req.From)
	toCents, okTo := snapshot.Cents(req.To)
	fromPrice, _ := snapshot.Price(req.From)
	toPrice, _ := snapshot.Price(req.To)
	if !okFrom || !okTo || fromCents <= 0 || toCents <= 0 {
		middleware.AbortWithError(c, http.StatusServiceUnavailable, errors.New("no rate available"))
		return
	}

	converted := model.ConvertAmount(req.Amount, fromCents, toCents,
		currency.UnitFactor(req.From), currency.UnitFactor(req.To))
	if converted <= 0 {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.New("amount too small to convert"))
		return
	}

	balances, err := model.Convert(c.Request.Context(), accountId, req.From, req.To,
		req.Amount, converted, fromPrice/toPrice)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrAccountNotFound):
			middleware.AbortWithError(c, http.StatusNotFound, errors.New("account not found"))
		case errors.Is(err, model.ErrInsufficientFunds):
			middleware.AbortWithError(c, http.StatusPaymentRequired, errors.New("insufficient funds"))
		case errors.Is(err, model.ErrAmountTooSmall):
			middleware.AbortWithError(c, http.StatusBadRequest, errors.New("amount too small to convert"))
		case errors.Is(err, model.ErrBalanceOverflow):
			middleware.AbortWithError(c, http.StatusBadRequest, errors.New("amount too large"))
		default:
			middleware.AbortWithError(c, http.StatusInternalServerError, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"converted": gin.H{"from": req.Amount, "to": converted},
		"balances":  balances,
	})
}
