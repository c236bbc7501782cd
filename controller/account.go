// Package controller holds the account-facing HTTP handlers: identity flows,
// balances, history, and the wallet operations.
package controller

import (
	"net/http"
	"strconv"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/often-ai/gateway/common"
	"github.com/often-ai/gateway/common/config"
	"github.com/often-ai/gateway/common/ctxkey"
	"github.com/often-ai/gateway/common/currency"
	"github.com/often-ai/gateway/identity"
	"github.com/often-ai/gateway/middleware"
	"github.com/often-ai/gateway/model"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Uid          string `json:"uid"`
	IdToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

// Signup registers a user with the identity backend and opens its ledger
// account with zero balances.
func Signup(c *gin.Context) {
	var req credentialsRequest
	if err := common.UnmarshalBodyReusable(c, &req); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.New("email and password are required"))
		return
	}

	creds, err := identity.Default.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrEmailExists) {
			middleware.AbortWithError(c, http.StatusBadRequest, errors.New("email already registered"))
			return
		}
		middleware.AbortWithError(c, http.StatusBadRequest, errors.Wrap(err, "signup rejected"))
		return
	}

	if err := model.CreateAccount(c.Request.Context(), creds.Uid, creds.Email); err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, errors.Wrap(err, "open account"))
		return
	}

	c.JSON(http.StatusCreated, tokenResponse{
		Uid:          creds.Uid,
		IdToken:      creds.IdToken,
		RefreshToken: creds.RefreshToken,
		ExpiresIn:    creds.ExpiresIn,
	})
}

// Login exchanges email and password for tokens. A ledger account missing for
// a valid identity (e.g. created out of band) is opened on first login.
func Login(c *gin.Context) {
	var req credentialsRequest
	if err := common.UnmarshalBodyReusable(c, &req); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}

	creds, err := identity.Default.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		middleware.AbortWithError(c, http.StatusUnauthorized, errors.New("invalid email or password"))
		return
	}

	if _, err := model.GetAccountByUid(c.Request.Context(), creds.Uid); errors.Is(err, model.ErrAccountNotFound) {
		if err := model.CreateAccount(c.Request.Context(), creds.Uid, creds.Email); err != nil {
			middleware.AbortWithError(c, http.StatusInternalServerError, errors.Wrap(err, "open account"))
			return
		}
	}

	c.JSON(http.StatusOK, tokenResponse{
		Uid:          creds.Uid,
		IdToken:      creds.IdToken,
		RefreshToken: creds.RefreshToken,
		ExpiresIn:    creds.ExpiresIn,
	})
}

// Refresh exchanges a refresh token for a new id token.
func Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := common.UnmarshalBodyReusable(c, &req); err != nil || req.RefreshToken == "" {
		middleware.AbortWithError(c, http.StatusUnauthorized, errors.New("refreshToken is required"))
		return
	}

	creds, err := identity.Default.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		middleware.AbortWithError(c, http.StatusUnauthorized, errors.New("invalid refresh token"))
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		Uid:          creds.Uid,
		IdToken:      creds.IdToken,
		RefreshToken: creds.RefreshToken,
		ExpiresIn:    creds.ExpiresIn,
	})
}

// GetAccount returns the caller's own account snapshot. The 404 here is only
// ever observable to the account's authenticated owner.
func GetAccount(c *gin.Context) {
	uid := c.GetString(ctxkey.AccountId)

	account, err := model.GetAccountByUid(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			middleware.AbortWithError(c, http.StatusNotFound, errors.New("account not found"))
			return
		}
		middleware.AbortWithError(c, http.StatusInternalServerError, err)
		return
	}
	balances, err := model.GetBalances(c.Request.Context(), uid)
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uid":                 account.Uid,
		"balances":            balances,
		"status":              account.Status,
		"supportedCurrencies": currency.Supported,
	})
}

// GetTransactions pages through the caller's journal, newest first.
func GetTransactions(c *gin.Context) {
	uid := c.GetString(ctxkey.AccountId)

	limit := config.DefaultTransactionPageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			middleware.AbortWithError(c, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	if limit > config.MaxTransactionPageSize {
		limit = config.MaxTransactionPageSize
	}

	transactions, err := model.GetAccountTransactions(c.Request.Context(), uid, limit, c.Query("startAfter"))
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, err)
		return
	}
	if transactions == nil {
		transactions = []*model.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}
