package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/often-ai/gateway/common"
	"github.com/often-ai/gateway/common/ctxkey"
	"github.com/often-ai/gateway/model"
	"github.com/often-ai/gateway/rates"
)

func setupControllerTest(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	common.UsingSQLite.Store(true)
	require.NoError(t, db.AutoMigrate(&model.Account{}, &model.Balance{}, &model.Transaction{}))

	previous := model.DB
	model.DB = db
	t.Cleanup(func() {
		_ = sqlDB.Close()
		model.DB = previous
	})
}

// walletRouter wires the wallet handlers with the caller identity pinned, the
// way TokenAuth would after verification.
func walletRouter(uid string) *gin.Engine {
	router := gin.New()
	authed := router.Group("", func(c *gin.Context) {
		c.Set(ctxkey.AccountId, uid)
	})
	authed.POST("/transfer", Transfer)
	authed.POST("/convert", Convert)
	authed.GET("/getAccount", GetAccount)
	authed.GET("/getTransactions", GetTransactions)
	router.POST("/deposit", Deposit)
	return router
}

func doJSON(router *gin.Engine, method string, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func stubRates(t *testing.T, prices map[string]float64) {
	t.Helper()
	payload := map[string]map[string]float64{
		"usd-coin": {"usd": prices["USDC"]},
		"ethereum": {"usd": prices["ETH"]},
		"bitcoin":  {"usd": prices["BTC"]},
		"solana":   {"usd": prices["SOL"]},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
	previous := rates.Default
	rates.Default = rates.NewOracle(server.URL, time.Minute, server.Client())
	t.Cleanup(func() {
		rates.Default = previous
		server.Close()
	})
}

func TestDepositHandler(t *testing.T) {
	setupControllerTest(t)
	require.NoError(t, model.CreateAccount(context.Background(), "alice", "alice@example.com"))
	router := walletRouter("alice")

	recorder := doJSON(router, http.MethodPost, "/deposit", map[string]any{
		"accountId": "alice", "amount": 10_000_000, "currency": "USD",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.JSONEq(t, `{"currency":"USD","balance":10000000}`, recorder.Body.String())

	account := doJSON(router, http.MethodGet, "/getAccount", nil)
	require.Equal(t, http.StatusOK, account.Code)
	var snapshot struct {
		Uid                 string           `json:"uid"`
		Balances            map[string]int64 `json:"balances"`
		Status              string           `json:"status"`
		SupportedCurrencies []string         `json:"supportedCurrencies"`
	}
	require.NoError(t, json.Unmarshal(account.Body.Bytes(), &snapshot))
	assert.Equal(t, "alice", snapshot.Uid)
	assert.Equal(t, int64(10_000_000), snapshot.Balances["USD"])
	assert.Equal(t, "active", snapshot.Status)
	assert.Equal(t, []string{"USD", "USDC", "ETH", "BTC", "SOL"}, snapshot.SupportedCurrencies)

	history := doJSON(router, http.MethodGet, "/getTransactions", nil)
	require.Equal(t, http.StatusOK, history.Code)
	var page struct {
		Transactions []model.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(history.Body.Bytes(), &page))
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, model.TransactionTypeDeposit, page.Transactions[0].Type)
	assert.Equal(t, int64(10_000_000), page.Transactions[0].Amount)
}

func TestDepositHandlerValidation(t *testing.T) {
	setupControllerTest(t)
	router := walletRouter("alice")

	for name, body := range map[string]map[string]any{
		"zero amount":     {"accountId": "alice", "amount": 0, "currency": "USD"},
		"negative amount": {"accountId": "alice", "amount": -5, "currency": "USD"},
		"bad currency":    {"accountId": "alice", "amount": 5, "currency": "DOGE"},
		"no account id":   {"amount": 5, "currency": "USD"},
	} {
		recorder := doJSON(router, http.MethodPost, "/deposit", body)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, name)
	}

	recorder := doJSON(router, http.MethodPost, "/deposit", map[string]any{
		"accountId": "ghost", "amount": 5, "currency": "USD",
	})
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestDepositHandlerOverflow(t *testing.T) {
	setupControllerTest(t)
	require.NoError(t, model.CreateAccount(context.Background(), "whale", "whale@example.com"))
	router := walletRouter("whale")

	first := doJSON(router, http.MethodPost, "/deposit", map[string]any{
		"accountId": "whale", "amount": int64(math.MaxInt64), "currency": "USD",
	})
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	second := doJSON(router, http.MethodPost, "/deposit", map[string]any{
		"accountId": "whale", "amount": 1, "currency": "USD",
	})
	assert.Equal(t, http.StatusBadRequest, second.Code)

	balance, err := model.GetBalance(context.Background(), "whale", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), balance)
}

func TestTransferHandler(t *testing.T) {
	setupControllerTest(t)
	ctx := context.Background()
	require.NoError(t, model.CreateAccount(ctx, "alice", "alice@example.com"))
	require.NoError(t, model.CreateAccount(ctx, "bob", "bob@example.com"))
	_, err := model.Deposit(ctx, "alice", 5_000_000, "USD", "seed")
	require.NoError(t, err)
	router := walletRouter("alice")

	recorder := doJSON(router, http.MethodPost, "/transfer", map[string]any{
		"toAccountId": "bob", "amount": 1_000_000, "currency": "USD", "description": "rent",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.JSONEq(t, `{"currency":"USD","balance":4000000}`, recorder.Body.String())

	selfTransfer := doJSON(router, http.MethodPost, "/transfer", map[string]any{
		"toAccountId": "alice", "amount": 100, "currency": "USD",
	})
	assert.Equal(t, http.StatusBadRequest, selfTransfer.Code)

	broke := doJSON(router, http.MethodPost, "/transfer", map[string]any{
		"toAccountId": "bob", "amount": 100_000_000, "currency": "USD",
	})
	assert.Equal(t, http.StatusPaymentRequired, broke.Code)

	missing := doJSON(router, http.MethodPost, "/transfer", map[string]any{
		"toAccountId": "ghost", "amount": 100, "currency": "USD",
	})
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestConvertHandler(t *testing.T) {
	setupControllerTest(t)
	stubRates(t, map[string]float64{"USDC": 1, "ETH": 2500, "BTC": 65000, "SOL": 150})
	ctx := context.Background()
	require.NoError(t, model.CreateAccount(ctx, "trader", "trader@example.com"))
	_, err := model.Deposit(ctx, "trader", 2_000_000, "USD", "seed")
	require.NoError(t, err)
	router := walletRouter("trader")

	recorder := doJSON(router, http.MethodPost, "/convert", map[string]any{
		"from": "USD", "to": "ETH", "amount": 1_000_000,
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var result struct {
		Converted struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"converted"`
		Balances map[string]int64 `json:"balances"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, int64(1_000_000), result.Converted.From)
	// $1 at $2500/ETH is 400_000 units on the 1e9 scale.
	assert.Equal(t, int64(400_000), result.Converted.To)
	assert.Equal(t, int64(1_000_000), result.Balances["USD"])
	assert.Equal(t, int64(400_000), result.Balances["ETH"])
}

func TestConvertHandlerValidation(t *testing.T) {
	setupControllerTest(t)
	stubRates(t, map[string]float64{"USDC": 1, "ETH": 2500, "BTC": 65000, "SOL": 150})
	require.NoError(t, model.CreateAccount(context.Background(), "trader", "trader@example.com"))
	router := walletRouter("trader")

	for name, body := range map[string]map[string]any{
		"same currency": {"from": "USD", "to": "USD", "amount": 100},
		"bad currency":  {"from": "USD", "to": "DOGE", "amount": 100},
		"zero amount":   {"from": "USD", "to": "ETH", "amount": 0},
		"too small":     {"from": "USD", "to": "BTC", "amount": 1},
	} {
		recorder := doJSON(router, http.MethodPost, "/convert", body)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, name)
	}

	insufficient := doJSON(router, http.MethodPost, "/convert", map[string]any{
		"from": "USD", "to": "ETH", "amount": 1_000_000,
	})
	assert.Equal(t, http.StatusPaymentRequired, insufficient.Code)
}

func TestGetTransactionsDefaultPageSize(t *testing.T) {
	setupControllerTest(t)
	ctx := context.Background()
	require.NoError(t, model.CreateAccount(ctx, "alice", "alice@example.com"))
	for range 55 {
		_, err := model.Deposit(ctx, "alice", 1, "USD", "drip")
		require.NoError(t, err)
	}
	router := walletRouter("alice")

	recorder := doJSON(router, http.MethodGet, "/getTransactions", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var page struct {
		Transactions []model.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &page))
	assert.Len(t, page.Transactions, 50)
}

func TestGetTransactionsLimitValidation(t *testing.T) {
	setupControllerTest(t)
	require.NoError(t, model.CreateAccount(context.Background(), "alice", "alice@example.com"))
	router := walletRouter("alice")

	bad := doJSON(router, http.MethodGet, "/getTransactions?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	negative := doJSON(router, http.MethodGet, "/getTransactions?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, negative.Code)

	empty := doJSON(router, http.MethodGet, "/getTransactions", nil)
	require.Equal(t, http.StatusOK, empty.Code)
	assert.JSONEq(t, `{"transactions":[]}`, empty.Body.String())
}
