// Command smoke drives one full happy path against a running gateway:
// signup, admin deposit, a chat completion, then account and journal reads.
// It exercises the real HTTP surface, so it needs a reachable gateway and a
// valid ADMIN_API_KEY in the environment.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Laisky/errors/v2"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	_ "github.com/joho/godotenv/autoload"
)

var logger glog.Logger

func init() {
	var err error
	logger, err = glog.NewConsoleWithName("gateway-smoke", glog.LevelInfo)
	if err != nil {
		panic(err)
	}
}

type smokeClient struct {
	baseURL  string
	adminKey string
	token    string
	http     *http.Client
}

func (s *smokeClient) do(ctx context.Context, method string, path string, body any, out any, admin bool) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, errors.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return 0, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-Admin-Key", s.adminKey)
	} else if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errors.Wrap(err, "read response")
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, errors.Wrapf(err, "decode response: %s", string(data))
		}
	}
	return resp.StatusCode, nil
}

func run(ctx context.Context) error {
	client := &smokeClient{
		baseURL:  envOr("GATEWAY_URL", "http://localhost:8080"),
		adminKey: os.Getenv("ADMIN_API_KEY"),
		http:     &http.Client{Timeout: 150 * time.Second},
	}

	email := fmt.Sprintf("smoke-%d@example.com", time.Now().UnixNano())
	var tokens struct {
		Uid     string `json:"uid"`
		IdToken string `json:"idToken"`
	}
	code, err := client.do(ctx, http.MethodPost, "/signup",
		map[string]string{"email": email, "password": "smoke-test-password"}, &tokens, false)
	if err != nil {
		return err
	}
	if code != http.StatusCreated {
		return errors.Errorf("signup returned %d", code)
	}
	client.token = tokens.IdToken
	logger.Info("signed up", zap.String("uid", tokens.Uid))

	code, err = client.do(ctx, http.MethodPost, "/deposit",
		map[string]any{"accountId": tokens.Uid, "amount": 10_000_000, "currency": "USD"}, nil, true)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return errors.Errorf("deposit returned %d", code)
	}
	logger.Info("deposited", zap.Int("amount_micros", 10_000_000))

	var completion map[string]any
	code, err = client.do(ctx, http.MethodPost, "/v1/chat/completions", map[string]any{
		"model":    envOr("SMOKE_MODEL", "gpt-4o-mini"),
		"messages": []map[string]string{{"role": "user", "content": "Reply with the single word: pong"}},
	}, &completion, false)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return errors.Errorf("completion returned %d: %v", code, completion)
	}
	logger.Info("completion ok")

	var account struct {
		Balances map[string]int64 `json:"balances"`
	}
	if _, err := client.do(ctx, http.MethodGet, "/getAccount", nil, &account, false); err != nil {
		return err
	}
	logger.Info("balance after completion", zap.Int64("usd_micros", account.Balances["USD"]))

	var history struct {
		Transactions []map[string]any `json:"transactions"`
	}
	if _, err := client.do(ctx, http.MethodGet, "/getTransactions?limit=10", nil, &history, false); err != nil {
		return err
	}
	logger.Info("journal entries", zap.Int("count", len(history.Transactions)))
	return nil
}

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := run(ctx); err != nil {
		logger.Error("smoke test failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("smoke test passed")
}
