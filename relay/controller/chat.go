// Package controller implements the metered relay: authenticate, route,
// translate, call upstream, bill. The debit happens after the upstream
// response so the charge always reflects the provider's reported usage; the
// operator eats the loss when the post-hoc debit fails.
package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/often-ai/gateway/common"
	"github.com/often-ai/gateway/common/config"
	"github.com/often-ai/gateway/common/ctxkey"
	"github.com/often-ai/gateway/common/helper"
	"github.com/often-ai/gateway/middleware"
	"github.com/often-ai/gateway/model"
	"github.com/often-ai/gateway/monitor"
	"github.com/often-ai/gateway/relay/anthropic"
	relaymodel "github.com/often-ai/gateway/relay/model"
	"github.com/often-ai/gateway/relay/pricing"
	"github.com/often-ai/gateway/relay/provider"
	"github.com/often-ai/gateway/relay/secret"
)

// httpClient carries the hard upstream deadline. Tests swap the Transport to
// stub providers.
var httpClient = &http.Client{Timeout: config.RelayTimeout}

const maxUpstreamBody = 10 << 20

// RelayChat handles POST /v1/chat/completions.
func RelayChat(c *gin.Context) {
	accountId := c.GetString(ctxkey.AccountId)

	request := &relaymodel.GeneralChatRequest{}
	if err := common.UnmarshalBodyReusable(c, request); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}
	if request.Model == "" {
		middleware.AbortWithError(c, http.StatusBadRequest, errors.New("model is required"))
		return
	}
	c.Set(ctxkey.RequestModel, request.Model)

	providerTag := provider.Route(request.Model)
	providerConfig, ok := provider.GetConfig(providerTag)
	if !ok {
		middleware.AbortWithError(c, http.StatusServiceUnavailable,
			errors.Errorf("provider %s is not configured", providerTag))
		return
	}
	if providerConfig.NeedsTranslation && len(request.Tools) > 0 {
		middleware.AbortWithError(c, http.StatusBadRequest,
			errors.New("tool use is not supported for this provider"))
		return
	}

	ctx := c.Request.Context()

	// Advisory pre-check. The authoritative funds check is the conditional
	// debit after the upstream call; this one just refuses to burn upstream
	// quota for an account that obviously cannot pay.
	if _, err := model.GetAccountByUid(ctx, accountId); err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			middleware.AbortWithError(c, http.StatusNotFound, errors.New("account not found"))
			return
		}
		middleware.AbortWithError(c, http.StatusInternalServerError, err)
		return
	}
	usdBalance, err := model.GetBalance(ctx, accountId, "USD")
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, err)
		return
	}
	if usdBalance < config.MinBalanceMicros {
		middleware.AbortWithError(c, http.StatusPaymentRequired, errors.New("Insufficient USD balance"))
		return
	}

	apiKey, err := secret.GetKey(ctx, providerConfig.SecretName)
	if err != nil {
		middleware.AbortWithError(c, http.StatusServiceUnavailable,
			errors.Errorf("provider %s is not configured", providerTag))
		return
	}

	payload, err := buildUpstreamPayload(c, request, providerConfig)
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, err)
		return
	}

	upstreamCtx, cancel := context.WithTimeout(ctx, config.RelayTimeout)
	defer cancel()
	upstreamReq, err := http.NewRequestWithContext(upstreamCtx, http.MethodPost,
		providerConfig.BaseURL, bytes.NewReader(payload))
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError,
			errors.Wrap(err, "build upstream request"))
		return
	}
	upstreamReq.Header.Set("Content-Type", "application/json")
	providerConfig.ApplyAuth(upstreamReq, apiKey)

	start := time.Now()
	upstreamResp, err := httpClient.Do(upstreamReq)
	monitor.ObserveUpstream(providerTag, time.Since(start))
	if err != nil {
		monitor.RecordCompletionFailure(providerTag, "network")
		middleware.AbortWithError(c, http.StatusInternalServerError,
			errors.Wrap(err, "upstream request failed"))
		return
	}
	defer upstreamResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(upstreamResp.Body, maxUpstreamBody))
	if err != nil {
		monitor.RecordCompletionFailure(providerTag, "network")
		middleware.AbortWithError(c, http.StatusInternalServerError,
			errors.Wrap(err, "read upstream response"))
		return
	}
	if upstreamResp.StatusCode != http.StatusOK {
		if upstreamResp.StatusCode == http.StatusUnauthorized || upstreamResp.StatusCode == http.StatusForbidden {
			// The key may have been rotated out from under the cache; drop it
			// so the next request refetches instead of failing for a full TTL.
			secret.Invalidate(providerConfig.SecretName)
		}
		monitor.RecordCompletion(providerTag, upstreamResp.StatusCode)
		respondUpstreamError(c, providerTag, upstreamResp.StatusCode, body, providerConfig.NeedsTranslation)
		return
	}

	response, err := decodeUpstreamResponse(body, providerConfig)
	if err != nil {
		monitor.RecordCompletionFailure(providerTag, "decode")
		middleware.AbortWithError(c, http.StatusInternalServerError, err)
		return
	}

	// Billing keys off the model the provider says it served, not the one the
	// client asked for. A provider that upgrades or aliases a cheap model must
	// not become a billing loophole.
	billedModel := response.Model
	if billedModel == "" {
		billedModel = request.Model
	}
	cost := pricing.Cost(billedModel, response.Usage.PromptTokens, response.Usage.CompletionTokens)

	balanceAfter, err := model.DebitUsage(ctx, accountId, cost, model.UsageDetail{
		Provider:         providerTag,
		Model:            billedModel,
		PromptTokens:     response.Usage.PromptTokens,
		CompletionTokens: response.Usage.CompletionTokens,
		RequestId:        c.GetString(helper.RequestIdKey),
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInsufficientFunds):
			monitor.RecordCompletion(providerTag, http.StatusPaymentRequired)
			middleware.AbortWithError(c, http.StatusPaymentRequired, errors.New("Insufficient USD balance"))
		case errors.Is(err, model.ErrAccountNotFound):
			monitor.RecordCompletion(providerTag, http.StatusNotFound)
			middleware.AbortWithError(c, http.StatusNotFound, errors.New("account not found"))
		default:
			monitor.RecordCompletionFailure(providerTag, "debit")
			middleware.AbortWithError(c, http.StatusInternalServerError,
				errors.Wrap(err, "record usage"))
		}
		return
	}

	monitor.RecordCompletion(providerTag, http.StatusOK)
	monitor.RecordBilled(providerTag, billedModel, cost)

	c.Header("X-Often-Cost-Micros", formatInt64(cost))
	c.Header("X-Often-Balance-Micros", formatInt64(balanceAfter))
	c.Header("X-Often-Provider", providerTag)
	c.JSON(http.StatusOK, response)
}

// buildUpstreamPayload picks the bytes to POST: the client's raw body for
// OpenAI-compatible providers (unknown fields survive), a translated body for
// providers with a diverging wire format.
func buildUpstreamPayload(c *gin.Context, request *relaymodel.GeneralChatRequest, providerConfig provider.Config) ([]byte, error) {
	if providerConfig.NeedsTranslation {
		payload, err := json.Marshal(anthropic.ConvertRequest(request))
		return payload, errors.Wrap(err, "marshal translated request")
	}
	payload, err := common.GetRequestBody(c)
	return payload, errors.Wrap(err, "reuse request body")
}

func decodeUpstreamResponse(body []byte, providerConfig provider.Config) (*relaymodel.ChatResponse, error) {
	if providerConfig.NeedsTranslation {
		var upstream anthropic.Response
		if err := json.Unmarshal(body, &upstream); err != nil {
			return nil, errors.Wrap(err, "decode anthropic response")
		}
		return anthropic.ConvertResponse(&upstream), nil
	}
	var response relaymodel.ChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, "decode upstream response")
	}
	return &response, nil
}

func formatInt64(v int64) string {
	return strconv.FormatInt(v, 10)
}
