package controller

import (
	"encoding/json"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/often-ai/gateway/common/ctxkey"
	"github.com/often-ai/gateway/common/logger"
	"github.com/often-ai/gateway/relay/anthropic"
)

// upstreamEnvelope is what upstream provider errors look like to our clients:
// the upstream status passes through, the body is reduced to a message. Auth
// material and provider-internal fields never survive the reduction.
type upstreamEnvelope struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// extractUpstreamMessage pulls a human message out of an upstream error body.
// Translated providers speak the Messages API error envelope; everything else
// uses the OpenAI shape ({"error":{"message":...}}). Anything unparseable
// falls back to a generic line.
func extractUpstreamMessage(body []byte, translated bool) string {
	if translated {
		var envelope anthropic.Error
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
			return envelope.Error.Message
		}
	} else {
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
			return envelope.Error.Message
		}
	}
	return "upstream provider returned an error"
}

// respondUpstreamError forwards an upstream HTTP error: same status code,
// redacted body.
func respondUpstreamError(c *gin.Context, providerTag string, statusCode int, body []byte, translated bool) {
	detail := extractUpstreamMessage(body, translated)
	logger.Logger.Warn("upstream error",
		zap.String("provider", providerTag),
		zap.String("model", c.GetString(ctxkey.RequestModel)),
		zap.Int("status_code", statusCode),
		zap.String("detail", detail))
	c.JSON(statusCode, upstreamEnvelope{Error: "upstream_error", Detail: detail})
}
