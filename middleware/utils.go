package middleware

import (
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/often-ai/gateway/common/helper"
	"github.com/often-ai/gateway/common/logger"
	relaymodel "github.com/often-ai/gateway/relay/model"
)

// AbortWithError aborts the request with the standard error envelope. The
// original error rides ErrorWithStatusCode.RawError for logs only; clients
// see the message with the request id appended.
func AbortWithError(c *gin.Context, statusCode int, err error) {
	relayErr := relaymodel.ErrorWithStatusCode{
		StatusCode: statusCode,
		Error: relaymodel.Error{
			Message:  helper.MessageWithRequestId(err.Error(), c.GetString(helper.RequestIdKey)),
			Type:     "gateway_error",
			RawError: err,
		},
	}

	logger.Logger.Warn("request aborted",
		zap.Int("status_code", relayErr.StatusCode),
		zap.String("path", c.Request.URL.Path),
		zap.Error(relayErr.RawError))

	c.JSON(relayErr.StatusCode, gin.H{"error": relayErr.Error})
	c.Abort()
}
