package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/often-ai/gateway/common"
	"github.com/often-ai/gateway/common/graceful"
)

// GetStatus reports liveness. A draining server answers 503 so load balancers
// stop routing to it while in-flight completions finish.
func GetStatus(c *gin.Context) {
	if graceful.IsDraining() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"data": gin.H{
				"version":  common.Version,
				"draining": true,
			},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"version": common.Version,
		},
	})
}
