// Package router assembles the HTTP surface.
package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/often-ai/gateway/controller"
	"github.com/often-ai/gateway/middleware"
	relay "github.com/often-ai/gateway/relay/controller"
)

// SetRouter registers every route on the server. Middleware that applies to
// all routes (request id, recovery, request tracking) is installed by main
// before this runs.
func SetRouter(server *gin.Engine) {
	server.Use(cors.Default())

	server.GET("/api/status", gzip.Gzip(gzip.DefaultCompression), controller.GetStatus)
	server.GET("/v1/models", controller.ListModels)

	// Identity flows proxy the identity backend; no bearer required.
	server.POST("/signup", controller.Signup)
	server.POST("/login", controller.Login)
	server.POST("/refresh", controller.Refresh)

	authed := server.Group("")
	authed.Use(middleware.TokenAuth())
	{
		authed.POST("/v1/chat/completions", relay.RelayChat)
		authed.GET("/getAccount", controller.GetAccount)
		authed.GET("/getTransactions", controller.GetTransactions)
		authed.POST("/transfer", controller.Transfer)
		authed.POST("/convert", controller.Convert)
	}

	admin := server.Group("")
	admin.Use(middleware.AdminAuth())
	{
		admin.POST("/deposit", controller.Deposit)
	}
}
