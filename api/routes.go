package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes(r gin.IRouter) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.GET("/status", s.handleGetStatus)
	api.GET("/questions", s.handleGetQuestions)
	api.POST("/accounts", s.handleEnrol)

	identities := api.Group("/identities/:id")
	identities.GET("", s.handleGetIdentity)
	identities.POST("/keys", s.handleIssueKeys)
	identities.POST("/key-check", s.handleKeyCheck)
	identities.POST("/vote", s.handleCastVote)
	identities.GET("/ballot", s.handleGetBallot)

	api.GET("/results", s.handleGetResults)
	api.GET("/ledger", s.handleGetLedger)
	api.POST("/receipts/verify", s.handleVerifyReceipt)
	if s.cfg.EnableAudit {
		api.GET("/audit", s.handleAudit)
	}
}
