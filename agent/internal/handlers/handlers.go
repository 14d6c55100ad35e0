package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"call-tracker/agent/database"
	"call-tracker/agent/internal/models"
	"call-tracker/agent/internal/scheduler"
	"call-tracker/shared/env"
	"call-tracker/shared/logger"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries what the HTTP surface needs from the rest of the app.
type Deps struct {
	DB        *gorm.DB
	Tokens    *database.TokenStore
	Scheduler *scheduler.Scheduler
}

// RegisterRoutes mounts the root and versioned API routes.
func RegisterRoutes(router *gin.Engine, deps Deps) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "call-tracker", "status": "running"})
	})

	api := router.Group("/api/v1")
	{
		api.GET("/health", healthHandler(deps))
		api.GET("/tokens", listTokensHandler(deps))
		api.GET("/tokens/:contract", getTokenHandler(deps))
		api.POST("/refresh", requireAPISecret(), triggerRefreshHandler(deps))
	}
}

func healthHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		}

		if sqlDB, err := deps.DB.DB(); err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := sqlDB.PingContext(ctx); err != nil {
				status["status"] = "degraded"
				status["database"] = "unreachable"
				c.JSON(http.StatusServiceUnavailable, status)
				return
			}
			status["database"] = "ok"
		}

		if live, err := deps.Tokens.CountByStatus(models.StatusLive); err == nil {
			status["live_tokens"] = live
		}
		if retired, err := deps.Tokens.CountByStatus(models.StatusRetired); err == nil {
			status["retired_tokens"] = retired
		}

		c.JSON(http.StatusOK, status)
	}
}

func listTokensHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			records interface{}
			err     error
		)
		if c.Query("status") == "live" {
			records, err = deps.Tokens.ListLive()
		} else {
			records, err = deps.Tokens.ListAll()
		}
		if err != nil {
			logger.Log.Errorf("Token list request failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tokens"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tokens": records})
	}
}

func getTokenHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := deps.Tokens.GetByContract(c.Param("contract"))
		if err != nil {
			if errors.Is(err, database.ErrTokenNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "token not tracked"})
				return
			}
			logger.Log.Errorf("Token fetch failed for %s: %v", c.Param("contract"), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch token"})
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

// triggerRefreshHandler kicks off a refresh cycle out of band. The cycle
// runs in the background; the response just acknowledges the trigger.
func triggerRefreshHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			deps.Scheduler.RunCycle(ctx)
		}()
		c.JSON(http.StatusAccepted, gin.H{"status": "refresh started"})
	}
}

func requireAPISecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		if env.APISecret == "" || c.GetHeader("X-API-Secret") != env.APISecret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
