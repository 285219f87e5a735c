package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wso2/open-banking-berlin/internal/admin"
	"github.com/wso2/open-banking-berlin/internal/authorize"
	"github.com/wso2/open-banking-berlin/internal/handlers"
	"github.com/wso2/open-banking-berlin/internal/system/config"
	"github.com/wso2/open-banking-berlin/internal/system/middleware"
	"github.com/wso2/open-banking-berlin/internal/validate"
)

// SetupRouter configures all API routes
func SetupRouter(
	cfg *config.Config,
	creation *admin.CreationService,
	validator *validate.Validator,
	retrieval *authorize.RetrievalService,
	persist *authorize.PersistService,
	statusUpdater *authorize.StatusUpdater,
	revocation *admin.RevocationService,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationIDMiddleware())

	if cfg.CORS.Enabled {
		router.Use(middleware.CORSMiddleware(middleware.CORSOptions{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   strings.Join(cfg.CORS.AllowedMethods, ", "),
			AllowedHeaders:   strings.Join(cfg.CORS.AllowedHeaders, ", "),
			AllowCredentials: cfg.CORS.AllowCredentials,
		}))
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	consentHandler := handlers.NewConsentHandler(creation, validator, retrieval, persist, statusUpdater, revocation)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		consents := v1.Group("/consents")
		{
			consents.POST("", consentHandler.CreateConsent)
			consents.POST("/validate", consentHandler.Validate)
			consents.GET("/authorize/retrieve", consentHandler.RetrieveAuthorizationData)
			consents.POST("/authorize/persist", consentHandler.PersistAuthorization)
			consents.POST("/authorize/status", consentHandler.UpdateAuthorizationStatus)
			consents.DELETE("/revoke", consentHandler.RevokeConsent)
		}
	}

	return router
}
