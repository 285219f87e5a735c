package main

import (
	"github.com/gin-gonic/gin"

	"github.com/wso2/open-banking-berlin/internal/admin"
	"github.com/wso2/open-banking-berlin/internal/authorize"
	"github.com/wso2/open-banking-berlin/internal/consent"
	"github.com/wso2/open-banking-berlin/internal/router"
	"github.com/wso2/open-banking-berlin/internal/system/config"
	"github.com/wso2/open-banking-berlin/internal/system/database/provider"
	"github.com/wso2/open-banking-berlin/internal/system/log"
	"github.com/wso2/open-banking-berlin/internal/system/stores"
	"github.com/wso2/open-banking-berlin/internal/validate"
)

// buildServices wires the consent store, the core service and the
// lifecycle services on top of it, and returns the configured HTTP engine.
func buildServices(cfg *config.Config, dbClient provider.DBClientInterface) *gin.Engine {
	logger := log.GetLogger()

	consentStore := consent.NewConsentStore(dbClient)
	registry := stores.NewStoreRegistry(dbClient, consentStore)
	core := consent.NewConsentCoreService(consentStore, registry)
	logger.Info("Consent core service initialized")

	creation := admin.NewCreationService(core, cfg)
	validator := validate.NewValidator(core, cfg)
	retrieval := authorize.NewRetrievalService(core, cfg)
	banking := authorize.NewBankingClient(&cfg.Payments)
	persist := authorize.NewPersistService(core, cfg, banking)
	statusUpdater := authorize.NewStatusUpdater(core)
	revocation := admin.NewRevocationService(core, cfg)
	logger.Info("Consent lifecycle services initialized")

	return router.SetupRouter(cfg, creation, validator, retrieval, persist, statusUpdater, revocation)
}
