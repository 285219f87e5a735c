package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wso2/open-banking-berlin/internal/admin"
	"github.com/wso2/open-banking-berlin/internal/authorize"
	"github.com/wso2/open-banking-berlin/internal/common"
	"github.com/wso2/open-banking-berlin/internal/system/log"
	"github.com/wso2/open-banking-berlin/internal/validate"
)

// ConsentHandler exposes the consent lifecycle over HTTP: request
// validation, the authorize flow retrieve/persist pair and revocation.
type ConsentHandler struct {
	creation      *admin.CreationService
	validator     *validate.Validator
	retrieval     *authorize.RetrievalService
	persist       *authorize.PersistService
	statusUpdater *authorize.StatusUpdater
	revocation    *admin.RevocationService
	logger        *log.Logger
}

// NewConsentHandler creates a new consent handler instance.
func NewConsentHandler(creation *admin.CreationService, validator *validate.Validator,
	retrieval *authorize.RetrievalService, persist *authorize.PersistService,
	statusUpdater *authorize.StatusUpdater, revocation *admin.RevocationService) *ConsentHandler {
	return &ConsentHandler{
		creation:      creation,
		validator:     validator,
		retrieval:     retrieval,
		persist:       persist,
		statusUpdater: statusUpdater,
		revocation:    revocation,
		logger: log.GetLogger().With(
			log.String(log.LoggerKeyComponentName, "ConsentHandler")),
	}
}

// CreateConsent handles POST /consents. The gateway posts the TPP's consent
// initiation and receives the new consent and authorization identifiers
// together with the SCA selection.
func (h *ConsentHandler) CreateConsent(c *gin.Context) {
	var request admin.CreationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		sendTPPError(c, common.NewRequestError(common.CodeFormatError, "invalid request body"))
		return
	}

	response, reqErr := h.creation.CreateConsent(c.Request.Context(), &request)
	if reqErr != nil {
		sendTPPError(c, reqErr)
		return
	}
	c.JSON(http.StatusCreated, response)
}

// Validate handles POST /consents/validate. The gateway posts the inbound
// TPP request description and receives a verdict it can act on directly.
func (h *ConsentHandler) Validate(c *gin.Context) {
	var request validate.ValidationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		sendTPPError(c, common.NewRequestError(common.CodeFormatError, "invalid request body"))
		return
	}

	result, err := h.validator.Validate(c.Request.Context(), &request)
	if err != nil {
		h.logger.Error("Validation pipeline failed", log.Error(err))
		var reqErr *common.RequestError
		if errors.As(err, &reqErr) {
			sendTPPError(c, reqErr)
			return
		}
		sendTPPError(c, common.NewInternalError("validation failed"))
		return
	}

	// The verdict itself is always a 200; the embedded httpCode is what the
	// gateway relays to the TPP.
	c.JSON(http.StatusOK, result)
}

// RetrieveAuthorizationData handles GET /consents/authorize/retrieve. It
// resolves the consent behind the authorization request and returns the
// data the consent page renders for the PSU.
func (h *ConsentHandler) RetrieveAuthorizationData(c *gin.Context) {
	scope := c.Query("scope")
	userID := c.Query("userId")
	if scope == "" {
		sendTPPError(c, common.NewRequestError(common.CodeFormatError, "scope query parameter is required"))
		return
	}

	data, reqErr := h.retrieval.RetrieveConsentData(c.Request.Context(), scope, userID)
	if reqErr != nil {
		sendTPPError(c, reqErr)
		return
	}
	c.JSON(http.StatusOK, data)
}

// PersistAuthorization handles POST /consents/authorize/persist. It records
// the PSU's approval or denial and runs the downstream state transitions.
func (h *ConsentHandler) PersistAuthorization(c *gin.Context) {
	var request authorize.PersistRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		sendTPPError(c, common.NewRequestError(common.CodeFormatError, "invalid request body"))
		return
	}
	if request.ConsentID == "" || request.AuthID == "" {
		sendTPPError(c, common.NewRequestError(common.CodeFormatError, "consentId and authId are required"))
		return
	}

	if reqErr := h.persist.PersistAuthorization(c.Request.Context(), &request); reqErr != nil {
		sendTPPError(c, reqErr)
		return
	}
	c.Status(http.StatusOK)
}

// statusUpdateRequest is posted by the authentication framework when a
// login attempt finishes or SCA is waived.
type statusUpdateRequest struct {
	ConsentID string `json:"consentId"`
	UserID    string `json:"userId"`
	Kind      string `json:"kind"`
}

// UpdateAuthorizationStatus handles POST /consents/authorize/status.
func (h *ConsentHandler) UpdateAuthorizationStatus(c *gin.Context) {
	var request statusUpdateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		sendTPPError(c, common.NewRequestError(common.CodeFormatError, "invalid request body"))
		return
	}
	if request.ConsentID == "" {
		sendTPPError(c, common.NewRequestError(common.CodeFormatError, "consentId is required"))
		return
	}

	err := h.statusUpdater.UpdateByConsentID(c.Request.Context(), request.ConsentID,
		request.UserID, authorize.StatusUpdateKind(request.Kind))
	if err != nil {
		// The authentication flow must not break on a status bookkeeping
		// failure; acknowledge and leave a trace.
		h.logger.Warn("Authorization status update not applied",
			log.String("consent_id", request.ConsentID),
			log.String("kind", request.Kind),
			log.Error(err))
	}
	c.Status(http.StatusAccepted)
}

// RevokeConsent handles DELETE /consents/revoke.
func (h *ConsentHandler) RevokeConsent(c *gin.Context) {
	consentID := c.Query("consentID")
	userID := c.Query("userID")

	if reqErr := h.revocation.RevokeConsent(c.Request.Context(), consentID, userID); reqErr != nil {
		sendTPPError(c, reqErr)
		return
	}
	c.Status(http.StatusNoContent)
}

// sendTPPError renders a RequestError as the Berlin Group tppMessages
// envelope with the status the error code maps to.
func sendTPPError(c *gin.Context, reqErr *common.RequestError) {
	c.AbortWithStatusJSON(reqErr.StatusCode, reqErr.Body)
}
