package authorize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wso2/open-banking-berlin/internal/common"
	"github.com/wso2/open-banking-berlin/internal/consent"
	"github.com/wso2/open-banking-berlin/internal/consent/model"
	"github.com/wso2/open-banking-berlin/internal/system/config"
	"github.com/wso2/open-banking-berlin/internal/system/constants"
	"github.com/wso2/open-banking-berlin/internal/system/error/serviceerror"
	"github.com/wso2/open-banking-berlin/internal/system/log"
	"github.com/wso2/open-banking-berlin/internal/system/utils"
)

// ConsentData is the outcome of the retrieval step: everything the
// authorization page needs to render the consent and everything the persist
// step needs to settle it.
type ConsentData struct {
	ConsentID     string             `json:"consentId"`
	AuthID        string             `json:"authId"`
	AuthType      common.AuthType    `json:"authType"`
	ConsentType   common.ConsentType `json:"consentType"`
	CurrentStatus string             `json:"currentStatus"`
	ClientID      string             `json:"clientId"`
	// UserMismatch flags an authorization already bound to a different PSU.
	// The authorization page surfaces it instead of failing the flow.
	UserMismatch bool                   `json:"userMismatch,omitempty"`
	DisplayData  map[string]interface{} `json:"consentData"`
}

// RetrievalService implements the retrieval step of the authorize flow.
type RetrievalService struct {
	core   consent.ConsentCoreService
	cfg    *config.Config
	logger *log.Logger
}

// NewRetrievalService creates the retrieval step service.
func NewRetrievalService(core consent.ConsentCoreService, cfg *config.Config) *RetrievalService {
	return &RetrievalService{
		core:   core,
		cfg:    cfg,
		logger: log.GetLogger().With(log.String(log.LoggerKeyComponentName, "ConsentRetrieval")),
	}
}

// RetrieveConsentData resolves the consent bound to the token scopes,
// validates that it still accepts an authorization, selects the open
// authorization resource for the PSU and renders the consent display data.
func (s *RetrievalService) RetrieveConsentData(ctx context.Context, scopeString, userID string) (*ConsentData, *common.RequestError) {
	consentID, scopePrefix, ok := ConsentIDFromScope(scopeString)
	if !ok {
		return nil, common.NewRequestError(common.CodeConsentUnknown,
			"cannot find a consent ID in the token scopes")
	}

	detailed, svcErr := s.core.GetDetailedConsent(ctx, consentID)
	if svcErr != nil {
		return nil, translateServiceError(svcErr, consentID)
	}

	if !scopeMatchesConsentType(scopePrefix, detailed.Type()) {
		return nil, common.NewRequestError(common.CodeConsentUnknown,
			fmt.Sprintf("consent %s does not match the requested scope", consentID))
	}

	handlers, ok := HandlersFor(detailed.Type())
	if !ok {
		return nil, common.NewPathInvalidError(string(detailed.Type()))
	}

	authType := impliedAuthType(&detailed.ConsentResource)
	if reqErr := handlers.Retrieval.ValidateAuthorizationStatus(&detailed.ConsentResource, authType); reqErr != nil {
		return nil, reqErr
	}

	strippedUser := common.StripTenantDomain(userID, s.tenantDomain())
	selected, mismatch := selectOpenAuthorization(detailed.Authorizations, strippedUser, authType)
	if selected == nil {
		return nil, common.NewRequestError(common.CodeConsentInvalid,
			fmt.Sprintf("consent %s has no open authorization resource", consentID))
	}

	displayData, err := handlers.Retrieval.BuildDisplayData(detailed)
	if err != nil {
		s.logger.Error("Failed to render consent display data",
			log.String("consent_id", consentID), log.Error(err))
		return nil, common.NewInternalError("failed to render consent data")
	}
	// The receipt is TPP supplied and the consent page renders it as HTML.
	sanitizeDisplayData(displayData)

	return &ConsentData{
		ConsentID:     detailed.ConsentID,
		AuthID:        selected.AuthID,
		AuthType:      authType,
		ConsentType:   detailed.Type(),
		CurrentStatus: detailed.CurrentStatus,
		ClientID:      detailed.ClientID,
		UserMismatch:  mismatch,
		DisplayData:   displayData,
	}, nil
}

// ConsentIDFromScope extracts the consent ID bound into the token scopes.
// Exactly one delimiter is accepted; anything else is not a consent scope.
func ConsentIDFromScope(scopeString string) (consentID, prefix string, ok bool) {
	prefixes := []string{
		constants.ScopePrefixAccounts,
		constants.ScopePrefixPayments,
		constants.ScopePrefixFundsConfirmation,
	}
	for _, scope := range strings.Fields(scopeString) {
		for _, p := range prefixes {
			if !strings.HasPrefix(scope, p+constants.ScopeDelimiter) {
				continue
			}
			parts := strings.Split(scope, constants.ScopeDelimiter)
			if len(parts) == 2 && parts[1] != "" {
				return parts[1], p, true
			}
		}
	}
	return "", "", false
}

func scopeMatchesConsentType(scopePrefix string, consentType common.ConsentType) bool {
	switch scopePrefix {
	case constants.ScopePrefixAccounts:
		return consentType == common.ConsentTypeAccounts
	case constants.ScopePrefixPayments:
		return consentType.IsPaymentType()
	case constants.ScopePrefixFundsConfirmation:
		return consentType == common.ConsentTypeFundsConfirmation
	}
	return false
}

// selectOpenAuthorization picks the authorization resource the PSU should
// act on: their own open resource when one exists, otherwise the first open
// resource of the auth type. The mismatch flag is raised when the selected
// resource is already bound to a different PSU.
func selectOpenAuthorization(auths []model.AuthorizationResource, userID string,
	authType common.AuthType) (*model.AuthorizationResource, bool) {

	var fallback *model.AuthorizationResource
	for i := range auths {
		auth := &auths[i]
		if auth.Type() != authType || auth.Status() != common.ScaStatusReceived {
			continue
		}
		if auth.BoundUser() == userID && userID != "" {
			return auth, false
		}
		if fallback == nil {
			fallback = auth
		}
	}

	if fallback == nil {
		return nil, false
	}
	mismatch := fallback.BoundUser() != "" && fallback.BoundUser() != userID
	return fallback, mismatch
}

func (s *RetrievalService) tenantDomain() string {
	if s.cfg != nil && s.cfg.Consent.TenantDomain != "" {
		return s.cfg.Consent.TenantDomain
	}
	return constants.DefaultTenantDomain
}

func translateServiceError(svcErr *serviceerror.ServiceError, consentID string) *common.RequestError {
	if svcErr.Code == serviceerror.ResourceNotFoundError.Code {
		return common.NewRequestError(common.CodeConsentUnknown,
			fmt.Sprintf("consent %s does not exist", consentID))
	}
	return common.NewInternalError(svcErr.ErrorDescription)
}

// Type-specific retrieval handlers

type accountsRetrievalHandler struct{}

func (accountsRetrievalHandler) ValidateAuthorizationStatus(c *model.ConsentResource, _ common.AuthType) *common.RequestError {
	switch common.ConsentStatus(c.CurrentStatus) {
	case common.ConsentStatusReceived, common.ConsentStatusPartiallyAuthorised:
		return nil
	}
	return notAuthorisableError(c)
}

func (accountsRetrievalHandler) BuildDisplayData(c *model.DetailedConsentResource) (map[string]interface{}, error) {
	receipt, err := parseReceipt(c.Receipt)
	if err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"consentType":        c.ConsentType,
		"recurringIndicator": c.RecurringIndicator,
	}
	copyReceiptKeys(receipt, data, "access", "validUntil", "frequencyPerDay", "combinedServiceIndicator")
	return data, nil
}

type paymentsRetrievalHandler struct{}

func (paymentsRetrievalHandler) ValidateAuthorizationStatus(c *model.ConsentResource, authType common.AuthType) *common.RequestError {
	status := common.TransactionStatus(c.CurrentStatus)
	if authType == common.AuthTypeCancellation {
		if status == common.TransactionStatusACTC {
			return nil
		}
		return notAuthorisableError(c)
	}
	if status == common.TransactionStatusRCVD || status == common.TransactionStatusPATC {
		return nil
	}
	return notAuthorisableError(c)
}

func (paymentsRetrievalHandler) BuildDisplayData(c *model.DetailedConsentResource) (map[string]interface{}, error) {
	receipt, err := parseReceipt(c.Receipt)
	if err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"consentType": c.ConsentType,
	}
	copyReceiptKeys(receipt, data,
		"instructedAmount", "debtorAccount", "creditorAccount", "creditorName",
		"payments", "startDate", "endDate", "frequency", "executionRule", "dayOfExecution")
	return data, nil
}

type fundsConfirmationRetrievalHandler struct{}

func (fundsConfirmationRetrievalHandler) ValidateAuthorizationStatus(c *model.ConsentResource, _ common.AuthType) *common.RequestError {
	if common.ConsentStatus(c.CurrentStatus) == common.ConsentStatusReceived {
		return nil
	}
	return notAuthorisableError(c)
}

func (fundsConfirmationRetrievalHandler) BuildDisplayData(c *model.DetailedConsentResource) (map[string]interface{}, error) {
	receipt, err := parseReceipt(c.Receipt)
	if err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"consentType": c.ConsentType,
	}
	copyReceiptKeys(receipt, data, "account", "cardNumber", "cardExpiryDate", "cardInformation")
	return data, nil
}

func notAuthorisableError(c *model.ConsentResource) *common.RequestError {
	return common.NewRequestError(common.CodeConsentInvalid,
		fmt.Sprintf("consent %s in status %s does not accept an authorization", c.ConsentID, c.CurrentStatus))
}

func parseReceipt(receipt string) (map[string]interface{}, error) {
	parsed := make(map[string]interface{})
	if receipt == "" {
		return parsed, nil
	}
	if err := json.Unmarshal([]byte(receipt), &parsed); err != nil {
		return nil, fmt.Errorf("malformed consent receipt: %w", err)
	}
	return parsed, nil
}

func copyReceiptKeys(src, dst map[string]interface{}, keys ...string) {
	for _, key := range keys {
		if value, ok := src[key]; ok {
			dst[key] = value
		}
	}
}

func sanitizeDisplayData(data map[string]interface{}) {
	for key, value := range data {
		data[key] = sanitizeValue(value)
	}
}

func sanitizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return utils.SanitizeString(v)
	case map[string]interface{}:
		sanitizeDisplayData(v)
		return v
	case []interface{}:
		for i := range v {
			v[i] = sanitizeValue(v[i])
		}
		return v
	}
	return value
}
