package authorize

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/wso2/open-banking-berlin/internal/common"
	"github.com/wso2/open-banking-berlin/internal/consent"
	"github.com/wso2/open-banking-berlin/internal/consent/model"
	"github.com/wso2/open-banking-berlin/internal/system/config"
	"github.com/wso2/open-banking-berlin/internal/system/constants"
	"github.com/wso2/open-banking-berlin/internal/system/log"
)

// ApprovedAccount is one account the PSU granted access to, with the
// permissions they approved for it.
type ApprovedAccount struct {
	AccountID   string   `json:"accountId"`
	Permissions []string `json:"permissions"`
}

// PersistPayload carries the PSU's approval selections into the persist step.
type PersistPayload struct {
	Accounts []ApprovedAccount `json:"accounts"`
}

// PersistRequest is the input of the persist step.
type PersistRequest struct {
	ConsentID string          `json:"consentId"`
	AuthID    string          `json:"authId"`
	UserID    string          `json:"userId"`
	Approved  bool            `json:"approved"`
	Payload   *PersistPayload `json:"payload,omitempty"`
}

// PersistService implements the persist step of the authorize flow: it
// settles one authorization outcome, re-aggregates the consent and runs the
// type-specific follow-ups.
type PersistService struct {
	core    consent.ConsentCoreService
	cfg     *config.Config
	banking *BankingClient
	logger  *log.Logger
}

// NewPersistService creates the persist step service.
func NewPersistService(core consent.ConsentCoreService, cfg *config.Config, banking *BankingClient) *PersistService {
	return &PersistService{
		core:    core,
		cfg:     cfg,
		banking: banking,
		logger:  log.GetLogger().With(log.String(log.LoggerKeyComponentName, "ConsentPersist")),
	}
}

// PersistAuthorization records the PSU's approval or refusal on their
// authorization resource, recomputes the aggregated consent status, binds
// the approved accounts and triggers payment settlement when the consent
// became fully authorised.
func (s *PersistService) PersistAuthorization(ctx context.Context, req *PersistRequest) *common.RequestError {
	// A missing consent or authorization reference at this point is a
	// defect in the calling flow, not a client error.
	if req == nil || req.ConsentID == "" || req.AuthID == "" {
		return common.NewInternalError("persist step invoked without consent data")
	}

	detailed, svcErr := s.core.GetDetailedConsent(ctx, req.ConsentID)
	if svcErr != nil {
		return translateServiceError(svcErr, req.ConsentID)
	}

	auth := findAuthorization(detailed.Authorizations, req.AuthID)
	if auth == nil {
		return common.NewInternalError(
			fmt.Sprintf("authorization %s does not belong to consent %s", req.AuthID, req.ConsentID))
	}

	handlers, ok := HandlersFor(detailed.Type())
	if !ok {
		return common.NewPathInvalidError(string(detailed.Type()))
	}

	authStatus := common.ScaStatusFailed
	if req.Approved {
		authStatus = common.ScaStatusPSUAuthenticated
	}

	var mappings []model.ConsentMappingResource
	if req.Approved {
		var err error
		mappings, err = handlers.Persist.BuildAccountMappings(detailed, req.Payload)
		if err != nil {
			s.logger.Error("Failed to build account mappings",
				log.String("consent_id", req.ConsentID), log.Error(err))
			return common.NewInternalError("failed to derive account mappings from the approval")
		}
	}

	authType := auth.Type()
	siblings := detailed.AuthorizationsOfType(authType)
	for i := range siblings {
		if siblings[i].AuthID == auth.AuthID {
			siblings[i].AuthStatus = string(authStatus)
		}
	}

	aggregate, err := ComputeAggregateStatus(siblings)
	if err != nil {
		s.logger.Error("Failed to aggregate authorization statuses",
			log.String("consent_id", req.ConsentID), log.Error(err))
		return common.NewInternalError("failed to aggregate authorization statuses")
	}

	consentStatus, mapped := handlers.StateChange(aggregate, authType)
	if !mapped {
		consentStatus = ""
	}

	strippedUser := common.StripTenantDomain(req.UserID, s.tenantDomain())
	if svcErr := s.core.BindUserAccountsToConsent(ctx, &detailed.ConsentResource,
		strippedUser, auth.AuthID, mappings, authStatus, consentStatus); svcErr != nil {
		return common.NewInternalError("failed to persist the authorization outcome")
	}

	s.logger.Info("Authorization outcome persisted",
		log.String("consent_id", req.ConsentID),
		log.String("auth_id", auth.AuthID),
		log.String("aggregate_status", string(aggregate)),
		log.String("consent_status", consentStatus))

	if reqErr := s.handleRecurringConsents(ctx, detailed, strippedUser, req.Approved, consentStatus); reqErr != nil {
		return reqErr
	}

	return s.settlePayment(ctx, detailed, auth, siblings, req.Approved)
}

// handleRecurringConsents expires earlier valid recurring account consents
// of the same client and PSU once a new one becomes valid, unless multiple
// recurring consents are allowed.
func (s *PersistService) handleRecurringConsents(ctx context.Context, detailed *model.DetailedConsentResource,
	userID string, approved bool, consentStatus string) *common.RequestError {

	if detailed.Type() != common.ConsentTypeAccounts || !approved || !detailed.RecurringIndicator {
		return nil
	}
	if s.cfg.Consent.EnableMultipleRecurringConsent {
		return nil
	}
	if consentStatus != string(common.ConsentStatusValid) {
		return nil
	}

	existing, svcErr := s.core.SearchValidRecurringAccountConsents(ctx, detailed.ClientID, userID)
	if svcErr != nil {
		return common.NewInternalError("failed to look up earlier recurring consents")
	}

	for _, old := range existing {
		if old.ConsentID == detailed.ConsentID {
			continue
		}
		if svcErr := s.core.ExpireConsent(ctx, old.ConsentID, userID); svcErr != nil {
			return common.NewInternalError("failed to expire superseded recurring consent")
		}
		if svcErr := s.core.DeactivateAccountMappings(ctx, old.ConsentID); svcErr != nil {
			return common.NewInternalError("failed to deactivate superseded consent mappings")
		}
		s.logger.Info("Superseded recurring consent expired",
			log.String("consent_id", old.ConsentID),
			log.String("superseded_by", detailed.ConsentID))
	}
	return nil
}

// settlePayment confirms bulk and periodic payment sub-flows against the
// settlement backend once every sibling authorization is authenticated.
func (s *PersistService) settlePayment(ctx context.Context, detailed *model.DetailedConsentResource,
	auth *model.AuthorizationResource, siblings []model.AuthorizationResource, approved bool) *common.RequestError {

	consentType := detailed.Type()
	if consentType != common.ConsentTypeBulkPayments && consentType != common.ConsentTypePeriodicPayments {
		return nil
	}
	if !approved || !allOtherAuthorizationsValid(siblings, auth.AuthID) {
		return nil
	}

	switch auth.Type() {
	case common.AuthTypeAuthorisation:
		if err := s.banking.SubmitPayment(ctx, detailed.ConsentID, detailed.Receipt); err != nil {
			return common.NewRequestErrorWithStatus(http.StatusInternalServerError, common.CodePaymentFailed,
				"payment submission was not accepted by the settlement backend")
		}
	case common.AuthTypeCancellation:
		if err := s.banking.CancelPayment(ctx, detailed.ConsentID, detailed.Receipt); err != nil {
			return common.NewRequestErrorWithStatus(http.StatusInternalServerError, common.CodePaymentFailed,
				"payment cancellation was not accepted by the settlement backend")
		}
	}
	return nil
}

// allOtherAuthorizationsValid reports whether every sibling authorization
// except the given one is psuAuthenticated. An empty sibling set is valid.
func allOtherAuthorizationsValid(siblings []model.AuthorizationResource, excludeAuthID string) bool {
	for _, sibling := range siblings {
		if sibling.AuthID == excludeAuthID {
			continue
		}
		if sibling.Status() != common.ScaStatusPSUAuthenticated {
			return false
		}
	}
	return true
}

func findAuthorization(auths []model.AuthorizationResource, authID string) *model.AuthorizationResource {
	for i := range auths {
		if auths[i].AuthID == authID {
			return &auths[i]
		}
	}
	return nil
}

func (s *PersistService) tenantDomain() string {
	if s.cfg != nil && s.cfg.Consent.TenantDomain != "" {
		return s.cfg.Consent.TenantDomain
	}
	return constants.DefaultTenantDomain
}

// Type-specific persist handlers

var errNoApprovedAccounts = errors.New("approval payload contains no accounts")

type accountsPersistHandler struct{}

// BuildAccountMappings turns the PSU's account selections into mappings.
// Balance and transaction permissions imply account-list access, so an
// implicit accounts permission is added when the PSU approved either
// without it.
func (accountsPersistHandler) BuildAccountMappings(_ *model.DetailedConsentResource,
	payload *PersistPayload) ([]model.ConsentMappingResource, error) {

	if payload == nil || len(payload.Accounts) == 0 {
		return nil, errNoApprovedAccounts
	}

	var mappings []model.ConsentMappingResource
	for _, account := range payload.Accounts {
		if account.AccountID == "" {
			return nil, errors.New("approved account without an account reference")
		}

		permissions := make(map[string]bool, len(account.Permissions))
		for _, p := range account.Permissions {
			permissions[p] = true
		}
		if permissions[string(common.PermissionBalances)] || permissions[string(common.PermissionTransactions)] {
			permissions[string(common.PermissionAccounts)] = true
		}
		if len(permissions) == 0 {
			permissions[string(common.PermissionDefault)] = true
		}

		for permission := range permissions {
			mappings = append(mappings, model.ConsentMappingResource{
				AccountID:     account.AccountID,
				Permission:    permission,
				MappingStatus: model.MappingStatusActive,
			})
		}
	}
	return mappings, nil
}

type paymentsPersistHandler struct{}

// BuildAccountMappings binds the payment debtor account with the default
// permission.
func (paymentsPersistHandler) BuildAccountMappings(detailed *model.DetailedConsentResource,
	_ *PersistPayload) ([]model.ConsentMappingResource, error) {

	receipt, err := parseReceipt(detailed.Receipt)
	if err != nil {
		return nil, err
	}

	accountRef := extractAccountRef(receipt, "debtorAccount")
	if accountRef == "" {
		return nil, errors.New("payment receipt has no debtor account reference")
	}

	return []model.ConsentMappingResource{{
		AccountID:     accountRef,
		Permission:    string(common.PermissionDefault),
		MappingStatus: model.MappingStatusActive,
	}}, nil
}

type fundsConfirmationPersistHandler struct{}

// BuildAccountMappings binds the funds-confirmation account with the default
// permission.
func (fundsConfirmationPersistHandler) BuildAccountMappings(detailed *model.DetailedConsentResource,
	_ *PersistPayload) ([]model.ConsentMappingResource, error) {

	receipt, err := parseReceipt(detailed.Receipt)
	if err != nil {
		return nil, err
	}

	accountRef := extractAccountRef(receipt, "account")
	if accountRef == "" {
		return nil, errors.New("funds-confirmation receipt has no account reference")
	}

	return []model.ConsentMappingResource{{
		AccountID:     accountRef,
		Permission:    string(common.PermissionDefault),
		MappingStatus: model.MappingStatusActive,
	}}, nil
}

// extractAccountRef pulls the first populated account identifier out of an
// account reference object in the receipt.
func extractAccountRef(receipt map[string]interface{}, key string) string {
	ref, ok := receipt[key].(map[string]interface{})
	if !ok {
		return ""
	}
	for _, field := range []string{"iban", "bban", "pan", "maskedPan", "msisdn"} {
		if value, ok := ref[field].(string); ok && value != "" {
			if currency, ok := ref["currency"].(string); ok && currency != "" {
				return value + " " + currency
			}
			return value
		}
	}
	return ""
}
