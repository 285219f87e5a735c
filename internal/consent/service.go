package consent

import (
	"context"

	"github.com/wso2/open-banking-berlin/internal/common"
	"github.com/wso2/open-banking-berlin/internal/consent/model"
	dbmodel "github.com/wso2/open-banking-berlin/internal/system/database/model"
	"github.com/wso2/open-banking-berlin/internal/system/error/serviceerror"
	"github.com/wso2/open-banking-berlin/internal/system/log"
	"github.com/wso2/open-banking-berlin/internal/system/stores"
	"github.com/wso2/open-banking-berlin/internal/system/utils"
)

// ConsentCoreService exposes the consent lifecycle operations used by the
// authorization, validation and admin modules.
type ConsentCoreService interface {
	CreateConsent(ctx context.Context, detailed *model.DetailedConsentResource) (*model.DetailedConsentResource, *serviceerror.ServiceError)
	GetConsent(ctx context.Context, consentID string) (*model.ConsentResource, *serviceerror.ServiceError)
	GetDetailedConsent(ctx context.Context, consentID string) (*model.DetailedConsentResource, *serviceerror.ServiceError)
	SearchAuthorizations(ctx context.Context, consentID string) ([]model.AuthorizationResource, *serviceerror.ServiceError)
	CreateAuthorization(ctx context.Context, auth *model.AuthorizationResource) (*model.AuthorizationResource, *serviceerror.ServiceError)
	UpdateAuthorizationStatus(ctx context.Context, authID string, status common.ScaStatus) *serviceerror.ServiceError
	UpdateConsentStatus(ctx context.Context, consentID, newStatus, actionBy, reason string) *serviceerror.ServiceError
	RevokeConsent(ctx context.Context, consentID, revokedStatus, actionBy string) *serviceerror.ServiceError
	DeactivateAccountMappings(ctx context.Context, consentID string) *serviceerror.ServiceError
	BindUserAccountsToConsent(ctx context.Context, consent *model.ConsentResource, userID, authID string,
		accountMappings []model.ConsentMappingResource, authStatus common.ScaStatus, consentStatus string) *serviceerror.ServiceError
	ExpireConsent(ctx context.Context, consentID, actionBy string) *serviceerror.ServiceError
	AmendConsentReceipt(ctx context.Context, consentID, receipt string) *serviceerror.ServiceError
	SearchValidRecurringAccountConsents(ctx context.Context, clientID, userID string) ([]model.ConsentResource, *serviceerror.ServiceError)
}

// consentCoreService implements ConsentCoreService over the consent store.
type consentCoreService struct {
	store    ConsentStore
	registry *stores.StoreRegistry
	logger   *log.Logger
}

// NewConsentCoreService creates the consent core service.
func NewConsentCoreService(store ConsentStore, registry *stores.StoreRegistry) ConsentCoreService {
	return &consentCoreService{
		store:    store,
		registry: registry,
		logger:   log.GetLogger().With(log.String(log.LoggerKeyComponentName, "ConsentCoreService")),
	}
}

// CreateConsent persists a new consent together with its initial
// authorizations, attributes and the first status audit entry, atomically.
func (s *consentCoreService) CreateConsent(ctx context.Context, detailed *model.DetailedConsentResource) (*model.DetailedConsentResource, *serviceerror.ServiceError) {
	if detailed == nil || detailed.ClientID == "" || detailed.ConsentType == "" || detailed.CurrentStatus == "" {
		return nil, serviceerror.CustomServiceError(serviceerror.InvalidRequestError,
			"client ID, consent type and status are required")
	}

	now := utils.GetCurrentTimeMillis()
	if detailed.ConsentID == "" {
		detailed.ConsentID = utils.GenerateUUID()
	}
	detailed.CreatedTime = now
	detailed.UpdatedTime = now

	queries := []func(tx dbmodel.TxInterface) error{
		s.store.CreateConsentTx(&detailed.ConsentResource),
	}

	for i := range detailed.Authorizations {
		auth := &detailed.Authorizations[i]
		if auth.AuthID == "" {
			auth.AuthID = utils.GenerateUUID()
		}
		auth.ConsentID = detailed.ConsentID
		auth.UpdatedTime = now
		queries = append(queries, s.store.CreateAuthorizationTx(auth))
	}

	for key, value := range detailed.Attributes {
		queries = append(queries, s.store.CreateAttributeTx(&model.ConsentAttribute{
			ConsentID: detailed.ConsentID,
			AttKey:    key,
			AttValue:  value,
		}))
	}

	queries = append(queries, s.store.CreateStatusAuditTx(&model.ConsentStatusAudit{
		StatusAuditID: utils.GenerateUUID(),
		ConsentID:     detailed.ConsentID,
		CurrentStatus: detailed.CurrentStatus,
		ActionTime:    now,
		Reason:        strPointer("consent created"),
		ActionBy:      strPointer(detailed.ClientID),
	}))

	if err := s.registry.ExecuteTransaction(queries); err != nil {
		s.logger.Error("Failed to create consent",
			log.String("client_id", detailed.ClientID), log.Error(err))
		return nil, &serviceerror.DatabaseError
	}

	s.logger.Info("Consent created",
		log.String("consent_id", detailed.ConsentID),
		log.String("consent_type", detailed.ConsentType))
	return detailed, nil
}

// GetConsent retrieves a consent by ID.
func (s *consentCoreService) GetConsent(ctx context.Context, consentID string) (*model.ConsentResource, *serviceerror.ServiceError) {
	if consentID == "" {
		return nil, serviceerror.CustomServiceError(serviceerror.InvalidRequestError, "consent ID is required")
	}

	consent, err := s.store.GetConsent(ctx, consentID)
	if err != nil {
		s.logger.Error("Failed to read consent", log.String("consent_id", consentID), log.Error(err))
		return nil, &serviceerror.DatabaseError
	}
	if consent == nil {
		return nil, &serviceerror.ResourceNotFoundError
	}
	return consent, nil
}

// GetDetailedConsent retrieves a consent with its authorizations, mappings
// and attributes.
func (s *consentCoreService) GetDetailedConsent(ctx context.Context, consentID string) (*model.DetailedConsentResource, *serviceerror.ServiceError) {
	if consentID == "" {
		return nil, serviceerror.CustomServiceError(serviceerror.InvalidRequestError, "consent ID is required")
	}

	detailed, err := s.store.GetDetailedConsent(ctx, consentID)
	if err != nil {
		s.logger.Error("Failed to read detailed consent", log.String("consent_id", consentID), log.Error(err))
		return nil, &serviceerror.DatabaseError
	}
	if detailed == nil {
		return nil, &serviceerror.ResourceNotFoundError
	}
	return detailed, nil
}

// SearchAuthorizations lists the consent's authorization resources in their
// stable order.
func (s *consentCoreService) SearchAuthorizations(ctx context.Context, consentID string) ([]model.AuthorizationResource, *serviceerror.ServiceError) {
	auths, err := s.store.GetAuthorizationsByConsentID(ctx, consentID)
	if err != nil {
		s.logger.Error("Failed to search authorizations", log.String("consent_id", consentID), log.Error(err))
		return nil, &serviceerror.DatabaseError
	}
	return auths, nil
}

// CreateAuthorization adds a new authorization resource to a consent.
func (s *consentCoreService) CreateAuthorization(ctx context.Context, auth *model.AuthorizationResource) (*model.AuthorizationResource, *serviceerror.ServiceError) {
	if auth == nil || auth.ConsentID == "" {
		return nil, serviceerror.CustomServiceError(serviceerror.InvalidRequestError, "authorization consent ID is required")
	}

	consent, err := s.store.GetConsent(ctx, auth.ConsentID)
	if err != nil {
		return nil, &serviceerror.DatabaseError
	}
	if consent == nil {
		return nil, &serviceerror.ResourceNotFoundError
	}

	if auth.AuthID == "" {
		auth.AuthID = utils.GenerateUUID()
	}
	auth.UpdatedTime = utils.GetCurrentTimeMillis()

	if err := s.registry.ExecuteTransaction([]func(tx dbmodel.TxInterface) error{
		s.store.CreateAuthorizationTx(auth),
	}); err != nil {
		s.logger.Error("Failed to create authorization", log.String("consent_id", auth.ConsentID), log.Error(err))
		return nil, &serviceerror.DatabaseError
	}

	return auth, nil
}

// UpdateAuthorizationStatus moves a single authorization resource to the
// given status.
func (s *consentCoreService) UpdateAuthorizationStatus(ctx context.Context, authID string, status common.ScaStatus) *serviceerror.ServiceError {
	if authID == "" {
		return serviceerror.CustomServiceError(serviceerror.InvalidRequestError, "authorization ID is required")
	}

	if err := s.store.UpdateAuthorizationStatus(ctx, authID, string(status), utils.GetCurrentTimeMillis()); err != nil {
		s.logger.Error("Failed to update authorization status",
			log.String("auth_id", authID), log.String("status", string(status)), log.Error(err))
		return &serviceerror.DatabaseError
	}
	return nil
}

// UpdateConsentStatus moves the consent to a new status and records a status
// audit entry in the same transaction.
func (s *consentCoreService) UpdateConsentStatus(ctx context.Context, consentID, newStatus, actionBy, reason string) *serviceerror.ServiceError {
	consent, svcErr := s.GetConsent(ctx, consentID)
	if svcErr != nil {
		return svcErr
	}

	now := utils.GetCurrentTimeMillis()
	if err := s.registry.ExecuteTransaction([]func(tx dbmodel.TxInterface) error{
		s.store.UpdateConsentStatusTx(consentID, newStatus, now),
		s.store.CreateStatusAuditTx(newStatusAudit(consent, newStatus, actionBy, reason, now)),
	}); err != nil {
		s.logger.Error("Failed to update consent status",
			log.String("consent_id", consentID), log.String("status", newStatus), log.Error(err))
		return &serviceerror.DatabaseError
	}

	s.logger.Debug("Consent status updated",
		log.String("consent_id", consentID),
		log.String("previous_status", consent.CurrentStatus),
		log.String("status", newStatus))
	return nil
}

// RevokeConsent moves the consent to the given terminal status, cascades the
// failure to every authorization resource and records an audit entry.
func (s *consentCoreService) RevokeConsent(ctx context.Context, consentID, revokedStatus, actionBy string) *serviceerror.ServiceError {
	consent, svcErr := s.GetConsent(ctx, consentID)
	if svcErr != nil {
		return svcErr
	}

	now := utils.GetCurrentTimeMillis()
	if err := s.registry.ExecuteTransaction([]func(tx dbmodel.TxInterface) error{
		s.store.UpdateConsentStatusTx(consentID, revokedStatus, now),
		s.store.UpdateAuthStatusByConsentIDTx(consentID, string(common.ScaStatusFailed), now),
		s.store.CreateStatusAuditTx(newStatusAudit(consent, revokedStatus, actionBy, "consent revoked", now)),
	}); err != nil {
		s.logger.Error("Failed to revoke consent",
			log.String("consent_id", consentID), log.String("status", revokedStatus), log.Error(err))
		return &serviceerror.DatabaseError
	}

	s.logger.Info("Consent revoked",
		log.String("consent_id", consentID), log.String("status", revokedStatus))
	return nil
}

// DeactivateAccountMappings deactivates every account mapping of the consent.
func (s *consentCoreService) DeactivateAccountMappings(ctx context.Context, consentID string) *serviceerror.ServiceError {
	if err := s.registry.ExecuteTransaction([]func(tx dbmodel.TxInterface) error{
		s.store.UpdateMappingStatusByConsentIDTx(consentID, model.MappingStatusInactive),
	}); err != nil {
		s.logger.Error("Failed to deactivate account mappings",
			log.String("consent_id", consentID), log.Error(err))
		return &serviceerror.DatabaseError
	}
	return nil
}

// BindUserAccountsToConsent binds the PSU and their account mappings to an
// authorization and settles the aggregated consent status, atomically.
func (s *consentCoreService) BindUserAccountsToConsent(ctx context.Context, consent *model.ConsentResource,
	userID, authID string, accountMappings []model.ConsentMappingResource,
	authStatus common.ScaStatus, consentStatus string) *serviceerror.ServiceError {

	if consent == nil || authID == "" {
		return serviceerror.CustomServiceError(serviceerror.InvalidRequestError, "consent and authorization are required")
	}

	now := utils.GetCurrentTimeMillis()
	queries := []func(tx dbmodel.TxInterface) error{
		s.store.UpdateAuthorizationUserTx(authID, userID, now),
		s.store.UpdateAuthorizationStatusTx(authID, string(authStatus), now),
	}

	for i := range accountMappings {
		mapping := accountMappings[i]
		if mapping.MappingID == "" {
			mapping.MappingID = utils.GenerateUUID()
		}
		mapping.AuthID = authID
		if mapping.MappingStatus == "" {
			mapping.MappingStatus = model.MappingStatusActive
		}
		queries = append(queries, s.store.CreateMappingTx(&mapping))
	}

	if consentStatus != "" && consentStatus != consent.CurrentStatus {
		queries = append(queries,
			s.store.UpdateConsentStatusTx(consent.ConsentID, consentStatus, now),
			s.store.CreateStatusAuditTx(newStatusAudit(consent, consentStatus, userID, "authorization settled", now)))
	}

	if err := s.registry.ExecuteTransaction(queries); err != nil {
		s.logger.Error("Failed to bind user accounts to consent",
			log.String("consent_id", consent.ConsentID), log.String("auth_id", authID), log.Error(err))
		return &serviceerror.DatabaseError
	}

	return nil
}

// ExpireConsent moves a consent to the expired status with an audit entry.
func (s *consentCoreService) ExpireConsent(ctx context.Context, consentID, actionBy string) *serviceerror.ServiceError {
	return s.UpdateConsentStatus(ctx, consentID, string(common.ConsentStatusExpired), actionBy, "validity period elapsed")
}

// AmendConsentReceipt replaces the stored consent receipt.
func (s *consentCoreService) AmendConsentReceipt(ctx context.Context, consentID, receipt string) *serviceerror.ServiceError {
	if _, svcErr := s.GetConsent(ctx, consentID); svcErr != nil {
		return svcErr
	}

	if err := s.registry.ExecuteTransaction([]func(tx dbmodel.TxInterface) error{
		s.store.UpdateConsentReceiptTx(consentID, receipt, utils.GetCurrentTimeMillis()),
	}); err != nil {
		s.logger.Error("Failed to amend consent receipt", log.String("consent_id", consentID), log.Error(err))
		return &serviceerror.DatabaseError
	}
	return nil
}

// SearchValidRecurringAccountConsents finds active recurring account consents
// where the PSU holds an authorization for the given client.
func (s *consentCoreService) SearchValidRecurringAccountConsents(ctx context.Context, clientID, userID string) ([]model.ConsentResource, *serviceerror.ServiceError) {
	consents, err := s.store.SearchRecurringConsents(ctx, clientID, userID,
		string(common.ConsentTypeAccounts), string(common.ConsentStatusValid))
	if err != nil {
		s.logger.Error("Failed to search recurring consents",
			log.String("client_id", clientID), log.Error(err))
		return nil, &serviceerror.DatabaseError
	}
	return consents, nil
}

func strPointer(s string) *string {
	return &s
}

func newStatusAudit(consent *model.ConsentResource, newStatus, actionBy, reason string, actionTime int64) *model.ConsentStatusAudit {
	previous := consent.CurrentStatus
	audit := &model.ConsentStatusAudit{
		StatusAuditID:  utils.GenerateUUID(),
		ConsentID:      consent.ConsentID,
		CurrentStatus:  newStatus,
		ActionTime:     actionTime,
		PreviousStatus: &previous,
	}
	if actionBy != "" {
		audit.ActionBy = &actionBy
	}
	if reason != "" {
		audit.Reason = &reason
	}
	return audit
}
