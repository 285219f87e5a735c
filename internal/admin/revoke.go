// Package admin implements the administrative consent surface used by the
// gateway tooling: consent creation and the revocation workflow.
package admin

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wso2/open-banking-berlin/internal/common"
	"github.com/wso2/open-banking-berlin/internal/consent"
	"github.com/wso2/open-banking-berlin/internal/consent/model"
	"github.com/wso2/open-banking-berlin/internal/system/config"
	"github.com/wso2/open-banking-berlin/internal/system/constants"
	"github.com/wso2/open-banking-berlin/internal/system/error/serviceerror"
	"github.com/wso2/open-banking-berlin/internal/system/log"
)

// RevocationService terminates consents on behalf of the PSU or the TPP.
type RevocationService struct {
	core   consent.ConsentCoreService
	cfg    *config.Config
	logger *log.Logger
}

// NewRevocationService creates a revocation service.
func NewRevocationService(core consent.ConsentCoreService, cfg *config.Config) *RevocationService {
	return &RevocationService{
		core: core,
		cfg:  cfg,
		logger: log.GetLogger().With(
			log.String(log.LoggerKeyComponentName, "RevocationService")),
	}
}

// RevokeConsent moves the consent into its terminal revoked status. The
// userID is optional: when present the revocation is attributed to the PSU
// and the user must be bound to the consent, when absent it is attributed
// to the TPP.
func (s *RevocationService) RevokeConsent(ctx context.Context, consentID, userID string) *common.RequestError {
	if consentID == "" {
		return common.NewRequestError(common.CodeFormatError, "consentID query parameter is required")
	}

	detailed, svcErr := s.core.GetDetailedConsent(ctx, consentID)
	if svcErr != nil {
		if svcErr.Code == serviceerror.ResourceNotFoundError.Code {
			return common.NewRequestErrorWithStatus(http.StatusForbidden,
				common.CodeConsentUnknown, "consent not found")
		}
		s.logger.Error("Failed to load consent for revocation",
			log.String("consent_id", consentID), log.Any("error", svcErr))
		return common.NewInternalError("failed to load consent")
	}

	actionBy := common.StripTenantDomain(userID, s.tenantDomain())
	if actionBy != "" && !s.isConsentUser(detailed, actionBy) {
		return common.NewRequestError(common.CodeConsentUnknown,
			"consent does not belong to the requesting user")
	}

	if detailed.Type().IsPaymentType() {
		return s.revokePayment(ctx, detailed, actionBy)
	}
	return s.revokeAccountConsent(ctx, detailed, actionBy)
}

func (s *RevocationService) revokeAccountConsent(ctx context.Context,
	detailed *model.DetailedConsentResource, actionBy string) *common.RequestError {

	switch common.ConsentStatus(detailed.CurrentStatus) {
	case common.ConsentStatusRevokedByPSU, common.ConsentStatusTerminatedByTPP, common.ConsentStatusExpired:
		return common.NewRequestError(common.CodeConsentInvalid,
			fmt.Sprintf("consent is already in terminal status %s", detailed.CurrentStatus))
	}

	revokedStatus := string(common.ConsentStatusTerminatedByTPP)
	if actionBy != "" {
		revokedStatus = string(common.ConsentStatusRevokedByPSU)
	}

	if svcErr := s.core.RevokeConsent(ctx, detailed.ConsentID, revokedStatus, actionBy); svcErr != nil {
		s.logger.Error("Failed to revoke consent",
			log.String("consent_id", detailed.ConsentID), log.Any("error", svcErr))
		return common.NewInternalError("failed to revoke consent")
	}
	if svcErr := s.core.DeactivateAccountMappings(ctx, detailed.ConsentID); svcErr != nil {
		s.logger.Error("Failed to deactivate mappings of revoked consent",
			log.String("consent_id", detailed.ConsentID), log.Any("error", svcErr))
		return common.NewInternalError("failed to deactivate account mappings")
	}

	s.logger.Info("Consent revoked",
		log.String("consent_id", detailed.ConsentID),
		log.String("status", revokedStatus))
	return nil
}

func (s *RevocationService) revokePayment(ctx context.Context,
	detailed *model.DetailedConsentResource, actionBy string) *common.RequestError {

	// Single payments are final once submitted and cannot be cancelled
	// through this surface.
	if detailed.Type() == common.ConsentTypePayments {
		return common.NewRequestError(common.CodeCancellationInvalid,
			"single payments cannot be cancelled")
	}

	switch common.TransactionStatus(detailed.CurrentStatus) {
	case common.TransactionStatusCANC, common.TransactionStatusRevoked:
		return common.NewRequestError(common.CodeConsentInvalid,
			fmt.Sprintf("payment is already in terminal status %s", detailed.CurrentStatus))
	}

	if s.cfg.Consent.AuthorizeCancellation {
		// The cancellation itself needs SCA. Park the payment in ACTC so the
		// cancellation authorization flow picks it up.
		if svcErr := s.core.UpdateConsentStatus(ctx, detailed.ConsentID,
			string(common.TransactionStatusACTC), actionBy, "cancellation requested"); svcErr != nil {
			s.logger.Error("Failed to stage payment cancellation",
				log.String("consent_id", detailed.ConsentID), log.Any("error", svcErr))
			return common.NewInternalError("failed to stage payment cancellation")
		}
		s.logger.Info("Payment cancellation staged for authorization",
			log.String("consent_id", detailed.ConsentID))
		return nil
	}

	if svcErr := s.core.RevokeConsent(ctx, detailed.ConsentID,
		string(common.TransactionStatusCANC), actionBy); svcErr != nil {
		s.logger.Error("Failed to cancel payment",
			log.String("consent_id", detailed.ConsentID), log.Any("error", svcErr))
		return common.NewInternalError("failed to cancel payment")
	}
	if svcErr := s.core.DeactivateAccountMappings(ctx, detailed.ConsentID); svcErr != nil {
		s.logger.Error("Failed to deactivate mappings of cancelled payment",
			log.String("consent_id", detailed.ConsentID), log.Any("error", svcErr))
		return common.NewInternalError("failed to deactivate account mappings")
	}

	s.logger.Info("Payment cancelled", log.String("consent_id", detailed.ConsentID))
	return nil
}

func (s *RevocationService) isConsentUser(detailed *model.DetailedConsentResource, userID string) bool {
	for _, user := range detailed.ConsentUsers() {
		if common.StripTenantDomain(user, s.tenantDomain()) == userID {
			return true
		}
	}
	return false
}

func (s *RevocationService) tenantDomain() string {
	if s.cfg.Consent.TenantDomain != "" {
		return s.cfg.Consent.TenantDomain
	}
	return constants.DefaultTenantDomain
}
