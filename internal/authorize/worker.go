package authorize

import (
	"context"
	"errors"
	"fmt"

	"github.com/wso2/open-banking-berlin/internal/common"
	"github.com/wso2/open-banking-berlin/internal/consent"
	"github.com/wso2/open-banking-berlin/internal/consent/model"
	"github.com/wso2/open-banking-berlin/internal/system/log"
)

// StatusUpdateKind is an externally triggered authorization status
// transition, reported by the authentication framework.
type StatusUpdateKind string

const (
	UpdatePSUAuthenticated StatusUpdateKind = "psu-authenticated"
	UpdateExempted         StatusUpdateKind = "exempted"
	UpdateFailed           StatusUpdateKind = "failed"
)

// ErrNoEligibleAuthorization is returned when no authorization resource of
// the consent can accept the requested transition.
var ErrNoEligibleAuthorization = errors.New("no eligible authorization resource for status update")

type statusUpdateRule struct {
	target   common.ScaStatus
	eligible map[common.ScaStatus]bool
}

// statusUpdateTable fixes, per transition kind, the target SCA status and
// the statuses a resource may currently hold to accept it.
var statusUpdateTable = map[StatusUpdateKind]statusUpdateRule{
	UpdatePSUAuthenticated: {
		target: common.ScaStatusPSUAuthenticated,
		eligible: map[common.ScaStatus]bool{
			common.ScaStatusReceived:          true,
			common.ScaStatusSCAMethodSelected: true,
			common.ScaStatusPSUIdentified:     true,
		},
	},
	UpdateExempted: {
		target: common.ScaStatusExempted,
		eligible: map[common.ScaStatus]bool{
			common.ScaStatusStarted:          true,
			common.ScaStatusPSUAuthenticated: true,
		},
	},
	UpdateFailed: {
		target: common.ScaStatusFailed,
		eligible: map[common.ScaStatus]bool{
			common.ScaStatusReceived:          true,
			common.ScaStatusSCAMethodSelected: true,
			common.ScaStatusPSUIdentified:     true,
			common.ScaStatusStarted:           true,
			common.ScaStatusPSUAuthenticated:  true,
		},
	},
}

// StatusUpdater applies externally triggered SCA status transitions to the
// matching authorization resource of a consent.
type StatusUpdater struct {
	core   consent.ConsentCoreService
	logger *log.Logger
}

// NewStatusUpdater creates a status updater over the consent core service.
func NewStatusUpdater(core consent.ConsentCoreService) *StatusUpdater {
	return &StatusUpdater{
		core:   core,
		logger: log.GetLogger().With(log.String(log.LoggerKeyComponentName, "AuthStatusUpdater")),
	}
}

// UpdateAuthorizationStatus locates the authorization resource the
// transition applies to and moves it to the transition's target status.
//
// An exact user match on the implied auth type wins; otherwise the first
// resource of that type whose current status accepts the transition is
// taken.
func (u *StatusUpdater) UpdateAuthorizationStatus(ctx context.Context, consentResource *model.ConsentResource,
	userID string, kind StatusUpdateKind) error {

	rule, ok := statusUpdateTable[kind]
	if !ok {
		return fmt.Errorf("unknown status update kind: %s", kind)
	}

	auths, svcErr := u.core.SearchAuthorizations(ctx, consentResource.ConsentID)
	if svcErr != nil {
		return fmt.Errorf("failed to load authorizations for consent %s: %s",
			consentResource.ConsentID, svcErr.ErrorDescription)
	}

	authType := impliedAuthType(consentResource)
	target := locateAuthorization(auths, userID, authType, rule)
	if target == nil {
		return fmt.Errorf("%w: consent %s, user %s, kind %s",
			ErrNoEligibleAuthorization, consentResource.ConsentID, userID, kind)
	}

	if svcErr := u.core.UpdateAuthorizationStatus(ctx, target.AuthID, rule.target); svcErr != nil {
		return fmt.Errorf("failed to update authorization %s: %s", target.AuthID, svcErr.ErrorDescription)
	}

	u.logger.Debug("Authorization status updated",
		log.String("consent_id", consentResource.ConsentID),
		log.String("auth_id", target.AuthID),
		log.String("status", string(rule.target)))
	return nil
}

// UpdateByConsentID loads the consent and applies the transition to it.
func (u *StatusUpdater) UpdateByConsentID(ctx context.Context, consentID, userID string, kind StatusUpdateKind) error {
	consentResource, svcErr := u.core.GetConsent(ctx, consentID)
	if svcErr != nil {
		return fmt.Errorf("failed to load consent %s: %s", consentID, svcErr.ErrorDescription)
	}
	return u.UpdateAuthorizationStatus(ctx, consentResource, userID, kind)
}

// A payment consent that already reached ACTC only accepts cancellation
// authorizations; everything else is a creation authorization.
func impliedAuthType(consentResource *model.ConsentResource) common.AuthType {
	if consentResource.Type().IsPaymentType() &&
		consentResource.CurrentStatus == string(common.TransactionStatusACTC) {
		return common.AuthTypeCancellation
	}
	return common.AuthTypeAuthorisation
}

func locateAuthorization(auths []model.AuthorizationResource, userID string,
	authType common.AuthType, rule statusUpdateRule) *model.AuthorizationResource {

	var fallback *model.AuthorizationResource
	for i := range auths {
		auth := &auths[i]
		if auth.Type() != authType {
			continue
		}
		if userID != "" && auth.BoundUser() == userID {
			return auth
		}
		if fallback == nil && rule.eligible[auth.Status()] {
			fallback = auth
		}
	}
	return fallback
}
