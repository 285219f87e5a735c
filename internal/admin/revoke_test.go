package admin

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wso2/open-banking-berlin/internal/common"
	"github.com/wso2/open-banking-berlin/internal/consent/mocks"
	"github.com/wso2/open-banking-berlin/internal/consent/model"
	"github.com/wso2/open-banking-berlin/internal/system/config"
	"github.com/wso2/open-banking-berlin/internal/system/error/serviceerror"
)

func revocationTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Consent.TenantDomain = "@carbon.super"
	return cfg
}

func detailedConsent(consentType common.ConsentType, status, user string) *model.DetailedConsentResource {
	detailed := &model.DetailedConsentResource{
		ConsentResource: model.ConsentResource{
			ConsentID:     "consent-1",
			ClientID:      "client-1",
			ConsentType:   string(consentType),
			CurrentStatus: status,
		},
	}
	if user != "" {
		detailed.Authorizations = []model.AuthorizationResource{{
			AuthID:     "auth-1",
			ConsentID:  "consent-1",
			AuthType:   string(common.AuthTypeAuthorisation),
			UserID:     &user,
			AuthStatus: string(common.ScaStatusPSUAuthenticated),
		}}
	}
	return detailed
}

func TestRevokeConsent_MissingConsentID(t *testing.T) {
	svc := NewRevocationService(new(mocks.MockConsentCoreService), revocationTestConfig())

	reqErr := svc.RevokeConsent(context.Background(), "", "psu1")
	require.NotNil(t, reqErr)
	assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	assert.Equal(t, common.CodeFormatError, reqErr.Body.Messages[0].Code)
}

func TestRevokeConsent_NotFound(t *testing.T) {
	core := new(mocks.MockConsentCoreService)
	core.On("GetDetailedConsent", mock.Anything, "missing").
		Return(nil, serviceerror.CustomServiceError(serviceerror.ResourceNotFoundError, "no such consent"))
	svc := NewRevocationService(core, revocationTestConfig())

	reqErr := svc.RevokeConsent(context.Background(), "missing", "psu1")
	require.NotNil(t, reqErr)
	assert.Equal(t, http.StatusForbidden, reqErr.StatusCode)
	assert.Equal(t, common.CodeConsentUnknown, reqErr.Body.Messages[0].Code)
}

func TestRevokeConsent_ForeignUser(t *testing.T) {
	core := new(mocks.MockConsentCoreService)
	core.On("GetDetailedConsent", mock.Anything, "consent-1").
		Return(detailedConsent(common.ConsentTypeAccounts, string(common.ConsentStatusValid), "psu1"), nil)
	svc := NewRevocationService(core, revocationTestConfig())

	reqErr := svc.RevokeConsent(context.Background(), "consent-1", "intruder@carbon.super")
	require.NotNil(t, reqErr)
	assert.Equal(t, common.CodeConsentUnknown, reqErr.Body.Messages[0].Code)
	core.AssertNotCalled(t, "RevokeConsent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRevokeConsent_AttributedToPSU(t *testing.T) {
	core := new(mocks.MockConsentCoreService)
	core.On("GetDetailedConsent", mock.Anything, "consent-1").
		Return(detailedConsent(common.ConsentTypeAccounts, string(common.ConsentStatusValid), "psu1"), nil)
	core.On("RevokeConsent", mock.Anything, "consent-1", string(common.ConsentStatusRevokedByPSU), "psu1").Return(nil)
	core.On("DeactivateAccountMappings", mock.Anything, "consent-1").Return(nil)
	svc := NewRevocationService(core, revocationTestConfig())

	reqErr := svc.RevokeConsent(context.Background(), "consent-1", "psu1@carbon.super")
	assert.Nil(t, reqErr)
	core.AssertExpectations(t)
}

func TestRevokeConsent_AttributedToTPP(t *testing.T) {
	core := new(mocks.MockConsentCoreService)
	core.On("GetDetailedConsent", mock.Anything, "consent-1").
		Return(detailedConsent(common.ConsentTypeAccounts, string(common.ConsentStatusValid), "psu1"), nil)
	core.On("RevokeConsent", mock.Anything, "consent-1", string(common.ConsentStatusTerminatedByTPP), "").Return(nil)
	core.On("DeactivateAccountMappings", mock.Anything, "consent-1").Return(nil)
	svc := NewRevocationService(core, revocationTestConfig())

	reqErr := svc.RevokeConsent(context.Background(), "consent-1", "")
	assert.Nil(t, reqErr)
	core.AssertExpectations(t)
}

func TestRevokeConsent_AlreadyTerminal(t *testing.T) {
	for _, status := range []common.ConsentStatus{
		common.ConsentStatusRevokedByPSU, common.ConsentStatusTerminatedByTPP, common.ConsentStatusExpired,
	} {
		t.Run(string(status), func(t *testing.T) {
			core := new(mocks.MockConsentCoreService)
			core.On("GetDetailedConsent", mock.Anything, "consent-1").
				Return(detailedConsent(common.ConsentTypeAccounts, string(status), "psu1"), nil)
			svc := NewRevocationService(core, revocationTestConfig())

			reqErr := svc.RevokeConsent(context.Background(), "consent-1", "psu1")
			require.NotNil(t, reqErr)
			assert.Equal(t, common.CodeConsentInvalid, reqErr.Body.Messages[0].Code)
		})
	}
}

func TestRevokeConsent_SinglePaymentNotCancellable(t *testing.T) {
	core := new(mocks.MockConsentCoreService)
	core.On("GetDetailedConsent", mock.Anything, "consent-1").
		Return(detailedConsent(common.ConsentTypePayments, string(common.TransactionStatusACCP), "psu1"), nil)
	svc := NewRevocationService(core, revocationTestConfig())

	reqErr := svc.RevokeConsent(context.Background(), "consent-1", "psu1")
	require.NotNil(t, reqErr)
	assert.Equal(t, http.StatusMethodNotAllowed, reqErr.StatusCode)
	assert.Equal(t, common.CodeCancellationInvalid, reqErr.Body.Messages[0].Code)
}

func TestRevokeConsent_PaymentAlreadyCancelled(t *testing.T) {
	core := new(mocks.MockConsentCoreService)
	core.On("GetDetailedConsent", mock.Anything, "consent-1").
		Return(detailedConsent(common.ConsentTypeBulkPayments, string(common.TransactionStatusCANC), "psu1"), nil)
	svc := NewRevocationService(core, revocationTestConfig())

	reqErr := svc.RevokeConsent(context.Background(), "consent-1", "psu1")
	require.NotNil(t, reqErr)
	assert.Equal(t, common.CodeConsentInvalid, reqErr.Body.Messages[0].Code)
}

func TestRevokeConsent_PaymentDirectCancellation(t *testing.T) {
	core := new(mocks.MockConsentCoreService)
	core.On("GetDetailedConsent", mock.Anything, "consent-1").
		Return(detailedConsent(common.ConsentTypeBulkPayments, string(common.TransactionStatusACCP), "psu1"), nil)
	core.On("RevokeConsent", mock.Anything, "consent-1", string(common.TransactionStatusCANC), "psu1").Return(nil)
	core.On("DeactivateAccountMappings", mock.Anything, "consent-1").Return(nil)
	svc := NewRevocationService(core, revocationTestConfig())

	reqErr := svc.RevokeConsent(context.Background(), "consent-1", "psu1")
	assert.Nil(t, reqErr)
	core.AssertExpectations(t)
}

func TestRevokeConsent_PaymentCancellationNeedsSCA(t *testing.T) {
	core := new(mocks.MockConsentCoreService)
	core.On("GetDetailedConsent", mock.Anything, "consent-1").
		Return(detailedConsent(common.ConsentTypePeriodicPayments, string(common.TransactionStatusACCP), "psu1"), nil)
	core.On("UpdateConsentStatus", mock.Anything, "consent-1",
		string(common.TransactionStatusACTC), "psu1", "cancellation requested").Return(nil)

	cfg := revocationTestConfig()
	cfg.Consent.AuthorizeCancellation = true
	svc := NewRevocationService(core, cfg)

	reqErr := svc.RevokeConsent(context.Background(), "consent-1", "psu1")
	assert.Nil(t, reqErr)
	core.AssertExpectations(t)
	core.AssertNotCalled(t, "RevokeConsent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
