package admin

import (
	"context"
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

func creationTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Consent.TenantDomain = "@carbon.super"
	cfg.Sca.Required = true
	cfg.Sca.SupportedApproaches = []string{"REDIRECT", "DECOUPLED"}
	cfg.Sca.Methods = []config.ScaMethod{
		{AuthenticationMethodID: "sms-otp", MappedApproach: "REDIRECT", Default: true},
		{AuthenticationMethodID: "push-otp", MappedApproach: "DECOUPLED"},
	}
	return cfg
}

func creationRequest(consentType common.ConsentType) *CreationRequest {
	return &CreationRequest{
		ClientID:    "client-1",
		ConsentType: string(consentType),
		Receipt:     `{"access":{"balances":[]}}`,
	}
}

func TestCreateConsent_RequestValidation(t *testing.T) {
	svc := NewCreationService(new(mocks.MockConsentCoreService), creationTestConfig())

	tests := []struct {
		name   string
		mutate func(req *CreationRequest)
	}{
		{"missing client", func(req *CreationRequest) { req.ClientID = "" }},
		{"missing receipt", func(req *CreationRequest) { req.Receipt = "" }},
		{"unknown consent type", func(req *CreationRequest) { req.ConsentType = "cards" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := creationRequest(common.ConsentTypeAccounts)
			tc.mutate(req)

			response, reqErr := svc.CreateConsent(context.Background(), req)
			require.Nil(t, response)
			require.NotNil(t, reqErr)
			assert.Equal(t, common.CodeFormatError, reqErr.Body.Messages[0].Code)
		})
	}
}

func TestCreateConsent_StampsScaSelection(t *testing.T) {
	core := new(mocks.MockConsentCoreService)
	var stored *model.DetailedConsentResource
	core.On("CreateConsent", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*model.DetailedConsentResource)
			stored.ConsentID = "consent-1"
			stored.Authorizations[0].AuthID = "auth-1"
		}).
		Return(&model.DetailedConsentResource{
			ConsentResource: model.ConsentResource{
				ConsentID:     "consent-1",
				CurrentStatus: string(common.ConsentStatusReceived),
			},
			Authorizations: []model.AuthorizationResource{{AuthID: "auth-1"}},
		}, nil)
	svc := NewCreationService(core, creationTestConfig())

	req := creationRequest(common.ConsentTypeAccounts)
	req.Attributes = map[string]string{"x-request-id": "req-1"}

	response, reqErr := svc.CreateConsent(context.Background(), req)
	require.Nil(t, reqErr)

	// The default method fixes the approach without an explicit preference.
	require.NotNil(t, stored)
	assert.Equal(t, string(common.ConsentStatusReceived), stored.CurrentStatus)
	assert.Equal(t, "REDIRECT", stored.Attributes[AttributeScaApproach])
	assert.Equal(t, "sms-otp", stored.Attributes[AttributeScaMethods])
	assert.Equal(t, "req-1", stored.Attributes["x-request-id"])
	require.Len(t, stored.Authorizations, 1)
	assert.Equal(t, string(common.AuthTypeAuthorisation), stored.Authorizations[0].AuthType)
	assert.Equal(t, string(common.ScaStatusReceived), stored.Authorizations[0].AuthStatus)

	assert.Equal(t, "consent-1", response.ConsentID)
	assert.Equal(t, "auth-1", response.AuthorizationID)
	assert.Equal(t, "REDIRECT", response.ScaApproach)
	require.Len(t, response.ScaMethods, 1)
	assert.Equal(t, "sms-otp", response.ScaMethods[0].AuthenticationMethodID)
}

func TestCreateConsent_RedirectPreferenceWins(t *testing.T) {
	core := new(mocks.MockConsentCoreService)
	var stored *model.DetailedConsentResource
	core.On("CreateConsent", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*model.DetailedConsentResource)
		}).
		Return(&model.DetailedConsentResource{
			Authorizations: []model.AuthorizationResource{{AuthID: "auth-1"}},
		}, nil)
	svc := NewCreationService(core, creationTestConfig())

	req := creationRequest(common.ConsentTypeAccounts)
	req.TPPRedirectPreferred = "false"

	response, reqErr := svc.CreateConsent(context.Background(), req)
	require.Nil(t, reqErr)
	assert.Equal(t, "DECOUPLED", response.ScaApproach)
	assert.Equal(t, "DECOUPLED", stored.Attributes[AttributeScaApproach])
	assert.Equal(t, "push-otp", stored.Attributes[AttributeScaMethods])
}

func TestCreateConsent_PaymentStartsInTransactionModel(t *testing.T) {
	core := new(mocks.MockConsentCoreService)
	core.On("CreateConsent", mock.Anything, mock.MatchedBy(func(d *model.DetailedConsentResource) bool {
		return d.CurrentStatus == string(common.TransactionStatusRCVD)
	})).Return(&model.DetailedConsentResource{
		ConsentResource: model.ConsentResource{
			ConsentID:     "consent-1",
			CurrentStatus: string(common.TransactionStatusRCVD),
		},
		Authorizations: []model.AuthorizationResource{{AuthID: "auth-1"}},
	}, nil)
	svc := NewCreationService(core, creationTestConfig())

	response, reqErr := svc.CreateConsent(context.Background(), creationRequest(common.ConsentTypeBulkPayments))
	require.Nil(t, reqErr)
	assert.Equal(t, string(common.TransactionStatusRCVD), response.ConsentStatus)
	core.AssertExpectations(t)
}

func TestCreateConsent_CoreFailure(t *testing.T) {
	core := new(mocks.MockConsentCoreService)
	core.On("CreateConsent", mock.Anything, mock.Anything).
		Return(nil, &serviceerror.DatabaseError)
	svc := NewCreationService(core, creationTestConfig())

	response, reqErr := svc.CreateConsent(context.Background(), creationRequest(common.ConsentTypeAccounts))
	require.Nil(t, response)
	require.NotNil(t, reqErr)
	assert.Equal(t, common.CodeInternalServerError, reqErr.Body.Messages[0].Code)
}
