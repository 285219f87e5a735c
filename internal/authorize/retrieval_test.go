package authorize

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

func TestConsentIDFromScope(t *testing.T) {
	tests := []struct {
		name       string
		scope      string
		wantID     string
		wantPrefix string
		wantOK     bool
	}{
		{"accounts scope", "ais:consent-123", "consent-123", "ais", true},
		{"payments scope", "pis:consent-456", "consent-456", "pis", true},
		{"funds scope", "piis:consent-789", "consent-789", "piis", true},
		{"consent scope among others", "openid profile ais:consent-123 accounts", "consent-123", "ais", true},
		{"no consent scope", "openid profile accounts", "", "", false},
		{"empty consent ID", "ais:", "", "", false},
		{"extra delimiter", "ais:consent:extra", "", "", false},
		{"empty string", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, prefix, ok := ConsentIDFromScope(tt.scope)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantPrefix, prefix)
		})
	}
}

func TestScopeMatchesConsentType(t *testing.T) {
	assert.True(t, scopeMatchesConsentType("ais", common.ConsentTypeAccounts))
	assert.True(t, scopeMatchesConsentType("pis", common.ConsentTypePayments))
	assert.True(t, scopeMatchesConsentType("pis", common.ConsentTypeBulkPayments))
	assert.True(t, scopeMatchesConsentType("piis", common.ConsentTypeFundsConfirmation))
	assert.False(t, scopeMatchesConsentType("ais", common.ConsentTypePayments))
	assert.False(t, scopeMatchesConsentType("pis", common.ConsentTypeAccounts))
	assert.False(t, scopeMatchesConsentType("unknown", common.ConsentTypeAccounts))
}

func TestSelectOpenAuthorization(t *testing.T) {
	t.Run("prefers the PSU's own open resource", func(t *testing.T) {
		auths := []model.AuthorizationResource{
			openAuth("auth-1", "", common.ScaStatusReceived, common.AuthTypeAuthorisation),
			openAuth("auth-2", "psu1", common.ScaStatusReceived, common.AuthTypeAuthorisation),
		}
		selected, mismatch := selectOpenAuthorization(auths, "psu1", common.AuthTypeAuthorisation)
		require.NotNil(t, selected)
		assert.Equal(t, "auth-2", selected.AuthID)
		assert.False(t, mismatch)
	})

	t.Run("falls back to the first open resource", func(t *testing.T) {
		auths := []model.AuthorizationResource{
			openAuth("auth-1", "", common.ScaStatusFinalised, common.AuthTypeAuthorisation),
			openAuth("auth-2", "", common.ScaStatusReceived, common.AuthTypeAuthorisation),
		}
		selected, mismatch := selectOpenAuthorization(auths, "psu1", common.AuthTypeAuthorisation)
		require.NotNil(t, selected)
		assert.Equal(t, "auth-2", selected.AuthID)
		assert.False(t, mismatch)
	})

	t.Run("flags a resource bound to a different PSU", func(t *testing.T) {
		auths := []model.AuthorizationResource{
			openAuth("auth-1", "psu2", common.ScaStatusReceived, common.AuthTypeAuthorisation),
		}
		selected, mismatch := selectOpenAuthorization(auths, "psu1", common.AuthTypeAuthorisation)
		require.NotNil(t, selected)
		assert.True(t, mismatch)
	})

	t.Run("ignores resources of the other auth type", func(t *testing.T) {
		auths := []model.AuthorizationResource{
			openAuth("auth-1", "", common.ScaStatusReceived, common.AuthTypeAuthorisation),
		}
		selected, _ := selectOpenAuthorization(auths, "psu1", common.AuthTypeCancellation)
		assert.Nil(t, selected)
	})
}

func TestValidateAuthorizationStatus(t *testing.T) {
	t.Run("accounts", func(t *testing.T) {
		h := accountsRetrievalHandler{}
		for _, status := range []common.ConsentStatus{
			common.ConsentStatusReceived, common.ConsentStatusPartiallyAuthorised,
		} {
			c := &model.ConsentResource{ConsentID: "c1", CurrentStatus: string(status)}
			assert.Nil(t, h.ValidateAuthorizationStatus(c, common.AuthTypeAuthorisation))
		}
		c := &model.ConsentResource{ConsentID: "c1", CurrentStatus: string(common.ConsentStatusValid)}
		reqErr := h.ValidateAuthorizationStatus(c, common.AuthTypeAuthorisation)
		require.NotNil(t, reqErr)
		assert.Equal(t, common.CodeConsentInvalid, reqErr.Body.Messages[0].Code)
	})

	t.Run("payments authorisation", func(t *testing.T) {
		h := paymentsRetrievalHandler{}
		for _, status := range []common.TransactionStatus{
			common.TransactionStatusRCVD, common.TransactionStatusPATC,
		} {
			c := &model.ConsentResource{ConsentID: "p1", CurrentStatus: string(status)}
			assert.Nil(t, h.ValidateAuthorizationStatus(c, common.AuthTypeAuthorisation))
		}
		c := &model.ConsentResource{ConsentID: "p1", CurrentStatus: string(common.TransactionStatusACCP)}
		assert.NotNil(t, h.ValidateAuthorizationStatus(c, common.AuthTypeAuthorisation))
	})

	t.Run("payments cancellation", func(t *testing.T) {
		h := paymentsRetrievalHandler{}
		c := &model.ConsentResource{ConsentID: "p1", CurrentStatus: string(common.TransactionStatusACTC)}
		assert.Nil(t, h.ValidateAuthorizationStatus(c, common.AuthTypeCancellation))

		c.CurrentStatus = string(common.TransactionStatusRCVD)
		assert.NotNil(t, h.ValidateAuthorizationStatus(c, common.AuthTypeCancellation))
	})

	t.Run("funds confirmations", func(t *testing.T) {
		h := fundsConfirmationRetrievalHandler{}
		c := &model.ConsentResource{ConsentID: "f1", CurrentStatus: string(common.ConsentStatusReceived)}
		assert.Nil(t, h.ValidateAuthorizationStatus(c, common.AuthTypeAuthorisation))

		c.CurrentStatus = string(common.ConsentStatusValid)
		assert.NotNil(t, h.ValidateAuthorizationStatus(c, common.AuthTypeAuthorisation))
	})
}

func TestBuildDisplayData_Accounts(t *testing.T) {
	detailed := &model.DetailedConsentResource{
		ConsentResource: model.ConsentResource{
			ConsentID:          "c1",
			ConsentType:        string(common.ConsentTypeAccounts),
			RecurringIndicator: true,
			Receipt: `{"access":{"accounts":[]},"validUntil":"2026-12-31",` +
				`"frequencyPerDay":4,"combinedServiceIndicator":false,"ignored":"x"}`,
		},
	}
	data, err := accountsRetrievalHandler{}.BuildDisplayData(detailed)
	require.NoError(t, err)
	assert.Equal(t, string(common.ConsentTypeAccounts), data["consentType"])
	assert.Equal(t, true, data["recurringIndicator"])
	assert.Equal(t, "2026-12-31", data["validUntil"])
	assert.Contains(t, data, "access")
	assert.Contains(t, data, "frequencyPerDay")
	assert.NotContains(t, data, "ignored")
}

func TestBuildDisplayData_MalformedReceipt(t *testing.T) {
	detailed := &model.DetailedConsentResource{
		ConsentResource: model.ConsentResource{Receipt: "{not json"},
	}
	_, err := paymentsRetrievalHandler{}.BuildDisplayData(detailed)
	assert.Error(t, err)
}

func TestSanitizeDisplayData(t *testing.T) {
	data := map[string]interface{}{
		"creditorName": "Merchant <script>alert(1)</script>",
		"nested": map[string]interface{}{
			"iban": "DE02<b>1234</b>",
		},
		"list":   []interface{}{"<img src=x>"},
		"amount": 12.5,
	}
	sanitizeDisplayData(data)

	assert.NotContains(t, data["creditorName"], "<script>")
	nested := data["nested"].(map[string]interface{})
	assert.NotContains(t, nested["iban"], "<b>")
	list := data["list"].([]interface{})
	assert.NotContains(t, list[0], "<img")
	assert.Equal(t, 12.5, data["amount"])
}

func retrievalTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Consent.TenantDomain = "@carbon.super"
	return cfg
}

func TestRetrieveConsentData(t *testing.T) {
	detailed := &model.DetailedConsentResource{
		ConsentResource: model.ConsentResource{
			ConsentID:     "consent-123",
			ClientID:      "client-1",
			ConsentType:   string(common.ConsentTypeAccounts),
			CurrentStatus: string(common.ConsentStatusReceived),
			Receipt:       `{"access":{"accounts":[]}}`,
		},
		Authorizations: []model.AuthorizationResource{
			openAuth("auth-1", "", common.ScaStatusReceived, common.AuthTypeAuthorisation),
		},
	}

	t.Run("resolves the consent from the scope", func(t *testing.T) {
		core := new(mocks.MockConsentCoreService)
		core.On("GetDetailedConsent", mock.Anything, "consent-123").Return(detailed, nil)
		svc := NewRetrievalService(core, retrievalTestConfig())

		data, reqErr := svc.RetrieveConsentData(context.Background(), "openid ais:consent-123", "psu1@carbon.super")
		require.Nil(t, reqErr)
		assert.Equal(t, "consent-123", data.ConsentID)
		assert.Equal(t, "auth-1", data.AuthID)
		assert.Equal(t, common.AuthTypeAuthorisation, data.AuthType)
		assert.Equal(t, common.ConsentTypeAccounts, data.ConsentType)
		assert.Equal(t, "client-1", data.ClientID)
		assert.False(t, data.UserMismatch)
		assert.Contains(t, data.DisplayData, "access")
	})

	t.Run("rejects a token without a consent scope", func(t *testing.T) {
		svc := NewRetrievalService(new(mocks.MockConsentCoreService), retrievalTestConfig())
		_, reqErr := svc.RetrieveConsentData(context.Background(), "openid accounts", "psu1")
		require.NotNil(t, reqErr)
		assert.Equal(t, common.CodeConsentUnknown, reqErr.Body.Messages[0].Code)
	})

	t.Run("maps a missing consent to consent unknown", func(t *testing.T) {
		core := new(mocks.MockConsentCoreService)
		core.On("GetDetailedConsent", mock.Anything, "missing").
			Return(nil, serviceerror.CustomServiceError(serviceerror.ResourceNotFoundError, "no such consent"))
		svc := NewRetrievalService(core, retrievalTestConfig())

		_, reqErr := svc.RetrieveConsentData(context.Background(), "ais:missing", "psu1")
		require.NotNil(t, reqErr)
		assert.Equal(t, common.CodeConsentUnknown, reqErr.Body.Messages[0].Code)
	})

	t.Run("rejects a scope type mismatch", func(t *testing.T) {
		core := new(mocks.MockConsentCoreService)
		core.On("GetDetailedConsent", mock.Anything, "consent-123").Return(detailed, nil)
		svc := NewRetrievalService(core, retrievalTestConfig())

		_, reqErr := svc.RetrieveConsentData(context.Background(), "pis:consent-123", "psu1")
		require.NotNil(t, reqErr)
		assert.Equal(t, common.CodeConsentUnknown, reqErr.Body.Messages[0].Code)
	})

	t.Run("rejects a consent without an open authorization", func(t *testing.T) {
		finalised := &model.DetailedConsentResource{
			ConsentResource: detailed.ConsentResource,
			Authorizations: []model.AuthorizationResource{
				openAuth("auth-1", "psu1", common.ScaStatusFinalised, common.AuthTypeAuthorisation),
			},
		}
		core := new(mocks.MockConsentCoreService)
		core.On("GetDetailedConsent", mock.Anything, "consent-123").Return(finalised, nil)
		svc := NewRetrievalService(core, retrievalTestConfig())

		_, reqErr := svc.RetrieveConsentData(context.Background(), "ais:consent-123", "psu1")
		require.NotNil(t, reqErr)
		assert.Equal(t, common.CodeConsentInvalid, reqErr.Body.Messages[0].Code)
	})
}
