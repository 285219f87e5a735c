package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wso2/open-banking-berlin/internal/admin"
	"github.com/wso2/open-banking-berlin/internal/authorize"
	"github.com/wso2/open-banking-berlin/internal/common"
	"github.com/wso2/open-banking-berlin/internal/consent/mocks"
	"github.com/wso2/open-banking-berlin/internal/consent/model"
	"github.com/wso2/open-banking-berlin/internal/router"
	"github.com/wso2/open-banking-berlin/internal/system/config"
	"github.com/wso2/open-banking-berlin/internal/system/error/serviceerror"
	"github.com/wso2/open-banking-berlin/internal/validate"
)

const handlerTestConsentID = "11111111-2222-3333-4444-555555555555"

func handlerTestRouter(core *mocks.MockConsentCoreService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Consent.TenantDomain = "@carbon.super"
	cfg.Sca.Required = true
	cfg.Sca.SupportedApproaches = []string{"REDIRECT"}
	cfg.Sca.Methods = []config.ScaMethod{{
		AuthenticationMethodID: "sms-otp", MappedApproach: "REDIRECT", Default: true,
	}}

	return router.SetupRouter(cfg,
		admin.NewCreationService(core, cfg),
		validate.NewValidator(core, cfg),
		authorize.NewRetrievalService(core, cfg),
		authorize.NewPersistService(core, cfg, nil),
		authorize.NewStatusUpdater(core),
		admin.NewRevocationService(core, cfg))
}

func performJSON(t *testing.T, engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	return recorder
}

func handlerTestConsent() *model.DetailedConsentResource {
	user := "psu1"
	return &model.DetailedConsentResource{
		ConsentResource: model.ConsentResource{
			ConsentID:          handlerTestConsentID,
			ClientID:           "client-1",
			ConsentType:        string(common.ConsentTypeAccounts),
			CurrentStatus:      string(common.ConsentStatusValid),
			RecurringIndicator: true,
		},
		Authorizations: []model.AuthorizationResource{{
			AuthID:     "auth-1",
			ConsentID:  handlerTestConsentID,
			AuthType:   string(common.AuthTypeAuthorisation),
			UserID:     &user,
			AuthStatus: string(common.ScaStatusPSUAuthenticated),
		}},
		Mappings: []model.ConsentMappingResource{{
			AccountID:     "DE021234",
			Permission:    string(common.PermissionDefault),
			MappingStatus: model.MappingStatusActive,
		}},
	}
}

func TestHealthEndpoint(t *testing.T) {
	engine := handlerTestRouter(new(mocks.MockConsentCoreService))
	recorder := performJSON(t, engine, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestCreateConsentEndpoint(t *testing.T) {
	t.Run("unknown consent type", func(t *testing.T) {
		engine := handlerTestRouter(new(mocks.MockConsentCoreService))

		recorder := performJSON(t, engine, http.MethodPost, "/api/v1/consents", admin.CreationRequest{
			ClientID:    "client-1",
			ConsentType: "cards",
			Receipt:     `{"access":{}}`,
		})

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "FORMAT_ERROR")
	})

	t.Run("creates consent with sca selection", func(t *testing.T) {
		core := new(mocks.MockConsentCoreService)
		core.On("CreateConsent", mock.Anything, mock.MatchedBy(func(d *model.DetailedConsentResource) bool {
			return d.ConsentType == string(common.ConsentTypeAccounts) &&
				d.CurrentStatus == string(common.ConsentStatusReceived) &&
				d.Attributes["sca-approach"] == "REDIRECT" &&
				len(d.Authorizations) == 1
		})).Return(&model.DetailedConsentResource{
			ConsentResource: model.ConsentResource{
				ConsentID:     handlerTestConsentID,
				CurrentStatus: string(common.ConsentStatusReceived),
			},
			Authorizations: []model.AuthorizationResource{{AuthID: "auth-1"}},
		}, nil)
		engine := handlerTestRouter(core)

		recorder := performJSON(t, engine, http.MethodPost, "/api/v1/consents", admin.CreationRequest{
			ClientID:    "client-1",
			ConsentType: string(common.ConsentTypeAccounts),
			Receipt:     `{"access":{"balances":[]}}`,
		})

		require.Equal(t, http.StatusCreated, recorder.Code)
		var response admin.CreationResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.Equal(t, handlerTestConsentID, response.ConsentID)
		assert.Equal(t, "auth-1", response.AuthorizationID)
		assert.Equal(t, "REDIRECT", response.ScaApproach)
		core.AssertExpectations(t)
	})
}

func TestValidateEndpoint(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		engine := handlerTestRouter(new(mocks.MockConsentCoreService))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/consents/validate",
			bytes.NewReader([]byte("{not json")))
		recorder := httptest.NewRecorder()
		engine.ServeHTTP(recorder, req)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "FORMAT_ERROR")
	})

	t.Run("unroutable path renders the error envelope", func(t *testing.T) {
		core := new(mocks.MockConsentCoreService)
		core.On("GetDetailedConsent", mock.Anything, handlerTestConsentID).Return(handlerTestConsent(), nil)
		engine := handlerTestRouter(core)

		recorder := performJSON(t, engine, http.MethodPost, "/api/v1/consents/validate", validate.ValidationRequest{
			Headers: map[string]string{
				"X-Request-ID": "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
				"Consent-ID":   handlerTestConsentID,
			},
			ResourcePath: "cards/123",
			ConsentID:    handlerTestConsentID,
			ClientID:     "client-1",
			UserID:       "psu1@carbon.super",
		})

		assert.Equal(t, http.StatusNotFound, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "tppMessages")
		assert.Contains(t, recorder.Body.String(), "RESOURCE_UNKNOWN")
	})

	t.Run("verdict is always 200", func(t *testing.T) {
		core := new(mocks.MockConsentCoreService)
		core.On("GetDetailedConsent", mock.Anything, handlerTestConsentID).Return(handlerTestConsent(), nil)
		engine := handlerTestRouter(core)

		recorder := performJSON(t, engine, http.MethodPost, "/api/v1/consents/validate", validate.ValidationRequest{
			Headers: map[string]string{
				"X-Request-ID": "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
				"Consent-ID":   handlerTestConsentID,
			},
			ResourcePath: "accounts",
			ConsentID:    handlerTestConsentID,
			ClientID:     "client-1",
			UserID:       "psu1@carbon.super",
		})

		require.Equal(t, http.StatusOK, recorder.Code)
		var result validate.ValidationResult
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
		assert.True(t, result.Valid)
	})
}

func TestRetrieveEndpoint(t *testing.T) {
	t.Run("missing scope", func(t *testing.T) {
		engine := handlerTestRouter(new(mocks.MockConsentCoreService))
		recorder := performJSON(t, engine, http.MethodGet, "/api/v1/consents/authorize/retrieve?userId=psu1", nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("unknown consent surfaces tpp message", func(t *testing.T) {
		core := new(mocks.MockConsentCoreService)
		core.On("GetDetailedConsent", mock.Anything, "missing").
			Return(nil, serviceerror.CustomServiceError(serviceerror.ResourceNotFoundError, "no such consent"))
		engine := handlerTestRouter(core)

		recorder := performJSON(t, engine, http.MethodGet,
			"/api/v1/consents/authorize/retrieve?scope=ais:missing&userId=psu1", nil)
		assert.Equal(t, common.CodeConsentUnknown.HTTPStatus(), recorder.Code)
		assert.Contains(t, recorder.Body.String(), "tppMessages")
	})
}

func TestPersistEndpoint_MissingReferences(t *testing.T) {
	engine := handlerTestRouter(new(mocks.MockConsentCoreService))
	recorder := performJSON(t, engine, http.MethodPost, "/api/v1/consents/authorize/persist",
		authorize.PersistRequest{AuthID: "auth-1"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "FORMAT_ERROR")
}

func TestStatusUpdateEndpoint_AcknowledgesFailures(t *testing.T) {
	core := new(mocks.MockConsentCoreService)
	core.On("GetConsent", mock.Anything, "missing").
		Return(nil, serviceerror.CustomServiceError(serviceerror.ResourceNotFoundError, "no such consent"))
	engine := handlerTestRouter(core)

	recorder := performJSON(t, engine, http.MethodPost, "/api/v1/consents/authorize/status",
		map[string]string{"consentId": "missing", "userId": "psu1", "kind": "failed"})

	// Status bookkeeping must never break the login flow.
	assert.Equal(t, http.StatusAccepted, recorder.Code)
}

func TestRevokeEndpoint(t *testing.T) {
	t.Run("missing consent ID", func(t *testing.T) {
		engine := handlerTestRouter(new(mocks.MockConsentCoreService))
		recorder := performJSON(t, engine, http.MethodDelete, "/api/v1/consents/revoke", nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("successful revocation", func(t *testing.T) {
		core := new(mocks.MockConsentCoreService)
		core.On("GetDetailedConsent", mock.Anything, handlerTestConsentID).Return(handlerTestConsent(), nil)
		core.On("RevokeConsent", mock.Anything, handlerTestConsentID,
			string(common.ConsentStatusRevokedByPSU), "psu1").Return(nil)
		core.On("DeactivateAccountMappings", mock.Anything, handlerTestConsentID).Return(nil)
		engine := handlerTestRouter(core)

		recorder := performJSON(t, engine, http.MethodDelete,
			"/api/v1/consents/revoke?consentID="+handlerTestConsentID+"&userID=psu1", nil)
		assert.Equal(t, http.StatusNoContent, recorder.Code)
		core.AssertExpectations(t)
	})
}
