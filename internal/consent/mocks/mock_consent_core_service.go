package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/wso2/open-banking-berlin/internal/common"
	"github.com/wso2/open-banking-berlin/internal/consent/model"
	"github.com/wso2/open-banking-berlin/internal/system/error/serviceerror"
)

// MockConsentCoreService is a mock implementation of ConsentCoreService
type MockConsentCoreService struct {
	mock.Mock
}

func (m *MockConsentCoreService) CreateConsent(ctx context.Context, detailed *model.DetailedConsentResource) (*model.DetailedConsentResource, *serviceerror.ServiceError) {
	args := m.Called(ctx, detailed)
	if args.Get(0) == nil {
		return nil, svcErr(args.Get(1))
	}
	return args.Get(0).(*model.DetailedConsentResource), svcErr(args.Get(1))
}

func (m *MockConsentCoreService) GetConsent(ctx context.Context, consentID string) (*model.ConsentResource, *serviceerror.ServiceError) {
	args := m.Called(ctx, consentID)
	if args.Get(0) == nil {
		return nil, svcErr(args.Get(1))
	}
	return args.Get(0).(*model.ConsentResource), svcErr(args.Get(1))
}

func (m *MockConsentCoreService) GetDetailedConsent(ctx context.Context, consentID string) (*model.DetailedConsentResource, *serviceerror.ServiceError) {
	args := m.Called(ctx, consentID)
	if args.Get(0) == nil {
		return nil, svcErr(args.Get(1))
	}
	return args.Get(0).(*model.DetailedConsentResource), svcErr(args.Get(1))
}

func (m *MockConsentCoreService) SearchAuthorizations(ctx context.Context, consentID string) ([]model.AuthorizationResource, *serviceerror.ServiceError) {
	args := m.Called(ctx, consentID)
	if args.Get(0) == nil {
		return nil, svcErr(args.Get(1))
	}
	return args.Get(0).([]model.AuthorizationResource), svcErr(args.Get(1))
}

func (m *MockConsentCoreService) CreateAuthorization(ctx context.Context, auth *model.AuthorizationResource) (*model.AuthorizationResource, *serviceerror.ServiceError) {
	args := m.Called(ctx, auth)
	if args.Get(0) == nil {
		return nil, svcErr(args.Get(1))
	}
	return args.Get(0).(*model.AuthorizationResource), svcErr(args.Get(1))
}

func (m *MockConsentCoreService) UpdateAuthorizationStatus(ctx context.Context, authID string, status common.ScaStatus) *serviceerror.ServiceError {
	args := m.Called(ctx, authID, status)
	return svcErr(args.Get(0))
}

func (m *MockConsentCoreService) UpdateConsentStatus(ctx context.Context, consentID, newStatus, actionBy, reason string) *serviceerror.ServiceError {
	args := m.Called(ctx, consentID, newStatus, actionBy, reason)
	return svcErr(args.Get(0))
}

func (m *MockConsentCoreService) RevokeConsent(ctx context.Context, consentID, revokedStatus, actionBy string) *serviceerror.ServiceError {
	args := m.Called(ctx, consentID, revokedStatus, actionBy)
	return svcErr(args.Get(0))
}

func (m *MockConsentCoreService) DeactivateAccountMappings(ctx context.Context, consentID string) *serviceerror.ServiceError {
	args := m.Called(ctx, consentID)
	return svcErr(args.Get(0))
}

func (m *MockConsentCoreService) BindUserAccountsToConsent(ctx context.Context, consent *model.ConsentResource, userID, authID string,
	accountMappings []model.ConsentMappingResource, authStatus common.ScaStatus, consentStatus string) *serviceerror.ServiceError {
	args := m.Called(ctx, consent, userID, authID, accountMappings, authStatus, consentStatus)
	return svcErr(args.Get(0))
}

func (m *MockConsentCoreService) ExpireConsent(ctx context.Context, consentID, actionBy string) *serviceerror.ServiceError {
	args := m.Called(ctx, consentID, actionBy)
	return svcErr(args.Get(0))
}

func (m *MockConsentCoreService) AmendConsentReceipt(ctx context.Context, consentID, receipt string) *serviceerror.ServiceError {
	args := m.Called(ctx, consentID, receipt)
	return svcErr(args.Get(0))
}

func (m *MockConsentCoreService) SearchValidRecurringAccountConsents(ctx context.Context, clientID, userID string) ([]model.ConsentResource, *serviceerror.ServiceError) {
	args := m.Called(ctx, clientID, userID)
	if args.Get(0) == nil {
		return nil, svcErr(args.Get(1))
	}
	return args.Get(0).([]model.ConsentResource), svcErr(args.Get(1))
}

func svcErr(v interface{}) *serviceerror.ServiceError {
	if v == nil {
		return nil
	}
	return v.(*serviceerror.ServiceError)
}
