package admin

import (
	"context"
	"strings"

	"github.com/wso2/open-banking-berlin/internal/common"
	"github.com/wso2/open-banking-berlin/internal/consent"
	"github.com/wso2/open-banking-berlin/internal/consent/model"
	"github.com/wso2/open-banking-berlin/internal/system/config"
	"github.com/wso2/open-banking-berlin/internal/system/log"
)

// Attribute keys stamped on a consent at creation time. The authorize flow
// reads these back when it renders the SCA challenge.
const (
	AttributeScaApproach = "sca-approach"
	AttributeScaMethods  = "sca-methods"
)

// CreationRequest is posted by the gateway when a TPP initiates a consent or
// a payment. TPPRedirectPreferred carries the raw header value and may be
// empty when the TPP expressed no preference.
type CreationRequest struct {
	ClientID             string            `json:"clientId"`
	ConsentType          string            `json:"consentType"`
	Receipt              string            `json:"receipt"`
	ValidityTime         int64             `json:"validityTime"`
	RecurringIndicator   bool              `json:"recurringIndicator"`
	Frequency            int               `json:"frequency"`
	TPPRedirectPreferred string            `json:"tppRedirectPreferred,omitempty"`
	Attributes           map[string]string `json:"attributes,omitempty"`
}

// CreationResponse carries the identifiers of the new consent and its
// implicitly started authorization, plus the SCA selection the gateway
// relays to the TPP.
type CreationResponse struct {
	ConsentID       string             `json:"consentId"`
	ConsentStatus   string             `json:"consentStatus"`
	AuthorizationID string             `json:"authorizationId"`
	ScaApproach     string             `json:"scaApproach,omitempty"`
	ScaMethods      []config.ScaMethod `json:"scaMethods,omitempty"`
}

// CreationService creates consents with their implicit first authorization.
type CreationService struct {
	core   consent.ConsentCoreService
	cfg    *config.Config
	logger *log.Logger
}

// NewCreationService creates a consent creation service.
func NewCreationService(core consent.ConsentCoreService, cfg *config.Config) *CreationService {
	return &CreationService{
		core: core,
		cfg:  cfg,
		logger: log.GetLogger().With(
			log.String(log.LoggerKeyComponentName, "CreationService")),
	}
}

// CreateConsent validates the creation request, decides the SCA approach and
// methods from the TPP's redirect preference and persists the consent in its
// initial status together with an open authorization resource.
func (s *CreationService) CreateConsent(ctx context.Context, req *CreationRequest) (*CreationResponse, *common.RequestError) {
	if req.ClientID == "" {
		return nil, common.NewRequestError(common.CodeFormatError, "clientId is required")
	}
	if req.Receipt == "" {
		return nil, common.NewRequestError(common.CodeFormatError, "receipt is required")
	}
	consentType, err := common.ParseConsentType(req.ConsentType)
	if err != nil {
		return nil, common.NewRequestError(common.CodeFormatError, err.Error())
	}

	selection := common.SelectScaApproachAndMethods(
		common.ParseTriStateBool(req.TPPRedirectPreferred), s.cfg.Sca.Required, &s.cfg.Sca)

	attributes := make(map[string]string, len(req.Attributes)+2)
	for key, value := range req.Attributes {
		attributes[key] = value
	}
	if selection.ApproachFinal {
		attributes[AttributeScaApproach] = string(selection.Approach)
	}
	if len(selection.Methods) > 0 {
		ids := make([]string, len(selection.Methods))
		for i, m := range selection.Methods {
			ids[i] = m.AuthenticationMethodID
		}
		attributes[AttributeScaMethods] = strings.Join(ids, ",")
	}

	// Account and funds-confirmation consents start in the Berlin consent
	// model, payments in the ISO transaction status model.
	status := string(common.ConsentStatusReceived)
	if consentType.IsPaymentType() {
		status = string(common.TransactionStatusRCVD)
	}

	detailed := &model.DetailedConsentResource{
		ConsentResource: model.ConsentResource{
			ClientID:           req.ClientID,
			ConsentType:        string(consentType),
			Receipt:            req.Receipt,
			CurrentStatus:      status,
			ConsentFrequency:   req.Frequency,
			ValidityTime:       req.ValidityTime,
			RecurringIndicator: req.RecurringIndicator,
		},
		Attributes: attributes,
		Authorizations: []model.AuthorizationResource{{
			AuthType:   string(common.AuthTypeAuthorisation),
			AuthStatus: string(common.ScaStatusReceived),
		}},
	}

	created, svcErr := s.core.CreateConsent(ctx, detailed)
	if svcErr != nil {
		s.logger.Error("Failed to create consent",
			log.String("client_id", req.ClientID), log.Any("error", svcErr))
		return nil, common.NewInternalError("failed to create consent")
	}

	response := &CreationResponse{
		ConsentID:       created.ConsentID,
		ConsentStatus:   created.CurrentStatus,
		AuthorizationID: created.Authorizations[0].AuthID,
		ScaMethods:      selection.Methods,
	}
	if selection.ApproachFinal {
		response.ScaApproach = string(selection.Approach)
	}
	return response, nil
}
