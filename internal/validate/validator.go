// Package validate implements data submission validation: every account,
// payment or funds-confirmation data request presented with a consent-bound
// token runs through the validation pipeline before the data is served.
package validate

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/wso2/open-banking-berlin/internal/common"
	"github.com/wso2/open-banking-berlin/internal/consent"
	"github.com/wso2/open-banking-berlin/internal/consent/model"
	"github.com/wso2/open-banking-berlin/internal/system/config"
	"github.com/wso2/open-banking-berlin/internal/system/constants"
	"github.com/wso2/open-banking-berlin/internal/system/error/serviceerror"
	"github.com/wso2/open-banking-berlin/internal/system/log"
	"github.com/wso2/open-banking-berlin/internal/system/utils"
)

// ValidationRequest is one data submission request to validate.
type ValidationRequest struct {
	// Headers are the request headers of the data request.
	Headers map[string]string `json:"headers"`
	// ResourcePath is the request path below the API root, for example
	// "accounts/DE98765432109876543210/balances".
	ResourcePath string `json:"resourcePath"`
	// ConsentID is the consent bound to the presented access token.
	ConsentID string `json:"consentId"`
	// ClientID is the TPP client bound to the presented access token.
	ClientID string `json:"clientId"`
	// UserID is the PSU bound to the presented access token.
	UserID string `json:"userId"`
	// Payload is the request body, used by funds-confirmation checks.
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ValidationResult is the outcome of the pipeline. Client-correctable
// failures are carried here rather than as errors.
type ValidationResult struct {
	Valid        bool                   `json:"isValid"`
	HTTPCode     int                    `json:"httpCode"`
	ErrorCode    common.TPPErrorCode    `json:"errorCode,omitempty"`
	ErrorMessage string                 `json:"errorMessage,omitempty"`
	ConsentInfo  map[string]interface{} `json:"consentInformation,omitempty"`
}

func invalid(code common.TPPErrorCode, message string) *ValidationResult {
	return &ValidationResult{
		Valid:        false,
		HTTPCode:     code.HTTPStatus(),
		ErrorCode:    code,
		ErrorMessage: message,
	}
}

func invalidWithStatus(httpCode int, code common.TPPErrorCode, message string) *ValidationResult {
	return &ValidationResult{
		Valid:        false,
		HTTPCode:     httpCode,
		ErrorCode:    code,
		ErrorMessage: message,
	}
}

// Validator runs the ordered submission validation pipeline.
type Validator struct {
	core   consent.ConsentCoreService
	cfg    *config.Config
	logger *log.Logger
}

// NewValidator creates the submission validator.
func NewValidator(core consent.ConsentCoreService, cfg *config.Config) *Validator {
	return &Validator{
		core:   core,
		cfg:    cfg,
		logger: log.GetLogger().With(log.String(log.LoggerKeyComponentName, "SubmissionValidator")),
	}
}

// Validate runs the ordered checks and short-circuits on the first failure.
// Infrastructure faults are returned as errors; everything the TPP can
// correct comes back inside the result.
func (v *Validator) Validate(ctx context.Context, req *ValidationRequest) (*ValidationResult, error) {
	if result := validateHeaders(req.Headers); result != nil {
		return result, nil
	}

	detailed, svcErr := v.core.GetDetailedConsent(ctx, req.ConsentID)
	if svcErr != nil {
		if svcErr.Code == serviceerror.ResourceNotFoundError.Code {
			return invalid(common.CodeConsentUnknown,
				fmt.Sprintf("consent %s does not exist", req.ConsentID)), nil
		}
		return nil, fmt.Errorf("failed to load consent %s: %s", req.ConsentID, svcErr.ErrorDescription)
	}

	// The payments API carries the payment ID in the path, so the payment
	// family never presents a Consent-ID header.
	if !detailed.Type().IsPaymentType() {
		if result := validateConsentIDHeader(req.Headers); result != nil {
			return result, nil
		}
	}

	if result := validateOwnership(detailed, req, v.tenantDomain()); result != nil {
		return result, nil
	}

	submissionValidator := SubmissionValidatorForPath(req.ResourcePath)
	if submissionValidator == nil {
		// A path nothing routes is a gateway misconfiguration, not a TPP
		// mistake. Fail hard so it surfaces as an error.
		return nil, common.NewPathInvalidError(req.ResourcePath)
	}

	if result := submissionValidator.Validate(ctx, v, detailed, req); result != nil {
		return result, nil
	}

	return &ValidationResult{
		Valid:    true,
		HTTPCode: http.StatusOK,
		ConsentInfo: map[string]interface{}{
			"consentId":     detailed.ConsentID,
			"consentType":   detailed.ConsentType,
			"currentStatus": detailed.CurrentStatus,
		},
	}, nil
}

// validateHeaders runs the header checks that apply regardless of resource
// type.
func validateHeaders(headers map[string]string) *ValidationResult {
	requestID := headerValue(headers, constants.RequestIDHeaderName)
	if requestID == "" {
		return invalid(common.CodeFormatError,
			fmt.Sprintf("header %s is required", constants.RequestIDHeaderName))
	}
	if !utils.IsValidUUID(requestID) {
		return invalid(common.CodeFormatError,
			fmt.Sprintf("header %s must be a UUID", constants.RequestIDHeaderName))
	}

	if ip := headerValue(headers, constants.PSUIPAddressHeaderName); ip != "" {
		if !utils.IsValidIPAddress(ip) {
			return invalid(common.CodeFormatError,
				fmt.Sprintf("header %s must be a literal IP address", constants.PSUIPAddressHeaderName))
		}
	}

	return nil
}

// validateConsentIDHeader checks the Consent-ID header for the account and
// funds-confirmation APIs.
func validateConsentIDHeader(headers map[string]string) *ValidationResult {
	consentIDHeader := headerValue(headers, constants.ConsentIDHeaderName)
	if consentIDHeader == "" {
		return invalid(common.CodeFormatError,
			fmt.Sprintf("header %s is required", constants.ConsentIDHeaderName))
	}
	if !utils.IsValidUUID(consentIDHeader) {
		return invalid(common.CodeFormatError,
			fmt.Sprintf("header %s must be a UUID", constants.ConsentIDHeaderName))
	}
	return nil
}

// validateOwnership checks that the token, the Consent-ID header and the
// stored consent all refer to the same client, consent and PSU.
func validateOwnership(detailed *model.DetailedConsentResource, req *ValidationRequest, tenantDomain string) *ValidationResult {
	if req.ClientID != detailed.ClientID {
		return invalidWithStatus(http.StatusNotFound, common.CodeResourceUnknown,
			"consent does not belong to the requesting client")
	}

	if !detailed.Type().IsPaymentType() &&
		headerValue(req.Headers, constants.ConsentIDHeaderName) != detailed.ConsentID {
		return invalidWithStatus(http.StatusNotFound, common.CodeResourceUnknown,
			"Consent-ID header does not match the token's consent")
	}

	user := common.StripTenantDomain(req.UserID, tenantDomain)
	for _, consentUser := range detailed.ConsentUsers() {
		if consentUser == user {
			return nil
		}
	}
	return invalid(common.CodePSUCredentialsInvalid,
		"the PSU bound to the token holds no authorization on this consent")
}

func (v *Validator) tenantDomain() string {
	if v.cfg != nil && v.cfg.Consent.TenantDomain != "" {
		return v.cfg.Consent.TenantDomain
	}
	return constants.DefaultTenantDomain
}

// headerValue reads a header case-insensitively from the raw header map.
func headerValue(headers map[string]string, name string) string {
	if value, ok := headers[name]; ok {
		return value
	}
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}
