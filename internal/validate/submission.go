package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/wso2/open-banking-berlin/internal/common"
	"github.com/wso2/open-banking-berlin/internal/consent/model"
	"github.com/wso2/open-banking-berlin/internal/system/log"
	"github.com/wso2/open-banking-berlin/internal/system/utils"
)

// SubmissionValidator runs the type-specific checks of the pipeline.
// A nil result means the request passed.
type SubmissionValidator interface {
	Validate(ctx context.Context, v *Validator, detailed *model.DetailedConsentResource, req *ValidationRequest) *ValidationResult
}

// SubmissionValidatorForPath resolves the submission validator from the
// first segment of the resource path. Unknown segments resolve to nil.
func SubmissionValidatorForPath(resourcePath string) SubmissionValidator {
	segment := firstPathSegment(resourcePath)
	switch segment {
	case "accounts", "card-accounts":
		return accountSubmissionValidator{}
	case "payments", "bulk-payments", "periodic-payments":
		return paymentSubmissionValidator{}
	case "funds-confirmations":
		return fundsConfirmationSubmissionValidator{}
	}
	return nil
}

func firstPathSegment(resourcePath string) string {
	trimmed := strings.Trim(resourcePath, "/")
	if trimmed == "" {
		return ""
	}
	if idx := strings.Index(trimmed, "/"); idx >= 0 {
		return trimmed[:idx]
	}
	return trimmed
}

// accountSubmissionValidator validates account and card-account data
// requests.
type accountSubmissionValidator struct{}

func (accountSubmissionValidator) Validate(ctx context.Context, v *Validator,
	detailed *model.DetailedConsentResource, req *ValidationRequest) *ValidationResult {

	status := common.ConsentStatus(detailed.CurrentStatus)
	if status == common.ConsentStatusExpired {
		return invalid(common.CodeConsentExpired, "consent is expired")
	}

	if detailed.ValidityTime > 0 && detailed.ValidityTime < utils.GetCurrentTimeMillis() {
		// The consent outlived its validity period without being touched;
		// expire it on read before rejecting the request.
		if svcErr := v.core.ExpireConsent(ctx, detailed.ConsentID, req.UserID); svcErr != nil {
			v.logger.Error("Failed to expire consent on read",
				log.String("consent_id", detailed.ConsentID))
		}
		if svcErr := v.core.DeactivateAccountMappings(ctx, detailed.ConsentID); svcErr != nil {
			v.logger.Error("Failed to deactivate mappings of expired consent",
				log.String("consent_id", detailed.ConsentID))
		}
		return invalid(common.CodeConsentExpired, "consent validity period has elapsed")
	}

	if status != common.ConsentStatusValid {
		return invalid(common.CodeConsentUnknown,
			fmt.Sprintf("consent is in status %s, not valid", detailed.CurrentStatus))
	}

	activeMappings := detailed.ActiveMappings()
	if len(activeMappings) == 0 {
		return invalid(common.CodeConsentInvalid, "consent has no active account mappings")
	}

	if v.cfg.Consent.ValidateAccountIDOnRetrieval {
		if result := validateRequestedAccount(activeMappings, req.ResourcePath); result != nil {
			return result
		}
	}

	// A one-off consent is consumed by its first successful use.
	if !detailed.RecurringIndicator {
		if svcErr := v.core.ExpireConsent(ctx, detailed.ConsentID, req.UserID); svcErr != nil {
			v.logger.Error("Failed to expire one-off consent after use",
				log.String("consent_id", detailed.ConsentID))
		}
	}

	return nil
}

// validateRequestedAccount checks that a request addressing one account is
// covered by a mapping carrying the needed permission.
func validateRequestedAccount(mappings []model.ConsentMappingResource, resourcePath string) *ValidationResult {
	segments := strings.Split(strings.Trim(resourcePath, "/"), "/")
	if len(segments) < 2 || segments[1] == "" {
		return nil
	}

	accountID := segments[1]
	required := string(common.PermissionAccounts)
	if len(segments) > 2 {
		switch segments[2] {
		case "balances":
			required = string(common.PermissionBalances)
		case "transactions":
			required = string(common.PermissionTransactions)
		}
	}

	for _, mapping := range mappings {
		if mapping.AccountID != accountID {
			continue
		}
		if mapping.Permission == required || mapping.Permission == string(common.PermissionDefault) {
			return nil
		}
	}
	return invalid(common.CodeConsentInvalid,
		fmt.Sprintf("consent does not cover %s access to account %s", required, accountID))
}

// paymentSubmissionValidator validates payment status and detail requests.
type paymentSubmissionValidator struct{}

func (paymentSubmissionValidator) Validate(_ context.Context, _ *Validator,
	detailed *model.DetailedConsentResource, _ *ValidationRequest) *ValidationResult {

	status := common.TransactionStatus(detailed.CurrentStatus)
	if status != common.TransactionStatusACCP && status != common.TransactionStatusACTC {
		return invalid(common.CodeConsentUnknown,
			fmt.Sprintf("payment is in status %s and not submittable", detailed.CurrentStatus))
	}

	for _, auth := range detailed.AuthorizationsOfType(common.AuthTypeAuthorisation) {
		if auth.Status() != common.ScaStatusPSUAuthenticated {
			return invalid(common.CodeConsentUnknown,
				"payment has authorization resources that are not authenticated")
		}
	}

	if len(detailed.ActiveMappings()) == 0 {
		return invalid(common.CodeConsentInvalid, "payment consent has no active account mapping")
	}

	return nil
}

// fundsConfirmationSubmissionValidator validates confirmation-of-funds
// requests.
type fundsConfirmationSubmissionValidator struct{}

func (fundsConfirmationSubmissionValidator) Validate(_ context.Context, _ *Validator,
	detailed *model.DetailedConsentResource, req *ValidationRequest) *ValidationResult {

	if common.ConsentStatus(detailed.CurrentStatus) != common.ConsentStatusValid {
		return invalid(common.CodeConsentUnknown,
			fmt.Sprintf("consent is in status %s, not valid", detailed.CurrentStatus))
	}

	requested := accountRefFromPayload(req.Payload)
	if requested == "" {
		return invalid(common.CodeFormatError, "request payload has no account reference")
	}

	for _, mapping := range detailed.ActiveMappings() {
		if mapping.AccountID == requested {
			return nil
		}
	}
	return invalid(common.CodeConsentInvalid,
		"requested account is not covered by the consent")
}

func accountRefFromPayload(payload map[string]interface{}) string {
	ref, ok := payload["account"].(map[string]interface{})
	if !ok {
		return ""
	}
	for _, field := range []string{"iban", "bban", "pan", "maskedPan", "msisdn"} {
		if value, ok := ref[field].(string); ok && value != "" {
			if currency, ok := ref["currency"].(string); ok && currency != "" {
				return value + " " + currency
			}
			return value
		}
	}
	return ""
}
