package common

import "net/http"

// TPPMessageCategory is the severity of a message returned to the TPP.
type TPPMessageCategory string

const (
	CategoryError   TPPMessageCategory = "ERROR"
	CategoryWarning TPPMessageCategory = "WARNING"
)

// TPPErrorCode is a Berlin-Group error code. The set is closed; every code
// carries the HTTP status it must be transported with.
type TPPErrorCode string

const (
	CodeCertificateInvalid      TPPErrorCode = "CERTIFICATE_INVALID"
	CodeRoleInvalid             TPPErrorCode = "ROLE_INVALID"
	CodeCertificateExpired      TPPErrorCode = "CERTIFICATE_EXPIRED"
	CodeCertificateBlocked      TPPErrorCode = "CERTIFICATE_BLOCKED"
	CodeCertificateRevoked      TPPErrorCode = "CERTIFICATE_REVOKED"
	CodeCertificateMissing      TPPErrorCode = "CERTIFICATE_MISSING"
	CodeSignatureInvalid        TPPErrorCode = "SIGNATURE_INVALID"
	CodeSignatureMissing        TPPErrorCode = "SIGNATURE_MISSING"
	CodeFormatError             TPPErrorCode = "FORMAT_ERROR"
	CodePSUCredentialsInvalid   TPPErrorCode = "PSU_CREDENTIALS_INVALID"
	CodeServiceInvalid          TPPErrorCode = "SERVICE_INVALID"
	CodeServiceBlocked          TPPErrorCode = "SERVICE_BLOCKED"
	CodeCorporateIDInvalid      TPPErrorCode = "CORPORATE_ID_INVALID"
	CodeConsentUnknown          TPPErrorCode = "CONSENT_UNKNOWN"
	CodeConsentInvalid          TPPErrorCode = "CONSENT_INVALID"
	CodeConsentExpired          TPPErrorCode = "CONSENT_EXPIRED"
	CodeTokenUnknown            TPPErrorCode = "TOKEN_UNKNOWN"
	CodeTokenInvalid            TPPErrorCode = "TOKEN_INVALID"
	CodeTokenExpired            TPPErrorCode = "TOKEN_EXPIRED"
	CodeResourceUnknown         TPPErrorCode = "RESOURCE_UNKNOWN"
	CodeResourceExpired         TPPErrorCode = "RESOURCE_EXPIRED"
	CodeTimestampInvalid        TPPErrorCode = "TIMESTAMP_INVALID"
	CodePeriodInvalid           TPPErrorCode = "PERIOD_INVALID"
	CodeScaMethodUnknown        TPPErrorCode = "SCA_METHOD_UNKNOWN"
	CodeTransactionIDInvalid    TPPErrorCode = "TRANSACTION_ID_INVALID"
	CodeProductInvalid          TPPErrorCode = "PRODUCT_INVALID"
	CodeProductUnknown          TPPErrorCode = "PRODUCT_UNKNOWN"
	CodePaymentFailed           TPPErrorCode = "PAYMENT_FAILED"
	CodeRequiredKidMissing      TPPErrorCode = "REQUIRED_KID_MISSING"
	CodeSessionsNotSupported    TPPErrorCode = "SESSIONS_NOT_SUPPORTED"
	CodeAccessExceeded          TPPErrorCode = "ACCESS_EXCEEDED"
	CodeRequestedFormatsInvalid TPPErrorCode = "REQUESTED_FORMATS_INVALID"
	CodeCardInvalid             TPPErrorCode = "CARD_INVALID"
	CodeNoPiisActivation        TPPErrorCode = "NO_PIIS_ACTIVATION"
	CodeCancellationInvalid     TPPErrorCode = "CANCELLATION_INVALID"
	CodeInternalServerError     TPPErrorCode = "INTERNAL_SERVER_ERROR"
)

// codeStatus fixes the default transport status for each code. A handful of
// codes are legitimately carried with more than one status depending on the
// endpoint class; functions below expose those variants explicitly.
var codeStatus = map[TPPErrorCode]int{
	CodeCertificateInvalid:      http.StatusUnauthorized,
	CodeRoleInvalid:             http.StatusUnauthorized,
	CodeCertificateExpired:      http.StatusUnauthorized,
	CodeCertificateBlocked:      http.StatusUnauthorized,
	CodeCertificateRevoked:      http.StatusUnauthorized,
	CodeCertificateMissing:      http.StatusUnauthorized,
	CodeSignatureInvalid:        http.StatusUnauthorized,
	CodeSignatureMissing:        http.StatusUnauthorized,
	CodeFormatError:             http.StatusBadRequest,
	CodePSUCredentialsInvalid:   http.StatusUnauthorized,
	CodeServiceInvalid:          http.StatusBadRequest,
	CodeServiceBlocked:          http.StatusForbidden,
	CodeCorporateIDInvalid:      http.StatusUnauthorized,
	CodeConsentUnknown:          http.StatusBadRequest,
	CodeConsentInvalid:          http.StatusUnauthorized,
	CodeConsentExpired:          http.StatusUnauthorized,
	CodeTokenUnknown:            http.StatusUnauthorized,
	CodeTokenInvalid:            http.StatusUnauthorized,
	CodeTokenExpired:            http.StatusUnauthorized,
	CodeResourceUnknown:         http.StatusBadRequest,
	CodeResourceExpired:         http.StatusBadRequest,
	CodeTimestampInvalid:        http.StatusBadRequest,
	CodePeriodInvalid:           http.StatusBadRequest,
	CodeScaMethodUnknown:        http.StatusBadRequest,
	CodeTransactionIDInvalid:    http.StatusBadRequest,
	CodeProductInvalid:          http.StatusForbidden,
	CodeProductUnknown:          http.StatusNotFound,
	CodePaymentFailed:           http.StatusBadRequest,
	CodeRequiredKidMissing:      http.StatusUnauthorized,
	CodeSessionsNotSupported:    http.StatusBadRequest,
	CodeAccessExceeded:          http.StatusTooManyRequests,
	CodeRequestedFormatsInvalid: http.StatusNotAcceptable,
	CodeCardInvalid:             http.StatusBadRequest,
	CodeNoPiisActivation:        http.StatusBadRequest,
	CodeCancellationInvalid:     http.StatusMethodNotAllowed,
	CodeInternalServerError:     http.StatusInternalServerError,
}

// HTTPStatus returns the default transport status for the code. Unknown codes
// map to 500 so a miswired code never leaks as a success.
func (c TPPErrorCode) HTTPStatus() int {
	if status, ok := codeStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsKnown reports whether the code belongs to the closed Berlin-Group set.
func (c TPPErrorCode) IsKnown() bool {
	_, ok := codeStatus[c]
	return ok
}

// TPPMessage is a single error or warning addressed to the TPP.
type TPPMessage struct {
	Category TPPMessageCategory `json:"category"`
	Code     TPPErrorCode       `json:"code"`
	Text     string             `json:"text,omitempty"`
	Path     string             `json:"path,omitempty"`
}

// TPPMessages is the Berlin-Group error response body.
type TPPMessages struct {
	Messages []TPPMessage `json:"tppMessages"`
}

// NewTPPMessages builds a response body from one or more messages.
func NewTPPMessages(messages ...TPPMessage) TPPMessages {
	return TPPMessages{Messages: messages}
}
