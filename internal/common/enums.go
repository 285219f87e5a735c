// Package common holds the Berlin-Group domain vocabulary shared by the
// consent, authorization and validation modules.
package common

import "fmt"

// ConsentType identifies the Berlin-Group consent family a consent belongs to.
type ConsentType string

const (
	ConsentTypeAccounts          ConsentType = "accounts"
	ConsentTypePayments          ConsentType = "payments"
	ConsentTypeBulkPayments      ConsentType = "bulk-payments"
	ConsentTypePeriodicPayments  ConsentType = "periodic-payments"
	ConsentTypeFundsConfirmation ConsentType = "funds-confirmations"
)

// ParseConsentType maps a raw value to a known consent type.
func ParseConsentType(value string) (ConsentType, error) {
	switch ConsentType(value) {
	case ConsentTypeAccounts, ConsentTypePayments, ConsentTypeBulkPayments,
		ConsentTypePeriodicPayments, ConsentTypeFundsConfirmation:
		return ConsentType(value), nil
	}
	return "", fmt.Errorf("unknown consent type: %s", value)
}

// IsPaymentType reports whether the type belongs to the payments family.
func (t ConsentType) IsPaymentType() bool {
	return t == ConsentTypePayments || t == ConsentTypeBulkPayments || t == ConsentTypePeriodicPayments
}

// ConsentStatus is the lifecycle status of an account or funds-confirmation consent.
type ConsentStatus string

const (
	ConsentStatusReceived            ConsentStatus = "received"
	ConsentStatusRejected            ConsentStatus = "rejected"
	ConsentStatusPartiallyAuthorised ConsentStatus = "partiallyAuthorised"
	ConsentStatusValid               ConsentStatus = "valid"
	ConsentStatusRevokedByPSU        ConsentStatus = "revokedByPsu"
	ConsentStatusExpired             ConsentStatus = "expired"
	ConsentStatusTerminatedByTPP     ConsentStatus = "terminatedByTpp"
)

// TransactionStatus is the ISO 20022 settlement status of a payment consent.
type TransactionStatus string

const (
	TransactionStatusACCP TransactionStatus = "ACCP" // AcceptedCustomerProfile
	TransactionStatusACSC TransactionStatus = "ACSC" // AcceptedSettlementCompleted
	TransactionStatusACSP TransactionStatus = "ACSP" // AcceptedSettlementInProcess
	TransactionStatusACTC TransactionStatus = "ACTC" // AcceptedTechnicalValidation
	TransactionStatusACWC TransactionStatus = "ACWC" // AcceptedWithChange
	TransactionStatusACWP TransactionStatus = "ACWP" // AcceptedWithoutPosting
	TransactionStatusRCVD TransactionStatus = "RCVD" // Received
	TransactionStatusPDNG TransactionStatus = "PDNG" // Pending
	TransactionStatusRJCT TransactionStatus = "RJCT" // Rejected
	TransactionStatusCANC TransactionStatus = "CANC" // Cancelled
	TransactionStatusPATC TransactionStatus = "PATC" // PartiallyAcceptedTechnicalCorrect

	// TransactionStatusRevoked is a vendor extension used when a payment
	// consent is revoked through the admin surface.
	TransactionStatusRevoked TransactionStatus = "REVOKED"
)

// ScaStatus is the status of a single authorization sub-resource.
type ScaStatus string

const (
	ScaStatusReceived          ScaStatus = "received"
	ScaStatusPSUIdentified     ScaStatus = "psuIdentified"
	ScaStatusPSUAuthenticated  ScaStatus = "psuAuthenticated"
	ScaStatusSCAMethodSelected ScaStatus = "scaMethodSelected"
	ScaStatusStarted           ScaStatus = "started"
	ScaStatusUnconfirmed       ScaStatus = "unconfirmed"
	ScaStatusFinalised         ScaStatus = "finalised"
	ScaStatusFailed            ScaStatus = "failed"
	ScaStatusExempted          ScaStatus = "exempted"
)

// AuthType distinguishes creation authorizations from cancellation authorizations.
type AuthType string

const (
	AuthTypeAuthorisation AuthType = "authorisation"
	AuthTypeCancellation  AuthType = "cancellation"
)

// ScaApproach is the Berlin-Group strong customer authentication approach.
type ScaApproach string

const (
	ScaApproachRedirect  ScaApproach = "REDIRECT"
	ScaApproachDecoupled ScaApproach = "DECOUPLED"
	ScaApproachEmbedded  ScaApproach = "EMBEDDED"
)

// AggregateStatus is the combined outcome over all authorization resources
// of one consent and auth type.
type AggregateStatus string

const (
	AggregateFullyAuthorised     AggregateStatus = "FULLY_AUTHORISED"
	AggregatePartiallyAuthorised AggregateStatus = "PARTIALLY_AUTHORISED"
	AggregateRejected            AggregateStatus = "REJECTED"
)

// Permission is the access level stored on a consent account mapping.
type Permission string

const (
	PermissionAccounts     Permission = "accounts"
	PermissionBalances     Permission = "balances"
	PermissionTransactions Permission = "transactions"
	PermissionDefault      Permission = "n/a"
)
