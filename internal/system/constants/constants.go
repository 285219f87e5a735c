package constants

const (
	ContentTypeHeaderName   = "Content-Type"
	CorrelationIDHeaderName = "X-Correlation-ID"
	RequestIDHeaderName     = "X-Request-ID"
	ConsentIDHeaderName     = "Consent-ID"
	PSUIPAddressHeaderName  = "PSU-IP-Address"
	ContentTypeJSON         = "application/json"

	// Aliases for convenience
	HeaderContentType = ContentTypeHeaderName
)

// Scope prefixes binding an access token to a consent.
const (
	ScopePrefixAccounts          = "ais"
	ScopePrefixPayments          = "pis"
	ScopePrefixFundsConfirmation = "piis"
	ScopeDelimiter               = ":"
)

// DefaultTenantDomain is stripped from PSU identifiers issued by the
// identity layer before ownership comparisons.
const DefaultTenantDomain = "@carbon.super"

// DefaultPermission marks consent account mappings that carry no
// Berlin-Group permission of their own.
const DefaultPermission = "n/a"
