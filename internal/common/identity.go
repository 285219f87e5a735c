package common

import "strings"

// StripTenantDomain removes the identity-layer tenant suffix from a PSU
// identifier. The suffix can be appended more than once across gateway hops,
// so it is stripped repeatedly.
func StripTenantDomain(userID, tenantDomain string) string {
	if tenantDomain == "" {
		return userID
	}
	for strings.HasSuffix(userID, tenantDomain) {
		userID = strings.TrimSuffix(userID, tenantDomain)
	}
	return userID
}

// ParseTriStateBool interprets an optional boolean header value. An empty
// value means the header was absent and the decision is left to the server.
func ParseTriStateBool(value string) *bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	}
	return nil
}
