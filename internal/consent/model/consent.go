// Package model defines the persistence model of Berlin-Group consents and
// their authorization sub-resources.
package model

import "github.com/wso2/open-banking-berlin/internal/common"

// ConsentResource represents the CONSENT table.
type ConsentResource struct {
	ConsentID          string `db:"CONSENT_ID" json:"consentId"`
	ClientID           string `db:"CLIENT_ID" json:"clientId"`
	ConsentType        string `db:"CONSENT_TYPE" json:"consentType"`
	Receipt            string `db:"RECEIPT" json:"receipt"`
	CurrentStatus      string `db:"CURRENT_STATUS" json:"currentStatus"`
	ConsentFrequency   int    `db:"CONSENT_FREQUENCY" json:"consentFrequency"`
	ValidityTime       int64  `db:"VALIDITY_TIME" json:"validityTime"`
	RecurringIndicator bool   `db:"RECURRING_INDICATOR" json:"recurringIndicator"`
	CreatedTime        int64  `db:"CREATED_TIME" json:"createdTime"`
	UpdatedTime        int64  `db:"UPDATED_TIME" json:"updatedTime"`
}

// Type returns the consent type as a domain value.
func (c *ConsentResource) Type() common.ConsentType {
	return common.ConsentType(c.ConsentType)
}

// AuthorizationResource represents the CONSENT_AUTH_RESOURCE table.
type AuthorizationResource struct {
	AuthID      string  `db:"AUTH_ID" json:"authId"`
	ConsentID   string  `db:"CONSENT_ID" json:"consentId"`
	AuthType    string  `db:"AUTH_TYPE" json:"authType"`
	UserID      *string `db:"USER_ID" json:"userId,omitempty"`
	AuthStatus  string  `db:"AUTH_STATUS" json:"authStatus"`
	UpdatedTime int64   `db:"UPDATED_TIME" json:"updatedTime"`
}

// Status returns the authorization status as a domain value.
func (a *AuthorizationResource) Status() common.ScaStatus {
	return common.ScaStatus(a.AuthStatus)
}

// Type returns the authorization type as a domain value.
func (a *AuthorizationResource) Type() common.AuthType {
	return common.AuthType(a.AuthType)
}

// BoundUser returns the PSU bound to the authorization, or empty when open.
func (a *AuthorizationResource) BoundUser() string {
	if a.UserID == nil {
		return ""
	}
	return *a.UserID
}

// Mapping status values for CONSENT_MAPPING rows.
const (
	MappingStatusActive   = "active"
	MappingStatusInactive = "inactive"
)

// ConsentMappingResource represents the CONSENT_MAPPING table. A mapping
// binds one PSU account to an authorization with a permission.
type ConsentMappingResource struct {
	MappingID     string `db:"MAPPING_ID" json:"mappingId"`
	AuthID        string `db:"AUTH_ID" json:"authId"`
	AccountID     string `db:"ACCOUNT_ID" json:"accountId"`
	Permission    string `db:"PERMISSION" json:"permission"`
	MappingStatus string `db:"MAPPING_STATUS" json:"mappingStatus"`
}

// ConsentStatusAudit represents the CONSENT_STATUS_AUDIT table.
type ConsentStatusAudit struct {
	StatusAuditID  string  `db:"STATUS_AUDIT_ID" json:"statusAuditId"`
	ConsentID      string  `db:"CONSENT_ID" json:"consentId"`
	CurrentStatus  string  `db:"CURRENT_STATUS" json:"currentStatus"`
	ActionTime     int64   `db:"ACTION_TIME" json:"actionTime"`
	Reason         *string `db:"REASON" json:"reason,omitempty"`
	ActionBy       *string `db:"ACTION_BY" json:"actionBy,omitempty"`
	PreviousStatus *string `db:"PREVIOUS_STATUS" json:"previousStatus,omitempty"`
}

// ConsentAttribute represents the CONSENT_ATTRIBUTE table.
type ConsentAttribute struct {
	ConsentID string `db:"CONSENT_ID" json:"consentId"`
	AttKey    string `db:"ATT_KEY" json:"attKey"`
	AttValue  string `db:"ATT_VALUE" json:"attValue"`
}

// DetailedConsentResource is a consent with its authorizations, account
// mappings and attributes resolved.
type DetailedConsentResource struct {
	ConsentResource
	Attributes     map[string]string        `json:"attributes,omitempty"`
	Authorizations []AuthorizationResource  `json:"authorizationResources"`
	Mappings       []ConsentMappingResource `json:"consentMappingResources"`
}

// AuthorizationsOfType filters the consent's authorizations by auth type.
func (d *DetailedConsentResource) AuthorizationsOfType(authType common.AuthType) []AuthorizationResource {
	var out []AuthorizationResource
	for _, auth := range d.Authorizations {
		if auth.Type() == authType {
			out = append(out, auth)
		}
	}
	return out
}

// ActiveMappings returns the consent's active account mappings.
func (d *DetailedConsentResource) ActiveMappings() []ConsentMappingResource {
	var out []ConsentMappingResource
	for _, m := range d.Mappings {
		if m.MappingStatus == MappingStatusActive {
			out = append(out, m)
		}
	}
	return out
}

// ConsentUsers collects the distinct PSUs bound to any authorization.
func (d *DetailedConsentResource) ConsentUsers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, auth := range d.Authorizations {
		user := auth.BoundUser()
		if user != "" && !seen[user] {
			seen[user] = true
			out = append(out, user)
		}
	}
	return out
}
