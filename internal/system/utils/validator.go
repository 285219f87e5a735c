package utils

import (
	"fmt"
	"net"
)

// ValidateRequired validates a field is not empty
func ValidateRequired(fieldName, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateUUID validates UUID format using existing IsValidUUID
func ValidateUUID(id string) error {
	if !IsValidUUID(id) {
		return fmt.Errorf("invalid UUID format: %s", id)
	}
	return nil
}

// IsValidIPAddress checks whether the value is a literal IPv4 or IPv6 address
func IsValidIPAddress(value string) bool {
	return net.ParseIP(value) != nil
}

// ValidateConsentID validates consent ID format
func ValidateConsentID(consentID string) error {
	if err := ValidateRequired("consentID", consentID); err != nil {
		return err
	}
	return ValidateUUID(consentID)
}
