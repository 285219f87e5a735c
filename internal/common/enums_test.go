package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseConsentType(t *testing.T) {
	for _, value := range []string{"accounts", "payments", "bulk-payments", "periodic-payments", "funds-confirmations"} {
		parsed, err := ParseConsentType(value)
		assert.NoError(t, err)
		assert.Equal(t, ConsentType(value), parsed)
	}

	_, err := ParseConsentType("cards")
	assert.Error(t, err)
	_, err = ParseConsentType("")
	assert.Error(t, err)
}

func TestConsentType_IsPaymentType(t *testing.T) {
	assert.True(t, ConsentTypePayments.IsPaymentType())
	assert.True(t, ConsentTypeBulkPayments.IsPaymentType())
	assert.True(t, ConsentTypePeriodicPayments.IsPaymentType())
	assert.False(t, ConsentTypeAccounts.IsPaymentType())
	assert.False(t, ConsentTypeFundsConfirmation.IsPaymentType())
}
