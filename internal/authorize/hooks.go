package authorize

import (
	"github.com/wso2/open-banking-berlin/internal/common"
	"github.com/wso2/open-banking-berlin/internal/system/log"
)

// StateChangeHook maps an aggregated authorization outcome to the consent
// level status to apply. The second return is false when the combination is
// not mapped and the consent status must stay untouched.
type StateChangeHook func(aggregate common.AggregateStatus, authType common.AuthType) (string, bool)

// AccountsStateChangeHook settles account consent statuses from the
// aggregated authorization outcome.
func AccountsStateChangeHook(aggregate common.AggregateStatus, authType common.AuthType) (string, bool) {
	switch aggregate {
	case common.AggregateFullyAuthorised:
		return string(common.ConsentStatusValid), true
	case common.AggregateRejected:
		return string(common.ConsentStatusRejected), true
	case common.AggregatePartiallyAuthorised:
		return string(common.ConsentStatusPartiallyAuthorised), true
	}
	warnUnmappedAggregate(aggregate, authType)
	return "", false
}

// PaymentsStateChangeHook settles payment consent transaction statuses from
// the aggregated authorization outcome. A rejected cancellation leaves the
// payment accepted.
func PaymentsStateChangeHook(aggregate common.AggregateStatus, authType common.AuthType) (string, bool) {
	if authType == common.AuthTypeCancellation {
		switch aggregate {
		case common.AggregateFullyAuthorised:
			return string(common.TransactionStatusCANC), true
		case common.AggregateRejected:
			return string(common.TransactionStatusACCP), true
		}
		warnUnmappedAggregate(aggregate, authType)
		return "", false
	}

	switch aggregate {
	case common.AggregateFullyAuthorised:
		return string(common.TransactionStatusACCP), true
	case common.AggregateRejected:
		return string(common.TransactionStatusRJCT), true
	case common.AggregatePartiallyAuthorised:
		return string(common.TransactionStatusPATC), true
	}
	warnUnmappedAggregate(aggregate, authType)
	return "", false
}

// FundsConfirmationsStateChangeHook settles funds-confirmation consent
// statuses from the aggregated authorization outcome.
func FundsConfirmationsStateChangeHook(aggregate common.AggregateStatus, authType common.AuthType) (string, bool) {
	return AccountsStateChangeHook(aggregate, authType)
}

func warnUnmappedAggregate(aggregate common.AggregateStatus, authType common.AuthType) {
	log.GetLogger().Warn("No consent status mapping for aggregated authorization outcome",
		log.String("aggregate_status", string(aggregate)),
		log.String("auth_type", string(authType)))
}
