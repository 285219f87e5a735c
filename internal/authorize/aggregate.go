// Package authorize implements the consent authorization flow: SCA
// selection, multi-authorization aggregation, authorization status updates
// and the retrieval and persistence steps of the authorize endpoint.
package authorize

import (
	"errors"

	"github.com/wso2/open-banking-berlin/internal/common"
	"github.com/wso2/open-banking-berlin/internal/consent/model"
)

// ErrNoAuthorizations is returned when aggregation is attempted over an
// empty authorization set.
var ErrNoAuthorizations = errors.New("no authorization resources to aggregate")

// ErrAggregateIndeterminate is returned when no authorization has reached a
// terminal SCA outcome yet.
var ErrAggregateIndeterminate = errors.New("authorization outcome not determinable yet")

// ComputeAggregateStatus folds the SCA statuses of all authorization
// resources of one consent and auth type into a single outcome.
//
// Any failed authorization rejects the whole set. Otherwise the set is fully
// authorised when every resource is psuAuthenticated, and partially
// authorised when at least one is.
func ComputeAggregateStatus(auths []model.AuthorizationResource) (common.AggregateStatus, error) {
	if len(auths) == 0 {
		return "", ErrNoAuthorizations
	}

	authenticated := 0
	for _, auth := range auths {
		switch auth.Status() {
		case common.ScaStatusFailed:
			return common.AggregateRejected, nil
		case common.ScaStatusPSUAuthenticated:
			authenticated++
		}
	}

	if authenticated == len(auths) {
		return common.AggregateFullyAuthorised, nil
	}
	if authenticated > 0 {
		return common.AggregatePartiallyAuthorised, nil
	}
	return "", ErrAggregateIndeterminate
}
