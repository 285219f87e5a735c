package authorize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wso2/open-banking-berlin/internal/common"
	"github.com/wso2/open-banking-berlin/internal/consent/model"
)

func authWithStatus(status common.ScaStatus) model.AuthorizationResource {
	return model.AuthorizationResource{
		AuthID:     "auth-" + string(status),
		ConsentID:  "consent-1",
		AuthType:   string(common.AuthTypeAuthorisation),
		AuthStatus: string(status),
	}
}

func TestComputeAggregateStatus_Empty(t *testing.T) {
	_, err := ComputeAggregateStatus(nil)
	assert.ErrorIs(t, err, ErrNoAuthorizations)
}

func TestComputeAggregateStatus_AnyFailedRejects(t *testing.T) {
	auths := []model.AuthorizationResource{
		authWithStatus(common.ScaStatusPSUAuthenticated),
		authWithStatus(common.ScaStatusFailed),
		authWithStatus(common.ScaStatusReceived),
	}

	status, err := ComputeAggregateStatus(auths)
	require.NoError(t, err)
	assert.Equal(t, common.AggregateRejected, status)
}

func TestComputeAggregateStatus_AllAuthenticated(t *testing.T) {
	auths := []model.AuthorizationResource{
		authWithStatus(common.ScaStatusPSUAuthenticated),
		authWithStatus(common.ScaStatusPSUAuthenticated),
	}

	status, err := ComputeAggregateStatus(auths)
	require.NoError(t, err)
	assert.Equal(t, common.AggregateFullyAuthorised, status)
}

func TestComputeAggregateStatus_SomeAuthenticated(t *testing.T) {
	auths := []model.AuthorizationResource{
		authWithStatus(common.ScaStatusPSUAuthenticated),
		authWithStatus(common.ScaStatusReceived),
	}

	status, err := ComputeAggregateStatus(auths)
	require.NoError(t, err)
	assert.Equal(t, common.AggregatePartiallyAuthorised, status)
}

func TestComputeAggregateStatus_NoneTerminal(t *testing.T) {
	auths := []model.AuthorizationResource{
		authWithStatus(common.ScaStatusReceived),
		authWithStatus(common.ScaStatusPSUIdentified),
	}

	_, err := ComputeAggregateStatus(auths)
	assert.ErrorIs(t, err, ErrAggregateIndeterminate)
}

// The aggregate must not depend on the order the resources come back from
// the store.
func TestComputeAggregateStatus_PermutationInvariant(t *testing.T) {
	base := []model.AuthorizationResource{
		authWithStatus(common.ScaStatusPSUAuthenticated),
		authWithStatus(common.ScaStatusFailed),
		authWithStatus(common.ScaStatusReceived),
	}

	permutations := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}
	for _, perm := range permutations {
		auths := []model.AuthorizationResource{base[perm[0]], base[perm[1]], base[perm[2]]}
		status, err := ComputeAggregateStatus(auths)
		require.NoError(t, err)
		assert.Equal(t, common.AggregateRejected, status)
	}
}

func TestComputeAggregateStatus_Idempotent(t *testing.T) {
	auths := []model.AuthorizationResource{
		authWithStatus(common.ScaStatusPSUAuthenticated),
		authWithStatus(common.ScaStatusReceived),
	}

	first, err := ComputeAggregateStatus(auths)
	require.NoError(t, err)
	second, err := ComputeAggregateStatus(auths)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
