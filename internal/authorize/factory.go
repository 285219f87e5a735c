package authorize

import (
	"github.com/wso2/open-banking-berlin/internal/common"
	"github.com/wso2/open-banking-berlin/internal/consent/model"
)

// RetrievalHandler supplies the type-specific parts of the retrieval step.
type RetrievalHandler interface {
	// ValidateAuthorizationStatus checks that the consent is in a state
	// that still accepts the given kind of authorization.
	ValidateAuthorizationStatus(consent *model.ConsentResource, authType common.AuthType) *common.RequestError
	// BuildDisplayData renders the consent receipt into the data shown to
	// the PSU on the authorization page.
	BuildDisplayData(consent *model.DetailedConsentResource) (map[string]interface{}, error)
}

// PersistHandler supplies the type-specific parts of the persist step.
type PersistHandler interface {
	// BuildAccountMappings derives the account mappings to activate from
	// the approval payload and the consent receipt.
	BuildAccountMappings(consent *model.DetailedConsentResource, payload *PersistPayload) ([]model.ConsentMappingResource, error)
}

// HandlerSet groups the handlers serving one consent type.
type HandlerSet struct {
	Retrieval   RetrievalHandler
	Persist     PersistHandler
	StateChange StateChangeHook
}

var (
	accountsHandlers = HandlerSet{
		Retrieval:   accountsRetrievalHandler{},
		Persist:     accountsPersistHandler{},
		StateChange: AccountsStateChangeHook,
	}
	paymentsHandlers = HandlerSet{
		Retrieval:   paymentsRetrievalHandler{},
		Persist:     paymentsPersistHandler{},
		StateChange: PaymentsStateChangeHook,
	}
	fundsConfirmationHandlers = HandlerSet{
		Retrieval:   fundsConfirmationRetrievalHandler{},
		Persist:     fundsConfirmationPersistHandler{},
		StateChange: FundsConfirmationsStateChangeHook,
	}
)

// handlerTable resolves the handler set for each consent type. All payment
// families share one set.
var handlerTable = map[common.ConsentType]HandlerSet{
	common.ConsentTypeAccounts:          accountsHandlers,
	common.ConsentTypePayments:          paymentsHandlers,
	common.ConsentTypeBulkPayments:      paymentsHandlers,
	common.ConsentTypePeriodicPayments:  paymentsHandlers,
	common.ConsentTypeFundsConfirmation: fundsConfirmationHandlers,
}

// HandlersFor resolves the handler set for a consent type.
func HandlersFor(consentType common.ConsentType) (HandlerSet, bool) {
	set, ok := handlerTable[consentType]
	return set, ok
}
