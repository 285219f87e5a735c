package consent

import (
	"context"

	"github.com/wso2/open-banking-berlin/internal/consent/model"
	dbmodel "github.com/wso2/open-banking-berlin/internal/system/database/model"
	"github.com/wso2/open-banking-berlin/internal/system/database/provider"
)

// DBQuery objects for consent operations
var (
	QueryCreateConsent = dbmodel.DBQuery{
		ID:    "CREATE_CONSENT",
		Query: "INSERT INTO CONSENT (CONSENT_ID, CLIENT_ID, CONSENT_TYPE, RECEIPT, CURRENT_STATUS, CONSENT_FREQUENCY, VALIDITY_TIME, RECURRING_INDICATOR, CREATED_TIME, UPDATED_TIME) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
	}

	QueryGetConsentByID = dbmodel.DBQuery{
		ID:    "GET_CONSENT_BY_ID",
		Query: "SELECT CONSENT_ID, CLIENT_ID, CONSENT_TYPE, RECEIPT, CURRENT_STATUS, CONSENT_FREQUENCY, VALIDITY_TIME, RECURRING_INDICATOR, CREATED_TIME, UPDATED_TIME FROM CONSENT WHERE CONSENT_ID = ?",
	}

	QueryUpdateConsentStatus = dbmodel.DBQuery{
		ID:    "UPDATE_CONSENT_STATUS",
		Query: "UPDATE CONSENT SET CURRENT_STATUS = ?, UPDATED_TIME = ? WHERE CONSENT_ID = ?",
	}

	QueryUpdateConsentReceipt = dbmodel.DBQuery{
		ID:    "UPDATE_CONSENT_RECEIPT",
		Query: "UPDATE CONSENT SET RECEIPT = ?, UPDATED_TIME = ? WHERE CONSENT_ID = ?",
	}

	// Authorization resources are always read in a fixed order so that
	// fallback selection over open authorizations is deterministic.
	QueryGetAuthResourcesByConsentID = dbmodel.DBQuery{
		ID:    "GET_AUTH_RESOURCES_BY_CONSENT_ID",
		Query: "SELECT AUTH_ID, CONSENT_ID, AUTH_TYPE, USER_ID, AUTH_STATUS, UPDATED_TIME FROM CONSENT_AUTH_RESOURCE WHERE CONSENT_ID = ? ORDER BY UPDATED_TIME, AUTH_ID",
	}

	QueryGetAuthResourceByID = dbmodel.DBQuery{
		ID:    "GET_AUTH_RESOURCE_BY_ID",
		Query: "SELECT AUTH_ID, CONSENT_ID, AUTH_TYPE, USER_ID, AUTH_STATUS, UPDATED_TIME FROM CONSENT_AUTH_RESOURCE WHERE AUTH_ID = ?",
	}

	QueryCreateAuthResource = dbmodel.DBQuery{
		ID:    "CREATE_AUTH_RESOURCE",
		Query: "INSERT INTO CONSENT_AUTH_RESOURCE (AUTH_ID, CONSENT_ID, AUTH_TYPE, USER_ID, AUTH_STATUS, UPDATED_TIME) VALUES (?, ?, ?, ?, ?, ?)",
	}

	QueryUpdateAuthResourceStatus = dbmodel.DBQuery{
		ID:    "UPDATE_AUTH_RESOURCE_STATUS",
		Query: "UPDATE CONSENT_AUTH_RESOURCE SET AUTH_STATUS = ?, UPDATED_TIME = ? WHERE AUTH_ID = ?",
	}

	QueryUpdateAuthResourceUser = dbmodel.DBQuery{
		ID:    "UPDATE_AUTH_RESOURCE_USER",
		Query: "UPDATE CONSENT_AUTH_RESOURCE SET USER_ID = ?, UPDATED_TIME = ? WHERE AUTH_ID = ?",
	}

	QueryUpdateAuthStatusByConsentID = dbmodel.DBQuery{
		ID:    "UPDATE_AUTH_STATUS_BY_CONSENT_ID",
		Query: "UPDATE CONSENT_AUTH_RESOURCE SET AUTH_STATUS = ?, UPDATED_TIME = ? WHERE CONSENT_ID = ?",
	}

	QueryGetMappingsByConsentID = dbmodel.DBQuery{
		ID:    "GET_MAPPINGS_BY_CONSENT_ID",
		Query: "SELECT M.MAPPING_ID, M.AUTH_ID, M.ACCOUNT_ID, M.PERMISSION, M.MAPPING_STATUS FROM CONSENT_MAPPING M INNER JOIN CONSENT_AUTH_RESOURCE A ON M.AUTH_ID = A.AUTH_ID WHERE A.CONSENT_ID = ?",
	}

	QueryCreateMapping = dbmodel.DBQuery{
		ID:    "CREATE_MAPPING",
		Query: "INSERT INTO CONSENT_MAPPING (MAPPING_ID, AUTH_ID, ACCOUNT_ID, PERMISSION, MAPPING_STATUS) VALUES (?, ?, ?, ?, ?)",
	}

	QueryUpdateMappingStatusByConsentID = dbmodel.DBQuery{
		ID:    "UPDATE_MAPPING_STATUS_BY_CONSENT_ID",
		Query: "UPDATE CONSENT_MAPPING SET MAPPING_STATUS = ? WHERE AUTH_ID IN (SELECT AUTH_ID FROM CONSENT_AUTH_RESOURCE WHERE CONSENT_ID = ?)",
	}

	QueryCreateStatusAudit = dbmodel.DBQuery{
		ID:    "CREATE_STATUS_AUDIT",
		Query: "INSERT INTO CONSENT_STATUS_AUDIT (STATUS_AUDIT_ID, CONSENT_ID, CURRENT_STATUS, ACTION_TIME, REASON, ACTION_BY, PREVIOUS_STATUS) VALUES (?, ?, ?, ?, ?, ?, ?)",
	}

	QueryGetAttributesByConsentID = dbmodel.DBQuery{
		ID:    "GET_ATTRIBUTES_BY_CONSENT_ID",
		Query: "SELECT CONSENT_ID, ATT_KEY, ATT_VALUE FROM CONSENT_ATTRIBUTE WHERE CONSENT_ID = ?",
	}

	QueryCreateAttribute = dbmodel.DBQuery{
		ID:    "CREATE_CONSENT_ATTRIBUTE",
		Query: "INSERT INTO CONSENT_ATTRIBUTE (CONSENT_ID, ATT_KEY, ATT_VALUE) VALUES (?, ?, ?)",
	}

	QuerySearchRecurringConsents = dbmodel.DBQuery{
		ID:    "SEARCH_RECURRING_CONSENTS",
		Query: "SELECT DISTINCT C.CONSENT_ID, C.CLIENT_ID, C.CONSENT_TYPE, C.RECEIPT, C.CURRENT_STATUS, C.CONSENT_FREQUENCY, C.VALIDITY_TIME, C.RECURRING_INDICATOR, C.CREATED_TIME, C.UPDATED_TIME FROM CONSENT C INNER JOIN CONSENT_AUTH_RESOURCE A ON C.CONSENT_ID = A.CONSENT_ID WHERE C.CLIENT_ID = ? AND C.CONSENT_TYPE = ? AND C.CURRENT_STATUS = ? AND C.RECURRING_INDICATOR = 1 AND A.USER_ID = ?",
	}
)

// ConsentStore defines the persistence operations for Berlin consents.
type ConsentStore interface {
	GetConsent(ctx context.Context, consentID string) (*model.ConsentResource, error)
	GetDetailedConsent(ctx context.Context, consentID string) (*model.DetailedConsentResource, error)
	GetAuthorizationsByConsentID(ctx context.Context, consentID string) ([]model.AuthorizationResource, error)
	GetAuthorization(ctx context.Context, authID string) (*model.AuthorizationResource, error)
	SearchRecurringConsents(ctx context.Context, clientID, userID, consentType, status string) ([]model.ConsentResource, error)
	UpdateAuthorizationStatus(ctx context.Context, authID, status string, updatedTime int64) error

	// Transactional operation builders, composed via the store registry.
	CreateConsentTx(consent *model.ConsentResource) func(tx dbmodel.TxInterface) error
	CreateAuthorizationTx(auth *model.AuthorizationResource) func(tx dbmodel.TxInterface) error
	CreateMappingTx(mapping *model.ConsentMappingResource) func(tx dbmodel.TxInterface) error
	CreateAttributeTx(attribute *model.ConsentAttribute) func(tx dbmodel.TxInterface) error
	CreateStatusAuditTx(audit *model.ConsentStatusAudit) func(tx dbmodel.TxInterface) error
	UpdateConsentStatusTx(consentID, status string, updatedTime int64) func(tx dbmodel.TxInterface) error
	UpdateConsentReceiptTx(consentID, receipt string, updatedTime int64) func(tx dbmodel.TxInterface) error
	UpdateAuthorizationStatusTx(authID, status string, updatedTime int64) func(tx dbmodel.TxInterface) error
	UpdateAuthorizationUserTx(authID, userID string, updatedTime int64) func(tx dbmodel.TxInterface) error
	UpdateAuthStatusByConsentIDTx(consentID, status string, updatedTime int64) func(tx dbmodel.TxInterface) error
	UpdateMappingStatusByConsentIDTx(consentID, status string) func(tx dbmodel.TxInterface) error
}

// store implements the ConsentStore interface
type store struct {
	dbClient provider.DBClientInterface
}

// NewConsentStore creates a new consent store
func NewConsentStore(dbClient provider.DBClientInterface) ConsentStore {
	return &store{
		dbClient: dbClient,
	}
}

// GetConsent retrieves a consent by ID. Returns nil when no row matches.
func (s *store) GetConsent(ctx context.Context, consentID string) (*model.ConsentResource, error) {
	rows, err := s.dbClient.Query(&QueryGetConsentByID, consentID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return mapToConsent(rows[0]), nil
}

// GetDetailedConsent retrieves a consent with authorizations, mappings and
// attributes resolved.
func (s *store) GetDetailedConsent(ctx context.Context, consentID string) (*model.DetailedConsentResource, error) {
	consent, err := s.GetConsent(ctx, consentID)
	if err != nil || consent == nil {
		return nil, err
	}

	auths, err := s.GetAuthorizationsByConsentID(ctx, consentID)
	if err != nil {
		return nil, err
	}

	mappingRows, err := s.dbClient.Query(&QueryGetMappingsByConsentID, consentID)
	if err != nil {
		return nil, err
	}
	mappings := make([]model.ConsentMappingResource, 0, len(mappingRows))
	for _, row := range mappingRows {
		if m := mapToMapping(row); m != nil {
			mappings = append(mappings, *m)
		}
	}

	attrRows, err := s.dbClient.Query(&QueryGetAttributesByConsentID, consentID)
	if err != nil {
		return nil, err
	}
	attributes := make(map[string]string, len(attrRows))
	for _, row := range attrRows {
		key, _ := row["ATT_KEY"].(string)
		value, _ := row["ATT_VALUE"].(string)
		if key != "" {
			attributes[key] = value
		}
	}

	return &model.DetailedConsentResource{
		ConsentResource: *consent,
		Attributes:      attributes,
		Authorizations:  auths,
		Mappings:        mappings,
	}, nil
}

// GetAuthorizationsByConsentID retrieves the consent's authorization
// resources in their stable order.
func (s *store) GetAuthorizationsByConsentID(ctx context.Context, consentID string) ([]model.AuthorizationResource, error) {
	rows, err := s.dbClient.Query(&QueryGetAuthResourcesByConsentID, consentID)
	if err != nil {
		return nil, err
	}

	auths := make([]model.AuthorizationResource, 0, len(rows))
	for _, row := range rows {
		if auth := mapToAuthResource(row); auth != nil {
			auths = append(auths, *auth)
		}
	}
	return auths, nil
}

// GetAuthorization retrieves a single authorization resource by ID.
func (s *store) GetAuthorization(ctx context.Context, authID string) (*model.AuthorizationResource, error) {
	rows, err := s.dbClient.Query(&QueryGetAuthResourceByID, authID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return mapToAuthResource(rows[0]), nil
}

// SearchRecurringConsents finds recurring consents of the given type and
// status where any authorization is bound to the user.
func (s *store) SearchRecurringConsents(ctx context.Context, clientID, userID, consentType, status string) ([]model.ConsentResource, error) {
	rows, err := s.dbClient.Query(&QuerySearchRecurringConsents, clientID, consentType, status, userID)
	if err != nil {
		return nil, err
	}

	consents := make([]model.ConsentResource, 0, len(rows))
	for _, row := range rows {
		if consent := mapToConsent(row); consent != nil {
			consents = append(consents, *consent)
		}
	}
	return consents, nil
}

// UpdateAuthorizationStatus updates a single authorization row in place.
func (s *store) UpdateAuthorizationStatus(ctx context.Context, authID, status string, updatedTime int64) error {
	_, err := s.dbClient.Execute(&QueryUpdateAuthResourceStatus, status, updatedTime, authID)
	return err
}

// Transactional operation builders

func (s *store) CreateConsentTx(consent *model.ConsentResource) func(tx dbmodel.TxInterface) error {
	return func(tx dbmodel.TxInterface) error {
		_, err := tx.Exec(QueryCreateConsent.Query,
			consent.ConsentID, consent.ClientID, consent.ConsentType, consent.Receipt,
			consent.CurrentStatus, consent.ConsentFrequency, consent.ValidityTime,
			consent.RecurringIndicator, consent.CreatedTime, consent.UpdatedTime)
		return err
	}
}

func (s *store) CreateAuthorizationTx(auth *model.AuthorizationResource) func(tx dbmodel.TxInterface) error {
	return func(tx dbmodel.TxInterface) error {
		_, err := tx.Exec(QueryCreateAuthResource.Query,
			auth.AuthID, auth.ConsentID, auth.AuthType, auth.UserID,
			auth.AuthStatus, auth.UpdatedTime)
		return err
	}
}

func (s *store) CreateMappingTx(mapping *model.ConsentMappingResource) func(tx dbmodel.TxInterface) error {
	return func(tx dbmodel.TxInterface) error {
		_, err := tx.Exec(QueryCreateMapping.Query,
			mapping.MappingID, mapping.AuthID, mapping.AccountID,
			mapping.Permission, mapping.MappingStatus)
		return err
	}
}

func (s *store) CreateAttributeTx(attribute *model.ConsentAttribute) func(tx dbmodel.TxInterface) error {
	return func(tx dbmodel.TxInterface) error {
		_, err := tx.Exec(QueryCreateAttribute.Query,
			attribute.ConsentID, attribute.AttKey, attribute.AttValue)
		return err
	}
}

func (s *store) CreateStatusAuditTx(audit *model.ConsentStatusAudit) func(tx dbmodel.TxInterface) error {
	return func(tx dbmodel.TxInterface) error {
		_, err := tx.Exec(QueryCreateStatusAudit.Query,
			audit.StatusAuditID, audit.ConsentID, audit.CurrentStatus, audit.ActionTime,
			audit.Reason, audit.ActionBy, audit.PreviousStatus)
		return err
	}
}

func (s *store) UpdateConsentStatusTx(consentID, status string, updatedTime int64) func(tx dbmodel.TxInterface) error {
	return func(tx dbmodel.TxInterface) error {
		_, err := tx.Exec(QueryUpdateConsentStatus.Query, status, updatedTime, consentID)
		return err
	}
}

func (s *store) UpdateConsentReceiptTx(consentID, receipt string, updatedTime int64) func(tx dbmodel.TxInterface) error {
	return func(tx dbmodel.TxInterface) error {
		_, err := tx.Exec(QueryUpdateConsentReceipt.Query, receipt, updatedTime, consentID)
		return err
	}
}

func (s *store) UpdateAuthorizationStatusTx(authID, status string, updatedTime int64) func(tx dbmodel.TxInterface) error {
	return func(tx dbmodel.TxInterface) error {
		_, err := tx.Exec(QueryUpdateAuthResourceStatus.Query, status, updatedTime, authID)
		return err
	}
}

func (s *store) UpdateAuthorizationUserTx(authID, userID string, updatedTime int64) func(tx dbmodel.TxInterface) error {
	return func(tx dbmodel.TxInterface) error {
		_, err := tx.Exec(QueryUpdateAuthResourceUser.Query, userID, updatedTime, authID)
		return err
	}
}

func (s *store) UpdateAuthStatusByConsentIDTx(consentID, status string, updatedTime int64) func(tx dbmodel.TxInterface) error {
	return func(tx dbmodel.TxInterface) error {
		_, err := tx.Exec(QueryUpdateAuthStatusByConsentID.Query, status, updatedTime, consentID)
		return err
	}
}

func (s *store) UpdateMappingStatusByConsentIDTx(consentID, status string) func(tx dbmodel.TxInterface) error {
	return func(tx dbmodel.TxInterface) error {
		_, err := tx.Exec(QueryUpdateMappingStatusByConsentID.Query, status, consentID)
		return err
	}
}

// Mapper functions

func mapToConsent(row map[string]interface{}) *model.ConsentResource {
	if row == nil {
		return nil
	}

	consent := &model.ConsentResource{}

	if id, ok := row["CONSENT_ID"].(string); ok {
		consent.ConsentID = id
	}
	if clientID, ok := row["CLIENT_ID"].(string); ok {
		consent.ClientID = clientID
	}
	if cType, ok := row["CONSENT_TYPE"].(string); ok {
		consent.ConsentType = cType
	}
	if receipt, ok := row["RECEIPT"].(string); ok {
		consent.Receipt = receipt
	}
	if status, ok := row["CURRENT_STATUS"].(string); ok {
		consent.CurrentStatus = status
	}
	if freq, ok := row["CONSENT_FREQUENCY"].(int64); ok {
		consent.ConsentFrequency = int(freq)
	}
	if validity, ok := row["VALIDITY_TIME"].(int64); ok {
		consent.ValidityTime = validity
	}
	consent.RecurringIndicator = toBool(row["RECURRING_INDICATOR"])
	if created, ok := row["CREATED_TIME"].(int64); ok {
		consent.CreatedTime = created
	}
	if updated, ok := row["UPDATED_TIME"].(int64); ok {
		consent.UpdatedTime = updated
	}

	return consent
}

func mapToAuthResource(row map[string]interface{}) *model.AuthorizationResource {
	if row == nil {
		return nil
	}

	auth := &model.AuthorizationResource{}

	if id, ok := row["AUTH_ID"].(string); ok {
		auth.AuthID = id
	}
	if consentID, ok := row["CONSENT_ID"].(string); ok {
		auth.ConsentID = consentID
	}
	if authType, ok := row["AUTH_TYPE"].(string); ok {
		auth.AuthType = authType
	}
	if userID, ok := row["USER_ID"].(string); ok {
		auth.UserID = &userID
	}
	if status, ok := row["AUTH_STATUS"].(string); ok {
		auth.AuthStatus = status
	}
	if updated, ok := row["UPDATED_TIME"].(int64); ok {
		auth.UpdatedTime = updated
	}

	return auth
}

func mapToMapping(row map[string]interface{}) *model.ConsentMappingResource {
	if row == nil {
		return nil
	}

	mapping := &model.ConsentMappingResource{}

	if id, ok := row["MAPPING_ID"].(string); ok {
		mapping.MappingID = id
	}
	if authID, ok := row["AUTH_ID"].(string); ok {
		mapping.AuthID = authID
	}
	if accountID, ok := row["ACCOUNT_ID"].(string); ok {
		mapping.AccountID = accountID
	}
	if permission, ok := row["PERMISSION"].(string); ok {
		mapping.Permission = permission
	}
	if status, ok := row["MAPPING_STATUS"].(string); ok {
		mapping.MappingStatus = status
	}

	return mapping
}

// The MySQL driver surfaces BOOLEAN columns as TINYINT values.
func toBool(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case string:
		return v == "1" || v == "true"
	}
	return false
}
