/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package provider

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	dbmodel "github.com/wso2/open-banking-berlin/internal/system/database/model"
	dbutils "github.com/wso2/open-banking-berlin/internal/system/database/utils"
	"github.com/wso2/open-banking-berlin/internal/system/log"
)

// DBClientInterface defines the interface for executing identified queries
// against a datasource.
type DBClientInterface interface {
	Query(query dbmodel.DBQueryInterface, args ...interface{}) ([]map[string]interface{}, error)
	Execute(query dbmodel.DBQueryInterface, args ...interface{}) (int64, error)
	BeginTx() (dbmodel.TxInterface, error)
	GetDBType() string
}

// dbClient is the sqlx backed implementation of DBClientInterface.
type dbClient struct {
	db     *sqlx.DB
	dbType string
}

// NewDBClient creates a new database client for the given connection.
func NewDBClient(db *sqlx.DB, dbType string) DBClientInterface {
	return &dbClient{db: db, dbType: dbType}
}

// Query runs the identified query and returns the result set as generic rows.
func (c *dbClient) Query(query dbmodel.DBQueryInterface, args ...interface{}) ([]map[string]interface{}, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "DBClient"))

	rows, err := c.db.Queryx(c.resolveQuery(query), args...)
	if err != nil {
		logger.Error("Query execution failed", log.String("query_id", query.GetID()), log.Error(err))
		return nil, fmt.Errorf("failed to execute query %s: %w", query.GetID(), err)
	}
	defer rows.Close()

	var results []map[string]interface{}
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan row for query %s: %w", query.GetID(), err)
		}
		normalizeRow(row)
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed for query %s: %w", query.GetID(), err)
	}

	return results, nil
}

// Execute runs the identified statement and returns the number of affected rows.
func (c *dbClient) Execute(query dbmodel.DBQueryInterface, args ...interface{}) (int64, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "DBClient"))

	result, err := c.db.Exec(c.resolveQuery(query), args...)
	if err != nil {
		logger.Error("Statement execution failed", log.String("query_id", query.GetID()), log.Error(err))
		return 0, fmt.Errorf("failed to execute statement %s: %w", query.GetID(), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

// BeginTx starts a new transaction on the underlying connection.
func (c *dbClient) BeginTx() (dbmodel.TxInterface, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return dbmodel.NewTx(tx), nil
}

// GetDBType returns the configured database type.
func (c *dbClient) GetDBType() string {
	return c.dbType
}

// resolveQuery picks the database specific query text. Queries without a
// dedicated postgres variant get their placeholders rewritten.
func (c *dbClient) resolveQuery(query dbmodel.DBQueryInterface) string {
	text := query.GetQuery(c.dbType)
	if (c.dbType == "postgres" || c.dbType == "postgresql") && !strings.Contains(text, "$1") {
		return dbutils.ConvertToPostgresParams(text)
	}
	return text
}

// The MySQL driver returns text columns as []byte through MapScan.
func normalizeRow(row map[string]interface{}) {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
}
