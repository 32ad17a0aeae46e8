// Copyright 2024 The walletd Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"database/sql"

	"github.com/walletkit/walletd/internal/sqlutil"
	"github.com/walletkit/walletd/storage/tables"
	"github.com/walletkit/walletd/walletapi/api"
)

const personalizationSchema = `
-- The personal fields submitted for personalizable passes. No uniqueness
-- is enforced per item; a pass submitting twice appends a second row.
CREATE TABLE IF NOT EXISTS wallet_personalization (
    id BIGSERIAL PRIMARY KEY,
    item_id TEXT NOT NULL,
    full_name TEXT NOT NULL DEFAULT '',
    given_name TEXT NOT NULL DEFAULT '',
    family_name TEXT NOT NULL DEFAULT '',
    email_address TEXT NOT NULL DEFAULT '',
    postal_code TEXT NOT NULL DEFAULT '',
    iso_country_code TEXT NOT NULL DEFAULT '',
    phone_number TEXT NOT NULL DEFAULT '',
    created_ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS wallet_personalization_item_idx ON wallet_personalization(item_id);
`

const insertPersonalizationSQL = "" +
	"INSERT INTO wallet_personalization(item_id, full_name, given_name, family_name," +
	" email_address, postal_code, iso_country_code, phone_number, created_ts)" +
	" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)"

const selectPersonalizationSQL = "" +
	"SELECT id, item_id, full_name, given_name, family_name, email_address," +
	" postal_code, iso_country_code, phone_number, created_ts" +
	" FROM wallet_personalization WHERE item_id = $1 ORDER BY id LIMIT 1"

type personalizationStatements struct {
	insertPersonalizationStmt *sql.Stmt
	selectPersonalizationStmt *sql.Stmt
}

func NewPostgresPersonalizationTable(db *sql.DB) (tables.PersonalizationTable, error) {
	s := &personalizationStatements{}
	_, err := db.Exec(personalizationSchema)
	if err != nil {
		return nil, err
	}
	return s, sqlutil.StatementList{
		{&s.insertPersonalizationStmt, insertPersonalizationSQL},
		{&s.selectPersonalizationStmt, selectPersonalizationSQL},
	}.Prepare(db)
}

func (s *personalizationStatements) InsertPersonalization(
	ctx context.Context, txn *sql.Tx, record *api.PersonalizationRecord,
) error {
	_, err := sqlutil.TxStmt(txn, s.insertPersonalizationStmt).ExecContext(
		ctx, record.ItemID, record.FullName, record.GivenName, record.FamilyName,
		record.EmailAddress, record.PostalCode, record.ISOCountryCode,
		record.PhoneNumber, record.CreatedTS,
	)
	return err
}

func (s *personalizationStatements) SelectPersonalization(
	ctx context.Context, txn *sql.Tx, itemID string,
) (*api.PersonalizationRecord, error) {
	var record api.PersonalizationRecord
	err := sqlutil.TxStmt(txn, s.selectPersonalizationStmt).QueryRowContext(ctx, itemID).Scan(
		&record.ID, &record.ItemID, &record.FullName, &record.GivenName,
		&record.FamilyName, &record.EmailAddress, &record.PostalCode,
		&record.ISOCountryCode, &record.PhoneNumber, &record.CreatedTS,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
