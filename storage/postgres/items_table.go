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

const itemsSchema = `
-- Stores the passes and orders served by this instance. The id doubles as
-- the serial number that appears in wallet URLs.
CREATE TABLE IF NOT EXISTS wallet_items (
    id TEXT PRIMARY KEY,
    type_identifier TEXT NOT NULL,
    -- The bearer credential the device must present on authenticated
    -- endpoints for this item.
    auth_token TEXT NOT NULL,
    -- Seconds since the epoch, advanced on every content mutation.
    updated_ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS wallet_items_type_idx ON wallet_items(type_identifier);
`

const insertItemSQL = "" +
	"INSERT INTO wallet_items(id, type_identifier, auth_token, updated_ts) VALUES ($1, $2, $3, $4)"

const selectItemSQL = "" +
	"SELECT id, type_identifier, auth_token, updated_ts FROM wallet_items" +
	" WHERE id = $1 AND type_identifier = $2"

const selectItemByIDSQL = "" +
	"SELECT id, type_identifier, auth_token, updated_ts FROM wallet_items WHERE id = $1"

// GREATEST keeps the timestamp monotonic when the wall clock goes backwards.
const touchItemSQL = "" +
	"UPDATE wallet_items SET updated_ts = GREATEST(updated_ts, $2) WHERE id = $1"

type itemsStatements struct {
	insertItemStmt     *sql.Stmt
	selectItemStmt     *sql.Stmt
	selectItemByIDStmt *sql.Stmt
	touchItemStmt      *sql.Stmt
}

func NewPostgresItemsTable(db *sql.DB) (tables.ItemsTable, error) {
	s := &itemsStatements{}
	_, err := db.Exec(itemsSchema)
	if err != nil {
		return nil, err
	}
	return s, sqlutil.StatementList{
		{&s.insertItemStmt, insertItemSQL},
		{&s.selectItemStmt, selectItemSQL},
		{&s.selectItemByIDStmt, selectItemByIDSQL},
		{&s.touchItemStmt, touchItemSQL},
	}.Prepare(db)
}

func (s *itemsStatements) InsertItem(
	ctx context.Context, txn *sql.Tx, item *api.Item,
) error {
	_, err := sqlutil.TxStmt(txn, s.insertItemStmt).ExecContext(
		ctx, item.ID, item.TypeIdentifier, item.AuthToken, item.UpdatedTS,
	)
	return err
}

func (s *itemsStatements) SelectItem(
	ctx context.Context, txn *sql.Tx, itemID, typeIdentifier string,
) (*api.Item, error) {
	var item api.Item
	err := sqlutil.TxStmt(txn, s.selectItemStmt).QueryRowContext(ctx, itemID, typeIdentifier).Scan(
		&item.ID, &item.TypeIdentifier, &item.AuthToken, &item.UpdatedTS,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *itemsStatements) SelectItemByID(
	ctx context.Context, txn *sql.Tx, itemID string,
) (*api.Item, error) {
	var item api.Item
	err := sqlutil.TxStmt(txn, s.selectItemByIDStmt).QueryRowContext(ctx, itemID).Scan(
		&item.ID, &item.TypeIdentifier, &item.AuthToken, &item.UpdatedTS,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *itemsStatements) TouchItem(
	ctx context.Context, txn *sql.Tx, itemID string, ts int64,
) error {
	_, err := sqlutil.TxStmt(txn, s.touchItemStmt).ExecContext(ctx, itemID, ts)
	return err
}
