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

package sqlite3

import (
	"context"
	"database/sql"

	"github.com/walletkit/walletd/internal/sqlutil"
	"github.com/walletkit/walletd/storage/tables"
	"github.com/walletkit/walletd/walletapi/api"
)

const itemDataSchema = `
CREATE TABLE IF NOT EXISTS wallet_item_data (
    item_id TEXT PRIMARY KEY,
    payload TEXT NOT NULL
);
`

const upsertItemDataSQL = "" +
	"INSERT INTO wallet_item_data(item_id, payload) VALUES ($1, $2)" +
	" ON CONFLICT (item_id) DO UPDATE SET payload = $2"

const selectItemDataSQL = "" +
	"SELECT item_id, payload FROM wallet_item_data WHERE item_id = $1"

type itemDataStatements struct {
	db                 *sql.DB
	upsertItemDataStmt *sql.Stmt
	selectItemDataStmt *sql.Stmt
}

func NewSQLiteItemDataTable(db *sql.DB) (tables.ItemDataTable, error) {
	s := &itemDataStatements{db: db}
	_, err := db.Exec(itemDataSchema)
	if err != nil {
		return nil, err
	}
	return s, sqlutil.StatementList{
		{&s.upsertItemDataStmt, upsertItemDataSQL},
		{&s.selectItemDataStmt, selectItemDataSQL},
	}.Prepare(db)
}

func (s *itemDataStatements) UpsertItemData(
	ctx context.Context, txn *sql.Tx, itemID string, payload []byte,
) error {
	_, err := sqlutil.TxStmt(txn, s.upsertItemDataStmt).ExecContext(ctx, itemID, string(payload))
	return err
}

func (s *itemDataStatements) SelectItemData(
	ctx context.Context, txn *sql.Tx, itemID string,
) (*api.ItemData, error) {
	var data api.ItemData
	var payload string
	err := sqlutil.TxStmt(txn, s.selectItemDataStmt).QueryRowContext(ctx, itemID).Scan(
		&data.ItemID, &payload,
	)
	if err != nil {
		return nil, err
	}
	data.Payload = []byte(payload)
	return &data, nil
}
