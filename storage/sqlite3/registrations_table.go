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

	"github.com/walletkit/walletd/internal"
	"github.com/walletkit/walletd/internal/sqlutil"
	"github.com/walletkit/walletd/storage/tables"
	"github.com/walletkit/walletd/walletapi/api"
)

const registrationsSchema = `
CREATE TABLE IF NOT EXISTS wallet_registrations (
    device_id BIGINT NOT NULL,
    item_id TEXT NOT NULL,
    PRIMARY KEY (device_id, item_id)
);

CREATE INDEX IF NOT EXISTS wallet_registrations_item_idx ON wallet_registrations(item_id);
`

const insertRegistrationSQL = "" +
	"INSERT INTO wallet_registrations(device_id, item_id) VALUES ($1, $2)" +
	" ON CONFLICT DO NOTHING"

const deleteRegistrationSQL = "" +
	"DELETE FROM wallet_registrations WHERE item_id = $1 AND device_id IN" +
	" (SELECT id FROM wallet_devices WHERE library_identifier = $2)"

const deleteRegistrationsForDeviceSQL = "" +
	"DELETE FROM wallet_registrations WHERE device_id = $1"

const selectRegistrationsForItemSQL = "" +
	"SELECT r.item_id, d.id, d.library_identifier, d.push_token" +
	" FROM wallet_registrations AS r" +
	" JOIN wallet_devices AS d ON d.id = r.device_id" +
	" WHERE r.item_id = $1"

const selectUpdatedSinceSQL = "" +
	"SELECT i.id, i.updated_ts" +
	" FROM wallet_registrations AS r" +
	" JOIN wallet_devices AS d ON d.id = r.device_id" +
	" JOIN wallet_items AS i ON i.id = r.item_id" +
	" WHERE d.library_identifier = $1 AND i.type_identifier = $2 AND i.updated_ts > $3"

type registrationsStatements struct {
	db                               *sql.DB
	insertRegistrationStmt           *sql.Stmt
	deleteRegistrationStmt           *sql.Stmt
	deleteRegistrationsForDeviceStmt *sql.Stmt
	selectRegistrationsForItemStmt   *sql.Stmt
	selectUpdatedSinceStmt           *sql.Stmt
}

func NewSQLiteRegistrationsTable(db *sql.DB) (tables.RegistrationsTable, error) {
	s := &registrationsStatements{db: db}
	_, err := db.Exec(registrationsSchema)
	if err != nil {
		return nil, err
	}
	return s, sqlutil.StatementList{
		{&s.insertRegistrationStmt, insertRegistrationSQL},
		{&s.deleteRegistrationStmt, deleteRegistrationSQL},
		{&s.deleteRegistrationsForDeviceStmt, deleteRegistrationsForDeviceSQL},
		{&s.selectRegistrationsForItemStmt, selectRegistrationsForItemSQL},
		{&s.selectUpdatedSinceStmt, selectUpdatedSinceSQL},
	}.Prepare(db)
}

func (s *registrationsStatements) InsertRegistration(
	ctx context.Context, txn *sql.Tx, deviceID int64, itemID string,
) (bool, error) {
	result, err := sqlutil.TxStmt(txn, s.insertRegistrationStmt).ExecContext(ctx, deviceID, itemID)
	if err != nil {
		return false, err
	}
	count, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *registrationsStatements) DeleteRegistration(
	ctx context.Context, txn *sql.Tx, libraryIdentifier, itemID string,
) (bool, error) {
	result, err := sqlutil.TxStmt(txn, s.deleteRegistrationStmt).ExecContext(ctx, itemID, libraryIdentifier)
	if err != nil {
		return false, err
	}
	count, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *registrationsStatements) DeleteRegistrationsForDevice(
	ctx context.Context, txn *sql.Tx, deviceID int64,
) error {
	_, err := sqlutil.TxStmt(txn, s.deleteRegistrationsForDeviceStmt).ExecContext(ctx, deviceID)
	return err
}

func (s *registrationsStatements) SelectRegistrationsForItem(
	ctx context.Context, txn *sql.Tx, itemID string,
) ([]api.RegistrationDevice, error) {
	rows, err := sqlutil.TxStmt(txn, s.selectRegistrationsForItemStmt).QueryContext(ctx, itemID)
	if err != nil {
		return nil, err
	}
	defer internal.CloseAndLogIfError(ctx, rows, "SelectRegistrationsForItem: rows.close() failed")
	var registrations []api.RegistrationDevice
	for rows.Next() {
		var r api.RegistrationDevice
		if err = rows.Scan(&r.ItemID, &r.Device.ID, &r.Device.LibraryIdentifier, &r.Device.PushToken); err != nil {
			return nil, err
		}
		registrations = append(registrations, r)
	}
	return registrations, rows.Err()
}

func (s *registrationsStatements) SelectUpdatedSince(
	ctx context.Context, txn *sql.Tx, libraryIdentifier, typeIdentifier string, since int64,
) ([]string, int64, error) {
	rows, err := sqlutil.TxStmt(txn, s.selectUpdatedSinceStmt).QueryContext(ctx, libraryIdentifier, typeIdentifier, since)
	if err != nil {
		return nil, 0, err
	}
	defer internal.CloseAndLogIfError(ctx, rows, "SelectUpdatedSince: rows.close() failed")
	var ids []string
	var lastModified int64
	for rows.Next() {
		var id string
		var ts int64
		if err = rows.Scan(&id, &ts); err != nil {
			return nil, 0, err
		}
		ids = append(ids, id)
		if ts > lastModified {
			lastModified = ts
		}
	}
	return ids, lastModified, rows.Err()
}
