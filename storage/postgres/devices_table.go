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

const devicesSchema = `
-- Stores the iOS devices that registered for item updates.
CREATE TABLE IF NOT EXISTS wallet_devices (
    id BIGSERIAL PRIMARY KEY,
    -- Client-chosen identifier, not unique on its own.
    library_identifier TEXT NOT NULL,
    -- The APNs token notifications for this device are sent to.
    push_token TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS wallet_devices_idx ON wallet_devices(library_identifier, push_token);
`

const insertDeviceSQL = "" +
	"INSERT INTO wallet_devices(library_identifier, push_token) VALUES ($1, $2)" +
	" ON CONFLICT DO NOTHING"

const selectDeviceSQL = "" +
	"SELECT id, library_identifier, push_token FROM wallet_devices" +
	" WHERE library_identifier = $1 AND push_token = $2"

const deleteDeviceSQL = "" +
	"DELETE FROM wallet_devices WHERE id = $1"

type devicesStatements struct {
	insertDeviceStmt *sql.Stmt
	selectDeviceStmt *sql.Stmt
	deleteDeviceStmt *sql.Stmt
}

func NewPostgresDevicesTable(db *sql.DB) (tables.DevicesTable, error) {
	s := &devicesStatements{}
	_, err := db.Exec(devicesSchema)
	if err != nil {
		return nil, err
	}
	return s, sqlutil.StatementList{
		{&s.insertDeviceStmt, insertDeviceSQL},
		{&s.selectDeviceStmt, selectDeviceSQL},
		{&s.deleteDeviceStmt, deleteDeviceSQL},
	}.Prepare(db)
}

func (s *devicesStatements) InsertDevice(
	ctx context.Context, txn *sql.Tx, libraryIdentifier, pushToken string,
) error {
	_, err := sqlutil.TxStmt(txn, s.insertDeviceStmt).ExecContext(ctx, libraryIdentifier, pushToken)
	return err
}

func (s *devicesStatements) SelectDevice(
	ctx context.Context, txn *sql.Tx, libraryIdentifier, pushToken string,
) (*api.Device, error) {
	var device api.Device
	err := sqlutil.TxStmt(txn, s.selectDeviceStmt).QueryRowContext(ctx, libraryIdentifier, pushToken).Scan(
		&device.ID, &device.LibraryIdentifier, &device.PushToken,
	)
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (s *devicesStatements) DeleteDevice(
	ctx context.Context, txn *sql.Tx, deviceID int64,
) error {
	_, err := sqlutil.TxStmt(txn, s.deleteDeviceStmt).ExecContext(ctx, deviceID)
	return err
}
