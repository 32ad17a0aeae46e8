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

package tables

import (
	"context"
	"database/sql"

	"github.com/walletkit/walletd/walletapi/api"
)

type DevicesTable interface {
	// InsertDevice inserts the device if the (libraryIdentifier,
	// pushToken) pair is not already present. Inserting an existing
	// pair is a no-op.
	InsertDevice(ctx context.Context, txn *sql.Tx, libraryIdentifier, pushToken string) error
	SelectDevice(ctx context.Context, txn *sql.Tx, libraryIdentifier, pushToken string) (*api.Device, error)
	DeleteDevice(ctx context.Context, txn *sql.Tx, deviceID int64) error
}

type ItemsTable interface {
	InsertItem(ctx context.Context, txn *sql.Tx, item *api.Item) error
	SelectItem(ctx context.Context, txn *sql.Tx, itemID, typeIdentifier string) (*api.Item, error)
	SelectItemByID(ctx context.Context, txn *sql.Tx, itemID string) (*api.Item, error)
	// TouchItem advances the item's updated timestamp to ts, unless the
	// stored value is already larger. The timestamp never goes
	// backwards.
	TouchItem(ctx context.Context, txn *sql.Tx, itemID string, ts int64) error
}

type ItemDataTable interface {
	UpsertItemData(ctx context.Context, txn *sql.Tx, itemID string, payload []byte) error
	SelectItemData(ctx context.Context, txn *sql.Tx, itemID string) (*api.ItemData, error)
}

type RegistrationsTable interface {
	// InsertRegistration creates the registration and reports whether a
	// row was created. Inserting an existing (device, item) pair is a
	// no-op that reports false.
	InsertRegistration(ctx context.Context, txn *sql.Tx, deviceID int64, itemID string) (bool, error)
	// DeleteRegistration removes the registration matching the device
	// library identifier and item, reporting whether one existed.
	DeleteRegistration(ctx context.Context, txn *sql.Tx, libraryIdentifier, itemID string) (bool, error)
	DeleteRegistrationsForDevice(ctx context.Context, txn *sql.Tx, deviceID int64) error
	SelectRegistrationsForItem(ctx context.Context, txn *sql.Tx, itemID string) ([]api.RegistrationDevice, error)
	// SelectUpdatedSince returns the ids of the items the device is
	// registered for whose updated timestamp is strictly greater than
	// since, along with the largest timestamp among them. Pass a
	// negative since to match every registered item.
	SelectUpdatedSince(ctx context.Context, txn *sql.Tx, libraryIdentifier, typeIdentifier string, since int64) ([]string, int64, error)
}

type PersonalizationTable interface {
	InsertPersonalization(ctx context.Context, txn *sql.Tx, record *api.PersonalizationRecord) error
	SelectPersonalization(ctx context.Context, txn *sql.Tx, itemID string) (*api.PersonalizationRecord, error)
}
