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

package shared

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/walletkit/walletd/internal/sqlutil"
	"github.com/walletkit/walletd/storage/tables"
	"github.com/walletkit/walletd/walletapi/api"
)

// Database is the wallet database, generic over the postgres and sqlite3
// table implementations.
type Database struct {
	DB              *sql.DB
	Writer          sqlutil.Writer
	Devices         tables.DevicesTable
	Items           tables.ItemsTable
	ItemData        tables.ItemDataTable
	Registrations   tables.RegistrationsTable
	Personalization tables.PersonalizationTable
}

// FindOrCreateDevice looks the device up by its exact (libraryIdentifier,
// pushToken) pair and creates it if absent. The insert ignores conflicts, so
// two concurrent first registrations for the same pair both end up with the
// single stored device.
func (d *Database) FindOrCreateDevice(
	ctx context.Context, libraryIdentifier, pushToken string,
) (*api.Device, error) {
	device, err := d.Devices.SelectDevice(ctx, nil, libraryIdentifier, pushToken)
	if err == nil {
		return device, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	err = d.Writer.Do(d.DB, nil, func(txn *sql.Tx) error {
		return d.Devices.InsertDevice(ctx, txn, libraryIdentifier, pushToken)
	})
	if err != nil {
		return nil, err
	}
	return d.Devices.SelectDevice(ctx, nil, libraryIdentifier, pushToken)
}

// CreateItem mints a new item of the given type with a fresh ID and
// authentication token and stores its payload.
func (d *Database) CreateItem(
	ctx context.Context, typeIdentifier string, payload []byte,
) (*api.Item, error) {
	authToken, err := api.GenerateAuthToken()
	if err != nil {
		return nil, err
	}
	item := &api.Item{
		ID:             uuid.New().String(),
		TypeIdentifier: typeIdentifier,
		AuthToken:      authToken,
		UpdatedTS:      time.Now().Unix(),
	}
	err = d.Writer.Do(d.DB, nil, func(txn *sql.Tx) error {
		if err := d.Items.InsertItem(ctx, txn, item); err != nil {
			return err
		}
		return d.ItemData.UpsertItemData(ctx, txn, item.ID, payload)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// GetItem returns the item matching both the id and the type identifier, or
// sql.ErrNoRows.
func (d *Database) GetItem(ctx context.Context, itemID, typeIdentifier string) (*api.Item, error) {
	return d.Items.SelectItem(ctx, nil, itemID, typeIdentifier)
}

// GetItemData returns the stored payload for the item.
func (d *Database) GetItemData(ctx context.Context, itemID string) (*api.ItemData, error) {
	return d.ItemData.SelectItemData(ctx, nil, itemID)
}

// UpdateItemData replaces the item's payload and advances its updated
// timestamp, returning the refreshed item.
func (d *Database) UpdateItemData(ctx context.Context, itemID string, payload []byte) (*api.Item, error) {
	err := d.Writer.Do(d.DB, nil, func(txn *sql.Tx) error {
		if _, err := d.Items.SelectItemByID(ctx, txn, itemID); err != nil {
			return err
		}
		if err := d.ItemData.UpsertItemData(ctx, txn, itemID, payload); err != nil {
			return err
		}
		return d.Items.TouchItem(ctx, txn, itemID, time.Now().Unix())
	})
	if err != nil {
		return nil, err
	}
	return d.Items.SelectItemByID(ctx, nil, itemID)
}

// RegisterDevice registers the device for the item, reporting whether a new
// registration was created. Registering an already registered pair reports
// false without erroring.
func (d *Database) RegisterDevice(ctx context.Context, device *api.Device, item *api.Item) (bool, error) {
	var created bool
	err := d.Writer.Do(d.DB, nil, func(txn *sql.Tx) error {
		var err error
		created, err = d.Registrations.InsertRegistration(ctx, txn, device.ID, item.ID)
		return err
	})
	return created, err
}

// UnregisterDevice removes the registration for (libraryIdentifier, item),
// reporting whether one existed. The device and the item are unaffected.
func (d *Database) UnregisterDevice(ctx context.Context, libraryIdentifier, itemID string) (bool, error) {
	var found bool
	err := d.Writer.Do(d.DB, nil, func(txn *sql.Tx) error {
		var err error
		found, err = d.Registrations.DeleteRegistration(ctx, txn, libraryIdentifier, itemID)
		return err
	})
	return found, err
}

// RegistrationsForItem returns every registration for the item with its
// device joined in.
func (d *Database) RegistrationsForItem(ctx context.Context, itemID string) ([]api.RegistrationDevice, error) {
	return d.Registrations.SelectRegistrationsForItem(ctx, nil, itemID)
}

// UpdatedSince returns the ids of the device's registered items of the given
// type updated strictly after since, with the largest updated timestamp
// among them. A negative since matches every registered item.
func (d *Database) UpdatedSince(
	ctx context.Context, libraryIdentifier, typeIdentifier string, since int64,
) ([]string, int64, error) {
	return d.Registrations.SelectUpdatedSince(ctx, nil, libraryIdentifier, typeIdentifier, since)
}

// DeleteDevice removes the device and all of its registrations. Used when
// APNs reports the device's push token as permanently unusable.
func (d *Database) DeleteDevice(ctx context.Context, deviceID int64) error {
	return d.Writer.Do(d.DB, nil, func(txn *sql.Tx) error {
		if err := d.Registrations.DeleteRegistrationsForDevice(ctx, txn, deviceID); err != nil {
			return err
		}
		return d.Devices.DeleteDevice(ctx, txn, deviceID)
	})
}

// CreatePersonalization stores the personal fields submitted for the item.
func (d *Database) CreatePersonalization(ctx context.Context, record *api.PersonalizationRecord) error {
	record.CreatedTS = time.Now().Unix()
	return d.Writer.Do(d.DB, nil, func(txn *sql.Tx) error {
		return d.Personalization.InsertPersonalization(ctx, txn, record)
	})
}

// GetPersonalization returns the earliest personalization record for the
// item, or sql.ErrNoRows if none was ever submitted.
func (d *Database) GetPersonalization(ctx context.Context, itemID string) (*api.PersonalizationRecord, error) {
	return d.Personalization.SelectPersonalization(ctx, nil, itemID)
}
