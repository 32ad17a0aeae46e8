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

package storage

import (
	"context"

	"github.com/walletkit/walletd/walletapi/api"
)

type Database interface {
	FindOrCreateDevice(ctx context.Context, libraryIdentifier, pushToken string) (*api.Device, error)
	CreateItem(ctx context.Context, typeIdentifier string, payload []byte) (*api.Item, error)
	GetItem(ctx context.Context, itemID, typeIdentifier string) (*api.Item, error)
	GetItemData(ctx context.Context, itemID string) (*api.ItemData, error)
	UpdateItemData(ctx context.Context, itemID string, payload []byte) (*api.Item, error)
	RegisterDevice(ctx context.Context, device *api.Device, item *api.Item) (created bool, _ error)
	UnregisterDevice(ctx context.Context, libraryIdentifier, itemID string) (found bool, _ error)
	RegistrationsForItem(ctx context.Context, itemID string) ([]api.RegistrationDevice, error)
	UpdatedSince(ctx context.Context, libraryIdentifier, typeIdentifier string, since int64) ([]string, int64, error)
	DeleteDevice(ctx context.Context, deviceID int64) error
	CreatePersonalization(ctx context.Context, record *api.PersonalizationRecord) error
	GetPersonalization(ctx context.Context, itemID string) (*api.PersonalizationRecord, error)
}
