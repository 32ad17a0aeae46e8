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

package test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/walletkit/walletd/walletapi/api"
)

// InMemoryWalletDatabase implements storage.Database entirely in memory for
// tests. Behaviour mirrors the SQL implementations: conflict-ignoring
// device and registration inserts, monotonic item timestamps, cascading
// device deletion.
type InMemoryWalletDatabase struct {
	mu              sync.Mutex
	nextDeviceID    int64
	devices         map[int64]*api.Device
	items           map[string]*api.Item
	itemData        map[string][]byte
	registrations   map[registrationKey]struct{}
	personalization []*api.PersonalizationRecord

	// Now is the clock used for item timestamps, overridable per test.
	Now func() time.Time
}

type registrationKey struct {
	deviceID int64
	itemID   string
}

func NewInMemoryWalletDatabase() *InMemoryWalletDatabase {
	return &InMemoryWalletDatabase{
		devices:       make(map[int64]*api.Device),
		items:         make(map[string]*api.Item),
		itemData:      make(map[string][]byte),
		registrations: make(map[registrationKey]struct{}),
		Now:           time.Now,
	}
}

func (d *InMemoryWalletDatabase) FindOrCreateDevice(
	_ context.Context, libraryIdentifier, pushToken string,
) (*api.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, device := range d.devices {
		if device.LibraryIdentifier == libraryIdentifier && device.PushToken == pushToken {
			return device, nil
		}
	}
	d.nextDeviceID++
	device := &api.Device{
		ID:                d.nextDeviceID,
		LibraryIdentifier: libraryIdentifier,
		PushToken:         pushToken,
	}
	d.devices[device.ID] = device
	return device, nil
}

func (d *InMemoryWalletDatabase) CreateItem(
	_ context.Context, typeIdentifier string, payload []byte,
) (*api.Item, error) {
	authToken, err := api.GenerateAuthToken()
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	item := &api.Item{
		ID:             uuid.New().String(),
		TypeIdentifier: typeIdentifier,
		AuthToken:      authToken,
		UpdatedTS:      d.Now().Unix(),
	}
	d.items[item.ID] = item
	d.itemData[item.ID] = payload
	return item, nil
}

func (d *InMemoryWalletDatabase) GetItem(_ context.Context, itemID, typeIdentifier string) (*api.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	item, ok := d.items[itemID]
	if !ok || item.TypeIdentifier != typeIdentifier {
		return nil, sql.ErrNoRows
	}
	copied := *item
	return &copied, nil
}

func (d *InMemoryWalletDatabase) GetItemData(_ context.Context, itemID string) (*api.ItemData, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	payload, ok := d.itemData[itemID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &api.ItemData{ItemID: itemID, Payload: payload}, nil
}

func (d *InMemoryWalletDatabase) UpdateItemData(_ context.Context, itemID string, payload []byte) (*api.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	item, ok := d.items[itemID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	d.itemData[itemID] = payload
	if now := d.Now().Unix(); now > item.UpdatedTS {
		item.UpdatedTS = now
	}
	copied := *item
	return &copied, nil
}

func (d *InMemoryWalletDatabase) RegisterDevice(_ context.Context, device *api.Device, item *api.Item) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := registrationKey{deviceID: device.ID, itemID: item.ID}
	if _, ok := d.registrations[key]; ok {
		return false, nil
	}
	d.registrations[key] = struct{}{}
	return true, nil
}

func (d *InMemoryWalletDatabase) UnregisterDevice(_ context.Context, libraryIdentifier, itemID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.registrations {
		if key.itemID != itemID {
			continue
		}
		if device, ok := d.devices[key.deviceID]; ok && device.LibraryIdentifier == libraryIdentifier {
			delete(d.registrations, key)
			return true, nil
		}
	}
	return false, nil
}

func (d *InMemoryWalletDatabase) RegistrationsForItem(_ context.Context, itemID string) ([]api.RegistrationDevice, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []api.RegistrationDevice
	for key := range d.registrations {
		if key.itemID != itemID {
			continue
		}
		if device, ok := d.devices[key.deviceID]; ok {
			result = append(result, api.RegistrationDevice{ItemID: itemID, Device: *device})
		}
	}
	return result, nil
}

func (d *InMemoryWalletDatabase) UpdatedSince(
	_ context.Context, libraryIdentifier, typeIdentifier string, since int64,
) ([]string, int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []string
	var lastModified int64
	for key := range d.registrations {
		device, ok := d.devices[key.deviceID]
		if !ok || device.LibraryIdentifier != libraryIdentifier {
			continue
		}
		item, ok := d.items[key.itemID]
		if !ok || item.TypeIdentifier != typeIdentifier || item.UpdatedTS <= since {
			continue
		}
		ids = append(ids, item.ID)
		if item.UpdatedTS > lastModified {
			lastModified = item.UpdatedTS
		}
	}
	return ids, lastModified, nil
}

func (d *InMemoryWalletDatabase) DeleteDevice(_ context.Context, deviceID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.registrations {
		if key.deviceID == deviceID {
			delete(d.registrations, key)
		}
	}
	delete(d.devices, deviceID)
	return nil
}

func (d *InMemoryWalletDatabase) CreatePersonalization(_ context.Context, record *api.PersonalizationRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	record.ID = int64(len(d.personalization) + 1)
	record.CreatedTS = d.Now().Unix()
	d.personalization = append(d.personalization, record)
	return nil
}

func (d *InMemoryWalletDatabase) GetPersonalization(_ context.Context, itemID string) (*api.PersonalizationRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, record := range d.personalization {
		if record.ItemID == itemID {
			copied := *record
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

// DeviceCount reports how many devices are stored.
func (d *InMemoryWalletDatabase) DeviceCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.devices)
}

// RegistrationCount reports how many registrations are stored.
func (d *InMemoryWalletDatabase) RegistrationCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.registrations)
}

// PersonalizationCount reports how many personalization records are stored.
func (d *InMemoryWalletDatabase) PersonalizationCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.personalization)
}
