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

// Package push fans silent notifications out to every device registered for
// an item, cleaning up devices whose tokens APNs reports as dead.
package push

import (
	"context"
	"errors"

	"github.com/matrix-org/util"

	"github.com/walletkit/walletd/apns"
	"github.com/walletkit/walletd/storage"
	"github.com/walletkit/walletd/walletapi/api"
)

// Dispatcher delivers item-change notifications. The APNs client is
// injected so tests can substitute a fake transport.
type Dispatcher struct {
	DB     storage.Database
	Client apns.Client
}

func NewDispatcher(db storage.Database, client apns.Client) *Dispatcher {
	return &Dispatcher{DB: db, Client: client}
}

// DispatchItem sends one background notification per live registration for
// the item. A bad device token deletes the device and its registrations;
// any other per-device failure is logged and skipped. One device's failure
// never prevents delivery to the rest.
func (d *Dispatcher) DispatchItem(ctx context.Context, item *api.Item) error {
	registrations, err := d.DB.RegistrationsForItem(ctx, item.ID)
	if err != nil {
		return err
	}
	logger := util.GetLogger(ctx).WithField("item_id", item.ID)
	for _, reg := range registrations {
		err := d.Client.Push(ctx, reg.Device.PushToken, item.TypeIdentifier)
		if err == nil {
			continue
		}
		if errors.Is(err, apns.ErrBadDeviceToken) {
			logger.WithField("device_id", reg.Device.ID).Info("Removing device with bad push token")
			if err := d.DB.DeleteDevice(ctx, reg.Device.ID); err != nil {
				logger.WithError(err).WithField("device_id", reg.Device.ID).Error("Failed to remove device")
			}
			continue
		}
		logger.WithError(err).WithField("device_id", reg.Device.ID).Warn("Failed to push to device")
	}
	return nil
}

// TokensForItem returns the push tokens of every device currently
// registered for the item.
func (d *Dispatcher) TokensForItem(ctx context.Context, itemID string) ([]string, error) {
	registrations, err := d.DB.RegistrationsForItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(registrations))
	for _, reg := range registrations {
		tokens = append(tokens, reg.Device.PushToken)
	}
	return tokens, nil
}
