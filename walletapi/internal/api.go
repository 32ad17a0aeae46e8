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

package internal

import (
	"context"

	"github.com/matrix-org/util"

	"github.com/walletkit/walletd/push"
	"github.com/walletkit/walletd/storage"
	"github.com/walletkit/walletd/walletapi/api"
)

// WalletAPI is the item lifecycle entry point. Whatever writes item
// payloads must call these two methods as part of its write path; they keep
// the item row and the push fan-out in step with the payload.
type WalletAPI struct {
	DB         storage.Database
	Dispatcher *push.Dispatcher
}

// OnItemDataCreated mints a new item for a freshly written payload. No
// notification is sent: nothing can be registered for an item that did not
// exist yet.
func (w *WalletAPI) OnItemDataCreated(ctx context.Context, typeIdentifier string, payload []byte) (*api.Item, error) {
	return w.DB.CreateItem(ctx, typeIdentifier, payload)
}

// OnItemDataUpdated stores the new payload, advances the item's updated
// timestamp and wakes every registered device. The dispatch is best-effort:
// a notification failure is logged, not returned.
func (w *WalletAPI) OnItemDataUpdated(ctx context.Context, itemID string, payload []byte) (*api.Item, error) {
	item, err := w.DB.UpdateItemData(ctx, itemID, payload)
	if err != nil {
		return nil, err
	}
	if err := w.Dispatcher.DispatchItem(ctx, item); err != nil {
		util.GetLogger(ctx).WithError(err).WithField("item_id", item.ID).Error("Failed to dispatch item update")
	}
	return item, nil
}
