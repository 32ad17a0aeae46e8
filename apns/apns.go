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

// Package apns sends the empty background notifications that tell a device
// one of its registered items changed.
package apns

import (
	"context"
	"errors"
)

// ErrBadDeviceToken is returned when APNs classifies the device token as
// permanently unusable. Callers react by deleting the device and its
// registrations rather than retrying.
var ErrBadDeviceToken = errors.New("bad device token")

// A Client is how silent notifications are delivered.
type Client interface {
	// Push sends an empty background notification to the device token,
	// tagged with the item's type identifier as topic.
	Push(ctx context.Context, deviceToken, topic string) error
}
