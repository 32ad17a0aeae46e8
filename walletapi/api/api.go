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

package api

import (
	"crypto/rand"
	"encoding/base64"
)

// Device is an iOS device that has registered for updates on at least one
// item. A device is identified by its (libraryIdentifier, pushToken) pair:
// neither field is unique on its own. Devices are never updated; a device is
// deleted when APNs reports its push token as permanently unusable.
type Device struct {
	ID                int64
	LibraryIdentifier string
	PushToken         string
}

// Item is a single pass or order. The item ID doubles as the serial number
// that appears in wallet URLs and inside the item payload. The
// authentication token is the bearer credential devices must present on the
// authenticated endpoints.
type Item struct {
	ID             string
	TypeIdentifier string
	AuthToken      string
	// UpdatedTS advances monotonically, in seconds since the epoch, on
	// every content-affecting mutation. It is the sole basis for
	// conditional fetches and the updated-since query.
	UpdatedTS int64
}

// ItemData is the domain payload owned by an item, stored as opaque JSON.
// The protocol core never interprets it; the renderer merges it with the
// serial number and authentication token when a bundle is built.
type ItemData struct {
	ItemID  string
	Payload []byte
}

// Registration links one device to one item. At most one live registration
// exists per (device, item) pair.
type Registration struct {
	DeviceID int64
	ItemID   string
}

// RegistrationDevice is a registration joined with its device, as needed by
// the push fan-out.
type RegistrationDevice struct {
	ItemID string
	Device Device
}

// PersonalizationRecord holds the personal fields a device submitted for a
// personalizable pass.
type PersonalizationRecord struct {
	ID             int64
	ItemID         string
	FullName       string
	GivenName      string
	FamilyName     string
	EmailAddress   string
	PostalCode     string
	ISOCountryCode string
	PhoneNumber    string
	CreatedTS      int64
}

const authTokenBytes = 16

// GenerateAuthToken returns a fresh random bearer credential for a new item.
func GenerateAuthToken() (string, error) {
	b := make([]byte, authTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Renderer produces the files that make up an item's bundle.
type Renderer interface {
	// ItemJSON returns the JSON projection of the item, with the serial
	// number and authentication token merged into the stored payload.
	ItemJSON(item *Item, data *ItemData) ([]byte, error)
	// SourceFiles returns the named resource files to include alongside
	// the item JSON, keyed by their in-bundle name. Localized variants
	// keep their xx-YY.lproj/ prefix.
	SourceFiles() (map[string][]byte, error)
	// PersonalizationJSON returns the personalization.json contents for
	// the item, or nil if the item is not personalizable.
	PersonalizationJSON(item *Item, data *ItemData) ([]byte, error)
}
