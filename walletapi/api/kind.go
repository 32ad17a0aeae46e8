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
	"crypto/sha1"
	"crypto/sha256"
	"hash"
	"strconv"
	"time"
)

// Family names one of the two item families the service can serve.
type Family string

const (
	FamilyPass  Family = "pass"
	FamilyOrder Family = "order"
)

// Kind captures everything about an item family that differs on the wire:
// the path noun, the auth scheme, the payload file name, the manifest hash
// and the shape of the updated-since response. The protocol logic itself is
// identical for both families and is written against this type.
type Kind struct {
	Family         Family
	TypeIdentifier string
	// Noun is the path segment for the content endpoints, "passes" or
	// "orders".
	Noun string
	// AuthScheme is the Authorization scheme devices use, "ApplePass" or
	// "AppleOrder".
	AuthScheme  string
	ContentType string
	// PayloadName is the item JSON entry inside a bundle.
	PayloadName string
	// Extension is the bundle file extension including the dot.
	Extension string
	// SinceParam is the query parameter carrying the updated-since
	// timestamp on the registrations listing endpoint.
	SinceParam string
	// NewHash returns the digest used for manifest entries. Wallet
	// verifies SHA-1 manifests for passes and SHA-256 for orders.
	NewHash func() hash.Hash

	Personalizable bool
	Bundleable     bool
}

// PassKind returns the wire description of the passes family.
func PassKind(typeIdentifier string, personalizable bool) Kind {
	return Kind{
		Family:         FamilyPass,
		TypeIdentifier: typeIdentifier,
		Noun:           "passes",
		AuthScheme:     "ApplePass",
		ContentType:    "application/vnd.apple.pkpass",
		PayloadName:    "pass.json",
		Extension:      ".pkpass",
		SinceParam:     "passesUpdatedSince",
		NewHash:        sha1.New,
		Personalizable: personalizable,
		Bundleable:     true,
	}
}

// OrderKind returns the wire description of the orders family.
func OrderKind(typeIdentifier string) Kind {
	return Kind{
		Family:         FamilyOrder,
		TypeIdentifier: typeIdentifier,
		Noun:           "orders",
		AuthScheme:     "AppleOrder",
		ContentType:    "application/vnd.apple.order",
		PayloadName:    "order.json",
		Extension:      ".order",
		SinceParam:     "ordersModifiedSince",
		NewHash:        sha256.New,
	}
}

// FormatLastModified renders an item timestamp the way this family reports
// it: passes use a raw epoch-seconds string, orders use ISO-8601 in UTC.
func (k Kind) FormatLastModified(ts int64) string {
	if k.Family == FamilyOrder {
		return time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}
	return strconv.FormatInt(ts, 10)
}

// UpdatesResponse builds the body of a successful updated-since query. The
// two families use different field names for the same payload.
func (k Kind) UpdatesResponse(ids []string, lastModified int64) interface{} {
	if k.Family == FamilyOrder {
		return OrderIdentifiersResponse{
			OrderIdentifiers: ids,
			LastModified:     k.FormatLastModified(lastModified),
		}
	}
	return SerialNumbersResponse{
		SerialNumbers: ids,
		LastUpdated:   k.FormatLastModified(lastModified),
	}
}

// SerialNumbersResponse is the updated-since body for the passes family.
type SerialNumbersResponse struct {
	SerialNumbers []string `json:"serialNumbers"`
	LastUpdated   string   `json:"lastUpdated"`
}

// OrderIdentifiersResponse is the updated-since body for the orders family.
type OrderIdentifiersResponse struct {
	OrderIdentifiers []string `json:"orderIdentifiers"`
	LastModified     string   `json:"lastModified"`
}

// RegisterRequest is the body of a device registration.
type RegisterRequest struct {
	PushToken string `json:"pushToken"`
}

// LogRequest is the body of the client diagnostic log endpoint.
type LogRequest struct {
	Logs []string `json:"logs"`
}

// PersonalizationInfo carries the personal fields a device submits when
// signing up for a personalized pass.
type PersonalizationInfo struct {
	FullName       string `json:"fullName,omitempty"`
	GivenName      string `json:"givenName,omitempty"`
	FamilyName     string `json:"familyName,omitempty"`
	EmailAddress   string `json:"emailAddress,omitempty"`
	PostalCode     string `json:"postalCode,omitempty"`
	ISOCountryCode string `json:"ISOCountryCode,omitempty"`
	PhoneNumber    string `json:"phoneNumber,omitempty"`
}

// PersonalizationRequest is the body of the personalization endpoint. The
// server signs the opaque personalization token and returns the raw
// signature bytes.
type PersonalizationRequest struct {
	PersonalizationToken        string              `json:"personalizationToken"`
	RequiredPersonalizationInfo PersonalizationInfo `json:"requiredPersonalizationInfo"`
}
