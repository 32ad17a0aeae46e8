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
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindWireDifferences(t *testing.T) {
	pass := PassKind("pass.com.example.test", false)
	order := OrderKind("order.com.example.test")

	assert.Equal(t, "ApplePass", pass.AuthScheme)
	assert.Equal(t, "AppleOrder", order.AuthScheme)
	assert.Equal(t, "application/vnd.apple.pkpass", pass.ContentType)
	assert.Equal(t, "application/vnd.apple.order", order.ContentType)
	assert.Equal(t, "passesUpdatedSince", pass.SinceParam)
	assert.Equal(t, "ordersModifiedSince", order.SinceParam)
	// SHA-1 manifests for passes, SHA-256 for orders.
	assert.Equal(t, 20, pass.NewHash().Size())
	assert.Equal(t, 32, order.NewHash().Size())
}

func TestFormatLastModified(t *testing.T) {
	pass := PassKind("pass.com.example.test", false)
	order := OrderKind("order.com.example.test")

	assert.Equal(t, "1700000000", pass.FormatLastModified(1700000000))
	assert.Equal(t, "2023-11-14T22:13:20Z", order.FormatLastModified(1700000000))
}

func TestUpdatesResponseShapes(t *testing.T) {
	pass := PassKind("pass.com.example.test", false)
	order := OrderKind("order.com.example.test")

	passJSON, err := json.Marshal(pass.UpdatesResponse([]string{"a", "b"}, 1700000000))
	require.NoError(t, err)
	assert.JSONEq(t, `{"serialNumbers":["a","b"],"lastUpdated":"1700000000"}`, string(passJSON))

	orderJSON, err := json.Marshal(order.UpdatesResponse([]string{"c"}, 1700000000))
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderIdentifiers":["c"],"lastModified":"2023-11-14T22:13:20Z"}`, string(orderJSON))
}

func TestGenerateAuthToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		token, err := GenerateAuthToken()
		require.NoError(t, err)
		raw, err := base64.RawURLEncoding.DecodeString(token)
		require.NoError(t, err)
		// The protocol requires at least 12 bytes of entropy.
		assert.GreaterOrEqual(t, len(raw), 12)
		assert.False(t, seen[token], "duplicate token generated")
		seen[token] = true
	}
}
