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

package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletkit/walletd/apns"
	"github.com/walletkit/walletd/test"
)

type fakeClient struct {
	mu       sync.Mutex
	attempts map[string]int
	bad      map[string]bool
	failing  map[string]bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		attempts: make(map[string]int),
		bad:      make(map[string]bool),
		failing:  make(map[string]bool),
	}
}

func (c *fakeClient) Push(_ context.Context, deviceToken, topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[deviceToken]++
	if c.bad[deviceToken] {
		return fmt.Errorf("%w: BadDeviceToken", apns.ErrBadDeviceToken)
	}
	if c.failing[deviceToken] {
		return errors.New("connection reset")
	}
	return nil
}

func TestDispatchItemCleansUpBadTokens(t *testing.T) {
	ctx := context.Background()
	db := test.NewInMemoryWalletDatabase()
	client := newFakeClient()
	client.bad["token-1"] = true
	dispatcher := NewDispatcher(db, client)

	item, err := db.CreateItem(ctx, "pass.com.example.test", []byte(`{}`))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		device, err := db.FindOrCreateDevice(ctx, fmt.Sprintf("lib-%d", i), fmt.Sprintf("token-%d", i))
		require.NoError(t, err)
		created, err := db.RegisterDevice(ctx, device, item)
		require.NoError(t, err)
		require.True(t, created)
	}

	require.NoError(t, dispatcher.DispatchItem(ctx, item))

	// Every registration got exactly one attempt, including the bad one.
	for i := 0; i < 3; i++ {
		assert.Equal(t, 1, client.attempts[fmt.Sprintf("token-%d", i)])
	}
	// The bad device and its registration are gone, the rest untouched.
	assert.Equal(t, 2, db.DeviceCount())
	assert.Equal(t, 2, db.RegistrationCount())
	tokens, err := dispatcher.TokensForItem(ctx, item.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"token-0", "token-2"}, tokens)
}

func TestDispatchItemIsolatesTransportFailures(t *testing.T) {
	ctx := context.Background()
	db := test.NewInMemoryWalletDatabase()
	client := newFakeClient()
	client.failing["token-0"] = true
	dispatcher := NewDispatcher(db, client)

	item, err := db.CreateItem(ctx, "pass.com.example.test", []byte(`{}`))
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		device, err := db.FindOrCreateDevice(ctx, fmt.Sprintf("lib-%d", i), fmt.Sprintf("token-%d", i))
		require.NoError(t, err)
		_, err = db.RegisterDevice(ctx, device, item)
		require.NoError(t, err)
	}

	// A transport failure is not a bad token: nothing is deleted and the
	// other device is still notified.
	require.NoError(t, dispatcher.DispatchItem(ctx, item))
	assert.Equal(t, 1, client.attempts["token-1"])
	assert.Equal(t, 2, db.DeviceCount())
	assert.Equal(t, 2, db.RegistrationCount())
}

func TestTokensForItemEmpty(t *testing.T) {
	ctx := context.Background()
	db := test.NewInMemoryWalletDatabase()
	dispatcher := NewDispatcher(db, newFakeClient())

	item, err := db.CreateItem(ctx, "pass.com.example.test", []byte(`{}`))
	require.NoError(t, err)
	tokens, err := dispatcher.TokensForItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}
