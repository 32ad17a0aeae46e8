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

package routing

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/smallstep/pkcs7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletkit/walletd/apns"
	"github.com/walletkit/walletd/bundle"
	"github.com/walletkit/walletd/push"
	"github.com/walletkit/walletd/renderer"
	"github.com/walletkit/walletd/setup/config"
	"github.com/walletkit/walletd/test"
	"github.com/walletkit/walletd/walletapi/api"
	walletinternal "github.com/walletkit/walletd/walletapi/internal"
)

const (
	testPassType      = "pass.com.example.test"
	testOrderType     = "order.com.example.test"
	testOperatorToken = "operator-secret"
)

// The prometheus counters registered by Setup are process-global, so the
// router is built exactly once and every test runs against it. Tests keep
// their state apart by minting their own items and device identifiers.
var (
	testDB     *test.InMemoryWalletDatabase
	testRouter *mux.Router
	testAPNS   *recordingAPNS
	testClock  *fakeClock
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingAPNS records every push and can be told to reject a token the
// way APNs reports a stale device.
type recordingAPNS struct {
	mu     sync.Mutex
	pushes []string
	bad    map[string]bool
}

func (c *recordingAPNS) Push(_ context.Context, deviceToken, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushes = append(c.pushes, deviceToken)
	if c.bad[deviceToken] {
		return fmt.Errorf("%w: Unregistered", apns.ErrBadDeviceToken)
	}
	return nil
}

func (c *recordingAPNS) pushed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.pushes...)
}

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	templateDir, err := os.MkdirTemp("", "walletd-routing-test")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(templateDir) // nolint:errcheck
	if err = os.WriteFile(filepath.Join(templateDir, "icon.png"), []byte("icon-bytes"), 0o644); err != nil {
		panic(err)
	}

	certPEM, keyPEM, err := test.GenerateSignerPEM()
	if err != nil {
		panic(err)
	}
	signer, err := bundle.NewSigner(certPEM, keyPEM, certPEM, "")
	if err != nil {
		panic(err)
	}

	testClock = &fakeClock{now: time.Unix(1700000000, 0)}
	testDB = test.NewInMemoryWalletDatabase()
	testDB.Now = testClock.Now
	testAPNS = &recordingAPNS{bad: make(map[string]bool)}

	dispatcher := push.NewDispatcher(testDB, testAPNS)
	walletAPI := &walletinternal.WalletAPI{DB: testDB, Dispatcher: dispatcher}

	passKind := api.PassKind(testPassType, true)
	orderKind := api.OrderKind(testOrderType)
	families := []*Family{
		{
			Kind:     passKind,
			Renderer: renderer.NewItemRenderer(passKind, config.Path(templateDir)),
			Builder:  bundle.NewBuilder(signer, passKind),
			Signer:   signer,
		},
		{
			Kind:     orderKind,
			Renderer: renderer.NewItemRenderer(orderKind, config.Path(templateDir)),
			Builder:  bundle.NewBuilder(signer, orderKind),
			Signer:   signer,
		},
	}

	cfg := &config.WalletAPI{
		Global:        &config.Global{},
		OperatorToken: testOperatorToken,
	}
	testRouter = mux.NewRouter()
	Setup(testRouter, cfg, testDB, walletAPI, dispatcher, families)
	return m.Run()
}

func doRequest(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	testRouter.ServeHTTP(rec, req)
	return rec
}

func createItem(t *testing.T, typeIdentifier, payload string) *api.Item {
	t.Helper()
	item, err := testDB.CreateItem(context.Background(), typeIdentifier, []byte(payload))
	require.NoError(t, err)
	return item
}

func passAuth(item *api.Item) map[string]string {
	return map[string]string{"Authorization": "ApplePass " + item.AuthToken}
}

func operatorAuth() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testOperatorToken}
}

func registrationPath(libraryIdentifier string, item *api.Item) string {
	return "/v1/devices/" + libraryIdentifier + "/registrations/" + item.TypeIdentifier + "/" + item.ID
}

func errcode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		ErrCode string `json:"errcode"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.ErrCode
}

func TestPassLifecycle(t *testing.T) {
	createdAt := testClock.Now().Unix()

	// Create through the operator endpoint so the whole surface is
	// exercised end to end.
	rec := doRequest(http.MethodPost, "/items/"+testPassType, `{"description":"Test Pass"}`, operatorAuth())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created ItemResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	_, err := uuid.Parse(created.SerialNumber)
	require.NoError(t, err)
	require.NotEmpty(t, created.AuthenticationToken)
	assert.Equal(t, createdAt, created.UpdatedAt)

	item := &api.Item{
		ID:             created.SerialNumber,
		TypeIdentifier: testPassType,
		AuthToken:      created.AuthenticationToken,
		UpdatedTS:      created.UpdatedAt,
	}
	device := "lifecycle-device"

	// First registration creates, the second is a no-op.
	rec = doRequest(http.MethodPost, registrationPath(device, item), `{"pushToken":"1234567890"}`, passAuth(item))
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(http.MethodPost, registrationPath(device, item), `{"pushToken":"1234567890"}`, passAuth(item))
	assert.Equal(t, http.StatusOK, rec.Code)

	// The full listing reports the item and its timestamp.
	rec = doRequest(http.MethodGet, "/v1/devices/"+device+"/registrations/"+testPassType+"?passesUpdatedSince=0", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var updates api.SerialNumbersResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updates))
	assert.Equal(t, []string{item.ID}, updates.SerialNumbers)
	assert.Equal(t, strconv.FormatInt(created.UpdatedAt, 10), updates.LastUpdated)

	// An unconditional fetch returns the signed bundle.
	fetchPath := "/v1/passes/" + testPassType + "/" + item.ID
	rec = doRequest(http.MethodGet, fetchPath, "", passAuth(item))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.apple.pkpass", rec.Header().Get("Content-Type"))
	lastModified := rec.Header().Get("Last-Modified")
	assert.Equal(t, strconv.FormatInt(created.UpdatedAt, 10), lastModified)
	assertPassArchive(t, rec.Body.Bytes(), item)

	// Replaying the Last-Modified value hits the not-modified path.
	headers := passAuth(item)
	headers["If-Modified-Since"] = lastModified
	rec = doRequest(http.MethodGet, fetchPath, "", headers)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Zero(t, rec.Body.Len())

	// Updating the payload advances the timestamp and wakes the device.
	testClock.Advance(time.Minute)
	pushesBefore := len(testAPNS.pushed())
	rec = doRequest(http.MethodPut, "/items/"+testPassType+"/"+item.ID, `{"description":"Updated Pass"}`, operatorAuth())
	require.Equal(t, http.StatusOK, rec.Code)
	var updated ItemResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.Greater(t, updated.UpdatedAt, created.UpdatedAt)
	pushes := testAPNS.pushed()
	require.Len(t, pushes, pushesBefore+1)
	assert.Equal(t, "1234567890", pushes[len(pushes)-1])

	// The stale If-Modified-Since now misses and the bundle comes back.
	rec = doRequest(http.MethodGet, fetchPath, "", headers)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Unregistering is idempotent in the other direction: gone means 404.
	rec = doRequest(http.MethodDelete, registrationPath(device, item), "", passAuth(item))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(http.MethodDelete, registrationPath(device, item), "", passAuth(item))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// With no registrations left the listing is empty, which is 204.
	rec = doRequest(http.MethodGet, "/v1/devices/"+device+"/registrations/"+testPassType, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func assertPassArchive(t *testing.T, data []byte, item *api.Item) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		files[f.Name] = buf.Bytes()
	}
	require.Contains(t, files, "pass.json")
	require.Contains(t, files, "manifest.json")
	require.Contains(t, files, "signature")
	require.Contains(t, files, "icon.png")

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(files["pass.json"], &payload))
	assert.Equal(t, item.ID, payload["serialNumber"])
	assert.Equal(t, item.AuthToken, payload["authenticationToken"])
	assert.Equal(t, testPassType, payload["passTypeIdentifier"])
}

func TestRegistrationAuth(t *testing.T) {
	item := createItem(t, testPassType, `{"description":"Auth Pass"}`)
	body := `{"pushToken":"auth-test-token"}`

	tests := []struct {
		name     string
		path     string
		headers  map[string]string
		wantCode int
		wantErr  string
	}{
		{
			name:     "missing header",
			path:     registrationPath("auth-device", item),
			wantCode: http.StatusUnauthorized,
			wantErr:  "W_MISSING_TOKEN",
		},
		{
			name:     "wrong token",
			path:     registrationPath("auth-device", item),
			headers:  map[string]string{"Authorization": "ApplePass not-the-token"},
			wantCode: http.StatusUnauthorized,
			wantErr:  "W_UNKNOWN_TOKEN",
		},
		{
			name:     "wrong scheme",
			path:     registrationPath("auth-device", item),
			headers:  map[string]string{"Authorization": "AppleOrder " + item.AuthToken},
			wantCode: http.StatusUnauthorized,
			wantErr:  "W_MISSING_TOKEN",
		},
		{
			name:     "unparsable serial",
			path:     "/v1/devices/auth-device/registrations/" + testPassType + "/not-a-uuid",
			headers:  passAuth(item),
			wantCode: http.StatusUnauthorized,
			wantErr:  "W_UNKNOWN_TOKEN",
		},
		{
			name:     "unknown serial",
			path:     "/v1/devices/auth-device/registrations/" + testPassType + "/" + uuid.New().String(),
			headers:  passAuth(item),
			wantCode: http.StatusNotFound,
			wantErr:  "W_NOT_FOUND",
		},
		{
			name:     "unknown type identifier",
			path:     "/v1/devices/auth-device/registrations/pass.com.example.unknown/" + item.ID,
			headers:  passAuth(item),
			wantCode: http.StatusNotFound,
			wantErr:  "W_NOT_FOUND",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(http.MethodPost, tc.path, body, tc.headers)
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantErr, errcode(t, rec))
		})
	}
}

func TestRegisterRejectsBadBodies(t *testing.T) {
	item := createItem(t, testPassType, `{"description":"Body Pass"}`)

	rec := doRequest(http.MethodPost, registrationPath("body-device", item), "not json", passAuth(item))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "W_BAD_JSON", errcode(t, rec))

	rec = doRequest(http.MethodPost, registrationPath("body-device", item), `{}`, passAuth(item))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "W_BAD_JSON", errcode(t, rec))
}

func TestListUpdatesSinceFiltering(t *testing.T) {
	item := createItem(t, testPassType, `{"description":"Since Pass"}`)
	device := "since-device"
	rec := doRequest(http.MethodPost, registrationPath(device, item), `{"pushToken":"since-token"}`, passAuth(item))
	require.Equal(t, http.StatusCreated, rec.Code)

	listPath := "/v1/devices/" + device + "/registrations/" + testPassType

	// A since value at the item's timestamp filters it out; strictly
	// older values keep it.
	rec = doRequest(http.MethodGet, listPath+"?passesUpdatedSince="+strconv.FormatInt(item.UpdatedTS, 10), "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doRequest(http.MethodGet, listPath+"?passesUpdatedSince="+strconv.FormatInt(item.UpdatedTS-1, 10), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Unparsable values behave like an absent parameter.
	rec = doRequest(http.MethodGet, listPath+"?passesUpdatedSince=garbage", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(http.MethodGet, listPath, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrderFamilyWireFormat(t *testing.T) {
	item := createItem(t, testOrderType, `{"orderNumber":"ORDER-1"}`)
	device := "order-device"
	auth := map[string]string{"Authorization": "AppleOrder " + item.AuthToken}

	rec := doRequest(http.MethodPost, registrationPath(device, item), `{"pushToken":"order-token"}`, auth)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Orders report their timestamp as RFC3339 and accept the same value
	// back on the next poll.
	rec = doRequest(http.MethodGet, "/v1/devices/"+device+"/registrations/"+testOrderType, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var updates api.OrderIdentifiersResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updates))
	assert.Equal(t, []string{item.ID}, updates.OrderIdentifiers)
	parsed, err := time.Parse(time.RFC3339, updates.LastModified)
	require.NoError(t, err)
	assert.Equal(t, item.UpdatedTS, parsed.Unix())

	rec = doRequest(http.MethodGet,
		"/v1/devices/"+device+"/registrations/"+testOrderType+"?ordersModifiedSince="+updates.LastModified, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(http.MethodGet, "/v1/orders/"+testOrderType+"/"+item.ID, "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.apple.order", rec.Header().Get("Content-Type"))
	assert.Equal(t, strconv.FormatInt(item.UpdatedTS, 10), rec.Header().Get("Last-Modified"))
}

func TestPersonalize(t *testing.T) {
	item := createItem(t, testPassType, `{"description":"Personal Pass"}`)
	path := "/v1/passes/" + testPassType + "/" + item.ID + "/personalize"

	before := testDB.PersonalizationCount()
	body := `{"personalizationToken":"perso-token","requiredPersonalizationInfo":{"fullName":"Jamie Example","emailAddress":"jamie@example.com"}}`
	rec := doRequest(http.MethodPost, path, body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, before+1, testDB.PersonalizationCount())

	// The response is a detached signature over the submitted token.
	p7, err := pkcs7.Parse(rec.Body.Bytes())
	require.NoError(t, err)
	p7.Content = []byte("perso-token")
	require.NoError(t, p7.Verify())

	record, err := testDB.GetPersonalization(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jamie Example", record.FullName)
	assert.Equal(t, "jamie@example.com", record.EmailAddress)

	// The path is unauthenticated, so a malformed serial is a plain 400.
	rec = doRequest(http.MethodPost, "/v1/passes/"+testPassType+"/not-a-uuid/personalize", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "W_INVALID_PARAM", errcode(t, rec))

	rec = doRequest(http.MethodPost, path, `{"requiredPersonalizationInfo":{}}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "W_BAD_JSON", errcode(t, rec))
}

func TestOperatorEndpointsRequireToken(t *testing.T) {
	item := createItem(t, testPassType, `{"description":"Operator Pass"}`)

	rec := doRequest(http.MethodPost, "/items/"+testPassType, `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "W_MISSING_TOKEN", errcode(t, rec))

	rec = doRequest(http.MethodPost, "/push/"+testPassType+"/"+item.ID, "",
		map[string]string{"Authorization": "Bearer wrong-token"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "W_UNKNOWN_TOKEN", errcode(t, rec))

	// Operator paths report a malformed serial as not-found, unlike the
	// authenticated device paths.
	rec = doRequest(http.MethodPost, "/push/"+testPassType+"/not-a-uuid", "", operatorAuth())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "W_NOT_FOUND", errcode(t, rec))
}

func TestOperatorPushEndpoints(t *testing.T) {
	item := createItem(t, testPassType, `{"description":"Push Pass"}`)
	for i := 0; i < 2; i++ {
		device := fmt.Sprintf("push-device-%d", i)
		token := fmt.Sprintf("push-token-%d", i)
		rec := doRequest(http.MethodPost, registrationPath(device, item),
			`{"pushToken":"`+token+`"}`, passAuth(item))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doRequest(http.MethodGet, "/push/"+testPassType+"/"+item.ID, "", operatorAuth())
	require.Equal(t, http.StatusOK, rec.Code)
	var tokens []string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tokens))
	assert.ElementsMatch(t, []string{"push-token-0", "push-token-1"}, tokens)

	before := len(testAPNS.pushed())
	rec = doRequest(http.MethodPost, "/push/"+testPassType+"/"+item.ID, "", operatorAuth())
	assert.Equal(t, http.StatusNoContent, rec.Code)
	pushes := testAPNS.pushed()
	require.Len(t, pushes, before+2)
	assert.ElementsMatch(t, []string{"push-token-0", "push-token-1"}, pushes[before:])
}

func TestCreateItemRejectsInvalidPayload(t *testing.T) {
	rec := doRequest(http.MethodPost, "/items/"+testPassType, "{not json", operatorAuth())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "W_NOT_JSON", errcode(t, rec))

	rec = doRequest(http.MethodPost, "/items/pass.com.example.unknown", `{}`, operatorAuth())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateItemUnknownSerial(t *testing.T) {
	rec := doRequest(http.MethodPut, "/items/"+testPassType+"/"+uuid.New().String(), `{}`, operatorAuth())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "W_NOT_FOUND", errcode(t, rec))
}

func TestLogEndpoint(t *testing.T) {
	rec := doRequest(http.MethodPost, "/v1/log", `{"logs":["line one","line two"]}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFetchItemConditionalDefaults(t *testing.T) {
	item := createItem(t, testPassType, `{"description":"Conditional Pass"}`)
	path := "/v1/passes/" + testPassType + "/" + item.ID

	// Garbage If-Modified-Since values behave like an absent header.
	headers := passAuth(item)
	headers["If-Modified-Since"] = "Wed, 21 Oct 2015 07:28:00 GMT"
	rec := doRequest(http.MethodGet, path, "", headers)
	assert.Equal(t, http.StatusOK, rec.Code)

	headers["If-Modified-Since"] = strconv.FormatInt(item.UpdatedTS+1000, 10)
	rec = doRequest(http.MethodGet, path, "", headers)
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestFetchItemUnknownTypeIdentifier(t *testing.T) {
	item := createItem(t, testPassType, `{"description":"Typed Pass"}`)

	// The noun and the type identifier have to agree with a configured
	// family; a pass served under an unknown or mismatched type is 404.
	rec := doRequest(http.MethodGet, "/v1/passes/pass.com.example.unknown/"+item.ID, "", passAuth(item))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doRequest(http.MethodGet, "/v1/passes/"+testOrderType+"/"+item.ID, "", passAuth(item))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
