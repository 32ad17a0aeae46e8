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

package apns

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/walletkit/walletd/internal"
	"github.com/walletkit/walletd/setup/config"
)

// The payload of a background notification: no alert, just a wake-up.
const backgroundPayload = `{"aps":{"content-available":1}}`

type httpClient struct {
	hc       *http.Client
	endpoint string
}

// NewHTTPClient creates an APNs client authenticated with the TLS client
// certificate from the config. APNs requires HTTP/2.
func NewHTTPClient(cfg *config.APNSOptions) (Client, error) {
	cert, err := tls.LoadX509KeyPair(string(cfg.Certificate), string(cfg.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("loading APNs client certificate: %w", err)
	}
	hc := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http2.Transport{
			TLSClientConfig: &tls.Config{
				Certificates:       []tls.Certificate{cert},
				InsecureSkipVerify: cfg.DisableTLSValidation, // nolint:gosec
			},
		},
	}
	return &httpClient{hc: hc, endpoint: strings.TrimSuffix(cfg.Endpoint, "/")}, nil
}

func (h *httpClient) Push(ctx context.Context, deviceToken, topic string) error {
	url := fmt.Sprintf("%s/3/device/%s", h.endpoint, deviceToken)
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(backgroundPayload))
	if err != nil {
		return err
	}
	hreq.Header.Set("apns-topic", topic)
	hreq.Header.Set("apns-push-type", "background")
	hreq.Header.Set("apns-priority", "5")

	hresp, err := h.hc.Do(hreq)
	if err != nil {
		return err
	}
	defer internal.CloseAndLogIfError(ctx, hresp.Body, "failed to close response body")

	if hresp.StatusCode == http.StatusOK {
		return nil
	}

	var errorBody struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(hresp.Body).Decode(&errorBody); err != nil {
		return fmt.Errorf("apns: %d from %s", hresp.StatusCode, url)
	}
	switch errorBody.Reason {
	case "BadDeviceToken", "Unregistered", "ExpiredToken":
		return fmt.Errorf("%w: %s", ErrBadDeviceToken, errorBody.Reason)
	}
	return fmt.Errorf("apns: %d from %s: %s", hresp.StatusCode, url, errorBody.Reason)
}
