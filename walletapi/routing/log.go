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
	"encoding/json"
	"net/http"

	"github.com/matrix-org/util"

	"github.com/walletkit/walletd/walletapi/api"
)

// LogClientMessages handles POST /v1/log. Devices report client-side
// errors here; the lines go to our log and the endpoint always succeeds.
func LogClientMessages(req *http.Request) util.JSONResponse {
	var body api.LogRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err == nil {
		logger := util.GetLogger(req.Context())
		for _, line := range body.Logs {
			logger.WithField("client_log", line).Info("Wallet client log")
		}
	}
	return util.JSONResponse{
		Code: http.StatusOK,
		JSON: struct{}{},
	}
}
