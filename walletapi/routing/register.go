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

	"github.com/walletkit/walletd/internal/jsonerror"
	"github.com/walletkit/walletd/storage"
	"github.com/walletkit/walletd/walletapi/api"
)

// Register handles POST /v1/devices/{dl}/registrations/{type}/{serial}.
// Registering an already registered pair is idempotent: 201 on first
// creation, 200 on repeats, one registration row either way.
func Register(
	req *http.Request, db storage.Database, kind api.Kind,
	deviceLibraryIdentifier, serialNumber string,
) util.JSONResponse {
	item, resErr := authenticateItem(req, db, kind, serialNumber)
	if resErr != nil {
		return *resErr
	}

	var body api.RegisterRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.BadJSON("The request body could not be decoded into valid JSON: " + err.Error()),
		}
	}
	if body.PushToken == "" {
		return util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.BadJSON("Missing pushToken"),
		}
	}

	device, err := db.FindOrCreateDevice(req.Context(), deviceLibraryIdentifier, body.PushToken)
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("FindOrCreateDevice failed")
		return jsonerror.InternalServerError()
	}
	created, err := db.RegisterDevice(req.Context(), device, item)
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("RegisterDevice failed")
		return jsonerror.InternalServerError()
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return util.JSONResponse{
		Code: code,
		JSON: struct{}{},
	}
}

// Unregister handles DELETE /v1/devices/{dl}/registrations/{type}/{serial}.
// The device and the item survive; only the registration goes away.
func Unregister(
	req *http.Request, db storage.Database, kind api.Kind,
	deviceLibraryIdentifier, serialNumber string,
) util.JSONResponse {
	item, resErr := authenticateItem(req, db, kind, serialNumber)
	if resErr != nil {
		return *resErr
	}

	found, err := db.UnregisterDevice(req.Context(), deviceLibraryIdentifier, item.ID)
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("UnregisterDevice failed")
		return jsonerror.InternalServerError()
	}
	if !found {
		return util.JSONResponse{
			Code: http.StatusNotFound,
			JSON: jsonerror.NotFound("Device is not registered for this item"),
		}
	}
	return util.JSONResponse{
		Code: http.StatusOK,
		JSON: struct{}{},
	}
}
