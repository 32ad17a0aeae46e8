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
	"database/sql"
	"encoding/json"
	"io"
	"net/http"

	"github.com/matrix-org/util"

	"github.com/walletkit/walletd/internal/jsonerror"
	"github.com/walletkit/walletd/storage"
	"github.com/walletkit/walletd/walletapi/api"
	walletinternal "github.com/walletkit/walletd/walletapi/internal"
)

// ItemResponse is the operator's view of an item.
type ItemResponse struct {
	SerialNumber        string `json:"serialNumber"`
	TypeIdentifier      string `json:"typeIdentifier"`
	AuthenticationToken string `json:"authenticationToken"`
	UpdatedAt           int64  `json:"updatedAt"`
}

func itemResponse(item *api.Item) ItemResponse {
	return ItemResponse{
		SerialNumber:        item.ID,
		TypeIdentifier:      item.TypeIdentifier,
		AuthenticationToken: item.AuthToken,
		UpdatedAt:           item.UpdatedTS,
	}
}

// CreateItem handles POST /items/{type}: store a new item payload and mint
// its serial number and authentication token. No push happens on creation;
// nothing can be registered for an item that did not exist.
func CreateItem(
	req *http.Request, walletAPI *walletinternal.WalletAPI, kind api.Kind,
) util.JSONResponse {
	payload, resErr := readJSONPayload(req)
	if resErr != nil {
		return *resErr
	}
	item, err := walletAPI.OnItemDataCreated(req.Context(), kind.TypeIdentifier, payload)
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("OnItemDataCreated failed")
		return jsonerror.InternalServerError()
	}
	return util.JSONResponse{
		Code: http.StatusCreated,
		JSON: itemResponse(item),
	}
}

// UpdateItem handles PUT /items/{type}/{serial}: replace the payload,
// advance the item's timestamp and wake every registered device.
func UpdateItem(
	req *http.Request, db storage.Database, walletAPI *walletinternal.WalletAPI,
	kind api.Kind, serialNumber string,
) util.JSONResponse {
	item, resErr := operatorItem(req, db, kind, serialNumber)
	if resErr != nil {
		return *resErr
	}
	payload, resErr := readJSONPayload(req)
	if resErr != nil {
		return *resErr
	}
	updated, err := walletAPI.OnItemDataUpdated(req.Context(), item.ID, payload)
	if err == sql.ErrNoRows {
		return util.JSONResponse{
			Code: http.StatusNotFound,
			JSON: jsonerror.NotFound("Unknown item"),
		}
	}
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("OnItemDataUpdated failed")
		return jsonerror.InternalServerError()
	}
	return util.JSONResponse{
		Code: http.StatusOK,
		JSON: itemResponse(updated),
	}
}

// readJSONPayload reads the request body and checks it is valid JSON
// without interpreting it further; the payload is the renderer's business.
func readJSONPayload(req *http.Request) ([]byte, *util.JSONResponse) {
	payload, err := io.ReadAll(req.Body)
	if err != nil {
		resErr := jsonerror.InternalServerError()
		return nil, &resErr
	}
	if !json.Valid(payload) {
		return nil, &util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.NotJSON("The item payload must be valid JSON"),
		}
	}
	return payload, nil
}
