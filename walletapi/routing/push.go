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
	"net/http"

	"github.com/google/uuid"
	"github.com/matrix-org/util"

	"github.com/walletkit/walletd/internal/jsonerror"
	"github.com/walletkit/walletd/push"
	"github.com/walletkit/walletd/storage"
	"github.com/walletkit/walletd/walletapi/api"
)

// operatorItem resolves the item named by an operator path. Operator paths
// are token-gated before this runs, so a bad serial is simply 404.
func operatorItem(
	req *http.Request, db storage.Database, kind api.Kind, serialNumber string,
) (*api.Item, *util.JSONResponse) {
	if _, err := uuid.Parse(serialNumber); err != nil {
		return nil, &util.JSONResponse{
			Code: http.StatusNotFound,
			JSON: jsonerror.NotFound("Unknown item"),
		}
	}
	item, err := db.GetItem(req.Context(), serialNumber, kind.TypeIdentifier)
	if err == sql.ErrNoRows {
		return nil, &util.JSONResponse{
			Code: http.StatusNotFound,
			JSON: jsonerror.NotFound("Unknown item"),
		}
	}
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("GetItem failed")
		resErr := jsonerror.InternalServerError()
		return nil, &resErr
	}
	return item, nil
}

// ForcePush handles POST /push/{type}/{serial}: an operator-triggered
// fan-out without a payload change.
func ForcePush(
	req *http.Request, db storage.Database, dispatcher *push.Dispatcher,
	kind api.Kind, serialNumber string,
) util.JSONResponse {
	item, resErr := operatorItem(req, db, kind, serialNumber)
	if resErr != nil {
		return *resErr
	}
	if err := dispatcher.DispatchItem(req.Context(), item); err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("DispatchItem failed")
		return jsonerror.InternalServerError()
	}
	return util.JSONResponse{
		Code: http.StatusNoContent,
		JSON: struct{}{},
	}
}

// ListPushTokens handles GET /push/{type}/{serial}: the push tokens of the
// devices currently registered for the item.
func ListPushTokens(
	req *http.Request, db storage.Database, dispatcher *push.Dispatcher,
	kind api.Kind, serialNumber string,
) util.JSONResponse {
	item, resErr := operatorItem(req, db, kind, serialNumber)
	if resErr != nil {
		return *resErr
	}
	tokens, err := dispatcher.TokensForItem(req.Context(), item.ID)
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("TokensForItem failed")
		return jsonerror.InternalServerError()
	}
	return util.JSONResponse{
		Code: http.StatusOK,
		JSON: tokens,
	}
}
