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
	"crypto/subtle"
	"database/sql"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/matrix-org/util"

	"github.com/walletkit/walletd/internal/jsonerror"
	"github.com/walletkit/walletd/storage"
	"github.com/walletkit/walletd/walletapi/api"
)

// authenticateItem resolves the serial number on an authenticated path and
// checks the bearer credential against the item's stored token. An
// unparsable serial is reported as 401, not 400: the request cannot name an
// item, so there is nothing to authenticate against. An item that does not
// exist is 404; a missing or mismatched token is 401.
func authenticateItem(
	req *http.Request, db storage.Database, kind api.Kind, serialNumber string,
) (*api.Item, *util.JSONResponse) {
	if _, err := uuid.Parse(serialNumber); err != nil {
		return nil, &util.JSONResponse{
			Code: http.StatusUnauthorized,
			JSON: jsonerror.UnknownToken("Invalid serial number"),
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

	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return nil, &util.JSONResponse{
			Code: http.StatusUnauthorized,
			JSON: jsonerror.MissingToken("Missing Authorization header"),
		}
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != kind.AuthScheme {
		return nil, &util.JSONResponse{
			Code: http.StatusUnauthorized,
			JSON: jsonerror.MissingToken("Invalid Authorization scheme"),
		}
	}
	if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(item.AuthToken)) != 1 {
		return nil, &util.JSONResponse{
			Code: http.StatusUnauthorized,
			JSON: jsonerror.UnknownToken("Unrecognised authentication token"),
		}
	}
	return item, nil
}
