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
	"net/http"
	"strconv"
	"time"

	"github.com/matrix-org/util"

	"github.com/walletkit/walletd/internal/jsonerror"
	"github.com/walletkit/walletd/storage"
	"github.com/walletkit/walletd/walletapi/api"
)

// ListUpdates handles GET /v1/devices/{dl}/registrations/{type}. It lists
// the ids of the device's registered items updated since the query
// timestamp, or responds 204 when nothing changed. Devices distinguish 204
// from an empty list, so the empty case never produces a body.
func ListUpdates(
	req *http.Request, db storage.Database, kind api.Kind,
	deviceLibraryIdentifier string,
) util.JSONResponse {
	since := parseSince(kind, req.URL.Query().Get(kind.SinceParam))

	ids, lastModified, err := db.UpdatedSince(req.Context(), deviceLibraryIdentifier, kind.TypeIdentifier, since)
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("UpdatedSince failed")
		return jsonerror.InternalServerError()
	}
	if len(ids) == 0 {
		return util.JSONResponse{
			Code: http.StatusNoContent,
			JSON: struct{}{},
		}
	}
	return util.JSONResponse{
		Code: http.StatusOK,
		JSON: kind.UpdatesResponse(ids, lastModified),
	}
}

// parseSince interprets the updated-since query parameter. Devices echo
// back whatever lastModified value a previous response carried, so each
// family must parse its own rendering; an absent or unparsable value
// matches every registered item.
func parseSince(kind api.Kind, raw string) int64 {
	if raw == "" {
		return -1
	}
	if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ts
	}
	if kind.Family == api.FamilyOrder {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.Unix()
		}
	}
	return -1
}
