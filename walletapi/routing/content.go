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
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/matrix-org/util"

	"github.com/walletkit/walletd/bundle"
	"github.com/walletkit/walletd/internal/jsonerror"
	"github.com/walletkit/walletd/storage"
	"github.com/walletkit/walletd/walletapi/api"
)

// FetchItem handles GET /v1/{passes,orders}/{type}/{serial}: the
// conditional signed-bundle fetch. The If-Modified-Since value is the
// epoch-seconds string from a previous Last-Modified; absent means 0, so a
// first fetch always builds. The 304 comparison is "not strictly newer".
func FetchItem(w http.ResponseWriter, req *http.Request, db storage.Database, family *Family) {
	item, resErr := authenticateItem(req, db, family.Kind, mux.Vars(req)["serialNumber"])
	if resErr != nil {
		writeJSONResponse(w, req, *resErr)
		return
	}

	var ifModifiedSince int64
	if raw := req.Header.Get("If-Modified-Since"); raw != "" {
		if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ifModifiedSince = ts
		}
	}
	if ifModifiedSince >= item.UpdatedTS {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	data, err := db.GetItemData(req.Context(), item.ID)
	if err == sql.ErrNoRows {
		// An item without its payload is a data integrity fault, but
		// the device can do nothing about it either way.
		writeJSONResponse(w, req, util.JSONResponse{
			Code: http.StatusNotFound,
			JSON: jsonerror.NotFound("No data for this item"),
		})
		return
	}
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("GetItemData failed")
		writeJSONResponse(w, req, jsonerror.InternalServerError())
		return
	}

	bundled, err := buildBundle(family, item, data)
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).WithField("item_id", item.ID).Error("Failed to build bundle")
		writeJSONResponse(w, req, jsonerror.InternalServerError())
		return
	}

	w.Header().Set("Content-Type", family.Kind.ContentType)
	w.Header().Set("Last-Modified", strconv.FormatInt(item.UpdatedTS, 10))
	if _, err := w.Write(bundled); err != nil {
		util.GetLogger(req.Context()).WithError(err).Warn("Failed to write bundle to client")
	}
}

// buildBundle renders the item and assembles its signed archive.
func buildBundle(family *Family, item *api.Item, data *api.ItemData) ([]byte, error) {
	payload, err := family.Renderer.ItemJSON(item, data)
	if err != nil {
		return nil, err
	}
	files, err := family.Renderer.SourceFiles()
	if err != nil {
		return nil, err
	}
	personalization, err := family.Renderer.PersonalizationJSON(item, data)
	if err != nil {
		return nil, err
	}
	return family.Builder.Build(bundle.Input{
		Payload:         payload,
		Files:           files,
		Personalization: personalization,
	})
}

// writeJSONResponse writes a util.JSONResponse on a raw handler path.
func writeJSONResponse(w http.ResponseWriter, req *http.Request, res util.JSONResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.Code)
	if err := json.NewEncoder(w).Encode(res.JSON); err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("Failed to encode JSON response")
	}
}
