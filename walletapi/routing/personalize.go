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

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/matrix-org/util"

	"github.com/walletkit/walletd/internal/jsonerror"
	"github.com/walletkit/walletd/storage"
	"github.com/walletkit/walletd/walletapi/api"
)

// Personalize handles POST /v1/passes/{type}/{serial}/personalize. The
// submitted personal fields are stored and the response body is a detached
// signature over the caller's opaque personalization token: the only place
// the service signs client-supplied bytes. The path is unauthenticated, so
// an unparsable serial is 400 here rather than the 401 the authed paths
// report.
func Personalize(w http.ResponseWriter, req *http.Request, db storage.Database, family *Family) {
	serialNumber := mux.Vars(req)["serialNumber"]
	if _, err := uuid.Parse(serialNumber); err != nil {
		writeJSONResponse(w, req, util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.InvalidParam("Invalid serial number"),
		})
		return
	}
	item, err := db.GetItem(req.Context(), serialNumber, family.Kind.TypeIdentifier)
	if err == sql.ErrNoRows {
		writeJSONResponse(w, req, util.JSONResponse{
			Code: http.StatusNotFound,
			JSON: jsonerror.NotFound("Unknown item"),
		})
		return
	}
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("GetItem failed")
		writeJSONResponse(w, req, jsonerror.InternalServerError())
		return
	}

	var body api.PersonalizationRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSONResponse(w, req, util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.BadJSON("The request body could not be decoded into valid JSON: " + err.Error()),
		})
		return
	}
	if body.PersonalizationToken == "" {
		writeJSONResponse(w, req, util.JSONResponse{
			Code: http.StatusBadRequest,
			JSON: jsonerror.BadJSON("Missing personalizationToken"),
		})
		return
	}

	record := &api.PersonalizationRecord{
		ItemID:         item.ID,
		FullName:       body.RequiredPersonalizationInfo.FullName,
		GivenName:      body.RequiredPersonalizationInfo.GivenName,
		FamilyName:     body.RequiredPersonalizationInfo.FamilyName,
		EmailAddress:   body.RequiredPersonalizationInfo.EmailAddress,
		PostalCode:     body.RequiredPersonalizationInfo.PostalCode,
		ISOCountryCode: body.RequiredPersonalizationInfo.ISOCountryCode,
		PhoneNumber:    body.RequiredPersonalizationInfo.PhoneNumber,
	}
	if err := db.CreatePersonalization(req.Context(), record); err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("CreatePersonalization failed")
		writeJSONResponse(w, req, jsonerror.InternalServerError())
		return
	}

	signature, err := family.Signer.Sign([]byte(body.PersonalizationToken))
	if err != nil {
		util.GetLogger(req.Context()).WithError(err).Error("Failed to sign personalization token")
		writeJSONResponse(w, req, jsonerror.InternalServerError())
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := w.Write(signature); err != nil {
		util.GetLogger(req.Context()).WithError(err).Warn("Failed to write signature to client")
	}
}
