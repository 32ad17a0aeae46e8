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

	"github.com/gorilla/mux"
	"github.com/matrix-org/util"

	"github.com/walletkit/walletd/bundle"
	"github.com/walletkit/walletd/internal/httputil"
	"github.com/walletkit/walletd/internal/jsonerror"
	"github.com/walletkit/walletd/push"
	"github.com/walletkit/walletd/setup/config"
	"github.com/walletkit/walletd/storage"
	"github.com/walletkit/walletd/walletapi/api"
	walletinternal "github.com/walletkit/walletd/walletapi/internal"
)

const pathPrefixV1 = "/v1"

// Family collects the runtime pieces serving one configured item family.
type Family struct {
	Kind     api.Kind
	Renderer api.Renderer
	Builder  *bundle.Builder
	Signer   *bundle.Signer
}

// Setup registers the wallet web service HTTP handlers: the device-facing
// protocol under /v1 and the operator endpoints under /push and /items.
func Setup(
	publicAPIMux *mux.Router,
	cfg *config.WalletAPI,
	db storage.Database,
	walletAPI *walletinternal.WalletAPI,
	dispatcher *push.Dispatcher,
	families []*Family,
) {
	byType := make(map[string]*Family, len(families))
	for _, f := range families {
		byType[f.Kind.TypeIdentifier] = f
	}
	lookup := func(req *http.Request) *Family {
		return byType[mux.Vars(req)["typeIdentifier"]]
	}

	v1mux := publicAPIMux.PathPrefix(pathPrefixV1).Subrouter()

	v1mux.Handle("/devices/{deviceLibraryIdentifier}/registrations/{typeIdentifier}",
		httputil.MakeExternalAPI("wallet_list_updates", func(req *http.Request) util.JSONResponse {
			family := lookup(req)
			if family == nil {
				return util.JSONResponse{
					Code: http.StatusNotFound,
					JSON: jsonerror.NotFound("Unknown type identifier"),
				}
			}
			vars := mux.Vars(req)
			return ListUpdates(req, db, family.Kind, vars["deviceLibraryIdentifier"])
		}),
	).Methods(http.MethodGet, http.MethodOptions)

	v1mux.Handle("/devices/{deviceLibraryIdentifier}/registrations/{typeIdentifier}/{serialNumber}",
		httputil.MakeExternalAPI("wallet_register", func(req *http.Request) util.JSONResponse {
			family := lookup(req)
			if family == nil {
				return util.JSONResponse{
					Code: http.StatusNotFound,
					JSON: jsonerror.NotFound("Unknown type identifier"),
				}
			}
			vars := mux.Vars(req)
			return Register(req, db, family.Kind, vars["deviceLibraryIdentifier"], vars["serialNumber"])
		}),
	).Methods(http.MethodPost, http.MethodOptions)

	v1mux.Handle("/devices/{deviceLibraryIdentifier}/registrations/{typeIdentifier}/{serialNumber}",
		httputil.MakeExternalAPI("wallet_unregister", func(req *http.Request) util.JSONResponse {
			family := lookup(req)
			if family == nil {
				return util.JSONResponse{
					Code: http.StatusNotFound,
					JSON: jsonerror.NotFound("Unknown type identifier"),
				}
			}
			vars := mux.Vars(req)
			return Unregister(req, db, family.Kind, vars["deviceLibraryIdentifier"], vars["serialNumber"])
		}),
	).Methods(http.MethodDelete)

	v1mux.Handle("/log",
		httputil.MakeExternalAPI("wallet_log", func(req *http.Request) util.JSONResponse {
			return LogClientMessages(req)
		}),
	).Methods(http.MethodPost, http.MethodOptions)

	for _, f := range families {
		family := f
		v1mux.Handle("/"+family.Kind.Noun+"/{typeIdentifier}/{serialNumber}",
			httputil.MakeHTTPAPI("wallet_fetch_item", cfg.Global.Metrics.Enabled,
				func(w http.ResponseWriter, req *http.Request) {
					if lookup(req) != family {
						writeJSONResponse(w, req, util.JSONResponse{
							Code: http.StatusNotFound,
							JSON: jsonerror.NotFound("Unknown type identifier"),
						})
						return
					}
					FetchItem(w, req, db, family)
				}),
		).Methods(http.MethodGet, http.MethodOptions)

		if family.Kind.Personalizable {
			v1mux.Handle("/"+family.Kind.Noun+"/{typeIdentifier}/{serialNumber}/personalize",
				httputil.MakeHTTPAPI("wallet_personalize", cfg.Global.Metrics.Enabled,
					func(w http.ResponseWriter, req *http.Request) {
						if lookup(req) != family {
							writeJSONResponse(w, req, util.JSONResponse{
								Code: http.StatusNotFound,
								JSON: jsonerror.NotFound("Unknown type identifier"),
							})
							return
						}
						Personalize(w, req, db, family)
					}),
			).Methods(http.MethodPost, http.MethodOptions)
		}
	}

	publicAPIMux.Handle("/push/{typeIdentifier}/{serialNumber}",
		httputil.MakeOperatorAPI("wallet_force_push", cfg.OperatorToken, func(req *http.Request) util.JSONResponse {
			family := lookup(req)
			if family == nil {
				return util.JSONResponse{
					Code: http.StatusNotFound,
					JSON: jsonerror.NotFound("Unknown type identifier"),
				}
			}
			vars := mux.Vars(req)
			return ForcePush(req, db, dispatcher, family.Kind, vars["serialNumber"])
		}),
	).Methods(http.MethodPost)

	publicAPIMux.Handle("/push/{typeIdentifier}/{serialNumber}",
		httputil.MakeOperatorAPI("wallet_list_push_tokens", cfg.OperatorToken, func(req *http.Request) util.JSONResponse {
			family := lookup(req)
			if family == nil {
				return util.JSONResponse{
					Code: http.StatusNotFound,
					JSON: jsonerror.NotFound("Unknown type identifier"),
				}
			}
			vars := mux.Vars(req)
			return ListPushTokens(req, db, dispatcher, family.Kind, vars["serialNumber"])
		}),
	).Methods(http.MethodGet)

	publicAPIMux.Handle("/items/{typeIdentifier}",
		httputil.MakeOperatorAPI("wallet_create_item", cfg.OperatorToken, func(req *http.Request) util.JSONResponse {
			family := lookup(req)
			if family == nil {
				return util.JSONResponse{
					Code: http.StatusNotFound,
					JSON: jsonerror.NotFound("Unknown type identifier"),
				}
			}
			return CreateItem(req, walletAPI, family.Kind)
		}),
	).Methods(http.MethodPost)

	publicAPIMux.Handle("/items/{typeIdentifier}/{serialNumber}",
		httputil.MakeOperatorAPI("wallet_update_item", cfg.OperatorToken, func(req *http.Request) util.JSONResponse {
			family := lookup(req)
			if family == nil {
				return util.JSONResponse{
					Code: http.StatusNotFound,
					JSON: jsonerror.NotFound("Unknown type identifier"),
				}
			}
			vars := mux.Vars(req)
			return UpdateItem(req, db, walletAPI, family.Kind, vars["serialNumber"])
		}),
	).Methods(http.MethodPut)
}
